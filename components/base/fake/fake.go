// Package fake implements a fake base that integrates a simulated planar pose from the velocities
// it is commanded with.
package fake

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"go.viam.com/safewander/components/base"
	"go.viam.com/safewander/logging"
	"go.viam.com/safewander/resource"
	"go.viam.com/safewander/spatialmath"
	"go.viam.com/safewander/utils"
)

// Model is the model of the fake base.
var Model = resource.DefaultModelFamily.WithModel("fake")

func init() {
	resource.RegisterComponent(
		base.API,
		Model,
		resource.Registration[base.Base, *Config]{Constructor: func(
			ctx context.Context, _ resource.Dependencies, conf resource.Config, logger logging.Logger,
		) (base.Base, error) {
			return NewBase(conf, clock.New(), logger)
		}},
	)
}

// Config is the fake base's native config.
type Config struct {
	// MaxHistory bounds how many commands are kept for inspection. Zero keeps everything.
	MaxHistory int `json:"max_history,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) ([]string, error) {
	if cfg.MaxHistory < 0 {
		return nil, goutils.NewConfigValidationError(path, errors.New("max_history cannot be negative"))
	}
	return nil, nil
}

// Command is a single recorded SetVelocity call.
type Command struct {
	Linear  r3.Vector
	Angular r3.Vector
	At      time.Time
}

// Pose is the simulated planar pose of the base. X and Y are in millimeters, Yaw in radians.
type Pose struct {
	X, Y float64
	Yaw  float64
}

// Base is a fake base that records what it is asked to do.
type Base struct {
	resource.Named
	resource.AlwaysRebuild

	clock  clock.Clock
	logger logging.Logger

	mu          sync.Mutex
	maxHistory  int
	commands    []Command
	linear      r3.Vector
	angular     r3.Vector
	pose        Pose
	lastUpdate  time.Time
	stopCount   int
	setVelError error
}

// NewBase instantiates a new base of the fake model type. The pose is integrated against clk.
func NewBase(conf resource.Config, clk clock.Clock, logger logging.Logger) (*Base, error) {
	var maxHistory int
	if conf.ConvertedAttributes != nil {
		native, err := resource.NativeConfig[*Config](conf)
		if err != nil {
			return nil, err
		}
		maxHistory = native.MaxHistory
	}
	return &Base{
		Named:      conf.ResourceName().AsNamed(),
		clock:      clk,
		logger:     logger,
		maxHistory: maxHistory,
		lastUpdate: clk.Now(),
	}, nil
}

// integrate advances the pose to now with the current velocities.
func (b *Base) integrate() {
	now := b.clock.Now()
	dt := now.Sub(b.lastUpdate).Seconds()
	b.lastUpdate = now
	if dt <= 0 {
		return
	}
	omega := utils.DegToRad(b.angular.Z)
	// yaw is measured from the x axis
	b.pose.X += b.linear.Y * dt * math.Cos(b.pose.Yaw)
	b.pose.Y += b.linear.Y * dt * math.Sin(b.pose.Yaw)
	b.pose.Yaw = spatialmath.NormalizeAngle(b.pose.Yaw + omega*dt)
}

// SetVelocity records the command and starts moving the simulated pose with it.
func (b *Base) SetVelocity(ctx context.Context, linear, angular r3.Vector, extra map[string]interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.setVelError != nil {
		return b.setVelError
	}
	b.integrate()
	b.linear = linear
	b.angular = angular
	b.commands = append(b.commands, Command{Linear: linear, Angular: angular, At: b.lastUpdate})
	if b.maxHistory > 0 && len(b.commands) > b.maxHistory {
		b.commands = b.commands[len(b.commands)-b.maxHistory:]
	}
	return nil
}

// Stop zeroes the commanded velocities.
func (b *Base) Stop(ctx context.Context, extra map[string]interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.integrate()
	b.linear = r3.Vector{}
	b.angular = r3.Vector{}
	b.stopCount++
	b.logger.CDebugw(ctx, "fake base stopped", "pose", b.pose)
	return nil
}

// IsMoving returns whether the last command was non-zero.
func (b *Base) IsMoving(ctx context.Context) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.linear != (r3.Vector{}) || b.angular != (r3.Vector{}), nil
}

// Pose returns the simulated pose as of now.
func (b *Base) Pose() Pose {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.integrate()
	return b.pose
}

// SetPose teleports the simulated base.
func (b *Base) SetPose(pose Pose) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.integrate()
	pose.Yaw = spatialmath.NormalizeAngle(pose.Yaw)
	b.pose = pose
}

// Commands returns a copy of the recorded commands.
func (b *Base) Commands() []Command {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Command(nil), b.commands...)
}

// StopCount returns how many times the base was stopped.
func (b *Base) StopCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stopCount
}

// FailSetVelocity makes every following SetVelocity return err. A nil err clears it.
func (b *Base) FailSetVelocity(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.setVelError = err
}

// Close stops the base.
func (b *Base) Close(ctx context.Context) error {
	return b.Stop(ctx, nil)
}
