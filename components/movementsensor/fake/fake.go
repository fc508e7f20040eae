// Package fake is a fake MovementSensor for testing. It reports a settable yaw, or the simulated
// yaw of a fake base when bound to one.
package fake

import (
	"context"
	"math"
	"sync"

	"github.com/pkg/errors"

	"go.viam.com/safewander/components/base"
	fakebase "go.viam.com/safewander/components/base/fake"
	"go.viam.com/safewander/components/movementsensor"
	"go.viam.com/safewander/logging"
	"go.viam.com/safewander/resource"
	"go.viam.com/safewander/spatialmath"
	"go.viam.com/safewander/utils"
)

// Model is the model of the fake movement sensor.
var Model = resource.DefaultModelFamily.WithModel("fake")

func init() {
	resource.RegisterComponent(
		movementsensor.API,
		Model,
		resource.Registration[movementsensor.MovementSensor, *Config]{Constructor: NewMovementSensor},
	)
}

// Config is used for converting fake movementsensor attributes.
type Config struct {
	// Base, when set, names a fake base whose simulated yaw is reported.
	Base string `json:"base,omitempty"`
	// CompassOnly makes the sensor report compass heading but not orientation.
	CompassOnly bool `json:"compass_only,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) ([]string, error) {
	if cfg.Base == "" {
		return nil, nil
	}
	return []string{cfg.Base}, nil
}

type poseSource interface {
	Pose() fakebase.Pose
}

// MovementSensor is a fake movement sensor.
type MovementSensor struct {
	resource.Named
	resource.AlwaysRebuild
	resource.TriviallyCloseable

	logger      logging.Logger
	compassOnly bool

	mu   sync.Mutex
	base poseSource
	yaw  float64
	err  error
}

// NewMovementSensor makes a new fake movement sensor.
func NewMovementSensor(
	ctx context.Context,
	deps resource.Dependencies,
	conf resource.Config,
	logger logging.Logger,
) (movementsensor.MovementSensor, error) {
	ms := &MovementSensor{Named: conf.ResourceName().AsNamed(), logger: logger}
	if conf.ConvertedAttributes == nil {
		return ms, nil
	}
	native, err := resource.NativeConfig[*Config](conf)
	if err != nil {
		return nil, err
	}
	ms.compassOnly = native.CompassOnly
	if native.Base != "" {
		b, err := base.FromDependencies(deps, native.Base)
		if err != nil {
			return nil, err
		}
		src, ok := b.(poseSource)
		if !ok {
			return nil, errors.Errorf("base %q does not simulate a pose", native.Base)
		}
		ms.base = src
		logger.CInfof(ctx, "reporting the simulated yaw of base %s", native.Base)
	}
	return ms, nil
}

// SetYaw sets the reported yaw in radians. It has no effect while bound to a base.
func (ms *MovementSensor) SetYaw(yaw float64) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.yaw = spatialmath.NormalizeAngle(yaw)
}

// SetError makes every following read fail with err. A nil err clears it.
func (ms *MovementSensor) SetError(err error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.err = err
}

func (ms *MovementSensor) currentYaw() (float64, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.err != nil {
		return 0, ms.err
	}
	if ms.base != nil {
		return ms.base.Pose().Yaw, nil
	}
	return ms.yaw, nil
}

// Orientation returns a pure yaw orientation.
func (ms *MovementSensor) Orientation(ctx context.Context, extra map[string]interface{}) (spatialmath.Orientation, error) {
	if ms.compassOnly {
		return nil, errors.New("orientation not supported")
	}
	yaw, err := ms.currentYaw()
	if err != nil {
		return nil, err
	}
	return spatialmath.NewYaw(yaw), nil
}

// CompassHeading returns the yaw as degrees clockwise in [0, 360).
func (ms *MovementSensor) CompassHeading(ctx context.Context, extra map[string]interface{}) (float64, error) {
	yaw, err := ms.currentYaw()
	if err != nil {
		return 0, err
	}
	heading := math.Mod(-utils.RadToDeg(yaw), 360)
	if heading < 0 {
		heading += 360
	}
	return heading, nil
}

// Properties returns what the fake supports.
func (ms *MovementSensor) Properties(ctx context.Context, extra map[string]interface{}) (*movementsensor.Properties, error) {
	return &movementsensor.Properties{
		OrientationSupported:    !ms.compassOnly,
		CompassHeadingSupported: true,
	}, nil
}
