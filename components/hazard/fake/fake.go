// Package fake implements a fake bumper or cliff sensor. Readings are injected by hand or emitted
// at random intervals for simulation.
package fake

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"
	"gonum.org/v1/gonum/stat/distuv"

	"go.viam.com/safewander/components/hazard"
	"go.viam.com/safewander/logging"
	"go.viam.com/safewander/resource"
	"go.viam.com/safewander/utils"
)

// Model is the model of the fake hazard sensor.
var Model = resource.DefaultModelFamily.WithModel("fake")

// The kinds of sensor the fake can pretend to be.
const (
	KindBumper = "bumper"
	KindCliff  = "cliff"
)

const defaultBufferSize = 32

func init() {
	resource.RegisterComponent(
		hazard.API,
		Model,
		resource.Registration[hazard.Sensor, *Config]{Constructor: func(
			ctx context.Context, _ resource.Dependencies, conf resource.Config, logger logging.Logger,
		) (hazard.Sensor, error) {
			return NewSensor(conf, clock.New(), logger)
		}},
	)
}

// Config is the fake hazard sensor's native config.
type Config struct {
	Kind string `json:"kind"`
	// MeanIntervalSec enables random hazards spaced by exponentially distributed intervals with
	// this mean. Zero disables them.
	MeanIntervalSec float64 `json:"mean_interval_sec,omitempty"`
	Seed            *int64  `json:"seed,omitempty"`
	BufferSize      int     `json:"buffer_size,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) ([]string, error) {
	switch cfg.Kind {
	case KindBumper, KindCliff:
	case "":
		return nil, goutils.NewConfigValidationFieldRequiredError(path, "kind")
	default:
		return nil, goutils.NewConfigValidationError(path,
			errors.Errorf("kind must be %q or %q, got %q", KindBumper, KindCliff, cfg.Kind))
	}
	if cfg.MeanIntervalSec < 0 {
		return nil, goutils.NewConfigValidationError(path, errors.New("mean_interval_sec cannot be negative"))
	}
	if cfg.BufferSize < 0 {
		return nil, goutils.NewConfigValidationError(path, errors.New("buffer_size cannot be negative"))
	}
	return nil, nil
}

// Sensor is a fake hazard sensor.
type Sensor struct {
	resource.Named
	resource.AlwaysRebuild

	kind    string
	clock   clock.Clock
	logger  logging.Logger
	workers utils.StoppableWorkers

	// sendMu is held for reading while sending so Close never closes the channel mid-send.
	sendMu sync.RWMutex
	closed bool
	events chan hazard.Reading
}

// NewSensor creates a fake hazard sensor. Random emission, when configured, is timed on clk.
func NewSensor(conf resource.Config, clk clock.Clock, logger logging.Logger) (*Sensor, error) {
	native, err := resource.NativeConfig[*Config](conf)
	if err != nil {
		return nil, err
	}
	bufferSize := native.BufferSize
	if bufferSize == 0 {
		bufferSize = defaultBufferSize
	}
	s := &Sensor{
		Named:   conf.ResourceName().AsNamed(),
		kind:    native.Kind,
		clock:   clk,
		logger:  logger,
		workers: utils.NewStoppableWorkers(),
		events:  make(chan hazard.Reading, bufferSize),
	}
	if native.MeanIntervalSec > 0 {
		seed := time.Now().UnixNano()
		if native.Seed != nil {
			seed = *native.Seed
		}
		s.workers.AddWorkers(func(ctx context.Context) {
			s.emitRandomly(ctx, native.MeanIntervalSec, seed)
		})
	}
	return s, nil
}

// Events returns the channel readings are delivered on.
func (s *Sensor) Events() <-chan hazard.Reading {
	return s.events
}

// Press reports a bumper press. On a cliff sensor it reports a cliff instead.
func (s *Sensor) Press(ctx context.Context, side hazard.Side) error {
	return s.send(ctx, s.reading(side, true))
}

// Release reports a bumper release. On a cliff sensor it reports the floor instead.
func (s *Sensor) Release(ctx context.Context, side hazard.Side) error {
	return s.send(ctx, s.reading(side, false))
}

// Cliff reports a cliff on the given side, whatever the kind of sensor.
func (s *Sensor) Cliff(ctx context.Context, side hazard.Side) error {
	return s.send(ctx, hazard.CliffEvent{Sensor: side, State: hazard.CliffDetected})
}

// Floor reports the floor seen again on the given side, whatever the kind of sensor.
func (s *Sensor) Floor(ctx context.Context, side hazard.Side) error {
	return s.send(ctx, hazard.CliffEvent{Sensor: side, State: hazard.Floor})
}

func (s *Sensor) reading(side hazard.Side, active bool) hazard.Reading {
	if s.kind == KindCliff {
		state := hazard.Floor
		if active {
			state = hazard.CliffDetected
		}
		return hazard.CliffEvent{Sensor: side, State: state}
	}
	state := hazard.Released
	if active {
		state = hazard.Pressed
	}
	return hazard.BumperEvent{Bumper: side, State: state}
}

func (s *Sensor) send(ctx context.Context, reading hazard.Reading) error {
	s.sendMu.RLock()
	defer s.sendMu.RUnlock()
	if s.closed {
		return errors.Errorf("hazard sensor %s is closed", s.Name().ShortName())
	}
	select {
	case s.events <- reading:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.workers.Context().Done():
		return errors.Errorf("hazard sensor %s is closed", s.Name().ShortName())
	}
}

func (s *Sensor) emitRandomly(ctx context.Context, meanIntervalSec float64, seed int64) {
	//nolint:gosec
	rng := rand.New(rand.NewSource(seed))
	interval := distuv.Exponential{Rate: 1 / meanIntervalSec}
	for {
		wait := time.Duration(interval.Quantile(rng.Float64()) * float64(time.Second))
		timer := s.clock.Timer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		side := hazard.Side(rng.Intn(3))
		s.logger.CDebugw(ctx, "emitting random hazard", "kind", s.kind, "side", side)
		if err := s.send(ctx, s.reading(side, true)); err != nil {
			return
		}
		if err := s.send(ctx, s.reading(side, false)); err != nil {
			return
		}
	}
}

// Close stops random emission and closes the events channel.
func (s *Sensor) Close(ctx context.Context) error {
	s.workers.Stop()
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
	return nil
}
