// Package builtin implements the default wander service. It drives a base, reads its heading from
// a movement sensor, and reacts to bumper and cliff sensors.
package builtin

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"go.viam.com/safewander/components/base"
	"go.viam.com/safewander/components/hazard"
	"go.viam.com/safewander/components/movementsensor"
	"go.viam.com/safewander/logging"
	"go.viam.com/safewander/operation"
	"go.viam.com/safewander/resource"
	"go.viam.com/safewander/services/wander"
	"go.viam.com/safewander/utils"
)

const (
	defaultControlRateHz      = 50.
	defaultPosePollIntervalMS = 10
	shutdownPollInterval      = 50 * time.Millisecond
)

func init() {
	resource.RegisterService(wander.API, resource.DefaultServiceModel, resource.Registration[wander.Service, *Config]{
		Constructor: NewBuiltIn,
	})
}

// Config describes how to configure the service.
type Config struct {
	Base           string `json:"base"`
	MovementSensor string `json:"movement_sensor"`
	Bumper         string `json:"bumper,omitempty"`
	Cliff          string `json:"cliff,omitempty"`

	LinearMPS          float64 `json:"linear_mps,omitempty"`
	RetreatMPS         float64 `json:"retreat_mps,omitempty"`
	AngularRPS         float64 `json:"angular_rps,omitempty"`
	ControlRateHz      float64 `json:"control_rate_hz,omitempty"`
	RetreatTicks       int     `json:"retreat_ticks,omitempty"`
	TurnThresholdDeg   float64 `json:"turn_threshold_deg,omitempty"`
	PosePollIntervalMS int     `json:"pose_poll_interval_ms,omitempty"`
	RandomSeed         *int64  `json:"random_seed,omitempty"`
}

// Validate ensures all parts of the config are valid and returns the components the service
// depends on.
func (cfg *Config) Validate(path string) ([]string, error) {
	if cfg.Base == "" {
		return nil, goutils.NewConfigValidationFieldRequiredError(path, "base")
	}
	if cfg.MovementSensor == "" {
		return nil, goutils.NewConfigValidationFieldRequiredError(path, "movement_sensor")
	}
	if cfg.Bumper == "" && cfg.Cliff == "" {
		return nil, goutils.NewConfigValidationError(path, errors.New("at least one of bumper or cliff is required"))
	}
	for field, val := range map[string]float64{
		"linear_mps":         cfg.LinearMPS,
		"angular_rps":        cfg.AngularRPS,
		"control_rate_hz":    cfg.ControlRateHz,
		"turn_threshold_deg": cfg.TurnThresholdDeg,
	} {
		if val < 0 {
			return nil, goutils.NewConfigValidationError(path, errors.Errorf("%s cannot be negative", field))
		}
	}
	if cfg.RetreatMPS > 0 {
		return nil, goutils.NewConfigValidationError(path, errors.New("retreat_mps must be negative to back away"))
	}
	if cfg.RetreatTicks < 0 {
		return nil, goutils.NewConfigValidationError(path, errors.New("retreat_ticks cannot be negative"))
	}
	if cfg.PosePollIntervalMS < 0 {
		return nil, goutils.NewConfigValidationError(path, errors.New("pose_poll_interval_ms cannot be negative"))
	}

	deps := []string{cfg.Base, cfg.MovementSensor}
	for _, name := range []string{cfg.Bumper, cfg.Cliff} {
		if name != "" {
			deps = append(deps, name)
		}
	}
	return deps, nil
}

// controllerConfig fills unset parameters with the defaults.
func (cfg *Config) controllerConfig() wander.ControllerConfig {
	conf := wander.DefaultControllerConfig()
	if cfg.LinearMPS != 0 {
		conf.LinearMPS = cfg.LinearMPS
	}
	if cfg.RetreatMPS != 0 {
		conf.RetreatMPS = cfg.RetreatMPS
	}
	if cfg.AngularRPS != 0 {
		conf.AngularRPS = cfg.AngularRPS
	}
	if cfg.RetreatTicks != 0 {
		conf.RetreatTicks = cfg.RetreatTicks
	}
	if cfg.TurnThresholdDeg != 0 {
		conf.TurnThreshold = utils.DegToRad(cfg.TurnThresholdDeg)
	}
	return conf
}

func (cfg *Config) controlRateHz() float64 {
	if cfg.ControlRateHz == 0 {
		return defaultControlRateHz
	}
	return cfg.ControlRateHz
}

func (cfg *Config) posePollInterval() time.Duration {
	if cfg.PosePollIntervalMS == 0 {
		return defaultPosePollIntervalMS * time.Millisecond
	}
	return time.Duration(cfg.PosePollIntervalMS) * time.Millisecond
}

// sameWiring reports whether other can be applied without rebuilding the service.
func (cfg *Config) sameWiring(other *Config) bool {
	sameSeed := (cfg.RandomSeed == nil) == (other.RandomSeed == nil) &&
		(cfg.RandomSeed == nil || *cfg.RandomSeed == *other.RandomSeed)
	return cfg.Base == other.Base &&
		cfg.MovementSensor == other.MovementSensor &&
		cfg.Bumper == other.Bumper &&
		cfg.Cliff == other.Cliff &&
		cfg.controlRateHz() == other.controlRateHz() &&
		cfg.posePollInterval() == other.posePollInterval() &&
		sameSeed
}

type builtIn struct {
	resource.Named
	logger logging.Logger

	mu        sync.Mutex
	conf      *Config
	base      base.Base
	sensors   []hazard.Sensor
	commander *wander.BaseCommander
	tracker   *wander.OrientationTracker
	ctrl      *wander.MotionController
	workers   utils.StoppableWorkers
	opMgr     operation.SingleOperationManager
	shutdown  bool
}

// NewBuiltIn returns a new wander service for the given dependencies.
func NewBuiltIn(ctx context.Context, deps resource.Dependencies, conf resource.Config, logger logging.Logger) (wander.Service, error) {
	return newWithClock(ctx, deps, conf, clock.New(), logger)
}

func newWithClock(
	ctx context.Context,
	deps resource.Dependencies,
	conf resource.Config,
	clk clock.Clock,
	logger logging.Logger,
) (*builtIn, error) {
	svcConfig, err := resource.NativeConfig[*Config](conf)
	if err != nil {
		return nil, err
	}

	b, err := base.FromDependencies(deps, svcConfig.Base)
	if err != nil {
		return nil, err
	}
	ms, err := movementsensor.FromDependencies(deps, svcConfig.MovementSensor)
	if err != nil {
		return nil, err
	}
	readHeading, err := movementsensor.HeadingFunc(ctx, ms)
	if err != nil {
		return nil, err
	}
	var sensors []hazard.Sensor
	for _, name := range []string{svcConfig.Bumper, svcConfig.Cliff} {
		if name == "" {
			continue
		}
		s, err := hazard.FromDependencies(deps, name)
		if err != nil {
			return nil, err
		}
		sensors = append(sensors, s)
	}

	commander, err := wander.NewBaseCommander(b, clk, svcConfig.controlRateHz())
	if err != nil {
		return nil, err
	}

	seed := time.Now().UnixNano()
	if svcConfig.RandomSeed != nil {
		seed = *svcConfig.RandomSeed
	}
	tracker := wander.NewOrientationTracker(logger)
	ctrl := wander.NewMotionController(
		svcConfig.controllerConfig(),
		commander,
		tracker,
		wander.NewGoalCalculator(seed),
		logger,
	)

	svc := &builtIn{
		Named:     conf.ResourceName().AsNamed(),
		logger:    logger,
		conf:      svcConfig,
		base:      b,
		sensors:   sensors,
		commander: commander,
		tracker:   tracker,
		ctrl:      ctrl,
	}

	// Read the heading once up front so a hazard sensed right after starting has a real heading
	// to turn away from.
	if yaw, err := readHeading(ctx); err == nil {
		tracker.UpdateYaw(yaw)
	} else {
		logger.CWarnw(ctx, "could not read initial heading", "movement_sensor", svcConfig.MovementSensor, "error", err)
	}

	interval := svcConfig.posePollInterval()
	svc.workers = utils.NewStoppableWorkers(func(ctx context.Context) {
		tracker.Poll(ctx, clk, interval, readHeading)
	})
	for _, s := range sensors {
		svc.workers.AddWorkers(func(ctx context.Context) {
			hazard.Watch(ctx, s, func(event hazard.Event) {
				ctrl.OnHazard(ctx, event)
			})
		})
	}
	return svc, nil
}

func (svc *builtIn) Start(ctx context.Context) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	if svc.shutdown {
		return errors.Errorf("wander service %s is shut down", svc.Name().ShortName())
	}
	return svc.ctrl.Start(ctx)
}

func (svc *builtIn) Stop(ctx context.Context) error {
	svc.ctrl.Stop(ctx)
	return nil
}

func (svc *builtIn) Running(ctx context.Context) (bool, error) {
	return svc.ctrl.Running(), nil
}

func (svc *builtIn) SetVelocities(ctx context.Context, linear, retreat, angular float64) error {
	if retreat > 0 {
		return errors.Errorf("retreat velocity must be negative to back away, got %v", retreat)
	}
	svc.ctrl.SetVelocities(linear, retreat, angular)
	svc.logger.CInfow(ctx, "velocities changed", "linear", linear, "retreat", retreat, "angular", angular)
	return nil
}

func (svc *builtIn) State(ctx context.Context) (wander.Snapshot, error) {
	return svc.ctrl.State(), nil
}

// Reconfigure applies new motion parameters in place. Any change to what the service is wired to
// needs a rebuild.
func (svc *builtIn) Reconfigure(ctx context.Context, deps resource.Dependencies, conf resource.Config) error {
	newConf, err := resource.NativeConfig[*Config](conf)
	if err != nil {
		return err
	}
	svc.mu.Lock()
	defer svc.mu.Unlock()
	if !svc.conf.sameWiring(newConf) {
		return resource.NewMustRebuildError(conf.ResourceName())
	}
	svc.conf = newConf
	svc.ctrl.SetConfig(newConf.controllerConfig())
	svc.logger.CInfow(ctx, "reconfigured", "config", newConf.controllerConfig())
	return nil
}

// Shutdown stops wandering, waits for the control loop to exit, then stops the base and releases
// the sensors. Nothing is released while the loop may still command the base.
func (svc *builtIn) Shutdown(ctx context.Context) error {
	svc.mu.Lock()
	if svc.shutdown {
		svc.mu.Unlock()
		return nil
	}
	svc.shutdown = true
	svc.mu.Unlock()

	svc.ctrl.Stop(ctx)
	stopSlowLog := utils.SlowLogger(ctx, "waiting for wandering to stop", "service", svc.Name().ShortName(), svc.logger)
	waitErr := svc.opMgr.WaitTillNotRunning(ctx, shutdownPollInterval, svc.ctrl)
	stopSlowLog()
	if waitErr != nil {
		// the caller gave up waiting; cancel the loop outright before releasing anything
		svc.logger.CWarnw(ctx, "wandering did not stop in time, cancelling it", "error", waitErr)
	}
	svc.ctrl.Close(ctx)

	err := svc.base.Stop(context.WithoutCancel(ctx), nil)
	svc.workers.Stop()
	svc.commander.Close()
	return multierr.Combine(errors.Wrap(waitErr, "waiting for wandering to stop"), err)
}

func (svc *builtIn) Close(ctx context.Context) error {
	return svc.Shutdown(ctx)
}
