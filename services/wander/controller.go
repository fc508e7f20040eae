package wander

import (
	"context"
	"math"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"go.viam.com/safewander/components/hazard"
	"go.viam.com/safewander/logging"
	"go.viam.com/safewander/spatialmath"
	"go.viam.com/safewander/utils"
)

// ControllerConfig holds the tunable motion parameters of a MotionController.
type ControllerConfig struct {
	// LinearMPS is the forward speed in meters per second.
	LinearMPS float64
	// RetreatMPS is the speed while backing off a hazard. It is negative.
	RetreatMPS float64
	// AngularRPS is the magnitude of the turn rate in radians per second.
	AngularRPS float64
	// RetreatTicks is how many commands the retreat lasts.
	RetreatTicks int
	// TurnThreshold is the heading error, in radians, below which a turn is complete.
	TurnThreshold float64
}

// DefaultControllerConfig returns the parameters the controller uses unless told otherwise.
func DefaultControllerConfig() ControllerConfig {
	return ControllerConfig{
		LinearMPS:     0.18,
		RetreatMPS:    -0.1,
		AngularRPS:    1.8,
		RetreatTicks:  35,
		TurnThreshold: utils.DegToRad(5),
	}
}

// A HeadingSource reports the current heading of the base in radians.
type HeadingSource interface {
	Current() float64
}

// A Halter can bring the base to a stop once a run is over.
type Halter interface {
	Halt(ctx context.Context) error
}

// A Resetter restarts its control period. It is reset at the start of every run.
type Resetter interface {
	Reset()
}

// MotionController runs the forward, retreat and turn cycle. Hazards and headings arrive
// concurrently from other goroutines; the cycle itself runs on exactly one.
type MotionController struct {
	logger    logging.Logger
	commander VelocityCommander
	heading   HeadingSource
	goals     *GoalCalculator
	workers   utils.StoppableWorkers
	// lifecycle orders Start against Close so no run is handed to stopped workers.
	lifecycle sync.Mutex

	mu            sync.Mutex
	conf          ControllerConfig
	state         MotionState
	status        RunStatus
	stopRequested bool
	hazardClear   bool
	target        float64
	runID         string
	cycles        int
	lastErr       error
	closed        bool
	// cancelRun cancels a run started with Run; runs started with Start end with workers.
	cancelRun context.CancelFunc
	runDone   chan struct{}
}

// NewMotionController returns an idle controller. If commander is also a Resetter it is reset
// before every run, and if it is a Halter it is halted after every run.
func NewMotionController(
	conf ControllerConfig,
	commander VelocityCommander,
	heading HeadingSource,
	goals *GoalCalculator,
	logger logging.Logger,
) *MotionController {
	return &MotionController{
		logger:      logger,
		commander:   commander,
		heading:     heading,
		goals:       goals,
		workers:     utils.NewStoppableWorkers(),
		conf:        conf,
		hazardClear: true,
	}
}

// Run executes cycles in the calling goroutine until a stop is requested or an error ends the run.
// A run that is stopped returns nil.
func (mc *MotionController) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	runID, err := mc.begin(ctx, cancel)
	if err != nil {
		return err
	}
	return mc.execute(ctx, runID)
}

// Start executes cycles on a goroutine owned by the controller. It returns ErrAlreadyRunning
// without changing anything if a run is in progress.
func (mc *MotionController) Start(ctx context.Context) error {
	mc.lifecycle.Lock()
	defer mc.lifecycle.Unlock()
	runID, err := mc.begin(ctx, nil)
	if err != nil {
		return err
	}
	mc.workers.AddWorkers(func(ctx context.Context) {
		//nolint:errcheck
		mc.execute(ctx, runID)
	})
	return nil
}

func (mc *MotionController) begin(ctx context.Context, cancel context.CancelFunc) (string, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	if mc.closed {
		return "", errors.New("motion controller is closed")
	}
	if mc.status != Idle {
		mc.logger.CWarnw(ctx, ErrAlreadyRunning.Error(), "run_id", mc.runID, "status", mc.status)
		return "", ErrAlreadyRunning
	}
	mc.status = Running
	mc.stopRequested = false
	mc.hazardClear = true
	mc.state = Forward
	mc.cycles = 0
	mc.lastErr = nil
	mc.runID = uuid.NewString()
	mc.cancelRun = cancel
	mc.runDone = make(chan struct{})
	return mc.runID, nil
}

func (mc *MotionController) execute(ctx context.Context, runID string) error {
	mc.logger.CInfow(ctx, "wandering", "run_id", runID)
	if resetter, ok := mc.commander.(Resetter); ok {
		resetter.Reset()
	}
	err := mc.loop(ctx)

	if halter, ok := mc.commander.(Halter); ok {
		if haltErr := halter.Halt(context.WithoutCancel(ctx)); haltErr != nil {
			mc.logger.CWarnw(ctx, "failed to halt after wandering", "run_id", runID, "error", haltErr)
		}
	}

	mc.mu.Lock()
	mc.status = Idle
	mc.stopRequested = false
	mc.lastErr = err
	mc.cancelRun = nil
	close(mc.runDone)
	cycles := mc.cycles
	mc.mu.Unlock()

	if err != nil {
		mc.logger.CWarnw(ctx, "wandering ended", "run_id", runID, "cycles", cycles, "error", err)
		return err
	}
	mc.logger.CInfow(ctx, "wandering stopped", "run_id", runID, "cycles", cycles)
	return nil
}

func (mc *MotionController) loop(ctx context.Context) error {
	for {
		avoiding, err := mc.forward(ctx)
		if err != nil {
			return err
		}
		if !avoiding {
			// stopped with nothing to back away from
			return nil
		}
		if err := mc.retreat(ctx); err != nil {
			return err
		}
		if err := mc.turn(ctx); err != nil {
			return err
		}

		mc.mu.Lock()
		mc.cycles++
		stop := mc.stopRequested
		mc.mu.Unlock()
		if stop {
			return nil
		}
	}
}

// forward drives ahead until a hazard is in flight, returning true, or a stop is requested,
// returning false.
func (mc *MotionController) forward(ctx context.Context) (bool, error) {
	mc.setState(Forward)
	for {
		mc.mu.Lock()
		hazardClear, stop := mc.hazardClear, mc.stopRequested
		cmd := VelocityCommand{LinearX: mc.conf.LinearMPS}
		mc.mu.Unlock()

		if !hazardClear {
			return true, nil
		}
		if stop {
			return false, nil
		}
		if err := mc.commander.Send(ctx, cmd); err != nil {
			return false, err
		}
	}
}

// retreat backs off for a fixed number of ticks whatever else is sensed meanwhile.
func (mc *MotionController) retreat(ctx context.Context) error {
	mc.setState(Retreat)
	mc.mu.Lock()
	ticks := mc.conf.RetreatTicks
	mc.mu.Unlock()

	for i := 0; i < ticks; i++ {
		mc.mu.Lock()
		cmd := VelocityCommand{LinearX: mc.conf.RetreatMPS}
		mc.mu.Unlock()
		if err := mc.commander.Send(ctx, cmd); err != nil {
			return err
		}
	}
	return nil
}

// turn spins in place toward the target until the heading error drops below the threshold. The
// direction is fixed when the turn begins.
func (mc *MotionController) turn(ctx context.Context) error {
	mc.setState(Turn)
	mc.mu.Lock()
	target := mc.target
	mc.mu.Unlock()

	direction := utils.Sign(spatialmath.AngleBetween(mc.heading.Current(), target))
	for {
		mc.mu.Lock()
		threshold := mc.conf.TurnThreshold
		cmd := VelocityCommand{AngularZ: direction * mc.conf.AngularRPS}
		mc.mu.Unlock()

		if reached(mc.heading.Current(), target, threshold) {
			break
		}
		if err := mc.commander.Send(ctx, cmd); err != nil {
			return err
		}
	}

	mc.mu.Lock()
	mc.hazardClear = true
	mc.mu.Unlock()
	return nil
}

// reached is true when current is strictly within threshold of target.
func reached(current, target, threshold float64) bool {
	return math.Abs(spatialmath.AngleBetween(current, target)) < threshold
}

// OnHazard records a hazard sensed now. The target heading is computed from the heading at this
// moment. Hazards are ignored while idle and while another is still being avoided.
func (mc *MotionController) OnHazard(ctx context.Context, event hazard.Event) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	if mc.status == Idle {
		mc.logger.CDebugw(ctx, "ignoring hazard while idle", "source", event.Source, "side", event.Side)
		return
	}
	if !mc.hazardClear {
		mc.logger.CDebugw(ctx, "ignoring hazard while avoiding another",
			"run_id", mc.runID, "source", event.Source, "side", event.Side, "state", mc.state)
		return
	}
	current := mc.heading.Current()
	mc.target = mc.goals.Compute(event, current)
	mc.hazardClear = false
	mc.logger.CInfow(ctx, "hazard detected",
		"run_id", mc.runID,
		"source", event.Source,
		"side", event.Side,
		"heading", current,
		"target", mc.target,
	)
}

// Stop asks the run to end. It does not wait; poll Running to know when the loop has exited.
func (mc *MotionController) Stop(ctx context.Context) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	if mc.status != Running {
		return
	}
	mc.status = Stopping
	mc.stopRequested = true
	mc.logger.CInfow(ctx, "stop requested", "run_id", mc.runID, "state", mc.state)
}

// Running reports whether the control loop has yet to exit.
func (mc *MotionController) Running() bool {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.status != Idle
}

// SetVelocities changes the forward, retreat and turn speeds. The next command sent uses them.
func (mc *MotionController) SetVelocities(linear, retreat, angular float64) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.conf.LinearMPS = linear
	mc.conf.RetreatMPS = retreat
	mc.conf.AngularRPS = angular
}

// SetConfig replaces all motion parameters. A retreat already underway keeps its length.
func (mc *MotionController) SetConfig(conf ControllerConfig) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.conf = conf
}

// Config returns the current motion parameters.
func (mc *MotionController) Config() ControllerConfig {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.conf
}

// State returns a snapshot of the controller.
func (mc *MotionController) State() Snapshot {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return Snapshot{
		State:       mc.state,
		Status:      mc.status,
		HazardClear: mc.hazardClear,
		Current:     mc.heading.Current(),
		Target:      mc.target,
		RunID:       mc.runID,
		Cycles:      mc.cycles,
		Err:         mc.lastErr,
	}
}

func (mc *MotionController) setState(state MotionState) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	if mc.state != state {
		mc.logger.Debugw("entering state", "run_id", mc.runID, "state", state)
	}
	mc.state = state
}

// Close cancels the current run, whether it came from Start or Run, and waits for its loop to
// exit. The controller cannot be started again.
func (mc *MotionController) Close(ctx context.Context) {
	mc.Stop(ctx)
	mc.lifecycle.Lock()
	mc.mu.Lock()
	mc.closed = true
	cancel, done := mc.cancelRun, mc.runDone
	mc.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	mc.workers.Stop()
	mc.lifecycle.Unlock()
	if done != nil {
		<-done
	}
}
