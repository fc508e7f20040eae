package wander

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/safewander/components/base"
	"go.viam.com/safewander/utils"
)

var (
	// ErrShutdown is returned by a VelocityCommander when its context ends while it waits for the
	// next tick.
	ErrShutdown = errors.New("shut down while commanding the base")
	// ErrAlreadyRunning is returned when a run is requested while one is in progress.
	ErrAlreadyRunning = errors.New("already executing wandering, ignoring the request")
)

// VelocityCommand is a planar velocity. LinearX is meters per second forward and AngularZ is
// radians per second counterclockwise.
type VelocityCommand struct {
	LinearX  float64
	AngularZ float64
}

// A VelocityCommander sends velocities no faster than a fixed rate.
type VelocityCommander interface {
	// Send forwards cmd and then blocks until the next control period starts. An error is terminal
	// for the run that sent it.
	Send(ctx context.Context, cmd VelocityCommand) error
}

// BaseCommander drives a base at a fixed control rate.
type BaseCommander struct {
	base   base.Base
	period time.Duration
	ticker *clock.Ticker
}

// NewBaseCommander returns a commander that sends to b at rateHz, timed on clk. Close releases
// its ticker.
func NewBaseCommander(b base.Base, clk clock.Clock, rateHz float64) (*BaseCommander, error) {
	if rateHz <= 0 {
		return nil, errors.Errorf("control rate must be positive, got %v", rateHz)
	}
	period := time.Duration(float64(time.Second) / rateHz)
	return &BaseCommander{base: b, period: period, ticker: clk.Ticker(period)}, nil
}

// Send converts cmd to the base's units, sets it, and waits for the next tick.
func (bc *BaseCommander) Send(ctx context.Context, cmd VelocityCommand) error {
	linear := r3.Vector{Y: cmd.LinearX * 1000}
	angular := r3.Vector{Z: utils.RadToDeg(cmd.AngularZ)}
	if err := bc.base.SetVelocity(ctx, linear, angular, nil); err != nil {
		if ctx.Err() != nil {
			return errors.Wrapf(ErrShutdown, "%v", ctx.Err())
		}
		return errors.Wrapf(err, "setting velocity of base %s", bc.base.Name().ShortName())
	}
	select {
	case <-ctx.Done():
		return errors.Wrapf(ErrShutdown, "%v", ctx.Err())
	case <-bc.ticker.C:
		return nil
	}
}

// Reset starts a fresh control period now. A tick left over from while the commander sat idle is
// dropped, so the first Send after Reset waits a full period.
func (bc *BaseCommander) Reset() {
	bc.ticker.Reset(bc.period)
	select {
	case <-bc.ticker.C:
	default:
	}
}

// Halt stops the base.
func (bc *BaseCommander) Halt(ctx context.Context) error {
	return bc.base.Stop(ctx, nil)
}

// Close stops the ticker.
func (bc *BaseCommander) Close() {
	bc.ticker.Stop()
}
