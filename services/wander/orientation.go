package wander

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/atomic"

	"go.viam.com/safewander/logging"
	"go.viam.com/safewander/spatialmath"
)

// consecutive read failures before the poller starts reporting them as errors
const pollErrorThreshold = 100

// OrientationTracker holds the most recent heading of the base. Updates never block readers.
type OrientationTracker struct {
	yaw    atomic.Float64
	logger logging.Logger
}

// NewOrientationTracker returns a tracker with a heading of zero.
func NewOrientationTracker(logger logging.Logger) *OrientationTracker {
	return &OrientationTracker{logger: logger}
}

// Update stores the yaw of o as the current heading.
func (ot *OrientationTracker) Update(o spatialmath.Orientation) {
	ot.yaw.Store(spatialmath.NormalizeAngle(o.EulerAngles().Yaw))
}

// UpdateQuaternion stores the yaw of the unit quaternion (x, y, z, w).
func (ot *OrientationTracker) UpdateQuaternion(x, y, z, w float64) {
	ot.Update(spatialmath.NewQuaternion(x, y, z, w))
}

// UpdateYaw stores yaw, in radians, as the current heading.
func (ot *OrientationTracker) UpdateYaw(yaw float64) {
	ot.yaw.Store(spatialmath.NormalizeAngle(yaw))
}

// Current returns the last stored heading in radians.
func (ot *OrientationTracker) Current() float64 {
	return ot.yaw.Load()
}

// Poll reads the heading with read every interval until ctx is done. Failed reads leave the last
// heading in place.
func (ot *OrientationTracker) Poll(
	ctx context.Context,
	clk clock.Clock,
	interval time.Duration,
	read func(ctx context.Context) (float64, error),
) {
	ticker := clk.Ticker(interval)
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		yaw, err := read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			failures++
			switch {
			case failures == pollErrorThreshold:
				ot.logger.CErrorw(ctx, "heading has not been read in a while", "failures", failures, "error", err)
			case failures < pollErrorThreshold:
				ot.logger.CDebugw(ctx, "failed to read heading", "error", err)
			}
			continue
		}
		if failures >= pollErrorThreshold {
			ot.logger.CInfow(ctx, "heading readings recovered", "failures", failures)
		}
		failures = 0
		ot.UpdateYaw(yaw)
	}
}
