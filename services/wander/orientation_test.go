package wander

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.viam.com/test"
	"go.viam.com/utils/testutils"

	"go.viam.com/safewander/logging"
	"go.viam.com/safewander/spatialmath"
	"go.viam.com/safewander/utils"
)

func TestOrientationTracker(t *testing.T) {
	ot := NewOrientationTracker(logging.NewTestLogger(t))
	test.That(t, ot.Current(), test.ShouldEqual, 0)

	ot.UpdateQuaternion(0, 0, math.Sin(0.4), math.Cos(0.4))
	test.That(t, ot.Current(), test.ShouldAlmostEqual, 0.8)

	ot.Update(spatialmath.NewYaw(3 * math.Pi / 2))
	test.That(t, ot.Current(), test.ShouldAlmostEqual, -math.Pi/2)

	ot.UpdateYaw(-math.Pi)
	test.That(t, ot.Current(), test.ShouldAlmostEqual, math.Pi)
}

func TestOrientationPoll(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	ot := NewOrientationTracker(logger)
	clk := clock.NewMock()

	var yaw atomic.Float64
	var failing atomic.Bool
	read := func(ctx context.Context) (float64, error) {
		if failing.Load() {
			return 0, errors.New("imu unplugged")
		}
		return yaw.Load(), nil
	}

	workers := utils.NewStoppableWorkers(func(ctx context.Context) {
		ot.Poll(ctx, clk, 10*time.Millisecond, read)
	})
	defer workers.Stop()

	yaw.Store(1)
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		clk.Add(10 * time.Millisecond)
		test.That(tb, ot.Current(), test.ShouldAlmostEqual, 1)
	})

	failing.Store(true)
	for i := 0; i < pollErrorThreshold; i++ {
		clk.Add(10 * time.Millisecond)
	}
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		clk.Add(10 * time.Millisecond)
		test.That(tb, logs.FilterMessage("heading has not been read in a while").Len(), test.ShouldEqual, 1)
	})
	// failed reads keep the last heading
	test.That(t, ot.Current(), test.ShouldAlmostEqual, 1)

	yaw.Store(2)
	failing.Store(false)
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		clk.Add(10 * time.Millisecond)
		test.That(tb, ot.Current(), test.ShouldAlmostEqual, 2)
	})
}
