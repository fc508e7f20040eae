package operation

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.viam.com/test"
)

type fakeRunner struct {
	polls   atomic.Int64
	stopsAt int64
}

func (r *fakeRunner) Running() bool {
	return r.polls.Add(1) < r.stopsAt
}

func TestSingleOperationManager(t *testing.T) {
	ctx := context.Background()
	som := SingleOperationManager{}
	test.That(t, som.OpRunning(), test.ShouldBeFalse)

	t.Run("nested operation does not cancel parent", func(t *testing.T) {
		ctx1, close1 := som.New(ctx)
		defer close1()
		_, close2 := som.New(ctx1)
		defer close2()
		test.That(t, ctx1.Err(), test.ShouldBeNil)
		test.That(t, som.OpRunning(), test.ShouldBeTrue)
	})

	t.Run("a new operation cancels the previous one", func(t *testing.T) {
		var wg sync.WaitGroup
		var waitErr error
		wg.Add(1)
		go func() {
			defer wg.Done()
			waitErr = som.WaitForSuccess(context.Background(), time.Millisecond,
				func(ctx context.Context) (bool, error) { return false, nil })
		}()

		for !som.OpRunning() {
			time.Sleep(time.Millisecond)
		}

		_, done := som.New(ctx)
		wg.Wait()
		done()
		test.That(t, waitErr, test.ShouldBeError, context.Canceled)
		test.That(t, som.OpRunning(), test.ShouldBeFalse)
	})

	t.Run("CancelRunning", func(t *testing.T) {
		opCtx, done := som.New(ctx)
		defer done()
		som.CancelRunning(ctx)
		test.That(t, opCtx.Err(), test.ShouldNotBeNil)
	})

	t.Run("WaitForSuccess", func(t *testing.T) {
		count := int64(0)

		err := som.WaitForSuccess(
			ctx,
			time.Millisecond,
			func(ctx context.Context) (bool, error) {
				if atomic.AddInt64(&count, 1) == 5 {
					return true, nil
				}
				return false, nil
			},
		)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, count, test.ShouldEqual, int64(5))
	})

	t.Run("WaitForSuccess returns the test error", func(t *testing.T) {
		boom := errors.New("boom")
		err := som.WaitForSuccess(ctx, time.Millisecond, func(ctx context.Context) (bool, error) {
			return false, boom
		})
		test.That(t, err, test.ShouldBeError, boom)
	})

	t.Run("WaitTillNotRunning", func(t *testing.T) {
		runner := &fakeRunner{stopsAt: 3}
		test.That(t, som.WaitTillNotRunning(ctx, time.Millisecond, runner), test.ShouldBeNil)
		test.That(t, runner.polls.Load(), test.ShouldEqual, int64(3))
	})

	t.Run("WaitTillNotRunning honors the context", func(t *testing.T) {
		runner := &fakeRunner{stopsAt: 1 << 40}
		timeoutCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()
		err := som.WaitTillNotRunning(timeoutCtx, time.Millisecond, runner)
		test.That(t, err, test.ShouldBeError, context.DeadlineExceeded)
	})
}
