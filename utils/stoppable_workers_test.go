package utils

import (
	"context"
	"testing"

	"go.uber.org/atomic"
	"go.viam.com/test"
)

func TestStoppableWorkers(t *testing.T) {
	started := atomic.NewInt32(0)
	exited := atomic.NewInt32(0)
	worker := func(ctx context.Context) {
		started.Inc()
		<-ctx.Done()
		exited.Inc()
	}

	sw := NewStoppableWorkers(worker, worker)
	sw.AddWorkers(worker)
	sw.Stop()
	test.That(t, started.Load(), test.ShouldEqual, int32(3))
	test.That(t, exited.Load(), test.ShouldEqual, int32(3))
	test.That(t, sw.Context().Err(), test.ShouldNotBeNil)

	// Workers added after Stop are never started.
	sw.AddWorkers(worker)
	test.That(t, started.Load(), test.ShouldEqual, int32(3))
}

func TestStoppableWorkersParentContext(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	sw := NewStoppableWorkersWithContext(parent, func(ctx context.Context) {
		<-ctx.Done()
		close(done)
	})
	cancel()
	<-done
	sw.Stop()
}
