package builtin

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.viam.com/test"
	"go.viam.com/utils/testutils"

	"go.viam.com/safewander/components/base"
	fakebase "go.viam.com/safewander/components/base/fake"
	"go.viam.com/safewander/components/hazard"
	fakehazard "go.viam.com/safewander/components/hazard/fake"
	"go.viam.com/safewander/components/movementsensor"
	fakemovementsensor "go.viam.com/safewander/components/movementsensor/fake"
	"go.viam.com/safewander/logging"
	"go.viam.com/safewander/resource"
	"go.viam.com/safewander/services/wander"
)

type testRobot struct {
	deps   resource.Dependencies
	base   *fakebase.Base
	bumper *fakehazard.Sensor
	cliff  *fakehazard.Sensor
}

func newTestRobot(t *testing.T, clk clock.Clock) *testRobot {
	t.Helper()
	ctx := context.Background()
	logger := logging.NewTestLogger(t)

	b, err := fakebase.NewBase(resource.Config{Name: "base1", API: base.API, Model: fakebase.Model}, clk, logger)
	test.That(t, err, test.ShouldBeNil)
	deps := resource.Dependencies{base.Named("base1"): b}

	ms, err := fakemovementsensor.NewMovementSensor(ctx, deps, resource.Config{
		Name: "imu", API: movementsensor.API, Model: fakemovementsensor.Model,
		ConvertedAttributes: &fakemovementsensor.Config{Base: "base1"},
	}, logger)
	test.That(t, err, test.ShouldBeNil)
	deps[movementsensor.Named("imu")] = ms

	bumper, err := fakehazard.NewSensor(resource.Config{
		Name: "bumper", API: hazard.API, Model: fakehazard.Model,
		ConvertedAttributes: &fakehazard.Config{Kind: fakehazard.KindBumper},
	}, clk, logger)
	test.That(t, err, test.ShouldBeNil)
	deps[hazard.Named("bumper")] = bumper

	cliff, err := fakehazard.NewSensor(resource.Config{
		Name: "cliff", API: hazard.API, Model: fakehazard.Model,
		ConvertedAttributes: &fakehazard.Config{Kind: fakehazard.KindCliff},
	}, clk, logger)
	test.That(t, err, test.ShouldBeNil)
	deps[hazard.Named("cliff")] = cliff

	t.Cleanup(func() {
		test.That(t, bumper.Close(ctx), test.ShouldBeNil)
		test.That(t, cliff.Close(ctx), test.ShouldBeNil)
	})
	return &testRobot{deps: deps, base: b, bumper: bumper, cliff: cliff}
}

func fastConfig() *Config {
	seed := int64(11)
	return &Config{
		Base:               "base1",
		MovementSensor:     "imu",
		Bumper:             "bumper",
		Cliff:              "cliff",
		ControlRateHz:      200,
		PosePollIntervalMS: 2,
		RandomSeed:         &seed,
	}
}

func serviceConfig(attrs *Config) resource.Config {
	return resource.Config{
		Name:                "wanderer",
		API:                 wander.API,
		Model:               resource.DefaultServiceModel,
		ConvertedAttributes: attrs,
	}
}

func newTestService(t *testing.T, r *testRobot, attrs *Config) *builtIn {
	t.Helper()
	svc, err := newWithClock(context.Background(), r.deps, serviceConfig(attrs), clock.New(), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	t.Cleanup(func() {
		test.That(t, svc.Close(context.Background()), test.ShouldBeNil)
	})
	return svc
}

func TestRegistered(t *testing.T) {
	_, ok := resource.LookupRegistration(wander.API, resource.DefaultServiceModel)
	test.That(t, ok, test.ShouldBeTrue)
}

func TestConfigValidate(t *testing.T) {
	deps, err := fastConfig().Validate("services.0.attributes")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, deps, test.ShouldResemble, []string{"base1", "imu", "bumper", "cliff"})

	onlyCliff := &Config{Base: "base1", MovementSensor: "imu", Cliff: "cliff"}
	deps, err = onlyCliff.Validate("services.0.attributes")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, deps, test.ShouldResemble, []string{"base1", "imu", "cliff"})

	for _, tc := range []struct {
		conf     *Config
		expected string
	}{
		{&Config{MovementSensor: "imu", Bumper: "bumper"}, `"base" is required`},
		{&Config{Base: "base1", Bumper: "bumper"}, `"movement_sensor" is required`},
		{&Config{Base: "base1", MovementSensor: "imu"}, "at least one of bumper or cliff"},
		{&Config{Base: "base1", MovementSensor: "imu", Bumper: "bumper", RetreatMPS: 0.1}, "retreat_mps must be negative"},
		{&Config{Base: "base1", MovementSensor: "imu", Bumper: "bumper", LinearMPS: -1}, "linear_mps cannot be negative"},
		{&Config{Base: "base1", MovementSensor: "imu", Bumper: "bumper", RetreatTicks: -1}, "retreat_ticks cannot be negative"},
	} {
		_, err := tc.conf.Validate("services.0.attributes")
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, tc.expected)
	}
}

func TestControllerConfigDefaults(t *testing.T) {
	conf := (&Config{}).controllerConfig()
	test.That(t, conf, test.ShouldResemble, wander.DefaultControllerConfig())

	conf = (&Config{LinearMPS: 0.3, RetreatMPS: -0.2, AngularRPS: 1, RetreatTicks: 10, TurnThresholdDeg: 90}).controllerConfig()
	test.That(t, conf.LinearMPS, test.ShouldEqual, 0.3)
	test.That(t, conf.RetreatMPS, test.ShouldEqual, -0.2)
	test.That(t, conf.AngularRPS, test.ShouldEqual, 1)
	test.That(t, conf.RetreatTicks, test.ShouldEqual, 10)
	test.That(t, conf.TurnThreshold, test.ShouldAlmostEqual, 1.5707963267948966)
}

func TestMissingDependency(t *testing.T) {
	r := newTestRobot(t, clock.New())
	delete(r.deps, hazard.Named("cliff"))
	_, err := newWithClock(context.Background(), r.deps, serviceConfig(fastConfig()), clock.New(), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "missing from dependencies")
}

func TestWanderAvoidsBump(t *testing.T) {
	ctx := context.Background()
	r := newTestRobot(t, clock.New())
	svc := newTestService(t, r, fastConfig())

	test.That(t, svc.Start(ctx), test.ShouldBeNil)
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		running, err := svc.Running(ctx)
		test.That(tb, err, test.ShouldBeNil)
		test.That(tb, running, test.ShouldBeTrue)
		test.That(tb, len(r.base.Commands()), test.ShouldBeGreaterThan, 0)
	})
	test.That(t, svc.Start(ctx), test.ShouldBeError, wander.ErrAlreadyRunning)

	test.That(t, r.bumper.Press(ctx, hazard.Left), test.ShouldBeNil)
	test.That(t, r.bumper.Release(ctx, hazard.Left), test.ShouldBeNil)
	testutils.WaitForAssertionWithSleep(t, 50*time.Millisecond, 200, func(tb testing.TB) {
		snap, err := svc.State(ctx)
		test.That(tb, err, test.ShouldBeNil)
		test.That(tb, snap.Cycles, test.ShouldBeGreaterThanOrEqualTo, 1)
	})

	cmds := r.base.Commands()
	test.That(t, cmds[0].Linear.Y, test.ShouldAlmostEqual, 180)
	first := -1
	for i, cmd := range cmds {
		if cmd.Linear.Y < 0 {
			first = i
			break
		}
	}
	test.That(t, first, test.ShouldBeGreaterThan, 0)
	test.That(t, len(cmds), test.ShouldBeGreaterThan, first+35)
	for _, cmd := range cmds[first : first+35] {
		test.That(t, cmd.Linear.Y, test.ShouldAlmostEqual, -100)
		test.That(t, cmd.Angular.Z, test.ShouldEqual, 0)
	}
	// turning clockwise, away from the left bumper
	test.That(t, cmds[first+35].Linear.Y, test.ShouldEqual, 0)
	test.That(t, cmds[first+35].Angular.Z, test.ShouldBeLessThan, 0)

	test.That(t, svc.Stop(ctx), test.ShouldBeNil)
	testutils.WaitForAssertionWithSleep(t, 50*time.Millisecond, 200, func(tb testing.TB) {
		running, err := svc.Running(ctx)
		test.That(tb, err, test.ShouldBeNil)
		test.That(tb, running, test.ShouldBeFalse)
	})
	moving, err := r.base.IsMoving(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, moving, test.ShouldBeFalse)
}

func TestShutdown(t *testing.T) {
	ctx := context.Background()
	r := newTestRobot(t, clock.New())
	svc := newTestService(t, r, fastConfig())

	test.That(t, svc.Start(ctx), test.ShouldBeNil)
	test.That(t, r.cliff.Cliff(ctx, hazard.Right), test.ShouldBeNil)

	test.That(t, svc.Shutdown(ctx), test.ShouldBeNil)
	running, err := svc.Running(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, running, test.ShouldBeFalse)
	test.That(t, r.base.StopCount(), test.ShouldBeGreaterThanOrEqualTo, 1)
	moving, err := r.base.IsMoving(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, moving, test.ShouldBeFalse)

	// nothing commands the base once shut down
	count := len(r.base.Commands())
	time.Sleep(50 * time.Millisecond)
	test.That(t, len(r.base.Commands()), test.ShouldEqual, count)

	test.That(t, svc.Start(ctx), test.ShouldNotBeNil)
	test.That(t, svc.Shutdown(ctx), test.ShouldBeNil)
}

func TestShutdownGivesUp(t *testing.T) {
	r := newTestRobot(t, clock.New())
	attrs := fastConfig()
	// a retreat this long never finishes within the deadline below
	attrs.RetreatTicks = 1000
	svc := newTestService(t, r, attrs)

	ctx := context.Background()
	test.That(t, svc.Start(ctx), test.ShouldBeNil)
	test.That(t, r.bumper.Press(ctx, hazard.Center), test.ShouldBeNil)
	testutils.WaitForAssertionWithSleep(t, 50*time.Millisecond, 200, func(tb testing.TB) {
		snap, err := svc.State(ctx)
		test.That(tb, err, test.ShouldBeNil)
		test.That(tb, snap.HazardClear, test.ShouldBeFalse)
	})

	timeoutCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	err := svc.Shutdown(timeoutCtx)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, errors.Is(err, context.DeadlineExceeded), test.ShouldBeTrue)

	running, err := svc.Running(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, running, test.ShouldBeFalse)
	moving, err := r.base.IsMoving(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, moving, test.ShouldBeFalse)
}

func TestReconfigure(t *testing.T) {
	ctx := context.Background()
	r := newTestRobot(t, clock.New())
	svc := newTestService(t, r, fastConfig())

	faster := fastConfig()
	faster.LinearMPS = 0.25
	faster.RetreatTicks = 20
	test.That(t, svc.Reconfigure(ctx, r.deps, serviceConfig(faster)), test.ShouldBeNil)
	conf := svc.ctrl.Config()
	test.That(t, conf.LinearMPS, test.ShouldEqual, 0.25)
	test.That(t, conf.RetreatTicks, test.ShouldEqual, 20)

	rewired := fastConfig()
	rewired.Cliff = ""
	err := svc.Reconfigure(ctx, r.deps, serviceConfig(rewired))
	var rebuild *resource.MustRebuildError
	test.That(t, errors.As(err, &rebuild), test.ShouldBeTrue)

	reseeded := fastConfig()
	seed := int64(12)
	reseeded.RandomSeed = &seed
	err = svc.Reconfigure(ctx, r.deps, serviceConfig(reseeded))
	test.That(t, errors.As(err, &rebuild), test.ShouldBeTrue)
}

func TestSetVelocities(t *testing.T) {
	ctx := context.Background()
	r := newTestRobot(t, clock.New())
	svc := newTestService(t, r, fastConfig())

	test.That(t, svc.SetVelocities(ctx, 0.1, 0.1, 1), test.ShouldNotBeNil)
	test.That(t, svc.SetVelocities(ctx, 0.1, -0.05, 1), test.ShouldBeNil)
	conf := svc.ctrl.Config()
	test.That(t, conf.LinearMPS, test.ShouldEqual, 0.1)
	test.That(t, conf.RetreatMPS, test.ShouldEqual, -0.05)
	test.That(t, conf.AngularRPS, test.ShouldEqual, 1)

	test.That(t, svc.Start(ctx), test.ShouldBeNil)
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		test.That(tb, len(r.base.Commands()), test.ShouldBeGreaterThan, 0)
	})
	// the first command already uses the new forward speed
	test.That(t, r.base.Commands()[0].Linear.Y, test.ShouldAlmostEqual, 100)
}
