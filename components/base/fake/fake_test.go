package fake

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/safewander/components/base"
	"go.viam.com/safewander/logging"
	"go.viam.com/safewander/resource"
)

func newTestBase(t *testing.T, clk clock.Clock, attrs *Config) *Base {
	t.Helper()
	conf := resource.Config{Name: "base1", API: base.API, Model: Model}
	if attrs != nil {
		conf.ConvertedAttributes = attrs
	}
	b, err := NewBase(conf, clk, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	return b
}

func TestFakeBasePose(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewMock()
	b := newTestBase(t, clk, nil)
	test.That(t, b.Name(), test.ShouldResemble, base.Named("base1"))

	moving, err := b.IsMoving(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, moving, test.ShouldBeFalse)

	// 180 mm/s forward for two seconds along the x axis.
	test.That(t, b.SetVelocity(ctx, r3.Vector{Y: 180}, r3.Vector{}, nil), test.ShouldBeNil)
	clk.Add(2 * time.Second)
	pose := b.Pose()
	test.That(t, pose.X, test.ShouldAlmostEqual, 360)
	test.That(t, pose.Y, test.ShouldAlmostEqual, 0)

	// A quarter turn counterclockwise at 90 deg/s.
	test.That(t, b.SetVelocity(ctx, r3.Vector{}, r3.Vector{Z: 90}, nil), test.ShouldBeNil)
	clk.Add(time.Second)
	test.That(t, b.Pose().Yaw, test.ShouldAlmostEqual, math.Pi/2)

	// Turning through the seam stays in (-pi, pi].
	clk.Add(2 * time.Second)
	test.That(t, b.Pose().Yaw, test.ShouldAlmostEqual, -math.Pi/2)

	moving, err = b.IsMoving(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, moving, test.ShouldBeTrue)

	test.That(t, b.Stop(ctx, nil), test.ShouldBeNil)
	clk.Add(time.Second)
	test.That(t, b.Pose().Yaw, test.ShouldAlmostEqual, -math.Pi/2)
	test.That(t, b.StopCount(), test.ShouldEqual, 1)

	cmds := b.Commands()
	test.That(t, cmds, test.ShouldHaveLength, 2)
	test.That(t, cmds[0].Linear, test.ShouldResemble, r3.Vector{Y: 180})
	test.That(t, cmds[1].Angular, test.ShouldResemble, r3.Vector{Z: 90})

	b.SetPose(Pose{X: 1, Y: 2, Yaw: 3 * math.Pi / 2})
	test.That(t, b.Pose().Yaw, test.ShouldAlmostEqual, -math.Pi/2)

	test.That(t, b.Close(ctx), test.ShouldBeNil)
	test.That(t, b.StopCount(), test.ShouldEqual, 2)
}

func TestFakeBaseHistoryAndErrors(t *testing.T) {
	ctx := context.Background()
	b := newTestBase(t, clock.NewMock(), &Config{MaxHistory: 2})
	for i := 1; i <= 3; i++ {
		test.That(t, b.SetVelocity(ctx, r3.Vector{Y: float64(i)}, r3.Vector{}, nil), test.ShouldBeNil)
	}
	cmds := b.Commands()
	test.That(t, cmds, test.ShouldHaveLength, 2)
	test.That(t, cmds[0].Linear.Y, test.ShouldEqual, 2.)

	boom := errors.New("motor fault")
	b.FailSetVelocity(boom)
	test.That(t, b.SetVelocity(ctx, r3.Vector{Y: 1}, r3.Vector{}, nil), test.ShouldBeError, boom)
	b.FailSetVelocity(nil)
	test.That(t, b.SetVelocity(ctx, r3.Vector{Y: 1}, r3.Vector{}, nil), test.ShouldBeNil)

	_, err := (&Config{MaxHistory: -1}).Validate("components.0.attributes")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestFakeBaseRegistered(t *testing.T) {
	reg, ok := resource.LookupRegistration(base.API, Model)
	test.That(t, ok, test.ShouldBeTrue)
	conf := resource.Config{Name: "base1", API: base.API, Model: Model}
	res, err := reg.Constructor(context.Background(), nil, conf, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	deps := resource.Dependencies{base.Named("base1"): res}
	b, err := base.FromDependencies(deps, "base1")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, b.Name().ShortName(), test.ShouldEqual, "base1")

	_, err = base.FromDependencies(deps, "base2")
	test.That(t, err, test.ShouldNotBeNil)
}
