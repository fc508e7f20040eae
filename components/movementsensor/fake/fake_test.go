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
	fakebase "go.viam.com/safewander/components/base/fake"
	"go.viam.com/safewander/components/movementsensor"
	"go.viam.com/safewander/logging"
	"go.viam.com/safewander/resource"
)

func TestFakeMovementSensor(t *testing.T) {
	ctx := context.Background()
	logger := logging.NewTestLogger(t)
	conf := resource.Config{Name: "imu", API: movementsensor.API, Model: Model}
	ms, err := NewMovementSensor(ctx, nil, conf, logger)
	test.That(t, err, test.ShouldBeNil)
	fake := ms.(*MovementSensor)

	fake.SetYaw(math.Pi / 2)
	orient, err := ms.Orientation(ctx, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, orient.EulerAngles().Yaw, test.ShouldAlmostEqual, math.Pi/2)

	// 90 degrees counterclockwise is west.
	heading, err := ms.CompassHeading(ctx, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, heading, test.ShouldAlmostEqual, 270)

	boom := errors.New("imu unplugged")
	fake.SetError(boom)
	_, err = ms.Orientation(ctx, nil)
	test.That(t, err, test.ShouldBeError, boom)
	fake.SetError(nil)

	headingFunc, err := movementsensor.HeadingFunc(ctx, ms)
	test.That(t, err, test.ShouldBeNil)
	yaw, err := headingFunc(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, yaw, test.ShouldAlmostEqual, math.Pi/2)
}

func TestCompassOnlyHeading(t *testing.T) {
	ctx := context.Background()
	conf := resource.Config{
		Name: "compass", API: movementsensor.API, Model: Model,
		ConvertedAttributes: &Config{CompassOnly: true},
	}
	ms, err := NewMovementSensor(ctx, nil, conf, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	ms.(*MovementSensor).SetYaw(-math.Pi / 4)

	_, err = ms.Orientation(ctx, nil)
	test.That(t, err, test.ShouldNotBeNil)

	heading, err := ms.CompassHeading(ctx, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, heading, test.ShouldAlmostEqual, 45)

	headingFunc, err := movementsensor.HeadingFunc(ctx, ms)
	test.That(t, err, test.ShouldBeNil)
	yaw, err := headingFunc(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, yaw, test.ShouldAlmostEqual, -math.Pi/4)
}

func TestBoundToFakeBase(t *testing.T) {
	ctx := context.Background()
	logger := logging.NewTestLogger(t)
	clk := clock.NewMock()
	b, err := fakebase.NewBase(resource.Config{Name: "base1", API: base.API, Model: fakebase.Model}, clk, logger)
	test.That(t, err, test.ShouldBeNil)

	attrs := &Config{Base: "base1"}
	deps, err := attrs.Validate("components.1.attributes")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, deps, test.ShouldResemble, []string{"base1"})

	conf := resource.Config{Name: "imu", API: movementsensor.API, Model: Model, ConvertedAttributes: attrs}
	ms, err := NewMovementSensor(ctx, resource.Dependencies{base.Named("base1"): b}, conf, logger)
	test.That(t, err, test.ShouldBeNil)

	test.That(t, b.SetVelocity(ctx, r3.Vector{}, r3.Vector{Z: -45}, nil), test.ShouldBeNil)
	clk.Add(time.Second)
	orient, err := ms.Orientation(ctx, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, orient.EulerAngles().Yaw, test.ShouldAlmostEqual, -math.Pi/4)

	_, err = NewMovementSensor(ctx, resource.Dependencies{}, conf, logger)
	test.That(t, err, test.ShouldNotBeNil)
}
