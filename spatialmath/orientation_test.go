package spatialmath

import (
	"math"
	"testing"

	"go.viam.com/test"
	"gonum.org/v1/gonum/num/quat"
)

func TestZeroOrientation(t *testing.T) {
	zero := NewZeroOrientation()
	test.That(t, zero.Quaternion(), test.ShouldResemble, quat.Number{Real: 1})
	test.That(t, zero.EulerAngles(), test.ShouldResemble, NewEulerAngles())
}

func TestQuaternionYaw(t *testing.T) {
	for _, yaw := range []float64{0, 0.3, -0.3, math.Pi / 2, -math.Pi / 2, 3, -3} {
		// a pure rotation about z, as planar odometry reports it
		o := NewQuaternion(0, 0, math.Sin(yaw/2), math.Cos(yaw/2))
		test.That(t, o.EulerAngles().Yaw, test.ShouldAlmostEqual, yaw)
		test.That(t, o.EulerAngles().Roll, test.ShouldAlmostEqual, 0)
		test.That(t, o.EulerAngles().Pitch, test.ShouldAlmostEqual, 0)
	}

	// unnormalized input is normalized before use
	o := NewQuaternion(0, 0, 2*math.Sin(0.25), 2*math.Cos(0.25))
	test.That(t, o.EulerAngles().Yaw, test.ShouldAlmostEqual, 0.5)
	test.That(t, quat.Abs(o.Quaternion()), test.ShouldAlmostEqual, 1)
}

func TestEulerRoundTrip(t *testing.T) {
	ea := &EulerAngles{Roll: 0.1, Pitch: -0.2, Yaw: 1.2}
	q := ea.Quaternion()
	back := (*quaternion)(&q).EulerAngles()
	test.That(t, back.Roll, test.ShouldAlmostEqual, ea.Roll)
	test.That(t, back.Pitch, test.ShouldAlmostEqual, ea.Pitch)
	test.That(t, back.Yaw, test.ShouldAlmostEqual, ea.Yaw)

	test.That(t, OrientationAlmostEqual(NewYaw(0.7), NewQuaternion(0, 0, math.Sin(0.35), math.Cos(0.35))), test.ShouldBeTrue)
}

func TestOrientationBetween(t *testing.T) {
	between := OrientationBetween(NewYaw(0.5), NewYaw(1.25))
	test.That(t, between.EulerAngles().Yaw, test.ShouldAlmostEqual, 0.75)
}
