package spatialmath

import "math"

// NormalizeAngle maps an angle in radians into (-pi, pi]. The result is idempotent:
// NormalizeAngle(NormalizeAngle(a)) == NormalizeAngle(a).
func NormalizeAngle(rad float64) float64 {
	wrapped := math.Remainder(rad, 2*math.Pi)
	if wrapped <= -math.Pi {
		wrapped += 2 * math.Pi
	}
	return wrapped
}

// AngleBetween returns the signed shortest rotation, in (-pi, pi], that takes `from` to `to`.
func AngleBetween(from, to float64) float64 {
	return NormalizeAngle(to - from)
}
