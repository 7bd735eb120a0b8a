package spatialmath

import "math"

// WrapAngle brings a heading error into [-pi, pi] with a single correction of 2*pi. Errors are
// expected to be within one lap; inputs beyond [-3pi, 3pi] are not fully wrapped.
func WrapAngle(rad float64) float64 {
	if rad > math.Pi {
		return rad - 2*math.Pi
	} else if rad < -math.Pi {
		return rad + 2*math.Pi
	}
	return rad
}
