package spatialmath

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
)

// YawFromQuaternion extracts the heading about the vertical axis from a quaternion, in radians.
// The quaternion is normalized first.
func YawFromQuaternion(q quat.Number) float64 {
	if norm := quat.Abs(q); norm > 0 && norm != 1 {
		q = quat.Scale(1/norm, q)
	}
	sinyCosp := 2 * (q.Real*q.Kmag + q.Imag*q.Jmag)
	cosyCosp := 1 - 2*(q.Jmag*q.Jmag+q.Kmag*q.Kmag)
	return math.Atan2(sinyCosp, cosyCosp)
}

// QuaternionFromYaw returns the unit quaternion rotating by yaw about the vertical axis.
func QuaternionFromYaw(yaw float64) quat.Number {
	return quat.Number{Real: math.Cos(yaw / 2), Kmag: math.Sin(yaw / 2)}
}

// IsValidQuaternion returns false for quaternions that cannot describe a rotation: zero length or
// containing non-finite components.
func IsValidQuaternion(q quat.Number) bool {
	norm := quat.Abs(q)
	return !math.IsNaN(norm) && !math.IsInf(norm, 0) && norm > 1e-9
}
