// Package spatialmath defines the workspace geometry shared by the planner and the controllers:
// planar points, agent poses, headings and the bounded workspace.
package spatialmath

import (
	"fmt"
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
)

// Pose is an agent's state: a position in space and a heading about the vertical axis, in radians.
type Pose struct {
	Position r3.Vector
	Yaw      float64
}

// NewPose returns a pose at the given coordinates.
func NewPose(x, y, z, yaw float64) Pose {
	return Pose{Position: r3.Vector{X: x, Y: y, Z: z}, Yaw: yaw}
}

// Point returns the planar projection of the pose.
func (p Pose) Point() r2.Point {
	return r2.Point{X: p.Position.X, Y: p.Position.Y}
}

// SamePosition reports whether two poses share exactly the same position. Headings are ignored.
func (p Pose) SamePosition(other Pose) bool {
	return p.Position == other.Position
}

// IsFinite returns false if any component of the pose is NaN or infinite.
func (p Pose) IsFinite() bool {
	for _, v := range []float64{p.Position.X, p.Position.Y, p.Position.Z, p.Yaw} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (p Pose) String() string {
	return fmt.Sprintf("(%.3f, %.3f, %.3f | yaw %.3f)", p.Position.X, p.Position.Y, p.Position.Z, p.Yaw)
}

// PointIsFinite returns false if either coordinate is NaN or infinite.
func PointIsFinite(pt r2.Point) bool {
	return !math.IsNaN(pt.X) && !math.IsNaN(pt.Y) && !math.IsInf(pt.X, 0) && !math.IsInf(pt.Y, 0)
}

// PointDistance is the euclidean distance between two planar points.
func PointDistance(a, b r2.Point) float64 {
	return a.Sub(b).Norm()
}

// Interpolate returns the point at fraction by along the segment from a to b.
func Interpolate(a, b r2.Point, by float64) r2.Point {
	return a.Add(b.Sub(a).Mul(by))
}

// VectorIsFinite returns false if any component of v is NaN or infinite.
func VectorIsFinite(v r3.Vector) bool {
	return Pose{Position: v}.IsFinite()
}

// PlanarProjection drops the altitude of v.
func PlanarProjection(v r3.Vector) r2.Point {
	return r2.Point{X: v.X, Y: v.Y}
}
