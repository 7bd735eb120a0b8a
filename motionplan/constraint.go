package motionplan

import (
	"math"

	"github.com/golang/geo/r2"

	"go.viam.com/uavnav/spatialmath"
)

// CheckSegment reports whether every state along the straight segment from start to end is valid,
// checking at intervals no longer than resolution. Both endpoints are checked.
func CheckSegment(checker StateValidityChecker, start, end r2.Point, resolution float64) bool {
	if resolution <= 0 {
		resolution = defaultResolution
	}
	if !checker(start) || !checker(end) {
		return false
	}
	steps := int(math.Ceil(spatialmath.PointDistance(start, end) / resolution))
	for i := 1; i < steps; i++ {
		if !checker(spatialmath.Interpolate(start, end, float64(i)/float64(steps))) {
			return false
		}
	}
	return true
}

// CheckPath reports whether every segment of path is valid at the given resolution.
func CheckPath(checker StateValidityChecker, path Path, resolution float64) bool {
	if len(path) == 1 {
		return checker(path[0])
	}
	for i := 1; i < len(path); i++ {
		if !CheckSegment(checker, path[i-1], path[i], resolution) {
			return false
		}
	}
	return true
}
