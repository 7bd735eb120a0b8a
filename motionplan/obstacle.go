package motionplan

import (
	"fmt"

	"github.com/golang/geo/r2"
)

// Obstacle is a disk in the workspace. Radius already includes the agent's own footprint, so a
// state is valid exactly when it lies outside every obstacle disk.
type Obstacle struct {
	Center r2.Point `json:"center"`
	Radius float64  `json:"radius"`
}

// NewObstacle returns an obstacle at center whose exclusion radius is its footprint plus the
// inflation margin.
func NewObstacle(center r2.Point, footprint, inflation float64) Obstacle {
	return Obstacle{Center: center, Radius: footprint + inflation}
}

// Contains reports whether pt is strictly inside the obstacle. Points exactly on the boundary are
// outside.
func (o Obstacle) Contains(pt r2.Point) bool {
	dx := pt.X - o.Center.X
	dy := pt.Y - o.Center.Y
	return dx*dx+dy*dy-o.Radius*o.Radius < 0
}

func (o Obstacle) String() string {
	return fmt.Sprintf("obstacle(%.3f, %.3f r=%.3f)", o.Center.X, o.Center.Y, o.Radius)
}

// StateValidityChecker answers whether a single state may be occupied.
type StateValidityChecker func(pt r2.Point) bool

// IsStateValid reports whether pt is outside every obstacle. It has no side effects.
func IsStateValid(obstacles []Obstacle, pt r2.Point) bool {
	for _, o := range obstacles {
		if o.Contains(pt) {
			return false
		}
	}
	return true
}

// NewObstacleChecker returns a validity checker over a private copy of obstacles, so later changes
// to the caller's slice are not observed mid-episode.
func NewObstacleChecker(obstacles []Obstacle) StateValidityChecker {
	snapshot := make([]Obstacle, len(obstacles))
	copy(snapshot, obstacles)
	return func(pt r2.Point) bool {
		return IsStateValid(snapshot, pt)
	}
}
