package motionplan

import (
	"fmt"
	"strings"

	"github.com/golang/geo/r2"
	"gonum.org/v1/gonum/floats"
)

// Path is an ordered sequence of planar waypoints; the first element is executed first.
type Path []r2.Point

// Length returns the sum of the euclidean lengths of the path's segments.
func (p Path) Length() float64 {
	if len(p) < 2 {
		return 0
	}
	segments := make([]float64, 0, len(p)-1)
	for i := 1; i < len(p); i++ {
		segments = append(segments, p[i].Sub(p[i-1]).Norm())
	}
	return floats.Sum(segments)
}

// Copy returns an independent copy of the path.
func (p Path) Copy() Path {
	if p == nil {
		return nil
	}
	out := make(Path, len(p))
	copy(out, p)
	return out
}

func (p Path) String() string {
	parts := make([]string, 0, len(p))
	for _, pt := range p {
		parts = append(parts, fmt.Sprintf("(%.2f, %.2f)", pt.X, pt.Y))
	}
	return strings.Join(parts, " -> ")
}
