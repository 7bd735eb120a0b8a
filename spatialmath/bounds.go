package spatialmath

import (
	"math/rand"

	"github.com/golang/geo/r2"
	"github.com/paulmach/orb"
	"github.com/pkg/errors"
)

// Bounds is an axis aligned rectangle limiting the planar workspace. Containment is inclusive.
type Bounds struct {
	bound orb.Bound
}

// NewSquareBounds returns bounds spanning [low, high] on both axes.
func NewSquareBounds(low, high float64) (Bounds, error) {
	return NewBounds(r2.Point{X: low, Y: low}, r2.Point{X: high, Y: high})
}

// NewBounds returns the bounds with the given corners.
func NewBounds(lo, hi r2.Point) (Bounds, error) {
	if !PointIsFinite(lo) || !PointIsFinite(hi) {
		return Bounds{}, errors.New("workspace bounds must be finite")
	}
	if lo.X >= hi.X || lo.Y >= hi.Y {
		return Bounds{}, errors.Errorf("workspace lower corner %v must be strictly below upper corner %v", lo, hi)
	}
	return Bounds{bound: orb.Bound{Min: orb.Point{lo.X, lo.Y}, Max: orb.Point{hi.X, hi.Y}}}, nil
}

// Min returns the lower corner.
func (b Bounds) Min() r2.Point {
	return r2.Point{X: b.bound.Min.X(), Y: b.bound.Min.Y()}
}

// Max returns the upper corner.
func (b Bounds) Max() r2.Point {
	return r2.Point{X: b.bound.Max.X(), Y: b.bound.Max.Y()}
}

// Contains reports whether pt lies within the bounds, edges included.
func (b Bounds) Contains(pt r2.Point) bool {
	return b.bound.Contains(orb.Point{pt.X, pt.Y})
}

// Clamp returns the point within the bounds closest to pt.
func (b Bounds) Clamp(pt r2.Point) r2.Point {
	lo, hi := b.Min(), b.Max()
	return r2.Point{X: clamp(pt.X, lo.X, hi.X), Y: clamp(pt.Y, lo.Y, hi.Y)}
}

// Diagonal returns the length of the bounds' diagonal.
func (b Bounds) Diagonal() float64 {
	return PointDistance(b.Min(), b.Max())
}

// Uniform draws a point uniformly within the bounds.
func (b Bounds) Uniform(rng *rand.Rand) r2.Point {
	lo, hi := b.Min(), b.Max()
	return r2.Point{
		X: lo.X + rng.Float64()*(hi.X-lo.X),
		Y: lo.Y + rng.Float64()*(hi.Y-lo.Y),
	}
}

// UniformNear draws a point uniformly from the square of half-width distance around center,
// intersected with the bounds.
func (b Bounds) UniformNear(rng *rand.Rand, center r2.Point, distance float64) r2.Point {
	lo, hi := b.Min(), b.Max()
	minX, maxX := clamp(center.X-distance, lo.X, hi.X), clamp(center.X+distance, lo.X, hi.X)
	minY, maxY := clamp(center.Y-distance, lo.Y, hi.Y), clamp(center.Y+distance, lo.Y, hi.Y)
	return r2.Point{
		X: minX + rng.Float64()*(maxX-minX),
		Y: minY + rng.Float64()*(maxY-minY),
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
