// Package motionplan validates, samples and plans collision-free paths through a bounded planar
// workspace populated by disk obstacles.
package motionplan

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r2"

	"go.viam.com/uavnav/spatialmath"
)

// TerminationCondition reports whether a planner must stop searching.
type TerminationCondition func() bool

// NewTimedTermination returns a condition that fires once deadline has elapsed on clk since start.
func NewTimedTermination(clk clock.Clock, start time.Time, deadline time.Duration) TerminationCondition {
	return func() bool {
		return clk.Since(start) >= deadline
	}
}

// PlanRequest is everything a Planner needs for one planning episode.
type PlanRequest struct {
	Start     r2.Point
	Goal      r2.Point
	Bounds    spatialmath.Bounds
	Checker   StateValidityChecker
	Sampler   ValidStateSampler
	Terminate TerminationCondition
}

func (req *PlanRequest) terminated() bool {
	return req.Terminate != nil && req.Terminate()
}

// Planner searches for a collision-free path. On success the returned path starts at the request's
// start and ends at its goal. On failure it returns an error satisfying IsPlannerFailed, or the
// context's error.
type Planner interface {
	Plan(ctx context.Context, req *PlanRequest) (Path, error)
}

// PlannerFunc adapts a function to a Planner.
type PlannerFunc func(ctx context.Context, req *PlanRequest) (Path, error)

// Plan calls f(ctx, req).
func (f PlannerFunc) Plan(ctx context.Context, req *PlanRequest) (Path, error) {
	return f(ctx, req)
}
