package motionplan

import (
	"context"
	"math/rand"
	"sync"

	"github.com/benbjohnson/clock"
	"go.opencensus.io/trace"

	"go.viam.com/uavnav/logging"
	"go.viam.com/uavnav/spatialmath"
)

// PlanManager runs one planning episode per call: it snapshots the obstacles, builds the validity
// checker and rejection sampler, and hands both to the Planner under the configured deadline.
type PlanManager struct {
	planner Planner
	opts    *PlannerOptions
	clock   clock.Clock
	emitter SampleEmitter
	logger  logging.Logger

	randMu   sync.Mutex
	randseed *rand.Rand
}

// NewPlanManager returns a PlanManager. A nil clock uses the wall clock, a nil emitter discards
// diagnostics, and a nil planner uses the reference RRT-Connect planner.
func NewPlanManager(
	planner Planner,
	opts *PlannerOptions,
	clk clock.Clock,
	emitter SampleEmitter,
	seed *rand.Rand,
	logger logging.Logger,
) (*PlanManager, error) {
	if opts == nil {
		opts = NewDefaultPlannerOptions()
	}
	filled := *opts
	filled.fillDefaults()
	if seed == nil {
		//nolint:gosec
		seed = rand.New(rand.NewSource(1))
	}
	if planner == nil {
		var err error
		//nolint:gosec
		planner, err = NewRRTConnectPlanner(rand.New(rand.NewSource(seed.Int63())), logger.Sublogger("rrt"), &filled)
		if err != nil {
			return nil, err
		}
	}
	if clk == nil {
		clk = clock.New()
	}
	if emitter == nil {
		emitter = NewNoopEmitter()
	}
	return &PlanManager{
		planner:  planner,
		opts:     &filled,
		clock:    clk,
		emitter:  emitter,
		logger:   logger,
		randseed: seed,
	}, nil
}

// Plan searches for a path between the planar projections of start and goal. On failure it
// returns an empty path and false; there is no retry.
func (pm *PlanManager) Plan(ctx context.Context, start, goal spatialmath.Pose, obstacles []Obstacle) (Path, bool) {
	requested := pm.clock.Now()

	ctx, span := trace.StartSpan(ctx, "motionplan::PlanManager::Plan")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, pm.opts.SolveBudget)
	defer cancel()

	startPt, goalPt := start.Point(), goal.Point()
	checker := NewObstacleChecker(obstacles)

	switch {
	case !pm.opts.Bounds.Contains(startPt):
		pm.logger.Warnw("planning failed", "error", newOutOfBoundsError("start", startPt))
		return Path{}, false
	case !pm.opts.Bounds.Contains(goalPt):
		pm.logger.Warnw("planning failed", "error", newOutOfBoundsError("goal", goalPt))
		return Path{}, false
	case !checker(startPt):
		pm.logger.Warnw("planning failed", "error", newInvalidEndpointError("start", startPt))
		return Path{}, false
	case !checker(goalPt):
		pm.logger.Warnw("planning failed", "error", newInvalidEndpointError("goal", goalPt))
		return Path{}, false
	}

	req := &PlanRequest{
		Start:   startPt,
		Goal:    goalPt,
		Bounds:  pm.opts.Bounds,
		Checker: checker,
		Sampler: NewRejectionSampler(
			NewUniformStateSampler(pm.opts.Bounds, pm.episodeRand()),
			checker,
			pm.emitter,
			NewPhaseTracker(),
			pm.opts.SampleAttempts,
		),
		Terminate: NewTimedTermination(pm.clock, requested, pm.opts.PlanningDeadline),
	}

	pm.logger.CDebugf(ctx, "planning from %v to %v around %d obstacles", startPt, goalPt, len(obstacles))
	path, err := pm.planner.Plan(ctx, req)
	if err != nil {
		pm.logger.Infow("no path found", "start", startPt, "goal", goalPt, "error", err)
		return Path{}, false
	}
	if len(path) == 0 {
		pm.logger.Infow("planner returned an empty path", "start", startPt, "goal", goalPt)
		return Path{}, false
	}
	pm.logger.CDebugf(ctx, "found path with %d waypoints, length %.3f in %v", len(path), path.Length(), pm.clock.Since(requested))
	return path, true
}

func (pm *PlanManager) episodeRand() *rand.Rand {
	pm.randMu.Lock()
	defer pm.randMu.Unlock()
	//nolint:gosec
	return rand.New(rand.NewSource(pm.randseed.Int63()))
}
