package motionplan

import (
	"context"
	"math/rand"
	"sync"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"go.opencensus.io/trace"

	"go.viam.com/uavnav/logging"
	"go.viam.com/uavnav/spatialmath"
)

// rrtConnectMotionPlanner grows one tree from the start and one from the goal, alternately
// extending both toward shared targets until they meet.
type rrtConnectMotionPlanner struct {
	logger logging.Logger
	opts   *PlannerOptions
	nm     *neighborManager

	randMu   sync.Mutex
	randseed *rand.Rand
}

// NewRRTConnectPlanner returns the reference bidirectional RRT planner. A nil seed uses a fixed
// source so that runs are reproducible.
func NewRRTConnectPlanner(seed *rand.Rand, logger logging.Logger, opts *PlannerOptions) (Planner, error) {
	if opts == nil {
		return nil, errNoPlannerOptions
	}
	if seed == nil {
		//nolint:gosec
		seed = rand.New(rand.NewSource(1))
	}
	filled := *opts
	filled.fillDefaults()
	return &rrtConnectMotionPlanner{
		logger:   logger,
		opts:     &filled,
		nm:       &neighborManager{nCPU: filled.NumThreads},
		randseed: seed,
	}, nil
}

// episodeRand derives a private generator so concurrent episodes do not share one.
func (mp *rrtConnectMotionPlanner) episodeRand() *rand.Rand {
	mp.randMu.Lock()
	defer mp.randMu.Unlock()
	//nolint:gosec
	return rand.New(rand.NewSource(mp.randseed.Int63()))
}

func (mp *rrtConnectMotionPlanner) Plan(ctx context.Context, req *PlanRequest) (Path, error) {
	ctx, span := trace.StartSpan(ctx, "motionplan::rrtConnect::Plan")
	defer span.End()

	if req == nil || req.Checker == nil || req.Sampler == nil {
		return nil, errors.New("plan request needs a validity checker and a sampler")
	}
	if !req.Checker(req.Start) {
		return nil, newInvalidEndpointError("start", req.Start)
	}
	if !req.Checker(req.Goal) {
		return nil, newInvalidEndpointError("goal", req.Goal)
	}

	if CheckSegment(req.Checker, req.Start, req.Goal, mp.opts.Resolution) {
		mp.logger.CDebugf(ctx, "direct motion from %v to %v is valid", req.Start, req.Goal)
		return Path{req.Start, req.Goal}, nil
	}

	maps := newRRTMaps(req.Start, req.Goal)
	steps, err := mp.rrtRunner(ctx, req, maps)
	if err != nil {
		return nil, err
	}
	steps = mp.smoothPath(ctx, req, steps, mp.episodeRand())
	return nodesToPath(steps), nil
}

func (mp *rrtConnectMotionPlanner) rrtRunner(ctx context.Context, req *PlanRequest, maps *rrtMaps) ([]*node, error) {
	target := newNode(spatialmath.Interpolate(req.Start, req.Goal, 0.5))

	map1, map2 := maps.startMap, maps.goalMap
	for i := 0; i < mp.opts.PlanIter; i++ {
		if ctx.Err() != nil {
			mp.logger.CDebugf(ctx, "RRT-Connect cancelled after %d iterations", i)
			return nil, ctx.Err()
		}
		if req.terminated() {
			mp.logger.CDebugf(ctx, "RRT-Connect terminated after %d iterations", i)
			return nil, NewPlannerFailedError()
		}

		tryExtend := func(target *node) (*node, *node) {
			nearest1 := mp.nm.nearestNeighbor(ctx, target, map1)
			nearest2 := mp.nm.nearestNeighbor(ctx, target, map2)
			if nearest1 == nil || nearest2 == nil {
				return nil, nil
			}
			map1reached := mp.extend(req, map1, nearest1, target)
			map2reached := mp.extend(req, map2, nearest2, target)
			map1reached.corner = true
			map2reached.corner = true
			return map1reached, map2reached
		}

		map1reached, map2reached := tryExtend(target)
		if map1reached == nil {
			return nil, ctx.Err()
		}

		// extend both toward the midpoint of where they got to
		reachedDelta := map1reached.pt.Sub(map2reached.pt).Norm()
		if reachedDelta > defaultIdentDist {
			target = newNode(spatialmath.Interpolate(map1reached.pt, map2reached.pt, 0.5))
			map1reached, map2reached = tryExtend(target)
			if map1reached == nil {
				return nil, ctx.Err()
			}
			reachedDelta = map1reached.pt.Sub(map2reached.pt).Norm()
		}

		if reachedDelta <= defaultIdentDist {
			mp.logger.CDebugf(ctx, "RRT-Connect found solution after %d iterations", i)
			return extractPath(maps.startMap, maps.goalMap, &nodePair{map1reached, map2reached}, true), nil
		}

		if next, ok := mp.sample(req, map1reached, i); ok {
			target = next
		}
		map1, map2 = map2, map1
	}
	return nil, NewPlannerFailedError()
}

// extend walks from near toward target in steps no longer than the step size, adding every valid
// state to tree. It returns the last state reached, which is target itself if nothing blocked it.
func (mp *rrtConnectMotionPlanner) extend(req *PlanRequest, tree rrtMap, near, target *node) *node {
	for {
		dist := near.pt.Sub(target.pt).Norm()
		if dist <= defaultIdentDist {
			return near
		}
		next := target.pt
		if dist > mp.opts.StepSize {
			next = spatialmath.Interpolate(near.pt, target.pt, mp.opts.StepSize/dist)
		}
		if !req.Bounds.Contains(next) || !CheckSegment(req.Checker, near.pt, next, mp.opts.Resolution) {
			return near
		}
		added := newNode(next)
		tree[added] = near
		near = added
	}
}

// sample draws near the frontier for the first iterations, then mixes in uniform samples.
func (mp *rrtConnectMotionPlanner) sample(req *PlanRequest, frontier *node, sampleNum int) (*node, bool) {
	var pt r2.Point
	var ok bool
	if sampleNum >= mp.opts.IterBeforeRand && sampleNum%4 >= 2 {
		pt, ok = req.Sampler.Sample()
	} else {
		pt, ok = req.Sampler.SampleNear(frontier.pt, mp.opts.NearDistance)
	}
	if !ok {
		return nil, false
	}
	return newNode(pt), true
}
