package motionplan

import (
	"context"
	"math/rand"
)

// simpleSmooth removes the middle node of every triplet whose outer nodes can be joined directly.
func (mp *rrtConnectMotionPlanner) simpleSmooth(req *PlanRequest, steps []*node) []*node {
	originalSize := len(steps)
	for i := 2; i < len(steps); i++ {
		if !CheckSegment(req.Checker, steps[i-2].pt, steps[i].pt, mp.opts.Resolution) {
			continue
		}
		steps = append(steps[0:i-1], steps[i:]...)
		i--
	}
	if len(steps) != originalSize {
		mp.logger.Debugf("simpleSmooth %d -> %d", originalSize, len(steps))
		return mp.simpleSmooth(req, steps)
	}
	return steps
}

// smoothPath shortcuts from a random node to the node after the next corners whenever the straight
// motion between them is valid, first skipping two corners at a time and then one. The shortcut
// endpoints become corners themselves and the skipped corners are cleared. It finishes with
// simpleSmooth.
func (mp *rrtConnectMotionPlanner) smoothPath(ctx context.Context, req *PlanRequest, steps []*node, rng *rand.Rand) []*node {
	steps = mp.simpleSmooth(req, steps)

	toIter := min(len(steps)*len(steps), mp.opts.SmoothIter)
	for cornersToPass := 2; cornersToPass > 0; cornersToPass-- {
		for iter := 0; iter < toIter/2 && len(steps) > 3; iter++ {
			if ctx.Err() != nil {
				return steps
			}
			// i can be neither the last nor the second to last node
			i := rng.Intn(len(steps) - 2)
			j := i + 1
			var hit []*node
			for (len(hit) != cornersToPass || !steps[j].corner) && j < len(steps)-1 {
				j++
				if len(hit) < cornersToPass && steps[j].corner {
					hit = append(hit, steps[j])
				}
			}
			if len(hit) == 0 {
				continue
			}
			if !CheckSegment(req.Checker, steps[i].pt, steps[j].pt, mp.opts.Resolution) {
				continue
			}
			for _, c := range hit {
				c.corner = false
			}
			steps[i].corner = true
			steps[j].corner = true
			steps = append(steps[:i+1], steps[j:]...)
		}
	}
	return mp.simpleSmooth(req, steps)
}
