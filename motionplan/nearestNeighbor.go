package motionplan

import (
	"context"
	"math"

	"go.viam.com/utils"
)

const neighborsBeforeParallelization = 1000

type neighborManager struct {
	nCPU int
}

type neighbor struct {
	dist float64
	node *node
}

func (nm *neighborManager) nearestNeighbor(ctx context.Context, seed *node, tree rrtMap) *node {
	if len(tree) > neighborsBeforeParallelization && nm.nCPU > 1 {
		return nm.parallelNearestNeighbor(ctx, seed, tree)
	}
	bestDist := math.Inf(1)
	var best *node
	for k := range tree {
		if dist := seed.pt.Sub(k.pt).Norm(); dist < bestDist {
			bestDist = dist
			best = k
		}
	}
	return best
}

// parallelNearestNeighbor splits the tree across nCPU workers and merges their best candidates.
func (nm *neighborManager) parallelNearestNeighbor(ctx context.Context, seed *node, tree rrtMap) *node {
	keys := make([]*node, 0, len(tree))
	for k := range tree {
		keys = append(keys, k)
	}
	chunk := (len(keys) + nm.nCPU - 1) / nm.nCPU

	results := make(chan *neighbor, nm.nCPU)
	workers := 0
	for lo := 0; lo < len(keys); lo += chunk {
		part := keys[lo:min(lo+chunk, len(keys))]
		workers++
		utils.PanicCapturingGo(func() {
			results <- nm.nnWorker(seed, part)
		})
	}

	var best *node
	bestDist := math.Inf(1)
	for i := 0; i < workers; i++ {
		select {
		case <-ctx.Done():
			return nil
		case nn := <-results:
			if nn.dist < bestDist {
				bestDist = nn.dist
				best = nn.node
			}
		}
	}
	return best
}

func (nm *neighborManager) nnWorker(seed *node, keys []*node) *neighbor {
	best := &neighbor{dist: math.Inf(1)}
	for _, k := range keys {
		if dist := seed.pt.Sub(k.pt).Norm(); dist < best.dist {
			best.dist = dist
			best.node = k
		}
	}
	return best
}
