package motionplan

import (
	"github.com/golang/geo/r2"
)

// node is a state in a search tree. Corners are nodes where the tree changed direction and are
// the preferred candidates for shortcutting.
type node struct {
	pt     r2.Point
	corner bool
}

func newNode(pt r2.Point) *node {
	return &node{pt: pt}
}

// rrtMap maps each node of a tree to its parent; roots map to nil.
type rrtMap map[*node]*node

type rrtMaps struct {
	startMap rrtMap
	goalMap  rrtMap
}

func newRRTMaps(start, goal r2.Point) *rrtMaps {
	return &rrtMaps{
		startMap: rrtMap{newNode(start): nil},
		goalMap:  rrtMap{newNode(goal): nil},
	}
}

// nodePair groups together the two nodes where the trees met.
type nodePair struct{ a, b *node }

// extractPath walks both trees from the meeting nodes back to their roots and joins them into one
// path running from the start root to the goal root. When matched is set the two meeting nodes are
// the same state and the goal side copy is skipped.
func extractPath(startMap, goalMap rrtMap, pair *nodePair, matched bool) []*node {
	var startReached, goalReached *node
	if _, ok := startMap[pair.a]; ok {
		startReached, goalReached = pair.a, pair.b
	} else {
		startReached, goalReached = pair.b, pair.a
	}

	path := make([]*node, 0)
	for startReached != nil {
		path = append(path, startReached)
		startReached = startMap[startReached]
	}

	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}

	if goalReached != nil {
		if matched {
			goalReached = goalMap[goalReached]
		}
		for goalReached != nil {
			path = append(path, goalReached)
			goalReached = goalMap[goalReached]
		}
	}
	return path
}

func nodesToPath(nodes []*node) Path {
	path := make(Path, 0, len(nodes))
	for _, n := range nodes {
		path = append(path, n.pt)
	}
	return path
}
