package sim

import (
	"math"

	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
)

// PathStats summarizes the planar segments between an agent's dispatched waypoints.
type PathStats struct {
	Segments    int
	Length      float64
	MeanSegment float64
	MaxSegment  float64
}

// PathStats summarizes the waypoints dispatched to agent.
func (r *Result) PathStats(agent string) (PathStats, error) {
	wps := r.Waypoints[agent]
	if len(wps) < 2 {
		return PathStats{}, errors.Errorf("agent %q has fewer than two waypoints", agent)
	}
	lengths := make(stats.Float64Data, 0, len(wps)-1)
	for i := 1; i < len(wps); i++ {
		lengths = append(lengths, math.Hypot(wps[i].X-wps[i-1].X, wps[i].Y-wps[i-1].Y))
	}
	total, err := lengths.Sum()
	if err != nil {
		return PathStats{}, err
	}
	mean, err := lengths.Mean()
	if err != nil {
		return PathStats{}, err
	}
	longest, err := lengths.Max()
	if err != nil {
		return PathStats{}, err
	}
	return PathStats{Segments: len(lengths), Length: total, MeanSegment: mean, MaxSegment: longest}, nil
}
