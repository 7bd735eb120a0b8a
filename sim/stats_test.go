package sim

import (
	"testing"

	"go.viam.com/test"

	"go.viam.com/uavnav/services/navigation"
)

func TestPathStats(t *testing.T) {
	res := &Result{Waypoints: map[string][]navigation.WaypointCommand{
		"uav": {
			{AgentID: "uav", X: 0, Y: 0, Z: 0.5},
			{AgentID: "uav", X: 3, Y: 4, Z: 0.5},
			{AgentID: "uav", X: 3, Y: 5, Z: 2},
		},
		"uav2": {{AgentID: "uav2", X: 1, Y: 1}},
	}}

	ps, err := res.PathStats("uav")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ps.Segments, test.ShouldEqual, 2)
	test.That(t, ps.Length, test.ShouldAlmostEqual, 6)
	test.That(t, ps.MeanSegment, test.ShouldAlmostEqual, 3)
	test.That(t, ps.MaxSegment, test.ShouldAlmostEqual, 5)

	_, err = res.PathStats("uav2")
	test.That(t, err, test.ShouldNotBeNil)
	_, err = res.PathStats("ghost")
	test.That(t, err, test.ShouldNotBeNil)
}
