package perception

import (
	"math"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/uavnav/logging"
	"go.viam.com/uavnav/motionplan"
	"go.viam.com/uavnav/spatialmath"
)

func entities(names ...string) []Entity {
	out := make([]Entity, 0, len(names))
	for i, name := range names {
		out = append(out, Entity{Name: name, Position: r3.Vector{X: float64(i), Y: float64(2 * i), Z: 0}})
	}
	return out
}

func TestRegistryGrowthGate(t *testing.T) {
	logger := logging.NewTestLogger(t)
	reg := NewRegistry(DefaultConfig(), logger)

	// three entities: self plus two obstacles
	res, err := reg.Update(entities("self", "box1", "box2"))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Applied, test.ShouldBeTrue)
	test.That(t, res.NewObstacles, test.ShouldHaveLength, 2)
	test.That(t, reg.Obstacles(), test.ShouldResemble, []motionplan.Obstacle{
		{Center: r2.Point{X: 1, Y: 2}, Radius: 1},
		{Center: r2.Point{X: 2, Y: 4}, Radius: 1},
	})
	self, ok := reg.Pose(DefaultSelfName)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, self.Position, test.ShouldResemble, r3.Vector{})

	// same count is ignored, even when positions moved, and that includes the self agent
	moved := entities("self", "box1", "box2")
	moved[0].Position = r3.Vector{X: -7, Y: -7, Z: 3}
	moved[1].Position = r3.Vector{X: 9, Y: 9}
	res, err = reg.Update(moved)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Applied, test.ShouldBeFalse)
	test.That(t, reg.Obstacles(), test.ShouldHaveLength, 2)
	self, ok = reg.Pose(DefaultSelfName)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, self.Position, test.ShouldResemble, r3.Vector{})

	// four entities appends exactly one
	res, err = reg.Update(entities("self", "box1", "box2", "box3"))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Applied, test.ShouldBeTrue)
	test.That(t, res.NewObstacles, test.ShouldResemble, []motionplan.Obstacle{{Center: r2.Point{X: 3, Y: 6}, Radius: 1}})
	test.That(t, reg.Obstacles(), test.ShouldHaveLength, 3)
	test.That(t, reg.Obstacles()[0].Center, test.ShouldResemble, r2.Point{X: 1, Y: 2})

	// shrinking is ignored
	shrunk := entities("self", "box1")
	shrunk[0].Position = r3.Vector{X: 6, Y: -6, Z: 1}
	res, err = reg.Update(shrunk)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Applied, test.ShouldBeFalse)
	test.That(t, reg.Obstacles(), test.ShouldHaveLength, 3)
	test.That(t, reg.HighestCount(), test.ShouldEqual, 4)
	self, ok = reg.Pose(DefaultSelfName)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, self.Position, test.ShouldResemble, r3.Vector{})
}

func TestRegistryObstaclesAreCopies(t *testing.T) {
	reg := NewRegistry(DefaultConfig(), logging.NewTestLogger(t))
	_, err := reg.Update(entities("self", "box1"))
	test.That(t, err, test.ShouldBeNil)

	snapshot := reg.Obstacles()
	snapshot[0].Radius = 42
	test.That(t, reg.Obstacles()[0].Radius, test.ShouldEqual, 1.0)
}

func TestRegistryAgents(t *testing.T) {
	reg := NewRegistry(DefaultConfig(), logging.NewTestLogger(t))

	res, err := reg.Update(entities("ground", "uav2", "tree"))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.NewAgents, test.ShouldResemble, []string{"uav", "uav2"})
	test.That(t, res.NewObstacles, test.ShouldHaveLength, 1)
	test.That(t, reg.IsAgent("uav7"), test.ShouldBeTrue)
	test.That(t, reg.IsAgent("tree"), test.ShouldBeFalse)

	reg.UpdatePose("uav3", spatialmath.NewPose(1, 1, 1, 0))
	test.That(t, reg.Agents(), test.ShouldResemble, []string{"uav", "uav2", "uav3"})

	_, ok := reg.Pose("nobody")
	test.That(t, ok, test.ShouldBeFalse)
}

func TestRegistryRejectsNonFinite(t *testing.T) {
	reg := NewRegistry(DefaultConfig(), logging.NewTestLogger(t))
	bad := entities("self", "box1")
	bad[1].Position.X = math.NaN()
	_, err := reg.Update(bad)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, reg.HighestCount(), test.ShouldEqual, 0)
	test.That(t, reg.Obstacles(), test.ShouldBeEmpty)
}
