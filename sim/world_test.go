package sim

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/uavnav/config"
	"go.viam.com/uavnav/logging"
	"go.viam.com/uavnav/motionplan"
)

func simConfig() *config.Config {
	cfg := config.Default()
	cfg.Simulation.StepPeriod = 5 * time.Millisecond
	cfg.Simulation.TimeScale = 25
	cfg.Simulation.Timeout = 30 * time.Second
	return &cfg
}

func TestNewWorldRequiresAgents(t *testing.T) {
	_, err := NewWorld(simConfig(), nil, nil, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestNewWorldStartPositions(t *testing.T) {
	cfg := simConfig()
	cfg.Simulation.Start = map[string][]float64{"uav2": {3, 4, 1}}
	w, err := NewWorld(cfg, []string{"uav", "uav2", "uav"}, nil, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	defer w.Service().Close(context.Background())

	test.That(t, w.Names(), test.ShouldResemble, []string{"uav", "uav2"})
	a, ok := w.Agent("uav")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, a.Pose().Position.Z, test.ShouldAlmostEqual, 0.5)
	a, ok = w.Agent("uav2")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, a.Pose().Position.X, test.ShouldAlmostEqual, 3)
	test.That(t, a.Pose().Position.Y, test.ShouldAlmostEqual, 4)
}

func TestWorldFliesAroundObstacle(t *testing.T) {
	cfg := simConfig()
	cfg.Obstacles.Static = []config.StaticObstacle{{X: 2.5, Y: 2.5}}
	logger := logging.NewTestLogger(t)
	w, err := NewWorld(cfg, []string{"uav"}, nil, logger)
	test.That(t, err, test.ShouldBeNil)
	obstacles := w.Service().Obstacles()

	res, err := w.Run(context.Background(), map[string]r2.Point{"uav": {X: 5, Y: 5}})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Arrived["uav"], test.ShouldBeTrue)
	test.That(t, res.Samples, test.ShouldBeGreaterThan, 0)

	final := res.Final["uav"]
	tol := cfg.Controller.Tolerance
	test.That(t, math.Abs(final.Position.X-5), test.ShouldBeLessThanOrEqualTo, tol)
	test.That(t, math.Abs(final.Position.Y-5), test.ShouldBeLessThanOrEqualTo, tol)

	waypoints := res.Waypoints["uav"]
	test.That(t, len(waypoints), test.ShouldBeGreaterThan, 1)
	for _, wp := range waypoints {
		test.That(t, wp.Z, test.ShouldAlmostEqual, cfg.Dispatch.WaypointAltitude)
		test.That(t, motionplan.IsStateValid(obstacles, r2.Point{X: wp.X, Y: wp.Y}), test.ShouldBeTrue)
	}
	last := waypoints[len(waypoints)-1]
	test.That(t, last.X, test.ShouldAlmostEqual, 5)
	test.That(t, last.Y, test.ShouldAlmostEqual, 5)

	ps, err := res.PathStats("uav")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ps.Length, test.ShouldBeGreaterThan, math.Hypot(5, 5))
	test.That(t, ps.MaxSegment, test.ShouldBeGreaterThanOrEqualTo, ps.MeanSegment)
}

func TestWorldTimesOut(t *testing.T) {
	cfg := simConfig()
	cfg.Simulation.Timeout = 50 * time.Millisecond
	cfg.Simulation.TimeScale = 0.01
	w, err := NewWorld(cfg, []string{"uav"}, nil, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	res, err := w.Run(context.Background(), map[string]r2.Point{"uav": {X: 8, Y: -8}})
	test.That(t, errors.Is(err, context.DeadlineExceeded), test.ShouldBeTrue)
	test.That(t, res.Arrived["uav"], test.ShouldBeFalse)
}

func TestWorldRejectsUnknownGoalAgent(t *testing.T) {
	w, err := NewWorld(simConfig(), []string{"uav"}, nil, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	_, err = w.Run(context.Background(), map[string]r2.Point{"ghost": {X: 1, Y: 1}})
	test.That(t, err, test.ShouldNotBeNil)
}
