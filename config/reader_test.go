package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.viam.com/test"

	"go.viam.com/uavnav/logging"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "uavnav.json")
	test.That(t, os.WriteFile(path, []byte(contents), 0o600), test.ShouldBeNil)
	return path
}

func TestReadDefaults(t *testing.T) {
	logger := logging.NewTestLogger(t)
	cfg, err := Read(context.Background(), writeConfig(t, `{}`), logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.Planner.PlanningDeadline, test.ShouldEqual, time.Second)
	test.That(t, cfg.Planner.SolveBudget, test.ShouldEqual, 5*time.Second)
	test.That(t, cfg.Sampler.Attempts, test.ShouldEqual, 100)
	test.That(t, cfg.Controller.Tolerance, test.ShouldEqual, 0.5)
	test.That(t, cfg.Dispatch.WaypointAltitude, test.ShouldEqual, 0.5)
	test.That(t, cfg.Workspace, test.ShouldResemble, WorkspaceConfig{MinX: -10, MinY: -10, MaxX: 10, MaxY: 10})

	opts, err := cfg.PlannerOptions()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, opts.Resolution, test.ShouldEqual, 0.05)
	test.That(t, opts.Bounds.Max().X, test.ShouldEqual, 10.0)
	test.That(t, cfg.PerceptionConfig().ObstacleRadius+cfg.PerceptionConfig().Inflation, test.ShouldEqual, 1.0)
}

func TestReadOverridesAndEnv(t *testing.T) {
	t.Setenv("UAVNAV_SELF", "uav1")
	logger := logging.NewTestLogger(t)
	path := writeConfig(t, `{
		"workspace": {"min_x": -5, "min_y": -5, "max_x": 5, "max_y": 5},
		"obstacles": {"inflation": 0.25, "static": [{"x": 2, "y": 2}]},
		"planner": {"planning_deadline": "2s", "solve_budget": 7.5},
		"controller": {"tolerance": 0.2, "x": {"kp": 2}, "reset_operating_on_arrival": true, "command_before_first_goal": true},
		"agents": {"self": "${UAVNAV_SELF}", "names": ["uav1", "uav2"], "strict": true},
		"simulation": {"start": {"uav1": [0, 0, 0.5]}}
	}`)
	cfg, err := Read(context.Background(), path, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.ConfigFilePath, test.ShouldEqual, path)
	test.That(t, cfg.Planner.PlanningDeadline, test.ShouldEqual, 2*time.Second)
	test.That(t, cfg.Planner.SolveBudget, test.ShouldEqual, 7500*time.Millisecond)
	test.That(t, cfg.Planner.StepSize, test.ShouldEqual, 0.5)
	test.That(t, cfg.Controller.Tolerance, test.ShouldEqual, 0.2)
	test.That(t, cfg.Controller.X.Kp, test.ShouldEqual, 2.0)
	test.That(t, cfg.Controller.Y.Kp, test.ShouldEqual, 1.0)
	test.That(t, cfg.Controller.ResetOperatingOnArrival, test.ShouldBeTrue)
	test.That(t, cfg.Controller.CommandBeforeFirstGoal, test.ShouldBeTrue)
	test.That(t, cfg.Agents.Self, test.ShouldEqual, "uav1")
	test.That(t, cfg.Agents.Names, test.ShouldResemble, []string{"uav1", "uav2"})
	test.That(t, cfg.Agents.Strict, test.ShouldBeTrue)
	test.That(t, cfg.Simulation.Start["uav1"], test.ShouldResemble, []float64{0, 0, 0.5})

	static := cfg.StaticObstacles()
	test.That(t, static, test.ShouldHaveLength, 1)
	test.That(t, static[0].Radius, test.ShouldEqual, 0.75)
}

func TestReadRejectsBadConfig(t *testing.T) {
	logger := logging.NewTestLogger(t)
	ctx := context.Background()

	_, err := Read(ctx, writeConfig(t, `{"planner": {"plan_itr": 4}}`), logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "plan_itr")

	_, err = Read(ctx, writeConfig(t, `{"workspace": {"min_x": 3, "max_x": 1}}`), logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "workspace")

	_, err = Read(ctx, writeConfig(t, `{"sampler": {"attempts": 0}, "agents": {"names": ["a", "a"]}}`), logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, strings.Contains(err.Error(), "sampler"), test.ShouldBeTrue)
	test.That(t, strings.Contains(err.Error(), "duplicate agent name"), test.ShouldBeTrue)

	_, err = Read(ctx, writeConfig(t, `{"simulation": {"start": {"uav": [1, 2]}}}`), logger)
	test.That(t, err, test.ShouldNotBeNil)

	_, err = Read(ctx, writeConfig(t, `not json`), logger)
	test.That(t, err, test.ShouldNotBeNil)

	_, err = Read(ctx, filepath.Join(t.TempDir(), "missing.json"), logger)
	test.That(t, err, test.ShouldNotBeNil)
}
