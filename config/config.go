// Package config defines the uavnav configuration file and how it is read and validated.
package config

import (
	"fmt"
	"time"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"go.viam.com/uavnav/control"
	"go.viam.com/uavnav/motionplan"
	"go.viam.com/uavnav/perception"
	"go.viam.com/uavnav/spatialmath"
)

// Config is the whole uavnav configuration.
type Config struct {
	Workspace  WorkspaceConfig  `json:"workspace"`
	Obstacles  ObstacleConfig   `json:"obstacles"`
	Planner    PlannerConfig    `json:"planner"`
	Sampler    SamplerConfig    `json:"sampler"`
	Controller control.Config   `json:"controller"`
	Dispatch   DispatchConfig   `json:"dispatch"`
	Agents     AgentsConfig     `json:"agents"`
	Simulation SimulationConfig `json:"simulation"`

	ConfigFilePath string `json:"-"`
}

// WorkspaceConfig is the axis aligned planar region the planner may use.
type WorkspaceConfig struct {
	MinX float64 `json:"min_x"`
	MinY float64 `json:"min_y"`
	MaxX float64 `json:"max_x"`
	MaxY float64 `json:"max_y"`
}

// ObstacleConfig describes how perceived entities become obstacles.
type ObstacleConfig struct {
	Radius    float64 `json:"radius"`
	Inflation float64 `json:"inflation"`
	// Static obstacles known before any perception update.
	Static []StaticObstacle `json:"static,omitempty"`
}

// StaticObstacle is an obstacle listed in the configuration file.
type StaticObstacle struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// PlannerConfig holds the planning episode tunables.
type PlannerConfig struct {
	PlanningDeadline time.Duration `json:"planning_deadline"`
	SolveBudget      time.Duration `json:"solve_budget"`
	Resolution       float64       `json:"resolution"`
	StepSize         float64       `json:"step_size"`
	PlanIter         int           `json:"plan_iter"`
	SmoothIter       int           `json:"smooth_iter"`
	Seed             int64         `json:"seed"`
	Workers          int           `json:"workers"`
}

// SamplerConfig holds the rejection sampler tunables.
type SamplerConfig struct {
	Attempts int `json:"attempts"`
	// EventBuffer is the capacity of the diagnostic sample channel; a full channel drops events.
	EventBuffer int `json:"event_buffer"`
}

// DispatchConfig holds waypoint dispatch settings.
type DispatchConfig struct {
	WaypointAltitude float64 `json:"waypoint_altitude"`
	// AutoAcknowledge treats a controller done event as the acknowledgment of the current waypoint.
	// When disabled only explicit step acknowledgments advance the queue.
	AutoAcknowledge bool `json:"auto_acknowledge"`
}

// AgentsConfig lists the known agents.
type AgentsConfig struct {
	// Self is the agent the first perceived entity is stored under.
	Self   string   `json:"self"`
	Marker string   `json:"marker"`
	Names  []string `json:"names,omitempty"`
	// Strict rejects messages for agents that were never registered.
	Strict bool `json:"strict"`
}

// SimulationConfig parameterizes the kinematic simulator.
type SimulationConfig struct {
	StepPeriod time.Duration `json:"step_period"`
	Timeout    time.Duration `json:"timeout"`
	// TimeScale is simulated seconds per wall clock second.
	TimeScale float64 `json:"time_scale"`
	// Start positions by agent name as [x, y, z].
	Start map[string][]float64 `json:"start,omitempty"`
}

// Default returns the configuration used when no file overrides it.
func Default() Config {
	opts := motionplan.NewDefaultPlannerOptions()
	lo, hi := opts.Bounds.Min(), opts.Bounds.Max()
	return Config{
		Workspace: WorkspaceConfig{MinX: lo.X, MinY: lo.Y, MaxX: hi.X, MaxY: hi.Y},
		Obstacles: ObstacleConfig{
			Radius:    perception.DefaultObstacleRadius,
			Inflation: perception.DefaultInflation,
		},
		Planner: PlannerConfig{
			PlanningDeadline: opts.PlanningDeadline,
			SolveBudget:      opts.SolveBudget,
			Resolution:       opts.Resolution,
			StepSize:         opts.StepSize,
			PlanIter:         opts.PlanIter,
			SmoothIter:       opts.SmoothIter,
			Seed:             1,
			Workers:          2,
		},
		Sampler:    SamplerConfig{Attempts: opts.SampleAttempts, EventBuffer: 1024},
		Controller: control.DefaultConfig(),
		Dispatch:   DispatchConfig{WaypointAltitude: 0.5, AutoAcknowledge: true},
		Agents: AgentsConfig{
			Self:   perception.DefaultSelfName,
			Marker: perception.DefaultAgentMarker,
		},
		Simulation: SimulationConfig{
			StepPeriod: 20 * time.Millisecond,
			Timeout:    time.Minute,
			TimeScale:  1,
		},
	}
}

// Validate returns every problem with the configuration, each prefixed with its field path.
func (c *Config) Validate() error {
	var errs error
	errs = multierr.Append(errs, c.Workspace.Validate("workspace"))
	errs = multierr.Append(errs, c.Obstacles.Validate("obstacles"))
	errs = multierr.Append(errs, c.Planner.Validate("planner"))
	errs = multierr.Append(errs, c.Sampler.Validate("sampler"))
	if err := c.Controller.Validate(); err != nil {
		errs = multierr.Append(errs, utils.NewConfigValidationError("controller", err))
	}
	errs = multierr.Append(errs, c.Agents.Validate("agents"))
	errs = multierr.Append(errs, c.Simulation.Validate("simulation"))
	return errs
}

// Validate ensures the workspace is a non-empty rectangle.
func (w *WorkspaceConfig) Validate(path string) error {
	if _, err := w.Bounds(); err != nil {
		return utils.NewConfigValidationError(path, err)
	}
	return nil
}

// Bounds converts the workspace into planner bounds.
func (w *WorkspaceConfig) Bounds() (spatialmath.Bounds, error) {
	return spatialmath.NewBounds(r2.Point{X: w.MinX, Y: w.MinY}, r2.Point{X: w.MaxX, Y: w.MaxY})
}

// Validate ensures radii are usable.
func (o *ObstacleConfig) Validate(path string) error {
	if o.Radius <= 0 {
		return utils.NewConfigValidationError(path, errors.New("radius must be positive"))
	}
	if o.Inflation < 0 {
		return utils.NewConfigValidationError(path, errors.New("inflation must not be negative"))
	}
	return nil
}

// Validate ensures every planner tunable is positive.
func (p *PlannerConfig) Validate(path string) error {
	var errs error
	if p.PlanningDeadline <= 0 {
		errs = multierr.Append(errs, utils.NewConfigValidationFieldRequiredError(path, "planning_deadline"))
	}
	if p.SolveBudget <= 0 {
		errs = multierr.Append(errs, utils.NewConfigValidationFieldRequiredError(path, "solve_budget"))
	}
	if p.Resolution <= 0 {
		errs = multierr.Append(errs, utils.NewConfigValidationError(path, errors.New("resolution must be positive")))
	}
	if p.StepSize <= 0 {
		errs = multierr.Append(errs, utils.NewConfigValidationError(path, errors.New("step_size must be positive")))
	}
	if p.PlanIter <= 0 {
		errs = multierr.Append(errs, utils.NewConfigValidationError(path, errors.New("plan_iter must be positive")))
	}
	if p.SmoothIter < 0 {
		errs = multierr.Append(errs, utils.NewConfigValidationError(path, errors.New("smooth_iter must not be negative")))
	}
	return errs
}

// Validate ensures the sampler can draw at least once.
func (s *SamplerConfig) Validate(path string) error {
	if s.Attempts <= 0 {
		return utils.NewConfigValidationError(path, errors.New("attempts must be positive"))
	}
	if s.EventBuffer < 0 {
		return utils.NewConfigValidationError(path, errors.New("event_buffer must not be negative"))
	}
	return nil
}

// Validate ensures agent names are usable.
func (a *AgentsConfig) Validate(path string) error {
	if a.Self == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "self")
	}
	seen := map[string]bool{}
	for idx, name := range a.Names {
		if name == "" {
			return utils.NewConfigValidationFieldRequiredError(fmt.Sprintf("%s.names.%d", path, idx), "name")
		}
		if seen[name] {
			return utils.NewConfigValidationError(path, errors.Errorf("duplicate agent name %q", name))
		}
		seen[name] = true
	}
	return nil
}

// Validate ensures start positions are three dimensional.
func (s *SimulationConfig) Validate(path string) error {
	if s.StepPeriod <= 0 {
		return utils.NewConfigValidationFieldRequiredError(path, "step_period")
	}
	if s.TimeScale <= 0 {
		return utils.NewConfigValidationFieldRequiredError(path, "time_scale")
	}
	for name, pos := range s.Start {
		if len(pos) != 3 {
			return utils.NewConfigValidationError(fmt.Sprintf("%s.start.%s", path, name),
				errors.Errorf("expected [x, y, z], got %d values", len(pos)))
		}
	}
	return nil
}

// PlannerOptions converts the planner, sampler and workspace sections into planner options.
func (c *Config) PlannerOptions() (*motionplan.PlannerOptions, error) {
	bounds, err := c.Workspace.Bounds()
	if err != nil {
		return nil, err
	}
	opts := motionplan.NewDefaultPlannerOptions()
	opts.Bounds = bounds
	opts.PlanningDeadline = c.Planner.PlanningDeadline
	opts.SolveBudget = c.Planner.SolveBudget
	opts.SampleAttempts = c.Sampler.Attempts
	opts.Resolution = c.Planner.Resolution
	opts.StepSize = c.Planner.StepSize
	opts.PlanIter = c.Planner.PlanIter
	opts.SmoothIter = c.Planner.SmoothIter
	if c.Planner.Workers > 0 {
		opts.NumThreads = c.Planner.Workers
	}
	return opts, nil
}

// PerceptionConfig converts the obstacle and agent sections for the perception registry.
func (c *Config) PerceptionConfig() perception.Config {
	return perception.Config{
		SelfName:       c.Agents.Self,
		AgentMarker:    c.Agents.Marker,
		ObstacleRadius: c.Obstacles.Radius,
		Inflation:      c.Obstacles.Inflation,
	}
}

// StaticObstacles returns the configured static obstacles, inflated like perceived ones.
func (c *Config) StaticObstacles() []motionplan.Obstacle {
	out := make([]motionplan.Obstacle, 0, len(c.Obstacles.Static))
	for _, so := range c.Obstacles.Static {
		out = append(out, motionplan.NewObstacle(r2.Point{X: so.X, Y: so.Y}, c.Obstacles.Radius, c.Obstacles.Inflation))
	}
	return out
}
