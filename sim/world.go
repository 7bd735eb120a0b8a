package sim

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"go.viam.com/uavnav/config"
	"go.viam.com/uavnav/logging"
	"go.viam.com/uavnav/services/navigation"
	"go.viam.com/uavnav/spatialmath"
)

// Result summarizes a simulation run.
type Result struct {
	Waypoints map[string][]navigation.WaypointCommand
	Final     map[string]spatialmath.Pose
	Arrived   map[string]bool
	Samples   int
}

// World owns the simulated agents and the navigation service flying them.
type World struct {
	cfg    *config.Config
	clock  clock.Clock
	logger logging.Logger
	svc    *navigation.Service
	agents map[string]*Agent

	mu        sync.Mutex
	waypoints map[string][]navigation.WaypointCommand
	arrived   map[string]chan struct{}
	samples   int
}

// NewWorld creates one simulated agent per name, placed at its configured start or at the origin
// at waypoint altitude.
func NewWorld(cfg *config.Config, names []string, clk clock.Clock, logger logging.Logger) (*World, error) {
	if len(names) == 0 {
		return nil, errors.New("simulation needs at least one agent")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.New()
	}
	w := &World{
		cfg:       cfg,
		clock:     clk,
		logger:    logger,
		agents:    map[string]*Agent{},
		waypoints: map[string][]navigation.WaypointCommand{},
		arrived:   map[string]chan struct{}{},
	}
	for _, name := range lo.Uniq(names) {
		start := spatialmath.NewPose(0, 0, cfg.Dispatch.WaypointAltitude, 0)
		if pos, ok := cfg.Simulation.Start[name]; ok {
			start = spatialmath.NewPose(pos[0], pos[1], pos[2], 0)
		}
		w.agents[name] = NewAgent(name, start)
		w.arrived[name] = make(chan struct{})
	}
	svc, err := navigation.NewService(cfg, w, navigation.Options{Clock: clk}, logger.Sublogger("navigation"))
	if err != nil {
		return nil, err
	}
	w.svc = svc
	return w, nil
}

// Service returns the navigation service driven by the world.
func (w *World) Service() *navigation.Service {
	return w.svc
}

// Agent returns the simulated agent named name.
func (w *World) Agent(name string) (*Agent, bool) {
	a, ok := w.agents[name]
	return a, ok
}

// PublishWaypoint records the waypoint.
func (w *World) PublishWaypoint(cmd navigation.WaypointCommand) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.waypoints[cmd.AgentID] = append(w.waypoints[cmd.AgentID], cmd)
	w.logger.Debugw("waypoint", "agent", cmd.AgentID, "x", cmd.X, "y", cmd.Y, "z", cmd.Z)
}

// PublishVelocity applies the command to the simulated agent.
func (w *World) PublishVelocity(cmd navigation.VelocityCommand) {
	if a, ok := w.agents[cmd.AgentID]; ok {
		a.SetVelocity(cmd.Linear, cmd.AngularZ)
	}
}

// PublishDone stops the agent at its waypoint.
func (w *World) PublishDone(ev navigation.DoneEvent) {
	if a, ok := w.agents[ev.AgentID]; ok {
		a.SetVelocity(r3.Vector{}, 0)
	}
}

// PublishSample counts diagnostic samples.
func (w *World) PublishSample(navigation.SampleEvent) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.samples++
}

// PublishArrival marks the agent as arrived.
func (w *World) PublishArrival(ev navigation.ArrivalEvent) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if ch, ok := w.arrived[ev.AgentID]; ok {
		select {
		case <-ch:
		default:
			close(ch)
		}
	}
}

func (w *World) poseUpdate(name string, pose spatialmath.Pose) navigation.PoseUpdate {
	return navigation.PoseUpdate{
		AgentID:     name,
		Position:    pose.Position,
		Orientation: spatialmath.QuaternionFromYaw(pose.Yaw),
	}
}

// Run reports every agent's pose, sends the goals and steps all agents until each one with a goal
// arrived, the simulation timeout passed or ctx is cancelled.
func (w *World) Run(ctx context.Context, goals map[string]r2.Point) (*Result, error) {
	defer func() {
		if err := w.svc.Close(context.Background()); err != nil {
			w.logger.Warnw("failed to close navigation service", "error", err)
		}
	}()
	if timeout := w.cfg.Simulation.Timeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = w.clock.WithTimeout(ctx, timeout)
		defer cancel()
	}

	for name, a := range w.agents {
		if err := w.svc.HandlePose(ctx, w.poseUpdate(name, a.Pose())); err != nil {
			return nil, err
		}
	}
	for name, goal := range goals {
		if _, ok := w.agents[name]; !ok {
			return nil, errors.Errorf("goal for unknown simulated agent %q", name)
		}
		if err := w.svc.HandleGoal(ctx, navigation.GoalRequest{AgentID: name, X: goal.X, Y: goal.Y}); err != nil {
			return nil, err
		}
	}

	period := w.cfg.Simulation.StepPeriod
	dt := time.Duration(float64(period) * w.cfg.Simulation.TimeScale)
	g, gctx := errgroup.WithContext(ctx)
	for name := range goals {
		a := w.agents[name]
		arrived := w.arrived[name]
		g.Go(func() error {
			ticker := w.clock.Ticker(period)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return errors.Wrapf(gctx.Err(), "agent %q did not arrive", a.Name())
				case <-arrived:
					return nil
				case <-ticker.C:
				}
				if err := w.svc.HandlePose(gctx, w.poseUpdate(a.Name(), a.Step(dt))); err != nil {
					return err
				}
			}
		})
	}
	err := g.Wait()
	return w.result(), err
}

func (w *World) result() *Result {
	w.mu.Lock()
	defer w.mu.Unlock()
	res := &Result{
		Waypoints: map[string][]navigation.WaypointCommand{},
		Final:     map[string]spatialmath.Pose{},
		Arrived:   map[string]bool{},
		Samples:   w.samples,
	}
	for name, a := range w.agents {
		res.Waypoints[name] = append([]navigation.WaypointCommand(nil), w.waypoints[name]...)
		res.Final[name] = a.Pose()
		select {
		case <-w.arrived[name]:
			res.Arrived[name] = true
		default:
			res.Arrived[name] = false
		}
	}
	return res
}

// Names returns the simulated agent names in order.
func (w *World) Names() []string {
	names := lo.Keys(w.agents)
	sort.Strings(names)
	return names
}
