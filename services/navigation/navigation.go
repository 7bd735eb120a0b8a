// Package navigation is the top level uavnav service. It ingests perception, goal, pose and
// acknowledgment messages, plans paths in the background, dispatches waypoints one at a time and
// closes each agent's control loop.
package navigation

import (
	"context"
	"math/rand"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	goutils "go.viam.com/utils"

	"go.viam.com/uavnav/config"
	"go.viam.com/uavnav/control"
	"go.viam.com/uavnav/dispatch"
	"go.viam.com/uavnav/logging"
	"go.viam.com/uavnav/motionplan"
	"go.viam.com/uavnav/perception"
	"go.viam.com/uavnav/spatialmath"
)

var errClosed = errors.New("navigation service is closed")

// Options are the optional collaborators of a Service.
type Options struct {
	// Clock drives planning deadlines and status timestamps. Defaults to the wall clock.
	Clock clock.Clock
	// Planner replaces the reference RRT-Connect planner.
	Planner motionplan.Planner
}

// AgentStatus is a snapshot of one agent.
type AgentStatus struct {
	Dispatch dispatch.Status
	Tracker  control.Snapshot
	// Planning is set while a background planning episode runs for the agent.
	Planning           bool
	PlanningGeneration dispatch.Generation
}

// Service wires perception, planning, dispatch and control together.
type Service struct {
	cfg       *config.Config
	publisher Publisher
	logger    logging.Logger

	perception *perception.Registry
	agents     *control.Registry
	dispatcher *dispatch.Dispatcher
	planner    *motionplan.PlanManager
	samples    *motionplan.ChannelEmitter
	static     []motionplan.Obstacle

	workers *goutils.StoppableWorkers
	closed  atomic.Bool

	mu        sync.Mutex
	inFlight  map[string]planning
	lastPaths map[string][]r3.Vector
}

// planning is the background planning episode currently running for an agent.
type planning struct {
	gen    dispatch.Generation
	cancel context.CancelFunc
}

// NewService builds a Service from cfg and registers every configured agent.
func NewService(cfg *config.Config, publisher Publisher, opts Options, logger logging.Logger) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	plannerOpts, err := cfg.PlannerOptions()
	if err != nil {
		return nil, err
	}
	agents, err := control.NewRegistry(cfg.Controller, cfg.Agents.Strict, logger.Sublogger("control"))
	if err != nil {
		return nil, err
	}

	bufSize := cfg.Sampler.EventBuffer
	samples := motionplan.NewChannelEmitter(bufSize)
	//nolint:gosec
	seed := rand.New(rand.NewSource(cfg.Planner.Seed))
	pm, err := motionplan.NewPlanManager(opts.Planner, plannerOpts, opts.Clock, samples, seed, logger.Sublogger("motionplan"))
	if err != nil {
		return nil, err
	}

	svc := &Service{
		cfg:        cfg,
		publisher:  publisher,
		logger:     logger,
		perception: perception.NewRegistry(cfg.PerceptionConfig(), logger.Sublogger("perception")),
		agents:     agents,
		planner:    pm,
		samples:    samples,
		static:     cfg.StaticObstacles(),
		inFlight:   map[string]planning{},
		lastPaths:  map[string][]r3.Vector{},
	}
	svc.dispatcher = dispatch.NewDispatcher((*dispatchPublisher)(svc), opts.Clock, logger.Sublogger("dispatch"))

	agents.Register(cfg.Agents.Self)
	for _, name := range cfg.Agents.Names {
		agents.Register(name)
	}

	svc.workers = goutils.NewBackgroundStoppableWorkers(svc.forwardSamples)
	return svc, nil
}

// forwardSamples publishes sampler diagnostics until the service stops.
func (svc *Service) forwardSamples(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-svc.samples.Events():
			svc.publisher.PublishSample(sampleEvent(ev))
		}
	}
}

func (svc *Service) malformed(kind string, err error) error {
	svc.logger.Warnw("ignoring malformed message", "kind", kind, "error", err)
	return errors.Wrapf(err, "malformed %s", kind)
}

// HandlePerception applies a perception update and registers newly seen agents.
func (svc *Service) HandlePerception(ctx context.Context, msg PerceptionUpdate) error {
	if svc.closed.Load() {
		return errClosed
	}
	if err := msg.Validate(); err != nil {
		return svc.malformed("perception update", err)
	}
	res, err := svc.perception.Update(msg.toEntities())
	if err != nil {
		return svc.malformed("perception update", err)
	}
	for _, name := range res.NewAgents {
		svc.agents.Register(name)
	}
	if res.Applied {
		svc.logger.CDebugw(ctx, "obstacles updated", "added", len(res.NewObstacles), "agents", res.NewAgents)
	}
	return nil
}

// HandleGoal starts a planning episode toward (X, Y) for the agent, discarding whatever the agent
// was doing. The path is dispatched once planning finishes.
func (svc *Service) HandleGoal(ctx context.Context, msg GoalRequest) error {
	if svc.closed.Load() {
		return errClosed
	}
	if err := msg.Validate(); err != nil {
		return svc.malformed("goal request", err)
	}
	if _, err := svc.agents.LookupOrCreate(msg.AgentID); err != nil {
		return err
	}

	agent := msg.AgentID
	gen, planID := svc.dispatcher.BeginPlanning(agent)
	start, ok := svc.perception.Pose(agent)
	if !ok {
		svc.logger.Warnw("no pose known for agent, cannot plan", "agent", agent)
		svc.dispatcher.Fail(agent, gen)
		return nil
	}
	goal := spatialmath.NewPose(msg.X, msg.Y, svc.cfg.Dispatch.WaypointAltitude, 0)
	obstacles := append(svc.perception.Obstacles(), svc.static...)

	svc.mu.Lock()
	if prev, ok := svc.inFlight[agent]; ok {
		prev.cancel()
	}
	planCtx, cancel := context.WithCancel(logging.CarryDebugMode(svc.workers.Context(), ctx))
	svc.inFlight[agent] = planning{gen: gen, cancel: cancel}
	svc.mu.Unlock()

	svc.logger.CDebugw(ctx, "planning", "agent", agent, "plan_id", planID, "start", start, "goal", goal)
	svc.workers.Add(func(context.Context) {
		defer svc.finishPlanning(agent, gen, cancel)
		path, ok := svc.planner.Plan(planCtx, start, goal, obstacles)
		if !ok {
			if svc.dispatcher.Fail(agent, gen) {
				svc.logger.Infow("no path found", "agent", agent, "plan_id", planID)
			}
			return
		}
		if err := svc.dispatcher.SetPath(agent, gen, path); err != nil {
			svc.logger.Debugw("dropping path", "agent", agent, "error", err)
			return
		}
		svc.mu.Lock()
		svc.lastPaths[agent] = liftPath(path, svc.cfg.Dispatch.WaypointAltitude)
		svc.mu.Unlock()
	})
	return nil
}

// finishPlanning releases the episode gen. A newer episode registered in the meantime is kept.
func (svc *Service) finishPlanning(agent string, gen dispatch.Generation, cancel context.CancelFunc) {
	cancel()
	svc.mu.Lock()
	defer svc.mu.Unlock()
	if cur, ok := svc.inFlight[agent]; ok && cur.gen == gen {
		delete(svc.inFlight, agent)
	}
}


// HandleStepAck advances the agent's waypoint queue.
func (svc *Service) HandleStepAck(ctx context.Context, msg StepAck) error {
	if svc.closed.Load() {
		return errClosed
	}
	if err := msg.Validate(); err != nil {
		return svc.malformed("step acknowledgment", err)
	}
	svc.dispatcher.OnStepAcknowledged(msg.AgentID)
	return nil
}

// HandlePose feeds a measured pose to the agent's controller and publishes the resulting velocity
// command and, on arrival, a done event.
func (svc *Service) HandlePose(ctx context.Context, msg PoseUpdate) error {
	if svc.closed.Load() {
		return errClosed
	}
	if err := msg.Validate(); err != nil {
		return svc.malformed("pose update", err)
	}
	agent, err := svc.agents.LookupOrCreate(msg.AgentID)
	if err != nil {
		return err
	}
	pose := msg.Pose()
	svc.perception.UpdatePose(msg.AgentID, pose)

	out := agent.HandlePose(pose)
	if out.Done != nil {
		svc.publisher.PublishDone(DoneEvent{AgentID: out.Done.Agent, Position: out.Done.Position})
	}
	if out.HasVelocity {
		svc.publisher.PublishVelocity(VelocityCommand{
			AgentID:  msg.AgentID,
			Linear:   out.Velocity.Linear,
			AngularZ: out.Velocity.AngularZ,
		})
	}
	if out.Done != nil && svc.cfg.Dispatch.AutoAcknowledge {
		svc.dispatcher.OnStepAcknowledged(msg.AgentID)
	}
	return nil
}

// Status returns the dispatch and tracking state of agent.
func (svc *Service) Status(agent string) (AgentStatus, bool) {
	tracker, ok := svc.agents.Lookup(agent)
	if !ok {
		return AgentStatus{}, false
	}
	status, _ := svc.dispatcher.Status(agent)
	svc.mu.Lock()
	cur, running := svc.inFlight[agent]
	svc.mu.Unlock()
	return AgentStatus{
		Dispatch:           status,
		Tracker:            tracker.Snapshot(),
		Planning:           running,
		PlanningGeneration: cur.gen,
	}, true
}

// LastPath returns the most recent path dispatched to agent, lifted to waypoint altitude.
func (svc *Service) LastPath(agent string) ([]r3.Vector, bool) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	path, ok := svc.lastPaths[agent]
	return path, ok
}

// Obstacles returns the perceived and static obstacles.
func (svc *Service) Obstacles() []motionplan.Obstacle {
	return append(svc.perception.Obstacles(), svc.static...)
}

// Agents returns the names of all registered agents.
func (svc *Service) Agents() []string {
	return svc.agents.Names()
}

// DroppedSamples returns how many diagnostic samples were dropped because publishing fell behind.
func (svc *Service) DroppedSamples() uint64 {
	return svc.samples.Dropped()
}

// Close cancels in-flight planning and waits for background work to stop.
func (svc *Service) Close(ctx context.Context) error {
	if !svc.closed.CompareAndSwap(false, true) {
		return nil
	}
	svc.workers.Stop()
	return nil
}

// dispatchPublisher turns dispatcher output into outbound messages and controller goals.
type dispatchPublisher Service

func (dp *dispatchPublisher) PublishStep(step dispatch.Step) {
	svc := (*Service)(dp)
	if !svc.dispatcher.IsCurrent(step.Agent, step.Generation) {
		svc.logger.Debugw("dropping waypoint of superseded plan", "agent", step.Agent, "plan_id", step.PlanID)
		return
	}
	cmd := waypointCommand(step, svc.cfg.Dispatch.WaypointAltitude)
	svc.publisher.PublishWaypoint(cmd)

	agent, err := svc.agents.LookupOrCreate(step.Agent)
	if err != nil {
		svc.logger.Warnw("dispatched waypoint for unknown agent", "agent", step.Agent, "error", err)
		return
	}
	// the controller already sits on this goal and will never report it done again
	if agent.SetGoal(goalPose(cmd)) == control.GoalAlreadyReached && svc.cfg.Dispatch.AutoAcknowledge {
		svc.logger.Debugw("waypoint already reached", "agent", step.Agent, "waypoint", cmd)
		svc.dispatcher.OnStepAcknowledged(step.Agent)
	}
}

func (dp *dispatchPublisher) PublishCompletion(c dispatch.Completion) {
	svc := (*Service)(dp)
	svc.logger.Infow("agent arrived", "agent", c.Agent, "plan_id", c.PlanID)
	svc.publisher.PublishArrival(ArrivalEvent{
		AgentID:  c.Agent,
		Position: r3.Vector{X: c.Final.X, Y: c.Final.Y, Z: svc.cfg.Dispatch.WaypointAltitude},
	})
}
