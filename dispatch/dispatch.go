// Package dispatch owns one waypoint queue per agent and hands waypoints out one at a time, each
// released only after the previous one was acknowledged.
package dispatch

import (
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r2"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"go.viam.com/uavnav/logging"
	"go.viam.com/uavnav/motionplan"
)

// ErrStalePlan is returned when a path arrives for a planning episode that has been superseded.
var ErrStalePlan = errors.New("path belongs to a superseded planning episode")

// maxHistory bounds the status history kept per agent.
const maxHistory = 64

// State is where an agent's queue is in its lifecycle.
type State uint8

const (
	// StateIdle means there is no active path.
	StateIdle State = iota
	// StatePlanning means a planning episode is in flight.
	StatePlanning
	// StateDispatching means waypoints of a path are being handed out.
	StateDispatching
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePlanning:
		return "planning"
	case StateDispatching:
		return "dispatching"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// Reasons recorded when a queue returns to idle or a plan is dropped.
const (
	ReasonSucceeded  = "succeeded"
	ReasonNoPath     = "no_path"
	ReasonSuperseded = "superseded"
)

// Generation identifies a planning episode of one agent. Later episodes have larger generations.
type Generation uint64

// Step is one dispatched waypoint.
type Step struct {
	Agent      string
	PlanID     uuid.UUID
	Generation Generation
	Waypoint   r2.Point
	// Index is the waypoint's position in its path.
	Index int
	// Last is set on the final waypoint of the path.
	Last bool
}

// Completion reports that the final waypoint of a path was acknowledged.
type Completion struct {
	Agent  string
	PlanID uuid.UUID
	Final  r2.Point
}

// Publisher receives what the dispatcher releases. Calls for one agent never overlap and arrive
// in release order. They are made without any dispatcher lock held, so a Publisher may call back
// into the dispatcher; whatever such a call releases is published once the current call returns.
type Publisher interface {
	PublishStep(Step)
	PublishCompletion(Completion)
}

// StatusEntry is one transition in an agent's history.
type StatusEntry struct {
	PlanID    uuid.UUID
	State     State
	Reason    string
	Timestamp time.Time
}

// Status is a snapshot of an agent's queue.
type Status struct {
	Agent      string
	State      State
	PlanID     uuid.UUID
	Generation Generation
	Remaining  int
	History    []StatusEntry
}

// release is a step or completion waiting to be published.
type release struct {
	gen        Generation
	step       Step
	completion *Completion
}

type queue struct {
	mu         sync.Mutex
	state      State
	gen        Generation
	planID     uuid.UUID
	path       motionplan.Path
	dispatched int
	last       r2.Point
	history    []StatusEntry

	// outbox holds releases in order until the draining goroutine publishes them.
	outbox   []release
	draining bool
}

// enqueue must be called with q.mu held. It reports whether the caller has to drain the outbox.
func (q *queue) enqueue(r release) bool {
	q.outbox = append(q.outbox, r)
	if q.draining {
		return false
	}
	q.draining = true
	return true
}

// Dispatcher manages the per-agent queues.
type Dispatcher struct {
	clock     clock.Clock
	publisher Publisher
	logger    logging.Logger

	mu     sync.Mutex
	queues map[string]*queue
}

// NewDispatcher returns a Dispatcher. A nil clock uses the wall clock.
func NewDispatcher(publisher Publisher, clk clock.Clock, logger logging.Logger) *Dispatcher {
	if clk == nil {
		clk = clock.New()
	}
	return &Dispatcher{
		clock:     clk,
		publisher: publisher,
		logger:    logger,
		queues:    map[string]*queue{},
	}
}

func (d *Dispatcher) queue(agent string) *queue {
	d.mu.Lock()
	defer d.mu.Unlock()
	q, ok := d.queues[agent]
	if !ok {
		q = &queue{}
		d.queues[agent] = q
	}
	return q
}

func (d *Dispatcher) record(q *queue, state State, reason string) {
	q.state = state
	q.history = append(q.history, StatusEntry{
		PlanID:    q.planID,
		State:     state,
		Reason:    reason,
		Timestamp: d.clock.Now(),
	})
	if len(q.history) > maxHistory {
		q.history = q.history[len(q.history)-maxHistory:]
	}
}

// BeginPlanning starts a new planning episode for agent. Any remaining waypoints are discarded and
// results for earlier episodes will be rejected.
func (d *Dispatcher) BeginPlanning(agent string) (Generation, uuid.UUID) {
	q := d.queue(agent)
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.state != StateIdle {
		d.record(q, q.state, ReasonSuperseded)
		d.logger.Debugw("superseding plan", "agent", agent, "plan_id", q.planID, "remaining", len(q.path))
	}
	q.gen++
	q.planID = uuid.New()
	q.path = nil
	q.dispatched = 0
	d.record(q, StatePlanning, "")
	return q.gen, q.planID
}

// IsCurrent reports whether gen is the latest planning episode of agent.
func (d *Dispatcher) IsCurrent(agent string, gen Generation) bool {
	q := d.queue(agent)
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.gen == gen
}

// SetPath replaces the agent's queue with path and immediately dispatches its first waypoint.
// An empty path leaves the agent idle. Paths from superseded episodes are rejected with
// ErrStalePlan and leave the queue untouched.
func (d *Dispatcher) SetPath(agent string, gen Generation, path motionplan.Path) error {
	q := d.queue(agent)
	q.mu.Lock()
	if q.gen != gen {
		current := q.gen
		q.mu.Unlock()
		return errors.Wrapf(ErrStalePlan, "agent %q generation %d, current %d", agent, gen, current)
	}
	q.path = path.Copy()
	q.dispatched = 0
	if len(q.path) == 0 {
		d.record(q, StateIdle, ReasonNoPath)
		q.mu.Unlock()
		d.logger.Infow("no path to dispatch", "agent", agent)
		return nil
	}
	d.record(q, StateDispatching, "")
	step, _, _ := d.pop(agent, q)
	drain := q.enqueue(release{gen: gen, step: step})
	q.mu.Unlock()

	if drain {
		d.drain(agent, q)
	}
	return nil
}

// Fail records that the planning episode gen found no path. It returns false for a superseded
// episode.
func (d *Dispatcher) Fail(agent string, gen Generation) bool {
	q := d.queue(agent)
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.gen != gen {
		return false
	}
	q.path = nil
	d.record(q, StateIdle, ReasonNoPath)
	return true
}

// DispatchNext releases the agent's next waypoint. With an empty queue nothing is published and
// false is returned; this means the agent either arrived or has no path. When another goroutine
// is already publishing for agent, the step is handed to it and published after its current call.
func (d *Dispatcher) DispatchNext(agent string) (Step, bool) {
	q := d.queue(agent)
	q.mu.Lock()
	step, completion, ok := d.pop(agent, q)
	var drain bool
	if ok || completion != nil {
		drain = q.enqueue(release{gen: q.gen, step: step, completion: completion})
	}
	q.mu.Unlock()

	if drain {
		d.drain(agent, q)
	}
	return step, ok
}

// OnStepAcknowledged advances the agent's queue after it reached the previous waypoint.
func (d *Dispatcher) OnStepAcknowledged(agent string) (Step, bool) {
	return d.DispatchNext(agent)
}

// drain publishes the agent's outbox until it is empty. Releases whose planning episode was
// superseded by the time they reach the front are dropped, so nothing from an older episode is
// published after a release of a newer one.
func (d *Dispatcher) drain(agent string, q *queue) {
	for {
		q.mu.Lock()
		if len(q.outbox) == 0 {
			q.draining = false
			q.mu.Unlock()
			return
		}
		r := q.outbox[0]
		q.outbox = q.outbox[1:]
		current := q.gen
		q.mu.Unlock()

		switch {
		case r.gen != current:
			d.logger.Debugw("dropping release of superseded plan", "agent", agent, "generation", r.gen, "current", current)
		case r.completion != nil:
			d.publisher.PublishCompletion(*r.completion)
		default:
			d.publisher.PublishStep(r.step)
		}
	}
}

// pop must be called with q.mu held.
func (d *Dispatcher) pop(agent string, q *queue) (Step, *Completion, bool) {
	if len(q.path) == 0 {
		d.logger.Infow("either agent arrived or no path found", "agent", agent)
		if q.state == StateDispatching {
			d.record(q, StateIdle, ReasonSucceeded)
			return Step{}, &Completion{Agent: agent, PlanID: q.planID, Final: q.last}, false
		}
		return Step{}, nil, false
	}
	wp := q.path[0]
	q.path = q.path[1:]
	step := Step{
		Agent:      agent,
		PlanID:     q.planID,
		Generation: q.gen,
		Waypoint:   wp,
		Index:      q.dispatched,
		Last:       len(q.path) == 0,
	}
	q.dispatched++
	q.last = wp
	return step, nil, true
}

// Status returns a snapshot of agent's queue.
func (d *Dispatcher) Status(agent string) (Status, bool) {
	d.mu.Lock()
	q, ok := d.queues[agent]
	d.mu.Unlock()
	if !ok {
		return Status{}, false
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	history := make([]StatusEntry, len(q.history))
	copy(history, q.history)
	return Status{
		Agent:      agent,
		State:      q.state,
		PlanID:     q.planID,
		Generation: q.gen,
		Remaining:  len(q.path),
		History:    history,
	}, true
}
