package dispatch

import (
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r2"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/uavnav/logging"
	"go.viam.com/uavnav/motionplan"
)

type recordingPublisher struct {
	mu          sync.Mutex
	steps       []Step
	completions []Completion
}

func (rp *recordingPublisher) PublishStep(s Step) {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	rp.steps = append(rp.steps, s)
}

func (rp *recordingPublisher) PublishCompletion(c Completion) {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	rp.completions = append(rp.completions, c)
}

func (rp *recordingPublisher) waypoints() []r2.Point {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	out := make([]r2.Point, 0, len(rp.steps))
	for _, s := range rp.steps {
		out = append(out, s.Waypoint)
	}
	return out
}

var (
	p1 = r2.Point{X: 1, Y: 1}
	p2 = r2.Point{X: 2, Y: 2}
	p3 = r2.Point{X: 3, Y: 3}
)

func TestDispatchDrainsInOrder(t *testing.T) {
	pub := &recordingPublisher{}
	d := NewDispatcher(pub, clock.NewMock(), logging.NewTestLogger(t))

	gen, planID := d.BeginPlanning("uav")
	test.That(t, d.SetPath("uav", gen, motionplan.Path{p1, p2, p3}), test.ShouldBeNil)
	test.That(t, pub.waypoints(), test.ShouldResemble, []r2.Point{p1})

	step, ok := d.OnStepAcknowledged("uav")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, step.Index, test.ShouldEqual, 1)
	test.That(t, step.Last, test.ShouldBeFalse)
	test.That(t, step.PlanID, test.ShouldEqual, planID)

	step, ok = d.OnStepAcknowledged("uav")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, step.Last, test.ShouldBeTrue)
	test.That(t, pub.waypoints(), test.ShouldResemble, []r2.Point{p1, p2, p3})

	// acknowledging the last waypoint completes the path exactly once
	_, ok = d.OnStepAcknowledged("uav")
	test.That(t, ok, test.ShouldBeFalse)
	_, ok = d.OnStepAcknowledged("uav")
	test.That(t, ok, test.ShouldBeFalse)
	test.That(t, pub.waypoints(), test.ShouldHaveLength, 3)
	test.That(t, pub.completions, test.ShouldResemble, []Completion{{Agent: "uav", PlanID: planID, Final: p3}})

	status, ok := d.Status("uav")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, status.State, test.ShouldEqual, StateIdle)
	test.That(t, status.Remaining, test.ShouldEqual, 0)
	last := status.History[len(status.History)-1]
	test.That(t, last.Reason, test.ShouldEqual, ReasonSucceeded)
}

func TestDispatchEmptyIsNotFatal(t *testing.T) {
	pub := &recordingPublisher{}
	d := NewDispatcher(pub, nil, logging.NewTestLogger(t))

	_, ok := d.DispatchNext("ghost")
	test.That(t, ok, test.ShouldBeFalse)
	test.That(t, pub.steps, test.ShouldBeEmpty)
	test.That(t, pub.completions, test.ShouldBeEmpty)

	gen, _ := d.BeginPlanning("uav")
	test.That(t, d.SetPath("uav", gen, motionplan.Path{}), test.ShouldBeNil)
	test.That(t, pub.steps, test.ShouldBeEmpty)
	status, _ := d.Status("uav")
	test.That(t, status.State, test.ShouldEqual, StateIdle)
	test.That(t, status.History[len(status.History)-1].Reason, test.ShouldEqual, ReasonNoPath)
}

func TestNewGoalDiscardsQueue(t *testing.T) {
	pub := &recordingPublisher{}
	d := NewDispatcher(pub, clock.NewMock(), logging.NewTestLogger(t))

	gen, _ := d.BeginPlanning("uav")
	test.That(t, d.SetPath("uav", gen, motionplan.Path{p1, p2, p3}), test.ShouldBeNil)

	gen2, _ := d.BeginPlanning("uav")
	test.That(t, gen2, test.ShouldBeGreaterThan, gen)
	status, _ := d.Status("uav")
	test.That(t, status.State, test.ShouldEqual, StatePlanning)
	test.That(t, status.Remaining, test.ShouldEqual, 0)
	want := []StatusEntry{
		{State: StatePlanning},
		{State: StateDispatching},
		{State: StateDispatching, Reason: ReasonSuperseded},
		{State: StatePlanning},
	}
	diff := cmp.Diff(want, status.History, cmpopts.IgnoreFields(StatusEntry{}, "PlanID", "Timestamp"))
	test.That(t, diff, test.ShouldBeEmpty)

	// acks during planning dispatch nothing and complete nothing
	_, ok := d.OnStepAcknowledged("uav")
	test.That(t, ok, test.ShouldBeFalse)
	test.That(t, pub.completions, test.ShouldBeEmpty)

	// the superseded episode's result is dropped
	err := d.SetPath("uav", gen, motionplan.Path{p3})
	test.That(t, errors.Is(err, ErrStalePlan), test.ShouldBeTrue)
	test.That(t, d.IsCurrent("uav", gen), test.ShouldBeFalse)
	test.That(t, d.Fail("uav", gen), test.ShouldBeFalse)

	test.That(t, d.SetPath("uav", gen2, motionplan.Path{p2}), test.ShouldBeNil)
	test.That(t, pub.waypoints(), test.ShouldResemble, []r2.Point{p1, p2})
}

func TestDispatchAgentsAreIndependent(t *testing.T) {
	pub := &recordingPublisher{}
	d := NewDispatcher(pub, clock.NewMock(), logging.NewTestLogger(t))

	genA, _ := d.BeginPlanning("uav1")
	genB, _ := d.BeginPlanning("uav2")
	test.That(t, d.SetPath("uav1", genA, motionplan.Path{p1, p2}), test.ShouldBeNil)
	test.That(t, d.SetPath("uav2", genB, motionplan.Path{p3}), test.ShouldBeNil)

	step, ok := d.OnStepAcknowledged("uav1")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, step.Agent, test.ShouldEqual, "uav1")
	test.That(t, step.Waypoint, test.ShouldResemble, p2)

	statusB, _ := d.Status("uav2")
	test.That(t, statusB.State, test.ShouldEqual, StateDispatching)
}

func TestDispatchHistoryTimestamps(t *testing.T) {
	clk := clock.NewMock()
	d := NewDispatcher(&recordingPublisher{}, clk, logging.NewTestLogger(t))

	gen, _ := d.BeginPlanning("uav")
	clk.Add(time.Second)
	test.That(t, d.Fail("uav", gen), test.ShouldBeTrue)

	status, _ := d.Status("uav")
	test.That(t, status.History, test.ShouldHaveLength, 2)
	test.That(t, status.History[0].State, test.ShouldEqual, StatePlanning)
	test.That(t, status.History[1].Timestamp.Sub(status.History[0].Timestamp), test.ShouldEqual, time.Second)
	test.That(t, StateDispatching.String(), test.ShouldEqual, "dispatching")
}

// blockingPublisher records like recordingPublisher but holds its first PublishStep call until
// released.
type blockingPublisher struct {
	recordingPublisher
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func newBlockingPublisher() *blockingPublisher {
	return &blockingPublisher{entered: make(chan struct{}), release: make(chan struct{})}
}

func (bp *blockingPublisher) PublishStep(s Step) {
	bp.recordingPublisher.PublishStep(s)
	first := false
	bp.once.Do(func() { first = true })
	if first {
		close(bp.entered)
		<-bp.release
	}
}

func TestStalledPublishDropsSupersededSteps(t *testing.T) {
	pub := newBlockingPublisher()
	d := NewDispatcher(pub, clock.NewMock(), logging.NewTestLogger(t))
	stale := r2.Point{X: -9, Y: -9}
	fresh := r2.Point{X: 4, Y: 4}

	gen0, _ := d.BeginPlanning("uav")
	done := make(chan error)
	go func() {
		done <- d.SetPath("uav", gen0, motionplan.Path{p1, p2})
	}()
	<-pub.entered

	// everything below is released while p1 is still being published
	step, ok := d.OnStepAcknowledged("uav")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, step.Waypoint, test.ShouldResemble, p2)
	test.That(t, step.Generation, test.ShouldEqual, gen0)

	gen1, _ := d.BeginPlanning("uav")
	test.That(t, d.SetPath("uav", gen1, motionplan.Path{stale}), test.ShouldBeNil)
	gen2, _ := d.BeginPlanning("uav")
	test.That(t, d.SetPath("uav", gen2, motionplan.Path{fresh}), test.ShouldBeNil)

	close(pub.release)
	test.That(t, <-done, test.ShouldBeNil)

	test.That(t, pub.waypoints(), test.ShouldResemble, []r2.Point{p1, fresh})
	pub.mu.Lock()
	last := pub.steps[len(pub.steps)-1]
	pub.mu.Unlock()
	test.That(t, last.Generation, test.ShouldEqual, gen2)

	// the queue is idle again for the next release
	_, ok = d.OnStepAcknowledged("uav")
	test.That(t, ok, test.ShouldBeFalse)
	test.That(t, pub.completions, test.ShouldHaveLength, 1)
	test.That(t, pub.completions[0].Final, test.ShouldResemble, fresh)
}

func TestConcurrentAcksPublishInOrder(t *testing.T) {
	pub := &recordingPublisher{}
	d := NewDispatcher(pub, clock.NewMock(), logging.NewTestLogger(t))

	const n = 50
	path := make(motionplan.Path, n)
	for i := range path {
		path[i] = r2.Point{X: float64(i)}
	}
	gen, _ := d.BeginPlanning("uav")
	test.That(t, d.SetPath("uav", gen, path), test.ShouldBeNil)

	var wg sync.WaitGroup
	for i := 0; i < n-1; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.OnStepAcknowledged("uav")
		}()
	}
	wg.Wait()

	test.That(t, pub.waypoints(), test.ShouldResemble, []r2.Point(path))
}

// ackingPublisher acknowledges every step from inside PublishStep.
type ackingPublisher struct {
	recordingPublisher
	d *Dispatcher
}

func (ap *ackingPublisher) PublishStep(s Step) {
	ap.recordingPublisher.PublishStep(s)
	ap.d.OnStepAcknowledged(s.Agent)
}

func TestPublisherMayCallBack(t *testing.T) {
	pub := &ackingPublisher{}
	d := NewDispatcher(pub, clock.NewMock(), logging.NewTestLogger(t))
	pub.d = d

	gen, planID := d.BeginPlanning("uav")
	test.That(t, d.SetPath("uav", gen, motionplan.Path{p1, p2, p3}), test.ShouldBeNil)
	test.That(t, pub.waypoints(), test.ShouldResemble, []r2.Point{p1, p2, p3})
	test.That(t, pub.completions, test.ShouldResemble, []Completion{{Agent: "uav", PlanID: planID, Final: p3}})
}
