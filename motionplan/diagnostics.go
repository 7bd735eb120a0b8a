package motionplan

import (
	"github.com/golang/geo/r2"
	"go.uber.org/atomic"
)

// Phase tags a diagnostic sample for visualization. The numeric values are part of the wire
// format consumed by visualization tools.
type Phase int

const (
	// PhaseInvalid marks a candidate that failed the validity check.
	PhaseInvalid Phase = -99
	// PhaseFirst marks the first valid sample of a pair.
	PhaseFirst Phase = 0
	// PhaseSecond marks the second valid sample of a pair.
	PhaseSecond Phase = 99
)

func (p Phase) String() string {
	switch p {
	case PhaseInvalid:
		return "invalid"
	case PhaseFirst:
		return "first"
	case PhaseSecond:
		return "second"
	default:
		return "unknown"
	}
}

// SampleEvent is a diagnostic record of one sampler attempt.
type SampleEvent struct {
	Position r2.Point
	Valid    bool
	Phase    Phase
}

// SampleEmitter receives diagnostic sample events. Implementations must not block planning and
// may drop events.
type SampleEmitter interface {
	EmitSample(SampleEvent)
}

type noopEmitter struct{}

func (noopEmitter) EmitSample(SampleEvent) {}

// NewNoopEmitter returns an emitter that discards every event.
func NewNoopEmitter() SampleEmitter {
	return noopEmitter{}
}

// ChannelEmitter forwards events to a buffered channel, dropping them when the channel is full.
type ChannelEmitter struct {
	events  chan SampleEvent
	dropped atomic.Uint64
}

// NewChannelEmitter returns a ChannelEmitter with the given buffer size.
func NewChannelEmitter(size int) *ChannelEmitter {
	return &ChannelEmitter{events: make(chan SampleEvent, size)}
}

// EmitSample enqueues ev without blocking.
func (ce *ChannelEmitter) EmitSample(ev SampleEvent) {
	select {
	case ce.events <- ev:
	default:
		ce.dropped.Inc()
	}
}

// Events returns the channel events are delivered on.
func (ce *ChannelEmitter) Events() <-chan SampleEvent {
	return ce.events
}

// Dropped returns how many events were discarded because the buffer was full.
func (ce *ChannelEmitter) Dropped() uint64 {
	return ce.dropped.Load()
}

// PhaseTracker hands out the alternating phase of valid samples within one planning episode.
// It is safe for concurrent use.
type PhaseTracker struct {
	second atomic.Bool
}

// NewPhaseTracker returns a tracker whose first valid sample is PhaseFirst.
func NewPhaseTracker() *PhaseTracker {
	return &PhaseTracker{}
}

// Next flips the toggle exactly once and returns the phase for the valid sample being reported.
func (pt *PhaseTracker) Next() Phase {
	if pt.second.Toggle() {
		return PhaseSecond
	}
	return PhaseFirst
}
