package motionplan

import (
	"math/rand"
	"sync"

	"github.com/golang/geo/r2"

	"go.viam.com/uavnav/spatialmath"
)

// defaultSampleAttempts is how many candidates a rejection sampler draws before giving up.
const defaultSampleAttempts = 100

// StateSampler draws raw candidate states, valid or not.
type StateSampler interface {
	Uniform() r2.Point
	UniformNear(near r2.Point, distance float64) r2.Point
}

// ValidStateSampler draws states that pass the validity check. The boolean result is false when
// no valid state could be found.
type ValidStateSampler interface {
	Sample() (r2.Point, bool)
	SampleNear(near r2.Point, distance float64) (r2.Point, bool)
}

type uniformStateSampler struct {
	mu     sync.Mutex
	bounds spatialmath.Bounds
	rng    *rand.Rand
}

// NewUniformStateSampler returns a sampler drawing uniformly from bounds using rng.
func NewUniformStateSampler(bounds spatialmath.Bounds, rng *rand.Rand) StateSampler {
	return &uniformStateSampler{bounds: bounds, rng: rng}
}

func (s *uniformStateSampler) Uniform() r2.Point {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bounds.Uniform(s.rng)
}

func (s *uniformStateSampler) UniformNear(near r2.Point, distance float64) r2.Point {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bounds.UniformNear(s.rng, near, distance)
}

// RejectionSampler draws candidates from a StateSampler until one passes the validity check or the
// attempt budget runs out. Every attempt is reported to the emitter, valid or not.
type RejectionSampler struct {
	states   StateSampler
	checker  StateValidityChecker
	emitter  SampleEmitter
	phases   *PhaseTracker
	attempts int
}

// NewRejectionSampler returns a RejectionSampler. A non-positive attempts value uses the default
// budget; nil emitter or phases disable diagnostics or start a fresh episode respectively.
func NewRejectionSampler(
	states StateSampler,
	checker StateValidityChecker,
	emitter SampleEmitter,
	phases *PhaseTracker,
	attempts int,
) *RejectionSampler {
	if attempts <= 0 {
		attempts = defaultSampleAttempts
	}
	if emitter == nil {
		emitter = NewNoopEmitter()
	}
	if phases == nil {
		phases = NewPhaseTracker()
	}
	return &RejectionSampler{
		states:   states,
		checker:  checker,
		emitter:  emitter,
		phases:   phases,
		attempts: attempts,
	}
}

// Attempts returns the attempt budget.
func (rs *RejectionSampler) Attempts() int {
	return rs.attempts
}

// Sample draws uniformly until a valid state is found.
func (rs *RejectionSampler) Sample() (r2.Point, bool) {
	return rs.draw(rs.states.Uniform)
}

// SampleNear draws within distance of near until a valid state is found.
func (rs *RejectionSampler) SampleNear(near r2.Point, distance float64) (r2.Point, bool) {
	return rs.draw(func() r2.Point {
		return rs.states.UniformNear(near, distance)
	})
}

func (rs *RejectionSampler) draw(candidate func() r2.Point) (r2.Point, bool) {
	var pt r2.Point
	for attempt := 0; attempt < rs.attempts; attempt++ {
		pt = candidate()
		if rs.checker(pt) {
			rs.emitter.EmitSample(SampleEvent{Position: pt, Valid: true, Phase: rs.phases.Next()})
			return pt, true
		}
		rs.emitter.EmitSample(SampleEvent{Position: pt, Valid: false, Phase: PhaseInvalid})
	}
	return pt, false
}
