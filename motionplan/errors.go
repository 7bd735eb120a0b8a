package motionplan

import "github.com/pkg/errors"

var (
	errPlannerFailed = errors.New("motion planner failed to find path")

	// ErrSamplingExhausted is returned when a rejection sampler spends its whole attempt budget
	// without drawing a valid state.
	ErrSamplingExhausted = errors.New("sampler attempt budget exhausted without a valid state")

	errNoPlannerOptions = errors.New("planner options must not be nil")
)

// NewPlannerFailedError returns the error reported when no path is found before termination.
func NewPlannerFailedError() error {
	return errPlannerFailed
}

// IsPlannerFailed reports whether err means the planner terminated without a path.
func IsPlannerFailed(err error) bool {
	return errors.Is(err, errPlannerFailed)
}

func newInvalidEndpointError(which string, pt interface{}) error {
	return errors.Errorf("%s state %v is not valid", which, pt)
}

func newOutOfBoundsError(which string, pt interface{}) error {
	return errors.Errorf("%s state %v is outside the workspace bounds", which, pt)
}
