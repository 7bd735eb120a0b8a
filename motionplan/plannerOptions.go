package motionplan

import (
	"runtime"
	"time"

	"go.viam.com/uavnav/spatialmath"
)

// default values for planning options.
const (
	// workspace half-width; the default workspace is [-10, 10] on both axes.
	defaultWorkspaceExtent = 10.

	// planning stops once this much time has passed since the request.
	defaultPlanningDeadline = time.Second

	// hard cap for a whole planning episode.
	defaultSolveBudget = 5 * time.Second

	// motions are checked every this many units of travel.
	defaultResolution = 0.05

	// maximum length of a single tree extension.
	defaultStepSize = 0.5

	// number of planner iterations before giving up.
	defaultPlanIter = 20000

	// number of times to try to shortcut the path.
	defaultSmoothIter = 50

	// iterations sampling near the growing frontier before mixing in uniform samples.
	defaultIterBeforeRand = 20

	// radius used when sampling near an existing tree node.
	defaultNearDistance = 2.0

	// two states closer than this are treated as the same state.
	defaultIdentDist = 1e-6
)

var defaultNumThreads = max(runtime.NumCPU()/2, 1)

// PlannerOptions holds the tunables of a planning episode.
type PlannerOptions struct {
	Bounds spatialmath.Bounds

	// Time since the request after which the planner must stop.
	PlanningDeadline time.Duration `json:"planning_deadline"`

	// Upper bound on the whole episode, enforced through the context.
	SolveBudget time.Duration `json:"solve_budget"`

	// Candidates a rejection sampler may draw for one sample.
	SampleAttempts int `json:"sample_attempts"`

	// Spacing of validity checks along a motion.
	Resolution float64 `json:"resolution"`

	StepSize       float64 `json:"step_size"`
	PlanIter       int     `json:"plan_iter"`
	SmoothIter     int     `json:"smooth_iter"`
	IterBeforeRand int     `json:"iter_before_rand"`
	NearDistance   float64 `json:"near_distance"`

	// Workers used for nearest neighbor search on large trees.
	NumThreads int `json:"num_threads"`
}

// NewDefaultPlannerOptions returns options over the default [-10, 10] square workspace.
func NewDefaultPlannerOptions() *PlannerOptions {
	bounds, err := spatialmath.NewSquareBounds(-defaultWorkspaceExtent, defaultWorkspaceExtent)
	if err != nil {
		panic(err)
	}
	return &PlannerOptions{
		Bounds:           bounds,
		PlanningDeadline: defaultPlanningDeadline,
		SolveBudget:      defaultSolveBudget,
		SampleAttempts:   defaultSampleAttempts,
		Resolution:       defaultResolution,
		StepSize:         defaultStepSize,
		PlanIter:         defaultPlanIter,
		SmoothIter:       defaultSmoothIter,
		IterBeforeRand:   defaultIterBeforeRand,
		NearDistance:     defaultNearDistance,
		NumThreads:       defaultNumThreads,
	}
}

// fillDefaults replaces unset numeric fields with their defaults.
func (opts *PlannerOptions) fillDefaults() {
	def := NewDefaultPlannerOptions()
	if opts.Bounds == (spatialmath.Bounds{}) {
		opts.Bounds = def.Bounds
	}
	if opts.PlanningDeadline <= 0 {
		opts.PlanningDeadline = def.PlanningDeadline
	}
	if opts.SolveBudget <= 0 {
		opts.SolveBudget = def.SolveBudget
	}
	if opts.SampleAttempts <= 0 {
		opts.SampleAttempts = def.SampleAttempts
	}
	if opts.Resolution <= 0 {
		opts.Resolution = def.Resolution
	}
	if opts.StepSize <= 0 {
		opts.StepSize = def.StepSize
	}
	if opts.PlanIter <= 0 {
		opts.PlanIter = def.PlanIter
	}
	if opts.SmoothIter < 0 {
		opts.SmoothIter = def.SmoothIter
	}
	if opts.IterBeforeRand <= 0 {
		opts.IterBeforeRand = def.IterBeforeRand
	}
	if opts.NearDistance <= 0 {
		opts.NearDistance = def.NearDistance
	}
	if opts.NumThreads <= 0 {
		opts.NumThreads = def.NumThreads
	}
}
