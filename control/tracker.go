// Package control closes the feedback loop of every agent: it turns the agent's current goal and
// pose updates into velocity commands and reports arrival.
package control

import (
	"math"
	"sync"
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/uavnav/spatialmath"
)

// default values for the goal tracking controller.
const (
	defaultPeriod        = 100 * time.Millisecond
	defaultTolerance     = 0.5
	defaultLinearScale   = 0.3
	defaultVerticalScale = 1.0
	defaultYawGain       = 3.0
)

// Config parameterizes every agent's goal tracker.
type Config struct {
	X   PIDConfig `json:"x"`
	Y   PIDConfig `json:"y"`
	Z   PIDConfig `json:"z"`
	Yaw PIDConfig `json:"yaw"`

	// Period is the fixed control step fed to the PID loops, independent of the pose rate.
	Period time.Duration `json:"period"`
	// Tolerance is the largest per-axis error still counted as arrived.
	Tolerance float64 `json:"tolerance"`

	LinearScale   float64 `json:"linear_scale"`
	VerticalScale float64 `json:"vertical_scale"`
	YawGain       float64 `json:"yaw_gain"`

	// ResetOperatingOnArrival clears the operating flag after a done event. By default an agent
	// keeps operating once it received its first goal.
	ResetOperatingOnArrival bool `json:"reset_operating_on_arrival"`
	// CommandBeforeFirstGoal makes agents that never received a goal track the zero pose instead
	// of staying silent. Such agents are not operating, so they never report arrival.
	CommandBeforeFirstGoal bool `json:"command_before_first_goal"`
}

// DefaultConfig returns the controller defaults.
func DefaultConfig() Config {
	axis := PIDConfig{Kp: 1.0, Ki: 0.01, Kd: 0.05, IntegralLimit: 1.0}
	return Config{
		X:             axis,
		Y:             axis,
		Z:             axis,
		Yaw:           PIDConfig{Kp: 1.0},
		Period:        defaultPeriod,
		Tolerance:     defaultTolerance,
		LinearScale:   defaultLinearScale,
		VerticalScale: defaultVerticalScale,
		YawGain:       defaultYawGain,
	}
}

// Validate checks every loop and scale.
func (cfg Config) Validate() error {
	var errs error
	for name, pid := range map[string]PIDConfig{"x": cfg.X, "y": cfg.Y, "z": cfg.Z, "yaw": cfg.Yaw} {
		if err := pid.Validate(); err != nil {
			errs = multierr.Append(errs, errors.Wrap(err, name))
		}
	}
	if cfg.Period <= 0 {
		errs = multierr.Append(errs, errors.New("period must be positive"))
	}
	if cfg.Tolerance <= 0 {
		errs = multierr.Append(errs, errors.New("tolerance must be positive"))
	}
	return errs
}

// Velocity is a velocity command in the world frame.
type Velocity struct {
	Linear   r3.Vector
	AngularZ float64
}

// Done reports that an agent reached its goal.
type Done struct {
	Agent    string
	Position r3.Vector
}

// Output is what one pose update produced. Both parts are optional.
type Output struct {
	Velocity    Velocity
	HasVelocity bool
	Done        *Done
}

// Snapshot is a copy of an agent's tracking state.
type Snapshot struct {
	Name            string
	Goal            spatialmath.Pose
	Current         spatialmath.Pose
	HasGoal         bool
	DesiredUpdated  bool
	DesiredAchieved bool
	Operating       bool
}

// AgentState tracks one agent's goal. All methods are safe for concurrent use.
type AgentState struct {
	name string
	cfg  Config

	mu              sync.Mutex
	goal            spatialmath.Pose
	current         spatialmath.Pose
	hasGoal         bool
	desiredUpdated  bool
	desiredAchieved bool
	operating       bool

	x, y, z, yaw *PID
}

func newAgentState(name string, cfg Config) (*AgentState, error) {
	pids := make([]*PID, 0, 4)
	for _, pc := range []PIDConfig{cfg.X, cfg.Y, cfg.Z, cfg.Yaw} {
		pid, err := NewPID(pc)
		if err != nil {
			return nil, err
		}
		pids = append(pids, pid)
	}
	return &AgentState{
		name: name,
		cfg:  cfg,
		x:    pids[0],
		y:    pids[1],
		z:    pids[2],
		yaw:  pids[3],
	}, nil
}

// Name returns the agent's name.
func (a *AgentState) Name() string {
	return a.name
}

// GoalChange is what SetGoal did to an agent's goal.
type GoalChange uint8

const (
	// GoalSet means the goal moved and the agent is on its way.
	GoalSet GoalChange = iota
	// GoalUnchanged means the goal position was already the target and is not reached yet.
	GoalUnchanged
	// GoalAlreadyReached means the goal position was already the target and was reached. No
	// further done event will be reported for it.
	GoalAlreadyReached
)

// SetGoal makes goal the agent's target and marks the agent operating. A goal at exactly the
// current goal position changes nothing but the commanded heading. The returned change is decided
// under the same lock as the update.
func (a *AgentState) SetGoal(goal spatialmath.Pose) GoalChange {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.operating = true
	a.goal.Yaw = goal.Yaw
	if a.hasGoal && a.goal.SamePosition(goal) {
		if a.desiredAchieved && !a.desiredUpdated {
			return GoalAlreadyReached
		}
		return GoalUnchanged
	}
	a.goal.Position = goal.Position
	a.hasGoal = true
	a.desiredUpdated = true
	a.desiredAchieved = false
	return GoalSet
}

// shouldWait must be called with a.mu held.
func (a *AgentState) shouldWait() bool {
	if !a.hasGoal && !a.cfg.CommandBeforeFirstGoal {
		return true
	}
	return !a.desiredUpdated && a.desiredAchieved
}

// HandlePose records pose as the agent's current pose and computes the resulting commands. The
// output is returned rather than published so callers can publish without holding any lock.
func (a *AgentState) HandlePose(pose spatialmath.Pose) Output {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.current = pose

	var out Output
	if a.shouldWait() {
		return out
	}

	errX := a.goal.Position.X - pose.Position.X
	errY := a.goal.Position.Y - pose.Position.Y
	errZ := a.goal.Position.Z - pose.Position.Z
	x := a.x.Next(errX, a.cfg.Period)
	y := a.y.Next(errY, a.cfg.Period)
	z := a.z.Next(errZ, a.cfg.Period)
	yawErr := spatialmath.WrapAngle(a.goal.Yaw - pose.Yaw)

	if a.operating && a.within(errX) && a.within(errY) && a.within(errZ) {
		out.Done = &Done{Agent: a.name, Position: a.goal.Position}
		a.desiredAchieved = true
		a.desiredUpdated = false
		if a.cfg.ResetOperatingOnArrival {
			a.operating = false
		}
	}

	out.HasVelocity = true
	out.Velocity = Velocity{
		Linear: r3.Vector{
			X: x * a.cfg.LinearScale,
			Y: y * a.cfg.LinearScale,
			Z: z * a.cfg.VerticalScale,
		},
		AngularZ: a.cfg.YawGain * a.yaw.Next(yawErr, a.cfg.Period),
	}
	return out
}

func (a *AgentState) within(err float64) bool {
	return math.Abs(err) <= a.cfg.Tolerance
}

// Snapshot returns a copy of the agent's state.
func (a *AgentState) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Snapshot{
		Name:            a.name,
		Goal:            a.goal,
		Current:         a.current,
		HasGoal:         a.hasGoal,
		DesiredUpdated:  a.desiredUpdated,
		DesiredAchieved: a.desiredAchieved,
		Operating:       a.operating,
	}
}
