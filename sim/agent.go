// Package sim flies simulated agents against the navigation service. Agents are first-order
// kinematic: commanded velocities are integrated directly into poses.
package sim

import (
	"sync"
	"time"

	"github.com/golang/geo/r3"

	"go.viam.com/uavnav/spatialmath"
)

// Agent is a simulated vehicle.
type Agent struct {
	name string

	mu       sync.Mutex
	pose     spatialmath.Pose
	linear   r3.Vector
	angularZ float64
}

// NewAgent returns an agent resting at start.
func NewAgent(name string, start spatialmath.Pose) *Agent {
	return &Agent{name: name, pose: start}
}

// Name returns the agent's name.
func (a *Agent) Name() string {
	return a.name
}

// SetVelocity replaces the commanded velocity.
func (a *Agent) SetVelocity(linear r3.Vector, angularZ float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.linear = linear
	a.angularZ = angularZ
}

// Step advances the agent by dt of simulated time and returns its new pose.
func (a *Agent) Step(dt time.Duration) spatialmath.Pose {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := dt.Seconds()
	a.pose.Position = a.pose.Position.Add(a.linear.Mul(s))
	a.pose.Yaw = spatialmath.WrapAngle(a.pose.Yaw + a.angularZ*s)
	return a.pose
}

// Pose returns the agent's current pose.
func (a *Agent) Pose() spatialmath.Pose {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pose
}
