package navigation

import (
	"fmt"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gonum.org/v1/gonum/num/quat"

	"go.viam.com/uavnav/motionplan"
	"go.viam.com/uavnav/perception"
	"go.viam.com/uavnav/spatialmath"
)

// Entity is one object in a perception update.
type Entity struct {
	Name     string
	Position r3.Vector
}

// PerceptionUpdate reports every entity currently perceived. Entity zero is the reporting agent.
type PerceptionUpdate struct {
	Entities []Entity
}

// Validate checks that every entity is named and has a finite position.
func (m *PerceptionUpdate) Validate() error {
	var errs error
	for i, e := range m.Entities {
		if e.Name == "" {
			errs = multierr.Append(errs, errors.Errorf("entities.%d: name is required", i))
		}
		if !spatialmath.VectorIsFinite(e.Position) {
			errs = multierr.Append(errs, errors.Errorf("entities.%d: position must be finite", i))
		}
	}
	return errs
}

func (m *PerceptionUpdate) toEntities() []perception.Entity {
	out := make([]perception.Entity, 0, len(m.Entities))
	for _, e := range m.Entities {
		out = append(out, perception.Entity{Name: e.Name, Position: e.Position})
	}
	return out
}

// GoalRequest asks for AgentID to be moved to (X, Y).
type GoalRequest struct {
	AgentID string
	X, Y    float64
}

// Validate checks that the request names an agent and a finite target.
func (m *GoalRequest) Validate() error {
	var errs error
	if m.AgentID == "" {
		errs = multierr.Append(errs, errors.New("agent_id is required"))
	}
	if !spatialmath.VectorIsFinite(r3.Vector{X: m.X, Y: m.Y}) {
		errs = multierr.Append(errs, errors.New("goal must be finite"))
	}
	return errs
}

// StepAck acknowledges that AgentID reached its current waypoint.
type StepAck struct {
	AgentID string
}

// Validate checks that the acknowledgment names an agent.
func (m *StepAck) Validate() error {
	if m.AgentID == "" {
		return errors.New("agent_id is required")
	}
	return nil
}

// PoseUpdate is an agent's measured pose.
type PoseUpdate struct {
	AgentID     string
	Position    r3.Vector
	Orientation quat.Number
}

// Validate checks the agent name, position and orientation.
func (m *PoseUpdate) Validate() error {
	var errs error
	if m.AgentID == "" {
		errs = multierr.Append(errs, errors.New("agent_id is required"))
	}
	if !spatialmath.VectorIsFinite(m.Position) {
		errs = multierr.Append(errs, errors.New("position must be finite"))
	}
	if !spatialmath.IsValidQuaternion(m.Orientation) {
		errs = multierr.Append(errs, errors.New("orientation must be a finite, non-zero quaternion"))
	}
	return errs
}

// Pose converts the update into a pose with the heading extracted from the orientation.
func (m *PoseUpdate) Pose() spatialmath.Pose {
	return spatialmath.Pose{Position: m.Position, Yaw: spatialmath.YawFromQuaternion(m.Orientation)}
}

// WaypointCommand sets the next target of an agent. Orientation is always identity.
type WaypointCommand struct {
	AgentID string
	X, Y, Z float64
}

// VelocityCommand drives an agent.
type VelocityCommand struct {
	AgentID  string
	Linear   r3.Vector
	AngularZ float64
}

// DoneEvent reports that an agent reached the position it was sent to.
type DoneEvent struct {
	AgentID  string
	Position r3.Vector
}

// SampleEvent is a diagnostic sampler draw. Phase is -99 for invalid draws and alternates 0 and 99
// for valid ones.
type SampleEvent struct {
	X, Y  float64
	Phase motionplan.Phase
}

// ArrivalEvent reports that an agent acknowledged the final waypoint of its path.
type ArrivalEvent struct {
	AgentID  string
	Position r3.Vector
}

// Publisher delivers outbound messages. Calls are made without any service lock held.
type Publisher interface {
	PublishWaypoint(WaypointCommand)
	PublishVelocity(VelocityCommand)
	PublishDone(DoneEvent)
	PublishSample(SampleEvent)
	PublishArrival(ArrivalEvent)
}

func (m WaypointCommand) String() string {
	return fmt.Sprintf("%s -> (%.3f, %.3f, %.3f)", m.AgentID, m.X, m.Y, m.Z)
}
