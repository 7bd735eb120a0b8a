package navigation

import (
	"github.com/golang/geo/r3"

	"go.viam.com/uavnav/dispatch"
	"go.viam.com/uavnav/motionplan"
	"go.viam.com/uavnav/spatialmath"
)

// waypointCommand lifts a dispatched planar waypoint to the configured altitude.
func waypointCommand(step dispatch.Step, altitude float64) WaypointCommand {
	return WaypointCommand{AgentID: step.Agent, X: step.Waypoint.X, Y: step.Waypoint.Y, Z: altitude}
}

// goalPose is the controller goal for a waypoint command: its position with identity orientation.
func goalPose(cmd WaypointCommand) spatialmath.Pose {
	return spatialmath.NewPose(cmd.X, cmd.Y, cmd.Z, 0)
}

// sampleEvent converts a sampler diagnostic for publication.
func sampleEvent(ev motionplan.SampleEvent) SampleEvent {
	return SampleEvent{X: ev.Position.X, Y: ev.Position.Y, Phase: ev.Phase}
}

// liftPath returns the waypoints of path at altitude.
func liftPath(path motionplan.Path, altitude float64) []r3.Vector {
	out := make([]r3.Vector, 0, len(path))
	for _, pt := range path {
		out = append(out, r3.Vector{X: pt.X, Y: pt.Y, Z: altitude})
	}
	return out
}
