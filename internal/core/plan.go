package core

import (
	"github.com/eidolonFIRE/xcNav-reflector/internal/proto"
)

// ReplacePlan stores a full replacement waypoint plan for a group,
// last-writer-wins. Returns false when the group does not exist.
func (r *Registry) ReplacePlan(groupID string, plan map[string]proto.Waypoint) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.groups[groupID]
	if !ok {
		return false
	}
	g.waypoints = clonePlan(plan)
	return true
}

// ApplyWaypointUpdate applies a single delta to a group's plan. A deep copy
// of the prior plan is kept on the group before mutating, for a future
// resync-restore path. changed reports whether the plan was actually
// modified; ok reports whether the group exists.
func (r *Registry) ApplyWaypointUpdate(groupID string, action proto.WaypointAction, wp *proto.Waypoint) (changed, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, found := r.groups[groupID]
	if !found {
		return false, false
	}

	g.planBackup = clonePlan(g.waypoints)

	switch action {
	case proto.WaypointActionUpdate:
		if wp == nil {
			return false, true
		}
		g.waypoints[wp.ID] = *wp
		return true, true
	case proto.WaypointActionDelete:
		if wp == nil {
			return false, true
		}
		if _, exists := g.waypoints[wp.ID]; !exists {
			return false, true
		}
		delete(g.waypoints, wp.ID)
		return true, true
	default:
		// Explicit no-op.
		return false, true
	}
}

// SetSelection records which waypoint a pilot currently has selected within
// a group. Returns false when the group does not exist.
func (r *Registry) SetSelection(groupID, pilotID, waypointID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.groups[groupID]
	if !ok {
		return false
	}
	g.selections[pilotID] = waypointID
	return true
}

// PlanBackup returns the plan snapshot taken before the last delta, for
// tests and the eventual resync path.
func (r *Registry) PlanBackup(groupID string) (map[string]proto.Waypoint, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.groups[groupID]
	if !ok || g.planBackup == nil {
		return nil, false
	}
	return clonePlan(g.planBackup), true
}
