package core

import (
	"github.com/eidolonFIRE/xcNav-reflector/internal/proto"
)

// WaypointsSync stores a client's full replacement plan verbatim
// (last-writer-wins, no merge) and relays it to the rest of the group.
func (s *Service) WaypointsSync(c *Client, msg proto.WaypointsSync) {
	groupID := s.reg.ClientGroup(c)
	if msg.Waypoints == nil {
		msg.Waypoints = map[string]proto.Waypoint{}
	}
	if !s.reg.ReplacePlan(groupID, msg.Waypoints) {
		s.log.Warn().Str("pilot_id", c.PilotID()).Str("group_id", groupID).Msg("waypoint sync without a group, dropping")
		return
	}
	s.SendToGroup(c, proto.ActionWaypointsSync, msg, 0)
}

// WaypointsUpdate applies one delta to the group's shared plan. Only
// state-changing deltas are rebroadcast; a no-op (explicit none, absent
// update payload, delete of an unknown id) stays quiet.
func (s *Service) WaypointsUpdate(c *Client, msg proto.WaypointsUpdate) {
	groupID := s.reg.ClientGroup(c)

	changed, ok := s.reg.ApplyWaypointUpdate(groupID, msg.Action, msg.Waypoint)
	if !ok {
		s.log.Warn().Str("pilot_id", c.PilotID()).Str("group_id", groupID).Msg("waypoint update without a group, dropping")
		return
	}

	s.log.Debug().
		Str("pilot_id", c.PilotID()).
		Int("action", int(msg.Action)).
		Bool("changed", changed).
		Msg("waypoint update")

	if changed {
		// Hash is the sender's fingerprint of its plan after the delta. A
		// mismatch means the sender and the group have diverged; surface it
		// so a future resync path has something to key on.
		if msg.Hash != "" {
			if _, plan, _, found := s.reg.GroupState(groupID); found {
				if got := proto.WaypointsHash(plan); got != msg.Hash {
					s.log.Debug().
						Str("pilot_id", c.PilotID()).
						Str("theirs", msg.Hash).
						Str("ours", got).
						Msg("plan hash mismatch after update")
				}
			}
		}
		s.SendToGroup(c, proto.ActionWaypointsUpdate, msg, 0)
	}
}

// PilotSelectedWaypoint records the sender's current waypoint selection and
// relays it to the group.
func (s *Service) PilotSelectedWaypoint(c *Client, msg proto.PilotSelectedWaypoint) {
	msg.PilotID = c.PilotID()

	groupID := s.reg.ClientGroup(c)
	if !s.reg.SetSelection(groupID, c.PilotID(), msg.WaypointID) {
		s.log.Warn().Str("pilot_id", c.PilotID()).Str("group_id", groupID).Msg("waypoint selection without a group, dropping")
		return
	}

	s.log.Debug().Str("pilot_id", c.PilotID()).Str("waypoint_id", msg.WaypointID).Msg("waypoint selected")
	s.SendToGroup(c, proto.ActionPilotSelectedWaypoint, msg, 0)
}
