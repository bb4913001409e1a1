package core

import "github.com/eidolonFIRE/xcNav-reflector/internal/proto"

// send writes one frame to a raw transport. Write failures are logged and
// swallowed; a broken peer must never abort delivery to others.
func (s *Service) send(conn Conn, action string, body any) {
	if err := conn.Send(action, body); err != nil {
		s.log.Warn().Err(err).Str("action", action).Msg("tx failed")
	}
}

// SendToOne delivers a single frame to one session.
func (s *Service) SendToOne(c *Client, action string, body any) {
	if err := c.conn.Send(action, body); err != nil {
		s.log.Warn().Err(err).Str("pilot_id", c.PilotID()).Str("action", action).Msg("tx failed")
	}
}

// SendToGroup delivers a frame to every other live member of the sender's
// group. Members whose protocol version is below versionFilter are skipped
// (0 disables the filter). A member whose own recorded group disagrees with
// the one being broadcast to is desynced: it is force-removed from the group
// and skipped, rather than failing the whole fan-out.
func (s *Service) SendToGroup(from *Client, action string, body any, versionFilter float64) {
	groupID := s.reg.ClientGroup(from)
	if groupID == "" {
		return
	}

	for _, m := range s.reg.fanout(groupID) {
		if m.pilotID == from.PilotID() {
			continue
		}
		if versionFilter > 0 && m.version > 0 && m.version < versionFilter {
			continue
		}
		if m.groupID != groupID {
			s.log.Error().
				Str("pilot_id", m.pilotID).
				Str("recorded_group", m.groupID).
				Str("group_id", groupID).
				Msg("group desync detected, removing member")
			s.reg.PopPilotFromGroup(m.pilotID, groupID)
			continue
		}
		s.SendToOne(m.client, action, body)
	}
}

// notifyMeta is the broadcast-safe subset of a profile used in group
// join/update notifications.
func notifyMeta(p proto.PilotMeta) proto.PilotMeta {
	return proto.PilotMeta{
		ID:         p.ID,
		Name:       p.Name,
		AvatarHash: p.AvatarHash,
	}
}

// publicMeta is the profile as exposed to other group members.
func publicMeta(p proto.PilotMeta) proto.PilotMeta {
	return proto.PilotMeta{
		ID:         p.ID,
		Name:       p.Name,
		AvatarHash: p.AvatarHash,
		Tier:       p.Tier,
	}
}
