package core

import (
	"context"
	"sync"
	"time"

	"github.com/eidolonFIRE/xcNav-reflector/internal/proto"
)

// ChatMessage stamps the sender id and relays the message to the group. A
// message whose target group disagrees with the sender's actual group is a
// desync and is dropped silently.
func (s *Service) ChatMessage(c *Client, msg proto.ChatMessage) {
	msg.PilotID = c.PilotID()

	current := s.reg.ClientGroup(c)
	if msg.GroupID != current {
		s.log.Warn().
			Str("pilot_id", c.PilotID()).
			Str("msg_group", msg.GroupID).
			Str("group_id", current).
			Msg("chat for wrong group, dropping")
		return
	}

	s.log.Debug().Str("pilot_id", c.PilotID()).Bool("emergency", msg.Emergency).Msg("chat")
	s.SendToGroup(c, proto.ActionChatMessage, msg, 0)
}

// PilotTelemetry stamps the sender id and relays recent telemetry to the
// group. Backdated samples are dropped without an error.
func (s *Service) PilotTelemetry(c *Client, msg proto.PilotTelemetry) {
	msg.PilotID = c.PilotID()

	if msg.Timestamp <= time.Now().Add(-telemetryMaxAge).Unix() {
		return
	}
	s.SendToGroup(c, proto.ActionPilotTelemetry, msg, 0)
}

// GroupInfo replies with the member list, waypoint plan, and selections of
// the requested group. Member profiles come from the live registry when a
// session exists, otherwise from the profile store; all store fetches run
// concurrently and the reply waits for every one.
func (s *Service) GroupInfo(ctx context.Context, c *Client, req proto.GroupInfoRequest) {
	resp := proto.GroupInfoResponse{
		Status:    proto.StatusUnknownError,
		GroupID:   req.GroupID,
		Pilots:    []proto.PilotMeta{},
		Waypoints: map[string]proto.Waypoint{},
	}

	members, waypoints, selections, ok := s.reg.GroupState(req.GroupID)
	if ok {
		resp.Status = proto.StatusSuccess
		resp.Waypoints = waypoints
		resp.Selections = selections

		// resp.Pilots is shared with the fetch goroutines below.
		var (
			mu sync.Mutex
			wg sync.WaitGroup
		)
		for _, pilotID := range members {
			if meta, live := s.reg.LiveMeta(pilotID); live {
				mu.Lock()
				resp.Pilots = append(resp.Pilots, publicMeta(meta))
				mu.Unlock()
				continue
			}

			wg.Add(1)
			go func(pilotID string) {
				defer wg.Done()
				profile, err := s.store.FetchProfile(ctx, pilotID)
				if err != nil {
					s.log.Warn().Err(err).Str("pilot_id", pilotID).Msg("profile fetch failed for group info")
					return
				}
				if profile == nil {
					return
				}
				mu.Lock()
				resp.Pilots = append(resp.Pilots, proto.PilotMeta{
					ID:         pilotID,
					Name:       profile.Name,
					AvatarHash: profile.AvatarHash,
					Tier:       profile.Tier,
				})
				mu.Unlock()
			}(pilotID)
		}
		wg.Wait()
	}

	s.log.Info().
		Str("pilot_id", c.PilotID()).
		Str("group_id", req.GroupID).
		Int("status", int(resp.Status)).
		Int("pilots", len(resp.Pilots)).
		Msg("group info requested")
	s.SendToOne(c, proto.ActionGroupInfoResponse, resp)
}

// JoinGroup moves the pilot into the requested group, or a freshly generated
// one when none is given. Joining the group the pilot is already in is a
// distinct no_op, not a silent success.
func (s *Service) JoinGroup(c *Client, req proto.JoinGroupRequest) {
	resp := proto.JoinGroupResponse{Status: proto.StatusUnknownError}

	s.log.Info().Str("pilot_id", c.PilotID()).Str("group_id", req.GroupID).Msg("group join requested")

	current := s.reg.ClientGroup(c)
	if req.GroupID != "" && req.GroupID == current {
		resp.Status = proto.StatusNoOp
		resp.GroupID = current
		s.SendToOne(c, proto.ActionJoinGroupResponse, resp)
		return
	}

	target := req.GroupID
	if target == "" {
		target = s.reg.NewGroupID()
	}

	if s.reg.AddPilotToGroup(c.PilotID(), target) {
		resp.Status = proto.StatusSuccess
		resp.GroupID = s.reg.ClientGroup(c)

		s.SendToGroup(c, proto.ActionPilotJoinedGroup, proto.PilotJoinedGroup{Pilot: notifyMeta(s.reg.Meta(c))}, 0)
	} else {
		s.log.Error().Str("pilot_id", c.PilotID()).Str("group_id", target).Msg("failed to join group")
	}
	s.SendToOne(c, proto.ActionJoinGroupResponse, resp)
}

// ClientDropped handles a transport close: the session is removed from the
// registry and popped from its group, unless a newer session for the same
// pilot has already taken over.
func (s *Service) ClientDropped(c *Client) {
	s.reg.DropClient(c)
	s.log.Info().Str("pilot_id", c.PilotID()).Msg("client dropped")
}
