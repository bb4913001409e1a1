package http

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/eidolonFIRE/xcNav-reflector/internal/core"
	applog "github.com/eidolonFIRE/xcNav-reflector/internal/log"
	"github.com/eidolonFIRE/xcNav-reflector/internal/proto"
)

// session is the per-connection state machine. A connection starts
// unauthenticated, where only authRequest is accepted; once a client exists
// every other action routes to the engine. There is no way back.
type session struct {
	svc    *core.Service
	conn   core.Conn
	log    *zerolog.Logger
	client *core.Client
}

func newSession(svc *core.Service, conn core.Conn, logger *zerolog.Logger) *session {
	return &session{svc: svc, conn: conn, log: logger}
}

// dispatch routes one inbound frame. Malformed bodies and unknown actions are
// logged and dropped; they never terminate the connection.
func (s *session) dispatch(ctx context.Context, env proto.Envelope) {
	if s.client == nil {
		if env.Action != proto.ActionAuthRequest {
			s.log.Warn().Str("action", env.Action).Msg("frame before auth, dropping")
			return
		}
		var req proto.AuthRequest
		if !s.decode(env, &req) {
			return
		}
		s.client = s.svc.AuthRequest(ctx, s.conn, req)
		if s.client != nil {
			s.log = applog.WithSession(s.log, s.client.PilotID())
		}
		return
	}

	switch env.Action {
	case proto.ActionAuthRequest:
		s.log.Warn().Str("pilot_id", s.client.PilotID()).Msg("repeated auth request, dropping")

	case proto.ActionUpdateProfile:
		var req proto.UpdateProfileRequest
		if s.decode(env, &req) {
			s.svc.UpdateProfile(ctx, s.client, req)
		}

	case proto.ActionChatMessage:
		var msg proto.ChatMessage
		if s.decode(env, &msg) {
			s.svc.ChatMessage(s.client, msg)
		}

	case proto.ActionPilotTelemetry:
		var msg proto.PilotTelemetry
		if s.decode(env, &msg) {
			s.svc.PilotTelemetry(s.client, msg)
		}

	case proto.ActionGroupInfoRequest:
		var req proto.GroupInfoRequest
		if s.decode(env, &req) {
			s.svc.GroupInfo(ctx, s.client, req)
		}

	case proto.ActionJoinGroupRequest:
		var req proto.JoinGroupRequest
		if s.decode(env, &req) {
			s.svc.JoinGroup(s.client, req)
		}

	case proto.ActionWaypointsSync:
		var msg proto.WaypointsSync
		if s.decode(env, &msg) {
			s.svc.WaypointsSync(s.client, msg)
		}

	case proto.ActionWaypointsUpdate:
		var msg proto.WaypointsUpdate
		if s.decode(env, &msg) {
			s.svc.WaypointsUpdate(s.client, msg)
		}

	case proto.ActionPilotSelectedWaypoint:
		var msg proto.PilotSelectedWaypoint
		if s.decode(env, &msg) {
			s.svc.PilotSelectedWaypoint(s.client, msg)
		}

	default:
		s.log.Warn().Str("action", env.Action).Msg("unknown action, dropping")
	}
}

func (s *session) decode(env proto.Envelope, into any) bool {
	if err := json.Unmarshal(env.Body, into); err != nil {
		s.log.Warn().Err(err).Str("action", env.Action).Msg("malformed body, dropping")
		return false
	}
	return true
}

// close tears the session down on socket close.
func (s *session) close() {
	if s.client != nil {
		s.svc.ClientDropped(s.client)
	}
}
