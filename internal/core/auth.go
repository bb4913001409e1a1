package core

import (
	"context"
	"unicode/utf8"

	"github.com/eidolonFIRE/xcNav-reflector/internal/proto"
	"github.com/eidolonFIRE/xcNav-reflector/internal/store"
	"github.com/eidolonFIRE/xcNav-reflector/internal/utils"
)

// AuthRequest turns an inbound auth request into an established session.
// Exactly one authResponse is sent on conn in every case. The returned
// client is nil when no session was created; it is non-nil even when the
// group join failed (status invalid_id), since the session itself exists.
func (s *Service) AuthRequest(ctx context.Context, conn Conn, req proto.AuthRequest) *Client {
	resp := proto.AuthResponse{
		Status:     proto.StatusUnknownError,
		PilotID:    req.Pilot.ID,
		APIVersion: proto.ProtocolVersion,
	}

	profile, err := s.store.FetchProfile(ctx, req.Pilot.ID)
	switch {
	case err != nil:
		s.log.Error().Err(err).Str("pilot_id", req.Pilot.ID).Msg("profile fetch failed")

	case profile != nil && profile.SecretToken != "" && profile.SecretToken != req.SecretToken:
		s.log.Warn().Str("pilot_id", req.Pilot.ID).Msg("auth with invalid secret token")
		resp.Status = proto.StatusInvalidSecretToken

	case utf8.RuneCountInString(req.Pilot.Name) < minNameLength:
		s.log.Warn().Str("pilot_id", req.Pilot.ID).Str("name", req.Pilot.Name).Msg("auth with invalid name")
		resp.Status = proto.StatusMissingData

	default:
		pilotID := req.Pilot.ID
		if pilotID == "" {
			pilotID = utils.NewPilotID()
		}

		tier, err := s.tier.CheckHash(ctx, req.TierHash)
		if err != nil {
			// A broken tier service must not block auth.
			s.log.Warn().Err(err).Str("pilot_id", pilotID).Msg("tier lookup failed")
		}

		groupID := req.GroupID
		if groupID == "" {
			groupID = s.reg.NewGroupID()
		}

		secret := req.SecretToken
		if secret == "" {
			secret = utils.NewSecretToken()
		}

		pilot := proto.PilotMeta{
			ID:          pilotID,
			Name:        req.Pilot.Name,
			AvatarHash:  req.Pilot.AvatarHash,
			SecretToken: secret,
			Tier:        tier,
		}

		client := s.reg.Register(conn, pilot, req.APIVersion)
		s.persistProfile(ctx, pilot)

		resp.SecretToken = secret
		resp.PilotID = pilotID
		resp.Tier = tier
		resp.PilotMetaHash = proto.PilotMetaHash(pilot)

		if !s.reg.AddPilotToGroup(pilotID, groupID) {
			s.log.Error().Str("pilot_id", pilotID).Str("group_id", groupID).Msg("failed to join group during auth")
			resp.Status = proto.StatusInvalidID
		} else {
			resp.Status = proto.StatusSuccess
			resp.GroupID = s.reg.ClientGroup(client)
		}

		s.send(conn, proto.ActionAuthResponse, resp)
		s.log.Info().Str("pilot_id", pilotID).Str("group_id", resp.GroupID).Msg("pilot authenticated")
		return client
	}

	s.send(conn, proto.ActionAuthResponse, resp)
	return nil
}

// UpdateProfile mutates the session's profile fields after verifying the
// secret token, persists the result, and notifies the group.
func (s *Service) UpdateProfile(ctx context.Context, c *Client, req proto.UpdateProfileRequest) {
	meta := s.reg.Meta(c)

	switch {
	case req.SecretToken != meta.SecretToken:
		s.SendToOne(c, proto.ActionUpdateProfileResponse, proto.UpdateProfileResponse{Status: proto.StatusInvalidSecretToken})

	case utf8.RuneCountInString(req.Pilot.Name) < minNameLength:
		s.SendToOne(c, proto.ActionUpdateProfileResponse, proto.UpdateProfileResponse{Status: proto.StatusMissingData})

	default:
		updated := s.reg.SetProfile(c, req.Pilot.Name, req.Pilot.AvatarHash)
		s.persistProfile(ctx, updated)
		s.log.Info().Str("pilot_id", c.PilotID()).Msg("profile updated")

		s.SendToGroup(c, proto.ActionPilotJoinedGroup, proto.PilotJoinedGroup{Pilot: notifyMeta(updated)}, 0)
		s.SendToOne(c, proto.ActionUpdateProfileResponse, proto.UpdateProfileResponse{Status: proto.StatusSuccess})
	}
}

// persistProfile pushes a profile upsert without blocking the caller.
// Failures are logged; the session is already live and must not be affected.
func (s *Service) persistProfile(ctx context.Context, pilot proto.PilotMeta) {
	p := store.Profile{
		ID:          pilot.ID,
		Name:        pilot.Name,
		AvatarHash:  pilot.AvatarHash,
		SecretToken: pilot.SecretToken,
		Tier:        pilot.Tier,
	}
	bg := context.WithoutCancel(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(bg, persistTimeout)
		defer cancel()
		if err := s.store.PersistProfile(ctx, p); err != nil {
			s.log.Error().Err(err).Str("pilot_id", p.ID).Msg("profile persist failed")
		}
	}()
}
