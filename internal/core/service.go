package core

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/eidolonFIRE/xcNav-reflector/internal/store"
)

const (
	// minNameLength is the shortest acceptable display name.
	minNameLength = 2

	// telemetryMaxAge: older samples are dropped instead of broadcast.
	telemetryMaxAge = 5 * time.Minute

	persistTimeout = 10 * time.Second
)

// TierLookup resolves a client-supplied identity hash to a subscriber tier.
type TierLookup interface {
	CheckHash(ctx context.Context, hash string) (string, error)
}

// Service is the message-routing engine: it owns the registry and talks to
// the persistence and tier collaborators.
type Service struct {
	reg   *Registry
	store store.ProfileStore
	tier  TierLookup
	log   *zerolog.Logger
}

// NewService wires the core engine to its collaborators.
func NewService(reg *Registry, profiles store.ProfileStore, tier TierLookup, logger *zerolog.Logger) *Service {
	return &Service{
		reg:   reg,
		store: profiles,
		tier:  tier,
		log:   logger,
	}
}

// Registry exposes the session/group store, for the sweeper and read-only
// surfaces.
func (s *Service) Registry() *Registry {
	return s.reg
}
