package store

import (
	"context"
	"time"
)

// Profile is the persisted identity of a pilot. It outlives any single
// session so a reconnecting pilot keeps its id and secret token.
type Profile struct {
	ID          string
	Name        string
	AvatarHash  string
	SecretToken string
	Tier        string
	Expires     time.Time
}

// ProfileStore handles pilot profile persistence.
type ProfileStore interface {
	// FetchProfile retrieves a profile by pilot id.
	// Returns (nil, nil) when absent or expired.
	FetchProfile(ctx context.Context, pilotID string) (*Profile, error)

	// PersistProfile upserts a profile and slides its expiry forward.
	PersistProfile(ctx context.Context, p Profile) error

	// Close closes the underlying database connection.
	Close() error
}
