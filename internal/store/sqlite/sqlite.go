package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/eidolonFIRE/xcNav-reflector/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS pilots (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	avatar_hash  TEXT NOT NULL DEFAULT '',
	secret_token TEXT NOT NULL DEFAULT '',
	tier         TEXT NOT NULL DEFAULT '',
	expires      INTEGER NOT NULL
);
`

// ProfileStore implements store.ProfileStore for SQLite.
type ProfileStore struct {
	db  *sql.DB
	ttl time.Duration
}

// New creates a SQLite-backed profile store at dbPath. Profiles are kept for
// ttl past their last write (sliding expiry).
func New(dbPath string, ttl time.Duration) (*ProfileStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &ProfileStore{db: db, ttl: ttl}, nil
}

// Close closes the database connection.
func (s *ProfileStore) Close() error {
	return s.db.Close()
}

// FetchProfile retrieves a profile by pilot id, skipping expired rows.
func (s *ProfileStore) FetchProfile(ctx context.Context, pilotID string) (*store.Profile, error) {
	if pilotID == "" {
		return nil, nil
	}

	query := `
		SELECT id, name, avatar_hash, secret_token, tier, expires
		FROM pilots
		WHERE id = ? AND expires > ?
	`
	var p store.Profile
	var expires int64
	err := s.db.QueryRowContext(ctx, query, pilotID, time.Now().Unix()).Scan(
		&p.ID,
		&p.Name,
		&p.AvatarHash,
		&p.SecretToken,
		&p.Tier,
		&expires,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query pilot: %w", err)
	}
	p.Expires = time.Unix(expires, 0)

	return &p, nil
}

// PersistProfile upserts the profile and slides its expiry to now+ttl.
func (s *ProfileStore) PersistProfile(ctx context.Context, p store.Profile) error {
	query := `
		INSERT INTO pilots (id, name, avatar_hash, secret_token, tier, expires)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			avatar_hash = excluded.avatar_hash,
			secret_token = excluded.secret_token,
			tier = excluded.tier,
			expires = excluded.expires
	`
	expires := time.Now().Add(s.ttl).Unix()
	if _, err := s.db.ExecContext(ctx, query, p.ID, p.Name, p.AvatarHash, p.SecretToken, p.Tier, expires); err != nil {
		return fmt.Errorf("upsert pilot: %w", err)
	}
	return nil
}

// PurgeExpired deletes rows past their expiry and reports how many went away.
func (s *ProfileStore) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM pilots WHERE expires <= ?`, time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("purge pilots: %w", err)
	}
	return res.RowsAffected()
}
