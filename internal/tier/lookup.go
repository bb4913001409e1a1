// Package tier resolves subscriber tiers from a periodically refreshed
// pledge table. Clients never send raw identity; they send
// sha256(email+name) and the table is keyed the same way.
package tier

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// pledge is one row of the upstream pledge table.
type pledge struct {
	Email string `json:"email"`
	Name  string `json:"first_name"`
	Tier  string `json:"tier"`
}

type pledgeTable struct {
	Pledges []pledge `json:"pledges"`
}

// LUT is a cached hash -> tier lookup table, refreshed lazily once the cache
// is older than refreshEvery.
type LUT struct {
	url          string
	token        string
	refreshEvery time.Duration
	client       *http.Client
	log          *zerolog.Logger

	mu      sync.Mutex
	pledges map[string]string
	fetched time.Time
}

// New builds a lookup table client. An empty url disables lookups; CheckHash
// then always resolves to no tier.
func New(url, token string, refreshEvery time.Duration, logger *zerolog.Logger) *LUT {
	return &LUT{
		url:          url,
		token:        token,
		refreshEvery: refreshEvery,
		client:       &http.Client{Timeout: 15 * time.Second},
		log:          logger,
	}
}

// CheckHash resolves a client-supplied identity hash to a tier label.
// Returns "" when the hash is unknown or lookups are disabled.
func (l *LUT) CheckHash(ctx context.Context, hash string) (string, error) {
	if l.url == "" || hash == "" {
		return "", nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.pledges == nil || time.Since(l.fetched) > l.refreshEvery {
		if err := l.refresh(ctx); err != nil {
			if l.pledges == nil {
				return "", err
			}
			// Stale table beats no table.
			l.log.Warn().Err(err).Msg("tier table refresh failed, serving cached table")
		}
	}

	return l.pledges[hash], nil
}

// refresh pulls the pledge table. Caller holds l.mu.
func (l *LUT) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.url, nil)
	if err != nil {
		return fmt.Errorf("build tier request: %w", err)
	}
	if l.token != "" {
		req.Header.Set("Authorization", "Bearer "+l.token)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch tier table: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch tier table: unexpected status %d", resp.StatusCode)
	}

	var table pledgeTable
	if err := json.NewDecoder(resp.Body).Decode(&table); err != nil {
		return fmt.Errorf("decode tier table: %w", err)
	}

	pledges := make(map[string]string, len(table.Pledges))
	for _, p := range table.Pledges {
		pledges[HashIdentity(p.Email, p.Name)] = p.Tier
	}

	l.pledges = pledges
	l.fetched = time.Now()
	l.log.Info().Int("entries", len(pledges)).Msg("tier table refreshed")
	return nil
}

// HashIdentity derives the lookup key a client is expected to send.
func HashIdentity(email, name string) string {
	sum := sha256.Sum256([]byte(email + name))
	return hex.EncodeToString(sum[:])
}
