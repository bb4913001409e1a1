package app

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/eidolonFIRE/xcNav-reflector/internal/config"
	"github.com/eidolonFIRE/xcNav-reflector/internal/core"
	"github.com/eidolonFIRE/xcNav-reflector/internal/store/sqlite"
	"github.com/eidolonFIRE/xcNav-reflector/internal/tier"
	transporthttp "github.com/eidolonFIRE/xcNav-reflector/internal/transport/http"
)

// App wires together core and transport layers.
type App struct {
	server *stdhttp.Server
	cfg    config.Config
	reg    *core.Registry
	store  *sqlite.ProfileStore
	log    *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := sqlite.New(cfg.DatabasePath, cfg.ProfileTTL)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	tiers := tier.New(cfg.TierURL, cfg.TierToken, cfg.TierRefreshEvery, logger)

	reg := core.NewRegistry(logger)
	svc := core.NewService(reg, st, tiers, logger)
	server := transporthttp.NewServer(svc, &cfg, logger)

	return &App{
		server: server,
		cfg:    cfg,
		reg:    reg,
		store:  st,
		log:    logger,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go a.sweepGroups(ctx)

	go func() {
		if err := a.server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		a.cleanup()
		return <-serverErr
	}
}

// sweepGroups periodically reaps groups whose members are all gone, and prunes
// expired pilot profiles while it is at it.
func (a *App) sweepGroups(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.GroupSweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			removed := a.reg.CleanGroups(now.Add(-a.cfg.GroupRetention))
			if removed > 0 {
				a.log.Info().Int("removed", removed).Msg("swept idle groups")
			}
			if n, err := a.store.PurgeExpired(ctx); err != nil {
				a.log.Warn().Err(err).Msg("profile purge failed")
			} else if n > 0 {
				a.log.Info().Int64("purged", n).Msg("purged expired profiles")
			}
		}
	}
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
