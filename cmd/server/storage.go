package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/routine/internal/config"
	"github.com/Nixie-Tech-LLC/routine/internal/db"
	"github.com/Nixie-Tech-LLC/routine/internal/notify"
	"github.com/Nixie-Tech-LLC/routine/internal/redis"
	"github.com/Nixie-Tech-LLC/routine/internal/storage"
)

// RemoteBackend is what the server needs from a remote routine source: the
// read side used by the repository and the admin write side.
type RemoteBackend interface {
	storage.Source
}

var (
	_ RemoteBackend = (*redis.DocumentSource)(nil)
	_ RemoteBackend = (*storage.LocalSource)(nil)
	_ RemoteBackend = (*storage.SpacesSource)(nil)
)

// InitStore selects postgres when DATABASE_URL is set and the in-memory store
// otherwise.
func InitStore(ctx context.Context, cfg *config.Config, hub *notify.Hub) (db.Store, error) {
	if cfg.DatabaseURL == "" {
		log.Warn().Msg("DATABASE_URL not set, caching routines in memory")
		return db.NewMemoryStore(hub), nil
	}

	if err := db.Init(ctx, cfg.DatabaseURL); err != nil {
		return nil, fmt.Errorf("db init: %w", err)
	}
	if err := db.RunMigrations(cfg.MigrationsPath); err != nil {
		return nil, fmt.Errorf("db migrate: %w", err)
	}
	return db.NewStore(db.DB, hub), nil
}

// InitRemote selects and returns the configured remote backend.
func InitRemote(cfg *config.Config) (RemoteBackend, error) {
	switch cfg.RemoteBackend {
	case config.BackendSpaces:
		spaces, err := storage.NewSpacesSource(
			cfg.SpacesEndpoint,
			cfg.SpacesRegion,
			cfg.SpacesBucket,
			cfg.SpacesAccessKey,
			cfg.SpacesSecretKey,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Spaces source: %w", err)
		}
		log.Info().Str("bucket", cfg.SpacesBucket).Msg("Using DigitalOcean Spaces routine source")
		return spaces, nil

	case config.BackendLocal:
		log.Info().Str("dir", cfg.DocumentsDir).Msg("Using local routine documents")
		return storage.NewLocalSource(cfg.DocumentsDir), nil

	default:
		if redis.Rdb == nil {
			return nil, fmt.Errorf("redis backend selected but redis is not connected")
		}
		log.Info().Msg("Using redis routine source")
		return redis.NewDocumentSource(redis.Rdb), nil
	}
}
