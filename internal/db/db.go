package db

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

var (
	DB *sqlx.DB
)

const (
	connectAttempts = 10
	connectBackoff  = 2 * time.Second
	maxOpenConns    = 10
)

// Init connects to postgres, retrying while the server comes up, and assigns
// the pool to DB. It gives up early when ctx is cancelled.
func Init(ctx context.Context, databaseURL string) error {
	var err error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		var conn *sqlx.DB
		conn, err = sqlx.ConnectContext(ctx, "postgres", databaseURL)
		if err == nil {
			conn.SetMaxOpenConns(maxOpenConns)
			conn.SetMaxIdleConns(maxOpenConns / 2)
			conn.SetConnMaxLifetime(30 * time.Minute)
			DB = conn
			log.Info().Int("attempt", attempt).Msg("connected to routine cache database")
			return nil
		}

		log.Error().Err(err).
			Int("attempt", attempt).
			Msgf("routine cache database unreachable, retrying in %s", connectBackoff)

		select {
		case <-ctx.Done():
			return fmt.Errorf("connect cancelled: %w", ctx.Err())
		case <-time.After(connectBackoff):
		}
	}

	return fmt.Errorf("could not connect to database after %d attempts: %w", connectAttempts, err)
}

// RunMigrations applies every "*.up.sql" file under migrationsPath in name
// order, each in its own transaction. Applied files are recorded in
// schema_migrations and skipped on later runs.
func RunMigrations(migrationsPath string) error {
	files, err := filepath.Glob(filepath.Join(migrationsPath, "*.up.sql"))
	if err != nil {
		return fmt.Errorf("failed to glob migrations: %w", err)
	}
	if len(files) == 0 {
		log.Warn().Str("path", migrationsPath).Msg("no migrations found")
		return nil
	}
	sort.Strings(files)

	if _, err := DB.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			name       TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	var applied []string
	if err := DB.Select(&applied, `SELECT name FROM schema_migrations`); err != nil {
		return fmt.Errorf("list applied migrations: %w", err)
	}
	done := make(map[string]bool, len(applied))
	for _, name := range applied {
		done[name] = true
	}

	for _, file := range files {
		name := filepath.Base(file)
		if done[name] {
			continue
		}

		raw, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("could not read migration %q: %w", name, err)
		}
		if strings.TrimSpace(string(raw)) == "" {
			continue
		}

		if err := applyMigration(name, string(raw)); err != nil {
			log.Error().Err(err).Str("file", name).Msg("migration failed")
			return err
		}
		log.Info().Str("file", name).Msg("migration applied")
	}
	return nil
}

func applyMigration(name, stmt string) error {
	tx, err := DB.Beginx()
	if err != nil {
		return fmt.Errorf("begin migration %q: %w", name, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(stmt); err != nil {
		return fmt.Errorf("error executing migration %q: %w", name, err)
	}
	if _, err := tx.Exec(`INSERT INTO schema_migrations (name) VALUES ($1)`, name); err != nil {
		return fmt.Errorf("record migration %q: %w", name, err)
	}
	return tx.Commit()
}
