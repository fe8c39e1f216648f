package db

import (
	"context"
	"errors"
	"os"

	"github.com/Nixie-Tech-LLC/routine/internal/notify"
)

// InitTestDB connects to TEST_DATABASE_URL, applies migrations and returns a
// Store over it together with its hub.
func InitTestDB(migrationsPath string) (Store, *notify.Hub, error) {
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		return nil, nil, errors.New("TEST_DATABASE_URL environment variable is not set")
	}

	if err := Init(context.Background(), dbURL); err != nil {
		return nil, nil, err
	}

	if err := RunMigrations(migrationsPath); err != nil {
		return nil, nil, err
	}

	if _, err := DB.Exec(`TRUNCATE schedule_entries, schedules;`); err != nil {
		return nil, nil, err
	}

	hub := notify.NewHub()
	return NewStore(DB, hub), hub, nil
}
