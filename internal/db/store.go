// exposes the Store interface the routine repository caches schedules in
package db

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/Nixie-Tech-LLC/routine/internal/model"
	"github.com/Nixie-Tech-LLC/routine/internal/notify"
)

type Store interface {
	// ReplaceSnapshot swaps the department's cached snapshot and entries for
	// snap as one unit. Subscribers are signalled after commit.
	ReplaceSnapshot(ctx context.Context, snap model.ScheduleSnapshot) error
	// ReplaceSnapshotIfNewer replaces only when nothing is cached for the
	// department or the cached version is older than snap's. The comparison
	// and the write happen in the same transaction. It reports whether snap
	// was written.
	ReplaceSnapshotIfNewer(ctx context.Context, snap model.ScheduleSnapshot) (bool, error)
	// GetLatestSnapshot returns metadata only, or nil when nothing is cached.
	GetLatestSnapshot(ctx context.Context, department string) (*model.ScheduleSnapshot, error)
	GetEntries(ctx context.Context, snapshotID string) ([]model.ScheduleEntry, error)
	// LoadSnapshot returns metadata and entries from one consistent read,
	// or nil when nothing is cached.
	LoadSnapshot(ctx context.Context, department string) (*model.ScheduleSnapshot, error)
	DeleteDepartment(ctx context.Context, department string) error
	ListDepartments(ctx context.Context) ([]string, error)

	// Subscribe is the live query hook: the subscription is signalled after
	// every committed replace or delete for department.
	Subscribe(department string) *notify.Subscription
}

type pgStore struct {
	db  *sqlx.DB
	hub *notify.Hub
}

// compile-time check that pgStore implements Store
var _ Store = (*pgStore)(nil)

func NewStore(db *sqlx.DB, hub *notify.Hub) Store {
	if hub == nil {
		hub = notify.NewHub()
	}
	return &pgStore{db: db, hub: hub}
}

func (s *pgStore) Subscribe(department string) *notify.Subscription {
	return s.hub.Subscribe(department)
}
