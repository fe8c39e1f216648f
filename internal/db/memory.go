package db

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Nixie-Tech-LLC/routine/internal/apperr"
	"github.com/Nixie-Tech-LLC/routine/internal/model"
	"github.com/Nixie-Tech-LLC/routine/internal/notify"
)

// memStore keeps the cache in process memory. It backs the server when no
// DATABASE_URL is configured and is the store used by unit tests.
type memStore struct {
	mu    sync.RWMutex
	table map[string]model.ScheduleSnapshot // department => snapshot with entries
	hub   *notify.Hub
}

var _ Store = (*memStore)(nil)

func NewMemoryStore(hub *notify.Hub) Store {
	if hub == nil {
		hub = notify.NewHub()
	}
	return &memStore{table: make(map[string]model.ScheduleSnapshot), hub: hub}
}

func (s *memStore) ReplaceSnapshot(ctx context.Context, snap model.ScheduleSnapshot) error {
	_, err := s.replace("db.ReplaceSnapshot", snap, false)
	return err
}

func (s *memStore) ReplaceSnapshotIfNewer(ctx context.Context, snap model.ScheduleSnapshot) (bool, error) {
	return s.replace("db.ReplaceSnapshotIfNewer", snap, true)
}

func (s *memStore) replace(op string, snap model.ScheduleSnapshot, onlyNewer bool) (bool, error) {
	seen := make(map[string]struct{}, len(snap.Entries))
	for _, e := range snap.Entries {
		if _, dup := seen[e.ID]; dup {
			return false, apperr.Wrap(apperr.Database, op, fmt.Errorf("duplicate entry id %q", e.ID))
		}
		seen[e.ID] = struct{}{}
	}

	stored := snap
	stored.Entries = append([]model.ScheduleEntry(nil), snap.Entries...)
	// same order as the postgres store
	sort.Slice(stored.Entries, func(i, j int) bool { return stored.Entries[i].ID < stored.Entries[j].ID })

	s.mu.Lock()
	// snapshot ids are unique across departments, as the primary key is in postgres
	for dept, other := range s.table {
		if dept != snap.Department && other.ID == snap.ID {
			s.mu.Unlock()
			return false, apperr.Wrap(apperr.Database, op, fmt.Errorf("snapshot id %q already cached for %s", snap.ID, dept))
		}
	}
	if cached, ok := s.table[snap.Department]; onlyNewer && ok && cached.Version >= snap.Version {
		s.mu.Unlock()
		return false, nil
	}
	s.table[snap.Department] = stored
	s.mu.Unlock()

	s.hub.Publish(snap.Department)
	return true, nil
}

func (s *memStore) GetLatestSnapshot(_ context.Context, department string) (*model.ScheduleSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.table[department]
	if !ok {
		return nil, nil
	}
	snap.Entries = nil
	return &snap, nil
}

func (s *memStore) GetEntries(_ context.Context, snapshotID string) ([]model.ScheduleEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, snap := range s.table {
		if snap.ID == snapshotID {
			return append([]model.ScheduleEntry{}, snap.Entries...), nil
		}
	}
	return []model.ScheduleEntry{}, nil
}

func (s *memStore) LoadSnapshot(_ context.Context, department string) (*model.ScheduleSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.table[department]
	if !ok {
		return nil, nil
	}
	snap.Entries = append([]model.ScheduleEntry{}, snap.Entries...)
	return &snap, nil
}

func (s *memStore) DeleteDepartment(_ context.Context, department string) error {
	s.mu.Lock()
	delete(s.table, department)
	s.mu.Unlock()

	s.hub.Publish(department)
	return nil
}

func (s *memStore) ListDepartments(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.table))
	for d := range s.table {
		out = append(out, d)
	}
	sort.Strings(out)
	return out, nil
}

func (s *memStore) Subscribe(department string) *notify.Subscription {
	return s.hub.Subscribe(department)
}
