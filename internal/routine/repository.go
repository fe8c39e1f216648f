package routine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/routine/internal/apperr"
	"github.com/Nixie-Tech-LLC/routine/internal/db"
	"github.com/Nixie-Tech-LLC/routine/internal/model"
)

// RemoteSource is the authoritative copy of every department's routine.
// Implementations return apperr-classified errors; anything unclassified is
// treated as a network failure.
type RemoteSource interface {
	CourseSource
	FetchVersion(ctx context.Context, department string) (model.VersionInfo, error)
	FetchDocument(ctx context.Context, department string) (*model.RemoteDocument, error)
}

// Repository serves department routines out of the local cache and keeps
// that cache in step with the remote source.
type Repository struct {
	store   db.Store
	remote  RemoteSource
	courses *CourseNames
	now     func() time.Time

	// one writer per department at a time within this process; the store's
	// conditional replace covers writers in other processes
	locksMu sync.Mutex
	locks   map[string]chan struct{}
}

func NewRepository(store db.Store, remote RemoteSource) *Repository {
	return &Repository{
		store:   store,
		remote:  remote,
		courses: NewCourseNames(remote),
		now:     time.Now,
		locks:   make(map[string]chan struct{}),
	}
}

// lockDepartment waits for the department's writer slot. The returned func
// releases it.
func (r *Repository) lockDepartment(ctx context.Context, op, department string) (func(), error) {
	r.locksMu.Lock()
	slot, ok := r.locks[department]
	if !ok {
		slot = make(chan struct{}, 1)
		r.locks[department] = slot
	}
	r.locksMu.Unlock()

	select {
	case slot <- struct{}{}:
		return func() { <-slot }, nil
	case <-ctx.Done():
		return nil, apperr.Wrap(apperr.Unknown, op, ctx.Err())
	}
}

func checkDocument(op, department string, doc *model.RemoteDocument) error {
	if doc == nil {
		return apperr.New(apperr.DataNotFound, op, "no routine published for "+department)
	}
	if doc.Department != department {
		return apperr.New(apperr.Sync, op, fmt.Sprintf("remote document belongs to %q, not %q", doc.Department, department))
	}
	if doc.Version <= 0 {
		return apperr.New(apperr.Sync, op, fmt.Sprintf("remote document for %s has invalid version %d", department, doc.Version))
	}
	return nil
}

// fetchAndPersist pulls the remote document and writes it to the cache. With
// onlyNewer the write is skipped when the cache already holds the same or a
// newer version, and the cached snapshot is returned instead. The caller
// holds the department lock.
func (r *Repository) fetchAndPersist(ctx context.Context, op, department string, onlyNewer bool) (*model.ScheduleSnapshot, error) {
	doc, err := r.remote.FetchDocument(ctx, department)
	if err != nil {
		log.Warn().Err(err).Str("department", department).Msg("fetch remote routine failed")
		return nil, apperr.Classify(apperr.Network, op, err)
	}
	if err := checkDocument(op, department, doc); err != nil {
		log.Warn().Err(err).Str("department", department).Msg("rejecting remote routine")
		return nil, err
	}

	snap := doc.ToSnapshot(r.now().UnixMilli())
	if !onlyNewer {
		if err := r.store.ReplaceSnapshot(ctx, snap); err != nil {
			return nil, apperr.Classify(apperr.Database, op, err)
		}
	} else {
		written, err := r.store.ReplaceSnapshotIfNewer(ctx, snap)
		if err != nil {
			return nil, apperr.Classify(apperr.Database, op, err)
		}
		if !written {
			cached, err := r.store.LoadSnapshot(ctx, department)
			if err != nil {
				return nil, apperr.Classify(apperr.Database, op, err)
			}
			if cached != nil {
				return cached, nil
			}
			return nil, apperr.New(apperr.Sync, op, "cache changed during fetch for "+department)
		}
	}
	r.courses.Invalidate(department)

	log.Info().
		Str("department", department).
		Int64("version", snap.Version).
		Int("entries", len(snap.Entries)).
		Msg("routine cache replaced")
	return &snap, nil
}

// GetLatestSnapshot returns the cached routine of department, fetching it
// from the remote source when nothing is cached yet.
func (r *Repository) GetLatestSnapshot(ctx context.Context, department string) (*model.ScheduleSnapshot, error) {
	const op = "routine.GetLatestSnapshot"

	snap, err := r.store.LoadSnapshot(ctx, department)
	if err != nil {
		return nil, apperr.Classify(apperr.Database, op, err)
	}
	if snap != nil {
		return snap, nil
	}

	unlock, err := r.lockDepartment(ctx, op, department)
	if err != nil {
		return nil, err
	}
	defer unlock()

	// another caller may have filled the cache while we waited
	snap, err = r.store.LoadSnapshot(ctx, department)
	if err != nil {
		return nil, apperr.Classify(apperr.Database, op, err)
	}
	if snap != nil {
		return snap, nil
	}
	return r.fetchAndPersist(ctx, op, department, true)
}

// SyncSnapshot replaces the cache only when the remote version is newer than
// the cached one. It reports whether a replacement happened.
func (r *Repository) SyncSnapshot(ctx context.Context, department string) (bool, error) {
	const op = "routine.SyncSnapshot"

	unlock, err := r.lockDepartment(ctx, op, department)
	if err != nil {
		return false, err
	}
	defer unlock()

	cached, err := r.store.GetLatestSnapshot(ctx, department)
	if err != nil {
		return false, apperr.Classify(apperr.Database, op, err)
	}

	doc, err := r.remote.FetchDocument(ctx, department)
	if err != nil {
		log.Warn().Err(err).Str("department", department).Msg("sync fetch failed")
		return false, apperr.Classify(apperr.Network, op, err)
	}
	if err := checkDocument(op, department, doc); err != nil {
		return false, err
	}

	if cached != nil && doc.Version <= cached.Version {
		log.Debug().
			Str("department", department).
			Int64("cached", cached.Version).
			Int64("remote", doc.Version).
			Msg("routine already current")
		return false, nil
	}

	snap := doc.ToSnapshot(r.now().UnixMilli())
	written, err := r.store.ReplaceSnapshotIfNewer(ctx, snap)
	if err != nil {
		return false, apperr.Classify(apperr.Database, op, err)
	}
	if !written {
		log.Debug().Str("department", department).Int64("remote", doc.Version).Msg("newer routine cached during sync")
		return false, nil
	}
	r.courses.Invalidate(department)

	log.Info().Str("department", department).Int64("version", snap.Version).Msg("routine synced")
	return true, nil
}

// CheckForUpdates compares the remote version against the cache without
// touching it. An empty cache always reports true.
func (r *Repository) CheckForUpdates(ctx context.Context, department string) (bool, error) {
	const op = "routine.CheckForUpdates"

	cached, err := r.store.GetLatestSnapshot(ctx, department)
	if err != nil {
		return false, apperr.Classify(apperr.Database, op, err)
	}

	info, err := r.remote.FetchVersion(ctx, department)
	if err != nil {
		return false, apperr.Classify(apperr.Network, op, err)
	}

	if cached == nil {
		return true, nil
	}
	return info.Version > cached.Version, nil
}

// RefreshFromRemote replaces the cache with the remote document regardless of
// version.
func (r *Repository) RefreshFromRemote(ctx context.Context, department string) (*model.ScheduleSnapshot, error) {
	const op = "routine.RefreshFromRemote"

	unlock, err := r.lockDepartment(ctx, op, department)
	if err != nil {
		return nil, err
	}
	defer unlock()

	return r.fetchAndPersist(ctx, op, department, false)
}

func (r *Repository) GetEntriesForUser(ctx context.Context, user model.User) ([]model.ScheduleEntry, error) {
	snap, err := r.GetLatestSnapshot(ctx, user.Department)
	if err != nil {
		return nil, err
	}
	return FilterForUser(snap.Entries, user), nil
}

func (r *Repository) GetEntriesForUserAndDay(ctx context.Context, user model.User, day string) ([]model.ScheduleEntry, error) {
	entries, err := r.GetEntriesForUser(ctx, user)
	if err != nil {
		return nil, err
	}
	return FilterByDay(entries, day), nil
}

func (r *Repository) GetActiveDaysForUser(ctx context.Context, user model.User) ([]string, error) {
	entries, err := r.GetEntriesForUser(ctx, user)
	if err != nil {
		return nil, err
	}
	return ActiveDays(entries), nil
}

// ClearLocalData drops the cached routine of department.
func (r *Repository) ClearLocalData(ctx context.Context, department string) error {
	const op = "routine.ClearLocalData"

	unlock, err := r.lockDepartment(ctx, op, department)
	if err != nil {
		return err
	}
	defer unlock()

	if err := r.store.DeleteDepartment(ctx, department); err != nil {
		return apperr.Classify(apperr.Database, op, err)
	}
	r.courses.Invalidate(department)
	return nil
}

// GetValidationData never fails; when no routine can be loaded the result is
// empty and the cause is logged.
func (r *Repository) GetValidationData(ctx context.Context, department string) model.ValidationData {
	snap, err := r.GetLatestSnapshot(ctx, department)
	if err != nil {
		log.Warn().Err(err).Str("department", department).Msg("validation data unavailable")
		return model.EmptyValidationData()
	}
	return ExtractValidationData(snap.Entries)
}

func (r *Repository) CourseName(ctx context.Context, department, code string) string {
	return r.courses.Lookup(ctx, department, code)
}

// InvalidateCourseNames drops the cached course names of department.
func (r *Repository) InvalidateCourseNames(department string) {
	r.courses.Invalidate(department)
}

// SyncAll syncs every department present in the cache. Failures are logged
// per department and do not stop the rest.
func (r *Repository) SyncAll(ctx context.Context) (int, error) {
	departments, err := r.store.ListDepartments(ctx)
	if err != nil {
		return 0, apperr.Classify(apperr.Database, "routine.SyncAll", err)
	}

	replaced := 0
	for _, dept := range departments {
		ok, err := r.SyncSnapshot(ctx, dept)
		if err != nil {
			log.Error().Err(err).Str("department", dept).Msg("sync failed")
			continue
		}
		if ok {
			replaced++
		}
	}
	return replaced, nil
}
