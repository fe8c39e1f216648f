package db

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nixie-Tech-LLC/routine/internal/model"
	"github.com/Nixie-Tech-LLC/routine/internal/notify"
)

func makeSnapshot(department, id string, version int64, rows int) model.ScheduleSnapshot {
	doc := model.RemoteDocument{
		ID:         id,
		Semester:   "Fall 2025",
		Department: department,
		Version:    version,
	}
	for i := 0; i < rows; i++ {
		doc.Schedule = append(doc.Schedule, model.RemoteEntry{
			Day:        "Sunday",
			Time:       fmt.Sprintf("%02d:00 - %02d:50", 8+i, 8+i),
			Room:       "601",
			CourseCode: fmt.Sprintf("CSE%03d", i),
			Batch:      "50",
			Section:    "A",
		})
	}
	return doc.ToSnapshot(time.Now().UnixMilli())
}

func expectSignal(t *testing.T, sub *notify.Subscription) {
	t.Helper()
	select {
	case <-sub.C():
	case <-time.After(time.Second):
		t.Fatalf("no change signal for %s", sub.Department())
	}
}

// runStoreContract exercises behaviour every Store implementation must share.
func runStoreContract(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("empty cache", func(t *testing.T) {
		meta, err := store.GetLatestSnapshot(ctx, "CSE")
		require.NoError(t, err)
		assert.Nil(t, meta)

		snap, err := store.LoadSnapshot(ctx, "CSE")
		require.NoError(t, err)
		assert.Nil(t, snap)
	})

	t.Run("replace is wholesale", func(t *testing.T) {
		sub := store.Subscribe("CSE")
		defer sub.Close()

		first := makeSnapshot("CSE", "cse-v100", 100, 2)
		require.NoError(t, store.ReplaceSnapshot(ctx, first))
		expectSignal(t, sub)

		meta, err := store.GetLatestSnapshot(ctx, "CSE")
		require.NoError(t, err)
		require.NotNil(t, meta)
		assert.Equal(t, int64(100), meta.Version)
		assert.Empty(t, meta.Entries)

		entries, err := store.GetEntries(ctx, first.ID)
		require.NoError(t, err)
		assert.Len(t, entries, 2)

		second := makeSnapshot("CSE", "cse-v200", 200, 3)
		require.NoError(t, store.ReplaceSnapshot(ctx, second))
		expectSignal(t, sub)

		old, err := store.GetEntries(ctx, first.ID)
		require.NoError(t, err)
		assert.Empty(t, old)

		loaded, err := store.LoadSnapshot(ctx, "CSE")
		require.NoError(t, err)
		require.NotNil(t, loaded)
		assert.Equal(t, int64(200), loaded.Version)
		assert.Len(t, loaded.Entries, 3)
		for _, e := range loaded.Entries {
			assert.Equal(t, second.ID, e.ScheduleID)
		}
	})

	t.Run("departments are isolated", func(t *testing.T) {
		require.NoError(t, store.ReplaceSnapshot(ctx, makeSnapshot("EEE", "eee-v1", 1, 1)))

		cse, err := store.LoadSnapshot(ctx, "CSE")
		require.NoError(t, err)
		require.NotNil(t, cse)
		assert.Len(t, cse.Entries, 3)

		depts, err := store.ListDepartments(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"CSE", "EEE"}, depts)
	})

	t.Run("delete department", func(t *testing.T) {
		sub := store.Subscribe("EEE")
		defer sub.Close()

		require.NoError(t, store.DeleteDepartment(ctx, "EEE"))
		expectSignal(t, sub)

		snap, err := store.LoadSnapshot(ctx, "EEE")
		require.NoError(t, err)
		assert.Nil(t, snap)
	})

	t.Run("conditional replace keeps the newer version", func(t *testing.T) {
		sub := store.Subscribe("BBA")
		defer sub.Close()

		written, err := store.ReplaceSnapshotIfNewer(ctx, makeSnapshot("BBA", "bba-v300", 300, 2))
		require.NoError(t, err)
		assert.True(t, written, "an empty cache accepts any version")
		expectSignal(t, sub)

		written, err = store.ReplaceSnapshotIfNewer(ctx, makeSnapshot("BBA", "bba-v200", 200, 5))
		require.NoError(t, err)
		assert.False(t, written)

		written, err = store.ReplaceSnapshotIfNewer(ctx, makeSnapshot("BBA", "bba-v300b", 300, 5))
		require.NoError(t, err)
		assert.False(t, written, "an equal version is not newer")

		snap, err := store.LoadSnapshot(ctx, "BBA")
		require.NoError(t, err)
		require.NotNil(t, snap)
		assert.Equal(t, int64(300), snap.Version)
		assert.Len(t, snap.Entries, 2)

		written, err = store.ReplaceSnapshotIfNewer(ctx, makeSnapshot("BBA", "bba-v400", 400, 1))
		require.NoError(t, err)
		assert.True(t, written)
		expectSignal(t, sub)

		require.NoError(t, store.DeleteDepartment(ctx, "BBA"))
	})

	t.Run("same remote id in two departments", func(t *testing.T) {
		require.NoError(t, store.ReplaceSnapshot(ctx, makeSnapshot("CIVIL", "fall-2025", 1, 2)))
		require.NoError(t, store.ReplaceSnapshot(ctx, makeSnapshot("TEXTILE", "fall-2025", 1, 2)))

		civil, err := store.LoadSnapshot(ctx, "CIVIL")
		require.NoError(t, err)
		require.NotNil(t, civil)
		assert.Len(t, civil.Entries, 2)

		// a raw snapshot id owned by another department is refused
		clash := makeSnapshot("TEXTILE", "fall-2025", 2, 1)
		clash.ID = civil.ID
		for i := range clash.Entries {
			clash.Entries[i].ScheduleID = civil.ID
			clash.Entries[i].ID += "-clash"
		}
		assert.Error(t, store.ReplaceSnapshot(ctx, clash))

		require.NoError(t, store.DeleteDepartment(ctx, "CIVIL"))
		require.NoError(t, store.DeleteDepartment(ctx, "TEXTILE"))
	})

	t.Run("reads never mix generations", func(t *testing.T) {
		a := makeSnapshot("ME", "me-a", 1, 4)
		b := makeSnapshot("ME", "me-b", 2, 7)
		require.NoError(t, store.ReplaceSnapshot(ctx, a))

		var wg sync.WaitGroup
		stop := make(chan struct{})
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer close(stop)
			for i := 0; i < 40; i++ {
				next := a
				if i%2 == 0 {
					next = b
				}
				next.Version = int64(i + 3)
				if err := store.ReplaceSnapshot(ctx, next); err != nil {
					t.Errorf("replace: %v", err)
					return
				}
			}
		}()

		for done := false; !done; {
			select {
			case <-stop:
				done = true
			default:
			}
			snap, err := store.LoadSnapshot(ctx, "ME")
			require.NoError(t, err)
			require.NotNil(t, snap)
			want := map[string]int{a.ID: 4, b.ID: 7}[snap.ID]
			assert.Len(t, snap.Entries, want)
			for _, e := range snap.Entries {
				assert.Equal(t, snap.ID, e.ScheduleID)
			}
		}
		wg.Wait()
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreContract(t, NewMemoryStore(nil))
}

func TestMemoryStoreRejectsDuplicateEntryIDs(t *testing.T) {
	store := NewMemoryStore(nil)
	snap := makeSnapshot("CSE", "dup", 1, 1)
	snap.Entries = append(snap.Entries, snap.Entries[0])

	err := store.ReplaceSnapshot(context.Background(), snap)
	assert.Error(t, err)

	meta, err := store.GetLatestSnapshot(context.Background(), "CSE")
	require.NoError(t, err)
	assert.Nil(t, meta, "a rejected replace must leave the cache untouched")
}

func TestPostgresStore(t *testing.T) {
	store, _, err := InitTestDB("../../migrations")
	if err != nil {
		t.Skipf("postgres not available, skipping: %v", err)
	}
	runStoreContract(t, store)
}

func TestRunMigrationsWithMissingPath(t *testing.T) {
	err := RunMigrations("./does-not-exist")
	assert.NoError(t, err, "an empty migrations directory is valid")
}
