package routine

import (
	"context"

	"github.com/Nixie-Tech-LLC/routine/internal/apperr"
	"github.com/Nixie-Tech-LLC/routine/internal/model"
)

// Update is one value of an observed routine. Snapshot is nil while the
// department has nothing cached.
type Update struct {
	Snapshot *model.ScheduleSnapshot
	Err      error
}

// ObserveLatestSnapshot streams the cached routine of department: the current
// value first, then a fresh value after every committed change. Bursts of
// changes may be coalesced into one value. The channel is closed once ctx is
// done. Observing never fetches from the remote source.
func (r *Repository) ObserveLatestSnapshot(ctx context.Context, department string) <-chan Update {
	out := make(chan Update)
	// subscribe before the first read so no commit in between is missed
	sub := r.store.Subscribe(department)

	go func() {
		defer close(out)
		defer sub.Close()

		for {
			snap, err := r.store.LoadSnapshot(ctx, department)
			if ctx.Err() != nil {
				return
			}
			u := Update{Snapshot: snap}
			if err != nil {
				u.Err = apperr.Classify(apperr.Database, "routine.ObserveLatestSnapshot", err)
			}

			select {
			case out <- u:
			case <-ctx.Done():
				return
			}

			select {
			case <-sub.C():
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}
