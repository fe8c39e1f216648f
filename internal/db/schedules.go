package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/routine/internal/apperr"
	"github.com/Nixie-Tech-LLC/routine/internal/model"
)

// keeps each batched INSERT well under postgres' 65535 bind parameter limit
const entryInsertChunk = 500

const snapshotColumns = `id, semester, department, effective_from, version, created_at, updated_at, is_synced, last_sync_time`

const entryColumns = `id, day, time, room, course_code, teacher_initial, batch, section, lab_section,
	semester, department, effective_from, schedule_id, created_at, updated_at`

func (s *pgStore) ReplaceSnapshot(ctx context.Context, snap model.ScheduleSnapshot) error {
	_, err := s.replace(ctx, "db.ReplaceSnapshot", snap, false)
	return err
}

func (s *pgStore) ReplaceSnapshotIfNewer(ctx context.Context, snap model.ScheduleSnapshot) (bool, error) {
	return s.replace(ctx, "db.ReplaceSnapshotIfNewer", snap, true)
}

// replace swaps the department's rows for snap in one transaction. Writers of
// the same department are serialized on a transaction-scoped advisory lock,
// so the version check cannot interleave with another instance's write.
func (s *pgStore) replace(ctx context.Context, op string, snap model.ScheduleSnapshot, onlyNewer bool) (bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		log.Error().Err(err).Str("department", snap.Department).Msg("ReplaceSnapshot begin failed")
		return false, apperr.Wrap(apperr.Database, op, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1));`, "routine:"+snap.Department); err != nil {
		log.Error().Err(err).Str("department", snap.Department).Msg("ReplaceSnapshot lock failed")
		return false, apperr.Wrap(apperr.Database, op, err)
	}

	if onlyNewer {
		var cached sql.NullInt64
		if err := tx.GetContext(ctx, &cached, `SELECT MAX(version) FROM schedules WHERE department = $1;`, snap.Department); err != nil {
			log.Error().Err(err).Str("department", snap.Department).Msg("ReplaceSnapshot version check failed")
			return false, apperr.Wrap(apperr.Database, op, err)
		}
		if cached.Valid && cached.Int64 >= snap.Version {
			return false, nil
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM schedule_entries WHERE department = $1;`, snap.Department); err != nil {
		log.Error().Err(err).Str("department", snap.Department).Msg("ReplaceSnapshot delete entries failed")
		return false, apperr.Wrap(apperr.Database, op, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM schedules WHERE department = $1;`, snap.Department); err != nil {
		log.Error().Err(err).Str("department", snap.Department).Msg("ReplaceSnapshot delete schedules failed")
		return false, apperr.Wrap(apperr.Database, op, err)
	}

	if _, err := tx.NamedExecContext(ctx, `
	INSERT INTO schedules (`+snapshotColumns+`)
	VALUES (:id, :semester, :department, :effective_from, :version, :created_at, :updated_at, :is_synced, :last_sync_time);`,
		snap); err != nil {
		log.Error().Err(err).Str("schedule_id", snap.ID).Msg("ReplaceSnapshot insert schedule failed")
		return false, apperr.Wrap(apperr.Database, op, err)
	}

	for start := 0; start < len(snap.Entries); start += entryInsertChunk {
		end := start + entryInsertChunk
		if end > len(snap.Entries) {
			end = len(snap.Entries)
		}
		if _, err := tx.NamedExecContext(ctx, `
		INSERT INTO schedule_entries (`+entryColumns+`)
		VALUES (:id, :day, :time, :room, :course_code, :teacher_initial, :batch, :section, :lab_section,
			:semester, :department, :effective_from, :schedule_id, :created_at, :updated_at)`,
			snap.Entries[start:end]); err != nil {
			log.Error().Err(err).Str("schedule_id", snap.ID).Int("offset", start).Msg("ReplaceSnapshot insert entries failed")
			return false, apperr.Wrap(apperr.Database, op, err)
		}
	}

	if err := tx.Commit(); err != nil {
		log.Error().Err(err).Str("department", snap.Department).Msg("ReplaceSnapshot commit failed")
		return false, apperr.Wrap(apperr.Database, op, err)
	}

	s.hub.Publish(snap.Department)
	return true, nil
}

func (s *pgStore) GetLatestSnapshot(ctx context.Context, department string) (*model.ScheduleSnapshot, error) {
	var snap model.ScheduleSnapshot
	err := s.db.GetContext(ctx, &snap, `
	SELECT `+snapshotColumns+`
	  FROM schedules
	 WHERE department = $1
	 ORDER BY version DESC
	 LIMIT 1;`, department)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		log.Error().Err(err).Str("department", department).Msg("GetLatestSnapshot failed")
		return nil, apperr.Wrap(apperr.Database, "db.GetLatestSnapshot", err)
	}
	return &snap, nil
}

func (s *pgStore) GetEntries(ctx context.Context, snapshotID string) ([]model.ScheduleEntry, error) {
	out := []model.ScheduleEntry{}
	if err := s.db.SelectContext(ctx, &out, `
	SELECT `+entryColumns+`
	  FROM schedule_entries
	 WHERE schedule_id = $1
	 ORDER BY id;`, snapshotID); err != nil {
		log.Error().Err(err).Str("schedule_id", snapshotID).Msg("GetEntries failed")
		return nil, apperr.Wrap(apperr.Database, "db.GetEntries", err)
	}
	return out, nil
}

func (s *pgStore) LoadSnapshot(ctx context.Context, department string) (*model.ScheduleSnapshot, error) {
	const op = "db.LoadSnapshot"

	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		log.Error().Err(err).Str("department", department).Msg("LoadSnapshot begin failed")
		return nil, apperr.Wrap(apperr.Database, op, err)
	}
	defer func() { _ = tx.Rollback() }()

	var snap model.ScheduleSnapshot
	err = tx.GetContext(ctx, &snap, `
	SELECT `+snapshotColumns+`
	  FROM schedules
	 WHERE department = $1
	 ORDER BY version DESC
	 LIMIT 1;`, department)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		log.Error().Err(err).Str("department", department).Msg("LoadSnapshot schedule failed")
		return nil, apperr.Wrap(apperr.Database, op, err)
	}

	snap.Entries = []model.ScheduleEntry{}
	if err := tx.SelectContext(ctx, &snap.Entries, `
	SELECT `+entryColumns+`
	  FROM schedule_entries
	 WHERE schedule_id = $1
	 ORDER BY id;`, snap.ID); err != nil {
		log.Error().Err(err).Str("schedule_id", snap.ID).Msg("LoadSnapshot entries failed")
		return nil, apperr.Wrap(apperr.Database, op, err)
	}
	return &snap, nil
}

func (s *pgStore) DeleteDepartment(ctx context.Context, department string) error {
	const op = "db.DeleteDepartment"

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return apperr.Wrap(apperr.Database, op, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1));`, "routine:"+department); err != nil {
		return apperr.Wrap(apperr.Database, op, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM schedule_entries WHERE department = $1;`, department); err != nil {
		log.Error().Err(err).Str("department", department).Msg("DeleteDepartment entries failed")
		return apperr.Wrap(apperr.Database, op, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM schedules WHERE department = $1;`, department); err != nil {
		log.Error().Err(err).Str("department", department).Msg("DeleteDepartment schedules failed")
		return apperr.Wrap(apperr.Database, op, err)
	}
	if err := tx.Commit(); err != nil {
		return apperr.Wrap(apperr.Database, op, err)
	}

	s.hub.Publish(department)
	return nil
}

func (s *pgStore) ListDepartments(ctx context.Context) ([]string, error) {
	out := []string{}
	if err := s.db.SelectContext(ctx, &out, `SELECT DISTINCT department FROM schedules ORDER BY department;`); err != nil {
		log.Error().Err(err).Msg("ListDepartments failed")
		return nil, apperr.Wrap(apperr.Database, "db.ListDepartments", err)
	}
	return out, nil
}
