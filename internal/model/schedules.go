package model

import "strings"

// ScheduleEntry is one timetabled class occurrence.
type ScheduleEntry struct {
	ID             string `db:"id"              json:"id"`
	Day            string `db:"day"             json:"day"`
	Time           string `db:"time"            json:"time"` // "08:00 AM - 09:15 AM"
	Room           string `db:"room"            json:"room"`
	CourseCode     string `db:"course_code"     json:"course_code"`
	TeacherInitial string `db:"teacher_initial" json:"teacher_initial"`
	Batch          string `db:"batch"           json:"batch"`
	Section        string `db:"section"         json:"section"`
	LabSection     string `db:"lab_section"     json:"lab_section,omitempty"`
	Semester       string `db:"semester"        json:"semester"`
	Department     string `db:"department"      json:"department"`
	EffectiveFrom  string `db:"effective_from"  json:"effective_from"`
	ScheduleID     string `db:"schedule_id"     json:"schedule_id"`
	CreatedAt      int64  `db:"created_at"      json:"created_at"` // epoch millis
	UpdatedAt      int64  `db:"updated_at"      json:"updated_at"`
}

// ScheduleSnapshot is the full timetable of one department and semester.
// Entries is empty when only the metadata row was loaded.
type ScheduleSnapshot struct {
	ID            string          `db:"id"             json:"id"`
	Semester      string          `db:"semester"       json:"semester"`
	Department    string          `db:"department"     json:"department"`
	EffectiveFrom string          `db:"effective_from" json:"effective_from"`
	Version       int64           `db:"version"        json:"version"`
	CreatedAt     int64           `db:"created_at"     json:"created_at"`
	UpdatedAt     int64           `db:"updated_at"     json:"updated_at"`
	IsSynced      bool            `db:"is_synced"      json:"is_synced"`
	LastSyncTime  int64           `db:"last_sync_time" json:"last_sync_time"`
	Entries       []ScheduleEntry `db:"-"              json:"entries,omitempty"`
}

// EntryID derives the stable identifier of an entry so that importing the
// same document twice produces the same rows.
func EntryID(scheduleID, day, time, room, courseCode string) string {
	return strings.Join([]string{scheduleID, day, time, room, courseCode}, "_")
}

// RemoteEntry is one row of the remote schedule document.
type RemoteEntry struct {
	Day            string `json:"day"            validate:"required"`
	Time           string `json:"time"           validate:"required"`
	Room           string `json:"room"`
	CourseCode     string `json:"courseCode"     validate:"required"`
	TeacherInitial string `json:"teacherInitial"`
	Batch          string `json:"batch"`
	Section        string `json:"section"`
	LabSection     string `json:"labSection,omitempty"`
}

// RemoteDocument is the per-department document held by the remote source.
type RemoteDocument struct {
	ID            string        `json:"id"`
	Semester      string        `json:"semester"      validate:"required"`
	Department    string        `json:"department"    validate:"required"`
	EffectiveFrom string        `json:"effectiveFrom"`
	Schedule      []RemoteEntry `json:"schedule"      validate:"dive"`
	Version       int64         `json:"version"`
	CreatedAt     int64         `json:"createdAt"`
	UpdatedAt     int64         `json:"updatedAt"`
}

// VersionInfo is the result of a lightweight remote version probe.
type VersionInfo struct {
	Department string `json:"department"`
	Version    int64  `json:"version"`
	UpdatedAt  int64  `json:"updatedAt"`
}

// LocalScheduleID scopes a remote document id to its department, since
// different departments may publish documents under the same id. Documents
// without an id are keyed by semester.
func LocalScheduleID(department, remoteID, semester string) string {
	if remoteID == "" {
		remoteID = semester
	}
	return department + "/" + remoteID
}

// ToSnapshot converts the remote document into the local snapshot shape,
// deriving entry ids. syncedAt is stamped as LastSyncTime.
func (d RemoteDocument) ToSnapshot(syncedAt int64) ScheduleSnapshot {
	id := LocalScheduleID(d.Department, d.ID, d.Semester)

	entries := make([]ScheduleEntry, 0, len(d.Schedule))
	seen := make(map[string]struct{}, len(d.Schedule))
	for _, e := range d.Schedule {
		entryID := EntryID(id, e.Day, e.Time, e.Room, e.CourseCode)
		if _, dup := seen[entryID]; dup {
			continue
		}
		seen[entryID] = struct{}{}
		entries = append(entries, ScheduleEntry{
			ID:             entryID,
			Day:            e.Day,
			Time:           e.Time,
			Room:           e.Room,
			CourseCode:     e.CourseCode,
			TeacherInitial: e.TeacherInitial,
			Batch:          e.Batch,
			Section:        e.Section,
			LabSection:     e.LabSection,
			Semester:       d.Semester,
			Department:     d.Department,
			EffectiveFrom:  d.EffectiveFrom,
			ScheduleID:     id,
			CreatedAt:      d.CreatedAt,
			UpdatedAt:      d.UpdatedAt,
		})
	}

	return ScheduleSnapshot{
		ID:            id,
		Semester:      d.Semester,
		Department:    d.Department,
		EffectiveFrom: d.EffectiveFrom,
		Version:       d.Version,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
		IsSynced:      true,
		LastSyncTime:  syncedAt,
		Entries:       entries,
	}
}
