package packets

import "github.com/Nixie-Tech-LLC/routine/internal/model"

// returned for snapshot endpoints
type SnapshotResponse struct {
	ID            string                `json:"id"`
	Semester      string                `json:"semester"`
	Department    string                `json:"department"`
	EffectiveFrom string                `json:"effective_from"`
	Version       int64                 `json:"version"`
	UpdatedAt     int64                 `json:"updated_at"`
	LastSyncTime  int64                 `json:"last_sync_time"`
	Entries       []model.ScheduleEntry `json:"entries"`
}

func NewSnapshotResponse(s *model.ScheduleSnapshot) *SnapshotResponse {
	if s == nil {
		return nil
	}
	entries := s.Entries
	if entries == nil {
		entries = []model.ScheduleEntry{}
	}
	return &SnapshotResponse{
		ID:            s.ID,
		Semester:      s.Semester,
		Department:    s.Department,
		EffectiveFrom: s.EffectiveFrom,
		Version:       s.Version,
		UpdatedAt:     s.UpdatedAt,
		LastSyncTime:  s.LastSyncTime,
		Entries:       entries,
	}
}

// EntryResponse is a schedule entry with its course display name resolved.
type EntryResponse struct {
	model.ScheduleEntry
	CourseName string `json:"course_name"`
}

type EntriesResponse struct {
	Day     string          `json:"day,omitempty"`
	Entries []EntryResponse `json:"entries"`
}

type DaysResponse struct {
	Days []string `json:"days"`
}

type SyncResponse struct {
	Department string `json:"department"`
	Replaced   bool   `json:"replaced"`
}

type UpdatesResponse struct {
	Department string `json:"department"`
	Stale      bool   `json:"stale"`
}

// WatchMessage is one frame of the live routine stream. Snapshot is null
// while the department has nothing cached.
type WatchMessage struct {
	Snapshot *SnapshotResponse `json:"snapshot"`
	Error    string            `json:"error,omitempty"`
}
