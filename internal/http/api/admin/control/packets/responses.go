package packets

type PublishRoutineResponse struct {
	ID         string `json:"id"`
	Department string `json:"department"`
	Version    int64  `json:"version"`
	Entries    int    `json:"entries"`
	// whether this instance's cache already holds the new version
	Synced   bool `json:"synced"`
	Notified bool `json:"notified"`
}
