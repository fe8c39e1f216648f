package packets

import "github.com/Nixie-Tech-LLC/routine/internal/model"

// returned for profile endpoints
type ProfileResponse struct {
	Valid bool       `json:"valid"`
	User  model.User `json:"user"`
}

type TokenResponse struct {
	Token     string     `json:"token"`
	ExpiresAt int64      `json:"expires_at"`
	User      model.User `json:"user"`
}
