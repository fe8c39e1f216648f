package packets

import "github.com/Nixie-Tech-LLC/routine/internal/routine"

// body for POST /api/profile/validate and POST /api/auth/token
type ProfileRequest = routine.ProfileForm
