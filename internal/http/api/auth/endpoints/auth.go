package endpoints

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/routine/internal/http/api"
	"github.com/Nixie-Tech-LLC/routine/internal/http/api/auth/packets"
	"github.com/Nixie-Tech-LLC/routine/internal/http/middleware"
	"github.com/Nixie-Tech-LLC/routine/internal/routine"
)

// ProfileModule mounts the public profile endpoints. The token endpoint is
// only mounted when allowTokenIssue is set.
func ProfileModule(jwtSecret string, repo *routine.Repository, allowTokenIssue bool) api.Module {
	ctl := newProfileManager(jwtSecret, repo)
	return api.ModuleFunc(func(c *api.Controller) {
		c.PUBLIC_POST("/profile/validate", ctl.validateProfile)
		if allowTokenIssue {
			c.PUBLIC_POST("/auth/token", ctl.issueToken)
		}
	})
}

type ProfileManager struct {
	jwtSecret string
	repo      *routine.Repository
}

func newProfileManager(secret string, repo *routine.Repository) *ProfileManager {
	return &ProfileManager{jwtSecret: secret, repo: repo}
}

func (p *ProfileManager) checkProfile(ctx *gin.Context) (*packets.ProfileRequest, *api.APIError) {
	var request packets.ProfileRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, &api.APIError{Code: http.StatusBadRequest, Message: err.Error()}
	}

	data := p.repo.GetValidationData(ctx.Request.Context(), strings.TrimSpace(request.Department))
	if err := routine.ValidateProfile(&request, data); err != nil {
		return nil, api.FromError(err)
	}
	return &request, nil
}

// POST /api/profile/validate
func (p *ProfileManager) validateProfile(ctx *gin.Context) (any, *api.APIError) {
	request, apiErr := p.checkProfile(ctx)
	if apiErr != nil {
		return nil, apiErr
	}
	return packets.ProfileResponse{Valid: true, User: request.ToUser("")}, nil
}

// POST /api/auth/token
func (p *ProfileManager) issueToken(ctx *gin.Context) (any, *api.APIError) {
	request, apiErr := p.checkProfile(ctx)
	if apiErr != nil {
		return nil, apiErr
	}

	user := request.ToUser(uuid.NewString())
	token, err := middleware.GenerateJWT(user, p.jwtSecret, middleware.DefaultTokenTTL)
	if err != nil {
		log.Error().Err(err).Msg("could not generate token")
		return nil, &api.APIError{Code: http.StatusInternalServerError, Message: "could not generate token"}
	}

	log.Info().Str("user", user.ID).Str("department", user.Department).Str("role", user.Role).Msg("token issued")
	return packets.TokenResponse{
		Token:     token,
		ExpiresAt: time.Now().Add(middleware.DefaultTokenTTL).Unix(),
		User:      user,
	}, nil
}
