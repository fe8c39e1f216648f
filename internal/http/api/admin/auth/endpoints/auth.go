package endpoints

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/routine/internal/http/api"
	"github.com/Nixie-Tech-LLC/routine/internal/http/api/admin/auth/packets"
	"github.com/Nixie-Tech-LLC/routine/internal/http/middleware"
	"github.com/Nixie-Tech-LLC/routine/internal/model"
)

// Credentials is the single admin account, configured by environment.
type Credentials struct {
	Email        string
	PasswordHash string
}

// AuthPublicModule mounts public admin auth endpoints (/auth/login)
func AuthPublicModule(jwtSecret string, admin Credentials) api.Module {
	ctl := newAccountManager(jwtSecret, admin)
	return api.ModuleFunc(func(c *api.Controller) {
		c.PUBLIC_POST("/auth/login", ctl.adminLogin)
	})
}

// AuthSessionModule mounts private session endpoints (JWT required)
func AuthSessionModule() api.Module {
	return api.ModuleFunc(func(c *api.Controller) {
		c.GET("/auth/current_profile", getCurrentProfile)
	})
}

type AccountManager struct {
	jwtSecret string
	admin     Credentials
}

func newAccountManager(secret string, admin Credentials) *AccountManager {
	return &AccountManager{jwtSecret: secret, admin: admin}
}

// POST /api/admin/auth/login
func (a *AccountManager) adminLogin(ctx *gin.Context) (any, *api.APIError) {
	var request packets.LoginRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, &api.APIError{Code: http.StatusBadRequest, Message: err.Error()}
	}

	if a.admin.Email == "" || a.admin.PasswordHash == "" {
		return nil, &api.APIError{Code: http.StatusUnauthorized, Message: "admin login is disabled"}
	}
	if err := middleware.Authenticate(a.admin.Email, a.admin.PasswordHash, request.Email, request.Password); err != nil {
		log.Warn().Str("email", request.Email).Msg("admin login failed")
		return nil, &api.APIError{Code: http.StatusUnauthorized, Message: err.Error()}
	}

	admin := model.User{ID: a.admin.Email, Name: "admin", Role: model.RoleAdmin}
	token, err := middleware.GenerateJWT(admin, a.jwtSecret, middleware.DefaultTokenTTL)
	if err != nil {
		return nil, &api.APIError{Code: http.StatusInternalServerError, Message: "could not generate token"}
	}

	return gin.H{"token": token}, nil
}

// GET /api/admin/auth/current_profile
func getCurrentProfile(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	return user, nil
}
