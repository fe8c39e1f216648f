package main

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/Nixie-Tech-LLC/routine/internal/config"
	"github.com/Nixie-Tech-LLC/routine/internal/http/api"
	authapi "github.com/Nixie-Tech-LLC/routine/internal/http/api/admin/auth/endpoints"
	adminapi "github.com/Nixie-Tech-LLC/routine/internal/http/api/admin/control/endpoints"
	profileapi "github.com/Nixie-Tech-LLC/routine/internal/http/api/auth/endpoints"
	routineapi "github.com/Nixie-Tech-LLC/routine/internal/http/api/routine/endpoints"
	"github.com/Nixie-Tech-LLC/routine/internal/routine"
)

// RegisterRoutes sets up all application routes
func RegisterRoutes(r *gin.Engine, cfg *config.Config, repo *routine.Repository, remote RemoteBackend, notifier adminapi.Notifier) {
	// CORS
	r.Use(cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool { return true },
		AllowMethods: []string{
			"GET",
			"POST",
			"PUT",
			"DELETE",
			"OPTIONS",
			"HEAD",
		},
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Authorization",
			"Accept",
		},
		ExposeHeaders: []string{
			"Content-Length",
		},
		AllowCredentials: false,
	}))

	api.MountGroup(r, api.GroupConfig{
		Prefix: "/api",
	},
		routineapi.RoutinePublicModule(repo),
		profileapi.ProfileModule(cfg.JWTSecret, repo, cfg.AllowTokenIssue),
	)

	api.MountGroup(r, api.GroupConfig{
		Prefix:    "/api",
		Auth:      true,
		SecretKey: cfg.JWTSecret,
	},
		routineapi.RoutineModule(repo),
	)

	api.MountGroup(r, api.GroupConfig{
		Prefix: "/api/admin",
	},
		authapi.AuthPublicModule(cfg.JWTSecret, authapi.Credentials{
			Email:        cfg.AdminEmail,
			PasswordHash: cfg.AdminPasswordHash,
		}),
	)

	api.MountGroup(r, api.GroupConfig{
		Prefix:    "/api/admin",
		Admin:     true,
		SecretKey: cfg.JWTSecret,
	},
		authapi.AuthSessionModule(),
		adminapi.RoutineModule(remote, notifier, repo),
	)
}
