package api

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/routine/internal/http/middleware"
)

// Module attaches a feature's endpoints to a Controller.
type Module interface {
	Mount(c *Controller)
}

type ModuleFunc func(c *Controller)

func (f ModuleFunc) Mount(c *Controller) { f(c) }

// GroupConfig describes one mounted route group. Admin implies Auth.
type GroupConfig struct {
	Prefix     string
	Auth       bool
	Admin      bool
	SecretKey  string
	Middleware []gin.HandlerFunc // run after the auth checks
}

// MountGroup creates a group under parent, installs its middleware in
// order (JWT, admin role, extras) and mounts modules on it.
func MountGroup(parent gin.IRouter, cfg GroupConfig, modules ...Module) *gin.RouterGroup {
	grp := parent.Group(cfg.Prefix)

	if cfg.Auth || cfg.Admin {
		if cfg.SecretKey == "" {
			log.Fatal().Str("prefix", cfg.Prefix).Msg("api.MountGroup: auth required but no secret key configured")
		}
		grp.Use(middleware.JWTMiddleware(cfg.SecretKey))
	}
	if cfg.Admin {
		grp.Use(middleware.RequireAdmin())
	}
	grp.Use(cfg.Middleware...)

	controller := &Controller{Group: grp}
	for _, m := range modules {
		m.Mount(controller)
	}

	log.Debug().Str("prefix", cfg.Prefix).Bool("auth", cfg.Auth || cfg.Admin).Bool("admin", cfg.Admin).Int("modules", len(modules)).Msg("route group mounted")
	return grp
}
