package endpoints

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/routine/internal/http/api"
	"github.com/Nixie-Tech-LLC/routine/internal/http/api/routine/packets"
	"github.com/Nixie-Tech-LLC/routine/internal/model"
	"github.com/Nixie-Tech-LLC/routine/internal/routine"
)

type RoutineController struct {
	repo *routine.Repository
}

func NewRoutineController(repo *routine.Repository) *RoutineController {
	return &RoutineController{repo: repo}
}

// RoutineModule mounts the routine endpoints that need a signed-in user.
func RoutineModule(repo *routine.Repository) api.Module {
	ctl := NewRoutineController(repo)
	return api.ModuleFunc(func(c *api.Controller) {
		// the caller's own routine
		c.GET("/routine/snapshot", ctl.getOwnSnapshot)
		c.GET("/routine/entries", ctl.listEntries)
		c.GET("/routine/days", ctl.listDays)

		// any department
		c.GET("/routine/departments/:department/snapshot", ctl.getSnapshot)
		c.POST("/routine/departments/:department/sync", ctl.syncDepartment)
		c.GET("/routine/departments/:department/updates", ctl.checkUpdates)
		c.POST("/routine/departments/:department/refresh", ctl.refreshDepartment)
		c.DELETE("/routine/departments/:department/cache", ctl.clearDepartment)

		c.RAW_GET("/routine/departments/:department/watch", ctl.watch)
	})
}

// RoutinePublicModule mounts the endpoints needed before a user has a token.
func RoutinePublicModule(repo *routine.Repository) api.Module {
	ctl := NewRoutineController(repo)
	return api.ModuleFunc(func(c *api.Controller) {
		c.PUBLIC_GET("/routine/departments/:department/validation", ctl.getValidationData)
	})
}

// GET /api/routine/snapshot
func (r *RoutineController) getOwnSnapshot(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	if user.Department == "" {
		return nil, &api.APIError{Code: http.StatusBadRequest, Message: "token carries no department"}
	}
	snap, err := r.repo.GetLatestSnapshot(ctx.Request.Context(), user.Department)
	if err != nil {
		return nil, api.FromError(err)
	}
	return packets.NewSnapshotResponse(snap), nil
}

// GET /api/routine/departments/:department/snapshot
func (r *RoutineController) getSnapshot(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	dept, apiErr := api.DepartmentParam(ctx)
	if apiErr != nil {
		return nil, apiErr
	}
	snap, err := r.repo.GetLatestSnapshot(ctx.Request.Context(), dept)
	if err != nil {
		return nil, api.FromError(err)
	}
	return packets.NewSnapshotResponse(snap), nil
}

// GET /api/routine/entries?day=Sunday
func (r *RoutineController) listEntries(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	var query packets.EntriesQuery
	if err := ctx.ShouldBindQuery(&query); err != nil {
		return nil, &api.APIError{Code: http.StatusBadRequest, Message: err.Error()}
	}

	var (
		entries []model.ScheduleEntry
		err     error
	)
	if query.Day != "" {
		entries, err = r.repo.GetEntriesForUserAndDay(ctx.Request.Context(), *user, query.Day)
	} else {
		entries, err = r.repo.GetEntriesForUser(ctx.Request.Context(), *user)
	}
	if err != nil {
		return nil, api.FromError(err)
	}

	response := packets.EntriesResponse{Day: query.Day, Entries: make([]packets.EntryResponse, 0, len(entries))}
	for _, e := range entries {
		response.Entries = append(response.Entries, packets.EntryResponse{
			ScheduleEntry: e,
			CourseName:    r.repo.CourseName(ctx.Request.Context(), user.Department, e.CourseCode),
		})
	}
	return response, nil
}

// GET /api/routine/days
func (r *RoutineController) listDays(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	days, err := r.repo.GetActiveDaysForUser(ctx.Request.Context(), *user)
	if err != nil {
		return nil, api.FromError(err)
	}
	return packets.DaysResponse{Days: days}, nil
}

// POST /api/routine/departments/:department/sync
func (r *RoutineController) syncDepartment(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	dept, apiErr := api.DepartmentParam(ctx)
	if apiErr != nil {
		return nil, apiErr
	}
	replaced, err := r.repo.SyncSnapshot(ctx.Request.Context(), dept)
	if err != nil {
		return nil, api.FromError(err)
	}
	return packets.SyncResponse{Department: dept, Replaced: replaced}, nil
}

// GET /api/routine/departments/:department/updates
func (r *RoutineController) checkUpdates(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	dept, apiErr := api.DepartmentParam(ctx)
	if apiErr != nil {
		return nil, apiErr
	}
	stale, err := r.repo.CheckForUpdates(ctx.Request.Context(), dept)
	if err != nil {
		return nil, api.FromError(err)
	}
	return packets.UpdatesResponse{Department: dept, Stale: stale}, nil
}

// POST /api/routine/departments/:department/refresh
func (r *RoutineController) refreshDepartment(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	if !user.IsAdmin() {
		return nil, &api.APIError{Code: http.StatusForbidden, Message: "admin access required"}
	}
	dept, apiErr := api.DepartmentParam(ctx)
	if apiErr != nil {
		return nil, apiErr
	}
	snap, err := r.repo.RefreshFromRemote(ctx.Request.Context(), dept)
	if err != nil {
		return nil, api.FromError(err)
	}
	log.Info().Str("department", dept).Str("by", user.ID).Msg("routine force-refreshed")
	return packets.NewSnapshotResponse(snap), nil
}

// DELETE /api/routine/departments/:department/cache
func (r *RoutineController) clearDepartment(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	if !user.IsAdmin() {
		return nil, &api.APIError{Code: http.StatusForbidden, Message: "admin access required"}
	}
	dept, apiErr := api.DepartmentParam(ctx)
	if apiErr != nil {
		return nil, apiErr
	}
	if err := r.repo.ClearLocalData(ctx.Request.Context(), dept); err != nil {
		return nil, api.FromError(err)
	}
	return gin.H{"message": "cleared"}, nil
}

// GET /api/routine/departments/:department/validation
func (r *RoutineController) getValidationData(ctx *gin.Context) (any, *api.APIError) {
	dept, apiErr := api.DepartmentParam(ctx)
	if apiErr != nil {
		return nil, apiErr
	}
	return r.repo.GetValidationData(ctx.Request.Context(), dept), nil
}
