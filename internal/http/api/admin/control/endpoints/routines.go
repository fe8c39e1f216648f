package endpoints

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/routine/internal/http/api"
	"github.com/Nixie-Tech-LLC/routine/internal/http/api/admin/control/packets"
	"github.com/Nixie-Tech-LLC/routine/internal/model"
	"github.com/Nixie-Tech-LLC/routine/internal/routine"
)

// DocumentPublisher writes routine documents to the remote source.
type DocumentPublisher interface {
	Publish(ctx context.Context, doc model.RemoteDocument) error
	SaveCourseNames(ctx context.Context, department string, names map[string]string) error
}

// Notifier announces a new routine version to subscribed clients.
type Notifier interface {
	NotifyDepartment(department string, version int64) error
}

type RoutineController struct {
	publisher DocumentPublisher
	notifier  Notifier
	repo      *routine.Repository
}

func NewRoutineController(publisher DocumentPublisher, notifier Notifier, repo *routine.Repository) *RoutineController {
	return &RoutineController{publisher: publisher, notifier: notifier, repo: repo}
}

// RoutineModule mounts the admin write path. notifier may be nil when no
// broker is configured.
func RoutineModule(publisher DocumentPublisher, notifier Notifier, repo *routine.Repository) api.Module {
	ctl := NewRoutineController(publisher, notifier, repo)
	return api.ModuleFunc(func(c *api.Controller) {
		c.POST("/routines", ctl.publishRoutine)
		c.PUT("/routines/:department/courses", ctl.saveCourseNames)
	})
}

// POST /api/admin/routines
func (r *RoutineController) publishRoutine(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	var request packets.PublishRoutineRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, &api.APIError{Code: http.StatusBadRequest, Message: err.Error()}
	}
	request.Department = strings.TrimSpace(request.Department)

	if err := routine.ValidateDocument(&request); err != nil {
		return nil, api.FromError(err)
	}

	now := time.Now().UnixMilli()
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	if request.CreatedAt == 0 {
		request.CreatedAt = now
	}
	request.Version = now
	request.UpdatedAt = now

	if err := r.publisher.Publish(ctx.Request.Context(), request); err != nil {
		return nil, api.FromError(err)
	}
	log.Info().
		Str("department", request.Department).
		Int64("version", request.Version).
		Int("entries", len(request.Schedule)).
		Str("by", user.ID).
		Msg("routine published")

	response := packets.PublishRoutineResponse{
		ID:         request.ID,
		Department: request.Department,
		Version:    request.Version,
		Entries:    len(request.Schedule),
	}

	if r.notifier != nil {
		if err := r.notifier.NotifyDepartment(request.Department, request.Version); err != nil {
			log.Warn().Err(err).Str("department", request.Department).Msg("failed to announce routine")
		} else {
			response.Notified = true
		}
	}

	// bring this instance up to date without waiting for the announcement
	if _, err := r.repo.SyncSnapshot(ctx.Request.Context(), request.Department); err != nil {
		log.Warn().Err(err).Str("department", request.Department).Msg("local sync after publish failed")
	} else {
		response.Synced = true
	}

	return response, nil
}

// PUT /api/admin/routines/:department/courses
func (r *RoutineController) saveCourseNames(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	dept, apiErr := api.DepartmentParam(ctx)
	if apiErr != nil {
		return nil, apiErr
	}
	var request packets.CourseNamesRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, &api.APIError{Code: http.StatusBadRequest, Message: err.Error()}
	}

	if err := r.publisher.SaveCourseNames(ctx.Request.Context(), dept, request.Courses); err != nil {
		return nil, api.FromError(err)
	}
	r.repo.InvalidateCourseNames(dept)
	return gin.H{"message": "saved", "courses": len(request.Courses)}, nil
}
