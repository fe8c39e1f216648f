package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Nixie-Tech-LLC/routine/internal/apperr"
	"github.com/Nixie-Tech-LLC/routine/internal/http/middleware"
	"github.com/Nixie-Tech-LLC/routine/internal/model"
)

type APIError struct {
	Code    int
	Message string
	Fields  []apperr.FieldError
}

type HandlerFuncWithAuth func(ctx *gin.Context, user *model.User) (any, *APIError)
type HandlerFunc func(ctx *gin.Context) (any, *APIError)

var statusByKind = map[apperr.Kind]int{
	apperr.Network:        http.StatusServiceUnavailable,
	apperr.DataNotFound:   http.StatusNotFound,
	apperr.DataParsing:    http.StatusBadGateway,
	apperr.Sync:           http.StatusBadGateway,
	apperr.Database:       http.StatusInternalServerError,
	apperr.Validation:     http.StatusUnprocessableEntity,
	apperr.Authentication: http.StatusUnauthorized,
	apperr.Unauthorized:   http.StatusForbidden,
}

// FromError maps an error from the routine layer onto an HTTP error.
func FromError(err error) *APIError {
	if err == nil {
		return nil
	}
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		return &APIError{Code: http.StatusInternalServerError, Message: "internal error"}
	}

	code, ok := statusByKind[appErr.Kind]
	if !ok {
		code = http.StatusInternalServerError
	}
	msg := appErr.Message
	if msg == "" || code == http.StatusInternalServerError {
		msg = appErr.Kind.String() + " error"
	}
	return &APIError{Code: code, Message: msg, Fields: appErr.Fields}
}

func writeError(ctx *gin.Context, e *APIError) {
	body := gin.H{"error": e.Message}
	if len(e.Fields) > 0 {
		body["fields"] = e.Fields
	}
	ctx.JSON(e.Code, body)
}

func ResolveEndpointWithAuth(h HandlerFuncWithAuth) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		user, ok := middleware.GetCurrentUser(ctx)
		if !ok {
			ctx.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		result, apiErr := h(ctx, user)
		if apiErr != nil {
			writeError(ctx, apiErr)
			return
		}

		ctx.JSON(http.StatusOK, result)
	}
}

func ResolveEndpoint(h HandlerFunc) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		result, apiErr := h(ctx)
		if apiErr != nil {
			writeError(ctx, apiErr)
			return
		}

		ctx.JSON(http.StatusOK, result)
	}
}

// Controller is the route group a Module mounts its endpoints on.
type Controller struct {
	Group *gin.RouterGroup
}

func (c *Controller) GET(path string, h HandlerFuncWithAuth) {
	c.Group.GET(path, ResolveEndpointWithAuth(h))
}

func (c *Controller) POST(path string, h HandlerFuncWithAuth) {
	c.Group.POST(path, ResolveEndpointWithAuth(h))
}

func (c *Controller) PUT(path string, h HandlerFuncWithAuth) {
	c.Group.PUT(path, ResolveEndpointWithAuth(h))
}

func (c *Controller) DELETE(path string, h HandlerFuncWithAuth) {
	c.Group.DELETE(path, ResolveEndpointWithAuth(h))
}

func (c *Controller) PUBLIC_GET(path string, h HandlerFunc) {
	c.Group.GET(path, ResolveEndpoint(h))
}

func (c *Controller) PUBLIC_POST(path string, h HandlerFunc) {
	c.Group.POST(path, ResolveEndpoint(h))
}

// RAW_GET mounts a plain gin handler, for endpoints that take over the
// connection such as WebSocket upgrades.
func (c *Controller) RAW_GET(path string, h gin.HandlerFunc) {
	c.Group.GET(path, h)
}

// DepartmentParam returns the trimmed :department path parameter, or a 400
// when it is blank.
func DepartmentParam(ctx *gin.Context) (string, *APIError) {
	dept := strings.TrimSpace(ctx.Param("department"))
	if dept == "" {
		return "", &APIError{Code: http.StatusBadRequest, Message: "department is required"}
	}
	return dept, nil
}
