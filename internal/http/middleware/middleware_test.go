package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nixie-Tech-LLC/routine/internal/model"
)

const secret = "test-secret"

var student = model.User{ID: "u-1", Role: model.RoleStudent, Department: "CSE", Batch: "50", Section: "A"}

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	m.Run()
}

func TestTokenRoundTrip(t *testing.T) {
	token, err := GenerateJWT(student, secret, time.Hour)
	require.NoError(t, err)

	user, err := parseToken(token, secret)
	require.NoError(t, err)
	assert.Equal(t, student, *user)

	_, err = parseToken(token, "other-secret")
	assert.Error(t, err)

	expired, err := GenerateJWT(student, secret, -time.Minute)
	require.NoError(t, err)
	_, err = parseToken(expired, secret)
	assert.Error(t, err)

	anonymous, err := GenerateJWT(model.User{ID: "x"}, secret, time.Hour)
	require.NoError(t, err)
	_, err = parseToken(anonymous, secret)
	assert.Error(t, err, "a token without role is rejected")
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, "correct horse"))
	assert.False(t, CheckPassword(hash, "battery staple"))
}

func newRouter(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(mw...)
	r.GET("/whoami", func(c *gin.Context) {
		u, ok := GetCurrentUser(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, u)
	})
	return r
}

func TestJWTMiddleware(t *testing.T) {
	r := newRouter(JWTMiddleware(secret))
	token, err := GenerateJWT(student, secret, time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name    string
		header  string
		query   string
		upgrade bool
		want    int
	}{
		{"bearer token", "Bearer " + token, "", false, http.StatusOK},
		{"missing header", "", "", false, http.StatusUnauthorized},
		{"wrong scheme", "Basic " + token, "", false, http.StatusUnauthorized},
		{"garbage token", "Bearer nope", "", false, http.StatusUnauthorized},
		{"query token on websocket", "", "?token=" + token, true, http.StatusOK},
		{"query token without websocket", "", "?token=" + token, false, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.upgrade {
				req.Header.Set("Upgrade", "websocket")
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	r := newRouter(JWTMiddleware(secret), RequireAdmin())

	call := func(u model.User) int {
		token, err := GenerateJWT(u, secret, time.Hour)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusForbidden, call(student))
	assert.Equal(t, http.StatusOK, call(model.User{ID: "admin@campus.edu", Role: model.RoleAdmin}))
}

func TestRequireRole(t *testing.T) {
	r := newRouter(JWTMiddleware(secret), RequireRole(model.RoleStudent, model.RoleTeacher))

	call := func(u model.User) int {
		token, err := GenerateJWT(u, secret, time.Hour)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, call(student))
	assert.Equal(t, http.StatusOK, call(model.User{ID: "t-1", Role: model.RoleTeacher, Department: "CSE", TeacherInitial: "MRH"}))
	assert.Equal(t, http.StatusForbidden, call(model.User{ID: "ops", Role: model.RoleAdmin}))
}

func TestAuthenticate(t *testing.T) {
	hash, err := HashPassword("registrar-2025")
	require.NoError(t, err)

	assert.NoError(t, Authenticate("ops@campus.edu", hash, " OPS@campus.edu", "registrar-2025"))
	assert.ErrorIs(t, Authenticate("ops@campus.edu", hash, "ops@campus.edu", "wrong"), ErrInvalidCredentials)
	assert.ErrorIs(t, Authenticate("ops@campus.edu", hash, "other@campus.edu", "registrar-2025"), ErrInvalidCredentials)
	assert.ErrorIs(t, Authenticate("", "", "", ""), ErrInvalidCredentials)
}
