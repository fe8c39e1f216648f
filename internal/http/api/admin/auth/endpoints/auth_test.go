package endpoints

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nixie-Tech-LLC/routine/internal/http/api"
	"github.com/Nixie-Tech-LLC/routine/internal/http/middleware"
)

const secret = "test-secret"

func newRouter(t *testing.T, creds Credentials) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	api.MountGroup(r, api.GroupConfig{Prefix: "/api/admin"}, AuthPublicModule(secret, creds))
	api.MountGroup(r, api.GroupConfig{
		Prefix:    "/api/admin",
		Admin:     true,
		SecretKey: secret,
	}, AuthSessionModule())
	return r
}

func login(r *gin.Engine, email, password string) *httptest.ResponseRecorder {
	body, _ := json.Marshal(map[string]string{"email": email, "password": password})
	req := httptest.NewRequest(http.MethodPost, "/api/admin/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAdminLogin(t *testing.T) {
	hash, err := middleware.HashPassword("registrar-2025")
	require.NoError(t, err)
	r := newRouter(t, Credentials{Email: "registrar@campus.edu", PasswordHash: hash})

	assert.Equal(t, http.StatusUnauthorized, login(r, "registrar@campus.edu", "wrong").Code)
	assert.Equal(t, http.StatusUnauthorized, login(r, "someone@campus.edu", "registrar-2025").Code)
	assert.Equal(t, http.StatusBadRequest, login(r, "not-an-email", "x").Code)

	w := login(r, "Registrar@campus.edu", "registrar-2025")
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/auth/current_profile", nil)
	req.Header.Set("Authorization", "Bearer "+resp.Token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"role":"admin"`)
}

func TestAdminLoginDisabled(t *testing.T) {
	r := newRouter(t, Credentials{})
	assert.Equal(t, http.StatusUnauthorized, login(r, "registrar@campus.edu", "anything").Code)
}
