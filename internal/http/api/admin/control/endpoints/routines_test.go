package endpoints

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nixie-Tech-LLC/routine/internal/db"
	"github.com/Nixie-Tech-LLC/routine/internal/http/api"
	"github.com/Nixie-Tech-LLC/routine/internal/http/api/admin/control/packets"
	"github.com/Nixie-Tech-LLC/routine/internal/http/middleware"
	"github.com/Nixie-Tech-LLC/routine/internal/model"
	"github.com/Nixie-Tech-LLC/routine/internal/routine"
	"github.com/Nixie-Tech-LLC/routine/internal/routine/routinetest"
)

const secret = "test-secret"

type recordingNotifier struct {
	notices map[string]int64
	err     error
}

func (n *recordingNotifier) NotifyDepartment(department string, version int64) error {
	if n.err != nil {
		return n.err
	}
	n.notices[department] = version
	return nil
}

type fixture struct {
	router   *gin.Engine
	remote   *routinetest.Remote
	store    db.Store
	repo     *routine.Repository
	notifier *recordingNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &fixture{
		remote:   routinetest.NewRemote(),
		store:    db.NewMemoryStore(nil),
		notifier: &recordingNotifier{notices: map[string]int64{}},
	}
	f.repo = routine.NewRepository(f.store, f.remote)

	f.router = gin.New()
	api.MountGroup(f.router, api.GroupConfig{
		Prefix:    "/api/admin",
		Admin:     true,
		SecretKey: secret,
	}, RoutineModule(f.remote, f.notifier, f.repo))
	return f
}

func (f *fixture) send(t *testing.T, method, path string, user model.User, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	token, err := middleware.GenerateJWT(user, secret, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

var admin = model.User{ID: "registrar@campus.edu", Role: model.RoleAdmin}

func document() model.RemoteDocument {
	return model.RemoteDocument{
		Semester:   "Spring 2026",
		Department: "CSE",
		Schedule: []model.RemoteEntry{
			{Day: "Sunday", Time: "08:00 AM - 09:15 AM", Room: "601", CourseCode: "CSE101", Batch: "52", Section: "A"},
			{Day: "Sunday", Time: "08:00 AM - 09:15 AM", Room: "601", CourseCode: "CSE101", Batch: "52", Section: "A"},
		},
	}
}

func TestPublishRoutine(t *testing.T) {
	f := newFixture(t)
	before := time.Now().UnixMilli()

	w := f.send(t, http.MethodPost, "/api/admin/routines", admin, document())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp packets.PublishRoutineResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.ID)
	assert.GreaterOrEqual(t, resp.Version, before)
	assert.True(t, resp.Synced)
	assert.True(t, resp.Notified)
	assert.Equal(t, resp.Version, f.notifier.notices["CSE"])

	published, err := f.remote.FetchDocument(context.Background(), "CSE")
	require.NoError(t, err)
	assert.Equal(t, resp.Version, published.UpdatedAt)

	// duplicate rows collapse into one cached entry
	snap, err := f.store.LoadSnapshot(context.Background(), "CSE")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, resp.Version, snap.Version)
	assert.Len(t, snap.Entries, 1)
}

func TestPublishRoutineRejectsInvalidDocument(t *testing.T) {
	f := newFixture(t)

	doc := document()
	doc.Semester = ""
	w := f.send(t, http.MethodPost, "/api/admin/routines", admin, doc)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "semester")

	_, err := f.remote.FetchDocument(context.Background(), "CSE")
	assert.Error(t, err, "nothing is published")
}

func TestPublishRoutineRequiresAdmin(t *testing.T) {
	f := newFixture(t)
	student := model.User{ID: "s-1", Role: model.RoleStudent, Department: "CSE"}

	w := f.send(t, http.MethodPost, "/api/admin/routines", student, document())
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestPublishRoutineSurvivesBrokerFailure(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = errors.New("broker unreachable")

	w := f.send(t, http.MethodPost, "/api/admin/routines", admin, document())
	require.Equal(t, http.StatusOK, w.Code)

	var resp packets.PublishRoutineResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Notified)
	assert.True(t, resp.Synced)
}

func TestPublishRoutineRemoteDown(t *testing.T) {
	f := newFixture(t)
	f.remote.Fail(errors.New("connection refused"))

	w := f.send(t, http.MethodPost, "/api/admin/routines", admin, document())
	assert.Equal(t, http.StatusInternalServerError, w.Code, "unclassified publish errors are internal")
}

func TestSaveCourseNames(t *testing.T) {
	f := newFixture(t)

	w := f.send(t, http.MethodPut, "/api/admin/routines/CSE/courses", admin, packets.CourseNamesRequest{
		Courses: map[string]string{"CSE101": "Structured Programming"},
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Structured Programming", f.repo.CourseName(context.Background(), "CSE", "CSE101"))
}

func TestSaveCourseNamesRequiresDepartment(t *testing.T) {
	f := newFixture(t)

	w := f.send(t, http.MethodPut, "/api/admin/routines/%20%20/courses", admin, packets.CourseNamesRequest{
		Courses: map[string]string{"CSE101": "Structured Programming"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	names, err := f.remote.FetchCourseNames(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, names)
	names, err = f.remote.FetchCourseNames(context.Background(), "  ")
	require.NoError(t, err)
	assert.Empty(t, names)
}
