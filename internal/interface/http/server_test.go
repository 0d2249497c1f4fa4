package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnhub/learning-hub/config"
	"github.com/learnhub/learning-hub/internal/application/command"
	"github.com/learnhub/learning-hub/internal/application/query"
	"github.com/learnhub/learning-hub/internal/domain/analytics"
	"github.com/learnhub/learning-hub/internal/domain/shared"
	"github.com/learnhub/learning-hub/internal/infrastructure/auth"
	"github.com/learnhub/learning-hub/internal/infrastructure/persistence/kv"
	"github.com/learnhub/learning-hub/internal/interface/http/handlers"
	"github.com/learnhub/learning-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// FIXTURE
// ══════════════════════════════════════════════════════════════════════════════

type fakeStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (f *fakeStorage) Upload(_ context.Context, path, _ string, body io.Reader, _ int64) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[path] = data
	return nil
}

func (f *fakeStorage) SignedURL(_ context.Context, path string, _ time.Duration) (string, error) {
	return "https://storage.test/sign/" + path, nil
}

type apiFixture struct {
	t        *testing.T
	srv      *httptest.Server
	tokens   *auth.JWTService
	features *config.FeatureFlags
	storage  *fakeStorage
	authDeps command.AuthDeps
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	store := kv.NewMemoryStore()
	repos := kv.NewRepositories(store)
	locker := kv.NewKeyedMutex()

	tokens, err := auth.NewJWTService("test-secret-that-is-long-enough-for-hs256", "learning-hub", time.Hour)
	require.NoError(t, err)

	authDeps := command.AuthDeps{
		Users:       repos.Users,
		Credentials: repos.Credentials,
		Hasher:      auth.NewBcryptHasher(4),
		Tokens:      tokens,
		Locker:      locker,
	}
	courseDeps := command.CourseDeps{Courses: repos.Courses, Locker: locker}
	engineDeps := command.EngineDeps{
		Users:       repos.Users,
		Courses:     repos.Courses,
		Enrollments: repos.Enrollments,
		Locker:      locker,
	}
	sources := analytics.Sources{
		Users:       repos.Users,
		Courses:     repos.Courses,
		Enrollments: repos.Enrollments,
		Paths:       repos.Paths,
	}
	storage := &fakeStorage{objects: make(map[string][]byte)}
	features := config.LoadFeatureFlags()

	checker := handlers.NewCompositeHealthChecker("test")
	checker.AddCheck("store", handlers.NewPingCheck(store))

	cfg := DefaultConfig()
	cfg.RateLimitPerMinute = 0

	s := NewServer(cfg, Dependencies{
		Signup:              command.NewSignupHandler(authDeps),
		Login:               command.NewLoginHandler(authDeps),
		UpdateProfile:       command.NewUpdateProfileHandler(repos.Users, locker, nil),
		CreateCourse:        command.NewCreateCourseHandler(courseDeps),
		UpdateCourse:        command.NewUpdateCourseHandler(courseDeps),
		DeleteCourse:        command.NewDeleteCourseHandler(courseDeps),
		Enroll:              command.NewEnrollHandler(engineDeps),
		CompleteModule:      command.NewCompleteModuleHandler(engineDeps),
		SubmitVideoProgress: command.NewSubmitVideoProgressHandler(engineDeps, repos.Progress),
		CreateLearningPath:  command.NewCreateLearningPathHandler(repos.Paths, nil),
		UploadMedia:         command.NewUploadMediaHandler(storage, nil),
		SeedCatalog:         command.NewSeedCatalogHandler(repos.Courses, repos.Paths, locker),

		GetProfile:    query.NewGetProfileHandler(repos.Users),
		ListCourses:   query.NewListCoursesHandler(repos.Courses),
		GetCourse:     query.NewGetCourseHandler(repos.Courses),
		LearningPaths: query.NewLearningPathsHandler(repos.Paths, repos.Courses),
		MyEnrollments: query.NewMyEnrollmentsHandler(repos.Enrollments, repos.Courses),
		UserProgress:  query.NewUserProgressHandler(repos.Enrollments, repos.Courses),
		VideoProgress: query.NewVideoProgressHandler(repos.Progress),
		Analytics:     query.NewAnalyticsHandler(sources, repos.Snapshots),

		Identity:      tokens,
		Features:      features,
		Logger:        logger.New(logger.Options{Output: io.Discard}),
		HealthChecker: checker,
	})

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	return &apiFixture{t: t, srv: srv, tokens: tokens, features: features, storage: storage, authDeps: authDeps}
}

type envelope struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	Error     *APIError       `json:"error"`
	Meta      *ResponseMeta   `json:"meta"`
	RequestID string          `json:"request_id"`
}

func (f *apiFixture) do(method, path, token string, body interface{}) (int, envelope) {
	f.t.Helper()

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(f.t, err)
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, f.srv.URL+path, rdr)
	require.NoError(f.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return f.send(req)
}

func (f *apiFixture) send(req *http.Request) (int, envelope) {
	f.t.Helper()
	resp, err := f.srv.Client().Do(req)
	require.NoError(f.t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(f.t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func decodeData(t *testing.T, env envelope, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, v))
}

func (f *apiFixture) signup(email, role string) (token, userID string) {
	f.t.Helper()
	status, env := f.do(http.MethodPost, "/api/v1/auth/signup", "", map[string]interface{}{
		"email": email, "password": "secret123", "name": "Test " + role, "role": role,
	})
	require.Equal(f.t, http.StatusCreated, status, "signup %s: %+v", email, env.Error)

	var sess struct {
		Token string `json:"token"`
		User  struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	decodeData(f.t, env, &sess)
	return sess.Token, sess.User.ID
}

func (f *apiFixture) adminToken() string {
	f.t.Helper()
	tok, _, err := f.tokens.Issue("admin-1", shared.RoleAdmin)
	require.NoError(f.t, err)
	return tok
}

func (f *apiFixture) createCourse(token string) string {
	f.t.Helper()
	status, env := f.do(http.MethodPost, "/api/v1/courses", token, map[string]interface{}{
		"title": "Revit Basics",
		"level": "Beginner",
		"tags":  []string{"bim"},
		"modules": []map[string]interface{}{
			{"id": "m1", "title": "Intro"},
			{"id": "m2", "title": "Walls"},
		},
	})
	require.Equal(f.t, http.StatusCreated, status, "create course: %+v", env.Error)

	var c struct {
		ID string `json:"id"`
	}
	decodeData(f.t, env, &c)
	require.NotEmpty(f.t, c.ID)
	return c.ID
}

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH
// ══════════════════════════════════════════════════════════════════════════════

func TestHealthEndpoints(t *testing.T) {
	f := newAPIFixture(t)

	for _, path := range []string{"/health", "/ready", "/live"} {
		status, env := f.do(http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusOK, status, path)
		assert.True(t, env.Success, path)
	}
}

func TestRequestIDIsEchoed(t *testing.T) {
	f := newAPIFixture(t)

	req, err := http.NewRequest(http.MethodGet, f.srv.URL+"/api/v1/courses/missing", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-ID", "req-123")

	status, env := f.send(req)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "req-123", env.RequestID)
}

// ══════════════════════════════════════════════════════════════════════════════
// AUTH
// ══════════════════════════════════════════════════════════════════════════════

func TestSignupLoginAndProfile(t *testing.T) {
	f := newAPIFixture(t)

	token, userID := f.signup("ada@example.com", "learner")

	status, env := f.do(http.MethodGet, "/api/v1/users/me", token, nil)
	require.Equal(t, http.StatusOK, status)
	var me struct {
		ID    string `json:"id"`
		Email string `json:"email"`
		Role  string `json:"role"`
	}
	decodeData(t, env, &me)
	assert.Equal(t, userID, me.ID)
	assert.Equal(t, "ada@example.com", me.Email)
	assert.Equal(t, "learner", me.Role)

	status, env = f.do(http.MethodPut, "/api/v1/users/me", token, map[string]interface{}{"name": "Ada L."})
	require.Equal(t, http.StatusOK, status)
	var updated struct {
		Name string `json:"name"`
	}
	decodeData(t, env, &updated)
	assert.Equal(t, "Ada L.", updated.Name)

	status, _ = f.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "ada@example.com", "password": "secret123"})
	assert.Equal(t, http.StatusOK, status)

	status, env = f.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "ada@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "unauthorized", env.Error.Code)
}

func TestSignupRejectsDuplicateEmailAndAdminRole(t *testing.T) {
	f := newAPIFixture(t)
	f.signup("dup@example.com", "learner")

	status, env := f.do(http.MethodPost, "/api/v1/auth/signup", "", map[string]string{
		"email": "dup@example.com", "password": "secret123", "name": "Again",
	})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "already_exists", env.Error.Code)

	status, _ = f.do(http.MethodPost, "/api/v1/auth/signup", "", map[string]string{
		"email": "boss@example.com", "password": "secret123", "name": "Boss", "role": "admin",
	})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestSignupFeatureFlag(t *testing.T) {
	f := newAPIFixture(t)
	require.NoError(t, f.features.DisableFeature(config.FeatureSelfSignup))

	status, env := f.do(http.MethodPost, "/api/v1/auth/signup", "", map[string]string{
		"email": "x@example.com", "password": "secret123", "name": "X",
	})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "feature_disabled", env.Error.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	f := newAPIFixture(t)

	status, env := f.do(http.MethodGet, "/api/v1/users/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.False(t, env.Success)

	status, _ = f.do(http.MethodGet, "/api/v1/enrollments/my-courses", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestMalformedBody(t *testing.T) {
	f := newAPIFixture(t)

	req, err := http.NewRequest(http.MethodPost, f.srv.URL+"/api/v1/auth/login", strings.NewReader("{not json"))
	require.NoError(t, err)
	status, env := f.send(req)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid_request", env.Error.Code)
}

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG & ENROLLMENT FLOW
// ══════════════════════════════════════════════════════════════════════════════

func TestCourseAuthoringPermissions(t *testing.T) {
	f := newAPIFixture(t)
	instructor, _ := f.signup("teach@example.com", "instructor")
	learner, _ := f.signup("learn@example.com", "learner")

	courseID := f.createCourse(instructor)

	status, env := f.do(http.MethodPost, "/api/v1/courses", learner, map[string]string{"title": "Nope", "level": "Beginner"})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "forbidden", env.Error.Code)

	status, env = f.do(http.MethodGet, "/api/v1/courses?tags=bim", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, env.Meta.TotalCount)

	status, _ = f.do(http.MethodGet, "/api/v1/courses?level=Advanced", "", nil)
	require.Equal(t, http.StatusOK, status)

	status, _ = f.do(http.MethodPut, "/api/v1/courses/"+courseID, instructor, map[string]string{"title": "Revit Basics 2"})
	assert.Equal(t, http.StatusOK, status)

	other, _ := f.signup("other@example.com", "instructor")
	status, _ = f.do(http.MethodDelete, "/api/v1/courses/"+courseID, other, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = f.do(http.MethodDelete, "/api/v1/courses/"+courseID, instructor, nil)
	assert.Equal(t, http.StatusOK, status)

	status, env = f.do(http.MethodGet, "/api/v1/courses/"+courseID, "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "not_found", env.Error.Code)
}

func TestEnrollmentAndProgressFlow(t *testing.T) {
	f := newAPIFixture(t)
	instructor, _ := f.signup("teach@example.com", "instructor")
	learner, _ := f.signup("learn@example.com", "learner")
	courseID := f.createCourse(instructor)

	status, env := f.do(http.MethodPost, "/api/v1/enrollments", learner, map[string]string{"courseId": courseID})
	require.Equal(t, http.StatusCreated, status, "%+v", env.Error)

	status, env = f.do(http.MethodPost, "/api/v1/enrollments", learner, map[string]string{"courseId": courseID})
	require.Equal(t, http.StatusOK, status)
	var again enrollResponse
	decodeData(t, env, &again)
	assert.True(t, again.AlreadyEnrolled)

	status, env = f.do(http.MethodGet, "/api/v1/courses/"+courseID, "", nil)
	require.Equal(t, http.StatusOK, status)
	var c struct {
		EnrollmentCount int `json:"enrollmentCount"`
	}
	decodeData(t, env, &c)
	assert.Equal(t, 1, c.EnrollmentCount)

	status, env = f.do(http.MethodPut, "/api/v1/enrollments/"+courseID+"/progress", learner, map[string]string{"moduleId": "m1"})
	require.Equal(t, http.StatusOK, status, "%+v", env.Error)
	var step progressResponse
	decodeData(t, env, &step)
	assert.True(t, step.ModuleAdded)
	assert.InDelta(t, 50.0, step.Enrollment.Progress, 0.001)
	assert.False(t, step.CourseCompleted)

	status, env = f.do(http.MethodPost, "/api/v1/video-progress", learner, map[string]interface{}{
		"courseId": courseID, "moduleId": "m2", "watchedSeconds": 95, "totalSeconds": 100, "percentage": 95,
	})
	require.Equal(t, http.StatusOK, status, "%+v", env.Error)
	var vp videoProgressResponse
	decodeData(t, env, &vp)
	assert.True(t, vp.Progress.Completed)
	assert.True(t, vp.Cascaded)
	assert.True(t, vp.CourseCompleted)

	status, env = f.do(http.MethodGet, "/api/v1/video-progress/"+courseID+"/m2", learner, nil)
	require.Equal(t, http.StatusOK, status)

	status, env = f.do(http.MethodGet, "/api/v1/video-progress/"+courseID, learner, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, env.Meta.TotalCount)

	status, env = f.do(http.MethodGet, "/api/v1/enrollments/my-courses", learner, nil)
	require.Equal(t, http.StatusOK, status)
	var mine []struct {
		CourseID string  `json:"courseId"`
		Status   string  `json:"status"`
		Progress float64 `json:"progress"`
		Course   *struct {
			ID string `json:"id"`
		} `json:"course"`
	}
	decodeData(t, env, &mine)
	require.Len(t, mine, 1)
	assert.Equal(t, "completed", mine[0].Status)
	assert.InDelta(t, 100.0, mine[0].Progress, 0.001)
	require.NotNil(t, mine[0].Course)
	assert.Equal(t, courseID, mine[0].Course.ID)

	status, env = f.do(http.MethodGet, "/api/v1/analytics/user-progress", learner, nil)
	require.Equal(t, http.StatusOK, status)
	var up struct {
		Completed int `json:"completed"`
	}
	decodeData(t, env, &up)
	assert.Equal(t, 1, up.Completed)
}

func TestUpdateProgressCompletedFlag(t *testing.T) {
	f := newAPIFixture(t)
	instructor, _ := f.signup("teach@example.com", "instructor")
	learner, _ := f.signup("learn@example.com", "learner")
	courseID := f.createCourse(instructor)

	status, env := f.do(http.MethodPost, "/api/v1/enrollments", learner, map[string]string{"courseId": courseID})
	require.Equal(t, http.StatusCreated, status, "%+v", env.Error)

	status, env = f.do(http.MethodPut, "/api/v1/enrollments/"+courseID+"/progress", learner, map[string]interface{}{
		"moduleId": "m1", "progress": 50, "completed": true,
	})
	require.Equal(t, http.StatusOK, status, "%+v", env.Error)
	var res progressResponse
	decodeData(t, env, &res)
	assert.True(t, res.CourseCompleted)
	assert.Equal(t, "completed", string(res.Enrollment.Status))
	assert.InDelta(t, 100.0, res.Enrollment.Progress, 0.001)
	assert.NotNil(t, res.Enrollment.CompletedAt)
}

func TestEnrollUnknownCourse(t *testing.T) {
	f := newAPIFixture(t)
	learner, _ := f.signup("learn@example.com", "learner")

	status, _ := f.do(http.MethodPost, "/api/v1/enrollments", learner, map[string]string{"courseId": "nope"})
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = f.do(http.MethodPost, "/api/v1/enrollments", learner, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestVideoProgressWithoutEnrollmentIsStoredOnly(t *testing.T) {
	f := newAPIFixture(t)
	instructor, _ := f.signup("teach@example.com", "instructor")
	learner, _ := f.signup("learn@example.com", "learner")
	courseID := f.createCourse(instructor)

	status, env := f.do(http.MethodPost, "/api/v1/video-progress", learner, map[string]interface{}{
		"courseId": courseID, "moduleId": "m1", "percentage": 99,
	})
	require.Equal(t, http.StatusOK, status)
	var vp videoProgressResponse
	decodeData(t, env, &vp)
	assert.False(t, vp.Cascaded)
	assert.Nil(t, vp.Enrollment)

	status, _ = f.do(http.MethodPost, "/api/v1/video-progress", learner, map[string]interface{}{
		"courseId": courseID, "moduleId": "m9", "percentage": 10,
	})
	assert.Equal(t, http.StatusBadRequest, status)
}

// ══════════════════════════════════════════════════════════════════════════════
// LEARNING PATHS, ANALYTICS, SEED
// ══════════════════════════════════════════════════════════════════════════════

func TestLearningPaths(t *testing.T) {
	f := newAPIFixture(t)
	instructor, _ := f.signup("teach@example.com", "instructor")
	courseID := f.createCourse(instructor)

	draft := map[string]interface{}{
		"title":           "BIM Track",
		"requiredCourses": []string{courseID, "deleted-course"},
	}

	status, _ := f.do(http.MethodPost, "/api/v1/learning-paths", instructor, draft)
	assert.Equal(t, http.StatusForbidden, status)

	status, env := f.do(http.MethodPost, "/api/v1/learning-paths", f.adminToken(), draft)
	require.Equal(t, http.StatusCreated, status, "%+v", env.Error)
	var p struct {
		ID string `json:"id"`
	}
	decodeData(t, env, &p)

	status, env = f.do(http.MethodGet, "/api/v1/learning-paths/"+p.ID, "", nil)
	require.Equal(t, http.StatusOK, status)
	var detail struct {
		Courses []struct {
			ID string `json:"id"`
		} `json:"courses"`
	}
	decodeData(t, env, &detail)
	require.Len(t, detail.Courses, 1)
	assert.Equal(t, courseID, detail.Courses[0].ID)

	status, env = f.do(http.MethodGet, "/api/v1/learning-paths", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, env.Meta.TotalCount)
}

func TestAnalyticsRequiresRole(t *testing.T) {
	f := newAPIFixture(t)
	learner, _ := f.signup("learn@example.com", "learner")

	status, _ := f.do(http.MethodGet, "/api/v1/analytics/overview", learner, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, env := f.do(http.MethodGet, "/api/v1/analytics/overview", f.adminToken(), nil)
	require.Equal(t, http.StatusOK, status)
	var o struct {
		TotalUsers     int     `json:"totalUsers"`
		CompletionRate float64 `json:"completionRate"`
	}
	decodeData(t, env, &o)
	assert.Equal(t, 1, o.TotalUsers)
	assert.Zero(t, o.CompletionRate)

	status, env = f.do(http.MethodGet, "/api/v1/analytics/snapshots", f.adminToken(), nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, "[]", string(env.Data))
}

func TestBootstrappedAdminReachesAdminRoutes(t *testing.T) {
	f := newAPIFixture(t)

	created, err := command.EnsureAdmin(context.Background(), f.authDeps, command.BootstrapAdminCommand{
		Email: "root@example.com", Password: "root-password", Name: "Root",
	})
	require.NoError(t, err)
	require.True(t, created)

	status, env := f.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "root@example.com", "password": "root-password",
	})
	require.Equal(t, http.StatusOK, status, "%+v", env.Error)
	var sess struct {
		Token string `json:"token"`
		User  struct {
			Role string `json:"role"`
		} `json:"user"`
	}
	decodeData(t, env, &sess)
	assert.Equal(t, "admin", sess.User.Role)

	status, env = f.do(http.MethodPost, "/api/v1/learning-paths", sess.Token, map[string]interface{}{
		"title": "Ops Track", "requiredCourses": []string{},
	})
	assert.Equal(t, http.StatusCreated, status, "%+v", env.Error)

	status, _ = f.do(http.MethodGet, "/api/v1/analytics/overview", sess.Token, nil)
	assert.Equal(t, http.StatusOK, status)

	status, _ = f.do(http.MethodPost, "/api/v1/seed-data", sess.Token, nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestSeedData(t *testing.T) {
	f := newAPIFixture(t)
	learner, _ := f.signup("learn@example.com", "learner")

	status, _ := f.do(http.MethodPost, "/api/v1/seed-data", learner, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, env := f.do(http.MethodPost, "/api/v1/seed-data", f.adminToken(), nil)
	require.Equal(t, http.StatusOK, status)
	var first command.SeedCatalogResult
	decodeData(t, env, &first)
	assert.Positive(t, first.CoursesCreated)

	status, env = f.do(http.MethodPost, "/api/v1/seed-data", f.adminToken(), nil)
	require.Equal(t, http.StatusOK, status)
	var second command.SeedCatalogResult
	decodeData(t, env, &second)
	assert.Zero(t, second.CoursesCreated)
	assert.Equal(t, first.CoursesCreated, second.CoursesSkipped)
}

// ══════════════════════════════════════════════════════════════════════════════
// UPLOAD
// ══════════════════════════════════════════════════════════════════════════════

func multipartRequest(t *testing.T, url, token, field, fileName string, content []byte, extra map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range extra {
		require.NoError(t, mw.WriteField(k, v))
	}
	if field != "" {
		part, err := mw.CreateFormFile(field, fileName)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestUploadVideo(t *testing.T) {
	f := newAPIFixture(t)
	instructor, instructorID := f.signup("teach@example.com", "instructor")

	req := multipartRequest(t, f.srv.URL+"/api/v1/upload/video", instructor, "video", "lesson.mp4",
		[]byte("fake-video"), map[string]string{"chapterId": "ch1"})
	status, env := f.send(req)
	require.Equal(t, http.StatusCreated, status, "%+v", env.Error)

	var res command.UploadMediaResult
	decodeData(t, env, &res)
	assert.True(t, strings.HasPrefix(res.Path, instructorID+"/"), res.Path)
	assert.True(t, strings.HasSuffix(res.Path, "_ch1_lesson.mp4"), res.Path)
	assert.Equal(t, "https://storage.test/sign/"+res.Path, res.URL)

	f.storage.mu.Lock()
	assert.Equal(t, []byte("fake-video"), f.storage.objects[res.Path])
	f.storage.mu.Unlock()
}

func TestUploadRejections(t *testing.T) {
	f := newAPIFixture(t)
	instructor, _ := f.signup("teach@example.com", "instructor")
	learner, _ := f.signup("learn@example.com", "learner")

	req := multipartRequest(t, f.srv.URL+"/api/v1/upload/thumbnail", learner, "thumbnail", "a.png", []byte("png"), nil)
	status, _ := f.send(req)
	assert.Equal(t, http.StatusForbidden, status)

	req = multipartRequest(t, f.srv.URL+"/api/v1/upload/thumbnail", instructor, "", "", nil, nil)
	status, env := f.send(req)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "validation_error", env.Error.Code)

	require.NoError(t, f.features.DisableFeature(config.FeatureMediaUpload))
	req = multipartRequest(t, f.srv.URL+"/api/v1/upload/thumbnail", instructor, "thumbnail", "a.png", []byte("png"), nil)
	status, env = f.send(req)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "feature_disabled", env.Error.Code)
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING & HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{shared.ErrMissingCredential, http.StatusUnauthorized, "unauthorized"},
		{shared.ErrRoleNotPermitted, http.StatusForbidden, "forbidden"},
		{shared.ErrNotCourseOwner, http.StatusForbidden, "forbidden"},
		{shared.ErrCourseNotFound, http.StatusNotFound, "not_found"},
		{shared.Validation("course", "Create", "title is required"), http.StatusBadRequest, "validation_error"},
		{shared.ErrInvalidProgress, http.StatusBadRequest, "validation_error"},
		{shared.ErrEmailAlreadyTaken, http.StatusConflict, "already_exists"},
		{shared.ErrStorageUnavailable, http.StatusServiceUnavailable, "service_unavailable"},
		{fmt.Errorf("lock: %w", context.DeadlineExceeded), http.StatusServiceUnavailable, "service_unavailable"},
		{shared.ErrStorageRejected, http.StatusBadGateway, "external_service_error"},
		{fmt.Errorf("save user: %w", errors.New("disk full")), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		status, code := errorStatus(tt.err)
		assert.Equal(t, tt.status, status, tt.err.Error())
		assert.Equal(t, tt.code, code, tt.err.Error())
	}
}

func TestInternalErrorsAreNotLeaked(t *testing.T) {
	s := NewServer(DefaultConfig(), Dependencies{Logger: logger.New(logger.Options{Output: io.Discard})})
	defer s.limiter.Stop()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	s.writeError(rec, req, errors.New("pq: connection refused to 10.0.0.5"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "10.0.0.5")
}

func TestBearerToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, bearerToken(req))

	req.Header.Set("Authorization", "bearer abc.def")
	assert.Equal(t, "abc.def", bearerToken(req))

	req.Header.Set("Authorization", "Basic Zm9v")
	assert.Empty(t, bearerToken(req))
}

func TestIPLimiter(t *testing.T) {
	rl := newIPLimiter(2, time.Minute)
	defer rl.Stop()

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("1.2.3.4"))
	assert.True(t, rl.Allow("1.2.3.4"))
	assert.False(t, rl.Allow("1.2.3.4"))
	assert.True(t, rl.Allow("5.6.7.8"))

	// one token back every 30s
	now = now.Add(30 * time.Second)
	assert.True(t, rl.Allow("1.2.3.4"))
	assert.False(t, rl.Allow("1.2.3.4"))

	now = now.Add(2 * time.Minute)
	rl.evict()
	rl.mu.Lock()
	assert.Empty(t, rl.buckets)
	rl.mu.Unlock()
}

func TestRateLimitMiddleware(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RateLimitPerMinute = 1
	s := NewServer(cfg, Dependencies{Logger: logger.New(logger.Options{Output: io.Discard})})
	defer s.limiter.Stop()

	first := httptest.NewRecorder()
	s.Handler().ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/live", nil))
	assert.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	s.Handler().ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/live", nil))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "60", second.Header().Get("Retry-After"))
	assert.NotEmpty(t, second.Header().Get("X-Request-ID"))
}

func TestCORSPreflight(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RateLimitPerMinute = 0
	cfg.AllowedOrigins = []string{"https://app.example"}
	s := NewServer(cfg, Dependencies{Logger: logger.New(logger.Options{Output: io.Discard})})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/courses", nil)
	req.Header.Set("Origin", "https://app.example")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))

	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestUnconfiguredRouteReturns503(t *testing.T) {
	s := NewServer(DefaultConfig(), Dependencies{Logger: logger.New(logger.Options{Output: io.Discard})})
	defer s.limiter.Stop()

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/courses", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRequestLogsCarryRequestID(t *testing.T) {
	var buf bytes.Buffer
	s := NewServer(DefaultConfig(), Dependencies{Logger: logger.New(logger.Options{Output: &buf})})
	defer s.limiter.Stop()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/courses", nil)
	req.Header.Set("X-Request-ID", "trace-42")
	s.Handler().ServeHTTP(httptest.NewRecorder(), req)

	var entry logger.LogEntry
	line := strings.TrimSpace(buf.String())
	require.NotEmpty(t, line)
	require.NoError(t, json.Unmarshal([]byte(strings.Split(line, "\n")[0]), &entry))
	assert.Equal(t, "http request", entry.Message)
	assert.Equal(t, "WARN", entry.Level)
	assert.Equal(t, "trace-42", entry.Fields[logger.RequestIDKey])
	assert.Equal(t, "http", entry.Fields["component"])
}
