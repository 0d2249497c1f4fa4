package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/learnhub/learning-hub/config"
	"github.com/learnhub/learning-hub/internal/application/command"
	"github.com/learnhub/learning-hub/internal/application/query"
	"github.com/learnhub/learning-hub/internal/domain/course"
	"github.com/learnhub/learning-hub/internal/domain/enrollment"
	"github.com/learnhub/learning-hub/internal/domain/learningpath"
	"github.com/learnhub/learning-hub/internal/domain/progress"
	"github.com/learnhub/learning-hub/internal/domain/shared"
	"github.com/learnhub/learning-hub/internal/domain/user"
	"github.com/learnhub/learning-hub/internal/infrastructure/auth"
	"github.com/learnhub/learning-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot serves the root endpoint with basic API information.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":    "Learning Hub API",
		"version": s.deps.Version,
		"endpoints": map[string]string{
			"health":         "/health",
			"courses":        apiPrefix + "/courses",
			"learning_paths": apiPrefix + "/learning-paths",
			"enrollments":    apiPrefix + "/enrollments/my-courses",
			"analytics":      apiPrefix + "/analytics/overview",
		},
	})
}

// handleHealth handles the health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Healthy {
			writeJSON(w, http.StatusServiceUnavailable, status)
			return
		}
		writeJSON(w, http.StatusOK, status)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"uptime":  s.Uptime().String(),
		"version": s.deps.Version,
	})
}

// handleReady handles the readiness probe endpoint.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Ready {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not_ready",
				"reason": status.Message,
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleLive handles the liveness probe endpoint.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// handleMetrics reports server state plus whatever the process registered.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	metrics := map[string]interface{}{
		"uptime_seconds": s.Uptime().Seconds(),
		"running":        s.IsRunning(),
	}
	if s.deps.Metrics != nil {
		for k, v := range s.deps.Metrics() {
			metrics[k] = v
		}
	}
	writeJSON(w, http.StatusOK, metrics)
}

// ══════════════════════════════════════════════════════════════════════════════
// AUTH & PROFILE HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type sessionResponse struct {
	User      *user.User `json:"user"`
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expiresAt"`
}

func toSession(sess *command.Session) sessionResponse {
	return sessionResponse{
		User:      sess.User,
		Token:     sess.Token,
		ExpiresAt: sess.ExpiresAt.UTC(),
	}
}

// handleSignup handles POST /api/v1/auth/signup
func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	if s.deps.Signup == nil {
		writeUnavailable(w, "signup")
		return
	}
	if !s.featureEnabled(config.FeatureSelfSignup, nil) {
		writeJSONError(w, http.StatusForbidden, "feature_disabled", "Self-service signup is disabled")
		return
	}

	var cmd command.SignupCommand
	if !s.decode(w, r, &cmd) {
		return
	}

	sess, err := s.deps.Signup.Handle(r.Context(), cmd)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSession(sess))
}

// handleLogin handles POST /api/v1/auth/login
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.deps.Login == nil {
		writeUnavailable(w, "login")
		return
	}

	var cmd command.LoginCommand
	if !s.decode(w, r, &cmd) {
		return
	}

	sess, err := s.deps.Login.Handle(r.Context(), cmd)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSession(sess))
}

// handleGetMe handles GET /api/v1/users/me
func (s *Server) handleGetMe(w http.ResponseWriter, r *http.Request, id *auth.Identity) {
	if s.deps.GetProfile == nil {
		writeUnavailable(w, "profile")
		return
	}
	u, err := s.deps.GetProfile.Handle(r.Context(), id.UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// handleUpdateMe handles PUT /api/v1/users/me
func (s *Server) handleUpdateMe(w http.ResponseWriter, r *http.Request, id *auth.Identity) {
	if s.deps.UpdateProfile == nil {
		writeUnavailable(w, "profile")
		return
	}

	var patch user.ProfilePatch
	if !s.decode(w, r, &patch) {
		return
	}

	u, err := s.deps.UpdateProfile.Handle(r.Context(), command.UpdateProfileCommand{UserID: id.UserID, Patch: patch})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// ══════════════════════════════════════════════════════════════════════════════
// COURSE HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleListCourses handles GET /api/v1/courses
func (s *Server) handleListCourses(w http.ResponseWriter, r *http.Request) {
	if s.deps.ListCourses == nil {
		writeUnavailable(w, "catalog")
		return
	}

	q := query.ListCoursesQuery{Filter: course.Filter{
		Category:   queryString(r, "category"),
		Level:      queryString(r, "level"),
		Instructor: queryString(r, "instructor"),
		Search:     queryString(r, "search"),
		Tags:       queryList(r, "tags"),
	}}

	courses, err := s.deps.ListCourses.Handle(r.Context(), q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeList(w, r, nonNil(courses), len(courses))
}

// handleGetCourse handles GET /api/v1/courses/{id}
func (s *Server) handleGetCourse(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetCourse == nil {
		writeUnavailable(w, "catalog")
		return
	}
	c, err := s.deps.GetCourse.Handle(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// handleCreateCourse handles POST /api/v1/courses
func (s *Server) handleCreateCourse(w http.ResponseWriter, r *http.Request, id *auth.Identity) {
	if s.deps.CreateCourse == nil {
		writeUnavailable(w, "course authoring")
		return
	}

	var draft course.Draft
	if !s.decode(w, r, &draft) {
		return
	}

	c, err := s.deps.CreateCourse.Handle(r.Context(), command.CreateCourseCommand{Actor: actorOf(id), Draft: draft})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.requestLogger(r).Info("course created", logger.CourseID(c.ID), logger.UserID(id.UserID))
	writeJSON(w, http.StatusCreated, c)
}

// handleUpdateCourse handles PUT /api/v1/courses/{id}
func (s *Server) handleUpdateCourse(w http.ResponseWriter, r *http.Request, id *auth.Identity) {
	if s.deps.UpdateCourse == nil {
		writeUnavailable(w, "course authoring")
		return
	}

	var patch course.Patch
	if !s.decode(w, r, &patch) {
		return
	}

	c, err := s.deps.UpdateCourse.Handle(r.Context(), command.UpdateCourseCommand{
		Actor:    actorOf(id),
		CourseID: r.PathValue("id"),
		Patch:    patch,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// handleDeleteCourse handles DELETE /api/v1/courses/{id}
func (s *Server) handleDeleteCourse(w http.ResponseWriter, r *http.Request, id *auth.Identity) {
	if s.deps.DeleteCourse == nil {
		writeUnavailable(w, "course authoring")
		return
	}

	courseID := r.PathValue("id")
	err := s.deps.DeleteCourse.Handle(r.Context(), command.DeleteCourseCommand{Actor: actorOf(id), CourseID: courseID})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.requestLogger(r).Info("course deleted", logger.CourseID(courseID), logger.UserID(id.UserID))
	writeJSON(w, http.StatusOK, map[string]string{"id": courseID})
}

// ══════════════════════════════════════════════════════════════════════════════
// LEARNING PATH HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleListPaths handles GET /api/v1/learning-paths
func (s *Server) handleListPaths(w http.ResponseWriter, r *http.Request) {
	if s.deps.LearningPaths == nil {
		writeUnavailable(w, "learning paths")
		return
	}
	paths, err := s.deps.LearningPaths.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeList(w, r, nonNil(paths), len(paths))
}

// handleGetPath handles GET /api/v1/learning-paths/{id}
func (s *Server) handleGetPath(w http.ResponseWriter, r *http.Request) {
	if s.deps.LearningPaths == nil {
		writeUnavailable(w, "learning paths")
		return
	}
	detail, err := s.deps.LearningPaths.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// handleCreatePath handles POST /api/v1/learning-paths
func (s *Server) handleCreatePath(w http.ResponseWriter, r *http.Request, id *auth.Identity) {
	if s.deps.CreateLearningPath == nil {
		writeUnavailable(w, "learning paths")
		return
	}

	var draft learningpath.Draft
	if !s.decode(w, r, &draft) {
		return
	}

	p, err := s.deps.CreateLearningPath.Handle(r.Context(), command.CreateLearningPathCommand{Actor: actorOf(id), Draft: draft})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// ══════════════════════════════════════════════════════════════════════════════
// ENROLLMENT HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type enrollRequest struct {
	CourseID string `json:"courseId"`
}

type enrollResponse struct {
	Enrollment      *enrollment.Enrollment `json:"enrollment"`
	AlreadyEnrolled bool                   `json:"alreadyEnrolled"`
}

// handleEnroll handles POST /api/v1/enrollments. Enrolling twice returns the
// existing record with 200 instead of 201.
func (s *Server) handleEnroll(w http.ResponseWriter, r *http.Request, id *auth.Identity) {
	if s.deps.Enroll == nil {
		writeUnavailable(w, "enrollment")
		return
	}

	var req enrollRequest
	if !s.decode(w, r, &req) {
		return
	}

	res, err := s.deps.Enroll.Handle(r.Context(), command.EnrollCommand{UserID: id.UserID, CourseID: req.CourseID})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	status := http.StatusCreated
	if res.AlreadyEnrolled {
		status = http.StatusOK
	}
	writeJSON(w, status, enrollResponse{Enrollment: res.Enrollment, AlreadyEnrolled: res.AlreadyEnrolled})
}

// handleMyEnrollments handles GET /api/v1/enrollments/my-courses
func (s *Server) handleMyEnrollments(w http.ResponseWriter, r *http.Request, id *auth.Identity) {
	if s.deps.MyEnrollments == nil {
		writeUnavailable(w, "enrollment")
		return
	}
	list, err := s.deps.MyEnrollments.Handle(r.Context(), id.UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeList(w, r, nonNil(list), len(list))
}

// progressRequest is the body of PUT .../progress. markCompleted is the
// older spelling of completed and is still honoured.
type progressRequest struct {
	ModuleID      string   `json:"moduleId"`
	Progress      *float64 `json:"progress"`
	Completed     bool     `json:"completed"`
	MarkCompleted bool     `json:"markCompleted"`
}

type progressResponse struct {
	Enrollment      *enrollment.Enrollment `json:"enrollment"`
	ModuleAdded     bool                   `json:"moduleAdded"`
	CourseCompleted bool                   `json:"courseCompleted"`
}

// handleUpdateProgress handles PUT /api/v1/enrollments/{courseId}/progress
func (s *Server) handleUpdateProgress(w http.ResponseWriter, r *http.Request, id *auth.Identity) {
	if s.deps.CompleteModule == nil {
		writeUnavailable(w, "enrollment")
		return
	}

	var req progressRequest
	if !s.decode(w, r, &req) {
		return
	}

	res, err := s.deps.CompleteModule.Handle(r.Context(), command.CompleteModuleCommand{
		UserID:        id.UserID,
		CourseID:      r.PathValue("courseId"),
		ModuleID:      req.ModuleID,
		Progress:      req.Progress,
		MarkCompleted: req.Completed || req.MarkCompleted,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, progressResponse{
		Enrollment:      res.Enrollment,
		ModuleAdded:     res.ModuleAdded,
		CourseCompleted: res.CourseCompleted,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// VIDEO PROGRESS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type videoProgressRequest struct {
	CourseID          string   `json:"courseId"`
	ModuleID          string   `json:"moduleId"`
	WatchedSeconds    float64  `json:"watchedSeconds"`
	TotalSeconds      float64  `json:"totalSeconds"`
	Percentage        float64  `json:"percentage"`
	ElapsedSeconds    *float64 `json:"elapsedSeconds,omitempty"`
	ResumeFromSeconds float64  `json:"resumeFromSeconds,omitempty"`
}

type videoProgressResponse struct {
	Progress        *progress.VideoProgress `json:"progress"`
	Enrollment      *enrollment.Enrollment  `json:"enrollment,omitempty"`
	Cascaded        bool                    `json:"cascaded"`
	CourseCompleted bool                    `json:"courseCompleted"`
}

// handleSubmitVideoProgress handles POST /api/v1/video-progress
func (s *Server) handleSubmitVideoProgress(w http.ResponseWriter, r *http.Request, id *auth.Identity) {
	if s.deps.SubmitVideoProgress == nil {
		writeUnavailable(w, "video progress")
		return
	}

	var req videoProgressRequest
	if !s.decode(w, r, &req) {
		return
	}

	res, err := s.deps.SubmitVideoProgress.Handle(r.Context(), command.SubmitVideoProgressCommand{
		UserID:            id.UserID,
		CourseID:          req.CourseID,
		ModuleID:          req.ModuleID,
		WatchedSeconds:    req.WatchedSeconds,
		TotalSeconds:      req.TotalSeconds,
		Percentage:        req.Percentage,
		ElapsedSeconds:    req.ElapsedSeconds,
		ResumeFromSeconds: req.ResumeFromSeconds,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, videoProgressResponse{
		Progress:        res.Progress,
		Enrollment:      res.Enrollment,
		Cascaded:        res.Cascaded,
		CourseCompleted: res.CourseCompleted,
	})
}

// handleGetVideoProgress handles GET /api/v1/video-progress/{courseId}/{moduleId}
func (s *Server) handleGetVideoProgress(w http.ResponseWriter, r *http.Request, id *auth.Identity) {
	if s.deps.VideoProgress == nil {
		writeUnavailable(w, "video progress")
		return
	}
	vp, err := s.deps.VideoProgress.Get(r.Context(), id.UserID, r.PathValue("courseId"), r.PathValue("moduleId"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, vp)
}

// handleListVideoProgress handles GET /api/v1/video-progress/{courseId}
func (s *Server) handleListVideoProgress(w http.ResponseWriter, r *http.Request, id *auth.Identity) {
	if s.deps.VideoProgress == nil {
		writeUnavailable(w, "video progress")
		return
	}
	list, err := s.deps.VideoProgress.ListByCourse(r.Context(), id.UserID, r.PathValue("courseId"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeList(w, r, nonNil(list), len(list))
}

// ══════════════════════════════════════════════════════════════════════════════
// ANALYTICS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleAnalyticsOverview handles GET /api/v1/analytics/overview
func (s *Server) handleAnalyticsOverview(w http.ResponseWriter, r *http.Request, id *auth.Identity) {
	if s.deps.Analytics == nil {
		writeUnavailable(w, "analytics")
		return
	}
	o, err := s.deps.Analytics.Overview(r.Context(), id.Role)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// handleUserProgress handles GET /api/v1/analytics/user-progress
func (s *Server) handleUserProgress(w http.ResponseWriter, r *http.Request, id *auth.Identity) {
	if s.deps.UserProgress == nil {
		writeUnavailable(w, "analytics")
		return
	}
	p, err := s.deps.UserProgress.Handle(r.Context(), id.UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// handleAnalyticsSnapshots handles GET /api/v1/analytics/snapshots?limit=N
func (s *Server) handleAnalyticsSnapshots(w http.ResponseWriter, r *http.Request, id *auth.Identity) {
	if s.deps.Analytics == nil {
		writeUnavailable(w, "analytics")
		return
	}
	if !s.featureEnabled(config.FeatureAnalyticsSnapshots, id) {
		writeJSONError(w, http.StatusForbidden, "feature_disabled", "Analytics snapshots are disabled")
		return
	}

	list, err := s.deps.Analytics.Snapshots(r.Context(), id.Role, queryInt(r, "limit", 30))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeList(w, r, nonNil(list), len(list))
}

// ══════════════════════════════════════════════════════════════════════════════
// MEDIA & ADMIN HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleUploadVideo handles POST /api/v1/upload/video (multipart: video, chapterId)
func (s *Server) handleUploadVideo(w http.ResponseWriter, r *http.Request, id *auth.Identity) {
	s.handleUpload(w, r, id, command.MediaVideo, "video")
}

// handleUploadThumbnail handles POST /api/v1/upload/thumbnail (multipart: thumbnail)
func (s *Server) handleUploadThumbnail(w http.ResponseWriter, r *http.Request, id *auth.Identity) {
	s.handleUpload(w, r, id, command.MediaThumbnail, "thumbnail")
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request, id *auth.Identity, kind command.MediaKind, field string) {
	if s.deps.UploadMedia == nil {
		writeUnavailable(w, "media upload")
		return
	}
	if !s.featureEnabled(config.FeatureMediaUpload, id) {
		writeJSONError(w, http.StatusForbidden, "feature_disabled", "Media upload is disabled")
		return
	}
	// Role is checked before the body is parsed so learners are not made to
	// stream a whole file first.
	if !id.Role.CanAuthorCourses() {
		s.writeError(w, r, shared.ErrRoleNotPermitted)
		return
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeJSONErrorWithDetails(w, http.StatusBadRequest, "invalid_request", "Expected a multipart form", err.Error())
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile(field)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "validation_error", "No "+field+" file provided")
		return
	}
	defer file.Close()

	res, err := s.deps.UploadMedia.Handle(r.Context(), command.UploadMediaCommand{
		Actor:       actorOf(id),
		Kind:        kind,
		ChapterID:   r.FormValue("chapterId"),
		FileName:    header.Filename,
		ContentType: partContentType(header),
		Size:        header.Size,
		Body:        file,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.requestLogger(r).Info("media uploaded",
		logger.UserID(id.UserID),
		logger.ObjectPath(res.Path),
		logger.Int64("size", header.Size),
	)
	writeJSON(w, http.StatusCreated, res)
}

func partContentType(h *multipart.FileHeader) string {
	if ct := h.Header.Get("Content-Type"); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// handleSeedData handles POST /api/v1/seed-data
func (s *Server) handleSeedData(w http.ResponseWriter, r *http.Request, id *auth.Identity) {
	if s.deps.SeedCatalog == nil {
		writeUnavailable(w, "seeding")
		return
	}
	if !s.featureEnabled(config.FeatureSeedEndpoint, id) {
		writeJSONError(w, http.StatusForbidden, "feature_disabled", "Seeding over HTTP is disabled")
		return
	}

	res, err := s.deps.SeedCatalog.Handle(r.Context(), actorOf(id))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.requestLogger(r).Info("catalog seeded",
		logger.UserID(id.UserID),
		logger.Int("courses_created", res.CoursesCreated),
		logger.Int("paths_created", res.PathsCreated),
	)
	writeJSON(w, http.StatusOK, res)
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST DECODING & ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// decode reads a JSON body into v. On failure it writes a 400 (or 413) and
// returns false.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil {
		return true
	}

	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		writeJSONError(w, http.StatusRequestEntityTooLarge, "payload_too_large", "Request body too large")
	case errors.Is(err, io.EOF):
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Request body is required")
	default:
		writeJSONErrorWithDetails(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body", err.Error())
	}
	return false
}

// errorStatus maps an application error to its HTTP status and code.
func errorStatus(err error) (int, string) {
	switch {
	case shared.IsUnauthorized(err):
		return http.StatusUnauthorized, "unauthorized"
	case shared.IsForbidden(err):
		return http.StatusForbidden, "forbidden"
	case shared.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	case shared.IsValidation(err):
		return http.StatusBadRequest, "validation_error"
	case shared.IsAlreadyExists(err):
		return http.StatusConflict, "already_exists"
	case errors.Is(err, shared.ErrServiceUnavailable),
		errors.Is(err, shared.ErrTimeout),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "service_unavailable"
	case errors.Is(err, shared.ErrExternalService):
		return http.StatusBadGateway, "external_service_error"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// writeError writes err as an envelope. Domain errors expose their message;
// anything unclassified is logged and reported generically.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := errorStatus(err)

	if status >= http.StatusInternalServerError {
		fields := []logger.Field{
			logger.Err(err),
			logger.String("path", r.URL.Path),
		}
		if id := identityFrom(r.Context()); id != nil {
			fields = append(fields, logger.UserID(id.UserID))
		}
		s.requestLogger(r).Error("request failed", fields...)
	}

	if status == http.StatusInternalServerError {
		writeJSONError(w, status, code, "An unexpected error occurred")
		return
	}

	message := http.StatusText(status)
	var de *shared.DomainError
	if errors.As(err, &de) && de.Message != "" {
		message = de.Message
	}
	writeJSONError(w, status, code, message)
}

func writeUnavailable(w http.ResponseWriter, what string) {
	writeJSONError(w, http.StatusServiceUnavailable, "not_configured", "The "+what+" service is not configured")
}

// nonNil keeps empty lists encoding as [] rather than disappearing from the
// envelope.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
