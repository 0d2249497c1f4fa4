// Package http implements the REST API of the learning hub: catalog,
// enrollment and progress endpoints, analytics, media upload and health probes.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/learnhub/learning-hub/config"
	"github.com/learnhub/learning-hub/internal/application/command"
	"github.com/learnhub/learning-hub/internal/application/query"
	"github.com/learnhub/learning-hub/internal/infrastructure/auth"
	"github.com/learnhub/learning-hub/internal/interface/http/handlers"
	"github.com/learnhub/learning-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config holds listener limits and the cross-cutting middleware settings.
type Config struct {
	Host string
	Port int

	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int

	// MaxBodyBytes caps JSON bodies; upload routes use MaxUploadBytes.
	MaxBodyBytes   int64
	MaxUploadBytes int64

	EnableCORS     bool
	AllowedOrigins []string

	// Per client IP. Zero turns limiting off.
	RateLimitPerMinute int

	// max-age of public catalog reads.
	CatalogMaxAge time.Duration
}

// DefaultConfig listens on :8080 with 15s read/write timeouts.
func DefaultConfig() Config {
	return Config{
		Host:               "0.0.0.0",
		Port:               8080,
		ReadTimeout:        15 * time.Second,
		WriteTimeout:       15 * time.Second,
		IdleTimeout:        time.Minute,
		MaxHeaderBytes:     1 << 20,
		MaxBodyBytes:       1 << 20,
		MaxUploadBytes:     command.MaxUploadBytes,
		EnableCORS:         true,
		AllowedOrigins:     []string{"*"},
		RateLimitPerMinute: 300,
		CatalogMaxAge:      30 * time.Second,
	}
}

// ConfigFromApp overlays the HTTP and storage settings from the environment.
func ConfigFromApp(c config.HTTPConfig, storage config.StorageConfig) Config {
	cfg := DefaultConfig()
	cfg.Host, cfg.Port = c.Host, c.Port
	for _, d := range []struct {
		dst *time.Duration
		src time.Duration
	}{
		{&cfg.ReadTimeout, c.ReadTimeout},
		{&cfg.WriteTimeout, c.WriteTimeout},
		{&cfg.IdleTimeout, c.IdleTimeout},
	} {
		if d.src > 0 {
			*d.dst = d.src
		}
	}
	if len(c.CORSOrigins) > 0 {
		cfg.AllowedOrigins = c.CORSOrigins
	}
	if limit := storage.FileSizeLimit; limit > 0 && limit < cfg.MaxUploadBytes {
		cfg.MaxUploadBytes = limit
	}
	return cfg
}

// Address is host:port.
func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// IdentityResolver turns a bearer token into the caller's identity.
type IdentityResolver interface {
	Resolve(token string) (*auth.Identity, error)
}

// Dependencies are the handlers the routes call into. A nil handler makes
// its routes answer 503.
type Dependencies struct {
	Signup              *command.SignupHandler
	Login               *command.LoginHandler
	UpdateProfile       *command.UpdateProfileHandler
	CreateCourse        *command.CreateCourseHandler
	UpdateCourse        *command.UpdateCourseHandler
	DeleteCourse        *command.DeleteCourseHandler
	Enroll              *command.EnrollHandler
	CompleteModule      *command.CompleteModuleHandler
	SubmitVideoProgress *command.SubmitVideoProgressHandler
	CreateLearningPath  *command.CreateLearningPathHandler
	UploadMedia         *command.UploadMediaHandler
	SeedCatalog         *command.SeedCatalogHandler

	GetProfile    *query.GetProfileHandler
	ListCourses   *query.ListCoursesHandler
	GetCourse     *query.GetCourseHandler
	LearningPaths *query.LearningPathsHandler
	MyEnrollments *query.MyEnrollmentsHandler
	UserProgress  *query.UserProgressHandler
	VideoProgress *query.VideoProgressHandler
	Analytics     *query.AnalyticsHandler

	Identity IdentityResolver
	Features *config.FeatureFlags

	// Metrics adds named sections to GET /metrics.
	Metrics func() map[string]interface{}

	Logger        *logger.Logger
	HealthChecker handlers.HealthChecker
	Version       string
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER
// ══════════════════════════════════════════════════════════════════════════════

// Server owns the listener, the router and the middleware stack.
type Server struct {
	config  Config
	deps    Dependencies
	logger  *logger.Logger
	router  *http.ServeMux
	limiter *ipLimiter
	srv     *http.Server

	mu        sync.RWMutex
	running   bool
	startedAt time.Time
}

// NewServer registers every route and builds the middleware stack.
func NewServer(cfg Config, deps Dependencies) *Server {
	log := deps.Logger
	if log == nil {
		log = logger.Default()
	}
	if deps.Version == "" {
		deps.Version = "v1"
	}

	s := &Server{
		config: cfg,
		deps:   deps,
		logger: log.With(logger.Component("http")),
		router: http.NewServeMux(),
	}
	if cfg.RateLimitPerMinute > 0 {
		s.limiter = newIPLimiter(cfg.RateLimitPerMinute, time.Minute)
	}
	s.routes()

	s.srv = &http.Server{
		Addr:           cfg.Address(),
		Handler:        s.stack(),
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxHeaderBytes: cfg.MaxHeaderBytes,
	}
	return s
}

// Handler is the router wrapped in every middleware.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// stack lists middleware outermost first. The request id comes first so
// every later stage logs with it.
func (s *Server) stack() http.Handler {
	chain := []handlers.MiddlewareFunc{s.withRequestID}
	if s.limiter != nil {
		chain = append(chain, s.withRateLimit)
	}
	if s.config.EnableCORS {
		chain = append(chain, s.withCORS)
	}
	chain = append(chain, s.withRecovery, s.withAccessLog, handlers.SecurityHeadersMiddleware)
	return handlers.ChainHandler(s.router, chain...)
}

// ──────────────────────────────────────────────────────────────────────────────
// Routes
// ──────────────────────────────────────────────────────────────────────────────

const apiPrefix = "/api/v1"

func (s *Server) routes() {
	s.router.HandleFunc("GET /{$}", s.handleRoot)
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /healthz", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /live", s.handleLive)
	s.router.HandleFunc("GET /metrics", s.handleMetrics)

	// auth and profile
	s.api("POST /auth/signup", s.body(http.HandlerFunc(s.handleSignup)))
	s.api("POST /auth/login", s.body(http.HandlerFunc(s.handleLogin)))
	s.api("GET /users/me", s.authed(s.handleGetMe))
	s.api("PUT /users/me", s.body(s.authed(s.handleUpdateMe)))

	// catalog
	s.api("GET /courses", s.catalog(s.handleListCourses))
	s.api("GET /courses/{id}", s.catalog(s.handleGetCourse))
	s.api("POST /courses", s.body(s.authed(s.handleCreateCourse)))
	s.api("PUT /courses/{id}", s.body(s.authed(s.handleUpdateCourse)))
	s.api("DELETE /courses/{id}", s.authed(s.handleDeleteCourse))
	s.api("GET /learning-paths", s.catalog(s.handleListPaths))
	s.api("GET /learning-paths/{id}", s.catalog(s.handleGetPath))
	s.api("POST /learning-paths", s.body(s.authed(s.handleCreatePath)))

	// enrollment and progress
	s.api("POST /enrollments", s.body(s.authed(s.handleEnroll)))
	s.api("GET /enrollments/my-courses", s.authed(s.handleMyEnrollments))
	s.api("PUT /enrollments/{courseId}/progress", s.body(s.authed(s.handleUpdateProgress)))
	s.api("POST /video-progress", s.body(s.authed(s.handleSubmitVideoProgress)))
	s.api("GET /video-progress/{courseId}", s.authed(s.handleListVideoProgress))
	s.api("GET /video-progress/{courseId}/{moduleId}", s.authed(s.handleGetVideoProgress))

	// analytics
	s.api("GET /analytics/overview", s.authed(s.handleAnalyticsOverview))
	s.api("GET /analytics/user-progress", s.authed(s.handleUserProgress))
	s.api("GET /analytics/snapshots", s.authed(s.handleAnalyticsSnapshots))

	// media and admin
	s.api("POST /upload/video", s.upload(s.authed(s.handleUploadVideo)))
	s.api("POST /upload/thumbnail", s.upload(s.authed(s.handleUploadThumbnail)))
	s.api("POST /seed-data", s.authed(s.handleSeedData))
}

// api mounts "METHOD /path" under apiPrefix.
func (s *Server) api(pattern string, h http.Handler) {
	method, path, _ := strings.Cut(pattern, " ")
	s.router.Handle(method+" "+apiPrefix+path, h)
}

func (s *Server) body(h http.Handler) http.Handler {
	return handlers.RequestSizeLimitMiddleware(s.config.MaxBodyBytes)(h)
}

// upload leaves a megabyte of headroom for multipart framing.
func (s *Server) upload(h http.Handler) http.Handler {
	return handlers.RequestSizeLimitMiddleware(s.config.MaxUploadBytes + 1<<20)(h)
}

func (s *Server) catalog(fn http.HandlerFunc) http.Handler {
	return handlers.CacheControlMiddleware(s.config.CatalogMaxAge, false)(fn)
}

// featureEnabled evaluates a flag for the caller. A nil flag set enables
// everything.
func (s *Server) featureEnabled(name string, id *auth.Identity) bool {
	fc := &config.FeatureContext{}
	if id != nil {
		fc.UserID = id.UserID
		fc.IsAdmin = id.Role.IsAdmin()
	}
	return s.deps.Features.IsEnabled(name, fc)
}

// ──────────────────────────────────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────────────────────────────────

// Start serves until Shutdown. It returns nil after a clean shutdown.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("http server already running")
	}
	s.running, s.startedAt = true, time.Now()
	s.mu.Unlock()

	s.logger.Info("listening", logger.String("address", s.config.Address()))
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests until ctx ends.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.limiter != nil {
		s.limiter.Stop()
	}

	s.mu.Lock()
	wasRunning := s.running
	s.running = false
	s.mu.Unlock()
	if !wasRunning {
		return nil
	}

	s.logger.Info("draining connections")
	return s.srv.Shutdown(ctx)
}

// IsRunning reports whether Start is serving.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Uptime is zero unless the server is running.
func (s *Server) Uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.running {
		return 0
	}
	return time.Since(s.startedAt)
}

// Address is the configured listen address.
func (s *Server) Address() string { return s.config.Address() }
