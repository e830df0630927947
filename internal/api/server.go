//nolint:revive // Package name 'api' is intentionally generic for the HTTP API layer
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/backlogd/backlogd/internal/api/handlers"
	apimw "github.com/backlogd/backlogd/internal/api/middleware"
	"github.com/backlogd/backlogd/internal/api/ratelimit"
	"github.com/backlogd/backlogd/internal/config"
	"github.com/backlogd/backlogd/internal/database"
	"github.com/backlogd/backlogd/internal/discovery"
	"github.com/backlogd/backlogd/internal/igdb"
	"github.com/backlogd/backlogd/internal/library"
	"github.com/backlogd/backlogd/internal/scheduler"
	"github.com/backlogd/backlogd/internal/scheduler/tasks"
)

// Server handles HTTP requests for the backlogd API.
type Server struct {
	echo      *echo.Echo
	db        *database.DB
	cfg       *config.Config
	clock     clockwork.Clock
	logger    zerolog.Logger
	startTime time.Time

	catalog          *igdb.Client
	discoveryCache   *discovery.Cache
	discoveryService *discovery.Service
	libraryService   *library.Service
	scheduler        *scheduler.Scheduler
	rateLimiter      *ratelimit.Limiter
	logsProvider     LogsProvider
}

// NewServer creates a new API server instance.
func NewServer(db *database.DB, cfg *config.Config, clock clockwork.Clock, logger zerolog.Logger) (*Server, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:      e,
		db:        db,
		cfg:       cfg,
		clock:     clock,
		logger:    logger,
		startTime: clock.Now(),
	}

	tokens := igdb.NewTokenSource(cfg.IGDB, igdb.NewMemoryTokenCache(clock), clock, logger)
	s.catalog = igdb.NewClient(cfg.IGDB, tokens, logger)

	s.discoveryCache = discovery.NewCache(discovery.CacheConfig{
		TTL:      cfg.Discovery.CacheTTL,
		MaxItems: cfg.Discovery.CacheMaxItems,
	}, clock)
	s.discoveryService = discovery.NewService(s.catalog, s.discoveryCache, clock, cfg.Discovery, logger)
	s.libraryService = library.NewService(db.Conn(), s.catalog, clock, logger)

	sched, err := scheduler.New(clock, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	s.scheduler = sched

	if err := tasks.RegisterDiscoveryWarmTask(sched, s.discoveryService, cfg.Scheduler.WarmCron); err != nil {
		return nil, fmt.Errorf("failed to register discovery warm task: %w", err)
	}
	if err := tasks.RegisterLibraryRefreshTask(sched, s.libraryService, cfg.Scheduler.LibraryRefreshCron, cfg.Scheduler.LibraryStaleAfter); err != nil {
		return nil, fmt.Errorf("failed to register library refresh task: %w", err)
	}

	s.rateLimiter = ratelimit.New(cfg.RateLimit.RequestsPerMinute, ratelimit.DefaultWindow, clock)

	s.setupMiddleware()
	s.setupRoutes()

	return s, nil
}

// setupMiddleware configures Echo middleware.
func (s *Server) setupMiddleware() {
	s.echo.Use(middleware.Recover())

	s.echo.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))

	s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
	}))

	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogMethod:    true,
		LogError:     true,
		LogRequestID: true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				s.logger.Error().
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Str("requestId", v.RequestID).
					Err(v.Error).
					Msg("request error")
			} else {
				s.logger.Info().
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Str("requestId", v.RequestID).
					Msg("request")
			}
			return nil
		},
	}))

	s.echo.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level: 5,
	}))

	s.echo.Use(apimw.SecurityHeaders())
}

// setupRoutes configures API routes.
func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)

	api := s.echo.Group("/api/v1")
	api.GET("/status", s.getStatus)

	igdbGroup := api.Group("/igdb", s.rateLimiter.Middleware())
	discovery.NewHandlers(s.discoveryService).RegisterRoutes(igdbGroup)

	library.NewHandlers(s.libraryService).RegisterRoutes(api.Group("/library"))

	schedulerHandler := handlers.NewSchedulerHandler(s.scheduler)
	tasksGroup := api.Group("/scheduler/tasks")
	tasksGroup.GET("", schedulerHandler.ListTasks)
	tasksGroup.GET("/:id", schedulerHandler.GetTask)
	tasksGroup.POST("/:id/run", schedulerHandler.RunTask)

	api.GET("/system/logs", s.getRecentLogs)
	api.GET("/system/logs/download", s.downloadLogFile)
}

// SetLogsProvider sets the source for the system log endpoints.
func (s *Server) SetLogsProvider(provider LogsProvider) {
	s.logsProvider = provider
}

// Catalog returns the IGDB client used by the server.
func (s *Server) Catalog() *igdb.Client {
	return s.catalog
}

// Start starts background tasks and begins listening for HTTP requests.
func (s *Server) Start(address string) error {
	if err := s.scheduler.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	s.rateLimiter.StartCleanup(5 * time.Minute)

	s.logger.Info().Str("address", address).Msg("starting HTTP server")

	if err := s.echo.Start(address); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server and its background work.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down HTTP server")

	if err := s.scheduler.Stop(); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to stop scheduler")
	}
	s.rateLimiter.Stop()
	s.discoveryCache.Stop()

	return s.echo.Shutdown(ctx)
}

// Echo returns the underlying Echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// --- Handler implementations ---

func (s *Server) healthCheck(c echo.Context) error {
	if err := s.db.Ping(c.Request().Context()); err != nil {
		s.logger.Error().Err(err).Msg("Database health check failed")
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "database unavailable"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) getStatus(c echo.Context) error {
	ctx := c.Request().Context()

	schemaVersion, err := s.db.SchemaVersion(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to read schema version")
	}

	var libraryCount int64
	if resp, err := s.libraryService.List(ctx, library.ListOptions{Page: 1, PageSize: 1}); err == nil {
		libraryCount = resp.TotalCount
	}

	return c.JSON(http.StatusOK, map[string]any{
		"version":           config.Version,
		"startTime":         s.startTime.UTC().Format(time.RFC3339),
		"catalogConfigured": s.catalog.IsConfigured(),
		"cachedEntries":     s.discoveryService.CachedEntries(),
		"libraryCount":      libraryCount,
		"schemaVersion":     schemaVersion,
	})
}
