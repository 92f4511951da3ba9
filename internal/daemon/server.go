// Package daemon serves the playground HTTP API.
package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/felixgeelhaar/fortify/bulkhead"
	"github.com/felixgeelhaar/fortify/ratelimit"

	"github.com/felixgeelhaar/playground/internal/config"
	"github.com/felixgeelhaar/playground/internal/controller"
	"github.com/felixgeelhaar/playground/internal/domain"
	"github.com/felixgeelhaar/playground/internal/events"
	"github.com/felixgeelhaar/playground/internal/level"
	"github.com/felixgeelhaar/playground/internal/renderer"
	"github.com/felixgeelhaar/playground/internal/storage"
)

// Version is reported by the status endpoint
var Version = "0.1.0"

// Server represents the playground daemon HTTP server
type Server struct {
	cfg     *config.LocalConfig
	server  *http.Server
	router  *http.ServeMux
	handler http.Handler

	// Services
	catalog   *level.Catalog
	manager   *controller.Manager
	store     *storage.Adapter
	publisher events.Publisher
	forwarder *events.Forwarder

	// Run protection
	runLimiter  ratelimit.RateLimiter
	runBulkhead bulkhead.Bulkhead[renderer.Result]

	shutdownOnce sync.Once
	shutdownErr  error
}

// ServerConfig holds configuration for creating a new server
type ServerConfig struct {
	Config  *config.LocalConfig
	DataDir string // ~/.playground, used to resolve storage and level paths

	// Optional overrides, mostly for tests
	KV        storage.KV
	Catalog   *level.Catalog
	Publisher events.Publisher
	Renderer  []renderer.Option
}

// NewServer creates a new daemon server
func NewServer(ctx context.Context, cfg ServerConfig) (*Server, error) {
	if cfg.Config == nil {
		cfg.Config = config.DefaultLocalConfig()
	}
	s := &Server{
		cfg:    cfg.Config,
		router: http.NewServeMux(),
	}

	// Storage
	kv := cfg.KV
	if kv == nil {
		var err error
		kv, err = OpenStorage(ctx, cfg.Config, cfg.DataDir)
		if err != nil {
			return nil, err
		}
	}
	s.store = storage.NewAdapter(kv)

	// Level catalog
	s.catalog = cfg.Catalog
	if s.catalog == nil {
		s.catalog = level.NewCatalog(cfg.Config.LevelsPath(cfg.DataDir))
		if err := s.catalog.Load(); err != nil {
			s.store.Close()
			return nil, fmt.Errorf("load levels: %w", err)
		}
	}

	// Events
	s.publisher = cfg.Publisher
	if s.publisher == nil {
		s.publisher = s.setupPublisher()
	}
	dispatcher := domain.NewEventDispatcher()
	s.forwarder = events.Forward(dispatcher, s.publisher, 5*time.Second)

	// Level controllers
	opts := append([]renderer.Option{
		renderer.WithDelay(cfg.Config.Renderer.MinDelay(), cfg.Config.Renderer.MaxDelay()),
	}, cfg.Renderer...)
	s.manager = controller.NewManager(ctx, s.catalog, s.store, dispatcher, controller.ManagerConfig{
		EnforceUnlock: cfg.Config.Levels.EnforceUnlock,
		Renderer:      opts,
	})
	if err := s.manager.StartAutosave(cfg.Config.Autosave.Interval()); err != nil {
		s.store.Close()
		return nil, err
	}

	// Run protection
	if rl := cfg.Config.RateLimit; rl.RunsPerSecond > 0 {
		burst := rl.Burst
		if burst < rl.RunsPerSecond {
			burst = rl.RunsPerSecond
		}
		s.runLimiter = ratelimit.New(&ratelimit.Config{
			Rate:     rl.RunsPerSecond,
			Burst:    burst,
			Interval: time.Second,
		})
	}
	s.runBulkhead = bulkhead.New[renderer.Result](bulkhead.Config{
		MaxConcurrent: 16,
		MaxQueue:      32,
		QueueTimeout:  10 * time.Second,
	})

	// Setup routes
	s.setupRoutes()

	// Create HTTP server with middleware chain
	addr := fmt.Sprintf("%s:%d", cfg.Config.Daemon.Bind, cfg.Config.Daemon.Port)
	s.handler = chain(s.router, withRequestID, withRecovery, withAccessLog)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// setupPublisher connects to RabbitMQ when configured. A broker that cannot be
// reached disables events rather than failing startup.
func (s *Server) setupPublisher() events.Publisher {
	if s.cfg.Events.AMQPURL == "" {
		return events.Noop{}
	}

	conn, err := events.Dial(s.cfg.Events.AMQPURL, s.cfg.Events.Queue)
	if err != nil {
		slog.Warn("event broker not available, events disabled", "error", err)
		return events.Noop{}
	}
	return events.NewResilientPublisher(events.NewAMQPPublisher(conn), events.ResilientConfig{})
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	// Health & status
	s.router.HandleFunc("GET /v1/health", s.handleHealth)
	s.router.HandleFunc("GET /v1/status", s.handleStatus)

	// Config
	s.router.HandleFunc("GET /v1/config", s.handleGetConfig)

	// Levels
	s.router.HandleFunc("GET /v1/levels", s.handleListLevels)
	s.router.HandleFunc("GET /v1/levels/{n}", s.handleGetLevel)
	s.router.HandleFunc("GET /v1/levels/{n}/progress", s.handleLevelProgress)
	s.router.HandleFunc("POST /v1/levels/{n}/complete", s.handleCompleteLevel)
	s.router.HandleFunc("POST /v1/levels/{n}/reset", s.handleResetLevel)

	// Exercises
	s.router.HandleFunc("POST /v1/levels/{n}/exercises/{id}/run", s.limitRuns(s.handleRun))
	s.router.HandleFunc("POST /v1/levels/{n}/exercises/{id}/check", s.handleCheck)
	s.router.HandleFunc("GET /v1/levels/{n}/exercises/{id}/sample", s.handleSample)

	// Cross-level progress
	s.router.HandleFunc("GET /v1/progress", s.handleProgress)
}

// Start starts the HTTP server
func (s *Server) Start() error {
	stats := s.catalog.Stats()
	slog.Info("starting playground daemon",
		"addr", s.server.Addr,
		"storage", s.cfg.Storage.Driver,
		"levels", stats.LevelCount,
		"exercises", stats.ExerciseCount,
	)
	return s.server.ListenAndServe()
}

// Shutdown stops accepting requests, flushes progress and releases resources.
// Later calls return the result of the first.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		s.shutdownErr = s.shutdown(ctx)
	})
	return s.shutdownErr
}

func (s *Server) shutdown(ctx context.Context) error {
	slog.Info("shutting down daemon...")

	var errs []error
	if err := s.server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if err := s.manager.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("flush progress: %w", err))
	}
	if err := s.forwarder.Close(ctx); err != nil {
		slog.Warn("pending events not published", "error", err)
	}
	if err := s.publisher.Close(); err != nil {
		slog.Warn("failed to close event publisher", "error", err)
	}
	if s.runLimiter != nil {
		if err := s.runLimiter.Close(); err != nil {
			slog.Warn("failed to close rate limiter", "error", err)
		}
	}
	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close storage: %w", err))
	}
	return errors.Join(errs...)
}

// Handler implementations

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats := s.catalog.Stats()
	_, noop := s.publisher.(events.Noop)
	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"status":    "running",
		"version":   Version,
		"storage":   s.cfg.Storage.Driver,
		"levels":    stats.LevelCount,
		"exercises": stats.ExerciseCount,
		"events":    !noop,
	})
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	// DSN and broker URL carry credentials and are excluded by their json tags
	s.jsonResponse(w, http.StatusOK, s.cfg)
}

func (s *Server) handleListLevels(w http.ResponseWriter, r *http.Request) {
	levels, err := s.manager.Levels(r.Context())
	if err != nil {
		s.domainError(w, "failed to list levels", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"levels":   levels,
		"progress": s.manager.Progress(),
	})
}

// exerciseView is an exercise definition without its sample solution and checks
type exerciseView struct {
	ID     int      `json:"id"`
	Name   string   `json:"name"`
	Prompt string   `json:"prompt,omitempty"`
	Fields []string `json:"fields,omitempty"`
	Status string   `json:"status"`
}

func (s *Server) handleGetLevel(w http.ResponseWriter, r *http.Request) {
	c, ok := s.levelController(w, r)
	if !ok {
		return
	}

	lvl := c.Level()
	snap := c.Snapshot()
	exercises := make([]exerciseView, 0, len(lvl.Exercises))
	for _, ex := range lvl.Exercises {
		exercises = append(exercises, exerciseView{
			ID:     ex.ID,
			Name:   ex.Name,
			Prompt: ex.Prompt,
			Fields: ex.Fields,
			Status: string(snap.Runs[ex.ID].Status),
		})
	}

	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"number":      lvl.Number,
		"slug":        lvl.Slug,
		"title":       lvl.Title,
		"description": lvl.Description,
		"exercises":   exercises,
		"metrics":     snap.Progress.Metrics,
		"navigation":  snap.Navigation,
		"summary":     snap.Summary,
		"unlocked":    s.manager.Unlocked(lvl.Number),
	})
}

func (s *Server) handleLevelProgress(w http.ResponseWriter, r *http.Request) {
	c, ok := s.levelController(w, r)
	if !ok {
		return
	}
	s.jsonResponse(w, http.StatusOK, c.Snapshot())
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	c, ok := s.levelController(w, r)
	if !ok {
		return
	}
	id, ok := s.exerciseID(w, r)
	if !ok {
		return
	}

	res, err := s.runBulkhead.Execute(r.Context(), func(ctx context.Context) (renderer.Result, error) {
		return c.Run(ctx, id)
	})
	if err != nil {
		s.domainError(w, "run failed", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, res)
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	c, ok := s.levelController(w, r)
	if !ok {
		return
	}
	id, ok := s.exerciseID(w, r)
	if !ok {
		return
	}

	var req struct {
		Fields map[string]string `json:"fields"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.jsonError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	res, err := c.Check(r.Context(), id, req.Fields)
	if err != nil {
		s.domainError(w, "check failed", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, res)
}

func (s *Server) handleSample(w http.ResponseWriter, r *http.Request) {
	c, ok := s.levelController(w, r)
	if !ok {
		return
	}
	id, ok := s.exerciseID(w, r)
	if !ok {
		return
	}

	ex, found := c.Level().Exercise(id)
	if !found {
		s.domainError(w, "exercise not found", fmt.Errorf("%w: %d", domain.ErrExerciseNotFound, id))
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"level":    c.Level().Number,
		"exercise": ex.ID,
		"name":     ex.Name,
		"sample":   ex.Sample,
	})
}

func (s *Server) handleCompleteLevel(w http.ResponseWriter, r *http.Request) {
	c, ok := s.levelController(w, r)
	if !ok {
		return
	}

	completion, err := c.CompleteLevel(r.Context())
	if err != nil {
		s.domainError(w, "complete all exercises before finishing the level", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, completion)
}

func (s *Server) handleResetLevel(w http.ResponseWriter, r *http.Request) {
	c, ok := s.levelController(w, r)
	if !ok {
		return
	}
	s.jsonResponse(w, http.StatusOK, c.ResetLevel(r.Context()))
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	state := s.manager.Progress()
	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"completedLevels": state.CompletedLevels,
		"totalProgress":   state.TotalProgress,
		"levelCount":      s.catalog.Count(),
	})
}

// Helper methods

// levelController resolves the {n} path value to its controller, writing the
// error response when it cannot
func (s *Server) levelController(w http.ResponseWriter, r *http.Request) (*controller.Controller, bool) {
	n, err := strconv.Atoi(r.PathValue("n"))
	if err != nil || n <= 0 {
		s.jsonError(w, http.StatusBadRequest, "invalid level number", err)
		return nil, false
	}

	c, err := s.manager.Get(r.Context(), n)
	if err != nil {
		s.domainError(w, "level unavailable", err)
		return nil, false
	}
	return c, true
}

func (s *Server) exerciseID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || id <= 0 {
		s.jsonError(w, http.StatusBadRequest, "invalid exercise id", err)
		return 0, false
	}
	return id, true
}

// domainError maps domain errors to HTTP status codes
func (s *Server) domainError(w http.ResponseWriter, message string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrLevelNotFound), errors.Is(err, domain.ErrExerciseNotFound), errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrLevelIncomplete), errors.Is(err, controller.ErrRunSuperseded):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrLevelLocked):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
	}
	s.jsonError(w, status, message, err)
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (s *Server) jsonError(w http.ResponseWriter, status int, message string, err error) {
	response := map[string]interface{}{
		"error":  message,
		"status": status,
	}
	if err != nil {
		response["details"] = err.Error()
	}
	s.jsonResponse(w, status, response)
}
