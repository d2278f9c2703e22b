// Package api provides the HTTP REST API over the console state: task
// submission, history queries, the view projection and a live event stream.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/hugo-lorenzo-mato/agentmesh/internal/adapters/state"
	"github.com/hugo-lorenzo-mato/agentmesh/internal/core"
	"github.com/hugo-lorenzo-mato/agentmesh/internal/events"
	"github.com/hugo-lorenzo-mato/agentmesh/internal/logging"
	"github.com/hugo-lorenzo-mato/agentmesh/internal/web/sse"
)

// Source is the live state the API reads. *ingest.Adapter implements it.
type Source interface {
	Snapshot() core.Snapshot
	Task(id core.TaskID) (*core.Task, bool)
	Tool(id core.InvocationID) (*core.ToolInvocation, bool)
}

// Submitter forwards a request to the agent backend.
type Submitter interface {
	Submit(ctx context.Context, text string) error
}

// History is the persisted task history. *state.TaskStore implements it.
type History interface {
	Query(ctx context.Context, q state.TaskQuery) (*state.TaskPage, error)
	GetTask(ctx context.Context, id core.TaskID) (*core.Task, error)
	Journal(ctx context.Context, taskID core.TaskID) ([]state.JournalEntry, error)
}

// Server provides the HTTP endpoints.
type Server struct {
	router    chi.Router
	source    Source
	submitter Submitter
	history   History
	bus       *events.EventBus
	sse       *sse.Handler
	gatherer  prometheus.Gatherer
	cors      bool
	logger    *logging.Logger
}

// ServerOption configures the server.
type ServerOption func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *logging.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithSubmitter enables POST /tasks.
func WithSubmitter(sub Submitter) ServerOption {
	return func(s *Server) {
		s.submitter = sub
	}
}

// WithHistory enables history queries.
func WithHistory(h History) ServerOption {
	return func(s *Server) {
		s.history = h
	}
}

// WithEventBus enables the SSE stream.
func WithEventBus(bus *events.EventBus) ServerOption {
	return func(s *Server) {
		s.bus = bus
	}
}

// WithMetrics exposes the gatherer at /metrics.
func WithMetrics(g prometheus.Gatherer) ServerOption {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithCORS toggles the permissive CORS middleware.
func WithCORS(enabled bool) ServerOption {
	return func(s *Server) {
		s.cors = enabled
	}
}

// NewServer creates a new API server.
func NewServer(source Source, opts ...ServerOption) *Server {
	s := &Server{
		source: source,
		cors:   true,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.bus != nil {
		s.sse = sse.NewHandler(s.bus, sse.WithLogger(s.logger))
	}
	s.router = s.setupRouter()
	return s
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.loggingMiddleware)

	if s.cors {
		corsHandler := cors.New(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Requested-With"},
			AllowCredentials: false,
			MaxAge:           300,
		})
		r.Use(corsHandler.Handler)
	}

	r.Get("/health", s.handleHealth)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// The event stream must not sit behind the request timeout.
		if s.sse != nil {
			sse.RegisterRoutes(r, s.sse)
		}

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))

			r.Route("/tasks", func(r chi.Router) {
				r.Get("/", s.handleListTasks)
				r.Post("/", s.handleSubmitTask)
				r.Post("/query", s.handleQueryTasks)
				r.Get("/{taskID}", s.handleGetTask)
			})
			r.Get("/view", s.handleView)
			r.Get("/tools/{invocationID}", s.handleGetTool)
		})
	})

	return r
}

// loggingMiddleware logs HTTP requests.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			s.logger.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
				"bytes", ww.BytesWritten(),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

// respondJSON sends a JSON response.
func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			s.logger.Error("failed to encode response", "error", err)
		}
	}
}

// respondError sends a JSON error response.
func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if s.sse != nil {
			_ = s.sse.Shutdown(shutdownCtx)
		}
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("starting API server", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
