package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/joseph-ayodele/policy-extractor/internal/common"
	"github.com/joseph-ayodele/policy-extractor/internal/documents"
	"github.com/joseph-ayodele/policy-extractor/internal/metrics"
	"github.com/joseph-ayodele/policy-extractor/internal/repository"
)

// Deps are the collaborators the HTTP routes need. Jobs, DB and Metrics are optional.
type Deps struct {
	Processor Processor
	Resolver  *documents.Resolver
	Jobs      repository.ExtractJobRepository
	DB        *repository.DB
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

// HTTPServer wraps the HTTP server instance and its handlers.
type HTTPServer struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewRouter builds and wires all routes.
func NewRouter(cfg common.ServerConfig, deps Deps) (http.Handler, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	processHandler, err := NewProcessHandler(deps.Processor, deps.Resolver, cfg.IncludeParagraph, logger)
	if err != nil {
		return nil, err
	}
	healthHandler := NewHealthHandler(deps.Resolver, deps.DB, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Post("/process-pdf", processHandler.ProcessPDF)
	r.Get("/healthz", healthHandler.Healthz)
	if deps.Jobs != nil {
		jobsHandler := NewJobsHandler(deps.Jobs, logger)
		r.Route("/jobs", func(jobs chi.Router) {
			jobs.Get("/", jobsHandler.ListJobs)
			jobs.Get("/{id}", jobsHandler.GetJob)
		})
	}
	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics.Handler())
	}
	return r, nil
}

func NewHTTPServer(cfg common.ServerConfig, deps Deps) (*HTTPServer, error) {
	handler, err := NewRouter(cfg, deps)
	if err != nil {
		return nil, err
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPServer{
		httpServer: &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}, nil
}

// ListenAndServe blocks until the server stops. A graceful shutdown returns nil.
func (s *HTTPServer) ListenAndServe() error {
	s.logger.Info("HTTP server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// requestLogger logs one line per request and copies chi's request id into
// the context under common.ContextKeyRequestID.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqID := middleware.GetReqID(r.Context())
			r = r.WithContext(common.WithRequestID(r.Context(), reqID))
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Info("http.request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", reqID,
			)
		})
	}
}
