package web

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zhaambo/NetscapeX-CLI/internal/config"
	"github.com/zhaambo/NetscapeX-CLI/internal/logging"
	"github.com/zhaambo/NetscapeX-CLI/internal/metrics"
	"github.com/zhaambo/NetscapeX-CLI/internal/pipeline"
	"github.com/zhaambo/NetscapeX-CLI/internal/publish"
	"github.com/zhaambo/NetscapeX-CLI/internal/storage"
)

// Server is the HTTP API for on-demand capture analysis.
type Server struct {
	cfg       config.WebConfig
	pipeline  *pipeline.Pipeline
	store     storage.ResultStore
	publisher *publish.Publisher
	metrics   *metrics.Metrics
	router    *mux.Router
	srv       *http.Server
	log       *logging.Logger

	maxUpload int64 // request body limit in bytes (0 = unbounded)
	startTime time.Time
}

// NewServer creates the API server. store, pub and m may be nil; the
// routes that depend on them then report the feature as unavailable.
func NewServer(cfg config.WebConfig, p *pipeline.Pipeline, store storage.ResultStore, pub *publish.Publisher, m *metrics.Metrics) *Server {
	s := &Server{
		cfg:       cfg,
		pipeline:  p,
		store:     store,
		publisher: pub,
		metrics:   m,
		router:    mux.NewRouter(),
		log:       logging.Default().With("web"),
		maxUpload: int64(cfg.MaxUploadMB) << 20,
		startTime: time.Now(),
	}

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/analyze", s.handleAnalyze).Methods(http.MethodPost)
	api.HandleFunc("/runs", s.handleRuns).Methods(http.MethodGet)
	api.HandleFunc("/runs/{id}", s.handleRun).Methods(http.MethodGet)
	api.HandleFunc("/runs/{id}/summary", s.handleRunSummary).Methods(http.MethodGet)

	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	if m != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	s.srv = &http.Server{
		Addr:              cfg.Listen,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// Start begins listening and serving HTTP requests. It blocks until the server
// is shut down or encounters a fatal error.
func (s *Server) Start() error {
	s.log.Info("Web server listening on %s", s.cfg.Listen)
	err := s.srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop gracefully shuts down the web server, waiting for in-flight
// analyses until ctx expires.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// Handler returns the request router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}
