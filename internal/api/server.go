// Package api serves the gold layer over HTTP: relation status and rows,
// refresh, analytical queries, run history, Prometheus metrics and a
// server-sent event stream of new commits.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/leapgold/internal/engine"
	"github.com/leapstack-labs/leapgold/pkg/core"
)

// Config holds configuration for the API server.
type Config struct {
	Engine *engine.Engine
	Addr   string
	// WatchDir, when set, is watched for changed CSV files. A change loads
	// the silver relations and refreshes the gold layer.
	WatchDir string
	// Debounce delays a watch-triggered refresh until files settle.
	Debounce time.Duration
	Logger   *slog.Logger
}

// Server is the HTTP API server.
type Server struct {
	engine   *engine.Engine
	addr     string
	watchDir string
	debounce time.Duration
	logger   *slog.Logger
	hub      *Hub

	// syncMu serializes load+refresh cycles started by the watcher and
	// POST /refresh?load=true.
	syncMu sync.Mutex
}

// NewServer creates a new API server instance.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	return &Server{
		engine:   cfg.Engine,
		addr:     cfg.Addr,
		watchDir: cfg.WatchDir,
		debounce: debounce,
		logger:   logger,
		hub:      NewHub(),
	}
}

// Hub returns the server's event hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		requestLogger(s.logger),
		middleware.Recoverer,
		middleware.Compress(5),
	)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/events", s.handleEvents)

	r.Route("/relations", func(r chi.Router) {
		r.Get("/", s.handleRelations)
		r.Get("/{name}", s.handleRelation)
	})
	r.Post("/refresh", s.handleRefresh)
	r.Route("/queries", func(r chi.Router) {
		r.Get("/", s.handleQueries)
		r.Get("/{name}", s.handleQuery)
	})
	r.Route("/runs", func(r chi.Router) {
		r.Get("/", s.handleRuns)
		r.Get("/{id}", s.handleRun)
	})
	return r
}

// Serve starts the server and blocks until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener serves on ln until the context is cancelled.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	s.logger.Info("starting API server", slog.String("addr", ln.Addr().String()))

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.watchDir != "" {
		eg.Go(func() error {
			return s.watchFiles(egctx)
		})
	}

	eg.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down API server")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

// loadAndRefresh loads the silver relations when req.Load is set, then
// refreshes and announces what was committed. A partially failed load still
// refreshes from whatever versions are current.
func (s *Server) loadAndRefresh(ctx context.Context, req refreshRequest) (*core.RefreshReport, error) {
	s.syncMu.Lock()
	defer s.syncMu.Unlock()

	if req.Load {
		outcomes, err := s.engine.LoadSources(ctx)
		if err != nil {
			if outcomes == nil {
				return nil, err
			}
			s.logger.Warn("silver load incomplete", slog.String("error", err.Error()))
		}
		versions := make(map[string]uint64)
		for _, o := range outcomes {
			if o.Status == engine.LoadCommitted {
				versions[o.Relation] = o.Version
			}
		}
		if len(versions) > 0 {
			s.hub.Publish(Event{Type: EventLoaded, Versions: versions})
		}
	}

	var report *core.RefreshReport
	var err error
	switch {
	case req.All || len(req.Select) > 0:
		report, err = s.engine.Refresh(ctx, req.Select)
	default:
		report, err = s.engine.RefreshStale(ctx)
	}
	// a refresh that found everything current announces nothing
	if report != nil && report.Changed() {
		s.hub.Publish(Event{
			Type:     EventRefreshed,
			RunID:    report.RunID,
			Status:   report.Status,
			Versions: report.Versions,
		})
	}
	return report, err
}

// requestLogger logs every request with slog.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Int("bytes", ww.BytesWritten()),
				slog.Int64("duration_ms", time.Since(start).Milliseconds()),
				slog.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}
