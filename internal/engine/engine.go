// Package engine wires the gold catalog, materialization store, silver
// source, scheduler and analytical queries into one facade used by the CLI
// and the HTTP API.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/leapstack-labs/leapgold/internal/analytics"
	"github.com/leapstack-labs/leapgold/internal/catalog"
	"github.com/leapstack-labs/leapgold/internal/dag"
	"github.com/leapstack-labs/leapgold/internal/eval"
	"github.com/leapstack-labs/leapgold/internal/gold"
	"github.com/leapstack-labs/leapgold/internal/scheduler"
	"github.com/leapstack-labs/leapgold/internal/store"
	"github.com/leapstack-labs/leapgold/pkg/adapter"
	"github.com/leapstack-labs/leapgold/pkg/core"
)

// Config holds engine configuration.
type Config struct {
	// Namespace scopes the catalog and persisted results.
	Namespace string
	// Source describes the silver source. It is connected lazily.
	Source core.AdapterConfig
	// Store selects the materialization backend.
	StoreBackend string
	StorePath    string
	// Parallelism bounds concurrently refreshed relations.
	Parallelism int
	// Partitions is the map-reduce fan-out of aggregations.
	Partitions int
	// KeepRuns is the run history retention. 0 keeps everything.
	KeepRuns int
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
}

// Engine is the gold layer of one namespace.
type Engine struct {
	// Silver source (lazy initialized)
	source          adapter.Source
	sourceConfig    core.AdapterConfig
	sourceConnected bool
	sourceMu        sync.Mutex

	logger    *slog.Logger
	catalog   *catalog.Catalog
	store     core.ResultStore
	runs      core.RunLog
	evaluator *eval.Evaluator
	scheduler *scheduler.Scheduler
	queries   *analytics.Runner
}

// New creates an engine with a lazy source connection.
// The source is only connected when LoadSources is called.
func New(cfg Config) (*Engine, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	logger.Debug("initializing engine",
		slog.String("namespace", cfg.Namespace),
		slog.String("store", cfg.StoreBackend),
		slog.String("source", cfg.Source.Type))

	cat, err := gold.NewCatalog(cfg.Namespace)
	if err != nil {
		return nil, fmt.Errorf("failed to build catalog: %w", err)
	}

	if err := ensureStoreDir(cfg.StoreBackend, cfg.StorePath); err != nil {
		return nil, err
	}
	st, err := store.Open(store.Config{
		Backend:   cfg.StoreBackend,
		Path:      cfg.StorePath,
		Namespace: cat.Namespace(),
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	// Backends that persist run history implement RunLog themselves.
	runs, ok := st.(core.RunLog)
	if !ok {
		runs = store.NewMemoryRunLog()
	}

	evaluator := eval.New(eval.Config{Partitions: cfg.Partitions, Logger: logger})
	sched, err := scheduler.New(scheduler.Config{
		Catalog:     cat,
		Store:       st,
		Runs:        runs,
		Evaluator:   evaluator,
		Parallelism: cfg.Parallelism,
		KeepRuns:    cfg.KeepRuns,
		Logger:      logger,
	})
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	return &Engine{
		sourceConfig: cfg.Source,
		logger:       logger,
		catalog:      cat,
		store:        st,
		runs:         runs,
		evaluator:    evaluator,
		scheduler:    sched,
		queries:      analytics.NewRunner(analytics.NewRegistry(), st, evaluator, logger),
	}, nil
}

// ensureStoreDir creates the directory a persistent store lives in.
func ensureStoreDir(backend, path string) error {
	if path == "" || path == ":memory:" {
		return nil
	}
	var dir string
	switch backend {
	case store.BackendSQLite:
		dir = filepath.Dir(path)
	case store.BackendBadger:
		dir = path
	default:
		return nil
	}
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	return nil
}

// SetSource replaces the configured source with an already connected one.
func (e *Engine) SetSource(src adapter.Source) {
	e.sourceMu.Lock()
	defer e.sourceMu.Unlock()
	e.source = src
	e.sourceConnected = src != nil
}

// ensureSourceConnected lazily connects to the silver source.
func (e *Engine) ensureSourceConnected(ctx context.Context) (adapter.Source, error) {
	e.sourceMu.Lock()
	defer e.sourceMu.Unlock()

	if e.sourceConnected {
		return e.source, nil
	}

	e.logger.Debug("connecting to source", slog.String("source_type", e.sourceConfig.Type))

	src, err := adapter.NewSource(e.sourceConfig, e.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create source: %w", err)
	}
	if err := src.Connect(ctx, e.sourceConfig); err != nil {
		return nil, fmt.Errorf("failed to connect to source: %w", err)
	}

	e.source = src
	e.sourceConnected = true
	return src, nil
}

// Namespace returns the catalog namespace.
func (e *Engine) Namespace() string {
	return e.catalog.Namespace()
}

// Catalog returns the sealed relation catalog.
func (e *Engine) Catalog() *catalog.Catalog {
	return e.catalog
}

// Graph returns the dependency graph.
func (e *Engine) Graph() *dag.Graph {
	return e.catalog.Graph()
}

// Store returns the materialization store.
func (e *Engine) Store() core.ResultStore {
	return e.store
}

// Queries returns the analytical query registry.
func (e *Engine) Queries() *analytics.Registry {
	return e.queries.Registry()
}

// Plan returns what a refresh of scope would do, without running it.
func (e *Engine) Plan(ctx context.Context, scope []string) (*scheduler.Plan, error) {
	return e.scheduler.Plan(ctx, scope)
}

// Refresh recomputes scope and its stale upstream closure. An empty scope
// recomputes every derived relation.
func (e *Engine) Refresh(ctx context.Context, scope []string) (*core.RefreshReport, error) {
	return e.scheduler.Refresh(ctx, scope)
}

// PlanStale returns the plan of RefreshStale.
func (e *Engine) PlanStale(ctx context.Context) (*scheduler.Plan, error) {
	return e.scheduler.PlanStale(ctx)
}

// RefreshStale recomputes only the derived relations whose inputs changed
// or that were never committed.
func (e *Engine) RefreshStale(ctx context.Context) (*core.RefreshReport, error) {
	return e.scheduler.RefreshStale(ctx)
}

// Read returns the latest committed result of a relation.
func (e *Engine) Read(ctx context.Context, name string) (*core.MaterializedResult, error) {
	if _, err := e.catalog.Lookup(name); err != nil {
		return nil, err
	}
	return e.store.Read(ctx, name)
}

// Query runs a named analytical query.
func (e *Engine) Query(ctx context.Context, name string, args map[string]string) (*analytics.Result, error) {
	return e.queries.Run(ctx, name, args)
}

// Runs returns recent refresh runs, newest first.
func (e *Engine) Runs(ctx context.Context, limit int) ([]*core.Run, error) {
	return e.runs.ListRuns(ctx, limit)
}

// Run returns one run with its per relation records.
func (e *Engine) Run(ctx context.Context, id string) (*core.Run, []*core.RelationRun, error) {
	run, err := e.runs.GetRun(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	rels, err := e.runs.GetRelationRuns(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return run, rels, nil
}

// Close releases the source and the store.
func (e *Engine) Close() error {
	var errs []error

	e.sourceMu.Lock()
	if e.source != nil {
		errs = append(errs, e.source.Close())
		e.source = nil
		e.sourceConnected = false
	}
	e.sourceMu.Unlock()

	if e.store != nil {
		errs = append(errs, e.store.Close())
	}
	return errors.Join(errs...)
}
