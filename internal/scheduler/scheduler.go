// Package scheduler runs refreshes: it expands a scope to its upstream
// closure, computes relations in dependency order with bounded
// parallelism, and commits each result atomically.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/leapstack-labs/leapgold/internal/catalog"
	"github.com/leapstack-labs/leapgold/internal/dag"
	"github.com/leapstack-labs/leapgold/internal/eval"
	"github.com/leapstack-labs/leapgold/pkg/core"
)

// DefaultParallelism is the number of relations computed at once when none
// is configured.
const DefaultParallelism = 4

// Config wires a scheduler.
type Config struct {
	Catalog   *catalog.Catalog
	Store     core.ResultStore
	Runs      core.RunLog
	Evaluator *eval.Evaluator
	// Parallelism bounds concurrently evaluated relations.
	Parallelism int
	// KeepRuns prunes run history after each refresh. 0 keeps everything.
	KeepRuns int
	Logger   *slog.Logger
}

// Scheduler runs refreshes against one sealed catalog.
type Scheduler struct {
	catalog     *catalog.Catalog
	graph       *dag.Graph
	store       core.ResultStore
	runs        core.RunLog
	evaluator   *eval.Evaluator
	parallelism int
	keepRuns    int
	logger      *slog.Logger

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// New creates a scheduler. The catalog must be sealed.
func New(cfg Config) (*Scheduler, error) {
	if cfg.Catalog == nil || cfg.Store == nil {
		return nil, errors.New("scheduler needs a catalog and a store")
	}
	g := cfg.Catalog.Graph()
	if g == nil {
		return nil, errors.New("scheduler needs a sealed catalog")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	evaluator := cfg.Evaluator
	if evaluator == nil {
		evaluator = eval.New(eval.Config{Logger: logger})
	}
	p := cfg.Parallelism
	if p < 1 {
		p = DefaultParallelism
	}

	return &Scheduler{
		catalog:     cfg.Catalog,
		graph:       g,
		store:       cfg.Store,
		runs:        cfg.Runs,
		evaluator:   evaluator,
		parallelism: p,
		keepRuns:    cfg.KeepRuns,
		logger:      logger,
		inFlight:    make(map[string]struct{}),
	}, nil
}

// Refresh recomputes scope and whatever of its upstream closure is stale.
// An empty scope recomputes every derived relation. The report is returned
// whenever execution started; the error joins every RefreshFailure and, if
// the context ended, its error.
func (s *Scheduler) Refresh(ctx context.Context, scope []string) (*core.RefreshReport, error) {
	plan, err := s.Plan(ctx, scope)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, plan)
}

// RefreshStale recomputes only the derived relations that are stale.
// Current relations are reported as current and keep their versions.
func (s *Scheduler) RefreshStale(ctx context.Context) (*core.RefreshReport, error) {
	plan, err := s.PlanStale(ctx)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, plan)
}

func (s *Scheduler) run(ctx context.Context, plan *Plan) (*core.RefreshReport, error) {
	names := plan.Relations()

	if err := s.acquire(names); err != nil {
		refreshRejectedTotal.Inc()
		return nil, err
	}
	defer s.release(names)

	runID := ""
	if s.runs != nil {
		run, err := s.runs.CreateRun(ctx, s.catalog.Namespace(), plan.Scope)
		if err != nil {
			return nil, fmt.Errorf("create run: %w", err)
		}
		runID = run.ID
	}

	log := s.logger.With(slog.String("run_id", runID))
	log.Info("refresh started", slog.Any("scope", plan.Scope), slog.Int("relations", len(names)))
	start := time.Now()

	outcomes := s.execute(ctx, log, plan)

	report := &core.RefreshReport{
		RunID:    runID,
		Order:    names,
		Versions: make(map[string]uint64, len(names)),
	}
	var errs []error
	failed := false
	for _, name := range names {
		o := outcomes[name]
		report.Outcomes = append(report.Outcomes, o)
		if o.Status == core.RelationStatusFailed {
			failed = true
			errs = append(errs, o.Err)
		}
	}

	// report reads are not cancelled with the refresh
	bg := context.WithoutCancel(ctx)
	for _, name := range names {
		v, err := s.store.CurrentVersion(bg, name)
		if err != nil {
			return nil, err
		}
		report.Versions[name] = v
	}

	switch {
	case ctx.Err() != nil:
		report.Status = core.RunStatusCancelled
		errs = append(errs, ctx.Err())
	case failed:
		report.Status = core.RunStatusFailed
	default:
		report.Status = core.RunStatusCompleted
	}
	refreshRunsTotal.WithLabelValues(string(report.Status)).Inc()

	err := errors.Join(errs...)
	s.recordRun(bg, log, report, err)

	log.Info("refresh finished",
		slog.String("status", string(report.Status)),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()))
	return report, err
}

func (s *Scheduler) recordRun(ctx context.Context, log *slog.Logger, report *core.RefreshReport, runErr error) {
	if s.runs == nil {
		return
	}
	for _, o := range report.Outcomes {
		rr := &core.RelationRun{
			RunID:      report.RunID,
			Relation:   o.Relation,
			Status:     o.Status,
			Version:    o.Version,
			Rows:       o.Rows,
			DurationMS: o.DurationMS,
			Error:      o.Error,
		}
		if err := s.runs.RecordRelationRun(ctx, rr); err != nil {
			log.Warn("failed to record relation run", slog.String("relation", o.Relation), slog.String("error", err.Error()))
		}
	}
	msg := ""
	if runErr != nil {
		msg = runErr.Error()
	}
	if err := s.runs.CompleteRun(ctx, report.RunID, report.Status, msg); err != nil {
		log.Warn("failed to complete run", slog.String("error", err.Error()))
	}
	if s.keepRuns > 0 {
		if err := s.runs.PruneRuns(ctx, s.keepRuns); err != nil {
			log.Warn("failed to prune runs", slog.String("error", err.Error()))
		}
	}
}

// acquire marks names as being refreshed. Overlapping refreshes are
// rejected rather than queued.
func (s *Scheduler) acquire(names []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, name := range names {
		if _, busy := s.inFlight[name]; busy {
			return &core.RefreshInProgressError{Relation: name}
		}
	}
	for _, name := range names {
		s.inFlight[name] = struct{}{}
	}
	return nil
}

func (s *Scheduler) release(names []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, name := range names {
		delete(s.inFlight, name)
	}
}

// execute runs the plan. A relation starts once every upstream inside the
// plan has finished; the smallest ready name starts first.
func (s *Scheduler) execute(ctx context.Context, log *slog.Logger, plan *Plan) map[string]core.Outcome {
	inPlan := make(map[string]bool, len(plan.Steps))
	requested := make(map[string]bool)
	for _, st := range plan.Steps {
		inPlan[st.Relation] = true
		if st.Requested {
			requested[st.Relation] = true
		}
	}

	waiting := make(map[string]int, len(plan.Steps))
	var ready []string
	for _, st := range plan.Steps {
		for _, up := range st.Upstreams {
			if inPlan[up] {
				waiting[st.Relation]++
			}
		}
		if waiting[st.Relation] == 0 {
			ready = append(ready, st.Relation)
		}
	}
	sort.Strings(ready)

	done := make(map[string]core.Outcome, len(plan.Steps))
	finish := func(o core.Outcome) {
		done[o.Relation] = o
		if o.Status == core.RelationStatusFailed {
			for _, d := range s.graph.Descendants(o.Relation) {
				if _, seen := done[d]; inPlan[d] && !seen {
					done[d] = core.Outcome{
						Relation: d,
						Status:   core.RelationStatusSkipped,
						Error:    fmt.Sprintf("skipped: upstream relation %s failed", o.Relation),
					}
					relationRefreshTotal.WithLabelValues(d, string(core.RelationStatusSkipped)).Inc()
				}
			}
			return
		}
		for _, child := range s.graph.Children(o.Relation) {
			if !inPlan[child] {
				continue
			}
			waiting[child]--
			if _, seen := done[child]; waiting[child] == 0 && !seen {
				ready = append(ready, child)
				sort.Strings(ready)
			}
		}
	}

	results := make(chan core.Outcome)
	running := 0
	for {
		for running < s.parallelism && len(ready) > 0 && ctx.Err() == nil {
			name := ready[0]
			ready = ready[1:]

			if !requested[name] {
				current, err := s.isCurrent(ctx, name)
				if err != nil {
					finish(s.failure(log, name, time.Time{}, err))
					continue
				}
				if current {
					v, _ := s.store.CurrentVersion(ctx, name)
					log.Debug("relation current", slog.String("relation", name), slog.Uint64("version", v))
					relationRefreshTotal.WithLabelValues(name, string(core.RelationStatusCurrent)).Inc()
					finish(core.Outcome{Relation: name, Status: core.RelationStatusCurrent, Version: v})
					continue
				}
			}

			running++
			go func() {
				results <- s.refreshOne(ctx, log, name)
			}()
		}

		if running == 0 {
			break
		}
		o := <-results
		running--
		finish(o)
	}

	for _, st := range plan.Steps {
		if _, ok := done[st.Relation]; !ok {
			done[st.Relation] = core.Outcome{
				Relation: st.Relation,
				Status:   core.RelationStatusCancelled,
				Error:    "cancelled before start",
			}
			relationRefreshTotal.WithLabelValues(st.Relation, string(core.RelationStatusCancelled)).Inc()
		}
	}
	return done
}

func (s *Scheduler) isCurrent(ctx context.Context, name string) (bool, error) {
	infos, err := s.versions(ctx)
	if err != nil {
		return false, err
	}
	reason, _ := s.staleness(name, infos)
	return reason == ReasonCurrent, nil
}

// refreshOne reads the relation's inputs, evaluates it, conforms the
// result to the declared schema and commits it.
func (s *Scheduler) refreshOne(ctx context.Context, log *slog.Logger, name string) core.Outcome {
	start := time.Now()

	rel, err := s.catalog.Lookup(name)
	if err != nil {
		return s.failure(log, name, start, err)
	}
	def, err := s.catalog.View(name)
	if err != nil {
		return s.failure(log, name, start, err)
	}

	inputs := make(map[string]*core.Table)
	versions := make(map[string]uint64)
	for _, up := range def.Upstreams() {
		res, err := s.store.Read(ctx, up)
		if err != nil {
			return s.failure(log, name, start, err)
		}
		inputs[up] = &res.Table
		versions[up] = res.Version
	}

	table, err := s.evaluator.Evaluate(ctx, def, inputs)
	if err != nil {
		return s.failure(log, name, start, err)
	}
	if err := eval.Conform(table, rel); err != nil {
		return s.failure(log, name, start, err)
	}
	if err := ctx.Err(); err != nil {
		return s.failure(log, name, start, err)
	}

	current, err := s.store.CurrentVersion(ctx, name)
	if err != nil {
		return s.failure(log, name, start, err)
	}
	res := &core.MaterializedResult{
		Table:    *table,
		Relation: name,
		Version:  current + 1,
		Inputs:   versions,
	}
	if err := s.store.Commit(ctx, res); err != nil {
		return s.failure(log, name, start, err)
	}

	elapsed := time.Since(start)
	relationRefreshTotal.WithLabelValues(name, string(core.RelationStatusSuccess)).Inc()
	relationRefreshDuration.WithLabelValues(name).Observe(elapsed.Seconds())
	relationRows.WithLabelValues(name).Set(float64(len(res.Rows)))
	relationVersion.WithLabelValues(name).Set(float64(res.Version))

	log.Info("relation refreshed",
		slog.String("relation", name),
		slog.Uint64("version", res.Version),
		slog.Int("rows", len(res.Rows)),
		slog.Int64("duration_ms", elapsed.Milliseconds()))

	return core.Outcome{
		Relation:   name,
		Status:     core.RelationStatusSuccess,
		Version:    res.Version,
		Rows:       len(res.Rows),
		DurationMS: elapsed.Milliseconds(),
	}
}

func (s *Scheduler) failure(log *slog.Logger, name string, start time.Time, cause error) core.Outcome {
	var elapsed time.Duration
	if !start.IsZero() {
		elapsed = time.Since(start)
	}

	if isCancellation(cause) {
		log.Warn("relation cancelled", slog.String("relation", name))
		relationRefreshTotal.WithLabelValues(name, string(core.RelationStatusCancelled)).Inc()
		return core.Outcome{
			Relation:   name,
			Status:     core.RelationStatusCancelled,
			DurationMS: elapsed.Milliseconds(),
			Error:      cause.Error(),
		}
	}

	err := &core.RefreshFailure{Relation: name, Cause: cause}
	log.Error("relation refresh failed", slog.String("relation", name), slog.String("error", cause.Error()))
	relationRefreshTotal.WithLabelValues(name, string(core.RelationStatusFailed)).Inc()
	return core.Outcome{
		Relation:   name,
		Status:     core.RelationStatusFailed,
		DurationMS: elapsed.Milliseconds(),
		Error:      err.Error(),
		Err:        err,
	}
}

// InFlight returns the relations currently being refreshed.
func (s *Scheduler) InFlight() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.inFlight))
	for name := range s.inFlight {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
