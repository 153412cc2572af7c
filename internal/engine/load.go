package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/leapstack-labs/leapgold/internal/eval"
	"github.com/leapstack-labs/leapgold/internal/store"
	"github.com/leapstack-labs/leapgold/pkg/core"
)

// LoadStatus is the result of loading one base relation.
type LoadStatus string

// Load statuses.
const (
	LoadCommitted LoadStatus = "committed"
	LoadUnchanged LoadStatus = "unchanged"
	LoadFailed    LoadStatus = "failed"
)

// LoadOutcome reports one base relation of a load.
type LoadOutcome struct {
	Relation   string     `json:"relation"`
	Status     LoadStatus `json:"status"`
	Version    uint64     `json:"version"`
	Rows       int        `json:"rows"`
	DurationMS int64      `json:"duration_ms"`
	Error      string     `json:"error,omitempty"`
}

// LoadSources reads base relations from the silver source and commits every
// one whose content changed. An empty names list loads all base relations.
// Relations are loaded independently; the error joins every failure.
func (e *Engine) LoadSources(ctx context.Context, names ...string) ([]LoadOutcome, error) {
	targets, err := e.baseRelations(names)
	if err != nil {
		return nil, err
	}
	src, err := e.ensureSourceConnected(ctx)
	if err != nil {
		return nil, err
	}

	var (
		outcomes []LoadOutcome
		errs     []error
	)
	for _, name := range targets {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		start := time.Now()
		rel, _ := e.catalog.Lookup(name)

		t, err := src.Load(ctx, rel)
		if err != nil {
			err = fmt.Errorf("load %s: %w", name, err)
			errs = append(errs, err)
			outcomes = append(outcomes, LoadOutcome{Relation: name, Status: LoadFailed, Error: err.Error(), DurationMS: time.Since(start).Milliseconds()})
			continue
		}

		out, err := e.commitBase(ctx, name, t)
		out.DurationMS = time.Since(start).Milliseconds()
		if err != nil {
			errs = append(errs, err)
		}
		outcomes = append(outcomes, out)
	}
	return outcomes, errors.Join(errs...)
}

// LoadTables commits in-memory tables as base relations, using the same
// validation and change detection as LoadSources.
func (e *Engine) LoadTables(ctx context.Context, tables map[string]*core.Table) ([]LoadOutcome, error) {
	names := make([]string, 0, len(tables))
	for name := range tables {
		names = append(names, name)
	}
	slices.Sort(names)
	if _, err := e.baseRelations(names); err != nil {
		return nil, err
	}

	var (
		outcomes []LoadOutcome
		errs     []error
	)
	for _, name := range names {
		out, err := e.commitBase(ctx, name, tables[name])
		if err != nil {
			errs = append(errs, err)
		}
		outcomes = append(outcomes, out)
	}
	return outcomes, errors.Join(errs...)
}

// baseRelations validates names against the catalog. Empty means all.
func (e *Engine) baseRelations(names []string) ([]string, error) {
	if len(names) == 0 {
		return e.catalog.Base(), nil
	}
	out := make([]string, 0, len(names))
	for _, name := range names {
		rel, err := e.catalog.Lookup(name)
		if err != nil {
			return nil, err
		}
		if rel.IsDerived() {
			return nil, fmt.Errorf("%s is derived and cannot be loaded", name)
		}
		if !slices.Contains(out, name) {
			out = append(out, name)
		}
	}
	return out, nil
}

// commitBase validates t against the silver contract and commits it as a
// new version unless its content equals the current one.
func (e *Engine) commitBase(ctx context.Context, name string, t *core.Table) (LoadOutcome, error) {
	out := LoadOutcome{Relation: name, Rows: t.Len()}
	fail := func(err error) (LoadOutcome, error) {
		err = fmt.Errorf("load %s: %w", name, err)
		out.Status = LoadFailed
		out.Error = err.Error()
		return out, err
	}

	rel, err := e.catalog.Lookup(name)
	if err != nil {
		return fail(err)
	}
	t = t.Clone()
	if err := eval.Conform(t, rel); err != nil {
		return fail(err)
	}

	// Sources return rows in no particular order. Sorting makes the
	// fingerprint a function of content only.
	slices.SortStableFunc(t.Rows, compareRows)

	fp, err := store.Fingerprint(t)
	if err != nil {
		return fail(err)
	}

	current, err := e.store.Read(ctx, name)
	switch {
	case err == nil && current.Fingerprint == fp:
		out.Status = LoadUnchanged
		out.Version = current.Version
		e.logger.Debug("base relation unchanged", slog.String("relation", name), slog.Uint64("version", current.Version))
		return out, nil
	case err != nil && !errors.Is(err, core.ErrNotMaterialized):
		return fail(err)
	}

	var next uint64 = 1
	if current != nil {
		next = current.Version + 1
	}
	res := &core.MaterializedResult{Table: *t, Relation: name, Version: next, Fingerprint: fp}
	if err := e.store.Commit(ctx, res); err != nil {
		return fail(err)
	}

	out.Status = LoadCommitted
	out.Version = res.Version
	e.logger.Info("base relation committed",
		slog.String("relation", name),
		slog.Uint64("version", res.Version),
		slog.Int("rows", t.Len()))
	return out, nil
}

func compareRows(a, b core.Row) int {
	for i := range a {
		if c := core.Compare(a[i], b[i]); c != 0 {
			return c
		}
	}
	return 0
}
