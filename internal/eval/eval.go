// Package eval executes view definitions against materialized inputs.
//
// Evaluation is batch and in memory. Grouping aggregates run as map-reduce
// over contiguous row partitions; window operators run after grouping over
// fully gathered, stably sorted partitions.
package eval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/leapgold/internal/expr"
	"github.com/leapstack-labs/leapgold/internal/view"
	"github.com/leapstack-labs/leapgold/pkg/core"
)

// DefaultPartitions is the map-reduce fan-out when none is configured.
const DefaultPartitions = 4

// Config holds evaluator options.
type Config struct {
	// Partitions is the number of partial aggregation workers.
	Partitions int
	// Logger for debug output. nil disables logging.
	Logger *slog.Logger
}

// Evaluator runs view definitions.
type Evaluator struct {
	partitions int
	logger     *slog.Logger
}

// New creates an evaluator.
func New(cfg Config) *Evaluator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	p := cfg.Partitions
	if p < 1 {
		p = DefaultPartitions
	}
	return &Evaluator{partitions: p, logger: logger}
}

// Partitions returns the configured fan-out.
func (e *Evaluator) Partitions() int {
	return e.partitions
}

// Evaluate computes def over inputs, keyed by relation name. Inputs are
// never modified.
func (e *Evaluator) Evaluate(ctx context.Context, def *view.Definition, inputs map[string]*core.Table) (*core.Table, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}

	t, err := e.run(ctx, def, inputs)
	if err != nil {
		return nil, attach(def.Relation, err)
	}
	e.logger.Debug("view evaluated",
		slog.String("relation", def.Relation),
		slog.Int("rows", t.Len()))
	return t, nil
}

func (e *Evaluator) run(ctx context.Context, def *view.Definition, inputs map[string]*core.Table) (*core.Table, error) {
	src, err := input(inputs, def.Sources[0])
	if err != nil {
		return nil, err
	}
	t := &core.Table{Columns: src.Columns, Rows: src.Rows}

	for _, j := range def.Joins {
		right, err := input(inputs, j.Source)
		if err != nil {
			return nil, err
		}
		if t, err = hashJoin(t, right, j); err != nil {
			return nil, err
		}
	}

	if t, err = project(t, def.Derive); err != nil {
		return nil, err
	}
	if t, err = filter(t, def.Filters); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if def.Grouped() {
		if t, err = e.aggregate(ctx, t, def.GroupBy, def.Aggregates); err != nil {
			return nil, err
		}
	}

	if t, err = project(t, def.Compute); err != nil {
		return nil, err
	}
	for _, w := range def.Windows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if t, err = applyWindow(t, w); err != nil {
			return nil, err
		}
	}
	if t, err = project(t, def.Finalize); err != nil {
		return nil, err
	}

	if def.Pivot != nil {
		if t, err = pivot(t, def.Pivot); err != nil {
			return nil, err
		}
	}
	if len(def.Select) > 0 {
		if t, err = selectColumns(t, def.Select); err != nil {
			return nil, err
		}
	}
	if len(def.OrderBy) > 0 {
		if err := orderBy(t, def.OrderBy); err != nil {
			return nil, err
		}
	}
	if def.Limit > 0 && len(t.Rows) > def.Limit {
		t.Rows = t.Rows[:def.Limit]
	}
	return t, nil
}

func input(inputs map[string]*core.Table, name string) (*core.Table, error) {
	t, ok := inputs[name]
	if !ok || t == nil {
		return nil, fmt.Errorf("input %s: %w", name, core.ErrNotMaterialized)
	}
	return t, nil
}

// attach fills in the relation name on schema errors raised while binding.
func attach(relation string, err error) error {
	var sm *core.SchemaMismatchError
	if errors.As(err, &sm) && sm.Relation == "" {
		sm.Relation = relation
	}
	return err
}

// extend returns a copy of row with room for n more values.
func extend(row core.Row, n int) core.Row {
	out := make(core.Row, len(row), len(row)+n)
	copy(out, row)
	return out
}

func withColumns(schema core.Schema, cols ...core.Column) (core.Schema, error) {
	out := make(core.Schema, len(schema), len(schema)+len(cols))
	copy(out, schema)
	for _, c := range cols {
		if out.Index(c.Name) >= 0 {
			return nil, &core.SchemaMismatchError{Column: c.Name, Reason: "duplicate column"}
		}
		out = append(out, c)
	}
	return out, nil
}

func project(t *core.Table, projections []view.Projection) (*core.Table, error) {
	for _, p := range projections {
		b, err := p.Expr.Bind(t.Columns)
		if err != nil {
			return nil, err
		}
		schema, err := withColumns(t.Columns, core.Column{Name: p.Name, Type: b.Type, Nullable: true})
		if err != nil {
			return nil, err
		}
		rows := make([]core.Row, len(t.Rows))
		for i, row := range t.Rows {
			r := extend(row, 1)
			rows[i] = append(r, b.Eval(row))
		}
		t = &core.Table{Columns: schema, Rows: rows}
	}
	return t, nil
}

func filter(t *core.Table, filters []expr.Expr) (*core.Table, error) {
	if len(filters) == 0 {
		return t, nil
	}
	bound := make([]expr.Bound, len(filters))
	for i, f := range filters {
		b, err := f.Bind(t.Columns)
		if err != nil {
			return nil, err
		}
		if b.Type != core.TypeBool {
			return nil, &core.SchemaMismatchError{Reason: fmt.Sprintf("filter %s is not boolean", f)}
		}
		bound[i] = b
	}

	out := &core.Table{Columns: t.Columns}
rows:
	for _, row := range t.Rows {
		for _, b := range bound {
			if b.Eval(row) != true {
				continue rows
			}
		}
		out.Rows = append(out.Rows, row)
	}
	return out, nil
}

func selectColumns(t *core.Table, names []string) (*core.Table, error) {
	idx, err := indexes(t.Columns, names)
	if err != nil {
		return nil, err
	}
	schema := make(core.Schema, len(idx))
	for i, j := range idx {
		schema[i] = t.Columns[j]
	}
	rows := make([]core.Row, len(t.Rows))
	for r, row := range t.Rows {
		out := make(core.Row, len(idx))
		for i, j := range idx {
			out[i] = row[j]
		}
		rows[r] = out
	}
	return &core.Table{Columns: schema, Rows: rows}, nil
}

func indexes(schema core.Schema, names []string) ([]int, error) {
	idx := make([]int, len(names))
	for i, n := range names {
		j := schema.Index(n)
		if j < 0 {
			return nil, &core.SchemaMismatchError{Column: n, Reason: "unknown column"}
		}
		idx[i] = j
	}
	return idx, nil
}
