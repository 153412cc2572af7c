// Package analytics holds the named, parameterized read-only queries over
// the gold layer. Queries are view definitions evaluated on demand against
// the current committed relations and are never materialized.
package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/leapstack-labs/leapgold/internal/eval"
	"github.com/leapstack-labs/leapgold/internal/view"
	"github.com/leapstack-labs/leapgold/pkg/core"
)

// Query is a named analytical query.
type Query struct {
	Name        string  `json:"name" yaml:"name"`
	Description string  `json:"description" yaml:"description"`
	Params      []Param `json:"params,omitempty" yaml:"params,omitempty"`

	build func(Args) *view.Definition
}

// Definition binds raw arguments and returns the query's view definition.
func (q *Query) Definition(raw map[string]string) (*view.Definition, error) {
	args, err := bind(q.Name, q.Params, raw)
	if err != nil {
		return nil, err
	}
	def := q.build(args)
	def.Relation = "query_" + q.Name
	return def, nil
}

// Relations returns the relations the query reads.
func (q *Query) Relations() []string {
	return q.build(defaults(q.Params)).Upstreams()
}

// defaults binds declared defaults and placeholder values for required
// parameters, enough to inspect a definition's shape.
func defaults(params []Param) Args {
	args := Args{}
	for _, p := range params {
		switch {
		case p.Default != "":
			if v, err := p.parse(p.Default); err == nil {
				args[p.Name] = v
			}
		case p.Required && p.Kind == KindInt:
			args[p.Name] = int64(0)
		case p.Required:
			args[p.Name] = ""
		}
	}
	return args
}

// Registry holds the available queries by name.
type Registry struct {
	queries map[string]*Query
}

// NewRegistry returns the registry of built-in queries.
func NewRegistry() *Registry {
	r := &Registry{queries: make(map[string]*Query)}
	for _, q := range queries() {
		r.queries[q.Name] = q
	}
	return r
}

// Lookup returns the query named name.
func (r *Registry) Lookup(name string) (*Query, error) {
	q, ok := r.queries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownQuery, name)
	}
	return q, nil
}

// List returns every query sorted by name.
func (r *Registry) List() []*Query {
	out := make([]*Query, 0, len(r.queries))
	for _, q := range r.queries {
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Result is the output of one query execution.
type Result struct {
	Query string `json:"query"`
	*core.Table
	// Versions are the committed versions of the relations read.
	Versions map[string]uint64 `json:"versions"`
}

// Runner executes queries against a result store.
type Runner struct {
	registry  *Registry
	store     core.ResultStore
	evaluator *eval.Evaluator
	logger    *slog.Logger
}

// NewRunner creates a runner. A nil evaluator gets the defaults.
func NewRunner(registry *Registry, store core.ResultStore, evaluator *eval.Evaluator, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if evaluator == nil {
		evaluator = eval.New(eval.Config{Logger: logger})
	}
	return &Runner{registry: registry, store: store, evaluator: evaluator, logger: logger}
}

// Registry returns the runner's query registry.
func (r *Runner) Registry() *Registry {
	return r.registry
}

// Run evaluates query name with raw arguments.
func (r *Runner) Run(ctx context.Context, name string, raw map[string]string) (*Result, error) {
	q, err := r.registry.Lookup(name)
	if err != nil {
		return nil, err
	}
	def, err := q.Definition(raw)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	inputs := make(map[string]*core.Table)
	versions := make(map[string]uint64)
	for _, up := range def.Upstreams() {
		res, err := r.store.Read(ctx, up)
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", name, err)
		}
		inputs[up] = &res.Table
		versions[up] = res.Version
	}

	t, err := r.evaluator.Evaluate(ctx, def, inputs)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", name, err)
	}
	r.logger.Debug("query evaluated",
		slog.String("query", name),
		slog.Int("rows", t.Len()),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()))
	return &Result{Query: name, Table: t, Versions: versions}, nil
}
