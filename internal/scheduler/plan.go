package scheduler

import (
	"context"
	"fmt"
	"slices"

	"github.com/leapstack-labs/leapgold/pkg/core"
)

// Reason explains why a relation is in a plan.
type Reason string

// Plan reasons.
const (
	ReasonRequested       Reason = "requested"
	ReasonNeverCommitted  Reason = "never committed"
	ReasonUpstreamChanged Reason = "upstream changed"
	ReasonCurrent         Reason = "current"
)

// Step is one derived relation of a plan.
type Step struct {
	Relation  string   `json:"relation"`
	Upstreams []string `json:"upstreams"`
	Requested bool     `json:"requested"`
	Reason    Reason   `json:"reason"`
	// Changed lists upstreams whose current version differs from the one
	// this relation was computed from.
	Changed []string `json:"changed,omitempty"`
}

// Plan is the expanded scope of a refresh in execution order.
type Plan struct {
	Scope []string `json:"scope"`
	Steps []Step   `json:"steps"`
}

// Relations returns the relation names of the plan in order.
func (p *Plan) Relations() []string {
	out := make([]string, len(p.Steps))
	for i, s := range p.Steps {
		out[i] = s.Relation
	}
	return out
}

// Plan expands scope to its derived upstream closure and orders it
// topologically. An empty scope requests every derived relation.
func (s *Scheduler) Plan(ctx context.Context, scope []string) (*Plan, error) {
	requested, err := s.resolveScope(scope)
	if err != nil {
		return nil, err
	}
	return s.plan(ctx, requested, requested)
}

// PlanStale covers every derived relation without requesting any, so only
// the stale ones are recomputed.
func (s *Scheduler) PlanStale(ctx context.Context) (*Plan, error) {
	return s.plan(ctx, nil, s.catalog.Derived())
}

// plan orders the derived closure of roots. Only requested relations are
// recomputed regardless of staleness.
func (s *Scheduler) plan(ctx context.Context, requested, roots []string) (*Plan, error) {
	closure := make(map[string]bool)
	for _, name := range s.graph.Closure(roots...) {
		if rel, _ := s.catalog.Lookup(name); rel != nil && rel.IsDerived() {
			closure[name] = true
		}
	}

	order, err := s.graph.TopologicalSort()
	if err != nil {
		return nil, err
	}

	infos, err := s.versions(ctx)
	if err != nil {
		return nil, err
	}

	plan := &Plan{Scope: requested}
	for _, name := range order {
		if !closure[name] {
			continue
		}
		step := Step{
			Relation:  name,
			Upstreams: s.graph.Parents(name),
			Requested: slices.Contains(requested, name),
		}
		reason, changed := s.staleness(name, infos)
		step.Changed = changed
		step.Reason = reason
		if step.Requested && reason == ReasonCurrent {
			step.Reason = ReasonRequested
		}
		plan.Steps = append(plan.Steps, step)
	}
	return plan, nil
}

func (s *Scheduler) resolveScope(scope []string) ([]string, error) {
	if len(scope) == 0 {
		return s.catalog.Derived(), nil
	}
	seen := make(map[string]bool)
	var out []string
	for _, name := range scope {
		rel, err := s.catalog.Lookup(name)
		if err != nil {
			return nil, err
		}
		if !rel.IsDerived() {
			return nil, fmt.Errorf("%s: %w", name, core.ErrNotDerived)
		}
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	slices.Sort(out)
	return out, nil
}

// versions returns the committed metadata of every relation by name.
func (s *Scheduler) versions(ctx context.Context) (map[string]core.VersionInfo, error) {
	list, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]core.VersionInfo, len(list))
	for _, info := range list {
		out[info.Relation] = info
	}
	return out, nil
}

// staleness compares the upstream versions a relation was computed from
// with the upstreams' current versions.
func (s *Scheduler) staleness(name string, infos map[string]core.VersionInfo) (Reason, []string) {
	cur, ok := infos[name]
	if !ok {
		return ReasonNeverCommitted, nil
	}

	var changed []string
	for _, up := range s.graph.Parents(name) {
		if infos[up].Version != cur.Inputs[up] {
			changed = append(changed, up)
		}
	}
	if len(changed) > 0 {
		return ReasonUpstreamChanged, changed
	}
	return ReasonCurrent, nil
}
