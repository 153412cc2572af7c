package engine

import (
	"context"

	"github.com/leapstack-labs/leapgold/internal/scheduler"
	"github.com/leapstack-labs/leapgold/pkg/core"
)

// RelationStatus describes a catalog relation and its committed state.
type RelationStatus struct {
	*core.Relation
	Qualified string   `json:"qualified"`
	Upstreams []string `json:"upstreams,omitempty"`
	// Current is nil when the relation was never committed.
	Current *core.VersionInfo `json:"current,omitempty"`
	// Stale is set for derived relations a refresh would recompute.
	Stale  bool             `json:"stale"`
	Reason scheduler.Reason `json:"reason,omitempty"`
}

// Relations returns every catalog relation with its committed version and,
// for derived relations, whether it is stale.
func (e *Engine) Relations(ctx context.Context) ([]RelationStatus, error) {
	infos, err := e.store.List(ctx)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]core.VersionInfo, len(infos))
	for _, info := range infos {
		byName[info.Relation] = info
	}

	plan, err := e.scheduler.PlanStale(ctx)
	if err != nil {
		return nil, err
	}
	reasons := make(map[string]scheduler.Reason, len(plan.Steps))
	for _, step := range plan.Steps {
		reasons[step.Relation] = step.Reason
	}

	g := e.catalog.Graph()
	var out []RelationStatus
	for _, rel := range e.catalog.Relations() {
		st := RelationStatus{
			Relation:  rel,
			Qualified: e.catalog.Qualified(rel.Name),
			Upstreams: g.Parents(rel.Name),
		}
		if info, ok := byName[rel.Name]; ok {
			st.Current = &info
		}
		if reason, ok := reasons[rel.Name]; ok {
			st.Reason = reason
			st.Stale = reason == scheduler.ReasonNeverCommitted || reason == scheduler.ReasonUpstreamChanged
		}
		out = append(out, st)
	}
	return out, nil
}

// Relation returns the status of one relation.
func (e *Engine) Relation(ctx context.Context, name string) (*RelationStatus, error) {
	if _, err := e.catalog.Lookup(name); err != nil {
		return nil, err
	}
	all, err := e.Relations(ctx)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].Name == name {
			return &all[i], nil
		}
	}
	return nil, &core.UnknownRelationError{Name: name}
}
