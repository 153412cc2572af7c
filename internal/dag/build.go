package dag

import (
	"github.com/leapstack-labs/leapgold/internal/view"
	"github.com/leapstack-labs/leapgold/pkg/core"
)

// Build constructs the graph for relations and the view definitions of the
// derived ones. Every upstream a definition reads must be among relations.
func Build(relations []*core.Relation, defs []*view.Definition) (*Graph, error) {
	g := NewGraph()
	for _, r := range relations {
		g.AddNode(r.Name, r)
	}
	for _, d := range defs {
		if !g.Has(d.Relation) {
			return nil, &core.UnknownRelationError{Name: d.Relation}
		}
		for _, up := range d.Upstreams() {
			if err := g.AddEdge(up, d.Relation); err != nil {
				return nil, err
			}
		}
	}
	if cycle := g.FindCycle(); cycle != nil {
		return nil, &core.CyclicDependencyError{Members: cycle}
	}
	return g, nil
}
