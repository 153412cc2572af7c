package dag

import (
	"errors"
	"reflect"
	"testing"

	"github.com/leapstack-labs/leapgold/internal/expr"
	"github.com/leapstack-labs/leapgold/internal/view"
	"github.com/leapstack-labs/leapgold/pkg/core"
)

func goldGraph(t *testing.T) *Graph {
	t.Helper()
	g := NewGraph()
	for _, name := range []string{
		"fact_orders", "fact_lineitem", "dim_date",
		"gold_daily_sales", "gold_monthly_sales", "gold_customer_rfm", "gold_executive_summary",
	} {
		g.AddNode(name, nil)
	}
	edges := [][2]string{
		{"fact_lineitem", "gold_daily_sales"},
		{"fact_orders", "gold_daily_sales"},
		{"dim_date", "gold_daily_sales"},
		{"gold_daily_sales", "gold_monthly_sales"},
		{"fact_orders", "gold_customer_rfm"},
		{"fact_orders", "gold_executive_summary"},
	}
	for _, e := range edges {
		if err := g.AddEdge(e[0], e[1]); err != nil {
			t.Fatalf("failed to add edge %v: %v", e, err)
		}
	}
	return g
}

func TestGraph_AddNodeAndEdge(t *testing.T) {
	g := goldGraph(t)

	if g.NodeCount() != 7 {
		t.Errorf("expected 7 nodes, got %d", g.NodeCount())
	}
	if g.EdgeCount() != 6 {
		t.Errorf("expected 6 edges, got %d", g.EdgeCount())
	}

	// duplicate edges are ignored
	_ = g.AddEdge("fact_orders", "gold_customer_rfm")
	if g.EdgeCount() != 6 {
		t.Errorf("expected duplicate edge to be ignored, got %d edges", g.EdgeCount())
	}
}

func TestGraph_AddEdge_Errors(t *testing.T) {
	g := NewGraph()
	g.AddNode("a", nil)

	var unknown *core.UnknownRelationError
	if err := g.AddEdge("a", "missing"); !errors.As(err, &unknown) {
		t.Errorf("expected UnknownRelationError, got %v", err)
	}

	var cyc *core.CyclicDependencyError
	if err := g.AddEdge("a", "a"); !errors.As(err, &cyc) {
		t.Errorf("expected CyclicDependencyError for self-loop, got %v", err)
	}
}

func TestGraph_TopologicalSort_NameTieBreak(t *testing.T) {
	g := goldGraph(t)

	order, err := g.TopologicalSort()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{
		"dim_date", "fact_lineitem", "fact_orders",
		"gold_customer_rfm", "gold_daily_sales", "gold_executive_summary", "gold_monthly_sales",
	}
	if !reflect.DeepEqual(order, want) {
		t.Errorf("order = %v, want %v", order, want)
	}
}

func TestGraph_TopologicalSort_Stable(t *testing.T) {
	first, _ := goldGraph(t).TopologicalSort()
	for i := 0; i < 20; i++ {
		again, _ := goldGraph(t).TopologicalSort()
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("order changed between runs: %v vs %v", first, again)
		}
	}
}

func TestGraph_FindCycle(t *testing.T) {
	g := NewGraph()
	for _, n := range []string{"a", "b", "c", "d"} {
		g.AddNode(n, nil)
	}
	_ = g.AddEdge("a", "b")
	_ = g.AddEdge("b", "c")
	_ = g.AddEdge("d", "a")

	if cycle := g.FindCycle(); cycle != nil {
		t.Fatalf("unexpected cycle %v", cycle)
	}

	_ = g.AddEdge("c", "a")
	cycle := g.FindCycle()
	want := []string{"a", "b", "c", "a"}
	if !reflect.DeepEqual(cycle, want) {
		t.Errorf("cycle = %v, want %v", cycle, want)
	}

	_, err := g.TopologicalSort()
	var cyc *core.CyclicDependencyError
	if !errors.As(err, &cyc) {
		t.Fatalf("expected CyclicDependencyError, got %v", err)
	}
	if !reflect.DeepEqual(cyc.Members, want) {
		t.Errorf("members = %v, want %v", cyc.Members, want)
	}
}

func TestGraph_ExecutionLevels(t *testing.T) {
	levels, err := goldGraph(t).ExecutionLevels()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := [][]string{
		{"dim_date", "fact_lineitem", "fact_orders"},
		{"gold_customer_rfm", "gold_daily_sales", "gold_executive_summary"},
		{"gold_monthly_sales"},
	}
	if !reflect.DeepEqual(levels, want) {
		t.Errorf("levels = %v, want %v", levels, want)
	}
}

func TestGraph_Closures(t *testing.T) {
	g := goldGraph(t)

	if got := g.Ancestors("gold_monthly_sales"); !reflect.DeepEqual(got, []string{"dim_date", "fact_lineitem", "fact_orders", "gold_daily_sales"}) {
		t.Errorf("Ancestors = %v", got)
	}
	if got := g.Descendants("fact_lineitem"); !reflect.DeepEqual(got, []string{"gold_daily_sales", "gold_monthly_sales"}) {
		t.Errorf("Descendants = %v", got)
	}
	if got := g.Closure("gold_customer_rfm"); !reflect.DeepEqual(got, []string{"fact_orders", "gold_customer_rfm"}) {
		t.Errorf("Closure = %v", got)
	}
	if got := g.Roots(); len(got) != 3 {
		t.Errorf("Roots = %v", got)
	}
	if got := g.Leaves(); !reflect.DeepEqual(got, []string{"gold_customer_rfm", "gold_executive_summary", "gold_monthly_sales"}) {
		t.Errorf("Leaves = %v", got)
	}
}

func TestGraph_Subgraph(t *testing.T) {
	sub := goldGraph(t).Subgraph([]string{"gold_daily_sales", "gold_monthly_sales", "fact_orders"})
	if sub.NodeCount() != 3 {
		t.Errorf("expected 3 nodes, got %d", sub.NodeCount())
	}
	if sub.EdgeCount() != 2 {
		t.Errorf("expected 2 edges, got %d", sub.EdgeCount())
	}
}

func TestBuild(t *testing.T) {
	rels := []*core.Relation{
		{Name: "fact_orders", Kind: core.KindBase},
		{Name: "daily", Kind: core.KindDerived},
		{Name: "monthly", Kind: core.KindDerived},
	}
	defs := []*view.Definition{
		{Relation: "daily", Sources: []string{"fact_orders"}},
		{Relation: "monthly", Sources: []string{"daily"}, Filters: []expr.Expr{expr.Lit(true)}},
	}

	g, err := Build(rels, defs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := g.Parents("monthly"); !reflect.DeepEqual(got, []string{"daily"}) {
		t.Errorf("Parents(monthly) = %v", got)
	}
	if n, ok := g.Node("daily"); !ok || n.Relation == nil || !n.Relation.IsDerived() {
		t.Errorf("expected derived relation attached to node")
	}

	defs = append(defs, &view.Definition{Relation: "orphan", Sources: []string{"nowhere"}})
	rels = append(rels, &core.Relation{Name: "orphan", Kind: core.KindDerived})
	if _, err := Build(rels, defs); err == nil {
		t.Error("expected error for unknown upstream")
	}
}
