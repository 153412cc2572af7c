// Package dag builds the dependency graph among relations.
// It detects cycles, orders relations topologically with a deterministic
// tie-break, and answers upstream and downstream closure queries.
package dag

import (
	"container/heap"
	"fmt"
	"slices"
	"sort"

	"github.com/leapstack-labs/leapgold/pkg/core"
)

// Node is a relation in the graph.
type Node struct {
	// Name is the relation name.
	Name string
	// Relation is the catalog entry, nil for nodes added without one.
	Relation *core.Relation
}

// Graph is a directed graph where an edge points from an upstream relation
// to the relation that reads it.
type Graph struct {
	nodes   map[string]*Node
	edges   map[string][]string // upstream -> dependents
	parents map[string][]string // dependent -> upstreams
}

// NewGraph creates a new empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodes:   make(map[string]*Node),
		edges:   make(map[string][]string),
		parents: make(map[string][]string),
	}
}

// AddNode adds a relation. Adding an existing name replaces its Relation.
func (g *Graph) AddNode(name string, rel *core.Relation) {
	if n, exists := g.nodes[name]; exists {
		n.Relation = rel
		return
	}
	g.nodes[name] = &Node{Name: name, Relation: rel}
	g.edges[name] = []string{}
	g.parents[name] = []string{}
}

// AddEdge records that dependent reads upstream.
func (g *Graph) AddEdge(upstream, dependent string) error {
	if _, exists := g.nodes[upstream]; !exists {
		return &core.UnknownRelationError{Name: upstream}
	}
	if _, exists := g.nodes[dependent]; !exists {
		return &core.UnknownRelationError{Name: dependent}
	}
	if upstream == dependent {
		return &core.CyclicDependencyError{Members: []string{upstream, upstream}}
	}

	if !slices.Contains(g.edges[upstream], dependent) {
		g.edges[upstream] = append(g.edges[upstream], dependent)
		sort.Strings(g.edges[upstream])
	}
	if !slices.Contains(g.parents[dependent], upstream) {
		g.parents[dependent] = append(g.parents[dependent], upstream)
		sort.Strings(g.parents[dependent])
	}
	return nil
}

// Node returns a node by name.
func (g *Graph) Node(name string) (*Node, bool) {
	n, ok := g.nodes[name]
	return n, ok
}

// Has reports whether name is in the graph.
func (g *Graph) Has(name string) bool {
	_, ok := g.nodes[name]
	return ok
}

// Parents returns the direct upstreams of name, sorted.
func (g *Graph) Parents(name string) []string {
	return g.parents[name]
}

// Children returns the direct dependents of name, sorted.
func (g *Graph) Children(name string) []string {
	return g.edges[name]
}

// Names returns every node name, sorted.
func (g *Graph) Names() []string {
	names := make([]string, 0, len(g.nodes))
	for name := range g.nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int {
	count := 0
	for _, children := range g.edges {
		count += len(children)
	}
	return count
}

// FindCycle returns the members of a cycle, first member repeated at the
// end, or nil if the graph is acyclic. Traversal is in name order so the
// reported cycle is stable.
func (g *Graph) FindCycle() []string {
	visited := make(map[string]bool)
	onStack := make(map[string]bool)
	var stack []string
	var cycle []string

	var dfs func(name string) bool
	dfs = func(name string) bool {
		visited[name] = true
		onStack[name] = true
		stack = append(stack, name)

		for _, child := range g.edges[name] {
			if onStack[child] {
				start := slices.Index(stack, child)
				cycle = append(slices.Clone(stack[start:]), child)
				return true
			}
			if !visited[child] && dfs(child) {
				return true
			}
		}

		onStack[name] = false
		stack = stack[:len(stack)-1]
		return false
	}

	for _, name := range g.Names() {
		if !visited[name] && dfs(name) {
			return cycle
		}
	}
	return nil
}

// TopologicalSort returns every node name with upstreams before dependents.
// Among nodes whose upstreams are all placed, the smallest name goes first.
func (g *Graph) TopologicalSort() ([]string, error) {
	if cycle := g.FindCycle(); cycle != nil {
		return nil, &core.CyclicDependencyError{Members: cycle}
	}

	indegree := make(map[string]int, len(g.nodes))
	ready := &nameHeap{}
	for name := range g.nodes {
		indegree[name] = len(g.parents[name])
		if indegree[name] == 0 {
			heap.Push(ready, name)
		}
	}

	order := make([]string, 0, len(g.nodes))
	for ready.Len() > 0 {
		name := heap.Pop(ready).(string)
		order = append(order, name)
		for _, child := range g.edges[name] {
			indegree[child]--
			if indegree[child] == 0 {
				heap.Push(ready, child)
			}
		}
	}
	return order, nil
}

// ExecutionLevels groups nodes so that every node's upstreams sit in an
// earlier level. Level 0 holds nodes with no upstreams.
func (g *Graph) ExecutionLevels() ([][]string, error) {
	order, err := g.TopologicalSort()
	if err != nil {
		return nil, err
	}

	level := make(map[string]int, len(order))
	maxLevel := -1
	for _, name := range order {
		l := 0
		for _, p := range g.parents[name] {
			if level[p]+1 > l {
				l = level[p] + 1
			}
		}
		level[name] = l
		maxLevel = max(maxLevel, l)
	}

	levels := make([][]string, maxLevel+1)
	for _, name := range order {
		levels[level[name]] = append(levels[level[name]], name)
	}
	for i := range levels {
		sort.Strings(levels[i])
	}
	return levels, nil
}

// Descendants returns every node downstream of the given names, excluding
// the names themselves unless they are downstream of another input.
func (g *Graph) Descendants(names ...string) []string {
	seen := make(map[string]bool)
	var walk func(name string)
	walk = func(name string) {
		for _, child := range g.edges[name] {
			if !seen[child] {
				seen[child] = true
				walk(child)
			}
		}
	}
	for _, name := range names {
		walk(name)
	}
	return sortedKeys(seen)
}

// Ancestors returns every node upstream of the given names.
func (g *Graph) Ancestors(names ...string) []string {
	seen := make(map[string]bool)
	var walk func(name string)
	walk = func(name string) {
		for _, p := range g.parents[name] {
			if !seen[p] {
				seen[p] = true
				walk(p)
			}
		}
	}
	for _, name := range names {
		walk(name)
	}
	return sortedKeys(seen)
}

// Closure returns names plus all of their ancestors, sorted.
func (g *Graph) Closure(names ...string) []string {
	set := make(map[string]bool)
	for _, n := range names {
		if g.Has(n) {
			set[n] = true
		}
	}
	for _, n := range g.Ancestors(names...) {
		set[n] = true
	}
	return sortedKeys(set)
}

// Roots returns nodes with no upstreams.
func (g *Graph) Roots() []string {
	var roots []string
	for _, name := range g.Names() {
		if len(g.parents[name]) == 0 {
			roots = append(roots, name)
		}
	}
	return roots
}

// Leaves returns nodes with no dependents.
func (g *Graph) Leaves() []string {
	var leaves []string
	for _, name := range g.Names() {
		if len(g.edges[name]) == 0 {
			leaves = append(leaves, name)
		}
	}
	return leaves
}

// Subgraph returns a graph restricted to names and the edges among them.
func (g *Graph) Subgraph(names []string) *Graph {
	sub := NewGraph()
	set := make(map[string]bool, len(names))
	for _, name := range names {
		if n, ok := g.nodes[name]; ok {
			set[name] = true
			sub.AddNode(name, n.Relation)
		}
	}
	for name := range set {
		for _, child := range g.edges[name] {
			if set[child] {
				_ = sub.AddEdge(name, child)
			}
		}
	}
	return sub
}

// Edges returns every (upstream, dependent) pair sorted by upstream then
// dependent.
func (g *Graph) Edges() [][2]string {
	var out [][2]string
	for _, name := range g.Names() {
		for _, child := range g.edges[name] {
			out = append(out, [2]string{name, child})
		}
	}
	return out
}

func (g *Graph) String() string {
	return fmt.Sprintf("dag(%d nodes, %d edges)", g.NodeCount(), g.EdgeCount())
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// nameHeap is a min-heap of relation names.
type nameHeap []string

func (h nameHeap) Len() int           { return len(h) }
func (h nameHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h nameHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *nameHeap) Push(x any)        { *h = append(*h, x.(string)) }
func (h *nameHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
