// Package catalog is the registry of named relations and the view
// definitions of derived ones. It is populated at startup, sealed, and only
// read afterwards.
package catalog

import (
	"fmt"
	"sort"
	"sync"

	"github.com/leapstack-labs/leapgold/internal/dag"
	"github.com/leapstack-labs/leapgold/internal/view"
	"github.com/leapstack-labs/leapgold/pkg/core"
)

// DefaultNamespace is used when none is configured.
const DefaultNamespace = "gold"

// Catalog holds relations and view definitions for one namespace.
type Catalog struct {
	mu        sync.RWMutex
	namespace string
	relations map[string]*core.Relation
	views     map[string]*view.Definition
	graph     *dag.Graph
}

// New creates an empty catalog for namespace.
func New(namespace string) *Catalog {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &Catalog{
		namespace: namespace,
		relations: make(map[string]*core.Relation),
		views:     make(map[string]*view.Definition),
	}
}

// Namespace returns the catalog namespace.
func (c *Catalog) Namespace() string {
	return c.namespace
}

// Qualified returns name prefixed with the namespace.
func (c *Catalog) Qualified(name string) string {
	return c.namespace + "." + name
}

// Register adds a base relation.
func (c *Catalog) Register(rel *core.Relation) error {
	if rel.Kind == "" {
		rel.Kind = core.KindBase
	}
	if rel.Kind != core.KindBase {
		return fmt.Errorf("relation %s: use RegisterView for derived relations", rel.Name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.add(rel)
}

// RegisterView adds a derived relation with its definition. Upstreams may
// be registered later, but a definition that closes a cycle with already
// registered views is rejected here.
func (c *Catalog) RegisterView(rel *core.Relation, def *view.Definition) error {
	rel.Kind = core.KindDerived
	if def.Relation != rel.Name {
		return fmt.Errorf("view definition for %q registered as %q", def.Relation, rel.Name)
	}
	if err := def.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.relations[rel.Name]; exists {
		return &core.DuplicateRelationError{Name: rel.Name}
	}
	if cycle := c.cycleWith(def); cycle != nil {
		return &core.CyclicDependencyError{Members: cycle}
	}
	if err := c.add(rel); err != nil {
		return err
	}
	c.views[rel.Name] = def
	return nil
}

func (c *Catalog) add(rel *core.Relation) error {
	if c.graph != nil {
		return core.ErrCatalogSealed
	}
	if rel.Name == "" {
		return fmt.Errorf("relation with empty name")
	}
	if _, exists := c.relations[rel.Name]; exists {
		return &core.DuplicateRelationError{Name: rel.Name}
	}
	if err := rel.Columns.Validate(); err != nil {
		return fmt.Errorf("relation %s: %w", rel.Name, err)
	}
	c.relations[rel.Name] = rel
	return nil
}

// cycleWith checks the registered views plus def for a cycle. Upstreams not
// yet registered become placeholder nodes.
func (c *Catalog) cycleWith(def *view.Definition) []string {
	g := dag.NewGraph()
	defs := make([]*view.Definition, 0, len(c.views)+1)
	for _, d := range c.views {
		defs = append(defs, d)
	}
	defs = append(defs, def)

	for _, d := range defs {
		g.AddNode(d.Relation, nil)
		for _, up := range d.Upstreams() {
			g.AddNode(up, nil)
		}
	}
	for _, d := range defs {
		for _, up := range d.Upstreams() {
			if err := g.AddEdge(up, d.Relation); err != nil {
				return []string{up, d.Relation}
			}
		}
	}
	return g.FindCycle()
}

// Seal builds the dependency graph. After Seal the catalog rejects
// registration. Every upstream must be registered.
func (c *Catalog) Seal() (*dag.Graph, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.graph != nil {
		return c.graph, nil
	}

	rels := make([]*core.Relation, 0, len(c.relations))
	for _, name := range c.sortedNames() {
		rels = append(rels, c.relations[name])
	}
	defs := make([]*view.Definition, 0, len(c.views))
	for _, name := range c.sortedNames() {
		if d, ok := c.views[name]; ok {
			defs = append(defs, d)
		}
	}

	g, err := dag.Build(rels, defs)
	if err != nil {
		return nil, err
	}
	c.graph = g
	return g, nil
}

// Graph returns the sealed graph, or nil before Seal.
func (c *Catalog) Graph() *dag.Graph {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.graph
}

// Lookup returns a relation by name.
func (c *Catalog) Lookup(name string) (*core.Relation, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rel, ok := c.relations[name]
	if !ok {
		return nil, &core.UnknownRelationError{Name: name}
	}
	return rel, nil
}

// View returns the definition of a derived relation.
func (c *Catalog) View(name string) (*view.Definition, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if _, ok := c.relations[name]; !ok {
		return nil, &core.UnknownRelationError{Name: name}
	}
	def, ok := c.views[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, core.ErrNotDerived)
	}
	return def, nil
}

// Relations returns every relation sorted by name.
func (c *Catalog) Relations() []*core.Relation {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*core.Relation, 0, len(c.relations))
	for _, name := range c.sortedNames() {
		out = append(out, c.relations[name])
	}
	return out
}

// Base returns the names of base relations, sorted.
func (c *Catalog) Base() []string {
	return c.byKind(core.KindBase)
}

// Derived returns the names of derived relations, sorted.
func (c *Catalog) Derived() []string {
	return c.byKind(core.KindDerived)
}

func (c *Catalog) byKind(kind core.RelationKind) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []string
	for _, name := range c.sortedNames() {
		if c.relations[name].Kind == kind {
			out = append(out, name)
		}
	}
	return out
}

func (c *Catalog) sortedNames() []string {
	names := make([]string, 0, len(c.relations))
	for name := range c.relations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
