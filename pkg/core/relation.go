package core

import "fmt"

// RelationKind distinguishes externally supplied relations from derived ones.
type RelationKind string

// Relation kinds.
const (
	KindBase    RelationKind = "base"
	KindDerived RelationKind = "derived"
)

// Column is a named, typed column of a relation.
type Column struct {
	Name     string     `json:"name" yaml:"name"`
	Type     ScalarType `json:"type" yaml:"type"`
	Nullable bool       `json:"nullable" yaml:"nullable"`
}

// Schema is an ordered list of columns.
type Schema []Column

// Index returns the position of the named column or -1.
func (s Schema) Index(name string) int {
	for i, c := range s {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Lookup returns the named column.
func (s Schema) Lookup(name string) (Column, bool) {
	if i := s.Index(name); i >= 0 {
		return s[i], true
	}
	return Column{}, false
}

// Names returns the column names in order.
func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, c := range s {
		names[i] = c.Name
	}
	return names
}

// Equal reports whether two schemas have the same columns in the same order.
func (s Schema) Equal(other Schema) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Validate checks for empty names, unknown types and duplicates.
func (s Schema) Validate() error {
	seen := make(map[string]bool, len(s))
	for _, c := range s {
		if c.Name == "" {
			return fmt.Errorf("column with empty name")
		}
		if !c.Type.Valid() {
			return fmt.Errorf("column %s: unknown type %q", c.Name, c.Type)
		}
		if seen[c.Name] {
			return fmt.Errorf("duplicate column %s", c.Name)
		}
		seen[c.Name] = true
	}
	return nil
}

// Relation is a named relation in the catalog.
type Relation struct {
	Name        string       `json:"name" yaml:"name"`
	Kind        RelationKind `json:"kind" yaml:"kind"`
	Columns     Schema       `json:"columns" yaml:"columns"`
	Description string       `json:"description,omitempty" yaml:"description,omitempty"`

	// Clustering is a storage-layout hint. It has no effect on results.
	Clustering []string `json:"clustering,omitempty" yaml:"clustering,omitempty"`
}

// IsDerived reports whether the relation is produced by a view definition.
func (r *Relation) IsDerived() bool {
	return r.Kind == KindDerived
}
