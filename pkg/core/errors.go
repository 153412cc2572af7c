package core

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors.
var (
	// ErrNotMaterialized is returned when reading a relation that has no
	// committed version.
	ErrNotMaterialized = errors.New("relation has no committed version")

	// ErrCatalogSealed is returned when registering after the catalog was sealed.
	ErrCatalogSealed = errors.New("catalog is sealed")

	// ErrNotDerived is returned when a refresh names a base relation.
	ErrNotDerived = errors.New("relation is not derived")

	// ErrRunNotFound is returned for an unknown refresh run id.
	ErrRunNotFound = errors.New("run not found")
)

// UnknownRelationError is returned when a relation name is not registered.
type UnknownRelationError struct {
	Name string
}

func (e *UnknownRelationError) Error() string {
	return fmt.Sprintf("unknown relation: %s", e.Name)
}

// DuplicateRelationError is returned when registering a name twice.
type DuplicateRelationError struct {
	Name string
}

func (e *DuplicateRelationError) Error() string {
	return fmt.Sprintf("relation already registered: %s", e.Name)
}

// CyclicDependencyError names the relations that form a cycle.
type CyclicDependencyError struct {
	Members []string
}

func (e *CyclicDependencyError) Error() string {
	return fmt.Sprintf("cyclic dependency: %s", strings.Join(e.Members, " -> "))
}

// SchemaMismatchError reports a reference to a column that does not exist
// or a produced schema that differs from the declared one.
type SchemaMismatchError struct {
	Relation string
	Column   string
	Reason   string
}

func (e *SchemaMismatchError) Error() string {
	var b strings.Builder
	b.WriteString("schema mismatch")
	if e.Relation != "" {
		b.WriteString(" in ")
		b.WriteString(e.Relation)
	}
	if e.Column != "" {
		fmt.Fprintf(&b, ": column %s", e.Column)
	}
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	return b.String()
}

// RefreshFailure wraps an evaluation fault of one relation.
type RefreshFailure struct {
	Relation string
	Cause    error
}

func (e *RefreshFailure) Error() string {
	return fmt.Sprintf("refresh of %s failed: %v", e.Relation, e.Cause)
}

func (e *RefreshFailure) Unwrap() error {
	return e.Cause
}

// VersionConflictError is returned when a commit does not advance the
// relation's version.
type VersionConflictError struct {
	Relation  string
	Current   uint64
	Attempted uint64
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("version conflict on %s: current %d, attempted %d", e.Relation, e.Current, e.Attempted)
}

// RefreshInProgressError is returned when a refresh touches a relation that
// another refresh is already computing.
type RefreshInProgressError struct {
	Relation string
}

func (e *RefreshInProgressError) Error() string {
	return fmt.Sprintf("refresh already in progress for %s", e.Relation)
}
