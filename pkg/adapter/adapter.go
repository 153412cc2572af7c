// Package adapter provides the silver source contract and shared database/sql
// support for leapgold's source adapters.
//
// A source supplies the base relations of the catalog. Concrete
// implementations live in pkg/adapters/ subdirectories and register
// themselves by type name.
package adapter

import (
	"context"

	"github.com/leapstack-labs/leapgold/pkg/core"
)

// Config is an alias for core.AdapterConfig.
type Config = core.AdapterConfig

// Source defines the interface every silver source adapter implements.
type Source interface {
	// Connect opens the source described by cfg.
	Connect(ctx context.Context, cfg Config) error

	// Close releases the source.
	Close() error

	// Load reads the relation named rel.Name. The returned table has exactly
	// rel's columns in declared order, with values coerced to the declared
	// types. A source column that is missing is an error; extra source
	// columns are ignored.
	Load(ctx context.Context, rel *core.Relation) (*core.Table, error)

	// Tables lists the relations the source can supply, sorted.
	Tables(ctx context.Context) ([]string, error)
}
