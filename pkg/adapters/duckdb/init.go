package duckdb

// Import this package with a blank identifier to register the adapter:
//
//	import _ "github.com/leapstack-labs/leapgold/pkg/adapters/duckdb"

import (
	"log/slog"

	"github.com/leapstack-labs/leapgold/pkg/adapter"
)

func init() {
	adapter.Register("duckdb", func(l *slog.Logger) adapter.Source { return New(l) })
}
