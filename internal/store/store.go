// Package store provides the materialization store backends: in memory,
// SQLite and Badger. Every backend installs a relation's new result in one
// atomic step and rejects commits that do not advance its version.
package store

import (
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/leapgold/pkg/core"
)

// Backend names.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
)

// Config selects and configures a backend.
type Config struct {
	Backend string
	// Path is the SQLite file or Badger directory. Empty or ":memory:"
	// keeps the data in memory.
	Path string
	// Namespace scopes persisted results so several catalogs can share a
	// database.
	Namespace string
	Logger    *slog.Logger
}

// Open opens the configured backend.
func Open(cfg Config) (core.ResultStore, error) {
	switch cfg.Backend {
	case BackendMemory, "":
		return NewMemory(), nil
	case BackendSQLite:
		return OpenSQLite(cfg.Path, cfg.Namespace, cfg.Logger)
	case BackendBadger:
		return OpenBadger(BadgerConfig{
			Path:      cfg.Path,
			InMemory:  cfg.Path == "" || cfg.Path == ":memory:",
			Namespace: cfg.Namespace,
			Logger:    cfg.Logger,
		})
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
}

func notMaterialized(relation string) error {
	return fmt.Errorf("%s: %w", relation, core.ErrNotMaterialized)
}
