// Package duckdb provides a DuckDB silver source for leapgold.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/leapstack-labs/leapgold/pkg/adapter"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver
)

// Adapter implements adapter.Source for DuckDB.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New creates a new DuckDB adapter instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{
		BaseSQLAdapter: adapter.BaseSQLAdapter{Logger: logger, DefaultSchema: "main"},
	}
}

// Connect opens the DuckDB database at cfg.Path.
// Use ":memory:" or an empty path for an in-memory database.
// Each entry of cfg.Options is applied as a session setting, e.g.
// threads or memory_limit.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}

	a.Logger.Debug("connecting to duckdb", slog.String("path", path))

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return fmt.Errorf("failed to open duckdb connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping duckdb: %w", err)
	}

	if err := applySettings(ctx, db, cfg.Options); err != nil {
		_ = db.Close()
		return err
	}

	a.DB = db
	a.Cfg = cfg
	return nil
}

// Tables lists the tables of the configured schema.
func (a *Adapter) Tables(ctx context.Context) ([]string, error) {
	return a.TablesCommon(ctx, "?")
}

// Exec runs a statement against the database. Used to seed fixtures.
func (a *Adapter) Exec(ctx context.Context, query string, args ...any) error {
	if a.DB == nil {
		return fmt.Errorf("database connection not established")
	}
	_, err := a.DB.ExecContext(ctx, query, args...)
	return err
}

func applySettings(ctx context.Context, db *sql.DB, settings map[string]string) error {
	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if !validSetting(k) {
			return fmt.Errorf("invalid duckdb setting name %q", k)
		}
		//nolint:gosec // setting names are validated above
		stmt := fmt.Sprintf("SET %s = '%s'", k, strings.ReplaceAll(settings[k], "'", "''"))
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply duckdb setting %s: %w", k, err)
		}
	}
	return nil
}

func validSetting(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if r != '_' && (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

// Ensure Adapter implements adapter.Source interface
var _ adapter.Source = (*Adapter)(nil)
