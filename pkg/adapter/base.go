package adapter

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/leapgold/pkg/core"
)

// BaseSQLAdapter provides common database/sql functionality for sources.
// Embed it in concrete adapters to get Close, Load and Tables.
type BaseSQLAdapter struct {
	DB     *sql.DB
	Cfg    core.AdapterConfig
	Logger *slog.Logger

	// DefaultSchema qualifies table names when Cfg.Schema is empty.
	DefaultSchema string
}

// Close closes the database connection.
func (b *BaseSQLAdapter) Close() error {
	if b.DB != nil {
		if b.Logger != nil {
			b.Logger.Debug("closing database connection")
		}
		return b.DB.Close()
	}
	return nil
}

// IsConnected returns true if the database connection is established.
func (b *BaseSQLAdapter) IsConnected() bool {
	return b.DB != nil
}

// Schema returns the schema relations are read from.
func (b *BaseSQLAdapter) Schema() string {
	if b.Cfg.Schema != "" {
		return b.Cfg.Schema
	}
	return b.DefaultSchema
}

// QualifiedName returns the quoted schema.table reference for table.
func (b *BaseSQLAdapter) QualifiedName(table string) string {
	if s := b.Schema(); s != "" {
		return QuoteIdent(s) + "." + QuoteIdent(table)
	}
	return QuoteIdent(table)
}

// QuoteIdent double-quotes an identifier.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// SelectSQL builds the statement that reads rel's declared columns.
func (b *BaseSQLAdapter) SelectSQL(rel *core.Relation) string {
	cols := make([]string, len(rel.Columns))
	for i, c := range rel.Columns {
		cols[i] = QuoteIdent(c.Name)
	}
	return fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), b.QualifiedName(rel.Name))
}

// Load implements Source.Load for database/sql sources.
func (b *BaseSQLAdapter) Load(ctx context.Context, rel *core.Relation) (*core.Table, error) {
	if b.DB == nil {
		return nil, fmt.Errorf("database connection not established")
	}

	rows, err := b.DB.QueryContext(ctx, b.SelectSQL(rel))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", rel.Name, err)
	}
	defer func() { _ = rows.Close() }()

	t, err := ScanTable(rows, rel)
	if err != nil {
		return nil, err
	}
	if b.Logger != nil {
		b.Logger.Debug("relation loaded", slog.String("relation", rel.Name), slog.Int("rows", t.Len()))
	}
	return t, nil
}

// ScanTable reads every row of rows into a table with rel's columns,
// coercing driver values to the declared types.
func ScanTable(rows *sql.Rows, rel *core.Relation) (*core.Table, error) {
	t := core.NewTable(rel.Columns)
	n := len(rel.Columns)
	raw := make([]any, n)
	ptrs := make([]any, n)
	for i := range raw {
		ptrs[i] = &raw[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", rel.Name, err)
		}
		row := make(core.Row, n)
		for i, c := range rel.Columns {
			v, err := core.Coerce(raw[i], c.Type)
			if err != nil {
				return nil, &core.SchemaMismatchError{Relation: rel.Name, Column: c.Name, Reason: err.Error()}
			}
			if v == nil && !c.Nullable {
				return nil, &core.SchemaMismatchError{Relation: rel.Name, Column: c.Name, Reason: fmt.Sprintf("NULL in NOT NULL column at row %d", t.Len())}
			}
			row[i] = v
		}
		t.Append(row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s: %w", rel.Name, err)
	}
	return t, nil
}

// TablesCommon lists the tables of Schema() using information_schema. placeholder
// formats the single schema parameter, e.g. "?" or "$1".
func (b *BaseSQLAdapter) TablesCommon(ctx context.Context, placeholder string) ([]string, error) {
	if b.DB == nil {
		return nil, fmt.Errorf("database connection not established")
	}

	//nolint:gosec // placeholder is a driver parameter marker
	query := fmt.Sprintf(`
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = %s
		ORDER BY table_name
	`, placeholder)

	rows, err := b.DB.QueryContext(ctx, query, b.Schema())
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tables: %w", err)
	}
	return names, nil
}
