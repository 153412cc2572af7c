// Package csv provides a silver source that reads one CSV file per base
// relation from a directory.
//
// The file for relation "fact_orders" is <path>/fact_orders.csv. The first
// record is the header. Columns are matched to the declared schema by name,
// case-insensitively; extra columns are ignored and an empty cell is NULL.
package csv

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/leapstack-labs/leapgold/pkg/adapter"
	"github.com/leapstack-labs/leapgold/pkg/core"
)

const ext = ".csv"

// Adapter implements adapter.Source for a directory of CSV files.
type Adapter struct {
	dir       string
	delimiter rune
	logger    *slog.Logger
}

// New creates a new CSV adapter instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{logger: logger, delimiter: ','}
}

// Connect checks that cfg.Path is a directory. Options["delimiter"] sets a
// single-character field separator.
func (a *Adapter) Connect(_ context.Context, cfg adapter.Config) error {
	if cfg.Path == "" {
		return fmt.Errorf("csv source requires a path")
	}
	info, err := os.Stat(cfg.Path)
	if err != nil {
		return fmt.Errorf("failed to open csv directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("csv source path %s is not a directory", cfg.Path)
	}

	if d, ok := cfg.Options["delimiter"]; ok {
		r, size := utf8.DecodeRuneInString(d)
		if r == utf8.RuneError || size != len(d) {
			return fmt.Errorf("invalid csv delimiter %q", d)
		}
		a.delimiter = r
	}

	a.dir = cfg.Path
	a.logger.Debug("opened csv source", slog.String("path", cfg.Path))
	return nil
}

// Close implements adapter.Source. There is nothing to release.
func (a *Adapter) Close() error {
	a.dir = ""
	return nil
}

// Tables lists the relations with a CSV file in the directory.
func (a *Adapter) Tables(_ context.Context) ([]string, error) {
	if a.dir == "" {
		return nil, fmt.Errorf("csv source not connected")
	}
	entries, err := os.ReadDir(a.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ext) {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())))
	}
	sort.Strings(names)
	return names, nil
}

// Load reads <dir>/<rel.Name>.csv.
func (a *Adapter) Load(ctx context.Context, rel *core.Relation) (*core.Table, error) {
	if a.dir == "" {
		return nil, fmt.Errorf("csv source not connected")
	}

	path := filepath.Join(a.dir, rel.Name+ext)
	f, err := os.Open(path) //nolint:gosec // path is built from the configured directory and a catalog name
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", rel.Name, err)
	}
	defer func() { _ = f.Close() }()

	t, err := a.read(ctx, f, rel)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("relation loaded", slog.String("relation", rel.Name), slog.Int("rows", t.Len()))
	return t, nil
}

func (a *Adapter) read(ctx context.Context, r io.Reader, rel *core.Relation) (*core.Table, error) {
	reader := csv.NewReader(r)
	reader.Comma = a.delimiter
	reader.ReuseRecord = true

	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s header: %w", rel.Name, err)
	}

	positions := make(map[string]int, len(headers))
	for i, h := range headers {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := positions[h]; !dup {
			positions[h] = i
		}
	}
	index := make([]int, len(rel.Columns))
	for i, c := range rel.Columns {
		p, ok := positions[strings.ToLower(c.Name)]
		if !ok {
			return nil, &core.SchemaMismatchError{Relation: rel.Name, Column: c.Name, Reason: "missing from csv header"}
		}
		index[i] = p
	}

	t := core.NewTable(rel.Columns)
	for line := 2; ; line++ {
		if line%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", rel.Name, err)
		}

		row := make(core.Row, len(rel.Columns))
		for i, c := range rel.Columns {
			cell := record[index[i]]
			if cell == "" {
				if !c.Nullable {
					return nil, &core.SchemaMismatchError{Relation: rel.Name, Column: c.Name, Reason: fmt.Sprintf("NULL in NOT NULL column at line %d", line)}
				}
				continue
			}
			v, err := core.Coerce(cell, c.Type)
			if err != nil {
				return nil, &core.SchemaMismatchError{Relation: rel.Name, Column: c.Name, Reason: fmt.Sprintf("line %d: %v", line, err)}
			}
			row[i] = v
		}
		t.Append(row)
	}
	return t, nil
}

var _ adapter.Source = (*Adapter)(nil)
