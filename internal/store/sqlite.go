package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/leapstack-labs/leapgold/pkg/core"
)

// SQLite persists results and run history in a SQLite database. A commit is
// a single transaction that checks the current version, bumps the commit
// sequence and replaces the result row.
type SQLite struct {
	db        *sql.DB
	path      string
	namespace string
	logger    *slog.Logger
}

// OpenSQLite opens (creating if needed) the database at path and migrates
// it. Use ":memory:" or "" for an in-memory database.
func OpenSQLite(path, namespace string, logger *slog.Logger) (*SQLite, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	dsn := "file::memory:?_pragma=foreign_keys(1)"
	if path != "" && path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("create state directory: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// one connection: serializes writers and keeps :memory: databases alive
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}
	if err := Migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Debug("sqlite store opened", slog.String("path", path), slog.String("namespace", namespace))
	return &SQLite{db: db, path: path, namespace: namespace, logger: logger}, nil
}

// DB returns the underlying connection.
func (s *SQLite) DB() *sql.DB {
	return s.db
}

// Close closes the database.
func (s *SQLite) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Commit implements core.ResultStore.
func (s *SQLite) Commit(ctx context.Context, res *core.MaterializedResult) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin commit: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var current uint64
	err = tx.QueryRowContext(ctx,
		`SELECT version FROM results WHERE namespace = ? AND relation = ?`,
		s.namespace, res.Relation,
	).Scan(&current)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("read current version: %w", err)
	}
	if err = prepare(res, current, time.Now()); err != nil {
		return err
	}

	var seq uint64
	err = tx.QueryRowContext(ctx,
		`INSERT INTO commit_seq (namespace, seq) VALUES (?, 1)
		 ON CONFLICT (namespace) DO UPDATE SET seq = seq + 1
		 RETURNING seq`,
		s.namespace,
	).Scan(&seq)
	if err != nil {
		return fmt.Errorf("advance commit sequence: %w", err)
	}

	cols, err := json.Marshal(res.Columns)
	if err != nil {
		return err
	}
	rows, err := encodeRows(res.Rows)
	if err != nil {
		return err
	}
	inputs, err := json.Marshal(res.Inputs)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO results (namespace, relation, version, seq, columns, rows, row_count, inputs, fingerprint, committed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (namespace, relation) DO UPDATE SET
		   version = excluded.version, seq = excluded.seq, columns = excluded.columns,
		   rows = excluded.rows, row_count = excluded.row_count, inputs = excluded.inputs,
		   fingerprint = excluded.fingerprint, committed_at = excluded.committed_at`,
		s.namespace, res.Relation, res.Version, seq, string(cols), string(rows), len(res.Rows),
		string(inputs), res.Fingerprint, res.CommittedAt,
	)
	if err != nil {
		return fmt.Errorf("write result: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit %s: %w", res.Relation, err)
	}
	res.Seq = seq

	s.logger.Debug("result committed",
		slog.String("relation", res.Relation),
		slog.Uint64("version", res.Version),
		slog.Uint64("seq", seq),
		slog.Int("rows", len(res.Rows)))
	return nil
}

// Read implements core.ResultStore.
func (s *SQLite) Read(ctx context.Context, relation string) (*core.MaterializedResult, error) {
	var (
		res    = &core.MaterializedResult{Relation: relation}
		cols   string
		rows   string
		inputs string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT version, seq, columns, rows, inputs, fingerprint, committed_at
		 FROM results WHERE namespace = ? AND relation = ?`,
		s.namespace, relation,
	).Scan(&res.Version, &res.Seq, &cols, &rows, &inputs, &res.Fingerprint, &res.CommittedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notMaterialized(relation)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", relation, err)
	}

	if err := json.Unmarshal([]byte(cols), &res.Columns); err != nil {
		return nil, fmt.Errorf("decode columns of %s: %w", relation, err)
	}
	if err := json.Unmarshal([]byte(inputs), &res.Inputs); err != nil {
		return nil, fmt.Errorf("decode inputs of %s: %w", relation, err)
	}
	if res.Rows, err = decodeRows([]byte(rows), res.Columns); err != nil {
		return nil, err
	}
	res.CommittedAt = res.CommittedAt.UTC()
	return res, nil
}

// CurrentVersion implements core.ResultStore.
func (s *SQLite) CurrentVersion(ctx context.Context, relation string) (uint64, error) {
	var v uint64
	err := s.db.QueryRowContext(ctx,
		`SELECT version FROM results WHERE namespace = ? AND relation = ?`,
		s.namespace, relation,
	).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read version of %s: %w", relation, err)
	}
	return v, nil
}

// List implements core.ResultStore.
func (s *SQLite) List(ctx context.Context) ([]core.VersionInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT relation, version, seq, row_count, inputs, fingerprint, committed_at
		 FROM results WHERE namespace = ? ORDER BY relation`,
		s.namespace,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []core.VersionInfo
	for rows.Next() {
		var (
			info   core.VersionInfo
			inputs string
		)
		if err := rows.Scan(&info.Relation, &info.Version, &info.Seq, &info.Rows, &inputs, &info.Fingerprint, &info.CommittedAt); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		if err := json.Unmarshal([]byte(inputs), &info.Inputs); err != nil {
			return nil, fmt.Errorf("decode inputs of %s: %w", info.Relation, err)
		}
		info.CommittedAt = info.CommittedAt.UTC()
		out = append(out, info)
	}
	return out, rows.Err()
}
