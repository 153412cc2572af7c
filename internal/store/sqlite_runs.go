package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/leapstack-labs/leapgold/pkg/core"
)

// generateID creates a new UUID.
func generateID() string {
	return uuid.New().String()
}

// CreateRun implements core.RunLog.
func (s *SQLite) CreateRun(ctx context.Context, namespace string, scope []string) (*core.Run, error) {
	run := &core.Run{
		ID:        generateID(),
		Namespace: namespace,
		Scope:     scope,
		Status:    core.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}

	s.logger.Debug("creating run", slog.String("run_id", run.ID), slog.String("namespace", namespace))

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, namespace, scope, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.Namespace, strings.Join(scope, ","), string(run.Status), run.StartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	return run, nil
}

// RecordRelationRun implements core.RunLog.
func (s *SQLite) RecordRelationRun(ctx context.Context, rr *core.RelationRun) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO relation_runs (run_id, relation, status, version, row_count, duration_ms, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (run_id, relation) DO UPDATE SET
		   status = excluded.status, version = excluded.version, row_count = excluded.row_count,
		   duration_ms = excluded.duration_ms, error = excluded.error`,
		rr.RunID, rr.Relation, string(rr.Status), rr.Version, rr.Rows, rr.DurationMS, nullString(rr.Error),
	)
	if err != nil {
		return fmt.Errorf("failed to record relation run: %w", err)
	}
	return nil
}

// CompleteRun implements core.RunLog.
func (s *SQLite) CompleteRun(ctx context.Context, id string, status core.RunStatus, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, completed_at = ?, error = ? WHERE id = ?`,
		string(status), time.Now().UTC(), nullString(errMsg), id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", core.ErrRunNotFound, id)
	}
	return nil
}

// GetRun implements core.RunLog.
func (s *SQLite) GetRun(ctx context.Context, id string) (*core.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, namespace, scope, status, started_at, completed_at, error FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", core.ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns implements core.RunLog, newest first.
func (s *SQLite) ListRuns(ctx context.Context, limit int) ([]*core.Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, namespace, scope, status, started_at, completed_at, error
		 FROM runs ORDER BY rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []*core.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRelationRuns implements core.RunLog.
func (s *SQLite) GetRelationRuns(ctx context.Context, runID string) ([]*core.RelationRun, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, relation, status, version, row_count, duration_ms, error
		 FROM relation_runs WHERE run_id = ? ORDER BY relation`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get relation runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*core.RelationRun
	for rows.Next() {
		var (
			rr     core.RelationRun
			status string
			errMsg sql.NullString
		)
		if err := rows.Scan(&rr.RunID, &rr.Relation, &status, &rr.Version, &rr.Rows, &rr.DurationMS, &errMsg); err != nil {
			return nil, fmt.Errorf("failed to scan relation run: %w", err)
		}
		rr.Status = core.RelationStatus(status)
		rr.Error = errMsg.String
		out = append(out, &rr)
	}
	return out, rows.Err()
}

// PruneRuns implements core.RunLog by deleting all but the newest keep runs.
func (s *SQLite) PruneRuns(ctx context.Context, keep int) error {
	if keep <= 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM runs WHERE id NOT IN (
		   SELECT id FROM runs ORDER BY rowid DESC LIMIT ?
		 )`, keep)
	if err != nil {
		return fmt.Errorf("failed to prune runs: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*core.Run, error) {
	var (
		run         core.Run
		scope       string
		status      string
		completedAt sql.NullTime
		errMsg      sql.NullString
	)
	if err := row.Scan(&run.ID, &run.Namespace, &scope, &status, &run.StartedAt, &completedAt, &errMsg); err != nil {
		return nil, err
	}
	run.Status = core.RunStatus(status)
	run.StartedAt = run.StartedAt.UTC()
	if scope != "" {
		run.Scope = strings.Split(scope, ",")
	}
	if completedAt.Valid {
		t := completedAt.Time.UTC()
		run.CompletedAt = &t
	}
	run.Error = errMsg.String
	return &run, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
