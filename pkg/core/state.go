package core

import (
	"context"
	"time"
)

// ResultStore holds the current committed result per relation.
// Implementations must make Commit all-or-nothing: a reader sees either the
// previous version or the new one, never a mix.
type ResultStore interface {
	// Commit installs res as the relation's new current version. The version
	// must be greater than the current one. Commit assigns res.Seq.
	Commit(ctx context.Context, res *MaterializedResult) error

	// Read returns the latest committed result or ErrNotMaterialized.
	Read(ctx context.Context, relation string) (*MaterializedResult, error)

	// CurrentVersion returns the latest committed version, 0 if none.
	CurrentVersion(ctx context.Context, relation string) (uint64, error)

	// List returns metadata for every committed relation, sorted by name.
	List(ctx context.Context) ([]VersionInfo, error)

	Close() error
}

// RunStatus represents the status of a refresh run.
type RunStatus string

// Run status constants.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// RelationStatus represents the outcome of one relation in a run.
type RelationStatus string

// Relation status constants.
const (
	RelationStatusSuccess   RelationStatus = "success"
	RelationStatusFailed    RelationStatus = "failed"
	RelationStatusSkipped   RelationStatus = "skipped"
	RelationStatusCurrent   RelationStatus = "current"
	RelationStatusCancelled RelationStatus = "cancelled"
)

// Run is one invocation of refresh.
type Run struct {
	ID          string     `json:"id"`
	Namespace   string     `json:"namespace"`
	Scope       []string   `json:"scope,omitempty"`
	Status      RunStatus  `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// RelationRun is the record of one relation within a run.
type RelationRun struct {
	RunID      string         `json:"run_id"`
	Relation   string         `json:"relation"`
	Status     RelationStatus `json:"status"`
	Version    uint64         `json:"version"`
	Rows       int            `json:"rows"`
	DurationMS int64          `json:"duration_ms"`
	Error      string         `json:"error,omitempty"`
}

// RunLog records refresh history.
type RunLog interface {
	CreateRun(ctx context.Context, namespace string, scope []string) (*Run, error)
	RecordRelationRun(ctx context.Context, rr *RelationRun) error
	CompleteRun(ctx context.Context, id string, status RunStatus, errMsg string) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]*Run, error)
	GetRelationRuns(ctx context.Context, runID string) ([]*RelationRun, error)
	PruneRuns(ctx context.Context, keep int) error
}
