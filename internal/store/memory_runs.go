package store

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/leapstack-labs/leapgold/pkg/core"
)

// MemoryRunLog keeps refresh history in process.
type MemoryRunLog struct {
	mu        sync.Mutex
	runs      map[string]*core.Run
	order     []string
	relations map[string][]*core.RelationRun
}

// NewMemoryRunLog creates an empty run log.
func NewMemoryRunLog() *MemoryRunLog {
	return &MemoryRunLog{
		runs:      make(map[string]*core.Run),
		relations: make(map[string][]*core.RelationRun),
	}
}

// CreateRun implements core.RunLog.
func (l *MemoryRunLog) CreateRun(ctx context.Context, namespace string, scope []string) (*core.Run, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	run := &core.Run{
		ID:        uuid.New().String(),
		Namespace: namespace,
		Scope:     slices.Clone(scope),
		Status:    core.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	l.runs[run.ID] = run
	l.order = append(l.order, run.ID)
	out := *run
	return &out, nil
}

// RecordRelationRun implements core.RunLog.
func (l *MemoryRunLog) RecordRelationRun(ctx context.Context, rr *core.RelationRun) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.runs[rr.RunID]; !ok {
		return fmt.Errorf("%w: %s", core.ErrRunNotFound, rr.RunID)
	}
	cp := *rr
	l.relations[rr.RunID] = append(l.relations[rr.RunID], &cp)
	return nil
}

// CompleteRun implements core.RunLog.
func (l *MemoryRunLog) CompleteRun(ctx context.Context, id string, status core.RunStatus, errMsg string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	run, ok := l.runs[id]
	if !ok {
		return fmt.Errorf("%w: %s", core.ErrRunNotFound, id)
	}
	now := time.Now().UTC()
	run.Status = status
	run.CompletedAt = &now
	run.Error = errMsg
	return nil
}

// GetRun implements core.RunLog.
func (l *MemoryRunLog) GetRun(ctx context.Context, id string) (*core.Run, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	run, ok := l.runs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrRunNotFound, id)
	}
	out := *run
	return &out, nil
}

// ListRuns implements core.RunLog, newest first.
func (l *MemoryRunLog) ListRuns(ctx context.Context, limit int) ([]*core.Run, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*core.Run
	for i := len(l.order) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		r := *l.runs[l.order[i]]
		out = append(out, &r)
	}
	return out, nil
}

// GetRelationRuns implements core.RunLog, sorted by relation.
func (l *MemoryRunLog) GetRelationRuns(ctx context.Context, runID string) ([]*core.RelationRun, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*core.RelationRun, 0, len(l.relations[runID]))
	for _, rr := range l.relations[runID] {
		cp := *rr
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Relation < out[j].Relation })
	return out, nil
}

// PruneRuns implements core.RunLog.
func (l *MemoryRunLog) PruneRuns(ctx context.Context, keep int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if keep <= 0 || len(l.order) <= keep {
		return nil
	}
	drop := l.order[:len(l.order)-keep]
	for _, id := range drop {
		delete(l.runs, id)
		delete(l.relations, id)
	}
	l.order = slices.Clone(l.order[len(l.order)-keep:])
	return nil
}
