package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/leapstack-labs/leapgold/pkg/core"
)

// Memory is an in-process ResultStore. Commit swaps a pointer under a write
// lock, so readers observe either the old or the new result.
type Memory struct {
	mu      sync.RWMutex
	results map[string]*core.MaterializedResult
	seq     uint64
	now     func() time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		results: make(map[string]*core.MaterializedResult),
		now:     time.Now,
	}
}

// Commit implements core.ResultStore.
func (m *Memory) Commit(ctx context.Context, res *core.MaterializedResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var current uint64
	if cur, ok := m.results[res.Relation]; ok {
		current = cur.Version
	}
	if err := prepare(res, current, m.now()); err != nil {
		return err
	}

	m.seq++
	res.Seq = m.seq
	stored := *res
	stored.Table = *res.Table.Clone()
	stored.Inputs = cloneInputs(res.Inputs)
	m.results[res.Relation] = &stored
	return nil
}

// Read implements core.ResultStore. The returned result shares rows with
// the store and must not be modified.
func (m *Memory) Read(ctx context.Context, relation string) (*core.MaterializedResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res, ok := m.results[relation]
	if !ok {
		return nil, notMaterialized(relation)
	}
	out := *res
	return &out, nil
}

// CurrentVersion implements core.ResultStore.
func (m *Memory) CurrentVersion(ctx context.Context, relation string) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if res, ok := m.results[relation]; ok {
		return res.Version, nil
	}
	return 0, nil
}

// List implements core.ResultStore.
func (m *Memory) List(ctx context.Context) ([]core.VersionInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]core.VersionInfo, 0, len(m.results))
	for _, res := range m.results {
		out = append(out, res.Info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Relation < out[j].Relation })
	return out, nil
}

// Close implements core.ResultStore.
func (m *Memory) Close() error {
	return nil
}

func cloneInputs(in map[string]uint64) map[string]uint64 {
	if in == nil {
		return nil
	}
	out := make(map[string]uint64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
