package engine

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapgold/internal/gold"
	"github.com/leapstack-labs/leapgold/internal/gold/goldtest"
	"github.com/leapstack-labs/leapgold/internal/scheduler"
	"github.com/leapstack-labs/leapgold/internal/store"
	"github.com/leapstack-labs/leapgold/internal/testutil"
	"github.com/leapstack-labs/leapgold/pkg/core"

	_ "github.com/leapstack-labs/leapgold/pkg/adapters/csv"
)

func smallDataset() goldtest.Dataset {
	cfg := goldtest.DefaultConfig()
	cfg.Orders = 300
	cfg.Customers = 25
	return goldtest.Generate(cfg)
}

type fixture struct {
	silver string
	state  string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	f := fixture{silver: t.TempDir(), state: filepath.Join(t.TempDir(), "nested", "state.db")}
	require.NoError(t, smallDataset().WriteCSV(f.silver))
	return f
}

func (f fixture) open(t *testing.T) *Engine {
	t.Helper()
	e, err := New(Config{
		Namespace:    "retail_gold",
		Source:       core.AdapterConfig{Type: "csv", Path: f.silver},
		StoreBackend: store.BackendSQLite,
		StorePath:    f.state,
		Parallelism:  3,
		Partitions:   2,
		KeepRuns:     10,
		Logger:       testutil.NewTestLogger(t),
	})
	require.NoError(t, err)
	return e
}

func statusOf(t *testing.T, e *Engine, name string) RelationStatus {
	t.Helper()
	st, err := e.Relation(context.Background(), name)
	require.NoError(t, err)
	return *st
}

func TestNew_CreatesStateDirectory(t *testing.T) {
	f := newFixture(t)
	e := f.open(t)
	defer func() { _ = e.Close() }()

	_, err := os.Stat(filepath.Dir(f.state))
	require.NoError(t, err)
	assert.Equal(t, "retail_gold", e.Namespace())
	assert.Len(t, e.Catalog().Derived(), 7)
}

func TestNew_UnknownStore(t *testing.T) {
	_, err := New(Config{StoreBackend: "redis"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown store backend")
}

func TestRelations_BeforeLoad(t *testing.T) {
	e := newFixture(t).open(t)
	defer func() { _ = e.Close() }()

	all, err := e.Relations(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 11)

	for _, st := range all {
		assert.Nil(t, st.Current, st.Name)
		if st.IsDerived() {
			assert.True(t, st.Stale, st.Name)
			assert.Equal(t, scheduler.ReasonNeverCommitted, st.Reason)
		} else {
			assert.False(t, st.Stale, st.Name)
			assert.Empty(t, st.Upstreams, st.Name)
		}
	}
	assert.Equal(t, "retail_gold.gold_daily_sales", statusOf(t, e, gold.DailySales).Qualified)
}

func TestLoadSources_CommitsOnlyChanges(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	e := f.open(t)
	defer func() { _ = e.Close() }()

	outcomes, err := e.LoadSources(ctx)
	require.NoError(t, err)
	require.Len(t, outcomes, 4)
	for _, o := range outcomes {
		assert.Equal(t, LoadCommitted, o.Status, o.Relation)
		assert.Equal(t, uint64(1), o.Version, o.Relation)
		assert.Positive(t, o.Rows, o.Relation)
	}

	outcomes, err = e.LoadSources(ctx)
	require.NoError(t, err)
	for _, o := range outcomes {
		assert.Equal(t, LoadUnchanged, o.Status, o.Relation)
		assert.Equal(t, uint64(1), o.Version, o.Relation)
	}

	// Drop the last line item.
	path := filepath.Join(f.silver, gold.FactLineitem+".csv")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines[:len(lines)-1], "\n")+"\n"), 0o600))

	outcomes, err = e.LoadSources(ctx, gold.FactLineitem, gold.FactOrders)
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	assert.Equal(t, LoadOutcome{Relation: gold.FactLineitem, Status: LoadCommitted, Version: 2, Rows: len(lines) - 2, DurationMS: outcomes[0].DurationMS}, outcomes[0])
	assert.Equal(t, LoadUnchanged, outcomes[1].Status)
}

func TestLoadSources_RejectsDerivedAndUnknown(t *testing.T) {
	e := newFixture(t).open(t)
	defer func() { _ = e.Close() }()

	_, err := e.LoadSources(context.Background(), gold.DailySales)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is derived")

	_, err = e.LoadSources(context.Background(), "fact_nothing")
	var unknown *core.UnknownRelationError
	require.ErrorAs(t, err, &unknown)
}

func TestLoadSources_BadFileIsolated(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.WriteFile(filepath.Join(f.silver, gold.DimDate+".csv"), []byte("date_key\n2024-01-01\n"), 0o600))
	e := f.open(t)
	defer func() { _ = e.Close() }()

	outcomes, err := e.LoadSources(context.Background())
	require.Error(t, err)

	var mismatch *core.SchemaMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, gold.DimDate, mismatch.Relation)

	committed := 0
	for _, o := range outcomes {
		if o.Relation == gold.DimDate {
			assert.Equal(t, LoadFailed, o.Status)
			assert.NotEmpty(t, o.Error)
			continue
		}
		assert.Equal(t, LoadCommitted, o.Status, o.Relation)
		committed++
	}
	assert.Equal(t, 3, committed)
}

func TestLoadTables_ValidatesSchema(t *testing.T) {
	e := newFixture(t).open(t)
	defer func() { _ = e.Close() }()

	bad := core.NewTable(core.Schema{{Name: "date_key", Type: core.TypeDate}})
	outcomes, err := e.LoadTables(context.Background(), map[string]*core.Table{gold.DimDate: bad})
	require.Error(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, LoadFailed, outcomes[0].Status)

	_, err = e.Read(context.Background(), gold.DimDate)
	assert.ErrorIs(t, err, core.ErrNotMaterialized)
}

func TestRefresh_EndToEnd(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	e := f.open(t)

	_, err := e.LoadSources(ctx)
	require.NoError(t, err)

	plan, err := e.Plan(ctx, []string{gold.MonthlySales})
	require.NoError(t, err)
	assert.Equal(t, []string{gold.DailySales, gold.MonthlySales}, plan.Relations())

	report, err := e.Refresh(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, core.RunStatusCompleted, report.Status)
	assert.Len(t, report.Outcomes, 7)

	daily, err := e.Read(ctx, gold.DailySales)
	require.NoError(t, err)
	assert.Positive(t, daily.Len())
	assert.Equal(t, uint64(1), daily.Version)

	for _, st := range mustRelations(t, e) {
		assert.False(t, st.Stale, st.Name)
		assert.NotNil(t, st.Current, st.Name)
	}

	res, err := e.Query(ctx, "revenue_by_region", nil)
	require.NoError(t, err)
	assert.Positive(t, res.Len())

	runs, err := e.Runs(ctx, 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	run, rels, err := e.Run(ctx, runs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, core.RunStatusCompleted, run.Status)
	assert.Len(t, rels, 7)

	// State survives a restart.
	require.NoError(t, e.Close())
	e = f.open(t)
	defer func() { _ = e.Close() }()

	again, err := e.Read(ctx, gold.DailySales)
	require.NoError(t, err)
	assert.Equal(t, daily.Fingerprint, again.Fingerprint)
	runs, err = e.Runs(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestRelations_StaleAfterBaseChange(t *testing.T) {
	ctx := context.Background()
	ds := smallDataset()
	e := newFixture(t).open(t)
	defer func() { _ = e.Close() }()

	_, err := e.LoadTables(ctx, ds)
	require.NoError(t, err)
	_, err = e.Refresh(ctx, nil)
	require.NoError(t, err)

	orders := ds[gold.FactOrders].Clone()
	orders.Rows = orders.Rows[1:]
	out, err := e.LoadTables(ctx, map[string]*core.Table{gold.FactOrders: orders})
	require.NoError(t, err)
	assert.Equal(t, LoadCommitted, out[0].Status)

	stale := map[string]bool{}
	for _, st := range mustRelations(t, e) {
		if st.Stale {
			stale[st.Name] = true
			assert.Equal(t, scheduler.ReasonUpstreamChanged, st.Reason)
		}
	}
	assert.Equal(t, map[string]bool{
		gold.DailySales:       true,
		gold.ExecutiveSummary: true,
		gold.CustomerRFM:      true,
	}, stale)
}

func TestRead_Unknown(t *testing.T) {
	e := newFixture(t).open(t)
	defer func() { _ = e.Close() }()

	_, err := e.Read(context.Background(), "gold_nothing")
	var unknown *core.UnknownRelationError
	require.ErrorAs(t, err, &unknown)

	_, err = e.Relation(context.Background(), "gold_nothing")
	require.ErrorAs(t, err, &unknown)
}

func mustRelations(t *testing.T, e *Engine) []RelationStatus {
	t.Helper()
	all, err := e.Relations(context.Background())
	require.NoError(t, err)
	return all
}

func TestLoadSources_LogsCommits(t *testing.T) {
	f := newFixture(t)
	logger, logs := testutil.NewCapturingLogger()
	e, err := New(Config{
		Namespace:    "retail_gold",
		Source:       core.AdapterConfig{Type: "csv", Path: f.silver},
		StoreBackend: store.BackendMemory,
		Logger:       logger,
	})
	require.NoError(t, err)
	defer func() { _ = e.Close() }()

	_, err = e.LoadSources(context.Background(), gold.FactOrders)
	require.NoError(t, err)
	assert.Contains(t, logs.String(), `"msg":"base relation committed","relation":"fact_orders","version":1`)

	_, err = e.LoadSources(context.Background(), gold.FactOrders)
	require.NoError(t, err)
	assert.Contains(t, logs.String(), `"msg":"base relation unchanged","relation":"fact_orders"`)
}
