package analytics

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapgold/internal/eval"
	"github.com/leapstack-labs/leapgold/internal/gold"
	"github.com/leapstack-labs/leapgold/internal/gold/goldtest"
	"github.com/leapstack-labs/leapgold/internal/scheduler"
	"github.com/leapstack-labs/leapgold/internal/store"
	"github.com/leapstack-labs/leapgold/internal/testutil"
	"github.com/leapstack-labs/leapgold/pkg/core"
)

// newRunner refreshes every gold relation over the default data set.
func newRunner(t *testing.T) (*Runner, core.ResultStore) {
	t.Helper()
	ctx := context.Background()
	logger := testutil.NewTestLogger(t)

	cat, err := gold.NewCatalog("retail_gold")
	require.NoError(t, err)
	st := store.NewMemory()
	require.NoError(t, goldtest.Default().Commit(ctx, st))

	s, err := scheduler.New(scheduler.Config{Catalog: cat, Store: st, Logger: logger})
	require.NoError(t, err)
	_, err = s.Refresh(ctx, nil)
	require.NoError(t, err)

	return NewRunner(NewRegistry(), st, eval.New(eval.Config{Logger: logger}), logger), st
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	names := make([]string, 0)
	for _, q := range r.List() {
		names = append(names, q.Name)
	}
	assert.Equal(t, []string{
		"at_risk_customers", "brand_margin_quartiles", "customer_360", "daily_revenue_trend",
		"executive_kpis", "growth_leaders", "regional_revenue_pivot", "revenue_by_region",
		"segment_distribution", "shipping_sla", "supplier_leaderboard", "top_products",
	}, names)

	q, err := r.Lookup("customer_360")
	require.NoError(t, err)
	assert.Equal(t, []string{gold.DimCustomer, gold.CustomerRFM}, q.Relations())

	_, err = r.Lookup("nope")
	assert.ErrorIs(t, err, ErrUnknownQuery)
}

func TestDefinition_ParamErrors(t *testing.T) {
	r := NewRegistry()
	tests := []struct {
		query string
		args  map[string]string
		param string
	}{
		{"revenue_by_region", map[string]string{"region": "ATLANTIS"}, "region"},
		{"revenue_by_region", map[string]string{"start": "2024/01"}, "start"},
		{"top_products", map[string]string{"top_n": "many"}, "top_n"},
		{"top_products", map[string]string{"top_n": "0"}, "top_n"},
		{"top_products", map[string]string{"sort_by": "name"}, "sort_by"},
		{"customer_360", nil, "customer_id"},
		{"growth_leaders", map[string]string{"month": "June"}, "month"},
		{"daily_revenue_trend", map[string]string{"start": "2024-13-01"}, "start"},
		{"executive_kpis", map[string]string{"limit": "3"}, "limit"},
		{"supplier_leaderboard", map[string]string{"tier": "9"}, "tier"},
	}
	for _, tt := range tests {
		t.Run(tt.query+"/"+tt.param, func(t *testing.T) {
			q, err := r.Lookup(tt.query)
			require.NoError(t, err)
			_, err = q.Definition(tt.args)
			var pe *ParamError
			require.True(t, errors.As(err, &pe), "got %v", err)
			assert.Equal(t, tt.param, pe.Param)
			assert.Equal(t, tt.query, pe.Query)
		})
	}
}

func TestRun_EveryQuery(t *testing.T) {
	runner, _ := newRunner(t)
	args := map[string]map[string]string{
		"customer_360":   {"customer_id": "7"},
		"growth_leaders": {"month": "2024-06"},
	}
	for _, q := range runner.Registry().List() {
		t.Run(q.Name, func(t *testing.T) {
			res, err := runner.Run(context.Background(), q.Name, args[q.Name])
			require.NoError(t, err)
			assert.NotEmpty(t, res.Columns)
			assert.NotEmpty(t, res.Versions)
		})
	}
}

func TestRun_UnknownQuery(t *testing.T) {
	runner := NewRunner(NewRegistry(), store.NewMemory(), nil, nil)
	_, err := runner.Run(context.Background(), "revenue_forecast", nil)
	assert.ErrorIs(t, err, ErrUnknownQuery)
}

func TestRun_NotMaterialized(t *testing.T) {
	runner := NewRunner(NewRegistry(), store.NewMemory(), nil, nil)
	_, err := runner.Run(context.Background(), "executive_kpis", nil)
	assert.ErrorIs(t, err, core.ErrNotMaterialized)
}

func TestRevenueByRegion(t *testing.T) {
	runner, _ := newRunner(t)
	ctx := context.Background()

	res, err := runner.Run(ctx, "revenue_by_region", map[string]string{"region": "ASIA", "start": "2023-04", "end": "2023-06"})
	require.NoError(t, err)
	assert.Equal(t, []string{"year_month", "region", "net_revenue", "orders", "margin_pct"}, res.Columns.Names())
	require.Len(t, res.Rows, 3)
	for i, rec := range res.Records() {
		assert.Equal(t, "ASIA", rec["region"])
		assert.Equal(t, []string{"2023-04", "2023-05", "2023-06"}[i], rec["year_month"])
	}

	all, err := runner.Run(ctx, "revenue_by_region", nil)
	require.NoError(t, err)
	assert.Len(t, all.Rows, 24*len(gold.Regions))
	assert.Equal(t, "2023-01", all.Rows[0][0])
}

func TestTopProducts(t *testing.T) {
	runner, _ := newRunner(t)
	res, err := runner.Run(context.Background(), "top_products", map[string]string{"sort_by": "orders", "top_n": "5"})
	require.NoError(t, err)
	require.Len(t, res.Rows, 5)

	orders := res.Column("orders")
	for i := 1; i < len(orders); i++ {
		assert.GreaterOrEqual(t, orders[i-1].(int64), orders[i].(int64))
	}
}

func TestCustomer360(t *testing.T) {
	runner, _ := newRunner(t)
	ctx := context.Background()

	res, err := runner.Run(ctx, "customer_360", map[string]string{"customer_id": "7"})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	rec := res.Records()[0]
	assert.Equal(t, int64(7), rec["customer_key"])
	assert.Equal(t, "Customer#000000007", rec["customer_name"])
	assert.NotNil(t, rec["rfm_segment"])

	res, err = runner.Run(ctx, "customer_360", map[string]string{"customer_id": "999999"})
	require.NoError(t, err)
	assert.Empty(t, res.Rows)
}

func TestRegionalRevenuePivot(t *testing.T) {
	runner, _ := newRunner(t)
	res, err := runner.Run(context.Background(), "regional_revenue_pivot", map[string]string{"start": "2024-01"})
	require.NoError(t, err)

	assert.Equal(t, []string{"year_month", "africa", "america", "asia", "europe", "middle_east"}, res.Columns.Names())
	require.Len(t, res.Rows, 12)
	assert.Equal(t, "2024-01", res.Rows[0][0])
}

func TestSegmentDistribution(t *testing.T) {
	runner, st := newRunner(t)
	ctx := context.Background()

	res, err := runner.Run(ctx, "segment_distribution", nil)
	require.NoError(t, err)

	rfm, err := st.Read(ctx, gold.CustomerRFM)
	require.NoError(t, err)

	var customers int64
	var share float64
	for _, rec := range res.Records() {
		customers += rec["customers"].(int64)
		share += rec["share_pct"].(float64)
	}
	assert.Equal(t, int64(len(rfm.Rows)), customers)
	assert.InDelta(t, 100.0, share, 0.05)
}

func TestGrowthLeaders(t *testing.T) {
	runner, _ := newRunner(t)
	res, err := runner.Run(context.Background(), "growth_leaders", map[string]string{"month": "2024-06", "top_n": "3"})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(res.Rows), 3)
	for _, rec := range res.Records() {
		assert.Equal(t, "2024-06", rec["year_month"])
		assert.NotNil(t, rec["mom_growth_pct"])
	}
}

func TestSupplierLeaderboard_Tier(t *testing.T) {
	runner, _ := newRunner(t)
	res, err := runner.Run(context.Background(), "supplier_leaderboard", map[string]string{"tier": "1"})
	require.NoError(t, err)
	require.NotEmpty(t, res.Rows)
	for _, v := range res.Column("supplier_tier") {
		assert.Equal(t, int64(1), v)
	}
}
