package gold_test

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapgold/internal/eval"
	"github.com/leapstack-labs/leapgold/internal/gold"
	"github.com/leapstack-labs/leapgold/internal/gold/goldtest"
	"github.com/leapstack-labs/leapgold/internal/scheduler"
	"github.com/leapstack-labs/leapgold/internal/scoring"
	"github.com/leapstack-labs/leapgold/internal/store"
	"github.com/leapstack-labs/leapgold/internal/testutil"
	"github.com/leapstack-labs/leapgold/pkg/core"
)

func TestCatalog_Edges(t *testing.T) {
	cat, err := gold.NewCatalog("retail_gold")
	require.NoError(t, err)
	g := cat.Graph()

	want := map[string][]string{
		gold.DailySales:         {gold.DimDate, gold.FactLineitem, gold.FactOrders},
		gold.MonthlySales:       {gold.DailySales},
		gold.ExecutiveSummary:   {gold.FactOrders},
		gold.ProductPerformance: {gold.FactLineitem},
		gold.CustomerRFM:        {gold.FactOrders},
		gold.ShippingAnalysis:   {gold.FactLineitem},
		gold.SupplierScorecard:  {gold.FactLineitem},
	}
	for name, ups := range want {
		assert.Equal(t, ups, g.Parents(name), name)
	}
	assert.Len(t, cat.Derived(), 7)
	assert.Len(t, cat.Base(), 4)

	order, err := g.TopologicalSort()
	require.NoError(t, err)
	assert.Less(t, indexOf(order, gold.DailySales), indexOf(order, gold.MonthlySales))
}

func indexOf(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}

type env struct {
	sched *scheduler.Scheduler
	store core.ResultStore
}

func newEnv(t *testing.T, ds goldtest.Dataset) *env {
	t.Helper()
	cat, err := gold.NewCatalog("retail_gold")
	require.NoError(t, err)

	st := store.NewMemory()
	require.NoError(t, ds.Commit(context.Background(), st))

	logger := testutil.NewTestLogger(t)
	s, err := scheduler.New(scheduler.Config{
		Catalog:     cat,
		Store:       st,
		Evaluator:   eval.New(eval.Config{Partitions: 3, Logger: logger}),
		Parallelism: 3,
		Logger:      logger,
	})
	require.NoError(t, err)
	return &env{sched: s, store: st}
}

func (e *env) read(t *testing.T, name string) *core.MaterializedResult {
	t.Helper()
	res, err := e.store.Read(context.Background(), name)
	require.NoError(t, err)
	return res
}

func TestRefresh_AllGoldRelations(t *testing.T) {
	ds := goldtest.Default()
	e := newEnv(t, ds)

	report, err := e.sched.Refresh(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, core.RunStatusCompleted, report.Status)
	assert.Len(t, report.Outcomes, 7)

	for _, v := range gold.Views() {
		res := e.read(t, v.Relation.Name)
		assert.Equal(t, v.Relation.Columns.Names(), res.Columns.Names(), v.Relation.Name)
		assert.NotEmpty(t, res.Rows, v.Relation.Name)
	}

	// daily and monthly revenue both reconcile with the line items
	lineNet := sumFloat(ds[gold.FactLineitem], "net_revenue")
	assert.InEpsilon(t, lineNet, sumFloat(&e.read(t, gold.DailySales).Table, "net_revenue"), 1e-9)
	assert.InEpsilon(t, lineNet, sumFloat(&e.read(t, gold.MonthlySales).Table, "net_revenue"), 1e-9)
}

func TestRefresh_Idempotent(t *testing.T) {
	e := newEnv(t, goldtest.Default())
	ctx := context.Background()

	_, err := e.sched.Refresh(ctx, nil)
	require.NoError(t, err)
	first := map[string]*core.MaterializedResult{}
	for _, v := range gold.Views() {
		first[v.Relation.Name] = e.read(t, v.Relation.Name)
	}

	_, err = e.sched.Refresh(ctx, nil)
	require.NoError(t, err)
	for name, before := range first {
		after := e.read(t, name)
		assert.Equal(t, before.Columns, after.Columns, name)
		assert.Equal(t, before.Rows, after.Rows, name)
		assert.Equal(t, before.Fingerprint, after.Fingerprint, name)
		assert.Greater(t, after.Version, before.Version, name)
	}
}

func TestRefresh_MonthlyOnlyPullsDaily(t *testing.T) {
	e := newEnv(t, goldtest.Default())

	report, err := e.sched.Refresh(context.Background(), []string{gold.MonthlySales})
	require.NoError(t, err)
	assert.Equal(t, []string{gold.DailySales, gold.MonthlySales}, report.Order)

	daily := e.read(t, gold.DailySales)
	monthly := e.read(t, gold.MonthlySales)
	assert.Less(t, daily.Seq, monthly.Seq)
	assert.Equal(t, daily.Version, monthly.Inputs[gold.DailySales])
}

func TestMonthlySales_WindowColumns(t *testing.T) {
	e := newEnv(t, goldtest.Default())
	_, err := e.sched.Refresh(context.Background(), []string{gold.MonthlySales})
	require.NoError(t, err)
	res := e.read(t, gold.MonthlySales)

	type series struct{ region, segment string }
	seen := map[series]int{}
	running := map[series]float64{}
	for _, rec := range res.Records() {
		k := series{rec["region"].(string), rec["market_segment"].(string)}
		n := seen[k]
		seen[k] = n + 1

		if n == 0 {
			assert.Nil(t, rec["mom_growth_pct"])
		}
		if n < 12 {
			assert.Nil(t, rec["yoy_growth_pct"], "%v month %d", k, n)
		}
		running[k] += rec["net_revenue"].(float64)
		assert.InDelta(t, running[k], rec["cumulative_net_revenue"].(float64), 1e-6)
	}
}

func TestExecutiveSummary(t *testing.T) {
	e := newEnv(t, goldtest.Default())
	_, err := e.sched.Refresh(context.Background(), []string{gold.ExecutiveSummary})
	require.NoError(t, err)
	res := e.read(t, gold.ExecutiveSummary)

	// two years of data
	require.Len(t, res.Rows, 8)
	recs := res.Records()
	assert.Equal(t, "2023-Q1", recs[0]["year_quarter"])
	assert.Equal(t, "2024-Q4", recs[7]["year_quarter"])
	assert.Nil(t, recs[0]["qoq_revenue_growth_pct"])
	assert.NotNil(t, recs[1]["qoq_revenue_growth_pct"])

	total := 0
	for _, r := range recs {
		total += int(r["total_orders"].(int64))
	}
	assert.Equal(t, goldtest.DefaultConfig().Orders, total)
	assert.InDelta(t, sumFloat(&res.Table, "gross_order_value"), recs[7]["cumulative_order_value"].(float64), 1e-6)
}

func TestCustomerRFM_BucketsAreBalanced(t *testing.T) {
	e := newEnv(t, goldtest.Default())
	_, err := e.sched.Refresh(context.Background(), []string{gold.CustomerRFM})
	require.NoError(t, err)
	res := e.read(t, gold.CustomerRFM)

	m := len(res.Rows)
	for _, col := range []string{"r_score", "f_score", "m_score"} {
		counts := map[int64]int{}
		for _, v := range res.Column(col) {
			counts[v.(int64)]++
		}
		require.Len(t, counts, gold.RFMBuckets, col)
		for _, n := range counts {
			assert.True(t, n == m/gold.RFMBuckets || n == m/gold.RFMBuckets+1, "%s bucket size %d of %d", col, n, m)
		}
	}
	for _, rec := range res.Records() {
		assert.Contains(t, scoring.Segments, rec["rfm_segment"])
		assert.Equal(t, rec["r_score"].(int64)+rec["f_score"].(int64)+rec["m_score"].(int64), rec["rfm_score"])
		assert.GreaterOrEqual(t, rec["recency_days"].(int64), int64(0))
	}
}

func TestCustomerRFM_ChampionsAndLost(t *testing.T) {
	asOf := core.Date(2024, time.June, 30)
	orders := core.NewTable(gold.SilverRelation(gold.FactOrders).Columns)
	key := int64(0)
	addOrders := func(customer int64, n int, recency int, price float64) {
		for i := range n {
			key++
			d := asOf.AddDate(0, 0, -recency-7*i)
			orders.Append(core.Row{key, customer, d, int64(d.Year()), int64((int(d.Month())-1)/3 + 1), price, "BUILDING", "ASIA"})
		}
	}
	addOrders(1, 20, 5, 2500) // A
	addOrders(2, 1, 400, 80)  // B
	for c := 3; c <= 10; c++ {
		addOrders(int64(c), c-1, (c-3)*20, float64(100*c))
	}

	v, ok := gold.Lookup(gold.CustomerRFM)
	require.True(t, ok)
	out, err := eval.New(eval.Config{Partitions: 4}).Evaluate(context.Background(), v.Definition, map[string]*core.Table{gold.FactOrders: orders})
	require.NoError(t, err)
	require.NoError(t, eval.Conform(out, v.Relation))
	require.Len(t, out.Rows, 10)

	recs := out.Records()
	a, b := recs[0], recs[1]

	assert.Equal(t, int64(5), a["recency_days"])
	assert.Equal(t, int64(20), a["frequency"])
	assert.Equal(t, 50000.0, a["monetary"])
	assert.Equal(t, []any{int64(5), int64(5), int64(5)}, []any{a["r_score"], a["f_score"], a["m_score"]})
	assert.Equal(t, int64(15), a["rfm_score"])
	assert.Equal(t, scoring.SegmentChampions, a["rfm_segment"])

	assert.Equal(t, int64(400), b["recency_days"])
	assert.Equal(t, []any{int64(1), int64(1), int64(1)}, []any{b["r_score"], b["f_score"], b["m_score"]})
	assert.Equal(t, int64(3), b["rfm_score"])
	assert.Equal(t, scoring.SegmentLost, b["rfm_segment"])
}

func TestSupplierScorecard_Score(t *testing.T) {
	items := core.NewTable(gold.SilverRelation(gold.FactLineitem).Columns)
	for i := range 10 {
		var delay core.Value = int64(0)
		if i == 0 {
			delay = int64(3)
		}
		flag := "N"
		if i == 1 {
			flag = gold.ReturnFlagReturned
		}
		items.Append(core.Row{
			int64(i/2 + 1), int64(i%2 + 1), int64(7), "Brand#12", "STANDARD BRASS", "Manufacturer#1", "mid",
			int64(1), 100.0, 110.0, 80.0, 20.0, 0.05, flag, "AIR",
			int64(3), "Supplier#000000003", "JAPAN", "ASIA",
			int64(1), delay,
		})
	}

	v, ok := gold.Lookup(gold.SupplierScorecard)
	require.True(t, ok)
	out, err := eval.New(eval.Config{}).Evaluate(context.Background(), v.Definition, map[string]*core.Table{gold.FactLineitem: items})
	require.NoError(t, err)
	require.NoError(t, eval.Conform(out, v.Relation))
	require.Len(t, out.Rows, 1)

	rec := out.Records()[0]
	assert.Equal(t, 90.0, rec["on_time_delivery_pct"])
	assert.Equal(t, 10.0, rec["return_rate_pct"])
	assert.Equal(t, 20.0, rec["profit_margin_pct"])
	assert.Equal(t, 69.0, rec["supplier_score"])
	assert.Equal(t, int64(5), rec["num_orders"])
	assert.Equal(t, int64(1), rec["supplier_rank"])
	assert.Equal(t, int64(1), rec["supplier_tier"])
}

func TestSupplierScorecard_MatchesWeights(t *testing.T) {
	e := newEnv(t, goldtest.Default())
	_, err := e.sched.Refresh(context.Background(), []string{gold.SupplierScorecard})
	require.NoError(t, err)
	res := e.read(t, gold.SupplierScorecard)

	prev := math.Inf(1)
	for _, rec := range res.Records() {
		score, ok := rec["supplier_score"].(float64)
		if !ok {
			continue
		}
		want := 0.4*rec["on_time_delivery_pct"].(float64) +
			0.3*(100-rec["return_rate_pct"].(float64)) +
			0.3*rec["profit_margin_pct"].(float64)
		assert.InDelta(t, want, score, 0.006)
		assert.LessOrEqual(t, score, prev)
		prev = score
	}
}

func TestProductAndShipping(t *testing.T) {
	e := newEnv(t, goldtest.Default())
	_, err := e.sched.Refresh(context.Background(), []string{gold.ProductPerformance, gold.ShippingAnalysis})
	require.NoError(t, err)

	products := e.read(t, gold.ProductPerformance).Records()
	top := products[0]
	assert.Equal(t, int64(1), top["revenue_rank"])
	assert.Equal(t, int64(1), top["brand_revenue_rank"])
	assert.Equal(t, int64(1), top["revenue_quintile"])
	for _, p := range products {
		assert.LessOrEqual(t, p["net_revenue"].(float64), top["net_revenue"].(float64))
	}

	for _, s := range e.read(t, gold.ShippingAnalysis).Records() {
		p50, ok1 := s["p50_delivery_delay_days"].(float64)
		p90, ok2 := s["p90_delivery_delay_days"].(float64)
		if ok1 && ok2 {
			assert.LessOrEqual(t, p50, p90)
		}
		assert.LessOrEqual(t, s["on_time_items"].(int64), s["num_line_items"].(int64))
	}
}

func sumFloat(t *core.Table, col string) float64 {
	total := 0.0
	for _, v := range t.Column(col) {
		f, _ := core.AsFloat(v)
		total += f
	}
	return total
}
