package eval

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapgold/internal/expr"
	"github.com/leapstack-labs/leapgold/internal/view"
	"github.com/leapstack-labs/leapgold/pkg/core"
)

func monthly(region string, months int) []core.Row {
	rows := make([]core.Row, months)
	for m := range months {
		rows[m] = core.Row{region, fmt.Sprintf("1995-%02d", m+1), float64(100 * (m + 1))}
	}
	return rows
}

func monthlySchema() core.Schema {
	return core.Schema{
		{Name: "region", Type: core.TypeString},
		{Name: "year_month", Type: core.TypeString},
		{Name: "revenue", Type: core.TypeFloat},
	}
}

func TestWindow_LagGrowthIsNullWithoutHistory(t *testing.T) {
	tbl := &core.Table{Columns: monthlySchema()}
	// reversed input order must not matter
	rows := monthly("EUROPE", 6)
	for i := len(rows) - 1; i >= 0; i-- {
		tbl.Rows = append(tbl.Rows, rows[i])
	}
	tbl.Rows = append(tbl.Rows, monthly("ASIA", 3)...)

	def := &view.Definition{
		Relation: "growth",
		Sources:  []string{"m"},
		Windows: []view.Window{
			{Name: "prev_1", Func: view.WinLag, Arg: expr.Col("revenue"), Offset: 1,
				PartitionBy: []string{"region"}, OrderBy: []view.SortKey{view.Asc("year_month")}},
			{Name: "prev_12", Func: view.WinLag, Arg: expr.Col("revenue"), Offset: 12,
				PartitionBy: []string{"region"}, OrderBy: []view.SortKey{view.Asc("year_month")}},
			{Name: "cumulative", Func: view.WinRunningSum, Arg: expr.Col("revenue"),
				PartitionBy: []string{"region"}, OrderBy: []view.SortKey{view.Asc("year_month")}},
		},
		Finalize: []view.Projection{
			view.As("mom", expr.Growth(expr.Col("revenue"), expr.Col("prev_1"))),
			view.As("yoy", expr.Growth(expr.Col("revenue"), expr.Col("prev_12"))),
		},
		Select:  []string{"region", "year_month", "cumulative", "mom", "yoy"},
		OrderBy: []view.SortKey{view.Asc("region"), view.Asc("year_month")},
	}

	out, err := New(Config{}).Evaluate(context.Background(), def, map[string]*core.Table{"m": tbl})
	require.NoError(t, err)
	require.Len(t, out.Rows, 9)

	europe := out.Rows[3:]
	for i, row := range europe {
		assert.Nil(t, row[4], "yoy must be null with 6 months of history (row %d)", i)
	}
	assert.Nil(t, europe[0][3])
	assert.Equal(t, 100.0, europe[1][3]) // 200 vs 100
	assert.Equal(t, 50.0, europe[2][3])  // 300 vs 200
	assert.Equal(t, 2100.0, europe[5][2])

	asia := out.Rows[:3]
	assert.Equal(t, []core.Value{100.0, 300.0, 600.0}, []core.Value{asia[0][2], asia[1][2], asia[2][2]})
}

func TestWindow_RunningSumTieBreakByInputOrder(t *testing.T) {
	tbl := &core.Table{
		Columns: core.Schema{{Name: "k", Type: core.TypeInt}, {Name: "v", Type: core.TypeInt}},
		Rows:    []core.Row{{int64(1), int64(5)}, {int64(1), int64(7)}, {int64(0), int64(1)}},
	}
	def := &view.Definition{
		Relation: "rs",
		Sources:  []string{"t"},
		Windows: []view.Window{{Name: "cum", Func: view.WinRunningSum, Arg: expr.Col("v"),
			OrderBy: []view.SortKey{view.Asc("k")}}},
	}
	out, err := New(Config{}).Evaluate(context.Background(), def, map[string]*core.Table{"t": tbl})
	require.NoError(t, err)
	// order: (0,1), (1,5), (1,7) with ties kept in input order
	assert.Equal(t, int64(6), out.Rows[0][2])
	assert.Equal(t, int64(13), out.Rows[1][2])
	assert.Equal(t, int64(1), out.Rows[2][2])
}

func TestNTile_Balance(t *testing.T) {
	for m := 0; m <= 40; m++ {
		for _, k := range []int{1, 2, 3, 4, 5, 7} {
			sizes := make(map[int]int)
			prev := 1
			for pos := range m {
				b := NTile(pos, m, k)
				require.GreaterOrEqual(t, b, prev, "buckets must be non-decreasing")
				require.LessOrEqual(t, b, k)
				prev = b
				sizes[b]++
			}
			lo, hi := m/k, (m+k-1)/k
			for b, n := range sizes {
				assert.True(t, n == lo || n == hi, "m=%d k=%d bucket %d has %d rows", m, k, b, n)
				if b > 1 {
					assert.LessOrEqual(t, n, sizes[b-1], "earlier buckets take the extra rows")
				}
			}
		}
	}
}

func TestNTile_Examples(t *testing.T) {
	got := make([]int, 7)
	for pos := range 7 {
		got[pos] = NTile(pos, 7, 3)
	}
	assert.Equal(t, []int{1, 1, 1, 2, 2, 3, 3}, got)

	got = got[:3]
	for pos := range 3 {
		got[pos] = NTile(pos, 3, 5)
	}
	assert.Equal(t, []int{1, 2, 3}, got)
}

func TestWindow_RankRowNumberNTilePartitionMax(t *testing.T) {
	tbl := &core.Table{
		Columns: core.Schema{{Name: "name", Type: core.TypeString}, {Name: "score", Type: core.TypeFloat, Nullable: true}},
		Rows: []core.Row{
			{"a", 10.0}, {"b", 30.0}, {"c", 30.0}, {"d", nil}, {"e", 20.0},
		},
	}
	def := &view.Definition{
		Relation: "ranked",
		Sources:  []string{"t"},
		Windows: []view.Window{
			{Name: "rnk", Func: view.WinRank, OrderBy: []view.SortKey{view.Desc("score")}},
			{Name: "rn", Func: view.WinRowNumber, OrderBy: []view.SortKey{view.Desc("score")}},
			{Name: "tile", Func: view.WinNTile, Buckets: 2, OrderBy: []view.SortKey{view.Desc("score")}},
			{Name: "best", Func: view.WinPartitionMax, Arg: expr.Col("score")},
		},
	}
	out, err := New(Config{}).Evaluate(context.Background(), def, map[string]*core.Table{"t": tbl})
	require.NoError(t, err)

	want := map[string][]core.Value{
		"b": {int64(1), int64(1), int64(1), 30.0},
		"c": {int64(1), int64(2), int64(1), 30.0},
		"e": {int64(3), int64(3), int64(1), 30.0},
		"a": {int64(4), int64(4), int64(2), 30.0},
		"d": {int64(5), int64(5), int64(2), 30.0}, // NULL sorts last descending
	}
	for _, row := range out.Rows {
		assert.Equal(t, want[row[0].(string)], []core.Value(row[2:]), "row %s", row[0])
	}
}

func TestPivot(t *testing.T) {
	tbl := &core.Table{
		Columns: core.Schema{
			{Name: "year_month", Type: core.TypeString},
			{Name: "region", Type: core.TypeString},
			{Name: "revenue", Type: core.TypeFloat},
		},
		Rows: []core.Row{
			{"1995-02", "ASIA", 5.0},
			{"1995-01", "ASIA", 1.0},
			{"1995-01", "ASIA", 2.0},
			{"1995-01", "MIDDLE EAST", 3.0},
			{"1995-01", "ATLANTIS", 99.0},
		},
	}
	def := &view.Definition{
		Relation: "wide",
		Sources:  []string{"t"},
		Pivot: &view.Pivot{
			Keys: []string{"year_month"}, Column: "region", Value: "revenue",
			Values: []string{"ASIA", "EUROPE", "MIDDLE EAST"}, Prefix: "rev_",
		},
	}
	out, err := New(Config{}).Evaluate(context.Background(), def, map[string]*core.Table{"t": tbl})
	require.NoError(t, err)

	assert.Equal(t, []string{"year_month", "rev_asia", "rev_europe", "rev_middle_east"}, out.Columns.Names())
	assert.Equal(t, []core.Row{
		{"1995-01", 3.0, nil, 3.0},
		{"1995-02", 5.0, nil, nil},
	}, out.Rows)
}
