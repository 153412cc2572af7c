package scoring

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapgold/internal/eval"
	"github.com/leapstack-labs/leapgold/internal/view"
	"github.com/leapstack-labs/leapgold/pkg/core"
)

func rfmScorer() QuantileScorer {
	return QuantileScorer{
		Buckets: 5,
		Dimensions: []Dimension{
			{Name: "r_score", Column: "recency_days"},
			{Name: "f_score", Column: "frequency", HigherIsBetter: true},
			{Name: "m_score", Column: "monetary", HigherIsBetter: true},
		},
		TieBreak: []view.SortKey{view.Asc("customer_key")},
	}
}

func rfmDefinition() *view.Definition {
	q := rfmScorer()
	return &view.Definition{
		Relation: "rfm",
		Sources:  []string{"customers"},
		Windows:  q.Windows(),
		Finalize: []view.Projection{
			view.As("rfm_score", q.Composite()),
			view.As("rfm_segment", Classify(RFMRules("r_score", "f_score", "m_score"), SegmentNeedAttention)),
		},
		OrderBy: []view.SortKey{view.Asc("customer_key")},
	}
}

func TestRFM_ChampionsAndLost(t *testing.T) {
	tbl := &core.Table{Columns: core.Schema{
		{Name: "customer_key", Type: core.TypeInt},
		{Name: "recency_days", Type: core.TypeInt},
		{Name: "frequency", Type: core.TypeInt},
		{Name: "monetary", Type: core.TypeFloat},
	}}
	// A is customer 1, B is customer 2; 18 others fill the middle.
	tbl.Rows = append(tbl.Rows,
		core.Row{int64(1), int64(5), int64(20), 50000.0},
		core.Row{int64(2), int64(400), int64(1), 80.0},
	)
	for i := range 18 {
		tbl.Rows = append(tbl.Rows, core.Row{int64(10 + i), int64(20 + 10*i), int64(2 + i%10), 500.0 + 100*float64(i)})
	}

	out, err := eval.New(eval.Config{}).Evaluate(context.Background(), rfmDefinition(), map[string]*core.Table{"customers": tbl})
	require.NoError(t, err)

	a, b := out.Rows[0], out.Rows[1]
	assert.Equal(t, core.Row{int64(1), int64(5), int64(20), 50000.0, int64(5), int64(5), int64(5), int64(15), SegmentChampions}, a)
	assert.Equal(t, core.Row{int64(2), int64(400), int64(1), 80.0, int64(1), int64(1), int64(1), int64(3), SegmentLost}, b)
}

// oracle is the rule list written as plain control flow.
func oracle(r, f, m int) string {
	switch {
	case r >= 4 && f >= 4 && m >= 4:
		return SegmentChampions
	case r >= 3 && f >= 3:
		return SegmentLoyal
	case r >= 4 && f <= 2:
		return SegmentNew
	case r <= 2 && f >= 3 && m >= 3:
		return SegmentAtRisk
	case r <= 2 && f <= 2 && m >= 3:
		return SegmentHibernating
	case r <= 2 && f <= 2:
		return SegmentLost
	}
	return SegmentNeedAttention
}

func TestClassify_FirstMatchWins(t *testing.T) {
	schema := core.Schema{
		{Name: "r", Type: core.TypeInt},
		{Name: "f", Type: core.TypeInt},
		{Name: "m", Type: core.TypeInt},
	}
	b, err := Classify(RFMRules("r", "f", "m"), SegmentNeedAttention).Bind(schema)
	require.NoError(t, err)

	for r := 1; r <= 5; r++ {
		for f := 1; f <= 5; f++ {
			for m := 1; m <= 5; m++ {
				got := b.Eval(core.Row{int64(r), int64(f), int64(m)})
				assert.Equal(t, oracle(r, f, m), got, fmt.Sprintf("r=%d f=%d m=%d", r, f, m))
			}
		}
	}

	// r=5 f=5 m=1 has the same composite as many Champions but is Loyal
	assert.Equal(t, SegmentLoyal, b.Eval(core.Row{int64(5), int64(5), int64(1)}))
	// r=3 f=2 m=5 matches nothing and falls through
	assert.Equal(t, SegmentNeedAttention, b.Eval(core.Row{int64(3), int64(2), int64(5)}))
}

func TestScorecard_SupplierScore(t *testing.T) {
	sc := SupplierScorecard()
	require.NoError(t, sc.Validate())

	schema := core.Schema{
		{Name: "on_time_delivery_pct", Type: core.TypeFloat, Nullable: true},
		{Name: "return_rate_pct", Type: core.TypeFloat, Nullable: true},
		{Name: "profit_margin_pct", Type: core.TypeFloat, Nullable: true},
	}
	b, err := sc.Expr().Bind(schema)
	require.NoError(t, err)

	assert.Equal(t, 69.0, b.Eval(core.Row{90.0, 10.0, 20.0}))
	assert.Equal(t, 30.0, b.Eval(core.Row{0.0, 100.0, 100.0}))
	assert.Nil(t, b.Eval(core.Row{90.0, nil, 20.0}))
}

func TestScorecard_Validate(t *testing.T) {
	assert.Error(t, Scorecard{}.Validate())
	assert.Error(t, Scorecard{Terms: []Term{{Column: "a", Weight: 0.5}}}.Validate())
	assert.Error(t, Scorecard{Terms: []Term{{Column: "a", Weight: 1.5}, {Column: "b", Weight: -0.5}}}.Validate())
	assert.NoError(t, Scorecard{Terms: []Term{{Column: "a", Weight: 0.4}, {Column: "b", Weight: 0.6}}}.Validate())
}

func TestQuantileScorer(t *testing.T) {
	q := rfmScorer()
	require.NoError(t, q.Validate())

	w := q.Windows()
	require.Len(t, w, 3)
	assert.True(t, w[0].OrderBy[0].Desc, "recency is bucketed descending")
	assert.False(t, w[1].OrderBy[0].Desc)
	assert.Equal(t, "customer_key", w[2].OrderBy[1].Column)
	assert.Equal(t, "ADD(ADD(r_score, f_score), m_score)", q.Composite().String())

	assert.Error(t, QuantileScorer{Buckets: 5}.Validate())
}
