package gold

import (
	"github.com/leapstack-labs/leapgold/internal/expr"
	"github.com/leapstack-labs/leapgold/internal/scoring"
	"github.com/leapstack-labs/leapgold/internal/view"
	"github.com/leapstack-labs/leapgold/pkg/core"
)

// RFMBuckets is the number of quantile buckets per RFM dimension.
const RFMBuckets = 5

// RFMScorer scores customers on recency, frequency and monetary value.
// Recency is bucketed on the last order date: the later the date, the
// fewer days since the latest order in the data set and the higher the
// score.
func RFMScorer() scoring.QuantileScorer {
	return scoring.QuantileScorer{
		Buckets: RFMBuckets,
		Dimensions: []scoring.Dimension{
			{Name: "r_score", Column: "last_order_date", HigherIsBetter: true},
			{Name: "f_score", Column: "frequency", HigherIsBetter: true},
			{Name: "m_score", Column: "monetary", HigherIsBetter: true},
		},
		TieBreak: []view.SortKey{view.Asc("customer_key")},
	}
}

// customerRFM segments every customer with at least one order.
func customerRFM() View {
	rel := &core.Relation{
		Name:        CustomerRFM,
		Description: "Per-customer recency, frequency and monetary scores with RFM segment",
		Clustering:  []string{"rfm_segment"},
		Columns: core.Schema{
			intCol("customer_key"),
			dateCol("first_order_date"),
			dateCol("last_order_date"),
			intCol("recency_days"),
			intCol("frequency"),
			floatCol("monetary"),
			nullable(floatCol("avg_order_value")),
			intCol("r_score"),
			intCol("f_score"),
			intCol("m_score"),
			intCol("rfm_score"),
			stringCol("rfm_segment"),
		},
	}
	scorer := RFMScorer()
	windows := []view.Window{
		{Name: "as_of_date", Func: view.WinPartitionMax, Arg: expr.Col("last_order_date")},
	}
	windows = append(windows, scorer.Windows()...)

	def := &view.Definition{
		Relation: CustomerRFM,
		Sources:  []string{FactOrders},
		GroupBy:  []string{"customer_key"},
		Aggregates: []view.Aggregate{
			{Name: "first_order_date", Func: view.AggMin, Arg: expr.Col("order_date")},
			{Name: "last_order_date", Func: view.AggMax, Arg: expr.Col("order_date")},
			countDistinct("frequency", "order_key"),
			sum("monetary", "total_price"),
		},
		Compute: []view.Projection{
			view.As("avg_order_value", expr.Ratio(expr.Col("monetary"), expr.Col("frequency"), 1, 2)),
		},
		Windows: windows,
		Finalize: []view.Projection{
			view.As("recency_days", expr.DaysBetween(expr.Col("last_order_date"), expr.Col("as_of_date"))),
			view.As("rfm_score", scorer.Composite()),
			view.As("rfm_segment", scoring.Classify(scoring.RFMRules("r_score", "f_score", "m_score"), scoring.SegmentNeedAttention)),
		},
		Select:  rel.Columns.Names(),
		OrderBy: []view.SortKey{view.Asc("customer_key")},
	}
	return View{Relation: rel, Definition: def}
}
