package gold

import (
	"github.com/leapstack-labs/leapgold/internal/expr"
	"github.com/leapstack-labs/leapgold/internal/scoring"
	"github.com/leapstack-labs/leapgold/internal/view"
	"github.com/leapstack-labs/leapgold/pkg/core"
)

// shippingAnalysis measures delays and on-time delivery per ship mode and
// supplier region.
func shippingAnalysis() View {
	rel := &core.Relation{
		Name:        ShippingAnalysis,
		Description: "Ship and delivery delays per ship mode and supplier region",
		Columns: core.Schema{
			stringCol("ship_mode"),
			stringCol("supplier_region"),
			intCol("num_line_items"),
			floatCol("net_revenue"),
			nullable(floatCol("avg_ship_delay_days")),
			nullable(floatCol("avg_delivery_delay_days")),
			nullable(floatCol("p50_delivery_delay_days")),
			nullable(floatCol("p90_delivery_delay_days")),
			intCol("on_time_items"),
			nullable(floatCol("on_time_delivery_pct")),
			intCol("region_mode_rank"),
		},
	}
	def := &view.Definition{
		Relation: ShippingAnalysis,
		Sources:  []string{FactLineitem},
		Derive: []view.Projection{
			view.As("is_on_time", onTime()),
		},
		GroupBy: []string{"ship_mode", "supplier_region"},
		Aggregates: []view.Aggregate{
			countStar("num_line_items"),
			sum("net_revenue", "net_revenue"),
			avg("mean_ship_delay", "ship_delay_days"),
			avg("mean_delivery_delay", "delivery_delay_days"),
			percentile("p50_delivery_delay", "delivery_delay_days", 0.5),
			percentile("p90_delivery_delay", "delivery_delay_days", 0.9),
			sum("on_time_items", "is_on_time"),
		},
		Compute: []view.Projection{
			rounded("avg_ship_delay_days", "mean_ship_delay", 2),
			rounded("avg_delivery_delay_days", "mean_delivery_delay", 2),
			rounded("p50_delivery_delay_days", "p50_delivery_delay", 2),
			rounded("p90_delivery_delay_days", "p90_delivery_delay", 2),
			view.As("on_time_delivery_pct", expr.Pct(expr.Col("on_time_items"), expr.Col("num_line_items"))),
		},
		Windows: []view.Window{
			{
				Name:        "region_mode_rank",
				Func:        view.WinRank,
				PartitionBy: []string{"supplier_region"},
				OrderBy:     []view.SortKey{view.Desc("on_time_delivery_pct")},
			},
		},
		Select:  rel.Columns.Names(),
		OrderBy: []view.SortKey{view.Asc("supplier_region"), view.Asc("region_mode_rank"), view.Asc("ship_mode")},
	}
	return View{Relation: rel, Definition: def}
}

// SupplierTiers is the number of supplier tiers.
const SupplierTiers = 4

// supplierScorecard scores suppliers on delivery, returns and margin.
func supplierScorecard() View {
	rel := &core.Relation{
		Name:        SupplierScorecard,
		Description: "Weighted supplier score from on-time delivery, return rate and margin",
		Columns: core.Schema{
			intCol("supplier_key"),
			stringCol("supplier_name"),
			stringCol("supplier_nation"),
			stringCol("supplier_region"),
			intCol("num_orders"),
			intCol("num_line_items"),
			floatCol("net_revenue"),
			floatCol("total_profit"),
			nullable(floatCol("avg_delivery_delay_days")),
			nullable(floatCol("on_time_delivery_pct")),
			nullable(floatCol("return_rate_pct")),
			nullable(floatCol("profit_margin_pct")),
			nullable(floatCol("supplier_score")),
			intCol("supplier_rank"),
			intCol("supplier_tier"),
		},
	}
	def := &view.Definition{
		Relation: SupplierScorecard,
		Sources:  []string{FactLineitem},
		Derive: []view.Projection{
			view.As("is_on_time", onTime()),
			view.As("is_returned", returned()),
		},
		GroupBy: []string{"supplier_key", "supplier_name", "supplier_nation", "supplier_region"},
		Aggregates: []view.Aggregate{
			countDistinct("num_orders", "order_key"),
			countStar("num_line_items"),
			sum("net_revenue", "net_revenue"),
			sum("total_profit", "profit"),
			avg("mean_delivery_delay", "delivery_delay_days"),
			sum("on_time_items", "is_on_time"),
			sum("returned_items", "is_returned"),
		},
		Compute: []view.Projection{
			rounded("avg_delivery_delay_days", "mean_delivery_delay", 2),
			view.As("on_time_delivery_pct", expr.Pct(expr.Col("on_time_items"), expr.Col("num_line_items"))),
			view.As("return_rate_pct", expr.Pct(expr.Col("returned_items"), expr.Col("num_line_items"))),
			view.As("profit_margin_pct", expr.Pct(expr.Col("total_profit"), expr.Col("net_revenue"))),
			view.As("supplier_score", scoring.SupplierScorecard().Expr()),
		},
		Windows: []view.Window{
			{Name: "supplier_rank", Func: view.WinRank, OrderBy: []view.SortKey{view.Desc("supplier_score")}},
			{
				Name:    "supplier_tier",
				Func:    view.WinNTile,
				Buckets: SupplierTiers,
				OrderBy: []view.SortKey{view.Desc("supplier_score"), view.Asc("supplier_key")},
			},
		},
		Select:  rel.Columns.Names(),
		OrderBy: []view.SortKey{view.Asc("supplier_rank"), view.Asc("supplier_key")},
	}
	return View{Relation: rel, Definition: def}
}
