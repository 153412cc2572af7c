package gold

import (
	"github.com/leapstack-labs/leapgold/internal/expr"
	"github.com/leapstack-labs/leapgold/internal/view"
	"github.com/leapstack-labs/leapgold/pkg/core"
)

// productPerformance ranks part groups by net revenue, overall and within
// their brand, and buckets them into revenue quintiles.
func productPerformance() View {
	rel := &core.Relation{
		Name:        ProductPerformance,
		Description: "Revenue, margin and return rate per brand, part type, manufacturer and price band",
		Clustering:  []string{"brand"},
		Columns: core.Schema{
			stringCol("brand"),
			stringCol("part_type"),
			stringCol("manufacturer"),
			stringCol("price_band"),
			intCol("num_orders"),
			intCol("num_line_items"),
			intCol("total_quantity"),
			floatCol("gross_revenue"),
			floatCol("net_revenue"),
			floatCol("total_profit"),
			nullable(floatCol("avg_discount")),
			intCol("returned_items"),
			nullable(floatCol("profit_margin_pct")),
			nullable(floatCol("return_rate_pct")),
			intCol("revenue_rank"),
			intCol("brand_revenue_rank"),
			intCol("revenue_quintile"),
		},
	}
	keys := []string{"brand", "part_type", "manufacturer", "price_band"}
	byRevenue := []view.SortKey{view.Desc("net_revenue")}
	def := &view.Definition{
		Relation: ProductPerformance,
		Sources:  []string{FactLineitem},
		Derive: []view.Projection{
			view.As("is_returned", returned()),
		},
		GroupBy: keys,
		Aggregates: []view.Aggregate{
			countDistinct("num_orders", "order_key"),
			countStar("num_line_items"),
			sum("total_quantity", "quantity"),
			sum("gross_revenue", "gross_revenue"),
			sum("net_revenue", "net_revenue"),
			sum("total_profit", "profit"),
			avg("mean_discount", "discount"),
			sum("returned_items", "is_returned"),
		},
		Compute: []view.Projection{
			rounded("avg_discount", "mean_discount", 4),
			view.As("profit_margin_pct", expr.Pct(expr.Col("total_profit"), expr.Col("net_revenue"))),
			view.As("return_rate_pct", expr.Pct(expr.Col("returned_items"), expr.Col("num_line_items"))),
		},
		Windows: []view.Window{
			{Name: "revenue_rank", Func: view.WinRank, OrderBy: byRevenue},
			{Name: "brand_revenue_rank", Func: view.WinRank, PartitionBy: []string{"brand"}, OrderBy: byRevenue},
			{
				Name:    "revenue_quintile",
				Func:    view.WinNTile,
				Buckets: 5,
				OrderBy: []view.SortKey{
					view.Desc("net_revenue"),
					view.Asc("brand"), view.Asc("part_type"), view.Asc("manufacturer"), view.Asc("price_band"),
				},
			},
		},
		Select: rel.Columns.Names(),
		OrderBy: []view.SortKey{
			view.Asc("revenue_rank"),
			view.Asc("brand"), view.Asc("part_type"), view.Asc("manufacturer"), view.Asc("price_band"),
		},
	}
	return View{Relation: rel, Definition: def}
}
