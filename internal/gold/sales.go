package gold

import (
	"github.com/leapstack-labs/leapgold/internal/expr"
	"github.com/leapstack-labs/leapgold/internal/view"
	"github.com/leapstack-labs/leapgold/pkg/core"
)

// dailySales rolls line items up to order date, region and segment.
func dailySales() View {
	rel := &core.Relation{
		Name:        DailySales,
		Description: "Daily revenue, volume and margin per customer region and market segment",
		Clustering:  []string{"order_date", "region"},
		Columns: core.Schema{
			dateCol("order_date"),
			stringCol("year_month"),
			stringCol("region"),
			stringCol("market_segment"),
			intCol("num_orders"),
			intCol("num_customers"),
			intCol("num_line_items"),
			intCol("total_quantity"),
			floatCol("gross_revenue"),
			floatCol("net_revenue"),
			floatCol("total_profit"),
			floatCol("total_discount"),
			nullable(floatCol("avg_order_value")),
			nullable(floatCol("profit_margin_pct")),
		},
	}
	def := &view.Definition{
		Relation: DailySales,
		Sources:  []string{FactLineitem},
		Joins: []view.Join{
			{
				Source:  FactOrders,
				Kind:    view.JoinInner,
				On:      []view.JoinKey{{Left: "order_key", Right: "order_key"}},
				Columns: []string{"customer_key", "order_date", "market_segment", "customer_region"},
			},
			{
				Source:  DimDate,
				Kind:    view.JoinInner,
				On:      []view.JoinKey{{Left: "order_date", Right: "date_key"}},
				Columns: []string{"year_month"},
			},
		},
		Derive: []view.Projection{
			view.As("region", expr.Col("customer_region")),
			view.As("discount_amount", expr.Sub(expr.Col("gross_revenue"), expr.Col("net_revenue"))),
		},
		GroupBy: []string{"order_date", "year_month", "region", "market_segment"},
		Aggregates: []view.Aggregate{
			countDistinct("num_orders", "order_key"),
			countDistinct("num_customers", "customer_key"),
			countStar("num_line_items"),
			sum("total_quantity", "quantity"),
			sum("gross_revenue", "gross_revenue"),
			sum("net_revenue", "net_revenue"),
			sum("total_profit", "profit"),
			sum("total_discount", "discount_amount"),
		},
		Compute: []view.Projection{
			view.As("avg_order_value", expr.Ratio(expr.Col("net_revenue"), expr.Col("num_orders"), 1, 2)),
			view.As("profit_margin_pct", expr.Pct(expr.Col("total_profit"), expr.Col("net_revenue"))),
		},
		Select:  rel.Columns.Names(),
		OrderBy: []view.SortKey{view.Asc("order_date"), view.Asc("region"), view.Asc("market_segment")},
	}
	return View{Relation: rel, Definition: def}
}

// monthlySales rolls the daily rollup up to months and adds cumulative
// revenue and period-over-period growth per region and segment.
func monthlySales() View {
	rel := &core.Relation{
		Name:        MonthlySales,
		Description: "Monthly revenue per region and segment with cumulative revenue and MoM/YoY growth",
		Clustering:  []string{"year_month", "region"},
		Columns: core.Schema{
			stringCol("year_month"),
			stringCol("region"),
			stringCol("market_segment"),
			intCol("num_orders"),
			intCol("num_line_items"),
			intCol("total_quantity"),
			floatCol("gross_revenue"),
			floatCol("net_revenue"),
			floatCol("total_profit"),
			nullable(floatCol("avg_order_value")),
			nullable(floatCol("profit_margin_pct")),
			nullable(floatCol("cumulative_net_revenue")),
			nullable(floatCol("mom_growth_pct")),
			nullable(floatCol("yoy_growth_pct")),
		},
	}
	series := []string{"region", "market_segment"}
	byMonth := []view.SortKey{view.Asc("year_month")}
	def := &view.Definition{
		Relation: MonthlySales,
		Sources:  []string{DailySales},
		GroupBy:  []string{"year_month", "region", "market_segment"},
		Aggregates: []view.Aggregate{
			sum("num_orders", "num_orders"),
			sum("num_line_items", "num_line_items"),
			sum("total_quantity", "total_quantity"),
			sum("gross_revenue", "gross_revenue"),
			sum("net_revenue", "net_revenue"),
			sum("total_profit", "total_profit"),
		},
		Compute: []view.Projection{
			view.As("avg_order_value", expr.Ratio(expr.Col("net_revenue"), expr.Col("num_orders"), 1, 2)),
			view.As("profit_margin_pct", expr.Pct(expr.Col("total_profit"), expr.Col("net_revenue"))),
		},
		Windows: []view.Window{
			{Name: "cumulative_net_revenue", Func: view.WinRunningSum, Arg: expr.Col("net_revenue"), PartitionBy: series, OrderBy: byMonth},
			{Name: "prev_month_revenue", Func: view.WinLag, Arg: expr.Col("net_revenue"), Offset: 1, PartitionBy: series, OrderBy: byMonth},
			{Name: "prev_year_revenue", Func: view.WinLag, Arg: expr.Col("net_revenue"), Offset: 12, PartitionBy: series, OrderBy: byMonth},
		},
		Finalize: []view.Projection{
			view.As("mom_growth_pct", expr.Growth(expr.Col("net_revenue"), expr.Col("prev_month_revenue"))),
			view.As("yoy_growth_pct", expr.Growth(expr.Col("net_revenue"), expr.Col("prev_year_revenue"))),
		},
		Select:  rel.Columns.Names(),
		OrderBy: []view.SortKey{view.Asc("year_month"), view.Asc("region"), view.Asc("market_segment")},
	}
	return View{Relation: rel, Definition: def}
}

// executiveSummary is one row per calendar quarter.
func executiveSummary() View {
	rel := &core.Relation{
		Name:        ExecutiveSummary,
		Description: "Quarterly order KPIs with cumulative value and QoQ growth",
		Columns: core.Schema{
			stringCol("year_quarter"),
			intCol("total_orders"),
			intCol("active_customers"),
			floatCol("gross_order_value"),
			nullable(floatCol("avg_order_value")),
			nullable(floatCol("median_order_value")),
			nullable(floatCol("revenue_per_customer")),
			nullable(floatCol("cumulative_order_value")),
			nullable(floatCol("qoq_revenue_growth_pct")),
		},
	}
	byQuarter := []view.SortKey{view.Asc("year_quarter")}
	def := &view.Definition{
		Relation: ExecutiveSummary,
		Sources:  []string{FactOrders},
		Derive: []view.Projection{
			view.As("year_quarter", expr.YearQuarter(expr.Col("order_year"), expr.Col("order_quarter"))),
		},
		GroupBy: []string{"year_quarter"},
		Aggregates: []view.Aggregate{
			countDistinct("total_orders", "order_key"),
			countDistinct("active_customers", "customer_key"),
			sum("gross_order_value", "total_price"),
			avg("mean_order_value", "total_price"),
			percentile("p50_order_value", "total_price", 0.5),
		},
		Compute: []view.Projection{
			rounded("avg_order_value", "mean_order_value", 2),
			rounded("median_order_value", "p50_order_value", 2),
			view.As("revenue_per_customer", expr.Ratio(expr.Col("gross_order_value"), expr.Col("active_customers"), 1, 2)),
		},
		Windows: []view.Window{
			{Name: "cumulative_order_value", Func: view.WinRunningSum, Arg: expr.Col("gross_order_value"), OrderBy: byQuarter},
			{Name: "prev_quarter_value", Func: view.WinLag, Arg: expr.Col("gross_order_value"), Offset: 1, OrderBy: byQuarter},
		},
		Finalize: []view.Projection{
			view.As("qoq_revenue_growth_pct", expr.Growth(expr.Col("gross_order_value"), expr.Col("prev_quarter_value"))),
		},
		Select:  rel.Columns.Names(),
		OrderBy: byQuarter,
	}
	return View{Relation: rel, Definition: def}
}
