package analytics

import (
	"github.com/leapstack-labs/leapgold/internal/expr"
	"github.com/leapstack-labs/leapgold/internal/gold"
	"github.com/leapstack-labs/leapgold/internal/scoring"
	"github.com/leapstack-labs/leapgold/internal/view"
)

var (
	regionChoices = append([]string{"ALL"}, gold.Regions...)
	topN          = Param{Name: "top_n", Kind: KindInt, Default: "20", Min: 1, Max: 500, Description: "maximum rows returned"}
)

func queries() []*Query {
	return []*Query{
		{
			Name:        "revenue_by_region",
			Description: "Monthly net revenue, orders and margin by region",
			Params: []Param{
				{Name: "region", Kind: KindString, Default: "ALL", Choices: regionChoices},
				{Name: "start", Kind: KindMonth, Description: "first month, yyyy-MM"},
				{Name: "end", Kind: KindMonth, Description: "last month, yyyy-MM"},
			},
			build: revenueByRegion,
		},
		{
			Name:        "top_products",
			Description: "Brand and price band performance ranked by a metric",
			Params: []Param{
				{Name: "sort_by", Kind: KindString, Default: "net_revenue", Choices: []string{"net_revenue", "margin_pct", "return_rate_pct", "orders"}},
				topN,
			},
			build: topProducts,
		},
		{
			Name:        "executive_kpis",
			Description: "Quarterly executive summary trend",
			build:       executiveKPIs,
		},
		{
			Name:        "customer_360",
			Description: "Customer profile with RFM segment and scores",
			Params: []Param{
				{Name: "customer_id", Kind: KindInt, Required: true, Description: "customer key"},
			},
			build: customer360,
		},
		{
			Name:        "regional_revenue_pivot",
			Description: "Monthly net revenue with one column per region",
			Params: []Param{
				{Name: "start", Kind: KindMonth},
				{Name: "end", Kind: KindMonth},
			},
			build: regionalRevenuePivot,
		},
		{
			Name:        "segment_distribution",
			Description: "Customers and monetary value per RFM segment",
			build:       segmentDistribution,
		},
		{
			Name:        "supplier_leaderboard",
			Description: "Suppliers ranked by composite score",
			Params: []Param{
				{Name: "tier", Kind: KindInt, Min: 1, Max: gold.SupplierTiers, Description: "restrict to one supplier tier"},
				topN,
			},
			build: supplierLeaderboard,
		},
		{
			Name:        "shipping_sla",
			Description: "On-time delivery and delay percentiles per ship mode",
			Params: []Param{
				{Name: "region", Kind: KindString, Default: "ALL", Choices: regionChoices},
			},
			build: shippingSLA,
		},
		{
			Name:        "growth_leaders",
			Description: "Region and segment series with the highest month-over-month growth",
			Params: []Param{
				{Name: "month", Kind: KindMonth, Required: true},
				topN,
			},
			build: growthLeaders,
		},
		{
			Name:        "brand_margin_quartiles",
			Description: "Profit margin quartiles across each brand's products",
			build:       brandMarginQuartiles,
		},
		{
			Name:        "at_risk_customers",
			Description: "Highest value customers in a lapsing RFM segment",
			Params: []Param{
				{Name: "segment", Kind: KindString, Default: scoring.SegmentAtRisk, Choices: []string{
					scoring.SegmentAtRisk, scoring.SegmentHibernating, scoring.SegmentLost, scoring.SegmentNeedAttention,
				}},
				topN,
			},
			build: atRiskCustomers,
		},
		{
			Name:        "daily_revenue_trend",
			Description: "Daily net revenue with cumulative total and day-over-day growth",
			Params: []Param{
				{Name: "start", Kind: KindDate},
				{Name: "end", Kind: KindDate},
			},
			build: dailyRevenueTrend,
		},
	}
}

func revenueByRegion(a Args) *view.Definition {
	return &view.Definition{
		Sources: []string{gold.MonthlySales},
		Filters: monthRange(a, "region"),
		GroupBy: []string{"year_month", "region"},
		Aggregates: []view.Aggregate{
			{Name: "revenue", Func: view.AggSum, Arg: expr.Col("net_revenue")},
			{Name: "orders", Func: view.AggSum, Arg: expr.Col("num_orders")},
			{Name: "mean_margin", Func: view.AggAvg, Arg: expr.Col("profit_margin_pct")},
		},
		Compute: []view.Projection{
			view.As("net_revenue", expr.Round(expr.Col("revenue"), 0)),
			view.As("margin_pct", expr.Round(expr.Col("mean_margin"), 1)),
		},
		Select:  []string{"year_month", "region", "net_revenue", "orders", "margin_pct"},
		OrderBy: []view.SortKey{view.Asc("year_month"), view.Asc("region")},
	}
}

func topProducts(a Args) *view.Definition {
	return &view.Definition{
		Sources: []string{gold.ProductPerformance},
		GroupBy: []string{"brand", "price_band"},
		Aggregates: []view.Aggregate{
			{Name: "revenue", Func: view.AggSum, Arg: expr.Col("net_revenue")},
			{Name: "mean_margin", Func: view.AggAvg, Arg: expr.Col("profit_margin_pct")},
			{Name: "mean_return_rate", Func: view.AggAvg, Arg: expr.Col("return_rate_pct")},
			{Name: "orders", Func: view.AggSum, Arg: expr.Col("num_orders")},
		},
		Compute: []view.Projection{
			view.As("net_revenue", expr.Round(expr.Col("revenue"), 0)),
			view.As("margin_pct", expr.Round(expr.Col("mean_margin"), 1)),
			view.As("return_rate_pct", expr.Round(expr.Col("mean_return_rate"), 1)),
		},
		Select:  []string{"brand", "price_band", "net_revenue", "margin_pct", "return_rate_pct", "orders"},
		OrderBy: []view.SortKey{view.Desc(a.String("sort_by")), view.Asc("brand"), view.Asc("price_band")},
		Limit:   a.Int("top_n"),
	}
}

func executiveKPIs(Args) *view.Definition {
	return &view.Definition{
		Sources: []string{gold.ExecutiveSummary},
		Derive: []view.Projection{
			view.As("gross_value", expr.Round(expr.Col("gross_order_value"), 0)),
			view.As("avg_value", expr.Round(expr.Col("avg_order_value"), 0)),
			view.As("rev_per_customer", expr.Round(expr.Col("revenue_per_customer"), 0)),
		},
		Select: []string{
			"year_quarter", "total_orders", "active_customers", "gross_value", "avg_value",
			"median_order_value", "rev_per_customer", "qoq_revenue_growth_pct",
		},
		OrderBy: []view.SortKey{view.Asc("year_quarter")},
	}
}

func customer360(a Args) *view.Definition {
	return &view.Definition{
		Sources: []string{gold.DimCustomer},
		Filters: []expr.Expr{expr.Eq(expr.Col("customer_key"), expr.Lit(a.Int("customer_id")))},
		Joins: []view.Join{{
			Source: gold.CustomerRFM,
			Kind:   view.JoinLeft,
			On:     []view.JoinKey{{Left: "customer_key", Right: "customer_key"}},
			Columns: []string{
				"rfm_segment", "rfm_score", "r_score", "f_score", "m_score",
				"monetary", "frequency", "recency_days", "avg_order_value",
			},
		}},
		Derive: []view.Projection{
			view.As("lifetime_value", expr.Round(expr.Col("monetary"), 2)),
			view.As("total_orders", expr.Col("frequency")),
		},
		Select: []string{
			"customer_key", "customer_name", "market_segment", "nation_name", "region_name", "balance_tier",
			"rfm_segment", "rfm_score", "r_score", "f_score", "m_score",
			"lifetime_value", "total_orders", "recency_days", "avg_order_value",
		},
	}
}

func regionalRevenuePivot(a Args) *view.Definition {
	return &view.Definition{
		Sources: []string{gold.MonthlySales},
		Filters: monthRange(a, ""),
		GroupBy: []string{"year_month", "region"},
		Aggregates: []view.Aggregate{
			{Name: "revenue", Func: view.AggSum, Arg: expr.Col("net_revenue")},
		},
		Pivot: &view.Pivot{
			Keys:   []string{"year_month"},
			Column: "region",
			Value:  "revenue",
			Values: gold.Regions,
		},
		OrderBy: []view.SortKey{view.Asc("year_month")},
	}
}

func segmentDistribution(Args) *view.Definition {
	all := []view.SortKey{view.Asc("rfm_segment")}
	return &view.Definition{
		Sources: []string{gold.CustomerRFM},
		GroupBy: []string{"rfm_segment"},
		Aggregates: []view.Aggregate{
			{Name: "customers", Func: view.AggCountStar},
			{Name: "total_monetary", Func: view.AggSum, Arg: expr.Col("monetary")},
			{Name: "mean_monetary", Func: view.AggAvg, Arg: expr.Col("monetary")},
			{Name: "mean_recency", Func: view.AggAvg, Arg: expr.Col("recency_days")},
		},
		Windows: []view.Window{
			{Name: "running_customers", Func: view.WinRunningSum, Arg: expr.Col("customers"), OrderBy: all},
			{Name: "all_customers", Func: view.WinPartitionMax, Arg: expr.Col("running_customers")},
		},
		Finalize: []view.Projection{
			view.As("share_pct", expr.Pct(expr.Col("customers"), expr.Col("all_customers"))),
			view.As("avg_monetary", expr.Round(expr.Col("mean_monetary"), 2)),
			view.As("avg_recency_days", expr.Round(expr.Col("mean_recency"), 1)),
		},
		Select:  []string{"rfm_segment", "customers", "share_pct", "total_monetary", "avg_monetary", "avg_recency_days"},
		OrderBy: []view.SortKey{view.Desc("customers"), view.Asc("rfm_segment")},
	}
}

func supplierLeaderboard(a Args) *view.Definition {
	var filters []expr.Expr
	if a.Has("tier") {
		filters = append(filters, expr.Eq(expr.Col("supplier_tier"), expr.Lit(a.Int("tier"))))
	}
	return &view.Definition{
		Sources: []string{gold.SupplierScorecard},
		Filters: filters,
		Select: []string{
			"supplier_rank", "supplier_key", "supplier_name", "supplier_nation", "supplier_tier",
			"supplier_score", "on_time_delivery_pct", "return_rate_pct", "profit_margin_pct", "net_revenue",
		},
		OrderBy: []view.SortKey{view.Asc("supplier_rank"), view.Asc("supplier_key")},
		Limit:   a.Int("top_n"),
	}
}

func shippingSLA(a Args) *view.Definition {
	var filters []expr.Expr
	if r := a.String("region"); r != "" && r != "ALL" {
		filters = append(filters, expr.Eq(expr.Col("supplier_region"), expr.Lit(r)))
	}
	return &view.Definition{
		Sources: []string{gold.ShippingAnalysis},
		Filters: filters,
		Select: []string{
			"supplier_region", "ship_mode", "region_mode_rank", "num_line_items", "on_time_delivery_pct",
			"avg_delivery_delay_days", "p50_delivery_delay_days", "p90_delivery_delay_days",
		},
		OrderBy: []view.SortKey{view.Asc("supplier_region"), view.Asc("region_mode_rank"), view.Asc("ship_mode")},
	}
}

func growthLeaders(a Args) *view.Definition {
	return &view.Definition{
		Sources: []string{gold.MonthlySales},
		Filters: []expr.Expr{
			expr.Eq(expr.Col("year_month"), expr.Lit(a.String("month"))),
			expr.Not(expr.IsNull(expr.Col("mom_growth_pct"))),
		},
		Select:  []string{"year_month", "region", "market_segment", "net_revenue", "mom_growth_pct", "yoy_growth_pct"},
		OrderBy: []view.SortKey{view.Desc("mom_growth_pct"), view.Asc("region"), view.Asc("market_segment")},
		Limit:   a.Int("top_n"),
	}
}

func brandMarginQuartiles(Args) *view.Definition {
	margin := expr.Col("profit_margin_pct")
	return &view.Definition{
		Sources: []string{gold.ProductPerformance},
		GroupBy: []string{"brand"},
		Aggregates: []view.Aggregate{
			{Name: "products", Func: view.AggCountStar},
			{Name: "q1", Func: view.AggPercentileCont, Arg: margin, P: 0.25},
			{Name: "q2", Func: view.AggPercentileCont, Arg: margin, P: 0.5},
			{Name: "q3", Func: view.AggPercentileCont, Arg: margin, P: 0.75},
		},
		Compute: []view.Projection{
			view.As("p25_margin_pct", expr.Round(expr.Col("q1"), 2)),
			view.As("median_margin_pct", expr.Round(expr.Col("q2"), 2)),
			view.As("p75_margin_pct", expr.Round(expr.Col("q3"), 2)),
		},
		Select:  []string{"brand", "products", "p25_margin_pct", "median_margin_pct", "p75_margin_pct"},
		OrderBy: []view.SortKey{view.Asc("brand")},
	}
}

func atRiskCustomers(a Args) *view.Definition {
	return &view.Definition{
		Sources: []string{gold.CustomerRFM},
		Filters: []expr.Expr{expr.Eq(expr.Col("rfm_segment"), expr.Lit(a.String("segment")))},
		Select: []string{
			"customer_key", "rfm_segment", "r_score", "f_score", "m_score",
			"recency_days", "frequency", "monetary",
		},
		OrderBy: []view.SortKey{view.Desc("monetary"), view.Asc("customer_key")},
		Limit:   a.Int("top_n"),
	}
}

func dailyRevenueTrend(a Args) *view.Definition {
	var filters []expr.Expr
	if a.Has("start") {
		filters = append(filters, expr.Ge(expr.Col("order_date"), expr.Lit(a["start"])))
	}
	if a.Has("end") {
		filters = append(filters, expr.Le(expr.Col("order_date"), expr.Lit(a["end"])))
	}
	byDay := []view.SortKey{view.Asc("order_date")}
	return &view.Definition{
		Sources: []string{gold.DailySales},
		Filters: filters,
		GroupBy: []string{"order_date"},
		Aggregates: []view.Aggregate{
			{Name: "net_revenue", Func: view.AggSum, Arg: expr.Col("net_revenue")},
			{Name: "orders", Func: view.AggSum, Arg: expr.Col("num_orders")},
		},
		Windows: []view.Window{
			{Name: "cumulative_net_revenue", Func: view.WinRunningSum, Arg: expr.Col("net_revenue"), OrderBy: byDay},
			{Name: "prev_day_revenue", Func: view.WinLag, Arg: expr.Col("net_revenue"), Offset: 1, OrderBy: byDay},
		},
		Finalize: []view.Projection{
			view.As("dod_growth_pct", expr.Growth(expr.Col("net_revenue"), expr.Col("prev_day_revenue"))),
		},
		Select:  []string{"order_date", "net_revenue", "orders", "cumulative_net_revenue", "dod_growth_pct"},
		OrderBy: byDay,
	}
}

// monthRange filters year_month by the start and end arguments and, when
// regionCol is set, by the region argument.
func monthRange(a Args, regionCol string) []expr.Expr {
	var out []expr.Expr
	if r := a.String("region"); regionCol != "" && r != "" && r != "ALL" {
		out = append(out, expr.Eq(expr.Col(regionCol), expr.Lit(r)))
	}
	if a.Has("start") {
		out = append(out, expr.Ge(expr.Col("year_month"), expr.Lit(a.String("start"))))
	}
	if a.Has("end") {
		out = append(out, expr.Le(expr.Col("year_month"), expr.Lit(a.String("end"))))
	}
	return out
}
