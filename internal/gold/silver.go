package gold

import "github.com/leapstack-labs/leapgold/pkg/core"

// Silver relation names.
const (
	FactOrders   = "fact_orders"
	FactLineitem = "fact_lineitem"
	DimCustomer  = "dim_customer"
	DimDate      = "dim_date"
)

// ReturnFlagReturned marks a returned line item.
const ReturnFlagReturned = "R"

// Regions are the customer and supplier regions of the silver data.
var Regions = []string{"AFRICA", "AMERICA", "ASIA", "EUROPE", "MIDDLE EAST"}

// Silver returns the base relations the gold layer reads.
func Silver() []*core.Relation {
	return []*core.Relation{
		{
			Name:        FactOrders,
			Kind:        core.KindBase,
			Description: "One row per order",
			Columns: core.Schema{
				{Name: "order_key", Type: core.TypeInt},
				{Name: "customer_key", Type: core.TypeInt},
				{Name: "order_date", Type: core.TypeDate},
				{Name: "order_year", Type: core.TypeInt},
				{Name: "order_quarter", Type: core.TypeInt},
				{Name: "total_price", Type: core.TypeFloat},
				{Name: "market_segment", Type: core.TypeString},
				{Name: "customer_region", Type: core.TypeString},
			},
		},
		{
			Name:        FactLineitem,
			Kind:        core.KindBase,
			Description: "One row per order line with part and supplier attributes",
			Columns: core.Schema{
				{Name: "order_key", Type: core.TypeInt},
				{Name: "line_number", Type: core.TypeInt},
				{Name: "part_key", Type: core.TypeInt},
				{Name: "brand", Type: core.TypeString},
				{Name: "part_type", Type: core.TypeString},
				{Name: "manufacturer", Type: core.TypeString},
				{Name: "price_band", Type: core.TypeString},
				{Name: "quantity", Type: core.TypeInt},
				{Name: "net_revenue", Type: core.TypeFloat},
				{Name: "gross_revenue", Type: core.TypeFloat},
				{Name: "supply_cost", Type: core.TypeFloat},
				{Name: "profit", Type: core.TypeFloat},
				{Name: "discount", Type: core.TypeFloat},
				{Name: "return_flag", Type: core.TypeString},
				{Name: "ship_mode", Type: core.TypeString},
				{Name: "supplier_key", Type: core.TypeInt},
				{Name: "supplier_name", Type: core.TypeString},
				{Name: "supplier_nation", Type: core.TypeString},
				{Name: "supplier_region", Type: core.TypeString},
				{Name: "ship_delay_days", Type: core.TypeInt, Nullable: true},
				{Name: "delivery_delay_days", Type: core.TypeInt, Nullable: true},
			},
		},
		{
			Name:        DimCustomer,
			Kind:        core.KindBase,
			Description: "Customer dimension",
			Columns: core.Schema{
				{Name: "customer_key", Type: core.TypeInt},
				{Name: "customer_name", Type: core.TypeString},
				{Name: "market_segment", Type: core.TypeString},
				{Name: "nation_name", Type: core.TypeString},
				{Name: "region_name", Type: core.TypeString},
				{Name: "balance_tier", Type: core.TypeString},
			},
		},
		{
			Name:        DimDate,
			Kind:        core.KindBase,
			Description: "Calendar dimension",
			Columns: core.Schema{
				{Name: "date_key", Type: core.TypeDate},
				{Name: "year", Type: core.TypeInt},
				{Name: "quarter", Type: core.TypeInt},
				{Name: "month", Type: core.TypeInt},
				{Name: "year_month", Type: core.TypeString},
				{Name: "is_weekend", Type: core.TypeBool},
			},
		},
	}
}

// SilverRelation returns the silver relation named name, or nil.
func SilverRelation(name string) *core.Relation {
	for _, rel := range Silver() {
		if rel.Name == name {
			return rel
		}
	}
	return nil
}
