// Package gold defines the silver input contract and the seven gold
// relations derived from it.
//
// Every gold relation is a view definition over silver or other gold
// relations. Column names and types are the output contract: changing
// either is a breaking change for consumers.
package gold

import (
	"github.com/leapstack-labs/leapgold/internal/catalog"
	"github.com/leapstack-labs/leapgold/internal/view"
	"github.com/leapstack-labs/leapgold/pkg/core"
)

// Gold relation names.
const (
	DailySales         = "gold_daily_sales"
	MonthlySales       = "gold_monthly_sales"
	ExecutiveSummary   = "gold_executive_summary"
	ProductPerformance = "gold_product_performance"
	CustomerRFM        = "gold_customer_rfm"
	ShippingAnalysis   = "gold_shipping_analysis"
	SupplierScorecard  = "gold_supplier_scorecard"
)

// View pairs a derived relation with its definition.
type View struct {
	Relation   *core.Relation
	Definition *view.Definition
}

// Views returns fresh copies of every gold view.
func Views() []View {
	builders := []func() View{
		dailySales,
		monthlySales,
		executiveSummary,
		productPerformance,
		customerRFM,
		shippingAnalysis,
		supplierScorecard,
	}
	out := make([]View, len(builders))
	for i, b := range builders {
		out[i] = b()
	}
	return out
}

// Register adds the silver contract and every gold view to cat. The
// catalog is left unsealed.
func Register(cat *catalog.Catalog) error {
	for _, rel := range Silver() {
		if err := cat.Register(rel); err != nil {
			return err
		}
	}
	for _, v := range Views() {
		if err := cat.RegisterView(v.Relation, v.Definition); err != nil {
			return err
		}
	}
	return nil
}

// NewCatalog returns a sealed catalog holding the silver contract and the
// gold views.
func NewCatalog(namespace string) (*catalog.Catalog, error) {
	cat := catalog.New(namespace)
	if err := Register(cat); err != nil {
		return nil, err
	}
	if _, err := cat.Seal(); err != nil {
		return nil, err
	}
	return cat, nil
}

// Lookup returns the gold view named name.
func Lookup(name string) (View, bool) {
	for _, v := range Views() {
		if v.Relation.Name == name {
			return v, true
		}
	}
	return View{}, false
}
