// Package goldtest generates deterministic silver data sets for tests of
// the gold layer.
package goldtest

import (
	"context"
	"encoding/csv"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"github.com/leapstack-labs/leapgold/internal/gold"
	"github.com/leapstack-labs/leapgold/internal/ratio"
	"github.com/leapstack-labs/leapgold/pkg/core"
)

// Regions and segments used by the generator.
var (
	Regions  = gold.Regions
	Segments = []string{"AUTOMOBILE", "BUILDING", "FURNITURE", "HOUSEHOLD", "MACHINERY"}
	Brands   = []string{"Brand#11", "Brand#12", "Brand#23", "Brand#34", "Brand#45"}
	Modes    = []string{"AIR", "MAIL", "RAIL", "SHIP", "TRUCK"}
	Bands    = []string{"budget", "mid", "premium"}
	nations  = []string{"KENYA", "BRAZIL", "JAPAN", "FRANCE", "EGYPT"}
)

// Config sizes a generated data set.
type Config struct {
	Seed      uint64
	Customers int
	Orders    int
	Suppliers int
	// Start and Months bound the order dates.
	Start  time.Time
	Months int
}

// DefaultConfig is a small two-year data set.
func DefaultConfig() Config {
	return Config{
		Seed:      42,
		Customers: 60,
		Orders:    2000,
		Suppliers: 8,
		Start:     core.Date(2023, time.January, 1),
		Months:    24,
	}
}

// Dataset is a silver data set keyed by relation name.
type Dataset map[string]*core.Table

// Generate builds the four silver relations. The same config always yields
// the same rows.
func Generate(cfg Config) Dataset {
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	end := cfg.Start.AddDate(0, cfg.Months, 0)
	days := int(end.Sub(cfg.Start).Hours() / 24)

	ds := Dataset{}
	for _, rel := range gold.Silver() {
		ds[rel.Name] = core.NewTable(rel.Columns)
	}

	for d := range days {
		date := cfg.Start.AddDate(0, 0, d)
		ds[gold.DimDate].Append(core.Row{
			date,
			int64(date.Year()),
			int64((int(date.Month())-1)/3 + 1),
			int64(date.Month()),
			date.Format("2006-01"),
			date.Weekday() == time.Saturday || date.Weekday() == time.Sunday,
		})
	}

	for c := 1; c <= cfg.Customers; c++ {
		ds[gold.DimCustomer].Append(core.Row{
			int64(c),
			customerName(c),
			segmentOf(c),
			nations[c%len(nations)],
			Regions[c%len(Regions)],
			[]string{"low", "medium", "high"}[c%3],
		})
	}

	for o := 1; o <= cfg.Orders; o++ {
		cust := rng.IntN(cfg.Customers) + 1
		date := cfg.Start.AddDate(0, 0, rng.IntN(days))

		total := 0.0
		lines := rng.IntN(4) + 1
		for l := 1; l <= lines; l++ {
			part := rng.IntN(40) + 1
			qty := int64(rng.IntN(20) + 1)
			price := float64(10+part*3) + float64(rng.IntN(100))/100
			discount := float64(rng.IntN(11)) / 100
			gross := ratio.Round(price*float64(qty), 2)
			net := ratio.Round(gross*(1-discount), 2)
			cost := ratio.Round(net*(0.55+float64(rng.IntN(30))/100), 2)
			supplier := rng.IntN(cfg.Suppliers) + 1
			returnFlag := "N"
			if rng.IntN(10) == 0 {
				returnFlag = gold.ReturnFlagReturned
			}
			var shipDelay, deliveryDelay core.Value
			shipDelay = int64(rng.IntN(5))
			if rng.IntN(25) != 0 {
				deliveryDelay = int64(rng.IntN(9) - 5)
			}

			ds[gold.FactLineitem].Append(core.Row{
				int64(o),
				int64(l),
				int64(part),
				Brands[part%len(Brands)],
				[]string{"STANDARD BRASS", "SMALL PLATED STEEL", "LARGE POLISHED TIN", "ECONOMY ANODIZED COPPER"}[part%4],
				fmt.Sprintf("Manufacturer#%d", 1+part%5),
				Bands[part%len(Bands)],
				qty,
				net,
				gross,
				cost,
				ratio.Round(net-cost, 2),
				discount,
				returnFlag,
				Modes[rng.IntN(len(Modes))],
				int64(supplier),
				supplierName(supplier),
				nations[supplier%len(nations)],
				Regions[supplier%len(Regions)],
				shipDelay,
				deliveryDelay,
			})
			total += net
		}

		ds[gold.FactOrders].Append(core.Row{
			int64(o),
			int64(cust),
			date,
			int64(date.Year()),
			int64((int(date.Month())-1)/3 + 1),
			ratio.Round(total, 2),
			segmentOf(cust),
			Regions[cust%len(Regions)],
		})
	}
	return ds
}

// Default generates the default data set.
func Default() Dataset {
	return Generate(DefaultConfig())
}

// Commit writes every table of ds to st as a new version.
func (ds Dataset) Commit(ctx context.Context, st core.ResultStore) error {
	for _, name := range []string{gold.DimDate, gold.DimCustomer, gold.FactOrders, gold.FactLineitem} {
		t, ok := ds[name]
		if !ok {
			continue
		}
		cur, err := st.CurrentVersion(ctx, name)
		if err != nil {
			return err
		}
		if err := st.Commit(ctx, &core.MaterializedResult{
			Table:    *t.Clone(),
			Relation: name,
			Version:  cur + 1,
		}); err != nil {
			return err
		}
	}
	return nil
}

// segmentOf varies the segment independently of the region.
func segmentOf(customer int) string {
	return Segments[(customer/len(Regions))%len(Segments)]
}

func customerName(k int) string {
	return fmt.Sprintf("Customer#%09d", k)
}

func supplierName(k int) string {
	return fmt.Sprintf("Supplier#%09d", k)
}

// WriteCSV writes one <relation>.csv file per table into dir, in the layout
// the csv source reads. NULL is written as an empty cell.
func (ds Dataset) WriteCSV(dir string) error {
	for name, t := range ds {
		if err := writeCSV(filepath.Join(dir, name+".csv"), t); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}
	return nil
}

func writeCSV(path string, t *core.Table) (err error) {
	f, err := os.Create(path) //nolint:gosec // test fixture path
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	w := csv.NewWriter(f)
	if err := w.Write(t.Columns.Names()); err != nil {
		return err
	}
	record := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i, v := range row {
			record[i] = core.Format(v)
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
