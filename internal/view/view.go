// Package view models the declarative definition of one derived relation.
//
// A Definition names its upstream relations and the stages that turn them
// into the output rows: joins, row projections, filters, grouping
// aggregates, computed columns, window operators, pivot, projection,
// ordering and limit. Definitions carry no behavior; internal/eval runs them.
package view

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/leapstack-labs/leapgold/internal/expr"
)

// JoinKind selects inner or left outer join semantics.
type JoinKind string

// Join kinds.
const (
	JoinInner JoinKind = "inner"
	JoinLeft  JoinKind = "left"
)

// JoinKey is one equality condition between the current rows and the
// joined source.
type JoinKey struct {
	Left  string
	Right string
}

// Join brings Columns of Source into the row set.
type Join struct {
	Source  string
	Kind    JoinKind
	On      []JoinKey
	Columns []string
}

// Projection is a named expression appended as a new column.
type Projection struct {
	Name string
	Expr expr.Expr
}

// As builds a Projection.
func As(name string, e expr.Expr) Projection {
	return Projection{Name: name, Expr: e}
}

// AggFunc is a grouping aggregate function.
type AggFunc string

// Aggregate functions.
const (
	AggSum            AggFunc = "sum"
	AggCount          AggFunc = "count"
	AggCountStar      AggFunc = "count_star"
	AggCountDistinct  AggFunc = "count_distinct"
	AggAvg            AggFunc = "avg"
	AggMin            AggFunc = "min"
	AggMax            AggFunc = "max"
	AggPercentileCont AggFunc = "percentile_cont"
)

// Aggregate computes Func over Arg per group. P is the percentile for
// AggPercentileCont.
type Aggregate struct {
	Name string
	Func AggFunc
	Arg  expr.Expr
	P    float64
}

// WindowFunc is an ordered window operator.
type WindowFunc string

// Window functions.
const (
	WinRunningSum   WindowFunc = "running_sum"
	WinLag          WindowFunc = "lag"
	WinNTile        WindowFunc = "ntile"
	WinRank         WindowFunc = "rank"
	WinRowNumber    WindowFunc = "row_number"
	WinPartitionMax WindowFunc = "partition_max"
)

// SortKey orders by one column.
type SortKey struct {
	Column string
	Desc   bool
}

// Asc and Desc build sort keys.
func Asc(col string) SortKey  { return SortKey{Column: col} }
func Desc(col string) SortKey { return SortKey{Column: col, Desc: true} }

// Window appends column Name computed by Func over the rows of each
// partition in OrderBy order. Offset is the LAG distance and Buckets the
// NTILE count.
type Window struct {
	Name        string
	Func        WindowFunc
	Arg         expr.Expr
	Offset      int
	Buckets     int
	PartitionBy []string
	OrderBy     []SortKey
}

// Pivot turns (Keys, Column, Value) rows into one row per key tuple with a
// column per entry of Values. Rows whose Column value is not listed are
// dropped.
type Pivot struct {
	Keys   []string
	Column string
	Value  string
	Values []string
	Prefix string
}

// OutputName returns the wide column name for a pivot value.
func (p *Pivot) OutputName(value string) string {
	name := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(value), " ", "_"))
	return p.Prefix + name
}

// Definition is the declarative specification of a derived relation.
type Definition struct {
	Relation string
	Sources  []string

	Joins      []Join
	Derive     []Projection
	Filters    []expr.Expr
	GroupBy    []string
	Aggregates []Aggregate
	Compute    []Projection
	Windows    []Window
	Finalize   []Projection
	Pivot      *Pivot
	Select     []string
	OrderBy    []SortKey
	Limit      int
}

// Grouped reports whether the definition aggregates rows.
func (d *Definition) Grouped() bool {
	return len(d.GroupBy) > 0 || len(d.Aggregates) > 0
}

// Upstreams returns every relation the definition reads, sorted.
func (d *Definition) Upstreams() []string {
	seen := make(map[string]bool)
	for _, s := range d.Sources {
		seen[s] = true
	}
	for _, j := range d.Joins {
		seen[j.Source] = true
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Validate checks structural well-formedness. Column references are
// checked later against real schemas.
func (d *Definition) Validate() error {
	if d.Relation == "" {
		return fmt.Errorf("view definition has no relation name")
	}
	if len(d.Sources) != 1 {
		return fmt.Errorf("view %s: exactly one primary source required, got %d", d.Relation, len(d.Sources))
	}
	if slices.Contains(d.Upstreams(), d.Relation) {
		return fmt.Errorf("view %s: reads itself", d.Relation)
	}

	names := make(map[string]bool)
	claim := func(name string) error {
		if name == "" {
			return fmt.Errorf("view %s: output column with empty name", d.Relation)
		}
		if names[name] {
			return fmt.Errorf("view %s: duplicate output column %s", d.Relation, name)
		}
		names[name] = true
		return nil
	}

	for _, j := range d.Joins {
		if j.Kind != JoinInner && j.Kind != JoinLeft {
			return fmt.Errorf("view %s: join %s: unknown kind %q", d.Relation, j.Source, j.Kind)
		}
		if len(j.On) == 0 {
			return fmt.Errorf("view %s: join %s: no join keys", d.Relation, j.Source)
		}
	}

	for _, a := range d.Aggregates {
		if err := claim(a.Name); err != nil {
			return err
		}
		switch a.Func {
		case AggCountStar:
		case AggSum, AggCount, AggCountDistinct, AggAvg, AggMin, AggMax:
			if a.Arg == nil {
				return fmt.Errorf("view %s: aggregate %s needs an argument", d.Relation, a.Name)
			}
		case AggPercentileCont:
			if a.Arg == nil {
				return fmt.Errorf("view %s: aggregate %s needs an argument", d.Relation, a.Name)
			}
			if a.P < 0 || a.P > 1 {
				return fmt.Errorf("view %s: aggregate %s: percentile %v out of [0,1]", d.Relation, a.Name, a.P)
			}
		default:
			return fmt.Errorf("view %s: aggregate %s: unknown function %q", d.Relation, a.Name, a.Func)
		}
	}

	for _, w := range d.Windows {
		if err := claim(w.Name); err != nil {
			return err
		}
		switch w.Func {
		case WinRunningSum, WinPartitionMax:
			if w.Arg == nil {
				return fmt.Errorf("view %s: window %s needs an argument", d.Relation, w.Name)
			}
		case WinLag:
			if w.Arg == nil {
				return fmt.Errorf("view %s: window %s needs an argument", d.Relation, w.Name)
			}
			if w.Offset < 1 {
				return fmt.Errorf("view %s: window %s: lag offset must be positive", d.Relation, w.Name)
			}
		case WinNTile:
			if w.Buckets < 1 {
				return fmt.Errorf("view %s: window %s: ntile needs at least one bucket", d.Relation, w.Name)
			}
		case WinRank, WinRowNumber:
		default:
			return fmt.Errorf("view %s: window %s: unknown function %q", d.Relation, w.Name, w.Func)
		}
		if w.Func != WinPartitionMax && len(w.OrderBy) == 0 {
			return fmt.Errorf("view %s: window %s requires an ordering", d.Relation, w.Name)
		}
	}

	for _, group := range [][]Projection{d.Derive, d.Compute, d.Finalize} {
		for _, p := range group {
			if p.Expr == nil {
				return fmt.Errorf("view %s: column %s has no expression", d.Relation, p.Name)
			}
			if err := claim(p.Name); err != nil {
				return err
			}
		}
	}

	if d.Pivot != nil {
		if len(d.Pivot.Values) == 0 {
			return fmt.Errorf("view %s: pivot has no values", d.Relation)
		}
		if d.Pivot.Column == "" || d.Pivot.Value == "" {
			return fmt.Errorf("view %s: pivot needs column and value", d.Relation)
		}
	}
	if d.Limit < 0 {
		return fmt.Errorf("view %s: negative limit", d.Relation)
	}
	return nil
}
