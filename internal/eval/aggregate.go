package eval

import (
	"context"
	"fmt"
	"math"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/leapgold/internal/expr"
	"github.com/leapstack-labs/leapgold/internal/view"
	"github.com/leapstack-labs/leapgold/pkg/core"
)

// aggState is the partial state of one aggregate for one group. States
// from different partitions merge associatively.
type aggState struct {
	count    int64
	isum     int64
	fsum     float64
	best     core.Value
	distinct map[string]struct{}
	values   []float64
}

type group struct {
	key    []core.Value
	states []*aggState
}

// partial is the result of one map worker: groups in first-seen order.
type partial struct {
	order  []string
	groups map[string]*group
}

type boundAgg struct {
	view.Aggregate
	arg expr.Bound
}

func (e *Evaluator) aggregate(ctx context.Context, t *core.Table, groupBy []string, aggs []view.Aggregate) (*core.Table, error) {
	keyIdx, err := indexes(t.Columns, groupBy)
	if err != nil {
		return nil, err
	}

	bound := make([]boundAgg, len(aggs))
	outCols := make(core.Schema, 0, len(keyIdx)+len(aggs))
	for _, i := range keyIdx {
		outCols = append(outCols, t.Columns[i])
	}
	for i, a := range aggs {
		bound[i].Aggregate = a
		if a.Arg != nil {
			b, err := a.Arg.Bind(t.Columns)
			if err != nil {
				return nil, err
			}
			bound[i].arg = b
		}
		col, err := aggColumn(a, bound[i].arg)
		if err != nil {
			return nil, err
		}
		outCols = append(outCols, col)
	}
	if _, err := withColumns(nil, outCols...); err != nil {
		return nil, err
	}

	parts := e.mapPartitions(ctx, t.Rows, keyIdx, bound)
	if err := parts.err; err != nil {
		return nil, err
	}

	// reduce in partition order
	merged := make(map[string]*group)
	var keys []string
	for _, p := range parts.results {
		for _, k := range p.order {
			g := p.groups[k]
			if m, ok := merged[k]; ok {
				for i := range m.states {
					mergeState(m.states[i], g.states[i], bound[i].Func)
				}
				continue
			}
			merged[k] = g
			keys = append(keys, k)
		}
	}

	if len(keyIdx) == 0 && len(keys) == 0 {
		merged[""] = newGroup(nil, len(bound))
		keys = append(keys, "")
	}

	groups := make([]*group, len(keys))
	for i, k := range keys {
		groups[i] = merged[k]
	}
	sort.SliceStable(groups, func(i, j int) bool {
		return compareTuples(groups[i].key, groups[j].key) < 0
	})

	out := &core.Table{Columns: outCols, Rows: make([]core.Row, len(groups))}
	for r, g := range groups {
		row := make(core.Row, 0, len(outCols))
		row = append(row, g.key...)
		for i, st := range g.states {
			row = append(row, finalState(st, bound[i]))
		}
		out.Rows[r] = row
	}
	return out, nil
}

type mapResult struct {
	results []*partial
	err     error
}

// mapPartitions splits rows into contiguous ranges and builds partial
// aggregates for each range concurrently.
func (e *Evaluator) mapPartitions(ctx context.Context, rows []core.Row, keyIdx []int, aggs []boundAgg) mapResult {
	n := e.partitions
	if len(rows) < n {
		n = max(1, len(rows))
	}
	size := (len(rows) + n - 1) / n
	results := make([]*partial, n)

	g, gctx := errgroup.WithContext(ctx)
	for p := range n {
		lo := min(p*size, len(rows))
		hi := min(lo+size, len(rows))
		g.Go(func() error {
			part := &partial{groups: make(map[string]*group)}
			for i, row := range rows[lo:hi] {
				if i%4096 == 0 {
					if err := gctx.Err(); err != nil {
						return err
					}
				}
				k, _ := keyOf(row, keyIdx)
				grp, ok := part.groups[k]
				if !ok {
					grp = newGroup(values(row, keyIdx), len(aggs))
					part.groups[k] = grp
					part.order = append(part.order, k)
				}
				for a := range aggs {
					accumulate(grp.states[a], aggs[a], row)
				}
			}
			results[p] = part
			return nil
		})
	}
	err := g.Wait()
	return mapResult{results: results, err: err}
}

func newGroup(key []core.Value, n int) *group {
	g := &group{key: key, states: make([]*aggState, n)}
	for i := range g.states {
		g.states[i] = &aggState{}
	}
	return g
}

func aggColumn(a view.Aggregate, arg expr.Bound) (core.Column, error) {
	col := core.Column{Name: a.Name, Nullable: true}
	switch a.Func {
	case view.AggCount, view.AggCountStar, view.AggCountDistinct:
		col.Type = core.TypeInt
		col.Nullable = false
	case view.AggSum:
		if !arg.Type.Numeric() {
			return col, &core.SchemaMismatchError{Column: a.Name, Reason: "SUM of non-numeric argument"}
		}
		col.Type = arg.Type
	case view.AggAvg, view.AggPercentileCont:
		if !arg.Type.Numeric() {
			return col, &core.SchemaMismatchError{Column: a.Name, Reason: fmt.Sprintf("%s of non-numeric argument", a.Func)}
		}
		col.Type = core.TypeFloat
	case view.AggMin, view.AggMax:
		col.Type = arg.Type
	}
	return col, nil
}

func accumulate(st *aggState, a boundAgg, row core.Row) {
	if a.Func == view.AggCountStar {
		st.count++
		return
	}
	v := a.arg.Eval(row)
	if v == nil {
		return
	}
	switch a.Func {
	case view.AggCount:
		st.count++
	case view.AggSum, view.AggAvg:
		st.count++
		if i, ok := v.(int64); ok {
			st.isum += i
		}
		f, _ := core.AsFloat(v)
		st.fsum += f
	case view.AggCountDistinct:
		if st.distinct == nil {
			st.distinct = make(map[string]struct{})
		}
		k, _ := keyOf(core.Row{v}, []int{0})
		st.distinct[k] = struct{}{}
	case view.AggMin:
		if st.best == nil || core.Compare(v, st.best) < 0 {
			st.best = v
		}
	case view.AggMax:
		if st.best == nil || core.Compare(v, st.best) > 0 {
			st.best = v
		}
	case view.AggPercentileCont:
		f, _ := core.AsFloat(v)
		st.values = append(st.values, f)
	}
}

func mergeState(dst, src *aggState, fn view.AggFunc) {
	dst.count += src.count
	dst.isum += src.isum
	dst.fsum += src.fsum
	switch fn {
	case view.AggMin:
		if dst.best == nil || (src.best != nil && core.Compare(src.best, dst.best) < 0) {
			dst.best = src.best
		}
	case view.AggMax:
		if dst.best == nil || (src.best != nil && core.Compare(src.best, dst.best) > 0) {
			dst.best = src.best
		}
	case view.AggCountDistinct:
		if dst.distinct == nil {
			dst.distinct = make(map[string]struct{}, len(src.distinct))
		}
		for k := range src.distinct {
			dst.distinct[k] = struct{}{}
		}
	case view.AggPercentileCont:
		dst.values = append(dst.values, src.values...)
	}
}

func finalState(st *aggState, a boundAgg) core.Value {
	switch a.Func {
	case view.AggCount, view.AggCountStar:
		return st.count
	case view.AggCountDistinct:
		return int64(len(st.distinct))
	case view.AggSum:
		if st.count == 0 {
			return nil
		}
		if a.arg.Type == core.TypeInt {
			return st.isum
		}
		return st.fsum
	case view.AggAvg:
		if st.count == 0 {
			return nil
		}
		return st.fsum / float64(st.count)
	case view.AggMin, view.AggMax:
		return st.best
	case view.AggPercentileCont:
		return PercentileCont(st.values, a.P)
	}
	return nil
}

// PercentileCont returns the continuous percentile p of values by linear
// interpolation between the order statistics around rank p*(m-1). It
// returns nil for an empty input. values is sorted in place.
func PercentileCont(values []float64, p float64) core.Value {
	m := len(values)
	if m == 0 {
		return nil
	}
	sort.Float64s(values)
	rank := p * float64(m-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return values[lo]
	}
	frac := rank - float64(lo)
	return values[lo] + frac*(values[hi]-values[lo])
}
