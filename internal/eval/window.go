package eval

import (
	"fmt"
	"sort"

	"github.com/leapstack-labs/leapgold/internal/expr"
	"github.com/leapstack-labs/leapgold/internal/view"
	"github.com/leapstack-labs/leapgold/pkg/core"
)

// applyWindow appends the window column. Each partition is gathered in full
// and stably sorted, so rows equal on the ordering keys keep input order.
func applyWindow(t *core.Table, w view.Window) (*core.Table, error) {
	partIdx, err := indexes(t.Columns, w.PartitionBy)
	if err != nil {
		return nil, err
	}
	keys, err := sortKeys(t.Columns, w.OrderBy)
	if err != nil {
		return nil, err
	}

	var arg expr.Bound
	if w.Arg != nil {
		if arg, err = w.Arg.Bind(t.Columns); err != nil {
			return nil, err
		}
	}

	col := core.Column{Name: w.Name}
	switch w.Func {
	case view.WinRunningSum:
		if !arg.Type.Numeric() {
			return nil, &core.SchemaMismatchError{Column: w.Name, Reason: "running sum of non-numeric argument"}
		}
		col.Type, col.Nullable = arg.Type, true
	case view.WinLag, view.WinPartitionMax:
		col.Type, col.Nullable = arg.Type, true
	case view.WinNTile, view.WinRank, view.WinRowNumber:
		col.Type = core.TypeInt
	default:
		return nil, fmt.Errorf("unknown window function %q", w.Func)
	}
	schema, err := withColumns(t.Columns, col)
	if err != nil {
		return nil, err
	}

	out := make([]core.Value, len(t.Rows))
	for _, part := range partitions(t.Rows, partIdx) {
		sort.SliceStable(part, func(i, j int) bool {
			return compareBy(t.Rows[part[i]], t.Rows[part[j]], keys) < 0
		})
		switch w.Func {
		case view.WinRunningSum:
			runningSum(t.Rows, part, arg, out)
		case view.WinLag:
			lag(t.Rows, part, arg, w.Offset, out)
		case view.WinNTile:
			for pos, r := range part {
				out[r] = int64(NTile(pos, len(part), w.Buckets))
			}
		case view.WinRowNumber:
			for pos, r := range part {
				out[r] = int64(pos + 1)
			}
		case view.WinRank:
			rank(t.Rows, part, keys, out)
		case view.WinPartitionMax:
			partitionMax(t.Rows, part, arg, out)
		}
	}

	rows := make([]core.Row, len(t.Rows))
	for i, row := range t.Rows {
		rows[i] = append(extend(row, 1), out[i])
	}
	return &core.Table{Columns: schema, Rows: rows}, nil
}

// partitions groups row indexes by key, in order of first appearance.
func partitions(rows []core.Row, idx []int) [][]int {
	var order []string
	parts := make(map[string][]int)
	for i, row := range rows {
		k, _ := keyOf(row, idx)
		if _, ok := parts[k]; !ok {
			order = append(order, k)
		}
		parts[k] = append(parts[k], i)
	}
	out := make([][]int, len(order))
	for i, k := range order {
		out[i] = parts[k]
	}
	return out
}

func runningSum(rows []core.Row, part []int, arg expr.Bound, out []core.Value) {
	var isum int64
	var fsum float64
	seen := false
	for _, r := range part {
		v := arg.Eval(rows[r])
		if v != nil {
			seen = true
			if i, ok := v.(int64); ok {
				isum += i
			}
			f, _ := core.AsFloat(v)
			fsum += f
		}
		switch {
		case !seen:
			out[r] = nil
		case arg.Type == core.TypeInt:
			out[r] = isum
		default:
			out[r] = fsum
		}
	}
}

// lag yields the argument n rows earlier in the partition, NULL when there
// is no such row.
func lag(rows []core.Row, part []int, arg expr.Bound, n int, out []core.Value) {
	for pos, r := range part {
		if pos < n {
			out[r] = nil
			continue
		}
		out[r] = arg.Eval(rows[part[pos-n]])
	}
}

func rank(rows []core.Row, part []int, keys []sortKey, out []core.Value) {
	current := int64(1)
	for pos, r := range part {
		if pos > 0 && compareBy(rows[part[pos-1]], rows[r], keys) != 0 {
			current = int64(pos + 1)
		}
		out[r] = current
	}
}

func partitionMax(rows []core.Row, part []int, arg expr.Bound, out []core.Value) {
	var best core.Value
	for _, r := range part {
		v := arg.Eval(rows[r])
		if v != nil && (best == nil || core.Compare(v, best) > 0) {
			best = v
		}
	}
	for _, r := range part {
		out[r] = best
	}
}

// NTile returns the 1-based bucket of the row at 0-based position pos among
// m rows split into k buckets. When m is not a multiple of k the first
// m mod k buckets hold one extra row.
func NTile(pos, m, k int) int {
	size := m / k
	extra := m % k
	big := extra * (size + 1)
	if pos < big {
		return pos/(size+1) + 1
	}
	return (pos-big)/size + extra + 1
}
