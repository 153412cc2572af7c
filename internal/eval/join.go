package eval

import (
	"fmt"

	"github.com/leapstack-labs/leapgold/internal/view"
	"github.com/leapstack-labs/leapgold/pkg/core"
)

// hashJoin joins right into left on equality of the join keys. NULL keys
// never match. Output keeps left row order; matches follow right row order.
func hashJoin(left, right *core.Table, j view.Join) (*core.Table, error) {
	leftKeys := make([]int, len(j.On))
	rightKeys := make([]int, len(j.On))
	for i, k := range j.On {
		if leftKeys[i] = left.Columns.Index(k.Left); leftKeys[i] < 0 {
			return nil, &core.SchemaMismatchError{Column: k.Left, Reason: "unknown join key"}
		}
		if rightKeys[i] = right.Columns.Index(k.Right); rightKeys[i] < 0 {
			return nil, &core.SchemaMismatchError{Column: k.Right, Reason: fmt.Sprintf("unknown join key in %s", j.Source)}
		}
	}

	carry, err := indexes(right.Columns, j.Columns)
	if err != nil {
		return nil, err
	}
	added := make([]core.Column, len(carry))
	for i, c := range carry {
		added[i] = right.Columns[c]
		if j.Kind == view.JoinLeft {
			added[i].Nullable = true
		}
	}
	schema, err := withColumns(left.Columns, added...)
	if err != nil {
		return nil, err
	}

	index := make(map[string][]int, len(right.Rows))
	for r, row := range right.Rows {
		key, hasNull := keyOf(row, rightKeys)
		if hasNull {
			continue
		}
		index[key] = append(index[key], r)
	}

	out := &core.Table{Columns: schema}
	for _, row := range left.Rows {
		key, hasNull := keyOf(row, leftKeys)
		var matches []int
		if !hasNull {
			matches = index[key]
		}
		if len(matches) == 0 {
			if j.Kind == view.JoinLeft {
				r := extend(row, len(carry))
				for range carry {
					r = append(r, nil)
				}
				out.Rows = append(out.Rows, r)
			}
			continue
		}
		for _, m := range matches {
			r := extend(row, len(carry))
			for _, c := range carry {
				r = append(r, right.Rows[m][c])
			}
			out.Rows = append(out.Rows, r)
		}
	}
	return out, nil
}
