package eval

import (
	"sort"
	"strings"

	"github.com/leapstack-labs/leapgold/internal/view"
	"github.com/leapstack-labs/leapgold/pkg/core"
)

// keyOf encodes the values at idx as a map key. The encoding is injective
// across types: 1 and 1.0 and "1" produce different keys.
func keyOf(row core.Row, idx []int) (string, bool) {
	var b strings.Builder
	hasNull := false
	for _, i := range idx {
		v := row[i]
		switch v.(type) {
		case nil:
			b.WriteByte('n')
			hasNull = true
		case int64:
			b.WriteByte('i')
		case float64:
			b.WriteByte('f')
		case string:
			b.WriteByte('s')
		case bool:
			b.WriteByte('b')
		default:
			b.WriteByte('d')
		}
		b.WriteString(core.Format(v))
		b.WriteByte(0x1f)
	}
	return b.String(), hasNull
}

func values(row core.Row, idx []int) []core.Value {
	out := make([]core.Value, len(idx))
	for i, j := range idx {
		out[i] = row[j]
	}
	return out
}

func compareTuples(a, b []core.Value) int {
	for i := range a {
		if c := core.Compare(a[i], b[i]); c != 0 {
			return c
		}
	}
	return 0
}

type sortKey struct {
	idx  int
	desc bool
}

func sortKeys(schema core.Schema, keys []view.SortKey) ([]sortKey, error) {
	out := make([]sortKey, len(keys))
	for i, k := range keys {
		j := schema.Index(k.Column)
		if j < 0 {
			return nil, &core.SchemaMismatchError{Column: k.Column, Reason: "unknown ordering column"}
		}
		out[i] = sortKey{idx: j, desc: k.Desc}
	}
	return out, nil
}

// compareBy orders rows by keys. Descending reverses Compare, so NULLs sort
// first ascending and last descending.
func compareBy(a, b core.Row, keys []sortKey) int {
	for _, k := range keys {
		c := core.Compare(a[k.idx], b[k.idx])
		if k.desc {
			c = -c
		}
		if c != 0 {
			return c
		}
	}
	return 0
}

// orderBy sorts t in place by keys and then by every column left to right,
// so output order never depends on input order.
func orderBy(t *core.Table, keys []view.SortKey) error {
	sk, err := sortKeys(t.Columns, keys)
	if err != nil {
		return err
	}
	sort.SliceStable(t.Rows, func(i, j int) bool {
		a, b := t.Rows[i], t.Rows[j]
		if c := compareBy(a, b, sk); c != 0 {
			return c < 0
		}
		return compareTuples(a, b) < 0
	})
	return nil
}
