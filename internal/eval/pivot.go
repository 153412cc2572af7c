package eval

import (
	"sort"

	"github.com/leapstack-labs/leapgold/internal/view"
	"github.com/leapstack-labs/leapgold/pkg/core"
)

// pivot spreads Value into one column per entry of p.Values. Multiple rows
// for the same key and column value are summed. Column values outside the
// list are dropped; listed values with no rows stay NULL.
func pivot(t *core.Table, p *view.Pivot) (*core.Table, error) {
	keyIdx, err := indexes(t.Columns, p.Keys)
	if err != nil {
		return nil, err
	}
	colIdx, err := indexes(t.Columns, []string{p.Column, p.Value})
	if err != nil {
		return nil, err
	}
	valType := t.Columns[colIdx[1]].Type
	if !valType.Numeric() {
		return nil, &core.SchemaMismatchError{Column: p.Value, Reason: "pivot value must be numeric"}
	}

	slot := make(map[string]int, len(p.Values))
	added := make([]core.Column, len(p.Values))
	for i, v := range p.Values {
		slot[v] = i
		added[i] = core.Column{Name: p.OutputName(v), Type: valType, Nullable: true}
	}

	keyCols := make(core.Schema, len(keyIdx))
	for i, k := range keyIdx {
		keyCols[i] = t.Columns[k]
	}
	schema, err := withColumns(keyCols, added...)
	if err != nil {
		return nil, err
	}

	type wide struct {
		key  []core.Value
		vals []core.Value
	}
	byKey := make(map[string]*wide)
	var order []*wide
	for _, row := range t.Rows {
		name, ok := row[colIdx[0]].(string)
		if !ok {
			continue
		}
		s, ok := slot[name]
		if !ok {
			continue
		}
		k, _ := keyOf(row, keyIdx)
		w, ok := byKey[k]
		if !ok {
			w = &wide{key: values(row, keyIdx), vals: make([]core.Value, len(p.Values))}
			byKey[k] = w
			order = append(order, w)
		}
		w.vals[s] = addValues(w.vals[s], row[colIdx[1]])
	}

	sort.SliceStable(order, func(i, j int) bool {
		return compareTuples(order[i].key, order[j].key) < 0
	})
	out := &core.Table{Columns: schema, Rows: make([]core.Row, len(order))}
	for i, w := range order {
		row := make(core.Row, 0, len(schema))
		row = append(row, w.key...)
		row = append(row, w.vals...)
		out.Rows[i] = row
	}
	return out, nil
}

func addValues(acc, v core.Value) core.Value {
	if v == nil {
		return acc
	}
	if acc == nil {
		return v
	}
	if a, ok := acc.(int64); ok {
		if b, ok := v.(int64); ok {
			return a + b
		}
	}
	a, _ := core.AsFloat(acc)
	b, _ := core.AsFloat(v)
	return a + b
}
