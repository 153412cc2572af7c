package eval

import (
	"fmt"

	"github.com/leapstack-labs/leapgold/pkg/core"
)

// Conform checks that t has exactly the declared columns of rel, in order
// and with the declared types, and that NOT NULL columns hold no NULLs. On
// success the table adopts the declared schema.
func Conform(t *core.Table, rel *core.Relation) error {
	if len(t.Columns) != len(rel.Columns) {
		return &core.SchemaMismatchError{
			Relation: rel.Name,
			Reason:   fmt.Sprintf("produced %d columns %v, declared %d %v", len(t.Columns), t.Columns.Names(), len(rel.Columns), rel.Columns.Names()),
		}
	}
	for i, want := range rel.Columns {
		got := t.Columns[i]
		if got.Name != want.Name {
			return &core.SchemaMismatchError{Relation: rel.Name, Column: want.Name, Reason: fmt.Sprintf("position %d holds %s", i, got.Name)}
		}
		if got.Type != want.Type {
			return &core.SchemaMismatchError{Relation: rel.Name, Column: want.Name, Reason: fmt.Sprintf("type %s, declared %s", got.Type, want.Type)}
		}
	}
	for r, row := range t.Rows {
		for i, c := range rel.Columns {
			if !c.Nullable && row[i] == nil {
				return &core.SchemaMismatchError{Relation: rel.Name, Column: c.Name, Reason: fmt.Sprintf("NULL in NOT NULL column at row %d", r)}
			}
		}
	}
	t.Columns = rel.Columns
	return nil
}
