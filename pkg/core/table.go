package core

import "time"

// Table is an in-memory row set with its schema.
type Table struct {
	Columns Schema `json:"columns"`
	Rows    []Row  `json:"rows"`
}

// NewTable creates an empty table with the given schema.
func NewTable(cols Schema) *Table {
	return &Table{Columns: cols}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Append adds a row. The row length must match the schema.
func (t *Table) Append(row Row) {
	t.Rows = append(t.Rows, row)
}

// Column returns all values of the named column, or nil if absent.
func (t *Table) Column(name string) []Value {
	i := t.Columns.Index(name)
	if i < 0 {
		return nil
	}
	out := make([]Value, len(t.Rows))
	for r, row := range t.Rows {
		out[r] = row[i]
	}
	return out
}

// Get returns the value of column name in row r.
func (t *Table) Get(r int, name string) (Value, bool) {
	i := t.Columns.Index(name)
	if i < 0 || r < 0 || r >= len(t.Rows) {
		return nil, false
	}
	return t.Rows[r][i], true
}

// Records converts the table into one map per row, keyed by column name.
func (t *Table) Records() []map[string]Value {
	out := make([]map[string]Value, len(t.Rows))
	for r, row := range t.Rows {
		rec := make(map[string]Value, len(t.Columns))
		for i, c := range t.Columns {
			rec[c.Name] = row[i]
		}
		out[r] = rec
	}
	return out
}

// JSONRecords is Records with dates as yyyy-MM-dd strings. limit > 0 keeps
// only the first limit rows.
func (t *Table) JSONRecords(limit int) []map[string]any {
	rows := t.Rows
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	out := make([]map[string]any, len(rows))
	for r, row := range rows {
		rec := make(map[string]any, len(t.Columns))
		for i, c := range t.Columns {
			v := row[i]
			if d, ok := v.(time.Time); ok {
				v = Format(d)
			}
			rec[c.Name] = v
		}
		out[r] = rec
	}
	return out
}

// Clone returns a deep copy of the row slice structure.
func (t *Table) Clone() *Table {
	if t == nil {
		return nil
	}
	cols := make(Schema, len(t.Columns))
	copy(cols, t.Columns)
	rows := make([]Row, len(t.Rows))
	for i, row := range t.Rows {
		r := make(Row, len(row))
		copy(r, row)
		rows[i] = r
	}
	return &Table{Columns: cols, Rows: rows}
}
