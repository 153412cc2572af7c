package output

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/leapstack-labs/leapgold/pkg/core"
)

// nullDisplay is shown for NULL cells in text and markdown tables.
const nullDisplay = "NULL"

// Table writes t in the renderer's effective mode. limit > 0 truncates the
// rows shown in text and markdown modes.
func (r *Renderer) Table(t *core.Table, limit int) error {
	switch r.EffectiveMode() {
	case ModeJSON:
		return r.JSON(Records(t))
	case ModeMarkdown:
		return writePretty(r.out, t, limit, true)
	default:
		return writePretty(r.out, t, limit, false)
	}
}

// Records converts t to JSON friendly records.
func Records(t *core.Table) []map[string]any {
	return t.JSONRecords(0)
}

func writePretty(w io.Writer, t *core.Table, limit int, markdown bool) error {
	if len(t.Rows) == 0 {
		_, err := fmt.Fprintln(w, "(0 rows)")
		return err
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleLight)
	// column names are identifiers; keep their case
	tw.Style().Format.Header = text.FormatDefault
	tw.Style().Format.Footer = text.FormatDefault

	header := make(table.Row, len(t.Columns))
	var configs []table.ColumnConfig
	for i, c := range t.Columns {
		header[i] = c.Name
		if c.Type.Numeric() {
			configs = append(configs, table.ColumnConfig{Number: i + 1, Align: text.AlignRight})
		}
	}
	tw.AppendHeader(header)
	tw.SetColumnConfigs(configs)

	shown := len(t.Rows)
	if limit > 0 && limit < shown {
		shown = limit
	}
	for _, row := range t.Rows[:shown] {
		cells := make(table.Row, len(row))
		for i, v := range row {
			cells[i] = formatCell(v)
		}
		tw.AppendRow(cells)
	}

	var rendered string
	if markdown {
		rendered = tw.RenderMarkdown()
	} else {
		rendered = tw.Render()
	}
	if _, err := fmt.Fprintln(w, rendered); err != nil {
		return err
	}

	if shown < len(t.Rows) {
		_, err := fmt.Fprintf(w, "(%d of %d rows)\n", shown, len(t.Rows))
		return err
	}
	_, err := fmt.Fprintf(w, "(%d rows)\n", len(t.Rows))
	return err
}

func formatCell(v core.Value) string {
	if v == nil {
		return nullDisplay
	}
	return core.Format(v)
}

// WriteCSV writes t as CSV with a header row. NULL is an empty field.
func WriteCSV(w io.Writer, t *core.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns.Names()); err != nil {
		return err
	}
	record := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i, v := range row {
			record[i] = core.Format(v)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
