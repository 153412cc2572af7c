package commands

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapgold/internal/cli/output"
	"github.com/leapstack-labs/leapgold/internal/engine"
	"github.com/leapstack-labs/leapgold/pkg/core"
)

type showOptions struct {
	limit      int
	schemaOnly bool
	csv        bool
}

// NewShowCommand creates the show command.
func NewShowCommand() *cobra.Command {
	opts := &showOptions{}

	cmd := &cobra.Command{
		Use:   "show [relation]",
		Short: "Show relations, their versions and rows",
		Long: `Without arguments, list every relation with its committed version and
whether a refresh would recompute it.

With a relation name, print its schema, upstreams and committed version
followed by its rows.`,
		Example: `  # Status of every relation
  leapgold show

  # First 10 rows of the executive summary
  leapgold show gold_executive_summary --limit 10

  # Export a relation as CSV
  leapgold show gold_customer_rfm --csv > rfm.csv`,
		Args:              cobra.MaximumNArgs(1),
		ValidArgsFunction: completeRelations(allRelations),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return runShowAll(cmd)
			}
			return runShow(cmd, args[0], opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 20, "Maximum rows to print (0 for all)")
	cmd.Flags().BoolVar(&opts.schemaOnly, "schema", false, "Print the schema and version only")
	cmd.Flags().BoolVar(&opts.csv, "csv", false, "Write all rows as CSV")
	return cmd
}

func runShowAll(cmd *cobra.Command) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	statuses, err := cc.Engine.Relations(cmd.Context())
	if err != nil {
		return err
	}

	r := cc.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(statuses)
	}
	r.Header(1, fmt.Sprintf("Relations in %s (%d total)", cc.Engine.Namespace(), len(statuses)))
	return r.Table(statusTable(statuses), 0)
}

// statusTable lays out relation statuses as a table.
func statusTable(statuses []engine.RelationStatus) *core.Table {
	t := core.NewTable(core.Schema{
		{Name: "relation", Type: core.TypeString},
		{Name: "kind", Type: core.TypeString},
		{Name: "version", Type: core.TypeInt, Nullable: true},
		{Name: "rows", Type: core.TypeInt, Nullable: true},
		{Name: "committed_at", Type: core.TypeString, Nullable: true},
		{Name: "state", Type: core.TypeString, Nullable: true},
	})
	for _, st := range statuses {
		row := core.Row{st.Name, string(st.Kind), nil, nil, nil, nil}
		if st.Current != nil {
			row[2] = int64(st.Current.Version) //nolint:gosec // versions are small
			row[3] = int64(st.Current.Rows)
			row[4] = st.Current.CommittedAt.Local().Format(time.DateTime)
		}
		if st.IsDerived() {
			row[5] = string(st.Reason)
		}
		t.Append(row)
	}
	return t
}

func runShow(cmd *cobra.Command, name string, opts *showOptions) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := cmd.Context()
	st, err := cc.Engine.Relation(ctx, name)
	if err != nil {
		return err
	}

	var res *core.MaterializedResult
	if !opts.schemaOnly {
		res, err = cc.Engine.Read(ctx, name)
		if err != nil && !errors.Is(err, core.ErrNotMaterialized) {
			return err
		}
	}

	r := cc.Renderer
	if opts.csv {
		if res == nil {
			return fmt.Errorf("%s: %w", name, core.ErrNotMaterialized)
		}
		return output.WriteCSV(r.Out(), &res.Table)
	}

	if r.EffectiveMode() == output.ModeJSON {
		payload := struct {
			*engine.RelationStatus
			Rows []map[string]any `json:"rows,omitempty"`
		}{RelationStatus: st}
		if res != nil {
			payload.Rows = output.Records(&res.Table)
		}
		return r.JSON(payload)
	}

	renderRelation(r, st)
	if opts.schemaOnly {
		return nil
	}
	if res == nil {
		r.Println("")
		r.Muted("not materialized yet")
		return nil
	}
	r.Println("")
	return r.Table(&res.Table, opts.limit)
}

func renderRelation(r *output.Renderer, st *engine.RelationStatus) {
	r.Header(1, st.Qualified)

	version := "none"
	if st.Current != nil {
		version = fmt.Sprintf("v%d (%d rows, committed %s)", st.Current.Version, st.Current.Rows,
			st.Current.CommittedAt.Local().Format(time.DateTime))
	}
	kv := func(k, v string) {
		if r.EffectiveMode() == output.ModeMarkdown {
			r.Println(output.FormatKeyValue(k, v))
			return
		}
		r.Printf("%s %s\n", r.Styles().Bold.Render(k+":"), v)
	}

	kv("Kind", string(st.Kind))
	if st.Description != "" {
		kv("Description", st.Description)
	}
	kv("Version", version)
	if len(st.Upstreams) > 0 {
		kv("Upstreams", strings.Join(st.Upstreams, ", "))
	}
	if st.IsDerived() {
		kv("State", string(st.Reason))
	}
	if len(st.Clustering) > 0 {
		kv("Clustering", strings.Join(st.Clustering, ", "))
	}

	r.Println("")
	r.Header(2, "Columns")
	for _, c := range st.Columns {
		null := "not null"
		if c.Nullable {
			null = "nullable"
		}
		if r.EffectiveMode() == output.ModeMarkdown {
			r.Printf("- %s `%s` %s\n", c.Name, c.Type, null)
			continue
		}
		r.Printf("  %-28s %-8s %s\n", c.Name, c.Type, r.Styles().Muted.Render(null))
	}
}
