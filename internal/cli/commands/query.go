package commands

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapgold/internal/analytics"
	"github.com/leapstack-labs/leapgold/internal/cli/output"
)

type queryOptions struct {
	params map[string]string
	limit  int
	csv    bool
}

// NewQueryCommand creates the query command.
func NewQueryCommand() *cobra.Command {
	opts := &queryOptions{}

	cmd := &cobra.Command{
		Use:   "query [name]",
		Short: "Run a named analytical query",
		Long: `Run one of the built-in analytical queries against the committed gold
relations. Queries are evaluated on demand and never materialized.

Without a name, list the available queries and their parameters.`,
		Example: `  # List queries
  leapgold query

  # Revenue by region for one month range
  leapgold query revenue_by_region -p start=2024-01 -p end=2024-06

  # Top products by profit as CSV
  leapgold query top_products -p sort_by=margin_pct -p top_n=5 --csv`,
		Args:              cobra.MaximumNArgs(1),
		ValidArgsFunction: completeQueries,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return runQueryList(cmd)
			}
			return runQuery(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringToStringVarP(&opts.params, "param", "p", nil, "Query parameter as name=value (repeatable)")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum rows to print (0 for all)")
	cmd.Flags().BoolVar(&opts.csv, "csv", false, "Write the result as CSV")
	return cmd
}

func completeQueries(_ *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	var out []string
	for _, q := range analytics.NewRegistry().List() {
		if strings.HasPrefix(q.Name, toComplete) {
			out = append(out, q.Name+"\t"+q.Description)
		}
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}

func runQueryList(cmd *cobra.Command) error {
	cc, err := NewCommandContextWithoutEngine(cmd)
	if err != nil {
		return err
	}
	queries := analytics.NewRegistry().List()

	r := cc.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(queries)
	}

	r.Header(1, fmt.Sprintf("Queries (%d total)", len(queries)))
	styles := r.Styles()
	for _, q := range queries {
		if r.EffectiveMode() == output.ModeMarkdown {
			r.Printf("- **%s**: %s\n", q.Name, q.Description)
		} else {
			r.Printf("  %s  %s\n", styles.Relation.Render(q.Name), styles.Muted.Render(q.Description))
		}
		for _, p := range q.Params {
			r.Printf("    - %s\n", describeParam(p))
		}
	}
	return nil
}

func describeParam(p analytics.Param) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s (%s)", p.Name, p.Kind)
	switch {
	case p.Required:
		sb.WriteString(" required")
	case p.Default != "":
		fmt.Fprintf(&sb, " default %s", p.Default)
	}
	if len(p.Choices) > 0 {
		fmt.Fprintf(&sb, ", one of %s", strings.Join(p.Choices, "|"))
	}
	if p.Description != "" {
		sb.WriteString(": " + p.Description)
	}
	return sb.String()
}

func runQuery(cmd *cobra.Command, name string, opts *queryOptions) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := cc.Engine.Query(cmd.Context(), name, opts.params)
	if err != nil {
		return err
	}

	r := cc.Renderer
	if opts.csv {
		return output.WriteCSV(r.Out(), res.Table)
	}
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(struct {
			Query    string            `json:"query"`
			Versions map[string]uint64 `json:"versions"`
			Rows     []map[string]any  `json:"rows"`
		}{res.Query, res.Versions, output.Records(res.Table)})
	}

	r.Header(1, name)
	if err := r.Table(res.Table, opts.limit); err != nil {
		return err
	}
	versions := make([]string, 0, len(res.Versions))
	for _, rel := range slices.Sorted(maps.Keys(res.Versions)) {
		versions = append(versions, fmt.Sprintf("%s@v%d", rel, res.Versions[rel]))
	}
	r.Muted("read " + strings.Join(versions, ", "))
	return nil
}
