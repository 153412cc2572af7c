package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapgold/internal/cli/output"
	"github.com/leapstack-labs/leapgold/internal/scheduler"
	"github.com/leapstack-labs/leapgold/pkg/core"
)

type refreshOptions struct {
	selected []string
	all      bool
	dryRun   bool
	load     bool
	asJSON   bool
}

// NewRefreshCommand creates the refresh command.
func NewRefreshCommand() *cobra.Command {
	opts := &refreshOptions{}

	cmd := &cobra.Command{
		Use:   "refresh [relation...]",
		Short: "Recompute stale gold relations",
		Long: `Recompute the selected derived relations and every stale derived relation
they depend on, in dependency order. Independent relations run in parallel.
Without a selection only stale derived relations are recomputed; current
ones keep their versions. --all recomputes every derived relation.

A failed relation skips its downstream relations; unrelated branches still
commit. Committed results are never rolled back.`,
		Example: `  # Refresh everything that is stale
  leapgold refresh

  # Recompute every gold relation, stale or not
  leapgold refresh --all

  # Refresh the monthly rollup (and the daily rollup if it is stale)
  leapgold refresh --select gold_monthly_sales

  # Show what would run
  leapgold refresh --dry-run

  # Load silver first, then refresh
  leapgold refresh --load --json`,
		ValidArgsFunction: completeRelations(derivedOnly),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.selected = append(opts.selected, args...)
			return runRefresh(cmd, opts)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.selected, "select", "s", nil, "Derived relations to refresh (comma-separated)")
	cmd.Flags().BoolVar(&opts.all, "all", false, "Recompute every derived relation, even current ones")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Print the refresh plan without running it")
	cmd.Flags().BoolVar(&opts.load, "load", false, "Load silver relations before refreshing")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "Output as JSON")
	_ = cmd.RegisterFlagCompletionFunc("select", completeRelations(derivedOnly))

	return cmd
}

func runRefresh(cmd *cobra.Command, opts *refreshOptions) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()
	forceJSON(cc, cmd, opts.asJSON)

	ctx := cmd.Context()
	eng := cc.Engine
	r := cc.Renderer

	if opts.all && len(opts.selected) > 0 {
		return fmt.Errorf("--all cannot be combined with a relation selection")
	}
	staleOnly := !opts.all && len(opts.selected) == 0

	if opts.dryRun {
		var plan *scheduler.Plan
		if staleOnly {
			plan, err = eng.PlanStale(ctx)
		} else {
			plan, err = eng.Plan(ctx, opts.selected)
		}
		if err != nil {
			return err
		}
		if r.EffectiveMode() == output.ModeJSON {
			return r.JSON(plan)
		}
		renderPlan(r, plan)
		return nil
	}

	if opts.load {
		if _, err := eng.LoadSources(ctx); err != nil {
			return fmt.Errorf("load failed: %w", err)
		}
	}

	var report *core.RefreshReport
	if staleOnly {
		report, err = eng.RefreshStale(ctx)
	} else {
		report, err = eng.Refresh(ctx, opts.selected)
	}
	if report == nil {
		return err
	}

	if r.EffectiveMode() == output.ModeJSON {
		if jerr := r.JSON(report); jerr != nil {
			return jerr
		}
	} else {
		renderReport(r, report)
	}

	if failed := report.Failed(); len(failed) > 0 {
		return fmt.Errorf("refresh failed for %d relation(s): %s", len(failed), strings.Join(failed, ", "))
	}
	return err
}

func renderPlan(r *output.Renderer, plan *scheduler.Plan) {
	r.Header(1, "Refresh plan")
	if len(plan.Steps) == 0 {
		r.Muted("nothing to refresh")
		return
	}
	for i, step := range plan.Steps {
		detail := string(step.Reason)
		if len(step.Changed) > 0 {
			detail += ": " + strings.Join(step.Changed, ", ")
		}
		if r.EffectiveMode() == output.ModeMarkdown {
			r.Printf("%d. %s (%s)\n", i+1, step.Relation, detail)
			continue
		}
		styles := r.Styles()
		r.Printf("  %2d. %s %s\n", i+1, styles.Relation.Render(step.Relation), styles.Muted.Render(detail))
	}
}

func renderReport(r *output.Renderer, report *core.RefreshReport) {
	r.Header(1, "Refresh")

	counts := make(map[core.RelationStatus]int)
	for _, name := range report.Order {
		o, ok := report.Outcome(name)
		if !ok {
			continue
		}
		counts[o.Status]++
		var detail string
		switch o.Status {
		case core.RelationStatusSuccess:
			detail = fmt.Sprintf("v%d, %d rows, %dms", o.Version, o.Rows, o.DurationMS)
		case core.RelationStatusCurrent:
			detail = fmt.Sprintf("v%d", o.Version)
		default:
			detail = o.Error
		}
		r.StatusLine(name, string(o.Status), detail)
	}

	r.Println("")
	summary := fmt.Sprintf("%d refreshed, %d current, %d failed, %d skipped, %d cancelled",
		counts[core.RelationStatusSuccess], counts[core.RelationStatusCurrent],
		counts[core.RelationStatusFailed], counts[core.RelationStatusSkipped],
		counts[core.RelationStatusCancelled])

	if r.EffectiveMode() == output.ModeMarkdown {
		r.Println(output.FormatKeyValue("Run", report.RunID))
		r.Println(output.FormatKeyValue("Status", string(report.Status)))
		r.Println(output.FormatKeyValue("Summary", summary))
		return
	}
	r.Muted(fmt.Sprintf("run %s %s: %s", report.RunID, report.Status, summary))
}
