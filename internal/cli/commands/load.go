package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapgold/internal/cli/output"
	"github.com/leapstack-labs/leapgold/internal/engine"
)

// NewLoadCommand creates the load command.
func NewLoadCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "load [relation...]",
		Short: "Load silver relations from the configured source",
		Long: `Read base relations through the configured source adapter, validate them
against the silver contract and commit a new version of each relation whose
content changed. Without arguments every base relation is loaded.

A relation that fails validation does not stop the others.`,
		Example: `  # Load every base relation
  leapgold load

  # Reload only the order facts
  leapgold load fact_orders fact_lineitem`,
		ValidArgsFunction: completeRelations(baseOnly),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(cmd, args, asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func runLoad(cmd *cobra.Command, names []string, asJSON bool) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()
	forceJSON(cc, cmd, asJSON)

	outcomes, loadErr := cc.Engine.LoadSources(cmd.Context(), names...)
	if outcomes == nil && loadErr != nil {
		return loadErr
	}

	r := cc.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		if err := r.JSON(outcomes); err != nil {
			return err
		}
	} else {
		renderLoad(r, outcomes)
	}

	if loadErr != nil {
		return fmt.Errorf("load failed: %w", loadErr)
	}
	return nil
}

func renderLoad(r *output.Renderer, outcomes []engine.LoadOutcome) {
	r.Header(1, "Load")

	var committed, unchanged, failed int
	for _, o := range outcomes {
		switch o.Status {
		case engine.LoadCommitted:
			committed++
			r.StatusLine(o.Relation, string(o.Status), fmt.Sprintf("v%d, %d rows, %dms", o.Version, o.Rows, o.DurationMS))
		case engine.LoadUnchanged:
			unchanged++
			r.StatusLine(o.Relation, string(o.Status), fmt.Sprintf("v%d", o.Version))
		default:
			failed++
			r.StatusLine(o.Relation, string(o.Status), o.Error)
		}
	}

	r.Println("")
	summary := fmt.Sprintf("%d committed, %d unchanged, %d failed", committed, unchanged, failed)
	if r.EffectiveMode() == output.ModeMarkdown {
		r.Println(output.FormatKeyValue("Summary", summary))
		return
	}
	r.Muted(summary)
}
