package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapgold/internal/cli/output"
	"github.com/leapstack-labs/leapgold/pkg/core"
)

// NewRunsCommand creates the runs command.
func NewRunsCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs [run-id]",
		Short: "Show refresh run history",
		Long: `List recent refresh runs, newest first. With a run id, show the outcome of
every relation in that run.

Run history lives in the store. The memory and badger backends keep it for
the lifetime of the process only.`,
		Example: `  # Last 10 runs
  leapgold runs --limit 10

  # Details of one run
  leapgold runs 3f1c2a9e-...`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return runRunDetail(cmd, args[0])
			}
			return runRunList(cmd, limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum runs to list (0 for all)")
	return cmd
}

func runRunList(cmd *cobra.Command, limit int) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	runs, err := cc.Engine.Runs(cmd.Context(), limit)
	if err != nil {
		return err
	}

	r := cc.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		if runs == nil {
			runs = []*core.Run{}
		}
		return r.JSON(runs)
	}

	r.Header(1, fmt.Sprintf("Runs (%d)", len(runs)))
	if len(runs) == 0 {
		r.Muted("no refresh runs recorded")
		return nil
	}
	for _, run := range runs {
		r.StatusLine(run.ID, string(run.Status), runDetail(run))
	}
	return nil
}

func runDetail(run *core.Run) string {
	parts := []string{run.StartedAt.Local().Format(time.DateTime)}
	if run.CompletedAt != nil {
		parts = append(parts, run.CompletedAt.Sub(run.StartedAt).Round(time.Millisecond).String())
	}
	if len(run.Scope) > 0 {
		parts = append(parts, "scope "+strings.Join(run.Scope, ","))
	}
	if run.Error != "" {
		parts = append(parts, run.Error)
	}
	return strings.Join(parts, ", ")
}

func runRunDetail(cmd *cobra.Command, id string) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	run, relations, err := cc.Engine.Run(cmd.Context(), id)
	if err != nil {
		return err
	}

	r := cc.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(struct {
			*core.Run
			Relations []*core.RelationRun `json:"relations"`
		}{run, relations})
	}

	r.Header(1, "Run "+run.ID)
	r.StatusLine("status", string(run.Status), runDetail(run))
	r.Println("")
	for _, rr := range relations {
		detail := rr.Error
		if detail == "" {
			detail = fmt.Sprintf("v%d, %d rows, %dms", rr.Version, rr.Rows, rr.DurationMS)
		}
		r.StatusLine(rr.Relation, string(rr.Status), detail)
	}
	return nil
}
