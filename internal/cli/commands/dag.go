package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapgold/internal/cli/output"
	"github.com/leapstack-labs/leapgold/internal/dag"
	"github.com/leapstack-labs/leapgold/pkg/core"
)

// DAGOutput is the dependency graph grouped by execution level.
type DAGOutput struct {
	Levels         []DAGLevel `json:"levels"`
	TotalRelations int        `json:"total_relations"`
	TotalEdges     int        `json:"total_edges"`
}

// DAGLevel is one execution level.
type DAGLevel struct {
	Level     int       `json:"level"`
	Relations []DAGNode `json:"relations"`
}

// DAGNode is one relation with its edges.
type DAGNode struct {
	Name      string   `json:"name"`
	Kind      string   `json:"kind"`
	DependsOn []string `json:"depends_on,omitempty"`
	UsedBy    []string `json:"used_by,omitempty"`
}

// NewDAGCommand creates the dag command.
func NewDAGCommand() *cobra.Command {
	var selected []string

	cmd := &cobra.Command{
		Use:   "dag",
		Short: "Show the dependency graph",
		Long: `Display the dependency graph of the silver and gold relations.

Relations are grouped by execution level: every relation only reads
relations from earlier levels, and relations within a level can be
refreshed in parallel. With --select the graph is narrowed to the
selected relations, their upstreams and their dependents.

Output adapts to environment:
  - Terminal: Styled output with colors
  - Piped/Scripted: Markdown format (agent-friendly)`,
		Example: `  # Show the DAG
  leapgold dag

  # Everything feeding or fed by the monthly rollup
  leapgold dag --select gold_monthly_sales

  # Output as JSON
  leapgold dag --output json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDAG(cmd, selected)
		},
	}

	cmd.Flags().StringSliceVarP(&selected, "select", "s", nil, "Focus on these relations")
	_ = cmd.RegisterFlagCompletionFunc("select", completeRelations(allRelations))
	return cmd
}

func runDAG(cmd *cobra.Command, selected []string) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	graph := cc.Engine.Graph()
	if len(selected) > 0 {
		if graph, err = focus(graph, selected); err != nil {
			return err
		}
	}

	out, err := buildDAGOutput(graph)
	if err != nil {
		return err
	}

	r := cc.Renderer
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(out)
	case output.ModeMarkdown:
		dagMarkdown(r, out)
	default:
		dagText(r, out)
	}
	return nil
}

// focus narrows graph to names, their ancestors and their descendants.
func focus(graph *dag.Graph, names []string) (*dag.Graph, error) {
	for _, name := range names {
		if !graph.Has(name) {
			return nil, &core.UnknownRelationError{Name: name}
		}
	}
	keep := append(graph.Closure(names...), graph.Descendants(names...)...)
	return graph.Subgraph(keep), nil
}

func buildDAGOutput(graph *dag.Graph) (DAGOutput, error) {
	levels, err := graph.ExecutionLevels()
	if err != nil {
		return DAGOutput{}, fmt.Errorf("failed to get execution levels: %w", err)
	}

	out := DAGOutput{
		Levels:         make([]DAGLevel, 0, len(levels)),
		TotalRelations: graph.NodeCount(),
		TotalEdges:     graph.EdgeCount(),
	}
	for i, level := range levels {
		dl := DAGLevel{Level: i, Relations: make([]DAGNode, 0, len(level))}
		for _, name := range level {
			node := DAGNode{Name: name, DependsOn: graph.Parents(name), UsedBy: graph.Children(name)}
			if n, ok := graph.Node(name); ok && n.Relation != nil {
				node.Kind = string(n.Relation.Kind)
			}
			dl.Relations = append(dl.Relations, node)
		}
		out.Levels = append(out.Levels, dl)
	}
	return out, nil
}

func levelTitle(l DAGLevel) string {
	if l.Level == 0 {
		return "Level 0 (Silver)"
	}
	return fmt.Sprintf("Level %d", l.Level)
}

func dagText(r *output.Renderer, out DAGOutput) {
	styles := r.Styles()
	r.Header(1, "Dependency Graph")

	for _, level := range out.Levels {
		r.Println(styles.Header2.Render(levelTitle(level) + ":"))
		for _, n := range level.Relations {
			r.Printf("  %s %s\n", styles.Relation.Render(n.Name), styles.Muted.Render("("+n.Kind+")"))
			if len(n.DependsOn) > 0 {
				r.Printf("    %s %s\n", styles.Muted.Render("<-"), strings.Join(n.DependsOn, ", "))
			}
			if len(n.UsedBy) > 0 {
				r.Printf("    %s %s\n", styles.Muted.Render("->"), strings.Join(n.UsedBy, ", "))
			}
		}
		r.Println("")
	}
	r.Muted(fmt.Sprintf("%d relations, %d dependencies", out.TotalRelations, out.TotalEdges))
}

func dagMarkdown(r *output.Renderer, out DAGOutput) {
	r.Header(1, "Dependency Graph")

	for _, level := range out.Levels {
		r.Println(output.FormatHeader(2, levelTitle(level)))
		for _, n := range level.Relations {
			r.Printf("- %s (%s)\n", n.Name, n.Kind)
			if len(n.DependsOn) > 0 {
				r.Printf("  - depends on: %s\n", strings.Join(n.DependsOn, ", "))
			}
			if len(n.UsedBy) > 0 {
				r.Printf("  - used by: %s\n", strings.Join(n.UsedBy, ", "))
			}
		}
		r.Println("")
	}

	r.Println(output.FormatHeader(2, "Summary"))
	r.Println(output.FormatKeyValue("Total Relations", fmt.Sprint(out.TotalRelations)))
	r.Println(output.FormatKeyValue("Total Dependencies", fmt.Sprint(out.TotalEdges)))
}
