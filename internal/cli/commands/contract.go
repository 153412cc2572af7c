package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/leapgold/internal/catalog"
	"github.com/leapstack-labs/leapgold/internal/gold"
	"github.com/leapstack-labs/leapgold/pkg/core"
)

// Contract is the published schema of every relation in a namespace.
type Contract struct {
	Namespace string             `json:"namespace" yaml:"namespace"`
	Relations []ContractRelation `json:"relations" yaml:"relations"`
}

// ContractRelation is one relation of the contract.
type ContractRelation struct {
	Name        string            `json:"name" yaml:"name"`
	Qualified   string            `json:"qualified" yaml:"qualified"`
	Kind        core.RelationKind `json:"kind" yaml:"kind"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty"`
	Upstreams   []string          `json:"upstreams,omitempty" yaml:"upstreams,omitempty"`
	Clustering  []string          `json:"clustering,omitempty" yaml:"clustering,omitempty"`
	Columns     core.Schema       `json:"columns" yaml:"columns"`
}

// BuildContract describes the relations of cat, optionally only one kind.
func BuildContract(cat *catalog.Catalog, kind core.RelationKind) Contract {
	g := cat.Graph()
	c := Contract{Namespace: cat.Namespace()}
	for _, rel := range cat.Relations() {
		if kind != "" && rel.Kind != kind {
			continue
		}
		c.Relations = append(c.Relations, ContractRelation{
			Name:        rel.Name,
			Qualified:   cat.Qualified(rel.Name),
			Kind:        rel.Kind,
			Description: rel.Description,
			Upstreams:   g.Parents(rel.Name),
			Clustering:  rel.Clustering,
			Columns:     rel.Columns,
		})
	}
	return c
}

// NewContractCommand creates the contract command.
func NewContractCommand() *cobra.Command {
	var (
		format string
		kind   string
	)

	cmd := &cobra.Command{
		Use:   "contract",
		Short: "Print the typed schema of every relation",
		Long: `Print the input and output contract: every relation's columns, types,
nullability and upstreams. Column names and types of the gold relations are
a public contract; diff this output to catch breaking changes.`,
		Example: `  # Gold output contract as YAML
  leapgold contract --kind derived

  # Full contract as JSON
  leapgold contract --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, err := NewCommandContextWithoutEngine(cmd)
			if err != nil {
				return err
			}

			var k core.RelationKind
			switch kind {
			case "", "all":
			case string(core.KindBase), string(core.KindDerived):
				k = core.RelationKind(kind)
			default:
				return fmt.Errorf("unknown kind %q (valid: all, base, derived)", kind)
			}

			cat, err := gold.NewCatalog(cc.Cfg.Namespace)
			if err != nil {
				return err
			}
			contract := BuildContract(cat, k)

			out := cmd.OutOrStdout()
			switch format {
			case "json":
				return writeJSON(out, contract)
			case "yaml", "yml":
				enc := yaml.NewEncoder(out)
				enc.SetIndent(2)
				if err := enc.Encode(contract); err != nil {
					return err
				}
				return enc.Close()
			}
			return fmt.Errorf("unknown format %q (valid: yaml, json)", format)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "yaml", "Output format (yaml|json)")
	cmd.Flags().StringVar(&kind, "kind", "all", "Relations to include (all|base|derived)")
	_ = cmd.RegisterFlagCompletionFunc("format", cobra.FixedCompletions([]string{"yaml", "json"}, cobra.ShellCompDirectiveNoFileComp))
	_ = cmd.RegisterFlagCompletionFunc("kind", cobra.FixedCompletions([]string{"all", "base", "derived"}, cobra.ShellCompDirectiveNoFileComp))
	return cmd
}
