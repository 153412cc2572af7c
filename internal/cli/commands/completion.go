package commands

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapgold/internal/config"
	"github.com/leapstack-labs/leapgold/internal/gold"
)

type relationFilter int

const (
	allRelations relationFilter = iota
	baseOnly
	derivedOnly
)

// completeRelations completes relation names from the built-in catalog.
func completeRelations(filter relationFilter) func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return func(_ *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		cat, err := gold.NewCatalog(config.DefaultNamespace)
		if err != nil {
			return nil, cobra.ShellCompDirectiveError
		}
		var names []string
		switch filter {
		case baseOnly:
			names = cat.Base()
		case derivedOnly:
			names = cat.Derived()
		default:
			for _, rel := range cat.Relations() {
				names = append(names, rel.Name)
			}
		}

		used := make(map[string]bool, len(args))
		for _, a := range args {
			used[a] = true
		}
		var out []string
		for _, n := range names {
			if !used[n] && strings.HasPrefix(n, toComplete) {
				out = append(out, n)
			}
		}
		return out, cobra.ShellCompDirectiveNoFileComp
	}
}
