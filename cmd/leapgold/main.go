// Command leapgold maintains and serves the gold metrics layer.
package main

import (
	"os"

	"github.com/leapstack-labs/leapgold/internal/cli"

	// Silver source adapters register themselves with the adapter registry.
	_ "github.com/leapstack-labs/leapgold/pkg/adapters/csv"
	_ "github.com/leapstack-labs/leapgold/pkg/adapters/duckdb"
	_ "github.com/leapstack-labs/leapgold/pkg/adapters/postgres"
	_ "github.com/leapstack-labs/leapgold/pkg/adapters/sqlite"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
