package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/leapgold/internal/cli/commands"
	"github.com/leapstack-labs/leapgold/internal/cli/testutil"
	"github.com/leapstack-labs/leapgold/internal/engine"
	"github.com/leapstack-labs/leapgold/internal/gold"
	"github.com/leapstack-labs/leapgold/internal/scheduler"
	"github.com/leapstack-labs/leapgold/pkg/core"

	_ "github.com/leapstack-labs/leapgold/pkg/adapters/csv"
)

type result struct {
	out    string
	errOut string
	err    error
}

func execute(t *testing.T, project string, args ...string) result {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	if project != "" {
		args = append([]string{"--config", filepath.Join(project, "leapgold.yaml")}, args...)
	}
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return result{out: out.String(), errOut: errOut.String(), err: err}
}

func decode[T any](t *testing.T, r result) T {
	t.Helper()
	require.NoError(t, r.err, r.errOut)
	var v T
	require.NoError(t, json.Unmarshal([]byte(r.out), &v), r.out)
	return v
}

func TestVersion_NoConfigNeeded(t *testing.T) {
	t.Chdir(t.TempDir())
	r := execute(t, "", "version")
	require.NoError(t, r.err)
	assert.Contains(t, r.out, "leapgold v"+Version)
}

func TestCompletion(t *testing.T) {
	r := execute(t, "", "completion", "bash")
	require.NoError(t, r.err)
	assert.Contains(t, r.out, "bash completion")

	r = execute(t, "", "completion", "tcsh")
	assert.Error(t, r.err)
}

func TestInvalidConfigFlag(t *testing.T) {
	project := testutil.SetupTestProject(t)
	r := execute(t, project, "--store", "bogus", "show")
	require.Error(t, r.err)
	assert.Contains(t, r.err.Error(), "store.backend must be one of")
}

func TestLoadRefreshAndRead(t *testing.T) {
	project := testutil.SetupTestProject(t)

	loaded := decode[[]engine.LoadOutcome](t, execute(t, project, "-o", "json", "load"))
	require.Len(t, loaded, 4)
	for _, o := range loaded {
		assert.Equal(t, engine.LoadCommitted, o.Status, o.Relation)
	}

	plan := decode[scheduler.Plan](t, execute(t, project, "refresh", "--dry-run", "--json"))
	assert.Len(t, plan.Steps, 7)

	report := decode[core.RefreshReport](t, execute(t, project, "refresh", "--json"))
	assert.Equal(t, core.RunStatusCompleted, report.Status)
	assert.Len(t, report.Outcomes, 7)

	statuses := decode[[]map[string]any](t, execute(t, project, "-o", "json", "show"))
	require.Len(t, statuses, 11)
	for _, st := range statuses {
		assert.Equal(t, false, st["stale"], st["name"])
	}

	r := execute(t, project, "-o", "markdown", "show", gold.DailySales, "--limit", "3")
	require.NoError(t, r.err, r.errOut)
	assert.Contains(t, r.out, "# retail_gold."+gold.DailySales)
	assert.Contains(t, r.out, "- **Upstreams:** dim_date, fact_lineitem, fact_orders")
	assert.Contains(t, r.out, "(3 of ")
	testutil.AssertNoANSI(t, r.out)
	testutil.AssertValidMarkdown(t, r.out)

	r = execute(t, project, "show", gold.DailySales, "--csv")
	require.NoError(t, r.err)
	assert.True(t, strings.HasPrefix(r.out, "order_date,year_month,region,market_segment,"), r.out[:min(80, len(r.out))])

	runs := decode[[]core.Run](t, execute(t, project, "-o", "json", "runs"))
	require.Len(t, runs, 1)
	assert.Equal(t, report.RunID, runs[0].ID)

	r = execute(t, project, "-o", "markdown", "runs", report.RunID)
	require.NoError(t, r.err)
	assert.Contains(t, r.out, "# Run "+report.RunID)
	assert.Contains(t, r.out, "- "+gold.MonthlySales+": success")

	// Nothing changed, so a second refresh keeps every version.
	again := decode[core.RefreshReport](t, execute(t, project, "refresh", "--json"))
	assert.Equal(t, report.Versions, again.Versions)
	for _, o := range again.Outcomes {
		assert.Equal(t, core.RelationStatusCurrent, o.Status, o.Relation)
	}

	// --all recomputes current relations too.
	forced := decode[core.RefreshReport](t, execute(t, project, "refresh", "--all", "--json"))
	for name, v := range report.Versions {
		assert.Equal(t, v+1, forced.Versions[name], name)
	}
	r = execute(t, project, "refresh", "--all", "--select", gold.DailySales)
	require.Error(t, r.err)
	assert.Contains(t, r.err.Error(), "--all cannot be combined")

	// A reload of unchanged files commits nothing.
	reloaded := decode[[]engine.LoadOutcome](t, execute(t, project, "load", "--json", gold.FactOrders))
	require.Len(t, reloaded, 1)
	assert.Equal(t, engine.LoadUnchanged, reloaded[0].Status)
}

func TestQuery(t *testing.T) {
	project := testutil.SetupTestProject(t)
	require.NoError(t, execute(t, project, "refresh", "--load").err)

	list := decode[[]map[string]any](t, execute(t, project, "-o", "json", "query"))
	assert.NotEmpty(t, list)

	res := decode[struct {
		Query    string            `json:"query"`
		Versions map[string]uint64 `json:"versions"`
		Rows     []map[string]any  `json:"rows"`
	}](t, execute(t, project, "-o", "json", "query", "top_products", "-p", "top_n=2"))
	assert.Equal(t, "top_products", res.Query)
	assert.LessOrEqual(t, len(res.Rows), 2)
	assert.Equal(t, uint64(1), res.Versions[gold.ProductPerformance])

	r := execute(t, project, "query", "top_products", "-p", "top_n=0")
	require.Error(t, r.err)
	assert.Contains(t, r.err.Error(), "top_n")

	r = execute(t, project, "query", "no_such_query")
	require.Error(t, r.err)
	assert.Contains(t, r.err.Error(), "unknown query")
}

func TestRefresh_WithoutLoadFails(t *testing.T) {
	project := testutil.SetupTestProject(t)

	r := execute(t, project, "-o", "markdown", "refresh", "--select", gold.DailySales)
	require.Error(t, r.err)
	assert.Contains(t, r.err.Error(), "refresh failed for 1 relation(s): "+gold.DailySales)
	assert.Contains(t, r.out, "- "+gold.DailySales+": failed")
}

func TestLoad_RejectsDerived(t *testing.T) {
	project := testutil.SetupTestProject(t)
	r := execute(t, project, "load", gold.DailySales)
	require.Error(t, r.err)
	assert.Contains(t, r.err.Error(), "is derived")
}

func TestDAG(t *testing.T) {
	project := testutil.SetupTestProject(t)

	out := decode[commands.DAGOutput](t, execute(t, project, "-o", "json", "dag"))
	assert.Equal(t, 11, out.TotalRelations)
	require.NotEmpty(t, out.Levels)
	for _, n := range out.Levels[0].Relations {
		assert.Equal(t, string(core.KindBase), n.Kind, n.Name)
	}

	r := execute(t, project, "-o", "markdown", "dag")
	require.NoError(t, r.err)
	assert.Contains(t, r.out, "## Level 0 (Silver)")
	assert.Contains(t, r.out, "- **Total Relations:** 11")

	focused := decode[commands.DAGOutput](t, execute(t, project, "-o", "json", "dag", "--select", gold.MonthlySales))
	assert.Less(t, focused.TotalRelations, 11)
	var names []string
	for _, level := range focused.Levels {
		for _, n := range level.Relations {
			names = append(names, n.Name)
		}
	}
	assert.Contains(t, names, gold.DailySales)
	assert.Contains(t, names, gold.FactOrders)
	assert.NotContains(t, names, gold.CustomerRFM)

	assert.Error(t, execute(t, project, "dag", "--select", "gold_nope").err)
}

func TestContract(t *testing.T) {
	project := testutil.SetupTestProject(t)

	r := execute(t, project, "contract", "--kind", "derived")
	require.NoError(t, r.err)
	var contract commands.Contract
	require.NoError(t, yaml.Unmarshal([]byte(r.out), &contract))
	assert.Equal(t, "retail_gold", contract.Namespace)
	require.Len(t, contract.Relations, 7)
	for _, rel := range contract.Relations {
		assert.Equal(t, core.KindDerived, rel.Kind)
		assert.NotEmpty(t, rel.Columns, rel.Name)
		assert.NotEmpty(t, rel.Upstreams, rel.Name)
	}

	full := decode[commands.Contract](t, execute(t, project, "contract", "--format", "json"))
	assert.Len(t, full.Relations, 11)

	assert.Error(t, execute(t, project, "contract", "--format", "xml").err)
	assert.Error(t, execute(t, project, "contract", "--kind", "view").err)
}
