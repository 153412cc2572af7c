// Package testutil builds throwaway leapgold projects for CLI tests.
package testutil

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapgold/internal/gold/goldtest"
)

// ProjectConfig is the leapgold.yaml written by SetupTestProject. Paths are
// relative to the project directory.
const ProjectConfig = `namespace: retail_gold
log_level: warn
source:
  type: csv
  path: silver
store:
  backend: sqlite
  path: .leapgold/state.db
refresh:
  parallelism: 2
  partitions: 2
  keep_runs: 5
`

// SetupTestProject writes a leapgold.yaml and a small generated silver
// data set under silver/ into a temp dir, and returns the dir.
func SetupTestProject(t testing.TB) string {
	t.Helper()

	dir := t.TempDir()
	silver := filepath.Join(dir, "silver")
	require.NoError(t, os.MkdirAll(silver, 0o755))

	cfg := goldtest.DefaultConfig()
	cfg.Orders = 250
	cfg.Customers = 20
	require.NoError(t, goldtest.Generate(cfg).WriteCSV(silver), "write silver data")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "leapgold.yaml"), []byte(ProjectConfig), 0o644))
	return dir
}

var ansiEscape = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI fails when s carries terminal escape sequences.
func AssertNoANSI(t testing.TB, s string) {
	t.Helper()
	assert.False(t, ansiEscape.MatchString(s), "unexpected ANSI escapes in %q", s)
}

// AssertValidMarkdown checks code fences are balanced and no header is
// empty.
func AssertValidMarkdown(t testing.TB, md string) {
	t.Helper()
	assert.Zero(t, strings.Count(md, "```")%2, "unbalanced code fences")
	for i, line := range strings.Split(md, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			assert.NotEmpty(t, strings.TrimLeft(trimmed, "# "), "empty header at line %d", i+1)
		}
	}
}
