package config

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	// Import adapter packages to ensure adapters are registered via init()
	_ "github.com/leapstack-labs/leapgold/pkg/adapters/csv"
	_ "github.com/leapstack-labs/leapgold/pkg/adapters/postgres"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("", nil)
	require.NoError(t, err)

	cwd, err := os.Getwd()
	require.NoError(t, err)

	assert.Equal(t, DefaultNamespace, cfg.Namespace)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "csv", cfg.Source.Type)
	assert.Equal(t, filepath.Join(cwd, DefaultSourcePath), cfg.Source.Path)
	assert.Equal(t, "sqlite", cfg.Store.Backend)
	assert.Equal(t, filepath.Join(cwd, DefaultStorePath), cfg.Store.Path)
	assert.Equal(t, RefreshConfig{Parallelism: 4, Partitions: 4, KeepRuns: 50}, cfg.Refresh)
	assert.Equal(t, ":8087", cfg.Serve.Addr)
	assert.Empty(t, cfg.File)
}

func TestLoad_FileEnvFlagPrecedence(t *testing.T) {
	path := writeConfig(t, `
namespace: retail_gold
log_level: debug
source:
  type: postgres
  host: db.internal
  database: silver
  password: ${LEAPGOLD_TEST_PASSWORD}
  schema: retail_silver
  options:
    sslmode: require
store:
  backend: badger
  path: state
refresh:
  parallelism: 2
  keep_runs: 10
`)
	t.Setenv("LEAPGOLD_TEST_PASSWORD", "s3cret")
	t.Setenv("LEAPGOLD_REFRESH__PARALLELISM", "6")
	t.Setenv("LEAPGOLD_LOG_FORMAT", "json")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("store", "", "")
	flags.Int("parallelism", 0, "")
	flags.String("namespace", "", "")
	flags.Bool("json", false, "")
	require.NoError(t, flags.Parse([]string{"--parallelism=8", "--json"}))

	cfg, err := Load(path, flags)
	require.NoError(t, err)

	assert.Equal(t, path, cfg.File)
	assert.Equal(t, filepath.Dir(path), cfg.ProjectRoot)
	assert.Equal(t, "retail_gold", cfg.Namespace, "unchanged flag must not override the file")
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat, "env overrides defaults")
	assert.Equal(t, 8, cfg.Refresh.Parallelism, "flag overrides env")
	assert.Equal(t, 10, cfg.Refresh.KeepRuns)
	assert.Equal(t, "badger", cfg.Store.Backend)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "state"), cfg.Store.Path)
	assert.Equal(t, "db.internal", cfg.Source.Host)
	assert.Equal(t, "s3cret", cfg.Source.Password)
	assert.Equal(t, "retail_silver", cfg.Source.Schema)
	assert.Equal(t, map[string]string{"sslmode": "require"}, cfg.Source.Options)
}

func TestLoad_FindsConfigUpward(t *testing.T) {
	path := writeConfig(t, "namespace: found\n")
	nested := filepath.Join(filepath.Dir(path), "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o750))
	t.Chdir(nested)

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "found", cfg.Namespace)
	assert.Equal(t, filepath.Dir(path), cfg.ProjectRoot)
}

func TestLoad_InMemoryPathsUnchanged(t *testing.T) {
	path := writeConfig(t, "store:\n  backend: memory\n  path: \":memory:\"\n")

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, ":memory:", cfg.Store.Path)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errSub  string
	}{
		{name: "bad namespace", content: "namespace: 9lives\n", errSub: `namespace "9lives" is not a valid identifier`},
		{name: "bad backend", content: "store:\n  backend: redis\n", errSub: "store.backend must be one of"},
		{name: "bad log level", content: "log_level: loud\n", errSub: "log_level must be one of"},
		{name: "zero parallelism", content: "refresh:\n  parallelism: 0\n", errSub: "refresh.parallelism must be >= 1"},
		{name: "unknown source", content: "source:\n  type: oracle\n", errSub: `unknown source type "oracle"`},
		{name: "csv without path", content: "source:\n  type: csv\n  path: \"\"\n", errSub: "source.path is required"},
		{name: "malformed yaml", content: "namespace: [\n", errSub: "error reading config file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content), nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSub)
		})
	}
}

func TestConfigKey(t *testing.T) {
	assert.Equal(t, "refresh.keep_runs", configKey("Config.Refresh.KeepRuns"))
	assert.Equal(t, "source.type", configKey("Config.Source.type"))
	assert.Equal(t, "log_level", configKey("Config.LogLevel"))
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer

	logger, err := NewLogger(&buf, "warn", "json")
	require.NoError(t, err)
	logger.Info("hidden")
	logger.Warn("shown", "relation", "gold_daily_sales")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"relation":"gold_daily_sales"`)

	_, err = NewLogger(&buf, "loud", "text")
	assert.Error(t, err)
	_, err = NewLogger(&buf, "info", "xml")
	assert.Error(t, err)
}

func TestLoggerContext(t *testing.T) {
	ctx := context.Background()
	assert.NotNil(t, GetLogger(ctx), "missing logger falls back to discard")

	logger, err := NewLogger(&bytes.Buffer{}, "info", "text")
	require.NoError(t, err)
	assert.Same(t, logger, GetLogger(WithLogger(ctx, logger)))
}
