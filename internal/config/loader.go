package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix prefixes environment overrides. A double underscore nests:
// LEAPGOLD_STORE__BACKEND sets store.backend.
const EnvPrefix = "LEAPGOLD_"

// maxUpwardSearchLevels limits how far up the directory tree to search for config files.
const maxUpwardSearchLevels = 10

// flagKeys maps command line flags to config keys. Flags not listed here
// are command options, not configuration.
var flagKeys = map[string]string{
	"namespace":   "namespace",
	"log-level":   "log_level",
	"log-format":  "log_format",
	"output":      "output",
	"source-type": "source.type",
	"source-path": "source.path",
	"source-dsn":  "source.dsn",
	"store":       "store.backend",
	"store-path":  "store.path",
	"parallelism": "refresh.parallelism",
	"partitions":  "refresh.partitions",
	"keep-runs":   "refresh.keep_runs",
	"addr":        "serve.addr",
}

// Load reads configuration from defaults, cfgFile (or the nearest
// leapgold.yaml), the environment and the changed flags of flags, then
// validates it. Relative paths are resolved against the project root.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	path := cfgFile
	if path == "" {
		if cwd, err := os.Getwd(); err == nil {
			path = findConfigUpward(cwd)
		}
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}

	// 3. Environment variables
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags, only those explicitly set
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	cfg.File = path
	cfg.ProjectRoot = projectRoot(path)
	cfg.resolvePaths()
	expandSourceEnvVars(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey transforms LEAPGOLD_REFRESH__KEEP_RUNS into refresh.keep_runs.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

func configExistsIn(dir string) string {
	for _, name := range []string{ConfigFileName, ConfigFileNameAlt} {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// findConfigUpward searches upward from startDir for a config file.
// Returns empty string if not found within maxUpwardSearchLevels.
func findConfigUpward(startDir string) string {
	dir := startDir
	for range maxUpwardSearchLevels {
		if p := configExistsIn(dir); p != "" {
			return p
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

func projectRoot(cfgFile string) string {
	if cfgFile != "" {
		if abs, err := filepath.Abs(cfgFile); err == nil {
			return filepath.Dir(abs)
		}
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return cwd
}

func (c *Config) resolvePaths() {
	c.Store.Path = resolvePathRelativeTo(c.Store.Path, c.ProjectRoot)
	c.Source.Path = resolvePathRelativeTo(c.Source.Path, c.ProjectRoot)
}

// resolvePathRelativeTo resolves a path relative to baseDir if it's not absolute.
// Empty, in-memory and absolute paths are returned unchanged.
func resolvePathRelativeTo(path, baseDir string) string {
	if path == "" || path == ":memory:" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if val := os.Getenv(match[2 : len(match)-1]); val != "" {
			return val
		}
		return match
	})
}

// expandSourceEnvVars expands environment variables in credential fields.
func expandSourceEnvVars(c *Config) {
	c.Source.DSN = expandEnvVars(c.Source.DSN)
	c.Source.Host = expandEnvVars(c.Source.Host)
	c.Source.Username = expandEnvVars(c.Source.Username)
	c.Source.Password = expandEnvVars(c.Source.Password)
	c.Source.Database = expandEnvVars(c.Source.Database)
}
