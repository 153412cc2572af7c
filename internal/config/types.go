// Package config loads and validates leapgold configuration.
//
// Values are layered, lowest precedence first: built-in defaults, the YAML
// config file (leapgold.yaml or leapgold.yml), LEAPGOLD_ environment
// variables and explicitly set command line flags.
package config

import (
	"github.com/leapstack-labs/leapgold/pkg/core"
)

// Config file names, in lookup order.
const (
	ConfigFileName    = "leapgold.yaml"
	ConfigFileNameAlt = "leapgold.yml"
)

// Default configuration values.
const (
	DefaultNamespace   = "gold"
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "text"
	DefaultOutput      = "auto" // Auto-detect: TTY=text, non-TTY=markdown
	DefaultSourceType  = "csv"
	DefaultSourcePath  = "data/silver"
	DefaultStore       = "sqlite"
	DefaultStorePath   = ".leapgold/state.db"
	DefaultParallelism = 4
	DefaultPartitions  = 4
	DefaultKeepRuns    = 50
	DefaultServeAddr   = ":8087"
)

// Config holds all leapgold configuration.
type Config struct {
	Namespace string             `koanf:"namespace" validate:"required,identifier"`
	LogLevel  string             `koanf:"log_level" validate:"oneof=debug info warn error"`
	LogFormat string             `koanf:"log_format" validate:"oneof=text json"`
	Output    string             `koanf:"output" validate:"oneof=auto text markdown json"`
	Source    core.AdapterConfig `koanf:"source"`
	Store     StoreConfig        `koanf:"store"`
	Refresh   RefreshConfig      `koanf:"refresh"`
	Serve     ServeConfig        `koanf:"serve"`

	// ProjectRoot anchors relative paths. It is the directory of the config
	// file, or the working directory when there is none.
	ProjectRoot string `koanf:"-"`
	// File is the config file that was read, if any.
	File string `koanf:"-"`
}

// StoreConfig selects the materialization store.
type StoreConfig struct {
	Backend string `koanf:"backend" validate:"oneof=memory sqlite badger"`
	Path    string `koanf:"path"`
}

// RefreshConfig tunes the scheduler and evaluator.
type RefreshConfig struct {
	Parallelism int `koanf:"parallelism" validate:"gte=1,lte=64"`
	Partitions  int `koanf:"partitions" validate:"gte=1,lte=256"`
	KeepRuns    int `koanf:"keep_runs" validate:"gte=0"`
}

// ServeConfig holds HTTP server options.
type ServeConfig struct {
	Addr string `koanf:"addr" validate:"required"`
}

func defaults() map[string]any {
	return map[string]any{
		"namespace":           DefaultNamespace,
		"log_level":           DefaultLogLevel,
		"log_format":          DefaultLogFormat,
		"output":              DefaultOutput,
		"source.type":         DefaultSourceType,
		"source.path":         DefaultSourcePath,
		"store.backend":       DefaultStore,
		"store.path":          DefaultStorePath,
		"refresh.parallelism": DefaultParallelism,
		"refresh.partitions":  DefaultPartitions,
		"refresh.keep_runs":   DefaultKeepRuns,
		"serve.addr":          DefaultServeAddr,
	}
}
