package adapter

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/leapstack-labs/leapgold/pkg/core"
)

// Factory builds a source. A nil logger means discard.
type Factory func(*slog.Logger) Source

// sources maps lower-cased type names to factories. Adapters fill it from
// their init functions, so reads vastly outnumber writes.
var sources = struct {
	sync.RWMutex
	byType map[string]Factory
}{byType: make(map[string]Factory)}

// Register makes a source type available to NewSource. Registering a name
// twice replaces the earlier factory.
func Register(name string, factory Factory) {
	sources.Lock()
	defer sources.Unlock()
	sources.byType[strings.ToLower(name)] = factory
}

// Get returns the factory registered under name.
func Get(name string) (Factory, bool) {
	sources.RLock()
	defer sources.RUnlock()
	f, ok := sources.byType[strings.ToLower(name)]
	return f, ok
}

// IsRegistered reports whether name has a factory.
func IsRegistered(name string) bool {
	_, ok := Get(name)
	return ok
}

// ListAdapters returns the registered type names, sorted.
func ListAdapters() []string {
	sources.RLock()
	defer sources.RUnlock()
	return slices.Sorted(maps.Keys(sources.byType))
}

// NewSource instantiates the source named by cfg.Type. It does not connect.
func NewSource(cfg core.AdapterConfig, logger *slog.Logger) (Source, error) {
	if cfg.Type == "" {
		return nil, fmt.Errorf("source type not specified")
	}
	factory, ok := Get(cfg.Type)
	if !ok {
		return nil, &UnknownAdapterError{Type: cfg.Type, Available: ListAdapters()}
	}
	return factory(logger), nil
}

// UnknownAdapterError is returned for a source type nobody registered.
type UnknownAdapterError struct {
	Type      string
	Available []string
}

func (e *UnknownAdapterError) Error() string {
	return fmt.Sprintf("unknown source type %q (available: %s); check source.type in leapgold.yaml",
		e.Type, strings.Join(e.Available, ", "))
}
