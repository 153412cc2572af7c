package adapter

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnknownAdapterError(t *testing.T) {
	err := &UnknownAdapterError{Type: "fake_db", Available: []string{"csv", "duckdb"}}
	assert.Equal(t, `unknown source type "fake_db" (available: csv, duckdb); check source.type in leapgold.yaml`, err.Error())
}

func TestRegistry(t *testing.T) {
	Register("Registry_Fixture", func(*slog.Logger) Source { return nil })

	assert.True(t, IsRegistered("registry_fixture"))
	assert.True(t, IsRegistered("REGISTRY_FIXTURE"))
	assert.Contains(t, ListAdapters(), "registry_fixture")
	assert.False(t, IsRegistered("registry_missing"))

	factory, ok := Get("registry_fixture")
	require.True(t, ok)
	assert.Nil(t, factory(nil))
}

func TestNewSource(t *testing.T) {
	_, err := NewSource(Config{}, nil)
	require.Error(t, err)
	assert.Equal(t, "source type not specified", err.Error())

	_, err = NewSource(Config{Type: "oracle"}, nil)
	var unknown *UnknownAdapterError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "oracle", unknown.Type)
}
