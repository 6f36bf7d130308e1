package connection

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unshub/internal/api"
)

func TestRegistryRegisterValidation(t *testing.T) {
	registry := NewRegistry()

	err := registry.Register(nil)
	require.Error(t, err)
	assert.Equal(t, "cannot register nil descriptor", err.Error())

	err = registry.Register(newFakeDescriptor(""))
	require.Error(t, err)
	assert.Equal(t, "descriptor has empty connection type", err.Error())

	require.NoError(t, registry.Register(newFakeDescriptor("fake")))
	err = registry.Register(newFakeDescriptor("fake"))
	require.Error(t, err)
	assert.Equal(t, `descriptor "fake" already registered`, err.Error())
}

func TestRegistryGetUnknownType(t *testing.T) {
	registry := NewRegistry()

	_, err := registry.Get("mqtt")
	require.Error(t, err)
	assert.True(t, errors.Is(err, api.ErrUnknownConnectionType))
	assert.Contains(t, err.Error(), "mqtt")
}

func TestRegistryTypesSorted(t *testing.T) {
	registry := NewRegistry()
	for _, connType := range []string{"socketio", "mqtt", "fake"} {
		require.NoError(t, registry.Register(newFakeDescriptor(connType)))
	}

	assert.Equal(t, []string{"fake", "mqtt", "socketio"}, registry.Types())
}

func TestRegistryDefaultConfiguration(t *testing.T) {
	registry := NewRegistry()
	desc := newFakeDescriptor("fake")
	require.NoError(t, registry.Register(desc))

	cfg, err := registry.DefaultConfiguration("fake")
	require.NoError(t, err)

	assert.NotEmpty(t, cfg.ID)
	assert.Equal(t, "fake", cfg.ConnectionType)
	assert.True(t, cfg.IsEnabled)
	assert.False(t, cfg.AutoStart)
	assert.False(t, cfg.CreatedAt.IsZero())

	options, err := desc.DecodeConfig(cfg.ConnectionConfig)
	require.NoError(t, err)
	assert.Equal(t, "default", options.(*fakeOptions).Setting)

	_, err = registry.DefaultConfiguration("mqtt")
	assert.True(t, errors.Is(err, api.ErrUnknownConnectionType))
}
