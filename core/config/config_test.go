package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/zonecast/core/config"
)

type cachedConfig struct {
	Zone string `env:"ZONECAST_TEST_ZONE" envDefault:"default-zone"`
}

type requiredConfig struct {
	URL string `env:"ZONECAST_TEST_REQUIRED_URL,required"`
}

func TestLoad(t *testing.T) {
	t.Setenv("ZONECAST_TEST_ZONE", "district")

	var first cachedConfig
	require.NoError(t, config.Load(&first))
	assert.Equal(t, "district", first.Zone)

	t.Setenv("ZONECAST_TEST_ZONE", "changed")
	var second cachedConfig
	require.NoError(t, config.Load(&second))
	assert.Equal(t, "district", second.Zone, "second load is served from cache")
}

func TestLoad_Errors(t *testing.T) {
	var cfg requiredConfig
	assert.ErrorIs(t, config.Load(&cfg), config.ErrParseEnv)
	assert.ErrorIs(t, config.Load[requiredConfig](nil), config.ErrNilConfig)
	assert.Panics(t, func() { config.MustLoad(&cfg) })
}

type fileConfig struct {
	ID    string   `yaml:"id"`
	Zones []string `yaml:"zones"`
}

func TestLoadFile(t *testing.T) {
	t.Setenv("ZONECAST_TEST_AGENT", "pub-1")
	dir := t.TempDir()

	path := filepath.Join(dir, "agent.yaml")
	require.NoError(t, os.WriteFile(path, []byte("id: ${ZONECAST_TEST_AGENT}\nzones: [a, b]\n"), 0o600))

	var cfg fileConfig
	require.NoError(t, config.LoadFile(path, &cfg))
	assert.Equal(t, "pub-1", cfg.ID)
	assert.Equal(t, []string{"a", "b"}, cfg.Zones)

	assert.ErrorIs(t, config.LoadFile(filepath.Join(dir, "missing.yaml"), &cfg), config.ErrFileNotFound)

	require.NoError(t, os.WriteFile(path, []byte("id: x\nzone: typo\n"), 0o600))
	assert.ErrorIs(t, config.LoadFile(path, &cfg), config.ErrParseFile)
}
