package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", Default())
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.Equal(t, 10, cfg.MaxConcurrency)
	assert.Equal(t, "0.0.0.0:3000", cfg.Addr())
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("HOST", "127.0.0.1")
	t.Setenv("MAX_CONCURRENCY", "5")

	cfg, err := Load("", Default())
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "127.0.0.1", cfg.Host)
	assert.Equal(t, 5, cfg.MaxConcurrency)
}

func TestLoadYAMLOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fabrigo.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: 9000\nhost: 10.0.0.1\nmax_concurrency: 42\n"), 0o644))

	cfg, err := Load(path, Default())
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "10.0.0.1", cfg.Host)
	assert.Equal(t, 42, cfg.MaxConcurrency)
}

func TestLoadInvalidEnvPort(t *testing.T) {
	t.Setenv("PORT", "not-a-number")
	_, err := Load("", Default())
	assert.Error(t, err)
}
