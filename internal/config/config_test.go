package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadExpandsEnvPlaceholders(t *testing.T) {
	t.Setenv("TEST_BACKEND_URL", "https://facility.example.com")
	t.Setenv("TEST_API_KEY", "secret-key")

	path := writeConfig(t, `
backend:
  base_url: ${TEST_BACKEND_URL}
  api_key: ${TEST_API_KEY}
  timeout_seconds: 5
  page_size: 50
redis:
  address: localhost:6379
  cache_ttl_seconds: 120
booking:
  min_advance_minutes: 30
  max_advance_days: 14
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://facility.example.com", cfg.Backend.BaseURL)
	assert.Equal(t, "secret-key", cfg.Backend.APIKey)
	assert.Equal(t, 5*time.Second, cfg.BackendTimeout())
	assert.Equal(t, 50, cfg.Backend.PageSize)
	assert.Equal(t, 2*time.Minute, cfg.CacheTTL())
	assert.Equal(t, 30*time.Minute, cfg.BookingMinAdvance())
	assert.Equal(t, 14*24*time.Hour, cfg.BookingMaxAdvance())
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
backend:
  base_url: https://facility.example.com
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, cfg.BackendTimeout())
	assert.Equal(t, ":8080", cfg.HTTP.ListenAddress)
	assert.Equal(t, "Local", cfg.Facility.Timezone)
	assert.Zero(t, cfg.BookingMinAdvance(), "unset advance rules are disabled")
	assert.Zero(t, cfg.BookingMaxAdvance())

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeConfig(t, "backend: [not: a: map")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLocationResolvesZone(t *testing.T) {
	path := writeConfig(t, `
facility:
  timezone: Europe/Madrid
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Madrid", loc.String())
}
