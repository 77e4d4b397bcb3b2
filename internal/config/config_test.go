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

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
app:
  name: suppliersync-test
database:
  path: /tmp/sync.db
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 100, cfg.Sync.PageSize)
	assert.Equal(t, 200, cfg.Sync.CheckpointEvery)
	assert.Equal(t, 10*time.Minute, cfg.Sync.Overlap())
	assert.Equal(t, 500*time.Millisecond, cfg.Sync.CallDelay())
	assert.Equal(t, 30*time.Minute, cfg.Sync.StaleTTL())
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.Retry.InitialDelay())
	assert.Equal(t, time.Minute, cfg.Retry.MaxDelay())
	assert.Equal(t, "exports", cfg.Exports.Path)
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("TEST_DB_PATH", "/data/sync.db")
	path := writeConfig(t, `
database:
  path: ${TEST_DB_PATH}
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/data/sync.db", cfg.Database.Path)
}

func TestValidateRejectsMissingDatabasePath(t *testing.T) {
	path := writeConfig(t, `
app:
  name: broken
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database path")
}

func TestValidateTelegramToken(t *testing.T) {
	path := writeConfig(t, `
database:
  path: /tmp/sync.db
telegram:
  enabled: true
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "telegram bot token")
}

func TestValidateAPIKeysRequired(t *testing.T) {
	path := writeConfig(t, `
database:
  path: /tmp/sync.db
api:
  enabled: true
  auth:
    enabled: true
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no api keys")
}

func TestValidateSuppliers(t *testing.T) {
	ok := []SupplierConfig{
		{Code: "ownerclan", BaseURL: "https://api.example.com", Account: "acc1"},
		{Code: "domeggook", BaseURL: "https://api.other.com"},
	}
	assert.NoError(t, ValidateSuppliers(ok))

	dup := append(ok, SupplierConfig{Code: "ownerclan", BaseURL: "https://x"})
	assert.Error(t, ValidateSuppliers(dup))

	noURL := []SupplierConfig{{Code: "bare"}}
	assert.Error(t, ValidateSuppliers(noURL))

	disabled := []SupplierConfig{{Code: "off", Disabled: true}}
	assert.NoError(t, ValidateSuppliers(disabled))
}

func TestParamDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  path: /tmp/sync.db
sync:
  page_size: 50
  overlap_minutes: 5
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	d := cfg.ParamDefaults()
	assert.Equal(t, 50, d.PageSize)
	assert.Equal(t, 5*time.Minute, d.Overlap)
	assert.Equal(t, 200, d.CheckpointEvery)
}
