package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir()) // no config file present

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "ledger.db", cfg.Store.SQLitePath)
	assert.Equal(t, "rest", cfg.Source.Kind)
	assert.Equal(t, 6, cfg.Index.TimeoutSecs)
	assert.Equal(t, float64(10), cfg.Index.RequestsPerSec)
	assert.Equal(t, 3, cfg.Index.MaxAttempts)
	assert.Equal(t, 8, cfg.Pipeline.MaxConcurrentRecords)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_ConfigFile(t *testing.T) {
	t.Chdir(t.TempDir())
	content := `
store:
  driver: postgres
  database_url: postgres://localhost/xia
pipeline:
  publisher: DAU
  source_key_fields: [CODE, SOURCESYSTEM]
  demote_on_source_failure: true
`
	require.NoError(t, os.WriteFile("config.yaml", []byte(content), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/xia", cfg.Store.DatabaseURL)
	assert.Equal(t, "DAU", cfg.Pipeline.Publisher)
	assert.Equal(t, []string{"CODE", "SOURCESYSTEM"}, cfg.Pipeline.SourceKeyFields)
	assert.True(t, cfg.Pipeline.DemoteOnSourceFailure)
	// Defaults still fill what the file leaves out.
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("XIA_STORE_DRIVER", "postgres")
	t.Setenv("XIA_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_MalformedFile(t *testing.T) {
	t.Chdir(t.TempDir())
	require.NoError(t, os.WriteFile("config.yaml", []byte("store: [unclosed"), 0o644))

	_, err := Load()
	assert.Error(t, err)
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))
	assert.Error(t, InitLogger(LogConfig{Level: "nope", Format: "json"}))
}
