package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chtmp(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chtmp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 30, cfg.Connectors.TimeoutSecs)
	assert.Equal(t, "https://api.hubapi.com", cfg.Connectors.HubSpot.BaseURL)
	assert.InDelta(t, 5.0, cfg.Connectors.GA4.RPS, 0.001)
	assert.InDelta(t, 2.0, cfg.Connectors.Reddit.RPS, 0.001)
	assert.Equal(t, "claude-sonnet-4-5-20250929", cfg.Anthropic.Model)
	assert.Empty(t, cfg.Channels.RulesPath)
	assert.Empty(t, cfg.Funnel.LeadEvent)
}

func TestLoadFromYAML(t *testing.T) {
	chtmp(t)

	yaml := `
store:
  driver: sqlite
  database_url: atlas.db
log:
  level: debug
  format: console
server:
  port: 9090
connectors:
  timeout_secs: 10
  ga4:
    key: ga4-key
    base_url: https://ga4.example.com
funnel:
  lead_event: Lead_Generated_All_Sites
`
	dir, _ := os.Getwd()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 10, cfg.Connectors.TimeoutSecs)
	assert.Equal(t, "ga4-key", cfg.Connectors.GA4.Key)
	assert.Equal(t, "https://ga4.example.com", cfg.Connectors.GA4.BaseURL)
	assert.True(t, cfg.Connectors.GA4.Enabled())
	assert.False(t, cfg.Connectors.HubSpot.Enabled())
	assert.Equal(t, "Lead_Generated_All_Sites", cfg.Funnel.LeadEvent)
	// Defaults still apply for unset values
	assert.Equal(t, "https://api.hubapi.com", cfg.Connectors.HubSpot.BaseURL)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	chtmp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	dir, _ := os.Getwd()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("ATLAS_STORE_DRIVER", "postgres")
	t.Setenv("ATLAS_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chtmp(t)

	t.Setenv("ATLAS_SERVER_PORT", "3000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestConnectorsTimeout(t *testing.T) {
	cfg := ConnectorsConfig{TimeoutSecs: 45}
	assert.Equal(t, "45s", cfg.Timeout().String())
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config that passes validation in every mode.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Server.Port = 8080
	cfg.Connectors.TimeoutSecs = 30
	cfg.Connectors.GA4 = ConnectorConfig{Key: "k", BaseURL: "https://ga4.example.com"}
	cfg.Connectors.HubSpot = ConnectorConfig{Key: "k", BaseURL: "https://hs.example.com"}
	cfg.Store.Driver = "memory"
	return cfg
}

func TestValidateServe_Valid(t *testing.T) {
	assert.NoError(t, validDefaults().Validate("serve"))
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidate_NoConnectors(t *testing.T) {
	cfg := validDefaults()
	cfg.Connectors.GA4 = ConnectorConfig{}
	cfg.Connectors.HubSpot = ConnectorConfig{}

	err := cfg.Validate("funnel")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "connectors.ga4 or connectors.hubspot")
}

func TestValidate_ZeroTimeout(t *testing.T) {
	cfg := validDefaults()
	cfg.Connectors.TimeoutSecs = 0

	err := cfg.Validate("funnel")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "timeout_secs")
}

func TestValidateReport_PostgresNeedsURL(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "postgres"

	err := cfg.Validate("report")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")

	cfg.Store.DatabaseURL = "postgres://localhost/atlas"
	assert.NoError(t, cfg.Validate("report"))
}

func TestValidateUnknownMode(t *testing.T) {
	err := validDefaults().Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
