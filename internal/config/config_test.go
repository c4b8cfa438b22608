package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := writeConfigFile(t, `
log_level = "debug"

[chain]
contract_address = "ST2CY5V39NHDPWSXMW9QDT3HC3GD6Q6XX4CFRK9AG"

[reconcile]
interval = "15s"

[server]
port = 9090
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Reconcile.Interval.Duration)

	// Untouched fields keep their defaults.
	assert.Equal(t, "https://api.testnet.hiro.so", cfg.Chain.APIURL)
	assert.Equal(t, 4, cfg.Reconcile.FetchConcurrency)

	require.NoError(t, cfg.Validate())
}

func TestEnvOverridesBeatFile(t *testing.T) {
	path := writeConfigFile(t, `
[server]
port = 9090
`)

	t.Setenv("STXIDX_SERVER_PORT", "7070")
	t.Setenv("STXIDX_CHAIN_API_KEY", "env-key")
	t.Setenv("STXIDX_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "env-key", cfg.Chain.APIKey)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
}

func TestValidateReportsAllProblems(t *testing.T) {
	cfg := Defaults()
	cfg.Chain.Address = "" // required
	cfg.Server.Port = 0
	cfg.LogLevel = "loud"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "contract_address")
	assert.Contains(t, err.Error(), "port")
	assert.Contains(t, err.Error(), "log_level")
}

func TestValidateArchiveRequiresS3(t *testing.T) {
	cfg := Defaults()
	cfg.Chain.Address = "ST2CY5V39NHDPWSXMW9QDT3HC3GD6Q6XX4CFRK9AG"
	cfg.Archive.Enabled = true

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "s3 must be enabled")

	cfg.S3.Enabled = true
	require.NoError(t, cfg.Validate())
}

func TestValidateTelegramHalves(t *testing.T) {
	cfg := Defaults()
	cfg.Chain.Address = "ST2CY5V39NHDPWSXMW9QDT3HC3GD6Q6XX4CFRK9AG"
	cfg.Notify.TelegramToken = "123:abc"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "telegram")

	cfg.Notify.TelegramChatID = "-100200300"
	require.NoError(t, cfg.Validate())
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Chain.APIKey = "hiro-key"
	cfg.Server.ChainhookSecret = "hook-secret"
	cfg.Redis.Password = "redis-pass"
	cfg.S3.SecretKey = "s3-secret"

	red := RedactedConfig(&cfg)

	assert.Equal(t, "***", red.Chain.APIKey)
	assert.Equal(t, "***", red.Server.ChainhookSecret)
	assert.Equal(t, "***", red.Redis.Password)
	assert.Equal(t, "***", red.S3.SecretKey)

	// Originals are untouched.
	assert.Equal(t, "hiro-key", cfg.Chain.APIKey)

	// Mutating the copy's slices must not reach back.
	red.Server.CORSOrigins[0] = "mutated"
	assert.NotEqual(t, "mutated", cfg.Server.CORSOrigins[0])
}
