package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, data map[string]any) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cfg.json")
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func TestLoad_DefaultsOnly(t *testing.T) {
	path := writeTempJSON(t, map[string]any{"s3_bucket": "vault"})

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "vault", cfg.S3Bucket)
	assert.Equal(t, "DEEP_ARCHIVE", cfg.StorageClass)
	assert.Equal(t, ".archived", cfg.ArchiveSuffix)
	assert.Equal(t, 3, cfg.RetryCount)
	assert.Equal(t, 1*time.Second, cfg.RetryBackoff)
	assert.Equal(t, "Standard", cfg.RestoreTier)
	assert.Equal(t, 7, cfg.RestoreDays)
	assert.True(t, cfg.SkipExisting)
	assert.Equal(t, int64(10<<30), cfg.MaxFileSize)
}

func TestLoad_JsonOverlaysDefaults(t *testing.T) {
	path := writeTempJSON(t, map[string]any{
		"s3_bucket":     "vault",
		"storage_class": "GLACIER",
		"retry_count":   5,
		"retry_backoff": "2s",
		"workers":       8,
		"restore_tier":  "Bulk",
		"skip_existing": false,
	})

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "GLACIER", cfg.StorageClass)
	assert.Equal(t, 5, cfg.RetryCount)
	assert.Equal(t, 2*time.Second, cfg.RetryBackoff)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, "Bulk", cfg.RestoreTier)
	assert.False(t, cfg.SkipExisting)
	// Untouched keys keep their defaults.
	assert.Equal(t, ".archived", cfg.ArchiveSuffix)
}

func TestLoad_EnvOverridesJson(t *testing.T) {
	path := writeTempJSON(t, map[string]any{
		"s3_bucket":    "from-json",
		"database_dsn": "postgres://json",
	})
	t.Setenv("COLDVAULT_S3_BUCKET", "from-env")
	t.Setenv("COLDVAULT_DATABASE_DSN", "postgres://env")
	t.Setenv("COLDVAULT_REQUESTER", "batch-ops")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.S3Bucket)
	assert.Equal(t, "postgres://env", cfg.DatabaseDSN)
	assert.Equal(t, "batch-ops", cfg.Requester)
}

func TestLoad_MissingFileIsError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
}

func TestValidate_Rejections(t *testing.T) {
	base := func() *Config {
		c := &Config{}
		c.LoadDefaults()
		c.S3Bucket = "vault"
		return c
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing bucket", func(c *Config) { c.S3Bucket = "" }},
		{"zero retries", func(c *Config) { c.RetryCount = 0 }},
		{"negative backoff", func(c *Config) { c.RetryBackoff = -time.Second }},
		{"zero restore days", func(c *Config) { c.RestoreDays = 0 }},
		{"unknown tier", func(c *Config) { c.RestoreTier = "Instant" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}

	require.NoError(t, base().Validate())
}

func TestDuration_UnmarshalForms(t *testing.T) {
	var d Duration
	require.NoError(t, json.Unmarshal([]byte(`"1m30s"`), &d))
	assert.Equal(t, 90*time.Second, d.Duration)

	require.NoError(t, json.Unmarshal([]byte(`1000000000`), &d))
	assert.Equal(t, time.Second, d.Duration)

	require.Error(t, json.Unmarshal([]byte(`true`), &d))
}
