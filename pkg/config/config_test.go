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
	path := filepath.Join(t.TempDir(), "eludris.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const minimalConfig = `
secret: "0123456789abcdef"
`

func TestLoad(t *testing.T) {
	t.Run("DefaultsApply", func(t *testing.T) {
		cfg, err := Load(writeConfig(t, minimalConfig))
		require.NoError(t, err)

		assert.Equal(t, "eludris", cfg.InstanceName)
		assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
		assert.Equal(t, 7159, cfg.Oprish.Port)
		assert.Equal(t, 7160, cfg.Pandemonium.Port)
		assert.Equal(t, 7161, cfg.Effis.Port)
		assert.Equal(t, 2048, cfg.Oprish.MessageLimit)
		assert.True(t, cfg.Database.AutoMigrate)
		assert.Nil(t, cfg.Email)

		// Every advertised bucket carries a usable default.
		for name, rl := range cfg.Oprish.RateLimits.Table() {
			assert.Positive(t, rl.Limit, name)
			assert.Positive(t, rl.ResetAfter, name)
		}
	})

	t.Run("FileOverridesDefaults", func(t *testing.T) {
		cfg, err := Load(writeConfig(t, `
secret: "0123456789abcdef"
instance_name: myinstance
oprish:
  port: 8080
  rate_limits:
    create_message:
      limit: 3
      reset_after: 1
effis:
  file_size: 1000
`))
		require.NoError(t, err)

		assert.Equal(t, "myinstance", cfg.InstanceName)
		assert.Equal(t, 8080, cfg.Oprish.Port)
		assert.Equal(t, 3, cfg.Oprish.RateLimits.CreateMessage.Limit)
		assert.Equal(t, uint64(1000), cfg.Effis.FileSize)
		// Untouched siblings keep their defaults.
		assert.Equal(t, 2048, cfg.Oprish.MessageLimit)
	})

	t.Run("EnvironmentOverridesFile", func(t *testing.T) {
		t.Setenv("ELUDRIS_INSTANCE_NAME", "fromenv")
		cfg, err := Load(writeConfig(t, minimalConfig+"instance_name: fromfile\n"))
		require.NoError(t, err)
		assert.Equal(t, "fromenv", cfg.InstanceName)
	})

	t.Run("RejectsMissingSecret", func(t *testing.T) {
		_, err := Load(writeConfig(t, "instance_name: nosecret\n"))
		assert.Error(t, err)
	})

	t.Run("RejectsShortSecret", func(t *testing.T) {
		_, err := Load(writeConfig(t, `secret: "short"`))
		assert.Error(t, err)
	})

	t.Run("RejectsInvalidPort", func(t *testing.T) {
		_, err := Load(writeConfig(t, minimalConfig+"oprish:\n  port: 99999\n"))
		assert.Error(t, err)
	})

	t.Run("RejectsUnreadableFile", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err)
	})

	t.Run("ParsesDurations", func(t *testing.T) {
		cfg, err := Load(writeConfig(t, minimalConfig+"shutdown_timeout: 30s\n"))
		require.NoError(t, err)
		assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	})
}

func TestInstanceInfo(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig+`
description: "a test instance"
email:
  relay: smtp.example.com
  name: Eludris
  address: noreply@example.com
`))
	require.NoError(t, err)

	t.Run("WithoutRateLimits", func(t *testing.T) {
		info := cfg.InstanceInfo(false)
		assert.Equal(t, "eludris", info.InstanceName)
		assert.Equal(t, "a test instance", *info.Description)
		assert.Equal(t, Version, info.Version)
		assert.Equal(t, "noreply@example.com", *info.EmailAddress)
		assert.Nil(t, info.RateLimits)
	})

	t.Run("WithRateLimits", func(t *testing.T) {
		info := cfg.InstanceInfo(true)
		require.NotNil(t, info.RateLimits)
		assert.Len(t, info.RateLimits.Oprish, len(cfg.Oprish.RateLimits.Table()))
		assert.Contains(t, info.RateLimits.Effis, "attachments")
		assert.Equal(t, cfg.Pandemonium.RateLimit.Limit, info.RateLimits.Pandemonium.Limit)
	})
}

func TestRateLimitBucket(t *testing.T) {
	rl := RateLimitConfig{Limit: 5, ResetAfter: 10, FileSizeLimit: 100}
	bucket := rl.Bucket("create_message")

	assert.Equal(t, "create_message", bucket.Name)
	assert.Equal(t, 5, bucket.Limit)
	assert.Equal(t, 10*time.Second, bucket.ResetAfter)
	assert.Equal(t, uint64(100), bucket.FileSizeLimit)
}
