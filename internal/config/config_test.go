package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DB_CONNECTION_STRING", "file::memory:")
	t.Setenv("ENCRYPTION_KEY", "test-encryption-key")
	t.Setenv("JWT_SECRET", "test-jwt-secret")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, DriverPostgres, cfg.DBDriver)
	assert.Equal(t, 24*time.Hour, cfg.SyncInterval)
	assert.True(t, cfg.SyncOnStartup)
	assert.Equal(t, 8*time.Hour, cfg.CredentialTTL)
	assert.Equal(t, time.Duration(0), cfg.SyncInitialLookback)

	gh := cfg.GitHub()
	assert.Equal(t, "https://api.github.com", gh.APIBaseURL)
	assert.Equal(t, 30*time.Second, gh.RequestTimeout)
	assert.Equal(t, 3, gh.RateLimit.MaxRetries)
	assert.Equal(t, 10*time.Second, gh.RateLimit.AbuseBaseBackoff)
}

func TestLoadOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("SYNC_INTERVAL", "6h")
	t.Setenv("SYNC_INITIAL_LOOKBACK", "4380h")
	t.Setenv("GITHUB_MAX_RETRIES", "5")
	t.Setenv("SYNC_WRITE_WORKERS", "8")
	t.Setenv("ALLOWED_ORIGINS", "http://a.test, http://b.test,")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DriverSQLite, cfg.DBDriver)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Origins())

	s := cfg.Sync()
	assert.Equal(t, 6*time.Hour, s.Interval)
	assert.Equal(t, 4380*time.Hour, s.InitialLookback)
	assert.Equal(t, 8, s.BatchConfig.Workers)
	assert.Equal(t, 5, cfg.GitHub().RateLimit.MaxRetries)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"missing database", func(c *Config) { c.DBConnectionString = "" }, "DB_CONNECTION_STRING is required"},
		{"missing encryption key", func(c *Config) { c.EncryptionKey = "" }, "ENCRYPTION_KEY is required"},
		{"unknown driver", func(c *Config) { c.DBDriver = "mysql" }, "DB_DRIVER"},
		{"zero interval", func(c *Config) { c.SyncInterval = 0 }, "SYNC_INTERVAL"},
		{"negative retries", func(c *Config) { c.GitHubMaxRetries = -1 }, "GITHUB_MAX_RETRIES"},
		{"zero background timeout", func(c *Config) { c.BackgroundSyncTimeout = 0 }, "BACKGROUND_SYNC_TIMEOUT"},
		{"negative background timeout", func(c *Config) { c.BackgroundSyncTimeout = -time.Second }, "BACKGROUND_SYNC_TIMEOUT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				DBDriver:              DriverPostgres,
				DBConnectionString:    "postgres://localhost/test",
				EncryptionKey:         "k",
				JWTSecret:             "s",
				SyncInterval:          time.Hour,
				CredentialTTL:         time.Hour,
				BackgroundSyncTimeout: time.Minute,
			}
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
