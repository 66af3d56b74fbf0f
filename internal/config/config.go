package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"go-simpler.org/env"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Port               string        `env:"PORT" default:"8080"`
	DBDriver           string        `env:"DB_DRIVER" default:"postgres"`
	DBConnectionString string        `env:"DB_CONNECTION_STRING"`
	EncryptionKey      string        `env:"ENCRYPTION_KEY"`
	JWTSecret          string        `env:"JWT_SECRET"`
	JWTTTL             time.Duration `env:"JWT_TTL" default:"24h"`
	LogLevel           string        `env:"LOG_LEVEL" default:"info"`
	LogFormat          string        `env:"LOG_FORMAT" default:"json"`
	AllowedOrigins     string        `env:"ALLOWED_ORIGINS" default:"http://localhost:3000"`

	GitHubClientID       string        `env:"GITHUB_CLIENT_ID"`
	GitHubClientSecret   string        `env:"GITHUB_CLIENT_SECRET"`
	GitHubRedirectURL    string        `env:"GITHUB_REDIRECT_URL" default:"http://localhost:8080/api/v1/auth/github/callback"`
	GitHubAPIBaseURL     string        `env:"GITHUB_API_BASE_URL" default:"https://api.github.com"`
	GitHubRequestTimeout time.Duration `env:"GITHUB_REQUEST_TIMEOUT" default:"30s"`
	GitHubMaxRetries     int           `env:"GITHUB_MAX_RETRIES" default:"3"`

	SyncInterval          time.Duration `env:"SYNC_INTERVAL" default:"24h"`
	SyncOnStartup         bool          `env:"SYNC_ON_STARTUP" default:"true"`
	SyncInitialLookback   time.Duration `env:"SYNC_INITIAL_LOOKBACK" default:"0s"`
	SyncWriteWorkers      int           `env:"SYNC_WRITE_WORKERS" default:"4"`
	BackgroundSyncTimeout time.Duration `env:"BACKGROUND_SYNC_TIMEOUT" default:"30m"`

	CredentialTTL          time.Duration `env:"CREDENTIAL_TTL" default:"8h"`
	CredentialExpiryLeeway time.Duration `env:"CREDENTIAL_EXPIRY_LEEWAY" default:"0s"`
}

// Load reads .env (when present) and the process environment into a Config.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the required settings are present and coherent.
func (c *Config) Validate() error {
	required := map[string]string{
		"DB_CONNECTION_STRING": c.DBConnectionString,
		"ENCRYPTION_KEY":       c.EncryptionKey,
		"JWT_SECRET":           c.JWTSecret,
	}
	for name, value := range required {
		if value == "" {
			return fmt.Errorf("%s is required", name)
		}
	}

	switch c.DBDriver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("DB_DRIVER must be %q or %q, got %q", DriverPostgres, DriverSQLite, c.DBDriver)
	}

	if c.GitHubMaxRetries < 0 {
		return errors.New("GITHUB_MAX_RETRIES must not be negative")
	}
	if c.SyncInterval <= 0 {
		return errors.New("SYNC_INTERVAL must be positive")
	}
	if c.CredentialTTL <= 0 {
		return errors.New("CREDENTIAL_TTL must be positive")
	}
	if c.BackgroundSyncTimeout <= 0 {
		return errors.New("BACKGROUND_SYNC_TIMEOUT must be positive")
	}
	return nil
}

// Origins splits ALLOWED_ORIGINS on commas.
func (c *Config) Origins() []string {
	var origins []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// OAuthEnabled reports whether the GitHub login flow is configured.
func (c *Config) OAuthEnabled() bool {
	return c.GitHubClientID != "" && c.GitHubClientSecret != ""
}
