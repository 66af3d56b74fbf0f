package config

import "time"

// GitHubConfig holds GitHub-specific configuration
type GitHubConfig struct {
	APIBaseURL     string
	RequestTimeout time.Duration
	RateLimit      RateLimitConfig
}

// RateLimitConfig holds rate limit configuration
type RateLimitConfig struct {
	MaxRetries int
	// BaseBackoff is the base for primary rate limit retries.
	BaseBackoff time.Duration
	// AbuseBaseBackoff is the base for secondary rate limit retries without a Retry-After.
	AbuseBaseBackoff time.Duration
}

// DefaultGitHubConfig returns the default GitHub configuration
func DefaultGitHubConfig() *GitHubConfig {
	return &GitHubConfig{
		APIBaseURL:     "https://api.github.com",
		RequestTimeout: 30 * time.Second,
		RateLimit: RateLimitConfig{
			MaxRetries:       3,
			BaseBackoff:      time.Second,
			AbuseBaseBackoff: 10 * time.Second,
		},
	}
}

// GitHub builds the client configuration from the loaded environment.
func (c *Config) GitHub() *GitHubConfig {
	gh := DefaultGitHubConfig()
	if c.GitHubAPIBaseURL != "" {
		gh.APIBaseURL = c.GitHubAPIBaseURL
	}
	if c.GitHubRequestTimeout > 0 {
		gh.RequestTimeout = c.GitHubRequestTimeout
	}
	gh.RateLimit.MaxRetries = c.GitHubMaxRetries
	return gh
}
