package config

import "time"

// SyncConfig holds synchronization configuration
type SyncConfig struct {
	Interval     time.Duration
	RunOnStartup bool
	// InitialLookback bounds the first sync of a repository. Zero fetches full history.
	InitialLookback   time.Duration
	BackgroundTimeout time.Duration
	BatchConfig       BatchConfig
}

// BatchConfig holds batch processing configuration
type BatchConfig struct {
	Size       int
	Workers    int
	MaxRetries int
	BatchDelay time.Duration
}

// DefaultSyncConfig returns the default sync configuration
func DefaultSyncConfig() *SyncConfig {
	return &SyncConfig{
		Interval:          24 * time.Hour,
		RunOnStartup:      true,
		BackgroundTimeout: 30 * time.Minute,
		BatchConfig: BatchConfig{
			Size:       50,
			Workers:    4,
			MaxRetries: 2,
			BatchDelay: 100 * time.Millisecond,
		},
	}
}

// Sync builds the scheduler configuration from the loaded environment.
func (c *Config) Sync() *SyncConfig {
	s := DefaultSyncConfig()
	s.Interval = c.SyncInterval
	s.RunOnStartup = c.SyncOnStartup
	s.InitialLookback = c.SyncInitialLookback
	if c.BackgroundSyncTimeout > 0 {
		s.BackgroundTimeout = c.BackgroundSyncTimeout
	}
	if c.SyncWriteWorkers > 0 {
		s.BatchConfig.Workers = c.SyncWriteWorkers
	}
	return s
}
