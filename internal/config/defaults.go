package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultDBPort          = 5432
	DefaultDBSSLMode       = "prefer"
	DefaultMaxConns        = 10
	DefaultMinConns        = 2
	DefaultQuotaRequests   = 60
	DefaultQuotaWindow     = time.Minute
	DefaultPageSize        = 50
	DefaultSourceTimeout   = 30 * time.Second
	DefaultBackoffBase     = 2 * time.Second
	DefaultBackoffCap      = 5 * time.Minute
	DefaultPollInterval    = 15 * time.Minute
	DefaultMaxRetries      = 3
	DefaultRetryBackoff    = time.Second
	DefaultDedupCacheSize  = 10000
	DefaultRecoveryStreak  = 5
	DefaultShortWindowDays = 7
	DefaultLongWindowDays  = 30
	DefaultMinObservations = 5
	DefaultServerPort      = 8080
)

func (c *Config) applyDefaults() {
	applySourceDefaults(&c.Sources.FloatMarket)
	applySourceDefaults(&c.Sources.Storefront)
	applySourceDefaults(&c.Sources.Aggregator)

	// Database defaults
	if c.Database.Port == 0 {
		c.Database.Port = DefaultDBPort
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = DefaultDBSSLMode
	}
	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = DefaultMaxConns
	}
	if c.Database.MinConns == 0 {
		c.Database.MinConns = DefaultMinConns
	}

	// Pipeline defaults
	if c.Pipeline.PollInterval == 0 {
		c.Pipeline.PollInterval = DefaultPollInterval
	}
	if c.Pipeline.MaxRetries == 0 {
		c.Pipeline.MaxRetries = DefaultMaxRetries
	}
	if c.Pipeline.RetryBackoff == 0 {
		c.Pipeline.RetryBackoff = DefaultRetryBackoff
	}
	if c.Pipeline.DedupCacheSize == 0 {
		c.Pipeline.DedupCacheSize = DefaultDedupCacheSize
	}
	if c.Pipeline.RecoveryStreak == 0 {
		c.Pipeline.RecoveryStreak = DefaultRecoveryStreak
	}

	// Scoring defaults
	if c.Scoring.ShortWindowDays == 0 {
		c.Scoring.ShortWindowDays = DefaultShortWindowDays
	}
	if c.Scoring.LongWindowDays == 0 {
		c.Scoring.LongWindowDays = DefaultLongWindowDays
	}
	if c.Scoring.MinObservations == 0 {
		c.Scoring.MinObservations = DefaultMinObservations
	}

	// Server defaults
	if c.Server.Port == 0 {
		c.Server.Port = DefaultServerPort
	}
}

func applySourceDefaults(s *SourceConfig) {
	if s.QuotaRequests == 0 {
		s.QuotaRequests = DefaultQuotaRequests
	}
	if s.QuotaWindow == 0 {
		s.QuotaWindow = DefaultQuotaWindow
	}
	if s.PageSize == 0 {
		s.PageSize = DefaultPageSize
	}
	if s.Timeout == 0 {
		s.Timeout = DefaultSourceTimeout
	}
	if s.BackoffBase == 0 {
		s.BackoffBase = DefaultBackoffBase
	}
	if s.BackoffCap == 0 {
		s.BackoffCap = DefaultBackoffCap
	}
}
