package config

import "time"

// Config is the root configuration for a collector instance.
type Config struct {
	Instance InstanceConfig `yaml:"instance"`
	Sources  SourcesConfig  `yaml:"sources"`
	Database DBConfig       `yaml:"database"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Scoring  ScoringConfig  `yaml:"scoring"`
	Server   ServerConfig   `yaml:"server"`
}

// InstanceConfig identifies this collector.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// SourcesConfig holds one adapter configuration per marketplace.
type SourcesConfig struct {
	FloatMarket SourceConfig `yaml:"float_market"`
	Storefront  SourceConfig `yaml:"storefront"`
	Aggregator  SourceConfig `yaml:"aggregator"`
}

// SourceConfig holds the settings for one external marketplace.
type SourceConfig struct {
	Enabled          bool          `yaml:"enabled"`
	BaseURL          string        `yaml:"base_url"`
	CredentialHeader string        `yaml:"credential_header"` // header name, source-specific
	Credential       string        `yaml:"credential"`        // static credential value
	QuotaRequests    int           `yaml:"quota_requests"`    // requests allowed per quota window
	QuotaWindow      time.Duration `yaml:"quota_window"`
	PageSize         int           `yaml:"page_size"`
	Timeout          time.Duration `yaml:"timeout"`
	BackoffBase      time.Duration `yaml:"backoff_base"` // penalty backoff starting delay
	BackoffCap       time.Duration `yaml:"backoff_cap"`  // penalty backoff ceiling
}

// DBConfig holds the PostgreSQL connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// PipelineConfig holds ingestion cycle settings.
type PipelineConfig struct {
	PollInterval   time.Duration `yaml:"poll_interval"`    // scheduler tick
	MaxPages       int           `yaml:"max_pages"`        // per source per cycle; 0 = unlimited
	MaxRetries     int           `yaml:"max_retries"`      // transient fetch retries per page
	RetryBackoff   time.Duration `yaml:"retry_backoff"`    // base delay between transient retries
	DedupCacheSize int           `yaml:"dedup_cache_size"` // recent fingerprints kept per source
	RecoveryStreak int           `yaml:"recovery_streak"`  // successes needed to exit a penalty
}

// ScoringConfig holds aggregator and scorer settings.
type ScoringConfig struct {
	ShortWindowDays int `yaml:"short_window_days"`
	LongWindowDays  int `yaml:"long_window_days"`
	MinObservations int `yaml:"min_observations"` // listings required in the trailing window
}

// ServerConfig holds the query API settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}
