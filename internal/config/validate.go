package config

import (
	"errors"
	"fmt"
)

// Validate checks that all required fields are set and values are valid.
// A validation failure is a fatal configuration error: callers must not
// start a cycle with an invalid config.
func (c *Config) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if err := c.Database.validate(); err != nil {
		return err
	}

	if !c.Sources.FloatMarket.Enabled && !c.Sources.Storefront.Enabled && !c.Sources.Aggregator.Enabled {
		return errors.New("at least one source must be enabled")
	}

	// The storefront market takes no credential; the other two reject
	// unauthenticated requests, so a missing credential is caught here
	// rather than as a fatal error mid-cycle.
	if err := c.Sources.FloatMarket.validate("sources.float_market", true); err != nil {
		return err
	}
	if err := c.Sources.Storefront.validate("sources.storefront", false); err != nil {
		return err
	}
	if err := c.Sources.Aggregator.validate("sources.aggregator", true); err != nil {
		return err
	}

	if c.Pipeline.MaxPages < 0 {
		return errors.New("pipeline.max_pages must be >= 0")
	}
	if c.Pipeline.DedupCacheSize < 1 {
		return errors.New("pipeline.dedup_cache_size must be >= 1")
	}
	if c.Pipeline.RecoveryStreak < 1 {
		return errors.New("pipeline.recovery_streak must be >= 1")
	}

	if c.Scoring.ShortWindowDays < 1 {
		return errors.New("scoring.short_window_days must be >= 1")
	}
	if c.Scoring.LongWindowDays < c.Scoring.ShortWindowDays {
		return fmt.Errorf("scoring.long_window_days (%d) must be >= short_window_days (%d)",
			c.Scoring.LongWindowDays, c.Scoring.ShortWindowDays)
	}
	if c.Scoring.MinObservations < 1 {
		return errors.New("scoring.min_observations must be >= 1")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}

	return nil
}

func (s *SourceConfig) validate(prefix string, credentialRequired bool) error {
	if !s.Enabled {
		return nil
	}
	if s.BaseURL == "" {
		return fmt.Errorf("%s.base_url is required", prefix)
	}
	if credentialRequired {
		if s.CredentialHeader == "" {
			return fmt.Errorf("%s.credential_header is required", prefix)
		}
		if s.Credential == "" {
			return fmt.Errorf("%s.credential is required", prefix)
		}
	}
	if s.QuotaRequests < 1 {
		return fmt.Errorf("%s.quota_requests must be >= 1", prefix)
	}
	if s.QuotaWindow <= 0 {
		return fmt.Errorf("%s.quota_window must be > 0", prefix)
	}
	if s.PageSize < 1 {
		return fmt.Errorf("%s.page_size must be >= 1", prefix)
	}
	if s.BackoffCap < s.BackoffBase {
		return fmt.Errorf("%s.backoff_cap (%s) must be >= backoff_base (%s)", prefix, s.BackoffCap, s.BackoffBase)
	}
	return nil
}

func (db *DBConfig) validate() error {
	if db.Host == "" {
		return errors.New("database.host is required")
	}
	if db.Name == "" {
		return errors.New("database.name is required")
	}
	if db.User == "" {
		return errors.New("database.user is required")
	}
	if db.Password == "" {
		return errors.New("database.password is required")
	}
	if db.MaxConns < 1 {
		return errors.New("database.max_conns must be >= 1")
	}
	if db.MinConns < 0 {
		return errors.New("database.min_conns must be >= 0")
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("database.min_conns (%d) cannot exceed max_conns (%d)", db.MinConns, db.MaxConns)
	}
	return nil
}
