package config

import (
	"errors"
	"fmt"
	"time"
)

// Validate checks that all required fields are set and values are valid.
// Postgres credentials are deliberately not required: the storage probe
// falls back to the embedded backend when Postgres cannot be reached.
func (c *ETLConfig) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if c.API.BaseURL == "" {
		return errors.New("api.base_url is required")
	}
	if c.API.TopN < 1 || c.API.TopN > 250 {
		return fmt.Errorf("api.top_n must be between 1 and 250, got %d", c.API.TopN)
	}
	if c.API.Timeout <= 0 {
		return errors.New("api.timeout must be > 0")
	}
	if c.API.MaxRetries < 1 {
		return errors.New("api.max_retries must be >= 1")
	}
	if c.API.RetryBackoff < 1 {
		return fmt.Errorf("api.retry_backoff must be >= 1, got %g", c.API.RetryBackoff)
	}

	if err := c.Database.Postgres.validate("database.postgres"); err != nil {
		return err
	}
	if c.Database.SQLite.Path == "" {
		return errors.New("database.sqlite.path is required")
	}

	if c.ETL.Interval < time.Second {
		return fmt.Errorf("etl.interval must be >= 1s, got %s", c.ETL.Interval)
	}
	if c.ETL.BatchSize < 1 {
		return errors.New("etl.batch_size must be >= 1")
	}
	if c.ETL.FailureThreshold < 1 {
		return errors.New("etl.failure_threshold must be >= 1")
	}

	if c.Audit.Dir == "" {
		return errors.New("audit.dir is required")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Port < 1 || db.Port > 65535 {
		return fmt.Errorf("%s.port must be between 1 and 65535, got %d", prefix, db.Port)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
