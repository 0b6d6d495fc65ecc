package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultBaseURL          = "https://api.coingecko.com/api/v3"
	DefaultVsCurrency       = "usd"
	DefaultTopN             = 20
	DefaultAPITimeout       = 30 * time.Second
	DefaultMaxRetries       = 3
	DefaultRetryBackoff     = 2.0
	DefaultDBHost           = "localhost"
	DefaultDBPort           = 5432
	DefaultDBName           = "crypto_analytics"
	DefaultDBUser           = "postgres"
	DefaultDBSSLMode        = "prefer"
	DefaultMaxConns         = 10
	DefaultMinConns         = 1
	DefaultSQLitePath       = "crypto_fallback.db"
	DefaultInterval         = 5 * time.Minute
	DefaultBatchSize        = 50
	DefaultFailureThreshold = 5
	DefaultAuditDir         = "raw_data"
	DefaultServerPort       = 8880
)

func (c *ETLConfig) applyDefaults() {
	// API defaults
	if c.API.BaseURL == "" {
		c.API.BaseURL = DefaultBaseURL
	}
	if c.API.VsCurrency == "" {
		c.API.VsCurrency = DefaultVsCurrency
	}
	if c.API.TopN == 0 {
		c.API.TopN = DefaultTopN
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.API.MaxRetries == 0 {
		c.API.MaxRetries = DefaultMaxRetries
	}
	if c.API.RetryBackoff == 0 {
		c.API.RetryBackoff = DefaultRetryBackoff
	}

	// Database defaults. Postgres credentials stay optional: an unreachable
	// or unconfigured Postgres falls back to SQLite at probe time.
	if c.Database.Postgres.Host == "" {
		c.Database.Postgres.Host = DefaultDBHost
	}
	if c.Database.Postgres.Port == 0 {
		c.Database.Postgres.Port = DefaultDBPort
	}
	if c.Database.Postgres.Name == "" {
		c.Database.Postgres.Name = DefaultDBName
	}
	if c.Database.Postgres.User == "" {
		c.Database.Postgres.User = DefaultDBUser
	}
	if c.Database.Postgres.SSLMode == "" {
		c.Database.Postgres.SSLMode = DefaultDBSSLMode
	}
	if c.Database.Postgres.MaxConns == 0 {
		c.Database.Postgres.MaxConns = DefaultMaxConns
	}
	if c.Database.Postgres.MinConns == 0 {
		c.Database.Postgres.MinConns = DefaultMinConns
	}
	if c.Database.SQLite.Path == "" {
		c.Database.SQLite.Path = DefaultSQLitePath
	}

	// Pipeline defaults
	if c.ETL.Interval == 0 {
		c.ETL.Interval = DefaultInterval
	}
	if c.ETL.BatchSize == 0 {
		c.ETL.BatchSize = DefaultBatchSize
	}
	if c.ETL.FailureThreshold == 0 {
		c.ETL.FailureThreshold = DefaultFailureThreshold
	}

	// Audit defaults
	if c.Audit.Dir == "" {
		c.Audit.Dir = DefaultAuditDir
	}

	// Server defaults
	if c.Server.Port == 0 {
		c.Server.Port = DefaultServerPort
	}
}
