package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	yaml := `
instance:
  id: test-etl
api:
  base_url: https://api.coingecko.com/api/v3
  vs_currency: eur
  top_n: 50
database:
  postgres:
    host: db.internal
    port: 5433
    name: test_db
    user: testuser
    password: testpass
  sqlite:
    path: /tmp/test.db
etl:
  interval: 10m
  batch_size: 25
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Instance.ID != "test-etl" {
		t.Errorf("Instance.ID = %q, want %q", cfg.Instance.ID, "test-etl")
	}
	if cfg.API.VsCurrency != "eur" {
		t.Errorf("API.VsCurrency = %q, want %q", cfg.API.VsCurrency, "eur")
	}
	if cfg.API.TopN != 50 {
		t.Errorf("API.TopN = %d, want 50", cfg.API.TopN)
	}
	if cfg.Database.Postgres.Host != "db.internal" {
		t.Errorf("Database.Postgres.Host = %q, want %q", cfg.Database.Postgres.Host, "db.internal")
	}
	if cfg.Database.SQLite.Path != "/tmp/test.db" {
		t.Errorf("Database.SQLite.Path = %q, want %q", cfg.Database.SQLite.Path, "/tmp/test.db")
	}
	if cfg.ETL.Interval != 10*time.Minute {
		t.Errorf("ETL.Interval = %v, want 10m", cfg.ETL.Interval)
	}
	if cfg.ETL.BatchSize != 25 {
		t.Errorf("ETL.BatchSize = %d, want 25", cfg.ETL.BatchSize)
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_DB_PASSWORD", "secret123")
	t.Setenv("TEST_CG_KEY", "cg-pro-key")

	yaml := `
instance:
  id: test-etl
api:
  api_key: ${TEST_CG_KEY}
database:
  postgres:
    host: localhost
    name: test_db
    user: testuser
    password: ${TEST_DB_PASSWORD}
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Database.Postgres.Password != "secret123" {
		t.Errorf("Database.Postgres.Password = %q, want %q", cfg.Database.Postgres.Password, "secret123")
	}
	if cfg.API.APIKey != "cg-pro-key" {
		t.Errorf("API.APIKey = %q, want %q", cfg.API.APIKey, "cg-pro-key")
	}
}

func TestLoadWithDefaults(t *testing.T) {
	yaml := `
instance:
  id: test-etl
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	// Check defaults were applied
	if cfg.API.BaseURL != DefaultBaseURL {
		t.Errorf("API.BaseURL = %q, want default %q", cfg.API.BaseURL, DefaultBaseURL)
	}
	if cfg.API.VsCurrency != DefaultVsCurrency {
		t.Errorf("API.VsCurrency = %q, want default %q", cfg.API.VsCurrency, DefaultVsCurrency)
	}
	if cfg.API.TopN != DefaultTopN {
		t.Errorf("API.TopN = %d, want default %d", cfg.API.TopN, DefaultTopN)
	}
	if cfg.API.Timeout != DefaultAPITimeout {
		t.Errorf("API.Timeout = %v, want default %v", cfg.API.Timeout, DefaultAPITimeout)
	}
	if cfg.API.RetryBackoff != DefaultRetryBackoff {
		t.Errorf("API.RetryBackoff = %g, want default %g", cfg.API.RetryBackoff, DefaultRetryBackoff)
	}
	if cfg.Database.Postgres.Port != DefaultDBPort {
		t.Errorf("Database.Postgres.Port = %d, want default %d", cfg.Database.Postgres.Port, DefaultDBPort)
	}
	if cfg.Database.Postgres.MaxConns != DefaultMaxConns {
		t.Errorf("Database.Postgres.MaxConns = %d, want default %d", cfg.Database.Postgres.MaxConns, DefaultMaxConns)
	}
	if cfg.Database.SQLite.Path != DefaultSQLitePath {
		t.Errorf("Database.SQLite.Path = %q, want default %q", cfg.Database.SQLite.Path, DefaultSQLitePath)
	}
	if cfg.ETL.Interval != DefaultInterval {
		t.Errorf("ETL.Interval = %v, want default %v", cfg.ETL.Interval, DefaultInterval)
	}
	if cfg.ETL.BatchSize != DefaultBatchSize {
		t.Errorf("ETL.BatchSize = %d, want default %d", cfg.ETL.BatchSize, DefaultBatchSize)
	}
	if cfg.ETL.FailureThreshold != DefaultFailureThreshold {
		t.Errorf("ETL.FailureThreshold = %d, want default %d", cfg.ETL.FailureThreshold, DefaultFailureThreshold)
	}
	if !cfg.ETL.RunImmediately() {
		t.Error("ETL.RunImmediately() = false, want true when unset")
	}
	if cfg.Server.Port != DefaultServerPort {
		t.Errorf("Server.Port = %d, want default %d", cfg.Server.Port, DefaultServerPort)
	}
}

func TestRunOnStartExplicitFalse(t *testing.T) {
	yaml := `
instance:
  id: test-etl
etl:
  run_on_start: false
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}
	if cfg.ETL.RunImmediately() {
		t.Error("ETL.RunImmediately() = true, want false when explicitly disabled")
	}
}

func TestValidate(t *testing.T) {
	valid := func() ETLConfig {
		cfg := ETLConfig{Instance: InstanceConfig{ID: "test"}}
		cfg.applyDefaults()
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*ETLConfig)
		wantErr string
	}{
		{
			name:    "missing instance id",
			mutate:  func(c *ETLConfig) { c.Instance.ID = "" },
			wantErr: "instance.id is required",
		},
		{
			name:    "top_n out of range",
			mutate:  func(c *ETLConfig) { c.API.TopN = 500 },
			wantErr: "api.top_n must be between 1 and 250, got 500",
		},
		{
			name:    "max_retries below one",
			mutate:  func(c *ETLConfig) { c.API.MaxRetries = -1 },
			wantErr: "api.max_retries must be >= 1",
		},
		{
			name:    "retry_backoff below one",
			mutate:  func(c *ETLConfig) { c.API.RetryBackoff = 0.5 },
			wantErr: "api.retry_backoff must be >= 1, got 0.5",
		},
		{
			name:    "min_conns exceeds max_conns",
			mutate:  func(c *ETLConfig) { c.Database.Postgres.MinConns = 20 },
			wantErr: "database.postgres.min_conns (20) cannot exceed max_conns (10)",
		},
		{
			name:    "missing sqlite path",
			mutate:  func(c *ETLConfig) { c.Database.SQLite.Path = "" },
			wantErr: "database.sqlite.path is required",
		},
		{
			name:    "interval too short",
			mutate:  func(c *ETLConfig) { c.ETL.Interval = 100 * time.Millisecond },
			wantErr: "etl.interval must be >= 1s, got 100ms",
		},
		{
			name:    "batch_size below one",
			mutate:  func(c *ETLConfig) { c.ETL.BatchSize = -5 },
			wantErr: "etl.batch_size must be >= 1",
		},
		{
			name:    "server port out of range",
			mutate:  func(c *ETLConfig) { c.Server.Port = 70000 },
			wantErr: "server.port must be between 1 and 65535, got 70000",
		},
		{
			name:    "valid config",
			mutate:  func(c *ETLConfig) {},
			wantErr: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("Validate() expected error %q, got nil", tt.wantErr)
				} else if err.Error() != tt.wantErr {
					t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
				}
			}
		})
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}
