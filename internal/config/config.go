package config

import "time"

// ETLConfig is the root configuration for one pipeline instance.
type ETLConfig struct {
	Instance InstanceConfig `yaml:"instance"`
	API      APIConfig      `yaml:"api"`
	Database DatabaseConfig `yaml:"database"`
	ETL      PipelineConfig `yaml:"etl"`
	Audit    AuditConfig    `yaml:"audit"`
	Server   ServerConfig   `yaml:"server"`
}

// InstanceConfig identifies this pipeline instance.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// APIConfig holds settings for the upstream markets API.
type APIConfig struct {
	BaseURL      string        `yaml:"base_url"`
	APIKey       string        `yaml:"api_key"` // Optional; sent as x-cg-pro-api-key
	VsCurrency   string        `yaml:"vs_currency"`
	TopN         int           `yaml:"top_n"`         // Assets per fetch, by market cap
	Timeout      time.Duration `yaml:"timeout"`       // Per-attempt HTTP timeout
	MaxRetries   int           `yaml:"max_retries"`   // Total fetch attempts
	RetryBackoff float64       `yaml:"retry_backoff"` // Backoff base; wait = base^attempt seconds
}

// DatabaseConfig holds both storage backends. Postgres is probed first;
// SQLite is the embedded fallback when Postgres is unreachable.
type DatabaseConfig struct {
	Postgres DBConfig     `yaml:"postgres"`
	SQLite   SQLiteConfig `yaml:"sqlite"`
}

// DBConfig holds a single Postgres connection.
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

// SQLiteConfig holds the embedded fallback database.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// PipelineConfig holds run scheduling and loading settings.
type PipelineConfig struct {
	Interval         time.Duration `yaml:"interval"`          // Scheduled trigger cadence
	BatchSize        int           `yaml:"batch_size"`        // Rows per load transaction
	RunOnStart       *bool         `yaml:"run_on_start"`      // Immediate run before the first tick (default true)
	FailureThreshold int           `yaml:"failure_threshold"` // Consecutive failures tripping the breaker
}

// RunImmediately reports whether an initial run should precede the first
// scheduled tick. Unset means yes.
func (p PipelineConfig) RunImmediately() bool {
	return p.RunOnStart == nil || *p.RunOnStart
}

// AuditConfig holds raw snapshot persistence settings.
type AuditConfig struct {
	Dir string `yaml:"dir"`
}

// ServerConfig holds the ops HTTP server (trigger + health) settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}
