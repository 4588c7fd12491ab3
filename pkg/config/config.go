package config

import "time"

// Config is the root configuration structure for Mercator Ganymede.
// It contains all configuration sections for the gateway front door, the
// completion backend, telemetry, and audit recording.
type Config struct {
	// Gateway contains the connection gateway configuration including listen
	// address, connection health monitoring, and shutdown behavior.
	Gateway GatewayConfig `yaml:"gateway"`

	// Backend contains configuration for the upstream completion provider.
	Backend BackendConfig `yaml:"backend"`

	// Telemetry contains configuration for observability including logging
	// and metrics.
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Audit contains configuration for audit recording of request outcomes.
	Audit AuditConfig `yaml:"audit"`
}

// GatewayConfig contains configuration for the gateway server.
type GatewayConfig struct {
	// ListenAddress is the address and port for the gateway to listen on.
	// Format: "host:port" (e.g., "127.0.0.1:8080", "0.0.0.0:8080").
	// Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// ShutdownTimeout is the upper bound on the entire graceful shutdown
	// sequence. Connections still open after this timeout are force closed.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// DrainGrace is the per-connection window during shutdown in which
	// in-flight requests may still complete before the connection is closed.
	// Default: 10s
	DrainGrace time.Duration `yaml:"drain_grace"`

	// SweepInterval is how often the health monitor scans connections for
	// idleness. Default: 30s
	SweepInterval time.Duration `yaml:"sweep_interval"`

	// IdleTimeout is the inactivity threshold after which a connection is
	// force closed by the health monitor. Default: 5m
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// MaxMessageBytes limits the size of a single inbound message.
	// Default: 1048576 (1MB)
	MaxMessageBytes int64 `yaml:"max_message_bytes"`

	// ServerName is reported to clients in the initialize handshake.
	// Default: "ganymede"
	ServerName string `yaml:"server_name"`
}

// BackendConfig contains configuration for the upstream completion provider.
type BackendConfig struct {
	// Type selects the backend adapter. Currently "openai" (any
	// OpenAI-compatible chat completions API).
	// Default: "openai"
	Type string `yaml:"type"`

	// BaseURL is the base URL for the provider's API endpoint.
	// Example: "https://api.openai.com"
	BaseURL string `yaml:"base_url"`

	// APIKey is the authentication key for the provider. Prefer APIKeyFile
	// in production so the key can be rotated without restart.
	APIKey string `yaml:"api_key"`

	// APIKeyFile is a path to a file holding the API key. The file is
	// watched and the key is hot-reloaded on change.
	APIKeyFile string `yaml:"api_key_file"`

	// Model is the default model used when a request does not name one.
	// Required.
	Model string `yaml:"model"`

	// Timeout is the maximum duration for requests to the provider.
	// Default: 60s
	Timeout time.Duration `yaml:"timeout"`

	// MaxRetries is the maximum number of retry attempts for failed requests.
	// Default: 3
	MaxRetries int `yaml:"max_retries"`
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	// Logging contains structured logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains Prometheus metrics configuration.
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig contains structured logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level ("debug", "info", "warn", "error").
	// Default: "info"
	Level string `yaml:"level"`

	// Format is the log output format ("json", "text").
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log records.
	// Default: false
	AddSource bool `yaml:"add_source"`

	// RedactSecrets scrubs credential-shaped values from log output.
	// Default: true
	RedactSecrets bool `yaml:"redact_secrets"`
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics are collected and exposed.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path where metrics are exposed.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the Prometheus namespace for all metrics.
	// Default: "mercator"
	Namespace string `yaml:"namespace"`

	// Subsystem is the Prometheus subsystem for all metrics.
	// Default: "ganymede"
	Subsystem string `yaml:"subsystem"`
}

// AuditConfig contains configuration for audit recording.
type AuditConfig struct {
	// Enabled controls whether request outcomes are recorded.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// SQLitePath is the path to the SQLite database file. The special value
	// ":memory:" keeps records in memory only.
	// Default: "./ganymede-audit.db"
	SQLitePath string `yaml:"sqlite_path"`

	// RetentionDays is how long records are kept before pruning.
	// Default: 30
	RetentionDays int `yaml:"retention_days"`

	// PruneSchedule is a cron expression for when retention pruning runs.
	// Default: "0 2 * * *" (daily at 02:00)
	PruneSchedule string `yaml:"prune_schedule"`

	// QueueSize is the buffer size of the async recording queue. Records are
	// dropped (and counted) when the queue is full.
	// Default: 1024
	QueueSize int `yaml:"queue_size"`
}
