package config

import "time"

// Default values for gateway configuration.
const (
	DefaultListenAddress   = "127.0.0.1:8080"
	DefaultShutdownTimeout = 30 * time.Second
	DefaultDrainGrace      = 10 * time.Second
	DefaultSweepInterval   = 30 * time.Second
	DefaultIdleTimeout     = 5 * time.Minute
	DefaultMaxMessageBytes = 1 << 20
	DefaultServerName      = "ganymede"
)

// Default values for backend configuration.
const (
	DefaultBackendType    = "openai"
	DefaultBackendTimeout = 60 * time.Second
	DefaultMaxRetries     = 3
)

// Default values for audit configuration.
const (
	DefaultAuditSQLitePath    = "./ganymede-audit.db"
	DefaultAuditRetentionDays = 30
	DefaultAuditPruneSchedule = "0 2 * * *"
	DefaultAuditQueueSize     = 1024
)

// ApplyDefaults fills in default values for any configuration fields that
// were not explicitly set. It modifies the configuration in place.
func ApplyDefaults(cfg *Config) {
	applyGatewayDefaults(&cfg.Gateway)
	applyBackendDefaults(&cfg.Backend)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyAuditDefaults(&cfg.Audit)
}

func applyGatewayDefaults(cfg *GatewayConfig) {
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = DefaultListenAddress
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.DrainGrace == 0 {
		cfg.DrainGrace = DefaultDrainGrace
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.MaxMessageBytes == 0 {
		cfg.MaxMessageBytes = DefaultMaxMessageBytes
	}
	if cfg.ServerName == "" {
		cfg.ServerName = DefaultServerName
	}
}

func applyBackendDefaults(cfg *BackendConfig) {
	if cfg.Type == "" {
		cfg.Type = DefaultBackendType
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultBackendTimeout
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = "mercator"
	}
	if cfg.Metrics.Subsystem == "" {
		cfg.Metrics.Subsystem = "ganymede"
	}
}

func applyAuditDefaults(cfg *AuditConfig) {
	if cfg.SQLitePath == "" {
		cfg.SQLitePath = DefaultAuditSQLitePath
	}
	if cfg.RetentionDays == 0 {
		cfg.RetentionDays = DefaultAuditRetentionDays
	}
	if cfg.PruneSchedule == "" {
		cfg.PruneSchedule = DefaultAuditPruneSchedule
	}
	if cfg.QueueSize == 0 {
		cfg.QueueSize = DefaultAuditQueueSize
	}
}

// DefaultConfig returns a fully populated configuration with default values.
// The backend section still requires a model and credentials before the
// configuration will validate.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.Telemetry.Metrics.Enabled = true
	cfg.Telemetry.Logging.RedactSecrets = true
	ApplyDefaults(cfg)
	return cfg
}
