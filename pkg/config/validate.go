package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/robfig/cron/v3"
)

// ValidationError represents a configuration validation failure for a
// specific field.
type ValidationError struct {
	// Field is the dotted path of the invalid field (e.g., "gateway.listen_address").
	Field string

	// Message describes why the value is invalid.
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Message)
}

// ValidationErrors aggregates multiple validation failures so callers see
// every problem in one pass instead of fixing them one at a time.
type ValidationErrors []*ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 1 {
		return e[0].Error()
	}
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("%d configuration errors: %s", len(e), strings.Join(msgs, "; "))
}

// Validate checks the configuration for invalid or inconsistent values.
// It returns a ValidationErrors value listing every failure found.
func Validate(cfg *Config) error {
	var errs ValidationErrors

	errs = append(errs, validateGateway(&cfg.Gateway)...)
	errs = append(errs, validateBackend(&cfg.Backend)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)
	errs = append(errs, validateAudit(&cfg.Audit)...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateGateway(cfg *GatewayConfig) ValidationErrors {
	var errs ValidationErrors

	if _, _, err := net.SplitHostPort(cfg.ListenAddress); err != nil {
		errs = append(errs, &ValidationError{
			Field:   "gateway.listen_address",
			Message: fmt.Sprintf("must be host:port, got %q", cfg.ListenAddress),
		})
	}
	if cfg.ShutdownTimeout < 0 {
		errs = append(errs, &ValidationError{
			Field:   "gateway.shutdown_timeout",
			Message: "must not be negative",
		})
	}
	if cfg.DrainGrace < 0 {
		errs = append(errs, &ValidationError{
			Field:   "gateway.drain_grace",
			Message: "must not be negative",
		})
	}
	if cfg.DrainGrace > cfg.ShutdownTimeout {
		errs = append(errs, &ValidationError{
			Field:   "gateway.drain_grace",
			Message: "must not exceed gateway.shutdown_timeout",
		})
	}
	if cfg.SweepInterval <= 0 {
		errs = append(errs, &ValidationError{
			Field:   "gateway.sweep_interval",
			Message: "must be positive",
		})
	}
	if cfg.IdleTimeout <= 0 {
		errs = append(errs, &ValidationError{
			Field:   "gateway.idle_timeout",
			Message: "must be positive",
		})
	}
	if cfg.MaxMessageBytes <= 0 {
		errs = append(errs, &ValidationError{
			Field:   "gateway.max_message_bytes",
			Message: "must be positive",
		})
	}

	return errs
}

func validateBackend(cfg *BackendConfig) ValidationErrors {
	var errs ValidationErrors

	if cfg.Type != "openai" {
		errs = append(errs, &ValidationError{
			Field:   "backend.type",
			Message: fmt.Sprintf("unsupported backend type %q", cfg.Type),
		})
	}
	if cfg.Model == "" {
		errs = append(errs, &ValidationError{
			Field:   "backend.model",
			Message: "a default model is required",
		})
	}
	if cfg.APIKey == "" && cfg.APIKeyFile == "" {
		errs = append(errs, &ValidationError{
			Field:   "backend.api_key",
			Message: "either api_key or api_key_file is required",
		})
	}
	if cfg.APIKey != "" && cfg.APIKeyFile != "" {
		errs = append(errs, &ValidationError{
			Field:   "backend.api_key",
			Message: "api_key and api_key_file are mutually exclusive",
		})
	}
	if cfg.Timeout <= 0 {
		errs = append(errs, &ValidationError{
			Field:   "backend.timeout",
			Message: "must be positive",
		})
	}
	if cfg.MaxRetries < 0 {
		errs = append(errs, &ValidationError{
			Field:   "backend.max_retries",
			Message: "must not be negative",
		})
	}

	return errs
}

func validateTelemetry(cfg *TelemetryConfig) ValidationErrors {
	var errs ValidationErrors

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, &ValidationError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("must be one of debug, info, warn, error; got %q", cfg.Logging.Level),
		})
	}
	switch cfg.Logging.Format {
	case "json", "text":
	default:
		errs = append(errs, &ValidationError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("must be json or text; got %q", cfg.Logging.Format),
		})
	}
	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, &ValidationError{
			Field:   "telemetry.metrics.path",
			Message: "must begin with /",
		})
	}

	return errs
}

func validateAudit(cfg *AuditConfig) ValidationErrors {
	var errs ValidationErrors

	if !cfg.Enabled {
		return nil
	}

	if cfg.SQLitePath == "" {
		errs = append(errs, &ValidationError{
			Field:   "audit.sqlite_path",
			Message: "required when audit is enabled",
		})
	}
	if cfg.RetentionDays <= 0 {
		errs = append(errs, &ValidationError{
			Field:   "audit.retention_days",
			Message: "must be positive",
		})
	}
	if _, err := cron.ParseStandard(cfg.PruneSchedule); err != nil {
		errs = append(errs, &ValidationError{
			Field:   "audit.prune_schedule",
			Message: fmt.Sprintf("invalid cron expression %q: %v", cfg.PruneSchedule, err),
		})
	}
	if cfg.QueueSize <= 0 {
		errs = append(errs, &ValidationError{
			Field:   "audit.queue_size",
			Message: "must be positive",
		})
	}

	return errs
}
