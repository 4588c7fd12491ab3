// Package telemetry groups the gateway's observability concerns.
//
//   - logging: structured slog logging with connection/request context
//     fields and optional credential redaction
//   - metrics: Prometheus metrics for connections, requests, streams,
//     backend calls, and the audit queue
//
// Both subpackages are configured through config.TelemetryConfig and are
// safe for concurrent use.
package telemetry
