// Package metrics collects and exposes Prometheus metrics for the gateway.
//
// A single Collector owns all metric instances: connection lifecycle
// (active, accepted, force closed), request outcomes (count, duration,
// in-flight), stream chunk volume, backend call outcomes and health, and
// audit queue drops. Recording is a no-op when metrics are disabled in
// configuration, so call sites never need to check.
package metrics
