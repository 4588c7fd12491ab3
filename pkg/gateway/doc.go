// Package gateway implements the connection and request lifecycle at the
// heart of Ganymede.
//
// Each accepted connection becomes a Session tracked by the Registry. The
// Manager admits parsed requests, enforces the handshake and liveness
// ordering rules, registers a cancellation handle per in-flight request, and
// dispatches to the completion backend. Every admitted request resolves
// exactly once: with a result, a terminal error, or a cancellation error.
//
// The Registry's health monitor pings idle connections and force closes
// those past the idle threshold. The shutdown Coordinator drives the
// drain sequence: broadcast, cancel, per-connection grace, forced close.
package gateway
