// Package transport is the WebSocket front door of the gateway.
//
// Each upgraded connection gets a write pump goroutine that serializes every
// outbound frame, satisfying the single-writer requirement of the underlying
// WebSocket connection, and a read loop that parses inbound JSON-RPC
// messages and hands them to the gateway manager. Malformed frames are
// answered with a wire error without dropping the connection; a transport
// read failure removes the connection from the registry, firing the
// cancellation cascade.
//
// The HTTP server also exposes /health, /ready, and the Prometheus metrics
// endpoint.
package transport
