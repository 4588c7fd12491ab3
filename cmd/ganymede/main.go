// Ganymede is a connection-oriented JSON-RPC gateway for LLM completions.
//
// Clients connect over WebSocket, complete an initialize handshake, and then
// issue generate, stream, cancel, and configure requests. The gateway owns
// per-request cancellation, connection health monitoring, and graceful
// shutdown.
//
// Usage:
//
//	# Start the gateway with the default configuration
//	ganymede run
//
//	# Start with a custom configuration file
//	ganymede run --config /etc/ganymede/config.yaml
//
//	# Validate a configuration file without starting
//	ganymede validate --config config.yaml
//
//	# Inspect the audit trail
//	ganymede audit list --since 24h
//
//	# Show version information
//	ganymede version
package main

func main() {
	Execute()
}
