// Package protocol implements the JSON-RPC 2.0 wire envelope used by the
// Ganymede gateway.
//
// The package is a pure codec: it parses inbound messages into Request
// values, validates the minimal envelope (protocol tag, method name,
// correlation identifier for requests), and serializes Response values back
// to text. It has no knowledge of sessions, transports, or backends.
//
// Requests carry their identifier as raw JSON so that the caller-supplied
// shape (string or number) is preserved byte-for-byte when echoed in
// responses. The canonical map key for an identifier is produced by IDKey;
// the number 3 and the string "3" are distinct keys.
package protocol
