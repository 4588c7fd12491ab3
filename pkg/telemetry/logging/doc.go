// Package logging configures structured logging for the gateway.
//
// Loggers are built on log/slog with two handler layers: a context handler
// that attaches connection and request identifiers carried in the
// context.Context, and an optional redaction handler that scrubs
// credential-shaped values (API keys, bearer tokens, passwords) from both
// messages and attributes before they reach the output.
package logging
