package backend

import (
	"fmt"
	"time"
)

// BackendError represents a generic backend failure. It preserves the
// backend's own message text for diagnostics.
type BackendError struct {
	// Backend is the name of the backend that returned the error.
	Backend string

	// StatusCode is the HTTP status code (0 if not applicable).
	StatusCode int

	// Message is the error message, preserved from the backend.
	Message string

	// Cause is the underlying error (if any).
	Cause error
}

// Error implements the error interface.
func (e *BackendError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("backend %q error (status %d): %s", e.Backend, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("backend %q error: %s", e.Backend, e.Message)
}

// Unwrap returns the underlying error for error chain support.
func (e *BackendError) Unwrap() error {
	return e.Cause
}

// AuthError represents a rejected credential (HTTP 401 or 403).
type AuthError struct {
	Backend string
	Message string
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	return fmt.Sprintf("backend %q authentication failed: %s", e.Backend, e.Message)
}

// RateLimitError represents rate limiting or quota exhaustion (HTTP 429).
// It includes the retry-after duration if the backend provided one.
type RateLimitError struct {
	Backend    string
	RetryAfter time.Duration
	Message    string
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("backend %q rate limit exceeded (retry after %s): %s",
			e.Backend, e.RetryAfter, e.Message)
	}
	return fmt.Sprintf("backend %q rate limit exceeded: %s", e.Backend, e.Message)
}

// ContentFilteredError represents a generation refused or truncated by the
// backend's content filter.
type ContentFilteredError struct {
	Backend string
	Message string
}

// Error implements the error interface.
func (e *ContentFilteredError) Error() string {
	return fmt.Sprintf("backend %q filtered content: %s", e.Backend, e.Message)
}

// TimeoutError represents a request that exceeded the configured timeout.
type TimeoutError struct {
	Backend string
	Timeout time.Duration
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("backend %q request timeout after %s", e.Backend, e.Timeout)
}

// ParseError represents a malformed backend response.
type ParseError struct {
	Backend     string
	RawResponse string
	Cause       error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("backend %q response parse error: %v", e.Backend, e.Cause)
}

// Unwrap returns the underlying error for error chain support.
func (e *ParseError) Unwrap() error {
	return e.Cause
}

// StreamError represents a failure that occurred mid-stream. It is delivered
// through the chunk channel as the final chunk's Err.
type StreamError struct {
	Backend string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *StreamError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("backend %q stream error: %s: %v", e.Backend, e.Message, e.Cause)
	}
	return fmt.Sprintf("backend %q stream error: %s", e.Backend, e.Message)
}

// Unwrap returns the underlying error for error chain support.
func (e *StreamError) Unwrap() error {
	return e.Cause
}

// ConfigError represents an invalid backend configuration.
type ConfigError struct {
	Backend string
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("backend %q configuration error for field %q: %s",
		e.Backend, e.Field, e.Message)
}
