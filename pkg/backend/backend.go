package backend

import "context"

// Backend is the interface every generation backend adapter implements.
//
// Implementations must respect context cancellation: Complete returns as
// soon as the context is cancelled, and a stream produced by CompleteStream
// stops yielding chunks at the next chunk boundary after cancellation.
type Backend interface {
	// Complete sends a single-shot completion request and returns the full
	// completion. Backend failures are returned as errors from this
	// package's taxonomy (AuthError, RateLimitError, ContentFilteredError,
	// BackendError, TimeoutError).
	Complete(ctx context.Context, req *CompletionRequest) (*Completion, error)

	// CompleteStream sends a streaming completion request. It returns a
	// channel yielding incremental chunks; the channel is closed after the
	// final chunk. A mid-stream failure is delivered as the last chunk's
	// Err field.
	CompleteStream(ctx context.Context, req *CompletionRequest) (<-chan *Chunk, error)

	// HealthCheck verifies the backend is reachable and responding.
	HealthCheck(ctx context.Context) error

	// Name returns the configured backend name.
	Name() string

	// Close releases backend resources. The backend must not be used after
	// Close returns.
	Close() error
}
