package audit

import "time"

// Request outcome values recorded in the Status field.
const (
	StatusOK        = "ok"
	StatusError     = "error"
	StatusCancelled = "cancelled"
)

// Record captures the outcome of one resolved request.
type Record struct {
	// ID is a unique identifier for this record.
	ID string

	// ConnectionID identifies the connection the request arrived on.
	ConnectionID string

	// RequestID is the client-assigned request identifier, in its canonical
	// wire form.
	RequestID string

	// Method is the operation that was invoked.
	Method string

	// Status is the terminal outcome: "ok", "error", or "cancelled".
	Status string

	// ErrorCode is the wire error code for error outcomes, zero otherwise.
	ErrorCode int

	// Model is the model that served the request, when known.
	Model string

	// PromptTokens, CompletionTokens and TotalTokens carry provider-reported
	// usage, zero when the provider did not report it.
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int

	// Chunks is the number of intermediate responses emitted for streaming
	// requests.
	Chunks int

	// Duration is the time from admission to terminal response.
	Duration time.Duration

	// CreatedAt is when the record was created.
	CreatedAt time.Time
}
