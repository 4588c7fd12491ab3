package backend

import "time"

// CompletionRequest is a backend-agnostic generation request. Adapters
// transform it to their provider-specific wire format.
type CompletionRequest struct {
	// Prompt is the text to complete. Required and non-empty; the gateway
	// validates this before the adapter is invoked.
	Prompt string

	// Model is the model identifier. Empty means the adapter's configured
	// default model.
	Model string

	// Temperature controls randomness. Nil means the provider default.
	Temperature *float64

	// MaxTokens caps the completion length. Nil means the provider default.
	MaxTokens *int

	// StopSequences halt generation when encountered.
	StopSequences []string
}

// TokenUsage tracks token consumption for a completed request.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Completion is the normalized result of a single-shot generation.
type Completion struct {
	// Content is the generated text.
	Content string

	// Model is the model that actually produced the completion.
	Model string

	// FinishReason indicates why generation stopped (stop, length,
	// content_filter).
	FinishReason string

	// Usage contains token consumption, when the provider reports it.
	Usage TokenUsage
}

// Chunk is one element of a streamed completion.
type Chunk struct {
	// Delta is the incremental text in this chunk.
	Delta string

	// FinishReason is set on the final chunk of the stream.
	FinishReason string

	// Usage is set on the final chunk when the provider reports it.
	Usage *TokenUsage

	// Err is set instead of content when the stream fails mid-flight; it is
	// always the last chunk delivered.
	Err error
}

// Finish reason constants.
const (
	FinishReasonStop          = "stop"
	FinishReasonLength        = "length"
	FinishReasonContentFilter = "content_filter"
)

// Config contains configuration for a backend adapter instance.
type Config struct {
	// Name is the backend identifier used in logs and errors.
	Name string

	// Type selects the adapter ("openai").
	Type string

	// BaseURL is the API endpoint base URL.
	BaseURL string

	// APIKey is the shared credential handed to the backend. Ignored when
	// APIKeyFile is set.
	APIKey string

	// APIKeyFile is an optional path to a credential file; when set the key
	// is read from the file and hot-reloaded on change.
	APIKeyFile string

	// Model is the default model identifier.
	Model string

	// Timeout is the per-request timeout.
	Timeout time.Duration

	// MaxRetries is the maximum number of retry attempts for transient
	// failures.
	MaxRetries int

	// MaxIdleConns is the connection pool size.
	MaxIdleConns int

	// MaxIdleConnsPerHost is the per-host connection pool size.
	MaxIdleConnsPerHost int

	// IdleConnTimeout is how long an idle connection remains pooled.
	IdleConnTimeout time.Duration
}

// Health tracks the observed health of a backend.
type Health struct {
	// Healthy indicates whether the backend is currently considered usable.
	Healthy bool

	// LastCheck is when health state last changed hands.
	LastCheck time.Time

	// LastError is the most recent failure (nil when healthy).
	LastError error

	// ConsecutiveFailures counts sequential failures; three trips the
	// circuit breaker.
	ConsecutiveFailures int

	// TotalRequests and FailedRequests are lifetime counters.
	TotalRequests  int64
	FailedRequests int64
}
