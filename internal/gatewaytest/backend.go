package gatewaytest

import (
	"context"
	"sync"

	"mercator-hq/ganymede/pkg/backend"
)

// StubBackend is a scriptable backend.Backend. Zero value behavior: Complete
// echoes the prompt, CompleteStream splits the prompt into single-rune
// chunks, HealthCheck succeeds.
type StubBackend struct {
	mu sync.Mutex

	// CompleteFunc overrides Complete when set.
	CompleteFunc func(ctx context.Context, req *backend.CompletionRequest) (*backend.Completion, error)

	// StreamChunks are emitted in order by CompleteStream when set.
	StreamChunks []string

	// StreamErr, when set, is emitted as the final chunk's error after
	// StreamChunks are exhausted.
	StreamErr error

	// BlockStream, when set, makes the stream block after emitting
	// StreamChunks until the request context is cancelled. Used to test
	// cancel-after-k-chunks behavior.
	BlockStream bool

	// Calls counts Complete and CompleteStream invocations.
	Calls int
}

// Complete returns a scripted or echoed completion.
func (s *StubBackend) Complete(ctx context.Context, req *backend.CompletionRequest) (*backend.Completion, error) {
	s.mu.Lock()
	s.Calls++
	fn := s.CompleteFunc
	s.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	model := req.Model
	if model == "" {
		model = "stub-model"
	}
	return &backend.Completion{
		Content:      "echo: " + req.Prompt,
		Model:        model,
		FinishReason: backend.FinishReasonStop,
		Usage:        backend.TokenUsage{PromptTokens: 3, CompletionTokens: 5, TotalTokens: 8},
	}, nil
}

// CompleteStream emits the scripted chunks, then either an error chunk,
// a block-until-cancel, or a clean close.
func (s *StubBackend) CompleteStream(ctx context.Context, req *backend.CompletionRequest) (<-chan *backend.Chunk, error) {
	s.mu.Lock()
	s.Calls++
	scripted := append([]string(nil), s.StreamChunks...)
	streamErr := s.StreamErr
	block := s.BlockStream
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if scripted == nil && !block && streamErr == nil {
		for _, r := range req.Prompt {
			scripted = append(scripted, string(r))
		}
	}

	chunks := make(chan *backend.Chunk)
	go func() {
		defer close(chunks)

		for _, c := range scripted {
			select {
			case chunks <- &backend.Chunk{Delta: c}:
			case <-ctx.Done():
				return
			}
		}

		if streamErr != nil {
			select {
			case chunks <- &backend.Chunk{Err: streamErr}:
			case <-ctx.Done():
			}
			return
		}

		if block {
			<-ctx.Done()
		}
	}()

	return chunks, nil
}

// HealthCheck always succeeds.
func (s *StubBackend) HealthCheck(context.Context) error { return nil }

// Name identifies the stub.
func (s *StubBackend) Name() string { return "stub" }

// Close is a no-op.
func (s *StubBackend) Close() error { return nil }
