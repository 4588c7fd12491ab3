package openai

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"mercator-hq/ganymede/pkg/backend"
)

// Adapter is the OpenAI backend adapter. It implements the backend.Backend
// interface against any OpenAI-compatible chat completions API.
type Adapter struct {
	*backend.HTTPBackend
}

// New creates a new OpenAI backend adapter.
func New(config backend.Config) (*Adapter, error) {
	if config.Name == "" {
		config.Name = "openai"
	}
	if config.BaseURL == "" {
		config.BaseURL = "https://api.openai.com"
	}
	if config.Model == "" {
		return nil, &backend.ConfigError{
			Backend: config.Name,
			Field:   "model",
			Message: "default model is required",
		}
	}
	if config.APIKey == "" && config.APIKeyFile == "" {
		return nil, &backend.ConfigError{
			Backend: config.Name,
			Field:   "api_key",
			Message: "an API key or API key file is required",
		}
	}

	if config.MaxRetries == 0 {
		config.MaxRetries = 3
	}
	if config.MaxIdleConns == 0 {
		config.MaxIdleConns = 100
	}
	if config.MaxIdleConnsPerHost == 0 {
		config.MaxIdleConnsPerHost = 10
	}

	creds, err := backend.NewCredentialSource(config)
	if err != nil {
		return nil, err
	}

	a := &Adapter{
		HTTPBackend: backend.NewHTTPBackend(config, creds),
	}

	slog.Info("openai backend initialized",
		"backend", config.Name,
		"base_url", config.BaseURL,
		"model", config.Model,
	)

	return a, nil
}

// Complete sends a single-shot completion request.
func (a *Adapter) Complete(ctx context.Context, req *backend.CompletionRequest) (*backend.Completion, error) {
	chatReq := transformRequest(req, a.Config().Model)

	url := fmt.Sprintf("%s/v1/chat/completions", a.Config().BaseURL)

	var chatResp chatResponse
	if err := a.DoJSONRequest(ctx, http.MethodPost, url, chatReq, &chatResp, a.headers()); err != nil {
		return nil, err
	}

	comp, err := transformResponse(&chatResp)
	if err != nil {
		return nil, &backend.ParseError{
			Backend: a.Name(),
			Cause:   err,
		}
	}

	if comp.FinishReason == backend.FinishReasonContentFilter {
		return nil, &backend.ContentFilteredError{
			Backend: a.Name(),
			Message: "completion stopped by provider content filter",
		}
	}

	slog.Debug("completion request succeeded",
		"backend", a.Name(),
		"model", comp.Model,
		"tokens", comp.Usage.TotalTokens,
	)

	return comp, nil
}

// CompleteStream sends a streaming completion request. The returned channel
// closes after the final chunk; a mid-stream failure arrives as the last
// chunk's Err.
func (a *Adapter) CompleteStream(ctx context.Context, req *backend.CompletionRequest) (<-chan *backend.Chunk, error) {
	chatReq := transformRequest(req, a.Config().Model)
	chatReq.Stream = true

	url := fmt.Sprintf("%s/v1/chat/completions", a.Config().BaseURL)
	headers := a.headers()
	headers["Accept"] = "text/event-stream"

	stream, err := newStreamReader(ctx, a.HTTPBackend, url, chatReq, headers)
	if err != nil {
		return nil, err
	}

	chunks := make(chan *backend.Chunk, 16)

	go func() {
		defer close(chunks)
		defer stream.Close()

		for {
			chunk, err := stream.Read(ctx)
			if err != nil {
				if err == errStreamDone {
					return
				}
				select {
				case chunks <- &backend.Chunk{Err: err}:
				case <-ctx.Done():
				}
				return
			}

			select {
			case chunks <- chunk:
			case <-ctx.Done():
				return
			}
		}
	}()

	return chunks, nil
}

// HealthCheck verifies the provider is reachable by listing models.
func (a *Adapter) HealthCheck(ctx context.Context) error {
	url := fmt.Sprintf("%s/v1/models", a.Config().BaseURL)

	resp, err := a.DoRequest(ctx, http.MethodGet, url, nil, a.headers())
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// headers builds the per-request headers, reading the credential at call
// time so hot-reloaded keys take effect without restart.
func (a *Adapter) headers() map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + a.APIKey(),
		"Content-Type":  "application/json",
	}
}
