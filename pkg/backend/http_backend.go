package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"sync"
	"time"
)

// HTTPBackend is the base implementation for HTTP-based backend adapters.
// It provides connection pooling, retry logic, timeout handling, and health
// tracking. Concrete adapters embed this struct and implement the Backend
// interface methods on top of DoRequest/DoJSONRequest.
type HTTPBackend struct {
	// config contains the backend configuration.
	config Config

	// creds supplies the API key; may be a static value or a watched file.
	creds CredentialSource

	// client is the HTTP client with connection pooling.
	client *http.Client

	// health tracks the backend's observed health.
	health Health

	// healthMu protects concurrent access to health state.
	healthMu sync.RWMutex
}

// NewHTTPBackend creates a new base HTTP backend with connection pooling.
func NewHTTPBackend(config Config, creds CredentialSource) *HTTPBackend {
	transport := &http.Transport{
		MaxIdleConns:        config.MaxIdleConns,
		MaxIdleConnsPerHost: config.MaxIdleConnsPerHost,
		IdleConnTimeout:     config.IdleConnTimeout,
		ForceAttemptHTTP2:   true,
	}

	return &HTTPBackend{
		config: config,
		creds:  creds,
		client: &http.Client{
			Transport: transport,
			Timeout:   config.Timeout,
		},
		health: Health{
			Healthy:   true, // start optimistic
			LastCheck: time.Now(),
		},
	}
}

// Name returns the backend's configured name.
func (b *HTTPBackend) Name() string {
	return b.config.Name
}

// Config returns the backend's configuration.
func (b *HTTPBackend) Config() Config {
	return b.config
}

// APIKey returns the current credential value.
func (b *HTTPBackend) APIKey() string {
	if b.creds == nil {
		return ""
	}
	return b.creds.Get()
}

// Healthy returns the current health verdict.
func (b *HTTPBackend) Healthy() bool {
	b.healthMu.RLock()
	defer b.healthMu.RUnlock()
	return b.health.Healthy
}

// GetHealth returns detailed health information.
func (b *HTTPBackend) GetHealth() Health {
	b.healthMu.RLock()
	defer b.healthMu.RUnlock()
	return b.health
}

// updateHealth records the outcome of a request or health check.
func (b *HTTPBackend) updateHealth(success bool, err error) {
	b.healthMu.Lock()
	defer b.healthMu.Unlock()

	b.health.LastCheck = time.Now()

	if success {
		b.health.Healthy = true
		b.health.ConsecutiveFailures = 0
		b.health.LastError = nil
		return
	}

	b.health.ConsecutiveFailures++
	b.health.LastError = err

	// Circuit breaker: three consecutive failures mark the backend down.
	if b.health.ConsecutiveFailures >= 3 {
		b.health.Healthy = false
		slog.Warn("backend marked unhealthy",
			"backend", b.config.Name,
			"consecutive_failures", b.health.ConsecutiveFailures,
			"error", err,
		)
	}
}

// recordRequest updates the lifetime request counters.
func (b *HTTPBackend) recordRequest(success bool) {
	b.healthMu.Lock()
	defer b.healthMu.Unlock()

	b.health.TotalRequests++
	if !success {
		b.health.FailedRequests++
	}
}

// DoRequest performs an HTTP request with retry logic. Transient failures
// (network errors, 5xx) are retried with exponential backoff up to
// MaxRetries; client errors are mapped to the taxonomy and returned without
// retrying.
func (b *HTTPBackend) DoRequest(ctx context.Context, method, url string, body []byte, headers map[string]string) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= b.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
			slog.Debug("retrying backend request",
				"backend", b.config.Name,
				"attempt", attempt,
				"max_retries", b.config.MaxRetries,
				"backoff", backoff,
			)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		var bodyReader io.Reader
		if body != nil {
			bodyReader = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		for key, value := range headers {
			req.Header.Set(key, value)
		}
		if req.Header.Get("Content-Type") == "" && body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := b.client.Do(req)
		if err != nil {
			lastErr = err
			b.recordRequest(false)

			if ctx.Err() != nil {
				// Cancelled or deadline exceeded: surface the context error
				// so callers can distinguish cancellation from timeout.
				if ctx.Err() == context.Canceled {
					return nil, ctx.Err()
				}
				return nil, &TimeoutError{
					Backend: b.config.Name,
					Timeout: b.config.Timeout,
				}
			}

			slog.Warn("backend request failed, will retry",
				"backend", b.config.Name,
				"attempt", attempt+1,
				"error", err,
			)
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			b.recordRequest(true)
			b.updateHealth(true, nil)
			return resp, nil
		}

		errorBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			b.recordRequest(false)
			b.updateHealth(false, fmt.Errorf("authentication failed"))
			return nil, &AuthError{
				Backend: b.config.Name,
				Message: string(errorBody),
			}

		case http.StatusTooManyRequests:
			b.recordRequest(false)
			return nil, &RateLimitError{
				Backend:    b.config.Name,
				RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
				Message:    string(errorBody),
			}

		case http.StatusBadRequest:
			b.recordRequest(false)
			return nil, &BackendError{
				Backend:    b.config.Name,
				StatusCode: resp.StatusCode,
				Message:    string(errorBody),
			}

		default:
			lastErr = &BackendError{
				Backend:    b.config.Name,
				StatusCode: resp.StatusCode,
				Message:    string(errorBody),
			}
			b.recordRequest(false)

			slog.Warn("backend returned error status, will retry",
				"backend", b.config.Name,
				"status", resp.StatusCode,
				"attempt", attempt+1,
			)
		}
	}

	b.updateHealth(false, lastErr)
	return nil, lastErr
}

// DoJSONRequest performs a JSON request and decodes the response body.
func (b *HTTPBackend) DoJSONRequest(ctx context.Context, method, url string, reqBody, respBody interface{}, headers map[string]string) error {
	var bodyBytes []byte
	var err error
	if reqBody != nil {
		bodyBytes, err = json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	resp, err := b.DoRequest(ctx, method, url, bodyBytes, headers)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	responseBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return &ParseError{
			Backend: b.config.Name,
			Cause:   fmt.Errorf("failed to read response: %w", err),
		}
	}

	if respBody != nil && len(responseBytes) > 0 {
		if err := json.Unmarshal(responseBytes, respBody); err != nil {
			return &ParseError{
				Backend:     b.config.Name,
				RawResponse: string(responseBytes),
				Cause:       fmt.Errorf("failed to unmarshal response: %w", err),
			}
		}
	}

	return nil
}

// Close releases the HTTP client's pooled connections and the credential
// source.
func (b *HTTPBackend) Close() error {
	b.client.CloseIdleConnections()
	if b.creds != nil {
		if err := b.creds.Close(); err != nil {
			return err
		}
	}
	slog.Info("backend closed", "backend", b.config.Name)
	return nil
}

// parseRetryAfter parses a Retry-After header in either delay-seconds or
// HTTP-date form.
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}

	var seconds int
	if _, err := fmt.Sscanf(header, "%d", &seconds); err == nil {
		return time.Duration(seconds) * time.Second
	}

	if t, err := http.ParseTime(header); err == nil {
		return time.Until(t)
	}

	return 0
}
