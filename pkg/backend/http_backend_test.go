package backend

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestBackend(url string) *HTTPBackend {
	return NewHTTPBackend(Config{
		Name:       "test",
		BaseURL:    url,
		Model:      "test-model",
		Timeout:    5 * time.Second,
		MaxRetries: 1,
	}, StaticCredential("sk-test"))
}

func TestDoRequestSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("Content-Type = %q", got)
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	b := newTestBackend(server.URL)
	defer b.Close()

	resp, err := b.DoRequest(context.Background(), http.MethodPost, server.URL, []byte(`{}`), nil)
	if err != nil {
		t.Fatalf("DoRequest failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != `{"ok":true}` {
		t.Errorf("body = %s", body)
	}
	if !b.Healthy() {
		t.Error("backend unhealthy after success")
	}
}

func TestDoRequestAuthErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte("invalid api key"))
	}))
	defer server.Close()

	b := newTestBackend(server.URL)
	defer b.Close()

	_, err := b.DoRequest(context.Background(), http.MethodPost, server.URL, []byte(`{}`), nil)

	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("error = %T %v, want AuthError", err, err)
	}
	if calls.Load() != 1 {
		t.Errorf("auth failure was retried: %d calls", calls.Load())
	}
}

func TestDoRequestRateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	b := newTestBackend(server.URL)
	defer b.Close()

	_, err := b.DoRequest(context.Background(), http.MethodPost, server.URL, []byte(`{}`), nil)

	var rlErr *RateLimitError
	if !errors.As(err, &rlErr) {
		t.Fatalf("error = %T %v, want RateLimitError", err, err)
	}
	if rlErr.RetryAfter != 30*time.Second {
		t.Errorf("RetryAfter = %v", rlErr.RetryAfter)
	}
}

func TestDoRequestBadRequestNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	b := newTestBackend(server.URL)
	defer b.Close()

	_, err := b.DoRequest(context.Background(), http.MethodPost, server.URL, []byte(`{}`), nil)

	var beErr *BackendError
	if !errors.As(err, &beErr) {
		t.Fatalf("error = %T %v, want BackendError", err, err)
	}
	if calls.Load() != 1 {
		t.Errorf("bad request was retried: %d calls", calls.Load())
	}
}

func TestDoRequestRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	b := newTestBackend(server.URL)
	defer b.Close()

	resp, err := b.DoRequest(context.Background(), http.MethodPost, server.URL, []byte(`{}`), nil)
	if err != nil {
		t.Fatalf("DoRequest failed after retry: %v", err)
	}
	resp.Body.Close()
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

func TestDoRequestCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	b := newTestBackend(server.URL)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := b.DoRequest(ctx, http.MethodPost, server.URL, []byte(`{}`), nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestDoJSONRequestParseError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{not json`))
	}))
	defer server.Close()

	b := newTestBackend(server.URL)
	defer b.Close()

	var out map[string]any
	err := b.DoJSONRequest(context.Background(), http.MethodPost, server.URL, nil, &out, nil)

	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("error = %T %v, want ParseError", err, err)
	}
}

func TestCircuitBreakerMarksUnhealthy(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	b := newTestBackend(server.URL)
	defer b.Close()

	for i := 0; i < 3; i++ {
		b.DoRequest(context.Background(), http.MethodPost, server.URL, nil, nil)
	}
	if b.Healthy() {
		t.Error("backend still healthy after three consecutive failures")
	}
}

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		header string
		want   time.Duration
	}{
		{"", 0},
		{"15", 15 * time.Second},
		{"garbage", 0},
	}
	for _, tt := range tests {
		if got := parseRetryAfter(tt.header); got != tt.want {
			t.Errorf("parseRetryAfter(%q) = %v, want %v", tt.header, got, tt.want)
		}
	}
}
