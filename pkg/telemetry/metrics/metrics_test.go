package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mercator-hq/ganymede/pkg/config"
)

func newTestCollector(enabled bool) *Collector {
	return NewCollector(config.MetricsConfig{
		Enabled:   enabled,
		Namespace: "mercator",
		Subsystem: "ganymede",
	}, nil)
}

func scrape(t *testing.T, c *Collector) string {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	c.Handler().ServeHTTP(rec, req)
	body, err := io.ReadAll(rec.Result().Body)
	if err != nil {
		t.Fatalf("failed to read metrics body: %v", err)
	}
	return string(body)
}

func TestConnectionMetrics(t *testing.T) {
	c := newTestCollector(true)

	c.ConnectionOpened()
	c.ConnectionOpened()
	c.ConnectionClosed()
	c.ForcedClose("idle")

	body := scrape(t, c)

	if !strings.Contains(body, "mercator_ganymede_connections_active 1") {
		t.Errorf("connections_active not 1:\n%s", body)
	}
	if !strings.Contains(body, "mercator_ganymede_connections_total 2") {
		t.Errorf("connections_total not 2:\n%s", body)
	}
	if !strings.Contains(body, `mercator_ganymede_forced_closes_total{reason="idle"} 1`) {
		t.Errorf("forced_closes_total missing:\n%s", body)
	}
}

func TestRequestMetrics(t *testing.T) {
	c := newTestCollector(true)

	c.RequestAdmitted()
	c.RequestAdmitted()
	c.RequestResolved("generate", "ok", 120*time.Millisecond)
	c.RequestResolved("stream", "cancelled", 50*time.Millisecond)
	c.ChunkEmitted()
	c.ChunkEmitted()
	c.ChunkEmitted()

	body := scrape(t, c)

	if !strings.Contains(body, `mercator_ganymede_requests_total{method="generate",status="ok"} 1`) {
		t.Errorf("generate/ok counter missing:\n%s", body)
	}
	if !strings.Contains(body, `mercator_ganymede_requests_total{method="stream",status="cancelled"} 1`) {
		t.Errorf("stream/cancelled counter missing:\n%s", body)
	}
	if !strings.Contains(body, "mercator_ganymede_requests_in_flight 0") {
		t.Errorf("requests_in_flight not back to 0:\n%s", body)
	}
	if !strings.Contains(body, "mercator_ganymede_stream_chunks_total 3") {
		t.Errorf("stream_chunks_total not 3:\n%s", body)
	}
}

func TestBackendMetrics(t *testing.T) {
	c := newTestCollector(true)

	c.BackendRequest("openai", "ok", 800*time.Millisecond)
	c.BackendRequest("openai", "error", time.Second)
	c.SetBackendHealthy(false)

	body := scrape(t, c)

	if !strings.Contains(body, `mercator_ganymede_backend_requests_total{backend="openai",status="ok"} 1`) {
		t.Errorf("backend ok counter missing:\n%s", body)
	}
	if !strings.Contains(body, "mercator_ganymede_backend_healthy 0") {
		t.Errorf("backend_healthy not 0:\n%s", body)
	}
}

func TestDisabledCollectorRecordsNothing(t *testing.T) {
	c := newTestCollector(false)

	c.ConnectionOpened()
	c.RequestAdmitted()
	c.RequestResolved("generate", "ok", time.Second)
	c.AuditRecordDropped()

	body := scrape(t, c)

	if strings.Contains(body, "mercator_ganymede_connections_total 1") {
		t.Errorf("disabled collector recorded a connection:\n%s", body)
	}
	if strings.Contains(body, `status="ok"} 1`) {
		t.Errorf("disabled collector recorded a request:\n%s", body)
	}
}
