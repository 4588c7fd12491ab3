package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"mercator-hq/ganymede/pkg/backend"
	"mercator-hq/ganymede/pkg/config"
	"mercator-hq/ganymede/pkg/gateway"
	"mercator-hq/ganymede/pkg/protocol"
	"mercator-hq/ganymede/pkg/telemetry/metrics"
)

// Server is the gateway's HTTP front door: the WebSocket connect endpoint
// plus health, readiness, and metrics.
type Server struct {
	cfg        config.GatewayConfig
	metricsCfg config.MetricsConfig

	manager  *gateway.Manager
	registry *gateway.Registry
	coord    *gateway.Coordinator
	backend  backend.Backend
	metrics  *metrics.Collector
	logger   *slog.Logger

	httpServer *http.Server
	upgrader   websocket.Upgrader
	startedAt  time.Time

	shutdownOnce sync.Once
	mu           sync.Mutex
	isRunning    bool
}

// NewServer creates the transport server.
func NewServer(
	cfg config.GatewayConfig,
	metricsCfg config.MetricsConfig,
	manager *gateway.Manager,
	registry *gateway.Registry,
	coord *gateway.Coordinator,
	bk backend.Backend,
	collector *metrics.Collector,
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:        cfg,
		metricsCfg: metricsCfg,
		manager:    manager,
		registry:   registry,
		coord:      coord,
		backend:    bk,
		metrics:    collector,
		logger:     logger.With("component", "transport"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Routes returns the HTTP handler serving every endpoint. Exposed for tests.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/connect", s.handleConnect)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ready", s.handleReady)
	if s.metricsCfg.Enabled && s.metrics != nil {
		mux.Handle(s.metricsCfg.Path, s.metrics.Handler())
	}
	return mux
}

// Start runs the server and blocks until shutdown completes. Shutdown is
// triggered by context cancellation, SIGINT/SIGTERM, or a client shutdown
// request reaching the coordinator.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.isRunning = true
	s.startedAt = time.Now()
	s.mu.Unlock()

	s.httpServer = &http.Server{
		Addr:    s.cfg.ListenAddress,
		Handler: s.Routes(),
	}

	s.registry.Start()

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("gateway listening", "address", s.cfg.ListenAddress)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		s.coord.Trigger("context cancelled")
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())
		s.coord.Trigger("signal: " + sig.String())
	case <-s.coord.Done():
		// A client shutdown request already drained everything.
		return s.Shutdown(context.Background())
	}

	// Wait for the coordinator to drain, bounded by its own deadline plus
	// slack for the forced-close pass.
	select {
	case <-s.coord.Done():
	case <-time.After(s.cfg.ShutdownTimeout + 5*time.Second):
		s.logger.Error("drain did not complete within the shutdown timeout")
	}

	return s.Shutdown(context.Background())
}

// Shutdown stops the HTTP listener and the health monitor. The connection
// drain has already happened through the coordinator.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.registry.Stop()

		if s.httpServer != nil {
			shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
			defer cancel()
			if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
				shutdownErr = fmt.Errorf("http shutdown error: %w", err)
			}
		}

		s.logger.Info("gateway stopped")
	})

	return shutdownErr
}

// handleConnect upgrades the HTTP request and runs the connection's read
// loop until the client goes away.
func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	if s.coord.Draining() {
		http.Error(w, "gateway is shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	wsc := newWSConn(conn, s.logger)
	go wsc.writePump()

	sess := gateway.NewSession(wsc)
	s.registry.Add(sess)

	s.logger.Info("connection accepted",
		"connection_id", sess.ID.String(),
		"remote", r.RemoteAddr,
	)

	s.readLoop(sess, wsc)
}

// readLoop parses inbound frames and admits them into the gateway. It
// returns when the connection dies; removal fires the cancellation cascade
// for anything still in flight.
func (s *Server) readLoop(sess *gateway.Session, wsc *wsConn) {
	defer s.registry.Remove(sess.ID, gateway.CloseReasonTransport)

	wsc.conn.SetReadLimit(s.cfg.MaxMessageBytes)
	wsc.conn.SetPongHandler(func(string) error {
		sess.Touch()
		return nil
	})

	for {
		msgType, data, err := wsc.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("connection read failed",
					"connection_id", sess.ID.String(),
					"error", err,
				)
			}
			return
		}

		if msgType != websocket.TextMessage {
			s.logger.Debug("ignoring non-text frame", "connection_id", sess.ID.String())
			continue
		}

		req, errObj := protocol.Parse(data)
		if errObj != nil {
			// Malformed input is answered, not fatal: the connection and
			// its in-flight requests are unaffected.
			sess.Touch()
			_ = wsc.Send(protocol.NewError(nil, errObj.Code, errObj.Message, errObj.Data))
			continue
		}

		s.manager.Admit(sess, req)
	}
}

// handleHealth reports liveness and basic gauge data.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":             "ok",
		"uptime_seconds":     int64(time.Since(s.startedAt).Seconds()),
		"active_connections": s.registry.Len(),
		"phase":              s.coord.Phase().String(),
	})
}

// handleReady reports readiness: not draining and the backend reachable.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if s.coord.Draining() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "draining"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if err := s.backend.HealthCheck(ctx); err != nil {
		if s.metrics != nil {
			s.metrics.SetBackendHealthy(false)
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "backend unavailable"})
		return
	}

	if s.metrics != nil {
		s.metrics.SetBackendHealthy(true)
	}
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
}
