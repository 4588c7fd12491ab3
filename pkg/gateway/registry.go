package gateway

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"mercator-hq/ganymede/pkg/telemetry/metrics"
)

// Reasons recorded when the gateway closes a connection unilaterally.
const (
	CloseReasonIdle      = "idle"
	CloseReasonShutdown  = "shutdown"
	CloseReasonTransport = "transport_error"
)

// RegistryConfig configures the connection registry and its health monitor.
type RegistryConfig struct {
	// SweepInterval is how often the health monitor scans sessions.
	SweepInterval time.Duration

	// IdleTimeout is the inactivity threshold beyond which a session is
	// force closed.
	IdleTimeout time.Duration
}

// Registry tracks every live session and runs the health monitor that pings
// idle connections and reaps dead ones.
type Registry struct {
	cfg     RegistryConfig
	logger  *slog.Logger
	metrics *metrics.Collector

	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewRegistry creates an empty registry. Call Start to begin health
// monitoring.
func NewRegistry(cfg RegistryConfig, logger *slog.Logger, collector *metrics.Collector) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		cfg:      cfg,
		logger:   logger.With("component", "gateway.registry"),
		metrics:  collector,
		sessions: make(map[uuid.UUID]*Session),
		stopCh:   make(chan struct{}),
	}
}

// Add registers a newly accepted session.
func (r *Registry) Add(sess *Session) {
	r.mu.Lock()
	r.sessions[sess.ID] = sess
	count := len(r.sessions)
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.ConnectionOpened()
	}
	r.logger.Info("connection registered",
		"connection_id", sess.ID.String(),
		"active", count,
	)
}

// Remove unregisters a session and tears it down: the cancellation cascade
// fires for everything still in flight, the session is marked closed, and
// the transport is closed. Safe to call more than once and from concurrent
// paths (transport teardown, health monitor, shutdown coordinator).
func (r *Registry) Remove(id uuid.UUID, reason string) {
	r.mu.Lock()
	sess, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	count := len(r.sessions)
	r.mu.Unlock()

	if !ok {
		return
	}

	sess.MarkClosing()
	cancelled := sess.cancelAll()
	sess.MarkClosed()
	_ = sess.Sender().Close()

	if r.metrics != nil {
		r.metrics.ConnectionClosed()
	}
	r.logger.Info("connection removed",
		"connection_id", id.String(),
		"reason", reason,
		"cancelled_inflight", cancelled,
		"active", count,
	)
}

// Get returns the session with the given identifier, if registered.
func (r *Registry) Get(id uuid.UUID) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[id]
	return sess, ok
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Snapshot returns the current sessions. The slice is a copy; sessions may
// be removed concurrently.
func (r *Registry) Snapshot() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		sessions = append(sessions, sess)
	}
	return sessions
}

// Start launches the health monitor.
func (r *Registry) Start() {
	r.wg.Add(1)
	go r.monitor()
}

// Stop halts the health monitor. Registered sessions are left to the
// shutdown coordinator.
func (r *Registry) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopCh)
	})
	r.wg.Wait()
}

// monitor is the health monitor loop.
func (r *Registry) monitor() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case now := <-ticker.C:
			r.sweep(now)
		}
	}
}

// sweep force closes sessions idle past the threshold and pings the rest.
// A failed ping closes the connection on the spot rather than waiting for
// the idle timeout.
func (r *Registry) sweep(now time.Time) {
	for _, sess := range r.Snapshot() {
		idle := sess.IdleFor(now)

		if idle > r.cfg.IdleTimeout {
			r.logger.Warn("closing idle connection",
				"connection_id", sess.ID.String(),
				"idle", idle.Round(time.Second).String(),
			)
			if r.metrics != nil {
				r.metrics.ForcedClose(CloseReasonIdle)
			}
			r.Remove(sess.ID, CloseReasonIdle)
			continue
		}

		if sess.State() != StateOpen {
			continue
		}
		if err := sess.Sender().Ping(); err != nil {
			r.logger.Warn("liveness probe failed",
				"connection_id", sess.ID.String(),
				"error", err,
			)
			if r.metrics != nil {
				r.metrics.ForcedClose(CloseReasonTransport)
			}
			r.Remove(sess.ID, CloseReasonTransport)
		}
	}
}
