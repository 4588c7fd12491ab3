package gateway

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"mercator-hq/ganymede/pkg/protocol"
)

// Phase is the gateway-wide shutdown phase. Transitions are monotonic:
// Running, then Draining, then Terminated.
type Phase int32

const (
	// PhaseRunning accepts connections and requests.
	PhaseRunning Phase = iota

	// PhaseDraining refuses new work while in-flight requests wind down.
	PhaseDraining

	// PhaseTerminated means every connection has been closed.
	PhaseTerminated
)

// String returns the phase name for logs.
func (p Phase) String() string {
	switch p {
	case PhaseRunning:
		return "running"
	case PhaseDraining:
		return "draining"
	case PhaseTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// CoordinatorConfig configures the shutdown sequence.
type CoordinatorConfig struct {
	// DrainGrace is the per-connection window in which cancelled in-flight
	// requests may still emit their terminal responses.
	DrainGrace time.Duration

	// ShutdownTimeout bounds the entire sequence. Connections still open at
	// the deadline are force closed regardless of drain progress.
	ShutdownTimeout time.Duration
}

// Coordinator drives graceful shutdown: broadcast a shutdown notification,
// cancel all in-flight requests, give each connection a grace window to
// drain its terminal responses, then force close everything that remains.
// Trigger is idempotent; the first caller wins and later calls are no-ops.
type Coordinator struct {
	cfg      CoordinatorConfig
	registry *Registry
	logger   *slog.Logger

	phase atomic.Int32
	once  sync.Once
	done  chan struct{}
}

// NewCoordinator creates a coordinator in the Running phase.
func NewCoordinator(cfg CoordinatorConfig, registry *Registry, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		cfg:      cfg,
		registry: registry,
		logger:   logger.With("component", "gateway.shutdown"),
		done:     make(chan struct{}),
	}
}

// Phase returns the current shutdown phase.
func (c *Coordinator) Phase() Phase {
	return Phase(c.phase.Load())
}

// Draining reports whether shutdown has begun. The manager consults this
// before admitting new requests.
func (c *Coordinator) Draining() bool {
	return c.Phase() != PhaseRunning
}

// Done is closed when the shutdown sequence has completed and every
// connection is gone.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// Trigger begins the shutdown sequence. Only the first call has effect; the
// sequence runs in the background and Done reports completion.
func (c *Coordinator) Trigger(reason string) {
	c.once.Do(func() {
		c.phase.Store(int32(PhaseDraining))
		c.logger.Info("shutdown triggered", "reason", reason)
		go c.drain()
	})
}

// drain executes the shutdown sequence.
func (c *Coordinator) drain() {
	defer func() {
		c.phase.Store(int32(PhaseTerminated))
		close(c.done)
		c.logger.Info("shutdown complete")
	}()

	deadline := time.Now().Add(c.cfg.ShutdownTimeout)
	sessions := c.registry.Snapshot()

	// Best effort: tell every client the gateway is going away, then fire
	// the cancellation cascade so in-flight work stops promptly.
	for _, sess := range sessions {
		if err := sess.Sender().Notify(protocol.MethodShutdown, nil); err != nil {
			c.logger.Debug("shutdown notification failed",
				"connection_id", sess.ID.String(),
				"error", err,
			)
		}
		sess.MarkClosing()
		sess.cancelAll()
	}

	// Each connection gets the drain grace to flush terminal responses,
	// clipped to the overall deadline.
	var wg sync.WaitGroup
	for _, sess := range sessions {
		wg.Add(1)
		go func(sess *Session) {
			defer wg.Done()

			grace := c.cfg.DrainGrace
			if remaining := time.Until(deadline); remaining < grace {
				grace = remaining
			}
			if !c.waitDrained(sess, grace) {
				c.logger.Warn("connection closed with unresolved requests",
					"connection_id", sess.ID.String(),
					"inflight", sess.InflightCount(),
				)
			}
			c.registry.Remove(sess.ID, CloseReasonShutdown)
		}(sess)
	}

	waitCh := make(chan struct{})
	go func() {
		wg.Wait()
		close(waitCh)
	}()

	select {
	case <-waitCh:
	case <-time.After(time.Until(deadline) + time.Second):
		// The per-connection waits are themselves bounded by the deadline;
		// this is a backstop against a wedged transport close.
		c.logger.Error("shutdown deadline overrun, forcing exit")
		for _, sess := range c.registry.Snapshot() {
			c.registry.Remove(sess.ID, CloseReasonShutdown)
		}
	}
}

// waitDrained polls until the session has no in-flight requests or the grace
// window lapses.
func (c *Coordinator) waitDrained(sess *Session, grace time.Duration) bool {
	if grace <= 0 {
		return sess.InflightCount() == 0
	}

	deadline := time.Now().Add(grace)
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()

	for {
		if sess.InflightCount() == 0 {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		<-ticker.C
	}
}
