package gateway

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"mercator-hq/ganymede/pkg/protocol"
)

// Sender is the transport-facing half of a session: the gateway emits
// responses, notifications, and liveness probes through it without knowing
// what carries them. Implementations must be safe for concurrent use; the
// gateway resolves requests from per-request goroutines.
type Sender interface {
	// Send writes one response to the client.
	Send(resp *protocol.Response) error

	// Notify writes a server-initiated notification to the client.
	Notify(method string, params any) error

	// Ping probes connection liveness.
	Ping() error

	// Close tears down the underlying connection. It must be idempotent.
	Close() error
}

// SessionState is the liveness state of a session. Transitions are
// monotonic: Open, then Closing, then Closed.
type SessionState int32

const (
	// StateOpen accepts new requests.
	StateOpen SessionState = iota

	// StateClosing refuses new requests while in-flight ones resolve.
	StateClosing

	// StateClosed is terminal.
	StateClosed
)

// String returns the state name for logs.
func (s SessionState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// inflight is the cancellation handle registered for one admitted request.
type inflight struct {
	cancel    context.CancelFunc
	cancelled atomic.Bool
}

// trigger fires the cancellation handle. Only the first call has effect.
func (f *inflight) trigger() bool {
	if f.cancelled.CompareAndSwap(false, true) {
		f.cancel()
		return true
	}
	return false
}

// Session is the gateway's view of one client connection: its identity,
// handshake and liveness state, activity clock, and in-flight request table.
type Session struct {
	// ID uniquely identifies the connection for logs and audit records.
	ID uuid.UUID

	// CreatedAt is when the connection was accepted.
	CreatedAt time.Time

	sender Sender

	mu           sync.Mutex
	state        SessionState
	initialized  bool
	lastActivity time.Time
	inflight     map[string]*inflight
}

// NewSession creates a session in the Open state.
func NewSession(sender Sender) *Session {
	now := time.Now()
	return &Session{
		ID:           uuid.New(),
		CreatedAt:    now,
		sender:       sender,
		lastActivity: now,
		inflight:     make(map[string]*inflight),
	}
}

// Sender returns the transport half of the session.
func (s *Session) Sender() Sender { return s.sender }

// Touch records client activity for idle tracking.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// LastActivity returns the time of the most recent client activity.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// IdleFor returns how long the session has been inactive as of now.
func (s *Session) IdleFor(now time.Time) time.Duration {
	return now.Sub(s.LastActivity())
}

// State returns the current liveness state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Initialized reports whether the handshake has completed.
func (s *Session) Initialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}

// Initialize marks the handshake complete. It fails with
// CodeAlreadyInitialized on a second call; the connection stays usable.
func (s *Session) Initialize() *protocol.ErrorObject {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return &protocol.ErrorObject{
			Code:    protocol.CodeAlreadyInitialized,
			Message: "connection is already initialized",
		}
	}
	s.initialized = true
	return nil
}

// MarkClosing moves the session to Closing. Returns false if the session
// already left the Open state.
func (s *Session) MarkClosing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateOpen {
		return false
	}
	s.state = StateClosing
	return true
}

// MarkClosed moves the session to its terminal state.
func (s *Session) MarkClosed() {
	s.mu.Lock()
	s.state = StateClosed
	s.mu.Unlock()
}

// register adds a cancellation handle under the request's canonical
// identifier key. Admission fails when the session is not Open or the
// identifier is already in flight.
func (s *Session) register(idKey string, cancel context.CancelFunc) (*inflight, *protocol.ErrorObject) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateOpen {
		return nil, &protocol.ErrorObject{
			Code:    protocol.CodeShuttingDown,
			Message: "connection is closing",
		}
	}
	if _, exists := s.inflight[idKey]; exists {
		return nil, &protocol.ErrorObject{
			Code:    protocol.CodeDuplicateRequestID,
			Message: "request id is already in flight",
		}
	}

	handle := &inflight{cancel: cancel}
	s.inflight[idKey] = handle
	return handle, nil
}

// resolve removes the in-flight entry and emits the terminal response. The
// entry is removed before the send so the identifier becomes reusable the
// moment its terminal response is on the wire.
func (s *Session) resolve(idKey string, resp *protocol.Response) error {
	s.mu.Lock()
	delete(s.inflight, idKey)
	s.mu.Unlock()

	return s.sender.Send(resp)
}

// CancelRequest triggers the cancellation handle for the given identifier
// key. Returns false when no such request is in flight, which callers treat
// as "already resolved" rather than an error.
func (s *Session) CancelRequest(idKey string) bool {
	s.mu.Lock()
	handle, ok := s.inflight[idKey]
	s.mu.Unlock()

	if !ok {
		return false
	}
	return handle.trigger()
}

// cancelAll triggers every in-flight cancellation handle and returns how
// many were fired. Entries stay registered until their owning goroutines
// resolve them.
func (s *Session) cancelAll() int {
	s.mu.Lock()
	handles := make([]*inflight, 0, len(s.inflight))
	for _, h := range s.inflight {
		handles = append(handles, h)
	}
	s.mu.Unlock()

	fired := 0
	for _, h := range handles {
		if h.trigger() {
			fired++
		}
	}
	return fired
}

// InflightCount returns the number of admitted, unresolved requests.
func (s *Session) InflightCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inflight)
}
