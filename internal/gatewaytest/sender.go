package gatewaytest

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"mercator-hq/ganymede/pkg/protocol"
)

// ErrSenderClosed is returned by a closed CaptureSender.
var ErrSenderClosed = errors.New("sender closed")

// CapturedNotification is one server-initiated notification seen by the
// sender.
type CapturedNotification struct {
	Method string
	Params any
}

// CaptureSender is a gateway.Sender that records everything it is asked to
// emit. Waiting helpers let tests block for asynchronous resolutions without
// sleeping.
type CaptureSender struct {
	mu            sync.Mutex
	responses     []*protocol.Response
	notifications []CapturedNotification
	pings         int
	closed        bool
	signal        chan struct{}
}

// NewCaptureSender creates an open sender.
func NewCaptureSender() *CaptureSender {
	return &CaptureSender{signal: make(chan struct{}, 64)}
}

// Send records one response.
func (c *CaptureSender) Send(resp *protocol.Response) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrSenderClosed
	}
	c.responses = append(c.responses, resp)
	select {
	case c.signal <- struct{}{}:
	default:
	}
	return nil
}

// Notify records one notification.
func (c *CaptureSender) Notify(method string, params any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrSenderClosed
	}
	c.notifications = append(c.notifications, CapturedNotification{Method: method, Params: params})
	return nil
}

// Ping records a liveness probe.
func (c *CaptureSender) Ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrSenderClosed
	}
	c.pings++
	return nil
}

// Close marks the sender closed. Idempotent.
func (c *CaptureSender) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

// Closed reports whether Close was called.
func (c *CaptureSender) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Pings returns the number of liveness probes received.
func (c *CaptureSender) Pings() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pings
}

// Responses returns a copy of all recorded responses.
func (c *CaptureSender) Responses() []*protocol.Response {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*protocol.Response(nil), c.responses...)
}

// Notifications returns a copy of all recorded notifications.
func (c *CaptureSender) Notifications() []CapturedNotification {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]CapturedNotification(nil), c.notifications...)
}

// ResponsesFor returns the responses whose identifier matches the given raw
// JSON id, in emission order.
func (c *CaptureSender) ResponsesFor(id string) []*protocol.Response {
	c.mu.Lock()
	defer c.mu.Unlock()
	var matched []*protocol.Response
	for _, resp := range c.responses {
		if protocol.IDKey(resp.ID) == protocol.IDKey(json.RawMessage(id)) {
			matched = append(matched, resp)
		}
	}
	return matched
}

// WaitForResponses blocks until at least n responses for the given id have
// been recorded or the timeout lapses, returning whatever was captured.
func (c *CaptureSender) WaitForResponses(id string, n int, timeout time.Duration) []*protocol.Response {
	deadline := time.After(timeout)
	for {
		matched := c.ResponsesFor(id)
		if len(matched) >= n {
			return matched
		}
		select {
		case <-c.signal:
		case <-deadline:
			return matched
		}
	}
}

// WaitForTerminal blocks until a terminal response for the id arrives: an
// error response, or a result that is not an intermediate stream chunk.
func (c *CaptureSender) WaitForTerminal(id string, timeout time.Duration) *protocol.Response {
	deadline := time.After(timeout)
	for {
		for _, resp := range c.ResponsesFor(id) {
			if isTerminal(resp) {
				return resp
			}
		}
		select {
		case <-c.signal:
		case <-deadline:
			return nil
		}
	}
}

// isTerminal reports whether a response ends its request: any error, or any
// result other than an intermediate stream payload.
func isTerminal(resp *protocol.Response) bool {
	if resp.Error != nil {
		return true
	}
	if sr, ok := resp.Result.(*protocol.StreamResult); ok {
		return sr.Done
	}
	return true
}
