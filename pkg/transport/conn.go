package transport

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"mercator-hq/ganymede/pkg/protocol"
)

// ErrConnClosed is returned when sending on a torn-down connection.
var ErrConnClosed = errors.New("connection closed")

const (
	// writeWait bounds a single frame write.
	writeWait = 10 * time.Second

	// sendQueueSize buffers outbound frames between the emitting goroutines
	// and the write pump.
	sendQueueSize = 256
)

// wsConn adapts one WebSocket connection to the gateway.Sender interface.
// All data frames funnel through the write pump; Ping and Close use the
// connection's concurrency-safe control paths.
type wsConn struct {
	conn   *websocket.Conn
	logger *slog.Logger

	sendCh    chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

func newWSConn(conn *websocket.Conn, logger *slog.Logger) *wsConn {
	return &wsConn{
		conn:   conn,
		logger: logger,
		sendCh: make(chan []byte, sendQueueSize),
		closed: make(chan struct{}),
	}
}

// Send marshals and enqueues one response frame.
func (c *wsConn) Send(resp *protocol.Response) error {
	data, err := resp.Marshal()
	if err != nil {
		return err
	}
	return c.enqueue(data)
}

// Notify marshals and enqueues one server-initiated notification frame.
func (c *wsConn) Notify(method string, params any) error {
	data, err := protocol.MarshalNotification(method, params)
	if err != nil {
		return err
	}
	return c.enqueue(data)
}

// enqueue hands a frame to the write pump, failing fast once the connection
// is torn down.
func (c *wsConn) enqueue(data []byte) error {
	select {
	case <-c.closed:
		return ErrConnClosed
	default:
	}

	select {
	case c.sendCh <- data:
		return nil
	case <-c.closed:
		return ErrConnClosed
	}
}

// Ping probes liveness with a control frame. Control writes are safe
// concurrently with the write pump.
func (c *wsConn) Ping() error {
	select {
	case <-c.closed:
		return ErrConnClosed
	default:
	}
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// Close signals teardown. Idempotent; safe from any goroutine. The write
// pump flushes queued frames, sends the close frame, and closes the
// underlying connection.
func (c *wsConn) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
	})
	return nil
}

// writePump is the single writer of data frames. It owns the connection's
// teardown: on close it flushes frames already queued (terminal responses
// racing a drain must not be dropped), then sends the close frame.
func (c *wsConn) writePump() {
	defer func() {
		deadline := time.Now().Add(time.Second)
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "going away"),
			deadline)
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.closed:
			c.flush()
			return
		case data := <-c.sendCh:
			if err := c.write(data); err != nil {
				c.logger.Debug("write failed, closing connection", "error", err)
				c.Close()
				return
			}
		}
	}
}

// flush drains frames that were queued before the close signal.
func (c *wsConn) flush() {
	for {
		select {
		case data := <-c.sendCh:
			if err := c.write(data); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *wsConn) write(data []byte) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}
