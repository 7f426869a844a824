package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ConnState is the lifecycle state of a single connection.
type ConnState string

const (
	StateConnecting ConnState = "connecting"
	StateConnected  ConnState = "connected"
	StateProcessing ConnState = "processing"
	StateTyping     ConnState = "typing"
	StateClosed     ConnState = "closed"
)

// ErrConnectionClosed is returned when sending to a closed connection.
var ErrConnectionClosed = errors.New("connection closed")

const sendBufferSize = 256

// Client represents one live WebSocket connection. A session may have many
// clients attached at once.
type Client struct {
	id          string
	sessionID   string
	conn        *websocket.Conn
	send        chan []byte
	connectedAt time.Time

	mu           sync.Mutex
	closed       bool
	state        ConnState
	lastActivity time.Time
}

func newClient(id, sessionID string, conn *websocket.Conn) *Client {
	now := time.Now()
	return &Client{
		id:           id,
		sessionID:    sessionID,
		conn:         conn,
		send:         make(chan []byte, sendBufferSize),
		connectedAt:  now,
		state:        StateConnecting,
		lastActivity: now,
	}
}

// ID returns the connection id.
func (c *Client) ID() string {
	return c.id
}

// SessionID returns the session this connection is attached to, or "" if it
// is unattached.
func (c *Client) SessionID() string {
	return c.sessionID
}

// Conn returns the underlying WebSocket connection. Nil for test clients.
func (c *Client) Conn() *websocket.Conn {
	return c.conn
}

// SendChan returns the outbound frame channel consumed by the write pump.
func (c *Client) SendChan() <-chan []byte {
	return c.send
}

// ConnectedAt returns the time the connection was registered.
func (c *Client) ConnectedAt() time.Time {
	return c.connectedAt
}

// enqueue queues a frame for the write pump. A closed client or a full
// buffer is a delivery failure: the client is closed and an error returned
// so the registry can prune it.
func (c *Client) enqueue(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrConnectionClosed
	}

	select {
	case c.send <- data:
		return nil
	default:
		// Buffer full: the peer is not draining. Treat as dead.
		c.closeLocked()
		return ErrConnectionClosed
	}
}

// Touch updates the last-activity timestamp.
func (c *Client) Touch() {
	c.mu.Lock()
	c.lastActivity = time.Now()
	c.mu.Unlock()
}

// LastActivity returns the time of the last inbound frame or successful
// outbound send.
func (c *Client) LastActivity() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActivity
}

// State returns the connection's lifecycle state.
func (c *Client) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetState transitions the connection's lifecycle state. Transitions on a
// closed client are ignored.
func (c *Client) SetState(s ConnState) {
	c.mu.Lock()
	if !c.closed {
		c.state = s
	}
	c.mu.Unlock()
}

// Close closes the client's send channel. Safe to call multiple times.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

func (c *Client) closeLocked() {
	if c.closed {
		return
	}
	c.closed = true
	c.state = StateClosed
	close(c.send)
}

// IsClosed returns true if the client is closed.
func (c *Client) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
