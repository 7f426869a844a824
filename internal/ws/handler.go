package ws

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 16384
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Permissive default; cmd/server installs an allowlist checker via
	// SetCheckOrigin when ALLOWED_ORIGINS is configured.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Dispatcher receives decoded application envelopes from a connection's read
// loop. The chat service implements this.
type Dispatcher interface {
	HandleMessage(client *Client, payload MessagePayload)
	HandleTyping(client *Client, payload TypingPayload)
}

// Handler upgrades HTTP requests to WebSocket connections and runs one read
// and one write pump per connection.
type Handler struct {
	registry   *Registry
	dispatcher Dispatcher
	log        zerolog.Logger
}

// NewHandler creates a new WebSocket handler.
func NewHandler(registry *Registry, dispatcher Dispatcher, log zerolog.Logger) *Handler {
	return &Handler{
		registry:   registry,
		dispatcher: dispatcher,
		log:        log.With().Str("component", "ws").Logger(),
	}
}

// SetCheckOrigin sets a custom origin checker for the WebSocket upgrader.
func SetCheckOrigin(fn func(r *http.Request) bool) {
	upgrader.CheckOrigin = fn
}

// HandleConnection upgrades the HTTP connection and registers it against the
// given session. The registry sends the connection_ack as a side effect of
// registration.
func (h *Handler) HandleConnection(w http.ResponseWriter, r *http.Request, sessionID string) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	client := h.registry.Register(conn, sessionID)

	go h.writePump(client)
	go h.readPump(client)

	return nil
}

// readPump reads frames from the connection, decodes them and dispatches by
// envelope type. A malformed frame is reported back to the originating
// connection only; the connection stays open.
func (h *Handler) readPump(client *Client) {
	defer func() {
		h.registry.Unregister(client.ID())
	}()

	conn := client.Conn()
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		client.Touch()
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.log.Warn().Err(err).Str("connection_id", client.ID()).Msg("read error")
			}
			return
		}

		client.Touch()

		env, err := DecodeEnvelope(data)
		if err != nil {
			code := ErrCodeInvalidFrame
			if err == ErrInvalidJSON {
				code = ErrCodeInvalidJSON
			}
			h.registry.Send(client.ID(), NewErrorEnvelope(code, err.Error()))
			continue
		}

		if done := h.dispatch(client, env); done {
			return
		}
	}
}

// dispatch routes one decoded envelope. Returns true when the connection
// should be torn down.
func (h *Handler) dispatch(client *Client, env *Envelope) bool {
	switch env.Type {
	case EnvelopePing:
		pong, _ := NewEnvelope(EnvelopePong, nil)
		h.registry.Send(client.ID(), pong)

	case EnvelopeMessage:
		var payload MessagePayload
		if err := env.DecodePayload(&payload); err != nil {
			h.registry.Send(client.ID(), NewErrorEnvelope(ErrCodeInvalidFrame, "message payload is malformed"))
			return false
		}
		h.dispatcher.HandleMessage(client, payload)

	case EnvelopeTyping:
		var payload TypingPayload
		if err := env.DecodePayload(&payload); err != nil {
			h.registry.Send(client.ID(), NewErrorEnvelope(ErrCodeInvalidFrame, "typing payload is malformed"))
			return false
		}
		h.dispatcher.HandleTyping(client, payload)

	case EnvelopeDisconnect:
		return true

	case EnvelopePong:
		// Activity already recorded by the read loop.

	default:
		// Server-side envelope types echoed by a client carry no operation.
		h.log.Debug().
			Str("connection_id", client.ID()).
			Str("type", string(env.Type)).
			Msg("ignoring inbound envelope")
	}
	return false
}

// writePump pumps frames from the client's send channel to the connection.
func (h *Handler) writePump(client *Client) {
	ticker := time.NewTicker(pingPeriod)
	conn := client.Conn()
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case data, ok := <-client.SendChan():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The registry closed the client.
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// One JSON envelope per WebSocket frame so clients can parse
			// each frame independently.
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

			n := len(client.SendChan())
			for i := 0; i < n; i++ {
				queued, ok := <-client.SendChan()
				if !ok {
					return
				}
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.TextMessage, queued); err != nil {
					return
				}
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
