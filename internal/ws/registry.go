// Package ws implements the WebSocket connection registry, session fan-out
// and wire protocol for the chat server.
package ws

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/ai-chat-a2a/backend/internal/metrics"
)

// Registry tracks all live connections and owns point-to-point delivery.
// Send is self-healing: a delivery failure unregisters the dead connection,
// which is how broadcasts discover and prune stale connections without a
// separate detection pass.
//
// Lock order is always registry.mu before index locks; the index is only
// mutated while the registry lock is held, so a session's connection set
// never references an id missing from the registry.
type Registry struct {
	log   zerolog.Logger
	index *SessionIndex

	mu      sync.RWMutex
	clients map[string]*Client
}

// NewRegistry creates a Registry backed by the given session index.
func NewRegistry(index *SessionIndex, log zerolog.Logger) *Registry {
	return &Registry{
		log:     log.With().Str("component", "registry").Logger(),
		index:   index,
		clients: make(map[string]*Client),
	}
}

// Index returns the session index kept consistent with this registry.
func (r *Registry) Index() *SessionIndex {
	return r.index
}

// Register stores a new connection, attaches it to its session (if any) and
// sends a connection_ack envelope carrying the assigned connection id.
func (r *Registry) Register(conn *websocket.Conn, sessionID string) *Client {
	id := uuid.New().String()
	client := newClient(id, sessionID, conn)

	r.mu.Lock()
	r.clients[id] = client
	if sessionID != "" {
		r.index.Attach(sessionID, id)
	}
	total := len(r.clients)
	r.mu.Unlock()

	client.SetState(StateConnected)
	metrics.ConnectionsActive.Inc()

	r.log.Info().
		Str("connection_id", id).
		Str("session_id", sessionID).
		Int("total", total).
		Msg("connection established")

	ack, _ := NewEnvelope(EnvelopeConnectionAck, AckPayload{
		ConnectionID: id,
		SessionID:    sessionID,
	})
	r.Send(id, ack)

	return client
}

// Unregister removes a connection. It is idempotent: unregistering an
// unknown id is a logged no-op, not an error. The index entry is dropped
// before the connection leaves the registry, and the underlying transport is
// closed if still open.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	client, ok := r.clients[id]
	if !ok {
		r.mu.Unlock()
		r.log.Warn().Str("connection_id", id).Msg("unregister of unknown connection")
		return
	}
	if client.sessionID != "" {
		r.index.Detach(client.sessionID, id)
	}
	delete(r.clients, id)
	remaining := len(r.clients)
	r.mu.Unlock()

	client.Close()
	if client.conn != nil {
		client.conn.Close()
	}
	metrics.ConnectionsActive.Dec()

	r.log.Info().
		Str("connection_id", id).
		Int("remaining", remaining).
		Msg("connection closed")
}

// Get returns the client for a connection id.
func (r *Registry) Get(id string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	client, ok := r.clients[id]
	return client, ok
}

// Send delivers an envelope to a single connection. On any delivery failure
// the connection is treated as dead and unregistered, and false is returned.
// A successful send counts as activity.
func (r *Registry) Send(id string, env *Envelope) bool {
	r.mu.RLock()
	client, ok := r.clients[id]
	r.mu.RUnlock()

	if !ok {
		r.log.Warn().Str("connection_id", id).Msg("send to unknown connection")
		return false
	}

	data, err := env.Encode()
	if err != nil {
		r.log.Error().Err(err).Str("connection_id", id).Msg("failed to encode envelope")
		return false
	}

	if err := client.enqueue(data); err != nil {
		r.log.Debug().Err(err).Str("connection_id", id).Msg("delivery failed, pruning connection")
		r.Unregister(id)
		return false
	}

	client.Touch()
	metrics.EnvelopesSent.WithLabelValues(string(env.Type)).Inc()
	return true
}

// Touch updates a connection's last-activity timestamp.
func (r *Registry) Touch(id string) {
	r.mu.RLock()
	client, ok := r.clients[id]
	r.mu.RUnlock()
	if ok {
		client.Touch()
	}
}

// IsActive reports whether a connection is registered.
func (r *Registry) IsActive(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.clients[id]
	return ok
}

// Count returns the number of registered connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// BroadcastSession delivers an envelope to every connection attached to a
// session, using a snapshot of the set taken at call time. Delivery is
// best-effort: a failure on one connection does not abort delivery to its
// siblings, and failed connections are pruned by Send. Returns the number of
// successful deliveries.
func (r *Registry) BroadcastSession(sessionID string, env *Envelope) int {
	return r.broadcastTo(r.index.Snapshot(sessionID), "", env)
}

// BroadcastSessionExcept is BroadcastSession minus one connection, used for
// typing indicators where the originator is excluded.
func (r *Registry) BroadcastSessionExcept(sessionID, exceptID string, env *Envelope) int {
	return r.broadcastTo(r.index.Snapshot(sessionID), exceptID, env)
}

// Broadcast delivers an envelope to every registered connection system-wide.
func (r *Registry) Broadcast(env *Envelope) int {
	r.mu.RLock()
	ids := make([]string, 0, len(r.clients))
	for id := range r.clients {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	return r.broadcastTo(ids, "", env)
}

func (r *Registry) broadcastTo(ids []string, exceptID string, env *Envelope) int {
	delivered := 0
	for _, id := range ids {
		if id == exceptID {
			continue
		}
		if r.Send(id, env) {
			delivered++
		}
	}
	return delivered
}

// CloseSession disconnects every connection attached to a session, sending a
// disconnect envelope first. Used when a session is deleted. Returns the
// number of connections torn down.
func (r *Registry) CloseSession(sessionID string) int {
	ids := r.index.Snapshot(sessionID)
	env, _ := NewEnvelope(EnvelopeDisconnect, nil)

	for _, id := range ids {
		r.Send(id, env)
		r.Unregister(id)
	}
	return len(ids)
}

// Sweep disconnects every connection idle longer than timeout, using the
// same teardown path as an explicit disconnect. Returns the number of
// connections reclaimed. Each invocation is independent and tolerates
// concurrent registry mutation.
func (r *Registry) Sweep(timeout time.Duration) int {
	now := time.Now()

	r.mu.RLock()
	var idle []string
	for id, client := range r.clients {
		if now.Sub(client.LastActivity()) > timeout {
			idle = append(idle, id)
		}
	}
	r.mu.RUnlock()

	for _, id := range idle {
		r.log.Info().
			Str("connection_id", id).
			Dur("timeout", timeout).
			Msg("reclaiming idle connection")
		r.Unregister(id)
	}

	if len(idle) > 0 {
		metrics.ConnectionsSwept.Add(float64(len(idle)))
	}
	return len(idle)
}

// Close unregisters every connection. Used on shutdown.
func (r *Registry) Close() {
	r.mu.RLock()
	ids := make([]string, 0, len(r.clients))
	for id := range r.clients {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	for _, id := range ids {
		r.Unregister(id)
	}
}
