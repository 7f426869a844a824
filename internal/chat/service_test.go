package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ai-chat-a2a/backend/internal/db"
	"github.com/ai-chat-a2a/backend/internal/model"
	"github.com/ai-chat-a2a/backend/internal/repository"
	"github.com/ai-chat-a2a/backend/internal/ws"
)

type invocation struct {
	agentID   string
	sessionID string
	content   string
}

// fakeInvoker is an AgentInvoker with a canned reply or failure.
type fakeInvoker struct {
	mu    sync.Mutex
	reply string
	err   error
	calls []invocation
}

func (f *fakeInvoker) Invoke(_ context.Context, agent *model.Agent, sessionID, content string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, invocation{agent.ID, sessionID, content})
	return f.reply, f.err
}

func (f *fakeInvoker) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type harness struct {
	service  *Service
	registry *ws.Registry
	messages *repository.MessageRepository
	sessions *repository.SessionRepository
	invoker  *fakeInvoker
	session  *model.Session
	agent    *model.Agent
}

func setupHarness(t *testing.T) (*harness, func()) {
	t.Helper()

	database, err := db.NewTestDB()
	require.NoError(t, err)

	sessions := repository.NewSessionRepository(database)
	messages := repository.NewMessageRepository(database)
	agents := repository.NewAgentRepository(database)

	ctx := context.Background()
	now := time.Now().UTC()

	agentConfig := &model.Agent{
		ID:          uuid.New().String(),
		Name:        "assistant",
		EndpointURL: "http://localhost:9000",
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, agents.Create(ctx, agentConfig))

	session := &model.Session{
		ID:        uuid.New().String(),
		UserID:    "user-1",
		AgentID:   agentConfig.ID,
		CreatedAt: now,
		UpdatedAt: now,
		IsActive:  true,
	}
	require.NoError(t, sessions.Create(ctx, session))

	registry := ws.NewRegistry(ws.NewSessionIndex(), zerolog.Nop())
	invoker := &fakeInvoker{reply: "how can I help?"}
	service := NewService(sessions, messages, agents, registry, invoker, zerolog.Nop())

	h := &harness{
		service:  service,
		registry: registry,
		messages: messages,
		sessions: sessions,
		invoker:  invoker,
		session:  session,
		agent:    agentConfig,
	}
	return h, func() {
		registry.Close()
		database.Close()
	}
}

// attach registers a transport-less connection on the session and discards
// the connection_ack.
func (h *harness) attach(t *testing.T, sessionID string) *ws.Client {
	t.Helper()
	client := h.registry.Register(nil, sessionID)
	recv(t, client)
	return client
}

func recv(t *testing.T, client *ws.Client) *ws.Envelope {
	t.Helper()
	select {
	case data, ok := <-client.SendChan():
		require.True(t, ok, "send channel closed while waiting for a frame")
		env, err := ws.DecodeEnvelope(data)
		require.NoError(t, err)
		return env
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a frame")
	}
	return nil
}

func recvMessage(t *testing.T, client *ws.Client) *model.Message {
	t.Helper()
	env := recv(t, client)
	require.Equal(t, ws.EnvelopeMessage, env.Type)
	var msg model.Message
	require.NoError(t, env.DecodePayload(&msg))
	return &msg
}

func assertNoFrame(t *testing.T, client *ws.Client) {
	t.Helper()
	select {
	case data := <-client.SendChan():
		t.Fatalf("unexpected frame: %s", data)
	default:
	}
}

func TestService_HandleMessage(t *testing.T) {
	h, cleanup := setupHarness(t)
	defer cleanup()

	sender := h.attach(t, h.session.ID)
	peer := h.attach(t, h.session.ID)

	h.service.HandleMessage(sender, ws.MessagePayload{Content: "hello"})

	// The user message is echoed to every connection on the session.
	for _, c := range []*ws.Client{sender, peer} {
		msg := recvMessage(t, c)
		assert.Equal(t, model.RoleUser, msg.Role)
		assert.Equal(t, "hello", msg.Content)
		assert.Equal(t, h.session.ID, msg.SessionID)
	}

	// The agent's reply arrives as a second broadcast.
	for _, c := range []*ws.Client{sender, peer} {
		msg := recvMessage(t, c)
		assert.Equal(t, model.RoleAgent, msg.Role)
		assert.Equal(t, "how can I help?", msg.Content)
		require.NotNil(t, msg.AgentID)
		assert.Equal(t, h.agent.ID, *msg.AgentID)
	}

	// Both ends of the exchange are in the log, user first.
	log, err := h.messages.List(context.Background(), h.session.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, log, 2)
	assert.Equal(t, model.RoleUser, log[0].Role)
	assert.Equal(t, model.RoleAgent, log[1].Role)

	assert.Equal(t, 1, h.invoker.callCount())
	assert.Eventually(t, func() bool {
		return sender.State() == ws.StateConnected
	}, time.Second, 10*time.Millisecond, "sender should return to connected after the reply")
}

func TestService_HandleMessage_EmptyContent(t *testing.T) {
	h, cleanup := setupHarness(t)
	defer cleanup()

	sender := h.attach(t, h.session.ID)
	peer := h.attach(t, h.session.ID)

	h.service.HandleMessage(sender, ws.MessagePayload{Content: "   "})

	env := recv(t, sender)
	require.Equal(t, ws.EnvelopeError, env.Type)
	var payload ws.ErrorPayload
	require.NoError(t, env.DecodePayload(&payload))
	assert.Equal(t, ws.ErrCodeInvalidMessage, payload.Code)

	assertNoFrame(t, peer)

	count, err := h.messages.Count(context.Background(), h.session.ID)
	require.NoError(t, err)
	assert.Zero(t, count, "rejected message must not be persisted")
	assert.Zero(t, h.invoker.callCount())
}

func TestService_HandleMessage_UnattachedConnection(t *testing.T) {
	h, cleanup := setupHarness(t)
	defer cleanup()

	client := h.attach(t, "")

	h.service.HandleMessage(client, ws.MessagePayload{Content: "hello"})

	env := recv(t, client)
	require.Equal(t, ws.EnvelopeError, env.Type)
	var payload ws.ErrorPayload
	require.NoError(t, env.DecodePayload(&payload))
	assert.Equal(t, ws.ErrCodeSessionNotFound, payload.Code)
}

func TestService_HandleMessage_UnknownSession(t *testing.T) {
	h, cleanup := setupHarness(t)
	defer cleanup()

	// Attached to a session id with no backing record.
	client := h.attach(t, "no-such-session")

	h.service.HandleMessage(client, ws.MessagePayload{Content: "hello"})

	env := recv(t, client)
	require.Equal(t, ws.EnvelopeError, env.Type)
	var payload ws.ErrorPayload
	require.NoError(t, env.DecodePayload(&payload))
	assert.Equal(t, ws.ErrCodeSessionNotFound, payload.Code)
}

func TestService_HandleMessage_AgentFailure(t *testing.T) {
	h, cleanup := setupHarness(t)
	defer cleanup()

	h.invoker.err = errors.New("agent unreachable")

	sender := h.attach(t, h.session.ID)
	peer := h.attach(t, h.session.ID)

	h.service.HandleMessage(sender, ws.MessagePayload{Content: "hello"})

	// The user message still goes out.
	recvMessage(t, sender)
	recvMessage(t, peer)

	// The failure is announced to the whole session.
	for _, c := range []*ws.Client{sender, peer} {
		env := recv(t, c)
		require.Equal(t, ws.EnvelopeError, env.Type)
		var payload ws.ErrorPayload
		require.NoError(t, env.DecodePayload(&payload))
		assert.Equal(t, ws.ErrCodeAgentFailure, payload.Code)
	}

	// Only the user message is in the log.
	count, err := h.messages.Count(context.Background(), h.session.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestService_HandleMessage_MissingAgentConfig(t *testing.T) {
	h, cleanup := setupHarness(t)
	defer cleanup()

	ctx := context.Background()
	now := time.Now().UTC()
	orphan := &model.Session{
		ID:        uuid.New().String(),
		UserID:    "user-1",
		AgentID:   "no-such-agent",
		CreatedAt: now,
		UpdatedAt: now,
		IsActive:  true,
	}
	require.NoError(t, h.sessions.Create(ctx, orphan))

	client := h.attach(t, orphan.ID)

	h.service.HandleMessage(client, ws.MessagePayload{Content: "hello"})

	recvMessage(t, client)

	env := recv(t, client)
	require.Equal(t, ws.EnvelopeError, env.Type)
	var payload ws.ErrorPayload
	require.NoError(t, env.DecodePayload(&payload))
	assert.Equal(t, ws.ErrCodeAgentFailure, payload.Code)
	assert.Zero(t, h.invoker.callCount())
}

func TestService_HandleTyping(t *testing.T) {
	h, cleanup := setupHarness(t)
	defer cleanup()

	sender := h.attach(t, h.session.ID)
	peer := h.attach(t, h.session.ID)

	h.service.HandleTyping(sender, ws.TypingPayload{IsTyping: true})

	env := recv(t, peer)
	require.Equal(t, ws.EnvelopeTyping, env.Type)
	var payload ws.TypingPayload
	require.NoError(t, env.DecodePayload(&payload))
	assert.True(t, payload.IsTyping)
	assert.Equal(t, h.session.ID, payload.SessionID)

	// The originator never hears its own indicator.
	assertNoFrame(t, sender)
	assert.Equal(t, ws.StateTyping, sender.State())

	h.service.HandleTyping(sender, ws.TypingPayload{IsTyping: false})
	recv(t, peer)
	assert.Equal(t, ws.StateConnected, sender.State())
}

func TestService_PostMessage(t *testing.T) {
	h, cleanup := setupHarness(t)
	defer cleanup()

	ctx := context.Background()
	client := h.attach(t, h.session.ID)

	t.Run("empty content is rejected", func(t *testing.T) {
		_, err := h.service.PostMessage(ctx, h.session.ID, model.RoleUser, "  ")
		assert.ErrorIs(t, err, model.ErrEmptyContent)
	})

	t.Run("unknown session is rejected", func(t *testing.T) {
		_, err := h.service.PostMessage(ctx, "no-such-session", model.RoleUser, "hello")
		assert.ErrorIs(t, err, model.ErrSessionNotFound)
	})

	t.Run("user message fans out to connections", func(t *testing.T) {
		msg, err := h.service.PostMessage(ctx, h.session.ID, model.RoleUser, "from rest")
		require.NoError(t, err)
		assert.Nil(t, msg.AgentID)

		got := recvMessage(t, client)
		assert.Equal(t, msg.ID, got.ID)
	})

	t.Run("agent message carries the session's agent id", func(t *testing.T) {
		msg, err := h.service.PostMessage(ctx, h.session.ID, model.RoleAgent, "injected reply")
		require.NoError(t, err)
		require.NotNil(t, msg.AgentID)
		assert.Equal(t, h.agent.ID, *msg.AgentID)
		recvMessage(t, client)
	})
}

func TestService_DeleteSession(t *testing.T) {
	h, cleanup := setupHarness(t)
	defer cleanup()

	ctx := context.Background()
	c1 := h.attach(t, h.session.ID)
	c2 := h.attach(t, h.session.ID)

	_, err := h.service.PostMessage(ctx, h.session.ID, model.RoleUser, "hello")
	require.NoError(t, err)
	recvMessage(t, c1)
	recvMessage(t, c2)

	require.NoError(t, h.service.DeleteSession(ctx, h.session.ID))

	for _, c := range []*ws.Client{c1, c2} {
		env := recv(t, c)
		assert.Equal(t, ws.EnvelopeDisconnect, env.Type)
		assert.False(t, h.registry.IsActive(c.ID()))
	}
	assert.Zero(t, h.service.ConnectionCount(h.session.ID))

	_, err = h.sessions.GetByID(ctx, h.session.ID)
	assert.ErrorIs(t, err, model.ErrSessionNotFound)

	assert.ErrorIs(t, h.service.DeleteSession(ctx, "no-such-session"), model.ErrSessionNotFound)
}
