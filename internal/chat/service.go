// Package chat wires the connection registry, the message store and the
// agent collaborator into the message flow of a session.
package chat

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ai-chat-a2a/backend/internal/metrics"
	"github.com/ai-chat-a2a/backend/internal/model"
	"github.com/ai-chat-a2a/backend/internal/repository"
	"github.com/ai-chat-a2a/backend/internal/ws"
)

// AgentInvoker turns a user message into a reply. Implementations own their
// timeout behavior; the chat service performs no retries and surfaces any
// failure as an error envelope on the session.
type AgentInvoker interface {
	Invoke(ctx context.Context, agent *model.Agent, sessionID, content string) (string, error)
}

// Service handles the per-connection message flow: persisting user messages,
// fanning them out to the session, invoking the agent collaborator and
// fanning out its eventual reply. It implements ws.Dispatcher.
type Service struct {
	sessions *repository.SessionRepository
	messages *repository.MessageRepository
	agents   *repository.AgentRepository
	registry *ws.Registry
	invoker  AgentInvoker
	log      zerolog.Logger
}

// NewService creates a chat service.
func NewService(
	sessions *repository.SessionRepository,
	messages *repository.MessageRepository,
	agents *repository.AgentRepository,
	registry *ws.Registry,
	invoker AgentInvoker,
	log zerolog.Logger,
) *Service {
	return &Service{
		sessions: sessions,
		messages: messages,
		agents:   agents,
		registry: registry,
		invoker:  invoker,
		log:      log.With().Str("component", "chat").Logger(),
	}
}

// HandleMessage processes an inbound message envelope: the user message is
// persisted and fanned out to every connection on the session, then the
// agent is invoked asynchronously. Empty or whitespace-only content is
// rejected with an error envelope and nothing is persisted.
func (s *Service) HandleMessage(client *ws.Client, payload ws.MessagePayload) {
	ctx := context.Background()

	content := strings.TrimSpace(payload.Content)
	if content == "" {
		s.registry.Send(client.ID(), ws.NewErrorEnvelope(ws.ErrCodeInvalidMessage, "message content must not be empty"))
		return
	}

	sessionID := client.SessionID()
	if sessionID == "" {
		s.registry.Send(client.ID(), ws.NewErrorEnvelope(ws.ErrCodeSessionNotFound, "connection is not attached to a session"))
		return
	}

	msg, err := s.messages.Append(ctx, sessionID, model.RoleUser, content, nil)
	if err != nil {
		if err == model.ErrSessionNotFound {
			s.registry.Send(client.ID(), ws.NewErrorEnvelope(ws.ErrCodeSessionNotFound, "session not found"))
			return
		}
		s.log.Error().Err(err).Str("session_id", sessionID).Msg("failed to persist user message")
		s.registry.Send(client.ID(), ws.NewErrorEnvelope(ws.ErrCodeServerError, "failed to store message"))
		return
	}
	metrics.MessagesStored.WithLabelValues(string(model.RoleUser)).Inc()

	// Echo the accepted message to every connection on the session. The
	// agent's reply is a later, uncoordinated broadcast; clients correlate
	// by session id and arrival order.
	s.broadcastMessage(sessionID, msg)

	client.SetState(ws.StateProcessing)
	go s.invokeAgent(client, sessionID, content)
}

// invokeAgent calls the agent collaborator for one user message and fans out
// the reply. Runs in its own goroutine so a slow agent stalls only the
// conversation that triggered it.
func (s *Service) invokeAgent(client *ws.Client, sessionID, content string) {
	defer client.SetState(ws.StateConnected)

	ctx := context.Background()

	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		s.log.Warn().Err(err).Str("session_id", sessionID).Msg("session vanished before agent invocation")
		return
	}

	agent, err := s.agents.GetByID(ctx, session.AgentID)
	if err != nil {
		s.log.Warn().Err(err).Str("agent_id", session.AgentID).Msg("agent configuration missing")
		s.registry.BroadcastSession(sessionID, ws.NewErrorEnvelope(ws.ErrCodeAgentFailure, "agent configuration not found"))
		return
	}

	start := time.Now()
	reply, err := s.invoker.Invoke(ctx, agent, sessionID, content)
	metrics.AgentLatency.Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.AgentFailures.Inc()
		s.log.Warn().Err(err).
			Str("session_id", sessionID).
			Str("agent_id", agent.ID).
			Msg("agent invocation failed")
		s.registry.BroadcastSession(sessionID, ws.NewErrorEnvelope(ws.ErrCodeAgentFailure, "agent failed to respond"))
		return
	}

	agentID := agent.ID
	msg, err := s.messages.Append(ctx, sessionID, model.RoleAgent, reply, &agentID)
	if err != nil {
		// The session may have been deleted while the agent was thinking.
		s.log.Warn().Err(err).Str("session_id", sessionID).Msg("failed to persist agent reply")
		return
	}
	metrics.MessagesStored.WithLabelValues(string(model.RoleAgent)).Inc()

	if err := s.agents.MarkUsed(ctx, agent.ID, time.Now().UTC()); err != nil {
		s.log.Warn().Err(err).Str("agent_id", agent.ID).Msg("failed to stamp agent usage")
	}

	s.broadcastMessage(sessionID, msg)
}

// HandleTyping fans a typing indicator out to the session's other
// connections. Nothing is persisted.
func (s *Service) HandleTyping(client *ws.Client, payload ws.TypingPayload) {
	sessionID := client.SessionID()
	if sessionID == "" {
		return
	}

	env, err := ws.NewEnvelope(ws.EnvelopeTyping, ws.TypingPayload{
		SessionID: sessionID,
		IsTyping:  payload.IsTyping,
	})
	if err != nil {
		return
	}

	if payload.IsTyping {
		client.SetState(ws.StateTyping)
	} else {
		client.SetState(ws.StateConnected)
	}

	s.registry.BroadcastSessionExcept(sessionID, client.ID(), env)
}

// PostMessage appends a message on behalf of the REST fallback endpoint and
// fans it out to any connections attached to the session. Messages with role
// agent carry the session's agent id.
func (s *Service) PostMessage(ctx context.Context, sessionID string, role model.MessageRole, content string) (*model.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, model.ErrEmptyContent
	}

	var agentID *string
	if role == model.RoleAgent {
		session, err := s.sessions.GetByID(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		agentID = &session.AgentID
	}

	msg, err := s.messages.Append(ctx, sessionID, role, content, agentID)
	if err != nil {
		return nil, err
	}
	metrics.MessagesStored.WithLabelValues(string(role)).Inc()

	s.broadcastMessage(sessionID, msg)
	return msg, nil
}

// DeleteSession tears down every connection attached to the session, then
// removes the session record and its message log.
func (s *Service) DeleteSession(ctx context.Context, sessionID string) error {
	closed := s.registry.CloseSession(sessionID)
	if closed > 0 {
		s.log.Info().Str("session_id", sessionID).Int("connections", closed).Msg("disconnected session connections")
	}
	return s.sessions.Delete(ctx, sessionID)
}

// ConnectionCount reports how many connections are attached to a session.
func (s *Service) ConnectionCount(sessionID string) int {
	return s.registry.Index().ConnectionCount(sessionID)
}

// ActiveSessions reports how many sessions have at least one connection
// attached.
func (s *Service) ActiveSessions() int {
	return s.registry.Index().SessionCount()
}

func (s *Service) broadcastMessage(sessionID string, msg *model.Message) {
	env, err := ws.NewEnvelope(ws.EnvelopeMessage, msg)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to encode message envelope")
		return
	}
	delivered := s.registry.BroadcastSession(sessionID, env)
	s.log.Debug().
		Str("session_id", sessionID).
		Str("message_id", msg.ID).
		Int("delivered", delivered).
		Msg("message fan-out")
}
