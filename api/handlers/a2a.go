package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ai-chat-a2a/backend/internal/a2a"
	"github.com/ai-chat-a2a/backend/internal/chat"
	"github.com/ai-chat-a2a/backend/internal/model"
	"github.com/ai-chat-a2a/backend/internal/repository"
)

// A2AHandler serves the inbound agent-to-agent protocol surface, letting
// peer agents address this backend as an agent itself.
type A2AHandler struct {
	identity a2a.Identity
	sessions *repository.SessionRepository
	chat     *chat.Service
}

// NewA2AHandler creates a new A2AHandler.
func NewA2AHandler(identity a2a.Identity, sessions *repository.SessionRepository, chatService *chat.Service) *A2AHandler {
	return &A2AHandler{
		identity: identity,
		sessions: sessions,
		chat:     chatService,
	}
}

// GetAgentCard handles GET /api/v1/a2a/agent-card - returns this backend's
// agent card with its capabilities and endpoints.
func (h *A2AHandler) GetAgentCard(c *gin.Context) {
	c.JSON(http.StatusOK, h.identity.Card())
}

// SendMessage handles POST /api/v1/a2a/message - accepts a message from a
// peer agent, appends it to a session (created on first contact), fans it out
// to any WebSocket connections on that session and returns the reply.
func (h *A2AHandler) SendMessage(c *gin.Context) {
	var req a2a.MessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body: "+err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	ctx := c.Request.Context()

	sessionID, err := h.resolveSession(c, req.SessionID)
	if err != nil {
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to resolve session: "+err.Error())
		return
	}

	if _, err := h.chat.PostMessage(ctx, sessionID, model.RoleUser, req.Content); err != nil {
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to store message: "+err.Error())
		return
	}

	reply, format := a2a.Respond(req.Content)
	msg, err := h.chat.PostMessage(ctx, sessionID, model.RoleAgent, reply)
	if err != nil {
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to store reply: "+err.Error())
		return
	}

	c.JSON(http.StatusOK, a2a.MessageResponse{
		MessageID: msg.ID,
		Content:   reply,
		Format:    format,
		Timestamp: msg.Timestamp.Format(time.RFC3339),
		Metadata: map[string]interface{}{
			"session_id": sessionID,
			"agent_id":   h.identity.ID,
			"agent_name": h.identity.Name,
		},
	})
}

// resolveSession returns an existing session id, or creates a session for the
// peer agent. A caller-supplied id is honored so the peer can keep context
// across calls.
func (h *A2AHandler) resolveSession(c *gin.Context, sessionID string) (string, error) {
	ctx := c.Request.Context()

	if sessionID != "" {
		exists, err := h.sessions.Exists(ctx, sessionID)
		if err != nil {
			return "", err
		}
		if exists {
			return sessionID, nil
		}
	} else {
		sessionID = uuid.New().String()
	}

	now := time.Now().UTC()
	session := &model.Session{
		ID:        sessionID,
		UserID:    "a2a-peer",
		AgentID:   h.identity.ID,
		Title:     "A2A conversation",
		CreatedAt: now,
		UpdatedAt: now,
		IsActive:  true,
	}
	if err := h.sessions.Create(ctx, session); err != nil {
		return "", err
	}
	return sessionID, nil
}

// Health handles GET /api/v1/a2a/health - reports protocol-level liveness.
func (h *A2AHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":          "ok",
		"protocol":        "A2A",
		"version":         a2a.ProtocolVersion,
		"agent_id":        h.identity.ID,
		"active_sessions": h.chat.ActiveSessions(),
	})
}

// RegisterRoutes registers the A2A handler routes on a Gin router group.
func (h *A2AHandler) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group("/a2a")
	{
		group.GET("/agent-card", h.GetAgentCard)
		group.POST("/message", h.SendMessage)
		group.GET("/health", h.Health)
	}
}
