package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ai-chat-a2a/backend/internal/model"
	"github.com/ai-chat-a2a/backend/internal/repository"
	"github.com/ai-chat-a2a/backend/internal/ws"
)

// WebSocketHandler handles WebSocket attach requests for chat sessions.
type WebSocketHandler struct {
	sessions  *repository.SessionRepository
	wsHandler *ws.Handler
}

// NewWebSocketHandler creates a new WebSocketHandler.
func NewWebSocketHandler(sessions *repository.SessionRepository, wsHandler *ws.Handler) *WebSocketHandler {
	return &WebSocketHandler{
		sessions:  sessions,
		wsHandler: wsHandler,
	}
}

// Attach handles GET /api/v1/sessions/:id/ws - upgrades to WebSocket and
// attaches the connection to the session. The session must exist; this core
// trusts the management API for any further business rules.
func (h *WebSocketHandler) Attach(c *gin.Context) {
	sessionID := c.Param("id")

	sess, err := h.sessions.GetByID(c.Request.Context(), sessionID)
	if err != nil {
		if errors.Is(err, model.ErrSessionNotFound) {
			sendError(c, http.StatusNotFound, "SESSION_NOT_FOUND", "Session "+sessionID+" not found")
			return
		}
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to get session: "+err.Error())
		return
	}

	if !sess.IsActive {
		sendError(c, http.StatusBadRequest, "SESSION_INACTIVE", "Session is not active")
		return
	}

	if err := h.wsHandler.HandleConnection(c.Writer, c.Request, sessionID); err != nil {
		// Upgrade failures write their own response.
		return
	}
}

// RegisterRoutes registers the WebSocket handler routes on a Gin router group.
func (h *WebSocketHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/sessions/:id/ws", h.Attach)
}
