package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ai-chat-a2a/backend/internal/chat"
	"github.com/ai-chat-a2a/backend/internal/model"
	"github.com/ai-chat-a2a/backend/internal/repository"
)

// SessionHandler handles HTTP requests for session and message management.
type SessionHandler struct {
	sessions *repository.SessionRepository
	messages *repository.MessageRepository
	chat     *chat.Service
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessions *repository.SessionRepository, messages *repository.MessageRepository, chatService *chat.Service) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		messages: messages,
		chat:     chatService,
	}
}

// SessionResponse represents a session in API responses, augmented with the
// number of live connections attached to it.
type SessionResponse struct {
	ID            string `json:"id"`
	UserID        string `json:"user_id"`
	AgentID       string `json:"agent_id"`
	Title         string `json:"title,omitempty"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
	LastMessageAt string `json:"last_message_at,omitempty"`
	IsActive      bool   `json:"is_active"`
	Connections   int    `json:"connections"`
}

func (h *SessionHandler) toSessionResponse(s *model.Session) *SessionResponse {
	resp := &SessionResponse{
		ID:          s.ID,
		UserID:      s.UserID,
		AgentID:     s.AgentID,
		Title:       s.Title,
		CreatedAt:   s.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   s.UpdatedAt.Format(time.RFC3339),
		IsActive:    s.IsActive,
		Connections: h.chat.ConnectionCount(s.ID),
	}
	if s.LastMessageAt != nil {
		resp.LastMessageAt = s.LastMessageAt.Format(time.RFC3339)
	}
	return resp
}

// Create handles POST /api/v1/sessions - creates a new chat session.
func (h *SessionHandler) Create(c *gin.Context) {
	var req model.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body: "+err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	now := time.Now().UTC()
	session := &model.Session{
		ID:        uuid.New().String(),
		UserID:    req.UserID,
		AgentID:   req.AgentID,
		Title:     req.Title,
		CreatedAt: now,
		UpdatedAt: now,
		IsActive:  true,
	}

	if err := h.sessions.Create(c.Request.Context(), session); err != nil {
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create session: "+err.Error())
		return
	}

	c.JSON(http.StatusCreated, h.toSessionResponse(session))
}

// List handles GET /api/v1/sessions - lists sessions, optionally filtered by
// user_id and/or agent_id query parameters.
func (h *SessionHandler) List(c *gin.Context) {
	userID := c.Query("user_id")
	agentID := c.Query("agent_id")

	sessions, err := h.sessions.List(c.Request.Context(), userID, agentID)
	if err != nil {
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list sessions: "+err.Error())
		return
	}

	response := make([]*SessionResponse, len(sessions))
	for i, sess := range sessions {
		response[i] = h.toSessionResponse(sess)
	}

	c.JSON(http.StatusOK, response)
}

// Get handles GET /api/v1/sessions/:id - gets a specific session.
func (h *SessionHandler) Get(c *gin.Context) {
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

	c.JSON(http.StatusOK, h.toSessionResponse(sess))
}

// Update handles PUT /api/v1/sessions/:id - updates title and active flag.
func (h *SessionHandler) Update(c *gin.Context) {
	sessionID := c.Param("id")

	var req model.UpdateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body: "+err.Error())
		return
	}
	if req.Title != nil && len(*req.Title) > 200 {
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", model.ErrTitleTooLong.Error())
		return
	}

	sess, err := h.sessions.Update(c.Request.Context(), sessionID, &req)
	if err != nil {
		if errors.Is(err, model.ErrSessionNotFound) {
			sendError(c, http.StatusNotFound, "SESSION_NOT_FOUND", "Session "+sessionID+" not found")
			return
		}
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update session: "+err.Error())
		return
	}

	c.JSON(http.StatusOK, h.toSessionResponse(sess))
}

// Delete handles DELETE /api/v1/sessions/:id - disconnects any attached
// connections and removes the session with its message log.
func (h *SessionHandler) Delete(c *gin.Context) {
	sessionID := c.Param("id")

	if err := h.chat.DeleteSession(c.Request.Context(), sessionID); err != nil {
		if errors.Is(err, model.ErrSessionNotFound) {
			sendError(c, http.StatusNotFound, "SESSION_NOT_FOUND", "Session "+sessionID+" not found")
			return
		}
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete session: "+err.Error())
		return
	}

	c.Status(http.StatusNoContent)
}

// MessageRequest represents the body of the REST message fallback endpoint.
type MessageRequest struct {
	Content string `json:"content" binding:"required"`
	Role    string `json:"role"`
}

// GetMessages handles GET /api/v1/sessions/:id/messages - paginated message
// retrieval in append order.
func (h *SessionHandler) GetMessages(c *gin.Context) {
	sessionID := c.Param("id")

	exists, err := h.sessions.Exists(c.Request.Context(), sessionID)
	if err != nil {
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to check session: "+err.Error())
		return
	}
	if !exists {
		sendError(c, http.StatusNotFound, "SESSION_NOT_FOUND", "Session "+sessionID+" not found")
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	messages, err := h.messages.List(c.Request.Context(), sessionID, limit, offset)
	if err != nil {
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list messages: "+err.Error())
		return
	}
	if messages == nil {
		messages = []*model.Message{}
	}

	c.JSON(http.StatusOK, messages)
}

// PostMessage handles POST /api/v1/sessions/:id/messages - REST fallback for
// sending a message; the message is also fanned out over WebSocket.
func (h *SessionHandler) PostMessage(c *gin.Context) {
	sessionID := c.Param("id")

	var req MessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body: "+err.Error())
		return
	}

	role := model.MessageRole(req.Role)
	if req.Role == "" {
		role = model.RoleUser
	}
	if !role.Valid() {
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", model.ErrInvalidRole.Error())
		return
	}

	msg, err := h.chat.PostMessage(c.Request.Context(), sessionID, role, req.Content)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrSessionNotFound):
			sendError(c, http.StatusNotFound, "SESSION_NOT_FOUND", "Session "+sessionID+" not found")
		case errors.Is(err, model.ErrEmptyContent):
			sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		default:
			sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to send message: "+err.Error())
		}
		return
	}

	c.JSON(http.StatusCreated, msg)
}

// RegisterRoutes registers the session handler routes on a Gin router group.
func (h *SessionHandler) RegisterRoutes(rg *gin.RouterGroup) {
	sessions := rg.Group("/sessions")
	{
		sessions.POST("", h.Create)
		sessions.GET("", h.List)
		sessions.GET("/:id", h.Get)
		sessions.PUT("/:id", h.Update)
		sessions.DELETE("/:id", h.Delete)
		sessions.GET("/:id/messages", h.GetMessages)
		sessions.POST("/:id/messages", h.PostMessage)
	}
}
