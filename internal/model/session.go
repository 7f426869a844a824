package model

import (
	"time"
)

// Session represents a chat conversation between a user and an agent.
// A session is independent of any single WebSocket connection; it may have
// zero, one, or many connections attached at a time.
type Session struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	AgentID       string     `json:"agent_id"`
	Title         string     `json:"title,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
	IsActive      bool       `json:"is_active"`
}

// CreateSessionRequest represents a request to create a new chat session.
type CreateSessionRequest struct {
	AgentID string `json:"agent_id" binding:"required"`
	UserID  string `json:"user_id" binding:"required"`
	Title   string `json:"title"`
}

// Validate validates the create session request.
func (r *CreateSessionRequest) Validate() error {
	if r.AgentID == "" {
		return ErrAgentIDRequired
	}
	if r.UserID == "" {
		return ErrUserIDRequired
	}
	if len(r.Title) > 200 {
		return ErrTitleTooLong
	}
	return nil
}

// UpdateSessionRequest represents a partial update of a session.
// Nil fields are left unchanged.
type UpdateSessionRequest struct {
	Title    *string `json:"title"`
	IsActive *bool   `json:"is_active"`
}
