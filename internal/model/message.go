package model

import "time"

// MessageRole identifies the author of a message.
type MessageRole string

const (
	RoleUser   MessageRole = "user"
	RoleAgent  MessageRole = "agent"
	RoleSystem MessageRole = "system"
)

// Valid reports whether the role is one of the recognized roles.
func (r MessageRole) Valid() bool {
	switch r {
	case RoleUser, RoleAgent, RoleSystem:
		return true
	}
	return false
}

// MessageStatus tracks delivery state of a message.
type MessageStatus string

const (
	MessageStatusSent      MessageStatus = "sent"
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusFailed    MessageStatus = "failed"
)

// Message is one entry in a session's append-only message log. Messages are
// immutable after creation except for Status. Within a session, id order
// equals the order of acceptance into the log.
type Message struct {
	ID        string        `json:"id"`
	SessionID string        `json:"session_id"`
	Role      MessageRole   `json:"role"`
	Content   string        `json:"content"`
	AgentID   *string       `json:"agent_id,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
	Status    MessageStatus `json:"status"`
}
