// Package a2a implements the inbound half of the agent-to-agent protocol:
// the agent card this backend publishes, inbound message validation and the
// built-in responder used when no upstream model is attached.
package a2a

import (
	"errors"
	"strings"
	"time"
)

// ProtocolVersion is the A2A protocol version this backend speaks.
const ProtocolVersion = "1.0.0"

// Message formats recognized on the inbound surface.
const (
	FormatPlain    = "plain"
	FormatMarkdown = "markdown"
	FormatCode     = "code"
)

var (
	// ErrEmptyContent is returned for an inbound message without content.
	ErrEmptyContent = errors.New("message content cannot be empty")

	// ErrInvalidFormat is returned for an unrecognized message format.
	ErrInvalidFormat = errors.New("invalid message format")
)

// ValidFormat reports whether f is a recognized message format.
func ValidFormat(f string) bool {
	switch f {
	case FormatPlain, FormatMarkdown, FormatCode:
		return true
	}
	return false
}

// Card is the agent card other agents fetch to discover this backend.
type Card struct {
	ID              string                 `json:"id"`
	Name            string                 `json:"name"`
	Description     string                 `json:"description"`
	Capabilities    []string               `json:"capabilities"`
	ProtocolVersion string                 `json:"protocol_version"`
	CreatedAt       string                 `json:"created_at"`
	Metadata        map[string]interface{} `json:"metadata"`
}

// MessageRequest is an inbound message from a peer agent.
type MessageRequest struct {
	Content   string                 `json:"content" binding:"required"`
	Format    string                 `json:"format"`
	SessionID string                 `json:"session_id"`
	Context   map[string]interface{} `json:"context"`
	Stream    bool                   `json:"stream"`
}

// Validate normalizes and checks an inbound message request. An empty format
// defaults to plain.
func (r *MessageRequest) Validate() error {
	if strings.TrimSpace(r.Content) == "" {
		return ErrEmptyContent
	}
	if r.Format == "" {
		r.Format = FormatPlain
	}
	if !ValidFormat(r.Format) {
		return ErrInvalidFormat
	}
	return nil
}

// MessageResponse is the reply returned to a peer agent.
type MessageResponse struct {
	MessageID string                 `json:"message_id"`
	Content   string                 `json:"content"`
	Format    string                 `json:"format"`
	Timestamp string                 `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Identity is the published identity of this backend on the A2A network.
type Identity struct {
	ID   string
	Name string
}

// Card builds the agent card for this identity.
func (id Identity) Card() *Card {
	return &Card{
		ID:   id.ID,
		Name: id.Name,
		Description: "AI chat backend with A2A protocol support. Accepts messages " +
			"from peer agents, maintains persistent sessions and fans replies out " +
			"to connected WebSocket clients.",
		Capabilities: []string{
			"chat",
			"websocket",
			"markdown",
			"code",
			"session-management",
			"typing-indicator",
			"message-history",
		},
		ProtocolVersion: ProtocolVersion,
		CreatedAt:       time.Now().UTC().Format(time.RFC3339),
		Metadata: map[string]interface{}{
			"endpoints": map[string]string{
				"agent_card": "/api/v1/a2a/agent-card",
				"message":    "/api/v1/a2a/message",
				"health":     "/api/v1/a2a/health",
			},
			"supported_formats": []string{FormatPlain, FormatMarkdown, FormatCode},
			"streaming":         false,
			"version":           ProtocolVersion,
		},
	}
}

// Respond produces the built-in reply for one inbound message and the format
// of that reply. It stands in for a model backend.
func Respond(content string) (reply, format string) {
	lower := strings.ToLower(strings.TrimSpace(content))

	switch {
	case containsAny(lower, "hello", "hi", "hey", "greetings"):
		reply = "Hello! I received your message: \"" + content + "\". How can I assist you today?"
	case strings.Contains(lower, "what can you do") || strings.Contains(lower, "capabilities"):
		reply = "I support **real-time chat** over WebSocket, **rich formatting** " +
			"(plain, markdown, code), **session management** with persistent " +
			"message history, and typing indicators. Ask me anything."
	default:
		reply = "I received your message: \"" + content + "\""
	}

	return reply, DetectFormat(reply)
}

// DetectFormat classifies reply content: fenced blocks are code, common
// markdown markers are markdown, anything else is plain.
func DetectFormat(content string) string {
	if strings.Contains(content, "```") {
		return FormatCode
	}
	for _, marker := range []string{"**", "##", "- ", "* ", "]("} {
		if strings.Contains(content, marker) {
			return FormatMarkdown
		}
	}
	return FormatPlain
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
