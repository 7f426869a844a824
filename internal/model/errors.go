package model

import "errors"

var (
	// ErrSessionNotFound is returned when a session is not found.
	ErrSessionNotFound = errors.New("session not found")

	// ErrMessageNotFound is returned when a message is not found.
	ErrMessageNotFound = errors.New("message not found")

	// ErrAgentNotFound is returned when an agent configuration is not found.
	ErrAgentNotFound = errors.New("agent not found")

	// ErrAgentNameTaken is returned when an agent name is already in use.
	ErrAgentNameTaken = errors.New("agent name already exists")

	// ErrAgentIDRequired is returned when a session creation request is
	// missing the agent id.
	ErrAgentIDRequired = errors.New("agent_id is required")

	// ErrUserIDRequired is returned when a session creation request is
	// missing the user id.
	ErrUserIDRequired = errors.New("user_id is required")

	// ErrTitleTooLong is returned when a session title exceeds 200 characters.
	ErrTitleTooLong = errors.New("title must be at most 200 characters")

	// ErrEmptyContent is returned when a message has empty or whitespace-only
	// content.
	ErrEmptyContent = errors.New("message content is empty")

	// ErrInvalidRole is returned when a message role is not user, agent or
	// system.
	ErrInvalidRole = errors.New("invalid message role")
)
