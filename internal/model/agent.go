package model

import "time"

// Agent is a configured AI agent endpoint that sessions converse with.
type Agent struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	EndpointURL  string     `json:"endpoint_url"`
	AuthToken    string     `json:"auth_token,omitempty"`
	Capabilities []string   `json:"capabilities"`
	IsActive     bool       `json:"is_active"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	LastUsedAt   *time.Time `json:"last_used_at,omitempty"`
}

// CreateAgentRequest represents a request to register a new agent.
type CreateAgentRequest struct {
	Name         string   `json:"name" binding:"required"`
	EndpointURL  string   `json:"endpoint_url" binding:"required"`
	AuthToken    string   `json:"auth_token"`
	Capabilities []string `json:"capabilities"`
	IsActive     *bool    `json:"is_active"`
}

// UpdateAgentRequest represents a partial update of an agent configuration.
type UpdateAgentRequest struct {
	Name         *string  `json:"name"`
	EndpointURL  *string  `json:"endpoint_url"`
	AuthToken    *string  `json:"auth_token"`
	Capabilities []string `json:"capabilities"`
	IsActive     *bool    `json:"is_active"`
}
