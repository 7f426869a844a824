package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ai-chat-a2a/backend/internal/model"
)

// AgentRepository provides data access for agent configurations.
type AgentRepository struct {
	db *sql.DB
}

// NewAgentRepository creates a new AgentRepository.
func NewAgentRepository(db *sql.DB) *AgentRepository {
	return &AgentRepository{db: db}
}

// Create inserts a new agent configuration. Names are unique; a duplicate
// name fails with ErrAgentNameTaken.
func (r *AgentRepository) Create(ctx context.Context, agent *model.Agent) error {
	capabilities, err := capabilitiesToJSON(agent.Capabilities)
	if err != nil {
		return fmt.Errorf("failed to serialize capabilities: %w", err)
	}

	query := `
		INSERT INTO agents (id, name, endpoint_url, auth_token, capabilities, is_active, created_at, updated_at, last_used_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, query,
		agent.ID,
		agent.Name,
		agent.EndpointURL,
		nullableString(agent.AuthToken),
		capabilities,
		agent.IsActive,
		agent.CreatedAt,
		agent.UpdatedAt,
		agent.LastUsedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return model.ErrAgentNameTaken
		}
		return fmt.Errorf("failed to create agent: %w", err)
	}

	return nil
}

// GetByID retrieves an agent configuration by its ID.
func (r *AgentRepository) GetByID(ctx context.Context, id string) (*model.Agent, error) {
	query := `
		SELECT id, name, endpoint_url, auth_token, capabilities, is_active, created_at, updated_at, last_used_at
		FROM agents
		WHERE id = ?
	`

	agent, err := scanAgent(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, model.ErrAgentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get agent: %w", err)
	}

	return agent, nil
}

// List retrieves all agent configurations.
func (r *AgentRepository) List(ctx context.Context) ([]*model.Agent, error) {
	query := `
		SELECT id, name, endpoint_url, auth_token, capabilities, is_active, created_at, updated_at, last_used_at
		FROM agents
		ORDER BY created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}
	defer rows.Close()

	var agents []*model.Agent
	for rows.Next() {
		agent, err := scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan agent: %w", err)
		}
		agents = append(agents, agent)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating agents: %w", err)
	}

	return agents, nil
}

// Update applies a partial update to an agent configuration.
func (r *AgentRepository) Update(ctx context.Context, id string, req *model.UpdateAgentRequest) (*model.Agent, error) {
	agent, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		agent.Name = *req.Name
	}
	if req.EndpointURL != nil {
		agent.EndpointURL = *req.EndpointURL
	}
	if req.AuthToken != nil {
		agent.AuthToken = *req.AuthToken
	}
	if req.Capabilities != nil {
		agent.Capabilities = req.Capabilities
	}
	if req.IsActive != nil {
		agent.IsActive = *req.IsActive
	}
	agent.UpdatedAt = time.Now().UTC()

	capabilities, err := capabilitiesToJSON(agent.Capabilities)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize capabilities: %w", err)
	}

	query := `
		UPDATE agents
		SET name = ?, endpoint_url = ?, auth_token = ?, capabilities = ?, is_active = ?, updated_at = ?
		WHERE id = ?
	`

	if _, err := r.db.ExecContext(ctx, query,
		agent.Name, agent.EndpointURL, nullableString(agent.AuthToken), capabilities, agent.IsActive, agent.UpdatedAt, id,
	); err != nil {
		if isUniqueViolation(err) {
			return nil, model.ErrAgentNameTaken
		}
		return nil, fmt.Errorf("failed to update agent: %w", err)
	}

	return agent, nil
}

// MarkUsed stamps last_used_at for an agent.
func (r *AgentRepository) MarkUsed(ctx context.Context, id string, at time.Time) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE agents SET last_used_at = ? WHERE id = ?`, at, id); err != nil {
		return fmt.Errorf("failed to mark agent used: %w", err)
	}
	return nil
}

// Delete removes an agent configuration.
func (r *AgentRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM agents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete agent: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return model.ErrAgentNotFound
	}

	return nil
}

func scanAgent(row rowScanner) (*model.Agent, error) {
	agent := &model.Agent{}
	var authToken sql.NullString
	var capabilities sql.NullString
	var lastUsedAt sql.NullTime

	err := row.Scan(
		&agent.ID,
		&agent.Name,
		&agent.EndpointURL,
		&authToken,
		&capabilities,
		&agent.IsActive,
		&agent.CreatedAt,
		&agent.UpdatedAt,
		&lastUsedAt,
	)
	if err != nil {
		return nil, err
	}

	if authToken.Valid {
		agent.AuthToken = authToken.String
	}
	if capabilities.Valid && capabilities.String != "" {
		if err := json.Unmarshal([]byte(capabilities.String), &agent.Capabilities); err != nil {
			return nil, fmt.Errorf("failed to parse capabilities: %w", err)
		}
	}
	if lastUsedAt.Valid {
		t := lastUsedAt.Time
		agent.LastUsedAt = &t
	}

	return agent, nil
}

func capabilitiesToJSON(capabilities []string) (string, error) {
	if capabilities == nil {
		capabilities = []string{}
	}
	data, err := json.Marshal(capabilities)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isForeignKeyViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
