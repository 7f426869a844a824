// Package repository provides data access for sessions, messages and agents.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ai-chat-a2a/backend/internal/model"
)

// SessionRepository provides data access for chat sessions.
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts a new session into the database.
func (r *SessionRepository) Create(ctx context.Context, session *model.Session) error {
	query := `
		INSERT INTO sessions (id, user_id, agent_id, title, created_at, updated_at, last_message_at, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		session.ID,
		session.UserID,
		session.AgentID,
		nullableString(session.Title),
		session.CreatedAt,
		session.UpdatedAt,
		session.LastMessageAt,
		session.IsActive,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	return nil
}

// GetByID retrieves a session by its ID.
func (r *SessionRepository) GetByID(ctx context.Context, id string) (*model.Session, error) {
	query := `
		SELECT id, user_id, agent_id, title, created_at, updated_at, last_message_at, is_active
		FROM sessions
		WHERE id = ?
	`

	session, err := scanSession(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, model.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return session, nil
}

// List retrieves sessions, optionally filtered by user and/or agent, most
// recently updated first.
func (r *SessionRepository) List(ctx context.Context, userID, agentID string) ([]*model.Session, error) {
	query := `
		SELECT id, user_id, agent_id, title, created_at, updated_at, last_message_at, is_active
		FROM sessions
		WHERE (? = '' OR user_id = ?) AND (? = '' OR agent_id = ?)
		ORDER BY updated_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, userID, userID, agentID, agentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*model.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}

	return sessions, nil
}

// Update applies a partial update to a session and stamps updated_at.
func (r *SessionRepository) Update(ctx context.Context, id string, req *model.UpdateSessionRequest) (*model.Session, error) {
	session, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		session.Title = *req.Title
	}
	if req.IsActive != nil {
		session.IsActive = *req.IsActive
	}
	session.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE sessions
		SET title = ?, is_active = ?, updated_at = ?
		WHERE id = ?
	`

	if _, err := r.db.ExecContext(ctx, query, nullableString(session.Title), session.IsActive, session.UpdatedAt, id); err != nil {
		return nil, fmt.Errorf("failed to update session: %w", err)
	}

	return session, nil
}

// Delete removes a session and, via foreign key cascade, its messages.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return model.ErrSessionNotFound
	}

	return nil
}

// Exists checks if a session exists.
func (r *SessionRepository) Exists(ctx context.Context, id string) (bool, error) {
	var exists int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM sessions WHERE id = ? LIMIT 1`, id).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check session existence: %w", err)
	}

	return true, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row rowScanner) (*model.Session, error) {
	session := &model.Session{}
	var title sql.NullString
	var lastMessageAt sql.NullTime

	err := row.Scan(
		&session.ID,
		&session.UserID,
		&session.AgentID,
		&title,
		&session.CreatedAt,
		&session.UpdatedAt,
		&lastMessageAt,
		&session.IsActive,
	)
	if err != nil {
		return nil, err
	}

	if title.Valid {
		session.Title = title.String
	}
	if lastMessageAt.Valid {
		t := lastMessageAt.Time
		session.LastMessageAt = &t
	}

	return session, nil
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
