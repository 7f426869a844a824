package repository

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/ai-chat-a2a/backend/internal/model"
)

// MessageRepository provides access to the per-session append-only message
// log. Message ids are monotonic ULIDs issued under a lock, so within a
// session, id order equals the order messages were accepted into the log.
type MessageRepository struct {
	db *sql.DB

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// NewMessageRepository creates a new MessageRepository.
func NewMessageRepository(db *sql.DB) *MessageRepository {
	return &MessageRepository{
		db:      db,
		entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}
}

// nextID issues the next message id. The generator is serialized so that id
// order is acceptance order even under concurrent appends.
func (r *MessageRepository) nextID(at time.Time) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(at), r.entropy).String()
}

// Append adds a message to a session's log. It fails with ErrSessionNotFound
// if the session does not exist, stamps the timestamp, defaults status to
// sent, and bumps the session's last_message_at. The insert and the session
// touch commit together, so the log never gets ahead of last_message_at.
func (r *MessageRepository) Append(ctx context.Context, sessionID string, role model.MessageRole, content string, agentID *string) (*model.Message, error) {
	if !role.Valid() {
		return nil, model.ErrInvalidRole
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM sessions WHERE id = ? LIMIT 1`, sessionID).Scan(&exists)
	if err == sql.ErrNoRows {
		return nil, model.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check session: %w", err)
	}

	now := time.Now().UTC()
	msg := &model.Message{
		ID:        r.nextID(now),
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		AgentID:   agentID,
		Timestamp: now,
		Status:    model.MessageStatusSent,
	}

	query := `
		INSERT INTO messages (id, session_id, role, content, agent_id, timestamp, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	if _, err := tx.ExecContext(ctx, query,
		msg.ID, msg.SessionID, msg.Role, msg.Content, msg.AgentID, msg.Timestamp, msg.Status,
	); err != nil {
		if isForeignKeyViolation(err) {
			// The session was deleted between the check and the insert.
			return nil, model.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to append message: %w", err)
	}

	touchQuery := `UPDATE sessions SET last_message_at = ?, updated_at = ? WHERE id = ?`
	if _, err := tx.ExecContext(ctx, touchQuery, now, now, sessionID); err != nil {
		return nil, fmt.Errorf("failed to touch session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit message: %w", err)
	}
	return msg, nil
}

// List retrieves a page of a session's messages in append order.
func (r *MessageRepository) List(ctx context.Context, sessionID string, limit, offset int) ([]*model.Message, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT id, session_id, role, content, agent_id, timestamp, status
		FROM messages
		WHERE session_id = ?
		ORDER BY id ASC
		LIMIT ? OFFSET ?
	`

	rows, err := r.db.QueryContext(ctx, query, sessionID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var messages []*model.Message
	for rows.Next() {
		msg := &model.Message{}
		var agentID sql.NullString

		err := rows.Scan(
			&msg.ID,
			&msg.SessionID,
			&msg.Role,
			&msg.Content,
			&agentID,
			&msg.Timestamp,
			&msg.Status,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}

		if agentID.Valid {
			a := agentID.String
			msg.AgentID = &a
		}

		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}

	return messages, nil
}

// Count returns the number of messages in a session's log.
func (r *MessageRepository) Count(ctx context.Context, sessionID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages WHERE session_id = ?`, sessionID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}

	return count, nil
}

// UpdateStatus updates the delivery status of a message. Status is the only
// mutable field of a message.
func (r *MessageRepository) UpdateStatus(ctx context.Context, id string, status model.MessageStatus) error {
	result, err := r.db.ExecContext(ctx, `UPDATE messages SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("failed to update message status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return model.ErrMessageNotFound
	}

	return nil
}
