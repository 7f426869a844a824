package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ai-chat-a2a/backend/internal/model"
)

func TestSessionRepository_CreateAndGet(t *testing.T) {
	database, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewSessionRepository(database)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	session := &model.Session{
		ID:        uuid.New().String(),
		UserID:    "user-1",
		AgentID:   "agent-1",
		Title:     "First conversation",
		CreatedAt: now,
		UpdatedAt: now,
		IsActive:  true,
	}

	if err := repo.Create(ctx, session); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	got, err := repo.GetByID(ctx, session.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.UserID != "user-1" || got.AgentID != "agent-1" {
		t.Errorf("unexpected session: %+v", got)
	}
	if got.Title != "First conversation" {
		t.Errorf("expected title to survive, got %q", got.Title)
	}
	if got.LastMessageAt != nil {
		t.Error("fresh session should have no last_message_at")
	}
	if !got.IsActive {
		t.Error("session should be active")
	}
}

func TestSessionRepository_GetNotFound(t *testing.T) {
	database, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewSessionRepository(database)

	if _, err := repo.GetByID(context.Background(), "no-such-session"); err != model.ErrSessionNotFound {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestSessionRepository_ListFilters(t *testing.T) {
	database, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewSessionRepository(database)
	ctx := context.Background()

	mustCreateSession(t, database, "alice", "agent-1")
	mustCreateSession(t, database, "alice", "agent-2")
	mustCreateSession(t, database, "bob", "agent-1")

	t.Run("no filter returns all", func(t *testing.T) {
		sessions, err := repo.List(ctx, "", "")
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if len(sessions) != 3 {
			t.Errorf("expected 3 sessions, got %d", len(sessions))
		}
	})

	t.Run("filter by user", func(t *testing.T) {
		sessions, err := repo.List(ctx, "alice", "")
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if len(sessions) != 2 {
			t.Errorf("expected 2 sessions, got %d", len(sessions))
		}
		for _, s := range sessions {
			if s.UserID != "alice" {
				t.Errorf("unexpected user %s", s.UserID)
			}
		}
	})

	t.Run("filter by user and agent", func(t *testing.T) {
		sessions, err := repo.List(ctx, "alice", "agent-2")
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if len(sessions) != 1 {
			t.Fatalf("expected 1 session, got %d", len(sessions))
		}
		if sessions[0].AgentID != "agent-2" {
			t.Errorf("unexpected agent %s", sessions[0].AgentID)
		}
	})
}

func TestSessionRepository_Update(t *testing.T) {
	database, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewSessionRepository(database)
	ctx := context.Background()
	session := mustCreateSession(t, database, "user-1", "agent-1")

	title := "Renamed"
	inactive := false
	updated, err := repo.Update(ctx, session.ID, &model.UpdateSessionRequest{
		Title:    &title,
		IsActive: &inactive,
	})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.Title != "Renamed" {
		t.Errorf("expected renamed title, got %q", updated.Title)
	}
	if updated.IsActive {
		t.Error("session should be inactive")
	}

	// Partial update leaves the other field alone.
	newTitle := "Renamed again"
	updated, err = repo.Update(ctx, session.ID, &model.UpdateSessionRequest{Title: &newTitle})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.IsActive {
		t.Error("is_active should be untouched by a title-only update")
	}

	if _, err := repo.Update(ctx, "no-such-session", &model.UpdateSessionRequest{Title: &title}); err != model.ErrSessionNotFound {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestSessionRepository_DeleteAndExists(t *testing.T) {
	database, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewSessionRepository(database)
	ctx := context.Background()
	session := mustCreateSession(t, database, "user-1", "agent-1")

	exists, err := repo.Exists(ctx, session.ID)
	if err != nil {
		t.Fatalf("exists failed: %v", err)
	}
	if !exists {
		t.Error("created session should exist")
	}

	if err := repo.Delete(ctx, session.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	exists, err = repo.Exists(ctx, session.ID)
	if err != nil {
		t.Fatalf("exists failed: %v", err)
	}
	if exists {
		t.Error("deleted session should not exist")
	}

	if err := repo.Delete(ctx, session.ID); err != model.ErrSessionNotFound {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}
