package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ai-chat-a2a/backend/internal/model"
)

func testAgent(endpoint, token string) *model.Agent {
	return &model.Agent{
		ID:          "agent-1",
		Name:        "assistant",
		EndpointURL: endpoint,
		AuthToken:   token,
	}
}

func TestClient_Invoke(t *testing.T) {
	t.Run("sends the chat request and returns the reply", func(t *testing.T) {
		var gotPath, gotAuth string
		var gotBody map[string]interface{}

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotAuth = r.Header.Get("Authorization")
			json.NewDecoder(r.Body).Decode(&gotBody)
			json.NewEncoder(w).Encode(map[string]string{"content": "hello back"})
		}))
		defer srv.Close()

		client := NewClient(5*time.Second, zerolog.Nop())
		reply, err := client.Invoke(context.Background(), testAgent(srv.URL, "secret"), "session-1", "hello")
		if err != nil {
			t.Fatalf("invoke failed: %v", err)
		}

		if reply != "hello back" {
			t.Errorf("reply = %q, want %q", reply, "hello back")
		}
		if gotPath != "/api/v1/chat" {
			t.Errorf("path = %s, want /api/v1/chat", gotPath)
		}
		if gotAuth != "Bearer secret" {
			t.Errorf("authorization = %q, want bearer token", gotAuth)
		}
		if gotBody["message"] != "hello" || gotBody["session_id"] != "session-1" {
			t.Errorf("unexpected request body: %v", gotBody)
		}
		if _, ok := gotBody["timestamp"]; !ok {
			t.Error("request should carry a timestamp")
		}
	})

	t.Run("falls back to the message field", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]string{"message": "alt reply"})
		}))
		defer srv.Close()

		client := NewClient(5*time.Second, zerolog.Nop())
		reply, err := client.Invoke(context.Background(), testAgent(srv.URL, ""), "session-1", "hello")
		if err != nil {
			t.Fatalf("invoke failed: %v", err)
		}
		if reply != "alt reply" {
			t.Errorf("reply = %q, want %q", reply, "alt reply")
		}
	})

	t.Run("non-2xx is an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		client := NewClient(5*time.Second, zerolog.Nop())
		if _, err := client.Invoke(context.Background(), testAgent(srv.URL, ""), "session-1", "hello"); err == nil {
			t.Error("expected an error for HTTP 502")
		}
	})

	t.Run("unreachable endpoint is an error", func(t *testing.T) {
		client := NewClient(time.Second, zerolog.Nop())
		if _, err := client.Invoke(context.Background(), testAgent("http://127.0.0.1:1", ""), "session-1", "hello"); err == nil {
			t.Error("expected an error for an unreachable endpoint")
		}
	})
}

func TestClient_ValidateConnection(t *testing.T) {
	t.Run("reachable agent card", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/v1/agent/card" {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			json.NewEncoder(w).Encode(map[string]string{"name": "assistant", "version": "1.0"})
		}))
		defer srv.Close()

		client := NewClient(5*time.Second, zerolog.Nop())
		result := client.ValidateConnection(context.Background(), srv.URL, "")

		if !result.Valid {
			t.Fatalf("expected valid result, got: %s", result.Message)
		}
		if result.AgentCard["name"] != "assistant" {
			t.Errorf("agent card = %v", result.AgentCard)
		}
	})

	t.Run("failed probe is a result, not an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		client := NewClient(5*time.Second, zerolog.Nop())
		result := client.ValidateConnection(context.Background(), srv.URL, "")

		if result.Valid {
			t.Error("expected invalid result for HTTP 500")
		}
		if result.Message == "" {
			t.Error("result should explain the failure")
		}
	})

	t.Run("unreachable endpoint", func(t *testing.T) {
		client := NewClient(time.Second, zerolog.Nop())
		result := client.ValidateConnection(context.Background(), "http://127.0.0.1:1", "")
		if result.Valid {
			t.Error("expected invalid result for an unreachable endpoint")
		}
	})
}
