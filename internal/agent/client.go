// Package agent implements the HTTP client for external A2A chat agents.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ai-chat-a2a/backend/internal/model"
)

// Client speaks the A2A chat protocol to configured agent endpoints. It
// performs no retries; timeouts and errors are returned to the caller as
// plain failures.
type Client struct {
	httpClient *http.Client
	log        zerolog.Logger
}

// NewClient creates an agent client with the given per-request timeout.
func NewClient(timeout time.Duration, log zerolog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		log:        log.With().Str("component", "agent").Logger(),
	}
}

type chatRequest struct {
	Message   string                 `json:"message"`
	SessionID string                 `json:"session_id"`
	Context   map[string]interface{} `json:"context"`
	Timestamp string                 `json:"timestamp"`
}

type chatResponse struct {
	Content string `json:"content"`
	Message string `json:"message"`
}

// Invoke sends one user message to the agent's chat endpoint and returns the
// reply text.
func (c *Client) Invoke(ctx context.Context, agent *model.Agent, sessionID, content string) (string, error) {
	payload := chatRequest{
		Message:   content,
		SessionID: sessionID,
		Context:   map[string]interface{}{},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode chat request: %w", err)
	}

	url := strings.TrimRight(agent.EndpointURL, "/") + "/api/v1/chat"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if agent.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+agent.AuthToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to reach agent: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("agent returned HTTP %d", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode agent response: %w", err)
	}

	// Some agents reply with {"content": ...}, others with {"message": ...}.
	if parsed.Content != "" {
		return parsed.Content, nil
	}
	return parsed.Message, nil
}

// ValidationResult reports the outcome of probing an agent endpoint.
type ValidationResult struct {
	Valid     bool                   `json:"valid"`
	Message   string                 `json:"message"`
	LatencyMS int64                  `json:"latency,omitempty"`
	AgentCard map[string]interface{} `json:"agent_card,omitempty"`
}

// ValidateConnection probes the agent card endpoint and reports reachability
// and latency. A failed probe is a result, not an error.
func (c *Client) ValidateConnection(ctx context.Context, endpointURL, authToken string) *ValidationResult {
	url := strings.TrimRight(endpointURL, "/") + "/api/v1/agent/card"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &ValidationResult{Valid: false, Message: fmt.Sprintf("invalid endpoint: %v", err)}
	}
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return &ValidationResult{Valid: false, Message: fmt.Sprintf("connection failed: %v", err), LatencyMS: latency}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &ValidationResult{
			Valid:     false,
			Message:   fmt.Sprintf("HTTP %d from agent card endpoint", resp.StatusCode),
			LatencyMS: latency,
		}
	}

	var card map[string]interface{}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&card); err != nil {
		return &ValidationResult{
			Valid:     false,
			Message:   "agent card is not valid JSON",
			LatencyMS: latency,
		}
	}

	return &ValidationResult{
		Valid:     true,
		Message:   "connection successful",
		LatencyMS: latency,
		AgentCard: card,
	}
}
