package a2a

import (
	"strings"
	"testing"
)

func TestMessageRequest_Validate(t *testing.T) {
	t.Run("empty content is rejected", func(t *testing.T) {
		req := &MessageRequest{Content: "   "}
		if err := req.Validate(); err != ErrEmptyContent {
			t.Errorf("expected ErrEmptyContent, got %v", err)
		}
	})

	t.Run("format defaults to plain", func(t *testing.T) {
		req := &MessageRequest{Content: "hello"}
		if err := req.Validate(); err != nil {
			t.Fatalf("validate failed: %v", err)
		}
		if req.Format != FormatPlain {
			t.Errorf("format = %s, want %s", req.Format, FormatPlain)
		}
	})

	t.Run("unknown format is rejected", func(t *testing.T) {
		req := &MessageRequest{Content: "hello", Format: "binary"}
		if err := req.Validate(); err != ErrInvalidFormat {
			t.Errorf("expected ErrInvalidFormat, got %v", err)
		}
	})

	t.Run("all recognized formats pass", func(t *testing.T) {
		for _, f := range []string{FormatPlain, FormatMarkdown, FormatCode} {
			req := &MessageRequest{Content: "hello", Format: f}
			if err := req.Validate(); err != nil {
				t.Errorf("format %s should validate, got %v", f, err)
			}
		}
	})
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		content string
		want    string
	}{
		{"plain text reply", FormatPlain},
		{"```go\nfunc main() {}\n```", FormatCode},
		{"**bold** statement", FormatMarkdown},
		{"## heading", FormatMarkdown},
		{"see [docs](https://example.com)", FormatMarkdown},
	}
	for _, tt := range tests {
		if got := DetectFormat(tt.content); got != tt.want {
			t.Errorf("DetectFormat(%q) = %s, want %s", tt.content, got, tt.want)
		}
	}
}

func TestRespond(t *testing.T) {
	t.Run("greeting echoes the message", func(t *testing.T) {
		reply, format := Respond("Hello there")
		if !strings.Contains(reply, "Hello there") {
			t.Errorf("greeting reply should quote the message, got %q", reply)
		}
		if format != FormatPlain {
			t.Errorf("format = %s, want %s", format, FormatPlain)
		}
	})

	t.Run("capability question gets a markdown answer", func(t *testing.T) {
		_, format := Respond("what can you do?")
		if format != FormatMarkdown {
			t.Errorf("format = %s, want %s", format, FormatMarkdown)
		}
	})

	t.Run("anything else is echoed", func(t *testing.T) {
		reply, _ := Respond("the weather is nice")
		if !strings.Contains(reply, "the weather is nice") {
			t.Errorf("echo reply should quote the message, got %q", reply)
		}
	})
}

func TestIdentityCard(t *testing.T) {
	card := Identity{ID: "agent-1", Name: "Test Agent"}.Card()

	if card.ID != "agent-1" || card.Name != "Test Agent" {
		t.Errorf("unexpected identity on card: %+v", card)
	}
	if card.ProtocolVersion != ProtocolVersion {
		t.Errorf("protocol_version = %s, want %s", card.ProtocolVersion, ProtocolVersion)
	}
	if len(card.Capabilities) == 0 {
		t.Error("card should advertise capabilities")
	}
	if card.CreatedAt == "" {
		t.Error("card should carry a timestamp")
	}

	endpoints, ok := card.Metadata["endpoints"].(map[string]string)
	if !ok {
		t.Fatal("card metadata should list endpoints")
	}
	for _, key := range []string{"agent_card", "message", "health"} {
		if endpoints[key] == "" {
			t.Errorf("endpoint %s missing from card", key)
		}
	}
}
