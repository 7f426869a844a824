package ws

import (
	"encoding/json"
	"errors"
	"time"
)

// EnvelopeType identifies the kind of wire envelope. The set is closed:
// frames carrying any other type are rejected at the decode boundary.
type EnvelopeType string

const (
	EnvelopeConnectionAck EnvelopeType = "connection_ack"
	EnvelopePing          EnvelopeType = "ping"
	EnvelopePong          EnvelopeType = "pong"
	EnvelopeMessage       EnvelopeType = "message"
	EnvelopeTyping        EnvelopeType = "typing"
	EnvelopeStream        EnvelopeType = "stream"
	EnvelopeError         EnvelopeType = "error"
	EnvelopeDisconnect    EnvelopeType = "disconnect"
)

var (
	// ErrInvalidJSON is returned when a frame is not valid JSON.
	ErrInvalidJSON = errors.New("invalid JSON frame")

	// ErrUnknownType is returned when a frame carries an unrecognized
	// envelope type.
	ErrUnknownType = errors.New("unknown envelope type")
)

// Error codes carried in error envelopes.
const (
	ErrCodeInvalidJSON     = "invalid_json"
	ErrCodeInvalidFrame    = "invalid_frame"
	ErrCodeInvalidMessage  = "invalid_message"
	ErrCodeSessionNotFound = "session_not_found"
	ErrCodeAgentFailure    = "agent_failure"
	ErrCodeServerError     = "server_error"
)

// Envelope is the typed wire message exchanged over a connection.
type Envelope struct {
	Type      EnvelopeType    `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Valid reports whether the envelope type is one of the recognized kinds.
func (t EnvelopeType) Valid() bool {
	switch t {
	case EnvelopeConnectionAck, EnvelopePing, EnvelopePong, EnvelopeMessage,
		EnvelopeTyping, EnvelopeStream, EnvelopeError, EnvelopeDisconnect:
		return true
	}
	return false
}

// AckPayload is the payload of a connection_ack envelope.
type AckPayload struct {
	ConnectionID string `json:"connection_id"`
	SessionID    string `json:"session_id,omitempty"`
}

// MessagePayload is the payload of an inbound message envelope.
type MessagePayload struct {
	Content string `json:"content"`
	Role    string `json:"role,omitempty"`
}

// TypingPayload is the payload of a typing envelope.
type TypingPayload struct {
	SessionID string `json:"session_id,omitempty"`
	IsTyping  bool   `json:"is_typing"`
}

// ErrorPayload is the payload of an error envelope.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// StreamPayload is the payload of a stream envelope carrying one chunk of an
// incrementally produced agent reply.
type StreamPayload struct {
	Content string `json:"content"`
	Done    bool   `json:"done"`
}

// DecodeEnvelope parses a raw frame into an Envelope. Malformed JSON yields
// ErrInvalidJSON; a well-formed frame with an unrecognized type yields
// ErrUnknownType.
func DecodeEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, ErrInvalidJSON
	}
	if !env.Type.Valid() {
		return nil, ErrUnknownType
	}
	return &env, nil
}

// NewEnvelope builds an envelope of the given type, marshalling the payload
// and stamping the current time.
func NewEnvelope(t EnvelopeType, payload interface{}) (*Envelope, error) {
	env := &Envelope{
		Type:      t,
		Timestamp: time.Now().UTC(),
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		env.Payload = data
	}
	return env, nil
}

// NewErrorEnvelope builds an error envelope with the given code and message.
func NewErrorEnvelope(code, message string) *Envelope {
	env, _ := NewEnvelope(EnvelopeError, ErrorPayload{Code: code, Message: message})
	return env
}

// Encode serializes the envelope to its wire form.
func (e *Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// DecodePayload unmarshals the envelope payload into dst.
func (e *Envelope) DecodePayload(dst interface{}) error {
	if len(e.Payload) == 0 {
		return ErrInvalidJSON
	}
	if err := json.Unmarshal(e.Payload, dst); err != nil {
		return ErrInvalidJSON
	}
	return nil
}
