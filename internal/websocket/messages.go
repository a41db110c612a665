package websocket

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/adityawrdhn/voicecart/internal/assistant"
)

// ErrMalformedMessage reports an inbound control message that failed schema
// validation. It is surfaced to the client as an error notification; the
// connection stays open.
var ErrMalformedMessage = errors.New("malformed control message")

// Inbound control messages are JSON text frames. A frame carrying a "type"
// tag is a control command; a frame without one is a pre-transcribed text
// utterance that bypasses speech recognition.
const (
	stopRecordingSchema = `{
		"type": "object",
		"properties": {
			"type": {"const": "stop_recording"}
		},
		"required": ["type"]
	}`

	textSubmissionSchema = `{
		"type": "object",
		"properties": {
			"text": {"type": "string", "minLength": 1},
			"session_id": {"type": "string"}
		},
		"required": ["text"]
	}`
)

var (
	stopRecordingValidator  = jsonschema.MustCompileString("stop_recording.json", stopRecordingSchema)
	textSubmissionValidator = jsonschema.MustCompileString("text_submission.json", textSubmissionSchema)
)

// InboundKind discriminates the validated inbound union.
type InboundKind int

const (
	KindStopRecording InboundKind = iota + 1
	KindTextSubmission
)

// Inbound is a validated client control message.
type Inbound struct {
	Kind      InboundKind
	Text      string
	SessionID string
}

// ParseInbound validates a text frame against the control-message schemas
// and returns the decoded union member. Any shape that matches neither
// schema yields ErrMalformedMessage.
func ParseInbound(raw []byte) (Inbound, error) {
	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Inbound{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	obj, ok := payload.(map[string]any)
	if !ok {
		return Inbound{}, fmt.Errorf("%w: expected a JSON object", ErrMalformedMessage)
	}

	if _, tagged := obj["type"]; tagged {
		if err := stopRecordingValidator.Validate(payload); err != nil {
			return Inbound{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
		}
		return Inbound{Kind: KindStopRecording}, nil
	}

	if err := textSubmissionValidator.Validate(payload); err != nil {
		return Inbound{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	var msg struct {
		Text      string `json:"text"`
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil {
		return Inbound{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	return Inbound{Kind: KindTextSubmission, Text: msg.Text, SessionID: msg.SessionID}, nil
}

// Status messages sent to the client.
const (
	StatusReady      = "ready"
	StatusProcessing = "processing"
	StatusSpeaking   = "speaking"
)

type statusMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

type errorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

type warningMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type botResponseMessage struct {
	Type              string                 `json:"type"`
	UserText          string                 `json:"user_text"`
	Text              string                 `json:"text"`
	SuggestedProducts []assistant.Suggestion `json:"suggested_products"`
}

type ttsChunkMessage struct {
	Event     string `json:"event"`
	SessionID string `json:"session_id"`
	Payload   string `json:"payload"`
	Mime      string `json:"mime"`
}
