package transport

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedFrame is returned for inbound frames that carry neither a
// type nor a reply text.
var ErrMalformedFrame = errors.New("malformed frame")

// Inbound frame types.
const (
	FrameError   = "error"
	FrameWelcome = "welcome"
)

// OutboundFrame is what the client writes for every user message.
type OutboundFrame struct {
	Message  string  `json:"message"`
	Language string  `json:"language"`
	UserID   *string `json:"user_id"`
}

// NewOutboundFrame builds a frame; an empty userID is sent as null.
func NewOutboundFrame(message, language, userID string) OutboundFrame {
	f := OutboundFrame{Message: message, Language: language}
	if userID != "" {
		f.UserID = &userID
	}
	return f
}

// InboundFrame is a reply or notice from the backend.
type InboundFrame struct {
	Type        string   `json:"type,omitempty"`
	Text        string   `json:"text,omitempty"`
	Message     string   `json:"message,omitempty"` // welcome frames use message instead of text
	Language    string   `json:"language,omitempty"`
	Confidence  *float64 `json:"confidence,omitempty"`
	VoiceReady  []string `json:"voice_ready,omitempty"`
	Intent      string   `json:"intent,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// IsError reports whether the backend signalled a failure.
func (f InboundFrame) IsError() bool { return f.Type == FrameError }

// DecodeInbound parses one raw inbound frame.
func DecodeInbound(raw []byte) (InboundFrame, error) {
	var f InboundFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		return InboundFrame{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if f.Type == "" && f.Text == "" {
		return InboundFrame{}, fmt.Errorf("%w: no type or text", ErrMalformedFrame)
	}
	return f, nil
}
