package krishi

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Kind tells observers how a message was produced.
type Kind string

const (
	KindText   Kind = "text"
	KindVoice  Kind = "voice"
	KindSystem Kind = "system"
)

// Metadata carries optional per-message annotations.
type Metadata struct {
	Language    string   `json:"language,omitempty"`
	Confidence  *float64 `json:"confidence,omitempty"`
	AudioRef    string   `json:"audio_ref,omitempty"`
	VoiceReady  []string `json:"voice_ready,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
	Intent      string   `json:"intent,omitempty"`
	References  []string `json:"references,omitempty"` // knowledge snippets attached on the fallback path
}

// Message is a single conversation entry.
// Messages are values; the session store hands out copies so callers cannot
// mutate what has been recorded.
type Message struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Role      Role      `json:"role"`
	Kind      Kind      `json:"kind"`
	CreatedAt time.Time `json:"created_at"`
	Metadata  *Metadata `json:"metadata,omitempty"`
}

// NewMessageID returns a time-ordered unique identifier.
// UUIDv7 embeds the creation time in its leading bits and the generator keeps
// a sequence within the same millisecond, so IDs sort in creation order.
func NewMessageID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// NewMessage builds a message stamped with now.
func NewMessage(role Role, kind Kind, text string, now time.Time, meta *Metadata) Message {
	return Message{
		ID:        NewMessageID(),
		Text:      text,
		Role:      role,
		Kind:      kind,
		CreatedAt: now,
		Metadata:  meta,
	}
}

// Clone returns a deep copy of m.
func (m Message) Clone() Message {
	if m.Metadata == nil {
		return m
	}
	meta := *m.Metadata
	if m.Metadata.Confidence != nil {
		c := *m.Metadata.Confidence
		meta.Confidence = &c
	}
	meta.VoiceReady = cloneStrings(m.Metadata.VoiceReady)
	meta.Suggestions = cloneStrings(m.Metadata.Suggestions)
	meta.References = cloneStrings(m.Metadata.References)
	m.Metadata = &meta
	return m
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}

// ConnState is the connection state of a chat session.
type ConnState int

const (
	Disconnected ConnState = iota
	Connecting
	Connected
)

func (s ConnState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

// AnonymousClientID is used on the wire when no user is signed in.
const AnonymousClientID = "anonymous"

// User is the farmer profile owned by the profile service.
// The messaging core only reads ID, Name and Language.
type User struct {
	ID          string  `json:"id,omitempty" yaml:"id"`
	PhoneNumber string  `json:"phone_number" yaml:"phone_number"`
	Name        string  `json:"name" yaml:"name"`
	Language    string  `json:"language" yaml:"language"`
	State       string  `json:"state" yaml:"state"`
	District    string  `json:"district" yaml:"district"`
	Village     string  `json:"village" yaml:"village"`
	LandArea    float64 `json:"land_area" yaml:"land_area"`
}

// ClientID returns the identifier used in the stream endpoint.
func (u *User) ClientID() string {
	if u == nil || u.ID == "" {
		return AnonymousClientID
	}
	return u.ID
}

// DefaultLanguage is used when neither the user nor the caller names one.
const DefaultLanguage = "hi"

// LanguageOr returns the user's language, or def when unset.
func (u *User) LanguageOr(def string) string {
	if u == nil || u.Language == "" {
		return def
	}
	return u.Language
}
