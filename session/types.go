package session

import (
	"time"

	"github.com/creastat/krishi"
)

// SessionData is the persisted form of one chat session.
//
// It is written after every transcript change and read back when a host
// resumes a conversation, so the welcome is not repeated and the farmer sees
// the same history. Messages may be trimmed by message and token limits
// before they are written.
type SessionData struct {
	ID           string           `json:"id"`
	UserID       string           `json:"user_id"`
	Language     string           `json:"language"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
	Version      int64            `json:"version"` // optimistic locking
	Bootstrapped bool             `json:"bootstrapped"`
	Messages     []krishi.Message `json:"messages"`
}

// Clone returns a deep copy of d.
func (d *SessionData) Clone() *SessionData {
	if d == nil {
		return nil
	}
	out := *d
	if d.Messages != nil {
		out.Messages = make([]krishi.Message, len(d.Messages))
		for i, m := range d.Messages {
			out.Messages[i] = m.Clone()
		}
	}
	return &out
}
