package session

import (
	"fmt"
	"sync"

	"github.com/creastat/krishi"
)

// Transcript is the ordered message list of one chat session.
// Insertion order is display order; the only removal is Clear.
//
// Mutations are issued by the session's loop. The mutex lets observers on
// other goroutines take snapshots safely.
type Transcript struct {
	mu       sync.RWMutex
	messages []krishi.Message
	ids      map[string]struct{}
}

// NewTranscript returns an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{ids: make(map[string]struct{})}
}

// Append adds msg at the tail.
// Returns krishi.ErrDuplicateMessage if the ID is already present.
func (t *Transcript) Append(msg krishi.Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if msg.ID == "" {
		return fmt.Errorf("%w: empty id", krishi.ErrDuplicateMessage)
	}
	if _, dup := t.ids[msg.ID]; dup {
		return fmt.Errorf("%w: %s", krishi.ErrDuplicateMessage, msg.ID)
	}

	t.ids[msg.ID] = struct{}{}
	t.messages = append(t.messages, msg.Clone())
	return nil
}

// Restore replaces the contents with msgs, dropping any duplicate IDs.
func (t *Transcript) Restore(msgs []krishi.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.messages = make([]krishi.Message, 0, len(msgs))
	t.ids = make(map[string]struct{}, len(msgs))
	for _, m := range msgs {
		if _, dup := t.ids[m.ID]; dup || m.ID == "" {
			continue
		}
		t.ids[m.ID] = struct{}{}
		t.messages = append(t.messages, m.Clone())
	}
}

// Clear removes every message.
func (t *Transcript) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.messages = nil
	t.ids = make(map[string]struct{})
}

// Snapshot returns a copy of the messages in order.
func (t *Transcript) Snapshot() []krishi.Message {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]krishi.Message, len(t.messages))
	for i, m := range t.messages {
		out[i] = m.Clone()
	}
	return out
}

// Len returns the number of messages.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages)
}
