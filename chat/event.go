package chat

import "github.com/creastat/krishi"

// EventType identifies what changed.
type EventType int

const (
	EventMessage  EventType = iota // a message was appended
	EventCleared                   // the transcript was emptied
	EventState                     // the connection state changed
	EventRestored                  // a persisted transcript was loaded
)

// Event is delivered to observers on the session loop.
type Event struct {
	Type    EventType
	Message *krishi.Message // EventMessage
	State   krishi.ConnState
}
