// Package transport wraps a single duplex message stream to the advisory
// backend. An Adapter owns exactly one connection attempt; reconnecting means
// creating a new Adapter through a Factory.
package transport

// ReadyState is the lifecycle state of one Adapter.
type ReadyState int

const (
	StateConnecting ReadyState = iota
	StateOpen
	StateClosing
	StateClosed
)

func (s ReadyState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Close codes used by the stream (RFC 6455 section 7.4.1).
const (
	CloseNormal    = 1000
	CloseGoingAway = 1001
	CloseAbnormal  = 1006
)

// Handler receives adapter events. Callbacks may be invoked from any
// goroutine; nil callbacks are skipped.
type Handler struct {
	OnOpen    func()
	OnMessage func(raw []byte)
	OnClose   func(code int, reason string)
	OnError   func(err error)
}

func (h Handler) open() {
	if h.OnOpen != nil {
		h.OnOpen()
	}
}

func (h Handler) message(raw []byte) {
	if h.OnMessage != nil {
		h.OnMessage(raw)
	}
}

func (h Handler) close(code int, reason string) {
	if h.OnClose != nil {
		h.OnClose(code, reason)
	}
}

func (h Handler) error(err error) {
	if h.OnError != nil {
		h.OnError(err)
	}
}

// Adapter is one connection to <baseURL>/<endpointID>.
type Adapter interface {
	// Open starts connecting. Failures are reported through OnError and
	// OnClose, never returned.
	Open(endpointID string)

	// Send writes a frame. It is a no-op returning false unless the adapter
	// is open.
	Send(frame OutboundFrame) bool

	// Close closes the stream gracefully while connecting or open; it does
	// nothing otherwise.
	Close(code int, reason string)

	// ReadyState reports the adapter's own lifecycle state.
	ReadyState() ReadyState
}

// Factory creates a fresh Adapter bound to h.
type Factory func(h Handler) Adapter
