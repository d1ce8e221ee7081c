// Package transporttest provides an in-memory transport.Adapter for tests.
package transporttest

import (
	"sync"

	"github.com/creastat/krishi/transport"
)

// Adapter is a scripted transport.Adapter. Tests drive its lifecycle with
// EmitOpen, EmitMessage and EmitClose; callbacks run on the calling goroutine.
type Adapter struct {
	mu        sync.Mutex
	handler   transport.Handler
	state     transport.ReadyState
	endpoints []string
	sent      []transport.OutboundFrame
	closes    []Close
}

// Close records one Close call.
type Close struct {
	Code   int
	Reason string
}

// Factory records every adapter it creates.
type Factory struct {
	mu       sync.Mutex
	adapters []*Adapter
}

// New returns the transport.Factory to inject.
func (f *Factory) New() transport.Factory {
	return func(h transport.Handler) transport.Adapter {
		a := &Adapter{handler: h, state: transport.StateConnecting}
		f.mu.Lock()
		f.adapters = append(f.adapters, a)
		f.mu.Unlock()
		return a
	}
}

// Adapters returns the adapters created so far, oldest first.
func (f *Factory) Adapters() []*Adapter {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Adapter(nil), f.adapters...)
}

// Last returns the most recently created adapter, or nil.
func (f *Factory) Last() *Adapter {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.adapters) == 0 {
		return nil
	}
	return f.adapters[len(f.adapters)-1]
}

// OpenCalls counts Open calls across all adapters.
func (f *Factory) OpenCalls() int {
	n := 0
	for _, a := range f.Adapters() {
		n += len(a.Endpoints())
	}
	return n
}

// Open implements transport.Adapter.
func (a *Adapter) Open(endpointID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.endpoints = append(a.endpoints, endpointID)
}

// Send implements transport.Adapter.
func (a *Adapter) Send(frame transport.OutboundFrame) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != transport.StateOpen {
		return false
	}
	a.sent = append(a.sent, frame)
	return true
}

// Close implements transport.Adapter. Unlike a real socket the fake moves
// straight to closed and does not emit OnClose; use EmitClose for that.
func (a *Adapter) Close(code int, reason string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != transport.StateOpen && a.state != transport.StateConnecting {
		return
	}
	a.state = transport.StateClosed
	a.closes = append(a.closes, Close{Code: code, Reason: reason})
}

// ReadyState implements transport.Adapter.
func (a *Adapter) ReadyState() transport.ReadyState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// EmitOpen marks the adapter open and fires OnOpen.
func (a *Adapter) EmitOpen() {
	a.mu.Lock()
	a.state = transport.StateOpen
	h := a.handler
	a.mu.Unlock()
	if h.OnOpen != nil {
		h.OnOpen()
	}
}

// EmitMessage fires OnMessage with raw.
func (a *Adapter) EmitMessage(raw string) {
	a.mu.Lock()
	h := a.handler
	a.mu.Unlock()
	if h.OnMessage != nil {
		h.OnMessage([]byte(raw))
	}
}

// EmitError fires OnError.
func (a *Adapter) EmitError(err error) {
	a.mu.Lock()
	h := a.handler
	a.mu.Unlock()
	if h.OnError != nil {
		h.OnError(err)
	}
}

// EmitClose marks the adapter closed and fires OnClose.
func (a *Adapter) EmitClose(code int, reason string) {
	a.mu.Lock()
	a.state = transport.StateClosed
	h := a.handler
	a.mu.Unlock()
	if h.OnClose != nil {
		h.OnClose(code, reason)
	}
}

// SetReadyState overrides the ready state without firing events.
func (a *Adapter) SetReadyState(s transport.ReadyState) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state = s
}

// Endpoints returns the endpoint IDs passed to Open.
func (a *Adapter) Endpoints() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.endpoints...)
}

// Sent returns the frames accepted by Send.
func (a *Adapter) Sent() []transport.OutboundFrame {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]transport.OutboundFrame(nil), a.sent...)
}

// Closes returns the Close calls that took effect.
func (a *Adapter) Closes() []Close {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Close(nil), a.closes...)
}

var _ transport.Adapter = (*Adapter)(nil)
