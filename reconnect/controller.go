// Package reconnect decides when the session's stream is (re)opened.
//
// The Controller owns the connection state and the current transport
// adapter. It must only be used from tasks running on its loop; adapter
// events are marshalled onto the loop before they touch any state.
package reconnect

import (
	"time"

	"go.uber.org/zap"

	"github.com/creastat/krishi"
	"github.com/creastat/krishi/loop"
	"github.com/creastat/krishi/transport"
)

// DefaultDelay is the fixed wait between an unexpected close and the next open.
const DefaultDelay = 3 * time.Second

const (
	reasonReconnecting = "reconnecting"
	reasonStopped      = "session closed"
)

// Controller runs the disconnected → connecting → connected state machine.
type Controller struct {
	loop       *loop.Loop
	newAdapter transport.Factory
	logger     *zap.Logger

	delay       time.Duration
	maxAttempts int

	onState   func(krishi.ConnState)
	onMessage func(raw []byte)

	endpoint string
	state    krishi.ConnState
	adapter  transport.Adapter
	gen      uint64
	pending  loop.Timer
	attempts int
	stopped  bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithDelay overrides DefaultDelay.
func WithDelay(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.delay = d
		}
	}
}

// WithMaxAttempts caps consecutive failed reconnects. Zero means unlimited.
func WithMaxAttempts(n int) Option {
	return func(c *Controller) {
		if n >= 0 {
			c.maxAttempts = n
		}
	}
}

// WithLogger sets the controller logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// OnStateChange registers the state observer. It runs on the loop.
func OnStateChange(fn func(krishi.ConnState)) Option {
	return func(c *Controller) {
		c.onState = fn
	}
}

// OnMessage registers the inbound frame consumer. It runs on the loop.
func OnMessage(fn func(raw []byte)) Option {
	return func(c *Controller) {
		c.onMessage = fn
	}
}

// New creates a disconnected controller.
func New(l *loop.Loop, factory transport.Factory, opts ...Option) *Controller {
	c := &Controller{
		loop:       l,
		newAdapter: factory,
		logger:     zap.NewNop(),
		delay:      DefaultDelay,
		state:      krishi.Disconnected,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named("reconnect")
	return c
}

// State returns the current connection state.
func (c *Controller) State() krishi.ConnState { return c.state }

// Connect opens a stream to endpointID, replacing any live adapter.
func (c *Controller) Connect(endpointID string) {
	if c.stopped {
		return
	}
	c.endpoint = endpointID
	c.cancelPending()
	c.open()
}

func (c *Controller) open() {
	if c.adapter != nil && c.adapter.ReadyState() != transport.StateClosed {
		c.adapter.Close(transport.CloseNormal, reasonReconnecting)
	}

	c.gen++
	gen := c.gen
	c.adapter = c.newAdapter(transport.Handler{
		OnOpen: func() {
			c.loop.Post(func() { c.handleOpen(gen) })
		},
		OnMessage: func(raw []byte) {
			c.loop.Post(func() { c.handleMessage(gen, raw) })
		},
		OnClose: func(code int, reason string) {
			c.loop.Post(func() { c.handleClose(gen, code, reason) })
		},
		OnError: func(err error) {
			c.loop.Post(func() { c.handleError(gen, err) })
		},
	})

	c.setState(krishi.Connecting)
	c.logger.Info("opening stream", zap.String("endpoint", c.endpoint), zap.Uint64("generation", gen))
	c.adapter.Open(c.endpoint)
}

// Send forwards frame when connected. It reports whether the frame was written.
func (c *Controller) Send(frame transport.OutboundFrame) bool {
	if c.state != krishi.Connected || c.adapter == nil {
		return false
	}
	return c.adapter.Send(frame)
}

// Stop cancels any pending reconnect and closes the stream for good.
func (c *Controller) Stop() {
	if c.stopped {
		return
	}
	c.stopped = true
	c.cancelPending()
	if c.adapter != nil {
		c.adapter.Close(transport.CloseNormal, reasonStopped)
	}
	c.setState(krishi.Disconnected)
}

// ReconnectPending reports whether a delayed open is scheduled.
func (c *Controller) ReconnectPending() bool { return c.pending != nil }

func (c *Controller) handleOpen(gen uint64) {
	if gen != c.gen || c.stopped {
		return
	}
	c.attempts = 0
	c.setState(krishi.Connected)
}

func (c *Controller) handleMessage(gen uint64, raw []byte) {
	if gen != c.gen || c.stopped {
		return
	}
	if c.onMessage != nil {
		c.onMessage(raw)
	}
}

func (c *Controller) handleError(gen uint64, err error) {
	if gen != c.gen {
		return
	}
	c.logger.Warn("stream error", zap.Error(err))
}

func (c *Controller) handleClose(gen uint64, code int, reason string) {
	if gen != c.gen || c.stopped {
		return
	}

	c.setState(krishi.Disconnected)

	if code == transport.CloseNormal {
		c.logger.Info("stream closed cleanly", zap.String("reason", reason))
		return
	}

	c.logger.Warn("stream closed unexpectedly",
		zap.Int("code", code),
		zap.String("reason", reason),
		zap.Duration("retry_in", c.delay))
	c.scheduleReconnect()
}

func (c *Controller) scheduleReconnect() {
	if c.pending != nil {
		return
	}
	if c.maxAttempts > 0 && c.attempts >= c.maxAttempts {
		c.logger.Error("giving up reconnecting", zap.Int("attempts", c.attempts))
		return
	}

	c.pending = c.loop.After(c.delay, func() {
		c.pending = nil
		if c.stopped {
			return
		}
		if c.adapter != nil && c.adapter.ReadyState() != transport.StateClosed {
			return
		}
		c.attempts++
		c.open()
	})
}

func (c *Controller) cancelPending() {
	if c.pending != nil {
		c.pending.Stop()
		c.pending = nil
	}
}

func (c *Controller) setState(s krishi.ConnState) {
	if c.state == s {
		return
	}
	c.state = s
	if c.onState != nil {
		c.onState(s)
	}
}
