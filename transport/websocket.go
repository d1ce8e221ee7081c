package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	defaultHandshakeTimeout = 10 * time.Second
	defaultWriteTimeout     = 10 * time.Second
	defaultCloseTimeout     = 2 * time.Second
)

// Config holds WebSocket connection settings.
type Config struct {
	// BaseURL is the stream prefix, e.g. "ws://localhost:8000/ws".
	BaseURL string

	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration

	// CloseTimeout bounds how long a graceful close waits for the peer's
	// close frame before the socket is torn down.
	CloseTimeout time.Duration

	Header http.Header
}

func (c *Config) applyDefaults() {
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = defaultHandshakeTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = defaultWriteTimeout
	}
	if c.CloseTimeout <= 0 {
		c.CloseTimeout = defaultCloseTimeout
	}
}

// WebSocket implements Adapter over gorilla/websocket.
type WebSocket struct {
	cfg     Config
	dialer  *websocket.Dialer
	handler Handler
	logger  *zap.Logger

	mu          sync.Mutex
	state       ReadyState
	opened      bool
	conn        *websocket.Conn
	cancelDial  context.CancelFunc
	localClose  bool
	closeCode   int
	closeReason string
	closeTimer  *time.Timer

	writeMu   sync.Mutex
	closeOnce sync.Once
}

// NewWebSocket creates an adapter that has not started connecting yet.
func NewWebSocket(cfg Config, h Handler, logger *zap.Logger) *WebSocket {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebSocket{
		cfg: cfg,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		handler: h,
		logger:  logger.Named("transport"),
		state:   StateConnecting,
	}
}

// NewFactory returns a Factory producing WebSocket adapters with cfg.
func NewFactory(cfg Config, logger *zap.Logger) Factory {
	return func(h Handler) Adapter {
		return NewWebSocket(cfg, h, logger)
	}
}

// ReadyState implements Adapter.
func (w *WebSocket) ReadyState() ReadyState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Open implements Adapter. An adapter can be opened once.
func (w *WebSocket) Open(endpointID string) {
	w.mu.Lock()
	if w.opened || w.state != StateConnecting {
		w.mu.Unlock()
		return
	}
	w.opened = true
	ctx, cancel := context.WithCancel(context.Background())
	w.cancelDial = cancel
	w.mu.Unlock()

	target, err := endpointURL(w.cfg.BaseURL, endpointID)
	if err != nil {
		cancel()
		go w.fail(err)
		return
	}

	go w.dial(ctx, target)
}

func endpointURL(base, endpointID string) (string, error) {
	u, err := url.Parse(strings.TrimRight(base, "/") + "/" + url.PathEscape(endpointID))
	if err != nil {
		return "", fmt.Errorf("invalid stream url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return "", fmt.Errorf("invalid stream url scheme %q", u.Scheme)
	}
	return u.String(), nil
}

func (w *WebSocket) dial(ctx context.Context, target string) {
	conn, resp, err := w.dialer.DialContext(ctx, target, w.cfg.Header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		w.fail(err)
		return
	}

	w.mu.Lock()
	if w.state != StateConnecting {
		// Close was called while the handshake was in flight.
		w.mu.Unlock()
		_ = conn.Close()
		return
	}
	w.conn = conn
	w.state = StateOpen
	w.cancelDial()
	w.mu.Unlock()

	w.logger.Debug("stream open", zap.String("url", target))
	w.handler.open()
	w.readPump(conn)
}

// fail reports a connection that never opened.
func (w *WebSocket) fail(err error) {
	w.mu.Lock()
	local := w.localClose
	w.state = StateClosed
	w.mu.Unlock()

	if local {
		// Close already reported the outcome.
		return
	}

	w.logger.Debug("stream open failed", zap.Error(err))
	w.handler.error(err)
	w.emitClose(CloseAbnormal, err.Error())
}

func (w *WebSocket) readPump(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			w.finish(conn, err)
			return
		}
		w.handler.message(data)
	}
}

func (w *WebSocket) finish(conn *websocket.Conn, readErr error) {
	_ = conn.Close()

	w.mu.Lock()
	w.state = StateClosed
	if w.closeTimer != nil {
		w.closeTimer.Stop()
	}
	local, code, reason := w.localClose, w.closeCode, w.closeReason
	w.mu.Unlock()

	var ce *websocket.CloseError
	switch {
	case local:
		// The peer's echo (or the close timeout) ends a close we started;
		// report the code and reason we asked for.
	case errors.As(readErr, &ce):
		code, reason = ce.Code, ce.Text
	default:
		code, reason = CloseAbnormal, readErr.Error()
		w.handler.error(readErr)
	}

	w.logger.Debug("stream closed", zap.Int("code", code), zap.String("reason", reason))
	w.emitClose(code, reason)
}

func (w *WebSocket) emitClose(code int, reason string) {
	w.closeOnce.Do(func() {
		w.handler.close(code, reason)
	})
}

// Send implements Adapter.
func (w *WebSocket) Send(frame OutboundFrame) bool {
	w.mu.Lock()
	if w.state != StateOpen {
		w.mu.Unlock()
		return false
	}
	conn := w.conn
	w.mu.Unlock()

	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	_ = conn.SetWriteDeadline(time.Now().Add(w.cfg.WriteTimeout))
	if err := conn.WriteJSON(frame); err != nil {
		w.logger.Warn("failed to write frame", zap.Error(err))
		return false
	}
	return true
}

// Close implements Adapter.
func (w *WebSocket) Close(code int, reason string) {
	w.mu.Lock()
	switch w.state {
	case StateConnecting:
		w.state = StateClosed
		w.localClose = true
		cancel := w.cancelDial
		w.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		w.emitClose(code, reason)

	case StateOpen:
		w.state = StateClosing
		w.localClose = true
		w.closeCode = code
		w.closeReason = reason
		conn := w.conn
		w.closeTimer = time.AfterFunc(w.cfg.CloseTimeout, func() {
			_ = conn.Close()
		})
		w.mu.Unlock()

		msg := websocket.FormatCloseMessage(code, reason)
		if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(w.cfg.WriteTimeout)); err != nil {
			w.logger.Debug("failed to write close frame", zap.Error(err))
			_ = conn.Close()
		}

	default:
		w.mu.Unlock()
	}
}

var _ Adapter = (*WebSocket)(nil)
