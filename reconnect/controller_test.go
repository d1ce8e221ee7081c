package reconnect_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/creastat/krishi"
	"github.com/creastat/krishi/loop"
	"github.com/creastat/krishi/reconnect"
	"github.com/creastat/krishi/transport"
	"github.com/creastat/krishi/transport/transporttest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type harness struct {
	t       *testing.T
	loop    *loop.Loop
	clock   *loop.ManualClock
	factory *transporttest.Factory
	ctrl    *reconnect.Controller
	states  []krishi.ConnState
	frames  []string
}

func newHarness(t *testing.T, opts ...reconnect.Option) *harness {
	t.Helper()

	h := &harness{
		t:       t,
		clock:   loop.NewManualClock(time.Unix(1700000000, 0)),
		factory: &transporttest.Factory{},
	}
	h.loop = loop.New(loop.WithClock(h.clock))

	ctx, cancel := context.WithCancel(context.Background())
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		_ = h.loop.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-exited
	})

	opts = append([]reconnect.Option{
		reconnect.OnStateChange(func(s krishi.ConnState) { h.states = append(h.states, s) }),
		reconnect.OnMessage(func(raw []byte) { h.frames = append(h.frames, string(raw)) }),
	}, opts...)
	h.ctrl = reconnect.New(h.loop, h.factory.New(), opts...)
	return h
}

// do runs fn on the loop and waits; it also flushes previously posted events.
func (h *harness) do(fn func()) {
	h.t.Helper()
	require.NoError(h.t, h.loop.Call(context.Background(), fn))
}

// flush waits until every event posted so far has been handled.
func (h *harness) flush() { h.do(func() {}) }

func (h *harness) state() krishi.ConnState {
	var s krishi.ConnState
	h.do(func() { s = h.ctrl.State() })
	return s
}

func (h *harness) connected() *transporttest.Adapter {
	h.t.Helper()
	h.do(func() { h.ctrl.Connect("farmer-7") })
	a := h.factory.Last()
	require.NotNil(h.t, a)
	a.EmitOpen()
	require.Equal(h.t, krishi.Connected, h.state())
	return a
}

func TestController_ConnectOpensEndpoint(t *testing.T) {
	h := newHarness(t)

	h.do(func() { h.ctrl.Connect("farmer-7") })
	assert.Equal(t, krishi.Connecting, h.state())

	a := h.factory.Last()
	require.NotNil(t, a)
	assert.Equal(t, []string{"farmer-7"}, a.Endpoints())

	a.EmitOpen()
	assert.Equal(t, krishi.Connected, h.state())
	h.do(func() {
		assert.Equal(t, []krishi.ConnState{krishi.Connecting, krishi.Connected}, h.states)
	})
}

func TestController_AbnormalCloseReconnectsAfterDelay(t *testing.T) {
	h := newHarness(t)
	a := h.connected()

	a.EmitClose(transport.CloseAbnormal, "abnormal")
	assert.Equal(t, krishi.Disconnected, h.state())
	assert.Equal(t, 1, h.factory.OpenCalls())

	h.clock.Advance(reconnect.DefaultDelay - time.Millisecond)
	assert.Equal(t, krishi.Disconnected, h.state())
	assert.Equal(t, 1, h.factory.OpenCalls())

	h.clock.Advance(time.Millisecond)
	assert.Equal(t, krishi.Connecting, h.state())
	assert.Equal(t, 2, h.factory.OpenCalls())

	h.clock.Advance(time.Minute)
	assert.Equal(t, 2, h.factory.OpenCalls())
}

func TestController_CleanCloseIsTerminal(t *testing.T) {
	h := newHarness(t)
	a := h.connected()

	a.EmitClose(transport.CloseNormal, "user closed")
	assert.Equal(t, krishi.Disconnected, h.state())

	var pending bool
	h.do(func() { pending = h.ctrl.ReconnectPending() })
	assert.False(t, pending)

	h.clock.Advance(time.Minute)
	assert.Equal(t, 1, h.factory.OpenCalls())
	assert.Equal(t, 0, h.clock.Pending())
}

func TestController_ReconnectsNeverOverlap(t *testing.T) {
	h := newHarness(t)
	a := h.connected()

	a.EmitError(errors.New("network down"))
	a.EmitClose(transport.CloseAbnormal, "abnormal")
	a.EmitClose(transport.CloseAbnormal, "abnormal again")

	h.flush()
	assert.Equal(t, 1, h.clock.Pending())

	h.clock.Advance(reconnect.DefaultDelay)
	assert.Equal(t, 2, h.factory.OpenCalls())
}

func TestController_FailedOpenRetries(t *testing.T) {
	h := newHarness(t, reconnect.WithDelay(time.Second))

	h.do(func() { h.ctrl.Connect("anonymous") })
	first := h.factory.Last()
	first.EmitError(errors.New("connection refused"))
	first.EmitClose(transport.CloseAbnormal, "connection refused")
	h.flush()

	h.clock.Advance(time.Second)
	second := h.factory.Last()
	require.NotSame(t, first, second)
	assert.Equal(t, []string{"anonymous"}, second.Endpoints())

	second.EmitOpen()
	assert.Equal(t, krishi.Connected, h.state())
}

func TestController_SkipsReconnectWhileAdapterNotClosed(t *testing.T) {
	h := newHarness(t)
	a := h.connected()

	a.EmitClose(transport.CloseAbnormal, "abnormal")
	h.flush()
	a.SetReadyState(transport.StateClosing)

	h.clock.Advance(reconnect.DefaultDelay)
	assert.Equal(t, 1, h.factory.OpenCalls())
	assert.Equal(t, krishi.Disconnected, h.state())
}

func TestController_ConnectClosesLiveAdapterFirst(t *testing.T) {
	h := newHarness(t)
	old := h.connected()

	h.do(func() { h.ctrl.Connect("farmer-7") })

	assert.Equal(t, []transporttest.Close{{Code: transport.CloseNormal, Reason: "reconnecting"}}, old.Closes())
	assert.Equal(t, krishi.Connecting, h.state())

	// Late events from the replaced adapter are ignored.
	old.EmitClose(transport.CloseAbnormal, "stale")
	old.EmitMessage(`{"text":"stale"}`)
	assert.Equal(t, krishi.Connecting, h.state())
	h.do(func() { assert.Empty(t, h.frames) })
	assert.Equal(t, 0, h.clock.Pending())
}

func TestController_StopCancelsPendingReconnect(t *testing.T) {
	h := newHarness(t)
	a := h.connected()

	a.EmitClose(transport.CloseAbnormal, "abnormal")
	h.do(func() { h.ctrl.Stop() })

	h.clock.Advance(time.Minute)
	assert.Equal(t, 1, h.factory.OpenCalls())
	assert.Equal(t, krishi.Disconnected, h.state())

	h.do(func() { h.ctrl.Connect("farmer-7") })
	assert.Equal(t, 1, h.factory.OpenCalls())
}

func TestController_StopClosesOpenAdapter(t *testing.T) {
	h := newHarness(t)
	a := h.connected()

	h.do(func() { h.ctrl.Stop() })

	assert.Equal(t, []transporttest.Close{{Code: transport.CloseNormal, Reason: "session closed"}}, a.Closes())
	assert.Equal(t, krishi.Disconnected, h.state())
}

func TestController_MaxAttempts(t *testing.T) {
	h := newHarness(t, reconnect.WithMaxAttempts(2), reconnect.WithDelay(time.Second))

	h.do(func() { h.ctrl.Connect("anonymous") })
	for i := 0; i < 5; i++ {
		h.factory.Last().EmitClose(transport.CloseAbnormal, "refused")
		h.flush()
		h.clock.Advance(time.Second)
	}

	// The initial open plus two retries.
	assert.Equal(t, 3, h.factory.OpenCalls())
}

func TestController_ForwardsMessagesAndSends(t *testing.T) {
	h := newHarness(t)

	var sent bool
	h.do(func() { sent = h.ctrl.Send(transport.NewOutboundFrame("hello", "en", "")) })
	assert.False(t, sent)

	a := h.connected()
	a.EmitMessage(`{"text":"hi"}`)

	h.do(func() { sent = h.ctrl.Send(transport.NewOutboundFrame("hello", "en", "")) })
	assert.True(t, sent)
	assert.Len(t, a.Sent(), 1)
	h.do(func() { assert.Equal(t, []string{`{"text":"hi"}`}, h.frames) })
}
