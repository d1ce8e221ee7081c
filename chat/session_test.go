package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/creastat/krishi"
	"github.com/creastat/krishi/fallback"
	"github.com/creastat/krishi/knowledge"
	"github.com/creastat/krishi/loop"
	"github.com/creastat/krishi/reconnect"
	"github.com/creastat/krishi/session"
	"github.com/creastat/krishi/session/drivers"
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
	s       *Session
	events  []Event
}

// midpoint picks the middle of any latency range: 2s for the default [1s, 3s].
func midpoint(n int64) int64 { return n / 2 }

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()

	h := &harness{
		t:       t,
		clock:   loop.NewManualClock(time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)),
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

	opts = append([]Option{
		WithRand(midpoint),
		WithObserver(func(ev Event) { h.events = append(h.events, ev) }),
	}, opts...)
	h.s = New(h.loop, h.factory.New(), opts...)
	t.Cleanup(func() { _ = h.s.Close(context.Background()) })
	return h
}

func (h *harness) start() {
	h.t.Helper()
	require.NoError(h.t, h.s.Start(context.Background()))
}

// flush waits until every event posted so far has been handled.
func (h *harness) flush() {
	h.t.Helper()
	require.NoError(h.t, h.loop.Call(context.Background(), func() {}))
}

func (h *harness) send(text string) {
	h.t.Helper()
	require.NoError(h.t, h.s.Send(context.Background(), text))
}

func (h *harness) state() krishi.ConnState {
	h.t.Helper()
	st, err := h.s.State(context.Background())
	require.NoError(h.t, err)
	return st
}

func (h *harness) connect() *transporttest.Adapter {
	h.t.Helper()
	a := h.factory.Last()
	require.NotNil(h.t, a)
	a.EmitOpen()
	require.Equal(h.t, krishi.Connected, h.state())
	return a
}

func (h *harness) last() krishi.Message {
	h.t.Helper()
	msgs := h.s.Snapshot()
	require.NotEmpty(h.t, msgs)
	return msgs[len(msgs)-1]
}

func TestSession_StartSeedsOneWelcome(t *testing.T) {
	h := newHarness(t)
	h.start()

	msgs := h.s.Snapshot()
	require.Len(t, msgs, 1)
	welcome := msgs[0]
	assert.Equal(t, krishi.RoleSystem, welcome.Role)
	assert.Equal(t, krishi.KindSystem, welcome.Kind)
	assert.Contains(t, welcome.Text, "किसान भाई")
	require.NotNil(t, welcome.Metadata)
	assert.Equal(t, greetings["hi"].suggestions, welcome.Metadata.Suggestions)

	require.NoError(t, h.s.Bootstrap(context.Background()))
	h.start()
	assert.Len(t, h.s.Snapshot(), 1)
	assert.Equal(t, 1, h.factory.OpenCalls())
	assert.Equal(t, []string{"anonymous"}, h.factory.Last().Endpoints())
}

func TestSession_GreetingIsLocalized(t *testing.T) {
	tests := []struct {
		name string
		user *krishi.User
		want []string
	}{
		{"punjabi with name", &krishi.User{ID: "u1", Name: "Gurpreet", Language: "pa"}, []string{"ਸਤ ਸ੍ਰੀ ਅਕਾਲ", "Gurpreet"}},
		{"english placeholder", &krishi.User{ID: "u2", Language: "en"}, []string{"Namaste farmer friend"}},
		{"unknown language falls back to hindi", &krishi.User{ID: "u3", Name: "Ravi", Language: "ta"}, []string{"नमस्ते Ravi"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, WithUser(tt.user))
			h.start()

			text := h.last().Text
			for _, w := range tt.want {
				assert.Contains(t, text, w)
			}
			assert.Equal(t, []string{tt.user.ID}, h.factory.Last().Endpoints())
		})
	}
}

func TestSession_CropAdviceWhileDisconnected(t *testing.T) {
	h := newHarness(t)
	h.start()
	require.Equal(t, krishi.Connecting, h.state())

	h.send("मुझे फसल की सलाह चाहिए")
	msgs := h.s.Snapshot()
	require.Len(t, msgs, 2)
	assert.Equal(t, krishi.RoleUser, msgs[1].Role)
	assert.Equal(t, "hi", msgs[1].Metadata.Language)

	h.clock.Advance(2*time.Second - time.Millisecond)
	h.flush()
	assert.Len(t, h.s.Snapshot(), 2)

	h.clock.Advance(time.Millisecond)
	h.flush()
	reply := h.last()
	assert.Equal(t, krishi.RoleAssistant, reply.Role)
	assert.Equal(t, fallback.Default().Classify("फसल").Reply("hi"), reply.Text)
	assert.Equal(t, fallback.IntentCrop, reply.Metadata.Intent)
	assert.NotEmpty(t, reply.Metadata.Suggestions)
	assert.Empty(t, h.factory.Last().Sent())
}

func TestSession_FallbackDelayStaysInRange(t *testing.T) {
	for name, intn := range map[string]func(int64) int64{
		"shortest": func(int64) int64 { return 0 },
		"longest":  func(n int64) int64 { return n - 1 },
	} {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t, WithRand(intn))
			h.start()
			h.send("ऋण कैसे लें?")

			h.clock.Advance(time.Second - time.Millisecond)
			h.flush()
			assert.Len(t, h.s.Snapshot(), 2)

			h.clock.Advance(2*time.Second + time.Millisecond)
			h.flush()
			reply := h.last()
			assert.Equal(t, fallback.IntentLoan, reply.Metadata.Intent)
			assert.Equal(t, fallback.Default().Classify("loan").Reply("hi"), reply.Text)
		})
	}
}

func TestSession_FallbackIsDeterministic(t *testing.T) {
	inputs := []struct {
		text   string
		intent string
	}{
		{"ऋण कैसे लें?", fallback.IntentLoan},
		{"मंडी में गेहूं का भाव", fallback.IntentMarket},
		{"नमस्ते", fallback.IntentGeneral},
	}

	for _, in := range inputs {
		var replies []string
		for i := 0; i < 2; i++ {
			h := newHarness(t)
			h.start()
			h.send(in.text)
			h.clock.Advance(3 * time.Second)
			h.flush()

			reply := h.last()
			assert.Equal(t, in.intent, reply.Metadata.Intent)
			replies = append(replies, reply.Text)
		}
		assert.Equal(t, replies[0], replies[1], in.text)
	}
}

func TestSession_ForwardsWhenConnected(t *testing.T) {
	h := newHarness(t, WithUser(&krishi.User{ID: "farmer-7", Language: "en"}))
	h.start()
	a := h.connect()

	h.send("When should I sow wheat?")

	id := "farmer-7"
	assert.Equal(t, []transport.OutboundFrame{{Message: "When should I sow wheat?", Language: "en", UserID: &id}}, a.Sent())
	assert.Equal(t, 0, h.clock.Pending())

	a.EmitMessage(`{"text":"Sow in early November.","language":"en","confidence":0.92,"intent":"crop_advice","suggestions":["Seed rate?"],"voice_ready":["en"]}`)
	h.flush()

	reply := h.last()
	assert.Equal(t, krishi.RoleAssistant, reply.Role)
	assert.Equal(t, krishi.KindText, reply.Kind)
	assert.Equal(t, "Sow in early November.", reply.Text)
	require.NotNil(t, reply.Metadata.Confidence)
	assert.InDelta(t, 0.92, *reply.Metadata.Confidence, 1e-9)
	assert.Equal(t, []string{"Seed rate?"}, reply.Metadata.Suggestions)
	assert.Equal(t, []string{"en"}, reply.Metadata.VoiceReady)
	assert.Len(t, h.s.Snapshot(), 3)
}

func TestSession_ForwardsTextUntrimmed(t *testing.T) {
	h := newHarness(t, WithUser(&krishi.User{ID: "farmer-7", Language: "en"}))
	h.start()
	a := h.connect()

	h.send("  loan for a pump set?\n")

	sent := a.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "  loan for a pump set?\n", sent[0].Message)
	assert.Equal(t, "  loan for a pump set?\n", h.last().Text)
}

func TestSession_ErrorFrameAddsOneNotice(t *testing.T) {
	h := newHarness(t)
	h.start()
	a := h.connect()

	a.EmitMessage(`{"type":"error"}`)
	h.flush()

	msgs := h.s.Snapshot()
	require.Len(t, msgs, 2)
	assert.Equal(t, krishi.RoleSystem, msgs[1].Role)
	assert.Equal(t, krishi.KindSystem, msgs[1].Kind)
	assert.Equal(t, ErrorText("hi"), msgs[1].Text)
	assert.Equal(t, krishi.Connected, h.state())
}

func TestSession_DropsMalformedFrames(t *testing.T) {
	h := newHarness(t)
	h.start()
	a := h.connect()

	a.EmitMessage(`not json`)
	a.EmitMessage(`{}`)
	a.EmitMessage(`{"type":"typing"}`)
	h.flush()

	assert.Len(t, h.s.Snapshot(), 1)
	assert.Equal(t, krishi.Connected, h.state())
}

func TestSession_ServerWelcomeIsNotABootstrap(t *testing.T) {
	h := newHarness(t)
	h.start()
	a := h.connect()

	a.EmitMessage(`{"type":"welcome","message":"नमस्कार! मैं आपका कृषि सलाहकार हूँ।","language":"hi"}`)
	a.EmitMessage(`{"type":"welcome","language":"hi"}`)
	h.flush()

	msgs := h.s.Snapshot()
	require.Len(t, msgs, 2)
	assert.Equal(t, "नमस्कार! मैं आपका कृषि सलाहकार हूँ।", msgs[1].Text)
	assert.Equal(t, krishi.RoleSystem, msgs[1].Role)

	require.NoError(t, h.s.Bootstrap(context.Background()))
	assert.Len(t, h.s.Snapshot(), 2)
}

func TestSession_RejectsEmptyText(t *testing.T) {
	h := newHarness(t)
	h.start()

	assert.ErrorIs(t, h.s.Send(context.Background(), "   \n"), krishi.ErrEmptyMessage)
	assert.ErrorIs(t, h.s.SendVoice(context.Background(), "", "clip.webm"), krishi.ErrEmptyMessage)
	assert.Len(t, h.s.Snapshot(), 1)
}

func TestSession_SendVoice(t *testing.T) {
	h := newHarness(t)
	h.start()

	require.NoError(t, h.s.SendVoice(context.Background(), "मौसम कैसा रहेगा", "file:///tmp/note-1.webm"))
	user := h.last()
	assert.Equal(t, krishi.KindVoice, user.Kind)
	assert.Equal(t, "file:///tmp/note-1.webm", user.Metadata.AudioRef)

	h.clock.Advance(2 * time.Second)
	h.flush()
	assert.Equal(t, fallback.IntentRisk, h.last().Metadata.Intent)
}

func TestSession_CloseCancelsPendingReplies(t *testing.T) {
	h := newHarness(t)
	h.start()
	a := h.factory.Last()

	h.send("कर्ज चाहिए")
	require.NoError(t, h.s.Close(context.Background()))

	h.clock.Advance(time.Minute)
	h.flush()
	assert.Len(t, h.s.Snapshot(), 2)
	assert.Equal(t, []transporttest.Close{{Code: transport.CloseNormal, Reason: "session closed"}}, a.Closes())

	// Frames arriving after close are dropped as well.
	a.EmitMessage(`{"text":"late"}`)
	h.flush()
	assert.Len(t, h.s.Snapshot(), 2)

	assert.ErrorIs(t, h.s.Send(context.Background(), "hello"), krishi.ErrSessionClosed)
	require.NoError(t, h.s.Close(context.Background()))
}

func TestSession_ClearDropsPendingReplies(t *testing.T) {
	h := newHarness(t)
	h.start()
	h.send("योजना")

	require.NoError(t, h.s.Clear(context.Background()))
	h.clock.Advance(time.Minute)
	h.flush()

	assert.Empty(t, h.s.Snapshot())
	require.NoError(t, h.s.Bootstrap(context.Background()))
	assert.Empty(t, h.s.Snapshot())

	require.NoError(t, h.loop.Call(context.Background(), func() {
		assert.Equal(t, EventCleared, h.events[len(h.events)-1].Type)
	}))
}

func TestSession_ReconnectsAfterAbnormalClose(t *testing.T) {
	h := newHarness(t)
	h.start()
	a := h.connect()

	a.EmitClose(transport.CloseAbnormal, "abnormal")
	h.flush()
	assert.Equal(t, krishi.Disconnected, h.state())

	// Offline while waiting: the fallback answers.
	h.send("weather")

	h.clock.Advance(reconnect.DefaultDelay)
	h.flush()
	assert.Equal(t, krishi.Connecting, h.state())
	assert.Equal(t, 2, h.factory.OpenCalls())
	assert.Equal(t, fallback.IntentRisk, h.last().Metadata.Intent)
}

func TestSession_ObserversSeeEveryChange(t *testing.T) {
	h := newHarness(t)
	h.start()
	h.connect()

	var types []EventType
	var states []krishi.ConnState
	require.NoError(t, h.loop.Call(context.Background(), func() {
		for _, ev := range h.events {
			types = append(types, ev.Type)
			if ev.Type == EventState {
				states = append(states, ev.State)
			}
		}
	}))

	assert.Equal(t, []EventType{EventMessage, EventState, EventState}, types)
	assert.Equal(t, []krishi.ConnState{krishi.Connecting, krishi.Connected}, states)
}

func TestSession_SetLanguage(t *testing.T) {
	h := newHarness(t)
	h.start()

	require.NoError(t, h.s.SetLanguage(context.Background(), "en"))
	assert.ErrorIs(t, h.s.SetLanguage(context.Background(), ""), krishi.ErrInvalidConfig)

	lang, err := h.s.Language(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "en", lang)

	h.send("loan please")
	h.clock.Advance(3 * time.Second)
	h.flush()
	assert.True(t, strings.HasPrefix(h.last().Text, "💰 Loan help"))
}

func TestSession_PersistsAndRestores(t *testing.T) {
	store := drivers.NewInMemoryStore()
	user := &krishi.User{ID: "farmer-9", Name: "Sita"}

	h := newHarness(t, WithUser(user), WithStore(store, HistoryLimits{Messages: 50}))
	h.start()
	h.send("फसल")
	h.clock.Advance(3 * time.Second)
	h.flush()
	require.NoError(t, h.s.Close(context.Background()))

	data, err := store.Get(context.Background(), "chat:farmer-9")
	require.NoError(t, err)
	require.NotNil(t, data)
	assert.True(t, data.Bootstrapped)
	assert.Equal(t, "farmer-9", data.UserID)
	require.Len(t, data.Messages, 3)

	// A new session for the same farmer picks up where the last one stopped.
	h2 := newHarness(t, WithUser(user), WithStore(store, HistoryLimits{}))
	h2.start()
	restored := h2.s.Snapshot()
	require.Len(t, restored, 3)
	assert.Equal(t, data.Messages[0].ID, restored[0].ID)

	h2.send("मंडी")
	require.NoError(t, h2.s.Close(context.Background()))

	data, err = store.Get(context.Background(), "chat:farmer-9")
	require.NoError(t, err)
	assert.Len(t, data.Messages, 4)
	assert.Greater(t, data.Version, int64(1))
}

// flakyStore fails the next Get once armed.
type flakyStore struct {
	session.Store
	failNext atomic.Bool
}

func (f *flakyStore) Get(ctx context.Context, id string) (*session.SessionData, error) {
	if f.failNext.CompareAndSwap(true, false) {
		return nil, errors.New("redis: i/o timeout")
	}
	return f.Store.Get(ctx, id)
}

func TestSession_FailedRestoreKeepsStoredTranscript(t *testing.T) {
	inner := drivers.NewInMemoryStore()
	user := &krishi.User{ID: "farmer-3"}

	h := newHarness(t, WithUser(user), WithStore(inner, HistoryLimits{}))
	h.start()
	h.send("फसल")
	h.clock.Advance(3 * time.Second)
	h.flush()
	require.NoError(t, h.s.Close(context.Background()))

	store := &flakyStore{Store: inner}
	store.failNext.Store(true)

	h2 := newHarness(t, WithUser(user), WithStore(store, HistoryLimits{}))
	err := h2.s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "i/o timeout")
	assert.Empty(t, h2.s.Snapshot())
	assert.Equal(t, 0, h2.factory.OpenCalls())

	// A retry restores the saved conversation instead of starting over.
	h2.start()
	assert.Len(t, h2.s.Snapshot(), 3)
	require.NoError(t, h2.s.Close(context.Background()))

	data, err := inner.Get(context.Background(), "chat:farmer-3")
	require.NoError(t, err)
	require.NotNil(t, data)
	assert.Len(t, data.Messages, 3)
}

func TestSession_CloseWritesTranscriptWhenContextEnds(t *testing.T) {
	store := drivers.NewInMemoryStore()
	h := newHarness(t, WithStore(store, HistoryLimits{}), WithSessionID("busy"))
	h.start()
	h.send("मंडी भाव")

	// Hold the loop so Close cannot get its turn before ctx ends.
	release := make(chan struct{})
	h.loop.Post(func() { <-release })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, h.s.Close(ctx), context.Canceled)

	data, err := store.Get(context.Background(), "busy")
	require.NoError(t, err)
	require.NotNil(t, data)
	assert.Len(t, data.Messages, 2)

	close(release)
	h.flush()
	assert.ErrorIs(t, h.s.Send(context.Background(), "again"), krishi.ErrSessionClosed)
	assert.Equal(t, 0, h.clock.Pending())
}

func TestSession_PersistTrimsHistory(t *testing.T) {
	store := drivers.NewInMemoryStore()
	h := newHarness(t, WithStore(store, HistoryLimits{Messages: 2}), WithSessionID("trim"))
	h.start()
	h.send("one")
	h.send("two")
	require.NoError(t, h.s.Close(context.Background()))

	data, err := store.Get(context.Background(), "trim")
	require.NoError(t, err)
	require.Len(t, data.Messages, 2)
	assert.Equal(t, "one", data.Messages[0].Text)
	assert.Equal(t, "two", data.Messages[1].Text)
}

type stubRetriever struct {
	mu      sync.Mutex
	refs    []string
	err     error
	queries []knowledge.Query
}

func (r *stubRetriever) Lookup(ctx context.Context, q knowledge.Query) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries = append(r.queries, q)
	return r.refs, r.err
}

func TestSession_AttachesKnowledgeReferences(t *testing.T) {
	r := &stubRetriever{refs: []string{"Wheat: sow 100 kg seed per hectare."}}
	h := newHarness(t, WithRetriever(r, time.Second))
	h.start()

	h.send("crop advice for wheat")
	h.s.lookups.Wait()
	h.flush()
	h.clock.Advance(2 * time.Second)
	h.flush()

	reply := h.last()
	assert.Equal(t, fallback.Default().Classify("crop").Reply("hi"), reply.Text)
	assert.Equal(t, []string{"Wheat: sow 100 kg seed per hectare."}, reply.Metadata.References)

	r.mu.Lock()
	defer r.mu.Unlock()
	require.Len(t, r.queries, 1)
	assert.Equal(t, knowledge.Query{Text: "crop advice for wheat", Language: "hi", Topic: fallback.IntentCrop}, r.queries[0])
}

func TestSession_KnowledgeFailureIsIgnored(t *testing.T) {
	r := &stubRetriever{err: errors.New("qdrant unavailable")}
	h := newHarness(t, WithRetriever(r, time.Second))
	h.start()

	h.send("scheme")
	h.s.lookups.Wait()
	h.clock.Advance(2 * time.Second)
	h.flush()

	reply := h.last()
	assert.Equal(t, fallback.IntentScheme, reply.Metadata.Intent)
	assert.Nil(t, reply.Metadata.References)
}
