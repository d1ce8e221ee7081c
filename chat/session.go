// Package chat runs one farmer conversation.
//
// A Session ties the pieces together: it seeds the transcript with a welcome,
// keeps the backend stream open through the reconnect controller, routes each
// outgoing message either over the stream or to the canned fallback, and
// records replies. Everything that touches session state runs on the
// session's loop; the exported methods hand work over with loop.Call.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/creastat/krishi"
	"github.com/creastat/krishi/fallback"
	"github.com/creastat/krishi/knowledge"
	"github.com/creastat/krishi/loop"
	"github.com/creastat/krishi/reconnect"
	"github.com/creastat/krishi/session"
	"github.com/creastat/krishi/transport"
)

// Retriever finds knowledge snippets for the fallback path.
type Retriever interface {
	Lookup(ctx context.Context, q knowledge.Query) ([]string, error)
}

// Session is one conversation. Create it with New, then call Start.
type Session struct {
	loop       *loop.Loop
	ctrl       *reconnect.Controller
	transcript *session.Transcript
	logger     *zap.Logger

	classifier *fallback.Classifier
	latency    fallback.Latency
	intn       func(int64) int64

	retriever     Retriever
	lookupTimeout time.Duration
	lookups       sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc

	store     session.Store
	persist   *persister
	limits    HistoryLimits
	id        string
	createdAt time.Time

	observers []func(Event)
	ctrlOpts  []reconnect.Option

	// Loop-owned state.
	user         *krishi.User
	language     string
	bootstrapped bool
	started      bool
	closed       bool
	replies      map[uint64]*pendingReply
	nextReply    uint64
}

// HistoryLimits bounds the persisted transcript. Zero disables a bound.
type HistoryLimits struct {
	Messages int
	Tokens   int
}

type pendingReply struct {
	timer loop.Timer
	refs  []string
}

// Option configures a Session.
type Option func(*Session)

// WithUser sets the signed-in user. Without one the session is anonymous.
func WithUser(u *krishi.User) Option {
	return func(s *Session) {
		if u != nil {
			c := *u
			s.user = &c
		}
	}
}

// WithLanguage sets the language used when the user has none.
func WithLanguage(lang string) Option {
	return func(s *Session) {
		if lang != "" {
			s.language = lang
		}
	}
}

// WithClassifier replaces the default keyword table.
func WithClassifier(c *fallback.Classifier) Option {
	return func(s *Session) {
		s.classifier = c
	}
}

// WithFallbackLatency sets the simulated reply delay range.
func WithFallbackLatency(l fallback.Latency) Option {
	return func(s *Session) {
		s.latency = l
	}
}

// WithRand sets the source for fallback delays. intn must return [0, n).
func WithRand(intn func(n int64) int64) Option {
	return func(s *Session) {
		s.intn = intn
	}
}

// WithLogger sets the session logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithReconnect passes options to the reconnect controller.
func WithReconnect(opts ...reconnect.Option) Option {
	return func(s *Session) {
		s.ctrlOpts = append(s.ctrlOpts, opts...)
	}
}

// WithObserver registers fn for every transcript and connection event.
// fn runs on the session loop and must not block.
func WithObserver(fn func(Event)) Option {
	return func(s *Session) {
		s.observers = append(s.observers, fn)
	}
}

// WithStore persists the transcript to store, trimmed to limits.
func WithStore(store session.Store, limits HistoryLimits) Option {
	return func(s *Session) {
		s.store = store
		s.limits = limits
	}
}

// WithSessionID overrides the persisted session key.
func WithSessionID(id string) Option {
	return func(s *Session) {
		s.id = id
	}
}

// WithRetriever attaches knowledge snippets to fallback replies.
func WithRetriever(r Retriever, timeout time.Duration) Option {
	return func(s *Session) {
		s.retriever = r
		if timeout > 0 {
			s.lookupTimeout = timeout
		}
	}
}

// New creates a session on l. Adapters for the backend stream come from factory.
// The caller runs l.
func New(l *loop.Loop, factory transport.Factory, opts ...Option) *Session {
	s := &Session{
		loop:          l,
		transcript:    session.NewTranscript(),
		logger:        zap.NewNop(),
		classifier:    fallback.Default(),
		latency:       fallback.DefaultLatency,
		lookupTimeout: 2 * time.Second,
		language:      krishi.DefaultLanguage,
		replies:       make(map[uint64]*pendingReply),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("chat")
	s.ctx, s.cancel = context.WithCancel(context.Background())

	if s.user != nil {
		s.language = s.user.LanguageOr(s.language)
	}
	if s.id == "" {
		s.id = "chat:" + s.clientID()
	}

	ctrlOpts := append([]reconnect.Option{
		reconnect.WithLogger(s.logger),
		reconnect.OnStateChange(s.handleState),
		reconnect.OnMessage(s.handleFrame),
	}, s.ctrlOpts...)
	s.ctrl = reconnect.New(l, factory, ctrlOpts...)

	if s.store != nil {
		s.persist = newPersister(s.store, s.logger)
	}
	return s
}

// ID returns the persisted session key.
func (s *Session) ID() string { return s.id }

// Start restores a persisted conversation if there is one, seeds the welcome
// and opens the backend stream. Calling it again is a no-op.
//
// A failed store read leaves the session unstarted so the stored transcript
// is never overwritten by a fresh one; Start may be retried.
func (s *Session) Start(ctx context.Context) error {
	var restored *session.SessionData
	if s.store != nil {
		data, err := s.store.Get(ctx, s.id)
		if err != nil {
			s.logger.Warn("could not restore session", zap.String("session_id", s.id), zap.Error(err))
			return fmt.Errorf("restore session %s: %w", s.id, err)
		}
		restored = data
	}

	return s.loop.Call(ctx, func() {
		if s.closed || s.started {
			return
		}
		s.started = true

		if restored != nil {
			s.restore(restored)
		} else {
			s.createdAt = s.loop.Clock().Now()
		}

		s.bootstrap()
		s.ctrl.Connect(s.clientID())
	})
}

// Bootstrap seeds the welcome message. Only the first call per session appends.
func (s *Session) Bootstrap(ctx context.Context) error {
	return s.loop.Call(ctx, func() {
		if s.closed {
			return
		}
		s.bootstrap()
	})
}

// Send submits a text message in the session language.
func (s *Session) Send(ctx context.Context, text string) error {
	return s.submit(ctx, text, krishi.KindText, "")
}

// SendVoice submits the transcript of a voice note recorded at audioRef.
func (s *Session) SendVoice(ctx context.Context, text, audioRef string) error {
	return s.submit(ctx, text, krishi.KindVoice, audioRef)
}

func (s *Session) submit(ctx context.Context, text string, kind krishi.Kind, audioRef string) error {
	if strings.TrimSpace(text) == "" {
		return krishi.ErrEmptyMessage
	}

	var err error
	callErr := s.loop.Call(ctx, func() {
		if s.closed {
			err = krishi.ErrSessionClosed
			return
		}
		err = s.resolve(text, kind, audioRef)
	})
	if callErr != nil {
		return callErr
	}
	return err
}

// SetLanguage changes the language declared on outgoing messages.
func (s *Session) SetLanguage(ctx context.Context, lang string) error {
	if lang == "" {
		return fmt.Errorf("%w: empty language", krishi.ErrInvalidConfig)
	}
	return s.loop.Call(ctx, func() {
		s.language = lang
	})
}

// Language returns the language declared on outgoing messages.
func (s *Session) Language(ctx context.Context) (string, error) {
	var lang string
	err := s.loop.Call(ctx, func() { lang = s.language })
	return lang, err
}

// State returns the connection state.
func (s *Session) State(ctx context.Context) (krishi.ConnState, error) {
	var st krishi.ConnState
	err := s.loop.Call(ctx, func() { st = s.ctrl.State() })
	return st, err
}

// Snapshot returns a copy of the transcript. It is safe from any goroutine.
func (s *Session) Snapshot() []krishi.Message {
	return s.transcript.Snapshot()
}

// Clear empties the transcript and drops replies still waiting on their delay.
// The welcome is not re-seeded.
func (s *Session) Clear(ctx context.Context) error {
	return s.loop.Call(ctx, func() {
		if s.closed {
			return
		}
		s.cancelReplies()
		s.transcript.Clear()
		s.emit(Event{Type: EventCleared})
		s.save()
	})
}

// Close stops the stream, cancels pending fallback replies and writes the
// final transcript. Replies that arrive later are dropped.
//
// If ctx ends before the loop picks up the close, the stream is stopped once
// the loop gets to it; the final transcript is written either way.
func (s *Session) Close(ctx context.Context) error {
	err := s.loop.Call(ctx, func() {
		if s.closed {
			return
		}
		s.closed = true
		s.cancelReplies()
		s.ctrl.Stop()
	})

	s.cancel()
	s.lookups.Wait()
	if s.persist != nil {
		s.persist.stop()
	}

	if err != nil && !errors.Is(err, krishi.ErrSessionClosed) {
		return err
	}
	return nil
}

func (s *Session) clientID() string {
	return s.user.ClientID()
}

func (s *Session) userID() string {
	if s.user == nil {
		return ""
	}
	return s.user.ID
}

func (s *Session) restore(data *session.SessionData) {
	s.transcript.Restore(data.Messages)
	s.bootstrapped = data.Bootstrapped
	s.createdAt = data.CreatedAt
	if data.Language != "" && s.user == nil {
		s.language = data.Language
	}
	if s.persist != nil {
		s.persist.resume(data.Version)
	}
	s.logger.Info("session restored",
		zap.String("session_id", s.id),
		zap.Int("messages", s.transcript.Len()))
	s.emit(Event{Type: EventRestored})
}

// appendMessage records msg and notifies observers.
func (s *Session) appendMessage(msg krishi.Message) {
	if err := s.transcript.Append(msg); err != nil {
		s.logger.Error("dropping message", zap.String("id", msg.ID), zap.Error(err))
		return
	}
	m := msg.Clone()
	s.emit(Event{Type: EventMessage, Message: &m})
	s.save()
}

func (s *Session) handleState(st krishi.ConnState) {
	s.logger.Debug("connection state", zap.Stringer("state", st))
	s.emit(Event{Type: EventState, State: st})
}

func (s *Session) emit(ev Event) {
	for _, fn := range s.observers {
		fn(ev)
	}
}

func (s *Session) save() {
	if s.persist == nil {
		return
	}
	s.persist.enqueue(&session.SessionData{
		ID:           s.id,
		UserID:       s.userID(),
		Language:     s.language,
		CreatedAt:    s.createdAt,
		Bootstrapped: s.bootstrapped,
		Messages:     krishi.TruncateHistory(s.transcript.Snapshot(), s.limits.Tokens, s.limits.Messages),
	})
}
