// Package loop provides the single-actor dispatcher every chat session runs on.
//
// All state belonging to a session is touched only from tasks executed by its
// Loop, so none of that state needs its own locking. Producers on other
// goroutines (socket readers, timers, the REPL) hand work over with Post.
package loop

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/creastat/krishi"
)

// Loop executes posted tasks one at a time, in post order.
type Loop struct {
	clock  Clock
	logger *zap.Logger

	mu      sync.Mutex
	queue   []func()
	stopped bool
	notify  chan struct{}

	done     chan struct{}
	stopOnce sync.Once
}

// Option configures a Loop.
type Option func(*Loop)

// WithClock sets the clock used by After. Defaults to System().
func WithClock(c Clock) Option {
	return func(l *Loop) {
		l.clock = c
	}
}

// WithLogger sets the logger used to report recovered task panics.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Loop) {
		l.logger = logger
	}
}

// New creates a Loop. Nothing runs until Run is called.
func New(opts ...Option) *Loop {
	l := &Loop{
		clock:  System(),
		logger: zap.NewNop(),
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Clock returns the loop's clock.
func (l *Loop) Clock() Clock { return l.clock }

// Run drains tasks until ctx is cancelled or Stop is called.
// Tasks still queued at that point are discarded.
func (l *Loop) Run(ctx context.Context) error {
	defer l.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.done:
			return nil
		case <-l.notify:
		}

		for {
			task, ok := l.next()
			if !ok {
				break
			}
			l.exec(task)
		}
	}
}

func (l *Loop) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.stopped || len(l.queue) == 0 {
		return nil, false
	}
	task := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return task, true
}

func (l *Loop) exec(task func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("loop task panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()
	task()
}

// Post enqueues fn without waiting for it to run.
// It reports false if the loop has been stopped.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.notify <- struct{}{}:
	default:
	}
	return true
}

// Call posts fn and waits until it has run.
// It must not be called from a task running on the same loop.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	ran := make(chan struct{})
	if !l.Post(func() {
		defer close(ran)
		fn()
	}) {
		return krishi.ErrSessionClosed
	}

	select {
	case <-ran:
		return nil
	case <-l.done:
		// Stop may race with a task that already finished.
		select {
		case <-ran:
			return nil
		default:
			return krishi.ErrSessionClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// After schedules fn to be posted onto the loop once d has elapsed.
// Stopping the returned timer from a loop task guarantees fn will not run,
// even if the underlying clock already fired.
func (l *Loop) After(d time.Duration, fn func()) Timer {
	t := &loopTimer{}
	t.inner = l.clock.AfterFunc(d, func() {
		l.Post(func() {
			if t.cancelled.Load() {
				return
			}
			fn()
		})
	})
	return t
}

// Stop discards queued tasks and makes further Post calls fail.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() {
		l.mu.Lock()
		l.stopped = true
		l.queue = nil
		l.mu.Unlock()
		close(l.done)
	})
}

// Done is closed once the loop has stopped.
func (l *Loop) Done() <-chan struct{} { return l.done }

type loopTimer struct {
	inner     Timer
	cancelled atomic.Bool
}

func (t *loopTimer) Stop() bool {
	if t.cancelled.Swap(true) {
		return false
	}
	return t.inner.Stop()
}
