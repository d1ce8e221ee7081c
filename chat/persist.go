package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/creastat/krishi"
	"github.com/creastat/krishi/session"
)

const persistTimeout = 5 * time.Second

// persister writes transcript snapshots on its own goroutine so store latency
// never holds up the loop. Only the newest pending snapshot is written.
type persister struct {
	store  session.Store
	logger *zap.Logger

	mu      sync.Mutex
	latest  *session.SessionData
	version int64 // 0 until the session exists in the store

	signal chan struct{}
	quit   chan struct{}
	done   chan struct{}
	once   sync.Once
}

func newPersister(store session.Store, logger *zap.Logger) *persister {
	p := &persister{
		store:  store,
		logger: logger.Named("persist"),
		signal: make(chan struct{}, 1),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go p.run()
	return p
}

// resume records the version of a session read back from the store.
func (p *persister) resume(version int64) {
	p.mu.Lock()
	p.version = version
	p.mu.Unlock()
}

func (p *persister) enqueue(data *session.SessionData) {
	p.mu.Lock()
	p.latest = data
	p.mu.Unlock()

	select {
	case p.signal <- struct{}{}:
	default:
	}
}

// stop writes whatever is still pending and waits for the goroutine to exit.
func (p *persister) stop() {
	p.once.Do(func() { close(p.quit) })
	<-p.done
}

func (p *persister) run() {
	defer close(p.done)
	for {
		select {
		case <-p.signal:
			p.flush()
		case <-p.quit:
			p.flush()
			return
		}
	}
}

func (p *persister) flush() {
	p.mu.Lock()
	data := p.latest
	p.latest = nil
	version := p.version
	p.mu.Unlock()

	if data == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	v, err := p.write(ctx, data, version)
	if err != nil {
		p.logger.Warn("failed to persist session",
			zap.String("session_id", data.ID),
			zap.Int("messages", len(data.Messages)),
			zap.Error(err))
		return
	}

	p.mu.Lock()
	p.version = v
	p.mu.Unlock()
}

// write stores data and returns the new version. A conflict means another
// writer got there first; the local transcript wins and is written on top.
func (p *persister) write(ctx context.Context, data *session.SessionData, version int64) (int64, error) {
	if version == 0 {
		err := p.store.Create(ctx, data)
		if err == nil {
			return data.Version, nil
		}
		if !errors.Is(err, krishi.ErrAlreadyExists) {
			return 0, err
		}
	} else {
		data.Version = version
		err := p.store.Update(ctx, data)
		if err == nil {
			return data.Version, nil
		}
		if !errors.Is(err, krishi.ErrVersionConflict) && !errors.Is(err, krishi.ErrNotFound) {
			return 0, err
		}
	}

	current, err := p.store.Get(ctx, data.ID)
	if err != nil {
		return 0, err
	}
	if current == nil {
		data.Version = 0
		if err := p.store.Create(ctx, data); err != nil {
			return 0, err
		}
		return data.Version, nil
	}

	p.logger.Debug("session version moved, overwriting",
		zap.String("session_id", data.ID),
		zap.Int64("expected", version),
		zap.Int64("stored", current.Version))
	data.Version = current.Version
	if err := p.store.Update(ctx, data); err != nil {
		return 0, err
	}
	return data.Version, nil
}
