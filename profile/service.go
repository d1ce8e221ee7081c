package profile

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/creastat/krishi"
)

// Service owns the current user. It reads the local copy once on Load and
// writes it back after every change; the remote directory is optional.
type Service struct {
	mu      sync.RWMutex
	remote  Directory
	local   *Local
	logger  *zap.Logger
	current *krishi.User
}

// NewService creates a Service. remote may be nil for an offline-only profile.
func NewService(remote Directory, local *Local, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		remote: remote,
		local:  local,
		logger: logger.Named("profile"),
	}
}

// Load reads the locally stored user, if any, and makes it current.
func (s *Service) Load() (*krishi.User, error) {
	u, err := s.local.Load()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.current = u
	s.mu.Unlock()

	if u != nil {
		s.logger.Info("profile loaded", zap.String("user_id", u.ID))
	}
	return clone(u), nil
}

// Current returns a copy of the signed-in user, or nil.
func (s *Service) Current() *krishi.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.current)
}

// Register creates the user remotely (when a directory is configured) and
// signs it in on this device.
func (s *Service) Register(ctx context.Context, u krishi.User) (*krishi.User, error) {
	var created *krishi.User
	if s.remote != nil {
		var err error
		if created, err = s.remote.Register(ctx, u); err != nil {
			return nil, err
		}
	} else {
		if u.ID == "" {
			u.ID = uuid.NewString()
		}
		if u.Language == "" {
			u.Language = krishi.DefaultLanguage
		}
		created = &u
	}

	if err := s.setCurrent(created); err != nil {
		return nil, err
	}
	s.logger.Info("user registered", zap.String("user_id", created.ID))
	return clone(created), nil
}

// SignIn makes the registered user with phone current.
func (s *Service) SignIn(ctx context.Context, phone string) (*krishi.User, error) {
	if s.remote == nil {
		return nil, fmt.Errorf("%w: no user directory configured", krishi.ErrInvalidConfig)
	}
	u, err := s.remote.GetByPhone(ctx, phone)
	if err != nil {
		return nil, err
	}
	if err := s.setCurrent(u); err != nil {
		return nil, err
	}
	return clone(u), nil
}

// Update changes the current user.
func (s *Service) Update(ctx context.Context, ch Changes) (*krishi.User, error) {
	cur := s.Current()
	if cur == nil {
		return nil, fmt.Errorf("current user: %w", krishi.ErrNotFound)
	}

	updated := cur
	if s.remote != nil {
		var err error
		if updated, err = s.remote.Update(ctx, cur.ID, ch); err != nil {
			return nil, err
		}
	} else {
		ch.Apply(updated)
	}

	if err := s.setCurrent(updated); err != nil {
		return nil, err
	}
	return clone(updated), nil
}

// Refresh reloads the current user from the directory.
func (s *Service) Refresh(ctx context.Context) (*krishi.User, error) {
	cur := s.Current()
	if cur == nil || s.remote == nil {
		return cur, nil
	}
	u, err := s.remote.Get(ctx, cur.ID)
	if err != nil {
		return nil, err
	}
	if err := s.setCurrent(u); err != nil {
		return nil, err
	}
	return clone(u), nil
}

// SignOut forgets the current user on this device.
func (s *Service) SignOut() error {
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()
	return s.local.Clear()
}

// Delete removes the current user from the directory and signs out on this
// device.
func (s *Service) Delete(ctx context.Context) error {
	cur := s.Current()
	if cur == nil {
		return fmt.Errorf("current user: %w", krishi.ErrNotFound)
	}
	if s.remote != nil {
		if err := s.remote.Delete(ctx, cur.ID); err != nil {
			return err
		}
	}
	if err := s.SignOut(); err != nil {
		return err
	}
	s.logger.Info("user deleted", zap.String("user_id", cur.ID))
	return nil
}

// Close closes the remote directory.
func (s *Service) Close() error {
	if s.remote == nil {
		return nil
	}
	return s.remote.Close()
}

func (s *Service) setCurrent(u *krishi.User) error {
	if err := s.local.Save(*u); err != nil {
		return err
	}
	s.mu.Lock()
	s.current = clone(u)
	s.mu.Unlock()
	return nil
}

func clone(u *krishi.User) *krishi.User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}
