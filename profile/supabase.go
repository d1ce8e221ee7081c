package profile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/supabase-community/supabase-go"

	"github.com/creastat/krishi"
)

const usersTable = "users"

// SupabaseConfig holds Supabase connection configuration
type SupabaseConfig struct {
	URL      string
	APIKey   string
	CacheTTL time.Duration // Default: 5 minutes
}

// Supabase implements Directory on a Supabase users table.
type Supabase struct {
	client *supabase.Client
	cache  *cache
}

// cache holds recently read users by id and by phone number.
type cache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	now     func() time.Time
	byID    map[string]cacheEntry
	byPhone map[string]cacheEntry
}

type cacheEntry struct {
	user      krishi.User
	expiresAt time.Time
}

func newCache(ttl time.Duration) *cache {
	return &cache{
		ttl:     ttl,
		now:     time.Now,
		byID:    make(map[string]cacheEntry),
		byPhone: make(map[string]cacheEntry),
	}
}

// NewSupabase creates a Supabase-backed directory.
func NewSupabase(cfg SupabaseConfig) (*Supabase, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("%w: supabase URL is required", krishi.ErrInvalidConfig)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: supabase API key is required", krishi.ErrInvalidConfig)
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 5 * time.Minute
	}

	client, err := supabase.NewClient(cfg.URL, cfg.APIKey, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}

	return &Supabase{client: client, cache: newCache(cfg.CacheTTL)}, nil
}

// Register implements Directory.
func (s *Supabase) Register(ctx context.Context, u krishi.User) (*krishi.User, error) {
	if u.PhoneNumber == "" {
		return nil, fmt.Errorf("%w: phone number is required", krishi.ErrInvalidConfig)
	}

	if _, err := s.GetByPhone(ctx, u.PhoneNumber); err == nil {
		return nil, fmt.Errorf("user with phone %s: %w", u.PhoneNumber, krishi.ErrAlreadyExists)
	} else if !errors.Is(err, krishi.ErrNotFound) {
		return nil, err
	}

	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Language == "" {
		u.Language = krishi.DefaultLanguage
	}

	var rows []krishi.User
	_, err := s.client.From(usersTable).
		Insert(u, false, "", "representation", "").
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("failed to register user: %w", err)
	}

	created := u
	if len(rows) > 0 {
		created = rows[0]
	}
	s.cache.put(created)
	return &created, nil
}

// Get implements Directory.
func (s *Supabase) Get(ctx context.Context, id string) (*krishi.User, error) {
	if u, ok := s.cache.get(s.cache.byID, id); ok {
		return u, nil
	}
	return s.selectOne("id", id)
}

// GetByPhone implements Directory.
func (s *Supabase) GetByPhone(ctx context.Context, phone string) (*krishi.User, error) {
	if u, ok := s.cache.get(s.cache.byPhone, phone); ok {
		return u, nil
	}
	return s.selectOne("phone_number", phone)
}

func (s *Supabase) selectOne(column, value string) (*krishi.User, error) {
	var rows []krishi.User
	_, err := s.client.From(usersTable).
		Select("*", "", false).
		Eq(column, value).
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("failed to get user by %s: %w", column, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("user %s=%s: %w", column, value, krishi.ErrNotFound)
	}

	u := rows[0]
	s.cache.put(u)
	return &u, nil
}

// Update implements Directory.
func (s *Supabase) Update(ctx context.Context, id string, ch Changes) (*krishi.User, error) {
	if ch.Empty() {
		return s.Get(ctx, id)
	}

	var rows []krishi.User
	_, err := s.client.From(usersTable).
		Update(ch.columns(), "representation", "").
		Eq("id", id).
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("user %s: %w", id, krishi.ErrNotFound)
	}

	s.cache.drop(id)
	u := rows[0]
	s.cache.put(u)
	return &u, nil
}

// Delete implements Directory.
func (s *Supabase) Delete(ctx context.Context, id string) error {
	_, _, err := s.client.From(usersTable).
		Delete("minimal", "").
		Eq("id", id).
		Execute()
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	s.cache.drop(id)
	return nil
}

// Close implements Directory.
func (s *Supabase) Close() error {
	// Supabase client doesn't require explicit close
	return nil
}

func (c *cache) get(m map[string]cacheEntry, key string) (*krishi.User, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := m[key]
	if !ok || !c.now().Before(e.expiresAt) {
		return nil, false
	}
	u := e.user
	return &u, true
}

func (c *cache) put(u krishi.User) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := cacheEntry{user: u, expiresAt: c.now().Add(c.ttl)}
	if u.ID != "" {
		c.byID[u.ID] = e
	}
	if u.PhoneNumber != "" {
		c.byPhone[u.PhoneNumber] = e
	}
}

// drop evicts id and the phone number it was cached under.
func (c *cache) drop(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.byID[id]; ok {
		delete(c.byPhone, e.user.PhoneNumber)
		delete(c.byID, id)
	}
}

// Compile-time check that Supabase implements Directory
var _ Directory = (*Supabase)(nil)
