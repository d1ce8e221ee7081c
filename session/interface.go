package session

import "context"

// Store persists chat sessions so a conversation survives restarts.
type Store interface {
	// Create stores a new session with Version set to 1.
	// Returns krishi.ErrAlreadyExists if the ID is taken.
	Create(ctx context.Context, data *SessionData) error

	// Get retrieves a session by ID.
	// Returns nil if the session is not found (not an error).
	Get(ctx context.Context, id string) (*SessionData, error)

	// Update replaces a stored session using optimistic locking: the stored
	// Version must equal data.Version, which is then incremented along with
	// UpdatedAt. Returns krishi.ErrVersionConflict on mismatch and
	// krishi.ErrNotFound if the session does not exist.
	Update(ctx context.Context, data *SessionData) error

	// Delete removes a session by ID.
	Delete(ctx context.Context, id string) error

	// Close releases any resources held by the store.
	Close() error
}
