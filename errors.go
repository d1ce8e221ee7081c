package krishi

import "errors"

// Common errors shared by the session, storage and profile packages.
var (
	ErrInvalidConfig    = errors.New("invalid configuration")
	ErrInvalidStoreType = errors.New("invalid store type")
	ErrVersionConflict  = errors.New("session version conflict")
	ErrNotFound         = errors.New("not found")
	ErrAlreadyExists    = errors.New("already exists")
	ErrDuplicateMessage = errors.New("duplicate message id")
	ErrSessionClosed    = errors.New("session closed")
	ErrEmptyMessage     = errors.New("message cannot be empty")
)
