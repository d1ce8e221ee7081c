// Package profile keeps the farmer's profile: a remote directory of users and
// a local copy of the user signed in on this device.
package profile

import (
	"context"

	"github.com/creastat/krishi"
)

// Directory is the remote user registry.
type Directory interface {
	// Register creates a user. A taken phone number returns krishi.ErrAlreadyExists.
	Register(ctx context.Context, u krishi.User) (*krishi.User, error)

	// Get returns the user with id, or krishi.ErrNotFound.
	Get(ctx context.Context, id string) (*krishi.User, error)

	// GetByPhone returns the user registered with phone, or krishi.ErrNotFound.
	GetByPhone(ctx context.Context, phone string) (*krishi.User, error)

	// Update applies the non-nil fields of ch and returns the updated user.
	Update(ctx context.Context, id string, ch Changes) (*krishi.User, error)

	// Delete removes the user.
	Delete(ctx context.Context, id string) error

	// Close releases resources
	Close() error
}

// Changes is a partial profile update. Nil fields are left untouched.
type Changes struct {
	Name     *string
	Language *string
	State    *string
	District *string
	Village  *string
	LandArea *float64
}

// Empty reports whether ch changes nothing.
func (ch Changes) Empty() bool {
	return ch.Name == nil && ch.Language == nil && ch.State == nil &&
		ch.District == nil && ch.Village == nil && ch.LandArea == nil
}

// Apply writes the set fields of ch onto u.
func (ch Changes) Apply(u *krishi.User) {
	if ch.Name != nil {
		u.Name = *ch.Name
	}
	if ch.Language != nil {
		u.Language = *ch.Language
	}
	if ch.State != nil {
		u.State = *ch.State
	}
	if ch.District != nil {
		u.District = *ch.District
	}
	if ch.Village != nil {
		u.Village = *ch.Village
	}
	if ch.LandArea != nil {
		u.LandArea = *ch.LandArea
	}
}

// columns returns the set fields keyed by users table column.
func (ch Changes) columns() map[string]any {
	cols := make(map[string]any)
	if ch.Name != nil {
		cols["name"] = *ch.Name
	}
	if ch.Language != nil {
		cols["language"] = *ch.Language
	}
	if ch.State != nil {
		cols["state"] = *ch.State
	}
	if ch.District != nil {
		cols["district"] = *ch.District
	}
	if ch.Village != nil {
		cols["village"] = *ch.Village
	}
	if ch.LandArea != nil {
		cols["land_area"] = *ch.LandArea
	}
	return cols
}
