package user

import (
	"context"
	"time"

	"github.com/sudo-init-do/servicehub/internal/lifecycle"
)

// User is the local mirror of a principal issued by the identity provider.
type User struct {
	ID        string         `json:"id" bson:"_id"`
	Name      string         `json:"name" bson:"name"`
	Email     string         `json:"email" bson:"email"`
	Role      lifecycle.Role `json:"role" bson:"role"`
	IsBlocked bool           `json:"is_blocked" bson:"is_blocked"`
	CreatedAt time.Time      `json:"created_at" bson:"created_at"`
}

// Store persists local principals. Missing users surface as lifecycle.ErrNotFound.
type Store interface {
	// EnsureUser inserts u unless a user with the same ID exists, and returns
	// the stored record either way.
	EnsureUser(ctx context.Context, u *User) (*User, error)
	GetUser(ctx context.Context, id string) (*User, error)
	ListUsers(ctx context.Context) ([]User, error)
	SetBlocked(ctx context.Context, id string, blocked bool) error
	SetRole(ctx context.Context, id string, role lifecycle.Role) error
	UpdateName(ctx context.Context, id, name string) error
}
