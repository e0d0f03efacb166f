package auth

import (
	"context"
	"time"
)

// Store describes persistence operations required by the auth subsystem.
type Store interface {
	Users() UserStore
	Roles() RoleStore
	Permissions() PermissionStore
	Tokens() TokenStore
}

// UserUpdate carries optional field changes; nil means untouched.
type UserUpdate struct {
	Name         *string
	Email        *string
	PasswordHash *string
	Type         *UserType
	RoleID       *string
}

// UserStore manages identity records.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	Find(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context, limit, offset int) ([]*User, int, error)
	Update(ctx context.Context, id string, upd UserUpdate) (*User, error)
	SetEmailVerified(ctx context.Context, id string, at time.Time) error
	SetPassword(ctx context.Context, id, passwordHash string) error
	SoftDelete(ctx context.Context, id string, at time.Time) error
	Restore(ctx context.Context, id string) error
	Purge(ctx context.Context, id string) error
}

// RoleUpdate carries optional role field changes.
type RoleUpdate struct {
	Name        *string
	Description *string
}

// RoleStore manages roles and their permission grants.
type RoleStore interface {
	Create(ctx context.Context, role *Role, permissionNames []string) error
	Find(ctx context.Context, id string) (*Role, error)
	List(ctx context.Context, limit, offset int) ([]*Role, int, error)
	Update(ctx context.Context, id string, upd RoleUpdate, permissionNames []string) (*Role, error)
	SoftDelete(ctx context.Context, id string, at time.Time) error
	Restore(ctx context.Context, id string) error
	// HasPermission reports whether the role holds a grant whose
	// permission name matches exactly. Soft-deleted roles grant nothing.
	HasPermission(ctx context.Context, roleID, permissionName string) (bool, error)
	PermissionNames(ctx context.Context, roleID string) ([]string, error)
}

// PermissionStore manages the shared permission catalog.
type PermissionStore interface {
	// Ensure upserts the catalog entries by name, wiring parent
	// references. Names are globally unique.
	Ensure(ctx context.Context, groups map[string][]string) error
	List(ctx context.Context) ([]Permission, error)
	FindByNames(ctx context.Context, names []string) ([]Permission, error)
}

// TokenStore manages ephemeral single-use tokens.
type TokenStore interface {
	Create(ctx context.Context, tok *EphemeralToken) error
	// Find returns the token only when it matches the type and is not
	// expired at the given instant. Absence is reported as ErrNotFound.
	Find(ctx context.Context, token string, typ TokenType, now time.Time) (*EphemeralToken, error)
	// Expire sets expires_at to now, keeping the row for audit.
	Expire(ctx context.Context, token string, now time.Time) error
	// DeleteForUser removes outstanding tokens of the given type only.
	DeleteForUser(ctx context.Context, userID string, typ TokenType) error
}
