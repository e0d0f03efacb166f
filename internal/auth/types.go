package auth

import "time"

// UserType is the coarse role class stamped onto every account.
type UserType string

const (
	TypeAdmin UserType = "admin"
	TypeUser  UserType = "user"
)

// Valid reports whether the type is one of the known classes.
func (t UserType) Valid() bool {
	return t == TypeAdmin || t == TypeUser
}

// User is an identity record. RoleID is an optional reference; the role
// is shared, not owned. DeletedAt is a tombstone: soft-deleted users stay
// in storage until an explicit purge and can be restored.
type User struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Email           string     `json:"email"`
	PasswordHash    string     `json:"-"`
	Type            UserType   `json:"type"`
	RoleID          *string    `json:"role_id,omitempty"`
	EmailVerifiedAt *time.Time `json:"email_verified_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	DeletedAt       *time.Time `json:"deleted_at,omitempty"`
}

// Verified reports whether the user completed email verification.
func (u *User) Verified() bool {
	return u != nil && u.EmailVerifiedAt != nil
}

// Role is a named bundle of permission grants.
type Role struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Permissions []string   `json:"permissions,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
}

// Permission is a named capability unit. ParentID builds the two-level
// group/member tree used for seeding and catalog display only;
// authorization matches the flat name.
type Permission struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	ParentID  *string   `json:"parent_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// RolePermission links a role to a permission. Pairs are unique.
type RolePermission struct {
	RoleID       string `json:"role_id"`
	PermissionID string `json:"permission_id"`
}

// TokenType tags an ephemeral token with its purpose.
type TokenType string

const (
	TokenEmailVerification TokenType = "EMAIL_VERIFICATION"
	TokenResetPassword     TokenType = "RESET_PASSWORD"
)

// Valid reports whether the token type is known.
func (t TokenType) Valid() bool {
	return t == TokenEmailVerification || t == TokenResetPassword
}

// EphemeralToken is an opaque single-use token bound to a user and a
// purpose. It is consumed by setting ExpiresAt to the time of use, which
// keeps the row as an audit record while making replay impossible.
type EphemeralToken struct {
	Token     string    `json:"token"`
	Type      TokenType `json:"type"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Live reports whether the token is still usable at the given instant.
func (t *EphemeralToken) Live(now time.Time) bool {
	return t != nil && !now.After(t.ExpiresAt)
}

// TokenPair carries the two session credentials returned by login and
// refresh, together with their expirations.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}
