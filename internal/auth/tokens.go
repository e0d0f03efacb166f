package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

const (
	// 16 random bytes hex-encoded: 128 bits of entropy per token.
	tokenByteLength = 16
	tokenTTL        = 24 * time.Hour
)

// TokenManager creates, resolves and invalidates ephemeral single-use
// tokens. Tokens are independent rows keyed by their random string, so
// no locking beyond per-row store atomicity is needed.
type TokenManager struct {
	store TokenStore
	now   func() time.Time
}

// NewTokenManager constructs a TokenManager backed by the given store.
func NewTokenManager(store TokenStore) (*TokenManager, error) {
	if store == nil {
		return nil, errors.New("token store is required")
	}
	return &TokenManager{store: store, now: time.Now}, nil
}

// WithClock overrides the time source; test use only.
func (m *TokenManager) WithClock(fn func() time.Time) *TokenManager {
	if fn != nil {
		m.now = fn
	}
	return m
}

// Generate mints an opaque token bound to the user and purpose, valid
// for 24 hours from creation.
func (m *TokenManager) Generate(ctx context.Context, userID string, typ TokenType) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if !typ.Valid() {
		return "", fmt.Errorf("%w: unknown token type %q", ErrInvalidInput, typ)
	}
	buf := make([]byte, tokenByteLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	now := m.now().UTC()
	tok := &EphemeralToken{
		Token:     hex.EncodeToString(buf),
		Type:      typ,
		UserID:    userID,
		ExpiresAt: now.Add(tokenTTL),
		CreatedAt: now,
	}
	if err := m.store.Create(ctx, tok); err != nil {
		return "", err
	}
	return tok.Token, nil
}

// Find resolves a raw token restricted to the given type. Expired or
// unknown tokens come back as ErrNotFound; callers translate that into
// their own domain error so clients cannot tell "never existed" from
// "expired".
func (m *TokenManager) Find(ctx context.Context, token string, typ TokenType) (*EphemeralToken, error) {
	if token == "" || !typ.Valid() {
		return nil, ErrNotFound
	}
	return m.store.Find(ctx, token, typ, m.now().UTC())
}

// Expire consumes a token by moving its expiry to now. The row survives
// as an audit record but the token can never be used again.
func (m *TokenManager) Expire(ctx context.Context, token string) error {
	if token == "" {
		return fmt.Errorf("%w: token is required", ErrInvalidInput)
	}
	return m.store.Expire(ctx, token, m.now().UTC())
}

// ClearForUser invalidates outstanding tokens of the given type before a
// new one is issued. Deletion is scoped to the type: clearing
// verification tokens must not destroy an in-flight password reset.
func (m *TokenManager) ClearForUser(ctx context.Context, userID string, typ TokenType) error {
	if userID == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if !typ.Valid() {
		return fmt.Errorf("%w: unknown token type %q", ErrInvalidInput, typ)
	}
	return m.store.DeleteForUser(ctx, userID, typ)
}
