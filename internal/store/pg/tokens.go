package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"gatehouse.org/internal/auth"
)

type tokenStore struct {
	db *sql.DB
}

var _ auth.TokenStore = (*tokenStore)(nil)

func (s *tokenStore) Create(ctx context.Context, tok *auth.EphemeralToken) error {
	_, err := s.db.ExecContext(ctx, `
		insert into tokens (token, type, user_id, expires_at)
		values ($1, $2, $3, $4)
	`, tok.Token, tok.Type, tok.UserID, tok.ExpiresAt)
	if err != nil {
		return mapWriteError(err)
	}
	return nil
}

func (s *tokenStore) Find(ctx context.Context, token string, typ auth.TokenType, now time.Time) (*auth.EphemeralToken, error) {
	var tok auth.EphemeralToken
	err := s.db.QueryRowContext(ctx, `
		select token, type, user_id, expires_at, created_at
		from tokens
		where token = $1 and type = $2 and expires_at >= $3
	`, token, typ, now).Scan(&tok.Token, &tok.Type, &tok.UserID, &tok.ExpiresAt, &tok.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &tok, nil
}

func (s *tokenStore) Expire(ctx context.Context, token string, now time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		update tokens set expires_at = $2 where token = $1
	`, token, now)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// DeleteForUser is scoped to a single token type: clearing verification
// tokens must leave an in-flight password reset untouched.
func (s *tokenStore) DeleteForUser(ctx context.Context, userID string, typ auth.TokenType) error {
	_, err := s.db.ExecContext(ctx, `
		delete from tokens where user_id = $1 and type = $2
	`, userID, typ)
	return err
}
