package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"gatehouse.org/internal/auth"
	"gatehouse.org/internal/ids"
)

type userStore struct {
	db *sql.DB
}

var _ auth.UserStore = (*userStore)(nil)

const userColumns = `id, name, email, password_hash, type, role_id, email_verified_at, created_at, updated_at, deleted_at`

func scanUser(row interface{ Scan(...any) error }) (*auth.User, error) {
	var u auth.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Type, &u.RoleID,
		&u.EmailVerifiedAt, &u.CreatedAt, &u.UpdatedAt, &u.DeletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *userStore) Create(ctx context.Context, u *auth.User) error {
	if u.ID == "" {
		u.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx, `
		insert into users (id, name, email, password_hash, type, role_id, email_verified_at)
		values ($1, $2, $3, $4, $5, $6, $7)
	`, u.ID, u.Name, u.Email, u.PasswordHash, u.Type, u.RoleID, u.EmailVerifiedAt)
	if err != nil {
		return mapWriteError(err)
	}
	return nil
}

func (s *userStore) Find(ctx context.Context, id string) (*auth.User, error) {
	row := s.db.QueryRowContext(ctx, `
		select `+userColumns+` from users
		where id = $1 and deleted_at is null
	`, id)
	return scanUser(row)
}

func (s *userStore) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	row := s.db.QueryRowContext(ctx, `
		select `+userColumns+` from users
		where email = $1 and deleted_at is null
	`, email)
	return scanUser(row)
}

func (s *userStore) List(ctx context.Context, limit, offset int) ([]*auth.User, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.db.QueryContext(ctx, `
		select `+userColumns+` from users
		where deleted_at is null
		order by created_at desc
		limit $1 offset $2
	`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []*auth.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `select count(*) from users where deleted_at is null`).Scan(&total); err != nil {
		return nil, 0, err
	}
	return result, total, nil
}

func (s *userStore) Update(ctx context.Context, id string, upd auth.UserUpdate) (*auth.User, error) {
	var (
		setClauses []string
		args       []any
		idx        = 1
	)
	if upd.Name != nil {
		setClauses = append(setClauses, fmt.Sprintf("name = $%d", idx))
		args = append(args, *upd.Name)
		idx++
	}
	if upd.Email != nil {
		setClauses = append(setClauses, fmt.Sprintf("email = $%d", idx))
		args = append(args, *upd.Email)
		idx++
	}
	if upd.PasswordHash != nil {
		setClauses = append(setClauses, fmt.Sprintf("password_hash = $%d", idx))
		args = append(args, *upd.PasswordHash)
		idx++
	}
	if upd.Type != nil {
		setClauses = append(setClauses, fmt.Sprintf("type = $%d", idx))
		args = append(args, *upd.Type)
		idx++
	}
	if upd.RoleID != nil {
		setClauses = append(setClauses, fmt.Sprintf("role_id = nullif($%d, '')", idx))
		args = append(args, *upd.RoleID)
		idx++
	}
	if len(setClauses) > 0 {
		setClauses = append(setClauses, "updated_at = now()")
		query := fmt.Sprintf(`update users set %s where id = $%d and deleted_at is null`,
			strings.Join(setClauses, ", "), idx)
		args = append(args, id)
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return nil, mapWriteError(err)
		}
		if aff, err := res.RowsAffected(); err == nil && aff == 0 {
			return nil, auth.ErrNotFound
		}
	}
	return s.Find(ctx, id)
}

func (s *userStore) SetEmailVerified(ctx context.Context, id string, at time.Time) error {
	// Verification happens exactly once; a second write is a no-op at
	// the row level but still reports success to the idempotent caller.
	res, err := s.db.ExecContext(ctx, `
		update users set email_verified_at = coalesce(email_verified_at, $2), updated_at = now()
		where id = $1 and deleted_at is null
	`, id, at)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *userStore) SetPassword(ctx context.Context, id, passwordHash string) error {
	res, err := s.db.ExecContext(ctx, `
		update users set password_hash = $2, updated_at = now()
		where id = $1 and deleted_at is null
	`, id, passwordHash)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *userStore) SoftDelete(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		update users set deleted_at = $2, updated_at = now()
		where id = $1 and deleted_at is null
	`, id, at)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *userStore) Restore(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		update users set deleted_at = null, updated_at = now()
		where id = $1 and deleted_at is not null
	`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// Purge hard-destroys the row; ephemeral tokens go with it via the
// on delete cascade on tokens.user_id.
func (s *userStore) Purge(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from users where id = $1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func requireAffected(res sql.Result) error {
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return auth.ErrNotFound
	}
	return nil
}
