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

type roleStore struct {
	db *sql.DB
}

var _ auth.RoleStore = (*roleStore)(nil)

func (s *roleStore) Create(ctx context.Context, role *auth.Role, permissionNames []string) error {
	if role.ID == "" {
		role.ID = ids.New()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		insert into roles (id, name, description)
		values ($1, $2, $3)
	`, role.ID, role.Name, role.Description); err != nil {
		return mapWriteError(err)
	}
	if err := replaceGrants(ctx, tx, role.ID, permissionNames); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *roleStore) Find(ctx context.Context, id string) (*auth.Role, error) {
	var role auth.Role
	err := s.db.QueryRowContext(ctx, `
		select id, name, description, created_at, updated_at, deleted_at
		from roles where id = $1 and deleted_at is null
	`, id).Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt, &role.DeletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	perms, err := s.PermissionNames(ctx, id)
	if err != nil {
		return nil, err
	}
	role.Permissions = perms
	return &role, nil
}

func (s *roleStore) List(ctx context.Context, limit, offset int) ([]*auth.Role, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.db.QueryContext(ctx, `
		select id, name, description, created_at, updated_at, deleted_at
		from roles where deleted_at is null
		order by name
		limit $1 offset $2
	`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []*auth.Role
	for rows.Next() {
		var role auth.Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt, &role.DeletedAt); err != nil {
			return nil, 0, err
		}
		result = append(result, &role)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `select count(*) from roles where deleted_at is null`).Scan(&total); err != nil {
		return nil, 0, err
	}
	return result, total, nil
}

func (s *roleStore) Update(ctx context.Context, id string, upd auth.RoleUpdate, permissionNames []string) (*auth.Role, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

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
	if upd.Description != nil {
		setClauses = append(setClauses, fmt.Sprintf("description = $%d", idx))
		args = append(args, *upd.Description)
		idx++
	}
	if len(setClauses) > 0 {
		setClauses = append(setClauses, "updated_at = now()")
		query := fmt.Sprintf(`update roles set %s where id = $%d and deleted_at is null`,
			strings.Join(setClauses, ", "), idx)
		args = append(args, id)
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return nil, mapWriteError(err)
		}
		if aff, err := res.RowsAffected(); err == nil && aff == 0 {
			return nil, auth.ErrNotFound
		}
	}
	if permissionNames != nil {
		if err := replaceGrants(ctx, tx, id, permissionNames); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.Find(ctx, id)
}

func (s *roleStore) SoftDelete(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		update roles set deleted_at = $2, updated_at = now()
		where id = $1 and deleted_at is null
	`, id, at)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *roleStore) Restore(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		update roles set deleted_at = null, updated_at = now()
		where id = $1 and deleted_at is not null
	`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *roleStore) HasPermission(ctx context.Context, roleID, permissionName string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `
		select 1
		from role_permissions rp
		join permissions p on p.id = rp.permission_id
		join roles r on r.id = rp.role_id
		where rp.role_id = $1 and p.name = $2 and r.deleted_at is null
	`, roleID, permissionName).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *roleStore) PermissionNames(ctx context.Context, roleID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		select p.name
		from role_permissions rp
		join permissions p on p.id = rp.permission_id
		where rp.role_id = $1
		order by p.name
	`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// replaceGrants swaps the role's grant set for the named permissions.
// Unknown names are skipped rather than failing the whole write.
func replaceGrants(ctx context.Context, tx *sql.Tx, roleID string, names []string) error {
	if names == nil {
		return nil
	}
	if _, err := tx.ExecContext(ctx, `delete from role_permissions where role_id = $1`, roleID); err != nil {
		return err
	}
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, `
			insert into role_permissions (role_id, permission_id)
			select $1, id from permissions where name = $2
			on conflict do nothing
		`, roleID, name); err != nil {
			return mapWriteError(err)
		}
	}
	return nil
}
