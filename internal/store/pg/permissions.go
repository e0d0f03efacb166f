package pg

import (
	"context"
	"database/sql"
	"strings"

	"gatehouse.org/internal/auth"
	"gatehouse.org/internal/ids"
)

type permissionStore struct {
	db *sql.DB
}

var _ auth.PermissionStore = (*permissionStore)(nil)

// Ensure upserts the catalog tree: each group becomes a parent row and
// its members reference it. Names are globally unique, so reruns are
// no-ops.
func (s *permissionStore) Ensure(ctx context.Context, groups map[string][]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for group, members := range groups {
		var parentID string
		err := tx.QueryRowContext(ctx, `
			insert into permissions (id, name)
			values ($1, $2)
			on conflict (name) do update set name = excluded.name
			returning id
		`, ids.New(), group).Scan(&parentID)
		if err != nil {
			return err
		}
		for _, member := range members {
			if member == group {
				// A parent must not reference itself.
				continue
			}
			if _, err := tx.ExecContext(ctx, `
				insert into permissions (id, name, parent_id)
				values ($1, $2, $3)
				on conflict (name) do update set parent_id = excluded.parent_id
			`, ids.New(), member, parentID); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

func (s *permissionStore) List(ctx context.Context) ([]auth.Permission, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, name, parent_id, created_at
		from permissions
		order by name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []auth.Permission
	for rows.Next() {
		var p auth.Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.ParentID, &p.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func (s *permissionStore) FindByNames(ctx context.Context, names []string) ([]auth.Permission, error) {
	cleaned := make([]string, 0, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			cleaned = append(cleaned, n)
		}
	}
	if len(cleaned) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		select id, name, parent_id, created_at
		from permissions
		where name = any($1)
		order by name
	`, cleaned)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []auth.Permission
	for rows.Next() {
		var p auth.Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.ParentID, &p.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}
