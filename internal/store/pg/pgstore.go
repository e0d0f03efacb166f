// Package pg persists the auth data model in PostgreSQL through
// database/sql over the pgx stdlib driver.
package pg

import (
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"gatehouse.org/internal/auth"
)

const (
	pgErrUniqueViolation     = "23505"
	pgErrForeignKeyViolation = "23503"
)

// Store implements auth.Store.
type Store struct {
	db *sql.DB

	users *userStore
	roles *roleStore
	perms *permissionStore
	toks  *tokenStore
}

var _ auth.Store = (*Store)(nil)

// Open connects to PostgreSQL and wires the sub-stores.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return NewStore(db), nil
}

// NewStore wraps an existing pool; the caller keeps ownership of db.
func NewStore(db *sql.DB) *Store {
	s := &Store{db: db}
	s.users = &userStore{db: db}
	s.roles = &roleStore{db: db}
	s.perms = &permissionStore{db: db}
	s.toks = &tokenStore{db: db}
	return s
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Users() auth.UserStore             { return s.users }
func (s *Store) Roles() auth.RoleStore             { return s.roles }
func (s *Store) Permissions() auth.PermissionStore { return s.perms }
func (s *Store) Tokens() auth.TokenStore           { return s.toks }

func maybePgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}

// mapWriteError translates constraint violations into domain errors.
func mapWriteError(err error) error {
	if pgErr, ok := maybePgError(err); ok {
		switch pgErr.Code {
		case pgErrUniqueViolation:
			return auth.ErrConflict
		case pgErrForeignKeyViolation:
			return auth.ErrNotFound
		}
	}
	return err
}
