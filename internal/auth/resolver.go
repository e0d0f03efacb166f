package auth

import (
	"context"
	"errors"
)

// Requirement is the authorization demand a route declares. At most one
// of Permission or UserTypes is meaningful per route; when both are set
// the type set takes precedence.
type Requirement struct {
	Permission string
	UserTypes  []UserType
}

// Empty reports whether the requirement declares no restriction.
func (r Requirement) Empty() bool {
	return r.Permission == "" && len(r.UserTypes) == 0
}

// Resolver answers whether a user satisfies a route requirement, backed
// by the store's role-permission relation.
type Resolver struct {
	users UserStore
	roles RoleStore
}

// NewResolver constructs a Resolver.
func NewResolver(users UserStore, roles RoleStore) (*Resolver, error) {
	if users == nil || roles == nil {
		return nil, errors.New("resolver requires user and role stores")
	}
	return &Resolver{users: users, roles: roles}, nil
}

// Satisfies evaluates the requirement for the authenticated claims.
// Admins bypass every check; an empty requirement allows; a type set is
// a membership test; a named permission is an exact-name lookup on the
// user's role grants. Store failures report false with the error so the
// caller stays fail-closed.
func (r *Resolver) Satisfies(ctx context.Context, claims *Claims, req Requirement) (bool, error) {
	if claims == nil {
		return false, nil
	}
	if claims.Type == TypeAdmin {
		return true, nil
	}
	if req.Empty() {
		return true, nil
	}
	if len(req.UserTypes) > 0 {
		for _, t := range req.UserTypes {
			if claims.Type == t {
				return true, nil
			}
		}
		return false, nil
	}

	user, err := r.users.Find(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if user.RoleID == nil || *user.RoleID == "" {
		return false, nil
	}
	return r.roles.HasPermission(ctx, *user.RoleID, req.Permission)
}
