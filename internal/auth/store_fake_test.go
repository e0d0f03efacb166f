package auth

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// fakeStore is an in-memory Store with just enough behavior for the
// service and resolver tests.
type fakeStore struct {
	mu sync.Mutex

	users       map[string]*User
	roles       map[string]*Role
	grants      map[string]map[string]bool // roleID -> permission name set
	permissions map[string]Permission      // by name
	tokens      map[string]*EphemeralToken

	seq int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:       make(map[string]*User),
		roles:       make(map[string]*Role),
		grants:      make(map[string]map[string]bool),
		permissions: make(map[string]Permission),
		tokens:      make(map[string]*EphemeralToken),
	}
}

func (f *fakeStore) Users() UserStore             { return (*fakeUserStore)(f) }
func (f *fakeStore) Roles() RoleStore             { return (*fakeRoleStore)(f) }
func (f *fakeStore) Permissions() PermissionStore { return (*fakePermissionStore)(f) }
func (f *fakeStore) Tokens() TokenStore           { return (*fakeTokenStore)(f) }

func (f *fakeStore) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s-%d", prefix, f.seq)
}

type fakeUserStore fakeStore

func (f *fakeUserStore) Create(_ context.Context, u *User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u.ID == "" {
		u.ID = (*fakeStore)(f).nextID("user")
	}
	for _, existing := range f.users {
		if existing.Email == u.Email && existing.DeletedAt == nil {
			return ErrConflict
		}
	}
	cp := *u
	f.users[u.ID] = &cp
	return nil
}

func (f *fakeUserStore) Find(_ context.Context, id string) (*User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok || u.DeletedAt != nil {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUserStore) FindByEmail(_ context.Context, email string) (*User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email && u.DeletedAt == nil {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (f *fakeUserStore) List(_ context.Context, limit, offset int) ([]*User, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []*User
	for _, u := range f.users {
		if u.DeletedAt == nil {
			cp := *u
			all = append(all, &cp)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	total := len(all)
	if offset >= len(all) {
		return nil, total, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, total, nil
}

func (f *fakeUserStore) Update(_ context.Context, id string, upd UserUpdate) (*User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok || u.DeletedAt != nil {
		return nil, ErrNotFound
	}
	if upd.Name != nil {
		u.Name = *upd.Name
	}
	if upd.Email != nil {
		u.Email = *upd.Email
	}
	if upd.PasswordHash != nil {
		u.PasswordHash = *upd.PasswordHash
	}
	if upd.Type != nil {
		u.Type = *upd.Type
	}
	if upd.RoleID != nil {
		if *upd.RoleID == "" {
			u.RoleID = nil
		} else {
			role := *upd.RoleID
			u.RoleID = &role
		}
	}
	u.UpdatedAt = time.Now().UTC()
	cp := *u
	return &cp, nil
}

func (f *fakeUserStore) SetEmailVerified(_ context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return ErrNotFound
	}
	if u.EmailVerifiedAt == nil {
		u.EmailVerifiedAt = &at
	}
	return nil
}

func (f *fakeUserStore) SetPassword(_ context.Context, id, passwordHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return ErrNotFound
	}
	u.PasswordHash = passwordHash
	return nil
}

func (f *fakeUserStore) SoftDelete(_ context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok || u.DeletedAt != nil {
		return ErrNotFound
	}
	u.DeletedAt = &at
	return nil
}

func (f *fakeUserStore) Restore(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok || u.DeletedAt == nil {
		return ErrNotFound
	}
	u.DeletedAt = nil
	return nil
}

func (f *fakeUserStore) Purge(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[id]; !ok {
		return ErrNotFound
	}
	delete(f.users, id)
	for token, tok := range f.tokens {
		if tok.UserID == id {
			delete(f.tokens, token)
		}
	}
	return nil
}

type fakeRoleStore fakeStore

func (f *fakeRoleStore) Create(_ context.Context, role *Role, permissionNames []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if role.ID == "" {
		role.ID = (*fakeStore)(f).nextID("role")
	}
	cp := *role
	f.roles[role.ID] = &cp
	set := make(map[string]bool, len(permissionNames))
	for _, name := range permissionNames {
		set[name] = true
	}
	f.grants[role.ID] = set
	return nil
}

func (f *fakeRoleStore) Find(_ context.Context, id string) (*Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	role, ok := f.roles[id]
	if !ok || role.DeletedAt != nil {
		return nil, ErrNotFound
	}
	cp := *role
	cp.Permissions = grantNames(f.grants[id])
	return &cp, nil
}

func (f *fakeRoleStore) List(_ context.Context, limit, offset int) ([]*Role, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []*Role
	for _, role := range f.roles {
		if role.DeletedAt == nil {
			cp := *role
			all = append(all, &cp)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return all, len(all), nil
}

func (f *fakeRoleStore) Update(_ context.Context, id string, upd RoleUpdate, permissionNames []string) (*Role, error) {
	f.mu.Lock()
	role, ok := f.roles[id]
	if !ok || role.DeletedAt != nil {
		f.mu.Unlock()
		return nil, ErrNotFound
	}
	if upd.Name != nil {
		role.Name = *upd.Name
	}
	if upd.Description != nil {
		role.Description = *upd.Description
	}
	if permissionNames != nil {
		set := make(map[string]bool, len(permissionNames))
		for _, name := range permissionNames {
			set[name] = true
		}
		f.grants[id] = set
	}
	f.mu.Unlock()
	return f.Find(context.Background(), id)
}

func (f *fakeRoleStore) SoftDelete(_ context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	role, ok := f.roles[id]
	if !ok || role.DeletedAt != nil {
		return ErrNotFound
	}
	role.DeletedAt = &at
	return nil
}

func (f *fakeRoleStore) Restore(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	role, ok := f.roles[id]
	if !ok || role.DeletedAt == nil {
		return ErrNotFound
	}
	role.DeletedAt = nil
	return nil
}

func (f *fakeRoleStore) HasPermission(_ context.Context, roleID, permissionName string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	role, ok := f.roles[roleID]
	if !ok || role.DeletedAt != nil {
		return false, nil
	}
	return f.grants[roleID][permissionName], nil
}

func (f *fakeRoleStore) PermissionNames(_ context.Context, roleID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return grantNames(f.grants[roleID]), nil
}

func grantNames(set map[string]bool) []string {
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type fakePermissionStore fakeStore

func (f *fakePermissionStore) Ensure(_ context.Context, groups map[string][]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for group, members := range groups {
		if _, ok := f.permissions[group]; !ok {
			f.permissions[group] = Permission{ID: (*fakeStore)(f).nextID("perm"), Name: group}
		}
		parent := f.permissions[group]
		for _, member := range members {
			if member == group {
				continue
			}
			if _, ok := f.permissions[member]; !ok {
				pid := parent.ID
				f.permissions[member] = Permission{ID: (*fakeStore)(f).nextID("perm"), Name: member, ParentID: &pid}
			}
		}
	}
	return nil
}

func (f *fakePermissionStore) List(_ context.Context) ([]Permission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Permission, 0, len(f.permissions))
	for _, p := range f.permissions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakePermissionStore) FindByNames(_ context.Context, names []string) ([]Permission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Permission
	for _, name := range names {
		if p, ok := f.permissions[name]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeTokenStore fakeStore

func (f *fakeTokenStore) Create(_ context.Context, tok *EphemeralToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.tokens[tok.Token]; ok {
		return ErrConflict
	}
	cp := *tok
	f.tokens[tok.Token] = &cp
	return nil
}

func (f *fakeTokenStore) Find(_ context.Context, token string, typ TokenType, now time.Time) (*EphemeralToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tok, ok := f.tokens[token]
	if !ok || tok.Type != typ || now.After(tok.ExpiresAt) {
		return nil, ErrNotFound
	}
	cp := *tok
	return &cp, nil
}

func (f *fakeTokenStore) Expire(_ context.Context, token string, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	tok, ok := f.tokens[token]
	if !ok {
		return ErrNotFound
	}
	tok.ExpiresAt = now
	return nil
}

func (f *fakeTokenStore) DeleteForUser(_ context.Context, userID string, typ TokenType) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for token, tok := range f.tokens {
		if tok.UserID == userID && tok.Type == typ {
			delete(f.tokens, token)
		}
	}
	return nil
}
