package httpapi

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"gatehouse.org/internal/auth"
)

// memStore is an in-memory auth.Store for endpoint tests.
type memStore struct {
	mu sync.Mutex

	users  map[string]*auth.User
	roles  map[string]*auth.Role
	grants map[string]map[string]bool
	perms  map[string]auth.Permission
	tokens map[string]*auth.EphemeralToken

	seq int
}

func newMemStore() *memStore {
	return &memStore{
		users:  make(map[string]*auth.User),
		roles:  make(map[string]*auth.Role),
		grants: make(map[string]map[string]bool),
		perms:  make(map[string]auth.Permission),
		tokens: make(map[string]*auth.EphemeralToken),
	}
}

func (s *memStore) Users() auth.UserStore             { return (*memUsers)(s) }
func (s *memStore) Roles() auth.RoleStore             { return (*memRoles)(s) }
func (s *memStore) Permissions() auth.PermissionStore { return (*memPerms)(s) }
func (s *memStore) Tokens() auth.TokenStore           { return (*memTokens)(s) }

func (s *memStore) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%d", prefix, s.seq)
}

type memUsers memStore

func (s *memUsers) Create(_ context.Context, u *auth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == "" {
		u.ID = (*memStore)(s).nextID("user")
	}
	for _, existing := range s.users {
		if existing.Email == u.Email && existing.DeletedAt == nil {
			return auth.ErrConflict
		}
	}
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *memUsers) Find(_ context.Context, id string) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok || u.DeletedAt != nil {
		return nil, auth.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *memUsers) FindByEmail(_ context.Context, email string) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email && u.DeletedAt == nil {
			cp := *u
			return &cp, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (s *memUsers) List(_ context.Context, limit, offset int) ([]*auth.User, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []*auth.User
	for _, u := range s.users {
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

func (s *memUsers) Update(_ context.Context, id string, upd auth.UserUpdate) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok || u.DeletedAt != nil {
		return nil, auth.ErrNotFound
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

func (s *memUsers) SetEmailVerified(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return auth.ErrNotFound
	}
	if u.EmailVerifiedAt == nil {
		u.EmailVerifiedAt = &at
	}
	return nil
}

func (s *memUsers) SetPassword(_ context.Context, id, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return auth.ErrNotFound
	}
	u.PasswordHash = passwordHash
	return nil
}

func (s *memUsers) SoftDelete(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok || u.DeletedAt != nil {
		return auth.ErrNotFound
	}
	u.DeletedAt = &at
	return nil
}

func (s *memUsers) Restore(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok || u.DeletedAt == nil {
		return auth.ErrNotFound
	}
	u.DeletedAt = nil
	return nil
}

func (s *memUsers) Purge(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return auth.ErrNotFound
	}
	delete(s.users, id)
	for token, tok := range s.tokens {
		if tok.UserID == id {
			delete(s.tokens, token)
		}
	}
	return nil
}

type memRoles memStore

func (s *memRoles) Create(_ context.Context, role *auth.Role, permissionNames []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if role.ID == "" {
		role.ID = (*memStore)(s).nextID("role")
	}
	cp := *role
	s.roles[role.ID] = &cp
	set := make(map[string]bool, len(permissionNames))
	for _, name := range permissionNames {
		set[name] = true
	}
	s.grants[role.ID] = set
	return nil
}

func (s *memRoles) Find(_ context.Context, id string) (*auth.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	role, ok := s.roles[id]
	if !ok || role.DeletedAt != nil {
		return nil, auth.ErrNotFound
	}
	cp := *role
	for name := range s.grants[id] {
		cp.Permissions = append(cp.Permissions, name)
	}
	sort.Strings(cp.Permissions)
	return &cp, nil
}

func (s *memRoles) List(_ context.Context, limit, offset int) ([]*auth.Role, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []*auth.Role
	for _, role := range s.roles {
		if role.DeletedAt == nil {
			cp := *role
			all = append(all, &cp)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return all, len(all), nil
}

func (s *memRoles) Update(ctx context.Context, id string, upd auth.RoleUpdate, permissionNames []string) (*auth.Role, error) {
	s.mu.Lock()
	role, ok := s.roles[id]
	if !ok || role.DeletedAt != nil {
		s.mu.Unlock()
		return nil, auth.ErrNotFound
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
		s.grants[id] = set
	}
	s.mu.Unlock()
	return s.Find(ctx, id)
}

func (s *memRoles) SoftDelete(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	role, ok := s.roles[id]
	if !ok || role.DeletedAt != nil {
		return auth.ErrNotFound
	}
	role.DeletedAt = &at
	return nil
}

func (s *memRoles) Restore(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	role, ok := s.roles[id]
	if !ok || role.DeletedAt == nil {
		return auth.ErrNotFound
	}
	role.DeletedAt = nil
	return nil
}

func (s *memRoles) HasPermission(_ context.Context, roleID, permissionName string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	role, ok := s.roles[roleID]
	if !ok || role.DeletedAt != nil {
		return false, nil
	}
	return s.grants[roleID][permissionName], nil
}

func (s *memRoles) PermissionNames(_ context.Context, roleID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var names []string
	for name := range s.grants[roleID] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

type memPerms memStore

func (s *memPerms) Ensure(_ context.Context, groups map[string][]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for group, members := range groups {
		if _, ok := s.perms[group]; !ok {
			s.perms[group] = auth.Permission{ID: (*memStore)(s).nextID("perm"), Name: group}
		}
		parent := s.perms[group]
		for _, member := range members {
			if member == group {
				continue
			}
			if _, ok := s.perms[member]; !ok {
				pid := parent.ID
				s.perms[member] = auth.Permission{ID: (*memStore)(s).nextID("perm"), Name: member, ParentID: &pid}
			}
		}
	}
	return nil
}

func (s *memPerms) List(_ context.Context) ([]auth.Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]auth.Permission, 0, len(s.perms))
	for _, p := range s.perms {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *memPerms) FindByNames(_ context.Context, names []string) ([]auth.Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []auth.Permission
	for _, name := range names {
		if p, ok := s.perms[name]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

type memTokens memStore

func (s *memTokens) Create(_ context.Context, tok *auth.EphemeralToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tokens[tok.Token]; ok {
		return auth.ErrConflict
	}
	cp := *tok
	s.tokens[tok.Token] = &cp
	return nil
}

func (s *memTokens) Find(_ context.Context, token string, typ auth.TokenType, now time.Time) (*auth.EphemeralToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tok, ok := s.tokens[token]
	if !ok || tok.Type != typ || now.After(tok.ExpiresAt) {
		return nil, auth.ErrNotFound
	}
	cp := *tok
	return &cp, nil
}

func (s *memTokens) Expire(_ context.Context, token string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tok, ok := s.tokens[token]
	if !ok {
		return auth.ErrNotFound
	}
	tok.ExpiresAt = now
	return nil
}

func (s *memTokens) DeleteForUser(_ context.Context, userID string, typ auth.TokenType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for token, tok := range s.tokens {
		if tok.UserID == userID && tok.Type == typ {
			delete(s.tokens, token)
		}
	}
	return nil
}
