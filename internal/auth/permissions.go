package auth

// Named permissions checked by route policies. Group names (user_access,
// role_access) act as parents in the seeded catalog tree; authorization
// itself matches only the exact name granted to a role.
const (
	PermUserAccess = "user_access"
	PermUserRead   = "user_read"
	PermUserCreate = "user_create"
	PermUserEdit   = "user_edit"
	PermUserDelete = "user_delete"

	PermRoleAccess = "role_access"
	PermRoleRead   = "role_read"
	PermRoleCreate = "role_create"
	PermRoleEdit   = "role_edit"
	PermRoleDelete = "role_delete"
)

// PermissionCatalog is the seedable group -> members tree. Each group is
// itself a permission whose children reference it as parent.
var PermissionCatalog = map[string][]string{
	PermUserAccess: {
		PermUserRead,
		PermUserCreate,
		PermUserEdit,
		PermUserDelete,
	},
	PermRoleAccess: {
		PermRoleRead,
		PermRoleCreate,
		PermRoleEdit,
		PermRoleDelete,
	},
}

// AllPermissionNames flattens the catalog, groups included.
func AllPermissionNames() []string {
	out := make([]string, 0, len(PermissionCatalog)*5)
	for group, members := range PermissionCatalog {
		out = append(out, group)
		out = append(out, members...)
	}
	return out
}
