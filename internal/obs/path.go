package obs

import "strings"

// CanonicalPath collapses per-resource URL segments into templates so
// metric label cardinality stays bounded. Unknown paths pass through
// unchanged (minus query string).
func CanonicalPath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	parts := strings.Split(strings.Trim(path, "/"), "/")
	switch {
	case len(parts) == 4 && parts[0] == "v1" && parts[1] == "auth" && parts[2] == "verify-email":
		return "/v1/auth/verify-email/:token"
	case len(parts) == 4 && parts[0] == "v1" && parts[1] == "auth" && parts[2] == "reset-password":
		return "/v1/auth/reset-password/:token"
	case len(parts) >= 3 && parts[0] == "v1" && parts[1] == "users" && parts[2] == "me":
		return path
	case len(parts) == 3 && parts[0] == "v1" && (parts[1] == "users" || parts[1] == "roles"):
		return "/v1/" + parts[1] + "/:id"
	case len(parts) == 4 && parts[0] == "v1" && (parts[1] == "users" || parts[1] == "roles"):
		return "/v1/" + parts[1] + "/:id/" + parts[3]
	}
	return path
}
