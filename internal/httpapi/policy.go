package httpapi

import "gatehouse.org/internal/auth"

// RoutePolicy is the per-route access descriptor attached at
// registration and read by the guard at dispatch time.
//
//   - Public routes skip authentication entirely.
//   - SkipVerification admits authenticated-but-unverified users.
//   - Require is evaluated last, only for requests that passed the
//     credential and verification gates.
type RoutePolicy struct {
	Public           bool
	SkipVerification bool
	Require          auth.Requirement
}

// PublicRoute is the descriptor for unauthenticated endpoints.
func PublicRoute() RoutePolicy {
	return RoutePolicy{Public: true}
}

// AuthedRoute requires a verified session with no further restriction.
func AuthedRoute() RoutePolicy {
	return RoutePolicy{}
}

// ExemptRoute requires a session but admits unverified users.
func ExemptRoute() RoutePolicy {
	return RoutePolicy{SkipVerification: true}
}

// PermissionRoute requires a verified session holding the named
// permission (admins bypass).
func PermissionRoute(permission string) RoutePolicy {
	return RoutePolicy{Require: auth.Requirement{Permission: permission}}
}
