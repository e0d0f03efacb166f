package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"gatehouse.org/internal/auth"
	"gatehouse.org/internal/obs"
)

// ReadyProbe reports backing-store readiness for /readyz.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the HTTP layer. Every non-public route is wrapped by the
// access guard with its policy descriptor at registration time.
type API struct {
	mux        *http.ServeMux
	service    *auth.Service
	resolver   *auth.Resolver
	signer     *auth.Signer
	store      auth.Store
	readyProbe ReadyProbe
	version    string

	resendLimiter *perUserLimiter
}

// New wires the API routes.
func New(service *auth.Service, resolver *auth.Resolver, signer *auth.Signer, store auth.Store, rp ReadyProbe, version string) *API {
	a := &API{
		mux:           http.NewServeMux(),
		service:       service,
		resolver:      resolver,
		signer:        signer,
		store:         store,
		readyProbe:    rp,
		version:       version,
		resendLimiter: newPerUserLimiter(60 * time.Second),
	}

	a.handle("POST /v1/auth/login", PublicRoute(), a.handleLogin)
	a.handle("POST /v1/auth/refresh-token", PublicRoute(), a.handleRefresh)
	a.handle("POST /v1/auth/register", PublicRoute(), a.handleRegister)
	a.handle("GET /v1/auth/resend-email-verification", ExemptRoute(), a.handleResendVerification)
	a.handle("GET /v1/auth/verify-email/{token}", PublicRoute(), a.handleVerifyEmail)
	a.handle("POST /v1/auth/forgot-password", PublicRoute(), a.handleForgotPassword)
	a.handle("POST /v1/auth/reset-password/{token}", PublicRoute(), a.handleResetPassword)

	a.handle("GET /v1/users/me", ExemptRoute(), a.handleMe)
	a.handle("GET /v1/users/me/permissions", AuthedRoute(), a.handleMyPermissions)
	a.handle("GET /v1/users", PermissionRoute(auth.PermUserRead), a.handleListUsers)
	a.handle("POST /v1/users", PermissionRoute(auth.PermUserCreate), a.handleCreateUser)
	a.handle("GET /v1/users/{id}", PermissionRoute(auth.PermUserRead), a.handleGetUser)
	a.handle("PATCH /v1/users/{id}", PermissionRoute(auth.PermUserEdit), a.handleUpdateUser)
	a.handle("DELETE /v1/users/{id}", PermissionRoute(auth.PermUserDelete), a.handleDeleteUser)
	a.handle("PATCH /v1/users/{id}/restore", PermissionRoute(auth.PermUserDelete), a.handleRestoreUser)
	a.handle("DELETE /v1/users/{id}/force-delete", PermissionRoute(auth.PermUserDelete), a.handleForceDeleteUser)

	a.handle("GET /v1/roles", PermissionRoute(auth.PermRoleRead), a.handleListRoles)
	a.handle("POST /v1/roles", PermissionRoute(auth.PermRoleCreate), a.handleCreateRole)
	a.handle("GET /v1/roles/{id}", PermissionRoute(auth.PermRoleRead), a.handleGetRole)
	a.handle("PATCH /v1/roles/{id}", PermissionRoute(auth.PermRoleEdit), a.handleUpdateRole)
	a.handle("DELETE /v1/roles/{id}", PermissionRoute(auth.PermRoleDelete), a.handleDeleteRole)
	a.handle("PATCH /v1/roles/{id}/restore", PermissionRoute(auth.PermRoleDelete), a.handleRestoreRole)

	a.handle("GET /v1/permissions", PermissionRoute(auth.PermRoleRead), a.handleListPermissions)

	a.mux.HandleFunc("GET /healthz", a.Healthz)
	a.mux.HandleFunc("GET /readyz", a.Ready)
	a.mux.Handle("GET /metrics", obs.Handler())

	return a
}

func (a *API) handle(pattern string, policy RoutePolicy, fn http.HandlerFunc) {
	a.mux.Handle(pattern, a.guard(policy, fn))
}

// Handler returns the fully wrapped server handler.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = MaxBodyBytes(h, 1<<20)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = obs.Instrument(h)
	h = RequestID(h)
	return h
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "gatehouse-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}
