package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"gatehouse.org/internal/auth"
	"gatehouse.org/internal/obs"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

// guard wraps a handler with the per-request access decision:
//
//  1. public routes pass unconditionally;
//  2. a bearer credential must be present;
//  3. it must verify against the access secret;
//  4. verified claims are attached to the request context;
//  5. verification-exempt routes pass regardless of email state;
//  6. everyone else needs a non-null email_verified_at claim, otherwise
//     the request is denied with 403 rather than falling through;
//  7. the route requirement is resolved last; any resolver error denies.
//
// Every ambiguous state denies: the guard is fail-closed.
func (a *API) guard(policy RoutePolicy, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if policy.Public {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			obs.IncGuard("unauthorized")
			unauthorized(w, r, err.Error())
			return
		}

		claims, err := a.signer.VerifyAccess(token)
		if err != nil {
			obs.IncGuard("unauthorized")
			unauthorized(w, r, "invalid token")
			return
		}

		ctx := auth.ContextWithClaims(r.Context(), claims)
		ctx = auth.ContextWithToken(ctx, token)
		r = r.WithContext(ctx)

		if !policy.SkipVerification && !claims.Verified() {
			obs.IncGuard("forbidden")
			forbidden(w, r, "email verification required")
			return
		}

		ok, err := a.resolver.Satisfies(ctx, claims, policy.Require)
		if err != nil {
			obs.IncGuard("forbidden")
			writeError(w, r, http.StatusInternalServerError, "authorization error")
			return
		}
		if !ok {
			obs.IncGuard("forbidden")
			forbidden(w, r, "insufficient permissions")
			return
		}

		obs.IncGuard("allowed")
		next.ServeHTTP(w, r)
	})
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

func unauthorized(w http.ResponseWriter, r *http.Request, msg string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="gatehouse"`)
	writeError(w, r, http.StatusUnauthorized, msg)
}

func forbidden(w http.ResponseWriter, r *http.Request, msg string) {
	writeError(w, r, http.StatusForbidden, msg)
}
