package httpapi

import (
	"net/http"
	"testing"

	"gatehouse.org/internal/auth"
)

func TestRegisterLoginVerifyFlow(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodPost, "/v1/auth/register", map[string]string{
		"name":     "Alice",
		"email":    "alice@example.com",
		"password": "correct horse",
	}, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: %d body %s", rec.Code, rec.Body.String())
	}

	pair := e.login(t, "alice@example.com", "correct horse")

	// Verification-exempt route works while unverified.
	rec = e.do(t, http.MethodGet, "/v1/users/me", nil, pair.AccessToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("me unverified: %d body %s", rec.Code, rec.Body.String())
	}
	me := decodeBody[auth.User](t, rec)
	if me.Email != "alice@example.com" || me.EmailVerifiedAt != nil {
		t.Fatalf("unexpected me payload: %+v", me)
	}

	// A verification-gated route denies explicitly with 403.
	rec = e.do(t, http.MethodGet, "/v1/users/me/permissions", nil, pair.AccessToken)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("gated route unverified: %d body %s", rec.Code, rec.Body.String())
	}

	// Verify via the emailed token.
	token := e.notifier.lastVerify(t)
	rec = e.do(t, http.MethodGet, "/v1/auth/verify-email/"+token, nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("verify: %d body %s", rec.Code, rec.Body.String())
	}

	// The token is single use.
	rec = e.do(t, http.MethodGet, "/v1/auth/verify-email/"+token, nil, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("verify replay: %d body %s", rec.Code, rec.Body.String())
	}

	// A fresh credential carries the verification state.
	pair = e.login(t, "alice@example.com", "correct horse")
	rec = e.do(t, http.MethodGet, "/v1/users/me/permissions", nil, pair.AccessToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("gated route verified: %d body %s", rec.Code, rec.Body.String())
	}
}

func TestRegisterValidation(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(t, http.MethodPost, "/v1/auth/register", map[string]string{
		"name":     "",
		"email":    "nope",
		"password": "short",
	}, "")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status %d, want 422; body %s", rec.Code, rec.Body.String())
	}

	// Unknown fields are rejected outright.
	rec = e.do(t, http.MethodPost, "/v1/auth/register", map[string]string{
		"name":     "Bob",
		"email":    "bob@example.com",
		"password": "long enough",
		"extra":    "nope",
	}, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown field: %d body %s", rec.Code, rec.Body.String())
	}

	// Missing body.
	rec = e.do(t, http.MethodPost, "/v1/auth/register", nil, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty body: %d body %s", rec.Code, rec.Body.String())
	}
}

func TestLoginFailure(t *testing.T) {
	e := newTestEnv(t)
	e.seedUser(t, "carol@example.com", "right password", auth.TypeUser, true, "")

	rec := e.do(t, http.MethodPost, "/v1/auth/login", map[string]string{
		"email":    "carol@example.com",
		"password": "wrong",
	}, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password: %d", rec.Code)
	}
	rec = e.do(t, http.MethodPost, "/v1/auth/login", map[string]string{
		"email":    "nobody@example.com",
		"password": "whatever",
	}, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unknown account: %d", rec.Code)
	}
}

func TestRefreshEndpoint(t *testing.T) {
	e := newTestEnv(t)
	e.seedUser(t, "dave@example.com", "a password!", auth.TypeUser, true, "")
	pair := e.login(t, "dave@example.com", "a password!")

	rec := e.do(t, http.MethodPost, "/v1/auth/refresh-token", map[string]string{
		"refresh_token": pair.RefreshToken,
	}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh: %d body %s", rec.Code, rec.Body.String())
	}
	next := decodeBody[auth.TokenPair](t, rec)
	if next.AccessToken == "" || next.RefreshToken == "" {
		t.Fatal("refresh must return a full pair")
	}

	rec = e.do(t, http.MethodPost, "/v1/auth/refresh-token", map[string]string{
		"refresh_token": pair.AccessToken,
	}, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("access-as-refresh: %d", rec.Code)
	}
}

func TestResendVerificationThrottle(t *testing.T) {
	e := newTestEnv(t)
	e.seedUser(t, "erin@example.com", "a password!", auth.TypeUser, false, "")
	pair := e.login(t, "erin@example.com", "a password!")

	rec := e.do(t, http.MethodGet, "/v1/auth/resend-email-verification", nil, pair.AccessToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("first resend: %d body %s", rec.Code, rec.Body.String())
	}
	rec = e.do(t, http.MethodGet, "/v1/auth/resend-email-verification", nil, pair.AccessToken)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second resend: %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "60" {
		t.Fatalf("Retry-After %q, want 60", rec.Header().Get("Retry-After"))
	}
}

func TestResendVerificationAlreadyVerified(t *testing.T) {
	e := newTestEnv(t)
	e.seedUser(t, "frank@example.com", "a password!", auth.TypeUser, true, "")
	pair := e.login(t, "frank@example.com", "a password!")

	rec := e.do(t, http.MethodGet, "/v1/auth/resend-email-verification", nil, pair.AccessToken)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("verified resend: %d, want 400", rec.Code)
	}

	// No credential at all is a 401, not a 429 or 400.
	rec = e.do(t, http.MethodGet, "/v1/auth/resend-email-verification", nil, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous resend: %d, want 401", rec.Code)
	}
}

func TestForgotAndResetPasswordEndpoints(t *testing.T) {
	e := newTestEnv(t)
	e.seedUser(t, "grace@example.com", "old password", auth.TypeUser, true, "")

	rec := e.do(t, http.MethodPost, "/v1/auth/forgot-password", map[string]string{
		"email": "grace@example.com",
	}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("forgot: %d body %s", rec.Code, rec.Body.String())
	}
	token := e.notifier.lastReset(t)

	// Confirmation mismatch is a field error.
	rec = e.do(t, http.MethodPost, "/v1/auth/reset-password/"+token, map[string]string{
		"password":              "new password!",
		"password_confirmation": "different",
	}, "")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("mismatch: %d, want 422", rec.Code)
	}

	rec = e.do(t, http.MethodPost, "/v1/auth/reset-password/"+token, map[string]string{
		"password":              "new password!",
		"password_confirmation": "new password!",
	}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("reset: %d body %s", rec.Code, rec.Body.String())
	}

	e.login(t, "grace@example.com", "new password!")

	// Token is consumed.
	rec = e.do(t, http.MethodPost, "/v1/auth/reset-password/"+token, map[string]string{
		"password":              "another one!!",
		"password_confirmation": "another one!!",
	}, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("replay: %d, want 400", rec.Code)
	}
}

func TestForgotPasswordUnknownEmailDiscloses(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(t, http.MethodPost, "/v1/auth/forgot-password", map[string]string{
		"email": "ghost@example.com",
	}, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown email: %d, want 404", rec.Code)
	}
}
