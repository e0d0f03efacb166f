package httpapi

import (
	"net/http"
	"strings"

	"gatehouse.org/internal/audit"
	"gatehouse.org/internal/auth"
	"gatehouse.org/internal/obs"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	pair, err := a.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		obs.IncLogin("failure")
		handleAuthError(w, r, err)
		return
	}
	obs.IncLogin("success")
	_ = audit.LogEvent(r.Context(), "auth.login", map[string]any{
		"email": strings.ToLower(strings.TrimSpace(req.Email)),
	})
	writeJSON(w, http.StatusOK, pair)
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	pair, err := a.service.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.refresh", nil)
	writeJSON(w, http.StatusOK, pair)
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	msg, err := a.service.Register(r.Context(), req)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.register", map[string]any{
		"email": req.Email,
	})
	writeJSON(w, http.StatusCreated, messageResponse{Message: msg})
}

func (a *API) handleResendVerification(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		unauthorized(w, r, "unauthorized")
		return
	}
	if claims.Verified() {
		writeError(w, r, http.StatusBadRequest, "your email is already verified")
		return
	}
	if !a.resendLimiter.allow(claims.Subject) {
		w.Header().Set("Retry-After", "60")
		writeError(w, r, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}
	msg, err := a.service.ResendVerification(r.Context(), claims.Subject)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.verification.resend", nil)
	writeJSON(w, http.StatusOK, messageResponse{Message: msg})
}

func (a *API) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")
	msg, err := a.service.VerifyEmail(r.Context(), token)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.email.verified", nil)
	writeJSON(w, http.StatusOK, messageResponse{Message: msg})
}

func (a *API) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	msg, err := a.service.ForgotPassword(r.Context(), req.Email)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.password.forgot", map[string]any{
		"email": strings.ToLower(strings.TrimSpace(req.Email)),
	})
	writeJSON(w, http.StatusOK, messageResponse{Message: msg})
}

func (a *API) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")
	var req resetPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Password != req.PasswordConfirmation {
		writeValidation(w, r, auth.ValidationErrors{}.Add("password_confirmation", "passwords do not match"))
		return
	}
	msg, err := a.service.ResetPassword(r.Context(), token, req.Password)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.password.reset", nil)
	writeJSON(w, http.StatusOK, messageResponse{Message: msg})
}
