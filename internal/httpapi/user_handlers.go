package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"gatehouse.org/internal/audit"
	"gatehouse.org/internal/auth"
)

type createUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Type     string `json:"type"`
	RoleID   string `json:"role_id"`
}

type updateUserRequest struct {
	Name   *string `json:"name"`
	Email  *string `json:"email"`
	Type   *string `json:"type"`
	RoleID *string `json:"role_id"`
}

type listResponse[T any] struct {
	Items  []T `json:"items"`
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		unauthorized(w, r, "unauthorized")
		return
	}
	user, err := a.store.Users().Find(r.Context(), claims.Subject)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (a *API) handleMyPermissions(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		unauthorized(w, r, "unauthorized")
		return
	}
	user, err := a.store.Users().Find(r.Context(), claims.Subject)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	names := []string{}
	if user.Type == auth.TypeAdmin {
		names = auth.AllPermissionNames()
	} else if user.RoleID != nil && *user.RoleID != "" {
		names, err = a.store.Roles().PermissionNames(r.Context(), *user.RoleID)
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"permissions": names})
}

func (a *API) handleListUsers(w http.ResponseWriter, r *http.Request) {
	limit, offset := paging(r)
	users, total, err := a.store.Users().List(r.Context(), limit, offset)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	if users == nil {
		users = []*auth.User{}
	}
	writeJSON(w, http.StatusOK, listResponse[*auth.User]{Items: users, Total: total, Limit: limit, Offset: offset})
}

func (a *API) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	var errs auth.ValidationErrors
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Name == "" {
		errs = errs.Add("name", "name is required")
	}
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		errs = errs.Add("email", "a valid email is required")
	}
	if len(req.Password) < 8 {
		errs = errs.Add("password", "password must be at least 8 characters")
	}
	userType := auth.UserType(strings.TrimSpace(req.Type))
	if userType == "" {
		userType = auth.TypeUser
	}
	if !userType.Valid() {
		errs = errs.Add("type", "type must be admin or user")
	}
	if len(errs) > 0 {
		writeValidation(w, r, errs)
		return
	}

	msg, err := a.service.Register(r.Context(), auth.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	user, err := a.store.Users().FindByEmail(r.Context(), req.Email)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	if userType != auth.TypeUser || req.RoleID != "" {
		upd := auth.UserUpdate{}
		if userType != auth.TypeUser {
			upd.Type = &userType
		}
		if req.RoleID != "" {
			upd.RoleID = &req.RoleID
		}
		user, err = a.store.Users().Update(r.Context(), user.ID, upd)
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
	}
	_ = audit.LogEvent(r.Context(), "users.create", map[string]any{
		"target_user_id": user.ID,
		"message":        msg,
	})
	writeJSON(w, http.StatusCreated, user)
}

func (a *API) handleGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := a.store.Users().Find(r.Context(), r.PathValue("id"))
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (a *API) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	var req updateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	upd := auth.UserUpdate{Name: req.Name, RoleID: req.RoleID}
	if req.Email != nil {
		email := strings.TrimSpace(strings.ToLower(*req.Email))
		if email == "" || !strings.Contains(email, "@") {
			writeValidation(w, r, auth.ValidationErrors{}.Add("email", "a valid email is required"))
			return
		}
		upd.Email = &email
	}
	if req.Type != nil {
		userType := auth.UserType(strings.TrimSpace(*req.Type))
		if !userType.Valid() {
			writeValidation(w, r, auth.ValidationErrors{}.Add("type", "type must be admin or user"))
			return
		}
		upd.Type = &userType
	}
	user, err := a.store.Users().Update(r.Context(), r.PathValue("id"), upd)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "users.update", map[string]any{
		"target_user_id": user.ID,
	})
	writeJSON(w, http.StatusOK, user)
}

func (a *API) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := a.store.Users().SoftDelete(r.Context(), id, time.Now().UTC()); err != nil {
		handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "users.delete", map[string]any{
		"target_user_id": id,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleRestoreUser(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := a.store.Users().Restore(r.Context(), id); err != nil {
		handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "users.restore", map[string]any{
		"target_user_id": id,
	})
	user, err := a.store.Users().Find(r.Context(), id)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// handleForceDeleteUser hard-destroys the record; the store cascades
// the user's ephemeral tokens.
func (a *API) handleForceDeleteUser(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := a.store.Users().Purge(r.Context(), id); err != nil {
		handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "users.force_delete", map[string]any{
		"target_user_id": id,
	})
	w.WriteHeader(http.StatusNoContent)
}

func paging(r *http.Request) (limit, offset int) {
	limit, offset = 20, 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 && v <= 100 {
			limit = v
		}
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v >= 0 {
			offset = v
		}
	}
	return limit, offset
}
