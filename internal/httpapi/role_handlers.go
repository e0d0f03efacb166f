package httpapi

import (
	"net/http"
	"strings"
	"time"

	"gatehouse.org/internal/audit"
	"gatehouse.org/internal/auth"
)

type createRoleRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Permissions []string `json:"permissions"`
}

type updateRoleRequest struct {
	Name        *string   `json:"name"`
	Description *string   `json:"description"`
	Permissions *[]string `json:"permissions"`
}

func (a *API) handleListRoles(w http.ResponseWriter, r *http.Request) {
	limit, offset := paging(r)
	roles, total, err := a.store.Roles().List(r.Context(), limit, offset)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	if roles == nil {
		roles = []*auth.Role{}
	}
	writeJSON(w, http.StatusOK, listResponse[*auth.Role]{Items: roles, Total: total, Limit: limit, Offset: offset})
}

func (a *API) handleCreateRole(w http.ResponseWriter, r *http.Request) {
	var req createRoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeValidation(w, r, auth.ValidationErrors{}.Add("name", "name is required"))
		return
	}
	role := &auth.Role{
		Name:        req.Name,
		Description: req.Description,
	}
	if err := a.store.Roles().Create(r.Context(), role, req.Permissions); err != nil {
		handleAuthError(w, r, err)
		return
	}
	created, err := a.store.Roles().Find(r.Context(), role.ID)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "roles.create", map[string]any{
		"role_id": created.ID,
		"name":    created.Name,
	})
	writeJSON(w, http.StatusCreated, created)
}

func (a *API) handleGetRole(w http.ResponseWriter, r *http.Request) {
	role, err := a.store.Roles().Find(r.Context(), r.PathValue("id"))
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, role)
}

func (a *API) handleUpdateRole(w http.ResponseWriter, r *http.Request) {
	var req updateRoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Name != nil {
		trimmed := strings.TrimSpace(*req.Name)
		if trimmed == "" {
			writeValidation(w, r, auth.ValidationErrors{}.Add("name", "name is required"))
			return
		}
		req.Name = &trimmed
	}
	upd := auth.RoleUpdate{Name: req.Name, Description: req.Description}
	var perms []string
	if req.Permissions != nil {
		perms = *req.Permissions
		if perms == nil {
			perms = []string{}
		}
	}
	role, err := a.store.Roles().Update(r.Context(), r.PathValue("id"), upd, perms)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "roles.update", map[string]any{
		"role_id": role.ID,
	})
	writeJSON(w, http.StatusOK, role)
}

func (a *API) handleDeleteRole(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := a.store.Roles().SoftDelete(r.Context(), id, time.Now().UTC()); err != nil {
		handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "roles.delete", map[string]any{
		"role_id": id,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleRestoreRole(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := a.store.Roles().Restore(r.Context(), id); err != nil {
		handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "roles.restore", map[string]any{
		"role_id": id,
	})
	role, err := a.store.Roles().Find(r.Context(), id)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, role)
}
