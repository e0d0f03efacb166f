package httpapi

import (
	"net/http"
	"sort"

	"gatehouse.org/internal/auth"
)

type permissionGroup struct {
	Group   string            `json:"group"`
	Members []auth.Permission `json:"members"`
}

// handleListPermissions returns the catalog as group/member pairs, the
// shape role editors consume when building grant checklists.
func (a *API) handleListPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := a.store.Permissions().List(r.Context())
	if err != nil {
		handleAuthError(w, r, err)
		return
	}

	byID := make(map[string]string, len(perms))
	for _, p := range perms {
		if p.ParentID == nil {
			byID[p.ID] = p.Name
		}
	}
	grouped := make(map[string][]auth.Permission)
	for _, p := range perms {
		if p.ParentID == nil {
			continue
		}
		group, ok := byID[*p.ParentID]
		if !ok {
			continue
		}
		grouped[group] = append(grouped[group], p)
	}

	groups := make([]permissionGroup, 0, len(grouped))
	for name, members := range grouped {
		groups = append(groups, permissionGroup{Group: name, Members: members})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Group < groups[j].Group })

	writeJSON(w, http.StatusOK, map[string]any{"permissions": groups})
}
