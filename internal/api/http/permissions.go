package http

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rapid-data/rapid/pkg/types"
)

// handleListProtectedDomains returns every registered protected domain.
func (a *API) handleListProtectedDomains(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := GetRequestID(ctx)

	if err := a.evaluator.CheckAdminPermission(ctx, GetSubjectID(ctx), types.ActionUserAdmin); err != nil {
		writeServiceError(w, a.log, requestID, err)
		return
	}

	domains, err := a.domains.ListProtectedDomains(ctx)
	if err != nil {
		writeServiceError(w, a.log, requestID, err)
		return
	}
	writeJSON(w, http.StatusOK, domains)
}

// handleCreateProtectedDomain registers a protected domain and its six
// permissions. USER_ADMIN only.
func (a *API) handleCreateProtectedDomain(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := GetRequestID(ctx)

	if err := a.evaluator.CheckAdminPermission(ctx, GetSubjectID(ctx), types.ActionUserAdmin); err != nil {
		writeServiceError(w, a.log, requestID, err)
		return
	}

	domain := r.PathValue("domain")
	if err := a.domains.CreateProtectedDomain(ctx, domain); err != nil {
		writeServiceError(w, a.log, requestID, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"details": fmt.Sprintf("protected domain [%s] created", domain),
	})
}

// handleDeleteProtectedDomain removes a protected domain, its permissions
// and every assignment of them. USER_ADMIN only.
func (a *API) handleDeleteProtectedDomain(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := GetRequestID(ctx)

	if err := a.evaluator.CheckAdminPermission(ctx, GetSubjectID(ctx), types.ActionUserAdmin); err != nil {
		writeServiceError(w, a.log, requestID, err)
		return
	}

	domain := r.PathValue("domain")
	if err := a.domains.DeleteProtectedDomain(ctx, domain); err != nil {
		writeServiceError(w, a.log, requestID, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"details": fmt.Sprintf("protected domain [%s] deleted", domain),
	})
}

// handleGetSubjectPermissions returns a subject's parsed grants. Subjects can
// read their own; USER_ADMIN can read anyone's.
func (a *API) handleGetSubjectPermissions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := GetRequestID(ctx)
	subject := r.PathValue("subject")

	if subject != GetSubjectID(ctx) {
		if err := a.evaluator.CheckAdminPermission(ctx, GetSubjectID(ctx), types.ActionUserAdmin); err != nil {
			writeServiceError(w, a.log, requestID, err)
			return
		}
	}

	grants, err := a.evaluator.ListSubjectPermissions(ctx, subject)
	if err != nil {
		writeServiceError(w, a.log, requestID, err)
		return
	}
	writeJSON(w, http.StatusOK, grants)
}

type updatePermissionsRequest struct {
	Permissions []string `json:"permissions"`
}

// handleUpdateSubjectPermissions replaces a subject's permission list.
// USER_ADMIN only; every id must reference an existing permission.
func (a *API) handleUpdateSubjectPermissions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := GetRequestID(ctx)

	if err := a.evaluator.CheckAdminPermission(ctx, GetSubjectID(ctx), types.ActionUserAdmin); err != nil {
		writeServiceError(w, a.log, requestID, err)
		return
	}

	var req updatePermissionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, []string{fmt.Sprintf("invalid request body: %v", err)}, requestID)
		return
	}

	if err := a.store.ValidatePermissions(ctx, req.Permissions); err != nil {
		writeServiceError(w, a.log, requestID, err)
		return
	}

	subject := r.PathValue("subject")
	sp := types.SubjectPermissions{SubjectID: subject, Permissions: req.Permissions}
	if err := a.store.UpdateSubjectPermissions(ctx, sp); err != nil {
		writeServiceError(w, a.log, requestID, err)
		return
	}
	writeJSON(w, http.StatusOK, sp)
}
