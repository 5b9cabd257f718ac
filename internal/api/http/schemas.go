package http

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rapid-data/rapid/pkg/types"
)

func (a *API) decodeSchema(w http.ResponseWriter, r *http.Request, requestID string) (*types.Schema, bool) {
	var sc types.Schema
	if err := json.NewDecoder(r.Body).Decode(&sc); err != nil {
		writeError(w, http.StatusBadRequest, []string{fmt.Sprintf("invalid request body: %v", err)}, requestID)
		return nil, false
	}
	return &sc, true
}

// handleUploadSchema registers a new dataset schema. DATA_ADMIN only.
func (a *API) handleUploadSchema(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := GetRequestID(ctx)

	if err := a.evaluator.CheckAdminPermission(ctx, GetSubjectID(ctx), types.ActionDataAdmin); err != nil {
		writeServiceError(w, a.log, requestID, err)
		return
	}

	sc, ok := a.decodeSchema(w, r, requestID)
	if !ok {
		return
	}

	stored, err := a.schemas.UploadSchema(ctx, sc)
	if err != nil {
		writeServiceError(w, a.log, requestID, err)
		return
	}
	writeJSON(w, http.StatusCreated, stored.Metadata)
}

// handleUpdateSchema registers the next version of an existing dataset
// schema. DATA_ADMIN only.
func (a *API) handleUpdateSchema(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := GetRequestID(ctx)

	if err := a.evaluator.CheckAdminPermission(ctx, GetSubjectID(ctx), types.ActionDataAdmin); err != nil {
		writeServiceError(w, a.log, requestID, err)
		return
	}

	sc, ok := a.decodeSchema(w, r, requestID)
	if !ok {
		return
	}

	stored, err := a.schemas.UpdateSchema(ctx, sc)
	if err != nil {
		writeServiceError(w, a.log, requestID, err)
		return
	}
	writeJSON(w, http.StatusOK, stored.Metadata)
}
