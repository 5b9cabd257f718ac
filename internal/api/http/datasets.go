package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/rapid-data/rapid/internal/errors"
	"github.com/rapid-data/rapid/internal/query"
	"github.com/rapid-data/rapid/pkg/types"
)

// datasetMetadata resolves the dataset identified by the request path to its
// latest registered version.
func (a *API) datasetMetadata(r *http.Request) (types.SchemaMetadata, error) {
	layer := types.Layer(r.PathValue("layer"))
	domain := r.PathValue("domain")
	dataset := r.PathValue("dataset")

	sc, err := a.schemas.GetLatestSchema(r.Context(), layer, domain, dataset)
	if err != nil {
		return types.SchemaMetadata{}, err
	}
	return sc.Metadata, nil
}

// handleListDatasets returns the datasets the caller can READ, optionally
// narrowed by tag filters.
func (a *API) handleListDatasets(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := GetRequestID(ctx)

	q := r.URL.Query()
	keyValueTags := make(map[string]string)
	for _, pair := range q["tag"] {
		if k, v, ok := splitTag(pair); ok {
			keyValueTags[k] = v
		}
	}

	metadatas, err := a.evaluator.FetchDatasets(ctx, GetSubjectID(ctx), types.ActionRead, keyValueTags, q["tag_key"])
	if err != nil {
		writeServiceError(w, a.log, requestID, err)
		return
	}
	writeJSON(w, http.StatusOK, metadatas)
}

func splitTag(pair string) (string, string, bool) {
	for i := 0; i < len(pair); i++ {
		if pair[i] == ':' {
			return pair[:i], pair[i+1:], true
		}
	}
	return "", "", false
}

// handleDatasetInfo returns the latest schema of a dataset the caller can
// READ, along with its raw file list, stored data size and last update time.
func (a *API) handleDatasetInfo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := GetRequestID(ctx)

	m, err := a.datasetMetadata(r)
	if err != nil {
		writeServiceError(w, a.log, requestID, err)
		return
	}
	if err := a.evaluator.CanAccessDataset(ctx, GetSubjectID(ctx), []types.Action{types.ActionRead}, m); err != nil {
		writeServiceError(w, a.log, requestID, err)
		return
	}

	info, err := a.schemas.DatasetInfo(ctx, m)
	if err != nil {
		writeServiceError(w, a.log, requestID, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// uploadResponse acknowledges an accepted upload.
type uploadResponse struct {
	JobID   string `json:"job_id"`
	Dataset string `json:"dataset"`
	Status  string `json:"status"`
}

// handleUploadData accepts a multipart file upload for a dataset the caller
// can WRITE, spools it to disk and processes it asynchronously.
func (a *API) handleUploadData(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := GetRequestID(ctx)
	subjectID := GetSubjectID(ctx)

	m, err := a.datasetMetadata(r)
	if err != nil {
		writeServiceError(w, a.log, requestID, err)
		return
	}
	if err := a.evaluator.CanAccessDataset(ctx, subjectID, []types.Action{types.ActionWrite}, m); err != nil {
		writeServiceError(w, a.log, requestID, err)
		return
	}

	sc, err := a.schemas.GetSchema(ctx, m)
	if err != nil {
		writeServiceError(w, a.log, requestID, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, a.maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, []string{fmt.Sprintf("missing file part: %v", err)}, requestID)
		return
	}
	defer file.Close()

	path, err := a.spool(file, header.Filename)
	if err != nil {
		writeServiceError(w, a.log, requestID, err)
		return
	}

	j, err := a.uploads.Submit(ctx, subjectID, sc, header.Filename, path)
	if err != nil {
		os.Remove(path)
		writeServiceError(w, a.log, requestID, err)
		return
	}

	writeJSON(w, http.StatusAccepted, uploadResponse{
		JobID:   j.ID,
		Dataset: m.String(),
		Status:  string(j.Status),
	})
}

// spool writes the uploaded file to the local upload directory, keeping the
// original extension so the processor can pick the right decoder.
func (a *API) spool(file io.Reader, filename string) (string, error) {
	if err := os.MkdirAll(a.uploadDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create upload directory: %w", err)
	}

	path := filepath.Join(a.uploadDir, uuid.NewString()+filepath.Ext(filename))
	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to spool upload: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, file); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to spool upload: %w", err)
	}
	return path, nil
}

// handleDeleteDataset removes a dataset end to end: stored files, catalogue
// table and every schema version. DATA_ADMIN only.
func (a *API) handleDeleteDataset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := GetRequestID(ctx)

	if err := a.evaluator.CheckAdminPermission(ctx, GetSubjectID(ctx), types.ActionDataAdmin); err != nil {
		writeServiceError(w, a.log, requestID, err)
		return
	}

	m, err := a.datasetMetadata(r)
	if err != nil {
		writeServiceError(w, a.log, requestID, err)
		return
	}
	if err := a.schemas.DeleteSchema(ctx, m); err != nil {
		writeServiceError(w, a.log, requestID, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"details": fmt.Sprintf("dataset [%s] deleted", m.String())})
}

// queryResponse carries a synchronous result set in column-major form.
type queryResponse struct {
	Columns []string                 `json:"columns"`
	Rows    []map[string]interface{} `json:"rows"`
}

func (a *API) decodeQuery(w http.ResponseWriter, r *http.Request, requestID string) (query.SqlQuery, bool) {
	var q query.SqlQuery
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
			writeError(w, http.StatusBadRequest, []string{fmt.Sprintf("invalid request body: %v", err)}, requestID)
			return q, false
		}
	}
	return q, true
}

// handleQuery runs a synchronous query over a dataset the caller can READ.
func (a *API) handleQuery(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := GetRequestID(ctx)

	m, err := a.datasetMetadata(r)
	if err != nil {
		writeServiceError(w, a.log, requestID, err)
		return
	}
	if err := a.evaluator.CanAccessDataset(ctx, GetSubjectID(ctx), []types.Action{types.ActionRead}, m); err != nil {
		writeServiceError(w, a.log, requestID, err)
		return
	}

	q, ok := a.decodeQuery(w, r, requestID)
	if !ok {
		return
	}

	table, err := a.queries.QueryDataset(ctx, m, q)
	if err != nil {
		writeServiceError(w, a.log, requestID, err)
		return
	}

	resp := queryResponse{Columns: table.Columns(), Rows: make([]map[string]interface{}, 0, table.NumRows())}
	for i := 0; i < table.NumRows(); i++ {
		row := make(map[string]interface{}, table.NumColumns())
		for _, name := range resp.Columns {
			row[name] = table.Series(name).Values[i]
		}
		resp.Rows = append(resp.Rows, row)
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleQueryLarge submits an asynchronous query job; the result is fetched
// later through the job's download URL.
func (a *API) handleQueryLarge(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := GetRequestID(ctx)
	subjectID := GetSubjectID(ctx)

	m, err := a.datasetMetadata(r)
	if err != nil {
		writeServiceError(w, a.log, requestID, err)
		return
	}
	if err := a.evaluator.CanAccessDataset(ctx, subjectID, []types.Action{types.ActionRead}, m); err != nil {
		writeServiceError(w, a.log, requestID, err)
		return
	}

	q, ok := a.decodeQuery(w, r, requestID)
	if !ok {
		return
	}

	j, err := a.queries.QueryLargeDataset(ctx, subjectID, m, q)
	if err != nil {
		writeServiceError(w, a.log, requestID, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": j.ID, "status": string(j.Status)})
}

// handleGetJob returns one job record. Jobs are visible to their owner only.
func (a *API) handleGetJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := GetRequestID(ctx)

	j, err := a.jobs.GetJob(ctx, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, a.log, requestID, err)
		return
	}
	if j.SubjectID != GetSubjectID(ctx) {
		writeServiceError(w, a.log, requestID,
			errors.NewAuthorisationError("jobs are only visible to the subject that created them"))
		return
	}
	writeJSON(w, http.StatusOK, j)
}

// handleListJobs returns the caller's jobs.
func (a *API) handleListJobs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := GetRequestID(ctx)

	jobs, err := a.jobs.ListJobs(ctx, GetSubjectID(ctx))
	if err != nil {
		writeServiceError(w, a.log, requestID, err)
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}
