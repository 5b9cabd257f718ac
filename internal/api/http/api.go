package http

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/rapid-data/rapid/internal/job"
	"github.com/rapid-data/rapid/internal/permission"
	"github.com/rapid-data/rapid/internal/query"
	"github.com/rapid-data/rapid/internal/schema"
	"github.com/rapid-data/rapid/internal/upload"
)

// API holds the service dependencies of every handler.
type API struct {
	schemas   *schema.Service
	evaluator *permission.Evaluator
	domains   *permission.DomainService
	store     permission.Store
	uploads   *upload.Processor
	queries   *query.Service
	jobs      *job.Service

	uploadDir      string
	maxUploadBytes int64
	log            *zap.Logger
}

// Config carries the handler-level settings.
type Config struct {
	// UploadDir is where in-flight uploads are spooled.
	UploadDir string
	// MaxUploadBytes caps the accepted upload body size.
	MaxUploadBytes int64
}

// New creates the API surface.
func New(
	schemas *schema.Service,
	evaluator *permission.Evaluator,
	domains *permission.DomainService,
	store permission.Store,
	uploads *upload.Processor,
	queries *query.Service,
	jobs *job.Service,
	cfg Config,
	log *zap.Logger,
) *API {
	return &API{
		schemas:        schemas,
		evaluator:      evaluator,
		domains:        domains,
		store:          store,
		uploads:        uploads,
		queries:        queries,
		jobs:           jobs,
		uploadDir:      cfg.UploadDir,
		maxUploadBytes: cfg.MaxUploadBytes,
		log:            log.Named("api"),
	}
}

// Routes assembles the full handler with middleware applied.
func (a *API) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /status", a.handleStatus)

	mux.HandleFunc("POST /api/schema", a.handleUploadSchema)
	mux.HandleFunc("PUT /api/schema", a.handleUpdateSchema)

	mux.HandleFunc("GET /api/datasets", a.handleListDatasets)
	mux.HandleFunc("GET /api/datasets/{layer}/{domain}/{dataset}/info", a.handleDatasetInfo)
	mux.HandleFunc("POST /api/datasets/{layer}/{domain}/{dataset}", a.handleUploadData)
	mux.HandleFunc("DELETE /api/datasets/{layer}/{domain}/{dataset}", a.handleDeleteDataset)
	mux.HandleFunc("POST /api/datasets/{layer}/{domain}/{dataset}/query", a.handleQuery)
	mux.HandleFunc("POST /api/datasets/{layer}/{domain}/{dataset}/query/large", a.handleQueryLarge)

	mux.HandleFunc("GET /api/jobs", a.handleListJobs)
	mux.HandleFunc("GET /api/jobs/{id}", a.handleGetJob)

	mux.HandleFunc("GET /api/protected_domains", a.handleListProtectedDomains)
	mux.HandleFunc("POST /api/protected_domains/{domain}", a.handleCreateProtectedDomain)
	mux.HandleFunc("DELETE /api/protected_domains/{domain}", a.handleDeleteProtectedDomain)

	mux.HandleFunc("GET /api/subjects/{subject}/permissions", a.handleGetSubjectPermissions)
	mux.HandleFunc("PUT /api/subjects/{subject}/permissions", a.handleUpdateSubjectPermissions)

	chain := ChainMiddleware(
		RequestIDMiddleware,
		LoggingMiddleware(a.log),
		RecoveryMiddleware(a.log),
		a.authExceptStatus,
	)
	return chain(mux)
}

// authExceptStatus applies AuthMiddleware everywhere but the health check.
func (a *API) authExceptStatus(next http.Handler) http.Handler {
	authed := AuthMiddleware(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/status" {
			next.ServeHTTP(w, r)
			return
		}
		authed.ServeHTTP(w, r)
	})
}

func (a *API) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "deployed"})
}
