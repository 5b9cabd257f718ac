package job

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rapid-data/rapid/internal/errors"
	"github.com/rapid-data/rapid/pkg/types"
)

// Store persists job records. Every state transition is one store write.
type Store interface {
	// Put writes the job record, creating or replacing it.
	Put(ctx context.Context, j *Job) error

	// Get returns the job with the given id, or nil.
	Get(ctx context.Context, id string) (*Job, error)

	// ListForSubject returns the subject's jobs, newest first.
	ListForSubject(ctx context.Context, subjectID string) ([]*Job, error)
}

// Service creates jobs and persists each state transition immediately, so a
// crash between transitions leaves a stale but never corrupted record.
type Service struct {
	store Store
	ttl   time.Duration
	log   *zap.Logger
}

// NewService creates a job service. ttl bounds how long finished records are
// retained by the backing store.
func NewService(store Store, ttl time.Duration, log *zap.Logger) *Service {
	return &Service{store: store, ttl: ttl, log: log.Named("job")}
}

// CreateUploadJob opens an upload job at INITIALISATION.
func (s *Service) CreateUploadJob(ctx context.Context, subjectID string, m types.SchemaMetadata, filename string) (*Job, error) {
	j := s.newJob(subjectID, m)
	j.Type = TypeUpload
	j.Step = StepInitialisation
	j.Filename = filename
	if err := s.store.Put(ctx, j); err != nil {
		return nil, err
	}
	s.log.Info("upload job created", zap.String("job_id", j.ID), zap.String("dataset", m.String()))
	return j, nil
}

// CreateQueryJob opens a query job at RUNNING.
func (s *Service) CreateQueryJob(ctx context.Context, subjectID string, m types.SchemaMetadata) (*Job, error) {
	j := s.newJob(subjectID, m)
	j.Type = TypeQuery
	j.Step = StepRunning
	if err := s.store.Put(ctx, j); err != nil {
		return nil, err
	}
	s.log.Info("query job created", zap.String("job_id", j.ID), zap.String("dataset", m.String()))
	return j, nil
}

func (s *Service) newJob(subjectID string, m types.SchemaMetadata) *Job {
	now := time.Now().UTC()
	return &Job{
		ID:        uuid.NewString(),
		SubjectID: subjectID,
		Status:    StatusInProgress,
		Dataset:   m,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl).Unix(),
	}
}

// UpdateStep advances the job's step and persists the transition.
func (s *Service) UpdateStep(ctx context.Context, j *Job, step Step) error {
	if err := j.advance(step); err != nil {
		return err
	}
	return s.store.Put(ctx, j)
}

// Succeed marks an upload job SUCCESS and persists the transition.
func (s *Service) Succeed(ctx context.Context, j *Job) error {
	if err := j.succeed(); err != nil {
		return err
	}
	return s.store.Put(ctx, j)
}

// SucceedQuery marks a query job SUCCESS with its results URL.
func (s *Service) SucceedQuery(ctx context.Context, j *Job, resultsURL string) error {
	if err := j.succeed(); err != nil {
		return err
	}
	j.ResultsURL = resultsURL
	return s.store.Put(ctx, j)
}

// Fail marks the job FAILED with the aggregated error list, leaving the
// failing step visible.
func (s *Service) Fail(ctx context.Context, j *Job, errs []string) error {
	if err := j.fail(errs); err != nil {
		return err
	}
	return s.store.Put(ctx, j)
}

// GetJob returns a job by id or a not-found error.
func (s *Service) GetJob(ctx context.Context, id string) (*Job, error) {
	j, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if j == nil {
		return nil, errors.NewNotFoundError(errors.CodeJobNotFound,
			fmt.Sprintf("job [%s] not found", id))
	}
	return j, nil
}

// ListJobs returns the subject's jobs.
func (s *Service) ListJobs(ctx context.Context, subjectID string) ([]*Job, error) {
	return s.store.ListForSubject(ctx, subjectID)
}

// MemoryStore is an in-memory Store used in tests and local development.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewMemoryStore creates an empty in-memory job store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]*Job)}
}

func (s *MemoryStore) Put(_ context.Context, j *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *j
	s.jobs[j.ID] = &cp
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if j, ok := s.jobs[id]; ok {
		cp := *j
		return &cp, nil
	}
	return nil, nil
}

func (s *MemoryStore) ListForSubject(_ context.Context, subjectID string) ([]*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Job
	for _, j := range s.jobs {
		if j.SubjectID == subjectID {
			cp := *j
			out = append(out, &cp)
		}
	}
	return out, nil
}
