package query

import (
	"context"
	stderrors "errors"
	"sync"

	"go.uber.org/zap"

	"github.com/rapid-data/rapid/internal/catalog"
	"github.com/rapid-data/rapid/internal/errors"
	"github.com/rapid-data/rapid/internal/job"
	"github.com/rapid-data/rapid/internal/observability"
	"github.com/rapid-data/rapid/internal/schema"
	"github.com/rapid-data/rapid/internal/storage"
	"github.com/rapid-data/rapid/pkg/types"
)

// Service executes dataset queries. Small queries run synchronously; large
// ones run as tracked jobs whose results are fetched via a presigned link.
type Service struct {
	schemas *schema.Service
	engine  catalog.QueryEngine
	storage storage.ObjectStorage
	jobs    *job.Service
	stats   *observability.QueryStats
	wg      sync.WaitGroup
	log     *zap.Logger
}

// NewService creates a query service. stats may be nil to disable predicate
// tracking.
func NewService(schemas *schema.Service, engine catalog.QueryEngine, store storage.ObjectStorage, jobs *job.Service, stats *observability.QueryStats, log *zap.Logger) *Service {
	return &Service{
		schemas: schemas,
		engine:  engine,
		storage: store,
		jobs:    jobs,
		stats:   stats,
		log:     log.Named("query"),
	}
}

// QueryDataset runs the query synchronously and returns the result set. An
// empty query selects the whole dataset.
func (s *Service) QueryDataset(ctx context.Context, m types.SchemaMetadata, q SqlQuery) (*types.Table, error) {
	sql, err := s.buildSQL(ctx, m, q)
	if err != nil {
		return nil, err
	}
	return s.engine.Query(ctx, sql)
}

// QueryLargeDataset submits the query as a background job. The caller polls
// the job; on success the job carries a time-limited download URL for the
// raw result file.
func (s *Service) QueryLargeDataset(ctx context.Context, subjectID string, m types.SchemaMetadata, q SqlQuery) (*job.Job, error) {
	sql, err := s.buildSQL(ctx, m, q)
	if err != nil {
		return nil, err
	}

	j, err := s.jobs.CreateQueryJob(ctx, subjectID, m)
	if err != nil {
		return nil, err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		// Processing outlives the request.
		ctx := context.Background()
		s.run(ctx, j, sql)
	}()

	return j, nil
}

// Wait blocks until every submitted large query has finished. Used on
// shutdown.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) run(ctx context.Context, j *job.Job, sql string) {
	executionID, err := s.engine.QueryAsync(ctx, sql)
	if err != nil {
		s.fail(ctx, j, err)
		return
	}
	j.ExecutionID = executionID

	if err := s.engine.WaitForCompletion(ctx, executionID); err != nil {
		s.fail(ctx, j, err)
		return
	}

	if err := s.jobs.UpdateStep(ctx, j, job.StepGeneratingResults); err != nil {
		s.fail(ctx, j, err)
		return
	}

	key, err := s.engine.ResultsLocation(ctx, executionID)
	if err != nil {
		s.fail(ctx, j, err)
		return
	}
	url, err := s.storage.PresignDownloadURL(ctx, key)
	if err != nil {
		s.fail(ctx, j, err)
		return
	}

	if err := s.jobs.SucceedQuery(ctx, j, url); err != nil {
		s.log.Error("failed to mark query job succeeded", zap.String("job_id", j.ID), zap.Error(err))
		return
	}
	s.log.Info("large query complete", zap.String("job_id", j.ID), zap.String("execution_id", executionID))
}

func (s *Service) fail(ctx context.Context, j *job.Job, cause error) {
	s.log.Error("query job failed",
		zap.String("job_id", j.ID),
		zap.String("step", string(j.Step)),
		zap.Error(cause))

	msg := errors.GenericServiceMessage
	var re *errors.RapidError
	if stderrors.As(cause, &re) && re.HTTPStatus() < 500 {
		msg = re.Message
	}
	if err := s.jobs.Fail(ctx, j, []string{msg}); err != nil {
		s.log.Error("failed to mark query job failed", zap.String("job_id", j.ID), zap.Error(err))
	}
}

// buildSQL resolves the dataset's table and renders the query.
func (s *Service) buildSQL(ctx context.Context, m types.SchemaMetadata, q SqlQuery) (string, error) {
	sc, err := s.schemas.GetSchema(ctx, m)
	if err != nil {
		return "", err
	}
	table := sc.Metadata.TableName()
	sql, err := q.ToSQL(table)
	if err != nil {
		return "", err
	}
	if s.stats != nil && q.Filter != nil {
		q.Filter.EachCondition(func(c FilterCondition) {
			s.stats.RecordPredicate(table, c.Column, c.Operator)
		})
	}
	return sql, nil
}
