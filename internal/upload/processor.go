// Package upload orchestrates the dataset upload pipeline: raw file capture,
// chunked validation, partitioning, parquet encoding and catalogue refresh.
package upload

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/rapid-data/rapid/internal/catalog"
	"github.com/rapid-data/rapid/internal/errors"
	"github.com/rapid-data/rapid/internal/job"
	"github.com/rapid-data/rapid/internal/partition"
	"github.com/rapid-data/rapid/internal/reader"
	"github.com/rapid-data/rapid/internal/storage"
	"github.com/rapid-data/rapid/internal/validation"
	"github.com/rapid-data/rapid/pkg/types"
)

// Config bounds the processor's resource use.
type Config struct {
	// MaxConcurrentUploads caps how many uploads run at once; further
	// submissions queue.
	MaxConcurrentUploads int64
	// ChunkRows is how many rows each validation chunk holds.
	ChunkRows int
}

// DefaultConfig returns the default processor limits.
func DefaultConfig() Config {
	return Config{MaxConcurrentUploads: 4, ChunkRows: reader.DefaultChunkRows}
}

// Processor runs dataset uploads asynchronously under a bounded worker pool.
// Each upload is tracked by a job whose step advances as the pipeline runs.
type Processor struct {
	jobs    *job.Service
	storage storage.ObjectStorage
	tables  catalog.TableCatalog
	config  Config
	sem     *semaphore.Weighted
	wg      sync.WaitGroup
	log     *zap.Logger
}

// NewProcessor creates an upload processor.
func NewProcessor(jobs *job.Service, store storage.ObjectStorage, tables catalog.TableCatalog, cfg Config, log *zap.Logger) *Processor {
	if cfg.MaxConcurrentUploads <= 0 {
		cfg.MaxConcurrentUploads = DefaultConfig().MaxConcurrentUploads
	}
	if cfg.ChunkRows <= 0 {
		cfg.ChunkRows = reader.DefaultChunkRows
	}
	return &Processor{
		jobs:    jobs,
		storage: store,
		tables:  tables,
		config:  cfg,
		sem:     semaphore.NewWeighted(cfg.MaxConcurrentUploads),
		log:     log.Named("upload"),
	}
}

// Submit registers an upload of the local file at path against the schema and
// starts processing it in the background. The returned job can be polled for
// progress. The file is removed once processing finishes, whatever the
// outcome.
func (p *Processor) Submit(ctx context.Context, subjectID string, sc *types.Schema, filename, path string) (*job.Job, error) {
	j, err := p.jobs.CreateUploadJob(ctx, subjectID, sc.Metadata, filename)
	if err != nil {
		return nil, err
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		// The request context dies with the HTTP response; processing
		// continues under its own context.
		ctx := context.Background()
		if err := p.sem.Acquire(ctx, 1); err != nil {
			p.fail(ctx, j, err)
			return
		}
		defer p.sem.Release(1)

		p.process(ctx, j, sc, path)
	}()

	return j, nil
}

// Wait blocks until every submitted upload has finished. Used on shutdown.
func (p *Processor) Wait() {
	p.wg.Wait()
}

func (p *Processor) process(ctx context.Context, j *job.Job, sc *types.Schema, path string) {
	defer os.Remove(path)

	rawFile := j.ID + filepath.Ext(j.Filename)
	rawUploaded := false

	fail := func(err error) {
		if rawUploaded {
			if derr := p.storage.DeleteRawData(ctx, sc.Metadata, rawFile); derr != nil {
				p.log.Error("failed to remove raw file after failed upload",
					zap.String("job_id", j.ID), zap.Error(derr))
			}
		}
		p.fail(ctx, j, err)
	}

	// Validation runs over the whole file before anything is stored, so a
	// rejected upload leaves no trace.
	if err := p.jobs.UpdateStep(ctx, j, job.StepValidation); err != nil {
		p.fail(ctx, j, err)
		return
	}
	chunks, err := p.validate(sc, path)
	if err != nil {
		fail(err)
		return
	}

	if err := p.jobs.UpdateStep(ctx, j, job.StepRawDataUpload); err != nil {
		p.fail(ctx, j, err)
		return
	}
	// An OVERWRITE upload replaces everything previously stored, so the old
	// files go before the new raw file lands under the same prefix.
	if sc.Metadata.UpdateBehaviour == types.UpdateOverwrite {
		if err := p.storage.DeletePreviousDatasetFiles(ctx, sc.Metadata); err != nil {
			fail(err)
			return
		}
	}
	if err := p.uploadRaw(ctx, sc.Metadata, rawFile, path); err != nil {
		fail(err)
		return
	}
	rawUploaded = true

	if err := p.jobs.UpdateStep(ctx, j, job.StepDataUpload); err != nil {
		fail(err)
		return
	}
	if err := p.uploadPartitions(ctx, sc, chunks); err != nil {
		fail(err)
		return
	}

	if err := p.jobs.UpdateStep(ctx, j, job.StepLoadPartitions); err != nil {
		fail(err)
		return
	}
	if err := p.tables.StartCrawler(ctx, sc.Metadata); err != nil {
		fail(err)
		return
	}
	if err := p.tables.WaitForCrawlerCompletion(ctx, sc.Metadata); err != nil {
		fail(err)
		return
	}

	if err := p.jobs.UpdateStep(ctx, j, job.StepCleanUp); err != nil {
		fail(err)
		return
	}

	if err := p.jobs.Succeed(ctx, j); err != nil {
		p.log.Error("failed to mark upload job succeeded", zap.String("job_id", j.ID), zap.Error(err))
		return
	}
	p.log.Info("upload complete", zap.String("job_id", j.ID), zap.String("dataset", sc.Metadata.String()))
}

// validate reads the file chunk by chunk and returns the validated tables.
// Diagnostics accumulate across chunks so one pass reports every problem in
// the file.
func (p *Processor) validate(sc *types.Schema, path string) ([]*types.Table, error) {
	r, err := reader.Open(path, p.config.ChunkRows)
	if err != nil {
		return nil, errors.NewUserError(errors.CodeUnprocessableDataset, err.Error())
	}
	defer r.Close()

	pipeline := validation.New(sc)

	var chunks []*types.Table
	var msgs []string
	unprocessable := false
	for {
		chunk, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.NewUserError(errors.CodeUnprocessableDataset, err.Error())
		}

		validated, err := pipeline.BuildValidatedTable(chunk)
		if err != nil {
			if vmsgs := errors.ValidationMessages(err); len(vmsgs) > 0 {
				msgs = append(msgs, vmsgs...)
				continue
			}
			// Unprocessable chunks carry a single message and later
			// chunks cannot fare better.
			unprocessable = true
			msgs = append(msgs, err.Error())
			break
		}
		chunks = append(chunks, validated)
	}

	if unprocessable {
		return nil, errors.NewUnprocessableDatasetError(msgs[0])
	}
	if len(msgs) > 0 {
		return nil, errors.NewDatasetValidationError(msgs)
	}
	if len(chunks) == 0 {
		return nil, errors.NewUnprocessableDatasetError("Dataset has no rows, it cannot be processed")
	}
	return chunks, nil
}

func (p *Processor) uploadRaw(ctx context.Context, m types.SchemaMetadata, rawFile, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to reopen upload: %w", err)
	}
	defer f.Close()
	return p.storage.UploadRawData(ctx, m, rawFile, f)
}

// uploadPartitions splits each validated chunk along the schema's partition
// columns and stores one parquet file per partition per chunk.
func (p *Processor) uploadPartitions(ctx context.Context, sc *types.Schema, chunks []*types.Table) error {
	for _, chunk := range chunks {
		for _, part := range partition.Split(sc, chunk) {
			var buf bytes.Buffer
			if err := reader.WriteParquet(&buf, sc, part.Data); err != nil {
				return err
			}
			filename := uuid.NewString() + ".parquet"
			if err := p.storage.UploadPartitionedData(ctx, sc.Metadata, part.Path, filename, buf.Bytes()); err != nil {
				return err
			}
		}
	}
	return nil
}

// fail records the job failure. User-facing validation messages pass through;
// anything else is logged in full and reported generically.
func (p *Processor) fail(ctx context.Context, j *job.Job, cause error) {
	msgs := errors.ValidationMessages(cause)
	if len(msgs) == 0 {
		var re *errors.RapidError
		if stderrors.As(cause, &re) && re.HTTPStatus() < 500 {
			msgs = []string{re.Message}
		} else {
			msgs = []string{errors.GenericServiceMessage}
		}
	}

	p.log.Error("upload failed",
		zap.String("job_id", j.ID),
		zap.String("step", string(j.Step)),
		zap.Error(cause))

	if err := p.jobs.Fail(ctx, j, msgs); err != nil {
		p.log.Error("failed to mark upload job failed", zap.String("job_id", j.ID), zap.Error(err))
	}
}
