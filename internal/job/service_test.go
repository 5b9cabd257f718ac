package job

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rapid-data/rapid/internal/errors"
	"github.com/rapid-data/rapid/pkg/types"
)

func newService(t *testing.T) (*Service, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	return NewService(store, 24*time.Hour, zap.NewNop()), store
}

func datasetMeta() types.SchemaMetadata {
	return types.SchemaMetadata{Layer: types.LayerRaw, Domain: "sales", Dataset: "orders", Version: 1}
}

func TestCreateUploadJob(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	j, err := svc.CreateUploadJob(ctx, "svc-uploader", datasetMeta(), "orders.csv")
	require.NoError(t, err)

	assert.NotEmpty(t, j.ID)
	assert.Equal(t, TypeUpload, j.Type)
	assert.Equal(t, StatusInProgress, j.Status)
	assert.Equal(t, StepInitialisation, j.Step)
	assert.Equal(t, "orders.csv", j.Filename)
	assert.Greater(t, j.ExpiresAt, j.CreatedAt.Unix())

	stored, err := store.Get(ctx, j.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, StepInitialisation, stored.Step)
}

func TestCreateQueryJob(t *testing.T) {
	svc, _ := newService(t)

	j, err := svc.CreateQueryJob(context.Background(), "svc-reader", datasetMeta())
	require.NoError(t, err)
	assert.Equal(t, TypeQuery, j.Type)
	assert.Equal(t, StepRunning, j.Step)
}

func TestUploadStepProgressionPersistsEachTransition(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	j, err := svc.CreateUploadJob(ctx, "svc-uploader", datasetMeta(), "orders.csv")
	require.NoError(t, err)

	steps := []Step{StepValidation, StepRawDataUpload, StepDataUpload, StepLoadPartitions, StepCleanUp}
	for _, step := range steps {
		require.NoError(t, svc.UpdateStep(ctx, j, step))
		stored, err := store.Get(ctx, j.ID)
		require.NoError(t, err)
		assert.Equal(t, step, stored.Step)
		assert.Equal(t, StatusInProgress, stored.Status)
	}

	require.NoError(t, svc.Succeed(ctx, j))
	stored, err := store.Get(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, stored.Status)
	assert.Equal(t, StepNone, stored.Step)
}

func TestFailKeepsFailingStep(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	j, err := svc.CreateUploadJob(ctx, "svc-uploader", datasetMeta(), "orders.csv")
	require.NoError(t, err)
	require.NoError(t, svc.UpdateStep(ctx, j, StepValidation))
	require.NoError(t, svc.Fail(ctx, j, []string{"Dataset has no rows, it cannot be processed"}))

	stored, err := store.Get(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, stored.Status)
	assert.Equal(t, StepValidation, stored.Step)
	assert.Equal(t, []string{"Dataset has no rows, it cannot be processed"}, stored.Errors)
}

func TestFinishedJobRejectsFurtherTransitions(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	j, err := svc.CreateUploadJob(ctx, "svc-uploader", datasetMeta(), "orders.csv")
	require.NoError(t, err)
	require.NoError(t, svc.Succeed(ctx, j))

	for name, op := range map[string]func() error{
		"advance": func() error { return svc.UpdateStep(ctx, j, StepValidation) },
		"succeed": func() error { return svc.Succeed(ctx, j) },
		"fail":    func() error { return svc.Fail(ctx, j, []string{"boom"}) },
	} {
		err := op()
		require.Error(t, err, name)
		var rerr *errors.RapidError
		require.ErrorAs(t, err, &rerr, name)
		assert.Equal(t, errors.CodeJobFinished, rerr.Code, name)
	}
}

func TestSucceedQuerySetsResultsURL(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	j, err := svc.CreateQueryJob(ctx, "svc-reader", datasetMeta())
	require.NoError(t, err)
	require.NoError(t, svc.UpdateStep(ctx, j, StepGeneratingResults))
	require.NoError(t, svc.SucceedQuery(ctx, j, "https://example.com/results.csv"))

	stored, err := store.Get(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, stored.Status)
	assert.Equal(t, "https://example.com/results.csv", stored.ResultsURL)
}

func TestGetJobNotFound(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.GetJob(context.Background(), "no-such-id")
	require.Error(t, err)
	var rerr *errors.RapidError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, errors.CodeJobNotFound, rerr.Code)
}

func TestListJobsFiltersBySubject(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.CreateUploadJob(ctx, "svc-a", datasetMeta(), "a.csv")
	require.NoError(t, err)
	_, err = svc.CreateUploadJob(ctx, "svc-a", datasetMeta(), "b.csv")
	require.NoError(t, err)
	_, err = svc.CreateUploadJob(ctx, "svc-b", datasetMeta(), "c.csv")
	require.NoError(t, err)

	jobs, err := svc.ListJobs(ctx, "svc-a")
	require.NoError(t, err)
	assert.Len(t, jobs, 2)
	for _, j := range jobs {
		assert.Equal(t, "svc-a", j.SubjectID)
	}
}
