// Package job tracks an upload or query's progress through ordered steps to
// a terminal SUCCESS or FAILED status.
package job

import (
	"fmt"
	"time"

	"github.com/rapid-data/rapid/internal/errors"
	"github.com/rapid-data/rapid/pkg/types"
)

// Type distinguishes upload jobs from large-query jobs.
type Type string

const (
	TypeUpload Type = "UPLOAD"
	TypeQuery  Type = "QUERY"
)

// Status is the job's lifecycle state. IN PROGRESS is initial; SUCCESS and
// FAILED are terminal.
type Status string

const (
	StatusInProgress Status = "IN PROGRESS"
	StatusSuccess    Status = "SUCCESS"
	StatusFailed     Status = "FAILED"
)

// Step identifies where in its pipeline a job currently is. The step enum is
// type specific.
type Step string

// Upload steps, in execution order.
const (
	StepInitialisation Step = "INITIALISATION"
	StepValidation     Step = "VALIDATION"
	StepRawDataUpload  Step = "RAW_DATA_UPLOAD"
	StepDataUpload     Step = "DATA_UPLOAD"
	StepLoadPartitions Step = "LOAD_PARTITIONS"
	StepCleanUp        Step = "CLEAN_UP"
	StepNone           Step = "NONE"
)

// Query steps.
const (
	StepRunning           Step = "RUNNING"
	StepGeneratingResults Step = "GENERATING_RESULTS"
)

// Job is one asynchronous unit of work. The worker that creates a job owns
// it exclusively until its terminal transition; no other goroutine mutates
// it.
type Job struct {
	ID        string               `json:"job_id"`
	SubjectID string               `json:"subject_id"`
	Type      Type                 `json:"type"`
	Status    Status               `json:"status"`
	Step      Step                 `json:"step"`
	Dataset   types.SchemaMetadata `json:"dataset"`

	// Filename is set for upload jobs.
	Filename string `json:"filename,omitempty"`

	// ExecutionID and ResultsURL are set for query jobs.
	ExecutionID string `json:"execution_id,omitempty"`
	ResultsURL  string `json:"results_url,omitempty"`

	// Errors holds the failure diagnostics of a FAILED job.
	Errors []string `json:"errors,omitempty"`

	CreatedAt time.Time `json:"created_at"`

	// ExpiresAt is the Unix timestamp after which the record may be reaped.
	ExpiresAt int64 `json:"expires_at"`
}

// Finished reports whether the job reached a terminal status.
func (j *Job) Finished() bool {
	return j.Status == StatusSuccess || j.Status == StatusFailed
}

// advance moves the job to the given step. Advancing a finished job is a
// state-machine violation.
func (j *Job) advance(step Step) error {
	if j.Finished() {
		return errors.NewConflictError(errors.CodeJobFinished,
			fmt.Sprintf("job [%s] already finished with status [%s]", j.ID, j.Status))
	}
	j.Step = step
	return nil
}

// succeed marks the job SUCCESS with step NONE.
func (j *Job) succeed() error {
	if j.Finished() {
		return errors.NewConflictError(errors.CodeJobFinished,
			fmt.Sprintf("job [%s] already finished with status [%s]", j.ID, j.Status))
	}
	j.Status = StatusSuccess
	j.Step = StepNone
	return nil
}

// fail marks the job FAILED and attaches the error list. The failing step is
// left untouched so diagnostics retain where the job died.
func (j *Job) fail(errs []string) error {
	if j.Finished() {
		return errors.NewConflictError(errors.CodeJobFinished,
			fmt.Sprintf("job [%s] already finished with status [%s]", j.ID, j.Status))
	}
	j.Status = StatusFailed
	j.Errors = errs
	return nil
}
