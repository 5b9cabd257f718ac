// Package errors provides structured error types for the rAPId service.
// All errors include a category, code and message for consistent handling at
// the controller boundary; validation errors additionally carry the full
// aggregated message list.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorCategory classifies errors by how the caller should handle them.
type ErrorCategory string

const (
	// ErrCategoryUser marks caller-correctable input errors (4xx).
	ErrCategoryUser ErrorCategory = "USER"
	// ErrCategoryValidation marks dataset schema-conformance failures.
	ErrCategoryValidation ErrorCategory = "VALIDATION"
	// ErrCategoryAuthorisation marks failed permission overlap decisions.
	ErrCategoryAuthorisation ErrorCategory = "AUTHORISATION"
	// ErrCategoryConflict marks state-precondition violations.
	ErrCategoryConflict ErrorCategory = "CONFLICT"
	// ErrCategoryNotFound marks missing schemas, jobs, domains or subjects.
	ErrCategoryNotFound ErrorCategory = "NOT_FOUND"
	// ErrCategoryService marks backing-service failures (5xx).
	ErrCategoryService ErrorCategory = "SERVICE"
)

// Error codes for each category.
const (
	// User codes
	CodeInvalidPermission = "INVALID_PERMISSION"
	CodeInvalidDomain     = "INVALID_DOMAIN"
	CodeInvalidSchema     = "INVALID_SCHEMA"
	CodeInvalidQuery      = "INVALID_QUERY"

	// Validation codes
	CodeDatasetValidation    = "DATASET_VALIDATION_FAILED"
	CodeUnprocessableDataset = "UNPROCESSABLE_DATASET"

	// Authorisation codes
	CodeAccessDenied = "ACCESS_DENIED"

	// Conflict codes
	CodeDomainConflict = "DOMAIN_CONFLICT"
	CodeDomainNotEmpty = "DOMAIN_NOT_EMPTY"
	CodeJobFinished    = "JOB_FINISHED"

	// Not-found codes
	CodeSchemaNotFound  = "SCHEMA_NOT_FOUND"
	CodeDomainNotFound  = "DOMAIN_NOT_FOUND"
	CodeSubjectNotFound = "SUBJECT_NOT_FOUND"
	CodeJobNotFound     = "JOB_NOT_FOUND"

	// Service codes
	CodeAWSFailure      = "AWS_FAILURE"
	CodeQueryExecution  = "QUERY_EXECUTION_FAILED"
	CodeCrawlerNotReady = "CRAWLER_NOT_READY"
)

// RapidError is the structured error type used throughout the service.
type RapidError struct {
	Category ErrorCategory
	Code     string
	Message  string

	// Messages holds the aggregated per-column diagnostics of a dataset
	// validation failure. Empty for every other category.
	Messages []string

	Cause     error
	Retryable bool
}

// Error returns a formatted error string.
func (e *RapidError) Error() string {
	msg := e.Message
	if len(e.Messages) > 0 {
		msg = strings.Join(e.Messages, "; ")
	}
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, msg, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, msg)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *RapidError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *RapidError) Is(target error) bool {
	var t *RapidError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// HTTPStatus maps the error to the status the controller layer should return.
// Backing-service failures map to 500; the caller-facing body for those must
// be the generic administrator message, never the underlying detail.
func (e *RapidError) HTTPStatus() int {
	switch e.Category {
	case ErrCategoryUser:
		return http.StatusBadRequest
	case ErrCategoryValidation:
		if e.Code == CodeUnprocessableDataset {
			return http.StatusUnprocessableEntity
		}
		return http.StatusBadRequest
	case ErrCategoryAuthorisation:
		return http.StatusUnauthorized
	case ErrCategoryConflict:
		return http.StatusConflict
	case ErrCategoryNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// New creates a new RapidError.
func New(category ErrorCategory, code, message string) *RapidError {
	return &RapidError{
		Category:  category,
		Code:      code,
		Message:   message,
		Retryable: code == CodeCrawlerNotReady,
	}
}

// Wrap creates a new RapidError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *RapidError {
	e := New(category, code, message)
	e.Cause = cause
	return e
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not a RapidError.
func GetCategory(err error) ErrorCategory {
	var re *RapidError
	if errors.As(err, &re) {
		return re.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
func GetCode(err error) string {
	var re *RapidError
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}

// ValidationMessages extracts the aggregated message list from a dataset
// validation failure, or nil.
func ValidationMessages(err error) []string {
	var re *RapidError
	if errors.As(err, &re) {
		return re.Messages
	}
	return nil
}

// IsRetryable checks whether an error (or its chain) is retryable.
func IsRetryable(err error) bool {
	var re *RapidError
	if errors.As(err, &re) {
		return re.Retryable
	}
	return false
}

// Convenience constructors for the error kinds the service surfaces.

// NewUserError marks a caller-correctable input error.
func NewUserError(code, message string) *RapidError {
	return New(ErrCategoryUser, code, message)
}

// NewDatasetValidationError carries the full aggregated diagnostics of a
// failed validation run.
func NewDatasetValidationError(messages []string) *RapidError {
	e := New(ErrCategoryValidation, CodeDatasetValidation, "dataset failed validation")
	e.Messages = messages
	return e
}

// NewUnprocessableDatasetError marks a dataset on which no column-wise
// validation is meaningful (column-set mismatch, zero rows).
func NewUnprocessableDatasetError(message string) *RapidError {
	return New(ErrCategoryValidation, CodeUnprocessableDataset, message)
}

// NewAuthorisationError names the subject and dataset of a failed access
// decision.
func NewAuthorisationError(message string) *RapidError {
	return New(ErrCategoryAuthorisation, CodeAccessDenied, message)
}

// NewAWSServiceError wraps a backing-service failure. The full detail is kept
// for logging; callers receive only the generic message.
func NewAWSServiceError(message string, cause error) *RapidError {
	return Wrap(ErrCategoryService, CodeAWSFailure, message, cause)
}

// NewQueryExecutionError wraps a failed or cancelled query execution.
func NewQueryExecutionError(message string, cause error) *RapidError {
	return Wrap(ErrCategoryService, CodeQueryExecution, message, cause)
}

// NewCrawlerNotReadyError marks a catalog that has not finished propagating.
// It is the only retryable error the core emits.
func NewCrawlerNotReadyError(message string) *RapidError {
	return New(ErrCategoryService, CodeCrawlerNotReady, message)
}

// NewConflictError marks a state-precondition violation on create.
func NewConflictError(code, message string) *RapidError {
	return New(ErrCategoryConflict, code, message)
}

// NewDomainNotEmptyError names the datasets blocking a protected-domain
// deletion.
func NewDomainNotEmptyError(domain string, datasets []string) *RapidError {
	return New(ErrCategoryConflict, CodeDomainNotEmpty,
		fmt.Sprintf("cannot delete protected domain [%s] as it is referenced by datasets %v", domain, datasets))
}

// NewNotFoundError marks a missing schema, domain, subject or job.
func NewNotFoundError(code, message string) *RapidError {
	return New(ErrCategoryNotFound, code, message)
}

// GenericServiceMessage is the caller-facing body for 5xx failures; the real
// detail stays in the logs.
const GenericServiceMessage = "something went wrong, please contact your system administrator"
