package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPStatusMapping(t *testing.T) {
	tests := []struct {
		name string
		err  *RapidError
		want int
	}{
		{"user error", NewUserError(CodeInvalidQuery, "bad query"), http.StatusBadRequest},
		{"validation error", NewDatasetValidationError([]string{"bad column"}), http.StatusBadRequest},
		{"unprocessable dataset", NewUnprocessableDatasetError("no rows"), http.StatusUnprocessableEntity},
		{"authorisation error", NewAuthorisationError("denied"), http.StatusUnauthorized},
		{"conflict", NewConflictError(CodeDomainConflict, "exists"), http.StatusConflict},
		{"not found", NewNotFoundError(CodeSchemaNotFound, "missing"), http.StatusNotFound},
		{"service failure", NewAWSServiceError("s3 write failed", errors.New("timeout")), http.StatusInternalServerError},
		{"crawler not ready", NewCrawlerNotReadyError("still running"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.HTTPStatus())
		})
	}
}

func TestErrorStringIncludesCategoryCodeAndCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewAWSServiceError("s3 write failed", cause)
	assert.Equal(t, "[SERVICE:AWS_FAILURE] s3 write failed: connection reset", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestValidationMessagesSurviveWrapping(t *testing.T) {
	err := NewDatasetValidationError([]string{"one", "two"})
	wrapped := fmt.Errorf("processing upload: %w", err)

	assert.Equal(t, []string{"one", "two"}, ValidationMessages(wrapped))
	assert.Nil(t, ValidationMessages(errors.New("plain")))
}

func TestIsMatchesCategoryAndCode(t *testing.T) {
	err := NewNotFoundError(CodeJobNotFound, "job [x] not found")
	assert.ErrorIs(t, err, NewNotFoundError(CodeJobNotFound, "different message"))
	assert.NotErrorIs(t, err, NewNotFoundError(CodeSchemaNotFound, "job [x] not found"))
}

func TestOnlyCrawlerNotReadyIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(NewCrawlerNotReadyError("still running")))
	assert.False(t, IsRetryable(NewAWSServiceError("failed", nil)))
	assert.False(t, IsRetryable(NewUserError(CodeInvalidQuery, "bad")))

	require.False(t, IsRetryable(errors.New("plain")))
}

func TestGetCategoryAndCode(t *testing.T) {
	err := fmt.Errorf("outer: %w", NewConflictError(CodeJobFinished, "done"))
	assert.Equal(t, ErrCategoryConflict, GetCategory(err))
	assert.Equal(t, CodeJobFinished, GetCode(err))
	assert.Empty(t, GetCategory(errors.New("plain")))
}
