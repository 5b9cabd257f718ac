// Package http provides the HTTP API surface of the rAPId service.
package http

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rapid-data/rapid/internal/errors"
)

// Context keys for request metadata.
type contextKey string

const (
	// requestIDKey is the context key for the request ID.
	requestIDKey contextKey = "request_id"
	// subjectIDKey is the context key for the authenticated subject.
	subjectIDKey contextKey = "subject_id"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Details   []string `json:"details"`
	RequestID string   `json:"request_id,omitempty"`
}

// GetRequestID returns the request ID stored in the context.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// GetSubjectID returns the authenticated subject stored in the context.
func GetSubjectID(ctx context.Context) string {
	id, _ := ctx.Value(subjectIDKey).(string)
	return id
}

// RequestIDMiddleware adds a unique request_id to each request.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		w.Header().Set("X-Request-ID", requestID)

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AuthMiddleware resolves the caller's subject id from the bearer token and
// rejects unauthenticated requests. Token verification happens upstream at
// the identity provider; the token carries the subject id.
func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, []string{"missing or malformed bearer token"}, GetRequestID(r.Context()))
			return
		}

		ctx := context.WithValue(r.Context(), subjectIDKey, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RecoveryMiddleware recovers from panics and returns a 500 error.
func RecoveryMiddleware(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					log.Error("panic serving request",
						zap.Any("panic", rec),
						zap.String("path", r.URL.Path))
					writeError(w, http.StatusInternalServerError,
						[]string{errors.GenericServiceMessage}, GetRequestID(r.Context()))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// LoggingMiddleware logs one line per request.
func LoggingMiddleware(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			log.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rec.status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", GetRequestID(r.Context())))
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// ChainMiddleware chains multiple middleware functions together.
func ChainMiddleware(middlewares ...func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}

// writeJSON writes a JSON response body.
func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, details []string, requestID string) {
	writeJSON(w, status, ErrorResponse{Details: details, RequestID: requestID})
}

// writeServiceError maps a service error to its HTTP status. Validation
// failures surface every accumulated message; 5xx failures surface only the
// generic message.
func writeServiceError(w http.ResponseWriter, log *zap.Logger, requestID string, err error) {
	var re *errors.RapidError
	if !stderrors.As(err, &re) {
		log.Error("unhandled error", zap.String("request_id", requestID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, []string{errors.GenericServiceMessage}, requestID)
		return
	}

	status := re.HTTPStatus()
	if status >= 500 {
		log.Error("service error", zap.String("request_id", requestID), zap.Error(err))
		writeError(w, status, []string{errors.GenericServiceMessage}, requestID)
		return
	}

	details := re.Messages
	if len(details) == 0 {
		details = []string{re.Message}
	}
	writeError(w, status, details, requestID)
}
