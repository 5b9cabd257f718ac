// Package storage provides object storage abstractions for dataset files.
package storage

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/rapid-data/rapid/pkg/types"
)

// Common errors for storage operations.
var (
	ErrObjectNotFound = errors.New("object not found")
	ErrUploadFailed   = errors.New("upload failed")
	ErrDeleteFailed   = errors.New("delete failed")
)

// ObjectStorage abstracts the blob store holding raw uploads and partitioned
// dataset files. Implementations include S3 and a local filesystem used in
// tests.
type ObjectStorage interface {
	// UploadRawData stores an unprocessed upload under the dataset's raw
	// prefix. filename keeps the caller's extension for later re-reads.
	UploadRawData(ctx context.Context, m types.SchemaMetadata, filename string, body io.Reader) error

	// UploadPartitionedData stores one encoded partition chunk under the
	// dataset's data prefix at the given partition path.
	UploadPartitionedData(ctx context.Context, m types.SchemaMetadata, partitionPath, filename string, body []byte) error

	// DeleteRawData removes one raw upload file.
	DeleteRawData(ctx context.Context, m types.SchemaMetadata, filename string) error

	// DeletePreviousDatasetFiles removes every stored file of the dataset
	// version, raw and partitioned. Used for OVERWRITE uploads and the
	// delete-schema cascade.
	DeletePreviousDatasetFiles(ctx context.Context, m types.SchemaMetadata) error

	// ListRawFiles returns the filenames stored under the dataset's raw
	// prefix.
	ListRawFiles(ctx context.Context, m types.SchemaMetadata) ([]string, error)

	// FolderSize returns the total byte size under a prefix.
	FolderSize(ctx context.Context, prefix string) (int64, error)

	// LastUpdated returns the most recent modification time of any object
	// under a prefix, or the zero time when nothing is stored there.
	LastUpdated(ctx context.Context, prefix string) (time.Time, error)

	// PresignDownloadURL returns a presigned, time-limited download URL for
	// an object key. Used for large-query results; expiry is 24 hours.
	PresignDownloadURL(ctx context.Context, key string) (string, error)
}
