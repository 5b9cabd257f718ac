package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/cenkalti/backoff/v4"

	"github.com/rapid-data/rapid/pkg/types"
)

// S3Config holds configuration for S3 storage.
type S3Config struct {
	// Region is the AWS region for the bucket.
	Region string
	// Endpoint is an optional custom endpoint (for MinIO, LocalStack, etc.).
	Endpoint string
	// UsePathStyle enables path-style addressing (required for MinIO).
	UsePathStyle bool
}

// DefaultS3Config returns the default S3 configuration.
func DefaultS3Config() S3Config {
	return S3Config{Region: "eu-west-2"}
}

// presignExpiry is how long a results download link stays valid.
const presignExpiry = 24 * time.Hour

// S3Storage implements ObjectStorage against an S3 bucket.
type S3Storage struct {
	client    *s3.Client
	presigner *s3.PresignClient
	bucket    string
	config    S3Config
}

// NewS3Storage creates a new S3 storage client.
func NewS3Storage(ctx context.Context, bucket string, cfg S3Config) (*S3Storage, error) {
	var opts []func(*config.LoadOptions) error

	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	client := s3.NewFromConfig(awsCfg, s3Opts...)

	return NewS3StorageWithClient(client, bucket, cfg), nil
}

// NewS3StorageWithClient creates a new S3 storage with a pre-configured client.
func NewS3StorageWithClient(client *s3.Client, bucket string, cfg S3Config) *S3Storage {
	return &S3Storage{
		client:    client,
		presigner: s3.NewPresignClient(client),
		bucket:    bucket,
		config:    cfg,
	}
}

// UploadRawData stores an unprocessed upload under the dataset's raw prefix.
func (s *S3Storage) UploadRawData(ctx context.Context, m types.SchemaMetadata, filename string, body io.Reader) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	return s.put(ctx, path.Join(m.RawDataLocation(), filename), data)
}

// UploadPartitionedData stores one encoded partition chunk under the dataset's
// data prefix.
func (s *S3Storage) UploadPartitionedData(ctx context.Context, m types.SchemaMetadata, partitionPath, filename string, body []byte) error {
	key := path.Join(m.DatasetLocation(), partitionPath, filename)
	return s.put(ctx, key, body)
}

func (s *S3Storage) put(ctx context.Context, key string, data []byte) error {
	err := s.retry(ctx, func() error {
		_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
			Body:   bytes.NewReader(data),
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	return nil
}

// DeleteRawData removes one raw upload file.
func (s *S3Storage) DeleteRawData(ctx context.Context, m types.SchemaMetadata, filename string) error {
	err := s.retry(ctx, func() error {
		_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(path.Join(m.RawDataLocation(), filename)),
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeleteFailed, err)
	}
	return nil
}

// DeletePreviousDatasetFiles removes every raw and partitioned file held for
// the dataset version.
func (s *S3Storage) DeletePreviousDatasetFiles(ctx context.Context, m types.SchemaMetadata) error {
	for _, prefix := range []string{m.RawDataLocation(), m.DatasetLocation()} {
		keys, err := s.listKeys(ctx, prefix+"/")
		if err != nil {
			return err
		}
		if err := s.deleteKeys(ctx, keys); err != nil {
			return err
		}
	}
	return nil
}

// ListRawFiles returns the filenames stored under the dataset's raw prefix.
func (s *S3Storage) ListRawFiles(ctx context.Context, m types.SchemaMetadata) ([]string, error) {
	prefix := m.RawDataLocation() + "/"
	keys, err := s.listKeys(ctx, prefix)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(keys))
	for _, key := range keys {
		names = append(names, path.Base(key))
	}
	return names, nil
}

// FolderSize returns the total byte size of objects under a prefix.
func (s *S3Storage) FolderSize(ctx context.Context, prefix string) (int64, error) {
	var total int64
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return 0, fmt.Errorf("failed to list objects: %w", err)
		}
		for _, obj := range page.Contents {
			total += aws.ToInt64(obj.Size)
		}
	}

	return total, nil
}

// LastUpdated returns the newest LastModified timestamp under a prefix.
func (s *S3Storage) LastUpdated(ctx context.Context, prefix string) (time.Time, error) {
	var newest time.Time
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return time.Time{}, fmt.Errorf("failed to list objects: %w", err)
		}
		for _, obj := range page.Contents {
			if t := aws.ToTime(obj.LastModified); t.After(newest) {
				newest = t
			}
		}
	}

	return newest, nil
}

// PresignDownloadURL returns a presigned download URL valid for 24 hours.
func (s *S3Storage) PresignDownloadURL(ctx context.Context, key string) (string, error) {
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(presignExpiry))
	if err != nil {
		return "", fmt.Errorf("failed to presign download: %w", err)
	}
	return req.URL, nil
}

func (s *S3Storage) listKeys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}

	return keys, nil
}

func (s *S3Storage) deleteKeys(ctx context.Context, keys []string) error {
	// DeleteObjects caps out at 1000 keys per request.
	const batchSize = 1000
	for start := 0; start < len(keys); start += batchSize {
		end := start + batchSize
		if end > len(keys) {
			end = len(keys)
		}

		objects := make([]s3types.ObjectIdentifier, 0, end-start)
		for _, key := range keys[start:end] {
			objects = append(objects, s3types.ObjectIdentifier{Key: aws.String(key)})
		}

		err := s.retry(ctx, func() error {
			_, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
				Bucket: aws.String(s.bucket),
				Delete: &s3types.Delete{Objects: objects, Quiet: aws.Bool(true)},
			})
			return err
		})
		if err != nil {
			return fmt.Errorf("%w: %v", ErrDeleteFailed, err)
		}
	}
	return nil
}

func (s *S3Storage) retry(ctx context.Context, operation func() error) error {
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	return backoff.Retry(func() error {
		err := operation()
		var noSuchKey *s3types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return backoff.Permanent(ErrObjectNotFound)
		}
		return err
	}, policy)
}
