package storage

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/rapid-data/rapid/pkg/types"
)

// LocalStorage implements ObjectStorage on the local filesystem. It is used
// in tests and for running without AWS access.
type LocalStorage struct {
	baseDir string
}

// NewLocalStorage creates a local storage rooted at baseDir.
func NewLocalStorage(baseDir string) (*LocalStorage, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &LocalStorage{baseDir: baseDir}, nil
}

func (l *LocalStorage) UploadRawData(ctx context.Context, m types.SchemaMetadata, filename string, body io.Reader) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	return l.write(filepath.Join(m.RawDataLocation(), filename), data)
}

func (l *LocalStorage) UploadPartitionedData(ctx context.Context, m types.SchemaMetadata, partitionPath, filename string, body []byte) error {
	return l.write(filepath.Join(m.DatasetLocation(), partitionPath, filename), body)
}

func (l *LocalStorage) write(key string, data []byte) error {
	full := filepath.Join(l.baseDir, key)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	return nil
}

func (l *LocalStorage) DeleteRawData(ctx context.Context, m types.SchemaMetadata, filename string) error {
	full := filepath.Join(l.baseDir, m.RawDataLocation(), filename)
	if err := os.Remove(full); err != nil {
		if os.IsNotExist(err) {
			return ErrObjectNotFound
		}
		return fmt.Errorf("%w: %v", ErrDeleteFailed, err)
	}
	return nil
}

func (l *LocalStorage) DeletePreviousDatasetFiles(ctx context.Context, m types.SchemaMetadata) error {
	for _, prefix := range []string{m.RawDataLocation(), m.DatasetLocation()} {
		if err := os.RemoveAll(filepath.Join(l.baseDir, prefix)); err != nil {
			return fmt.Errorf("%w: %v", ErrDeleteFailed, err)
		}
	}
	return nil
}

func (l *LocalStorage) ListRawFiles(ctx context.Context, m types.SchemaMetadata) ([]string, error) {
	dir := filepath.Join(l.baseDir, m.RawDataLocation())
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list raw files: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}

func (l *LocalStorage) FolderSize(ctx context.Context, prefix string) (int64, error) {
	var total int64
	root := filepath.Join(l.baseDir, prefix)
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to compute folder size: %w", err)
	}
	return total, nil
}

func (l *LocalStorage) LastUpdated(ctx context.Context, prefix string) (time.Time, error) {
	var newest time.Time
	root := filepath.Join(l.baseDir, prefix)
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.ModTime().After(newest) {
			newest = info.ModTime()
		}
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("failed to inspect folder: %w", err)
	}
	return newest, nil
}

// PresignDownloadURL returns a file URL; local storage has no signing.
func (l *LocalStorage) PresignDownloadURL(ctx context.Context, key string) (string, error) {
	return "file://" + filepath.Join(l.baseDir, key), nil
}
