package schema

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rapid-data/rapid/internal/catalog"
	"github.com/rapid-data/rapid/internal/errors"
	"github.com/rapid-data/rapid/internal/storage"
	"github.com/rapid-data/rapid/pkg/types"
)

// Service manages the schema lifecycle: creation, versioning and the delete
// cascade across the object store, the table catalog and the schema catalog.
// The cascade is sequential and non-transactional; a partial failure is
// surfaced, not rolled back.
type Service struct {
	catalog Catalog
	storage storage.ObjectStorage
	tables  catalog.TableCatalog
	log     *zap.Logger
}

// NewService creates a schema service with injected collaborators.
func NewService(c Catalog, store storage.ObjectStorage, tables catalog.TableCatalog, log *zap.Logger) *Service {
	return &Service{catalog: c, storage: store, tables: tables, log: log.Named("schema")}
}

// UploadSchema registers the first version of a dataset schema and creates
// its catalogue table. Registering an already-registered dataset is a
// conflict; use UpdateSchema to cut a new version.
func (s *Service) UploadSchema(ctx context.Context, sc *types.Schema) (*types.Schema, error) {
	if err := ValidateSchema(sc); err != nil {
		return nil, err
	}
	existing, err := s.catalog.GetLatestSchema(ctx, sc.Metadata.Layer, sc.Metadata.Domain, sc.Metadata.Dataset)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, errors.NewConflictError(errors.CodeInvalidSchema,
			fmt.Sprintf("schema for dataset [%s/%s/%s] already exists", sc.Metadata.Layer, sc.Metadata.Domain, sc.Metadata.Dataset))
	}

	sc.Metadata.Version = 1
	sc.Metadata.IsLatestVersion = true
	if err := s.catalog.StoreSchema(ctx, sc); err != nil {
		return nil, err
	}
	if err := s.tables.CreateTable(ctx, sc); err != nil {
		return nil, err
	}
	s.log.Info("schema registered",
		zap.String("dataset", sc.Metadata.String()),
		zap.String("sensitivity", string(sc.Metadata.Sensitivity)))
	return sc, nil
}

// UpdateSchema registers a new version of an existing dataset schema and
// deprecates the previous latest.
func (s *Service) UpdateSchema(ctx context.Context, sc *types.Schema) (*types.Schema, error) {
	if err := ValidateSchema(sc); err != nil {
		return nil, err
	}
	previous, err := s.catalog.GetLatestSchema(ctx, sc.Metadata.Layer, sc.Metadata.Domain, sc.Metadata.Dataset)
	if err != nil {
		return nil, err
	}
	if previous == nil {
		return nil, errors.NewNotFoundError(errors.CodeSchemaNotFound,
			fmt.Sprintf("no schema registered for dataset [%s/%s/%s]", sc.Metadata.Layer, sc.Metadata.Domain, sc.Metadata.Dataset))
	}

	sc.Metadata.Version = previous.Metadata.Version + 1
	sc.Metadata.IsLatestVersion = true
	if err := s.catalog.StoreSchema(ctx, sc); err != nil {
		return nil, err
	}
	if err := s.catalog.DeprecateSchema(ctx, previous.Metadata); err != nil {
		return nil, err
	}
	if err := s.tables.CreateTable(ctx, sc); err != nil {
		return nil, err
	}
	s.log.Info("schema updated",
		zap.String("dataset", sc.Metadata.String()),
		zap.Int("previous_version", previous.Metadata.Version))
	return sc, nil
}

// DeleteSchema removes a schema version and cascades across the stored data
// files and the catalogue table.
func (s *Service) DeleteSchema(ctx context.Context, m types.SchemaMetadata) error {
	sc, err := s.catalog.GetSchema(ctx, m)
	if err != nil {
		return err
	}
	if sc == nil {
		return errors.NewNotFoundError(errors.CodeSchemaNotFound,
			fmt.Sprintf("no schema registered for dataset [%s]", m.String()))
	}

	if err := s.storage.DeletePreviousDatasetFiles(ctx, sc.Metadata); err != nil {
		return err
	}
	if err := s.tables.DeleteTable(ctx, sc.Metadata); err != nil {
		return err
	}
	if err := s.catalog.DeleteSchema(ctx, sc.Metadata); err != nil {
		return err
	}
	s.log.Info("schema deleted", zap.String("dataset", m.String()))
	return nil
}

// DatasetInfo describes one dataset version: the declared schema alongside
// what is actually stored under it.
type DatasetInfo struct {
	Schema        *types.Schema `json:"schema"`
	RawFiles      []string      `json:"raw_files"`
	DataSizeBytes int64         `json:"data_size_bytes"`
	LastUpdated   *time.Time    `json:"last_updated,omitempty"`
}

// DatasetInfo returns the schema for an exact identity together with the raw
// file list, stored data size and last update time. LastUpdated is nil for a
// dataset no data has landed in yet.
func (s *Service) DatasetInfo(ctx context.Context, m types.SchemaMetadata) (*DatasetInfo, error) {
	sc, err := s.GetSchema(ctx, m)
	if err != nil {
		return nil, err
	}

	files, err := s.storage.ListRawFiles(ctx, sc.Metadata)
	if err != nil {
		return nil, err
	}
	size, err := s.storage.FolderSize(ctx, sc.Metadata.DatasetLocation())
	if err != nil {
		return nil, err
	}
	updated, err := s.storage.LastUpdated(ctx, sc.Metadata.DatasetLocation())
	if err != nil {
		return nil, err
	}

	info := &DatasetInfo{Schema: sc, RawFiles: files, DataSizeBytes: size}
	if !updated.IsZero() {
		info.LastUpdated = &updated
	}
	return info, nil
}

// GetSchema returns the schema for an exact identity or a not-found error.
func (s *Service) GetSchema(ctx context.Context, m types.SchemaMetadata) (*types.Schema, error) {
	sc, err := s.catalog.GetSchema(ctx, m)
	if err != nil {
		return nil, err
	}
	if sc == nil {
		return nil, errors.NewNotFoundError(errors.CodeSchemaNotFound,
			fmt.Sprintf("no schema registered for dataset [%s]", m.String()))
	}
	return sc, nil
}

// GetLatestSchema returns the latest schema for a dataset or a not-found
// error.
func (s *Service) GetLatestSchema(ctx context.Context, layer types.Layer, domain, dataset string) (*types.Schema, error) {
	sc, err := s.catalog.GetLatestSchema(ctx, layer, domain, dataset)
	if err != nil {
		return nil, err
	}
	if sc == nil {
		return nil, errors.NewNotFoundError(errors.CodeSchemaNotFound,
			fmt.Sprintf("no schema registered for dataset [%s/%s/%s]", layer, domain, dataset))
	}
	return sc, nil
}
