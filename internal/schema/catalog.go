package schema

import (
	"context"
	"sort"
	"sync"

	"github.com/rapid-data/rapid/pkg/types"
)

// Catalog abstracts the schema store. Absent schemas are returned as nil,
// not as errors, so callers can distinguish "missing" from "broken".
type Catalog interface {
	// GetSchema returns the schema for an exact (layer, domain, dataset,
	// version) identity, or nil.
	GetSchema(ctx context.Context, m types.SchemaMetadata) (*types.Schema, error)

	// GetLatestSchema returns the schema marked latest for the dataset, or nil.
	GetLatestSchema(ctx context.Context, layer types.Layer, domain, dataset string) (*types.Schema, error)

	// StoreSchema persists a schema version.
	StoreSchema(ctx context.Context, s *types.Schema) error

	// DeprecateSchema clears the latest-version mark on a stored schema.
	DeprecateSchema(ctx context.Context, m types.SchemaMetadata) error

	// GetSchemaMetadatas returns the metadata of every stored schema matching
	// the filters.
	GetSchemaMetadatas(ctx context.Context, filters types.DatasetFilters) ([]types.SchemaMetadata, error)

	// DeleteSchema removes a stored schema version.
	DeleteSchema(ctx context.Context, m types.SchemaMetadata) error
}

// MemoryCatalog is an in-memory Catalog used in tests and local development.
type MemoryCatalog struct {
	mu      sync.RWMutex
	schemas map[string]*types.Schema
}

// NewMemoryCatalog creates an empty in-memory catalog.
func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{schemas: make(map[string]*types.Schema)}
}

func (c *MemoryCatalog) GetSchema(_ context.Context, m types.SchemaMetadata) (*types.Schema, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if s, ok := c.schemas[m.String()]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, nil
}

func (c *MemoryCatalog) GetLatestSchema(_ context.Context, layer types.Layer, domain, dataset string) (*types.Schema, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, s := range c.schemas {
		m := s.Metadata
		if m.Layer == layer && m.Domain == domain && m.Dataset == dataset && m.IsLatestVersion {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (c *MemoryCatalog) StoreSchema(_ context.Context, s *types.Schema) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := *s
	c.schemas[s.Metadata.String()] = &cp
	return nil
}

func (c *MemoryCatalog) DeprecateSchema(_ context.Context, m types.SchemaMetadata) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.schemas[m.String()]; ok {
		s.Metadata.IsLatestVersion = false
	}
	return nil
}

func (c *MemoryCatalog) GetSchemaMetadatas(_ context.Context, filters types.DatasetFilters) ([]types.SchemaMetadata, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []types.SchemaMetadata
	for _, s := range c.schemas {
		if filters.Matches(s.Metadata) {
			out = append(out, s.Metadata)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out, nil
}

func (c *MemoryCatalog) DeleteSchema(_ context.Context, m types.SchemaMetadata) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.schemas, m.String())
	return nil
}
