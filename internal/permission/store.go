package permission

import (
	"context"
	"fmt"
	"sync"

	"github.com/rapid-data/rapid/internal/errors"
	"github.com/rapid-data/rapid/pkg/types"
)

// Store abstracts the permission store.
type Store interface {
	// GetPermissionsForSubject returns the subject's flat permission ids.
	GetPermissionsForSubject(ctx context.Context, subjectID string) ([]string, error)

	// GetAllProtectedPermissions returns every PROTECTED-sensitivity
	// permission item in the store.
	GetAllProtectedPermissions(ctx context.Context) ([]types.PermissionItem, error)

	// StoreProtectedPermissions persists the permission items generated for a
	// protected domain.
	StoreProtectedPermissions(ctx context.Context, items []types.PermissionItem, domain string) error

	// DeletePermission removes a permission item by id.
	DeletePermission(ctx context.Context, id string) error

	// GetAllSubjectPermissions returns every subject with its permission list.
	GetAllSubjectPermissions(ctx context.Context) ([]types.SubjectPermissions, error)

	// UpdateSubjectPermissions rewrites one subject's permission list.
	UpdateSubjectPermissions(ctx context.Context, sp types.SubjectPermissions) error

	// ValidatePermissions fails if any id is unknown to the store or appears
	// more than once in the list.
	ValidatePermissions(ctx context.Context, ids []string) error
}

// MemoryStore is an in-memory Store used in tests and local development.
type MemoryStore struct {
	mu          sync.RWMutex
	permissions map[string]types.PermissionItem
	subjects    map[string][]string
}

// NewMemoryStore creates an empty in-memory permission store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		permissions: make(map[string]types.PermissionItem),
		subjects:    make(map[string][]string),
	}
}

// AddPermission registers a permission item directly. Test helper.
func (s *MemoryStore) AddPermission(item types.PermissionItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.permissions[item.ID] = item
}

// SetSubject assigns a subject's permission list directly. Test helper.
func (s *MemoryStore) SetSubject(subjectID string, ids []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subjects[subjectID] = append([]string(nil), ids...)
}

func (s *MemoryStore) GetPermissionsForSubject(_ context.Context, subjectID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids, ok := s.subjects[subjectID]
	if !ok {
		return nil, errors.NewNotFoundError(errors.CodeSubjectNotFound,
			fmt.Sprintf("subject [%s] not found", subjectID))
	}
	return append([]string(nil), ids...), nil
}

func (s *MemoryStore) GetAllProtectedPermissions(_ context.Context) ([]types.PermissionItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []types.PermissionItem
	for _, item := range s.permissions {
		if item.IsProtected() {
			out = append(out, item)
		}
	}
	return out, nil
}

func (s *MemoryStore) StoreProtectedPermissions(_ context.Context, items []types.PermissionItem, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range items {
		s.permissions[item.ID] = item
	}
	return nil
}

func (s *MemoryStore) DeletePermission(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.permissions, id)
	return nil
}

func (s *MemoryStore) GetAllSubjectPermissions(_ context.Context) ([]types.SubjectPermissions, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []types.SubjectPermissions
	for id, ids := range s.subjects {
		out = append(out, types.SubjectPermissions{
			SubjectID:   id,
			Permissions: append([]string(nil), ids...),
		})
	}
	return out, nil
}

func (s *MemoryStore) UpdateSubjectPermissions(_ context.Context, sp types.SubjectPermissions) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subjects[sp.SubjectID] = append([]string(nil), sp.Permissions...)
	return nil
}

func (s *MemoryStore) ValidatePermissions(_ context.Context, ids []string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return errors.NewUserError(errors.CodeInvalidPermission,
				fmt.Sprintf("duplicate permission id [%s]", id))
		}
		seen[id] = true
		if _, ok := s.permissions[id]; !ok {
			return errors.NewUserError(errors.CodeInvalidPermission,
				fmt.Sprintf("unknown permission id [%s]", id))
		}
	}
	return nil
}
