package permission

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/rapid-data/rapid/internal/errors"
	"github.com/rapid-data/rapid/internal/schema"
	"github.com/rapid-data/rapid/pkg/types"
)

// domainNameRegex constrains protected domain names: alphabetic start,
// alphanumerics and underscores only.
var domainNameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

// protectedGrantShapes enumerates the six grants implied by a protected
// domain: READ/WRITE crossed with RAW/LAYER/ALL.
var protectedGrantShapes = []struct {
	action types.Action
	layer  types.Layer
}{
	{types.ActionRead, types.LayerRaw},
	{types.ActionRead, types.LayerLayer},
	{types.ActionRead, types.LayerAll},
	{types.ActionWrite, types.LayerRaw},
	{types.ActionWrite, types.LayerLayer},
	{types.ActionWrite, types.LayerAll},
}

// DomainService manages the lifecycle of the permission items implied by a
// protected domain. Multi-record mutations are sequential and
// non-transactional; a crash mid-sequence is surfaced, not rolled back.
type DomainService struct {
	store   Store
	catalog schema.Catalog
	log     *zap.Logger
}

// NewDomainService creates a protected-domain service.
func NewDomainService(store Store, catalog schema.Catalog, log *zap.Logger) *DomainService {
	return &DomainService{store: store, catalog: catalog, log: log.Named("protected-domain")}
}

// CreateProtectedDomain generates and persists the six permission items for a
// new protected domain. The domain name is stored uppercase.
func (s *DomainService) CreateProtectedDomain(ctx context.Context, domain string) error {
	if !domainNameRegex.MatchString(domain) {
		return errors.NewUserError(errors.CodeInvalidDomain,
			fmt.Sprintf("invalid protected domain name [%s]: must start with a letter and contain only letters, digits and underscores", domain))
	}
	upper := strings.ToUpper(domain)

	existing, err := s.ListProtectedDomains(ctx)
	if err != nil {
		return err
	}
	for _, d := range existing {
		if d == strings.ToLower(domain) {
			return errors.NewConflictError(errors.CodeDomainConflict,
				fmt.Sprintf("protected domain [%s] already exists", strings.ToLower(domain)))
		}
	}

	items := generateProtectedPermissions(upper)
	if err := s.store.StoreProtectedPermissions(ctx, items, upper); err != nil {
		return err
	}
	s.log.Info("protected domain created", zap.String("domain", upper), zap.Int("permissions", len(items)))
	return nil
}

// DeleteProtectedDomain removes the domain's permission items and strips
// them from every subject holding them. A domain still referenced by live
// datasets cannot be deleted.
func (s *DomainService) DeleteProtectedDomain(ctx context.Context, domain string) error {
	upper := strings.ToUpper(domain)
	lower := strings.ToLower(domain)

	existing, err := s.ListProtectedDomains(ctx)
	if err != nil {
		return err
	}
	found := false
	for _, d := range existing {
		if d == lower {
			found = true
			break
		}
	}
	if !found {
		return errors.NewNotFoundError(errors.CodeDomainNotFound,
			fmt.Sprintf("protected domain [%s] does not exist", lower))
	}

	metadatas, err := s.catalog.GetSchemaMetadatas(ctx, types.DatasetFilters{
		Sensitivity: []types.Sensitivity{types.SensitivityProtected},
		Domain:      lower,
	})
	if err != nil {
		return err
	}
	if len(metadatas) > 0 {
		datasets := make([]string, len(metadatas))
		for i, m := range metadatas {
			datasets[i] = m.Dataset
		}
		return errors.NewDomainNotEmptyError(lower, datasets)
	}

	removed := make(map[string]bool, len(protectedGrantShapes))
	for _, item := range generateProtectedPermissions(upper) {
		if err := s.store.DeletePermission(ctx, item.ID); err != nil {
			return err
		}
		removed[item.ID] = true
	}

	subjects, err := s.store.GetAllSubjectPermissions(ctx)
	if err != nil {
		return err
	}
	for _, sp := range subjects {
		pruned := sp.Permissions[:0:0]
		for _, id := range sp.Permissions {
			if !removed[id] {
				pruned = append(pruned, id)
			}
		}
		if len(pruned) == len(sp.Permissions) {
			continue
		}
		if err := s.store.UpdateSubjectPermissions(ctx, types.SubjectPermissions{
			SubjectID:   sp.SubjectID,
			Permissions: pruned,
		}); err != nil {
			return err
		}
	}

	s.log.Info("protected domain deleted", zap.String("domain", lower))
	return nil
}

// ListProtectedDomains derives the distinct, lowercased protected domain
// names from the stored PROTECTED permission items.
func (s *DomainService) ListProtectedDomains(ctx context.Context) ([]string, error) {
	items, err := s.store.GetAllProtectedPermissions(ctx)
	if err != nil {
		return nil, err
	}
	distinct := make(map[string]bool)
	for _, item := range items {
		if item.Domain != "" {
			distinct[strings.ToLower(item.Domain)] = true
		}
	}
	out := make([]string, 0, len(distinct))
	for d := range distinct {
		out = append(out, d)
	}
	sort.Strings(out)
	return out, nil
}

func generateProtectedPermissions(upperDomain string) []types.PermissionItem {
	items := make([]types.PermissionItem, 0, len(protectedGrantShapes))
	for _, shape := range protectedGrantShapes {
		items = append(items, types.PermissionItem{
			ID:          BuildID(shape.action, shape.layer, types.SensitivityProtected, upperDomain),
			Type:        shape.action,
			Layer:       shape.layer,
			Sensitivity: types.SensitivityProtected,
			Domain:      upperDomain,
		})
	}
	return items
}
