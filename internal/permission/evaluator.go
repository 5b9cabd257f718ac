package permission

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/rapid-data/rapid/internal/errors"
	"github.com/rapid-data/rapid/internal/schema"
	"github.com/rapid-data/rapid/pkg/types"
)

// Evaluator decides which datasets a subject may see and whether a subject
// may access a single dataset, from the subject's structured grants.
type Evaluator struct {
	store   Store
	catalog schema.Catalog
	log     *zap.Logger
}

// NewEvaluator creates an evaluator with injected collaborators.
func NewEvaluator(store Store, catalog schema.Catalog, log *zap.Logger) *Evaluator {
	return &Evaluator{store: store, catalog: catalog, log: log.Named("permission")}
}

// ExtractDatasetFilters builds the catalogue filter implied by one grant,
// merged with caller-supplied tag filters. For a protected grant the filter
// is additionally constrained to the grant's domain, case-folded to
// lowercase.
func ExtractDatasetFilters(p types.PermissionItem, keyValueTags map[string]string, keyOnlyTags []string) types.DatasetFilters {
	f := types.DatasetFilters{
		Sensitivity: ExpandSensitivity(p.Sensitivity),
		Layer:       ExpandLayer(p.Layer),
	}
	if p.IsProtected() {
		f.Domain = strings.ToLower(p.Domain)
	}
	return f.WithTags(keyValueTags, keyOnlyTags)
}

// OverlapsWith reports whether a grant authorizes a dataset: the dataset's
// layer and sensitivity must fall inside the grant's expanded sets, and a
// protected dataset additionally requires a case-insensitive domain match.
func OverlapsWith(m types.SchemaMetadata, p types.PermissionItem) bool {
	if p.IsAdmin() {
		return false
	}
	if !contains(ExpandLayer(p.Layer), m.Layer) {
		return false
	}
	if m.Sensitivity == types.SensitivityProtected {
		return p.IsProtected() && strings.EqualFold(m.Domain, p.Domain)
	}
	return contains(ExpandSensitivity(p.Sensitivity), m.Sensitivity)
}

// FetchDatasets returns the deduplicated union of datasets the subject's
// grants of the requested action authorize, optionally narrowed by tag
// filters. The result is sorted by (layer, domain, dataset) identity.
func (e *Evaluator) FetchDatasets(ctx context.Context, subjectID string, action types.Action, keyValueTags map[string]string, keyOnlyTags []string) ([]types.SchemaMetadata, error) {
	grants, err := e.subjectGrants(ctx, subjectID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var out []types.SchemaMetadata
	for _, p := range grants {
		if p.Type != action {
			continue
		}
		filters := ExtractDatasetFilters(p, keyValueTags, keyOnlyTags)
		metadatas, err := e.catalog.GetSchemaMetadatas(ctx, filters)
		if err != nil {
			return nil, err
		}
		for _, m := range metadatas {
			key := fmt.Sprintf("%s/%s/%s", m.Layer, m.Domain, m.Dataset)
			if !seen[key] {
				seen[key] = true
				out = append(out, m)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out, nil
}

// CanAccessDataset returns nil iff, for every required action, at least one
// of the subject's grants of that action overlaps the target dataset.
func (e *Evaluator) CanAccessDataset(ctx context.Context, subjectID string, actions []types.Action, m types.SchemaMetadata) error {
	sc, err := e.catalog.GetSchema(ctx, m)
	if err != nil {
		return err
	}
	if sc == nil {
		return errors.NewNotFoundError(errors.CodeSchemaNotFound,
			fmt.Sprintf("no schema registered for dataset [%s]", m.String()))
	}

	grants, err := e.subjectGrants(ctx, subjectID)
	if err != nil {
		return err
	}

	for _, action := range actions {
		authorized := false
		for _, p := range grants {
			if p.Type == action && OverlapsWith(sc.Metadata, p) {
				authorized = true
				break
			}
		}
		if !authorized {
			return errors.NewAuthorisationError(fmt.Sprintf(
				"subject [%s] is not authorised to perform [%s] on dataset [%s/%s/%s]",
				subjectID, action, sc.Metadata.Layer, sc.Metadata.Domain, sc.Metadata.Dataset))
		}
	}
	return nil
}

// CheckAdminPermission returns nil iff the subject holds the named admin
// grant.
func (e *Evaluator) CheckAdminPermission(ctx context.Context, subjectID string, action types.Action) error {
	grants, err := e.subjectGrants(ctx, subjectID)
	if err != nil {
		return err
	}
	for _, p := range grants {
		if p.Type == action && p.IsAdmin() {
			return nil
		}
	}
	return errors.NewAuthorisationError(fmt.Sprintf(
		"subject [%s] is not authorised to perform [%s]", subjectID, action))
}

// ListSubjectPermissions returns the subject's parsed grants.
func (e *Evaluator) ListSubjectPermissions(ctx context.Context, subjectID string) ([]types.PermissionItem, error) {
	return e.subjectGrants(ctx, subjectID)
}

// subjectGrants reads and parses the subject's permission list. An
// unparseable stored id is logged and skipped rather than failing the whole
// decision.
func (e *Evaluator) subjectGrants(ctx context.Context, subjectID string) ([]types.PermissionItem, error) {
	ids, err := e.store.GetPermissionsForSubject(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	grants := make([]types.PermissionItem, 0, len(ids))
	for _, id := range ids {
		p, err := Parse(id)
		if err != nil {
			e.log.Warn("skipping malformed stored permission",
				zap.String("subject", subjectID), zap.String("permission", id))
			continue
		}
		grants = append(grants, p)
	}
	return grants, nil
}

func contains[T comparable](set []T, v T) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
