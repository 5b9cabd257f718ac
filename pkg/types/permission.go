package types

// PermissionItem is the structured form of one permission grant. It is an
// immutable value object; parsing from the flat id string happens once, at the
// point permissions are read from the store.
type PermissionItem struct {
	// ID is the flat permission id, e.g. "READ_ALL_PUBLIC" or
	// "WRITE_RAW_PROTECTED_FINANCE".
	ID string `json:"id"`

	// Type is the action class the permission grants.
	Type Action `json:"type"`

	// Layer scopes the grant to a data zone. Empty for admin permissions.
	Layer Layer `json:"layer,omitempty"`

	// Sensitivity scopes the grant. Empty for admin permissions.
	Sensitivity Sensitivity `json:"sensitivity,omitempty"`

	// Domain is set, uppercase, iff Sensitivity is PROTECTED.
	Domain string `json:"domain,omitempty"`
}

// IsProtected reports whether the grant is scoped to a protected domain.
func (p PermissionItem) IsProtected() bool {
	return p.Sensitivity == SensitivityProtected
}

// IsAdmin reports whether the grant is an administrative permission rather
// than a dataset access grant.
func (p PermissionItem) IsAdmin() bool {
	return p.Type == ActionUserAdmin || p.Type == ActionDataAdmin
}

// SubjectPermissions pairs a subject with its flat permission id list as
// persisted in the permission store.
type SubjectPermissions struct {
	SubjectID   string   `json:"subject_id"`
	Permissions []string `json:"permissions"`
}

// DatasetFilters is the query object handed to the schema catalogue when
// listing datasets. It is constructed per authorization decision and never
// persisted.
type DatasetFilters struct {
	Sensitivity  []Sensitivity
	Layer        []Layer
	Domain       string
	KeyValueTags map[string]string
	KeyOnlyTags  []string
}

// WithTags returns a copy of f merged with caller-supplied tag filters.
func (f DatasetFilters) WithTags(keyValue map[string]string, keyOnly []string) DatasetFilters {
	out := f
	if len(keyValue) > 0 {
		out.KeyValueTags = make(map[string]string, len(keyValue))
		for k, v := range keyValue {
			out.KeyValueTags[k] = v
		}
	}
	if len(keyOnly) > 0 {
		out.KeyOnlyTags = append([]string(nil), keyOnly...)
	}
	return out
}

// MatchesSensitivity reports whether s passes the filter's sensitivity list.
// An empty list matches everything.
func (f DatasetFilters) MatchesSensitivity(s Sensitivity) bool {
	if len(f.Sensitivity) == 0 {
		return true
	}
	for _, v := range f.Sensitivity {
		if v == s {
			return true
		}
	}
	return false
}

// MatchesLayer reports whether l passes the filter's layer list. An empty
// list matches everything.
func (f DatasetFilters) MatchesLayer(l Layer) bool {
	if len(f.Layer) == 0 {
		return true
	}
	for _, v := range f.Layer {
		if v == l {
			return true
		}
	}
	return false
}

// Matches reports whether a schema's metadata passes every filter dimension.
func (f DatasetFilters) Matches(m SchemaMetadata) bool {
	if !f.MatchesLayer(m.Layer) || !f.MatchesSensitivity(m.Sensitivity) {
		return false
	}
	if f.Domain != "" && f.Domain != m.Domain {
		return false
	}
	for k, v := range f.KeyValueTags {
		if m.KeyValueTags[k] != v {
			return false
		}
	}
	for _, k := range f.KeyOnlyTags {
		found := false
		for _, tag := range m.KeyOnlyTags {
			if tag == k {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
