// Package permission implements the permission model and evaluator: parsing
// flat permission ids into structured grants, the layer/sensitivity
// expansion lattice, dataset filtering, access decisions and the protected
// domain lifecycle.
package permission

import (
	"fmt"
	"strings"

	"github.com/rapid-data/rapid/internal/errors"
	"github.com/rapid-data/rapid/pkg/types"
)

// Parse converts a flat permission id of the form
// {TYPE}_{LAYER}_{SENSITIVITY}[_{DOMAIN}] into its structured form.
// Permissions are parsed exactly once, at the point they are read from the
// store; downstream logic never operates on substrings.
func Parse(id string) (types.PermissionItem, error) {
	switch id {
	case string(types.ActionUserAdmin):
		return types.PermissionItem{ID: id, Type: types.ActionUserAdmin}, nil
	case string(types.ActionDataAdmin):
		return types.PermissionItem{ID: id, Type: types.ActionDataAdmin}, nil
	}

	parts := strings.Split(id, "_")
	if len(parts) < 3 {
		return types.PermissionItem{}, invalidPermission(id)
	}

	action := types.Action(parts[0])
	if action != types.ActionRead && action != types.ActionWrite {
		return types.PermissionItem{}, invalidPermission(id)
	}

	layer := types.Layer(parts[1])
	if !layer.Valid() && layer != types.LayerAll {
		return types.PermissionItem{}, invalidPermission(id)
	}

	sensitivity := types.Sensitivity(parts[2])
	switch sensitivity {
	case types.SensitivityPublic, types.SensitivityPrivate, types.SensitivityAll:
		if len(parts) != 3 {
			return types.PermissionItem{}, invalidPermission(id)
		}
		return types.PermissionItem{ID: id, Type: action, Layer: layer, Sensitivity: sensitivity}, nil
	case types.SensitivityProtected:
		// The domain itself may contain underscores.
		domain := strings.Join(parts[3:], "_")
		if domain == "" {
			return types.PermissionItem{}, invalidPermission(id)
		}
		return types.PermissionItem{ID: id, Type: action, Layer: layer, Sensitivity: sensitivity, Domain: domain}, nil
	default:
		return types.PermissionItem{}, invalidPermission(id)
	}
}

func invalidPermission(id string) error {
	return errors.NewUserError(errors.CodeInvalidPermission,
		fmt.Sprintf("invalid permission id [%s]", id))
}

// BuildID renders the flat id for a structured grant.
func BuildID(action types.Action, layer types.Layer, sensitivity types.Sensitivity, domain string) string {
	id := fmt.Sprintf("%s_%s_%s", action, layer, sensitivity)
	if domain != "" {
		id = fmt.Sprintf("%s_%s", id, strings.ToUpper(domain))
	}
	return id
}

// ExpandSensitivity resolves a grant's sensitivity into the set of dataset
// sensitivities it authorizes. ALL is sugar for the full set; PRIVATE grants
// also authorize PUBLIC datasets; PROTECTED grants authorize only PROTECTED
// datasets in their own domain.
func ExpandSensitivity(s types.Sensitivity) []types.Sensitivity {
	switch s {
	case types.SensitivityAll:
		return []types.Sensitivity{types.SensitivityPublic, types.SensitivityPrivate, types.SensitivityProtected}
	case types.SensitivityPrivate:
		return []types.Sensitivity{types.SensitivityPublic, types.SensitivityPrivate}
	default:
		return []types.Sensitivity{s}
	}
}

// ExpandLayer resolves a grant's layer into the set of concrete layers it
// authorizes. ALL is sugar for every concrete layer.
func ExpandLayer(l types.Layer) []types.Layer {
	if l == types.LayerAll {
		return append([]types.Layer(nil), types.ConcreteLayers...)
	}
	return []types.Layer{l}
}
