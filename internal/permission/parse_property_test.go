package permission

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/rapid-data/rapid/pkg/types"
)

func TestProperty_PermissionIDRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	actions := gen.OneConstOf(types.ActionRead, types.ActionWrite)
	layers := gen.OneConstOf(types.LayerRaw, types.LayerLayer, types.LayerAll)

	properties.Property("non-protected grants survive a BuildID/Parse round trip", prop.ForAll(
		func(action types.Action, layer types.Layer, sensitivity types.Sensitivity) bool {
			id := BuildID(action, layer, sensitivity, "")
			p, err := Parse(id)
			if err != nil {
				return false
			}
			return p.ID == id && p.Type == action && p.Layer == layer &&
				p.Sensitivity == sensitivity && p.Domain == ""
		},
		actions,
		layers,
		gen.OneConstOf(types.SensitivityPublic, types.SensitivityPrivate, types.SensitivityAll),
	))

	properties.Property("protected grants survive a BuildID/Parse round trip", prop.ForAll(
		func(action types.Action, layer types.Layer, domain string) bool {
			id := BuildID(action, layer, types.SensitivityProtected, domain)
			p, err := Parse(id)
			if err != nil {
				return false
			}
			return p.ID == id && p.Type == action && p.Layer == layer &&
				p.Sensitivity == types.SensitivityProtected &&
				p.Domain == domain
		},
		actions,
		layers,
		gen.RegexMatch(`^[A-Z][A-Z0-9_]{0,20}$`),
	))

	properties.Property("expanded sensitivity always includes the grant's own sensitivity", prop.ForAll(
		func(sensitivity types.Sensitivity) bool {
			expanded := ExpandSensitivity(sensitivity)
			if sensitivity == types.SensitivityAll {
				return len(expanded) == 3
			}
			for _, s := range expanded {
				if s == sensitivity {
					return true
				}
			}
			return false
		},
		gen.OneConstOf(types.SensitivityPublic, types.SensitivityPrivate, types.SensitivityProtected, types.SensitivityAll),
	))

	properties.TestingRun(t)
}
