package validate

import (
	"fmt"

	"github.com/crystal-mush/hubportal/pkg/color"
	"github.com/crystal-mush/hubportal/pkg/gamedb"
)

// ColorNameChecker flags custom colors that cannot be resolved by name.
type ColorNameChecker struct{}

func (c *ColorNameChecker) Name() string { return "color" }

func (c *ColorNameChecker) Check(rec *gamedb.RegistryRecord) []Finding {
	names := make(map[string]bool, len(rec.CustomColors))
	for _, cc := range rec.CustomColors {
		names[cc.Name] = true
	}

	var findings []Finding
	for i, cc := range rec.CustomColors {
		name := cc.Name
		norm := color.Normalize(name)
		switch {
		case color.IsBuiltin(norm):
			findings = append(findings, Finding{
				Category:    CatColorName,
				Severity:    SevWarning,
				Color:       name,
				Description: fmt.Sprintf("custom color '%s' is hidden by the built-in color of the same name", name),
			})
		case norm != name && names[norm]:
			findings = append(findings, Finding{
				Category:    CatColorName,
				Severity:    SevWarning,
				Color:       name,
				Description: fmt.Sprintf("custom color '%s' duplicates '%s' and can never be resolved", name, norm),
			})
		case norm != name:
			idx := i
			names[norm] = true
			findings = append(findings, Finding{
				Category:    CatColorName,
				Severity:    SevWarning,
				Color:       name,
				Description: fmt.Sprintf("custom color '%s' is not stored in normalized form", name),
				Proposed:    norm,
				Fixable:     true,
				fixFunc: func() {
					rec.CustomColors[idx].Name = norm
				},
			})
		}
		if rgb := colorOf(cc.Color); rgb != rgb.Clamp() {
			clamped := rgb.Clamp()
			idx := i
			findings = append(findings, Finding{
				Category:    CatAppearance,
				Severity:    SevWarning,
				Color:       name,
				Description: fmt.Sprintf("custom color '%s' value %s is outside 0..1", name, rgb),
				Proposed:    clamped.String(),
				Fixable:     true,
				fixFunc: func() {
					rec.CustomColors[idx].Color = []float32{clamped[0], clamped[1], clamped[2]}
				},
			})
		}
	}
	return findings
}
