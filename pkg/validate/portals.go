package validate

import (
	"fmt"
	"math"

	"github.com/crystal-mush/hubportal/pkg/color"
	"github.com/crystal-mush/hubportal/pkg/gamedb"
)

// PortalChecker flags empty or duplicate ids and portals sharing a block.
type PortalChecker struct{}

func (c *PortalChecker) Name() string { return "portal" }

func (c *PortalChecker) Check(rec *gamedb.RegistryRecord) []Finding {
	var findings []Finding
	seen := make(map[string]bool)
	type place struct {
		world string
		pos   gamedb.PosRecord
	}
	at := make(map[place]string)

	for _, p := range rec.Portals {
		if p.ID == "" {
			findings = append(findings, Finding{
				Category:    CatPortal,
				Severity:    SevError,
				Description: fmt.Sprintf("portal at %d %d %d in %s has no name", p.Pos.X, p.Pos.Y, p.Pos.Z, p.World),
			})
			continue
		}
		if seen[p.ID] {
			findings = append(findings, Finding{
				Category:    CatPortal,
				Severity:    SevError,
				Portal:      p.ID,
				Description: fmt.Sprintf("portal name '%s' is stored more than once; only the last is loaded", p.ID),
			})
			continue
		}
		seen[p.ID] = true

		k := place{p.World, p.Pos}
		if other, ok := at[k]; ok {
			findings = append(findings, Finding{
				Category:    CatPortal,
				Severity:    SevWarning,
				Portal:      p.ID,
				Description: fmt.Sprintf("'%s' shares block %d %d %d in %s with '%s'", p.ID, p.Pos.X, p.Pos.Y, p.Pos.Z, p.World, other),
			})
		} else {
			at[k] = p.ID
		}
	}
	return findings
}

// AppearanceChecker flags colors outside [0,1] and scales outside the
// accepted command range.
type AppearanceChecker struct{}

func (c *AppearanceChecker) Name() string { return "appearance" }

func (c *AppearanceChecker) Check(rec *gamedb.RegistryRecord) []Finding {
	var findings []Finding
	for _, p := range rec.Portals {
		id := p.ID
		if len(p.Color) > 0 && len(p.Color) != 3 {
			findings = append(findings, Finding{
				Category:    CatAppearance,
				Severity:    SevInfo,
				Portal:      id,
				Description: fmt.Sprintf("'%s' color has %d components", id, len(p.Color)),
				Proposed:    "pad missing components with 1",
				Fixable:     true,
				fixFunc: func() {
					if i := portalIndex(rec, id); i >= 0 {
						r := rec.Portals[i].Portal()
						rec.Portals[i].Color = []float32{r.Color[0], r.Color[1], r.Color[2]}
					}
				},
			})
		}
		if rgb := colorOf(p.Color); rgb != rgb.Clamp() {
			clamped := rgb.Clamp()
			findings = append(findings, Finding{
				Category:    CatAppearance,
				Severity:    SevWarning,
				Portal:      id,
				Description: fmt.Sprintf("'%s' color %s is outside 0..1", id, rgb),
				Proposed:    clamped.String(),
				Fixable:     true,
				fixFunc: func() {
					if i := portalIndex(rec, id); i >= 0 {
						rec.Portals[i].Color = []float32{clamped[0], clamped[1], clamped[2]}
					}
				},
			})
		}
		if p.Scale != nil {
			if fixed, ok := fixScale(*p.Scale); !ok {
				findings = append(findings, Finding{
					Category:    CatAppearance,
					Severity:    SevWarning,
					Portal:      id,
					Description: fmt.Sprintf("'%s' scale %g is outside %g..%g", id, *p.Scale, color.MinScale, color.MaxScale),
					Proposed:    fmt.Sprintf("%g", fixed),
					Fixable:     true,
					fixFunc: func() {
						if i := portalIndex(rec, id); i >= 0 {
							s := fixed
							rec.Portals[i].Scale = &s
						}
					},
				})
			}
		}
	}
	return findings
}

// colorOf reads up to three stored components, defaulting the rest to 1.
// NaN compares unequal to itself, so a NaN component is always flagged.
func colorOf(list []float32) gamedb.RGB {
	c := gamedb.White
	for i := 0; i < len(list) && i < 3; i++ {
		c[i] = list[i]
	}
	return c
}

// fixScale reports whether s is in range and, if not, the value to use.
func fixScale(s float32) (float32, bool) {
	f := float64(s)
	switch {
	case math.IsNaN(f) || math.IsInf(f, 0) || s <= 0:
		return gamedb.DefaultScale, false
	case s < color.MinScale:
		return color.MinScale, false
	case s > color.MaxScale:
		return color.MaxScale, false
	}
	return s, true
}
