package validate

import (
	"fmt"

	"github.com/crystal-mush/hubportal/pkg/gamedb"
)

// LinkChecker verifies that every link names an existing partner in the
// same world that links back.
type LinkChecker struct{}

func (c *LinkChecker) Name() string { return "link" }

func (c *LinkChecker) Check(rec *gamedb.RegistryRecord) []Finding {
	byID := make(map[string]gamedb.PortalRecord, len(rec.Portals))
	for _, p := range rec.Portals {
		if _, dup := byID[p.ID]; !dup {
			byID[p.ID] = p
		}
	}

	var findings []Finding
	unlink := func(id string) func() {
		return func() {
			if i := portalIndex(rec, id); i >= 0 {
				rec.Portals[i].Link = ""
			}
		}
	}
	for _, p := range rec.Portals {
		if p.Link == "" {
			continue
		}
		partner, ok := byID[p.Link]
		switch {
		case p.Link == p.ID:
			findings = append(findings, Finding{
				Category:    CatLinkError,
				Severity:    SevError,
				Portal:      p.ID,
				Description: fmt.Sprintf("'%s' is linked to itself", p.ID),
				Proposed:    "unlink",
				Fixable:     true,
				fixFunc:     unlink(p.ID),
			})
		case !ok:
			findings = append(findings, Finding{
				Category:    CatLinkError,
				Severity:    SevError,
				Portal:      p.ID,
				Description: fmt.Sprintf("'%s' is linked to missing portal '%s'", p.ID, p.Link),
				Proposed:    "unlink",
				Fixable:     true,
				fixFunc:     unlink(p.ID),
			})
		case partner.Link != p.ID:
			findings = append(findings, Finding{
				Category:    CatLinkError,
				Severity:    SevError,
				Portal:      p.ID,
				Description: fmt.Sprintf("'%s' links to '%s' but '%s' does not link back", p.ID, p.Link, p.Link),
				Proposed:    "unlink",
				Fixable:     true,
				fixFunc:     unlink(p.ID),
			})
		case partner.World != p.World:
			findings = append(findings, Finding{
				Category:    CatLinkWarn,
				Severity:    SevWarning,
				Portal:      p.ID,
				Description: fmt.Sprintf("'%s' (%s) links across worlds to '%s' (%s) and will never teleport", p.ID, p.World, partner.ID, partner.World),
			})
		}
	}
	return findings
}
