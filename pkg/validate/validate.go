// Package validate inspects a persisted registry for broken links and
// out-of-range values before it is loaded, with optional auto-fix
// support. Fixes edit the record in place; the caller writes it back.
package validate

import (
	"fmt"
	"sort"

	"github.com/crystal-mush/hubportal/pkg/gamedb"
)

// Category classifies the type of finding.
type Category int

const (
	CatLinkError  Category = iota // Link that can never be followed
	CatLinkWarn                   // Link that is valid but inert
	CatPortal                     // Portal id or placement problem
	CatAppearance                 // Color or scale out of range
	CatColorName                  // Custom color naming problem
)

func (c Category) String() string {
	switch c {
	case CatLinkError:
		return "link-error"
	case CatLinkWarn:
		return "link-warning"
	case CatPortal:
		return "portal"
	case CatAppearance:
		return "appearance"
	case CatColorName:
		return "color-name"
	default:
		return "unknown"
	}
}

// Severity indicates how serious a finding is.
type Severity int

const (
	SevError   Severity = iota // Must be fixed for correct behavior
	SevWarning                 // Should be reviewed
	SevInfo                    // Informational only
)

func (s Severity) String() string {
	switch s {
	case SevError:
		return "error"
	case SevWarning:
		return "warning"
	case SevInfo:
		return "info"
	default:
		return "unknown"
	}
}

// Finding is a single issue detected in the registry.
type Finding struct {
	ID          string   `json:"id"`
	Category    Category `json:"category"`
	Severity    Severity `json:"severity"`
	Portal      string   `json:"portal,omitempty"`
	Color       string   `json:"color,omitempty"`
	Description string   `json:"description"`
	Proposed    string   `json:"proposed,omitempty"`
	Fixable     bool     `json:"fixable"`
	Fixed       bool     `json:"fixed"`
	fixFunc     func()
}

// Checker is implemented by each validation check.
type Checker interface {
	Name() string
	Check(rec *gamedb.RegistryRecord) []Finding
}

// Validator runs every checker against one registry record.
type Validator struct {
	checkers []Checker
	rec      *gamedb.RegistryRecord
	findings []Finding
}

// New creates a Validator with all built-in checkers registered.
func New(rec *gamedb.RegistryRecord) *Validator {
	return &Validator{
		rec: rec,
		checkers: []Checker{
			&PortalChecker{},
			&LinkChecker{},
			&AppearanceChecker{},
			&ColorNameChecker{},
		},
	}
}

// Run executes all checkers and returns findings ordered by severity,
// then portal or color name.
func (v *Validator) Run() []Finding {
	v.findings = nil
	for _, c := range v.checkers {
		for i, f := range c.Check(v.rec) {
			f.ID = fmt.Sprintf("%s-%d", c.Name(), i)
			v.findings = append(v.findings, f)
		}
	}
	sort.SliceStable(v.findings, func(i, j int) bool {
		a, b := v.findings[i], v.findings[j]
		if a.Severity != b.Severity {
			return a.Severity < b.Severity
		}
		if a.Portal != b.Portal {
			return a.Portal < b.Portal
		}
		return a.Color < b.Color
	})
	return v.findings
}

// Findings returns the findings of the last Run.
func (v *Validator) Findings() []Finding {
	return v.findings
}

// ApplyFix applies a single fix by finding ID.
func (v *Validator) ApplyFix(id string) error {
	for i := range v.findings {
		f := &v.findings[i]
		if f.ID != id {
			continue
		}
		if !f.Fixable {
			return fmt.Errorf("finding %s is not fixable", id)
		}
		if f.Fixed {
			return fmt.Errorf("finding %s is already fixed", id)
		}
		f.fixFunc()
		f.Fixed = true
		return nil
	}
	return fmt.Errorf("finding %s not found", id)
}

// ApplyAll applies every unfixed fixable finding and returns how many
// were applied.
func (v *Validator) ApplyAll() int {
	count := 0
	for i := range v.findings {
		f := &v.findings[i]
		if f.Fixable && !f.Fixed && f.fixFunc != nil {
			f.fixFunc()
			f.Fixed = true
			count++
		}
	}
	return count
}

// Errors counts unfixed findings of error severity.
func (v *Validator) Errors() int {
	n := 0
	for _, f := range v.findings {
		if f.Severity == SevError && !f.Fixed {
			n++
		}
	}
	return n
}

// portalIndex finds a portal record by id at fix time, so fixes stay
// valid if an earlier fix touched the slice.
func portalIndex(rec *gamedb.RegistryRecord, id string) int {
	for i := range rec.Portals {
		if rec.Portals[i].ID == id {
			return i
		}
	}
	return -1
}
