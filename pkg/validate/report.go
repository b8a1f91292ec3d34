package validate

import (
	"encoding/json"
	"fmt"
	"io"
)

// Report is the JSON form of a validation run.
type Report struct {
	TotalFindings int                    `json:"total_findings"`
	Categories    map[string]CategorySum `json:"categories"`
	Findings      []Finding              `json:"findings"`
}

// CategorySum summarizes findings for a single category.
type CategorySum struct {
	Total   int    `json:"total"`
	Fixable int    `json:"fixable"`
	Fixed   int    `json:"fixed"`
	Label   string `json:"label"`
}

var categoryLabels = map[Category]string{
	CatLinkError:  "Broken Links",
	CatLinkWarn:   "Inert Links",
	CatPortal:     "Portal Names and Placement",
	CatAppearance: "Colors and Scales",
	CatColorName:  "Custom Color Names",
}

// GenerateReport builds a Report from the validator's current findings.
func GenerateReport(v *Validator) *Report {
	r := &Report{
		TotalFindings: len(v.findings),
		Categories:    make(map[string]CategorySum),
		Findings:      v.findings,
	}
	for _, f := range v.findings {
		cs := r.Categories[f.Category.String()]
		cs.Label = categoryLabels[f.Category]
		cs.Total++
		if f.Fixable {
			cs.Fixable++
		}
		if f.Fixed {
			cs.Fixed++
		}
		r.Categories[f.Category.String()] = cs
	}
	return r
}

// WriteJSON writes the report as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// WriteText writes one line per finding.
func (r *Report) WriteText(w io.Writer) error {
	for _, f := range r.Findings {
		status := ""
		switch {
		case f.Fixed:
			status = " [fixed]"
		case f.Fixable:
			status = " [fixable: " + f.Proposed + "]"
		}
		if _, err := fmt.Fprintf(w, "%-7s %-12s %s%s\n", f.Severity, f.Category, f.Description, status); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "%d finding(s)\n", r.TotalFindings)
	return err
}
