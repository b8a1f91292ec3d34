package registry

import (
	"github.com/crystal-mush/hubportal/pkg/color"
	"github.com/crystal-mush/hubportal/pkg/gamedb"
)

// Dirty reports whether there are mutations not yet written to storage.
func (r *Registry) Dirty() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.version != r.saved
}

// MarkDirty forces the next write-back.
func (r *Registry) MarkDirty() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.touch()
}

// Snapshot captures the registry as a record plus the version it reflects.
// Pass the version to MarkSaved once the record is durable.
func (r *Registry) Snapshot() (gamedb.RegistryRecord, uint64) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec := gamedb.RegistryRecord{
		Portals:      make([]gamedb.PortalRecord, 0, len(r.portals)),
		CustomColors: make([]gamedb.CustomColorRecord, 0, len(r.colors)),
	}
	for _, p := range r.portals {
		rec.Portals = append(rec.Portals, p.ToRecord())
	}
	for n, c := range r.colors {
		rec.CustomColors = append(rec.CustomColors, gamedb.CustomColor{Name: n, Color: c}.ToRecord())
	}
	rec.SortRecords()
	return rec, r.version
}

// MarkSaved records that the snapshot taken at version is durable.
// Later mutations keep the registry dirty.
func (r *Registry) MarkSaved(version uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if version > r.saved {
		r.saved = version
	}
}

// Restore replaces the registry contents with rec. Links that are not
// mutually symmetric, or that point at missing portals, are cleared; the
// number of portals repaired this way is returned. Records with an empty
// portal id or color name are dropped.
func (r *Registry) Restore(rec gamedb.RegistryRecord) int {
	portals := make(map[string]gamedb.Portal, len(rec.Portals))
	for _, pr := range rec.Portals {
		if validID(pr.ID) {
			portals[pr.ID] = pr.Portal()
		}
	}
	repaired := 0
	for id, p := range portals {
		if !p.Linked() {
			continue
		}
		partner, ok := portals[p.LinkID]
		if ok && partner.LinkID == id && p.LinkID != id {
			continue
		}
		p.LinkID = ""
		portals[id] = p
		repaired++
	}
	colors := make(map[string]gamedb.RGB, len(rec.CustomColors))
	for _, cr := range rec.CustomColors {
		c := cr.CustomColor()
		if key := color.Normalize(c.Name); key != "" {
			colors[key] = c.Color
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.portals = portals
	r.colors = colors
	r.touch()
	if repaired == 0 {
		r.saved = r.version
	}
	return repaired
}
