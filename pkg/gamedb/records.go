package gamedb

import "sort"

// PosRecord is the persisted form of a BlockPos.
type PosRecord struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

// PortalRecord is the persisted form of a Portal.
type PortalRecord struct {
	ID    string    `json:"id"`
	World string    `json:"world"`
	Pos   PosRecord `json:"pos"`
	Link  string    `json:"link,omitempty"`
	Color []float32 `json:"color,omitempty"`
	Scale *float32  `json:"scale,omitempty"`
}

// CustomColorRecord is the persisted form of a CustomColor.
type CustomColorRecord struct {
	Name  string    `json:"name"`
	Color []float32 `json:"color"`
}

// RegistryRecord is the persisted form of the whole registry.
type RegistryRecord struct {
	Portals      []PortalRecord      `json:"portals"`
	CustomColors []CustomColorRecord `json:"customColors,omitempty"`
}

// colorFromList fills missing components with 1.
func colorFromList(list []float32) RGB {
	c := White
	for i := 0; i < len(list) && i < 3; i++ {
		c[i] = list[i]
	}
	return c
}

// ToRecord converts a portal to its persisted form.
func (p Portal) ToRecord() PortalRecord {
	scale := p.Scale
	return PortalRecord{
		ID:    p.ID,
		World: p.World,
		Pos:   PosRecord{X: p.Pos.X, Y: p.Pos.Y, Z: p.Pos.Z},
		Link:  p.LinkID,
		Color: []float32{p.Color[0], p.Color[1], p.Color[2]},
		Scale: &scale,
	}
}

// Portal converts a record back, applying schema defaults
// (color [1,1,1], scale 1.0).
func (r PortalRecord) Portal() Portal {
	scale := DefaultScale
	if r.Scale != nil {
		scale = *r.Scale
	}
	p := NewPortal(r.ID, r.World, BlockPos{X: r.Pos.X, Y: r.Pos.Y, Z: r.Pos.Z}, colorFromList(r.Color), scale)
	p.LinkID = r.Link
	return p
}

// ToRecord converts a custom color to its persisted form.
func (c CustomColor) ToRecord() CustomColorRecord {
	return CustomColorRecord{Name: c.Name, Color: []float32{c.Color[0], c.Color[1], c.Color[2]}}
}

// CustomColor converts a record back.
func (r CustomColorRecord) CustomColor() CustomColor {
	return CustomColor{Name: r.Name, Color: colorFromList(r.Color)}
}

// SortRecords orders portals and colors by key so that encoded snapshots
// are stable.
func (r *RegistryRecord) SortRecords() {
	sort.Slice(r.Portals, func(i, j int) bool { return r.Portals[i].ID < r.Portals[j].ID })
	sort.Slice(r.CustomColors, func(i, j int) bool { return r.CustomColors[i].Name < r.CustomColors[j].Name })
}
