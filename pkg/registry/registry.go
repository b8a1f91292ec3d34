// Package registry is the authoritative store of portals and custom colors
// for one running server. All mutations go through a single mutex so the
// symmetric-link and unique-id invariants hold even when commands arrive
// from a goroutine other than the tick loop.
package registry

import (
	"sort"
	"strings"
	"sync"

	"github.com/crystal-mush/hubportal/pkg/color"
	"github.com/crystal-mush/hubportal/pkg/gamedb"
)

// Link is an unordered pair of linked portal ids, A < B.
type Link struct {
	A, B string
}

// Registry holds portals keyed by id and custom colors keyed by
// normalized name.
type Registry struct {
	mu      sync.RWMutex
	portals map[string]gamedb.Portal
	colors  map[string]gamedb.RGB
	version uint64 // bumped on every mutation
	saved   uint64 // version last written to storage
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		portals: make(map[string]gamedb.Portal),
		colors:  make(map[string]gamedb.RGB),
	}
}

// customTable lets the color resolver read custom colors while r.mu is held.
type customTable map[string]gamedb.RGB

func (t customTable) CustomColor(name string) (gamedb.RGB, bool) {
	c, ok := t[color.Normalize(name)]
	return c, ok
}

func (r *Registry) touch() {
	r.version++
}

// validID reports whether id can be stored. Store keys must be non-empty.
func validID(id string) bool {
	return strings.TrimSpace(id) != ""
}

// Create inserts a new unlinked portal.
func (r *Registry) Create(id, world string, pos gamedb.BlockPos, rgb gamedb.RGB, scale float32) (gamedb.Portal, error) {
	if !validID(id) {
		return gamedb.Portal{}, fail("create", id, ErrInvalidID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.portals[id]; ok {
		return gamedb.Portal{}, fail("create", id, ErrAlreadyExists)
	}
	p := gamedb.NewPortal(id, world, pos, rgb, scale)
	r.portals[id] = p
	r.touch()
	return p, nil
}

// CreateFromText inserts a new portal whose color and scale come from
// free-form "color [scale]" text, resolved against this registry's
// custom colors.
func (r *Registry) CreateFromText(id, world string, pos gamedb.BlockPos, text string) (gamedb.Portal, color.ColorAndScale, error) {
	parsed := color.ParseColorAndScale(text)
	if !validID(id) {
		return gamedb.Portal{}, parsed, fail("create", id, ErrInvalidID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.portals[id]; ok {
		return gamedb.Portal{}, parsed, fail("create", id, ErrAlreadyExists)
	}
	rgb := color.Resolve(customTable(r.colors), parsed.Color)
	p := gamedb.NewPortal(id, world, pos, rgb, parsed.Scale)
	r.portals[id] = p
	r.touch()
	return p, parsed, nil
}

// Get returns the portal with the given id.
func (r *Registry) Get(id string) (gamedb.Portal, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.portals[id]
	return p, ok
}

// Len returns the number of portals.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.portals)
}

// Portals returns every portal ordered by id.
func (r *Registry) Portals() []gamedb.Portal {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]gamedb.Portal, 0, len(r.portals))
	for _, p := range r.portals {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// PortalsIn returns the portals in one world ordered by id.
func (r *Registry) PortalsIn(world string) []gamedb.Portal {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []gamedb.Portal
	for _, p := range r.portals {
		if p.World == world {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// IDs returns all portal ids, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.portals))
	for id := range r.portals {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Links returns each link once, deduplicated by unordered pair.
func (r *Registry) Links() []Link {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[Link]bool)
	var out []Link
	for _, p := range r.portals {
		if !p.Linked() {
			continue
		}
		l := Link{A: p.ID, B: p.LinkID}
		if l.B < l.A {
			l.A, l.B = l.B, l.A
		}
		if seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].A != out[j].A {
			return out[i].A < out[j].A
		}
		return out[i].B < out[j].B
	})
	return out
}

// Delete removes an unlinked portal.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.portals[id]
	if !ok {
		return fail("delete", id, ErrNotFound)
	}
	if p.Linked() {
		return failPair("delete", id, p.LinkID, ErrStillLinked)
	}
	delete(r.portals, id)
	r.touch()
	return nil
}

// Link pairs two unlinked portals.
func (r *Registry) Link(a, b string) error {
	if a == b {
		return fail("link", a, ErrSameID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	pa, ok := r.portals[a]
	if !ok {
		return fail("link", a, ErrNotFound)
	}
	pb, ok := r.portals[b]
	if !ok {
		return fail("link", b, ErrNotFound)
	}
	if pa.Linked() {
		return failPair("link", a, pa.LinkID, ErrAlreadyLinked)
	}
	if pb.Linked() {
		return failPair("link", b, pb.LinkID, ErrAlreadyLinked)
	}
	pa.LinkID = b
	pb.LinkID = a
	r.portals[a] = pa
	r.portals[b] = pb
	r.touch()
	return nil
}

// Unlink clears a link; a and b must reference each other exactly.
func (r *Registry) Unlink(a, b string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	pa, ok := r.portals[a]
	if !ok {
		return fail("unlink", a, ErrNotFound)
	}
	pb, ok := r.portals[b]
	if !ok {
		return fail("unlink", b, ErrNotFound)
	}
	if pa.LinkID != b || pb.LinkID != a {
		return failPair("unlink", a, b, ErrNotLinked)
	}
	pa.LinkID = ""
	pb.LinkID = ""
	r.portals[a] = pa
	r.portals[b] = pb
	r.touch()
	return nil
}

// Rename moves a portal to a new id and repoints its partner's link.
func (r *Registry) Rename(oldID, newID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.renameLocked(oldID, newID)
}

func (r *Registry) renameLocked(oldID, newID string) error {
	p, ok := r.portals[oldID]
	if !ok {
		return fail("rename", oldID, ErrNotFound)
	}
	if !validID(newID) {
		return fail("rename", newID, ErrInvalidID)
	}
	if _, taken := r.portals[newID]; taken {
		return fail("rename", newID, ErrAlreadyExists)
	}
	delete(r.portals, oldID)
	p.ID = newID
	r.portals[newID] = p
	if p.Linked() {
		if partner, ok := r.portals[p.LinkID]; ok {
			partner.LinkID = newID
			r.portals[partner.ID] = partner
		}
	}
	r.touch()
	return nil
}

// RenameAndRecolor renames a portal and replaces its color in one step.
// Nothing changes if the rename is rejected.
func (r *Registry) RenameAndRecolor(oldID, newID string, rgb gamedb.RGB) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.renameLocked(oldID, newID); err != nil {
		return err
	}
	p := r.portals[newID]
	p.Color = rgb.Clamp()
	r.portals[newID] = p
	return nil
}

// SetColor replaces a portal's color.
func (r *Registry) SetColor(id string, rgb gamedb.RGB) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.portals[id]
	if !ok {
		return fail("set color", id, ErrNotFound)
	}
	p.Color = rgb.Clamp()
	r.portals[id] = p
	r.touch()
	return nil
}

// SetScale replaces a portal's particle scale; non-positive becomes 1.0.
func (r *Registry) SetScale(id string, scale float32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.portals[id]
	if !ok {
		return fail("set scale", id, ErrNotFound)
	}
	p.Scale = gamedb.SanitizeScale(scale)
	r.portals[id] = p
	r.touch()
	return nil
}

// ResolveColor resolves a color token against the palette and this
// registry's custom colors.
func (r *Registry) ResolveColor(token string) gamedb.RGB {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return color.Resolve(customTable(r.colors), token)
}

// PutCustomColor upserts a custom color under its normalized name and
// returns that name. Palette collisions are the caller's concern.
func (r *Registry) PutCustomColor(name string, rgb gamedb.RGB) (string, error) {
	key := color.Normalize(name)
	if key == "" {
		return "", fail("put color", name, ErrInvalidName)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.colors[key] = rgb.Clamp()
	r.touch()
	return key, nil
}

// CustomColor implements color.CustomLookup.
func (r *Registry) CustomColor(name string) (gamedb.RGB, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.colors[color.Normalize(name)]
	return c, ok
}

// CustomColorNames implements color.CustomNames.
func (r *Registry) CustomColorNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.colors))
	for n := range r.colors {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// CustomColors returns all custom colors ordered by name.
func (r *Registry) CustomColors() []gamedb.CustomColor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]gamedb.CustomColor, 0, len(r.colors))
	for n, c := range r.colors {
		out = append(out, gamedb.CustomColor{Name: n, Color: c})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
