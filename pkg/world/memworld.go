package world

import (
	"sort"
	"sync"

	"github.com/crystal-mush/hubportal/pkg/gamedb"
	"github.com/google/uuid"
)

// MemWorld is an in-memory World. The websocket host adapter keeps one per
// dimension; tests use it directly.
type MemWorld struct {
	id      string
	mu      sync.RWMutex
	players map[uuid.UUID]Player
}

// NewMemWorld creates an empty world.
func NewMemWorld(id string) *MemWorld {
	return &MemWorld{id: id, players: make(map[uuid.UUID]Player)}
}

// ID implements World.
func (w *MemWorld) ID() string { return w.id }

// Join adds or replaces a player.
func (w *MemWorld) Join(p Player) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.players[p.ID] = p
}

// Leave removes a player and reports whether it was present.
func (w *MemWorld) Leave(id uuid.UUID) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.players[id]
	delete(w.players, id)
	return ok
}

// Move sets a player's position.
func (w *MemWorld) Move(id uuid.UUID, pos gamedb.Vec3) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	p, ok := w.players[id]
	if !ok {
		return false
	}
	p.Pos = pos
	w.players[id] = p
	return true
}

// Player returns one player.
func (w *MemWorld) Player(id uuid.UUID) (Player, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	p, ok := w.players[id]
	return p, ok
}

// Players implements World. Players are ordered by name, then id.
func (w *MemWorld) Players() []Player {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]Player, 0, len(w.players))
	for _, p := range w.players {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

// Teleport implements World.
func (w *MemWorld) Teleport(id uuid.UUID, dest gamedb.Vec3) bool {
	return w.Move(id, dest)
}

// Worlds is a set of MemWorlds keyed by dimension id.
type Worlds struct {
	mu     sync.RWMutex
	worlds map[string]*MemWorld
}

// NewWorlds creates an empty set.
func NewWorlds() *Worlds {
	return &Worlds{worlds: make(map[string]*MemWorld)}
}

// Get returns the world with the given id, creating it on first use.
func (ws *Worlds) Get(id string) *MemWorld {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	w, ok := ws.worlds[id]
	if !ok {
		w = NewMemWorld(id)
		ws.worlds[id] = w
	}
	return w
}

// All returns every world ordered by id.
func (ws *Worlds) All() []*MemWorld {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	out := make([]*MemWorld, 0, len(ws.worlds))
	for _, w := range ws.worlds {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}
