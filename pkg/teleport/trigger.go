// Package teleport moves players who stand in a linked portal to its
// partner. A player is on or in a portal when their feet block is the
// portal block or the block above it (where the particles render).
// Teleports never cross dimensions.
package teleport

import (
	"github.com/crystal-mush/hubportal/pkg/events"
	"github.com/crystal-mush/hubportal/pkg/gamedb"
	"github.com/crystal-mush/hubportal/pkg/world"
	"github.com/google/uuid"
)

// DefaultCooldown is how many ticks a player waits between teleports (1.5s at 20 TPS).
const DefaultCooldown = 30

// Sound played at the destination.
const (
	Sound         = "entity.enderman.teleport"
	SoundCategory = "players"
)

// Portals is the read side of the registry the trigger needs.
type Portals interface {
	PortalsIn(world string) []gamedb.Portal
	Get(id string) (gamedb.Portal, bool)
}

// Result records one teleport.
type Result struct {
	Player uuid.UUID
	Name   string
	World  string
	From   string
	To     string
	Dest   gamedb.Vec3
	Tick   int64
}

// Trigger scans players against linked portals once per tick. Cooldown
// state lives only as long as the process.
type Trigger struct {
	portals  Portals
	bus      events.Sink
	cooldown int64
	last     map[uuid.UUID]int64
}

// New creates a trigger. Effects go to bus, which may be nil.
func New(portals Portals, bus events.Sink, cooldown int64) *Trigger {
	if cooldown < 0 {
		cooldown = DefaultCooldown
	}
	return &Trigger{
		portals:  portals,
		bus:      bus,
		cooldown: cooldown,
		last:     make(map[uuid.UUID]int64),
	}
}

// SetCooldown changes the cooldown for subsequent scans.
func (t *Trigger) SetCooldown(ticks int64) {
	if ticks >= 0 {
		t.cooldown = ticks
	}
}

// Cooldown returns the current cooldown in ticks.
func (t *Trigger) Cooldown() int64 { return t.cooldown }

// Forget drops a player's cooldown entry, e.g. on disconnect.
func (t *Trigger) Forget(player uuid.UUID) {
	delete(t.last, player)
}

// InPortal reports whether a player whose feet are in block is standing
// on or in the portal at pos.
func InPortal(block, pos gamedb.BlockPos) bool {
	return block == pos || block == pos.Up()
}

// Destination is the horizontal center of the block at the stored Y. The
// stored Y is already the standing height, so no offset is added.
func Destination(pos gamedb.BlockPos) gamedb.Vec3 {
	return gamedb.Vec3{X: float64(pos.X) + 0.5, Y: float64(pos.Y), Z: float64(pos.Z) + 0.5}
}

func (t *Trigger) coolingDown(player uuid.UUID, tick int64) bool {
	last, ok := t.last[player]
	return ok && tick-last < t.cooldown
}

// Scan runs one tick for world w. Each player teleports at most once.
func (t *Trigger) Scan(w world.World, tick int64) []Result {
	worldID := w.ID()
	var linked []gamedb.Portal
	for _, p := range t.portals.PortalsIn(worldID) {
		if p.Linked() {
			linked = append(linked, p)
		}
	}
	if len(linked) == 0 {
		return nil
	}

	players := w.Players()
	var results []Result
	for _, pl := range players {
		if t.coolingDown(pl.ID, tick) {
			continue
		}
		block := pl.Block()
		for _, portal := range linked {
			if !InPortal(block, portal.Pos) {
				continue
			}
			partner, ok := t.portals.Get(portal.LinkID)
			if !ok || partner.World != worldID {
				continue
			}
			dest := Destination(partner.Pos)
			if !w.Teleport(pl.ID, dest) {
				break
			}
			t.last[pl.ID] = tick
			res := Result{
				Player: pl.ID,
				Name:   pl.Name,
				World:  worldID,
				From:   portal.ID,
				To:     partner.ID,
				Dest:   dest,
				Tick:   tick,
			}
			results = append(results, res)
			t.emit(players, res)
			break
		}
	}
	return results
}

func (t *Trigger) emit(players []world.Player, res Result) {
	if t.bus == nil {
		return
	}
	t.bus.EmitToPlayer(res.Player, events.Event{
		Type:  events.EvTeleport,
		World: res.World,
		Pos:   res.Dest,
		Data: map[string]any{
			"from": res.From,
			"to":   res.To,
			"name": res.Name,
			"tick": res.Tick,
		},
	})

	ids := make([]uuid.UUID, 0, len(players))
	for _, p := range players {
		ids = append(ids, p.ID)
	}
	t.bus.EmitToPlayers(ids, events.Event{
		Type:  events.EvSound,
		World: res.World,
		Pos:   res.Dest,
		Data: map[string]any{
			"sound":    Sound,
			"category": SoundCategory,
			"volume":   1.0,
			"pitch":    1.0,
		},
	})
}
