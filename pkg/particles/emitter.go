// Package particles renders portals as periodic dust bursts so players can
// see where they are.
package particles

import (
	"github.com/crystal-mush/hubportal/pkg/color"
	"github.com/crystal-mush/hubportal/pkg/events"
	"github.com/crystal-mush/hubportal/pkg/gamedb"
	"github.com/crystal-mush/hubportal/pkg/world"
	"github.com/google/uuid"
)

// Defaults.
const (
	DefaultInterval = 3
	DefaultCount    = 60
	DefaultSpeed    = 0.25
)

// DefaultOffset is the spread of a burst along each axis.
var DefaultOffset = gamedb.Vec3{X: 0.4, Y: 0.6, Z: 0.4}

// Portals is the read side of the registry the emitter needs.
type Portals interface {
	PortalsIn(world string) []gamedb.Portal
}

// Settings controls burst shape and cadence.
type Settings struct {
	Interval int64
	Count    int
	Offset   gamedb.Vec3
	Speed    float64
}

// DefaultSettings returns the stock burst.
func DefaultSettings() Settings {
	return Settings{
		Interval: DefaultInterval,
		Count:    DefaultCount,
		Offset:   DefaultOffset,
		Speed:    DefaultSpeed,
	}
}

// Burst is one rendered portal.
type Burst struct {
	Portal string
	World  string
	Pos    gamedb.Vec3
	Color  int
	Scale  float32
}

// Emitter emits one burst per portal every Interval ticks.
type Emitter struct {
	portals  Portals
	bus      events.Sink
	settings Settings
}

// New creates an emitter sending bursts to bus, which may be nil.
// Invalid settings fall back to defaults.
func New(portals Portals, bus events.Sink, s Settings) *Emitter {
	e := &Emitter{portals: portals, bus: bus}
	e.SetSettings(s)
	return e
}

// SetSettings replaces the burst settings, keeping defaults for any
// non-positive interval or count.
func (e *Emitter) SetSettings(s Settings) {
	if s.Interval <= 0 {
		s.Interval = DefaultInterval
	}
	if s.Count <= 0 {
		s.Count = DefaultCount
	}
	if s.Speed < 0 {
		s.Speed = DefaultSpeed
	}
	e.settings = s
}

// Settings returns the current settings.
func (e *Emitter) Settings() Settings { return e.settings }

// Origin is where a portal's burst is centered: one block above the portal,
// horizontally centered.
func Origin(pos gamedb.BlockPos) gamedb.Vec3 {
	return gamedb.Vec3{X: float64(pos.X) + 0.5, Y: float64(pos.Y) + 1, Z: float64(pos.Z) + 0.5}
}

// Due reports whether tick is a particle tick.
func (e *Emitter) Due(tick int64) bool {
	return tick%e.settings.Interval == 0
}

// Scan emits bursts for every portal in w if tick is due. Linked and
// unlinked portals both render.
func (e *Emitter) Scan(w world.World, tick int64) []Burst {
	if !e.Due(tick) {
		return nil
	}
	portals := e.portals.PortalsIn(w.ID())
	if len(portals) == 0 {
		return nil
	}

	var ids []uuid.UUID
	if e.bus != nil {
		for _, p := range w.Players() {
			ids = append(ids, p.ID)
		}
	}

	bursts := make([]Burst, 0, len(portals))
	for _, p := range portals {
		b := Burst{
			Portal: p.ID,
			World:  p.World,
			Pos:    Origin(p.Pos),
			Color:  color.Pack(p.Color),
			Scale:  p.Scale,
		}
		bursts = append(bursts, b)
		if e.bus != nil {
			e.bus.EmitToPlayers(ids, events.Event{
				Type:  events.EvParticles,
				World: b.World,
				Pos:   b.Pos,
				Data: map[string]any{
					"portal": b.Portal,
					"color":  b.Color,
					"scale":  b.Scale,
					"count":  e.settings.Count,
					"dx":     e.settings.Offset.X,
					"dy":     e.settings.Offset.Y,
					"dz":     e.settings.Offset.Z,
					"speed":  e.settings.Speed,
				},
			})
		}
	}
	return bursts
}
