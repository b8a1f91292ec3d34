package events

import (
	"github.com/crystal-mush/hubportal/pkg/gamedb"
	"github.com/google/uuid"
)

// EventType classifies events for transport-specific encoding.
type EventType int

const (
	EvText          EventType = iota // Command feedback
	EvError                          // Command failure
	EvTeleport                       // Player moved through a portal
	EvSound                          // Sound cue at a position
	EvParticles                      // Dust particle burst
	EvPortalChanged                  // Registry mutation
	EvJoin                           // Player joined a world
	EvLeave                          // Player left a world
)

// String returns a human-readable name for the event type.
func (t EventType) String() string {
	switch t {
	case EvText:
		return "text"
	case EvError:
		return "error"
	case EvTeleport:
		return "teleport"
	case EvSound:
		return "sound"
	case EvParticles:
		return "particles"
	case EvPortalChanged:
		return "portal_changed"
	case EvJoin:
		return "join"
	case EvLeave:
		return "leave"
	default:
		return "unknown"
	}
}

// Event is a structured effect or notification that flows through the bus.
// Player is the recipient; uuid.Nil means nobody in particular, so only
// global subscribers see it unless it is broadcast.
type Event struct {
	Type   EventType
	Player uuid.UUID
	World  string
	Pos    gamedb.Vec3
	Text   string
	Data   map[string]any
}
