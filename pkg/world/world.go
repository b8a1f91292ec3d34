// Package world describes the host game world the hub runs against: a set
// of dimensions, each holding players with continuous positions.
package world

import (
	"github.com/crystal-mush/hubportal/pkg/gamedb"
	"github.com/google/uuid"
)

// Overworld is the default dimension id.
const Overworld = "world:overworld"

// Player is a snapshot of one player in a world.
type Player struct {
	ID   uuid.UUID
	Name string
	Pos  gamedb.Vec3
}

// Block returns the block the player's feet are in.
func (p Player) Block() gamedb.BlockPos {
	return p.Pos.Block()
}

// World is one dimension as seen by the tick scans.
type World interface {
	// ID is the dimension identifier portals are tagged with.
	ID() string
	// Players returns a snapshot of the players currently in the world.
	Players() []Player
	// Teleport moves a player within this world. It reports false if the
	// player is no longer present.
	Teleport(player uuid.UUID, dest gamedb.Vec3) bool
}
