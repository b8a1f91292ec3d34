package gamedb

import (
	"fmt"
	"math"
)

// DefaultScale is the particle scale used when none is given.
const DefaultScale float32 = 1.0

// White is the default portal color.
var White = RGB{1, 1, 1}

// RGB is a color with float components nominally in [0,1].
type RGB [3]float32

// Clamp returns the color with every component forced into [0,1].
// Non-finite components become 1.
func (c RGB) Clamp() RGB {
	var out RGB
	for i, v := range c {
		f := float64(v)
		switch {
		case math.IsNaN(f) || math.IsInf(f, 0):
			out[i] = 1
		case v < 0:
			out[i] = 0
		case v > 1:
			out[i] = 1
		default:
			out[i] = v
		}
	}
	return out
}

// String formats the components with two decimals, e.g. "1.00, 0.50, 0.00".
func (c RGB) String() string {
	return fmt.Sprintf("%.2f, %.2f, %.2f", c[0], c[1], c[2])
}

// BlockPos is an integer block coordinate.
type BlockPos struct {
	X, Y, Z int
}

// Up returns the position one block above.
func (p BlockPos) Up() BlockPos {
	return BlockPos{X: p.X, Y: p.Y + 1, Z: p.Z}
}

func (p BlockPos) String() string {
	return fmt.Sprintf("%d %d %d", p.X, p.Y, p.Z)
}

// Vec3 is a continuous world position.
type Vec3 struct {
	X, Y, Z float64
}

// Block returns the block containing v.
func (v Vec3) Block() BlockPos {
	return BlockPos{
		X: int(math.Floor(v.X)),
		Y: int(math.Floor(v.Y)),
		Z: int(math.Floor(v.Z)),
	}
}

// Portal is a named teleport anchor. Portals are values: the registry
// replaces them wholesale on every mutation.
type Portal struct {
	ID     string
	World  string
	Pos    BlockPos
	LinkID string // empty when unlinked
	Color  RGB
	Scale  float32
}

// NewPortal builds a portal with sanitized color and scale.
func NewPortal(id, world string, pos BlockPos, color RGB, scale float32) Portal {
	return Portal{
		ID:    id,
		World: world,
		Pos:   pos,
		Color: color.Clamp(),
		Scale: SanitizeScale(scale),
	}
}

// Linked reports whether the portal has a partner.
func (p Portal) Linked() bool {
	return p.LinkID != ""
}

// SanitizeScale coerces non-positive or non-finite scales to DefaultScale.
func SanitizeScale(scale float32) float32 {
	f := float64(scale)
	if math.IsNaN(f) || math.IsInf(f, 0) || scale <= 0 {
		return DefaultScale
	}
	return scale
}

// CustomColor is a user-defined named color.
type CustomColor struct {
	Name  string
	Color RGB
}
