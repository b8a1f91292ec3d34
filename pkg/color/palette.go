package color

import "github.com/crystal-mush/hubportal/pkg/gamedb"

// paletteEntry is one built-in dye color.
type paletteEntry struct {
	Name string
	Hex  int // 0xRRGGBB
}

// palette lists the built-in dye colors in their canonical order.
var palette = []paletteEntry{
	{"white", 0xFFFFFF},
	{"orange", 0xFF681F},
	{"magenta", 0xFF00FF},
	{"light_blue", 0x9AC0CD},
	{"yellow", 0xFFFF00},
	{"lime", 0xBFFF00},
	{"pink", 0xFF69B4},
	{"gray", 0x808080},
	{"light_gray", 0xD3D3D3},
	{"cyan", 0x00FFFF},
	{"purple", 0xA020F0},
	{"blue", 0x0000FF},
	{"brown", 0x8B4513},
	{"green", 0x00FF00},
	{"red", 0xFF0000},
	{"black", 0x000000},
}

var paletteByName = func() map[string]gamedb.RGB {
	m := make(map[string]gamedb.RGB, len(palette))
	for _, e := range palette {
		m[e.Name] = Unpack(e.Hex)
	}
	return m
}()

// Builtin looks up a built-in palette color by (normalized) name.
func Builtin(name string) (gamedb.RGB, bool) {
	c, ok := paletteByName[Normalize(name)]
	return c, ok
}

// IsBuiltin reports whether name collides with a built-in palette name.
func IsBuiltin(name string) bool {
	_, ok := paletteByName[Normalize(name)]
	return ok
}

// BuiltinNames returns the palette names in canonical order.
func BuiltinNames() []string {
	names := make([]string, len(palette))
	for i, e := range palette {
		names[i] = e.Name
	}
	return names
}

// Unpack converts 0xRRGGBB to float components.
func Unpack(hex int) gamedb.RGB {
	return gamedb.RGB{
		float32((hex>>16)&0xFF) / 255,
		float32((hex>>8)&0xFF) / 255,
		float32(hex&0xFF) / 255,
	}
}

// Pack converts a color to 0xRRGGBB, clamping each component to [0,1]
// and truncating after scaling by 255.
func Pack(c gamedb.RGB) int {
	c = c.Clamp()
	r := int(c[0] * 255)
	g := int(c[1] * 255)
	b := int(c[2] * 255)
	return r<<16 | g<<8 | b
}
