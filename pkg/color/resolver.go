// Package color resolves free-form color and scale text typed by players.
// Nothing here fails: unresolvable input degrades to white and scale 1.0.
package color

import (
	"errors"
	"strconv"
	"strings"

	"github.com/crystal-mush/hubportal/pkg/gamedb"
)

// DefaultColor is the color name used when none is given.
const DefaultColor = "white"

// Scale bounds accepted when a token is read as a scale.
const (
	MinScale float32 = 0.1
	MaxScale float32 = 10
)

// ScaleSuggestions are offered by autocompletion.
var ScaleSuggestions = []string{"0.5", "1.0", "1.5", "2.0", "2.5", "3.0", "4.0", "5.0"}

// CustomLookup finds a user-defined color by normalized name.
type CustomLookup interface {
	CustomColor(name string) (gamedb.RGB, bool)
}

// ColorAndScale is the result of ParseColorAndScale.
type ColorAndScale struct {
	Color string
	Scale float32
}

// Normalize trims, lowercases and replaces spaces with underscores.
func Normalize(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
}

// ParseScale reads s as a scale, accepting only values in [MinScale, MaxScale].
func ParseScale(s string) (float32, bool) {
	v, ok := parseNumber(s)
	if !ok {
		return 0, false
	}
	if v >= MinScale && v <= MaxScale {
		return v, true
	}
	return 0, false
}

// ParseColorAndScale splits "red 2.0", "2.0 red", "1.5" or "light blue"
// into a color token and scale. The last token is tried as the scale
// first, then the first token.
func ParseColorAndScale(text string) ColorAndScale {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ColorAndScale{Color: DefaultColor, Scale: gamedb.DefaultScale}
	}
	parts := strings.Fields(trimmed)
	if len(parts) == 1 {
		if s, ok := ParseScale(parts[0]); ok {
			return ColorAndScale{Color: DefaultColor, Scale: s}
		}
		return ColorAndScale{Color: trimmed, Scale: gamedb.DefaultScale}
	}
	if s, ok := ParseScale(parts[len(parts)-1]); ok {
		return ColorAndScale{Color: strings.Join(parts[:len(parts)-1], " "), Scale: s}
	}
	if s, ok := ParseScale(parts[0]); ok {
		return ColorAndScale{Color: strings.Join(parts[1:], " "), Scale: s}
	}
	return ColorAndScale{Color: trimmed, Scale: gamedb.DefaultScale}
}

// Resolve turns a color token into RGB. Order: built-in palette, custom
// colors, then an "r,g,b" literal. Literal components are returned as
// parsed, without clamping. Anything else is white.
func Resolve(custom CustomLookup, token string) gamedb.RGB {
	if strings.TrimSpace(token) == "" {
		return gamedb.White
	}
	name := Normalize(token)
	if c, ok := paletteByName[name]; ok {
		return c
	}
	if custom != nil {
		if c, ok := custom.CustomColor(name); ok {
			return c
		}
	}
	if c, ok := parseTriple(token); ok {
		return c
	}
	return gamedb.White
}

func parseTriple(s string) (gamedb.RGB, bool) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return gamedb.RGB{}, false
	}
	var c gamedb.RGB
	for i, p := range parts {
		f, ok := parseNumber(p)
		if !ok {
			return gamedb.RGB{}, false
		}
		c[i] = f
	}
	return c, true
}

// parseNumber reads a float the way players type it in other tools: an
// optional f/F/d/D suffix is allowed, and the only non-numeric spellings
// are "NaN" and "Infinity". Hex floats with a p exponent are accepted;
// digit separators and "inf"/"nan" in other cases are not. Overflow
// yields an infinity rather than failing.
func parseNumber(s string) (float32, bool) {
	s = strings.TrimSpace(s)
	unsigned := strings.TrimLeft(s, "+-")
	if len(s)-len(unsigned) > 1 || unsigned == "" {
		return 0, false
	}
	switch unsigned {
	case "NaN", "Infinity":
	default:
		if c := unsigned[0]; c != '.' && (c < '0' || c > '9') {
			return 0, false
		}
		if strings.ContainsRune(s, '_') {
			return 0, false
		}
		if n := len(s); n > 1 && strings.ContainsRune("fFdD", rune(s[n-1])) {
			s = s[:n-1]
		}
	}
	f, err := strconv.ParseFloat(s, 32)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0, false
	}
	return float32(f), true
}

// CustomNames lists custom color names for suggestions.
type CustomNames interface {
	CustomColorNames() []string
}

// Names returns built-in names followed by custom names.
func Names(custom CustomNames) []string {
	names := BuiltinNames()
	if custom != nil {
		names = append(names, custom.CustomColorNames()...)
	}
	return names
}
