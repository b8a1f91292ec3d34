package server

import (
	"strings"

	"github.com/crystal-mush/hubportal/pkg/color"
)

// Suggest returns completions for the last word of a partial command
// line. A line ending in a space completes a new, empty word.
func (h *Hub) Suggest(line string) []string {
	words := strings.Fields(line)
	current := ""
	if !strings.HasSuffix(line, " ") && len(words) > 0 {
		current = words[len(words)-1]
		words = words[:len(words)-1]
	}

	if len(words) == 0 {
		return matchPrefix([]string{RootCommand}, current)
	}
	if !strings.EqualFold(strings.TrimPrefix(words[0], "/"), RootCommand) {
		return nil
	}
	if len(words) == 1 {
		return matchPrefix(commandNames(h), current)
	}

	args := words[2:]
	switch strings.ToLower(words[1]) {
	case "create":
		if len(args) >= 1 {
			remaining := strings.Join(append(append([]string{}, args[1:]...), current), " ")
			return h.SuggestColorOrScale(remaining)
		}
	case "link", "unlink":
		if len(args) <= 1 {
			return h.SuggestPortalNames(current)
		}
	case "delete", "info":
		if len(args) == 0 {
			return h.SuggestPortalNames(current)
		}
	case "list":
		if len(args) == 0 {
			return matchPrefix([]string{"portals", "links"}, current)
		}
	case "edit":
		switch {
		case len(args) == 0:
			return h.SuggestPortalNames(current)
		case len(args) == 1:
			return matchPrefix([]string{"name", "color", "scale"}, current)
		case len(args) == 2 && strings.EqualFold(args[1], "scale"):
			return matchPrefix(color.ScaleSuggestions, current)
		case len(args) >= 2 && strings.EqualFold(args[1], "color"):
			return matchPrefix(color.Names(h.Registry), strings.ToLower(current))
		}
	case "color":
		switch {
		case len(args) == 0:
			return matchPrefix([]string{"add", "edit", "list"}, current)
		case len(args) == 1 && strings.EqualFold(args[0], "edit"):
			return matchPrefix(h.Registry.CustomColorNames(), strings.ToLower(current))
		case len(args) >= 2:
			return matchPrefix(color.Names(h.Registry), strings.ToLower(current))
		}
	}
	return nil
}

// SuggestPortalNames lists portal ids starting with prefix, ignoring case.
func (h *Hub) SuggestPortalNames(prefix string) []string {
	return matchPrefix(h.Registry.IDs(), prefix)
}

// SuggestColorOrScale completes the free-form create argument. With no
// first word yet it offers colors and scales. After a scale it offers
// colors, and after a color it offers scales. Each suggestion carries the
// words already typed.
func (h *Hub) SuggestColorOrScale(remaining string) []string {
	prefix := ""
	current := strings.ToLower(remaining)
	hasFirst := false
	if i := strings.LastIndex(remaining, " "); i >= 0 {
		prefix = remaining[:i+1]
		current = strings.ToLower(remaining[i+1:])
		hasFirst = true
	}

	firstIsScale := false
	if hasFirst {
		_, firstIsScale = color.ParseScale(strings.TrimSpace(prefix))
	}

	var out []string
	add := func(candidates []string) {
		for _, s := range candidates {
			if current == "" || strings.HasPrefix(strings.ToLower(s), current) {
				out = append(out, prefix+s)
			}
		}
	}
	switch {
	case hasFirst && firstIsScale:
		add(color.Names(h.Registry))
	case hasFirst:
		add(color.ScaleSuggestions)
	default:
		add(color.Names(h.Registry))
		add(color.ScaleSuggestions)
	}
	return out
}

func matchPrefix(candidates []string, prefix string) []string {
	lower := strings.ToLower(prefix)
	var out []string
	for _, c := range candidates {
		if lower == "" || strings.HasPrefix(strings.ToLower(c), lower) {
			out = append(out, c)
		}
	}
	return out
}
