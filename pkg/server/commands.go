package server

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"

	"github.com/crystal-mush/hubportal/pkg/color"
	"github.com/crystal-mush/hubportal/pkg/events"
	"github.com/crystal-mush/hubportal/pkg/gamedb"
	"github.com/crystal-mush/hubportal/pkg/registry"
	"github.com/google/uuid"
)

// RootCommand is the literal every command line starts with.
const RootCommand = "hubportal"

// CommandHandler is the signature for hubportal subcommands. args are the
// whitespace-separated words after the subcommand name.
type CommandHandler func(h *Hub, c *Caller, args []string)

// Command represents a registered subcommand.
type Command struct {
	Name        string
	Usage       string
	Handler     CommandHandler
	NeedsPlayer bool // if true, the caller must be standing in a world
}

// Caller is whoever issued a command: a connected player or the console.
type Caller struct {
	Player     uuid.UUID
	Name       string
	World      string
	Pos        gamedb.BlockPos
	InWorld    bool
	Privileged bool
	SendFunc   func(ev events.Event)

	failed bool
}

// Send delivers command feedback.
func (c *Caller) Send(msg string) {
	c.emit(events.Event{Type: events.EvText, Player: c.Player, Text: msg})
}

// Fail delivers an error and marks the command as failed.
func (c *Caller) Fail(msg string) {
	c.failed = true
	c.emit(events.Event{Type: events.EvError, Player: c.Player, Text: msg})
}

func (c *Caller) emit(ev events.Event) {
	if c.SendFunc != nil {
		c.SendFunc(ev)
	}
}

// Failed reports whether any Fail was issued.
func (c *Caller) Failed() bool { return c.failed }

// InitCommands registers all hubportal subcommands.
func InitCommands() map[string]*Command {
	cmds := make(map[string]*Command)

	register := func(name, usage string, handler CommandHandler) {
		cmds[strings.ToLower(name)] = &Command{Name: name, Usage: usage, Handler: handler}
	}
	registerP := func(name, usage string, handler CommandHandler) {
		cmds[strings.ToLower(name)] = &Command{Name: name, Usage: usage, Handler: handler, NeedsPlayer: true}
	}

	// Portals
	registerP("create", "create <name> [color|scale]", cmdCreate)
	register("link", "link <name1> <name2>", cmdLink)
	register("unlink", "unlink <name1> <name2>", cmdUnlink)
	register("delete", "delete <name>", cmdDelete)
	register("list", "list portals|links", cmdList)
	register("info", "info <name>", cmdInfo)
	register("edit", "edit <name> name <newName> [color <color>] | color <color> [name <newName>] | scale <0.1-10>", cmdEdit)

	// Colors
	register("color", "color add <name> <color> | edit <name> <color> | list", cmdColor)

	// Journal
	register("history", "history [player] [limit]", cmdHistory)

	// Maintenance
	register("archive", "archive [list]", cmdArchive)

	return cmds
}

// Dispatch parses and runs one command line, e.g. "hubportal link a b".
// It reports whether the command succeeded.
func (h *Hub) Dispatch(c *Caller, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 || !strings.EqualFold(strings.TrimPrefix(fields[0], "/"), RootCommand) {
		c.Fail("Unknown command.")
		return false
	}
	if !c.Privileged {
		c.Fail("Permission denied.")
		return false
	}
	if len(fields) == 1 {
		sendUsage(h, c)
		return true
	}

	name := strings.ToLower(fields[1])
	cmd, ok := h.Commands[name]
	if !ok {
		c.Fail(fmt.Sprintf("Unknown subcommand '%s'. Try: %s", fields[1], strings.Join(commandNames(h), ", ")))
		return false
	}
	if cmd.NeedsPlayer && !c.InWorld {
		c.Fail("A player is required to run this command here")
		return false
	}

	cmd.Handler(h, c, fields[2:])
	ok = !c.failed
	if h.Metrics != nil {
		h.Metrics.ObserveCommand(cmd.Name, ok)
	}
	if ok {
		log.Printf("command: %s ran %q", c.Name, line)
	}
	return ok
}

func commandNames(h *Hub) []string {
	names := make([]string, 0, len(h.Commands))
	for n := range h.Commands {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func sendUsage(h *Hub, c *Caller) {
	for _, n := range commandNames(h) {
		c.Send("  /" + RootCommand + " " + h.Commands[n].Usage)
	}
}

func usage(h *Hub, c *Caller, name string) {
	c.Fail("Usage: /" + RootCommand + " " + h.Commands[name].Usage)
}

// changed announces a successful registry mutation.
func (h *Hub) changed(c *Caller, op, id string) {
	h.Bus.Emit(events.Event{
		Type: events.EvPortalChanged,
		Text: op,
		Data: map[string]any{"op": op, "id": id, "by": c.Name},
	})
}

// failure renders a registry error as player-facing text.
func failure(err error) string {
	var re *registry.Error
	if !errors.As(err, &re) {
		return err.Error()
	}
	switch {
	case errors.Is(err, registry.ErrSameID):
		return "Cannot link a portal to itself."
	case errors.Is(err, registry.ErrInvalidID):
		return "Portal name cannot be empty."
	case errors.Is(err, registry.ErrInvalidName):
		return "Color name cannot be empty."
	case errors.Is(err, registry.ErrNotFound):
		return fmt.Sprintf("Portal '%s' does not exist.", re.ID)
	case errors.Is(err, registry.ErrAlreadyExists):
		if re.Op == "rename" {
			return fmt.Sprintf("Portal '%s' already exists. Choose a different name.", re.ID)
		}
		return fmt.Sprintf("Portal '%s' already exists.", re.ID)
	case errors.Is(err, registry.ErrAlreadyLinked):
		return fmt.Sprintf("Portal '%s' is already linked to '%s'. Unlink it first.", re.ID, re.Partner)
	case errors.Is(err, registry.ErrNotLinked):
		return fmt.Sprintf("Portals '%s' and '%s' are not linked.", re.ID, re.Partner)
	case errors.Is(err, registry.ErrStillLinked):
		return fmt.Sprintf("Portal '%s' is linked to '%s'. Unlink first with: /%s unlink %s %s",
			re.ID, re.Partner, RootCommand, re.ID, re.Partner)
	default:
		return err.Error()
	}
}

// formatFloat prints a float the way players type it: "2.0", "1.5".
func formatFloat(f float32) string {
	s := strconv.FormatFloat(float64(f), 'f', -1, 32)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

// --- Portals ---

func cmdCreate(h *Hub, c *Caller, args []string) {
	if len(args) < 1 {
		usage(h, c, "create")
		return
	}
	name := args[0]
	text := strings.Join(args[1:], " ")
	if text == "" {
		text = color.DefaultColor
	}
	p, parsed, err := h.Registry.CreateFromText(name, c.World, c.Pos, text)
	if err != nil {
		c.Fail(failure(err))
		return
	}
	scaleStr := ""
	if parsed.Scale != gamedb.DefaultScale {
		scaleStr = ", scale: " + formatFloat(parsed.Scale)
	}
	c.Send(fmt.Sprintf("Created portal '%s' at %s in %s (color: %s%s)", p.ID, p.Pos, p.World, parsed.Color, scaleStr))
	h.changed(c, "create", p.ID)
}

func cmdLink(h *Hub, c *Caller, args []string) {
	if len(args) != 2 {
		usage(h, c, "link")
		return
	}
	a, b := args[0], args[1]
	if err := h.Registry.Link(a, b); err != nil {
		c.Fail(failure(err))
		return
	}
	c.Send(fmt.Sprintf("Linked '%s' <-> '%s'.", a, b))
	h.changed(c, "link", a)
}

func cmdUnlink(h *Hub, c *Caller, args []string) {
	if len(args) != 2 {
		usage(h, c, "unlink")
		return
	}
	a, b := args[0], args[1]
	if err := h.Registry.Unlink(a, b); err != nil {
		c.Fail(failure(err))
		return
	}
	c.Send(fmt.Sprintf("Unlinked '%s' and '%s'.", a, b))
	h.changed(c, "unlink", a)
}

func cmdDelete(h *Hub, c *Caller, args []string) {
	if len(args) != 1 {
		usage(h, c, "delete")
		return
	}
	if err := h.Registry.Delete(args[0]); err != nil {
		c.Fail(failure(err))
		return
	}
	c.Send(fmt.Sprintf("Deleted portal '%s'.", args[0]))
	h.changed(c, "delete", args[0])
}

func cmdList(h *Hub, c *Caller, args []string) {
	if len(args) != 1 {
		usage(h, c, "list")
		return
	}
	switch strings.ToLower(args[0]) {
	case "portals":
		portals := h.Registry.Portals()
		if len(portals) == 0 {
			c.Send("No portals.")
			return
		}
		for _, p := range portals {
			linkStr := ""
			if p.Linked() {
				linkStr = " -> " + p.LinkID
			}
			c.Send(fmt.Sprintf("  %s @ %s (%s)%s", p.ID, p.Pos, p.World, linkStr))
		}
	case "links":
		links := h.Registry.Links()
		if len(links) == 0 {
			c.Send("No links.")
			return
		}
		for _, l := range links {
			c.Send(fmt.Sprintf("  %s <-> %s", l.A, l.B))
		}
	default:
		usage(h, c, "list")
	}
}

func cmdInfo(h *Hub, c *Caller, args []string) {
	if len(args) != 1 {
		usage(h, c, "info")
		return
	}
	p, ok := h.Registry.Get(args[0])
	if !ok {
		c.Fail(fmt.Sprintf("Portal '%s' does not exist.", args[0]))
		return
	}
	link := "none"
	if p.Linked() {
		link = p.LinkID
	}
	c.Send("Portal: " + p.ID)
	c.Send("  Position: " + p.Pos.String())
	c.Send("  Dimension: " + p.World)
	c.Send("  Linked to: " + link)
	c.Send("  Color: " + p.Color.String())
	c.Send("  Scale: " + formatFloat(p.Scale))
}

// cmdEdit handles
//
//	edit <name> name <newName> [color <color...>]
//	edit <name> color <color...> [name <newName>]
//	edit <name> scale <scale>
func cmdEdit(h *Hub, c *Caller, args []string) {
	if len(args) < 3 {
		usage(h, c, "edit")
		return
	}
	name, field, rest := args[0], strings.ToLower(args[1]), args[2:]
	switch field {
	case "name":
		newName := rest[0]
		switch {
		case len(rest) == 1:
			editName(h, c, name, newName)
		case len(rest) >= 3 && strings.EqualFold(rest[1], "color"):
			editNameAndColor(h, c, name, newName, strings.Join(rest[2:], " "))
		default:
			usage(h, c, "edit")
		}
	case "color":
		n := len(rest)
		if n >= 3 && strings.EqualFold(rest[n-2], "name") {
			editNameAndColor(h, c, name, rest[n-1], strings.Join(rest[:n-2], " "))
			return
		}
		editColor(h, c, name, strings.Join(rest, " "))
	case "scale":
		if len(rest) != 1 {
			usage(h, c, "edit")
			return
		}
		editScale(h, c, name, rest[0])
	default:
		usage(h, c, "edit")
	}
}

func editName(h *Hub, c *Caller, name, newName string) {
	if name == newName {
		c.Fail("New name is the same as current name.")
		return
	}
	if err := h.Registry.Rename(name, newName); err != nil {
		c.Fail(failure(err))
		return
	}
	c.Send(fmt.Sprintf("Renamed portal '%s' to '%s'.", name, newName))
	h.changed(c, "rename", newName)
}

func editColor(h *Hub, c *Caller, name, colorStr string) {
	if _, ok := h.Registry.Get(name); !ok {
		c.Fail(fmt.Sprintf("Portal '%s' does not exist.", name))
		return
	}
	rgb := h.Registry.ResolveColor(colorStr)
	if err := h.Registry.SetColor(name, rgb); err != nil {
		c.Fail(failure(err))
		return
	}
	c.Send(fmt.Sprintf("Updated portal '%s' color to %s.", name, colorStr))
	h.changed(c, "color", name)
}

func editNameAndColor(h *Hub, c *Caller, name, newName, colorStr string) {
	if name == newName {
		c.Fail("New name is the same as current name.")
		return
	}
	rgb := h.Registry.ResolveColor(colorStr)
	if err := h.Registry.RenameAndRecolor(name, newName, rgb); err != nil {
		c.Fail(failure(err))
		return
	}
	c.Send(fmt.Sprintf("Renamed portal '%s' to '%s' and set color to %s.", name, newName, colorStr))
	h.changed(c, "rename", newName)
}

func editScale(h *Hub, c *Caller, name, arg string) {
	f, err := strconv.ParseFloat(arg, 32)
	if err != nil {
		c.Fail(fmt.Sprintf("Invalid float '%s'", arg))
		return
	}
	scale := float32(f)
	if scale < color.MinScale {
		c.Fail(fmt.Sprintf("Float must not be less than %s, found %s", formatFloat(color.MinScale), arg))
		return
	}
	if scale > color.MaxScale {
		c.Fail(fmt.Sprintf("Float must not be more than %s, found %s", formatFloat(color.MaxScale), arg))
		return
	}
	if err := h.Registry.SetScale(name, scale); err != nil {
		c.Fail(failure(err))
		return
	}
	c.Send(fmt.Sprintf("Updated portal '%s' particle scale to %s.", name, formatFloat(scale)))
	h.changed(c, "scale", name)
}

// --- Colors ---

func cmdColor(h *Hub, c *Caller, args []string) {
	if len(args) < 1 {
		usage(h, c, "color")
		return
	}
	switch strings.ToLower(args[0]) {
	case "add":
		if len(args) < 3 {
			usage(h, c, "color")
			return
		}
		colorAdd(h, c, args[1], strings.Join(args[2:], " "))
	case "edit":
		if len(args) < 3 {
			usage(h, c, "color")
			return
		}
		colorEdit(h, c, args[1], strings.Join(args[2:], " "))
	case "list":
		colorList(h, c)
	default:
		usage(h, c, "color")
	}
}

func colorAdd(h *Hub, c *Caller, name, value string) {
	normalized := color.Normalize(name)
	if normalized == "" {
		c.Fail("Color name cannot be empty.")
		return
	}
	if color.IsBuiltin(normalized) {
		c.Fail(fmt.Sprintf("'%s' is a Minecraft dye color and cannot be overridden. Choose a different name.", normalized))
		return
	}
	if _, exists := h.Registry.CustomColor(normalized); exists {
		c.Fail(fmt.Sprintf("A custom color named '%s' already exists. Use '/%s color edit %s <color>' to change it.",
			normalized, RootCommand, normalized))
		return
	}
	rgb := h.Registry.ResolveColor(value).Clamp()
	if _, err := h.Registry.PutCustomColor(normalized, rgb); err != nil {
		c.Fail(failure(err))
		return
	}
	c.Send(fmt.Sprintf("Added custom color '%s' (RGB %s).", normalized, rgb))
	h.changed(c, "color add", normalized)
}

func colorEdit(h *Hub, c *Caller, name, value string) {
	normalized := color.Normalize(name)
	if normalized == "" {
		c.Fail("Color name cannot be empty.")
		return
	}
	if color.IsBuiltin(normalized) {
		c.Fail("You cannot edit Minecraft dye colors. Use a custom color name.")
		return
	}
	if _, exists := h.Registry.CustomColor(normalized); !exists {
		c.Fail(fmt.Sprintf("No custom color named '%s'. Use '/%s color add %s <color>' to create one.",
			normalized, RootCommand, normalized))
		return
	}
	rgb := h.Registry.ResolveColor(value).Clamp()
	if _, err := h.Registry.PutCustomColor(normalized, rgb); err != nil {
		c.Fail(failure(err))
		return
	}
	c.Send(fmt.Sprintf("Updated custom color '%s' (RGB %s).", normalized, rgb))
	h.changed(c, "color edit", normalized)
}

func colorList(h *Hub, c *Caller) {
	c.Send("Dye colors: " + strings.Join(color.BuiltinNames(), ", "))
	custom := h.Registry.CustomColors()
	if len(custom) == 0 {
		c.Send("No custom colors.")
		return
	}
	c.Send("Custom colors:")
	for _, cc := range custom {
		c.Send(fmt.Sprintf("  %s (RGB %s)", cc.Name, cc.Color))
	}
}

// --- Journal ---

func cmdHistory(h *Hub, c *Caller, args []string) {
	if h.Journal == nil {
		c.Fail("Teleport history is not enabled.")
		return
	}
	player := ""
	limit := 10
	for _, a := range args {
		if n, err := strconv.Atoi(a); err == nil && n > 0 {
			limit = n
		} else {
			player = a
		}
	}
	entries, err := h.Journal.Recent(limit, player)
	if err != nil {
		log.Printf("ERROR: history: %v", err)
		c.Fail("Could not read teleport history.")
		return
	}
	if len(entries) == 0 {
		c.Send("No teleports recorded.")
		return
	}
	for _, e := range entries {
		c.Send(FormatJournalEntry(e))
	}
}

// FormatJournalEntry renders one journal row as a single line.
func FormatJournalEntry(e JournalEntry) string {
	return fmt.Sprintf("  %s %s %s -> %s (%s)", e.At.Format("2006-01-02 15:04:05"), e.Name, e.From, e.To, e.World)
}
