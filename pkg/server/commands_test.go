package server

import (
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/crystal-mush/hubportal/pkg/events"
	"github.com/crystal-mush/hubportal/pkg/gamedb"
	"github.com/crystal-mush/hubportal/pkg/world"
)

// testEnv holds a hub and an operator standing in the overworld.
type testEnv struct {
	hub    *Hub
	caller *Caller
	out    []events.Event
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	conf := DefaultGameConf()
	conf.Operators = []string{"Wizard"}
	hub, err := NewHub(conf, nil)
	if err != nil {
		t.Fatalf("NewHub: %v", err)
	}
	env := &testEnv{hub: hub}
	env.caller = &Caller{
		Player:     uuid.New(),
		Name:       "Wizard",
		World:      world.Overworld,
		Pos:        gamedb.BlockPos{X: 0, Y: 64, Z: 0},
		InWorld:    true,
		Privileged: true,
		SendFunc:   func(ev events.Event) { env.out = append(env.out, ev) },
	}
	return env
}

// run dispatches a command with a fresh failure state and returns its
// output lines.
func (env *testEnv) run(line string) (string, bool) {
	env.out = nil
	env.caller.failed = false
	ok := env.hub.Dispatch(env.caller, line)
	lines := make([]string, 0, len(env.out))
	for _, ev := range env.out {
		lines = append(lines, ev.Text)
	}
	return strings.Join(lines, "\n"), ok
}

func (env *testEnv) mustRun(t *testing.T, line string) string {
	t.Helper()
	out, ok := env.run(line)
	if !ok {
		t.Fatalf("%q failed: %s", line, out)
	}
	return out
}

func (env *testEnv) at(x, y, z int) {
	env.caller.Pos = gamedb.BlockPos{X: x, Y: y, Z: z}
}

func TestCmdCreate(t *testing.T) {
	env := newTestEnv(t)

	out := env.mustRun(t, "hubportal create a red")
	want := "Created portal 'a' at 0 64 0 in world:overworld (color: red)"
	if out != want {
		t.Errorf("got %q, want %q", out, want)
	}

	env.at(10, 64, 0)
	out = env.mustRun(t, "/hubportal create b blue 2.0")
	want = "Created portal 'b' at 10 64 0 in world:overworld (color: blue, scale: 2.0)"
	if out != want {
		t.Errorf("got %q, want %q", out, want)
	}

	out = env.mustRun(t, "hubportal create c")
	if !strings.Contains(out, "(color: white)") {
		t.Errorf("default color missing: %q", out)
	}

	out, ok := env.run("hubportal create a green")
	if ok || out != "Portal 'a' already exists." {
		t.Errorf("duplicate create: ok=%v out=%q", ok, out)
	}
}

func TestCmdCreateNeedsPlayer(t *testing.T) {
	env := newTestEnv(t)
	env.caller.InWorld = false
	out, ok := env.run("hubportal create a")
	if ok || out != "A player is required to run this command here" {
		t.Errorf("console create: ok=%v out=%q", ok, out)
	}
}

func TestCmdPermissionDenied(t *testing.T) {
	env := newTestEnv(t)
	env.caller.Privileged = false
	out, ok := env.run("hubportal list portals")
	if ok || out != "Permission denied." {
		t.Errorf("unprivileged: ok=%v out=%q", ok, out)
	}
}

func TestCmdLinkUnlink(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun(t, "hubportal create a")
	env.mustRun(t, "hubportal create b")
	env.mustRun(t, "hubportal create c")

	cases := []struct {
		line string
		ok   bool
		want string
	}{
		{"hubportal link a a", false, "Cannot link a portal to itself."},
		{"hubportal link a zz", false, "Portal 'zz' does not exist."},
		{"hubportal link a b", true, "Linked 'a' <-> 'b'."},
		{"hubportal link c a", false, "Portal 'a' is already linked to 'b'. Unlink it first."},
		{"hubportal delete a", false, "Portal 'a' is linked to 'b'. Unlink first with: /hubportal unlink a b"},
		{"hubportal unlink a c", false, "Portals 'a' and 'c' are not linked."},
		{"hubportal unlink b a", true, "Unlinked 'b' and 'a'."},
		{"hubportal delete a", true, "Deleted portal 'a'."},
		{"hubportal info a", false, "Portal 'a' does not exist."},
	}
	for _, tc := range cases {
		out, ok := env.run(tc.line)
		if ok != tc.ok || out != tc.want {
			t.Errorf("%q: ok=%v out=%q, want ok=%v out=%q", tc.line, ok, out, tc.ok, tc.want)
		}
	}
}

func TestCmdList(t *testing.T) {
	env := newTestEnv(t)
	if out := env.mustRun(t, "hubportal list portals"); out != "No portals." {
		t.Errorf("empty portals: %q", out)
	}
	if out := env.mustRun(t, "hubportal list links"); out != "No links." {
		t.Errorf("empty links: %q", out)
	}

	env.mustRun(t, "hubportal create b")
	env.at(5, 70, -3)
	env.mustRun(t, "hubportal create a")
	env.mustRun(t, "hubportal link a b")

	out := env.mustRun(t, "hubportal list portals")
	want := "  a @ 5 70 -3 (world:overworld) -> b\n  b @ 0 64 0 (world:overworld) -> a"
	if out != want {
		t.Errorf("portals:\n%s\nwant:\n%s", out, want)
	}

	// Each link appears once.
	if out := env.mustRun(t, "hubportal list links"); out != "  a <-> b" {
		t.Errorf("links: %q", out)
	}
}

func TestCmdInfo(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun(t, "hubportal create a orange 1.5")
	out := env.mustRun(t, "hubportal info a")
	want := strings.Join([]string{
		"Portal: a",
		"  Position: 0 64 0",
		"  Dimension: world:overworld",
		"  Linked to: none",
		"  Color: 1.00, 0.41, 0.12",
		"  Scale: 1.5",
	}, "\n")
	if out != want {
		t.Errorf("info:\n%s\nwant:\n%s", out, want)
	}
}

func TestCmdEditName(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun(t, "hubportal create a")
	env.mustRun(t, "hubportal create b")
	env.mustRun(t, "hubportal link a b")

	if out, ok := env.run("hubportal edit a name a"); ok || out != "New name is the same as current name." {
		t.Errorf("same name: ok=%v out=%q", ok, out)
	}
	if out, ok := env.run("hubportal edit a name b"); ok || out != "Portal 'b' already exists. Choose a different name." {
		t.Errorf("taken name: ok=%v out=%q", ok, out)
	}
	if out := env.mustRun(t, "hubportal edit a name spawn"); out != "Renamed portal 'a' to 'spawn'." {
		t.Errorf("rename: %q", out)
	}
	b, _ := env.hub.Registry.Get("b")
	if b.LinkID != "spawn" {
		t.Errorf("partner link = %q, want spawn", b.LinkID)
	}
}

func TestCmdEditColorForms(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun(t, "hubportal create a")

	if out := env.mustRun(t, "hubportal edit a color light blue"); out != "Updated portal 'a' color to light blue." {
		t.Errorf("color: %q", out)
	}
	p, _ := env.hub.Registry.Get("a")
	if got := p.Color.String(); got != "0.60, 0.75, 0.80" {
		t.Errorf("light blue = %s", got)
	}

	out := env.mustRun(t, "hubportal edit a name b color red")
	if out != "Renamed portal 'a' to 'b' and set color to red." {
		t.Errorf("name+color: %q", out)
	}

	out = env.mustRun(t, "hubportal edit b color 0, 1, 0 name c")
	if out != "Renamed portal 'b' to 'c' and set color to 0, 1, 0." {
		t.Errorf("color+name: %q", out)
	}
	p, _ = env.hub.Registry.Get("c")
	if p.Color != (gamedb.RGB{0, 1, 0}) {
		t.Errorf("color = %v", p.Color)
	}
}

func TestCmdEditScale(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun(t, "hubportal create a")

	if out := env.mustRun(t, "hubportal edit a scale 2.5"); out != "Updated portal 'a' particle scale to 2.5." {
		t.Errorf("scale: %q", out)
	}
	if out, ok := env.run("hubportal edit a scale 0.05"); ok || out != "Float must not be less than 0.1, found 0.05" {
		t.Errorf("low scale: ok=%v out=%q", ok, out)
	}
	if out, ok := env.run("hubportal edit a scale 11"); ok || out != "Float must not be more than 10.0, found 11" {
		t.Errorf("high scale: ok=%v out=%q", ok, out)
	}
	if _, ok := env.run("hubportal edit a scale big"); ok {
		t.Error("non-numeric scale accepted")
	}
}

func TestCmdCustomColors(t *testing.T) {
	env := newTestEnv(t)

	// The name is one word: "Foam 0.2,0.9,0.7" is the color and resolves to white.
	env.mustRun(t, "hubportal color add Sea Foam 0.2,0.9,0.7")
	if c, ok := env.hub.Registry.CustomColor("sea"); !ok || c != gamedb.White {
		t.Errorf("sea = %v %v", c, ok)
	}

	out := env.mustRun(t, "hubportal color add seafoam 0.2,0.9,0.7")
	if out != "Added custom color 'seafoam' (RGB 0.20, 0.90, 0.70)." {
		t.Errorf("add: %q", out)
	}
	if out, ok := env.run("hubportal color add seafoam red"); ok || !strings.HasPrefix(out, "A custom color named 'seafoam' already exists.") {
		t.Errorf("dup add: ok=%v out=%q", ok, out)
	}
	if out, ok := env.run("hubportal color add Red 1,0,0"); ok || out != "'red' is a Minecraft dye color and cannot be overridden. Choose a different name." {
		t.Errorf("palette add: ok=%v out=%q", ok, out)
	}
	if out, ok := env.run("hubportal color edit red 1,0,0"); ok || out != "You cannot edit Minecraft dye colors. Use a custom color name." {
		t.Errorf("palette edit: ok=%v out=%q", ok, out)
	}
	if out, ok := env.run("hubportal color edit nope 1,0,0"); ok || out != "No custom color named 'nope'. Use '/hubportal color add nope <color>' to create one." {
		t.Errorf("unknown edit: ok=%v out=%q", ok, out)
	}
	out = env.mustRun(t, "hubportal color edit seafoam 2,0.5,-1")
	if out != "Updated custom color 'seafoam' (RGB 1.00, 0.50, 0.00)." {
		t.Errorf("edit: %q", out)
	}

	env.mustRun(t, "hubportal create a seafoam 3")
	p, _ := env.hub.Registry.Get("a")
	if p.Color != (gamedb.RGB{1, 0.5, 0}) || p.Scale != 3 {
		t.Errorf("portal = %+v", p)
	}

	list := env.mustRun(t, "hubportal color list")
	if !strings.Contains(list, "Dye colors: white, orange") || !strings.Contains(list, "  seafoam (RGB 1.00, 0.50, 0.00)") {
		t.Errorf("list:\n%s", list)
	}
}

func TestCmdHistoryDisabled(t *testing.T) {
	env := newTestEnv(t)
	if out, ok := env.run("hubportal history"); ok || out != "Teleport history is not enabled." {
		t.Errorf("history: ok=%v out=%q", ok, out)
	}
}

func TestCmdUsageAndUnknown(t *testing.T) {
	env := newTestEnv(t)
	out := env.mustRun(t, "hubportal")
	if !strings.Contains(out, "/hubportal create <name> [color|scale]") {
		t.Errorf("usage:\n%s", out)
	}
	if out, ok := env.run("hubportal frob"); ok || !strings.HasPrefix(out, "Unknown subcommand 'frob'.") {
		t.Errorf("unknown: ok=%v out=%q", ok, out)
	}
	if out, ok := env.run("hubportal link a"); ok || !strings.HasPrefix(out, "Usage: /hubportal link") {
		t.Errorf("bad args: ok=%v out=%q", ok, out)
	}
	if _, ok := env.run("say hi"); ok {
		t.Error("non-hubportal line accepted")
	}
}

func TestCmdMutationsEmitChanges(t *testing.T) {
	env := newTestEnv(t)
	var changes []string
	env.hub.Bus.SubscribeGlobal(&funcSub{fn: func(ev events.Event) {
		if ev.Type == events.EvPortalChanged {
			changes = append(changes, ev.Text)
		}
	}})
	env.mustRun(t, "hubportal create a")
	env.mustRun(t, "hubportal create b")
	env.mustRun(t, "hubportal link a b")
	env.run("hubportal link a b")
	env.mustRun(t, "hubportal list portals")

	want := []string{"create", "create", "link"}
	if strings.Join(changes, ",") != strings.Join(want, ",") {
		t.Errorf("changes = %v, want %v", changes, want)
	}
}

type funcSub struct {
	fn func(events.Event)
}

func (f *funcSub) Receive(ev events.Event) { f.fn(ev) }
func (f *funcSub) Closed() bool            { return false }
