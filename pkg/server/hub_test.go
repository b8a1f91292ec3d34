package server

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crystal-mush/hubportal/pkg/archive"
	"github.com/crystal-mush/hubportal/pkg/boltstore"
	"github.com/crystal-mush/hubportal/pkg/events"
	"github.com/crystal-mush/hubportal/pkg/gamedb"
	"github.com/crystal-mush/hubportal/pkg/world"
)

func TestHubEndToEndTeleport(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun(t, "hubportal create a red")
	env.at(10, 64, 0)
	env.mustRun(t, "hubportal create b blue 2.0")
	env.mustRun(t, "hubportal link a b")

	var got []events.Event
	id := uuid.New()
	env.hub.Bus.Subscribe(id, &funcSub{fn: func(ev events.Event) { got = append(got, ev) }})
	w := env.hub.Join(world.Overworld, world.Player{ID: id, Name: "steve", Pos: gamedb.Vec3{X: 0, Y: 65, Z: 0}})

	results := env.hub.OnTick(w, 42)
	require.Len(t, results, 1)
	p, ok := w.Player(id)
	require.True(t, ok)
	assert.Equal(t, gamedb.Vec3{X: 10.5, Y: 64, Z: 0.5}, p.Pos)

	var types []events.EventType
	for _, ev := range got {
		types = append(types, ev.Type)
	}
	assert.Contains(t, types, events.EvTeleport)
	assert.Contains(t, types, events.EvSound)
	assert.Contains(t, types, events.EvParticles)
}

func TestHubStepAdvancesAllWorlds(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun(t, "hubportal create a")
	env.at(0, 64, 20)
	env.mustRun(t, "hubportal create b")
	env.mustRun(t, "hubportal link a b")

	id := uuid.New()
	w := env.hub.Join(world.Overworld, world.Player{ID: id, Name: "alex", Pos: gamedb.Vec3{X: 0.5, Y: 64, Z: 0.5}})
	env.hub.Worlds.Get("world:the_nether")

	assert.Equal(t, int64(0), env.hub.Step())
	assert.Equal(t, int64(1), env.hub.Tick())
	p, _ := w.Player(id)
	assert.Equal(t, gamedb.Vec3{X: 0.5, Y: 64, Z: 20.5}, p.Pos)
}

func TestHubLeaveForgetsCooldown(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun(t, "hubportal create a")
	env.at(0, 64, 20)
	env.mustRun(t, "hubportal create b")
	env.mustRun(t, "hubportal link a b")

	id := uuid.New()
	player := world.Player{ID: id, Name: "alex", Pos: gamedb.Vec3{X: 0.5, Y: 64, Z: 0.5}}
	w := env.hub.Join(world.Overworld, player)
	require.Len(t, env.hub.OnTick(w, 100), 1)

	env.hub.Leave(world.Overworld, id)
	w = env.hub.Join(world.Overworld, player)
	assert.Len(t, env.hub.OnTick(w, 101), 1, "rejoining clears the cooldown")
}

func TestHubApplySettings(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun(t, "hubportal create a")
	env.at(0, 64, 20)
	env.mustRun(t, "hubportal create b")
	env.mustRun(t, "hubportal link a b")

	conf := DefaultGameConf()
	conf.CooldownTicks = 5
	conf.ParticleInterval = 7
	env.hub.ApplySettings(conf)
	assert.Equal(t, 7, env.hub.Config().ParticleInterval)

	id := uuid.New()
	w := env.hub.Join(world.Overworld, world.Player{ID: id, Pos: gamedb.Vec3{X: 0.5, Y: 64, Z: 0.5}})
	require.Len(t, env.hub.OnTick(w, 100), 1)
	assert.Empty(t, env.hub.OnTick(w, 104))
	assert.Len(t, env.hub.OnTick(w, 105), 1)
}

func TestHubFlushAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hub.db")
	store, err := boltstore.Open(path)
	require.NoError(t, err)

	hub, err := NewHub(DefaultGameConf(), store)
	require.NoError(t, err)
	caller := &Caller{Name: "console", World: world.Overworld, InWorld: true, Privileged: true}
	require.True(t, hub.Dispatch(caller, "hubportal create a red"))
	caller.Pos = gamedb.BlockPos{X: 3, Y: 70, Z: 3}
	require.True(t, hub.Dispatch(caller, "hubportal create b 2.5"))
	require.True(t, hub.Dispatch(caller, "hubportal link a b"))
	require.True(t, hub.Dispatch(caller, "hubportal color add ember 1,0.3,0"))

	wrote, err := hub.Flush()
	require.NoError(t, err)
	assert.True(t, wrote)
	wrote, err = hub.Flush()
	require.NoError(t, err)
	assert.False(t, wrote, "nothing changed since the last flush")
	require.NoError(t, hub.Close())

	store, err = boltstore.Open(path)
	require.NoError(t, err)
	reloaded, err := NewHub(DefaultGameConf(), store)
	require.NoError(t, err)
	defer reloaded.Close()

	b, ok := reloaded.Registry.Get("b")
	require.True(t, ok)
	assert.Equal(t, "a", b.LinkID)
	assert.Equal(t, float32(2.5), b.Scale)
	assert.Equal(t, gamedb.BlockPos{X: 3, Y: 70, Z: 3}, b.Pos)
	_, ok = reloaded.Registry.CustomColor("ember")
	assert.True(t, ok)
	assert.False(t, reloaded.Registry.Dirty())
}

func TestHubMetrics(t *testing.T) {
	env := newTestEnv(t)
	m := env.hub.EnableMetrics()
	env.mustRun(t, "hubportal create a")
	env.at(0, 64, 20)
	env.mustRun(t, "hubportal create b")
	env.mustRun(t, "hubportal link a b")
	env.run("hubportal link a a")

	id := uuid.New()
	w := env.hub.Join(world.Overworld, world.Player{ID: id, Pos: gamedb.Vec3{X: 0.5, Y: 64, Z: 0.5}})
	env.hub.OnTick(w, 3)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.teleportsTotal.WithLabelValues(world.Overworld)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.burstsTotal))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.commandsTotal.WithLabelValues("create", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.commandsTotal.WithLabelValues("link", "fail")))

	m.Update()
	assert.Equal(t, 2.0, testutil.ToFloat64(m.portalsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.linksTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.playersConnected.WithLabelValues(world.Overworld)))
}

func TestHubArchiveAndRestore(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hub.db")
	store, err := boltstore.Open(path)
	require.NoError(t, err)

	conf := DefaultGameConf()
	conf.ArchiveDir = filepath.Join(dir, "backups")
	conf.ArchiveRetain = 1
	hub, err := NewHub(conf, store)
	require.NoError(t, err)
	defer hub.Close()

	var out []string
	caller := &Caller{Name: "console", World: world.Overworld, InWorld: true, Privileged: true,
		SendFunc: func(ev events.Event) { out = append(out, ev.Text) }}
	require.True(t, hub.Dispatch(caller, "hubportal create a"))
	require.True(t, hub.Dispatch(caller, "hubportal archive"))
	require.True(t, hub.Dispatch(caller, "hubportal archive"))
	assert.False(t, hub.Registry.Dirty(), "archiving flushes first")

	out = nil
	require.True(t, hub.Dispatch(caller, "hubportal archive list"))
	require.Len(t, out, 3, "header, one retained archive, count")
	assert.Contains(t, out[1], "1 portals")

	archives, err := archive.List(conf.ArchiveDir)
	require.NoError(t, err)
	require.Len(t, archives, 1)

	restored := filepath.Join(dir, "restored.db")
	_, err = archive.Restore(archive.RestoreParams{ArchivePath: archives[0].Path, BoltDest: restored})
	require.NoError(t, err)
	rs, err := boltstore.Open(restored)
	require.NoError(t, err)
	defer rs.Close()
	rec, err := rs.Load()
	require.NoError(t, err)
	require.Len(t, rec.Portals, 1)
	assert.Equal(t, "a", rec.Portals[0].ID)
}

func TestCmdArchiveNeedsStore(t *testing.T) {
	env := newTestEnv(t)
	out, ok := env.run("hubportal archive")
	assert.False(t, ok)
	assert.Equal(t, "Archives need a bolt database.", out)
}

// stallSub blocks in Receive until released.
type stallSub struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *stallSub) Receive(events.Event) {
	s.once.Do(func() { close(s.entered) })
	<-s.release
}

func (s *stallSub) Closed() bool { return false }

func TestHubSlowSubscriberDoesNotHoldTick(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun(t, "hubportal create a")

	id := uuid.New()
	env.hub.Join(world.Overworld, world.Player{ID: id, Name: "steve", Pos: gamedb.Vec3{X: 5, Y: 64, Z: 5}})
	sub := &stallSub{entered: make(chan struct{}), release: make(chan struct{})}
	env.hub.Bus.Subscribe(id, sub)

	stepped := make(chan int64)
	go func() { stepped <- env.hub.Step() }()

	select {
	case <-sub.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("particle burst never delivered")
	}

	unblocked := make(chan struct{})
	go func() {
		assert.Equal(t, int64(1), env.hub.Tick())
		env.hub.ApplySettings(env.hub.Config())
		assert.True(t, env.hub.IsOperator("Wizard"))
		env.hub.Leave(world.Overworld, uuid.New())
		close(unblocked)
	}()
	select {
	case <-unblocked:
	case <-time.After(time.Second):
		t.Fatal("hub lock held while delivering events")
	}

	close(sub.release)
	assert.Equal(t, int64(0), <-stepped)
}
