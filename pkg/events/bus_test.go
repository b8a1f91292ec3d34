package events

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	got    []Event
	closed bool
}

func (r *recorder) Receive(ev Event) {
	r.mu.Lock()
	r.got = append(r.got, ev)
	r.mu.Unlock()
}

func (r *recorder) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func (r *recorder) events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.got...)
}

func TestEmitToPlayer(t *testing.T) {
	bus := NewBus()
	rec := &recorder{}
	player := uuid.New()
	bus.Subscribe(player, rec)
	bus.Subscribe(uuid.New(), &recorder{})

	bus.EmitToPlayer(player, Event{Type: EvText, Text: "Linked 'a' <-> 'b'."})

	got := rec.events()
	require.Len(t, got, 1)
	assert.Equal(t, "Linked 'a' <-> 'b'.", got[0].Text)
	assert.Equal(t, player, got[0].Player)
}

func TestGlobalSeesEverything(t *testing.T) {
	bus := NewBus()
	global := &recorder{}
	bus.SubscribeGlobal(global)

	bus.Emit(Event{Type: EvTeleport, Player: uuid.New(), World: "world:overworld"})
	bus.Emit(Event{Type: EvPortalChanged})

	got := global.events()
	require.Len(t, got, 2)
	assert.Equal(t, "world:overworld", got[0].World)
	assert.Equal(t, EvPortalChanged, got[1].Type)
}

func TestUnaddressedEventSkipsNilPlayer(t *testing.T) {
	bus := NewBus()
	nobody := &recorder{}
	bus.Subscribe(uuid.Nil, nobody)

	bus.Emit(Event{Type: EvPortalChanged})

	assert.Empty(t, nobody.events())
}

func TestUnsubscribe(t *testing.T) {
	bus := NewBus()
	player := uuid.New()
	a, b := &recorder{}, &recorder{}
	bus.Subscribe(player, a)
	bus.Subscribe(player, b)
	bus.Unsubscribe(player, a)
	assert.Equal(t, 1, bus.PlayerSubscribers(player))

	bus.EmitToPlayer(player, Event{Type: EvText})
	assert.Empty(t, a.events())
	assert.Len(t, b.events(), 1)

	bus.Unsubscribe(player, b)
	assert.Zero(t, bus.PlayerSubscribers(player))

	g := &recorder{}
	bus.SubscribeGlobal(g)
	bus.UnsubscribeGlobal(g)
	assert.Zero(t, bus.GlobalSubscribers())
}

func TestClosedSubscriberSkipped(t *testing.T) {
	bus := NewBus()
	player := uuid.New()
	rec := &recorder{closed: true}
	bus.Subscribe(player, rec)

	bus.EmitToPlayer(player, Event{Type: EvText})
	assert.Empty(t, rec.events())
}

func TestEmitToPlayersOncePerPlayer(t *testing.T) {
	p1, p2, p3 := uuid.New(), uuid.New(), uuid.New()
	bus := NewBus()
	r1, r2, r3, global := &recorder{}, &recorder{}, &recorder{}, &recorder{}
	bus.Subscribe(p1, r1)
	bus.Subscribe(p2, r2)
	bus.Subscribe(p3, r3)
	bus.SubscribeGlobal(global)

	bus.EmitToPlayers([]uuid.UUID{p1, p2, p1, uuid.Nil}, Event{Type: EvParticles, World: "w"})

	require.Len(t, r1.events(), 1)
	assert.Equal(t, p1, r1.events()[0].Player)
	assert.Len(t, r2.events(), 1)
	assert.Empty(t, r3.events())

	g := global.events()
	require.Len(t, g, 1)
	assert.Equal(t, uuid.Nil, g[0].Player)
}

func TestCleanupDropsClosed(t *testing.T) {
	bus := NewBus()
	player, gone := uuid.New(), uuid.New()
	bus.Subscribe(player, &recorder{})
	bus.Subscribe(player, &recorder{closed: true})
	bus.Subscribe(gone, &recorder{closed: true})
	bus.SubscribeGlobal(&recorder{closed: true})
	bus.SubscribeGlobal(&recorder{})

	bus.Cleanup()

	assert.Equal(t, 1, bus.PlayerSubscribers(player))
	assert.Zero(t, bus.PlayerSubscribers(gone))
	assert.Equal(t, 1, bus.GlobalSubscribers())
}

func TestConcurrentEmit(t *testing.T) {
	bus := NewBus()
	player := uuid.New()
	rec := &recorder{}
	bus.Subscribe(player, rec)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				bus.EmitToPlayer(player, Event{Type: EvSound})
			}
		}()
	}
	for range 20 {
		bus.Subscribe(uuid.New(), &recorder{})
	}
	wg.Wait()
	assert.Len(t, rec.events(), 400)
}

func TestEventTypeString(t *testing.T) {
	for typ, want := range map[EventType]string{
		EvText:          "text",
		EvTeleport:      "teleport",
		EvParticles:     "particles",
		EvPortalChanged: "portal_changed",
		EvLeave:         "leave",
		EventType(999):  "unknown",
	} {
		assert.Equal(t, want, typ.String())
	}
}
