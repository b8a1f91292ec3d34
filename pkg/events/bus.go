package events

import (
	"slices"
	"sync"

	"github.com/google/uuid"
)

// Subscriber receives events from the bus.
type Subscriber interface {
	Receive(ev Event)
	Closed() bool
}

// Bus routes events to the subscribers of their recipient player and to
// every global subscriber. Tick scans and commands emit structured events;
// each subscriber (a websocket client, the teleport journal, a host
// adapter) encodes them its own way.
//
// Subscriber lists are replaced, never mutated in place, so Emit can
// deliver from a snapshot without holding the lock.
type Bus struct {
	mu      sync.RWMutex
	players map[uuid.UUID][]Subscriber
	global  []Subscriber
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{players: make(map[uuid.UUID][]Subscriber)}
}

// Subscribe adds sub to player's recipients.
func (b *Bus) Subscribe(player uuid.UUID, sub Subscriber) {
	b.mu.Lock()
	b.players[player] = append(slices.Clip(b.players[player]), sub)
	b.mu.Unlock()
}

// Unsubscribe removes sub from player's recipients.
func (b *Bus) Unsubscribe(player uuid.UUID, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if rest := without(b.players[player], sub); len(rest) > 0 {
		b.players[player] = rest
	} else {
		delete(b.players, player)
	}
}

// SubscribeGlobal adds a subscriber that sees every event.
func (b *Bus) SubscribeGlobal(sub Subscriber) {
	b.mu.Lock()
	b.global = append(slices.Clip(b.global), sub)
	b.mu.Unlock()
}

// UnsubscribeGlobal removes a global subscriber.
func (b *Bus) UnsubscribeGlobal(sub Subscriber) {
	b.mu.Lock()
	b.global = without(b.global, sub)
	b.mu.Unlock()
}

// Emit delivers ev to ev.Player's subscribers, then to the globals.
// An event without a player only reaches the globals.
func (b *Bus) Emit(ev Event) {
	b.mu.RLock()
	var direct []Subscriber
	if ev.Player != uuid.Nil {
		direct = b.players[ev.Player]
	}
	global := b.global
	b.mu.RUnlock()

	deliver(direct, ev)
	deliver(global, ev)
}

// EmitToPlayer delivers ev addressed to player.
func (b *Bus) EmitToPlayer(player uuid.UUID, ev Event) {
	ev.Player = player
	b.Emit(ev)
}

// EmitToPlayers delivers one copy of ev to each distinct listed player and
// a single unaddressed copy to the globals. Particle bursts go out this way
// so observers see them once per burst, not once per player.
func (b *Bus) EmitToPlayers(players []uuid.UUID, ev Event) {
	b.mu.RLock()
	targets := make(map[uuid.UUID][]Subscriber, len(players))
	for _, p := range players {
		if p == uuid.Nil {
			continue
		}
		if _, dup := targets[p]; !dup {
			targets[p] = b.players[p]
		}
	}
	global := b.global
	b.mu.RUnlock()

	for _, p := range players {
		subs, ok := targets[p]
		if !ok {
			continue
		}
		delete(targets, p)
		addressed := ev
		addressed.Player = p
		deliver(subs, addressed)
	}
	ev.Player = uuid.Nil
	deliver(global, ev)
}

// PlayerSubscribers returns the number of subscribers for a player.
func (b *Bus) PlayerSubscribers(player uuid.UUID) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.players[player])
}

// GlobalSubscribers returns the number of global subscribers.
func (b *Bus) GlobalSubscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.global)
}

// Cleanup drops closed subscribers everywhere.
func (b *Bus) Cleanup() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for p, subs := range b.players {
		if open := openOnly(subs); len(open) > 0 {
			b.players[p] = open
		} else {
			delete(b.players, p)
		}
	}
	b.global = openOnly(b.global)
}

func deliver(subs []Subscriber, ev Event) {
	for _, s := range subs {
		if !s.Closed() {
			s.Receive(ev)
		}
	}
}

func without(subs []Subscriber, sub Subscriber) []Subscriber {
	i := slices.Index(subs, sub)
	if i < 0 {
		return subs
	}
	return slices.Concat(subs[:i], subs[i+1:])
}

func openOnly(subs []Subscriber) []Subscriber {
	var open []Subscriber
	for _, s := range subs {
		if !s.Closed() {
			open = append(open, s)
		}
	}
	return open
}
