package events

import "github.com/google/uuid"

// Sink accepts addressed events. *Bus delivers them immediately; *Batch
// holds them until Publish.
type Sink interface {
	EmitToPlayer(player uuid.UUID, ev Event)
	EmitToPlayers(players []uuid.UUID, ev Event)
}

type pending struct {
	ev      Event
	players []uuid.UUID // nil for a single addressed event
}

// Batch queues events raised while a lock is held so they can be
// delivered after it is released. It is not safe for concurrent use; the
// owner's lock guards it.
type Batch struct {
	queue []pending
}

// EmitToPlayer queues ev for player.
func (b *Batch) EmitToPlayer(player uuid.UUID, ev Event) {
	ev.Player = player
	b.queue = append(b.queue, pending{ev: ev})
}

// EmitToPlayers queues ev for each listed player.
func (b *Batch) EmitToPlayers(players []uuid.UUID, ev Event) {
	b.queue = append(b.queue, pending{ev: ev, players: append([]uuid.UUID{}, players...)})
}

// Len returns the number of queued events.
func (b *Batch) Len() int { return len(b.queue) }

// Take empties the batch and returns its contents as a new batch.
func (b *Batch) Take() *Batch {
	out := &Batch{queue: b.queue}
	b.queue = nil
	return out
}

// Publish delivers the queued events to bus in the order they were raised.
func (b *Batch) Publish(bus *Bus) {
	for _, p := range b.queue {
		if p.players != nil {
			bus.EmitToPlayers(p.players, p.ev)
		} else {
			bus.Emit(p.ev)
		}
	}
	b.queue = nil
}
