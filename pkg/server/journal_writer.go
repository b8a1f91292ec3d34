package server

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/crystal-mush/hubportal/pkg/events"
)

// JournalWriter is a global event bus subscriber that records teleports.
// Inserts happen on a background goroutine so the tick loop never waits
// on SQLite.
type JournalWriter struct {
	journal *Journal
	bus     *events.Bus
	queue   chan JournalEntry
	done    chan struct{}
	mu      sync.Mutex
	closed  bool
}

// NewJournalWriter creates a writer and registers it as a global
// subscriber on the bus.
func NewJournalWriter(j *Journal, bus *events.Bus) *JournalWriter {
	jw := &JournalWriter{
		journal: j,
		bus:     bus,
		queue:   make(chan JournalEntry, 256),
		done:    make(chan struct{}),
	}
	go jw.run()
	bus.SubscribeGlobal(jw)
	log.Printf("journal: writer registered on event bus")
	return jw
}

func (jw *JournalWriter) run() {
	defer close(jw.done)
	for e := range jw.queue {
		if err := jw.journal.Insert(e); err != nil {
			log.Printf("journal: insert error: %v", err)
		}
	}
}

// Receive implements events.Subscriber. Only EvTeleport events are stored.
func (jw *JournalWriter) Receive(ev events.Event) {
	if ev.Type != events.EvTeleport {
		return
	}
	e := JournalEntry{
		At:     time.Now(),
		Player: ev.Player,
		World:  ev.World,
		X:      ev.Pos.X,
		Y:      ev.Pos.Y,
		Z:      ev.Pos.Z,
	}
	e.Name, _ = ev.Data["name"].(string)
	e.From, _ = ev.Data["from"].(string)
	e.To, _ = ev.Data["to"].(string)

	jw.mu.Lock()
	defer jw.mu.Unlock()
	if jw.closed {
		return
	}
	select {
	case jw.queue <- e:
	default:
		log.Printf("WARNING: journal: queue full, dropping teleport of %s", e.Name)
	}
}

// Closed implements events.Subscriber.
func (jw *JournalWriter) Closed() bool {
	jw.mu.Lock()
	defer jw.mu.Unlock()
	return jw.closed
}

// Close leaves the bus, stops accepting events and waits for queued
// inserts to finish.
func (jw *JournalWriter) Close() {
	jw.bus.UnsubscribeGlobal(jw)
	jw.mu.Lock()
	if jw.closed {
		jw.mu.Unlock()
		return
	}
	jw.closed = true
	close(jw.queue)
	jw.mu.Unlock()
	<-jw.done
}

// StartRetentionCleanup purges old journal rows every interval until ctx
// is cancelled. A zero retention disables it.
func StartRetentionCleanup(ctx context.Context, j *Journal, retention, interval time.Duration) {
	if j == nil || retention <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				purged, err := j.Purge(retention)
				if err != nil {
					log.Printf("journal cleanup error: %v", err)
					continue
				}
				if purged > 0 {
					log.Printf("journal: purged %d old teleports", purged)
				}
			}
		}
	}()
}
