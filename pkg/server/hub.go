package server

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/crystal-mush/hubportal/pkg/boltstore"
	"github.com/crystal-mush/hubportal/pkg/events"
	"github.com/crystal-mush/hubportal/pkg/particles"
	"github.com/crystal-mush/hubportal/pkg/registry"
	"github.com/crystal-mush/hubportal/pkg/teleport"
	"github.com/crystal-mush/hubportal/pkg/validate"
	"github.com/crystal-mush/hubportal/pkg/world"
	"github.com/google/uuid"
)

// Hub is the per-server context every collaborator is handed: the
// registry, its store, the event bus, the tick scans and the worlds they
// run against. One Hub exists per running server.
type Hub struct {
	Conf     *GameConf
	ConfPath string
	Registry *registry.Registry
	Store    *boltstore.Store // nil keeps the registry in memory only
	Bus      *events.Bus
	Worlds   *world.Worlds
	Journal  *Journal // nil when journal_path is unset
	Metrics  *Metrics // nil when metrics are disabled
	Commands map[string]*Command

	// mu serializes ticks, settings changes and cooldown bookkeeping.
	mu        sync.Mutex
	teleports *teleport.Trigger
	particles *particles.Emitter
	effects   events.Batch // tick effects, published once mu is released
	tick      int64
	startTime time.Time
}

// NewHub builds a hub and, if store is non-nil, loads the persisted
// registry from it.
func NewHub(conf *GameConf, store *boltstore.Store) (*Hub, error) {
	if conf == nil {
		conf = DefaultGameConf()
	}
	h := &Hub{
		Conf:      conf,
		Registry:  registry.New(),
		Store:     store,
		Bus:       events.NewBus(),
		Worlds:    world.NewWorlds(),
		Commands:  InitCommands(),
		startTime: time.Now(),
	}
	h.teleports = teleport.New(h.Registry, &h.effects, int64(conf.CooldownTicks))
	h.particles = particles.New(h.Registry, &h.effects, conf.ParticleSettings())
	if conf.Debug {
		SetDebug(true)
	}

	if store != nil {
		rec, err := store.Load()
		if err != nil {
			return nil, fmt.Errorf("hub: load registry: %w", err)
		}
		for _, f := range validate.New(&rec).Run() {
			log.Printf("WARNING: registry %s: %s", f.Severity, f.Description)
		}
		if repaired := h.Registry.Restore(rec); repaired > 0 {
			log.Printf("WARNING: hub: repaired %d inconsistent links on load", repaired)
		}
		log.Printf("hub: %d portals, %d custom colors", h.Registry.Len(), len(h.Registry.CustomColorNames()))
	}
	return h, nil
}

// EnableMetrics attaches Prometheus metrics.
func (h *Hub) EnableMetrics() *Metrics {
	if h.Metrics == nil {
		h.Metrics = NewMetrics(h, h.startTime)
	}
	return h.Metrics
}

// OnTick runs both scans for one world. Teleports are checked every tick,
// particles every particle_interval ticks.
func (h *Hub) OnTick(w world.World, tick int64) []teleport.Result {
	start := time.Now()
	h.mu.Lock()
	results, bursts := h.scan(w, tick)
	effects := h.effects.Take()
	h.mu.Unlock()

	effects.Publish(h.Bus)
	if h.Metrics != nil {
		h.Metrics.ObserveTick(map[string]int{w.ID(): len(results)}, bursts, time.Since(start))
	}
	return results
}

func (h *Hub) scan(w world.World, tick int64) ([]teleport.Result, int) {
	results := h.teleports.Scan(w, tick)
	for _, r := range results {
		DebugLog("tick %d: %s %s -> %s in %s", tick, r.Name, r.From, r.To, r.World)
	}
	bursts := h.particles.Scan(w, tick)
	return results, len(bursts)
}

// Step advances the hub clock by one tick and runs every world.
func (h *Hub) Step() int64 {
	start := time.Now()
	teleports := make(map[string]int)
	bursts := 0

	h.mu.Lock()
	tick := h.tick
	h.tick++
	for _, w := range h.Worlds.All() {
		results, n := h.scan(w, tick)
		if len(results) > 0 {
			teleports[w.ID()] += len(results)
		}
		bursts += n
	}
	effects := h.effects.Take()
	h.mu.Unlock()

	// Subscribers may be slow; deliver without holding mu.
	effects.Publish(h.Bus)

	if h.Metrics != nil {
		h.Metrics.ObserveTick(teleports, bursts, time.Since(start))
	}
	return tick
}

// Tick returns the next tick number Step will run.
func (h *Hub) Tick() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.tick
}

// Run drives Step at tick_rate until ctx is cancelled. A config reload
// that changes tick_rate takes effect on the next tick.
func (h *Hub) Run(ctx context.Context) {
	interval := h.tickInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	log.Printf("hub: ticking every %s", interval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.Step()
			if next := h.tickInterval(); next != interval {
				interval = next
				ticker.Reset(interval)
				log.Printf("hub: tick interval now %s", interval)
			}
		}
	}
}

func (h *Hub) tickInterval() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.Conf.TickInterval()
}

// ApplySettings swaps in reloaded cadence, cooldown and particle settings.
// Paths, ports and the operator list are also taken from conf; storage
// paths only matter at startup.
func (h *Hub) ApplySettings(conf *GameConf) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.teleports.SetCooldown(int64(conf.CooldownTicks))
	h.particles.SetSettings(conf.ParticleSettings())
	h.Conf = conf
	SetDebug(conf.Debug)
}

// Config returns the current configuration.
func (h *Hub) Config() *GameConf {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.Conf
}

// IsOperator reports whether name is privileged under the current config.
func (h *Hub) IsOperator(name string) bool {
	return h.Config().IsOperator(name)
}

// Join places a player in a world and announces it.
func (h *Hub) Join(worldID string, p world.Player) *world.MemWorld {
	w := h.Worlds.Get(worldID)
	w.Join(p)
	h.Bus.EmitToPlayer(p.ID, events.Event{Type: events.EvJoin, World: worldID, Pos: p.Pos, Text: p.Name})
	return w
}

// Leave removes a player from a world and drops their cooldown.
func (h *Hub) Leave(worldID string, id uuid.UUID) {
	w := h.Worlds.Get(worldID)
	p, ok := w.Player(id)
	if !w.Leave(id) {
		return
	}
	h.mu.Lock()
	h.teleports.Forget(id)
	h.mu.Unlock()
	if ok {
		h.Bus.EmitToPlayer(id, events.Event{Type: events.EvLeave, World: worldID, Pos: p.Pos, Text: p.Name})
	}
}

// Flush writes the registry to the store if it changed since the last
// write. It reports whether anything was written.
func (h *Hub) Flush() (bool, error) {
	if h.Store == nil || !h.Registry.Dirty() {
		return false, nil
	}
	rec, version := h.Registry.Snapshot()
	if err := h.Store.Save(rec); err != nil {
		return false, err
	}
	h.Registry.MarkSaved(version)
	return true, nil
}

// Close flushes pending changes and closes storage.
func (h *Hub) Close() error {
	var firstErr error
	if _, err := h.Flush(); err != nil {
		log.Printf("ERROR: hub: final save failed: %v", err)
		firstErr = err
	}
	if h.Journal != nil {
		if err := h.Journal.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if h.Store != nil {
		if err := h.Store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// StartAutoSave writes dirty registry state every interval until ctx is
// cancelled.
func (h *Hub) StartAutoSave(ctx context.Context, interval time.Duration) {
	if h.Store == nil {
		return
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				wrote, err := h.Flush()
				if err != nil {
					log.Printf("ERROR: Auto-save failed: %v", err)
				} else if wrote {
					log.Printf("Auto-save complete: %d portals", h.Registry.Len())
				}
			}
		}
	}()
}
