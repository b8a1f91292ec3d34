package server

import (
	"context"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ReloadConfig re-reads ConfPath and applies the result. It returns false
// if there is no config file or it failed to parse; the running settings
// are kept in that case.
func (h *Hub) ReloadConfig() bool {
	if h.ConfPath == "" {
		return false
	}
	conf, err := LoadGameConf(h.ConfPath)
	if err != nil {
		log.Printf("WARNING: config reload failed, keeping current settings: %v", err)
		return false
	}
	h.ApplySettings(conf)
	log.Printf("Config reloaded from %s (cooldown %d ticks, particles every %d ticks)",
		h.ConfPath, conf.CooldownTicks, conf.ParticleInterval)
	return true
}

// reloadDebounce collapses the burst of events an editor save produces.
const reloadDebounce = 250 * time.Millisecond

// WatchConfig starts an fsnotify watcher on the config file's directory.
// The config is reloaded once writes to it settle. The watcher stops when
// ctx is cancelled.
func (h *Hub) WatchConfig(ctx context.Context) {
	if h.ConfPath == "" {
		return
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("WARNING: Could not start config watcher: %v", err)
		return
	}

	dir := filepath.Dir(h.ConfPath)
	name := filepath.Base(h.ConfPath)

	go func() {
		defer watcher.Close()
		settle := time.NewTimer(reloadDebounce)
		settle.Stop()
		defer settle.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-settle.C:
				h.ReloadConfig()
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if filepath.Base(event.Name) != name {
					continue
				}
				DebugLog("config event %s on %s", event.Op, event.Name)
				settle.Reset(reloadDebounce)

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("Config watcher error: %v", err)
			}
		}
	}()

	// Watch the directory rather than the file so editors that replace
	// the file on save are still seen.
	if err := watcher.Add(dir); err != nil {
		log.Printf("WARNING: Could not watch config directory %s: %v", dir, err)
		watcher.Close()
		return
	}
	log.Printf("Watching config for changes: %s", h.ConfPath)
}
