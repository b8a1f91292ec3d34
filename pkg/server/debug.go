package server

import (
	"log"
	"sync/atomic"
)

// debugMode gates per-tick and per-message logging. Set from the debug
// config key (HUB_DEBUG) or serve --debug; every config reload applies
// the key again.
var debugMode atomic.Bool

// SetDebug turns debug logging on or off, logging only actual changes.
func SetDebug(on bool) {
	if debugMode.Swap(on) == on {
		return
	}
	if on {
		log.Printf("[DEBUG] debug logging on")
	} else {
		log.Printf("debug logging off")
	}
}

// IsDebug reports whether debug logging is on.
func IsDebug() bool { return debugMode.Load() }

// DebugLog logs like log.Printf, with a [DEBUG] prefix, when debug is on.
func DebugLog(format string, args ...any) {
	if debugMode.Load() {
		log.Printf("[DEBUG] "+format, args...)
	}
}
