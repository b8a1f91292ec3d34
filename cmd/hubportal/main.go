// Command hubportal runs the portal hub server and its maintenance tools.
package main

import (
	"os"

	"github.com/crystal-mush/hubportal/pkg/server"
)

// Build information injected via ldflags at build time.
var (
	commit = "none"
	date   = "unknown"
)

func main() {
	setVersion(server.Version + " (commit: " + commit + ", built: " + date + ")")
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
