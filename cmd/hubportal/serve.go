package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/crystal-mush/hubportal/pkg/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the hub: tick loop, websocket server and HTTP API",
	RunE:  runServe,
}

var (
	servePort  int
	serveDebug bool
	serveTLS   bool
)

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "HTTP port, overrides web_port")
	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "enable debug logging until the next config reload")
	serveCmd.Flags().BoolVar(&serveTLS, "tls", false, "serve HTTPS, overrides web_tls")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	log.Printf("Welcome to %s", server.VersionString())

	hub, err := openHub()
	if err != nil {
		return err
	}
	defer func() {
		if err := hub.Close(); err != nil {
			log.Printf("ERROR: shutdown: %v", err)
		}
		log.Printf("Shutdown complete")
	}()

	gc := hub.Config()
	if servePort != 0 {
		gc.WebPort = servePort
	}
	if serveTLS {
		gc.WebTLS = true
	}
	if serveDebug {
		server.SetDebug(true)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if gc.JournalPath != "" {
		j, err := server.OpenJournal(gc.JournalPath, 5)
		if err != nil {
			log.Printf("WARNING: failed to open journal %s: %v", gc.JournalPath, err)
		} else {
			hub.Journal = j
			jw := server.NewJournalWriter(j, hub.Bus)
			defer jw.Close()
			server.StartRetentionCleanup(ctx, j, gc.Retention(), time.Hour)
			log.Printf("Teleport journal enabled: %s (retention %s)", gc.JournalPath, gc.Retention())
		}
	}

	if gc.MetricsEnabled {
		hub.EnableMetrics()
	}

	hub.StartAutoSave(ctx, gc.Autosave())
	hub.StartAutoArchive(ctx, time.Duration(gc.ArchiveInterval)*time.Minute)
	if gc.WatchConfig {
		hub.WatchConfig(ctx)
	}

	web := server.NewWebServer(hub)
	errc := make(chan error, 1)
	go func() { errc <- web.Start() }()

	go hub.Run(ctx)
	log.Printf("Starting %s: %d portals, %d ticks/s", gc.HubName, hub.Registry.Len(), gc.TickRate)

	select {
	case <-ctx.Done():
		log.Printf("Shutting down...")
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("web server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := web.Stop(shutdownCtx); err != nil {
		log.Printf("WARNING: web server shutdown: %v", err)
	}
	return nil
}
