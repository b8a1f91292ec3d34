package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/crystal-mush/hubportal/pkg/boltstore"
	"github.com/crystal-mush/hubportal/pkg/server"
)

var (
	cfgFile  string
	boltPath string
)

var rootCmd = &cobra.Command{
	Use:           "hubportal",
	Short:         "Linked portal hub server",
	Long:          `hubportal keeps a registry of named, colored portals and teleports players standing in a linked portal to its partner.`,
	Version:       server.Version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", os.Getenv(server.EnvPrefix+"CONFIG"),
		"config file (env: HUB_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&boltPath, "bolt", "",
		"bbolt database path, overrides bolt_path")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func setVersion(v string) {
	rootCmd.Version = v
}

// loadConf reads the config file and applies the --bolt override.
func loadConf() (*server.GameConf, error) {
	gc, err := server.LoadGameConf(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if cfgFile != "" {
		log.Printf("Loaded config from %s", cfgFile)
	}
	if boltPath != "" {
		gc.BoltPath = boltPath
	}
	return gc, nil
}

// openHub opens the bbolt store and builds a hub over it. The caller
// closes the hub, which flushes and closes the store.
func openHub() (*server.Hub, error) {
	gc, err := loadConf()
	if err != nil {
		return nil, err
	}
	store, err := boltstore.Open(gc.BoltPath)
	if err != nil {
		return nil, fmt.Errorf("opening bolt database: %w", err)
	}
	hub, err := server.NewHub(gc, store)
	if err != nil {
		store.Close()
		return nil, err
	}
	hub.ConfPath = cfgFile
	return hub, nil
}
