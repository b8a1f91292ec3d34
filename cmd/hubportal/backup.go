package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/crystal-mush/hubportal/pkg/boltstore"
)

var backupCmd = &cobra.Command{
	Use:   "backup <dest>",
	Short: "Copy the bbolt database to dest in one consistent transaction",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		gc, err := loadConf()
		if err != nil {
			return err
		}
		store, err := boltstore.Open(gc.BoltPath)
		if err != nil {
			return fmt.Errorf("opening bolt database: %w", err)
		}
		defer store.Close()
		if err := store.Backup(args[0]); err != nil {
			return err
		}
		log.Printf("Backed up %s to %s", gc.BoltPath, args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(backupCmd)
}
