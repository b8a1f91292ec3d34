package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/crystal-mush/hubportal/pkg/archive"
	"github.com/crystal-mush/hubportal/pkg/server"
)

var restoreOverwriteConf bool

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Create, list and restore state archives",
}

var archiveCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Archive the bolt database, journal and config into archive_dir",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		hub, err := openHub()
		if err != nil {
			return err
		}
		defer hub.Close()

		if j := hub.Config().JournalPath; j != "" {
			journal, err := server.OpenJournal(j, 5)
			if err != nil {
				log.Printf("WARNING: journal %s not archived: %v", j, err)
			} else {
				hub.Journal = journal
			}
		}
		path, err := hub.CreateArchive()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

var archiveListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archives, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		gc, err := loadConf()
		if err != nil {
			return err
		}
		archives, err := archive.List(gc.ArchiveDir)
		if err != nil {
			return err
		}
		for _, ai := range archives {
			fmt.Fprintln(cmd.OutOrStdout(), server.FormatArchive(ai))
		}
		return nil
	},
}

var archiveRestoreCmd = &cobra.Command{
	Use:   "restore <archive>",
	Short: "Restore the bolt database, journal and config from an archive",
	Long:  `Restore verifies every checksum before copying anything. Stop the server first.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		gc, err := loadConf()
		if err != nil {
			return err
		}
		res, err := archive.Restore(archive.RestoreParams{
			ArchivePath:   args[0],
			BoltDest:      gc.BoltPath,
			JournalDest:   gc.JournalPath,
			ConfDest:      cfgFile,
			OverwriteConf: restoreOverwriteConf,
		})
		if err != nil {
			return err
		}
		for _, w := range res.Warnings {
			log.Printf("WARNING: %s", w)
		}
		log.Printf("Restore complete: %d files from %s (%d portals, %d links)",
			res.FilesRestored, res.Manifest.Timestamp, res.Manifest.Portals, res.Manifest.Links)
		return nil
	},
}

func init() {
	archiveRestoreCmd.Flags().BoolVar(&restoreOverwriteConf, "overwrite-conf", false, "replace the current config file")
	archiveCmd.AddCommand(archiveCreateCmd, archiveListCmd, archiveRestoreCmd)
	rootCmd.AddCommand(archiveCmd)
}
