package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/crystal-mush/hubportal/pkg/gamedb"
	"github.com/crystal-mush/hubportal/pkg/server"
)

var (
	listJSON  bool
	listWorld string

	historyLimit  int
	historyPlayer string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Print every stored portal",
	RunE:  runList,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print recent teleports from the journal",
	RunE:  runHistory,
}

func init() {
	listCmd.Flags().BoolVar(&listJSON, "json", false, "print portal records as JSON")
	listCmd.Flags().StringVar(&listWorld, "world", "", "only portals in this dimension")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of entries")
	historyCmd.Flags().StringVar(&historyPlayer, "player", "", "only this player's teleports")
	rootCmd.AddCommand(listCmd, historyCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	hub, err := openHub()
	if err != nil {
		return err
	}
	defer hub.Close()

	portals := hub.Registry.Portals()
	if listWorld != "" {
		portals = hub.Registry.PortalsIn(listWorld)
	}

	if listJSON {
		recs := make([]gamedb.PortalRecord, 0, len(portals))
		for _, p := range portals {
			recs = append(recs, p.ToRecord())
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(recs)
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tWORLD\tPOS\tLINK\tCOLOR\tSCALE")
	for _, p := range portals {
		link := p.LinkID
		if link == "" {
			link = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.2f,%.2f,%.2f\t%.1f\n",
			p.ID, p.World, p.Pos, link, p.Color[0], p.Color[1], p.Color[2], p.Scale)
	}
	return tw.Flush()
}

func runHistory(cmd *cobra.Command, args []string) error {
	gc, err := loadConf()
	if err != nil {
		return err
	}
	if gc.JournalPath == "" {
		return fmt.Errorf("journal_path is not set")
	}
	j, err := server.OpenJournal(gc.JournalPath, 5)
	if err != nil {
		return err
	}
	defer j.Close()

	entries, err := j.Recent(historyLimit, historyPlayer)
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Fprintln(cmd.OutOrStdout(), server.FormatJournalEntry(e))
	}
	return nil
}
