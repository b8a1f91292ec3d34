package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/crystal-mush/hubportal/pkg/boltstore"
	"github.com/crystal-mush/hubportal/pkg/validate"
)

var (
	checkFix  bool
	checkJSON bool
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the stored registry and optionally repair it",
	Long: `check reports broken or one-sided links, duplicate names, shared blocks,
out-of-range colors and scales, and unresolvable custom colors. With --fix,
every fixable finding is repaired and the registry is written back.`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().BoolVar(&checkFix, "fix", false, "apply all fixable findings and save")
	checkCmd.Flags().BoolVar(&checkJSON, "json", false, "print the report as JSON")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	gc, err := loadConf()
	if err != nil {
		return err
	}
	store, err := boltstore.Open(gc.BoltPath)
	if err != nil {
		return fmt.Errorf("opening bolt database: %w", err)
	}
	defer store.Close()

	rec, err := store.Load()
	if err != nil {
		return err
	}
	v := validate.New(&rec)
	v.Run()
	if checkFix {
		if n := v.ApplyAll(); n > 0 {
			if err := store.Save(rec); err != nil {
				return fmt.Errorf("saving repaired registry: %w", err)
			}
			log.Printf("Applied %d fix(es)", n)
		}
	}

	report := validate.GenerateReport(v)
	if checkJSON {
		err = report.WriteJSON(cmd.OutOrStdout())
	} else {
		err = report.WriteText(cmd.OutOrStdout())
	}
	if err != nil {
		return err
	}
	if n := v.Errors(); n > 0 {
		return fmt.Errorf("%d unfixed error(s)", n)
	}
	return nil
}
