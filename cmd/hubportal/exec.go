package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/crystal-mush/hubportal/pkg/events"
	"github.com/crystal-mush/hubportal/pkg/gamedb"
	"github.com/crystal-mush/hubportal/pkg/server"
)

var (
	execPlayer string
	execWorld  string
	execPos    string
)

var execCmd = &cobra.Command{
	Use:   "exec <subcommand> [args...]",
	Short: "Run one hubportal command against the database as an operator",
	Long: `Run one hubportal command offline, e.g.

  hubportal exec --pos 0,64,0 create spawn light blue 2.0
  hubportal exec link spawn shop

create needs --pos. Changes are saved before exit.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExec,
}

func init() {
	execCmd.Flags().StringVar(&execPlayer, "player", "console", "name recorded as the command's author")
	execCmd.Flags().StringVar(&execWorld, "world", "", "dimension for create (default: default_world)")
	execCmd.Flags().StringVar(&execPos, "pos", "", "block position x,y,z for create")
	rootCmd.AddCommand(execCmd)
}

func parseBlockPos(s string) (gamedb.BlockPos, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return gamedb.BlockPos{}, fmt.Errorf("position %q: want x,y,z", s)
	}
	var xyz [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return gamedb.BlockPos{}, fmt.Errorf("position %q: %w", s, err)
		}
		xyz[i] = n
	}
	return gamedb.BlockPos{X: xyz[0], Y: xyz[1], Z: xyz[2]}, nil
}

func runExec(cmd *cobra.Command, args []string) error {
	hub, err := openHub()
	if err != nil {
		return err
	}
	defer hub.Close()

	c := &server.Caller{
		Player:     uuid.Nil,
		Name:       execPlayer,
		World:      execWorld,
		Privileged: true,
		SendFunc: func(ev events.Event) {
			if ev.Type == events.EvError {
				fmt.Fprintln(os.Stderr, ev.Text)
				return
			}
			fmt.Fprintln(cmd.OutOrStdout(), ev.Text)
		},
	}
	if c.World == "" {
		c.World = hub.Config().DefaultWorld
	}
	if execPos != "" {
		pos, err := parseBlockPos(execPos)
		if err != nil {
			return err
		}
		c.Pos = pos
		c.InWorld = true
	}

	line := strings.Join(append([]string{server.RootCommand}, args...), " ")
	ok := hub.Dispatch(c, line)
	if _, err := hub.Flush(); err != nil {
		return fmt.Errorf("saving: %w", err)
	}
	if !ok {
		return fmt.Errorf("command failed")
	}
	return nil
}
