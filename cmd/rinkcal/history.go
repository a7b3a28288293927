package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kareemsasa3/rinkcal/internal/database"
	"github.com/kareemsasa3/rinkcal/internal/types"
)

func newHistoryCmd() *cobra.Command {
	var (
		limit   int
		showDif bool
	)
	cmd := &cobra.Command{
		Use:   "history <association>",
		Short: "Show recorded team-list versions for an association",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(true)
			if err != nil {
				return err
			}
			defer a.Close()
			if a.db == nil {
				return fmt.Errorf("history needs database.path in the config")
			}

			name := args[0]
			if assoc, ok := a.cfg.Find(name); ok {
				name = assoc.Name
			}
			history, err := a.db.GetHistory(name, limit)
			if err != nil {
				return err
			}
			if len(history) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No history for %s\n", name)
				return nil
			}
			renderHistory(cmd.OutOrStdout(), history)

			if showDif {
				printLatestChange(cmd, history)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "versions to show")
	cmd.Flags().BoolVar(&showDif, "diff", false, "print the change between the two most recent successful versions")
	return cmd
}

func printLatestChange(cmd *cobra.Command, history []*database.Snapshot) {
	var ok []*database.Snapshot
	for _, s := range history {
		if s.Status != types.StatusError {
			ok = append(ok, s)
		}
		if len(ok) == 2 {
			break
		}
	}
	if len(ok) < 2 {
		fmt.Fprintln(cmd.OutOrStdout(), "Only one successful version recorded; nothing to diff.")
		return
	}
	changes := database.DiffContent(ok[1].Content, ok[0].Content)
	if changes.Empty() {
		fmt.Fprintln(cmd.OutOrStdout(), "No team changes between the two most recent versions.")
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Changes from version %s to %s:\n", ok[1].ID, ok[0].ID)
	fmt.Fprint(cmd.OutOrStdout(), changes.Summary())
}
