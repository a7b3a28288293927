package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kareemsasa3/rinkcal/internal/types"
)

func newScrapeCmd() *cobra.Command {
	var (
		ages      []string
		format    string
		output    string
		noHistory bool
	)
	cmd := &cobra.Command{
		Use:   "scrape <association>",
		Short: "Scrape one association and print its team calendars",
		Example: `  rinkcal scrape Chaska
  rinkcal scrape "Blaine Youth" --ages Bantams,Peewees --format csv --output blaine.csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(!noHistory)
			if err != nil {
				return err
			}
			defer a.Close()

			assoc, ok := a.cfg.Find(args[0])
			if !ok {
				return fmt.Errorf("unknown association %q (see 'rinkcal list')", args[0])
			}
			scope, err := parseAges(ages)
			if err != nil {
				return err
			}

			start := time.Now()
			teams, err := a.scraper.ScrapeAssociation(cmd.Context(), assoc, scope...)
			row := types.AssociationResult{
				Name:       assoc.Name,
				BaseURL:    assoc.BaseURL,
				Status:     types.StatusOK,
				Teams:      teams,
				TeamCount:  len(teams),
				DurationMs: time.Since(start).Milliseconds(),
			}
			if err != nil {
				row.Status = types.StatusError
				row.Error = err.Error()
				a.record([]types.AssociationResult{row})
				return fmt.Errorf("scrape %s: %w", assoc.Name, err)
			}
			if len(teams) == 0 {
				row.Status = types.StatusWarning
			}
			a.record([]types.AssociationResult{row})

			w, closeOut, err := openOutput(output)
			if err != nil {
				return err
			}
			if err := writeTeams(w, format, teams); err != nil {
				closeOut()
				return err
			}
			return closeOut()
		},
	}
	cmd.Flags().StringSliceVar(&ages, "ages", nil, "age groups to keep (Mites,Squirts,Peewees,Bantams,10U,12U,15U)")
	cmd.Flags().StringVarP(&format, "format", "f", formatTable, "output format: table, csv or json")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")
	cmd.Flags().BoolVar(&noHistory, "no-history", false, "do not record the result in the history database")
	return cmd
}
