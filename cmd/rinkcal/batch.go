package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kareemsasa3/rinkcal/internal/export"
	"github.com/kareemsasa3/rinkcal/internal/scraper"
	"github.com/kareemsasa3/rinkcal/internal/types"
)

func newBatchCmd() *cobra.Command {
	var (
		names     []string
		ages      []string
		format    string
		output    string
		size      int
		delay     time.Duration
		noHistory bool
	)
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Scrape several associations and write one combined team list",
		Example: `  rinkcal batch --format csv --output teams.csv
  rinkcal batch --associations Anoka,Chaska --ages Squirts --size 2`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(!noHistory)
			if err != nil {
				return err
			}
			defer a.Close()

			assocs, err := a.selectAssociations(names)
			if err != nil {
				return err
			}
			scope, err := parseAges(ages)
			if err != nil {
				return err
			}

			results, runErr := a.scraper.RunBatch(cmd.Context(), assocs, scraper.BatchOptions{
				Size:       size,
				Delay:      delay,
				Ages:       scope,
				OnProgress: progressLogger(a),
			})
			a.record(results)

			renderResults(os.Stderr, results)

			w, closeOut, err := openOutput(output)
			if err != nil {
				return err
			}
			if err := writeTeams(w, format, export.Teams(results)); err != nil {
				closeOut()
				return err
			}
			if err := closeOut(); err != nil {
				return err
			}
			return runErr
		},
	}
	cmd.Flags().StringSliceVarP(&names, "associations", "a", nil, "associations to scrape (default: all)")
	cmd.Flags().StringSliceVar(&ages, "ages", nil, "age groups to keep")
	cmd.Flags().StringVarP(&format, "format", "f", string(export.FormatCSV), "output format: table, csv or json")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")
	cmd.Flags().IntVar(&size, "size", 0, "associations scraped concurrently (default batch.size)")
	cmd.Flags().DurationVar(&delay, "delay", 0, "pause between chunks (default batch.delay)")
	cmd.Flags().BoolVar(&noHistory, "no-history", false, "do not record results in the history database")
	return cmd
}

func progressLogger(a *app) func(types.ProgressUpdate) {
	return func(u types.ProgressUpdate) {
		remaining := time.Duration(u.EstimatedRemainingMs) * time.Millisecond
		a.log.Info("[%d/%d] %s: %d teams (about %s left)",
			u.Current, u.Total, u.AssociationName, u.TeamsFound, remaining.Round(time.Second))
	}
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured associations",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(false)
			if err != nil {
				return err
			}
			defer a.Close()
			for _, assoc := range a.cfg.Associations {
				var extras []string
				if len(assoc.Overrides) > 0 {
					extras = append(extras, "overrides")
				}
				if len(assoc.SeedTeams) > 0 {
					extras = append(extras, "seeds")
				}
				if assoc.Probe != nil {
					extras = append(extras, "probe")
				}
				line := assoc.Name + "\t" + assoc.BaseURL
				if len(extras) > 0 {
					line += "\t[" + strings.Join(extras, ", ") + "]"
				}
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			return nil
		},
	}
}
