package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kareemsasa3/rinkcal/internal/export"
)

func newHealthCmd() *cobra.Command {
	var (
		names  []string
		format string
		strict bool
	)
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Scrape associations once and report which ones return teams",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(true)
			if err != nil {
				return err
			}
			defer a.Close()

			assocs, err := a.selectAssociations(names)
			if err != nil {
				return err
			}
			results, summary, runErr := a.scraper.HealthCheck(cmd.Context(), assocs, progressLogger(a))
			a.record(results)

			if format == formatTable {
				renderResults(cmd.OutOrStdout(), results)
			} else {
				f, err := export.ParseFormat(format)
				if err != nil {
					return err
				}
				if err := export.WriteResults(cmd.OutOrStdout(), f, results); err != nil {
					return err
				}
			}
			if runErr != nil {
				return runErr
			}
			if strict && (summary.Errors > 0 || summary.Warnings > 0) {
				return fmt.Errorf("%d associations with errors, %d with no teams", summary.Errors, summary.Warnings)
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&names, "associations", "a", nil, "associations to check (default: all)")
	cmd.Flags().StringVarP(&format, "format", "f", formatTable, "output format: table, csv or json")
	cmd.Flags().BoolVar(&strict, "strict", false, "exit non-zero when any association warns or fails")
	return cmd
}
