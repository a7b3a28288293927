package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/kareemsasa3/rinkcal/internal/export"
	"github.com/kareemsasa3/rinkcal/internal/verify"
)

func newVerifyCmd() *cobra.Command {
	var (
		fraction float64
		limit    int
		all      bool
		seed     int64
		format   string
	)
	cmd := &cobra.Command{
		Use:   "verify <teams.csv>",
		Short: "Spot-check the calendar feeds of an exported team list",
		Example: `  rinkcal verify teams.csv
  rinkcal verify teams.csv --all --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !strings.EqualFold(format, formatTable) && !strings.EqualFold(format, string(export.FormatJSON)) {
				return fmt.Errorf("unknown format %q (want table or json)", format)
			}
			a, err := newApp(false)
			if err != nil {
				return err
			}
			defer a.Close()

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open team list: %w", err)
			}
			teams, err := export.ReadTeamsCSV(f)
			f.Close()
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			teams = verify.Eligible(teams)
			if len(teams) == 0 {
				return fmt.Errorf("%s: no teams with calendar URLs", args[0])
			}

			sample := teams
			if !all {
				if seed == 0 {
					seed = time.Now().UnixNano()
				}
				sample = verify.Sample(teams, fraction, limit, rand.New(rand.NewSource(seed)))
			}
			a.log.Info("Verifying %d of %d calendars", len(sample), len(teams))

			v := a.newVerifier()
			results, summary, runErr := v.Run(cmd.Context(), sample, func(i, total int, r verify.Result) {
				a.log.Info("[%d/%d] %s / %s: %s", i, total, r.Association, r.Team, r.Status)
			})

			out := cmd.OutOrStdout()
			if strings.EqualFold(format, formatTable) {
				renderVerify(out, results, summary)
			} else {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(struct {
					Summary verify.Summary  `json:"summary"`
					Results []verify.Result `json:"results"`
				}{summary, results}); err != nil {
					return fmt.Errorf("encode json: %w", err)
				}
			}
			return runErr
		},
	}
	cmd.Flags().Float64Var(&fraction, "sample", 0.05, "fraction of teams to check (at least one per association)")
	cmd.Flags().IntVar(&limit, "max", 50, "upper bound on sampled teams beyond the one-per-association picks")
	cmd.Flags().BoolVar(&all, "all", false, "check every team instead of a sample")
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed for sampling (default: time based)")
	cmd.Flags().StringVarP(&format, "format", "f", formatTable, "output format: table or json")
	return cmd
}

func renderVerify(w io.Writer, results []verify.Result, s verify.Summary) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Association", "Team", "Level", "Status", "Events", "Note"})
	for _, r := range results {
		events := "?"
		if r.TotalEvents >= 0 {
			events = fmt.Sprintf("%d/%d", r.FutureEvents, r.TotalEvents)
		}
		t.AppendRow(table.Row{r.Association, r.Team, r.AgeGroup, verifyColor(r.Status).Sprint(r.Status), events, r.Note})
	}
	t.AppendFooter(table.Row{"Summary", "", "",
		fmt.Sprintf("%d valid / %d empty / %d err", s.Valid, s.Empty, s.Errors), s.Total, ""})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 6, WidthMax: 60},
	})
	t.Render()
}

func verifyColor(s verify.Status) text.Colors {
	switch s {
	case verify.StatusValid:
		return text.Colors{text.FgGreen}
	case verify.StatusEmpty:
		return text.Colors{text.FgYellow}
	}
	return text.Colors{text.FgRed}
}
