package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/kareemsasa3/rinkcal/internal/database"
	"github.com/kareemsasa3/rinkcal/internal/export"
	"github.com/kareemsasa3/rinkcal/internal/scraper"
	"github.com/kareemsasa3/rinkcal/internal/types"
)

const formatTable = "table"

// openOutput returns stdout or the named file.
func openOutput(path string) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create %s: %w", path, err)
	}
	return f, f.Close, nil
}

func writeTeams(w io.Writer, format string, teams []types.ScrapedTeam) error {
	if strings.EqualFold(format, formatTable) {
		renderTeams(w, teams)
		return nil
	}
	f, err := export.ParseFormat(format)
	if err != nil {
		return err
	}
	return export.WriteTeams(w, f, teams)
}

func renderTeams(w io.Writer, teams []types.ScrapedTeam) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Association", "Level", "Detail", "Team", "Calendar"})
	for _, team := range teams {
		t.AppendRow(table.Row{team.AssociationName, team.TeamLevel, team.LevelDetail, team.Name, team.CalendarSyncURL})
	}
	t.AppendFooter(table.Row{"", "", "", "Total", len(teams)})
	t.Render()
}

func renderResults(w io.Writer, results []types.AssociationResult) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Association", "Status", "Teams", "Duration", "Error"})
	for _, r := range results {
		if r.Name == "" {
			continue
		}
		t.AppendRow(table.Row{
			r.Name,
			statusColor(r.Status).Sprint(r.Status),
			r.TeamCount,
			(time.Duration(r.DurationMs) * time.Millisecond).String(),
			r.Error,
		})
	}
	s := scraper.Summarize(results)
	t.AppendFooter(table.Row{
		"Summary",
		fmt.Sprintf("%d ok / %d warn / %d err", s.OK, s.Warnings, s.Errors),
		s.Teams,
		"",
		"",
	})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 5, WidthMax: 60},
	})
	t.Render()
}

func statusColor(s types.AssociationStatus) text.Colors {
	switch s {
	case types.StatusOK:
		return text.Colors{text.FgGreen}
	case types.StatusWarning:
		return text.Colors{text.FgYellow}
	}
	return text.Colors{text.FgRed}
}

func renderHistory(w io.Writer, history []*database.Snapshot) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"ID", "Scraped", "Last checked", "Status", "Teams", "Changed", "Hash"})
	for _, s := range history {
		hash := s.ContentHash
		if len(hash) > 8 {
			hash = hash[:8]
		}
		changed := ""
		if s.HasChanges {
			changed = "yes"
		}
		t.AppendRow(table.Row{
			s.ID,
			s.ScrapedAt.Local().Format("2006-01-02 15:04"),
			s.LastCheckedAt.Local().Format("2006-01-02 15:04"),
			s.Status,
			s.TeamCount,
			changed,
			hash,
		})
	}
	t.Render()
}
