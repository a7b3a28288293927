// Package export writes team lists and batch results as flat CSV or JSON rows.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/kareemsasa3/rinkcal/internal/types"
)

// Format selects an output encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// ParseFormat accepts "csv" or "json" in any case.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatCSV:
		return FormatCSV, nil
	case FormatJSON:
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unknown export format %q (want csv or json)", s)
}

// TeamColumns is the CSV header for team rows.
var TeamColumns = []string{
	"association_name",
	"name",
	"sport_type",
	"team_level",
	"level_detail",
	"calendar_sync_url",
}

// ResultColumns is the CSV header for batch result rows.
var ResultColumns = []string{"name", "base_url", "status", "team_count", "duration_ms", "error"}

// WriteTeams encodes teams in the given format.
func WriteTeams(w io.Writer, format Format, teams []types.ScrapedTeam) error {
	switch format {
	case FormatCSV:
		return WriteTeamsCSV(w, teams)
	case FormatJSON:
		return writeJSON(w, nonNilTeams(teams))
	}
	return fmt.Errorf("unknown export format %q", format)
}

// WriteTeamsCSV writes a header row then one row per team.
func WriteTeamsCSV(w io.Writer, teams []types.ScrapedTeam) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(TeamColumns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, t := range teams {
		row := []string{t.AssociationName, t.Name, t.SportType, string(t.TeamLevel), t.LevelDetail, t.CalendarSyncURL}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row for %s: %w", t.Name, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteResults encodes batch rows. CSV drops the per-team detail; JSON keeps it.
func WriteResults(w io.Writer, format Format, results []types.AssociationResult) error {
	switch format {
	case FormatCSV:
		cw := csv.NewWriter(w)
		if err := cw.Write(ResultColumns); err != nil {
			return fmt.Errorf("write csv header: %w", err)
		}
		for _, r := range results {
			row := []string{
				r.Name,
				r.BaseURL,
				string(r.Status),
				strconv.Itoa(r.TeamCount),
				strconv.FormatInt(r.DurationMs, 10),
				r.Error,
			}
			if err := cw.Write(row); err != nil {
				return fmt.Errorf("write csv row for %s: %w", r.Name, err)
			}
		}
		cw.Flush()
		return cw.Error()
	case FormatJSON:
		if results == nil {
			results = []types.AssociationResult{}
		}
		return writeJSON(w, results)
	}
	return fmt.Errorf("unknown export format %q", format)
}

// columnAliases maps header names, including older master-list headers, onto
// TeamColumns.
var columnAliases = map[string]string{
	"association":  "association_name",
	"team_name":    "name",
	"age_group":    "team_level",
	"calendar_url": "calendar_sync_url",
}

// ReadTeamsCSV parses team rows with a header line. Headers are matched
// case-insensitively with spaces read as underscores; association_name and
// calendar_sync_url are required, other columns may be missing.
func ReadTeamsCSV(r io.Reader) ([]types.ScrapedTeam, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("read csv: empty input")
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.Join(strings.Fields(strings.ToLower(strings.TrimPrefix(h, "\ufeff"))), "_")
		if alias, ok := columnAliases[key]; ok {
			key = alias
		}
		if _, dup := idx[key]; !dup {
			idx[key] = i
		}
	}
	for _, required := range []string{"association_name", "calendar_sync_url"} {
		if _, ok := idx[required]; !ok {
			return nil, fmt.Errorf("read csv: missing %s column", required)
		}
	}

	field := func(rec []string, col string) string {
		i, ok := idx[col]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var teams []types.ScrapedTeam
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv line %d: %w", line, err)
		}
		t := types.ScrapedTeam{
			AssociationName: field(rec, "association_name"),
			Name:            field(rec, "name"),
			SportType:       field(rec, "sport_type"),
			TeamLevel:       types.AgeGroup(field(rec, "team_level")),
			LevelDetail:     field(rec, "level_detail"),
			CalendarSyncURL: field(rec, "calendar_sync_url"),
		}
		if g, err := types.ParseAgeGroup(string(t.TeamLevel)); err == nil {
			t.TeamLevel = g
		}
		if t.AssociationName == "" && t.Name == "" && t.CalendarSyncURL == "" {
			continue
		}
		teams = append(teams, t)
	}
	return teams, nil
}

// Teams flattens the team lists of batch rows, in row order.
func Teams(results []types.AssociationResult) []types.ScrapedTeam {
	var out []types.ScrapedTeam
	for _, r := range results {
		out = append(out, r.Teams...)
	}
	return out
}

func nonNilTeams(teams []types.ScrapedTeam) []types.ScrapedTeam {
	if teams == nil {
		return []types.ScrapedTeam{}
	}
	return teams
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}
