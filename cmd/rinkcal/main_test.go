package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kareemsasa3/rinkcal/internal/types"
	"github.com/kareemsasa3/rinkcal/internal/verify"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cfgFile, debug = "", false
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestParseAges(t *testing.T) {
	ages, err := parseAges([]string{"bantams,Squirts", " 12u "})
	require.NoError(t, err)
	assert.Equal(t, []types.AgeGroup{types.Bantams, types.Squirts, types.U12}, ages)

	_, err = parseAges([]string{"Juniors"})
	assert.Error(t, err)
}

func TestListCommand(t *testing.T) {
	out, err := runCLI(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Chaska\thttps://www.cchockey.org")
	assert.Contains(t, out, "Rogers Youth Hockey Association\thttps://www.rogershockey.com\t[overrides, seeds, probe]")
}

func TestScrapeUnknownAssociation(t *testing.T) {
	_, err := runCLI(t, "scrape", "Duluth East", "--no-history")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown association "Duluth East"`)
}

func TestHistoryNeedsDatabase(t *testing.T) {
	t.Setenv("RINKCAL_DATABASE_PATH", "")
	_, err := runCLI(t, "history", "Chaska")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.path")
}

func TestRenderTeams(t *testing.T) {
	var buf bytes.Buffer
	renderTeams(&buf, []types.ScrapedTeam{{
		AssociationName: "Chaska",
		Name:            "Squirt B1 Gold",
		TeamLevel:       types.Squirts,
		LevelDetail:     "B1",
		CalendarSyncURL: "https://www.cchockey.org/team/142360/calendar",
	}})
	out := buf.String()
	assert.Contains(t, out, "Squirt B1 Gold")
	assert.Contains(t, out, "https://www.cchockey.org/team/142360/calendar")
	assert.True(t, strings.Contains(out, "TOTAL") || strings.Contains(out, "Total"))
}

func TestWriteTeamsRejectsUnknownFormat(t *testing.T) {
	assert.Error(t, writeTeams(&bytes.Buffer{}, "xml", nil))
}

func TestVerifyNeedsCalendarURLs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "teams.csv")
	require.NoError(t, os.WriteFile(path, []byte("association_name,name,calendar_sync_url\nChaska,Squirt B1 Gold,\n"), 0o644))

	_, err := runCLI(t, "verify", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no teams with calendar URLs")

	_, err = runCLI(t, "verify", filepath.Join(t.TempDir(), "missing.csv"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open team list")

	_, err = runCLI(t, "verify", path, "--format", "csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown format")
}

func TestRenderVerify(t *testing.T) {
	var buf bytes.Buffer
	renderVerify(&buf, []verify.Result{
		{Association: "Blaine", Team: "Bantam A", AgeGroup: types.Bantams, Status: verify.StatusValid, TotalEvents: 31, FutureEvents: 12},
		{Association: "Waconia", Team: "Squirt A", AgeGroup: types.Squirts, Status: verify.StatusValid, TotalEvents: -1, FutureEvents: -1,
			Note: "client-rendered page, events not counted"},
	}, verify.Summary{Valid: 2, Total: 2})

	out := buf.String()
	assert.Contains(t, out, "12/31")
	assert.Contains(t, out, "?")
	assert.Contains(t, strings.ToLower(out), "2 valid / 0 empty / 0 err", "footers are upper-cased by the style")
}

func TestRulesCommand(t *testing.T) {
	out, err := runCLI(t, "rules")
	require.NoError(t, err)
	assert.Contains(t, out, "name:tournament")
	assert.Contains(t, out, "url:generic-schedule")
	assert.Contains(t, out, "/team/")

	out, err = runCLI(t, "rules", "--name", "Bantam Tournament", "--url", "https://www.byha.org/page/show/1")
	require.NoError(t, err)
	assert.Equal(t, "reject (name:tournament)\n", out)

	out, err = runCLI(t, "rules", "--name", "Bantam A", "--url", "https://www.byha.org/page/show/9236045")
	require.NoError(t, err)
	assert.Equal(t, "keep\n", out)
}
