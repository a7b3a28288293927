package api

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kareemsasa3/rinkcal/internal/database"
	"github.com/kareemsasa3/rinkcal/internal/types"
)

func seedHistory(t *testing.T, db *database.DB) (first, second *database.Snapshot) {
	t.Helper()
	first = &database.Snapshot{Association: "Anoka", BaseURL: "https://www.anokaareahockey.com", Teams: anokaTeams[:1]}
	require.NoError(t, db.SaveSnapshot(first))
	second = &database.Snapshot{Association: "Anoka", BaseURL: "https://www.anokaareahockey.com", Teams: anokaTeams}
	require.NoError(t, db.SaveSnapshot(second))
	require.NoError(t, db.SaveFailedScrape("Chaska", "https://www.cchockey.org", "launch browser: no chrome", 5))
	return first, second
}

func TestHistoryUnavailableWithoutDatabase(t *testing.T) {
	hs := newHarness(t, "", false)

	for _, path := range []string{"/api/history", "/api/history/diff?association=Anoka", "/api/history/1", "/api/analytics/summary", "/admin/stats"} {
		assert.Equal(t, http.StatusServiceUnavailable, hs.do(t, http.MethodGet, path, "", "").StatusCode, path)
	}
}

func TestHistoryForAssociation(t *testing.T) {
	hs := newHarness(t, "", true)
	first, second := seedHistory(t, hs.db)

	resp := hs.do(t, http.MethodGet, "/api/history?association=anoka", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var entries []HistoryEntryResponse
	decode(t, resp, &entries)
	require.Len(t, entries, 2)
	assert.Equal(t, second.ID, entries[0].ID)
	assert.True(t, entries[0].HasChanges)
	assert.Equal(t, first.ContentHash, entries[0].PreviousHash)
	assert.Equal(t, 2, entries[0].TeamCount)
	assert.Equal(t, first.ID, entries[1].ID)
}

func TestHistoryRecentPage(t *testing.T) {
	hs := newHarness(t, "", true)
	seedHistory(t, hs.db)

	var page HistoryListResponse
	decode(t, hs.do(t, http.MethodGet, "/api/history?limit=2", "", ""), &page)
	assert.Equal(t, 3, page.Total)
	require.Len(t, page.Entries, 2)
	assert.Equal(t, "Chaska", page.Entries[0].Association)
	assert.Equal(t, "ERROR", page.Entries[0].Status)
	assert.Equal(t, "launch browser: no chrome", page.Entries[0].Error)
}

func TestHistoryVersion(t *testing.T) {
	hs := newHarness(t, "", true)
	_, second := seedHistory(t, hs.db)

	resp := hs.do(t, http.MethodGet, "/api/history/"+second.ID, "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var v VersionResponse
	decode(t, resp, &v)
	assert.Equal(t, second.ID, v.ID)
	assert.Equal(t, "https://www.anokaareahockey.com", v.BaseURL)
	require.Len(t, v.Teams, 2)
	assert.Equal(t, "Squirt B1", v.Teams[1].Name)

	assert.Equal(t, http.StatusNotFound, hs.do(t, http.MethodGet, "/api/history/999", "", "").StatusCode)
}

func TestHistoryDiffLatestTwo(t *testing.T) {
	hs := newHarness(t, "", true)
	first, second := seedHistory(t, hs.db)

	resp := hs.do(t, http.MethodGet, "/api/history/diff?association=Anoka", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var d DiffResponse
	decode(t, resp, &d)
	assert.Equal(t, first.ID, d.FromID)
	assert.Equal(t, second.ID, d.ToID)
	assert.Empty(t, d.Removed)
	require.Len(t, d.Added, 1)
	assert.Contains(t, d.Added[0], "Squirt B1")
	assert.Contains(t, d.Patch, "@@")
}

func TestHistoryDiffByID(t *testing.T) {
	hs := newHarness(t, "", true)
	first, second := seedHistory(t, hs.db)

	var d DiffResponse
	path := fmt.Sprintf("/api/history/diff?from=%s&to=%s", second.ID, first.ID)
	decode(t, hs.do(t, http.MethodGet, path, "", ""), &d)
	assert.Empty(t, d.Added)
	require.Len(t, d.Removed, 1)
	assert.Contains(t, d.Removed[0], "Squirt B1")
}

func TestHistoryDiffErrors(t *testing.T) {
	hs := newHarness(t, "", true)
	first, _ := seedHistory(t, hs.db)
	failed, err := hs.db.GetHistory("Chaska", 1)
	require.NoError(t, err)
	require.Len(t, failed, 1)

	cases := map[string]int{
		"/api/history/diff":                                          http.StatusBadRequest,
		"/api/history/diff?association=Chaska":                       http.StatusNotFound,
		"/api/history/diff?from=" + first.ID + "&to=999":             http.StatusNotFound,
		"/api/history/diff?from=" + first.ID + "&to=" + failed[0].ID: http.StatusBadRequest,
	}
	for path, want := range cases {
		assert.Equal(t, want, hs.do(t, http.MethodGet, path, "", "").StatusCode, path)
	}
}

func TestDeleteSnapshot(t *testing.T) {
	hs := newHarness(t, "", true)
	first, _ := seedHistory(t, hs.db)

	assert.Equal(t, http.StatusNoContent, hs.do(t, http.MethodDelete, "/admin/history/"+first.ID, "", "").StatusCode)
	assert.Equal(t, http.StatusNotFound, hs.do(t, http.MethodDelete, "/admin/history/"+first.ID, "", "").StatusCode)
}

func TestAnalyticsEndpoints(t *testing.T) {
	hs := newHarness(t, "", true)
	seedHistory(t, hs.db)

	var summary database.AnalyticsSummary
	decode(t, hs.do(t, http.MethodGet, "/api/analytics/summary", "", ""), &summary)
	assert.Equal(t, 3, summary.TotalScrapes)
	assert.Equal(t, 1, summary.FailedScrapes)
	assert.Equal(t, 2, summary.UniqueAssociations)

	var stats []database.AssociationStats
	decode(t, hs.do(t, http.MethodGet, "/api/analytics/associations?limit=5", "", ""), &stats)
	require.Len(t, stats, 2)
	assert.Equal(t, "Anoka", stats[0].Association)

	var recent []database.RecentScrape
	decode(t, hs.do(t, http.MethodGet, "/api/analytics/recent?limit=1", "", ""), &recent)
	require.Len(t, recent, 1)
	assert.Equal(t, string(types.StatusError), recent[0].Status)

	var series []database.TimeSeriesDataPoint
	decode(t, hs.do(t, http.MethodGet, "/api/analytics/timeseries?days=7", "", ""), &series)
	assert.Len(t, series, 7)

	var dbStats map[string]interface{}
	decode(t, hs.do(t, http.MethodGet, "/admin/stats", "", ""), &dbStats)
	assert.EqualValues(t, 3, dbStats["total_snapshots"])
}
