package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kareemsasa3/rinkcal/internal/config"
	"github.com/kareemsasa3/rinkcal/internal/database"
	"github.com/kareemsasa3/rinkcal/internal/logger"
	"github.com/kareemsasa3/rinkcal/internal/metrics"
	"github.com/kareemsasa3/rinkcal/internal/scraper"
	"github.com/kareemsasa3/rinkcal/internal/storage"
	"github.com/kareemsasa3/rinkcal/internal/types"
)

type fakeRunner struct {
	mu      sync.Mutex
	ages    []types.AgeGroup
	names   []string
	resets  int
	block   bool
	results map[string]types.AssociationResult
}

func (f *fakeRunner) RunBatch(ctx context.Context, assocs []config.AssociationConfig, opts scraper.BatchOptions) ([]types.AssociationResult, error) {
	f.mu.Lock()
	f.ages = opts.Ages
	f.names = nil
	for _, a := range assocs {
		f.names = append(f.names, a.Name)
	}
	f.mu.Unlock()

	if f.block {
		<-ctx.Done()
		return make([]types.AssociationResult, len(assocs)), ctx.Err()
	}

	out := make([]types.AssociationResult, len(assocs))
	for i, a := range assocs {
		row, ok := f.results[a.Name]
		if !ok {
			row = types.AssociationResult{Name: a.Name, BaseURL: a.BaseURL, Status: types.StatusWarning}
		}
		out[i] = row
		if opts.OnProgress != nil {
			opts.OnProgress(types.ProgressUpdate{Current: i + 1, Total: len(assocs), AssociationName: a.Name, TeamsFound: row.TeamCount})
		}
	}
	return out, nil
}

func (f *fakeRunner) ResetCache() {
	f.mu.Lock()
	f.resets++
	f.mu.Unlock()
}

var anokaTeams = []types.ScrapedTeam{
	{AssociationName: "Anoka", Name: "Bantam A", SportType: "hockey", TeamLevel: "Bantams", LevelDetail: "A",
		CalendarSyncURL: "webcal://www.anokaareahockey.com/ical_feed?tags=9100345"},
	{AssociationName: "Anoka", Name: "Squirt B1", SportType: "hockey", TeamLevel: "Squirts", LevelDetail: "B1",
		CalendarSyncURL: "webcal://www.anokaareahockey.com/ical_feed?tags=9100398"},
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Associations = []config.AssociationConfig{
		{Name: "Anoka", BaseURL: "https://www.anokaareahockey.com"},
		{Name: "Chaska", BaseURL: "https://www.cchockey.org"},
	}
	return cfg
}

type harness struct {
	handler *APIHandler
	runner  *fakeRunner
	db      *database.DB
	server  *httptest.Server
}

func newHarness(t *testing.T, token string, withDB bool) *harness {
	t.Helper()
	cfg := testConfig()
	cfg.API.Token = token

	var db *database.DB
	if withDB {
		var err error
		db, err = database.Initialize(filepath.Join(t.TempDir(), "history.db"), logger.NewNop())
		require.NoError(t, err)
		t.Cleanup(func() { db.Close() })
	}

	runner := &fakeRunner{results: map[string]types.AssociationResult{
		"Anoka": {Name: "Anoka", BaseURL: "https://www.anokaareahockey.com", Status: types.StatusOK, Teams: anokaTeams, TeamCount: 2, DurationMs: 40},
	}}
	h := NewAPIHandler(runner, cfg, storage.NewInMemoryStorage(), db, metrics.NewPrometheusMetrics(), logger.NewNop())
	srv := httptest.NewServer(NewRouter(h))
	t.Cleanup(func() {
		srv.Close()
		h.Shutdown()
	})
	return &harness{handler: h, runner: runner, db: db, server: srv}
}

func (hs *harness) do(t *testing.T, method, path, body, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, hs.server.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestHealthIsPublic(t *testing.T) {
	hs := newHarness(t, "secret", false)

	resp := hs.do(t, http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	decode(t, resp, &body)
	assert.Equal(t, "healthy", body["status"])
	assert.EqualValues(t, 2, body["associations"])
	assert.Equal(t, false, body["history"])
}

func TestBearerTokenRequired(t *testing.T) {
	hs := newHarness(t, "secret", false)

	assert.Equal(t, http.StatusUnauthorized, hs.do(t, http.MethodGet, "/scrape/status?id=x", "", "").StatusCode)
	assert.Equal(t, http.StatusUnauthorized, hs.do(t, http.MethodGet, "/scrape/status?id=x", "", "wrong").StatusCode)
	assert.Equal(t, http.StatusNotFound, hs.do(t, http.MethodGet, "/scrape/status?id=x", "", "secret").StatusCode)
}

func TestScrapeJobLifecycle(t *testing.T) {
	hs := newHarness(t, "", true)

	resp := hs.do(t, http.MethodPost, "/scrape", `{"associations":["anoka","Chaska"],"ages":["bantams"]}`, "")
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	var accepted ScrapeResponse
	decode(t, resp, &accepted)
	assert.NotEmpty(t, accepted.JobID)
	assert.Equal(t, 2, accepted.Total)

	hs.handler.Wait()
	assert.Equal(t, []types.AgeGroup{types.Bantams}, hs.runner.ages)
	assert.Equal(t, []string{"Anoka", "Chaska"}, hs.runner.names)

	resp = hs.do(t, http.MethodGet, "/scrape/status?id="+accepted.JobID, "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var status JobStatusResponse
	decode(t, resp, &status)
	require.NotNil(t, status.Job)
	assert.Equal(t, storage.JobCompleted, status.Job.Status)
	assert.Equal(t, 2, status.Job.Progress.Current)
	assert.Equal(t, "Chaska", status.Job.Progress.AssociationName)
	require.Len(t, status.Job.Results, 2)
	require.NotNil(t, status.Summary)
	assert.Equal(t, scraper.HealthSummary{OK: 1, Warnings: 1, Teams: 2}, *status.Summary)

	latest, err := hs.db.GetLatestSnapshot("Anoka")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, 2, latest.TeamCount)
}

func TestScrapeWholeRegistryByDefault(t *testing.T) {
	hs := newHarness(t, "", false)

	resp := hs.do(t, http.MethodPost, "/scrape", "", "")
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	hs.handler.Wait()
	assert.Equal(t, []string{"Anoka", "Chaska"}, hs.runner.names)
}

func TestScrapeRejectsBadInput(t *testing.T) {
	hs := newHarness(t, "", false)

	assert.Equal(t, http.StatusBadRequest, hs.do(t, http.MethodPost, "/scrape", `{"associations":["Duluth"]}`, "").StatusCode)
	assert.Equal(t, http.StatusBadRequest, hs.do(t, http.MethodPost, "/scrape", `{"ages":["Juniors"]}`, "").StatusCode)
	assert.Equal(t, http.StatusBadRequest, hs.do(t, http.MethodPost, "/scrape", `{not json`, "").StatusCode)
	assert.Equal(t, http.StatusBadRequest, hs.do(t, http.MethodGet, "/scrape/status", "", "").StatusCode)
}

func TestShutdownMarksRunningJobFailed(t *testing.T) {
	hs := newHarness(t, "", false)
	hs.runner.block = true

	resp := hs.do(t, http.MethodPost, "/scrape", `{"associations":["Anoka"]}`, "")
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	var accepted ScrapeResponse
	decode(t, resp, &accepted)

	hs.handler.Shutdown()

	job, err := hs.handler.storage.GetJob(context.Background(), accepted.JobID)
	require.NoError(t, err)
	assert.Equal(t, storage.JobFailed, job.Status)
	assert.Contains(t, job.Error, "context canceled")
	assert.NotNil(t, job.CompletedAt)
}

func TestListJobs(t *testing.T) {
	hs := newHarness(t, "", false)

	hs.do(t, http.MethodPost, "/scrape", `{"associations":["Anoka"]}`, "")
	hs.handler.Wait()

	var ids []string
	decode(t, hs.do(t, http.MethodGet, "/scrape/jobs", "", ""), &ids)
	assert.Len(t, ids, 1)

	var jobs []*storage.Job
	decode(t, hs.do(t, http.MethodGet, "/scrape/jobs?status=completed", "", ""), &jobs)
	require.Len(t, jobs, 1)
	assert.Equal(t, ids[0], jobs[0].ID)
}

func TestResetCache(t *testing.T) {
	hs := newHarness(t, "", false)

	resp := hs.do(t, http.MethodPost, "/admin/cache/reset", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	hs.runner.mu.Lock()
	defer hs.runner.mu.Unlock()
	assert.Equal(t, 1, hs.runner.resets)
}

func TestPrometheusEndpoint(t *testing.T) {
	hs := newHarness(t, "secret", false)

	hs.do(t, http.MethodGet, "/health", "", "")
	resp := hs.do(t, http.MethodGet, "/prometheus", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `rinkcal_http_requests_total{endpoint="/health",method="GET",status_code="200"}`)
}

func TestCORSPreflight(t *testing.T) {
	hs := newHarness(t, "secret", false)

	req, err := http.NewRequest(http.MethodOptions, hs.server.URL+"/scrape", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}
