package scraper

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kareemsasa3/rinkcal/internal/config"
	"github.com/kareemsasa3/rinkcal/internal/discovery"
	"github.com/kareemsasa3/rinkcal/internal/metrics"
	"github.com/kareemsasa3/rinkcal/internal/testutil"
	"github.com/kareemsasa3/rinkcal/internal/types"
)

const (
	anokaBase  = "https://www.anokaareahockey.com"
	chaskaBase = "https://www.cchockey.org"
)

func snapshot() *testutil.Site {
	return testutil.NewSite(map[string]string{
		anokaBase: `<html><body><h1>Anoka Area Hockey</h1>
			<a href="/page/show/9100300-teams">Teams</a></body></html>`,
		anokaBase + "/page/show/9100300-teams": `<html><body><h1>Teams</h1>
			<a href="/page/show/9100345-bantam-a">Bantam A</a>
			<a href="/page/show/9100398-squirt-b1">Squirt B1</a>
			<a href="/page/show/9100400-peewee-b2">Peewee B2</a>
			<a href="/page/show/9100500-bantam-jamboree">Bantam Jamboree Bracket</a>
			<a href="/page/show/8800345-bantam-a-2022-2023">Bantam A 2022-2023</a>
			</body></html>`,
		anokaBase + "/ical_feed?tags=9100345": "BEGIN:VCALENDAR\nBEGIN:VEVENT\nEND:VEVENT\nEND:VCALENDAR\n",
		anokaBase + "/ical_feed?tags=9100398": "BEGIN:VCALENDAR\nBEGIN:VEVENT\nEND:VEVENT\nBEGIN:VEVENT\nEND:VEVENT\nEND:VCALENDAR\n",
		anokaBase + "/ical_feed?tags=9100400": "BEGIN:VCALENDAR\nEND:VCALENDAR\n",

		chaskaBase: `<html><body><h1>Chaska Chanhassen Hockey</h1>
			<a href="/team/142360/calendar">Squirt B1 Gold</a>
			<a href="/registration">Register Now</a></body></html>`,

		"https://www.waconiahockey.com": `<html><body><app-root></app-root>
			<script src="https://cdn.sprocketsports.com/app.js"></script></body></html>`,
	})
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Fetch = testutil.FetchConfig()
	cfg.Batch.Delay = time.Millisecond
	return cfg
}

func fixedClock() time.Time { return time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC) }

func newTestScraper(t *testing.T, site *testutil.Site, opts ...Option) *Scraper {
	t.Helper()
	opts = append([]Option{
		WithFetcher(site.Fetcher()),
		WithClock(fixedClock),
		WithBrowserLaunch(func(context.Context) (discovery.Session, error) {
			return nil, errors.New("no chrome in tests")
		}),
	}, opts...)
	s, err := NewScraper(testConfig(), nil, metrics.NewPrometheusMetrics(), opts...)
	require.NoError(t, err)
	return s
}

func urlsByName(teams []types.ScrapedTeam) map[string]string {
	out := make(map[string]string, len(teams))
	for _, t := range teams {
		out[t.Name] = t.CalendarSyncURL
	}
	return out
}

func TestScrapeAnoka(t *testing.T) {
	s := newTestScraper(t, snapshot())
	teams, err := s.ScrapeAssociation(context.Background(), config.AssociationConfig{Name: "Anoka", BaseURL: anokaBase})
	require.NoError(t, err)

	got := urlsByName(teams)
	assert.Equal(t, "webcal://www.anokaareahockey.com/ical_feed?tags=9100345", got["Bantam A"])
	assert.Equal(t, "webcal://www.anokaareahockey.com/ical_feed?tags=9100398", got["Squirt B1"])
	assert.NotContains(t, got, "Peewee B2", "empty feed is dropped")
	assert.NotContains(t, got, "Bantam Jamboree Bracket")
	assert.NotContains(t, got, "Bantam A 2022-2023")
	require.Len(t, teams, 2)
	assert.Equal(t, types.Bantams, teams[0].TeamLevel, "bantams sort first")
	for _, tm := range teams {
		assert.Equal(t, "Anoka", tm.AssociationName)
		assert.Equal(t, types.SportType, tm.SportType)
	}
}

func TestScrapeChaskaCalendarPage(t *testing.T) {
	s := newTestScraper(t, snapshot())
	teams, err := s.ScrapeAssociation(context.Background(), config.AssociationConfig{Name: "Chaska", BaseURL: chaskaBase})
	require.NoError(t, err)
	require.Len(t, teams, 1)
	assert.Equal(t, "Squirt B1 Gold", teams[0].Name)
	assert.Equal(t, "B1", teams[0].LevelDetail)
	assert.Equal(t, "https://www.cchockey.org/team/142360/calendar", teams[0].CalendarSyncURL)
}

func TestScrapeIsIdempotent(t *testing.T) {
	assoc := config.AssociationConfig{Name: "Anoka", BaseURL: anokaBase}
	first, err := newTestScraper(t, snapshot()).ScrapeAssociation(context.Background(), assoc)
	require.NoError(t, err)
	second, err := newTestScraper(t, snapshot()).ScrapeAssociation(context.Background(), assoc)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestScrapeScopesAgeGroups(t *testing.T) {
	s := newTestScraper(t, snapshot())
	teams, err := s.ScrapeAssociation(context.Background(),
		config.AssociationConfig{Name: "Anoka", BaseURL: anokaBase}, types.Squirts)
	require.NoError(t, err)
	require.Len(t, teams, 1)
	assert.Equal(t, "Squirt B1", teams[0].Name)
}

func TestScrapeUnreachableKeepsSeeds(t *testing.T) {
	s := newTestScraper(t, snapshot())
	assoc := config.AssociationConfig{
		Name:    "Rogers Youth Hockey Association",
		BaseURL: "https://www.rogershockey.com",
		SeedTeams: []types.ScrapedTeam{
			{Name: "Squirt B2 Blue", TeamLevel: types.Squirts, LevelDetail: "B2", CalendarSyncURL: "https://www.rogershockey.com/team/162579/calendar"},
			{Name: "Bantam A", TeamLevel: types.Bantams, LevelDetail: "A", CalendarSyncURL: "https://www.rogershockey.com/team/162500/calendar"},
		},
	}
	teams, err := s.ScrapeAssociation(context.Background(), assoc, types.Squirts)
	require.NoError(t, err)
	require.Len(t, teams, 1)
	assert.Equal(t, "Rogers Youth Hockey Association", teams[0].AssociationName)
	assert.Equal(t, types.SportType, teams[0].SportType)
	assert.Equal(t, "https://www.rogershockey.com/team/162579/calendar", teams[0].CalendarSyncURL)
}

func TestScrapeUnreachableIsEmpty(t *testing.T) {
	s := newTestScraper(t, snapshot())
	teams, err := s.ScrapeAssociation(context.Background(), config.AssociationConfig{Name: "Gone", BaseURL: "https://gone.example.org"})
	assert.NoError(t, err)
	assert.Empty(t, teams)
}

type fakeSession struct{ html string }

func (f *fakeSession) Open(string, time.Duration) error                          { return nil }
func (f *fakeSession) ClickLinkContaining([]string, time.Duration) (bool, error) { return true, nil }
func (f *fakeSession) ClickLinkWithText(string, time.Duration) (bool, error)     { return false, nil }
func (f *fakeSession) HTML() (string, error)                                     { return f.html, nil }
func (f *fakeSession) Close()                                                    {}

func TestScrapeClientRenderedSite(t *testing.T) {
	sess := &fakeSession{html: `<nav>
		<a href="/team/overview?navigationTeamID=31000">Bantam A</a>
		<a href="/team/overview?navigationTeamID=31001">Peewee B1</a>
		<a href="/team/overview?navigationTeamID=31000">Bantam A</a>
	</nav>`}
	s := newTestScraper(t, snapshot(), WithBrowserLaunch(func(context.Context) (discovery.Session, error) {
		return sess, nil
	}))
	assoc := config.AssociationConfig{
		Name:    "Waconia",
		BaseURL: "https://www.waconiahockey.com",
		SeedTeams: []types.ScrapedTeam{
			{Name: "Squirt A", TeamLevel: types.Squirts, LevelDetail: "A", CalendarSyncURL: "webcal://waconiahockey.sprocketsports.com/ical?team=26273"},
		},
	}
	teams, err := s.ScrapeAssociation(context.Background(), assoc)
	require.NoError(t, err)
	got := make([]string, len(teams))
	for i, tm := range teams {
		got[i] = tm.Name + " " + tm.CalendarSyncURL
	}
	assert.Equal(t, []string{
		"Bantam A webcal://waconiahockey.sprocketsports.com/ical?team=31000",
		"Peewee B1 webcal://waconiahockey.sprocketsports.com/ical?team=31001",
		"Squirt A webcal://waconiahockey.sprocketsports.com/ical?team=26273",
	}, got)
}

func TestScrapeClientRenderedWithoutBrowser(t *testing.T) {
	s := newTestScraper(t, snapshot())
	_, err := s.ScrapeAssociation(context.Background(), config.AssociationConfig{Name: "Waconia", BaseURL: "https://www.waconiahockey.com"})
	assert.ErrorIs(t, err, discovery.ErrLaunch)
}

func TestScrapeCanceled(t *testing.T) {
	s := newTestScraper(t, snapshot())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.ScrapeAssociation(ctx, config.AssociationConfig{Name: "Anoka", BaseURL: anokaBase})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunBatch(t *testing.T) {
	s := newTestScraper(t, snapshot())
	assocs := []config.AssociationConfig{
		{Name: "Anoka", BaseURL: anokaBase},
		{Name: "Chaska", BaseURL: chaskaBase},
		{Name: "Gone", BaseURL: "https://gone.example.org"},
	}

	var mu sync.Mutex
	var updates []types.ProgressUpdate
	results, err := s.RunBatch(context.Background(), assocs, BatchOptions{
		Size: 2,
		OnProgress: func(u types.ProgressUpdate) {
			mu.Lock()
			updates = append(updates, u)
			mu.Unlock()
		},
	})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "Anoka", results[0].Name)
	assert.Equal(t, types.StatusOK, results[0].Status)
	assert.Equal(t, 2, results[0].TeamCount)
	assert.Equal(t, types.StatusOK, results[1].Status)
	assert.Equal(t, types.StatusWarning, results[2].Status)

	require.Len(t, updates, 3)
	currents := map[int]bool{}
	for _, u := range updates {
		assert.Equal(t, 3, u.Total)
		currents[u.Current] = true
	}
	assert.Equal(t, map[int]bool{1: true, 2: true, 3: true}, currents)
	assert.Equal(t, "Gone", updates[2].AssociationName, "the last chunk runs alone")

	sum := Summarize(results)
	assert.Equal(t, HealthSummary{OK: 2, Warnings: 1, Teams: 3}, sum)
}

func TestRunBatchRecordsErrors(t *testing.T) {
	s := newTestScraper(t, snapshot())
	results, err := s.RunBatch(context.Background(), []config.AssociationConfig{
		{Name: "Waconia", BaseURL: "https://www.waconiahockey.com"},
		{Name: "Chaska", BaseURL: chaskaBase},
	}, BatchOptions{Size: 1})
	require.NoError(t, err)
	assert.Equal(t, types.StatusError, results[0].Status)
	assert.NotEmpty(t, results[0].Error)
	assert.Equal(t, types.StatusOK, results[1].Status, "one failure does not stop the batch")
}

func TestProgressEstimate(t *testing.T) {
	u := progress(2, 5, types.AssociationResult{Name: "Anoka", TeamCount: 4}, 10*time.Second)
	assert.Equal(t, int64(10000), u.ElapsedMs)
	assert.Equal(t, int64(15000), u.EstimatedRemainingMs)
	assert.Equal(t, 4, u.TeamsFound)

	u = progress(3, 10, types.AssociationResult{}, time.Second)
	assert.Equal(t, int64(2333), u.EstimatedRemainingMs, "multiply before dividing")
}
