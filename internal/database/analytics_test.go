package database

import (
	"testing"

	"github.com/kareemsasa3/rinkcal/internal/types"
)

func seedAnalytics(t *testing.T, db *DB) {
	t.Helper()
	rows := []types.AssociationResult{
		{Name: "Anoka", BaseURL: "https://www.anokahockey.org/", Status: types.StatusOK, Teams: anokaTeams, DurationMs: 1000},
		{Name: "Anoka", BaseURL: "https://www.anokahockey.org/", Status: types.StatusOK, Teams: anokaTeams[:1], DurationMs: 3000},
		{Name: "Waconia", BaseURL: "https://www.waconiahockey.org/", Status: types.StatusWarning, DurationMs: 2000},
		{Name: "Gone", BaseURL: "https://gone.example/", Status: types.StatusError, Error: "boom", DurationMs: 2000},
	}
	for _, r := range rows {
		if err := db.RecordResult(r); err != nil {
			t.Fatalf("RecordResult(%s): %v", r.Name, err)
		}
	}
}

func TestGetAnalyticsSummary(t *testing.T) {
	db := setupTestDB(t)
	seedAnalytics(t, db)

	s, err := db.GetAnalyticsSummary()
	if err != nil {
		t.Fatalf("GetAnalyticsSummary: %v", err)
	}
	if s.TotalScrapes != 4 || s.OKScrapes != 2 || s.WarningScrapes != 1 || s.FailedScrapes != 1 {
		t.Errorf("Unexpected counts: %+v", s)
	}
	if s.SuccessRate != 75 {
		t.Errorf("Expected success rate 75, got %v", s.SuccessRate)
	}
	if s.AverageDuration != 2 || s.FastestScrape != 1 || s.SlowestScrape != 3 {
		t.Errorf("Unexpected durations: %+v", s)
	}
	if s.AverageTeamCount != 1 {
		t.Errorf("Expected average team count 1, got %v", s.AverageTeamCount)
	}
	if s.UniqueAssociations != 3 || s.AssociationsWithChanges != 1 {
		t.Errorf("Unexpected association counts: %+v", s)
	}
}

func TestGetAnalyticsSummaryEmpty(t *testing.T) {
	db := setupTestDB(t)

	s, err := db.GetAnalyticsSummary()
	if err != nil {
		t.Fatalf("GetAnalyticsSummary: %v", err)
	}
	if s.TotalScrapes != 0 || s.SuccessRate != 0 {
		t.Errorf("Expected zero summary, got %+v", s)
	}
}

func TestGetTimeSeriesData(t *testing.T) {
	db := setupTestDB(t)
	seedAnalytics(t, db)

	points, err := db.GetTimeSeriesData(3)
	if err != nil {
		t.Fatalf("GetTimeSeriesData: %v", err)
	}
	if len(points) != 3 {
		t.Fatalf("Expected 3 days, got %d", len(points))
	}
	if points[0].Date != "2026-10-17" || points[2].Date != "2026-10-19" {
		t.Errorf("Unexpected date range %s..%s", points[0].Date, points[2].Date)
	}
	if points[0].ScrapesCount != 0 {
		t.Errorf("Expected an empty first day, got %+v", points[0])
	}
	today := points[2]
	if today.ScrapesCount != 4 || today.SuccessRate != 75 || today.TeamsFound != 3 {
		t.Errorf("Unexpected today point: %+v", today)
	}
}

func TestGetAssociationStats(t *testing.T) {
	db := setupTestDB(t)
	seedAnalytics(t, db)

	stats, err := db.GetAssociationStats(10)
	if err != nil {
		t.Fatalf("GetAssociationStats: %v", err)
	}
	if len(stats) != 3 {
		t.Fatalf("Expected 3 associations, got %d", len(stats))
	}
	anoka := stats[0]
	if anoka.Association != "Anoka" || anoka.ScrapesCount != 2 || anoka.LatestTeams != 1 || anoka.ChangeCount != 1 {
		t.Errorf("Unexpected Anoka stats: %+v", anoka)
	}
	if anoka.Domain != "anokahockey.org" || anoka.AvgDuration != 2 {
		t.Errorf("Unexpected Anoka domain/duration: %+v", anoka)
	}
	if stats[1].Association != "Gone" || stats[1].SuccessRate != 0 {
		t.Errorf("Unexpected second row: %+v", stats[1])
	}
}

func TestGetRecentScrapes(t *testing.T) {
	db := setupTestDB(t)
	seedAnalytics(t, db)

	recent, err := db.GetRecentScrapes(2)
	if err != nil {
		t.Fatalf("GetRecentScrapes: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(recent))
	}
	if recent[0].Association != "Gone" || recent[0].Status != "ERROR" || recent[0].Error != "boom" {
		t.Errorf("Unexpected newest scrape: %+v", recent[0])
	}
	if recent[1].Association != "Waconia" || recent[1].Status != "WARNING" {
		t.Errorf("Unexpected second scrape: %+v", recent[1])
	}
}
