package database

import (
	"database/sql"
	"time"
)

// AnalyticsSummary captures high-level scrape metrics across associations.
type AnalyticsSummary struct {
	TotalScrapes            int     `json:"total_scrapes"`
	OKScrapes               int     `json:"ok_scrapes"`
	WarningScrapes          int     `json:"warning_scrapes"`
	FailedScrapes           int     `json:"failed_scrapes"`
	SuccessRate             float64 `json:"success_rate"`
	AverageDuration         float64 `json:"average_duration_seconds"`
	FastestScrape           float64 `json:"fastest_scrape_seconds"`
	SlowestScrape           float64 `json:"slowest_scrape_seconds"`
	AverageTeamCount        float64 `json:"average_team_count"`
	UniqueAssociations      int     `json:"unique_associations"`
	AssociationsWithChanges int     `json:"associations_with_changes"`
}

// TimeSeriesDataPoint represents aggregated metrics per day.
type TimeSeriesDataPoint struct {
	Date         string  `json:"date"`
	ScrapesCount int     `json:"scrapes_count"`
	SuccessRate  float64 `json:"success_rate"`
	AvgDuration  float64 `json:"avg_duration_seconds"`
	TeamsFound   int     `json:"teams_found"`
}

// AssociationStats contains aggregated metrics per association.
type AssociationStats struct {
	Association  string  `json:"association"`
	Domain       string  `json:"domain"`
	ScrapesCount int     `json:"scrapes_count"`
	SuccessRate  float64 `json:"success_rate"`
	AvgDuration  float64 `json:"avg_duration_seconds"`
	LatestTeams  int     `json:"latest_team_count"`
	ChangeCount  int     `json:"change_count"`
}

// RecentScrape represents a recent scrape attempt.
type RecentScrape struct {
	Association string    `json:"association"`
	Status      string    `json:"status"`
	Duration    float64   `json:"duration_seconds"`
	TeamCount   int       `json:"team_count"`
	CompletedAt time.Time `json:"completed_at"`
	Error       string    `json:"error,omitempty"`
}

// GetAnalyticsSummary returns high-level metrics computed from team_history.
// A WARNING row still counts as a successful scrape.
func (db *DB) GetAnalyticsSummary() (*AnalyticsSummary, error) {
	query := `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN scrape_status = 'OK' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN scrape_status = 'WARNING' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN scrape_status = 'ERROR' THEN 1 ELSE 0 END), 0),
			COALESCE(AVG(duration_ms), 0) / 1000.0,
			COALESCE(MIN(duration_ms), 0) / 1000.0,
			COALESCE(MAX(duration_ms), 0) / 1000.0,
			COALESCE(AVG(CASE WHEN scrape_status != 'ERROR' THEN team_count END), 0),
			COUNT(DISTINCT association),
			COUNT(DISTINCT CASE WHEN has_changes = 1 THEN association END)
		FROM team_history
	`

	var summary AnalyticsSummary
	if err := db.conn.QueryRow(query).Scan(
		&summary.TotalScrapes,
		&summary.OKScrapes,
		&summary.WarningScrapes,
		&summary.FailedScrapes,
		&summary.AverageDuration,
		&summary.FastestScrape,
		&summary.SlowestScrape,
		&summary.AverageTeamCount,
		&summary.UniqueAssociations,
		&summary.AssociationsWithChanges,
	); err != nil {
		return nil, err
	}

	if summary.TotalScrapes > 0 {
		ok := summary.OKScrapes + summary.WarningScrapes
		summary.SuccessRate = float64(ok) / float64(summary.TotalScrapes) * 100
	}

	return &summary, nil
}

// GetTimeSeriesData returns daily aggregated metrics for the last N days,
// ending today, with empty days filled in.
func (db *DB) GetTimeSeriesData(days int) ([]TimeSeriesDataPoint, error) {
	if days <= 0 {
		days = 7
	}
	today := db.now().Format("2006-01-02")
	query := `
		WITH RECURSIVE dates(date) AS (
			SELECT DATE(?)
			UNION ALL
			SELECT DATE(date, '-1 day')
			FROM dates
			LIMIT ?
		),
		daily AS (
			SELECT
				SUBSTR(scraped_at, 1, 10) AS date,
				COUNT(*) AS total,
				SUM(CASE WHEN scrape_status != 'ERROR' THEN 1 ELSE 0 END) AS successes,
				AVG(duration_ms) AS avg_ms,
				SUM(team_count) AS teams
			FROM team_history
			GROUP BY SUBSTR(scraped_at, 1, 10)
		)
		SELECT
			d.date,
			COALESCE(a.total, 0),
			CASE
				WHEN COALESCE(a.total, 0) > 0 THEN (a.successes * 100.0) / a.total
				ELSE 0
			END,
			COALESCE(a.avg_ms, 0) / 1000.0,
			COALESCE(a.teams, 0)
		FROM dates d
		LEFT JOIN daily a ON d.date = a.date
		ORDER BY d.date ASC;
	`

	rows, err := db.conn.Query(query, today, days)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []TimeSeriesDataPoint
	for rows.Next() {
		var point TimeSeriesDataPoint
		if err := rows.Scan(
			&point.Date,
			&point.ScrapesCount,
			&point.SuccessRate,
			&point.AvgDuration,
			&point.TeamsFound,
		); err != nil {
			return nil, err
		}
		results = append(results, point)
	}

	return results, rows.Err()
}

// GetAssociationStats returns the most scraped associations with stats.
func (db *DB) GetAssociationStats(limit int) ([]AssociationStats, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT
			h.association,
			COALESCE(MAX(h.domain), ''),
			COUNT(*) AS scrapes_count,
			SUM(CASE WHEN h.scrape_status != 'ERROR' THEN 1 ELSE 0 END) * 100.0 / COUNT(*),
			AVG(h.duration_ms) / 1000.0,
			COALESCE((
				SELECT l.team_count FROM team_history l
				WHERE l.association = h.association AND l.scrape_status != 'ERROR'
				ORDER BY l.scraped_at DESC, l.id DESC LIMIT 1
			), 0),
			SUM(h.has_changes)
		FROM team_history h
		GROUP BY h.association
		ORDER BY scrapes_count DESC, h.association ASC
		LIMIT ?
	`

	rows, err := db.conn.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []AssociationStats
	for rows.Next() {
		var stats AssociationStats
		var avgDuration sql.NullFloat64
		if err := rows.Scan(
			&stats.Association,
			&stats.Domain,
			&stats.ScrapesCount,
			&stats.SuccessRate,
			&avgDuration,
			&stats.LatestTeams,
			&stats.ChangeCount,
		); err != nil {
			return nil, err
		}
		if avgDuration.Valid {
			stats.AvgDuration = avgDuration.Float64
		}
		results = append(results, stats)
	}

	return results, rows.Err()
}

// GetRecentScrapes returns the most recent scrape attempts.
func (db *DB) GetRecentScrapes(limit int) ([]RecentScrape, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT
			association,
			scrape_status,
			COALESCE(duration_ms, 0) / 1000.0,
			team_count,
			scraped_at,
			error_message
		FROM team_history
		ORDER BY scraped_at DESC, id DESC
		LIMIT ?
	`

	rows, err := db.conn.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []RecentScrape
	for rows.Next() {
		var scrape RecentScrape
		var errorMsg sql.NullString
		if err := rows.Scan(
			&scrape.Association,
			&scrape.Status,
			&scrape.Duration,
			&scrape.TeamCount,
			&scrape.CompletedAt,
			&errorMsg,
		); err != nil {
			return nil, err
		}
		if errorMsg.Valid {
			scrape.Error = errorMsg.String
		}
		results = append(results, scrape)
	}

	return results, rows.Err()
}
