// Package database keeps a SQLite history of each association's team list so
// changes between scrapes can be listed and diffed.
package database

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/kareemsasa3/rinkcal/internal/types"
)

// Logger interface for database logging
type Logger interface {
	Info(format string, v ...interface{})
	Debug(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Error(format string, v ...interface{})
}

// DB wraps the SQLite database connection
type DB struct {
	conn   *sql.DB
	logger Logger
	now    func() time.Time
}

// Snapshot is one recorded scrape of an association.
type Snapshot struct {
	ID            string                  `json:"id"`
	Association   string                  `json:"association"`
	BaseURL       string                  `json:"base_url"`
	Domain        string                  `json:"domain"`
	Teams         []types.ScrapedTeam     `json:"teams,omitempty"`
	Content       string                  `json:"content,omitempty"`
	ContentHash   string                  `json:"content_hash"`
	PreviousHash  string                  `json:"previous_hash,omitempty"`
	HasChanges    bool                    `json:"has_changes"`
	ChangeSummary string                  `json:"change_summary,omitempty"`
	TeamCount     int                     `json:"team_count"`
	Status        types.AssociationStatus `json:"status"`
	ErrorMessage  string                  `json:"error_message,omitempty"`
	DurationMs    int64                   `json:"duration_ms"`
	ScrapedAt     time.Time               `json:"scraped_at"`
	LastCheckedAt time.Time               `json:"last_checked_at"`
}

// Initialize creates a new database connection and runs migrations
func Initialize(dbPath string, log Logger) (*DB, error) {
	conn, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(time.Hour)

	// WAL lets the API read history while a batch is writing
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	db := &DB{
		conn:   conn,
		logger: log,
		now:    func() time.Time { return time.Now().UTC() },
	}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	db.logger.Info("Database initialized successfully at %s", dbPath)
	return db, nil
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS team_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		association TEXT NOT NULL,
		base_url TEXT,
		domain TEXT,
		teams_json TEXT,
		content TEXT,
		content_hash TEXT,
		previous_hash TEXT,
		has_changes INTEGER DEFAULT 0,
		change_summary TEXT,
		team_count INTEGER DEFAULT 0,
		scrape_status TEXT DEFAULT 'OK',
		error_message TEXT,
		scraped_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		last_checked_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_team_history_assoc_time ON team_history(association, scraped_at DESC);
	CREATE INDEX IF NOT EXISTS idx_team_history_hash ON team_history(content_hash);
	CREATE INDEX IF NOT EXISTS idx_team_history_status ON team_history(scrape_status);
	`
	if _, err := db.conn.Exec(schema); err != nil {
		return fmt.Errorf("failed to create team_history schema: %w", err)
	}
	return db.migrateHistorySchema()
}

type tableColumn struct {
	Name    string
	NotNull bool
}

// migrateHistorySchema backfills columns added after the first release.
func (db *DB) migrateHistorySchema() error {
	cols, err := db.getTableColumns("team_history")
	if err != nil {
		return err
	}
	if _, exists := cols["duration_ms"]; !exists {
		if _, err := db.conn.Exec(`ALTER TABLE team_history ADD COLUMN duration_ms INTEGER DEFAULT 0`); err != nil {
			return fmt.Errorf("failed to add column duration_ms: %w", err)
		}
	}
	return nil
}

func (db *DB) getTableColumns(table string) (map[string]tableColumn, error) {
	rows, err := db.conn.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, fmt.Errorf("failed to inspect table %s: %w", table, err)
	}
	defer rows.Close()

	cols := make(map[string]tableColumn)
	for rows.Next() {
		var (
			cid       int
			name      string
			colType   string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return nil, fmt.Errorf("failed to scan table info for %s: %w", table, err)
		}
		cols[name] = tableColumn{Name: name, NotNull: notNull != 0}
	}
	return cols, rows.Err()
}

// RenderTeams is the stable text form of a team list that is hashed and
// diffed: one tab-separated line per team, in list order.
func RenderTeams(teams []types.ScrapedTeam) string {
	var b strings.Builder
	for _, t := range teams {
		fmt.Fprintf(&b, "%s\t%s\t%s\t%s\n", t.TeamLevel, t.LevelDetail, t.Name, t.CalendarSyncURL)
	}
	return b.String()
}

// SaveSnapshot records a successful scrape. When the team list is unchanged
// since the latest snapshot only last_checked_at moves; otherwise a new row
// is written with the previous hash and a summary of changed teams.
func (db *DB) SaveSnapshot(snapshot *Snapshot) error {
	snapshot.Content = RenderTeams(snapshot.Teams)
	snapshot.ContentHash = computeContentHash(snapshot.Content)
	snapshot.TeamCount = len(snapshot.Teams)
	if snapshot.Status == "" {
		snapshot.Status = types.StatusOK
		if snapshot.TeamCount == 0 {
			snapshot.Status = types.StatusWarning
		}
	}
	if snapshot.Domain == "" && snapshot.BaseURL != "" {
		domain, err := extractDomain(snapshot.BaseURL)
		if err != nil {
			return fmt.Errorf("failed to extract domain: %w", err)
		}
		snapshot.Domain = domain
	}

	existing, err := db.GetLatestSnapshot(snapshot.Association)
	if err != nil {
		return fmt.Errorf("failed to check existing snapshot: %w", err)
	}

	now := db.now()
	if existing != nil && existing.ContentHash == snapshot.ContentHash {
		if _, err := db.conn.Exec(`UPDATE team_history SET last_checked_at = ? WHERE id = ?`, now, existing.ID); err != nil {
			return fmt.Errorf("failed to update last_checked_at: %w", err)
		}
		snapshot.ID = existing.ID
		snapshot.ScrapedAt = existing.ScrapedAt
		snapshot.LastCheckedAt = now
		snapshot.PreviousHash = existing.PreviousHash
		snapshot.HasChanges = existing.HasChanges
		snapshot.ChangeSummary = existing.ChangeSummary
		db.logger.Info("Updated last_checked_at for %s (teams unchanged)", snapshot.Association)
		return nil
	}

	snapshot.ScrapedAt = now
	snapshot.LastCheckedAt = now
	snapshot.PreviousHash = ""
	snapshot.HasChanges = false
	snapshot.ChangeSummary = ""
	if existing != nil {
		snapshot.PreviousHash = existing.ContentHash
		snapshot.HasChanges = true
		snapshot.ChangeSummary = DiffContent(existing.Content, snapshot.Content).Summary()
	}

	teamsJSON, err := json.Marshal(snapshot.Teams)
	if err != nil {
		return fmt.Errorf("failed to encode teams: %w", err)
	}

	result, err := db.conn.Exec(`
		INSERT INTO team_history (
			association, base_url, domain, teams_json, content, content_hash,
			previous_hash, has_changes, change_summary, team_count, scrape_status,
			error_message, duration_ms, scraped_at, last_checked_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, ?, ?, ?)`,
		snapshot.Association,
		snapshot.BaseURL,
		snapshot.Domain,
		string(teamsJSON),
		snapshot.Content,
		snapshot.ContentHash,
		snapshot.PreviousHash,
		boolToInt(snapshot.HasChanges),
		snapshot.ChangeSummary,
		snapshot.TeamCount,
		string(snapshot.Status),
		snapshot.DurationMs,
		snapshot.ScrapedAt,
		snapshot.LastCheckedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}
	if id, err := result.LastInsertId(); err == nil {
		snapshot.ID = strconv.FormatInt(id, 10)
	}

	if existing != nil {
		db.logger.Info("Saved new snapshot for %s (teams changed, hash: %s)", snapshot.Association, snapshot.ContentHash[:8])
	} else {
		db.logger.Info("Saved first snapshot for %s (hash: %s)", snapshot.Association, snapshot.ContentHash[:8])
	}
	return nil
}

// SaveFailedScrape records a scrape that returned an error. Failed rows carry
// no content and are ignored when looking for the previous team list.
func (db *DB) SaveFailedScrape(association, baseURL, errorMsg string, durationMs int64) error {
	domain, _ := extractDomain(baseURL)
	now := db.now()
	_, err := db.conn.Exec(`
		INSERT INTO team_history (
			association, base_url, domain, scrape_status, error_message,
			duration_ms, scraped_at, last_checked_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		association, baseURL, domain, string(types.StatusError), errorMsg, durationMs, now, now)
	if err != nil {
		return fmt.Errorf("failed to save failed scrape: %w", err)
	}
	return nil
}

// RecordResult stores one batch row, successful or not.
func (db *DB) RecordResult(r types.AssociationResult) error {
	if r.Status == types.StatusError {
		return db.SaveFailedScrape(r.Name, r.BaseURL, r.Error, r.DurationMs)
	}
	return db.SaveSnapshot(&Snapshot{
		Association: r.Name,
		BaseURL:     r.BaseURL,
		Teams:       r.Teams,
		Status:      r.Status,
		DurationMs:  r.DurationMs,
	})
}

const snapshotColumns = `
	id, association, base_url, domain, teams_json, content, content_hash,
	previous_hash, has_changes, change_summary, team_count, scrape_status,
	error_message, duration_ms, scraped_at, last_checked_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSnapshot(row rowScanner) (*Snapshot, error) {
	var (
		snapshot      Snapshot
		id            int64
		baseURL       sql.NullString
		domain        sql.NullString
		teamsJSON     sql.NullString
		content       sql.NullString
		contentHash   sql.NullString
		previousHash  sql.NullString
		hasChangesInt int
		changeSummary sql.NullString
		status        sql.NullString
		errorMessage  sql.NullString
		durationMs    sql.NullInt64
	)
	err := row.Scan(
		&id,
		&snapshot.Association,
		&baseURL,
		&domain,
		&teamsJSON,
		&content,
		&contentHash,
		&previousHash,
		&hasChangesInt,
		&changeSummary,
		&snapshot.TeamCount,
		&status,
		&errorMessage,
		&durationMs,
		&snapshot.ScrapedAt,
		&snapshot.LastCheckedAt,
	)
	if err != nil {
		return nil, err
	}
	snapshot.ID = strconv.FormatInt(id, 10)
	snapshot.BaseURL = baseURL.String
	snapshot.Domain = domain.String
	snapshot.Content = content.String
	snapshot.ContentHash = contentHash.String
	snapshot.PreviousHash = previousHash.String
	snapshot.HasChanges = hasChangesInt != 0
	snapshot.ChangeSummary = changeSummary.String
	snapshot.Status = types.AssociationStatus(status.String)
	snapshot.ErrorMessage = errorMessage.String
	snapshot.DurationMs = durationMs.Int64
	if teamsJSON.Valid && teamsJSON.String != "" {
		if err := json.Unmarshal([]byte(teamsJSON.String), &snapshot.Teams); err != nil {
			return nil, fmt.Errorf("failed to decode teams of snapshot %d: %w", id, err)
		}
	}
	return &snapshot, nil
}

func (db *DB) querySnapshots(query string, args ...interface{}) ([]*Snapshot, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []*Snapshot
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snapshots = append(snapshots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}
	return snapshots, nil
}

// GetLatestSnapshot returns the most recent successful snapshot of an
// association, or nil when there is none.
func (db *DB) GetLatestSnapshot(association string) (*Snapshot, error) {
	row := db.conn.QueryRow(`SELECT `+snapshotColumns+`
		FROM team_history
		WHERE association = ? AND scrape_status != 'ERROR'
		ORDER BY scraped_at DESC, id DESC
		LIMIT 1`, association)
	s, err := scanSnapshot(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot: %w", err)
	}
	return s, nil
}

// GetSnapshotByID retrieves a snapshot by its ID, or nil when absent.
func (db *DB) GetSnapshotByID(id string) (*Snapshot, error) {
	row := db.conn.QueryRow(`SELECT `+snapshotColumns+` FROM team_history WHERE id = ?`, id)
	s, err := scanSnapshot(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot: %w", err)
	}
	return s, nil
}

// GetHistory returns an association's snapshots, newest first.
func (db *DB) GetHistory(association string, limit int) ([]*Snapshot, error) {
	if limit <= 0 {
		limit = 50
	}
	return db.querySnapshots(`SELECT `+snapshotColumns+`
		FROM team_history
		WHERE association = ?
		ORDER BY scraped_at DESC, id DESC
		LIMIT ?`, association, limit)
}

// GetRecentSnapshots pages through every association's snapshots, newest
// first, and reports the total row count.
func (db *DB) GetRecentSnapshots(limit, offset int) ([]*Snapshot, int, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}

	var total int
	if err := db.conn.QueryRow("SELECT COUNT(*) FROM team_history").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to get total count: %w", err)
	}
	snapshots, err := db.querySnapshots(`SELECT `+snapshotColumns+`
		FROM team_history
		ORDER BY scraped_at DESC, id DESC
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return snapshots, total, nil
}

// DeleteSnapshot removes one history row.
func (db *DB) DeleteSnapshot(snapshotID string) error {
	result, err := db.conn.Exec(`DELETE FROM team_history WHERE id = ?`, snapshotID)
	if err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("snapshot not found: %s", snapshotID)
	}
	return nil
}

// Close closes the database connection
func (db *DB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// computeContentHash computes SHA256 hash of content
func computeContentHash(content string) string {
	hash := sha256.Sum256([]byte(content))
	return hex.EncodeToString(hash[:])
}

// extractDomain extracts the host of a URL without a leading www.
func extractDomain(urlStr string) (string, error) {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}
	return strings.TrimPrefix(strings.ToLower(parsed.Host), "www."), nil
}

// GetStats returns database statistics
func (db *DB) GetStats() (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var totalSnapshots int
	if err := db.conn.QueryRow("SELECT COUNT(*) FROM team_history").Scan(&totalSnapshots); err != nil {
		return nil, fmt.Errorf("failed to get total snapshots: %w", err)
	}
	stats["total_snapshots"] = totalSnapshots

	var associations int
	if err := db.conn.QueryRow("SELECT COUNT(DISTINCT association) FROM team_history").Scan(&associations); err != nil {
		return nil, fmt.Errorf("failed to get unique associations: %w", err)
	}
	stats["unique_associations"] = associations

	var changed int
	if err := db.conn.QueryRow("SELECT COUNT(*) FROM team_history WHERE has_changes = 1").Scan(&changed); err != nil {
		return nil, fmt.Errorf("failed to count changed snapshots: %w", err)
	}
	stats["changed_snapshots"] = changed

	var pageCount, pageSize int
	if err := db.conn.QueryRow("PRAGMA page_count").Scan(&pageCount); err == nil {
		if err := db.conn.QueryRow("PRAGMA page_size").Scan(&pageSize); err == nil {
			stats["db_size_bytes"] = pageCount * pageSize
		}
	}
	return stats, nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
