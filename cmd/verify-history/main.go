// Command verify-history exercises the team history store end to end against
// a throwaway SQLite file: first save, unchanged save, changed save, diff,
// failed scrape and delete.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kareemsasa3/rinkcal/internal/database"
	"github.com/kareemsasa3/rinkcal/internal/logger"
	"github.com/kareemsasa3/rinkcal/internal/types"
)

func main() {
	log := logger.NewLogger("debug")
	defer log.Sync()
	if err := run(log); err != nil {
		log.Error("%v", err)
		_ = log.Sync()
		os.Exit(1)
	}
}

func run(log *logger.Logger) error {
	// 1. Setup temporary database
	tmpDir, err := os.MkdirTemp("", "rinkcal-verify")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmpDir)

	db, err := database.Initialize(filepath.Join(tmpDir, "history.db"), log)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	teams := []types.ScrapedTeam{
		{AssociationName: "Chaska", Name: "Squirt B1 Gold", SportType: "hockey", TeamLevel: types.Squirts, LevelDetail: "B1",
			CalendarSyncURL: "https://www.cchockey.org/team/142360/calendar"},
	}

	// 2. First snapshot
	first := &database.Snapshot{Association: "Chaska", BaseURL: "https://www.cchockey.org", Teams: teams}
	if err := db.SaveSnapshot(first); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	log.Info("Created snapshot with ID: %s", first.ID)

	// 3. Unchanged teams reuse the row
	again := &database.Snapshot{Association: "Chaska", BaseURL: "https://www.cchockey.org", Teams: teams}
	if err := db.SaveSnapshot(again); err != nil {
		return fmt.Errorf("failed to save unchanged snapshot: %w", err)
	}
	if again.ID != first.ID {
		return fmt.Errorf("expected unchanged teams to reuse snapshot %s, got %s", first.ID, again.ID)
	}
	log.Info("Deduplication verification passed.")

	// 4. Changed teams produce a new version with a change summary
	changed := append(teams, types.ScrapedTeam{AssociationName: "Chaska", Name: "Peewee A", SportType: "hockey",
		TeamLevel: types.Peewees, LevelDetail: "A", CalendarSyncURL: "https://www.cchockey.org/team/142371/calendar"})
	second := &database.Snapshot{Association: "Chaska", BaseURL: "https://www.cchockey.org", Teams: changed}
	if err := db.SaveSnapshot(second); err != nil {
		return fmt.Errorf("failed to save changed snapshot: %w", err)
	}
	if !second.HasChanges || second.PreviousHash != first.ContentHash {
		return fmt.Errorf("expected change tracking on %s: has_changes=%v previous=%q", second.ID, second.HasChanges, second.PreviousHash)
	}
	diff := database.DiffContent(first.Content, second.Content)
	if len(diff.Added) != 1 || len(diff.Removed) != 0 {
		return fmt.Errorf("unexpected diff: %+v", diff)
	}
	log.Info("Change summary:\n%s", second.ChangeSummary)

	// 5. A failed scrape is recorded but is not the baseline
	if err := db.SaveFailedScrape("Chaska", "https://www.cchockey.org", "connection refused", 12); err != nil {
		return fmt.Errorf("failed to save failed scrape: %w", err)
	}
	latest, err := db.GetLatestSnapshot("Chaska")
	if err != nil || latest == nil || latest.ID != second.ID {
		return fmt.Errorf("expected latest successful snapshot %s, got %+v (err %v)", second.ID, latest, err)
	}

	// 6. Test non-existent ID (should fail gracefully)
	log.Info("Testing non-existent ID...")
	if err := db.DeleteSnapshot("99999"); err == nil {
		return fmt.Errorf("expected error for non-existent ID, got nil")
	}
	log.Info("Got expected error for non-existent ID")

	stats, err := db.GetStats()
	if err != nil {
		return fmt.Errorf("failed to get stats: %w", err)
	}
	log.Info("Stats: %v", stats)
	log.Info("All verification steps passed successfully.")
	return nil
}
