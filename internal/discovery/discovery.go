// Package discovery enumerates candidate teams on an association website,
// either by crawling its pages or by driving a headless browser through a
// client-rendered team menu.
package discovery

import (
	"context"
	"strings"

	"github.com/kareemsasa3/rinkcal/internal/classify"
	"github.com/kareemsasa3/rinkcal/internal/config"
	"github.com/kareemsasa3/rinkcal/internal/types"
)

// Candidate is a team found during discovery. Resolved marks candidates
// whose CalendarSyncURL is already final and must not be re-resolved.
type Candidate struct {
	Team     types.ScrapedTeam
	Resolved bool
}

// Discoverer finds candidate teams for one association.
type Discoverer interface {
	Discover(ctx context.Context, assoc config.AssociationConfig, ages classify.AgeSet) ([]Candidate, error)
}

// PageFetcher returns page bodies; ok is false when the page is unavailable.
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (string, bool)
}

// DetectPlatform sniffs the homepage markup for a client-rendered platform.
func DetectPlatform(html string) types.PlatformKind {
	if strings.Contains(html, "sprocketsports.com") || strings.Contains(html, "app-root") {
		return types.PlatformSPA
	}
	return types.PlatformGeneric
}

// teamFromName classifies a team name found at age and returns the team
// record, or false when the name is noise.
func teamFromName(c *classify.Classifier, assocName string, age types.AgeGroup, name, calendarURL string) (types.ScrapedTeam, bool) {
	detail := classify.ExtractLevelDetail(name, age)
	normalized := classify.NormalizeLevelDetail(age, detail)
	if c.ShouldSkipTeam(age, normalized, name) {
		return types.ScrapedTeam{}, false
	}
	return newTeam(assocName, age, name, levelToken(age, detail, normalized), calendarURL), true
}

func levelToken(age types.AgeGroup, detail, normalized string) string {
	if tok, ok := classify.LevelToken(age, detail); ok {
		return tok
	}
	if normalized != "" {
		return normalized
	}
	return strings.TrimSpace(detail)
}

func newTeam(assocName string, age types.AgeGroup, name, level, calendarURL string) types.ScrapedTeam {
	return types.ScrapedTeam{
		AssociationName: assocName,
		Name:            name,
		SportType:       types.SportType,
		TeamLevel:       age,
		LevelDetail:     level,
		CalendarSyncURL: calendarURL,
	}
}
