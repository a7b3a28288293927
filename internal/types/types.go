// Package types holds the team, association and batch records shared by the
// scraper, history store and API.
package types

import (
	"fmt"
	"strings"
)

// SportType is the fixed sport literal carried on every emitted team.
const SportType = "hockey"

// AgeGroup is a competitive age bracket.
type AgeGroup string

const (
	Mites   AgeGroup = "Mites"
	Squirts AgeGroup = "Squirts"
	Peewees AgeGroup = "Peewees"
	Bantams AgeGroup = "Bantams"
	U10     AgeGroup = "10U"
	U12     AgeGroup = "12U"
	U15     AgeGroup = "15U"
)

// AllAgeGroups lists every age group in detection order.
var AllAgeGroups = []AgeGroup{Mites, Squirts, Peewees, Bantams, U10, U12, U15}

// Singular returns the singular form used in team names ("Squirt" for Squirts).
func (a AgeGroup) Singular() string {
	return strings.TrimSuffix(string(a), "s")
}

// Priority orders age groups by competitive seniority for display.
func (a AgeGroup) Priority() int {
	switch a {
	case Bantams:
		return 1
	case Peewees:
		return 2
	case Squirts:
		return 3
	case Mites:
		return 4
	case U15:
		return 5
	case U12:
		return 6
	case U10:
		return 7
	default:
		return 99
	}
}

// ParseAgeGroup maps a case-insensitive name onto a known AgeGroup.
func ParseAgeGroup(s string) (AgeGroup, error) {
	for _, g := range AllAgeGroups {
		if strings.EqualFold(strings.TrimSpace(s), string(g)) {
			return g, nil
		}
	}
	return "", fmt.Errorf("unknown age group %q", s)
}

// Association is a youth hockey organization and the origin of its website.
type Association struct {
	Name    string `json:"name" mapstructure:"name"`
	BaseURL string `json:"base_url" mapstructure:"base_url"`
}

// ScrapedTeam is one resolved team with its calendar subscription URL.
type ScrapedTeam struct {
	AssociationName string   `json:"association_name" mapstructure:"association_name"`
	Name            string   `json:"name" mapstructure:"name"`
	SportType       string   `json:"sport_type" mapstructure:"sport_type"`
	TeamLevel       AgeGroup `json:"team_level" mapstructure:"team_level"`
	LevelDetail     string   `json:"level_detail" mapstructure:"level_detail"`
	CalendarSyncURL string   `json:"calendar_sync_url" mapstructure:"calendar_sync_url"`
}

// PlatformKind tags the site-building platform of an association website.
type PlatformKind string

const (
	PlatformGeneric PlatformKind = "generic"
	PlatformSPA     PlatformKind = "spa"
)

// ProgressUpdate is reported after each association in a batch.
type ProgressUpdate struct {
	Current              int    `json:"current"`
	Total                int    `json:"total"`
	AssociationName      string `json:"associationName"`
	TeamsFound           int    `json:"teamsFound"`
	ElapsedMs            int64  `json:"elapsedMs"`
	EstimatedRemainingMs int64  `json:"estimatedRemainingMs"`
}

// AssociationStatus classifies the outcome of one association scrape.
type AssociationStatus string

const (
	StatusOK      AssociationStatus = "OK"
	StatusWarning AssociationStatus = "WARNING"
	StatusError   AssociationStatus = "ERROR"
)

// AssociationResult is the per-association row of a batch or health check.
type AssociationResult struct {
	Name       string            `json:"name"`
	BaseURL    string            `json:"base_url"`
	Status     AssociationStatus `json:"status"`
	Teams      []ScrapedTeam     `json:"teams,omitempty"`
	TeamCount  int               `json:"team_count"`
	DurationMs int64             `json:"duration_ms"`
	Error      string            `json:"error,omitempty"`
}
