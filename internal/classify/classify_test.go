package classify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kareemsasa3/rinkcal/internal/config"
	"github.com/kareemsasa3/rinkcal/internal/types"
)

func TestDetectAgeGroup(t *testing.T) {
	tests := []struct {
		text string
		want types.AgeGroup
		ok   bool
	}{
		{"Squirt B2 Gold", types.Squirts, true},
		{"Mite 3 Green", types.Mites, true},
		{"Pee Wee AA", types.Peewees, true},
		{"PW-A 2025-26", types.Peewees, true},
		{"Bantam A", types.Bantams, true},
		{"btm-b1", types.Bantams, true},
		{"12U Girls A", types.U12, true},
		{"U10 B", types.U10, true},
		{"Girls 15U", types.U15, true},
		{"Varsity Boys", "", false},
		{"110u", "", false},
	}
	for _, tt := range tests {
		got, ok := DetectAgeGroup(tt.text)
		if ok != tt.ok || got != tt.want {
			t.Errorf("DetectAgeGroup(%q) = %q, %v; want %q, %v", tt.text, got, ok, tt.want, tt.ok)
		}
	}
}

func TestMiteWinsOverOtherMarkers(t *testing.T) {
	got, ok := DetectAgeGroup("Mite Squirt Jamboree")
	require.True(t, ok)
	assert.Equal(t, types.Mites, got)
}

func TestAgeSetAllowed(t *testing.T) {
	s := NewAgeSet(types.Bantams)
	_, ok := s.Allowed("Squirt A")
	assert.False(t, ok)
	g, ok := s.Allowed("Bantam AA")
	assert.True(t, ok)
	assert.Equal(t, types.Bantams, g)
	assert.Len(t, NewAgeSet(), len(types.AllAgeGroups))
}

func TestExtractLevelDetail(t *testing.T) {
	assert.Equal(t, "B2   Gold", ExtractLevelDetail("Squirt B2 - Gold", types.Squirts))
	assert.Equal(t, "B2 Gold", ExtractLevelDetail("Squirt B2 Gold", types.Squirts))
	assert.Equal(t, "3 Green", ExtractLevelDetail("Mite 3 Green", types.Mites))
	assert.Equal(t, "A", ExtractLevelDetail("Girls 12U A", types.U12))
	assert.Equal(t, UnknownDetail, ExtractLevelDetail("Bantams", types.Bantams))
}

func TestLevelTokens(t *testing.T) {
	tok, ok := LevelToken(types.Squirts, "B2 Gold")
	require.True(t, ok)
	assert.Equal(t, "B2", tok)

	tok, ok = LevelToken(types.Mites, "3 Green")
	require.True(t, ok)
	assert.Equal(t, "3", tok)

	// the last competitive token wins
	tok, _ = LevelToken(types.Bantams, "North A B2")
	assert.Equal(t, "B2", tok)

	_, ok = LevelToken(types.Peewees, "Gold")
	assert.False(t, ok)

	assert.Equal(t, "8U", NormalizeLevelDetail(types.Mites, "8U Blue"))
	assert.Equal(t, "Gold", NormalizeLevelDetail(types.Peewees, "Gold"))
	assert.Equal(t, "Gold", TokenOr(types.Peewees, "Gold"))
}

func TestIsValidCompetitiveLevel(t *testing.T) {
	assert.True(t, IsValidCompetitiveLevel(types.Bantams, "AA"))
	assert.True(t, IsValidCompetitiveLevel(types.Squirts, "c2"))
	assert.False(t, IsValidCompetitiveLevel(types.Squirts, "Gold"))
	assert.True(t, IsValidCompetitiveLevel(types.Mites, "Green"))
}

func TestLevelPriority(t *testing.T) {
	assert.Less(t, LevelPriority(types.Bantams, "AA"), LevelPriority(types.Bantams, "A"))
	assert.Less(t, LevelPriority(types.Squirts, "B2 Gold"), LevelPriority(types.Squirts, "C"))
	assert.Equal(t, 12, LevelPriority(types.Mites, "3 Green"))
	assert.Equal(t, 99, LevelPriority(types.Peewees, "Gold"))
}

func TestAggregateLevelDetail(t *testing.T) {
	assert.True(t, IsAggregateLevelDetail("All  Teams"))
	assert.True(t, IsAggregateLevelDetail("all"))
	assert.False(t, IsAggregateLevelDetail("A"))
}

func TestExtractSeasonYearRange(t *testing.T) {
	tests := []struct {
		text string
		want SeasonRange
		ok   bool
	}{
		{"Bantam A 2023-2024", SeasonRange{2023, 2024}, true},
		{"/page/show/1-2025-26-peewee", SeasonRange{2025, 2026}, true},
		{"Squirt 24-25", SeasonRange{2024, 2025}, true},
		{"/teams/2025/bantam-a", SeasonRange{2025, 2026}, true},
		{"Bantam A", SeasonRange{}, false},
	}
	for _, tt := range tests {
		got, ok := ExtractSeasonYearRange(tt.text)
		assert.Equal(t, tt.ok, ok, tt.text)
		assert.Equal(t, tt.want, got, tt.text)
	}
	y, ok := ExtractSeasonYear("2025-2026 Bantam A")
	assert.True(t, ok)
	assert.Equal(t, 2025, y)
}

func TestIsCurrentSeason(t *testing.T) {
	assert.True(t, IsCurrentSeason("Bantam A 2024-2025", 2024))
	assert.True(t, IsCurrentSeason("Bantam A 2025-2026", 2024), "next season is allowed")
	assert.True(t, IsCurrentSeason("Bantam A 2023-2024", 2024))
	assert.False(t, IsCurrentSeason("Bantam A 2022-2023", 2024))
	assert.False(t, IsCurrentSeason("Bantam A", 2024))

	assert.True(t, SeasonCheck("Bantam A", 2024))
	assert.False(t, SeasonCheck("Bantam A 2021-22", 2024))
}

func TestCurrentSeasonYear(t *testing.T) {
	assert.Equal(t, 2025, CurrentSeasonYear(time.Date(2026, time.July, 31, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 2026, CurrentSeasonYear(time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 2026, CurrentSeasonYear(time.Date(2026, time.October, 19, 0, 0, 0, 0, time.UTC)))
}

func TestIsLikelyNonTeamPage(t *testing.T) {
	c := DefaultClassifier()
	tests := []struct {
		name, url string
		reject    bool
		rule      string
	}{
		{"Squirt Jamboree", "https://www.byha.org/page/show/1", true, "name:jamboree"},
		{"Bantam A", "https://www.byha.org/page/show/1", false, ""},
		{"Teams > Bantam", "https://www.byha.org/page/show/2", true, "name:breadcrumb"},
		{"Bantam A", "https://www.byha.org/files/roster.pdf", true, "url:document.pdf"},
		{"Bantam A", "https://www.byha.org/news_article/show/5", true, "url:external:/news_article/"},
		{"Peewee A", "https://www.byha.org/Schedule", true, "url:generic-schedule"},
		{"Peewee A", "https://www.byha.org/team/1/schedule", false, ""},
		{"Peewee A", "https://www.byha.org/schedule/facility/3", true, "url:facility-schedule"},
		{"Squirt Tournament", "https://www.byha.org/page/show/9", true, "name:tournament"},
	}
	for _, tt := range tests {
		reject, rule := c.IsLikelyNonTeamPage(tt.name, tt.url)
		assert.Equal(t, tt.reject, reject, "%s %s", tt.name, tt.url)
		assert.Equal(t, tt.rule, rule, "%s %s", tt.name, tt.url)
	}
}

func TestClassifierExtensions(t *testing.T) {
	c, err := NewClassifier(config.RulesConfig{
		NonTeamNames:      []string{"Pond Hockey"},
		NonTeamURLs:       []string{`re:/fan-?shop`},
		AggregateKeywords: []string{"Learn To Skate"},
	})
	require.NoError(t, err)

	reject, rule := c.IsLikelyNonTeamPage("Squirt Pond Hockey Day", "https://x.org/page/show/1")
	assert.True(t, reject)
	assert.Equal(t, "config:name:pond hockey", rule)

	reject, _ = c.IsLikelyNonTeamPage("Bantam A", "https://x.org/FanShop/bantam")
	assert.True(t, reject)

	assert.True(t, c.IsAggregateOrInHouse("Mite learn to skate", "Unknown"))

	_, err = NewClassifier(config.RulesConfig{NonTeamURLs: []string{"re:("}})
	assert.Error(t, err)
}

func TestAcceptVerdictShortCircuits(t *testing.T) {
	rules := append([]Rule{{Name: "allow-cup-team", Target: TargetName, Pattern: "cup team", Fold: true, Verdict: Accept}},
		DefaultNonTeamRules()...)
	c, err := NewClassifierWithRules(rules, nil)
	require.NoError(t, err)

	reject, rule := c.IsLikelyNonTeamPage("Bantam Cup Team", "https://x.org/page/show/1")
	assert.False(t, reject)
	assert.Equal(t, "allow-cup-team", rule)
}

func TestShouldSkipTeam(t *testing.T) {
	c := DefaultClassifier()
	tests := []struct {
		age    types.AgeGroup
		detail string
		name   string
		skip   bool
	}{
		{types.Squirts, "B2", "Squirt B2 Gold", false},
		{types.Mites, "3", "Mite 3 Green", false},
		{types.Bantams, "AA", "Bantam AA", false},
		{types.Bantams, "All Teams", "Bantam All Teams", true},
		{types.Bantams, "Unknown", "Bantams", true},
		{types.Mites, "Unknown", "Mite IH Sundays", true},
		{types.Mites, "8U", "Mite 8U", true},
		{types.Mites, "8U", "Mite 8U Blue", false},
		{types.Mites, "Unknown", "Hockey Mite Program", true},
		{types.Peewees, "A", "Peewee A Summer Session", true},
		{types.Mites, "2", "Mite 2 Teams", false},
		{types.Mites, "2", "Mite 2 Summer Teams", true},
		{types.Peewees, "Gold", "Peewee Gold", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.skip, c.ShouldSkipTeam(tt.age, tt.detail, tt.name), "%s / %s", tt.name, tt.detail)
	}
}
