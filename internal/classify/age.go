// Package classify extracts age groups, level tokens and season years from
// free-text team names, and rejects pages that are not team pages.
package classify

import (
	"regexp"
	"strings"

	"github.com/kareemsasa3/rinkcal/internal/types"
)

var (
	squirtWordRe = regexp.MustCompile(`\bsq\b|\bsqu\b`)
	peeweeWordRe = regexp.MustCompile(`\bpee\s*wee\b|\bpw\b|\bpws\b`)
	bantamWordRe = regexp.MustCompile(`\b(btm|bn|ban|bant)\b`)

	tenURe     = regexp.MustCompile(`(?:\b10\s*u|\bu\s*10|\b10-u|\bu-10|\b10u\b|\bu10\b)(?:\b|[^0-9])`)
	twelveURe  = regexp.MustCompile(`(?:\b12\s*u|\bu\s*12|\b12-u|\bu-12|\b12u\b|\bu12\b)(?:\b|[^0-9])`)
	fifteenURe = regexp.MustCompile(`(?:\b15\s*u|\bu\s*15|\b15-u|\bu-15|\b15u\b|\bu15\b)(?:\b|[^0-9])`)
)

// DetectAgeGroup returns the first age group whose markers appear in text.
// Order matters: "mite" is tested before the squirt, peewee and bantam
// abbreviations, and the U-groups come last.
func DetectAgeGroup(text string) (types.AgeGroup, bool) {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "mite"):
		return types.Mites, true
	case strings.Contains(lower, "squirt") || strings.Contains(lower, "sq-") || squirtWordRe.MatchString(lower):
		return types.Squirts, true
	case strings.Contains(lower, "peewee") || strings.Contains(lower, "peew") ||
		strings.Contains(lower, "pw-") || peeweeWordRe.MatchString(lower):
		return types.Peewees, true
	case strings.Contains(lower, "bantam") || strings.Contains(lower, "bant-") || strings.Contains(lower, "ban ") ||
		strings.Contains(lower, "btm-") || strings.Contains(lower, "bn-") || bantamWordRe.MatchString(lower):
		return types.Bantams, true
	case tenURe.MatchString(lower):
		return types.U10, true
	case twelveURe.MatchString(lower):
		return types.U12, true
	case fifteenURe.MatchString(lower):
		return types.U15, true
	}
	return "", false
}

// AgeSet is a scope of requested age groups.
type AgeSet map[types.AgeGroup]bool

// NewAgeSet builds a scope; no arguments means every age group.
func NewAgeSet(groups ...types.AgeGroup) AgeSet {
	if len(groups) == 0 {
		groups = types.AllAgeGroups
	}
	s := make(AgeSet, len(groups))
	for _, g := range groups {
		s[g] = true
	}
	return s
}

// Allowed reports whether text names an age group inside the scope.
func (s AgeSet) Allowed(text string) (types.AgeGroup, bool) {
	g, ok := DetectAgeGroup(text)
	if !ok || !s[g] {
		return "", false
	}
	return g, true
}
