package classify

import (
	"regexp"
	"strings"

	"github.com/kareemsasa3/rinkcal/internal/types"
)

var (
	leadingBoilerplateRe = regexp.MustCompile(`(?i)^(Team|Jr\.?|Boys|Girls)\s+`)
	separatorRe          = regexp.MustCompile(`[-–]`)
	whitespaceRe         = regexp.MustCompile(`\s+`)

	miteDetailRe      = regexp.MustCompile(`(?i)\b(aa|a|b1|b2|b|c1|c2|c|d|[1-4]|6u|8u)\b`)
	miteTokenRe       = regexp.MustCompile(`(?i)\b(aa|a|b1|b2|b|c1|c2|c|d|[1-4])\b`)
	ageWordRe         = regexp.MustCompile(`\b(bantam|bantams|ban|btm|bn|squirt|squirts|sq|peewee|peewees|pw)\b`)
	competitiveRe     = regexp.MustCompile(`(?i)\b(aa|a|b1|b2|b|c1|c2|c)\b`)
	competitiveFullRe = regexp.MustCompile(`^(aa|a|b1|b2|b|c1|c2|c)$`)

	ageNameRes = func() map[types.AgeGroup]*regexp.Regexp {
		m := make(map[types.AgeGroup]*regexp.Regexp, len(types.AllAgeGroups))
		for _, g := range types.AllAgeGroups {
			m[g] = regexp.MustCompile(`(?i)(` + regexp.QuoteMeta(string(g)) + `|` + regexp.QuoteMeta(g.Singular()) + `)`)
		}
		return m
	}()
)

// UnknownDetail is the level detail of a name that is only an age group.
const UnknownDetail = "Unknown"

// ExtractLevelDetail strips the age-group word, leading boilerplate and
// separators from a team name. "Squirt B2 - Gold" yields "B2   Gold".
func ExtractLevelDetail(name string, age types.AgeGroup) string {
	re, ok := ageNameRes[age]
	if !ok {
		re = regexp.MustCompile(`(?i)(` + regexp.QuoteMeta(string(age)) + `|` + regexp.QuoteMeta(age.Singular()) + `)`)
	}
	detail := name
	if loc := re.FindStringIndex(detail); loc != nil {
		detail = detail[:loc[0]] + detail[loc[1]:]
	}
	detail = strings.TrimSpace(detail)
	detail = leadingBoilerplateRe.ReplaceAllString(detail, "")
	detail = strings.TrimSpace(separatorRe.ReplaceAllString(detail, " "))
	if detail == "" {
		return UnknownDetail
	}
	return detail
}

// IsAggregateLevelDetail reports placeholder details such as "All Teams".
func IsAggregateLevelDetail(detail string) bool {
	switch collapse(detail) {
	case "all", "all team", "all teams", "all levels":
		return true
	}
	return false
}

// NormalizeLevelDetail maps a raw detail onto the age group's vocabulary,
// returning the detail unchanged when no token is recognized.
func NormalizeLevelDetail(age types.AgeGroup, detail string) string {
	if age == types.Mites {
		if m := miteDetailRe.FindStringSubmatch(detail); m != nil {
			return strings.ToUpper(m[1])
		}
		return detail
	}
	if tok, ok := lastCompetitiveToken(detail); ok {
		return tok
	}
	return detail
}

// LevelToken extracts the normalized level token, if any. For competitive
// groups the last matching token wins, since qualifiers sometimes precede
// the real level letter ("North A B2").
func LevelToken(age types.AgeGroup, detail string) (string, bool) {
	if age == types.Mites {
		if m := miteTokenRe.FindStringSubmatch(detail); m != nil {
			return strings.ToUpper(m[1]), true
		}
		return "", false
	}
	return lastCompetitiveToken(detail)
}

// TokenOr returns the level token of detail, or detail itself.
func TokenOr(age types.AgeGroup, detail string) string {
	if tok, ok := LevelToken(age, detail); ok {
		return tok
	}
	return detail
}

func lastCompetitiveToken(detail string) (string, bool) {
	stripped := strings.TrimSpace(ageWordRe.ReplaceAllString(strings.ToLower(detail), ""))
	matches := competitiveRe.FindAllString(stripped, -1)
	if len(matches) == 0 {
		return "", false
	}
	return strings.ToUpper(matches[len(matches)-1]), true
}

// IsValidCompetitiveLevel requires non-Mite tokens to be exactly one of the
// competitive levels. Mite divisions are free-form and always pass.
func IsValidCompetitiveLevel(age types.AgeGroup, token string) bool {
	if age == types.Mites {
		return true
	}
	return competitiveFullRe.MatchString(strings.TrimSpace(strings.ToLower(token)))
}

var levelOrder = map[string]int{
	"AA": 1, "A": 2, "B": 3, "B1": 4, "B2": 5, "C": 6, "C1": 7, "C2": 8, "D": 9,
	"1": 10, "2": 11, "3": 12, "4": 13,
}

// LevelPriority ranks a level detail, AA first; unknown details sort last.
func LevelPriority(age types.AgeGroup, detail string) int {
	token := strings.ToUpper(whitespaceRe.ReplaceAllString(TokenOr(age, detail), ""))
	if p, ok := levelOrder[token]; ok {
		return p
	}
	return 99
}

func collapse(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(strings.ToLower(s), " "))
}
