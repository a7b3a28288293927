package classify

import (
	"regexp"
	"strconv"
	"time"
)

// SeasonRange is a season expressed as its start and end calendar years.
type SeasonRange struct {
	Start int
	End   int
}

var (
	seasonPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(20\d{2})-(20\d{2})`),
		regexp.MustCompile(`(20\d{2})-(\d{2})`),
		regexp.MustCompile(`(\d{2})-(\d{2})`),
	}
	singleYearRe = regexp.MustCompile(`\b(20\d{2})\b`)
)

// ExtractSeasonYearRange finds the first season marker in text. Patterns are
// tried in order: "2024-2025", "2024-25", "24-25", then a lone "2025" which
// is read as the start of the 2025-2026 season.
func ExtractSeasonYearRange(text string) (SeasonRange, bool) {
	for _, re := range seasonPatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			return SeasonRange{Start: fullYear(m[1]), End: fullYear(m[2])}, true
		}
	}
	if m := singleYearRe.FindStringSubmatch(text); m != nil {
		y, _ := strconv.Atoi(m[1])
		return SeasonRange{Start: y, End: y + 1}, true
	}
	return SeasonRange{}, false
}

func fullYear(s string) int {
	if len(s) == 2 {
		s = "20" + s
	}
	y, _ := strconv.Atoi(s)
	return y
}

// ExtractSeasonYear returns the start year of the season named in text.
func ExtractSeasonYear(text string) (int, bool) {
	r, ok := ExtractSeasonYearRange(text)
	return r.Start, ok
}

// CurrentSeasonYear returns the start year of the season in progress at now.
// Seasons roll over on August 1.
func CurrentSeasonYear(now time.Time) int {
	if now.Month() >= time.August {
		return now.Year()
	}
	return now.Year() - 1
}

// IsCurrentSeason reports whether text names the current season or the one
// after it. Text without a season marker is never current.
func IsCurrentSeason(text string, current int) bool {
	r, ok := ExtractSeasonYearRange(text)
	if !ok {
		return false
	}
	return (current >= r.Start && current <= r.End) || r.Start == current+1
}

// SeasonCheck applies the discovery-time season gate: text with a season
// marker must name the current or next season, text without one passes.
func SeasonCheck(text string, current int) bool {
	if _, ok := ExtractSeasonYearRange(text); !ok {
		return true
	}
	return IsCurrentSeason(text, current)
}
