// Package verify spot-checks the calendar URLs of a scraped team list. Feeds
// are downloaded and their events counted; HTML calendar pages are scanned
// for event markup.
package verify

import (
	"context"
	"math"
	"math/rand"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/kareemsasa3/rinkcal/internal/calendar"
	"github.com/kareemsasa3/rinkcal/internal/logger"
	"github.com/kareemsasa3/rinkcal/internal/types"
)

// Status is the verdict for one calendar URL.
type Status string

const (
	StatusValid Status = "valid"
	StatusEmpty Status = "empty"
	StatusError Status = "error"
)

// Result is the check of one team's calendar. Event counts are -1 when the
// page could not be examined without a browser.
type Result struct {
	Association  string         `json:"association"`
	Team         string         `json:"team"`
	AgeGroup     types.AgeGroup `json:"age_group"`
	LevelDetail  string         `json:"level_detail"`
	URL          string         `json:"url"`
	Status       Status         `json:"status"`
	TotalEvents  int            `json:"total_events"`
	FutureEvents int            `json:"future_events"`
	Note         string         `json:"note,omitempty"`
}

// Summary tallies a verification run.
type Summary struct {
	Valid  int `json:"valid"`
	Empty  int `json:"empty"`
	Errors int `json:"errors"`
	Total  int `json:"total"`
}

// Fetcher is the subset of the polite fetcher a Verifier needs.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (string, bool)
	FetchFeed(ctx context.Context, feedURL string) (string, error)
}

var (
	dtstartRe      = regexp.MustCompile(`(?i)DTSTART[^:\r\n]*:([^\r\n]+)`)
	scheduleItemRe = regexp.MustCompile(`(?i)class="[^"]*schedule-item[^"]*"`)
	calEventRe     = regexp.MustCompile(`(?i)class="[^"]*calendar-event[^"]*"`)
	eventTypeRe    = regexp.MustCompile(`(?i)class="[^"]*event-type[^"]*"`)
	eventDivRe     = regexp.MustCompile(`(?i)<div[^>]*class="[^"]*event[^"]*"[^>]*>`)
	clockTimeRe    = regexp.MustCompile(`\b\d{1,2}:\d{2}\s*(?:AM|PM|am|pm)?\b`)
	noEventsRe     = regexp.MustCompile(`(?i)no\s+(?:scheduled\s+)?events|calendar\s+is\s+empty|no\s+games\s+scheduled`)
	teamPathRe     = regexp.MustCompile(`/team/\d+(?:/calendar)?`)
)

// Verifier checks calendar URLs through a shared fetcher, so host pacing
// applies across the whole run.
type Verifier struct {
	fetcher  Fetcher
	resolver *calendar.Resolver
	logger   *logger.Logger
	now      func() time.Time
}

// New builds a Verifier over f.
func New(f Fetcher, log *logger.Logger) *Verifier {
	if log == nil {
		log = logger.NewNop()
	}
	return &Verifier{
		fetcher:  f,
		resolver: calendar.NewResolver(f, log),
		logger:   log,
		now:      time.Now,
	}
}

// IsFeedURL reports URLs that serve iCalendar data directly.
func IsFeedURL(u string) bool {
	return strings.HasPrefix(u, "webcal://") ||
		strings.Contains(u, "/ical_feed") ||
		strings.Contains(u, ".ics") ||
		strings.Contains(u, "/ical?")
}

func isCalendarPage(u string) bool {
	return teamPathRe.MatchString(u) || strings.Contains(u, "/schedule") || strings.Contains(u, "/calendar")
}

// Check verifies one URL. Pages that are neither feeds nor calendar views
// are resolved to a feed first.
func (v *Verifier) Check(ctx context.Context, rawURL string) Result {
	switch {
	case IsFeedURL(rawURL):
		return v.checkFeed(ctx, rawURL)
	case isCalendarPage(rawURL):
		return v.checkPage(ctx, rawURL)
	}
	if feed, ok := v.resolver.FindCalendarURL(ctx, rawURL); ok && IsFeedURL(feed) {
		r := v.checkFeed(ctx, feed)
		r.URL = rawURL
		if r.Note != "" {
			r.Note = "resolved to " + feed + ": " + r.Note
		} else {
			r.Note = "resolved to " + feed
		}
		return r
	}
	return v.checkPage(ctx, rawURL)
}

func (v *Verifier) checkFeed(ctx context.Context, feedURL string) Result {
	r := Result{URL: feedURL}
	body, err := v.fetcher.FetchFeed(ctx, feedURL)
	if err != nil {
		r.Status = StatusError
		r.Note = err.Error()
		return r
	}
	if strings.Contains(body, "<!DOCTYPE") || strings.Contains(body, "<html") {
		r.Status = StatusError
		r.Note = "feed returned HTML instead of iCalendar data"
		return r
	}

	r.TotalEvents = strings.Count(strings.ToUpper(body), "BEGIN:VEVENT")
	now := v.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	for _, start := range eventStarts(body, now.Location()) {
		if !start.Before(today) {
			r.FutureEvents++
		}
	}
	r.Status = StatusValid
	if r.TotalEvents == 0 || r.FutureEvents == 0 {
		r.Status = StatusEmpty
	}
	return r
}

// eventStarts parses every DTSTART value. Floating times are read in loc.
func eventStarts(body string, loc *time.Location) []time.Time {
	var out []time.Time
	for _, m := range dtstartRe.FindAllStringSubmatch(body, -1) {
		if t, ok := parseStart(strings.TrimSpace(m[1]), loc); ok {
			out = append(out, t)
		}
	}
	return out
}

func parseStart(value string, loc *time.Location) (time.Time, bool) {
	if i := strings.LastIndex(value, ":"); i >= 0 {
		value = value[i+1:]
	}
	layouts := []struct {
		layout string
		loc    *time.Location
	}{
		{"20060102", loc},
		{"20060102T150405Z", time.UTC},
		{"20060102T150405", loc},
	}
	for _, l := range layouts {
		if t, err := time.ParseInLocation(l.layout, value, l.loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// checkPage estimates the event count of an HTML calendar from its markup.
func (v *Verifier) checkPage(ctx context.Context, pageURL string) Result {
	r := Result{URL: pageURL}
	html, ok := v.fetcher.Fetch(ctx, pageURL)
	if !ok {
		r.Status = StatusError
		r.Note = "page unavailable"
		return r
	}

	if strings.Contains(html, "<app-root") || strings.Contains(html, `id="root"`) || strings.Contains(html, `id="app"`) {
		r.Status = StatusValid
		r.TotalEvents, r.FutureEvents = -1, -1
		r.Note = "client-rendered page, events not counted"
		return r
	}

	var markers []string
	count := func(re *regexp.Regexp, label string) int {
		n := len(re.FindAllStringIndex(html, -1))
		if n > 0 {
			markers = append(markers, strconv.Itoa(n)+" "+label)
		}
		return n
	}
	events := count(scheduleItemRe, "schedule-items") +
		count(calEventRe, "calendar-events") +
		count(eventTypeRe, "event-types")
	if events == 0 {
		events = count(eventDivRe, "event-divs")
	}
	if n := len(clockTimeRe.FindAllStringIndex(html, -1)); n > 3 {
		markers = append(markers, strconv.Itoa(n)+" times")
	}

	if noEventsRe.MatchString(html) {
		r.Status = StatusEmpty
		r.Note = "calendar says no events are scheduled"
		return r
	}
	if len(markers) == 0 {
		r.Status = StatusEmpty
		r.Note = "no calendar content found"
		return r
	}
	r.Status = StatusValid
	r.TotalEvents, r.FutureEvents = events, events
	r.Note = "html calendar: " + strings.Join(markers, ", ")
	return r
}

// Run checks each team in order. onResult, when set, is called after every
// check with its 1-based position. A canceled ctx stops the run and returns
// what was checked so far.
func (v *Verifier) Run(ctx context.Context, teams []types.ScrapedTeam, onResult func(i, total int, r Result)) ([]Result, Summary, error) {
	results := make([]Result, 0, len(teams))
	var s Summary
	for i, t := range teams {
		if err := ctx.Err(); err != nil {
			return results, s, err
		}
		r := v.Check(ctx, t.CalendarSyncURL)
		r.Association = t.AssociationName
		r.Team = t.Name
		r.AgeGroup = t.TeamLevel
		r.LevelDetail = t.LevelDetail
		r.URL = t.CalendarSyncURL

		switch r.Status {
		case StatusValid:
			s.Valid++
		case StatusEmpty:
			s.Empty++
		default:
			s.Errors++
		}
		s.Total++
		results = append(results, r)
		v.logger.Debug("Verified %s / %s: %s", r.Association, r.Team, r.Status)
		if onResult != nil {
			onResult(i+1, len(teams), r)
		}
	}
	return results, s, nil
}

// Eligible keeps teams that name an association and carry a calendar URL.
func Eligible(teams []types.ScrapedTeam) []types.ScrapedTeam {
	out := make([]types.ScrapedTeam, 0, len(teams))
	for _, t := range teams {
		if t.AssociationName != "" && strings.TrimSpace(t.CalendarSyncURL) != "" {
			out = append(out, t)
		}
	}
	return out
}

// Sample picks a subset to verify: one random team per association, then
// random others until fraction of the list (at most limit) is covered. The
// per-association picks are kept even when they exceed limit. The sample keeps
// input order.
func Sample(teams []types.ScrapedTeam, fraction float64, limit int, rnd *rand.Rand) []types.ScrapedTeam {
	if len(teams) == 0 {
		return nil
	}
	byAssoc := make(map[string][]int)
	var order []string
	for i, t := range teams {
		if _, ok := byAssoc[t.AssociationName]; !ok {
			order = append(order, t.AssociationName)
		}
		byAssoc[t.AssociationName] = append(byAssoc[t.AssociationName], i)
	}

	picked := make(map[int]bool, len(order))
	for _, name := range order {
		idx := byAssoc[name]
		picked[idx[rnd.Intn(len(idx))]] = true
	}

	target := int(math.Ceil(float64(len(teams)) * fraction))
	if target < len(picked) {
		target = len(picked)
	}
	if target > limit {
		target = limit
	}
	if len(picked) < target {
		var rest []int
		for i := range teams {
			if !picked[i] {
				rest = append(rest, i)
			}
		}
		rnd.Shuffle(len(rest), func(a, b int) { rest[a], rest[b] = rest[b], rest[a] })
		for _, i := range rest {
			if len(picked) >= target {
				break
			}
			picked[i] = true
		}
	}

	idx := make([]int, 0, len(picked))
	for i := range picked {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	out := make([]types.ScrapedTeam, len(idx))
	for k, i := range idx {
		out[k] = teams[i]
	}
	return out
}
