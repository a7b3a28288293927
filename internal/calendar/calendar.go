// Package calendar resolves a team page to a subscribable calendar feed URL.
package calendar

import (
	"context"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/kareemsasa3/rinkcal/internal/links"
	"github.com/kareemsasa3/rinkcal/internal/logger"
	"github.com/kareemsasa3/rinkcal/internal/page"
)

// MicrositeOrigin hosts the embedded season schedules of some team sites.
const MicrositeOrigin = "https://season-microsites.ui.sportsengine.com"

var (
	pageShowRe  = regexp.MustCompile(`/page/show/(\d+)`)
	micrositeRe = regexp.MustCompile(`(?i)(?:season-microsites\.ui\.sportsengine\.com)?/seasons/[^/]+/teams/[^/?#]+`)
	pathParamRe = regexp.MustCompile(`path=([^&]+)`)
	pageIDRe    = regexp.MustCompile(`(?:tags=|page/show/|/team/|team=)(\d+)`)
)

// PageFetcher returns page bodies; ok is false when the page is unavailable.
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (string, bool)
}

// Resolver finds the calendar feed behind a team page.
type Resolver struct {
	fetcher PageFetcher
	logger  *logger.Logger
}

// NewResolver builds a Resolver over f.
func NewResolver(f PageFetcher, log *logger.Logger) *Resolver {
	if log == nil {
		log = logger.NewNop()
	}
	return &Resolver{fetcher: f, logger: log}
}

// IsValidCalendarURL reports URLs that look like a feed or a schedule view.
func IsValidCalendarURL(u string) bool {
	return strings.HasPrefix(u, "webcal://") ||
		strings.Contains(u, "/ical_feed") ||
		strings.Contains(u, ".ics") ||
		strings.Contains(u, "/calendar") ||
		strings.Contains(u, "/schedule") ||
		strings.Contains(u, "season-microsites.ui.sportsengine.com/seasons/")
}

// FeedURL is the tag-filtered iCal feed of a numbered page on teamURL's host.
func FeedURL(teamURL, id string) string {
	return "webcal://" + links.Hostname(teamURL) + "/ical_feed?tags=" + id
}

// PageID extracts the numeric identifier a team URL carries, if any.
func PageID(u string) (int, bool) {
	m := pageIDRe.FindStringSubmatch(u)
	if m == nil {
		return 0, false
	}
	id, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return id, true
}

// FindCalendarURL resolves teamURL. Strategies are tried in order:
//
//  1. the first anchor that is a feed (webcal, .ics, ical_feed) or a season microsite
//  2. a season-microsite script embed
//  3. the feed of the page's own /page/show/<id>
//  4. the feed of the last "home" or "team" anchor carrying a page id
//  5. teamURL itself when it is already a calendar or schedule view
//  6. the last same-host "schedule" or "calendar" anchor
//
// When the page cannot be fetched only step 3 is attempted.
func (r *Resolver) FindCalendarURL(ctx context.Context, teamURL string) (string, bool) {
	idMatch := pageShowRe.FindStringSubmatch(teamURL)
	body, ok := r.fetcher.Fetch(ctx, teamURL)
	if !ok {
		if idMatch != nil {
			return FeedURL(teamURL, idMatch[1]), true
		}
		return "", false
	}
	doc, err := page.Parse(body)
	if err != nil {
		r.logger.Debug("Unparsable team page %s: %v", teamURL, err)
		if idMatch != nil {
			return FeedURL(teamURL, idMatch[1]), true
		}
		return "", false
	}
	anchors := doc.Links()

	best := ""
	for _, a := range anchors {
		if strings.HasPrefix(a.Href, "webcal://") || strings.Contains(a.Href, ".ics") ||
			strings.Contains(a.Href, "ical_feed") || micrositeRe.MatchString(a.Href) {
			best = links.Normalize(teamURL, a.Href)
			break
		}
	}
	if best == "" {
		best = micrositeFromScripts(doc, teamURL)
	}
	if best != "" && IsValidCalendarURL(best) {
		return best, true
	}

	if idMatch != nil {
		return FeedURL(teamURL, idMatch[1]), true
	}

	pageID := ""
	for _, a := range anchors {
		m := pageShowRe.FindStringSubmatch(a.Href)
		if m == nil {
			continue
		}
		text := strings.ToLower(strings.TrimSpace(a.Text))
		if text == "home" || strings.Contains(text, "team") {
			pageID = m[1]
		}
	}
	if pageID != "" {
		return FeedURL(teamURL, pageID), true
	}

	if strings.Contains(teamURL, "/calendar") || strings.Contains(teamURL, "/schedule") {
		return teamURL, true
	}

	host := links.Hostname(teamURL)
	schedule := ""
	for _, a := range anchors {
		text := strings.ToLower(a.Text)
		if !strings.Contains(text, "schedule") && !strings.Contains(text, "calendar") {
			continue
		}
		abs := links.Normalize(teamURL, a.Href)
		if abs != teamURL && strings.Contains(abs, host) {
			schedule = abs
		}
	}
	if schedule != "" && IsValidCalendarURL(schedule) {
		return schedule, true
	}
	return "", false
}

func micrositeFromScripts(doc *page.Document, teamURL string) string {
	for _, src := range doc.Attrs(`script[src*="season-microsites"]`, "src") {
		m := pathParamRe.FindStringSubmatch(links.Normalize(teamURL, src))
		if m == nil {
			continue
		}
		decoded, err := url.PathUnescape(m[1])
		if err != nil {
			continue
		}
		if micrositeRe.MatchString(decoded) {
			return MicrositeOrigin + decoded
		}
	}
	return ""
}
