package discovery

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/kareemsasa3/rinkcal/internal/calendar"
	"github.com/kareemsasa3/rinkcal/internal/classify"
	"github.com/kareemsasa3/rinkcal/internal/config"
	"github.com/kareemsasa3/rinkcal/internal/links"
	"github.com/kareemsasa3/rinkcal/internal/logger"
	"github.com/kareemsasa3/rinkcal/internal/metrics"
	"github.com/kareemsasa3/rinkcal/internal/page"
	"github.com/kareemsasa3/rinkcal/internal/types"
)

// DefaultMaxPages bounds one association crawl.
const DefaultMaxPages = 500

var (
	// h2 headings that name a level or colour are better titles than the h1
	levelIndicatorRe = regexp.MustCompile(`\b(A{1,2}|B[12]?|C|[Gg]old|[Pp]urple|[Bb]lack|[Ww]hite|[Bb]lue|[Rr]ed|[Gg]reen|[Mm]achine)\b`)

	homepageKeywords = classify.NewKeywords("teams", "travel", "youth", "programs", "boys", "girls", "hockey")

	linkLevelIndicators = []string{
		" a", " aa", " b1", " b2", " c", " gold", " purple", " black", " white",
		" blue", " red", " green", " orange", " grey", " gray", " navy", " royal",
	}
)

// Crawler discovers teams on server-rendered association sites.
type Crawler struct {
	fetcher    PageFetcher
	classifier *classify.Classifier
	resolver   *calendar.Resolver
	logger     *logger.Logger
	metrics    *metrics.PrometheusMetrics
	maxPages   int
	now        func() time.Time
}

// CrawlerOption customizes a Crawler.
type CrawlerOption func(*Crawler)

// WithMaxPages caps the number of pages scanned per association.
func WithMaxPages(n int) CrawlerOption {
	return func(c *Crawler) {
		if n > 0 {
			c.maxPages = n
		}
	}
}

// WithClock fixes the clock used to derive the current season.
func WithClock(now func() time.Time) CrawlerOption {
	return func(c *Crawler) { c.now = now }
}

// WithCrawlerMetrics attaches Prometheus collectors.
func WithCrawlerMetrics(m *metrics.PrometheusMetrics) CrawlerOption {
	return func(c *Crawler) { c.metrics = m }
}

// NewCrawler builds a Crawler. The resolver must share f so team pages are
// fetched once.
func NewCrawler(f PageFetcher, c *classify.Classifier, r *calendar.Resolver, log *logger.Logger, opts ...CrawlerOption) *Crawler {
	if log == nil {
		log = logger.NewNop()
	}
	cr := &Crawler{
		fetcher:    f,
		classifier: c,
		resolver:   r,
		logger:     log,
		maxPages:   DefaultMaxPages,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(cr)
	}
	return cr
}

// crawl is the per-association traversal state.
type crawl struct {
	assoc    config.AssociationConfig
	ages     classify.AgeSet
	baseHost string
	season   int

	toVisit *queue
	visited map[string]bool
	teams   []Candidate
	urls    map[string]bool
}

func (s *crawl) addTeam(t types.ScrapedTeam) {
	if s.urls[t.CalendarSyncURL] {
		return
	}
	s.urls[t.CalendarSyncURL] = true
	s.teams = append(s.teams, Candidate{Team: t})
}

// seasonOK rejects text that names a season other than the current or next.
func (s *crawl) seasonOK(text string) bool {
	return classify.SeasonCheck(text, s.season)
}

// Discover seeds the frontier with the homepage, probes, sitemap, overrides
// and homepage links, then scans pages until the frontier drains or the page
// cap is reached.
func (c *Crawler) Discover(ctx context.Context, assoc config.AssociationConfig, ages classify.AgeSet) ([]Candidate, error) {
	s := &crawl{
		assoc:    assoc,
		ages:     ages,
		baseHost: links.Hostname(assoc.BaseURL),
		season:   classify.CurrentSeasonYear(c.now()),
		toVisit:  newQueue(assoc.BaseURL),
		visited:  make(map[string]bool),
		urls:     make(map[string]bool),
	}

	if assoc.Probe != nil {
		for _, u := range probeTeamCalendars(ctx, c.fetcher, assoc.BaseURL, assoc.Probe) {
			s.toVisit.pushUnique(u)
		}
	}

	sitemap := fetchSitemap(ctx, c.fetcher, assoc.BaseURL)
	kept := 0
	for _, u := range sitemap {
		if links.HasSubseason(u) || !s.seasonOK(u) {
			continue
		}
		kept++
		if abs, ok := links.SameHostURL(assoc.BaseURL, u, s.baseHost); ok {
			s.toVisit.pushUnique(abs)
		}
	}
	if len(sitemap) > 0 {
		c.logger.Debug("Sitemap for %s: kept %d of %d URLs", assoc.Name, kept, len(sitemap))
	}

	if len(assoc.Overrides) > 0 {
		c.logger.Debug("Adding %d override URLs for %s", len(assoc.Overrides), assoc.Name)
		for _, u := range assoc.Overrides {
			s.toVisit.push(u)
		}
	}

	if body, ok := c.fetcher.Fetch(ctx, assoc.BaseURL); ok {
		if doc, err := page.Parse(body); err == nil {
			c.seedFromHomepage(s, doc)
		}
	}

	pageCount := 0
	for pageCount < c.maxPages {
		if err := ctx.Err(); err != nil {
			return s.teams, err
		}
		u, ok := s.toVisit.pop()
		if !ok {
			break
		}
		if s.visited[u] {
			continue
		}
		s.visited[u] = true
		pageCount++
		c.metrics.RecordPageScanned(assoc.Name)
		c.logger.Debug("Scanning page (%d/%d): %s", pageCount, c.maxPages, u)

		body, ok := c.fetcher.Fetch(ctx, u)
		if !ok {
			continue
		}
		doc, err := page.Parse(body)
		if err != nil {
			continue
		}
		if !c.scanPage(ctx, s, u, doc) {
			continue
		}
		c.harvestLinks(s, u, doc)
	}

	c.logger.Info("Scanned %d pages on %s, %d candidate teams", pageCount, assoc.Name, len(s.teams))
	return s.teams, nil
}

func (c *Crawler) seedFromHomepage(s *crawl, doc *page.Document) {
	base := s.assoc.BaseURL
	for _, a := range doc.Links() {
		text := strings.ToLower(strings.TrimSpace(a.Text))
		u, ok := links.SameHostURL(base, a.Href, s.baseHost)
		if !ok || links.IsLayoutTab(u) {
			continue
		}
		if !s.seasonOK(u) || !s.seasonOK(text) || links.HasSubseason(u) {
			continue
		}
		lowerHref := strings.ToLower(a.Href)
		matches := homepageKeywords.In(text) || homepageKeywords.In(lowerHref)
		if !matches {
			_, matches = s.ages.Allowed(text)
		}
		if matches {
			s.toVisit.pushUnique(u)
		}
	}
}

// pageTitle prefers the first h1, then an h2 that names a level or age group,
// then the part of <title> after the site name.
func pageTitle(doc *page.Document) string {
	title := doc.FirstText("h1")
	if _, ok := classify.DetectAgeGroup(title); title == "" || !ok {
		h2 := doc.FirstText("h2")
		_, h2HasAge := classify.DetectAgeGroup(h2)
		if levelIndicatorRe.MatchString(h2) || title == "" || (h2HasAge && !ok) {
			title = h2
		}
	}
	if title == "" {
		if t := doc.Title(); t != "" {
			title = t
			if parts := strings.Split(t, "|"); len(parts) > 1 {
				if p := strings.TrimSpace(parts[1]); p != "" {
					title = p
				}
			}
		}
	}
	return title
}

// scanPage records the page itself as a team when its title qualifies. It
// returns false when the page is noise and its links should not be followed.
func (c *Crawler) scanPage(ctx context.Context, s *crawl, u string, doc *page.Document) bool {
	title := pageTitle(doc)
	age, ok := s.ages.Allowed(title)
	if !ok {
		return true
	}
	if reject, rule := c.classifier.IsLikelyNonTeamPage(title, u); reject {
		c.logger.Debug("Skipping non-team page %q (%s)", title, rule)
		return false
	}

	detail := classify.ExtractLevelDetail(title, age)
	normalized := classify.NormalizeLevelDetail(age, detail)
	if c.classifier.ShouldSkipTeam(age, normalized, title) {
		c.logger.Debug("Skipping aggregate page %q", title)
		return true
	}
	if !strings.Contains(u, "/team/") && !strings.Contains(u, "/page/show/") &&
		strings.Contains(strings.ToLower(u), "/schedule") {
		c.logger.Debug("Skipping generic schedule page %s", u)
		return true
	}

	calendarURL, ok := c.resolver.FindCalendarURL(ctx, u)
	if !ok {
		return true
	}
	s.addTeam(newTeam(s.assoc.Name, age, title, levelToken(age, detail, normalized), calendarURL))
	return true
}

// harvestLinks queues navigation links at the front of the frontier and
// records links that already name a concrete team.
func (c *Crawler) harvestLinks(s *crawl, pageURL string, doc *page.Document) {
	for _, a := range doc.Links() {
		text := strings.TrimSpace(a.Text)
		abs, ok := links.SameHostURL(pageURL, a.Href, s.baseHost)
		if !ok || links.IsLayoutTab(abs) {
			continue
		}
		if !s.seasonOK(abs) || !s.seasonOK(text) || links.HasSubseason(abs) {
			continue
		}
		age, ok := s.ages.Allowed(text)
		if !ok {
			continue
		}
		if s.visited[abs] || strings.HasPrefix(abs, "webcal:") || strings.HasSuffix(abs, ".ics") {
			continue
		}
		if reject, _ := c.classifier.IsLikelyNonTeamPage(text, abs); reject {
			continue
		}

		lower := strings.ToLower(text)
		if isNavigationLink(lower) {
			if !s.toVisit.has(abs) {
				s.toVisit.pushFront(abs)
			}
			continue
		}
		if t, ok := teamFromName(c.classifier, s.assoc.Name, age, text, abs); ok {
			s.addTeam(t)
		}
	}
}

// isNavigationLink reports link text that names an age group without a
// level, or an explicit level index page.
func isNavigationLink(lowerText string) bool {
	for _, ind := range linkLevelIndicators {
		if strings.Contains(lowerText, ind) {
			return strings.Contains(lowerText, "level") || strings.Contains(lowerText, "page")
		}
	}
	return true
}
