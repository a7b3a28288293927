// Package reconcile turns raw discovery candidates into the final team list:
// season preference, calendar resolution, empty-feed filtering, duplicate
// and variant collapsing, and ordering.
package reconcile

import (
	"context"
	"sort"
	"strings"

	"github.com/kareemsasa3/rinkcal/internal/calendar"
	"github.com/kareemsasa3/rinkcal/internal/classify"
	"github.com/kareemsasa3/rinkcal/internal/discovery"
	"github.com/kareemsasa3/rinkcal/internal/logger"
	"github.com/kareemsasa3/rinkcal/internal/metrics"
	"github.com/kareemsasa3/rinkcal/internal/types"
)

// Resolver maps a team page to its calendar URL.
type Resolver interface {
	FindCalendarURL(ctx context.Context, teamURL string) (string, bool)
}

// EventCounter counts VEVENT blocks in a feed, -1 when it cannot be fetched.
type EventCounter interface {
	CountEvents(ctx context.Context, feedURL string) int
}

// Reconciler runs the post-discovery stages for one association at a time.
type Reconciler struct {
	resolver Resolver
	counter  EventCounter
	logger   *logger.Logger
	metrics  *metrics.PrometheusMetrics
}

// New builds a Reconciler. m may be nil.
func New(r Resolver, c EventCounter, log *logger.Logger, m *metrics.PrometheusMetrics) *Reconciler {
	if log == nil {
		log = logger.NewNop()
	}
	return &Reconciler{resolver: r, counter: c, logger: log, metrics: m}
}

// Input is everything known about one association after discovery.
type Input struct {
	Association string
	Candidates  []discovery.Candidate
	Seeds       []types.ScrapedTeam
	Ages        classify.AgeSet
	Season      int // current season start year
}

type entry struct {
	team     types.ScrapedTeam
	hint     int // season year seen before resolution replaced the URL
	resolved bool
}

// Reconcile runs every stage in order and returns the sorted team list.
func (r *Reconciler) Reconcile(ctx context.Context, in Input) []types.ScrapedTeam {
	entries := make([]entry, 0, len(in.Candidates)+len(in.Seeds))
	for _, c := range in.Candidates {
		entries = append(entries, entry{team: c.Team, resolved: c.Resolved})
	}
	for _, s := range in.Seeds {
		entries = append(entries, entry{team: s})
	}
	total := len(entries)

	entries = preferCurrentSeason(entries, in.Season)
	entries = scopeAges(entries, in.Ages)
	r.logger.Debug("%s: %d of %d candidates after season and age filtering", in.Association, len(entries), total)

	entries = r.resolve(ctx, in.Association, entries)
	entries = r.dropEmptyFeeds(ctx, in.Association, entries)
	entries = dedupeByURL(entries)
	entries = latestSeason(entries)
	teams := canonicalize(entries)
	teams = appendMissingSeeds(teams, in.Seeds, in.Ages)
	SortTeams(teams)
	return teams
}

// Finalize is the reduced pipeline for candidates whose calendar URLs are
// already final: de-duplication by (age, token, URL), seed re-append, sort.
func (r *Reconciler) Finalize(in Input) []types.ScrapedTeam {
	seen := make(map[string]bool)
	var teams []types.ScrapedTeam
	for _, c := range in.Candidates {
		if !in.Ages[c.Team.TeamLevel] {
			continue
		}
		key := strings.ToLower(tokenKey(c.Team) + "-" + c.Team.CalendarSyncURL)
		if seen[key] {
			continue
		}
		seen[key] = true
		teams = append(teams, c.Team)
	}
	teams = appendMissingSeeds(teams, in.Seeds, in.Ages)
	SortTeams(teams)
	return teams
}

func token(t types.ScrapedTeam) string {
	return classify.TokenOr(t.TeamLevel, t.LevelDetail)
}

func tokenKey(t types.ScrapedTeam) string {
	return string(t.TeamLevel) + "-" + token(t)
}

func isCurrent(t types.ScrapedTeam, season int) bool {
	return classify.IsCurrentSeason(t.Name, season) || classify.IsCurrentSeason(t.CalendarSyncURL, season)
}

// seasonYear reads the season start from the URL, then the name; 0 if none.
func seasonYear(t types.ScrapedTeam) int {
	if y, ok := classify.ExtractSeasonYear(t.CalendarSyncURL); ok {
		return y
	}
	y, _ := classify.ExtractSeasonYear(t.Name)
	return y
}

func pageID(u string) int {
	id, _ := calendar.PageID(u)
	return id
}

// preferCurrentSeason merges candidates sharing (age, token, name). A
// current-season candidate beats a stale one; otherwise the later season,
// then a dated candidate over an undated one, then the larger page ID.
func preferCurrentSeason(entries []entry, season int) []entry {
	m := newOrdered[entry]()
	for _, e := range entries {
		key := strings.ToLower(tokenKey(e.team) + "-" + e.team.Name)
		existing, ok := m.get(key)
		if !ok {
			m.set(key, e)
			continue
		}
		newCur, oldCur := isCurrent(e.team, season), isCurrent(existing.team, season)
		switch {
		case newCur && !oldCur:
			m.set(key, e)
		case !newCur && oldCur:
		default:
			ny, oy := seasonYear(e.team), seasonYear(existing.team)
			switch {
			case ny > 0 && oy > 0 && ny > oy:
				m.set(key, e)
			case ny > 0 && oy == 0:
				m.set(key, e)
			case ny == 0 && oy == 0:
				nid, oid := pageID(e.team.CalendarSyncURL), pageID(existing.team.CalendarSyncURL)
				if nid > 0 && oid > 0 && nid > oid {
					m.set(key, e)
				}
			}
		}
	}
	return m.list()
}

func scopeAges(entries []entry, ages classify.AgeSet) []entry {
	out := entries[:0]
	for _, e := range entries {
		if ages[e.team.TeamLevel] {
			out = append(out, e)
		}
	}
	return out
}

// resolve replaces each page URL with its calendar URL. Candidates that
// resolve to nothing survive only when their URL is already calendar-shaped.
func (r *Reconciler) resolve(ctx context.Context, assoc string, entries []entry) []entry {
	out := make([]entry, 0, len(entries))
	for _, e := range entries {
		e.hint = seasonYear(e.team)
		if !e.resolved {
			if u, ok := r.resolver.FindCalendarURL(ctx, e.team.CalendarSyncURL); ok {
				e.team.CalendarSyncURL = u
			} else if !calendar.IsValidCalendarURL(e.team.CalendarSyncURL) {
				r.logger.Debug("%s: no calendar for %s", assoc, e.team.Name)
				continue
			}
		}
		out = append(out, e)
	}
	return out
}

// dropEmptyFeeds removes feed-shaped URLs whose feed has no events. Feeds
// that cannot be fetched are kept.
func (r *Reconciler) dropEmptyFeeds(ctx context.Context, assoc string, entries []entry) []entry {
	out := make([]entry, 0, len(entries))
	for _, e := range entries {
		u := e.team.CalendarSyncURL
		if strings.Contains(u, "ical_feed") || strings.HasPrefix(u, "webcal://") {
			if r.counter.CountEvents(ctx, u) == 0 {
				r.logger.Debug("%s: dropping empty calendar %s", assoc, e.team.Name)
				r.metrics.RecordEmptyFeed(assoc)
				continue
			}
		}
		out = append(out, e)
	}
	return out
}

// dedupeByURL keeps one entry per (age, token, calendar URL), the shorter name.
func dedupeByURL(entries []entry) []entry {
	m := newOrdered[entry]()
	for _, e := range entries {
		key := strings.ToLower(tokenKey(e.team) + "-" + e.team.CalendarSyncURL)
		existing, ok := m.get(key)
		if !ok || len(e.team.Name) < len(existing.team.Name) {
			m.set(key, e)
		}
	}
	return m.list()
}

// latestSeason keeps, per (age, token), only entries of the latest season.
// Groups with no season information keep every entry so colour variants
// survive.
func latestSeason(entries []entry) []entry {
	type dated struct {
		e      entry
		season int
	}
	groups := newOrdered[[]dated]()
	for _, e := range entries {
		key := strings.ToLower(tokenKey(e.team))
		season := e.hint
		if season == 0 {
			season = seasonYear(e.team)
		}
		g, _ := groups.get(key)
		groups.set(key, append(g, dated{e: e, season: season}))
	}
	var out []entry
	for _, g := range groups.list() {
		max := 0
		for _, d := range g {
			if d.season > max {
				max = d.season
			}
		}
		for _, d := range g {
			if max == 0 || d.season == max {
				out = append(out, d.e)
			}
		}
	}
	return out
}

// canonicalize collapses, per (age, token), URLs that point at the same page:
// a webcal form replaces a non-webcal entry with the same page ID, while
// entries with distinct page IDs are distinct teams. On an exact URL match
// the webcal form, then the larger page ID, then the shorter name wins.
func canonicalize(entries []entry) []types.ScrapedTeam {
	groups := newOrdered[*ordered[types.ScrapedTeam]]()
	for _, e := range entries {
		t := e.team
		gk := strings.ToLower(tokenKey(t))
		byURL, ok := groups.get(gk)
		if !ok {
			byURL = newOrdered[types.ScrapedTeam]()
			groups.set(gk, byURL)
		}
		urlKey := strings.ToLower(t.CalendarSyncURL)
		isWebcal := strings.HasPrefix(t.CalendarSyncURL, "webcal://")

		existing, ok := byURL.get(urlKey)
		if !ok {
			id := pageID(t.CalendarSyncURL)
			var same *types.ScrapedTeam
			for _, v := range byURL.list() {
				if pageID(v.CalendarSyncURL) == id {
					v := v
					same = &v
					break
				}
			}
			switch {
			case same == nil:
				byURL.set(urlKey, t)
			case isWebcal && !strings.HasPrefix(same.CalendarSyncURL, "webcal://"):
				byURL.del(strings.ToLower(same.CalendarSyncURL))
				byURL.set(urlKey, t)
			}
			continue
		}

		oldID, newID := pageID(existing.CalendarSyncURL), pageID(t.CalendarSyncURL)
		switch {
		case isWebcal && !strings.HasPrefix(existing.CalendarSyncURL, "webcal://"):
			byURL.set(urlKey, t)
		case newID > oldID:
			byURL.set(urlKey, t)
		case newID == oldID && len(t.Name) < len(existing.Name):
			byURL.set(urlKey, t)
		}
	}
	var out []types.ScrapedTeam
	for _, byURL := range groups.list() {
		out = append(out, byURL.list()...)
	}
	return out
}

func appendMissingSeeds(teams, seeds []types.ScrapedTeam, ages classify.AgeSet) []types.ScrapedTeam {
	for _, s := range seeds {
		if !ages[s.TeamLevel] {
			continue
		}
		found := false
		for _, t := range teams {
			if t.CalendarSyncURL == s.CalendarSyncURL {
				found = true
				break
			}
		}
		if !found {
			teams = append(teams, s)
		}
	}
	return teams
}

// SortTeams orders by age seniority, level rank, then name.
func SortTeams(teams []types.ScrapedTeam) {
	sort.SliceStable(teams, func(i, j int) bool {
		a, b := teams[i], teams[j]
		if pa, pb := a.TeamLevel.Priority(), b.TeamLevel.Priority(); pa != pb {
			return pa < pb
		}
		la, lb := classify.LevelPriority(a.TeamLevel, a.LevelDetail), classify.LevelPriority(b.TeamLevel, b.LevelDetail)
		if la != lb {
			return la < lb
		}
		if na, nb := strings.ToLower(a.Name), strings.ToLower(b.Name); na != nb {
			return na < nb
		}
		return a.Name < b.Name
	})
}
