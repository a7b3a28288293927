package discovery

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/kareemsasa3/rinkcal/internal/classify"
	"github.com/kareemsasa3/rinkcal/internal/config"
	"github.com/kareemsasa3/rinkcal/internal/links"
	"github.com/kareemsasa3/rinkcal/internal/page"
)

var sitemapKeywords = classify.NewKeywords(
	"team", "bantam", "squirt", "peewee", "pee-wee", "pee wee", "mite", "travel", "youth",
	"pw-", "btm-", "bn-", "sq-", "10u", "u10", "12u", "u12", "15u", "u15",
)

// fetchSitemap returns the sitemap locations that look team-related.
func fetchSitemap(ctx context.Context, f PageFetcher, base string) []string {
	body, ok := f.Fetch(ctx, links.Normalize(base, "/sitemap.xml"))
	if !ok {
		return nil
	}
	doc, err := page.Parse(body)
	if err != nil {
		return nil
	}
	var out []string
	for _, loc := range doc.Locs() {
		lower := strings.ToLower(loc)
		if links.IsLayoutTab(lower) {
			continue
		}
		if sitemapKeywords.In(lower) {
			out = append(out, loc)
		}
	}
	return out
}

var (
	teamCalendarPathRe = regexp.MustCompile(`(?i)/team/(\d+)/calendar`)
	teamIDPropRe       = regexp.MustCompile(`teamId\\":(\d+)`)
)

// probeTeamCalendars harvests team calendar pages for sites that never link
// them: calendar paths and embedded team IDs on the homepage, then every ID
// of the configured ranges.
func probeTeamCalendars(ctx context.Context, f PageFetcher, base string, probe *config.ProbeConfig) []string {
	root := strings.TrimRight(base, "/")
	seen := make(map[string]bool)
	var out []string
	add := func(u string) {
		if !seen[u] {
			seen[u] = true
			out = append(out, u)
		}
	}
	if body, ok := f.Fetch(ctx, base); ok {
		for _, m := range teamCalendarPathRe.FindAllString(body, -1) {
			add(links.Normalize(base, m))
		}
		for _, m := range teamIDPropRe.FindAllStringSubmatch(body, -1) {
			add(fmt.Sprintf("%s/team/%s/calendar", root, m[1]))
		}
	}
	for _, r := range probe.Ranges {
		for id := r.Start; id <= r.End; id++ {
			add(fmt.Sprintf("%s/team/%d/calendar", root, id))
		}
	}
	return out
}
