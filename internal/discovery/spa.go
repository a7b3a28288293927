package discovery

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/kareemsasa3/rinkcal/internal/browser"
	"github.com/kareemsasa3/rinkcal/internal/classify"
	"github.com/kareemsasa3/rinkcal/internal/config"
	"github.com/kareemsasa3/rinkcal/internal/links"
	"github.com/kareemsasa3/rinkcal/internal/logger"
	"github.com/kareemsasa3/rinkcal/internal/page"
	"github.com/kareemsasa3/rinkcal/internal/types"
)

var (
	teamMenuNeedles = []string{"TEAM LIST", "TEAMS", "TRAVELING"}
	ageLinkTokens   = classify.NewKeywords("squirt", "bantam", "peewee", "mite", "10u", "12u", "15u", "u10", "u12", "u15")

	navigationTeamIDRe = regexp.MustCompile(`navigationTeamID=(\d+)`)
	subdomainRe        = regexp.MustCompile(`https?://(?:www\.)?([^./]+)`)
)

// ErrLaunch wraps failures to start the browser. Unlike page-level errors it
// means the association could not be examined at all.
var ErrLaunch = errors.New("launch browser")

// Session is a live browser tab.
type Session interface {
	Open(rawURL string, timeout time.Duration) error
	ClickLinkContaining(needles []string, wait time.Duration) (bool, error)
	ClickLinkWithText(text string, wait time.Duration) (bool, error)
	HTML() (string, error)
	Close()
}

// LaunchFunc starts a browser session.
type LaunchFunc func(ctx context.Context) (Session, error)

// ChromeLauncher adapts a browser.Launcher.
func ChromeLauncher(l *browser.Launcher) LaunchFunc {
	return func(ctx context.Context) (Session, error) {
		s, err := l.Launch(ctx)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// BrowserDiscoverer walks a client-rendered team menu.
type BrowserDiscoverer struct {
	launch     LaunchFunc
	classifier *classify.Classifier
	cfg        config.DiscoveryConfig
	logger     *logger.Logger
}

// NewBrowserDiscoverer builds a BrowserDiscoverer.
func NewBrowserDiscoverer(launch LaunchFunc, c *classify.Classifier, cfg config.DiscoveryConfig, log *logger.Logger) *BrowserDiscoverer {
	if log == nil {
		log = logger.NewNop()
	}
	return &BrowserDiscoverer{launch: launch, classifier: c, cfg: cfg, logger: log}
}

// menuLink is an age-group entry of the team menu.
type menuLink struct {
	Text string
	Href string
}

// Discover opens the homepage, clicks through to the team list and collects
// team links. Candidates carry final calendar URLs.
func (b *BrowserDiscoverer) Discover(ctx context.Context, assoc config.AssociationConfig, ages classify.AgeSet) ([]Candidate, error) {
	sess, err := b.launch(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLaunch, err)
	}
	defer sess.Close()

	timeout := b.cfg.HeadlessTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if err := sess.Open(assoc.BaseURL, timeout); err != nil {
		return nil, err
	}
	if clicked, err := sess.ClickLinkContaining(teamMenuNeedles, b.cfg.MenuClickWait); err != nil || !clicked {
		b.logger.Debug("No team list link on %s, continuing", assoc.BaseURL)
	}

	html, err := sess.HTML()
	if err != nil {
		return nil, err
	}
	groups, err := ageMenuLinks(html, assoc.BaseURL, ages)
	if err != nil {
		return nil, err
	}
	b.logger.Debug("Found %d age group menu entries on %s", len(groups), assoc.Name)

	var out []Candidate
	seen := make(map[string]bool)
	add := func(t types.ScrapedTeam) {
		key := string(t.TeamLevel) + "-" + t.LevelDetail + "-" + t.CalendarSyncURL
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, Candidate{Team: t, Resolved: true})
	}

	for _, g := range groups {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		if strings.Contains(strings.ToLower(g.Text), "team") {
			if _, err := sess.ClickLinkWithText(g.Text, b.cfg.SubmenuClickWait); err != nil {
				b.logger.Warn("Error opening %s on %s: %v", g.Text, assoc.Name, err)
				continue
			}
			sub, err := sess.HTML()
			if err != nil {
				b.logger.Warn("Error reading %s on %s: %v", g.Text, assoc.Name, err)
				continue
			}
			teamLinks, err := navigationTeamLinks(sub, assoc.BaseURL)
			if err != nil {
				continue
			}
			for _, tl := range teamLinks {
				if t, ok := b.spaTeam(assoc, ages, tl.Text, tl.Href); ok {
					add(t)
				}
			}
			continue
		}
		if strings.Contains(g.Href, "navigationTeamID") {
			if t, ok := b.spaTeam(assoc, ages, g.Text, g.Href); ok {
				add(t)
			}
		}
	}
	b.logger.Info("Found %d teams on %s via browser", len(out), assoc.Name)
	return out, nil
}

func (b *BrowserDiscoverer) spaTeam(assoc config.AssociationConfig, ages classify.AgeSet, name, href string) (types.ScrapedTeam, bool) {
	age, ok := ages.Allowed(name)
	if !ok {
		return types.ScrapedTeam{}, false
	}
	teamID := ""
	if m := navigationTeamIDRe.FindStringSubmatch(href); m != nil {
		teamID = m[1]
	}
	calendarURL, ok := SprocketCalendarURL(assoc.BaseURL, href, teamID)
	if !ok {
		return types.ScrapedTeam{}, false
	}
	return teamFromName(b.classifier, assoc.Name, age, name, calendarURL)
}

// ageMenuLinks returns menu anchors naming an allowed age group.
func ageMenuLinks(html, base string, ages classify.AgeSet) ([]menuLink, error) {
	doc, err := page.Parse(html)
	if err != nil {
		return nil, err
	}
	var out []menuLink
	for _, a := range doc.Links() {
		lower := strings.ToLower(a.Text)
		if !ageLinkTokens.In(lower) {
			continue
		}
		text := strings.TrimSpace(a.Text)
		if _, ok := ages.Allowed(text); !ok {
			continue
		}
		out = append(out, menuLink{Text: text, Href: links.Normalize(base, a.Href)})
	}
	return out, nil
}

// navigationTeamLinks returns named anchors that carry a team ID.
func navigationTeamLinks(html, base string) ([]menuLink, error) {
	doc, err := page.Parse(html)
	if err != nil {
		return nil, err
	}
	var out []menuLink
	for _, a := range doc.LinksMatching(`a[href*="navigationTeamID"]`) {
		name := strings.TrimSpace(a.Text)
		if name == "" || !navigationTeamIDRe.MatchString(a.Href) {
			continue
		}
		out = append(out, menuLink{Text: name, Href: links.Normalize(base, a.Href)})
	}
	return out, nil
}

// SprocketCalendarURL derives the feed of a hosted team. A team ID yields the
// platform's webcal feed on the association's subdomain; without one, a
// schedule or calendar href is used as is.
func SprocketCalendarURL(base, href, teamID string) (string, bool) {
	if teamID != "" {
		sub := links.Hostname(base)
		if m := subdomainRe.FindStringSubmatch(base); m != nil {
			sub = m[1]
		}
		return fmt.Sprintf("webcal://%s.sprocketsports.com/ical?team=%s", sub, teamID), true
	}
	if href == "" {
		return "", false
	}
	abs := links.Normalize(base, href)
	if strings.Contains(abs, "/schedule") || strings.Contains(abs, "/calendar") {
		return abs, true
	}
	return "", false
}

var _ Discoverer = (*BrowserDiscoverer)(nil)
var _ Discoverer = (*Crawler)(nil)
var _ Session = (*browser.Session)(nil)
