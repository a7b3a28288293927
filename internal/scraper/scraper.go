// Package scraper composes discovery, calendar resolution and reconciliation
// into the per-association pipeline, and drives batches of associations.
package scraper

import (
	"context"
	"errors"
	"time"

	"github.com/kareemsasa3/rinkcal/internal/browser"
	"github.com/kareemsasa3/rinkcal/internal/calendar"
	"github.com/kareemsasa3/rinkcal/internal/classify"
	"github.com/kareemsasa3/rinkcal/internal/config"
	"github.com/kareemsasa3/rinkcal/internal/discovery"
	"github.com/kareemsasa3/rinkcal/internal/fetcher"
	"github.com/kareemsasa3/rinkcal/internal/logger"
	"github.com/kareemsasa3/rinkcal/internal/metrics"
	"github.com/kareemsasa3/rinkcal/internal/reconcile"
	"github.com/kareemsasa3/rinkcal/internal/types"
)

// Scraper scrapes associations. One Scraper owns the process-wide fetcher so
// host pacing and the page cache are shared by every scrape it runs.
type Scraper struct {
	config     *config.Config
	logger     *logger.Logger
	metrics    *metrics.PrometheusMetrics
	fetcher    *fetcher.Fetcher
	classifier *classify.Classifier
	resolver   *calendar.Resolver
	reconciler *reconcile.Reconciler
	crawler    discovery.Discoverer
	browser    discovery.Discoverer
	launch     discovery.LaunchFunc
	now        func() time.Time
}

// Option customizes a Scraper.
type Option func(*Scraper)

// WithFetcher replaces the fetcher built from cfg.Fetch.
func WithFetcher(f *fetcher.Fetcher) Option {
	return func(s *Scraper) { s.fetcher = f }
}

// WithBrowserLaunch replaces the Chrome launcher used for client-rendered sites.
func WithBrowserLaunch(l discovery.LaunchFunc) Option {
	return func(s *Scraper) { s.launch = l }
}

// WithClock fixes the time used to compute the current season.
func WithClock(now func() time.Time) Option {
	return func(s *Scraper) { s.now = now }
}

// NewScraper wires the pipeline from cfg. m may be nil.
func NewScraper(cfg *config.Config, log *logger.Logger, m *metrics.PrometheusMetrics, opts ...Option) (*Scraper, error) {
	if log == nil {
		log = logger.NewNop()
	}
	classifier, err := classify.NewClassifier(cfg.Rules)
	if err != nil {
		return nil, err
	}
	s := &Scraper{
		config:     cfg,
		logger:     log,
		metrics:    m,
		classifier: classifier,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.fetcher == nil {
		s.fetcher = fetcher.New(cfg.Fetch, cfg.UserAgent, log, fetcher.WithMetrics(m))
	}
	if s.launch == nil {
		s.launch = discovery.ChromeLauncher(browser.NewLauncher(cfg.Discovery, cfg.UserAgent, log))
	}
	s.resolver = calendar.NewResolver(s.fetcher, log)
	s.reconciler = reconcile.New(s.resolver, s.fetcher, log, m)
	s.crawler = discovery.NewCrawler(s.fetcher, classifier, s.resolver, log,
		discovery.WithMaxPages(cfg.Discovery.MaxPages),
		discovery.WithClock(s.now),
		discovery.WithCrawlerMetrics(m),
	)
	s.browser = discovery.NewBrowserDiscoverer(s.launch, classifier, cfg.Discovery, log)
	return s, nil
}

// Fetcher exposes the shared fetcher.
func (s *Scraper) Fetcher() *fetcher.Fetcher { return s.fetcher }

// Classifier exposes the page and team rules in use.
func (s *Scraper) Classifier() *classify.Classifier { return s.classifier }

// ResetCache drops cached pages and robots rules.
func (s *Scraper) ResetCache() {
	s.fetcher.Reset()
	s.logger.Info("Fetch cache cleared")
}

// ScrapeAssociation returns the final, sorted team list for one association,
// scoped to ages (every age group when empty). An unreachable site yields an
// empty list; errors are returned only when ctx ends or the browser cannot
// be started for a client-rendered site.
func (s *Scraper) ScrapeAssociation(ctx context.Context, assoc config.AssociationConfig, ages ...types.AgeGroup) ([]types.ScrapedTeam, error) {
	start := time.Now()
	scope := classify.NewAgeSet(ages...)
	season := classify.CurrentSeasonYear(s.now())

	s.logger.Info("Scraping %s (%s), season %d-%d", assoc.Name, assoc.BaseURL, season, season+1)

	platform := types.PlatformGeneric
	if body, ok := s.fetcher.Fetch(ctx, assoc.BaseURL); ok {
		platform = discovery.DetectPlatform(body)
	} else {
		s.logger.Warn("Base URL unreachable for %s: %s", assoc.Name, assoc.BaseURL)
	}

	in := reconcile.Input{
		Association: assoc.Name,
		Seeds:       seedTeams(assoc),
		Ages:        scope,
		Season:      season,
	}

	var teams []types.ScrapedTeam
	switch platform {
	case types.PlatformSPA:
		s.logger.Debug("%s is client-rendered, using browser discovery", assoc.Name)
		cands, err := s.browser.Discover(ctx, assoc, scope)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, discovery.ErrLaunch) {
				s.record(assoc.Name, types.StatusError, 0, start)
				return nil, err
			}
			s.logger.Warn("Browser discovery for %s stopped early: %v", assoc.Name, err)
		}
		in.Candidates = cands
		teams = s.reconciler.Finalize(in)
	default:
		cands, err := s.crawler.Discover(ctx, assoc, scope)
		if err != nil {
			s.record(assoc.Name, types.StatusError, 0, start)
			return nil, err
		}
		in.Candidates = cands
		teams = s.reconciler.Reconcile(ctx, in)
		if err := ctx.Err(); err != nil {
			s.record(assoc.Name, types.StatusError, 0, start)
			return nil, err
		}
	}

	status := types.StatusOK
	if len(teams) == 0 {
		status = types.StatusWarning
	}
	s.record(assoc.Name, status, len(teams), start)
	s.logger.Info("Found %d teams for %s in %s", len(teams), assoc.Name, time.Since(start).Round(time.Millisecond))
	return teams, nil
}

func (s *Scraper) record(name string, status types.AssociationStatus, teams int, start time.Time) {
	s.metrics.RecordAssociation(name, string(status), teams, time.Since(start))
}

// seedTeams fills the association-level fields the registry leaves implicit.
func seedTeams(assoc config.AssociationConfig) []types.ScrapedTeam {
	seeds := make([]types.ScrapedTeam, 0, len(assoc.SeedTeams))
	for _, t := range assoc.SeedTeams {
		if t.AssociationName == "" {
			t.AssociationName = assoc.Name
		}
		if t.SportType == "" {
			t.SportType = types.SportType
		}
		seeds = append(seeds, t)
	}
	return seeds
}
