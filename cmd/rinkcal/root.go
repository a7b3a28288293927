package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kareemsasa3/rinkcal/internal/config"
	"github.com/kareemsasa3/rinkcal/internal/database"
	"github.com/kareemsasa3/rinkcal/internal/fetcher"
	"github.com/kareemsasa3/rinkcal/internal/logger"
	"github.com/kareemsasa3/rinkcal/internal/metrics"
	"github.com/kareemsasa3/rinkcal/internal/scraper"
	"github.com/kareemsasa3/rinkcal/internal/types"
	"github.com/kareemsasa3/rinkcal/internal/verify"
)

var (
	cfgFile string
	debug   bool
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "rinkcal",
		Short:         "Find team calendar feeds on youth hockey association sites",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./configs/rinkcal.yaml or ./rinkcal.yaml)")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	root.AddCommand(
		newScrapeCmd(),
		newBatchCmd(),
		newHealthCmd(),
		newServeCmd(),
		newHistoryCmd(),
		newListCmd(),
		newVerifyCmd(),
		newRulesCmd(),
	)
	return root
}

// Execute runs the CLI until it finishes or receives SIGINT/SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return newRootCmd().ExecuteContext(ctx)
}

// app holds the wired components a command needs.
type app struct {
	cfg     *config.Config
	log     *logger.Logger
	metrics *metrics.PrometheusMetrics
	scraper *scraper.Scraper
	db      *database.DB
}

// newApp loads configuration and wires the scraper. The history database is
// opened only when withHistory is set and database.path is configured.
func newApp(withHistory bool) (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	level := cfg.LogLevel
	if debug {
		level = "debug"
	}
	log, err := logger.New(logger.Options{Level: level, Format: cfg.LogFormat})
	if err != nil {
		return nil, err
	}

	m := metrics.NewPrometheusMetrics()
	s, err := scraper.NewScraper(cfg, log, m)
	if err != nil {
		return nil, fmt.Errorf("build scraper: %w", err)
	}

	a := &app{cfg: cfg, log: log, metrics: m, scraper: s}
	if withHistory && cfg.Database.Path != "" {
		db, err := database.Initialize(cfg.Database.Path, log)
		if err != nil {
			return nil, fmt.Errorf("open history database: %w", err)
		}
		a.db = db
	}
	return a, nil
}

// newVerifier builds a verifier over a fresh fetcher that shares the
// scraper's pacer, so checks and scrapes keep one per-host clock.
func (a *app) newVerifier() *verify.Verifier {
	f := fetcher.New(a.cfg.Fetch, a.cfg.UserAgent, a.log,
		fetcher.WithPacer(a.scraper.Fetcher().Pacer()),
		fetcher.WithMetrics(a.metrics),
	)
	return verify.New(f, a.log)
}

func (a *app) Close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Warn("Failed to close history database: %v", err)
		}
	}
	_ = a.log.Sync()
}

// record stores batch rows in history when a database is open.
func (a *app) record(results []types.AssociationResult) {
	if a.db == nil {
		return
	}
	for _, r := range results {
		if r.Name == "" {
			continue
		}
		if err := a.db.RecordResult(r); err != nil {
			a.log.Warn("Failed to record history for %s: %v", r.Name, err)
		}
	}
}

// selectAssociations resolves names (substring match allowed) against the
// registry; no names selects every association.
func (a *app) selectAssociations(names []string) ([]config.AssociationConfig, error) {
	if len(names) == 0 {
		if len(a.cfg.Associations) == 0 {
			return nil, fmt.Errorf("no associations configured")
		}
		return a.cfg.Associations, nil
	}
	out := make([]config.AssociationConfig, 0, len(names))
	for _, n := range names {
		assoc, ok := a.cfg.Find(n)
		if !ok {
			return nil, fmt.Errorf("unknown association %q (see 'rinkcal list')", n)
		}
		out = append(out, assoc)
	}
	return out, nil
}

func parseAges(raw []string) ([]types.AgeGroup, error) {
	var ages []types.AgeGroup
	for _, r := range raw {
		for _, part := range strings.Split(r, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			g, err := types.ParseAgeGroup(part)
			if err != nil {
				return nil, err
			}
			ages = append(ages, g)
		}
	}
	return ages, nil
}
