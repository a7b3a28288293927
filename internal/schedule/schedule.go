// Package schedule runs full batch scrapes on a cron schedule.
package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/kareemsasa3/rinkcal/internal/config"
	"github.com/kareemsasa3/rinkcal/internal/logger"
	"github.com/kareemsasa3/rinkcal/internal/scraper"
	"github.com/kareemsasa3/rinkcal/internal/types"
)

// Runner scrapes a batch of associations.
type Runner interface {
	RunBatch(ctx context.Context, assocs []config.AssociationConfig, opts scraper.BatchOptions) ([]types.AssociationResult, error)
}

// Recorder persists one batch row.
type Recorder interface {
	RecordResult(r types.AssociationResult) error
}

// Scheduler triggers batch runs. Overlapping triggers are skipped while a
// run is still in progress.
type Scheduler struct {
	cron     *cron.Cron
	parser   cron.Parser
	runner   Runner
	recorder Recorder
	assocs   []config.AssociationConfig
	logger   *logger.Logger

	mu      sync.Mutex
	ctx     context.Context
	lastRun time.Time
	last    scraper.HealthSummary
}

// New builds a scheduler over assocs. recorder may be nil.
func New(runner Runner, recorder Recorder, assocs []config.AssociationConfig, log *logger.Logger) *Scheduler {
	if log == nil {
		log = logger.NewNop()
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return &Scheduler{
		cron:     cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger))),
		parser:   parser,
		runner:   runner,
		recorder: recorder,
		assocs:   assocs,
		logger:   log,
		ctx:      context.Background(),
	}
}

// Add registers a cron expression ("0 5 * * *" or "@daily").
func (s *Scheduler) Add(spec string) error {
	if _, err := s.parser.Parse(spec); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	if _, err := s.cron.AddFunc(spec, s.trigger); err != nil {
		return fmt.Errorf("schedule %q: %w", spec, err)
	}
	s.logger.Info("Scheduled batch scrape %q for %d associations", spec, len(s.assocs))
	return nil
}

// Next reports when the earliest scheduled run fires, or zero when nothing
// is scheduled or the scheduler is stopped.
func (s *Scheduler) Next() time.Time {
	var next time.Time
	for _, e := range s.cron.Entries() {
		if !e.Next.IsZero() && (next.IsZero() || e.Next.Before(next)) {
			next = e.Next
		}
	}
	return next
}

// Start begins firing scheduled runs; they stop when ctx ends or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()
	s.cron.Start()
	go func() {
		<-ctx.Done()
		s.Stop()
	}()
}

// Stop halts the schedule and waits for a running batch to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) trigger() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if _, err := s.RunOnce(ctx); err != nil {
		s.logger.Warn("Scheduled batch ended early: %v", err)
	}
}

// RunOnce scrapes every association immediately and records each row.
func (s *Scheduler) RunOnce(ctx context.Context) (scraper.HealthSummary, error) {
	start := time.Now()
	s.logger.Info("Batch run starting for %d associations", len(s.assocs))

	results, err := s.runner.RunBatch(ctx, s.assocs, scraper.BatchOptions{})
	if s.recorder != nil {
		for _, r := range results {
			if r.Name == "" {
				continue
			}
			if recErr := s.recorder.RecordResult(r); recErr != nil {
				s.logger.Warn("Failed to record history for %s: %v", r.Name, recErr)
			}
		}
	}

	summary := scraper.Summarize(results)
	s.mu.Lock()
	s.lastRun = start
	s.last = summary
	s.mu.Unlock()

	s.logger.Info("Batch run finished in %s: %d ok, %d warnings, %d errors, %d teams",
		time.Since(start).Round(time.Millisecond), summary.OK, summary.Warnings, summary.Errors, summary.Teams)
	return summary, err
}

// LastRun returns the start time and tally of the most recent run.
func (s *Scheduler) LastRun() (time.Time, scraper.HealthSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun, s.last
}
