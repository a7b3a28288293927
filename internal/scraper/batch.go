package scraper

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kareemsasa3/rinkcal/internal/config"
	"github.com/kareemsasa3/rinkcal/internal/types"
)

// BatchOptions controls RunBatch. Zero Size and Delay fall back to the
// configured batch settings.
type BatchOptions struct {
	Size       int
	Delay      time.Duration
	Ages       []types.AgeGroup
	OnProgress func(types.ProgressUpdate)
}

// RunBatch scrapes associations in chunks of opts.Size, running each chunk
// concurrently and pausing opts.Delay between chunks. One failing
// association never stops the others; its row carries the error. Results
// are in input order. The returned error is non-nil only when ctx ends.
func (s *Scraper) RunBatch(ctx context.Context, assocs []config.AssociationConfig, opts BatchOptions) ([]types.AssociationResult, error) {
	size := opts.Size
	if size <= 0 {
		size = s.config.Batch.Size
	}
	if size <= 0 {
		size = 1
	}
	delay := opts.Delay
	if delay == 0 {
		delay = s.config.Batch.Delay
	}

	results := make([]types.AssociationResult, len(assocs))
	start := time.Now()
	var mu sync.Mutex
	done := 0

	s.logger.Info("Starting batch of %d associations, %d at a time", len(assocs), size)

	for chunkStart := 0; chunkStart < len(assocs); chunkStart += size {
		if chunkStart > 0 && delay > 0 {
			select {
			case <-ctx.Done():
				return results, ctx.Err()
			case <-time.After(delay):
			}
		}
		chunkEnd := chunkStart + size
		if chunkEnd > len(assocs) {
			chunkEnd = len(assocs)
		}

		var g errgroup.Group
		for i := chunkStart; i < chunkEnd; i++ {
			i := i
			g.Go(func() error {
				row := s.scrapeRow(ctx, assocs[i], opts.Ages)
				results[i] = row

				mu.Lock()
				done++
				update := progress(done, len(assocs), row, time.Since(start))
				mu.Unlock()

				if opts.OnProgress != nil {
					opts.OnProgress(update)
				}
				return nil
			})
		}
		_ = g.Wait()

		if err := ctx.Err(); err != nil {
			return results, err
		}
	}

	s.logger.Info("Batch finished in %s", time.Since(start).Round(time.Millisecond))
	return results, nil
}

func (s *Scraper) scrapeRow(ctx context.Context, assoc config.AssociationConfig, ages []types.AgeGroup) types.AssociationResult {
	start := time.Now()
	row := types.AssociationResult{Name: assoc.Name, BaseURL: assoc.BaseURL}
	teams, err := s.ScrapeAssociation(ctx, assoc, ages...)
	row.DurationMs = time.Since(start).Milliseconds()
	switch {
	case err != nil:
		s.logger.Error("Scrape of %s failed: %v", assoc.Name, err)
		row.Status = types.StatusError
		row.Error = err.Error()
	case len(teams) == 0:
		row.Status = types.StatusWarning
	default:
		row.Status = types.StatusOK
	}
	row.Teams = teams
	row.TeamCount = len(teams)
	return row
}

func progress(current, total int, row types.AssociationResult, elapsed time.Duration) types.ProgressUpdate {
	u := types.ProgressUpdate{
		Current:         current,
		Total:           total,
		AssociationName: row.Name,
		TeamsFound:      row.TeamCount,
		ElapsedMs:       elapsed.Milliseconds(),
	}
	if current > 0 {
		u.EstimatedRemainingMs = u.ElapsedMs * int64(total-current) / int64(current)
	}
	return u
}

// HealthSummary counts batch rows by status.
type HealthSummary struct {
	OK       int `json:"ok"`
	Warnings int `json:"warnings"`
	Errors   int `json:"errors"`
	Teams    int `json:"teams"`
}

// Summarize tallies results.
func Summarize(results []types.AssociationResult) HealthSummary {
	var h HealthSummary
	for _, r := range results {
		switch r.Status {
		case types.StatusOK:
			h.OK++
		case types.StatusWarning:
			h.Warnings++
		case types.StatusError:
			h.Errors++
		}
		h.Teams += r.TeamCount
	}
	return h
}

// HealthCheck scrapes every association once and reports per-association
// status. Associations with no teams are warnings.
func (s *Scraper) HealthCheck(ctx context.Context, assocs []config.AssociationConfig, onProgress func(types.ProgressUpdate)) ([]types.AssociationResult, HealthSummary, error) {
	results, err := s.RunBatch(ctx, assocs, BatchOptions{OnProgress: onProgress})
	return results, Summarize(results), err
}
