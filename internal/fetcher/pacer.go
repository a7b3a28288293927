package fetcher

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"
)

// Pacer spaces requests to the same host and slows down hosts that push back.
// State is process-wide: every scrape sharing a Pacer shares the per-host clock.
type Pacer struct {
	minGap time.Duration
	jitter time.Duration
	factor float64

	mu     sync.Mutex
	last   map[string]time.Time
	errors map[string]int

	now    func() time.Time
	random func() float64
}

// NewPacer builds a pacer with the given base gap, jitter and per-error multiplier.
func NewPacer(minGap, jitter time.Duration, factor float64) *Pacer {
	if factor < 1 {
		factor = 1
	}
	return &Pacer{
		minGap: minGap,
		jitter: jitter,
		factor: factor,
		last:   make(map[string]time.Time),
		errors: make(map[string]int),
		now:    time.Now,
		random: rand.Float64,
	}
}

// reserve claims the next request slot for host and returns how long to wait for it.
func (p *Pacer) reserve(host string) time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	gap := float64(p.minGap) + p.random()*float64(p.jitter)
	gap *= math.Pow(p.factor, float64(p.errors[host]))

	slot := now
	if last, ok := p.last[host]; ok {
		if next := last.Add(time.Duration(gap)); next.After(now) {
			slot = next
		}
	}
	p.last[host] = slot
	return slot.Sub(now)
}

// Wait blocks until host may be contacted again.
func (p *Pacer) Wait(ctx context.Context, host string) error {
	if host == "" {
		return nil
	}
	return sleepCtx(ctx, p.reserve(host))
}

// RecordThrottle bumps the host's error count and returns the new value.
func (p *Pacer) RecordThrottle(host string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errors[host]++
	return p.errors[host]
}

// RecordSuccess clears the host's error count.
func (p *Pacer) RecordSuccess(host string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.errors, host)
}

// ErrorCount returns the host's accumulated throttle count.
func (p *Pacer) ErrorCount(host string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.errors[host]
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
