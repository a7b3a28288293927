// Package fetcher retrieves association pages politely: paced per host,
// retried on throttling, and de-duplicated across concurrent callers.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/kareemsasa3/rinkcal/internal/config"
	"github.com/kareemsasa3/rinkcal/internal/errors"
	"github.com/kareemsasa3/rinkcal/internal/logger"
	"github.com/kareemsasa3/rinkcal/internal/metrics"
)

const maxBodyBytes = 16 << 20

// Fetcher is the process-scoped page retrieval service.
type Fetcher struct {
	cfg       config.FetchConfig
	userAgent string
	client    *http.Client
	pacer     *Pacer
	limiter   *rate.Limiter
	robots    *robotsCache
	logger    *logger.Logger
	metrics   *metrics.PrometheusMetrics
	random    func() float64

	group singleflight.Group
	mu    sync.RWMutex
	cache map[string]result
}

type result struct {
	body string
	ok   bool
}

// Option customizes a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient replaces the default client. Its Timeout is left untouched.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithPacer shares an existing pacer, so several fetchers honor one per-host clock.
func WithPacer(p *Pacer) Option {
	return func(f *Fetcher) { f.pacer = p }
}

// WithMetrics attaches Prometheus collectors.
func WithMetrics(m *metrics.PrometheusMetrics) Option {
	return func(f *Fetcher) { f.metrics = m }
}

// WithRandom fixes the jitter source.
func WithRandom(r func() float64) Option {
	return func(f *Fetcher) { f.random = r }
}

// New builds a Fetcher from fetch settings.
func New(cfg config.FetchConfig, userAgent string, log *logger.Logger, opts ...Option) *Fetcher {
	if log == nil {
		log = logger.NewNop()
	}
	f := &Fetcher{
		cfg:       cfg,
		userAgent: userAgent,
		client:    &http.Client{Timeout: cfg.Timeout},
		logger:    log,
		random:    rand.Float64,
		cache:     make(map[string]result),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.pacer == nil {
		f.pacer = NewPacer(cfg.MinHostGap, cfg.HostJitter, cfg.ThrottleFactor)
	}
	if cfg.RequestsPerSecond > 0 {
		burst := int(math.Ceil(cfg.RequestsPerSecond))
		f.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	if cfg.RespectRobots {
		f.robots = newRobotsCache(f, userAgent)
	}
	return f
}

// Pacer exposes the per-host pacing state.
func (f *Fetcher) Pacer() *Pacer { return f.pacer }

// Fetch returns the body of rawURL, or ok=false when the page is unavailable.
// Failures are logged and counted, never returned. Identical URLs share one
// underlying request and results, including failures, are cached for the
// Fetcher's lifetime.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, bool) {
	if skipFetch(rawURL) {
		return "", false
	}
	r, err := f.fetchShared(ctx, rawURL)
	if err != nil && ctx.Err() == nil {
		// joined a request whose caller was cancelled
		r, _ = f.fetchShared(ctx, rawURL)
	}
	return r.body, r.ok
}

// fetchShared returns a cached result or joins the in-flight request for
// rawURL. The error is non-nil only when the request's own caller was
// cancelled; such results are not cached.
func (f *Fetcher) fetchShared(ctx context.Context, rawURL string) (result, error) {
	f.mu.RLock()
	cached, hit := f.cache[rawURL]
	f.mu.RUnlock()
	if hit {
		f.metrics.RecordCacheHit()
		return cached, nil
	}

	v, err, _ := f.group.Do(rawURL, func() (interface{}, error) {
		f.mu.RLock()
		if r, ok := f.cache[rawURL]; ok {
			f.mu.RUnlock()
			return r, nil
		}
		f.mu.RUnlock()

		body, err := f.fetchWithRetry(ctx, rawURL)
		r := result{body: body, ok: err == nil}
		if err != nil && ctx.Err() != nil {
			return r, ctx.Err()
		}
		f.mu.Lock()
		f.cache[rawURL] = r
		f.mu.Unlock()
		return r, nil
	})
	return v.(result), err
}

// Reset drops every cached page.
func (f *Fetcher) Reset() {
	f.mu.Lock()
	f.cache = make(map[string]result)
	f.mu.Unlock()
	if f.robots != nil {
		f.robots.reset()
	}
}

// CacheSize reports how many URLs are cached.
func (f *Fetcher) CacheSize() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.cache)
}

func skipFetch(rawURL string) bool {
	return strings.HasPrefix(rawURL, "javascript:") ||
		strings.HasPrefix(rawURL, "webcal:") ||
		strings.HasSuffix(rawURL, ".ics")
}

func (f *Fetcher) fetchWithRetry(ctx context.Context, rawURL string) (string, error) {
	if err := errors.ValidateURL(rawURL); err != nil {
		f.logger.Debug("Skipping invalid URL %s: %v", rawURL, err)
		return "", err
	}
	host := hostname(rawURL)

	if f.robots != nil && !f.robots.allowed(ctx, rawURL) {
		err := errors.NewDisallowedError(rawURL)
		f.metrics.RecordFetchFailure(host, string(errors.KindDisallowed), 0)
		f.logger.Debug("robots.txt disallows %s", rawURL)
		return "", err
	}

	for attempt := 0; ; attempt++ {
		body, err := f.get(ctx, rawURL, host)
		if err == nil {
			f.pacer.RecordSuccess(host)
			return body, nil
		}

		fe, _ := errors.AsFetchError(err)
		if fe != nil && fe.IsThrottle() {
			count := f.pacer.RecordThrottle(host)
			f.metrics.RecordThrottle(host)
			f.logger.Warn("Rate limited by %s (error count: %d), increasing delay", host, count)
		}

		if fe == nil || !fe.IsRetryable() || attempt >= f.cfg.MaxRetries || ctx.Err() != nil {
			kind := string(errors.KindTransient)
			status := 0
			if fe != nil {
				kind = string(fe.Kind)
				status = fe.StatusCode
			}
			f.metrics.RecordFetchFailure(host, kind, status)
			f.logger.LogFailure(rawURL, err)
			return "", err
		}

		f.metrics.RecordFetchRetry(host)
		f.logger.LogRetry(rawURL, attempt+1, err)
		if err := sleepCtx(ctx, f.backoff(attempt)); err != nil {
			return "", err
		}
	}
}

// backoff is base*2^attempt plus up to RetryJitter.
func (f *Fetcher) backoff(attempt int) time.Duration {
	d := float64(f.cfg.RetryBaseDelay) * math.Pow(2, float64(attempt))
	d += f.random() * float64(f.cfg.RetryJitter)
	return time.Duration(d)
}

// get performs one paced GET.
func (f *Fetcher) get(ctx context.Context, rawURL, host string) (string, error) {
	if err := f.pacer.Wait(ctx, host); err != nil {
		return "", errors.NewTransportError(rawURL, err)
	}
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return "", errors.NewTransportError(rawURL, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", &errors.FetchError{URL: rawURL, Kind: errors.KindInvalid, Message: "build request", Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent)

	f.metrics.RecordFetchRequest(host)
	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return "", errors.NewTransportError(rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return "", errors.NewStatusError(rawURL, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", errors.NewTransportError(rawURL, err)
	}
	duration := time.Since(start)
	f.metrics.RecordFetchSuccess(host, resp.StatusCode, int64(len(data)), duration)
	f.logger.LogSuccess(rawURL, resp.StatusCode, len(data), duration)
	return string(data), nil
}

// FetchFeed retrieves calendar content. webcal:// is fetched over https, the
// host is paced, and there is a single attempt with no caching.
func (f *Fetcher) FetchFeed(ctx context.Context, feedURL string) (string, error) {
	fetchURL := feedURL
	if strings.HasPrefix(fetchURL, "webcal://") {
		fetchURL = "https://" + strings.TrimPrefix(fetchURL, "webcal://")
	}
	if err := errors.ValidateURL(fetchURL); err != nil {
		return "", err
	}
	host := hostname(fetchURL)
	body, err := f.get(ctx, fetchURL, host)
	if err != nil {
		f.logger.Warn("Failed to fetch feed %s: %v", feedURL, err)
		return "", fmt.Errorf("fetch feed: %w", err)
	}
	return body, nil
}

// CountEvents returns the number of VEVENT blocks in a feed, or -1 when the
// feed could not be fetched.
func (f *Fetcher) CountEvents(ctx context.Context, feedURL string) int {
	content, err := f.FetchFeed(ctx, feedURL)
	if err != nil || content == "" {
		return -1
	}
	return strings.Count(content, "BEGIN:VEVENT")
}

func hostname(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
