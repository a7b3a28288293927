package fetcher

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"

	"github.com/kareemsasa3/rinkcal/internal/errors"
)

// robotsRecheck is how long a host whose robots.txt could not be read is
// treated as allow-all before the file is requested again.
const robotsRecheck = 10 * time.Minute

// robotsCache holds parsed robots.txt rules per host. A missing (4xx) or
// unparsable robots.txt allows everything for the cache's lifetime; a server
// error or network failure allows everything until robotsRecheck passes.
type robotsCache struct {
	f         *Fetcher
	userAgent string
	now       func() time.Time

	mu    sync.Mutex
	hosts map[string]robotsEntry
}

type robotsEntry struct {
	data    *robotstxt.RobotsData // nil means allow all
	expires time.Time             // zero never expires
}

func newRobotsCache(f *Fetcher, userAgent string) *robotsCache {
	return &robotsCache{f: f, userAgent: userAgent, now: time.Now, hosts: make(map[string]robotsEntry)}
}

func (r *robotsCache) allowed(ctx context.Context, rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return true
	}
	host := strings.ToLower(u.Host)

	r.mu.Lock()
	entry, ok := r.hosts[host]
	r.mu.Unlock()
	if !ok || (!entry.expires.IsZero() && r.now().After(entry.expires)) {
		entry = r.load(ctx, u.Scheme, host)
		r.mu.Lock()
		r.hosts[host] = entry
		r.mu.Unlock()
	}
	if entry.data == nil {
		return true
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	return entry.data.TestAgent(path, r.userAgent)
}

func (r *robotsCache) load(ctx context.Context, scheme, host string) robotsEntry {
	robotsURL := scheme + "://" + host + "/robots.txt"
	body, err := r.f.get(ctx, robotsURL, hostname(robotsURL))
	if err != nil {
		fe, _ := errors.AsFetchError(err)
		if fe != nil && fe.StatusCode >= 400 && fe.StatusCode < 500 {
			return robotsEntry{}
		}
		r.f.logger.Debug("robots.txt for %s unavailable, rechecking in %s: %v", host, robotsRecheck, err)
		return robotsEntry{expires: r.now().Add(robotsRecheck)}
	}
	data, err := robotstxt.FromBytes([]byte(body))
	if err != nil {
		return robotsEntry{}
	}
	return robotsEntry{data: data}
}

func (r *robotsCache) reset() {
	r.mu.Lock()
	r.hosts = make(map[string]robotsEntry)
	r.mu.Unlock()
}
