// Package testutil serves canned association websites to the fetcher so
// crawls can run against real hostnames without a network.
package testutil

import (
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/kareemsasa3/rinkcal/internal/config"
	"github.com/kareemsasa3/rinkcal/internal/fetcher"
)

// Site is a snapshot of pages keyed by absolute URL. Unknown URLs are 404s.
// A trailing slash is not significant.
type Site struct {
	Pages map[string]string

	mu   sync.Mutex
	hits map[string]int
}

// NewSite builds a Site from pages.
func NewSite(pages map[string]string) *Site {
	return &Site{Pages: pages, hits: make(map[string]int)}
}

// RoundTrip implements http.RoundTripper.
func (s *Site) RoundTrip(r *http.Request) (*http.Response, error) {
	u := r.URL.String()
	s.mu.Lock()
	s.hits[u]++
	s.mu.Unlock()

	body, ok := s.lookup(u)
	status := http.StatusOK
	if !ok {
		status = http.StatusNotFound
		body = "not found"
	}
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Header:     http.Header{"Content-Type": []string{"text/html; charset=utf-8"}},
		Body:       io.NopCloser(strings.NewReader(body)),
		Request:    r,
	}, nil
}

func (s *Site) lookup(u string) (string, bool) {
	if body, ok := s.Pages[u]; ok {
		return body, true
	}
	if strings.HasSuffix(u, "/") {
		body, ok := s.Pages[strings.TrimSuffix(u, "/")]
		return body, ok
	}
	body, ok := s.Pages[u+"/"]
	return body, ok
}

// Hits returns how many times u was requested.
func (s *Site) Hits(u string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[u]
}

// FetchConfig is a fetch configuration with no pacing and no retries.
func FetchConfig() config.FetchConfig {
	return config.FetchConfig{
		Timeout:        2 * time.Second,
		ThrottleFactor: 1.5,
		RetryBaseDelay: time.Millisecond,
	}
}

// Fetcher returns a fetcher whose requests are answered by s.
func (s *Site) Fetcher() *fetcher.Fetcher {
	return fetcher.New(FetchConfig(), "rinkcal-test", nil,
		fetcher.WithHTTPClient(&http.Client{Transport: s}),
		fetcher.WithRandom(func() float64 { return 0 }),
	)
}
