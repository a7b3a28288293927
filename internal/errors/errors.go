// Package errors defines the fetch error taxonomy.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Kind classifies why a page could not be retrieved.
type Kind string

const (
	KindTransient  Kind = "transient"  // timeouts, rate limits, 5xx
	KindPermanent  Kind = "permanent"  // 404 and other terminal statuses
	KindInvalid    Kind = "invalid"    // malformed URL or disallowed scheme
	KindDisallowed Kind = "disallowed" // robots.txt said no
)

// FetchError describes a failed page retrieval.
type FetchError struct {
	URL        string
	StatusCode int
	Kind       Kind
	Message    string
	Err        error
}

func (e *FetchError) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	fmt.Fprintf(&b, ": %s", e.URL)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *FetchError) Unwrap() error { return e.Err }

// IsRetryable reports whether the status is one of the retried throttle/gateway codes.
func (e *FetchError) IsRetryable() bool {
	switch e.StatusCode {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// IsThrottle reports whether the host asked us to slow down.
func (e *FetchError) IsThrottle() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode == http.StatusServiceUnavailable
}

// NewStatusError builds an error for a non-2xx response.
func NewStatusError(rawURL string, status int) *FetchError {
	kind := KindPermanent
	if status >= 500 || status == http.StatusTooManyRequests {
		kind = KindTransient
	}
	return &FetchError{URL: rawURL, StatusCode: status, Kind: kind, Message: "unexpected status"}
}

// NewTransportError wraps a network-level failure.
func NewTransportError(rawURL string, err error) *FetchError {
	return &FetchError{URL: rawURL, Kind: KindTransient, Message: "request failed", Err: err}
}

// NewDisallowedError marks a URL blocked by robots.txt.
func NewDisallowedError(rawURL string) *FetchError {
	return &FetchError{URL: rawURL, Kind: KindDisallowed, Message: "disallowed by robots.txt"}
}

// ValidateURL rejects empty, unparsable, host-less and non-http(s) URLs.
func ValidateURL(rawURL string) error {
	if strings.TrimSpace(rawURL) == "" {
		return &FetchError{URL: rawURL, Kind: KindInvalid, Message: "empty URL"}
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return &FetchError{URL: rawURL, Kind: KindInvalid, Message: "malformed URL", Err: err}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &FetchError{URL: rawURL, Kind: KindInvalid, Message: "unsupported scheme " + u.Scheme}
	}
	if u.Host == "" {
		return &FetchError{URL: rawURL, Kind: KindInvalid, Message: "missing host"}
	}
	return nil
}

// AsFetchError unwraps err into a *FetchError when possible.
func AsFetchError(err error) (*FetchError, bool) {
	var fe *FetchError
	if stderrors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}
