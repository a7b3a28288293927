// Package links turns raw hrefs into absolute URLs and filters out links
// that can never lead to a team page.
package links

import (
	"net/url"
	"regexp"
	"strings"
)

// Normalize resolves href against base. javascript: hrefs and unparsable
// input are returned unchanged.
func Normalize(base, href string) string {
	if strings.HasPrefix(href, "javascript:") {
		return href
	}
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return href
	}
	abs := b.ResolveReference(ref)
	if abs.Host != "" && abs.Path == "" && abs.Opaque == "" {
		abs.Path = "/"
	}
	return abs.String()
}

// AbsoluteURL resolves href against base, rejecting empty, fragment-only,
// root, script, mail and non-http(s) links.
func AbsoluteURL(base, href string) (string, bool) {
	trimmed := strings.TrimSpace(href)
	switch {
	case trimmed == "", trimmed == "#", trimmed == "/":
		return "", false
	case strings.HasPrefix(trimmed, "javascript:"), strings.HasPrefix(trimmed, "mailto:"):
		return "", false
	case strings.HasPrefix(trimmed, "http://#"), strings.HasPrefix(trimmed, "https://#"):
		return "", false
	}
	b, err := url.Parse(base)
	if err != nil {
		return "", false
	}
	ref, err := url.Parse(trimmed)
	if err != nil {
		return "", false
	}
	abs := b.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", false
	}
	if abs.Path == "" {
		abs.Path = "/"
	}
	return abs.String(), true
}

var sameHostRejects = []string{
	"/news_article/", "/news/", "/register", "/registration", "trophycase", "/attachments/document/",
}

// SameHostURL resolves href and keeps it only when it stays on baseHost and
// does not point at news, registration, trophy or document pages.
func SameHostURL(base, href, baseHost string) (string, bool) {
	abs, ok := AbsoluteURL(base, href)
	if !ok {
		return "", false
	}
	if Hostname(abs) != baseHost {
		return "", false
	}
	for _, r := range sameHostRejects {
		if strings.Contains(abs, r) {
			return "", false
		}
	}
	return abs, true
}

// Hostname returns the host of rawURL without port, or "".
func Hostname(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// Origin returns scheme://host of rawURL, or "".
func Origin(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

// IsLayoutTab reports layout-container tabs, which hold tournament and info
// subpages rather than team calendars.
func IsLayoutTab(rawURL string) bool {
	return strings.Contains(strings.ToLower(rawURL), "layout_container/show_layout_tab")
}

var subseasonRe = regexp.MustCompile(`(?i)subseason=`)

// HasSubseason reports URLs pinned to a sub-season view of a team page.
func HasSubseason(rawURL string) bool {
	return subseasonRe.MatchString(rawURL)
}
