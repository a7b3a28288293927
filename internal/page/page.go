// Package page is the small HTML query surface the crawler needs: headings,
// the document title, anchors, script sources and sitemap locations.
package page

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Link is one anchor element. Text is the raw element text.
type Link struct {
	Text string
	Href string
}

// Document is a parsed HTML or sitemap document.
type Document struct {
	doc *goquery.Document
}

// Parse reads an HTML (or XML sitemap) body.
func Parse(body string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return &Document{doc: doc}, nil
}

// FirstText returns the trimmed text of the first element matching selector.
func (d *Document) FirstText(selector string) string {
	return strings.TrimSpace(d.doc.Find(selector).First().Text())
}

// Title returns the trimmed <title> text.
func (d *Document) Title() string {
	return d.FirstText("title")
}

// Links returns every anchor that carries an href attribute, in document order.
func (d *Document) Links() []Link {
	return d.LinksMatching("a")
}

// LinksMatching returns anchors selected by selector that carry an href.
func (d *Document) LinksMatching(selector string) []Link {
	var out []Link
	d.doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok || href == "" {
			return
		}
		out = append(out, Link{Text: s.Text(), Href: href})
	})
	return out
}

// Attrs collects a non-empty attribute from every element matching selector.
func (d *Document) Attrs(selector, attr string) []string {
	var out []string
	d.doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		if v, ok := s.Attr(attr); ok && v != "" {
			out = append(out, v)
		}
	})
	return out
}

// Locs returns the trimmed <loc> entries of a sitemap.
func (d *Document) Locs() []string {
	var out []string
	d.doc.Find("loc").Each(func(_ int, s *goquery.Selection) {
		if v := strings.TrimSpace(s.Text()); v != "" {
			out = append(out, v)
		}
	})
	return out
}
