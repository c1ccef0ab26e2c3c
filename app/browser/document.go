package browser

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Document is an immutable DOM snapshot of a loaded page.
type Document struct {
	URL   string
	Title string
	HTML  string

	dom  *goquery.Document
	base *url.URL
}

func NewDocument(pageURL, html string) (*Document, error) {
	dom, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page URL: %w", err)
	}
	if href, ok := dom.Find("base[href]").First().Attr("href"); ok {
		if b, err := base.Parse(href); err == nil {
			base = b
		}
	}

	return &Document{
		URL:   pageURL,
		Title: strings.TrimSpace(dom.Find("title").First().Text()),
		HTML:  html,
		dom:   dom,
		base:  base,
	}, nil
}

func (d *Document) Selection() *goquery.Selection {
	return d.dom.Selection
}

func (d *Document) Find(selector string) *goquery.Selection {
	return d.dom.Find(selector)
}

// Text is the visible body text with whitespace collapsed.
func (d *Document) Text() string {
	return strings.Join(strings.Fields(d.dom.Find("body").Text()), " ")
}

// Resolve turns href into an absolute URL against the page, or "" when it is not http(s).
func (d *Document) Resolve(href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}

	u, err := d.base.Parse(href)
	if err != nil {
		return ""
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	u.Fragment = ""

	return u.String()
}

// Clone re-parses the snapshot so callers can mutate the DOM freely.
func (d *Document) Clone() *Document {
	c, err := NewDocument(d.URL, d.HTML)
	if err != nil {
		return d
	}
	c.Title = d.Title
	return c
}

// Evaluate runs a pure extraction function against the snapshot.
// A panicking extraction yields the zero value.
func Evaluate[T any](doc *Document, fn func(*goquery.Selection) T) (result T) {
	if doc == nil {
		return result
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Debug("Extraction failed", "url", doc.URL, "error", r)
			var zero T
			result = zero
		}
	}()

	return fn(doc.dom.Selection)
}
