package search

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/lysyi3m/article-comb/app/browser"
	"github.com/lysyi3m/article-comb/app/extract"
)

const (
	DefaultURLTemplate = "https://www.google.com/search?q=%s&hl=en&gl=us&pws=0"

	locationScript = `() => location.href + "\n" + document.title`
)

var (
	containerSelectors = []string{
		`div.g`,
		`div[data-sokoban-container]`,
		`.tF2Cxc`,
		`div.MjjYud`,
		`div[jsname]`,
	}

	resultTitleSelectors = []string{`h3`, `[role="heading"]`}

	snippetSelectors = []string{`.VwiC3b`, `[data-sncf]`, `.IsZvec`, `span.aCOpRe`}

	// Matched case-insensitively against the page text, HTML and URL.
	blockMarkers = []string{
		"unusual traffic",
		"captcha",
		"recaptcha",
		"just a moment...",
		"cf-browser-verification",
		"captcha-delivery.com",
		"/sorry/",
		"before you continue to google",
		"verify you are human",
	}
)

type BrowserOptions struct {
	URLTemplate   string        // fmt template with one %s for the escaped query
	MaxWait       time.Duration // challenge wait; zero waits until the context ends
	PollInterval  time.Duration
	ScreenshotDir string // challenge screenshots, disabled when empty
}

// BrowserProvider scrapes the search engine results page with a browser session.
type BrowserProvider struct {
	launcher browser.Launcher
	opts     BrowserOptions
}

func NewBrowserProvider(launcher browser.Launcher, opts BrowserOptions) *BrowserProvider {
	opts.URLTemplate = cmp.Or(opts.URLTemplate, DefaultURLTemplate)
	opts.PollInterval = cmp.Or(opts.PollInterval, 2*time.Second)

	return &BrowserProvider{
		launcher: launcher,
		opts:     opts,
	}
}

func (p *BrowserProvider) Name() string {
	return "browser"
}

func (p *BrowserProvider) Available() bool {
	return p.launcher != nil
}

func (p *BrowserProvider) Search(ctx context.Context, query string) ([]Result, error) {
	session, err := p.launcher.NewSession(ctx)
	if err != nil {
		return nil, err
	}
	defer session.Close()

	searchURL := fmt.Sprintf(p.opts.URLTemplate, url.QueryEscape(query))

	doc, err := session.Load(ctx, searchURL, browser.LoadOptions{Wait: browser.WaitLoad})
	if err != nil {
		return nil, err
	}

	if p.blocked(doc) {
		slog.Warn("Search challenge detected, waiting for resolution", "url", doc.URL, "max_wait", p.opts.MaxWait)
		p.saveScreenshot(ctx, session)

		doc, err = p.awaitResolution(ctx, session)
		if err != nil {
			return nil, err
		}
		if doc == nil {
			slog.Warn("Search challenge not resolved, continuing without results", "query", query)
			return nil, nil
		}
		slog.Info("Search challenge resolved", "query", query)
	}

	return p.parse(doc), nil
}

// blocked is true for a page carrying a challenge marker and no result containers.
func (p *BrowserProvider) blocked(doc *browser.Document) bool {
	if len(p.parseContainers(doc)) > 0 {
		return false
	}

	haystack := strings.ToLower(doc.URL + "\n" + doc.Title + "\n" + doc.HTML)
	for _, marker := range blockMarkers {
		if strings.Contains(haystack, marker) {
			return true
		}
	}
	return false
}

// awaitResolution polls the live page until result containers appear. It returns
// nil when MaxWait elapses, and the context error when the context ends first.
func (p *BrowserProvider) awaitResolution(ctx context.Context, session browser.Session) (*browser.Document, error) {
	ticker := time.NewTicker(p.opts.PollInterval)
	defer ticker.Stop()

	var deadline <-chan time.Time
	if p.opts.MaxWait > 0 {
		timer := time.NewTimer(p.opts.MaxWait)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline:
			return nil, nil
		case <-ticker.C:
			if p.stillChallenged(ctx, session) {
				continue
			}

			doc, err := session.Snapshot(ctx)
			if err != nil {
				slog.Debug("Challenge poll failed", "error", err)
				continue
			}
			if len(p.parseContainers(doc)) > 0 {
				return doc, nil
			}
		}
	}
}

// stillChallenged reports a challenge marker in the live location or title.
// A failed read reports false and leaves the decision to the snapshot.
func (p *BrowserProvider) stillChallenged(ctx context.Context, session browser.Session) bool {
	state, err := session.Evaluate(ctx, locationScript)
	if err != nil {
		return false
	}

	state = strings.ToLower(state)
	for _, marker := range blockMarkers {
		if strings.Contains(state, marker) {
			return true
		}
	}
	return false
}

func (p *BrowserProvider) saveScreenshot(ctx context.Context, session browser.Session) {
	if p.opts.ScreenshotDir == "" {
		return
	}

	data, err := session.Screenshot(ctx)
	if err != nil || len(data) == 0 {
		slog.Debug("Challenge screenshot unavailable", "error", err)
		return
	}

	if err := os.MkdirAll(p.opts.ScreenshotDir, 0o755); err != nil {
		slog.Warn("Failed to create screenshot dir", "dir", p.opts.ScreenshotDir, "error", err)
		return
	}

	path := filepath.Join(p.opts.ScreenshotDir, fmt.Sprintf("challenge-%d.png", time.Now().UnixNano()))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		slog.Warn("Failed to save challenge screenshot", "path", path, "error", err)
		return
	}

	slog.Info("Challenge screenshot saved", "path", path)
}

func (p *BrowserProvider) parse(doc *browser.Document) []Result {
	if results := p.parseContainers(doc); len(results) > 0 {
		return results
	}

	slog.Debug("No result containers matched, falling back to outbound anchors", "url", doc.URL)
	return p.parseAnchors(doc)
}

func (p *BrowserProvider) parseContainers(doc *browser.Document) []Result {
	return browser.Evaluate(doc, func(root *goquery.Selection) []Result {
		strategies := make([]extract.Strategy[[]Result], 0, len(containerSelectors))

		for _, selector := range containerSelectors {
			strategies = append(strategies, func(root *goquery.Selection) ([]Result, bool) {
				var results []Result
				root.Find(selector).Each(func(_ int, container *goquery.Selection) {
					if r, ok := p.container(doc, container); ok {
						results = append(results, r)
					}
				})
				return results, len(results) > 0
			})
		}

		results, _ := extract.Cascade(root, strategies...)
		return results
	})
}

func (p *BrowserProvider) container(doc *browser.Document, container *goquery.Selection) (Result, bool) {
	title := extract.FirstText(container, resultTitleSelectors)
	if title == "" {
		return Result{}, false
	}

	// The result link is the anchor wrapping the heading, else the first anchor.
	anchor := container.Find("h3").First().Closest("a[href]")
	if anchor.Length() == 0 {
		anchor = container.Find("a[href]").First()
	}
	href, _ := anchor.Attr("href")

	link := p.outbound(doc, href)
	if link == "" {
		return Result{}, false
	}

	return Result{
		Title:   title,
		URL:     link,
		Snippet: extract.FirstText(container, snippetSelectors),
	}, true
}

func (p *BrowserProvider) parseAnchors(doc *browser.Document) []Result {
	return browser.Evaluate(doc, func(root *goquery.Selection) []Result {
		var results []Result

		root.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
			href, _ := a.Attr("href")
			link := p.outbound(doc, href)
			title := extract.Normalize(a.Text())
			if link == "" || extract.Length(title) <= MinTitleLength {
				return
			}
			results = append(results, Result{Title: title, URL: link})
		})

		return results
	})
}

// outbound resolves href, unwraps /url?q= redirects and drops links back to the engine itself.
func (p *BrowserProvider) outbound(doc *browser.Document, href string) string {
	link := doc.Resolve(href)
	if link == "" {
		return ""
	}

	if u, err := url.Parse(link); err == nil && u.Path == "/url" {
		target := cmp.Or(u.Query().Get("q"), u.Query().Get("url"))
		if link = doc.Resolve(target); link == "" {
			return ""
		}
	}

	if browser.SameSite(link, doc.URL) {
		return ""
	}
	return link
}
