package listing

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/lysyi3m/article-comb/app/browser"
	"github.com/lysyi3m/article-comb/app/extract"
	"github.com/lysyi3m/article-comb/app/source"
)

const (
	maxPageNumber    = 10000
	maxPreviewLength = 500
)

var (
	pageQueryPattern = regexp.MustCompile(`[?&](?:page|paged)=(\d+)`)
	pagePathPattern  = regexp.MustCompile(`/page/(\d+)`)
)

type Crawler struct {
	userAgent string
}

func NewCrawler(userAgent string) *Crawler {
	return &Crawler{userAgent: userAgent}
}

// Discover lands on the last listing page and enumerates up to TargetCount candidates there.
// Only a failure to load the index page is returned as an error.
func (c *Crawler) Discover(ctx context.Context, session browser.Session, src *source.Config) (*Discovery, error) {
	opts := browser.LoadOptions{Wait: browser.WaitStable, Timeout: src.Timeout()}

	index, err := session.Load(ctx, src.URL, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to load listing index: %w", err)
	}

	result := &Discovery{Page: 1, PageURL: index.URL, LastPage: 1, Method: MethodNone}
	page := index
	items, method := c.enumerate(page, src)

	if last := c.lastPage(index, src.Listing.PaginationSelectors); last > 1 {
		result.LastPage = last

		for _, pattern := range src.Listing.PagePatterns {
			pageURL := src.PageURL(pattern, last)

			doc, err := session.Load(ctx, pageURL, opts)
			if err != nil {
				slog.Debug("Page pattern failed", "source", src.Name, "url", pageURL, "error", err)
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				continue
			}

			pageItems, pageMethod := c.enumerate(doc, src)
			if len(pageItems) == 0 || sameItems(pageItems, items) {
				slog.Debug("Page pattern did not reach a new page", "source", src.Name, "url", pageURL)
				continue
			}

			page, items, method = doc, pageItems, pageMethod
			result.Page, result.PageURL = last, pageURL
			break
		}

		if result.Page == 1 {
			slog.Warn("Could not navigate to last listing page, staying on page 1", "source", src.Name, "last_page", last)
		}
	}

	// The feed lists the newest posts, so it stands in only for an empty landed page
	// or for a loose anchor scan of page 1.
	if method == MethodNone || (result.Page == 1 && method == MethodAnchors) {
		if feedItems := c.feed(ctx, index, src); len(feedItems) > 0 {
			items, method = feedItems, MethodFeed
		}
	}

	result.Items = limit(dedupe(items, src.URL), src.Settings.TargetCount)
	if len(result.Items) > 0 {
		result.Method = method
	}

	slog.Info("Listing discovered", "source", src.Name, "page", result.Page, "last_page", result.LastPage, "method", result.Method, "items", len(result.Items), "url", page.URL)

	return result, nil
}

// enumerate tries structured cards first, then same-site anchors following the link path convention.
func (c *Crawler) enumerate(doc *browser.Document, src *source.Config) ([]CandidateItem, Method) {
	if items := c.cards(doc, src); len(items) > 0 {
		return items, MethodCards
	}
	if items := c.anchors(doc, src); len(items) > 0 {
		return items, MethodAnchors
	}
	return nil, MethodNone
}

// lastPage reads the highest numeric pagination label. Page numbers in hrefs are
// used only when no numeric label exists.
func (c *Crawler) lastPage(doc *browser.Document, selectors []string) int {
	return browser.Evaluate(doc, func(root *goquery.Selection) int {
		strategies := make([]extract.Strategy[int], 0, len(selectors))

		for _, selector := range selectors {
			strategies = append(strategies, func(root *goquery.Selection) (int, bool) {
				labelMax, hrefMax := 0, 0

				root.Find(selector).Each(func(_ int, s *goquery.Selection) {
					if n, err := strconv.Atoi(extract.Normalize(s.Text())); err == nil && n < maxPageNumber {
						labelMax = max(labelMax, n)
					}
					if href, ok := s.Attr("href"); ok {
						hrefMax = max(hrefMax, pageFromHref(href))
					}
				})

				if labelMax > 0 {
					return labelMax, true
				}
				return hrefMax, hrefMax > 0
			})
		}

		n, _ := extract.Cascade(root, strategies...)
		return n
	})
}

func pageFromHref(href string) int {
	for _, pattern := range []*regexp.Regexp{pageQueryPattern, pagePathPattern} {
		if m := pattern.FindStringSubmatch(href); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n < maxPageNumber {
				return n
			}
		}
	}
	return 0
}

func (c *Crawler) cards(doc *browser.Document, src *source.Config) []CandidateItem {
	return browser.Evaluate(doc, func(root *goquery.Selection) []CandidateItem {
		strategies := make([]extract.Strategy[[]CandidateItem], 0, len(src.Listing.ItemSelectors))

		for _, selector := range src.Listing.ItemSelectors {
			strategies = append(strategies, func(root *goquery.Selection) ([]CandidateItem, bool) {
				var items []CandidateItem
				root.Find(selector).Each(func(_ int, card *goquery.Selection) {
					if item, ok := c.card(doc, card, src); ok {
						items = append(items, item)
					}
				})
				return items, len(items) > 0
			})
		}

		items, idx := extract.Cascade(root, strategies...)
		if idx >= 0 {
			slog.Debug("Item cards matched", "url", doc.URL, "selector", src.Listing.ItemSelectors[idx], "count", len(items))
		}
		return items
	})
}

func (c *Crawler) card(doc *browser.Document, card *goquery.Selection, src *source.Config) (CandidateItem, bool) {
	link, anchorText := cardLink(doc, card, src)
	if link == "" {
		return CandidateItem{}, false
	}

	title := extract.FirstText(card, src.Listing.TitleSelectors)
	if title == "" {
		title = anchorText
	}
	if title == "" {
		return CandidateItem{}, false
	}

	preview := extract.FirstText(card, src.Listing.PreviewSelectors)
	if preview == title {
		preview = ""
	}

	return CandidateItem{
		Title:       title,
		URL:         link,
		Preview:     extract.Truncate(preview, maxPreviewLength),
		Author:      extract.FirstText(card, src.Listing.AuthorSelectors),
		PublishedAt: extract.FirstDate(card, src.Listing.DateSelectors),
	}, true
}

// cardLink prefers a link following the path convention over any other same-site link.
func cardLink(doc *browser.Document, card *goquery.Selection, src *source.Config) (string, string) {
	anchors := card.Find("a[href]")
	if goquery.NodeName(card) == "a" {
		anchors = card.AddSelection(anchors)
	}

	var fallback, fallbackText string
	var found, foundText string

	anchors.EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		link := articleLink(doc.Resolve(href), src)
		if link == "" {
			return true
		}

		text := extract.Normalize(a.Text())
		if followsConvention(link, src.Listing.LinkPath) {
			found, foundText = link, text
			return false
		}
		if fallback == "" {
			fallback, fallbackText = link, text
		}
		return true
	})

	if found != "" {
		return found, foundText
	}
	return fallback, fallbackText
}

func (c *Crawler) anchors(doc *browser.Document, src *source.Config) []CandidateItem {
	return browser.Evaluate(doc, func(root *goquery.Selection) []CandidateItem {
		var items []CandidateItem

		root.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
			href, _ := a.Attr("href")
			link := articleLink(doc.Resolve(href), src)
			if link == "" || !followsConvention(link, src.Listing.LinkPath) {
				return
			}

			title := extract.Normalize(a.Text())
			if title == "" {
				title = extract.Normalize(a.AttrOr("title", ""))
			}
			if title == "" {
				return
			}

			items = append(items, CandidateItem{Title: title, URL: link})
		})

		return items
	})
}

func (c *Crawler) feed(ctx context.Context, doc *browser.Document, src *source.Config) []CandidateItem {
	feedURL := src.Listing.FeedURL
	if feedURL == "" {
		href, _ := doc.Find(`link[rel="alternate"][type*="rss"], link[rel="alternate"][type*="atom"]`).First().Attr("href")
		feedURL = doc.Resolve(href)
	}
	if feedURL == "" {
		return nil
	}

	parser := gofeed.NewParser()
	parser.UserAgent = c.userAgent

	feed, err := parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		slog.Warn("Failed to parse listing feed", "source", src.Name, "url", feedURL, "error", err)
		return nil
	}

	var items []CandidateItem
	// Feeds list newest first; walk backwards to keep the oldest-first policy.
	for i := len(feed.Items) - 1; i >= 0; i-- {
		entry := feed.Items[i]
		if entry == nil {
			continue
		}

		link := doc.Resolve(entry.Link)
		title := extract.Normalize(entry.Title)
		if link == "" || title == "" {
			continue
		}

		item := CandidateItem{
			Title:       title,
			URL:         browser.CanonicalURL(link),
			Preview:     extract.Truncate(htmlText(entry.Description), maxPreviewLength),
			PublishedAt: entry.PublishedParsed,
		}
		if entry.Author != nil {
			item.Author = extract.Normalize(entry.Author.Name)
		} else if len(entry.Authors) > 0 && entry.Authors[0] != nil {
			item.Author = extract.Normalize(entry.Authors[0].Name)
		}

		items = append(items, item)
	}

	slog.Debug("Listing feed parsed", "source", src.Name, "url", feedURL, "items", len(items))

	return items
}

// articleLink canonicalizes link and rejects off-site, index and pagination addresses.
func articleLink(link string, src *source.Config) string {
	if link == "" || !browser.SameSite(link, src.URL) {
		return ""
	}

	canonical := browser.CanonicalURL(link)
	if canonical == browser.CanonicalURL(src.URL) || pageFromHref(canonical) > 0 {
		return ""
	}
	return canonical
}

func followsConvention(link, linkPath string) bool {
	u, err := url.Parse(link)
	if err != nil {
		return false
	}

	convention := strings.TrimRight(linkPath, "/")
	if convention == "" {
		return true
	}
	return strings.Contains(u.Path, convention) && strings.TrimRight(u.Path, "/") != convention
}

func htmlText(fragment string) string {
	if fragment == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return extract.Normalize(fragment)
	}
	return extract.Normalize(doc.Text())
}

func dedupe(items []CandidateItem, indexURL string) []CandidateItem {
	seen := map[string]bool{browser.CanonicalURL(indexURL): true}
	out := make([]CandidateItem, 0, len(items))

	for _, item := range items {
		if seen[item.URL] {
			continue
		}
		seen[item.URL] = true
		out = append(out, item)
	}

	return out
}

func limit(items []CandidateItem, n int) []CandidateItem {
	if n > 0 && len(items) > n {
		return items[:n]
	}
	return items
}

func sameItems(a, b []CandidateItem) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].URL != b[i].URL {
			return false
		}
	}
	return true
}
