package listing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/lysyi3m/article-comb/app/browser"
	"github.com/lysyi3m/article-comb/app/browser/browsertest"
	"github.com/lysyi3m/article-comb/app/source"
)

const indexURL = "https://beyondchats.com/blogs/"

func card(slug, title string) string {
	return fmt.Sprintf(`<article class="entry">
		<h2><a href="/blogs/%s/">%s</a></h2>
		<p class="excerpt">Preview of %s with a few more words.</p>
		<span class="author">Team Writer</span>
		<time datetime="2021-06-01T09:00:00Z">June 1, 2021</time>
		<a href="/tag/chatbots/">chatbots</a>
	</article>`, slug, title, title)
}

func listingPage(pagination string, cards ...string) string {
	return `<html><head><title>Blogs</title></head><body>
		<header><a href="/">Home</a></header>
		<main>` + strings.Join(cards, "\n") + `</main>
		` + pagination + `
	</body></html>`
}

const sevenPages = `<nav class="pagination">
	<a href="/blogs/page/2/">2</a>
	<a href="/blogs/page/3/">3</a>
	<span>…</span>
	<a href="/blogs/page/7/">7</a>
	<a href="/blogs/page/2/">Next »</a>
</nav>`

func newTestSource() *source.Config {
	src := source.New("beyondchats", indexURL)
	src.Listing.LinkPath = "/blogs/"
	return src
}

func discover(t *testing.T, l *browsertest.Launcher, src *source.Config) *Discovery {
	t.Helper()

	session, err := l.NewSession(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer session.Close()

	result, err := NewCrawler("test-agent").Discover(context.Background(), session, src)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	return result
}

func TestCrawler_Discover_LandsOnLastPage(t *testing.T) {
	index := listingPage(sevenPages,
		card("newest-post", "The Newest Post On The Blog"),
		card("second-newest", "The Second Newest Post"),
	)
	lastPage := listingPage(`<nav class="pagination"><a href="/blogs/page/6/">6</a><span>7</span></nav>`,
		card("chatbots-101", "Chatbots 101 For Small Teams"),
		card("live-chat-vs-bots", "Live Chat Versus Chatbots"),
		card("first-post", "Our Very First Post"),
	)

	l := browsertest.New().
		Page(indexURL, index).
		Page(indexURL+"?page=7", index). // server ignores the query parameter
		Page(indexURL+"page/7/", lastPage)

	result := discover(t, l, newTestSource())

	if result.LastPage != 7 {
		t.Errorf("Expected last page 7, got %d", result.LastPage)
	}
	if result.Page != 7 || result.PageURL != indexURL+"page/7/" {
		t.Errorf("Expected to land on page 7 via path pattern, got page %d at %s", result.Page, result.PageURL)
	}
	if result.Method != MethodCards {
		t.Errorf("Expected cards method, got %s", result.Method)
	}
	if len(result.Items) != 3 {
		t.Fatalf("Expected 3 candidates, got %d", len(result.Items))
	}

	first := result.Items[0]
	if first.Title != "Chatbots 101 For Small Teams" {
		t.Errorf("Expected first card title, got %q", first.Title)
	}
	if first.URL != "https://beyondchats.com/blogs/chatbots-101" {
		t.Errorf("Expected canonical article link, got %q", first.URL)
	}
	if !strings.HasPrefix(first.Preview, "Preview of Chatbots 101") {
		t.Errorf("Expected preview text, got %q", first.Preview)
	}
	if first.Author != "Team Writer" {
		t.Errorf("Expected author, got %q", first.Author)
	}
	if first.PublishedAt == nil || first.PublishedAt.Year() != 2021 {
		t.Errorf("Expected 2021 publish date, got %v", first.PublishedAt)
	}

	if l.VisitCount(indexURL+"?page=7") != 1 || l.VisitCount(indexURL+"page/7/") != 1 {
		t.Errorf("Expected both page patterns to be tried in order, visited %v", l.Visited)
	}
}

func TestCrawler_Discover_StaysOnFirstPageWhenPatternsFail(t *testing.T) {
	index := listingPage(sevenPages, card("only-post", "The Only Reachable Post"))
	l := browsertest.New().Page(indexURL, index)

	result := discover(t, l, newTestSource())

	if result.Page != 1 || result.LastPage != 7 {
		t.Errorf("Expected page 1 of 7, got page %d of %d", result.Page, result.LastPage)
	}
	if len(result.Items) != 1 || result.Items[0].URL != "https://beyondchats.com/blogs/only-post" {
		t.Errorf("Expected page 1 items, got %+v", result.Items)
	}
}

func TestCrawler_Discover_TargetCountAndDedupe(t *testing.T) {
	index := listingPage("",
		card("a", "Article A Title"),
		`<article><h3><a href="/blogs/a/?utm_source=newsletter#comments">Article A Title again</a></h3></article>`,
		card("b", "Article B Title"),
		card("c", "Article C Title"),
	)
	l := browsertest.New().Page(indexURL, index)

	src := newTestSource()
	src.Settings.TargetCount = 2

	result := discover(t, l, src)

	if len(result.Items) != 2 {
		t.Fatalf("Expected 2 candidates, got %d", len(result.Items))
	}
	if result.Items[0].URL != "https://beyondchats.com/blogs/a" || result.Items[1].URL != "https://beyondchats.com/blogs/b" {
		t.Errorf("Unexpected candidates: %+v", result.Items)
	}
}

func TestCrawler_Discover_AnchorFallback(t *testing.T) {
	page := `<html><body><div id="list"><ul>
		<li><a href="/blogs/how-to-pick-a-chatbot">How to pick a chatbot</a></li>
		<li><a href="/about">About us</a></li>
		<li><a href="https://other.com/blogs/elsewhere">Elsewhere</a></li>
		<li><a href="/blogs/">All blogs</a></li>
		<li><a href="/blogs/page/2/">2</a></li>
	</ul></div></body></html>`

	l := browsertest.New().Page(indexURL, page)
	result := discover(t, l, newTestSource())

	if result.Method != MethodAnchors {
		t.Errorf("Expected anchors method, got %s", result.Method)
	}
	if len(result.Items) != 1 {
		t.Fatalf("Expected 1 candidate, got %+v", result.Items)
	}
	if result.Items[0].Title != "How to pick a chatbot" {
		t.Errorf("Expected anchor text as title, got %q", result.Items[0].Title)
	}
}

func TestCrawler_Discover_FeedFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, `<?xml version="1.0"?>
<rss version="2.0"><channel><title>Blogs</title><link>https://beyondchats.com/blogs/</link>
<item><title>Newer Feed Post</title><link>https://beyondchats.com/blogs/newer</link><description>&lt;p&gt;Newer summary&lt;/p&gt;</description><pubDate>Tue, 02 Jan 2024 10:00:00 GMT</pubDate></item>
<item><title>Older Feed Post</title><link>https://beyondchats.com/blogs/older</link><description>Older summary</description><pubDate>Mon, 01 Jan 2024 10:00:00 GMT</pubDate></item>
</channel></rss>`)
	}))
	defer server.Close()

	page := `<html><head><link rel="alternate" type="application/rss+xml" href="` + server.URL + `/feed"></head>
	<body><div id="list"><a href="/blogs/loose-link">A loose link</a></div></body></html>`

	l := browsertest.New().Page(indexURL, page)
	result := discover(t, l, newTestSource())

	if result.Method != MethodFeed {
		t.Errorf("Expected feed method, got %s", result.Method)
	}
	if len(result.Items) != 2 {
		t.Fatalf("Expected 2 feed candidates, got %+v", result.Items)
	}
	if result.Items[0].Title != "Older Feed Post" {
		t.Errorf("Expected oldest feed item first, got %q", result.Items[0].Title)
	}
	if result.Items[1].Preview != "Newer summary" {
		t.Errorf("Expected HTML stripped preview, got %q", result.Items[1].Preview)
	}
	if result.Items[0].PublishedAt == nil {
		t.Error("Expected feed publish date")
	}
}

func TestCrawler_Discover_LastPageAnchorsBeatIndexFeed(t *testing.T) {
	var feedRequests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		feedRequests.Add(1)
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, `<?xml version="1.0"?>
<rss version="2.0"><channel><title>Blogs</title><link>https://beyondchats.com/blogs/</link>
<item><title>Newest Post Of All</title><link>https://beyondchats.com/blogs/newest</link></item>
</channel></rss>`)
	}))
	defer server.Close()

	index := `<html><head><link rel="alternate" type="application/rss+xml" href="` + server.URL + `/feed"></head>
	<body><div id="list">
		<a href="/blogs/newest">Newest Post Of All</a>
		<a href="/blogs/second-newest">Second Newest Post</a>
	</div>` + sevenPages + `</body></html>`
	lastPage := `<html><body><div id="list">
		<a href="/blogs/oldest-one">The Oldest Post</a>
		<a href="/blogs/oldest-two">The Second Oldest Post</a>
	</div><nav class="pagination"><a href="/blogs/page/6/">6</a><span>7</span></nav></body></html>`

	l := browsertest.New().
		Page(indexURL, index).
		Page(indexURL+"page/7/", lastPage)

	result := discover(t, l, newTestSource())

	if result.Page != 7 {
		t.Fatalf("Expected to land on page 7, got page %d", result.Page)
	}
	if result.Method != MethodAnchors {
		t.Errorf("Expected anchors method on the landed page, got %s", result.Method)
	}
	if len(result.Items) != 2 ||
		result.Items[0].URL != "https://beyondchats.com/blogs/oldest-one" ||
		result.Items[1].URL != "https://beyondchats.com/blogs/oldest-two" {
		t.Errorf("Expected the oldest anchors from page 7, got %+v", result.Items)
	}
	if n := feedRequests.Load(); n != 0 {
		t.Errorf("Expected the index feed not to be fetched, got %d requests", n)
	}
}

func TestCrawler_Discover_IndexFailure(t *testing.T) {
	l := browsertest.New().Fail(indexURL, errors.New("net::ERR_TIMED_OUT"))

	session, err := l.NewSession(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer session.Close()

	_, err = NewCrawler("").Discover(context.Background(), session, newTestSource())
	if err == nil {
		t.Fatal("Expected error when index cannot be loaded")
	}
	if !browser.IsFetchError(err) {
		t.Errorf("Expected fetch error, got %v", err)
	}
}

func TestCrawler_LastPage(t *testing.T) {
	tests := []struct {
		name     string
		html     string
		expected int
	}{
		{"numeric labels", `<div class="pagination"><a>1</a><a>12</a><a>Next</a></div>`, 12},
		{"href only", `<div class="pagination"><a href="/blogs/?page=4">Last »</a></div>`, 4},
		{"none", `<div><a href="/x">x</a></div>`, 0},
	}

	c := NewCrawler("")
	for _, tt := range tests {
		doc, err := browser.NewDocument(indexURL, "<html><body>"+tt.html+"</body></html>")
		if err != nil {
			t.Fatal(err)
		}
		if got := c.lastPage(doc, source.DefaultPaginationSelectors); got != tt.expected {
			t.Errorf("%s: expected %d, got %d", tt.name, tt.expected, got)
		}
	}
}
