package browser

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const samplePage = `<!DOCTYPE html>
<html>
<head><title>  Sample Page </title></head>
<body>
  <h1>Heading</h1>
  <p>First   paragraph
     spans lines.</p>
  <a id="rel" href="/blogs/post-1#comments">Relative</a>
  <a id="abs" href="https://other.example.com/x">Absolute</a>
  <a id="mail" href="mailto:someone@example.com">Mail</a>
  <a id="frag" href="#top">Fragment</a>
</body>
</html>`

func TestNewDocument(t *testing.T) {
	doc, err := NewDocument("https://example.com/blogs/", samplePage)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if doc.Title != "Sample Page" {
		t.Errorf("Expected title 'Sample Page', got '%s'", doc.Title)
	}
	if doc.Find("h1").Text() != "Heading" {
		t.Errorf("Expected heading text, got '%s'", doc.Find("h1").Text())
	}
	if doc.Text() != "Heading First paragraph spans lines. Relative Absolute Mail Fragment" {
		t.Errorf("Unexpected body text: %q", doc.Text())
	}
}

func TestDocument_Resolve(t *testing.T) {
	doc, err := NewDocument("https://example.com/blogs/", samplePage)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		id       string
		expected string
	}{
		{"rel", "https://example.com/blogs/post-1"},
		{"abs", "https://other.example.com/x"},
		{"mail", ""},
		{"frag", ""},
	}

	for _, tt := range tests {
		href, _ := doc.Find("#" + tt.id).Attr("href")
		if got := doc.Resolve(href); got != tt.expected {
			t.Errorf("Resolve(%s): expected %q, got %q", tt.id, tt.expected, got)
		}
	}
}

func TestDocument_ResolveWithBaseTag(t *testing.T) {
	doc, err := NewDocument("https://example.com/a/b", `<html><head><base href="https://cdn.example.com/root/"></head><body></body></html>`)
	if err != nil {
		t.Fatal(err)
	}

	if got := doc.Resolve("post"); got != "https://cdn.example.com/root/post" {
		t.Errorf("Expected base tag to be honored, got %q", got)
	}
}

func TestDocument_Clone(t *testing.T) {
	doc, err := NewDocument("https://example.com/", samplePage)
	if err != nil {
		t.Fatal(err)
	}

	clone := doc.Clone()
	clone.Find("h1").Remove()

	if doc.Find("h1").Length() != 1 {
		t.Error("Expected original snapshot to be unaffected by clone mutation")
	}
	if clone.Find("h1").Length() != 0 {
		t.Error("Expected clone to be mutated")
	}
}

func TestEvaluate(t *testing.T) {
	doc, err := NewDocument("https://example.com/", samplePage)
	if err != nil {
		t.Fatal(err)
	}

	count := Evaluate(doc, func(s *goquery.Selection) int {
		return s.Find("a").Length()
	})
	if count != 4 {
		t.Errorf("Expected 4 links, got %d", count)
	}
}

func TestEvaluate_PanicYieldsZero(t *testing.T) {
	doc, err := NewDocument("https://example.com/", samplePage)
	if err != nil {
		t.Fatal(err)
	}

	got := Evaluate(doc, func(s *goquery.Selection) []string {
		var items []string
		_ = items[3]
		return []string{"unreachable"}
	})
	if got != nil {
		t.Errorf("Expected nil result after panic, got %v", got)
	}

	if Evaluate(nil, func(s *goquery.Selection) string { return "x" }) != "" {
		t.Error("Expected zero value for nil document")
	}
}

func TestFetchError(t *testing.T) {
	cause := errors.New("net::ERR_NAME_NOT_RESOLVED")
	err := fmt.Errorf("wrapped: %w", &FetchError{URL: "https://bad.example.com", Err: cause})

	if !IsFetchError(err) {
		t.Error("Expected IsFetchError to see through wrapping")
	}
	if !errors.Is(err, cause) {
		t.Error("Expected FetchError to unwrap to its cause")
	}
	if IsFetchError(ErrLaunch) {
		t.Error("Expected launch error not to be a fetch error")
	}
}

func TestFetcher_SettleDelay(t *testing.T) {
	f := NewFetcher(Options{SettleMin: 100 * time.Millisecond, SettleMax: 300 * time.Millisecond})

	for i := 0; i < 50; i++ {
		d := f.settleDelay()
		if d < 100*time.Millisecond || d >= 300*time.Millisecond {
			t.Fatalf("Expected delay within [100ms, 300ms), got %v", d)
		}
	}

	fixed := NewFetcher(Options{SettleMin: 50 * time.Millisecond, SettleMax: 10 * time.Millisecond})
	if fixed.settleDelay() != 50*time.Millisecond {
		t.Errorf("Expected inverted range to collapse to the minimum, got %v", fixed.settleDelay())
	}
}

func TestNewFetcher_Defaults(t *testing.T) {
	f := NewFetcher(Options{})

	if f.opts.PoolSize != 1 {
		t.Errorf("Expected pool size 1, got %d", f.opts.PoolSize)
	}
	if f.opts.NavigationTimeout != 60*time.Second {
		t.Errorf("Expected 60s navigation timeout, got %v", f.opts.NavigationTimeout)
	}
	if f.opts.ViewportWidth != 1920 || f.opts.ViewportHeight != 1080 {
		t.Errorf("Expected 1920x1080 viewport, got %dx%d", f.opts.ViewportWidth, f.opts.ViewportHeight)
	}
}
