package extract

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"github.com/lysyi3m/article-comb/app/browser"
)

func longText(prefix string, n int) string {
	words := make([]string, 0, n)
	for i := 0; i < n; i++ {
		words = append(words, prefix)
	}
	return strings.Join(words, " ")
}

func mustDocument(t *testing.T, html string) *browser.Document {
	t.Helper()
	doc, err := browser.NewDocument("https://example.com/blogs/post", html)
	if err != nil {
		t.Fatal(err)
	}
	return doc
}

func TestCascade_FirstSuccessWins(t *testing.T) {
	doc := mustDocument(t, `<html><body><div class="b">beta</div><div class="c">gamma</div></body></html>`)

	strategies := BySelectors([]string{".a", ".b", ".c"}, func(s *goquery.Selection) (string, bool) {
		return s.Text(), true
	})

	got, idx := Cascade(doc.Selection(), strategies...)
	if got != "beta" || idx != 1 {
		t.Errorf("Expected 'beta' at index 1, got %q at %d", got, idx)
	}

	_, idx = Cascade(doc.Selection(), BySelectors([]string{".x", ".y"}, func(s *goquery.Selection) (string, bool) {
		return s.Text(), true
	})...)
	if idx != -1 {
		t.Errorf("Expected -1 when nothing matches, got %d", idx)
	}
}

func TestCascade_DocumentOrderWithinSelector(t *testing.T) {
	doc := mustDocument(t, `<html><body><p>short</p><p>this one is long enough</p><p>also long enough text</p></body></html>`)

	got, _ := Cascade(doc.Selection(), BySelectors([]string{"p"}, func(s *goquery.Selection) (string, bool) {
		return s.Text(), len(s.Text()) > 10
	})...)
	if got != "this one is long enough" {
		t.Errorf("Expected first qualifying match in document order, got %q", got)
	}
}

func TestExtractor_Content_NthSelectorChosen(t *testing.T) {
	body := longText("substantive", 40)
	doc := mustDocument(t, `<html><body>
		<article><p>Too short to count as the article root.</p></article>
		<div class="post-content"><p>Also not enough text in here.</p></div>
		<div class="entry-content"><p>`+body+`</p></div>
		<main><p>`+longText("other", 60)+`</p></main>
	</body></html>`)

	selectors := []string{"article", ".post-content", ".entry-content", "main"}
	content := NewExtractor().Content(doc, selectors, DefaultContentOptions)

	if content.Selector != ".entry-content" {
		t.Errorf("Expected third selector to win, got %q", content.Selector)
	}
	if content.Fallback {
		t.Error("Expected no body fallback")
	}
	if content.Text != body {
		t.Errorf("Expected entry content text, got %q", content.Text)
	}
}

func TestExtractor_Content_BodyFallback(t *testing.T) {
	doc := mustDocument(t, `<html><body>
		<div><p>This paragraph lives outside any known container.</p></div>
	</body></html>`)

	content := NewExtractor().Content(doc, []string{"article", "main"}, DefaultContentOptions)
	if !content.Fallback {
		t.Error("Expected body fallback")
	}
	if content.Text != "This paragraph lives outside any known container." {
		t.Errorf("Unexpected fallback text: %q", content.Text)
	}
}

func TestExtractor_Content_Rendering(t *testing.T) {
	doc := mustDocument(t, `<html><body>
		<nav><p>Navigation link list that should disappear</p></nav>
		<article>
			<h2>Why chatbots matter today</h2>
			<p>`+longText("insight", 30)+`</p>
			<p>tiny</p>
			<p>Accept all cookies to continue browsing this site</p>
			<ul><li><p>First list item with enough words</p></li><li>Second list item with enough words</li></ul>
			<blockquote>A quotation that is long enough to keep</blockquote>
			<p>`+longText("insight", 30)+`</p>
			<script>var tracking = "should never appear in output";</script>
		</article>
		<footer><p>Copyright footer text that is long enough</p></footer>
	</body></html>`)

	content := NewExtractor().Content(doc, []string{"article"}, DefaultContentOptions)

	expected := strings.Join([]string{
		"## Why chatbots matter today",
		longText("insight", 30),
		"- First list item with enough words",
		"- Second list item with enough words",
		"> A quotation that is long enough to keep",
	}, "\n\n")

	if content.Text != expected {
		t.Errorf("Unexpected rendering.\nExpected:\n%s\nGot:\n%s", expected, content.Text)
	}
}

func TestExtractor_Content_KeepsProseMentioningBoilerplateWords(t *testing.T) {
	cookies := "Browser cookies let a support chatbot remember returning visitors between sessions."
	readMore := "Agents who read more transcripts spot recurring questions much sooner."
	policy := "Our privacy policy review found that " + longText("retention", 25) + " mattered most."

	doc := mustDocument(t, `<html><body><article>
		<p>`+cookies+`</p>
		<p>`+readMore+`</p>
		<p>`+policy+`</p>
		<p>Read more about our platform</p>
		<p>We use cookies to improve your experience</p>
	</article></body></html>`)

	content := NewExtractor().Content(doc, []string{"article"}, DefaultContentOptions)

	expected := strings.Join([]string{cookies, readMore, policy}, "\n\n")
	if content.Text != expected {
		t.Errorf("Unexpected rendering.\nExpected:\n%s\nGot:\n%s", expected, content.Text)
	}
}

func TestExtractor_Content_MaxLength(t *testing.T) {
	doc := mustDocument(t, `<html><body><article><p>`+longText("abcdefghij", 100)+`</p></article></body></html>`)

	content := NewExtractor().Content(doc, []string{"article"}, ContentOptions{MinRootLength: 200, MinFragmentLength: 20, MaxLength: 50})
	if Length(content.Text) > 50 {
		t.Errorf("Expected at most 50 runes, got %d", Length(content.Text))
	}
}

func TestExtractor_Content_DoesNotMutateSnapshot(t *testing.T) {
	doc := mustDocument(t, `<html><body><nav>menu</nav><article><p>`+longText("word", 60)+`</p></article></body></html>`)

	NewExtractor().Content(doc, []string{"article"}, DefaultContentOptions)

	if doc.Find("nav").Length() != 1 {
		t.Error("Expected original snapshot to keep its nav element")
	}
}

func TestExtractor_Metadata(t *testing.T) {
	doc := mustDocument(t, `<html>
	<head>
		<title>Fallback Title</title>
		<meta property="article:tag" content="AI">
		<meta property="article:tag" content="Support">
		<meta property="article:tag" content="ai">
	</head>
	<body>
		<h1>  Chatbots   in 2024 </h1>
		<span class="author-name">Jane Doe</span>
		<time datetime="2024-03-05T10:00:00Z">March 5, 2024</time>
	</body></html>`)

	meta := NewExtractor().Metadata(doc, MetadataSelectors{
		Title:  []string{"h1", "title"},
		Author: []string{`[rel="author"]`, `[class*="author"]`},
		Date:   []string{"time[datetime]", "time"},
		Tags:   []string{`meta[property="article:tag"]`, `a[rel="tag"]`},
	})

	if meta.Title != "Chatbots in 2024" {
		t.Errorf("Expected normalized title, got %q", meta.Title)
	}
	if meta.Author != "Jane Doe" {
		t.Errorf("Expected author 'Jane Doe', got %q", meta.Author)
	}
	if meta.PublishedAt == nil || meta.PublishedAt.Year() != 2024 || meta.PublishedAt.Month() != 3 || meta.PublishedAt.Day() != 5 {
		t.Errorf("Expected 2024-03-05, got %v", meta.PublishedAt)
	}
	if len(meta.Tags) != 2 || meta.Tags[0] != "AI" || meta.Tags[1] != "Support" {
		t.Errorf("Expected deduplicated tags [AI Support], got %v", meta.Tags)
	}
}

func TestExtractor_Metadata_TextDate(t *testing.T) {
	doc := mustDocument(t, `<html><body><span class="date">Published on 2023-11-20</span></body></html>`)

	meta := NewExtractor().Metadata(doc, MetadataSelectors{Date: []string{".date"}})
	if meta.PublishedAt == nil || meta.PublishedAt.Year() != 2023 || meta.PublishedAt.Day() != 20 {
		t.Errorf("Expected 2023-11-20, got %v", meta.PublishedAt)
	}
	if meta.Title != "" || meta.Author != "" || meta.Tags != nil {
		t.Errorf("Expected empty fields without selectors, got %+v", meta)
	}
}

func TestExtractor_Readable(t *testing.T) {
	var paragraphs []string
	for i := 0; i < 8; i++ {
		paragraphs = append(paragraphs, "<p>Customer support teams adopt conversational assistants, and the results show measurable gains in resolution time, satisfaction scores and agent workload across many industries.</p>")
	}

	doc := mustDocument(t, `<html><head><title>Support Automation Guide</title></head><body>
		<div id="menu"><a href="/">Home</a><a href="/about">About</a></div>
		<div id="story">`+strings.Join(paragraphs, "")+`</div>
	</body></html>`)

	_, text, err := NewExtractor().Readable(doc, 5000)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !strings.Contains(text, "conversational assistants") {
		t.Errorf("Expected readable text to contain article body, got %q", text)
	}
	if Length(text) < 100 {
		t.Errorf("Expected substantial text, got %d runes", Length(text))
	}
}

func TestExtractor_Readable_Empty(t *testing.T) {
	if _, _, err := NewExtractor().Readable(nil, 100); err == nil {
		t.Error("Expected error for nil document")
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"  hello \n\t world  ", "hello world"},
		{"non breaking", "non breaking"},
		{"ﬁne ligature", "fine ligature"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := Normalize(tt.input); got != tt.expected {
			t.Errorf("Normalize(%q): expected %q, got %q", tt.input, tt.expected, got)
		}
	}
}

func TestNormalizeBlock(t *testing.T) {
	got := NormalizeBlock("  first   line \n\n\n second\tline\n ")
	if got != "first line\n\nsecond line" {
		t.Errorf("Unexpected block normalization: %q", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("héllo wörld", 5); got != "héllo" {
		t.Errorf("Expected rune-aware truncation, got %q", got)
	}
	if got := Truncate("short", 0); got != "short" {
		t.Errorf("Expected no limit for 0, got %q", got)
	}
}
