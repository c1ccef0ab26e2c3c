package extract

import (
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"time"

	"codeberg.org/readeck/go-readability"
	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"

	"github.com/lysyi3m/article-comb/app/browser"
)

const (
	noiseSelector = `script, style, noscript, template, iframe, svg, form, nav, header, footer, aside,
		.ad, .ads, .advertisement, [class*="advert"], .sidebar, [class*="sidebar"],
		[class*="cookie"], [class*="newsletter"], [aria-hidden="true"]`

	textSelector = "p, h1, h2, h3, h4, h5, h6, li, blockquote"

	maxBoilerplateLength = 200
)

// Applied only to fragments shorter than maxBoilerplateLength.
var boilerplatePattern = regexp.MustCompile(`(?i)((we use|this site uses|accept( all)?|manage) cookies|cookie (policy|settings|preferences|consent)|privacy policy|terms of (use|service)|all rights reserved|^share (this|on)\b|subscribe to (our|the) newsletter|sign up for our|follow us on|^accept all\b|^(read more|continue reading)\b|^related posts\b)`)

type ContentOptions struct {
	MinRootLength     int // a root candidate must carry more text than this
	MinFragmentLength int
	MaxLength         int // zero means unlimited
}

var DefaultContentOptions = ContentOptions{
	MinRootLength:     200,
	MinFragmentLength: 20,
	MaxLength:         8000,
}

type Content struct {
	Text     string
	Selector string // winning selector, empty when the body fallback was used
	Fallback bool
}

type MetadataSelectors struct {
	Title  []string
	Author []string
	Date   []string
	Tags   []string
}

type Metadata struct {
	Title       string
	Author      string
	PublishedAt *time.Time
	Tags        []string
}

type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

// Content picks the content root with the selector cascade and renders its text-bearing nodes.
func (e *Extractor) Content(doc *browser.Document, selectors []string, opts ContentOptions) Content {
	if doc == nil {
		return Content{}
	}

	clean := doc.Clone()
	clean.Find(noiseSelector).Remove()

	return browser.Evaluate(clean, func(root *goquery.Selection) Content {
		strategies := BySelectors(selectors, func(s *goquery.Selection) (*goquery.Selection, bool) {
			return s, Length(Normalize(s.Text())) > opts.MinRootLength
		})

		chosen, idx := Cascade(root, strategies...)

		content := Content{}
		if idx < 0 {
			chosen = root.Find("body")
			if chosen.Length() == 0 {
				chosen = root
			}
			content.Fallback = true
		} else {
			content.Selector = selectors[idx]
		}

		content.Text = Truncate(e.render(chosen, opts), opts.MaxLength)

		slog.Debug("Content extracted", "url", doc.URL, "selector", content.Selector, "fallback", content.Fallback, "length", Length(content.Text))

		return content
	})
}

func (e *Extractor) render(root *goquery.Selection, opts ContentOptions) string {
	var fragments []string
	seen := make(map[string]bool)

	root.Find(textSelector).Each(func(_ int, s *goquery.Selection) {
		// Outermost text nodes only: a <p> inside an <li> is rendered with the <li>.
		if s.ParentsUntilSelection(root).Filter(textSelector).Length() > 0 {
			return
		}

		text := Normalize(s.Text())
		if Length(text) < opts.MinFragmentLength || isBoilerplate(text) || seen[text] {
			return
		}
		seen[text] = true

		fragments = append(fragments, formatFragment(goquery.NodeName(s), text))
	})

	if len(fragments) == 0 {
		text := Normalize(root.Text())
		if Length(text) > opts.MinRootLength {
			return text
		}
		return ""
	}

	return strings.Join(fragments, "\n\n")
}

func isBoilerplate(text string) bool {
	return Length(text) < maxBoilerplateLength && boilerplatePattern.MatchString(text)
}

func formatFragment(tag, text string) string {
	switch tag {
	case "h1", "h2", "h3", "h4", "h5", "h6":
		return strings.Repeat("#", int(tag[1]-'0')) + " " + text
	case "li":
		return "- " + text
	case "blockquote":
		return "> " + text
	default:
		return text
	}
}

// Metadata runs an independent cascade per field.
func (e *Extractor) Metadata(doc *browser.Document, selectors MetadataSelectors) Metadata {
	return browser.Evaluate(doc, func(root *goquery.Selection) Metadata {
		var meta Metadata

		meta.Title = FirstText(root, selectors.Title)
		meta.Author = FirstText(root, selectors.Author)
		meta.PublishedAt = FirstDate(root, selectors.Date)
		meta.Tags, _ = Cascade(root, tagStrategies(selectors.Tags)...)

		return meta
	})
}

// Readable runs the readability algorithm over the snapshot HTML.
func (e *Extractor) Readable(doc *browser.Document, maxLength int) (string, string, error) {
	if doc == nil || doc.HTML == "" {
		return "", "", fmt.Errorf("HTML data is empty")
	}

	pageURL, err := url.Parse(doc.URL)
	if err != nil {
		return "", "", fmt.Errorf("failed to parse page URL: %w", err)
	}

	article, err := readability.FromReader(strings.NewReader(doc.HTML), pageURL)
	if err != nil {
		return "", "", fmt.Errorf("failed to extract readable content: %w", err)
	}

	if article.Content == "" {
		return "", "", fmt.Errorf("no content extracted from HTML data")
	}

	content, err := goquery.NewDocumentFromReader(strings.NewReader(article.Content))
	if err != nil {
		return "", "", fmt.Errorf("failed to parse readable content: %w", err)
	}

	return Normalize(article.Title), Truncate(NormalizeBlock(content.Text()), maxLength), nil
}

// FirstText is the first non-empty text (or content attribute) matched by the selectors under root.
func FirstText(root *goquery.Selection, selectors []string) string {
	v, _ := Cascade(root, BySelectors(selectors, nonEmpty(attrOrText("content")))...)
	return v
}

func FirstDate(root *goquery.Selection, selectors []string) *time.Time {
	v, _ := Cascade(root, BySelectors(selectors, ParseDate)...)
	return v
}

func attrOrText(attr string) func(*goquery.Selection) string {
	return func(s *goquery.Selection) string {
		if v, ok := s.Attr(attr); ok {
			return Normalize(v)
		}
		return Normalize(s.Text())
	}
}

func nonEmpty(read func(*goquery.Selection) string) func(*goquery.Selection) (string, bool) {
	return func(s *goquery.Selection) (string, bool) {
		v := read(s)
		return v, v != ""
	}
}

// ParseDate reads a date from datetime/content attributes, then from the element text.
func ParseDate(s *goquery.Selection) (*time.Time, bool) {
	for _, attr := range []string{"datetime", "content"} {
		if v, ok := s.Attr(attr); ok {
			if t, err := dateparse.ParseAny(strings.TrimSpace(v)); err == nil {
				return &t, true
			}
		}
	}

	text := Normalize(s.Text())
	if text == "" {
		return nil, false
	}
	for _, prefix := range []string{"Published on", "Published", "Posted on", "Updated on"} {
		text = strings.TrimSpace(strings.TrimPrefix(text, prefix))
	}

	t, err := dateparse.ParseAny(text)
	if err != nil {
		return nil, false
	}
	return &t, true
}

func tagStrategies(selectors []string) []Strategy[[]string] {
	strategies := make([]Strategy[[]string], 0, len(selectors))
	read := attrOrText("content")

	for _, selector := range selectors {
		strategies = append(strategies, func(root *goquery.Selection) ([]string, bool) {
			var tags []string
			seen := make(map[string]bool)

			root.Find(selector).Each(func(_ int, s *goquery.Selection) {
				if tag := read(s); tag != "" && !seen[strings.ToLower(tag)] {
					seen[strings.ToLower(tag)] = true
					tags = append(tags, tag)
				}
			})

			return tags, len(tags) > 0
		})
	}

	return strategies
}
