package harvest

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/lysyi3m/article-comb/app/browser"
	"github.com/lysyi3m/article-comb/app/extract"
	"github.com/lysyi3m/article-comb/app/search"
)

const (
	DefaultMinLength = 100
	DefaultMaxLength = 5000

	snippetNotice = "[Full content unavailable; summary from search results only.]"
)

type Reference struct {
	Title       string
	URL         string
	Content     string
	FromSnippet bool
	HarvestedAt time.Time
}

type Options struct {
	ContentSelectors []string
	MaxLength        int
	MinLength        int // below this the next tier is tried
}

type Harvester struct {
	launcher  browser.Launcher
	extractor *extract.Extractor
	limiter   *rate.Limiter
}

// NewHarvester paces page loads at most one per interval.
func NewHarvester(launcher browser.Launcher, extractor *extract.Extractor, interval time.Duration) *Harvester {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}

	return &Harvester{
		launcher:  launcher,
		extractor: extractor,
		limiter:   rate.NewLimiter(limit, 1),
	}
}

// Harvest fetches every candidate in one browser session. Candidates that yield
// neither content nor a snippet are dropped; only a launch failure or context
// cancellation is returned as an error.
func (h *Harvester) Harvest(ctx context.Context, candidates []search.Result, opts Options) ([]Reference, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	opts.MinLength = cmp.Or(opts.MinLength, DefaultMinLength)
	opts.MaxLength = cmp.Or(opts.MaxLength, DefaultMaxLength)

	session, err := h.launcher.NewSession(ctx)
	if err != nil {
		return nil, err
	}
	defer session.Close()

	references := make([]Reference, 0, len(candidates))

	for _, candidate := range candidates {
		if err := h.limiter.Wait(ctx); err != nil {
			return references, fmt.Errorf("failed to wait for rate limiter: %w", err)
		}

		ref, ok := h.harvestOne(ctx, session, candidate, opts)
		if ctx.Err() != nil {
			return references, ctx.Err()
		}
		if !ok {
			slog.Warn("Reference dropped", "url", candidate.URL)
			continue
		}

		references = append(references, ref)
	}

	slog.Info("References harvested", "candidates", len(candidates), "harvested", len(references))

	return references, nil
}

func (h *Harvester) harvestOne(ctx context.Context, session browser.Session, candidate search.Result, opts Options) (Reference, bool) {
	ref := Reference{
		Title: candidate.Title,
		URL:   candidate.URL,
	}

	doc, err := session.Load(ctx, candidate.URL, browser.LoadOptions{Wait: browser.WaitLoad})
	if err != nil {
		slog.Warn("Failed to load reference", "url", candidate.URL, "error", err)
	} else {
		ref.Title = cmp.Or(ref.Title, doc.Title)
		ref.Content = h.extract(doc, opts)
	}

	if extract.Length(ref.Content) < opts.MinLength {
		if candidate.Snippet == "" {
			return Reference{}, false
		}

		slog.Debug("Using search snippet for reference", "url", candidate.URL, "extracted", extract.Length(ref.Content))
		ref.Content = AnnotateSnippet(candidate.Snippet)
		ref.FromSnippet = true
	}

	ref.HarvestedAt = time.Now().UTC()

	return ref, true
}

// extract runs the selector cascade, then readability when the cascade yields too little.
func (h *Harvester) extract(doc *browser.Document, opts Options) string {
	content := h.extractor.Content(doc, opts.ContentSelectors, extract.ContentOptions{
		MinRootLength:     extract.DefaultContentOptions.MinRootLength,
		MinFragmentLength: extract.DefaultContentOptions.MinFragmentLength,
		MaxLength:         opts.MaxLength,
	})
	if extract.Length(content.Text) >= opts.MinLength {
		return content.Text
	}

	_, text, err := h.extractor.Readable(doc, opts.MaxLength)
	if err != nil {
		slog.Debug("Readability extraction failed", "url", doc.URL, "error", err)
		return content.Text
	}
	if extract.Length(text) >= opts.MinLength {
		return text
	}

	return content.Text
}

// AnnotateSnippet marks a search snippet standing in for unavailable page content.
func AnnotateSnippet(snippet string) string {
	return extract.Normalize(snippet) + "\n\n" + snippetNotice
}
