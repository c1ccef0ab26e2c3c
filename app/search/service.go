package search

import (
	"context"
	"errors"
	"log/slog"
	"net/url"

	"github.com/lysyi3m/article-comb/app/browser"
	"github.com/lysyi3m/article-comb/app/extract"
	"github.com/lysyi3m/article-comb/app/source"
)

const (
	MinTitleLength    = 10
	DefaultMaxResults = 2
)

// Service tries providers in order and returns the first non-empty filtered result set.
type Service struct {
	providers []Provider
	filterer  *Filterer
}

func NewService(providers ...Provider) *Service {
	return &Service{
		providers: providers,
		filterer:  NewFilterer(),
	}
}

// Search returns at most maxResults usable results. An empty result is not an
// error; only browser.ErrLaunch and context cancellation are returned.
func (s *Service) Search(ctx context.Context, query string, excludedDomains []string, maxResults int, filters ...source.ConfigFilter) ([]Result, error) {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}

	var launchErr error

	for _, p := range s.providers {
		if !p.Available() {
			slog.Debug("Search provider unavailable", "provider", p.Name())
			continue
		}

		raw, err := p.Search(ctx, query)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if errors.Is(err, browser.ErrLaunch) {
				launchErr = err
			}
			slog.Warn("Search provider failed", "provider", p.Name(), "query", query, "error", err)
			continue
		}

		results := s.filter(raw, excludedDomains, maxResults, filters)

		slog.Info("Search completed", "provider", p.Name(), "query", query, "raw", len(raw), "results", len(results))

		if len(results) > 0 {
			return results, nil
		}
	}

	if launchErr != nil {
		return nil, launchErr
	}
	return nil, nil
}

func (s *Service) filter(raw []Result, excludedDomains []string, maxResults int, filters []source.ConfigFilter) []Result {
	excluded := make(map[string]bool, len(excludedDomains))
	for _, d := range excludedDomains {
		if domain := browser.RegistrableDomain(d); domain != "" {
			excluded[domain] = true
		}
	}

	seen := make(map[string]bool)
	results := make([]Result, 0, len(raw))

	for _, r := range raw {
		r.Title = extract.Normalize(r.Title)
		r.Snippet = extract.Normalize(r.Snippet)

		u, err := url.Parse(r.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			continue
		}
		if excluded[browser.RegistrableDomain(u.Hostname())] {
			continue
		}
		if extract.Length(r.Title) < MinTitleLength {
			continue
		}

		key := browser.CanonicalURL(r.URL)
		if seen[key] {
			continue
		}
		seen[key] = true

		results = append(results, r)
	}

	results = s.filterer.Run(results, filters)
	if len(results) > maxResults {
		results = results[:maxResults]
	}

	return results
}
