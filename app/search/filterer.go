package search

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/lysyi3m/article-comb/app/source"
)

type Filterer struct{}

func NewFilterer() *Filterer {
	return &Filterer{}
}

// Run keeps the results that pass every configured filter.
func (f *Filterer) Run(results []Result, filters []source.ConfigFilter) []Result {
	if len(filters) == 0 {
		return results
	}

	kept := make([]Result, 0, len(results))
	for _, result := range results {
		if isFiltered, reason := f.applyFilters(result, filters); isFiltered {
			slog.Debug("Search result filtered", "url", result.URL, "reason", reason)
			continue
		}
		kept = append(kept, result)
	}

	return kept
}

func (f *Filterer) applyFilters(result Result, filters []source.ConfigFilter) (bool, string) {
	for _, filter := range filters {
		value := f.getFieldValue(result, filter.Field)

		for _, exclude := range filter.Excludes {
			if f.matchesFilter(value, exclude) {
				return true, fmt.Sprintf("Excluded by %s filter: contains '%s'", filter.Field, exclude)
			}
		}

		if len(filter.Includes) > 0 {
			matched := false
			for _, include := range filter.Includes {
				if f.matchesFilter(value, include) {
					matched = true
					break
				}
			}
			if !matched {
				return true, fmt.Sprintf("Excluded by %s filter: does not contain any of %v", filter.Field, filter.Includes)
			}
		}
	}

	return false, ""
}

func (f *Filterer) matchesFilter(value, pattern string) bool {
	return strings.Contains(strings.ToLower(value), strings.ToLower(pattern))
}

func (f *Filterer) getFieldValue(result Result, field string) string {
	switch field {
	case "title":
		return result.Title
	case "url":
		return result.URL
	case "snippet":
		return result.Snippet
	case "any":
		return strings.Join([]string{result.Title, result.URL, result.Snippet}, " ")
	default:
		return ""
	}
}
