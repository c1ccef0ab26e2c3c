package search

import "context"

// Result is one ranked search hit.
type Result struct {
	Title   string
	URL     string
	Snippet string
}

// Provider is one way of querying the search engine. Search returns raw,
// unfiltered results in rank order.
type Provider interface {
	Name() string
	Available() bool
	Search(ctx context.Context, query string) ([]Result, error)
}
