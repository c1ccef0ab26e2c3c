package listing

import "time"

// CandidateItem is an article found on a listing page, not yet stored.
type CandidateItem struct {
	Title       string
	URL         string // canonical
	Preview     string
	Author      string
	PublishedAt *time.Time
}

// Method tells how the candidates of a discovery run were found.
type Method string

const (
	MethodCards   Method = "cards"
	MethodFeed    Method = "feed"
	MethodAnchors Method = "anchors"
	MethodNone    Method = "none"
)

type Discovery struct {
	Items    []CandidateItem
	Page     int    // landed page number
	PageURL  string // landed page URL
	LastPage int    // highest page number reported by the pagination controls
	Method   Method
}
