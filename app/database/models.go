package database

import (
	"time"
)

type Source struct {
	Name           string // Configuration source identifier derived from filename
	IndexURL       string
	Label          string // Source tag stamped on stored articles
	LastCrawledAt  *time.Time
	NextCrawlAt    *time.Time
	LastDiscovered int // Candidates seen by the last crawl
	LastInserted   int // Articles created by the last crawl
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Article struct {
	ID              string
	URL             string // Canonical source URL, unique
	Source          string
	Title           string
	Content         string
	OriginalContent string // Empty until the first optimization
	IsOptimized     bool
	Author          string
	PublishedAt     *time.Time
	Tags            []string
	References      []Reference
	CreatedAt       time.Time
	UpdatedAt       time.Time
	OptimizedAt     *time.Time
}

type Reference struct {
	Title       string
	URL         string
	HarvestedAt time.Time
}
