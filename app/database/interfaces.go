package database

import (
	"errors"
	"time"
)

var (
	ErrArticleNotFound  = errors.New("article not found")
	ErrAlreadyOptimized = errors.New("article already optimized")
)

type NewArticle struct {
	URL         string
	Source      string
	Title       string
	Content     string
	Author      string
	PublishedAt *time.Time
	Tags        []string
}

type ArticleFilter struct {
	Source    string
	Optimized *bool
	Limit     int
	Offset    int
}

type ArticleStats struct {
	Total     int
	Optimized int
	Pending   int
}

type SourceRepository interface {
	GetSource(name string) (*Source, error)
	GetSourceCount() (int, error)

	UpsertSource(name, indexURL, label string) error
	UpdateCrawlStats(name string, discovered, inserted int, nextCrawlAt time.Time) error
}

type ArticleRepository interface {
	FindByID(id string) (*Article, error)
	FindByURL(url string) (*Article, error)
	ListArticles(filter ArticleFilter) ([]Article, int, error)
	GetPendingArticles(source string, limit int) ([]Article, error)
	GetArticleStats(source string) (ArticleStats, error)

	// InsertIfAbsent never updates an existing record; inserted is false when the URL is already stored.
	InsertIfAbsent(article NewArticle) (id string, inserted bool, err error)
	// SaveOptimization snapshots the original content, replaces the content,
	// appends references and sets the optimization flag in one step.
	SaveOptimization(id string, content string, references []Reference) error
}
