package api

import (
	"github.com/lysyi3m/article-comb/app/database"
	"github.com/lysyi3m/article-comb/app/feed"
	"github.com/lysyi3m/article-comb/app/source"
	"github.com/lysyi3m/article-comb/app/tasks"
)

type GeneratorInterface interface {
	Run(source database.Source, articles []database.Article) (string, error)
}

var _ GeneratorInterface = (*feed.Generator)(nil)

type DispatcherInterface interface {
	Optimize(articleID string) (string, error)
	Crawl(sourceName string) (string, error)
	Task(id string) (tasks.Record, error)
}

var _ DispatcherInterface = (*tasks.Dispatcher)(nil)

type Handler struct {
	sourceRepo  database.SourceRepository
	articleRepo database.ArticleRepository
	generator   GeneratorInterface
	configCache *source.ConfigCache
	dispatcher  DispatcherInterface
	feedSize    int
}
