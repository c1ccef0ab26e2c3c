package tasks

import (
	"github.com/lysyi3m/article-comb/app/browser"
	"github.com/lysyi3m/article-comb/app/database"
	"github.com/lysyi3m/article-comb/app/extract"
	"github.com/lysyi3m/article-comb/app/harvest"
	"github.com/lysyi3m/article-comb/app/listing"
	"github.com/lysyi3m/article-comb/app/optimizer"
	"github.com/lysyi3m/article-comb/app/search"
	"github.com/lysyi3m/article-comb/app/source"
)

// Services are the collaborators pipeline tasks run against.
type Services struct {
	Sources     *source.ConfigCache
	SourceRepo  database.SourceRepository
	Articles    database.ArticleRepository
	Launcher    browser.Launcher
	Crawler     *listing.Crawler
	Extractor   *extract.Extractor
	Search      *search.Service
	Harvester   *harvest.Harvester
	Optimizer   *optimizer.Optimizer
	Locks       *KeyedMutex
	PendingSize int // articles swept per auto-optimization run
}
