package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/article-comb/app/browser"
	"github.com/lysyi3m/article-comb/app/database"
	"github.com/lysyi3m/article-comb/app/harvest"
	"github.com/lysyi3m/article-comb/app/optimizer"
	"github.com/lysyi3m/article-comb/app/source"
)

// OptimizeArticleTask runs search, harvest, rewrite and persist for one article.
type OptimizeArticleTask struct {
	Task
	ArticleID string
	services  *Services
}

func NewOptimizeArticleTask(articleID string, services *Services) *OptimizeArticleTask {
	return &OptimizeArticleTask{
		Task:      NewTask(TaskTypeOptimizeArticle, articleID),
		ArticleID: articleID,
		services:  services,
	}
}

func (t *OptimizeArticleTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if !t.services.Locks.TryLock(t.ArticleID) {
		return Permanent(ErrOptimizationInFlight)
	}
	defer t.services.Locks.Unlock(t.ArticleID)

	article, err := t.services.Articles.FindByID(t.ArticleID)
	if err != nil {
		return fmt.Errorf("failed to load article: %w", err)
	}
	if article == nil {
		return Permanent(database.ErrArticleNotFound)
	}
	if article.IsOptimized {
		return Permanent(database.ErrAlreadyOptimized)
	}

	src := t.sourceFor(article)

	query := article.Title + src.References.QuerySuffix
	results, err := t.services.Search.Search(ctx, query, src.ExcludedDomains(), src.References.MaxResults, src.References.Filters...)
	if err != nil {
		return t.pipelineError("search references", err)
	}

	refs, err := t.services.Harvester.Harvest(ctx, results, harvest.Options{
		ContentSelectors: src.References.ContentSelectors,
		MaxLength:        src.References.MaxLength,
	})
	if err != nil {
		return t.pipelineError("harvest references", err)
	}

	result, err := t.services.Optimizer.Optimize(ctx, optimizer.Article{
		Title:   article.Title,
		Content: article.Content,
	}, refs)
	if err != nil {
		return fmt.Errorf("failed to optimize article: %w", err)
	}

	references := make([]database.Reference, 0, len(result.References))
	for _, ref := range result.References {
		references = append(references, database.Reference{
			Title:       ref.Title,
			URL:         ref.URL,
			HarvestedAt: ref.HarvestedAt,
		})
	}

	if err := t.services.Articles.SaveOptimization(t.ArticleID, result.Content, references); err != nil {
		if errors.Is(err, database.ErrAlreadyOptimized) || errors.Is(err, database.ErrArticleNotFound) {
			return Permanent(err)
		}
		return fmt.Errorf("failed to save optimization: %w", err)
	}

	slog.Info("Task completed",
		"type", t.GetType(),
		"article_id", t.ArticleID,
		"source", article.Source,
		"duration", t.GetDuration(),
		"search_results", len(results),
		"references", len(references))

	return nil
}

// sourceFor resolves the article's source config, falling back to defaults keyed on the article URL.
func (t *OptimizeArticleTask) sourceFor(article *database.Article) *source.Config {
	if t.services.Sources != nil {
		if src := t.services.Sources.FindByLabel(article.Source); src != nil {
			return src
		}
	}

	slog.Debug("No source config for article, using defaults", "article_id", article.ID, "source", article.Source)
	return source.New(article.Source, article.URL)
}

func (t *OptimizeArticleTask) pipelineError(step string, err error) error {
	if errors.Is(err, browser.ErrLaunch) {
		return Permanent(fmt.Errorf("failed to %s: %w", step, err))
	}
	return fmt.Errorf("failed to %s: %w", step, err)
}
