package tasks

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lysyi3m/article-comb/app/browser"
	"github.com/lysyi3m/article-comb/app/database"
	"github.com/lysyi3m/article-comb/app/extract"
	"github.com/lysyi3m/article-comb/app/listing"
	"github.com/lysyi3m/article-comb/app/source"
)

type CrawlSourceTask struct {
	Task
	SourceConfig *source.Config
	services     *Services
}

func NewCrawlSourceTask(sourceConfig *source.Config, services *Services) *CrawlSourceTask {
	return &CrawlSourceTask{
		Task:         NewTask(TaskTypeCrawlSource, sourceConfig.Name),
		SourceConfig: sourceConfig,
		services:     services,
	}
}

func (t *CrawlSourceTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	src := t.SourceConfig
	if !src.Settings.Enabled {
		slog.Debug("Source disabled, skipping", "source", src.Name)
		return nil
	}

	if err := t.services.SourceRepo.UpsertSource(src.Name, src.URL, src.Label); err != nil {
		return fmt.Errorf("failed to register source: %w", err)
	}

	session, err := t.services.Launcher.NewSession(ctx)
	if err != nil {
		if errors.Is(err, browser.ErrLaunch) {
			return Permanent(err)
		}
		return fmt.Errorf("failed to open browser session: %w", err)
	}
	defer session.Close()

	discovery, err := t.services.Crawler.Discover(ctx, session, src)
	if err != nil {
		return fmt.Errorf("failed to discover listing: %w", err)
	}

	duplicateCount := 0
	skippedCount := 0
	newCount := 0

	for _, item := range discovery.Items {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		existing, err := t.services.Articles.FindByURL(item.URL)
		if err != nil {
			return fmt.Errorf("failed to check for duplicates: %w", err)
		}
		if existing != nil {
			duplicateCount++
			continue
		}

		article, ok := t.extractArticle(ctx, session, item)
		if !ok {
			skippedCount++
			continue
		}

		_, inserted, err := t.services.Articles.InsertIfAbsent(article)
		if err != nil {
			return fmt.Errorf("failed to store article: %w", err)
		}
		if inserted {
			newCount++
		} else {
			duplicateCount++
		}
	}

	nextCrawl := time.Now().UTC().Add(src.RefreshInterval())
	if err := t.services.SourceRepo.UpdateCrawlStats(src.Name, len(discovery.Items), newCount, nextCrawl); err != nil {
		return fmt.Errorf("failed to update crawl stats: %w", err)
	}

	slog.Info("Task completed",
		"type", t.GetType(),
		"source", src.Name,
		"duration", t.GetDuration(),
		"page", discovery.Page,
		"total", len(discovery.Items),
		"duplicates", duplicateCount,
		"skipped", skippedCount,
		"new", newCount)

	return nil
}

func (t *CrawlSourceTask) extractArticle(ctx context.Context, session browser.Session, item listing.CandidateItem) (database.NewArticle, bool) {
	src := t.SourceConfig

	doc, err := session.Load(ctx, item.URL, browser.LoadOptions{Wait: browser.WaitStable, Timeout: src.Timeout()})
	if err != nil {
		slog.Warn("Failed to load article, skipping", "source", src.Name, "url", item.URL, "error", err)
		return database.NewArticle{}, false
	}

	content := t.services.Extractor.Content(doc, src.Article.ContentSelectors, extract.ContentOptions{
		MinRootLength:     extract.DefaultContentOptions.MinRootLength,
		MinFragmentLength: extract.DefaultContentOptions.MinFragmentLength,
		MaxLength:         src.Article.MaxLength,
	})
	if content.Text == "" {
		slog.Warn("No usable content extracted, skipping", "source", src.Name, "url", item.URL)
		return database.NewArticle{}, false
	}

	meta := t.services.Extractor.Metadata(doc, extract.MetadataSelectors{
		Title:  src.Article.TitleSelectors,
		Author: src.Article.AuthorSelectors,
		Date:   src.Article.DateSelectors,
		Tags:   src.Article.TagSelectors,
	})

	publishedAt := meta.PublishedAt
	if publishedAt == nil {
		publishedAt = item.PublishedAt
	}

	return database.NewArticle{
		URL:         item.URL,
		Source:      src.Label,
		Title:       cmp.Or(meta.Title, item.Title),
		Content:     content.Text,
		Author:      cmp.Or(meta.Author, item.Author),
		PublishedAt: publishedAt,
		Tags:        meta.Tags,
	}, true
}
