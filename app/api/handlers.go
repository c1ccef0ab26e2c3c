package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lysyi3m/article-comb/app/database"
	"github.com/lysyi3m/article-comb/app/feed"
	"github.com/lysyi3m/article-comb/app/source"
	"github.com/lysyi3m/article-comb/app/tasks"
)

const (
	DefaultFeedSize  = 50
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

func NewHandler(configCache *source.ConfigCache, sourceRepo database.SourceRepository,
	articleRepo database.ArticleRepository, dispatcher DispatcherInterface, baseURL, version string) *Handler {
	return &Handler{
		sourceRepo:  sourceRepo,
		articleRepo: articleRepo,
		generator:   feed.NewGenerator(baseURL, version),
		configCache: configCache,
		dispatcher:  dispatcher,
		feedSize:    DefaultFeedSize,
	}
}

func (h *Handler) GetFeed(c *gin.Context) {
	name := c.Param("name")

	sourceConfig, err := h.configCache.GetConfig(name)
	if err != nil {
		slog.Error("Source configuration not found", "source", name, "error", err)
		c.Status(http.StatusNotFound)
		return
	}

	src, err := h.sourceRepo.GetSource(name)
	if err != nil {
		slog.Error("Database error", "operation", "get_source", "source", name, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	if src == nil {
		slog.Error("Source not found in database", "source", name)
		c.Status(http.StatusNotFound)
		return
	}

	optimized := true
	articles, _, err := h.articleRepo.ListArticles(database.ArticleFilter{
		Source:    sourceConfig.Label,
		Optimized: &optimized,
		Limit:     h.feedSize,
	})
	if err != nil {
		slog.Error("Database error", "operation", "list_articles", "source", name, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	rss, err := h.generator.Run(*src, articles)
	if err != nil {
		slog.Error("RSS generation error", "source", name, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Header("Content-Type", "application/xml; charset=utf-8")
	c.Header("X-Feed-Items", strconv.Itoa(len(articles)))
	c.Header("X-Feed-Name", name)
	c.Header("X-Last-Updated", src.UpdatedAt.Format(time.RFC3339))

	c.String(http.StatusOK, rss)
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if sourceCount, err := h.sourceRepo.GetSourceCount(); err == nil {
		health["sources"] = sourceCount
	}

	if stats, err := h.articleRepo.GetArticleStats(""); err == nil {
		health["articles"] = statsJSON(stats)
	}

	health["loaded_configurations"] = h.configCache.GetConfigCount()

	c.JSON(http.StatusOK, health)
}

func (h *Handler) APIListSources(c *gin.Context) {
	configs := h.configCache.GetConfigs()

	sources := make([]map[string]interface{}, 0, len(configs))

	for _, sourceConfig := range configs {
		sourceInfo := h.sourceInfo(sourceConfig)

		if src, err := h.sourceRepo.GetSource(sourceConfig.Name); err == nil && src != nil {
			sourceInfo["last_crawled_at"] = src.LastCrawledAt
			sourceInfo["next_crawl_at"] = src.NextCrawlAt
		}

		if stats, err := h.articleRepo.GetArticleStats(sourceConfig.Label); err == nil {
			sourceInfo["articles"] = statsJSON(stats)
		}

		sources = append(sources, sourceInfo)
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"sources": sources,
		"total":   len(sources),
	})
}

func (h *Handler) APIGetSource(c *gin.Context) {
	name := c.Param("name")

	sourceConfig, err := h.configCache.GetConfig(name)
	if err != nil {
		slog.Error("Source configuration not found", "source", name, "error", err)
		c.JSON(http.StatusNotFound, gin.H{"error": "Source configuration not found"})
		return
	}

	details := h.sourceInfo(sourceConfig)
	details["timeout"] = sourceConfig.Timeout().String()
	details["target_count"] = sourceConfig.Settings.TargetCount
	details["references"] = map[string]interface{}{
		"max_results":      sourceConfig.References.MaxResults,
		"query_suffix":     sourceConfig.References.QuerySuffix,
		"excluded_domains": sourceConfig.ExcludedDomains(),
		"filters":          sourceConfig.References.Filters,
	}

	src, err := h.sourceRepo.GetSource(name)
	if err != nil {
		slog.Error("Database error", "operation", "get_source", "source", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	if src != nil {
		details["database"] = map[string]interface{}{
			"last_crawled_at": src.LastCrawledAt,
			"next_crawl_at":   src.NextCrawlAt,
			"last_discovered": src.LastDiscovered,
			"last_inserted":   src.LastInserted,
			"created_at":      src.CreatedAt,
			"updated_at":      src.UpdatedAt,
		}
	}

	if stats, err := h.articleRepo.GetArticleStats(sourceConfig.Label); err == nil {
		details["articles"] = statsJSON(stats)
	}

	c.JSON(http.StatusOK, details)
}

func (h *Handler) APICrawlSource(c *gin.Context) {
	name := c.Param("name")

	taskID, err := h.dispatcher.Crawl(name)
	switch {
	case errors.Is(err, tasks.ErrSourceNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Source configuration not found"})
		return
	case errors.Is(err, tasks.ErrSourceDisabled), errors.Is(err, tasks.ErrCrawlInFlight):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	case err != nil:
		slog.Error("Error enqueueing crawl task", "source", name, "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "Failed to enqueue crawl task",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"message": "Crawl task enqueued",
		"task": gin.H{
			"id":   taskID,
			"type": tasks.TaskTypeCrawlSource,
		},
	})
}

func (h *Handler) APIListArticles(c *gin.Context) {
	filter := database.ArticleFilter{
		Source: c.Query("source"),
		Limit:  DefaultPageLimit,
	}

	if v := c.Query("optimized"); v != "" {
		optimized, err := strconv.ParseBool(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid optimized parameter"})
			return
		}
		filter.Optimized = &optimized
	}

	if v := c.Query("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit parameter"})
			return
		}
		filter.Limit = min(limit, MaxPageLimit)
	}

	page := 1
	if v := c.Query("page"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil || p < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid page parameter"})
			return
		}
		page = p
	}
	filter.Offset = (page - 1) * filter.Limit

	articles, total, err := h.articleRepo.ListArticles(filter)
	if err != nil {
		slog.Error("Database error", "operation", "list_articles", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	items := make([]map[string]interface{}, 0, len(articles))
	for _, article := range articles {
		items = append(items, articleSummaryJSON(article))
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"articles": items,
		"total":    total,
		"page":     page,
		"limit":    filter.Limit,
	})
}

func (h *Handler) APIGetArticle(c *gin.Context) {
	id := c.Param("id")

	article, err := h.articleRepo.FindByID(id)
	if err != nil {
		slog.Error("Database error", "operation", "find_article", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	if article == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Article not found"})
		return
	}

	details := articleSummaryJSON(*article)
	details["content"] = article.Content
	details["original_content"] = article.OriginalContent

	references := make([]map[string]interface{}, 0, len(article.References))
	for _, ref := range article.References {
		references = append(references, map[string]interface{}{
			"title":        ref.Title,
			"url":          ref.URL,
			"harvested_at": ref.HarvestedAt,
		})
	}
	details["references"] = references

	c.JSON(http.StatusOK, details)
}

func (h *Handler) APIOptimizeArticle(c *gin.Context) {
	id := c.Param("id")

	taskID, err := h.dispatcher.Optimize(id)
	switch {
	case errors.Is(err, database.ErrArticleNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Article not found"})
		return
	case errors.Is(err, database.ErrAlreadyOptimized), errors.Is(err, tasks.ErrOptimizationInFlight):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	case err != nil:
		slog.Error("Error enqueueing optimize task", "article_id", id, "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "Failed to enqueue optimize task",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"message": "Optimization task enqueued",
		"task": gin.H{
			"id":   taskID,
			"type": tasks.TaskTypeOptimizeArticle,
		},
	})
}

func (h *Handler) APIGetTask(c *gin.Context) {
	id := c.Param("id")

	rec, err := h.dispatcher.Task(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
		return
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"id":          rec.ID,
		"type":        rec.Type,
		"subject":     rec.Subject,
		"status":      rec.Status,
		"error":       rec.Error,
		"attempts":    rec.Attempts,
		"queued_at":   rec.QueuedAt,
		"started_at":  rec.StartedAt,
		"finished_at": rec.FinishedAt,
	})
}

func (h *Handler) sourceInfo(sourceConfig *source.Config) map[string]interface{} {
	return map[string]interface{}{
		"name":             sourceConfig.Name,
		"url":              sourceConfig.URL,
		"label":            sourceConfig.Label,
		"enabled":          sourceConfig.Settings.Enabled,
		"auto_optimize":    sourceConfig.Settings.AutoOptimize,
		"refresh_interval": sourceConfig.RefreshInterval().String(),
		"feed":             "/feeds/" + sourceConfig.Name,
	}
}

func statsJSON(stats database.ArticleStats) map[string]interface{} {
	return map[string]interface{}{
		"total":     stats.Total,
		"optimized": stats.Optimized,
		"pending":   stats.Pending,
	}
}

func articleSummaryJSON(article database.Article) map[string]interface{} {
	return map[string]interface{}{
		"id":           article.ID,
		"url":          article.URL,
		"source":       article.Source,
		"title":        article.Title,
		"author":       article.Author,
		"tags":         article.Tags,
		"is_optimized": article.IsOptimized,
		"published_at": article.PublishedAt,
		"optimized_at": article.OptimizedAt,
		"created_at":   article.CreatedAt,
		"updated_at":   article.UpdatedAt,
	}
}
