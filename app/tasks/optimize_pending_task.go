package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/article-comb/app/source"
)

const DefaultPendingSize = 20

// OptimizePendingTask dispatches optimization for a source's stored, not yet optimized articles.
type OptimizePendingTask struct {
	Task
	SourceConfig *source.Config
	services     *Services
	dispatcher   *Dispatcher
}

func NewOptimizePendingTask(sourceConfig *source.Config, services *Services, dispatcher *Dispatcher) *OptimizePendingTask {
	return &OptimizePendingTask{
		Task:         NewTask(TaskTypeOptimizePending, sourceConfig.Name),
		SourceConfig: sourceConfig,
		services:     services,
		dispatcher:   dispatcher,
	}
}

func (t *OptimizePendingTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	limit := t.services.PendingSize
	if limit <= 0 {
		limit = DefaultPendingSize
	}

	articles, err := t.services.Articles.GetPendingArticles(t.SourceConfig.Label, limit)
	if err != nil {
		return fmt.Errorf("failed to get pending articles: %w", err)
	}

	dispatchedCount := 0
	inFlightCount := 0
	errorCount := 0

	for _, article := range articles {
		_, err := t.dispatcher.Optimize(article.ID)
		switch {
		case err == nil:
			dispatchedCount++
		case errors.Is(err, ErrOptimizationInFlight):
			inFlightCount++
		default:
			slog.Error("Failed to dispatch optimization", "article_id", article.ID, "error", err)
			errorCount++
		}
	}

	slog.Info("Task completed",
		"type", t.GetType(),
		"source", t.SourceConfig.Name,
		"duration", t.GetDuration(),
		"pending", len(articles),
		"dispatched", dispatchedCount,
		"in_flight", inFlightCount,
		"errors", errorCount)

	return nil
}
