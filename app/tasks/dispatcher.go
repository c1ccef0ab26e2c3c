package tasks

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/lysyi3m/article-comb/app/database"
)

var (
	ErrOptimizationInFlight = errors.New("optimization already in progress")
	ErrCrawlInFlight        = errors.New("crawl already in progress")
	ErrSourceNotFound       = errors.New("source not found")
	ErrSourceDisabled       = errors.New("source is disabled")
	ErrTaskNotFound         = errors.New("task not found")
)

// Dispatcher accepts or rejects pipeline runs synchronously and hands accepted
// runs to the worker pool.
type Dispatcher struct {
	scheduler TaskSchedulerInterface
	services  *Services
	tracker   *Tracker
	mu        sync.Mutex
}

func NewDispatcher(scheduler TaskSchedulerInterface, services *Services, tracker *Tracker) *Dispatcher {
	return &Dispatcher{
		scheduler: scheduler,
		services:  services,
		tracker:   tracker,
	}
}

// Optimize queues an optimization for the article and returns the task ID.
// Unknown, already optimized and in-flight articles are rejected before any
// external service is called.
func (d *Dispatcher) Optimize(articleID string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	article, err := d.services.Articles.FindByID(articleID)
	if err != nil {
		return "", fmt.Errorf("failed to look up article: %w", err)
	}
	if article == nil {
		return "", database.ErrArticleNotFound
	}
	if article.IsOptimized {
		return "", database.ErrAlreadyOptimized
	}

	if _, active := d.tracker.ActiveFor(TaskTypeOptimizeArticle, articleID); active || d.services.Locks.Held(articleID) {
		return "", ErrOptimizationInFlight
	}

	task := NewOptimizeArticleTask(articleID, d.services)
	if err := d.scheduler.EnqueueTask(task); err != nil {
		return "", fmt.Errorf("failed to enqueue optimization: %w", err)
	}

	slog.Debug("Optimization accepted", "article_id", articleID, "task_id", task.GetID())

	return task.GetID(), nil
}

// Crawl queues a listing crawl for the named source and returns the task ID.
func (d *Dispatcher) Crawl(sourceName string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	src, err := d.services.Sources.GetConfig(sourceName)
	if err != nil {
		return "", ErrSourceNotFound
	}
	if !src.Settings.Enabled {
		return "", ErrSourceDisabled
	}

	if _, active := d.tracker.ActiveFor(TaskTypeCrawlSource, sourceName); active {
		return "", ErrCrawlInFlight
	}

	task := NewCrawlSourceTask(src, d.services)
	if err := d.scheduler.EnqueueTask(task); err != nil {
		return "", fmt.Errorf("failed to enqueue crawl: %w", err)
	}

	slog.Debug("Crawl accepted", "source", sourceName, "task_id", task.GetID())

	return task.GetID(), nil
}

// OptimizePending queues the auto-optimization sweep for a source unless one is already active.
func (d *Dispatcher) OptimizePending(sourceName string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	src, err := d.services.Sources.GetConfig(sourceName)
	if err != nil {
		return "", ErrSourceNotFound
	}

	if rec, active := d.tracker.ActiveFor(TaskTypeOptimizePending, sourceName); active {
		return rec.ID, nil
	}

	task := NewOptimizePendingTask(src, d.services, d)
	if err := d.scheduler.EnqueueTask(task); err != nil {
		return "", fmt.Errorf("failed to enqueue pending optimization: %w", err)
	}

	return task.GetID(), nil
}

func (d *Dispatcher) Task(id string) (Record, error) {
	rec, ok := d.tracker.Get(id)
	if !ok {
		return Record{}, ErrTaskNotFound
	}
	return rec, nil
}
