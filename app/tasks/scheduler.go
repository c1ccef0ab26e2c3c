package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

const (
	DefaultQueueSize   = 300
	DefaultTaskTimeout = 10 * time.Minute
	maxRetryDelay      = 30 * time.Second
)

type SchedulerOptions struct {
	Interval    time.Duration
	TaskTimeout time.Duration
	WorkerCount int
	QueueSize   int
}

type Scheduler struct {
	services    *Services
	tracker     *Tracker
	dispatcher  *Dispatcher
	interval    time.Duration
	taskTimeout time.Duration
	workerCount int
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	taskQueue   chan TaskInterface
}

func NewScheduler(services *Services, tracker *Tracker, opts SchedulerOptions) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.TaskTimeout <= 0 {
		opts.TaskTimeout = DefaultTaskTimeout
	}
	if opts.WorkerCount <= 0 {
		opts.WorkerCount = 1
	}
	if opts.Interval <= 0 {
		opts.Interval = time.Minute
	}

	s := &Scheduler{
		services:    services,
		tracker:     tracker,
		interval:    opts.Interval,
		taskTimeout: opts.TaskTimeout,
		workerCount: opts.WorkerCount,
		ctx:         ctx,
		cancel:      cancel,
		taskQueue:   make(chan TaskInterface, opts.QueueSize),
	}
	s.dispatcher = NewDispatcher(s, services, tracker)

	return s
}

func (s *Scheduler) Dispatcher() *Dispatcher {
	return s.dispatcher
}

func (s *Scheduler) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.enqueueStartupTasks()
		s.enqueueTasks()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.enqueueTasks()
			}
		}
	}()
}

// Stop cancels running tasks and waits for workers and pending retries to exit.
// The queue is left open so late EnqueueTask calls fail instead of panicking.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	s.tracker.Queued(task)

	select {
	case <-s.ctx.Done():
		s.tracker.Finished(task, s.ctx.Err())
		return s.ctx.Err()
	default:
	}

	select {
	case s.taskQueue <- task:
		return nil
	default:
		err := fmt.Errorf("task queue is full")
		s.tracker.Finished(task, err)
		return err
	}
}

func (s *Scheduler) enqueueStartupTasks() {
	sourceConfigs := s.services.Sources.GetConfigs()
	if len(sourceConfigs) == 0 {
		slog.Debug("No source configurations found")
		return
	}

	slog.Debug("Processing source configurations", "count", len(sourceConfigs))

	for _, sourceConfig := range sourceConfigs {
		syncTask := NewSyncSourceConfigTask(sourceConfig, s.services.SourceRepo)
		if err := s.EnqueueTask(syncTask); err != nil {
			slog.Warn("Failed to enqueue SyncSourceConfigTask", "source", sourceConfig.Name, "error", err)
		}
	}
}

func (s *Scheduler) enqueueTasks() {
	sourceConfigs := s.services.Sources.GetEnabledConfigs()
	if len(sourceConfigs) == 0 {
		slog.Debug("No enabled source configurations found")
		return
	}

	slog.Debug("Processing enabled source configurations for task scheduling", "count", len(sourceConfigs))

	for _, sourceConfig := range sourceConfigs {
		src, err := s.services.SourceRepo.GetSource(sourceConfig.Name)
		if err != nil {
			slog.Warn("Failed to get source from database, skipping", "source", sourceConfig.Name, "error", err)
			continue
		}

		now := time.Now().UTC()
		if src != nil && src.NextCrawlAt != nil && src.NextCrawlAt.After(now) {
			slog.Debug("Source not due for crawl yet", "source", sourceConfig.Name, "next_crawl_at", src.NextCrawlAt)
		} else if _, err := s.dispatcher.Crawl(sourceConfig.Name); err != nil && !errors.Is(err, ErrCrawlInFlight) {
			slog.Warn("Failed to enqueue CrawlSourceTask", "source", sourceConfig.Name, "error", err)
		}

		if sourceConfig.Settings.AutoOptimize {
			if _, err := s.dispatcher.OptimizePending(sourceConfig.Name); err != nil {
				slog.Warn("Failed to enqueue OptimizePendingTask", "source", sourceConfig.Name, "error", err)
			}
		}
	}
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task := <-s.taskQueue:
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()
	s.tracker.Running(task)

	taskCtx, cancel := context.WithTimeout(s.ctx, s.taskTimeout)
	defer cancel()

	err := task.Execute(taskCtx)
	if err == nil {
		s.tracker.Finished(task, nil)
		return
	}

	slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", err)

	if IsPermanent(err) || errors.Is(err, context.Canceled) {
		s.tracker.Finished(task, err)
		return
	}

	if !task.CanRetry() {
		slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
		s.tracker.Finished(task, err)
		return
	}

	task.IncrementRetryCount()
	retryDelay := time.Duration(1<<uint(task.GetRetryCount()-1)) * time.Second
	if retryDelay > maxRetryDelay {
		retryDelay = maxRetryDelay
	}

	slog.Warn("Task retry scheduled", "type", string(task.GetType()), "subject", task.GetSubject(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", retryDelay.String())
	s.tracker.Retrying(task, err)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		timer := time.NewTimer(retryDelay)
		defer timer.Stop()

		select {
		case <-s.ctx.Done():
			slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
			s.tracker.Finished(task, s.ctx.Err())
		case <-timer.C:
			if retryErr := s.EnqueueTask(task); retryErr != nil {
				slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
			}
		}
	}()
}
