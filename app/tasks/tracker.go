package tasks

import (
	"context"
	"sync"
	"time"
)

type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusRetrying  Status = "retrying"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// Record is the observable outcome of one task.
type Record struct {
	ID         string
	Type       TaskType
	Subject    string
	Status     Status
	Error      string
	Attempts   int
	QueuedAt   time.Time
	StartedAt  *time.Time
	FinishedAt *time.Time
}

type trackedRecord struct {
	Record
	done chan struct{}
}

const DefaultTrackerLimit = 1000

// Tracker keeps status records for recent tasks. Once more than limit records
// exist, the oldest finished ones are forgotten.
type Tracker struct {
	mu      sync.RWMutex
	records map[string]*trackedRecord
	order   []string
	limit   int
}

func NewTracker(limit int) *Tracker {
	if limit <= 0 {
		limit = DefaultTrackerLimit
	}
	return &Tracker{
		records: make(map[string]*trackedRecord),
		limit:   limit,
	}
}

func (tr *Tracker) Queued(task TaskInterface) {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	if r, ok := tr.records[task.GetID()]; ok {
		r.Status = StatusQueued
		return
	}

	tr.records[task.GetID()] = &trackedRecord{
		Record: Record{
			ID:       task.GetID(),
			Type:     task.GetType(),
			Subject:  task.GetSubject(),
			Status:   StatusQueued,
			QueuedAt: time.Now().UTC(),
		},
		done: make(chan struct{}),
	}
	tr.order = append(tr.order, task.GetID())
	tr.prune()
}

func (tr *Tracker) Running(task TaskInterface) {
	tr.update(task.GetID(), func(r *trackedRecord) {
		now := time.Now().UTC()
		r.Status = StatusRunning
		r.Attempts++
		if r.StartedAt == nil {
			r.StartedAt = &now
		}
	})
}

func (tr *Tracker) Retrying(task TaskInterface, err error) {
	tr.update(task.GetID(), func(r *trackedRecord) {
		r.Status = StatusRetrying
		r.Error = err.Error()
	})
}

// Finished records the terminal outcome; a nil err means success.
func (tr *Tracker) Finished(task TaskInterface, err error) {
	tr.update(task.GetID(), func(r *trackedRecord) {
		if r.Status.Terminal() {
			return
		}

		now := time.Now().UTC()
		r.FinishedAt = &now
		if err != nil {
			r.Status = StatusFailed
			r.Error = err.Error()
		} else {
			r.Status = StatusSucceeded
			r.Error = ""
		}
		close(r.done)
	})
}

func (tr *Tracker) Get(id string) (Record, bool) {
	tr.mu.RLock()
	defer tr.mu.RUnlock()

	r, ok := tr.records[id]
	if !ok {
		return Record{}, false
	}
	return r.Record, true
}

// ActiveFor returns the unfinished task of the given type for subject, if any.
func (tr *Tracker) ActiveFor(taskType TaskType, subject string) (Record, bool) {
	tr.mu.RLock()
	defer tr.mu.RUnlock()

	for _, r := range tr.records {
		if r.Type == taskType && r.Subject == subject && !r.Status.Terminal() {
			return r.Record, true
		}
	}
	return Record{}, false
}

// Wait blocks until the task finishes or ctx ends.
func (tr *Tracker) Wait(ctx context.Context, id string) (Record, error) {
	tr.mu.RLock()
	r, ok := tr.records[id]
	tr.mu.RUnlock()
	if !ok {
		return Record{}, ErrTaskNotFound
	}

	select {
	case <-r.done:
		rec, _ := tr.Get(id)
		return rec, nil
	case <-ctx.Done():
		return Record{}, ctx.Err()
	}
}

func (tr *Tracker) update(id string, fn func(r *trackedRecord)) {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	if r, ok := tr.records[id]; ok {
		fn(r)
	}
}

func (tr *Tracker) prune() {
	if len(tr.order) <= tr.limit {
		return
	}

	kept := tr.order[:0]
	excess := len(tr.order) - tr.limit
	for _, id := range tr.order {
		if excess > 0 && tr.records[id].Status.Terminal() {
			delete(tr.records, id)
			excess--
			continue
		}
		kept = append(kept, id)
	}
	tr.order = kept
}
