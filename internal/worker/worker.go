// Package worker runs subtitle jobs in the background of the serve process.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Taichi-iskw/talk-subtitles/internal/logging"
	"github.com/Taichi-iskw/talk-subtitles/internal/service/subtitle"
)

// ErrStopped is returned by Enqueue after Stop
var ErrStopped = errors.New("worker stopped")

// Handler processes one job id
type Handler func(ctx context.Context, jobID string) error

// Task is a queued unit of work
type Task struct {
	Kind  subtitle.TaskKind
	JobID string
}

// Worker consumes queued tasks with a fixed number of goroutines
type Worker struct {
	queue    chan Task
	handlers map[subtitle.TaskKind]Handler
	workers  int
	logger   *slog.Logger

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
}

// NewWorker creates a worker with n goroutines and a queue of queueSize tasks
func NewWorker(n, queueSize int, logger *slog.Logger) *Worker {
	if n < 1 {
		n = 1
	}
	if queueSize < 1 {
		queueSize = 64
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		queue:    make(chan Task, queueSize),
		handlers: make(map[subtitle.TaskKind]Handler),
		workers:  n,
		logger:   logging.WithComponent(logger, "worker"),
	}
}

// RegisterHandler registers a handler for a task kind. Call before Start.
func (w *Worker) RegisterHandler(kind subtitle.TaskKind, handler Handler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[kind] = handler
}

// Start launches the worker goroutines. Cancelling ctx aborts in-flight handlers.
func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.workers; i++ {
		w.wg.Add(1)
		go w.run(ctx)
	}
	w.logger.Info("worker started", "workers", w.workers)
}

// Stop refuses new tasks, drains the queue and waits for handlers to return
func (w *Worker) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	close(w.queue)
	w.mu.Unlock()

	w.wg.Wait()
	w.logger.Info("worker stopped")
}

// Enqueue queues a task, blocking while the queue is full
func (w *Worker) Enqueue(ctx context.Context, kind subtitle.TaskKind, jobID string) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.stopped {
		return ErrStopped
	}
	if _, ok := w.handlers[kind]; !ok {
		return fmt.Errorf("no handler registered for task kind %q", kind)
	}

	select {
	case w.queue <- Task{Kind: kind, JobID: jobID}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pending returns the number of queued tasks
func (w *Worker) Pending() int {
	return len(w.queue)
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()
	for task := range w.queue {
		if ctx.Err() != nil {
			w.logger.Warn("dropping task after shutdown", logging.FieldJobID, task.JobID, "kind", task.Kind)
			continue
		}
		w.execute(ctx, task)
	}
}

func (w *Worker) execute(ctx context.Context, task Task) {
	w.mu.RLock()
	handler := w.handlers[task.Kind]
	w.mu.RUnlock()

	log := w.logger.With(logging.FieldJobID, task.JobID, "kind", task.Kind)
	defer func() {
		if r := recover(); r != nil {
			log.Error("task panicked", "panic", r)
		}
	}()

	started := time.Now()
	log.Info("processing task")
	if err := handler(ctx, task.JobID); err != nil {
		log.Error("task failed", "error", err, "duration", time.Since(started).Round(time.Millisecond))
		return
	}
	log.Info("task completed", "duration", time.Since(started).Round(time.Millisecond))
}
