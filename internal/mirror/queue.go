package mirror

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Dispatcher runs a named unit of sync work at some point after the caller
// returns. Errors are the dispatcher's to log; callers never see them.
type Dispatcher interface {
	Dispatch(name string, fn func(ctx context.Context) error)
}

// Recorder observes task outcomes. metrics.Metrics implements it.
type Recorder interface {
	TaskDone(name string, err error)
	TaskDropped(name string)
}

type task struct {
	name string
	fn   func(ctx context.Context) error
}

// QueueConfig sizes the background queue.
type QueueConfig struct {
	Size        int           // buffered tasks before Dispatch starts dropping
	Workers     int           // goroutines draining the buffer
	TaskTimeout time.Duration // upper bound on one task, on top of per-call timeouts
}

// DefaultQueueConfig returns sensible defaults.
func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		Size:        256,
		Workers:     2,
		TaskTimeout: 30 * time.Second,
	}
}

// Queue is a bounded, best-effort background task queue.
//
// LIFECYCLE:
//
//	NewQueue → Start → Dispatch... → Stop
//
// Dispatch never blocks a request: when the buffer is full, or the queue is
// stopped, the task is dropped with a warning. Stop stops accepting work,
// runs whatever is already buffered, then returns.
//
// Tasks run with a fresh context: the request that scheduled them has usually
// finished (and cancelled its context) by the time they run.
type Queue struct {
	cfg      QueueConfig
	logger   *slog.Logger
	recorder Recorder

	tasks chan task
	wg    sync.WaitGroup

	mu      sync.RWMutex
	stopped bool

	startOnce sync.Once
	stopOnce  sync.Once
}

// NewQueue creates a queue. Call Start before dispatching.
func NewQueue(cfg QueueConfig, recorder Recorder, logger *slog.Logger) *Queue {
	def := DefaultQueueConfig()
	if cfg.Size <= 0 {
		cfg.Size = def.Size
	}
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = def.TaskTimeout
	}
	return &Queue{
		cfg:      cfg,
		logger:   logger,
		recorder: recorder,
		tasks:    make(chan task, cfg.Size),
	}
}

// Start launches the workers. It is safe to call more than once.
func (q *Queue) Start() {
	q.startOnce.Do(func() {
		q.logger.Info("starting sync queue",
			slog.Int("workers", q.cfg.Workers),
			slog.Int("size", q.cfg.Size),
		)
		for i := 0; i < q.cfg.Workers; i++ {
			q.wg.Add(1)
			go q.worker()
		}
	})
}

// Stop drains buffered tasks and waits for the workers, or until ctx is done.
func (q *Queue) Stop(ctx context.Context) error {
	q.stopOnce.Do(func() {
		q.logger.Info("stopping sync queue", slog.Int("pending", len(q.tasks)))
		q.mu.Lock()
		q.stopped = true
		close(q.tasks)
		q.mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("mirror: sync queue did not drain: %w", ctx.Err())
	}
}

// Dispatch implements Dispatcher.
func (q *Queue) Dispatch(name string, fn func(ctx context.Context) error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.stopped {
		q.drop(name, "queue stopped")
		return
	}
	select {
	case q.tasks <- task{name: name, fn: fn}:
	default:
		q.drop(name, "queue full")
	}
}

func (q *Queue) drop(name, reason string) {
	q.logger.Warn("dropping sync task", slog.String("task", name), slog.String("reason", reason))
	if q.recorder != nil {
		q.recorder.TaskDropped(name)
	}
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for t := range q.tasks {
		q.run(t)
	}
}

func (q *Queue) run(t task) {
	ctx, cancel := context.WithTimeout(context.Background(), q.cfg.TaskTimeout)
	defer cancel()

	err := runTask(ctx, t.fn)
	if err != nil {
		q.logger.Warn("sync task failed", slog.String("task", t.name), slog.String("error", err.Error()))
	}
	if q.recorder != nil {
		q.recorder.TaskDone(t.name, err)
	}
}

// runTask turns a panic in fn into an error so one bad task cannot take a
// worker down.
func runTask(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx)
}

// Inline runs every task synchronously inside Dispatch. It is used where the
// process may be frozen right after the response is written (AWS Lambda) and
// in tests.
type Inline struct {
	Logger   *slog.Logger
	Recorder Recorder
	Timeout  time.Duration
}

// Dispatch implements Dispatcher.
func (d Inline) Dispatch(name string, fn func(ctx context.Context) error) {
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = DefaultQueueConfig().TaskTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err := runTask(ctx, fn)
	if err != nil && d.Logger != nil {
		d.Logger.Warn("sync task failed", slog.String("task", name), slog.String("error", err.Error()))
	}
	if d.Recorder != nil {
		d.Recorder.TaskDone(name, err)
	}
}
