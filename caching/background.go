package caching

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/torrescalazans/popularmovies/logging"
	"github.com/torrescalazans/popularmovies/metrics"
	"github.com/torrescalazans/popularmovies/types"
)

var (
	// ErrQueueFull is returned by Submit when the worker queue has no room.
	ErrQueueFull = errors.New("background queue full")
	// ErrStopped is returned for tasks submitted after, or still queued at, shutdown.
	ErrStopped = errors.New("background worker stopped")
)

// Fetcher is the catalog client the worker drives
type Fetcher interface {
	Movies(ctx context.Context, kind types.RequestType) ([]types.Movie, error)
	Trailers(ctx context.Context, movieID int) ([]types.Trailer, error)
	Reviews(ctx context.Context, movieID int) ([]types.Review, error)
}

// FetchTask is one unit of work for the worker
type FetchTask struct {
	ID      string // assigned on submit when empty
	Kind    types.RequestType
	MovieID int // required for videos and reviews
}

// Key identifies equivalent tasks for deduplication
func (t FetchTask) Key() string {
	if t.Kind.NeedsMovieID() {
		return fmt.Sprintf("%s:%d", t.Kind, t.MovieID)
	}
	if t.Kind == types.RequestDefault {
		return types.RequestMostPopular.String()
	}
	return t.Kind.String()
}

// Result is delivered to a ResultReceiver. Only the slice matching the
// task kind is populated on success; Err is set with StatusError.
type Result struct {
	TaskID   string
	Kind     types.RequestType
	MovieID  int
	Status   types.Status
	Movies   []types.Movie
	Trailers []types.Trailer
	Reviews  []types.Review
	Err      error
}

// ResultReceiver is called on the worker goroutine: once with StatusRunning
// and once with a terminal status, also for tasks dropped before they start.
// It must not block for long.
type ResultReceiver func(Result)

// WorkerOptions configures the background worker
type WorkerOptions struct {
	QueueSize       int           // default 50
	RefreshInterval time.Duration // 0 disables periodic refresh
	TaskTimeout     time.Duration // default 30s
}

type queuedTask struct {
	ctx      context.Context
	task     FetchTask
	receiver ResultReceiver
}

// BackgroundWork runs fetch tasks one at a time in submission order
type BackgroundWork struct {
	fetcher          Fetcher
	backgroundQueue  chan queuedTask
	taskDeduplicator *TaskDeduplicator
	taskTimeout      time.Duration
	log              zerolog.Logger

	mu          sync.RWMutex
	stopped     bool
	stopOnce    sync.Once
	stopChan    chan struct{}
	workersDone sync.WaitGroup
}

func NewBackgroundWorker(fetcher Fetcher, opts WorkerOptions) *BackgroundWork {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 50
	}
	if opts.TaskTimeout <= 0 {
		opts.TaskTimeout = 30 * time.Second
	}

	bk := &BackgroundWork{
		fetcher:          fetcher,
		backgroundQueue:  make(chan queuedTask, opts.QueueSize),
		taskDeduplicator: NewTaskDeduplicator(),
		taskTimeout:      opts.TaskTimeout,
		log:              logging.With("worker"),
		stopChan:         make(chan struct{}),
	}

	bk.workersDone.Add(1)
	go bk.backgroundWorker()
	bk.log.Info().Int("queue_size", opts.QueueSize).Msg("Started background worker")

	if opts.RefreshInterval > 0 {
		bk.startRefresh(opts.RefreshInterval)
	}

	return bk
}

// Submit enqueues a task without blocking. The receiver, if non-nil, gets
// StatusRunning and then exactly one terminal status. Tasks still queued at
// shutdown end with StatusError and ErrStopped.
func (bk *BackgroundWork) Submit(task FetchTask, receiver ResultReceiver) error {
	return bk.enqueue(context.Background(), task, receiver)
}

func (bk *BackgroundWork) enqueue(ctx context.Context, task FetchTask, receiver ResultReceiver) error {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if receiver == nil {
		receiver = func(Result) {}
	}

	bk.mu.RLock()
	defer bk.mu.RUnlock()

	if bk.stopped {
		return ErrStopped
	}

	select {
	case bk.backgroundQueue <- queuedTask{ctx: ctx, task: task, receiver: receiver}:
		metrics.WorkerQueueDepth.Set(float64(len(bk.backgroundQueue)))
		bk.log.Debug().Str("task", task.ID).Str("kind", task.Kind.String()).Int("movie_id", task.MovieID).Msg("Queued fetch task")
		return nil
	default:
		bk.log.Warn().Str("kind", task.Kind.String()).Msg("Background queue full")
		return ErrQueueFull
	}
}

// Do submits a task and waits for its terminal result. The fetch runs under
// ctx: if ctx ends while the task is queued it is skipped, if it ends while
// running the request is aborted. Either way ctx.Err() is returned.
func (bk *BackgroundWork) Do(ctx context.Context, task FetchTask) (Result, error) {
	done := make(chan Result, 1)
	err := bk.enqueue(ctx, task, func(r Result) {
		if r.Status.Terminal() {
			done <- r
		}
	})
	if err != nil {
		return Result{}, err
	}

	select {
	case r := <-done:
		return r, r.Err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Stop stops the worker and waits up to timeout for the current task to
// finish; timeout <= 0 waits indefinitely. Tasks still queued are answered
// with StatusError and ErrStopped. It reports whether the worker exited.
func (bk *BackgroundWork) Stop(timeout time.Duration) bool {
	bk.shutdown()

	done := make(chan struct{})
	go func() {
		bk.workersDone.Wait()
		close(done)
	}()

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case <-done:
		bk.log.Info().Msg("Background worker stopped gracefully")
		return true
	case <-expired:
		bk.log.Warn().Dur("timeout", timeout).Msg("Background worker did not stop within timeout")
		return false
	}
}

func (bk *BackgroundWork) shutdown() {
	bk.stopOnce.Do(func() {
		bk.log.Info().Msg("Stopping background worker...")
		bk.mu.Lock()
		bk.stopped = true
		close(bk.stopChan)
		close(bk.backgroundQueue)
		bk.mu.Unlock()
	})
}

func (bk *BackgroundWork) backgroundWorker() {
	defer bk.workersDone.Done()

	for {
		select {
		case <-bk.stopChan:
			bk.drain()
			return
		default:
		}

		select {
		case qt, ok := <-bk.backgroundQueue:
			if !ok {
				return
			}
			metrics.WorkerQueueDepth.Set(float64(len(bk.backgroundQueue)))
			bk.process(qt)

		case <-bk.stopChan:
			bk.drain()
			return
		}
	}
}

// drain answers every task left in the closed queue
func (bk *BackgroundWork) drain() {
	for qt := range bk.backgroundQueue {
		bk.taskDeduplicator.Remove(qt.task.Key())
		bk.reject(qt, ErrStopped)
	}
	metrics.WorkerQueueDepth.Set(0)
}

// reject answers a task that never reaches the fetcher
func (bk *BackgroundWork) reject(qt queuedTask, err error) {
	base := Result{TaskID: qt.task.ID, Kind: qt.task.Kind, MovieID: qt.task.MovieID}

	running := base
	running.Status = types.StatusRunning
	qt.receiver(running)

	base.Status = types.StatusError
	base.Err = err
	bk.deliver(qt, base)
}

func (bk *BackgroundWork) process(qt queuedTask) {
	task := qt.task
	defer bk.taskDeduplicator.Remove(task.Key())

	if err := qt.ctx.Err(); err != nil {
		bk.log.Debug().Str("task", task.ID).Str("kind", task.Kind.String()).Msg("Skipping abandoned fetch task")
		bk.reject(qt, err)
		return
	}

	base := Result{TaskID: task.ID, Kind: task.Kind, MovieID: task.MovieID}

	running := base
	running.Status = types.StatusRunning
	qt.receiver(running)

	start := time.Now()
	result := bk.run(qt.ctx, task, base)
	bk.deliver(qt, result)

	ev := bk.log.Debug()
	if result.Err != nil {
		ev = bk.log.Warn().Err(result.Err)
	}
	ev.Str("task", task.ID).
		Str("kind", task.Kind.String()).
		Int("movie_id", task.MovieID).
		Str("status", result.Status.String()).
		Dur("took", time.Since(start)).
		Msg("Fetch task finished")
}

func (bk *BackgroundWork) deliver(qt queuedTask, r Result) {
	metrics.WorkerTasks.WithLabelValues(r.Kind.String(), r.Status.String()).Inc()
	qt.receiver(r)
}

func (bk *BackgroundWork) run(parent context.Context, task FetchTask, result Result) (res Result) {
	ctx, cancel := context.WithTimeout(parent, bk.taskTimeout)
	defer cancel()

	defer func() {
		if p := recover(); p != nil {
			res = result
			res.Status = types.StatusError
			res.Err = fmt.Errorf("%w: fetch task panicked: %v", types.ErrFetchFailed, p)
		}
	}()

	var err error
	switch {
	case task.Kind.IsMovieList():
		result.Movies, err = bk.fetcher.Movies(ctx, task.Kind)
	case task.Kind == types.RequestVideos:
		result.Trailers, err = bk.fetcher.Trailers(ctx, task.MovieID)
	case task.Kind == types.RequestReviews:
		result.Reviews, err = bk.fetcher.Reviews(ctx, task.MovieID)
	default:
		err = fmt.Errorf("unknown request type: %s", task.Kind)
	}

	if err != nil {
		result.Status = types.StatusError
		result.Err = err
		return result
	}
	result.Status = types.FinishedStatus(task.Kind)
	return result
}

func (bk *BackgroundWork) startRefresh(interval time.Duration) {
	bk.log.Info().Dur("interval", interval).Msg("Starting catalog refresher")

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		bk.Refresh()
		for {
			select {
			case <-ticker.C:
				bk.Refresh()
			case <-bk.stopChan:
				return
			}
		}
	}()
}

// Refresh queues the movie lists to warm the response caches. Lists already
// pending are skipped. It returns the number of tasks queued.
func (bk *BackgroundWork) Refresh() int {
	queued := 0
	for _, kind := range []types.RequestType{types.RequestMostPopular, types.RequestTopRated} {
		task := FetchTask{Kind: kind}
		if !bk.taskDeduplicator.ShouldQueue(task.Key(), 24*time.Hour) {
			bk.log.Debug().Str("kind", kind.String()).Msg("Skipping refresh, already queued")
			continue
		}
		if err := bk.Submit(task, nil); err != nil {
			bk.taskDeduplicator.Remove(task.Key())
			bk.log.Warn().Err(err).Str("kind", kind.String()).Msg("Could not queue refresh")
			continue
		}
		queued++
	}
	return queued
}

// GetQueueSize returns the number of queued tasks
func (bk *BackgroundWork) GetQueueSize() int {
	return len(bk.backgroundQueue)
}

// GetQueueCapacity returns queue capacity
func (bk *BackgroundWork) GetQueueCapacity() int {
	return cap(bk.backgroundQueue)
}

// TaskDeduplicator prevents the same task from being queued twice while pending
type TaskDeduplicator struct {
	mu      sync.Mutex
	pending map[string]time.Time // task key -> queued time
}

func NewTaskDeduplicator() *TaskDeduplicator {
	return &TaskDeduplicator{
		pending: make(map[string]time.Time),
	}
}

// ShouldQueue records key and reports true unless it was recorded within maxAge
func (td *TaskDeduplicator) ShouldQueue(key string, maxAge time.Duration) bool {
	td.mu.Lock()
	defer td.mu.Unlock()

	now := time.Now()
	for k, queuedAt := range td.pending {
		if now.Sub(queuedAt) > maxAge {
			delete(td.pending, k)
		}
	}

	if _, exists := td.pending[key]; exists {
		return false
	}

	td.pending[key] = now
	return true
}

func (td *TaskDeduplicator) Remove(key string) {
	td.mu.Lock()
	defer td.mu.Unlock()
	delete(td.pending, key)
}
