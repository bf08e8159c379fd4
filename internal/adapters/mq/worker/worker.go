// Package worker applies queued article views to the store.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/okian/medblog/internal/domain/model"
	"github.com/okian/medblog/pkg/logger"
	"github.com/okian/medblog/pkg/metrics"
)

const (
	defaultWorkerMultiplier = 2 // multiplier for runtime.NumCPU()
	poolShutdownTimeout     = 30 * time.Second
)

// Event is what workers read off the queue.
type Event = model.ViewEvent

// ViewRecorder persists view increments.
type ViewRecorder interface {
	IncrementViews(ctx context.Context, id string, delta int64) error
}

// Queue defines how workers receive events.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Event
}

// Worker is one consumer loop.
type Worker interface {
	// Run processes events until the queue channel closes or ctx is done.
	Run(ctx context.Context)
	// Shutdown waits for Run to return.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker increments view counters for each event it reads.
type InMemoryWorker struct {
	queue    Queue
	recorder ViewRecorder
	name     string
	onApply  func(Event, error)

	done   chan struct{}
	logger logger.Logger
}

// NewInMemoryWorker creates a worker.
func NewInMemoryWorker(q Queue, recorder ViewRecorder, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		recorder: recorder,
		name:     "worker",
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Named(w.name)
	}
	return w
}

// Run drains the queue. Events already buffered when the queue is closed are
// still applied.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	events := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			err := w.process(ctx, e)
			if err != nil {
				w.logger.Error(ctx, "error applying view", logger.Error(err))
			}
			if w.onApply != nil {
				w.onApply(e, err)
			}
		}
	}
}

// Shutdown waits for the worker loop to return.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) process(ctx context.Context, e Event) error {
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	if err := w.recorder.IncrementViews(ctx, e.ArticleID, 1); err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "store_error")
		return fmt.Errorf("increment views for %s: %w", e.ArticleID, err)
	}
	metrics.RecordViewApplied()
	return nil
}

// Pool runs a fixed set of workers over one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	logger  logger.Logger

	mu        sync.Mutex
	processed int64
	failed    int64
}

// NewPool creates workerCount workers. workerCount < 1 uses 2x NumCPU.
func NewPool(workerCount int, q Queue, recorder ViewRecorder) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}
	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Named("worker-pool"),
	}
	for i := range p.workers {
		p.workers[i] = NewInMemoryWorker(q, recorder,
			WithName("worker-"+strconv.Itoa(i)),
			withApplyHook(p.record),
		)
	}
	metrics.UpdateWorkerCount(workerCount)
	return p
}

func (p *Pool) record(_ Event, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		p.failed++
		return
	}
	p.processed++
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Stats returns how many events were applied and how many failed.
func (p *Pool) Stats() (processed, failed int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.processed, p.failed
}

// Start launches every worker.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Shutdown closes the queue, lets workers drain it and waits for them.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var firstErr error
	for i, w := range p.workers {
		if err := w.Shutdown(shutdownCtx); err != nil {
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
