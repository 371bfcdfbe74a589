// Package worker runs queued rollup jobs on a bounded pool of goroutines.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/okian/verdict/internal/adapters/mq/queue"
	"github.com/okian/verdict/pkg/logger"
	"github.com/okian/verdict/pkg/metrics"
)

// Default worker configuration constants.
const (
	poolShutdownTimeout = 30 * time.Second
)

// Runner rebuilds one org's rollup for a day and reports the rows written.
type Runner interface {
	RefreshOrg(ctx context.Context, orgID string, day time.Time) (int, error)
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Job
}

// Worker processes jobs until its queue closes or it is shut down.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown stops the worker after its current job.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue  Queue
	runner Runner
	name   string

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, runner Runner, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		runner:   runner,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.Named(w.name)
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case j, ok := <-jobs:
			if !ok {
				return
			}
			if err := w.process(ctx, j); err != nil {
				w.logger.Error(ctx, "rollup job failed", logger.Error(err))
			}
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) process(ctx context.Context, j queue.Job) error {
	start := time.Now()
	defer func() {
		metrics.RecordJobLatency(float64(time.Since(start).Milliseconds()))
	}()

	rows, err := w.runner.RefreshOrg(ctx, j.OrgID, j.Day)
	if err != nil {
		metrics.RecordJobProcessed(metrics.OutcomeError)
		return fmt.Errorf("refresh %s rollup for %s: %w", j.OrgID, j.Day.Format(time.DateOnly), err)
	}
	metrics.RecordJobProcessed(metrics.OutcomeOK)
	w.logger.Debug(ctx, "rollup job done",
		logger.String("org_id", j.OrgID),
		logger.Int("rows", rows),
	)
	return nil
}

// Pool manages multiple workers sharing one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	logger  logger.Logger
}

// NewPool creates a pool of workerCount workers. Non-positive counts default
// to the number of CPUs. A nil log discards output.
func NewPool(workerCount int, q Queue, runner Runner, log logger.Logger) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}
	if log == nil {
		log = logger.Nop()
	}
	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  log.Named("worker-pool"),
	}
	for i := range pool.workers {
		pool.workers[i] = NewInMemoryWorker(q, runner,
			WithLogger(log),
			WithName("worker-"+strconv.Itoa(i)),
		)
	}
	return pool
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return len(p.workers)
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	metrics.UpdateWorkersActive(len(p.workers))
}

// Shutdown closes the queue, lets workers drain their current job, and waits
// for them or for ctx.
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
	metrics.UpdateWorkersActive(0)
	return firstErr
}
