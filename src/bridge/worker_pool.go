package bridge

import (
	"context"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"ta-fetcher/src/logger"
)

// Job is one unit of work executed by the pool.
type Job func(ctx context.Context)

// -----------------------------------------------------------------------------
// WorkerPool runs jobs from a bounded queue on a fixed set of goroutines.
// Submit blocks while the queue is full.
// -----------------------------------------------------------------------------

type WorkerPool struct {
	Logger *logger.Logger

	jobs   chan Job
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	done   atomic.Int64
	failed atomic.Int64
}

// -----------------------------------------------------------------------------

func NewWorkerPool(workers, queueSize int, log *logger.Logger) *WorkerPool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	if log == nil {
		log = logger.NewLogger(nil, "WorkerPool")
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &WorkerPool{
		Logger: log,
		jobs:   make(chan Job, queueSize),
		ctx:    ctx,
		cancel: cancel,
	}

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker(i)
	}
	return p
}

// -----------------------------------------------------------------------------

func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()
	for job := range p.jobs {
		p.run(id, job)
	}
}

// -----------------------------------------------------------------------------

func (p *WorkerPool) run(id int, job Job) {
	defer func() {
		if r := recover(); r != nil {
			p.failed.Add(1)
			p.Logger.Error("Worker %d recovered from panic: %v\n%s", id, r, debug.Stack())
		}
	}()
	job(p.ctx)
	p.done.Add(1)
}

// -----------------------------------------------------------------------------

// Submit enqueues job. It returns false once the pool is closed.
func (p *WorkerPool) Submit(job Job) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return false
	}
	p.jobs <- job
	return true
}

// -----------------------------------------------------------------------------

// Pending returns the number of queued jobs not yet picked up.
func (p *WorkerPool) Pending() int {
	return len(p.jobs)
}

// -----------------------------------------------------------------------------

// Stats returns the number of completed and panicked jobs.
func (p *WorkerPool) Stats() (done, failed int64) {
	return p.done.Load(), p.failed.Load()
}

// -----------------------------------------------------------------------------

// Close stops accepting jobs, runs what is queued and waits for the workers.
func (p *WorkerPool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	p.wg.Wait()
	p.cancel()
}
