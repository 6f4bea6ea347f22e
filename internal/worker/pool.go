// Package worker runs click accounting off the redirect path.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	DefaultWorkers     = 4
	DefaultQueueSize   = 1024
	DefaultTaskTimeout = 2 * time.Second
)

// Task is a unit of background work. The context it receives is detached from
// the request that submitted it and bounded by the pool's task timeout.
type Task func(ctx context.Context)

// Pool is a fixed set of goroutines consuming a bounded queue. When the queue
// is full, or the pool is stopped, Submit runs the task on the caller's
// goroutine so no task is ever dropped.
type Pool struct {
	workers     int
	taskTimeout time.Duration
	logger      *slog.Logger

	mu      sync.RWMutex
	tasks   chan Task
	stopped bool

	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

func NewPool(workers, queueSize int, taskTimeout time.Duration, logger *slog.Logger) *Pool {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if taskTimeout <= 0 {
		taskTimeout = DefaultTaskTimeout
	}

	return &Pool{
		workers:     workers,
		taskTimeout: taskTimeout,
		logger:      logger,
		tasks:       make(chan Task, queueSize),
	}
}

// Start launches the workers. Calling it more than once has no effect.
func (p *Pool) Start() {
	p.startOnce.Do(func() {
		for i := 0; i < p.workers; i++ {
			p.wg.Add(1)
			go p.work()
		}
	})
}

// Submit enqueues task without blocking.
func (p *Pool) Submit(task Task) {
	p.mu.RLock()
	if !p.stopped {
		select {
		case p.tasks <- task:
			p.mu.RUnlock()
			return
		default:
		}
	}
	p.mu.RUnlock()

	p.logger.Debug("click queue saturated, running task inline")
	p.run(task)
}

// Stop closes the queue and waits until every queued task has run.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		p.stopped = true
		close(p.tasks)
		p.mu.Unlock()
	})

	p.wg.Wait()

	// Tasks queued before Start was ever called.
	for task := range p.tasks {
		p.run(task)
	}
}

func (p *Pool) work() {
	defer p.wg.Done()

	for task := range p.tasks {
		p.run(task)
	}
}

func (p *Pool) run(task Task) {
	defer func() {
		if rec := recover(); rec != nil {
			p.logger.Error("click task panicked", slog.Any("panic", rec))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), p.taskTimeout)
	defer cancel()

	task(ctx)
}
