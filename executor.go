package eventbus

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

// Executor runs dispatch tasks. Execute either schedules task and returns
// nil, or returns an error and never runs it.
type Executor interface {
	Execute(task func()) error
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(task func()) error

// Execute implements Executor.
func (f ExecutorFunc) Execute(task func()) error { return f(task) }

// SyncExecutor runs each task on the calling goroutine before Execute
// returns. It is the default.
func SyncExecutor() Executor {
	return ExecutorFunc(func(task func()) error {
		task()
		return nil
	})
}

// GoExecutor runs each task on a new goroutine.
func GoExecutor() Executor {
	return ExecutorFunc(func(task func()) error {
		go task()
		return nil
	})
}

// Pool is a bounded worker pool Executor. Tasks submitted while the queue is
// full are rejected with ErrQueueFull rather than blocking the publisher.
type Pool struct {
	workers   int
	queueSize int
	onPanic   func(r any, stack []byte)

	mu      sync.RWMutex // guards queue against close during send
	queue   chan func()
	running atomic.Bool
	wg      sync.WaitGroup

	executed atomic.Uint64
	rejected atomic.Uint64
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithWorkers sets the number of worker goroutines.
func WithWorkers(n int) PoolOption {
	return func(p *Pool) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithQueueSize sets the task queue capacity.
func WithQueueSize(n int) PoolOption {
	return func(p *Pool) {
		if n > 0 {
			p.queueSize = n
		}
	}
}

// WithPoolPanicHandler is called when a task panics. Workers survive task
// panics either way.
func WithPoolPanicHandler(fn func(r any, stack []byte)) PoolOption {
	return func(p *Pool) {
		p.onPanic = fn
	}
}

// NewPool creates a stopped pool. Call Start before use.
func NewPool(opts ...PoolOption) *Pool {
	p := &Pool{
		workers:   4,
		queueSize: 1024,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start starts the workers.
func (p *Pool) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running.Load() {
		return fmt.Errorf("executor pool already running")
	}

	p.queue = make(chan func(), p.queueSize)
	p.running.Store(true)
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(p.queue)
	}
	return nil
}

// Stop rejects new tasks and waits for queued ones to finish or ctx to end.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running.Load() {
		p.mu.Unlock()
		return ErrPoolStopped
	}
	p.running.Store(false)
	close(p.queue)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Execute implements Executor.
func (p *Pool) Execute(task func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.running.Load() {
		return ErrPoolStopped
	}
	select {
	case p.queue <- task:
		return nil
	default:
		p.rejected.Add(1)
		return ErrQueueFull
	}
}

// Running reports whether the pool accepts tasks.
func (p *Pool) Running() bool { return p.running.Load() }

// QueueDepth returns the number of tasks waiting to run.
func (p *Pool) QueueDepth() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.queue == nil {
		return 0
	}
	return len(p.queue)
}

// PoolStats counts pool activity.
type PoolStats struct {
	Executed uint64
	Rejected uint64
}

// Stats returns a snapshot of the pool counters.
func (p *Pool) Stats() PoolStats {
	return PoolStats{Executed: p.executed.Load(), Rejected: p.rejected.Load()}
}

func (p *Pool) worker(queue <-chan func()) {
	defer p.wg.Done()
	for task := range queue {
		p.run(task)
	}
}

func (p *Pool) run(task func()) {
	defer func() {
		p.executed.Add(1)
		if r := recover(); r != nil && p.onPanic != nil {
			stack := debug.Stack()
			func() {
				defer func() { _ = recover() }()
				p.onPanic(r, stack)
			}()
		}
	}()
	task()
}
