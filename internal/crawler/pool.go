package crawler

import (
	"errors"
	"sync"

	"go.uber.org/zap"
)

// ErrPoolClosed is returned by Submit once Shutdown has been called.
var ErrPoolClosed = errors.New("worker pool is shut down")

// Pool runs units of work on a fixed number of goroutines fed by an unbounded
// FIFO queue. It counts work as in flight from the moment it is submitted
// until it returns, so AwaitIdle cannot observe a unit that is still queued
// as finished.
type Pool struct {
	mu       sync.Mutex
	work     *sync.Cond
	idle     *sync.Cond
	queue    []func()
	inFlight int
	closed   bool

	workers sync.WaitGroup
	logger  *zap.Logger
}

// NewPool starts size workers. A non-positive size falls back to DefaultWorkers.
func NewPool(size int, logger *zap.Logger) *Pool {
	if size <= 0 {
		size = DefaultWorkers
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pool{logger: logger}
	p.work = sync.NewCond(&p.mu)
	p.idle = sync.NewCond(&p.mu)
	for i := 0; i < size; i++ {
		p.workers.Add(1)
		go p.loop(i)
	}
	return p
}

// Submit enqueues fn. It fails with ErrPoolClosed after Shutdown.
func (p *Pool) Submit(fn func()) error {
	if fn == nil {
		return errors.New("nil unit of work")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPoolClosed
	}
	p.inFlight++
	p.queue = append(p.queue, fn)
	p.work.Signal()
	return nil
}

// AwaitIdle blocks until every submitted unit has finished.
func (p *Pool) AwaitIdle() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for p.inFlight > 0 {
		p.idle.Wait()
	}
}

// InFlight returns the number of queued plus running units.
func (p *Pool) InFlight() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inFlight
}

// Shutdown rejects further submissions, lets queued work drain and waits for
// the workers to exit. It is safe to call more than once.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	p.closed = true
	p.work.Broadcast()
	p.mu.Unlock()
	p.workers.Wait()
}

func (p *Pool) loop(index int) {
	defer p.workers.Done()
	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.closed {
			p.work.Wait()
		}
		if len(p.queue) == 0 {
			p.mu.Unlock()
			return
		}
		fn := p.queue[0]
		p.queue[0] = nil
		p.queue = p.queue[1:]
		p.mu.Unlock()

		p.run(index, fn)

		p.mu.Lock()
		p.inFlight--
		if p.inFlight == 0 {
			p.idle.Broadcast()
		}
		p.mu.Unlock()
	}
}

func (p *Pool) run(index int, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("unit of work panicked",
				zap.Int("worker", index),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
		}
	}()
	fn()
}
