package qec

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/theapemachine/errnie"
)

// Pool is a fixed-size worker pool whose results land in a ResultSpace
type Pool struct {
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	workers    chan chan Job
	jobs       chan Job
	space      *ResultSpace
	metrics    *Metrics
	breakers   map[string]*Breaker
	breakersMu sync.RWMutex
	config     *Config
	closeOnce  sync.Once
}

// NewPool starts size workers and the dispatcher
func NewPool(ctx context.Context, size int, config *Config) *Pool {
	if size < 1 {
		size = 1
	}
	if config == nil {
		config = NewConfig()
	}

	ctx, cancel := context.WithCancel(ctx)
	p := &Pool{
		ctx:      ctx,
		cancel:   cancel,
		breakers: make(map[string]*Breaker),
		jobs:     make(chan Job, size*10),
		workers:  make(chan chan Job, size),
		space:    NewResultSpace(),
		metrics:  NewMetrics(),
		config:   config,
	}

	for i := 0; i < size; i++ {
		p.startWorker()
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.manage()
	}()

	return p
}

func (p *Pool) manage() {
	for {
		select {
		case <-p.ctx.Done():
			return
		case job := <-p.jobs:
			select {
			case <-p.ctx.Done():
				return
			case workerChan := <-p.workers:
				select {
				case workerChan <- job:
				case <-p.ctx.Done():
					return
				}
			case <-time.After(p.config.SchedulingTimeout):
				log.Warn("no available workers", "job", job.ID, "timeout", p.config.SchedulingTimeout)
				p.space.Store(job.ID, nil, ErrNoWorkers, job.TTL)
			}
		}
	}
}

/*
Schedule queues fn and returns a channel that receives its Result.

Jobs retry up to three times with exponential backoff unless options say
otherwise. A job tied to an open breaker fails immediately.
*/
func (p *Pool) Schedule(id string, fn func(ctx context.Context) (any, error), opts ...JobOption) chan Result {
	job := Job{
		ID: id,
		Fn: fn,
		RetryPolicy: &RetryPolicy{
			MaxAttempts: 3,
			Strategy:    &ExponentialBackoff{Initial: 10 * time.Millisecond, Max: time.Second},
		},
		StartTime: time.Now(),
	}

	for _, opt := range opts {
		opt(&job)
	}

	if breaker := p.breaker(job.BreakerID); breaker != nil && !breaker.Allow() {
		return failed(fmt.Errorf("%w: %s", ErrBreakerOpen, job.BreakerID))
	}

	// Register the waiter before the job can possibly finish.
	result := p.space.Await(id)

	ctx, cancel := context.WithTimeout(p.ctx, p.config.SchedulingTimeout)
	defer cancel()

	select {
	case p.jobs <- job:
		p.metrics.mu.Lock()
		p.metrics.JobQueueSize = len(p.jobs)
		p.metrics.mu.Unlock()
		return result
	case <-ctx.Done():
		p.metrics.mu.Lock()
		p.metrics.SchedulingFailures++
		p.metrics.mu.Unlock()

		err := fmt.Errorf("job scheduling timeout: %w", ctx.Err())
		p.space.Store(id, nil, err, job.TTL)
		return result
	}
}

func failed(err error) chan Result {
	ch := make(chan Result, 1)
	ch <- Result{Error: err, CreatedAt: time.Now()}
	close(ch)
	return ch
}

// AddBreaker registers a breaker that jobs can join with WithBreaker
func (p *Pool) AddBreaker(id string, breaker *Breaker) {
	p.breakersMu.Lock()
	defer p.breakersMu.Unlock()
	p.breakers[id] = breaker
}

func (p *Pool) breaker(id string) *Breaker {
	if id == "" {
		return nil
	}
	p.breakersMu.RLock()
	defer p.breakersMu.RUnlock()
	return p.breakers[id]
}

// Space exposes the result space for broadcast groups
func (p *Pool) Space() *ResultSpace {
	return p.space
}

// Metrics exposes the pool metrics
func (p *Pool) Metrics() *Metrics {
	return p.metrics
}

func (p *Pool) startWorker() {
	worker := &Worker{
		pool: p,
		jobs: make(chan Job),
	}

	p.metrics.mu.Lock()
	p.metrics.WorkerCount++
	count := p.metrics.WorkerCount
	p.metrics.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		worker.run()
	}()
	errnie.Info("started worker, total workers: %d", count)
}

// Close cancels outstanding work and waits for every goroutine to exit
func (p *Pool) Close() {
	if p == nil {
		return
	}

	p.closeOnce.Do(func() {
		p.cancel()
		p.wg.Wait()
		p.space.Close()
		errnie.Info("pool closed")
	})
}
