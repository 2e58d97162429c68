package qec

import (
	"fmt"
	"time"

	"github.com/charmbracelet/log"
)

// Worker processes jobs
type Worker struct {
	pool *Pool
	jobs chan Job
}

func (w *Worker) run() {
	for {
		select {
		case <-w.pool.ctx.Done():
			return
		case w.pool.workers <- w.jobs:
		}

		select {
		case <-w.pool.ctx.Done():
			return
		case job := <-w.jobs:
			result, err := w.processJob(job)
			w.pool.space.Store(job.ID, result, err, job.TTL)
		}
	}
}

func (w *Worker) processJob(job Job) (any, error) {
	if err := w.checkBreaker(job.BreakerID); err != nil {
		return nil, err
	}

	result, err := w.executeWithRetries(job)
	w.pool.metrics.recordJobExecution(job.StartTime, err == nil)

	if err != nil {
		return nil, err
	}

	w.recordSuccess(job.BreakerID)
	return result, nil
}

func (w *Worker) executeWithRetries(job Job) (any, error) {
	for job.Attempt = 0; job.Attempt < job.RetryPolicy.MaxAttempts; job.Attempt++ {
		if job.Attempt > 0 {
			delay := job.RetryPolicy.Strategy.NextDelay(job.Attempt)
			log.Debug("retrying job", "job", job.ID, "attempt", job.Attempt+1, "delay", delay)

			select {
			case <-time.After(delay):
			case <-w.pool.ctx.Done():
				return nil, w.pool.ctx.Err()
			}
		}

		result, err := job.Fn(w.pool.ctx)
		if err == nil {
			return result, nil
		}

		job.LastError = err
		log.Warn("job attempt failed", "job", job.ID, "attempt", job.Attempt+1, "err", err)
		w.recordFailure(job.BreakerID)

		if job.RetryPolicy.Filter != nil && !job.RetryPolicy.Filter(err) {
			break
		}
	}
	return nil, fmt.Errorf("all retries failed for job %s: %w", job.ID, job.LastError)
}

func (w *Worker) checkBreaker(id string) error {
	if breaker := w.pool.breaker(id); breaker != nil && !breaker.Allow() {
		return fmt.Errorf("%w: %s", ErrBreakerOpen, id)
	}
	return nil
}

func (w *Worker) recordSuccess(id string) {
	if breaker := w.pool.breaker(id); breaker != nil {
		breaker.RecordSuccess()
	}
}

func (w *Worker) recordFailure(id string) {
	if breaker := w.pool.breaker(id); breaker != nil {
		breaker.RecordFailure()
	}
}
