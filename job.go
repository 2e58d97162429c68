package qec

import (
	"context"
	"time"
)

// Job represents work to be done
type Job struct {
	ID          string
	Fn          func(ctx context.Context) (any, error)
	RetryPolicy *RetryPolicy
	BreakerID   string
	TTL         time.Duration
	Attempt     int
	LastError   error
	StartTime   time.Time
}

// JobOption is a function type for configuring jobs
type JobOption func(*Job)

// WithTTL configures how long a job's result stays in the space
func WithTTL(ttl time.Duration) JobOption {
	return func(j *Job) {
		j.TTL = ttl
	}
}

// WithBreaker ties a job to a breaker registered on the pool
func WithBreaker(id string) JobOption {
	return func(j *Job) {
		j.BreakerID = id
	}
}
