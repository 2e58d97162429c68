package qec

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

/*
BreakerState represents the state of a breaker.
*/
type BreakerState int

const (
	BreakerClosed   BreakerState = iota // Normal operation state
	BreakerOpen                         // Failure state, rejecting work
	BreakerHalfOpen                     // Probationary state, allowing limited work
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	}
	return "unknown"
}

/*
Breaker stops scheduling work for a collection task whose batches keep failing.

The breaker operates in three states:
  - Closed: batches run normally
  - Open: the failure threshold was reached and batches are rejected
  - Half-Open: after the reset timeout a limited number of batches may probe
*/
type Breaker struct {
	mu               sync.Mutex
	maxFailures      int
	resetTimeout     time.Duration
	halfOpenMax      int
	failureCount     int
	state            BreakerState
	openTime         time.Time
	halfOpenAttempts int
}

/*
NewBreaker creates a breaker in the closed state.

Parameters:
  - maxFailures: Number of failures allowed before opening
  - resetTimeout: Duration to wait before probing an open breaker
  - halfOpenMax: Successes needed in half-open state to close again
*/
func NewBreaker(maxFailures int, resetTimeout time.Duration, halfOpenMax int) *Breaker {
	return &Breaker{
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		halfOpenMax:  halfOpenMax,
		state:        BreakerClosed,
	}
}

// RecordFailure records a failure and updates the breaker state
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failureCount++
	switch b.state {
	case BreakerHalfOpen:
		b.state = BreakerOpen
		b.openTime = time.Now()
		log.Warn("breaker reopened from half-open state")
	case BreakerClosed:
		if b.failureCount >= b.maxFailures {
			b.state = BreakerOpen
			b.openTime = time.Now()
			log.Warn("breaker opened", "failures", b.failureCount)
		}
	}
}

// RecordSuccess records a successful attempt and updates the breaker state
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerHalfOpen:
		b.halfOpenAttempts++
		if b.halfOpenAttempts >= b.halfOpenMax {
			b.state = BreakerClosed
			b.failureCount = 0
			b.halfOpenAttempts = 0
			log.Info("breaker closed from half-open")
		}
	case BreakerClosed:
		b.failureCount = 0
	}
}

// Allow determines if work is allowed based on the breaker state
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed:
		return true
	case BreakerOpen:
		if time.Since(b.openTime) > b.resetTimeout {
			b.state = BreakerHalfOpen
			b.halfOpenAttempts = 0
			return true
		}
		return false
	case BreakerHalfOpen:
		return b.halfOpenAttempts < b.halfOpenMax
	default:
		return false
	}
}

// State returns the current state
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
