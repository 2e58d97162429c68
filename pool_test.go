package qec

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

const (
	testTimeout = 5 * time.Second
	timeoutMsg  = "Test timed out waiting for value retrieval"
)

func await(t *testing.T, ch chan Result) Result {
	select {
	case <-time.After(testTimeout):
		t.Fatal(timeoutMsg)
	case value := <-ch:
		return value
	}
	return Result{}
}

func TestPool(t *testing.T) {
	Convey("Given a new pool", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		pool := NewPool(ctx, 2, nil)

		Reset(func() {
			pool.Close()
			cancel()
		})

		Convey("When scheduling a simple job", func() {
			result := await(t, pool.Schedule("simple", func(ctx context.Context) (any, error) {
				return "success", nil
			}))

			So(result.Error, ShouldBeNil)
			So(result.Value, ShouldEqual, "success")
		})

		Convey("When scheduling a job that fails twice", func() {
			var attempts atomic.Int32
			result := await(t, pool.Schedule("flaky", func(ctx context.Context) (any, error) {
				if attempts.Add(1) < 3 {
					return nil, errors.New("temporary error")
				}
				return "success after retry", nil
			}, WithRetry(3, &ExponentialBackoff{Initial: time.Millisecond})))

			So(result.Error, ShouldBeNil)
			So(result.Value, ShouldEqual, "success after retry")
			So(attempts.Load(), ShouldEqual, 3)
		})

		Convey("When a job never succeeds", func() {
			boom := errors.New("permanent error")
			var attempts atomic.Int32
			result := await(t, pool.Schedule("doomed", func(ctx context.Context) (any, error) {
				attempts.Add(1)
				return nil, boom
			}, WithRetry(2, &ExponentialBackoff{Initial: time.Millisecond})))

			So(errors.Is(result.Error, boom), ShouldBeTrue)
			So(attempts.Load(), ShouldEqual, 2)
			So(pool.Metrics().ExportMetrics()["failed_jobs"], ShouldEqual, int64(1))
		})

		Convey("When a breaker trips", func() {
			pool.AddBreaker("fragile", NewBreaker(1, time.Minute, 1))

			first := await(t, pool.Schedule("fragile-1", func(ctx context.Context) (any, error) {
				return nil, errors.New("broken")
			}, WithBreaker("fragile"), WithRetry(1, &ExponentialBackoff{})))
			So(first.Error, ShouldNotBeNil)

			second := await(t, pool.Schedule("fragile-2", func(ctx context.Context) (any, error) {
				return "unreachable", nil
			}, WithBreaker("fragile")))
			So(errors.Is(second.Error, ErrBreakerOpen), ShouldBeTrue)
		})

		Convey("When scheduling many jobs", func() {
			channels := make([]chan Result, 20)
			for i := range channels {
				n := i
				channels[i] = pool.Schedule(fmt.Sprintf("job-%d", i), func(ctx context.Context) (any, error) {
					return n * n, nil
				})
			}

			for i, ch := range channels {
				So(await(t, ch).Value, ShouldEqual, i*i)
			}

			metrics := pool.Metrics().ExportMetrics()
			So(metrics["jobs"], ShouldEqual, int64(20))
			So(metrics["worker_count"], ShouldEqual, 2)
		})
	})
}

func TestRetryBackoff(t *testing.T) {
	Convey("Given an exponential backoff", t, func() {
		backoff := &ExponentialBackoff{Initial: 10 * time.Millisecond, Max: 50 * time.Millisecond}

		Convey("Delays should double until the cap", func() {
			So(backoff.NextDelay(1), ShouldEqual, 10*time.Millisecond)
			So(backoff.NextDelay(2), ShouldEqual, 20*time.Millisecond)
			So(backoff.NextDelay(3), ShouldEqual, 40*time.Millisecond)
			So(backoff.NextDelay(4), ShouldEqual, 50*time.Millisecond)
		})
	})
}
