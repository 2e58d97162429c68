package qec

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestCollect(t *testing.T) {
	Convey("Given bit-flip repetition tasks", t, func() {
		tasks, err := BenchmarkTasks([]int{3}, []float64{0.01, 0.1})
		So(err, ShouldBeNil)
		So(tasks, ShouldHaveLength, 2)

		Convey("Collection should stop every task at MaxShots", func() {
			var updates atomic.Int32
			stats, err := Collect(context.Background(), tasks, CollectOptions{
				NumWorkers: 2,
				MaxShots:   1200,
				BatchSize:  500,
				Seed:       7,
				OnProgress: func(TaskStats) { updates.Add(1) },
			})

			So(err, ShouldBeNil)
			So(stats, ShouldHaveLength, 2)
			for i, s := range stats {
				So(s.Shots, ShouldEqual, 1200)
				So(s.Decoder, ShouldEqual, "matching")
				So(s.Metadata["p"], ShouldEqual, tasks[i].Metadata["p"])
				So(s.Errors, ShouldBeLessThanOrEqualTo, s.Shots)
			}
			So(updates.Load(), ShouldBeGreaterThan, 0)
		})

		Convey("Slow batches should shrink below the starting batch size", func() {
			cfg := NewConfig()
			cfg.BatchTarget = time.Nanosecond

			var shots []int
			stats, err := Collect(context.Background(), tasks[:1], CollectOptions{
				NumWorkers: 1,
				MaxShots:   1200,
				BatchSize:  1000,
				Seed:       3,
				Config:     cfg,
				OnProgress: func(s TaskStats) { shots = append(shots, s.Shots) },
			})

			So(err, ShouldBeNil)
			So(stats[0].Shots, ShouldEqual, 1200)
			So(len(shots), ShouldBeGreaterThan, 2)
			So(shots[0], ShouldEqual, 1000)
			So(shots[1], ShouldEqual, 1000+minBatchSize)
		})

		Convey("Collection should stop early at MaxErrors", func() {
			noisy, err := BenchmarkTasks([]int{3}, []float64{0.3})
			So(err, ShouldBeNil)

			stats, err := Collect(context.Background(), noisy, CollectOptions{
				NumWorkers: 2,
				MaxShots:   1000000,
				MaxErrors:  10,
				BatchSize:  200,
				Seed:       11,
			})

			So(err, ShouldBeNil)
			So(stats, ShouldHaveLength, 1)
			So(stats[0].Errors, ShouldBeGreaterThanOrEqualTo, 10)
			So(stats[0].Shots, ShouldBeLessThan, 1000000)
		})

		Convey("Every decoder should get its own stats", func() {
			stats, err := Collect(context.Background(), tasks[:1], CollectOptions{
				Decoders:  []string{"pymatching", "lookup"},
				MaxShots:  300,
				BatchSize: 300,
			})

			So(err, ShouldBeNil)
			So(stats, ShouldHaveLength, 2)
			So(stats[0].Decoder, ShouldEqual, "pymatching")
			So(stats[1].Decoder, ShouldEqual, "lookup")
		})

		Convey("A cancelled context should stop collection", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			_, err := Collect(ctx, tasks, CollectOptions{MaxShots: 1000000, BatchSize: 100})
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
		})

		Convey("Bad tasks and decoders should be rejected up front", func() {
			_, err := Collect(context.Background(), []Task{{}}, CollectOptions{})
			So(errors.Is(err, ErrArguments), ShouldBeTrue)

			_, err = Collect(context.Background(), tasks, CollectOptions{Decoders: []string{"bp-osd"}})
			So(errors.Is(err, ErrUnknownDecoder), ShouldBeTrue)
		})
	})
}

func TestTaskStats(t *testing.T) {
	Convey("Given task stats", t, func() {
		Convey("An empty run should have a trivial interval", func() {
			s := TaskStats{}
			So(s.ErrorRate(), ShouldEqual, 0)
			low, high := s.Interval(0.95)
			So(low, ShouldEqual, 0)
			So(high, ShouldEqual, 1)
		})

		Convey("The Wilson interval should bracket the rate", func() {
			s := TaskStats{Shots: 100, Errors: 50}
			low, high := s.Interval(0.95)
			So(s.ErrorRate(), ShouldEqual, 0.5)
			So(low, ShouldAlmostEqual, 0.4038, 0.001)
			So(high, ShouldAlmostEqual, 0.5962, 0.001)
		})

		Convey("Zero errors should still give a positive upper bound", func() {
			low, high := TaskStats{Shots: 1000}.Interval(0.95)
			So(low, ShouldAlmostEqual, 0, 1e-12)
			So(high, ShouldBeGreaterThan, 0)
			So(high, ShouldBeLessThan, 0.01)
		})
	})
}
