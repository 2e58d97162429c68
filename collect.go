package qec

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/charmbracelet/log"
	"github.com/theapemachine/errnie"
	"gonum.org/v1/gonum/stat/distuv"
)

// Task is one circuit to benchmark, labelled with free-form metadata.
type Task struct {
	Circuit  *Circuit
	Metadata map[string]any
}

/*
CollectOptions bounds a collection run.

A task stops once it has MaxShots shots or MaxErrors logical errors,
whichever comes first; MaxErrors of 0 means no error limit. Every task is
decoded once per entry of Decoders.
*/
type CollectOptions struct {
	NumWorkers int
	Decoders   []string
	MaxShots   int
	MaxErrors  int
	BatchSize  int
	Seed       uint64
	Config     *Config
	OnProgress func(TaskStats)
}

// TaskStats accumulates the outcome of one task under one decoder.
type TaskStats struct {
	Decoder  string
	Metadata map[string]any
	Shots    int
	Errors   int
	Seconds  float64
}

// ErrorRate is Errors/Shots, or 0 before any shot.
func (s TaskStats) ErrorRate() float64 {
	if s.Shots == 0 {
		return 0
	}
	return float64(s.Errors) / float64(s.Shots)
}

// Interval is the Wilson score interval of the error rate at the given confidence.
func (s TaskStats) Interval(confidence float64) (float64, float64) {
	if s.Shots == 0 {
		return 0, 1
	}
	z := distuv.UnitNormal.Quantile(1 - (1-confidence)/2)
	n := float64(s.Shots)
	p := s.ErrorRate()

	denom := 1 + z*z/n
	center := (p + z*z/(2*n)) / denom
	half := z / denom * math.Sqrt(p*(1-p)/n+z*z/(4*n*n))
	return math.Max(0, center-half), math.Min(1, center+half)
}

func (s TaskStats) String() string {
	return fmt.Sprintf("%v decoder=%s shots=%d errors=%d rate=%.5f (%.2fs)",
		s.Metadata, s.Decoder, s.Shots, s.Errors, s.ErrorRate(), s.Seconds)
}

// minBatchSize is the floor an expensive task's batches can shrink to.
const minBatchSize = 64

type batchResult struct {
	shots   int
	errors  int
	elapsed time.Duration
}

// collection is the mutable state of one task/decoder pair.
type collection struct {
	id      string
	stats   TaskStats
	sampler *DetectorSampler
	decoder Decoder
	batches int
	size    int
	err     error
}

func (c *collection) done(opts CollectOptions) bool {
	return c.err != nil ||
		c.stats.Shots >= opts.MaxShots ||
		(opts.MaxErrors > 0 && c.stats.Errors >= opts.MaxErrors)
}

func (c *collection) batch(ctx context.Context, shots int) (any, error) {
	start := time.Now()
	dets, obs := c.sampler.SampleSeparated(shots)

	errs := 0
	for i := range dets {
		if i%256 == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !slices.Equal(c.decoder.Decode(dets[i]), obs[i]) {
			errs++
		}
	}
	return batchResult{shots: shots, errors: errs, elapsed: time.Since(start)}, nil
}

/*
Collect samples and decodes every task on a worker pool until each one hits
its shot or error budget.

Batches for all unfinished tasks are scheduled together, then awaited, so the
pool stays busy while slow tasks finish. A task whose batches keep failing is
stopped by its breaker and reported through the returned error; the stats of
every other task are still returned.
*/
func Collect(ctx context.Context, tasks []Task, opts CollectOptions) ([]TaskStats, error) {
	opts = normalizeOptions(opts)

	runs, err := prepare(tasks, opts)
	if err != nil {
		return nil, err
	}

	pool := NewPool(ctx, opts.NumWorkers, opts.Config)
	defer pool.Close()

	progress := pool.Space().CreateBroadcastGroup("collect", 0)
	updates := pool.Space().Subscribe("collect")
	limiter := NewRateLimiter(len(runs), opts.Config.ProgressInterval)
	forwarded := make(chan struct{})
	go func() {
		defer close(forwarded)
		for update := range updates {
			stats := update.Value.(TaskStats)
			if limiter.Allow() {
				errnie.Info("progress %s", stats)
			}
			if opts.OnProgress != nil {
				opts.OnProgress(stats)
			}
		}
	}()

	for _, r := range runs {
		pool.AddBreaker(r.id, NewBreaker(3, time.Second, 1))
	}

	scaler := BatchScaler{
		Min:    min(opts.BatchSize, minBatchSize),
		Max:    opts.Config.MaxBatchSize,
		Target: opts.Config.BatchTarget,
	}

	started := time.Now()
	for {
		type pending struct {
			run *collection
			id  string
			ch  chan Result
			at  time.Time
		}

		var waiting []pending
		for _, r := range runs {
			if r.done(opts) {
				continue
			}
			shots := min(r.size, opts.MaxShots-r.stats.Shots)
			run := r
			id := fmt.Sprintf("%s/batch-%d", r.id, r.batches)
			r.batches++

			ch := pool.Schedule(id, func(ctx context.Context) (any, error) {
				return run.batch(ctx, shots)
			}, WithBreaker(r.id), WithTTL(time.Minute))
			waiting = append(waiting, pending{run: r, id: id, ch: ch, at: time.Now()})
		}

		if len(waiting) == 0 {
			break
		}

		for _, w := range waiting {
			var res Result
			select {
			case res = <-w.ch:
			case <-ctx.Done():
				progress.Close()
				<-forwarded
				return snapshot(runs), ctx.Err()
			}
			pool.Space().Forget(w.id)

			if res.Error != nil {
				w.run.err = fmt.Errorf("%s: %w", w.run.id, res.Error)
				log.Error("task stopped", "task", w.run.id, "err", res.Error)
				continue
			}

			b := res.Value.(batchResult)
			w.run.stats.Shots += b.shots
			w.run.stats.Errors += b.errors
			w.run.stats.Seconds += time.Since(w.at).Seconds()
			w.run.size = scaler.Next(w.run.size, b.elapsed)
			pool.Metrics().recordBatch(b.shots, b.errors)
			progress.Send(Result{Value: w.run.stats, CreatedAt: time.Now()})
		}
	}

	progress.Close()
	<-forwarded

	log.Info("collection finished",
		"tasks", len(runs),
		"elapsed", time.Since(started).Round(time.Millisecond),
		"metrics", pool.Metrics().ExportMetrics(),
	)

	var errs []error
	for _, r := range runs {
		if r.err != nil {
			errs = append(errs, r.err)
		}
	}
	return snapshot(runs), errors.Join(errs...)
}

func normalizeOptions(opts CollectOptions) CollectOptions {
	if opts.Config == nil {
		opts.Config = NewConfig()
	}
	if opts.NumWorkers < 1 {
		opts.NumWorkers = opts.Config.Workers
	}
	if opts.BatchSize < 1 {
		opts.BatchSize = opts.Config.BatchSize
	}
	if len(opts.Decoders) == 0 {
		opts.Decoders = []string{"matching"}
	}
	if opts.MaxShots < 1 {
		opts.MaxShots = opts.BatchSize
	}
	return opts
}

func prepare(tasks []Task, opts CollectOptions) ([]*collection, error) {
	var runs []*collection
	for i, task := range tasks {
		if task.Circuit == nil {
			return nil, fmt.Errorf("%w: task %d has no circuit", ErrArguments, i)
		}

		model, err := task.Circuit.DetectorErrorModel()
		if err != nil {
			return nil, fmt.Errorf("task %d: %w", i, err)
		}

		for j, name := range opts.Decoders {
			decoder, err := NewDecoder(name, model)
			if err != nil {
				return nil, fmt.Errorf("task %d: %w", i, err)
			}

			var samplerOpts []SamplerOption
			if opts.Seed != 0 {
				samplerOpts = append(samplerOpts, WithSeed(opts.Seed+uint64(i*len(opts.Decoders)+j)))
			}

			runs = append(runs, &collection{
				id: fmt.Sprintf("task-%d/%s", i, name),
				stats: TaskStats{
					Decoder:  name,
					Metadata: task.Metadata,
				},
				sampler: task.Circuit.CompileDetectorSampler(samplerOpts...),
				decoder: decoder,
				size:    opts.BatchSize,
			})
		}
	}
	return runs, nil
}

func snapshot(runs []*collection) []TaskStats {
	out := make([]TaskStats, len(runs))
	for i, r := range runs {
		out[i] = r.stats
	}
	return out
}
