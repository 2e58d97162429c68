package qec

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// builder appends instructions and keeps the first error.
type builder struct {
	c   *Circuit
	err error
}

func newBuilder() *builder {
	return &builder{c: NewCircuit()}
}

func (b *builder) add(gate string, targets []Target, args ...float64) *builder {
	if b.err == nil {
		b.err = b.c.Append(gate, targets, args...)
	}
	return b
}

func (b *builder) qubits(gate string, qs []int, args ...float64) *builder {
	return b.add(gate, Qubits(qs...), args...)
}

func (b *builder) build() (*Circuit, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.c, nil
}

/*
ErrorDetectionCircuit entangles qubits 0 and 1 into a Bell pair, flips both
with probability p and copies their parity onto qubit 2. The parity is the
detector and qubit 0 carries the observable.
*/
func ErrorDetectionCircuit(p float64) (*Circuit, error) {
	return newBuilder().
		qubits("R", []int{0, 1, 2}).
		qubits("H", []int{0}).
		qubits("CX", []int{0, 1}).
		qubits("X_ERROR", []int{0, 1}, p).
		qubits("CX", []int{0, 2}).
		qubits("CX", []int{1, 2}).
		qubits("M", []int{2}).
		add("DETECTOR", Recs(-1), 0, 0, 0).
		qubits("M", []int{0, 1}).
		add("OBSERVABLE_INCLUDE", Recs(-2), 0).
		build()
}

/*
RepetitionDiagramCircuit is a noiseless n-qubit repetition code with three
syndrome rounds, drawn for illustration. Each round ends with one detector
over both of the first two ancillas, and the observable is the parity of the
last three data measurements.
*/
func RepetitionDiagramCircuit(n int) (*Circuit, error) {
	if n < 3 {
		return nil, fmt.Errorf("%w: diagram needs n >= 3, got %d", ErrArguments, n)
	}

	b := newBuilder().add("R", QubitRange(0, 2*n-1))
	for round := 0; round < 3; round++ {
		b.add("TICK", nil)
		for i := 0; i < n-1; i++ {
			b.qubits("CX", []int{2 * i, 2*i + 1}).
				qubits("CX", []int{2*i + 2, 2*i + 1})
		}
		b.qubits("M", []int{1, 3}).
			add("DETECTOR", Recs(-2, -1))
	}

	data := make([]int, n)
	for i := range data {
		data[i] = 2 * i
	}
	return b.add("TICK", nil).
		qubits("M", data).
		add("OBSERVABLE_INCLUDE", Recs(-1, -2, -3), 0).
		build()
}

// hammingChecks lists the data qubits each of the three ancillas (7, 8, 9) checks.
var hammingChecks = [3][]int{
	{0, 2, 4, 6},
	{1, 2, 5, 6},
	{3, 4, 5, 6},
}

/*
HammingMemoryCircuit runs one round of the [7,4] Hamming checks after
flipping every data qubit with probability p.

Each ancilla is prepared in |+>, controlled by its data qubits and rotated
back before measurement, so every check gets its own detector. The
observable is data qubit 0.
*/
func HammingMemoryCircuit(p float64) (*Circuit, error) {
	b := newBuilder().
		add("R", QubitRange(0, 10)).
		add("X_ERROR", QubitRange(0, 7), p)

	for i, check := range hammingChecks {
		anc := 7 + i
		b.qubits("H", []int{anc})
		for _, q := range check {
			b.qubits("CX", []int{q, anc})
		}
		b.qubits("H", []int{anc}).
			qubits("M", []int{anc}).
			add("DETECTOR", Recs(-1))
	}

	return b.add("M", QubitRange(0, 7)).
		add("OBSERVABLE_INCLUDE", Recs(-7), 0).
		build()
}

// HammingDiagramCircuit draws the three checks as separate moments with a single combined detector.
func HammingDiagramCircuit() (*Circuit, error) {
	b := newBuilder().add("R", QubitRange(0, 10))
	for i, check := range hammingChecks {
		anc := 7 + i
		b.qubits("H", []int{anc})
		for _, q := range check {
			b.qubits("CX", []int{q, anc})
		}
		b.qubits("H", []int{anc}).add("TICK", nil)
	}
	return b.qubits("M", []int{7, 8, 9}).
		add("DETECTOR", Recs(-3, -2, -1)).
		add("M", QubitRange(0, 7)).
		build()
}

var (
	bannerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

/*
Runner executes the experiment sections and prints their results.

A failing section prints its error and closes its banner; the following
sections still run. Run methods return every section failure joined, for
callers that want an exit status.
*/
type Runner struct {
	Out    io.Writer
	Config *Config
}

// NewRunner writes to out using cfg, or the defaults when cfg is nil.
func NewRunner(out io.Writer, cfg *Config) *Runner {
	if cfg == nil {
		cfg = NewConfig()
	}
	return &Runner{Out: out, Config: cfg}
}

func (r *Runner) printf(format string, args ...any) {
	fmt.Fprintf(r.Out, format, args...)
}

func (r *Runner) section(name, title string, fn func() error) error {
	heading := fmt.Sprintf("=== %s: %s ===", name, title)
	r.printf("\n%s\n", bannerStyle.Render(heading))

	err := fn()
	if err != nil {
		log.Error("section failed", "section", name, "err", err)
		r.printf("%s\n", failStyle.Render(fmt.Sprintf("%s failed: %v", name, err)))
		err = fmt.Errorf("%s: %w", name, err)
	}

	r.printf("%s\n", strings.Repeat("=", len(heading)))
	return err
}

func (r *Runner) output(name string) string {
	return filepath.Join(r.Config.OutputDir, name)
}

func (r *Runner) samplerOpts(stream uint64) []SamplerOption {
	if r.Config.Seed == 0 {
		return nil
	}
	return []SamplerOption{WithSeed(r.Config.Seed + stream)}
}

// RunOutputs runs the detection, manual threshold, benchmark and Hamming sections.
func (r *Runner) RunOutputs(ctx context.Context) error {
	return errors.Join(
		r.section("Task 2.1", "Error Detection Output", r.errorDetection),
		r.section("Task 3", "Repetition Code Output", r.repetitionThreshold),
		r.section("Task 4", "Benchmark Output", func() error { return r.benchmark(ctx) }),
		r.section("Task 5", "Hamming Code Output", func() error { return r.hamming(ctx) }),
	)
}

func (r *Runner) errorDetection() error {
	cfg := r.Config.Detection
	c, err := ErrorDetectionCircuit(cfg.Noise)
	if err != nil {
		return err
	}

	r.printf("Num detectors: %d\n", c.NumDetectors())
	r.printf("Num observables: %d\n", c.NumObservables())

	rows := c.CompileDetectorSampler(r.samplerOpts(0)...).Sample(cfg.Shots)
	width := c.NumDetectors() + c.NumObservables()
	r.printf("Stats shape: (%d, %d)\n", len(rows), width)

	if width > 1 {
		var kept []float64
		for _, row := range rows {
			if row[0] {
				continue
			}
			v := 0.0
			if row[1] {
				v = 1
			}
			kept = append(kept, v)
		}
		rate := 0.0
		if len(kept) > 0 {
			rate = stat.Mean(kept, nil)
		}
		r.printf("Simulated Logical Error Rate from %d valid shots: %v\n", len(kept), rate)
	} else if c.NumObservables() > 0 {
		r.printf("Warning: Observable column missing in stats.\n")
	}

	p := cfg.Noise
	r.printf("Theoretical Success Probability: %v\n", (1-p)*(1-p)+p*p)
	return nil
}

func (r *Runner) repetitionThreshold() error {
	cfg := r.Config.Repetition
	if cfg.Points < 2 || cfg.MinNoise <= 0 || cfg.MaxNoise <= cfg.MinNoise {
		return fmt.Errorf("%w: noise sweep %v..%v over %d points", ErrArguments, cfg.MinNoise, cfg.MaxNoise, cfg.Points)
	}
	ps := floats.LogSpan(make([]float64, cfg.Points), cfg.MinNoise, cfg.MaxNoise)

	r.printf("Simulating Repetition Code Threshold (Manual)...\n")

	curves := make([]Curve, 0, len(cfg.Distances))
	for di, d := range cfg.Distances {
		curve := Curve{Label: fmt.Sprintf("d=%d", d)}
		r.printf("  d=%d: ", d)

		for pi, p := range ps {
			c, err := RepetitionCodeCircuit(d, p)
			if err != nil {
				return err
			}
			tally, err := SimulateRepetition(c, d, cfg.Shots, r.samplerOpts(uint64(di*len(ps)+pi))...)
			if err != nil {
				return err
			}
			rate, err := LogicalErrorRate(tally, false)
			if err != nil {
				return err
			}

			curve.X = append(curve.X, p)
			curve.Y = append(curve.Y, rate)
			r.printf("p=%.3f->%.3f ", p, rate)
		}
		r.printf("\n")
		curves = append(curves, curve)
	}

	path := r.output("repetition_code_threshold.png")
	err := PlotCurves(path, curves, PlotOptions{
		Title:  "Repetition Code Threshold Simulation",
		XLabel: "Physical Error Probability p",
		YLabel: "Logical Error Probability p_L",
	})
	if err != nil {
		return err
	}
	r.printf("Saved %s\n", filepath.Base(path))
	return nil
}

// BenchmarkTasks builds the bit-flip repetition memory tasks, rounds = 3d.
func BenchmarkTasks(distances []int, noise []float64) ([]Task, error) {
	var tasks []Task
	for _, d := range distances {
		for _, p := range noise {
			c, err := RepetitionMemory(d, 3*d, Noise{AfterClifford: p, BitFlip: true})
			if err != nil {
				return nil, err
			}
			tasks = append(tasks, Task{
				Circuit:  c,
				Metadata: map[string]any{"d": d, "p": p},
			})
		}
	}
	return tasks, nil
}

func (r *Runner) benchmark(ctx context.Context) error {
	cfg := r.Config.Benchmark
	tasks, err := BenchmarkTasks(cfg.Distances, cfg.Noise)
	if err != nil {
		return err
	}

	r.printf("Collecting benchmark stats...\n")
	stats, err := Collect(ctx, tasks, CollectOptions{
		NumWorkers: r.Config.Workers,
		Decoders:   []string{cfg.Decoder},
		MaxShots:   cfg.MaxShots,
		MaxErrors:  cfg.MaxErrors,
		Seed:       r.Config.Seed,
		Config:     r.Config,
	})
	if err != nil {
		return err
	}

	path := r.output("sinter_threshold.png")
	err = PlotErrorRate(path, stats,
		func(s TaskStats) float64 { return s.Metadata["p"].(float64) },
		func(s TaskStats) string { return fmt.Sprintf("d=%v", s.Metadata["d"]) },
		PlotOptions{Title: "Cat Repetition Code Threshold"},
	)
	if err != nil {
		return err
	}
	r.printf("Saved %s\n", filepath.Base(path))
	return nil
}

func (r *Runner) hamming(ctx context.Context) error {
	cfg := r.Config.Hamming

	tasks := make([]Task, 0, len(cfg.Noise))
	for _, p := range cfg.Noise {
		c, err := HammingMemoryCircuit(p)
		if err != nil {
			return err
		}
		tasks = append(tasks, Task{Circuit: c, Metadata: map[string]any{"p": p, "d": 3}})
	}

	r.printf("Collecting Hamming stats...\n")
	stats, err := Collect(ctx, tasks, CollectOptions{
		NumWorkers: r.Config.Workers,
		Decoders:   []string{cfg.Decoder},
		MaxShots:   cfg.MaxShots,
		Seed:       r.Config.Seed,
		Config:     r.Config,
	})
	if err != nil {
		return err
	}

	for _, s := range stats {
		r.printf("p=%v: Logical Error Rate = %v\n", s.Metadata["p"], s.ErrorRate())
	}
	return nil
}

// DiagramJob pairs a circuit constructor with its output file.
type DiagramJob struct {
	File  string
	Build func() (*Circuit, error)
}

// DefaultDiagrams are the three circuits the course write-up illustrates.
func DefaultDiagrams() []DiagramJob {
	return []DiagramJob{
		{File: "circuit_error_detection.svg", Build: func() (*Circuit, error) { return ErrorDetectionCircuit(0.1) }},
		{File: "circuit_repetition_d3.svg", Build: func() (*Circuit, error) { return RepetitionDiagramCircuit(3) }},
		{File: "circuit_hamming.svg", Build: HammingDiagramCircuit},
	}
}

// RunDiagrams writes every job as an SVG timeline, continuing past failures.
func (r *Runner) RunDiagrams(jobs []DiagramJob) error {
	var errs []error
	for _, job := range jobs {
		path := r.output(job.File)
		r.printf("Generating %s...\n", job.File)

		c, err := job.Build()
		if err == nil {
			err = SaveDiagram(c, path, TimelineSVG)
		}
		if err != nil {
			log.Error("diagram failed", "file", job.File, "err", err)
			errs = append(errs, fmt.Errorf("%s: %w", job.File, err))
			continue
		}
		r.printf("Saved %s\n", job.File)
	}
	return errors.Join(errs...)
}
