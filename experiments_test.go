package qec

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestExperimentCircuits(t *testing.T) {
	Convey("Given the experiment circuits", t, func() {
		Convey("The detection circuit should have one detector and one observable", func() {
			c, err := ErrorDetectionCircuit(0.1)
			So(err, ShouldBeNil)
			So(c.NumQubits(), ShouldEqual, 3)
			So(c.NumMeasurements(), ShouldEqual, 3)
			So(c.NumDetectors(), ShouldEqual, 1)
			So(c.NumObservables(), ShouldEqual, 1)
		})

		Convey("The Hamming memory should check three parities", func() {
			c, err := HammingMemoryCircuit(0.01)
			So(err, ShouldBeNil)
			So(c.NumQubits(), ShouldEqual, 10)
			So(c.NumMeasurements(), ShouldEqual, 10)
			So(c.NumDetectors(), ShouldEqual, 3)
			So(c.NumObservables(), ShouldEqual, 1)

			rows := c.Noiseless().CompileDetectorSampler(WithSeed(1)).Sample(200)
			for _, row := range rows {
				So(row, ShouldNotContain, true)
			}
		})

		Convey("The Hamming memory should fail about as often as qubit 0 flips", func() {
			c, err := HammingMemoryCircuit(0.1)
			So(err, ShouldBeNil)

			_, obs := c.CompileDetectorSampler(WithSeed(2)).SampleSeparated(10000)
			flips := 0
			for _, o := range obs {
				if o[0] {
					flips++
				}
			}
			So(float64(flips)/10000, ShouldAlmostEqual, 0.1, 0.015)
		})

		Convey("The repetition diagram should run three rounds", func() {
			c, err := RepetitionDiagramCircuit(3)
			So(err, ShouldBeNil)
			So(c.NumMeasurements(), ShouldEqual, 3*2+3)
			So(c.NumDetectors(), ShouldEqual, 3)
			So(c.NumObservables(), ShouldEqual, 1)

			_, err = RepetitionDiagramCircuit(2)
			So(errors.Is(err, ErrArguments), ShouldBeTrue)
		})

		Convey("The Hamming diagram should combine its checks", func() {
			c, err := HammingDiagramCircuit()
			So(err, ShouldBeNil)
			So(c.NumDetectors(), ShouldEqual, 1)
			So(c.NumMeasurements(), ShouldEqual, 10)
		})

		Convey("The builder should keep the first error", func() {
			_, err := newBuilder().qubits("CX", []int{0}).qubits("H", []int{0}).build()
			So(errors.Is(err, ErrInvalidTarget), ShouldBeTrue)
		})
	})
}

func smallConfig(dir string) *Config {
	cfg := NewConfig()
	cfg.OutputDir = dir
	cfg.Seed = 1
	cfg.Workers = 2
	cfg.BatchSize = 250
	cfg.Detection.Shots = 2000
	cfg.Repetition.Shots = 200
	cfg.Repetition.Distances = []int{3}
	cfg.Repetition.Points = 3
	cfg.Benchmark.Distances = []int{3}
	cfg.Benchmark.Noise = []float64{0.05, 0.1}
	cfg.Benchmark.MaxShots = 500
	cfg.Hamming.Noise = []float64{0.01}
	cfg.Hamming.MaxShots = 500
	return cfg
}

func TestRunner(t *testing.T) {
	Convey("Given a runner with a small configuration", t, func() {
		dir := t.TempDir()
		var out bytes.Buffer
		runner := NewRunner(&out, smallConfig(dir))

		Convey("RunOutputs should print every section and write the plots", func() {
			So(runner.RunOutputs(context.Background()), ShouldBeNil)
			text := out.String()

			So(text, ShouldContainSubstring, "Task 2.1: Error Detection Output")
			So(text, ShouldContainSubstring, "Num detectors: 1")
			So(text, ShouldContainSubstring, "Num observables: 1")
			So(text, ShouldContainSubstring, "Stats shape: (2000, 2)")
			So(text, ShouldContainSubstring, "valid shots")
			So(text, ShouldContainSubstring, "Theoretical Success Probability: 0.82")
			So(text, ShouldContainSubstring, "  d=3: p=0.010->")
			So(text, ShouldContainSubstring, "Saved repetition_code_threshold.png")
			So(text, ShouldContainSubstring, "Saved sinter_threshold.png")
			So(text, ShouldContainSubstring, "p=0.01: Logical Error Rate = ")

			for _, name := range []string{"repetition_code_threshold.png", "sinter_threshold.png"} {
				_, err := os.Stat(filepath.Join(dir, name))
				So(err, ShouldBeNil)
			}
		})

		Convey("A failing section should not stop the others", func() {
			runner.Config.Repetition.Points = 1
			err := runner.RunOutputs(context.Background())

			So(errors.Is(err, ErrArguments), ShouldBeTrue)
			So(out.String(), ShouldContainSubstring, "Task 3 failed")
			So(out.String(), ShouldContainSubstring, "Saved sinter_threshold.png")
		})

		Convey("RunDiagrams should write every SVG", func() {
			So(runner.RunDiagrams(DefaultDiagrams()), ShouldBeNil)
			for _, job := range DefaultDiagrams() {
				_, err := os.Stat(filepath.Join(dir, job.File))
				So(err, ShouldBeNil)
				So(out.String(), ShouldContainSubstring, "Saved "+job.File)
			}
		})

		Convey("RunDiagrams should continue past a broken job", func() {
			jobs := append([]DiagramJob{{
				File:  "broken.svg",
				Build: func() (*Circuit, error) { return RepetitionDiagramCircuit(1) },
			}}, DefaultDiagrams()...)

			err := runner.RunDiagrams(jobs)
			So(err, ShouldNotBeNil)
			So(out.String(), ShouldContainSubstring, "Saved circuit_hamming.svg")
		})
	})
}
