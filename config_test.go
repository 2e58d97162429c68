package qec

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestConfig(t *testing.T) {
	Convey("Given the default configuration", t, func() {
		cfg := NewConfig()

		Convey("It should carry the experiment parameters", func() {
			So(cfg.Workers, ShouldEqual, 4)
			So(cfg.Detection.Shots, ShouldEqual, 100000)
			So(cfg.Detection.Noise, ShouldEqual, 0.1)
			So(cfg.Repetition.Distances, ShouldResemble, []int{3, 5})
			So(cfg.Repetition.Points, ShouldEqual, 5)
			So(cfg.Benchmark.Noise, ShouldResemble, []float64{0.001, 0.01, 0.05, 0.1})
			So(cfg.Benchmark.MaxErrors, ShouldEqual, 500)
			So(cfg.Benchmark.Decoder, ShouldEqual, "pymatching")
			So(cfg.Hamming.MaxShots, ShouldEqual, 5000)
			So(cfg.SchedulingTimeout, ShouldEqual, 10*time.Second)
			So(cfg.MaxBatchSize, ShouldBeGreaterThanOrEqualTo, cfg.BatchSize)
		})
	})

	Convey("Given a qec.yaml and environment overrides", t, func() {
		dir := t.TempDir()
		yaml := "workers: 2\nbenchmark:\n  max_shots: 123\n  distances: [7, 9]\n"
		So(os.WriteFile(filepath.Join(dir, "qec.yaml"), []byte(yaml), 0o644), ShouldBeNil)
		t.Setenv("QEC_HAMMING_DECODER", "lookup")

		cfg, err := LoadConfig(dir)
		So(err, ShouldBeNil)

		Convey("File values should override the defaults", func() {
			So(cfg.Workers, ShouldEqual, 2)
			So(cfg.Benchmark.MaxShots, ShouldEqual, 123)
			So(cfg.Benchmark.Distances, ShouldResemble, []int{7, 9})
			So(cfg.Benchmark.MaxErrors, ShouldEqual, 500)
		})

		Convey("Environment values should override the defaults", func() {
			So(cfg.Hamming.Decoder, ShouldEqual, "lookup")
		})
	})

	Convey("Given an invalid worker count", t, func() {
		t.Setenv("QEC_WORKERS", "0")
		_, err := LoadConfig(t.TempDir())
		So(errors.Is(err, ErrArguments), ShouldBeTrue)
	})
}
