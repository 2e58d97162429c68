package qec

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func detectorRate(rows [][]bool, column int) float64 {
	fired := 0
	for _, row := range rows {
		if row[column] {
			fired++
		}
	}
	return float64(fired) / float64(len(rows))
}

func TestDetectorSampler(t *testing.T) {
	Convey("Given the error detection circuit", t, func() {
		Convey("Without noise the detector should never fire", func() {
			c, err := ErrorDetectionCircuit(0)
			So(err, ShouldBeNil)

			sampler := c.CompileDetectorSampler(WithSeed(1))
			So(sampler.NumDetectors(), ShouldEqual, 1)
			So(sampler.NumObservables(), ShouldEqual, 1)

			rows := sampler.Sample(1000)
			So(rows, ShouldHaveLength, 1000)
			So(rows[0], ShouldHaveLength, 2)
			So(detectorRate(rows, 0), ShouldEqual, 0)
		})

		Convey("A certain X on either qubit should always fire it", func() {
			for _, q := range []string{"0", "1"} {
				c, err := ParseCircuit(
					"R 0 1 2\nH 0\nCX 0 1\nX_ERROR(1) " + q + "\nCX 0 2\nCX 1 2\nM 2\nDETECTOR rec[-1]\nM 0 1\nOBSERVABLE_INCLUDE(0) rec[-2]",
				)
				So(err, ShouldBeNil)

				rows := c.CompileDetectorSampler(WithSeed(2)).Sample(200)
				So(detectorRate(rows, 0), ShouldEqual, 1)
			}
		})

		Convey("With p=0.1 the detector should fire at about 2p(1-p)", func() {
			c, err := ErrorDetectionCircuit(0.1)
			So(err, ShouldBeNil)

			rows := c.CompileDetectorSampler(WithSeed(3)).Sample(20000)
			So(detectorRate(rows, 0), ShouldAlmostEqual, 0.18, 0.015)

			// The observable is a Bell-pair half, so it is a fair coin.
			So(detectorRate(rows, 1), ShouldAlmostEqual, 0.5, 0.02)
		})

		Convey("The same seed should give the same samples", func() {
			c, err := ErrorDetectionCircuit(0.3)
			So(err, ShouldBeNil)

			a := c.CompileDetectorSampler(WithSeed(42)).Sample(300)
			b := c.CompileDetectorSampler(WithSeed(42)).Sample(300)
			So(a, ShouldResemble, b)
		})

		Convey("SampleSeparated should split detectors from observables", func() {
			c, err := ErrorDetectionCircuit(0.1)
			So(err, ShouldBeNil)

			dets, obs := c.CompileDetectorSampler(WithSeed(4)).SampleSeparated(130)
			So(dets, ShouldHaveLength, 130)
			So(obs, ShouldHaveLength, 130)
			So(dets[129], ShouldHaveLength, 1)
			So(obs[129], ShouldHaveLength, 1)
		})
	})
}

func TestMeasurementSampler(t *testing.T) {
	Convey("Given deterministic circuits", t, func() {
		Convey("Pauli X should read 1 on every shot", func() {
			c, err := ParseCircuit("R 0\nX 0\nM 0")
			So(err, ShouldBeNil)

			for _, row := range c.CompileSampler(WithSeed(5)).Sample(100) {
				So(row, ShouldResemble, []bool{true})
			}
		})

		Convey("A certain flip on every data qubit should leave the syndrome clean", func() {
			c, err := RepetitionCodeCircuit(3, 1)
			So(err, ShouldBeNil)

			for _, row := range c.CompileSampler(WithSeed(6)).Sample(100) {
				So(row, ShouldResemble, []bool{false, false, true, true, true})
			}
		})
	})
}

func TestSamplerShotCounts(t *testing.T) {
	Convey("Given compiled samplers", t, func() {
		c, err := ErrorDetectionCircuit(0.1)
		So(err, ShouldBeNil)

		detectors := c.CompileDetectorSampler(WithSeed(2))
		measurements := c.CompileSampler(WithSeed(2))

		Convey("Zero or negative shot counts should give no rows", func() {
			for _, shots := range []int{0, -1, -64} {
				So(detectors.Sample(shots), ShouldBeEmpty)
				So(measurements.Sample(shots), ShouldBeEmpty)

				dets, obs := detectors.SampleSeparated(shots)
				So(dets, ShouldBeEmpty)
				So(obs, ShouldBeEmpty)
			}
		})
	})
}
