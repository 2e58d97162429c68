package qec

import (
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestRepetitionMemory(t *testing.T) {
	Convey("Given a distance 3 memory experiment over 2 rounds", t, func() {
		c, err := RepetitionMemory(3, 2, Noise{AfterClifford: 0.01, BeforeRoundData: 0.02})
		So(err, ShouldBeNil)

		Convey("It should lay out data and measure qubits alternately", func() {
			So(c.NumQubits(), ShouldEqual, 5)
			So(c.NumMeasurements(), ShouldEqual, 2*2+3)
			So(c.NumDetectors(), ShouldEqual, 2*2+2)
			So(c.NumObservables(), ShouldEqual, 1)
		})

		Convey("It should use depolarizing channels", func() {
			So(c.String(), ShouldContainSubstring, "DEPOLARIZE2(0.01) 0 1 2 3")
			So(c.String(), ShouldContainSubstring, "DEPOLARIZE1(0.02) 0 2 4")
		})

		Convey("Its noiseless version should never fire a detector", func() {
			rows := c.Noiseless().CompileDetectorSampler(WithSeed(3)).Sample(500)
			for _, row := range rows {
				So(row, ShouldNotContain, true)
			}
		})
	})

	Convey("Given the bit-flip variant", t, func() {
		c, err := RepetitionMemory(5, 15, Noise{AfterClifford: 0.05, BitFlip: true})
		So(err, ShouldBeNil)

		Convey("It should only contain X_ERROR channels", func() {
			So(c.String(), ShouldNotContainSubstring, "DEPOLARIZE")
			So(c.String(), ShouldContainSubstring, "X_ERROR(0.05)")
			So(c.NumDetectors(), ShouldEqual, 4*15+4)
		})
	})

	Convey("Given invalid sizes", t, func() {
		_, err := RepetitionMemory(1, 3, Noise{})
		So(errors.Is(err, ErrArguments), ShouldBeTrue)

		_, err = RepetitionMemory(3, 0, Noise{})
		So(errors.Is(err, ErrArguments), ShouldBeTrue)
	})
}
