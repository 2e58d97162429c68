package qec

import (
	"math/rand/v2"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

// encode returns the data bits of a repetition code holding value with the
// given errors applied, and the syndrome those data bits produce.
func encode(n int, value bool, errs uint) ([]bool, []bool) {
	data := make([]bool, n)
	for i := range data {
		data[i] = value != (errs&(1<<i) != 0)
	}
	stabs := make([]bool, n-1)
	for i := range stabs {
		stabs[i] = data[i] != data[i+1]
	}
	return data, stabs
}

func TestDecodeRepetition(t *testing.T) {
	Convey("Given the toy repetition decoder", t, func() {
		Convey("Clean codewords should decode to their value", func() {
			So(DecodeRepetition([]bool{false, false, false}, []bool{false, false}), ShouldBeFalse)
			So(DecodeRepetition([]bool{true, true, true}, []bool{false, false}), ShouldBeTrue)
		})

		Convey("A flipped first qubit should be corrected", func() {
			data, _ := ParseBits("100")
			stabs, _ := ParseBits("10")
			So(DecodeRepetition(data, stabs), ShouldBeFalse)
		})

		Convey("Fewer than n/2 flips should always be corrected for odd n", func() {
			for _, n := range []int{3, 5, 7} {
				for errs := uint(0); errs < 1<<n; errs++ {
					weight := 0
					for i := 0; i < n; i++ {
						if errs&(1<<i) != 0 {
							weight++
						}
					}
					if 2*weight >= n {
						continue
					}
					for _, value := range []bool{false, true} {
						data, stabs := encode(n, value, errs)
						So(DecodeRepetition(data, stabs), ShouldEqual, value)
					}
				}
			}
		})

		Convey("Complementing the data should complement the result for odd n", func() {
			rng := rand.New(rand.NewPCG(7, 7))
			for trial := 0; trial < 200; trial++ {
				n := 2*rng.IntN(4) + 3
				data := make([]bool, n)
				stabs := make([]bool, n-1)
				flipped := make([]bool, n)
				for i := range data {
					data[i] = rng.IntN(2) == 1
					flipped[i] = !data[i]
				}
				for i := range stabs {
					stabs[i] = rng.IntN(2) == 1
				}
				So(DecodeRepetition(flipped, stabs), ShouldEqual, !DecodeRepetition(data, stabs))
			}
		})

		Convey("Complementing data and stabilizers together should not be an invariance", func() {
			data, _ := ParseBits("000")
			stabs, _ := ParseBits("00")
			So(DecodeRepetition(data, stabs), ShouldBeFalse)

			data, _ = ParseBits("111")
			stabs, _ = ParseBits("11")
			So(DecodeRepetition(data, stabs), ShouldBeTrue)
		})

		Convey("Ties on even n should decode to 0", func() {
			data, _ := ParseBits("0011")
			stabs, _ := ParseBits("000")
			So(DecodeRepetition(data, stabs), ShouldBeFalse)
		})

		Convey("Empty input should decode to 0", func() {
			So(DecodeRepetition(nil, nil), ShouldBeFalse)
		})
	})
}

func TestBits(t *testing.T) {
	Convey("Given bit strings", t, func() {
		bits, err := ParseBits("0110")
		So(err, ShouldBeNil)
		So(bits, ShouldResemble, []bool{false, true, true, false})
		So(FormatBits(bits), ShouldEqual, "0110")

		_, err = ParseBits("012")
		So(err, ShouldNotBeNil)
	})
}

func TestRepetitionCodeCircuit(t *testing.T) {
	Convey("Given a 3 qubit repetition code", t, func() {
		c, err := RepetitionCodeCircuit(3, 0.1)
		So(err, ShouldBeNil)

		Convey("It should measure each stabilizer once and then the data", func() {
			So(c.String(), ShouldEqual, strings.Join([]string{
				"R 0 1 2 3 4",
				"X_ERROR(0.1) 0 2 4",
				"CX 0 1",
				"CX 2 1",
				"M 1",
				"CX 2 3",
				"CX 4 3",
				"M 3",
				"M 0 2 4",
			}, "\n"))
		})

		Convey("It should tally noisy outcomes", func() {
			tally, err := SimulateRepetition(c, 3, 2000, WithSeed(9))
			So(err, ShouldBeNil)
			So(tally.Shots(), ShouldEqual, 2000)

			outcomes := tally.Outcomes()
			So(outcomes[0], ShouldResemble, Outcome{Data: "000", Stabs: "00"})

			rate, err := LogicalErrorRate(tally, false)
			So(err, ShouldBeNil)
			// 3p^2 - 2p^3 = 0.028
			So(rate, ShouldAlmostEqual, 0.028, 0.015)
		})

		Convey("It should refuse a mismatched size", func() {
			_, err := SimulateRepetition(c, 5, 10)
			So(err, ShouldNotBeNil)
		})
	})

	Convey("Given extreme noise", t, func() {
		Convey("p=0 should never fail", func() {
			c, err := RepetitionCodeCircuit(5, 0)
			So(err, ShouldBeNil)
			tally, err := SimulateRepetition(c, 5, 300, WithSeed(1))
			So(err, ShouldBeNil)
			So(tally, ShouldResemble, Tally{{Data: "00000", Stabs: "0000"}: 300})

			rate, err := LogicalErrorRate(tally, false)
			So(err, ShouldBeNil)
			So(rate, ShouldEqual, 0)
		})

		Convey("p=1 should always fail", func() {
			c, err := RepetitionCodeCircuit(3, 1)
			So(err, ShouldBeNil)
			tally, err := SimulateRepetition(c, 3, 300, WithSeed(1))
			So(err, ShouldBeNil)

			rate, err := LogicalErrorRate(tally, false)
			So(err, ShouldBeNil)
			So(rate, ShouldEqual, 1)
		})

		Convey("An empty tally should have rate 0", func() {
			rate, err := LogicalErrorRate(Tally{}, false)
			So(err, ShouldBeNil)
			So(rate, ShouldEqual, 0)
		})
	})
}
