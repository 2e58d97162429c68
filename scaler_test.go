package qec

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestBatchScaler(t *testing.T) {
	Convey("Given a batch scaler targeting 100ms", t, func() {
		scaler := BatchScaler{Min: 100, Max: 1000, Target: 100 * time.Millisecond}

		Convey("Fast batches should double", func() {
			So(scaler.Next(100, 10*time.Millisecond), ShouldEqual, 200)
		})

		Convey("Slow batches should shrink in proportion to the overrun", func() {
			So(scaler.Next(800, 300*time.Millisecond), ShouldEqual, 266)
			So(scaler.Next(1000, 400*time.Millisecond), ShouldEqual, 250)
		})

		Convey("On-target batches should keep their size", func() {
			So(scaler.Next(300, 120*time.Millisecond), ShouldEqual, 300)
		})

		Convey("Sizes should stay within bounds", func() {
			So(scaler.Next(800, time.Millisecond), ShouldEqual, 1000)
			So(scaler.Next(100, time.Second), ShouldEqual, 100)
		})
	})

	Convey("Given a scaler without a target", t, func() {
		scaler := BatchScaler{}
		So(scaler.Next(250, time.Hour), ShouldEqual, 250)
		So(scaler.Next(0, 0), ShouldEqual, 1)
	})
}
