package qec

import (
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestResultSpace(t *testing.T) {
	Convey("Given a result space", t, func() {
		rs := NewResultSpace()

		const key = "test-group"

		Reset(func() {
			rs.Close()
		})

		Convey("When storing and retrieving values", func() {
			rs.Store("test-key", "test-value", nil, time.Minute)

			Convey("Value should be retrievable", func() {
				value := await(t, rs.Await("test-key"))
				So(value.Value, ShouldEqual, "test-value")
				So(value.Error, ShouldBeNil)
				So(value.TTL, ShouldEqual, time.Minute)
			})

			Convey("Forgotten values should no longer be delivered", func() {
				rs.Forget("test-key")
				select {
				case <-rs.Await("test-key"):
					t.Fatal("forgotten value was delivered")
				case <-time.After(50 * time.Millisecond):
				}
			})
		})

		Convey("When awaiting before the value exists", func() {
			ch := rs.Await("later")
			other := rs.Await("later")
			rs.Store("later", nil, errors.New("failed"), 0)

			So(await(t, ch).Error, ShouldNotBeNil)
			So(await(t, other).Error, ShouldNotBeNil)
		})

		Convey("When using broadcast groups", func() {
			group := rs.CreateBroadcastGroup(key, time.Minute)
			sub1 := rs.Subscribe(key)
			sub2 := rs.Subscribe(key)

			Convey("All subscribers should receive messages", func() {
				group.Send(Result{Value: "broadcast message", CreatedAt: time.Now()})

				for _, ch := range []chan Result{sub1, sub2} {
					So(await(t, ch).Value, ShouldEqual, "broadcast message")
				}
			})

			Convey("Closing the group should close subscribers", func() {
				group.Close()
				_, ok := <-sub1
				So(ok, ShouldBeFalse)
				_, ok = <-sub2
				So(ok, ShouldBeFalse)
			})

			Convey("Closing the space should close subscribers", func() {
				rs.Close()
				_, ok := <-sub1
				So(ok, ShouldBeFalse)
			})
		})
	})
}
