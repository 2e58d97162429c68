package qec

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLayout(t *testing.T) {
	Convey("Given small circuits", t, func() {
		Convey("Independent gates should share a column", func() {
			c, err := ParseCircuit("H 0\nH 1\nCX 0 1")
			So(err, ShouldBeNil)

			tl := layout(c)
			So(tl.cols, ShouldEqual, 2)
			So(tl.gates[0].col, ShouldEqual, 0)
			So(tl.gates[1].col, ShouldEqual, 0)
			So(tl.gates[2].col, ShouldEqual, 1)
		})

		Convey("A pair gate should block the wires it spans", func() {
			c, err := ParseCircuit("CX 0 2\nH 1")
			So(err, ShouldBeNil)
			So(layout(c).gates[1].col, ShouldEqual, 1)
		})

		Convey("TICK should start a new moment", func() {
			c, err := ParseCircuit("H 0\nTICK\nH 1\nTICK")
			So(err, ShouldBeNil)

			tl := layout(c)
			So(tl.gates[1].col, ShouldEqual, 1)
			So(tl.ticks, ShouldResemble, []int{1})
		})

		Convey("Annotations should sit at their latest measurement", func() {
			c, err := ParseCircuit("M 0\nH 1\nH 1\nM 1\nDETECTOR rec[-1] rec[-2]\nOBSERVABLE_INCLUDE(0) rec[-2]")
			So(err, ShouldBeNil)

			tl := layout(c)
			So(tl.annotations, ShouldHaveLength, 2)
			So(tl.annotations[0].col, ShouldEqual, 2)
			So(tl.annotations[0].label, ShouldEqual, "D0 = rec[-1] rec[-2]")
			So(tl.annotations[1].col, ShouldEqual, 0)
			So(tl.annotations[1].label, ShouldEqual, "L0 = rec[-2]")
		})
	})
}

func TestTimelineText(t *testing.T) {
	Convey("Given the error detection circuit", t, func() {
		c, err := ErrorDetectionCircuit(0.1)
		So(err, ShouldBeNil)

		var out bytes.Buffer
		So(WriteTimelineText(&out, c), ShouldBeNil)
		text := out.String()

		Convey("It should draw one wire per qubit", func() {
			So(text, ShouldStartWith, "q0: ")
			So(text, ShouldContainSubstring, "\nq1: ")
			So(text, ShouldContainSubstring, "\nq2: ")
		})

		Convey("It should draw gates and annotations", func() {
			So(text, ShouldContainSubstring, "@")
			So(text, ShouldContainSubstring, "ERR_X(0.1)")
			So(text, ShouldContainSubstring, "D0 = rec[-1]")
			So(text, ShouldContainSubstring, "L0 = rec[-2]")
		})

		Convey("Every wire should have the same length", func() {
			lines := strings.Split(text, "\n")
			So(len(lines[0]), ShouldEqual, len(lines[2]))
			So(len(lines[2]), ShouldEqual, len(lines[4]))
		})
	})
}

func TestSaveDiagram(t *testing.T) {
	Convey("Given the diagram circuits", t, func() {
		dir := t.TempDir()

		for _, job := range DefaultDiagrams() {
			c, err := job.Build()
			So(err, ShouldBeNil)

			path := filepath.Join(dir, "nested", job.File)
			So(SaveDiagram(c, path, TimelineSVG), ShouldBeNil)

			data, err := os.ReadFile(path)
			So(err, ShouldBeNil)
			So(string(data), ShouldContainSubstring, "<svg")
			So(string(data), ShouldContainSubstring, "</svg>")
		}

		Convey("Text diagrams should be written too", func() {
			c, err := HammingDiagramCircuit()
			So(err, ShouldBeNil)

			path := filepath.Join(dir, "hamming.txt")
			So(SaveDiagram(c, path, TimelineText), ShouldBeNil)

			data, err := os.ReadFile(path)
			So(err, ShouldBeNil)
			So(string(data), ShouldContainSubstring, "q9: ")
			So(string(data), ShouldContainSubstring, "D0 = rec[-3] rec[-2] rec[-1]")
		})

		Convey("Unknown kinds should fail", func() {
			c, err := ErrorDetectionCircuit(0)
			So(err, ShouldBeNil)
			err = SaveDiagram(c, filepath.Join(dir, "x.png"), "timeline-png")
			So(errors.Is(err, ErrArguments), ShouldBeTrue)
		})
	})
}
