package qec

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	svg "github.com/ajstarks/svgo"
)

// DiagramKind names an output format of SaveDiagram.
type DiagramKind string

const (
	TimelineSVG  DiagramKind = "timeline-svg"
	TimelineText DiagramKind = "timeline-text"
)

// placedGate is one drawn operation in the timeline grid.
type placedGate struct {
	col    int
	label  string
	qubits []int
	pair   bool
}

// annotation is a detector or observable drawn below the wires.
type annotation struct {
	col   int
	label string
}

/*
timeline lays a circuit out on a grid of qubit rows and time columns.

Gates between two TICKs share a moment and are packed into the fewest columns
that keep each qubit wire free of overlaps. A two-qubit gate reserves every row
it spans so the connecting line never crosses another gate.
*/
type timeline struct {
	qubits      int
	cols        int
	gates       []placedGate
	ticks       []int
	annotations []annotation
}

func layout(c *Circuit) *timeline {
	t := &timeline{qubits: max(c.NumQubits(), 1)}
	frontier := make([]int, t.qubits)
	start := 0
	measured := []int{}
	detectors := 0

	reserve := func(lo, hi int) int {
		col := start
		for q := lo; q <= hi; q++ {
			col = max(col, frontier[q])
		}
		for q := lo; q <= hi; q++ {
			frontier[q] = col + 1
		}
		t.cols = max(t.cols, col+1)
		return col
	}

	for _, inst := range c.Instructions() {
		info := inst.Info()

		switch {
		case info.Kind == KindTick:
			start = t.cols
			t.ticks = append(t.ticks, start)
			for q := range frontier {
				frontier[q] = start
			}

		case info.TargetsPairs():
			qs := inst.QubitTargets()
			for i := 0; i+1 < len(qs); i += 2 {
				a, b := qs[i], qs[i+1]
				col := reserve(min(a, b), max(a, b))
				t.gates = append(t.gates, placedGate{
					col: col, label: gateLabel(inst), qubits: []int{a, b}, pair: true,
				})
			}

		case info.Kind == KindAnnotation:
			label := fmt.Sprintf("L%d", int(inst.Probability()))
			if info.Name == "DETECTOR" {
				label = fmt.Sprintf("D%d", detectors)
				detectors++
			}

			refs := make([]string, 0, len(inst.Targets))
			col := 0
			for _, target := range inst.Targets {
				m := len(measured) + target.Value
				col = max(col, measured[m])
				refs = append(refs, target.String())
			}
			t.annotations = append(t.annotations, annotation{
				col: col, label: label + " = " + strings.Join(refs, " "),
			})

		default:
			for _, q := range inst.QubitTargets() {
				col := reserve(q, q)
				t.gates = append(t.gates, placedGate{col: col, label: gateLabel(inst), qubits: []int{q}})
				if info.Kind == KindMeasure {
					measured = append(measured, col)
				}
			}
		}
	}

	// Drop a trailing tick that closes no moment.
	if n := len(t.ticks); n > 0 && t.ticks[n-1] >= t.cols {
		t.ticks = t.ticks[:n-1]
	}
	return t
}

func gateLabel(inst Instruction) string {
	p := strconv.FormatFloat(inst.Probability(), 'g', 3, 64)
	switch inst.Gate {
	case "X_ERROR":
		return "ERR_X(" + p + ")"
	case "Z_ERROR":
		return "ERR_Z(" + p + ")"
	case "DEPOLARIZE1":
		return "DEP1(" + p + ")"
	case "DEPOLARIZE2":
		return "DEP2(" + p + ")"
	}
	return inst.Gate
}

// cellWidth is the widest label plus room for the wire on both sides.
func (t *timeline) cellWidth() int {
	width := 3
	for _, g := range t.gates {
		width = max(width, len(g.label)+2)
	}
	return width
}

/*
WriteTimelineText renders the circuit as a text timeline, one wire per qubit.

CX controls are drawn as @ and targets as X; other two-qubit operations show
their label on both qubits. Detector and observable definitions follow the
wires, each tagged with the column of its latest measurement.
*/
func WriteTimelineText(w io.Writer, c *Circuit) error {
	t := layout(c)
	width := t.cellWidth()

	rows := make([][]string, 2*t.qubits-1)
	for r := range rows {
		rows[r] = make([]string, t.cols)
		fill := "-"
		if r%2 == 1 {
			fill = " "
		}
		for col := range rows[r] {
			rows[r][col] = strings.Repeat(fill, width)
		}
	}

	for _, g := range t.gates {
		if !g.pair {
			rows[2*g.qubits[0]][g.col] = center(g.label, width, "-")
			continue
		}

		a, b := g.qubits[0], g.qubits[1]
		top, bottom := "@", "X"
		if g.label != "CX" {
			top, bottom = g.label, g.label
		}
		rows[2*a][g.col] = center(top, width, "-")
		rows[2*b][g.col] = center(bottom, width, "-")
		for r := 2*min(a, b) + 1; r < 2*max(a, b); r++ {
			fill := "-"
			if r%2 == 1 {
				fill = " "
			}
			rows[r][g.col] = center("|", width, fill)
		}
	}

	prefix := len(fmt.Sprintf("q%d: ", t.qubits-1))
	var b strings.Builder
	for r, row := range rows {
		head := strings.Repeat(" ", prefix)
		if r%2 == 0 {
			head = fmt.Sprintf("%-*s", prefix, fmt.Sprintf("q%d: ", r/2))
		}
		b.WriteString(strings.TrimRight(head+strings.Join(row, ""), " "))
		b.WriteByte('\n')
	}
	for _, a := range t.annotations {
		fmt.Fprintf(&b, "%s (col %d)\n", a.label, a.col)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func center(label string, width int, fill string) string {
	pad := width - len(label)
	if pad <= 0 {
		return label
	}
	left := pad / 2
	return strings.Repeat(fill, left) + label + strings.Repeat(fill, pad-left)
}

const (
	svgCol    = 90
	svgRow    = 50
	svgMargin = 60
	svgBox    = 30
)

// WriteTimelineSVG renders the same timeline as an SVG drawing.
func WriteTimelineSVG(w io.Writer, c *Circuit) error {
	t := layout(c)

	colWidth := max(svgCol, t.cellWidth()*8)
	width := 2*svgMargin + max(t.cols, 1)*colWidth
	height := 2*svgMargin + t.qubits*svgRow + len(t.annotations)*18

	x := func(col int) int { return svgMargin + col*colWidth + colWidth/2 }
	y := func(q int) int { return svgMargin + q*svgRow }

	canvas := svg.New(w)
	canvas.Start(width, height)
	canvas.Rect(0, 0, width, height, "fill:white")

	for q := 0; q < t.qubits; q++ {
		canvas.Line(svgMargin, y(q), width-svgMargin/2, y(q), "stroke:black;stroke-width:1")
		canvas.Text(10, y(q)+5, fmt.Sprintf("q%d", q), "font-family:monospace;font-size:14px")
	}

	for _, tick := range t.ticks {
		tx := svgMargin + tick*colWidth
		canvas.Line(tx, svgMargin-svgRow/2, tx, y(t.qubits-1)+svgRow/2,
			"stroke:gray;stroke-dasharray:4,4")
	}

	for _, g := range t.gates {
		if g.pair {
			a, b := g.qubits[0], g.qubits[1]
			canvas.Line(x(g.col), y(a), x(g.col), y(b), "stroke:black;stroke-width:2")
			if g.label == "CX" {
				canvas.Circle(x(g.col), y(a), 5, "fill:black")
				canvas.Circle(x(g.col), y(b), 10, "fill:white;stroke:black;stroke-width:2")
				canvas.Line(x(g.col)-10, y(b), x(g.col)+10, y(b), "stroke:black;stroke-width:2")
				canvas.Line(x(g.col), y(b)-10, x(g.col), y(b)+10, "stroke:black;stroke-width:2")
				continue
			}
			svgBoxLabel(canvas, x(g.col), y(a), colWidth, g.label)
			svgBoxLabel(canvas, x(g.col), y(b), colWidth, g.label)
			continue
		}
		svgBoxLabel(canvas, x(g.col), y(g.qubits[0]), colWidth, g.label)
	}

	base := y(t.qubits-1) + svgRow
	for i, a := range t.annotations {
		canvas.Text(svgMargin, base+i*18, a.label, "font-family:monospace;font-size:12px;fill:#444")
	}

	canvas.End()
	return nil
}

func svgBoxLabel(canvas *svg.SVG, cx, cy, colWidth int, label string) {
	w := min(colWidth-10, max(svgBox, len(label)*8+8))
	fill := "fill:white;stroke:black"
	if strings.Contains(label, "(") {
		fill = "fill:#fde0dd;stroke:#c51b8a"
	}
	canvas.Rect(cx-w/2, cy-svgBox/2, w, svgBox, fill)
	canvas.Text(cx, cy+5, label, "text-anchor:middle;font-family:monospace;font-size:12px")
}

// SaveDiagram writes a timeline diagram of c to path, creating parent directories.
func SaveDiagram(c *Circuit, path string, kind DiagramKind) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}

	switch kind {
	case TimelineSVG:
		err = WriteTimelineSVG(f, c)
	case TimelineText:
		err = WriteTimelineText(f, c)
	default:
		err = fmt.Errorf("%w: diagram kind %q", ErrArguments, kind)
	}

	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}
