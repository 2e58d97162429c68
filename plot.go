package qec

import (
	"fmt"
	"image/color"
	"math"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// Curve is one labelled line of a log-log plot.
type Curve struct {
	Label string
	X     []float64
	Y     []float64
	// Low and High, when set, are absolute error-bar bounds per point.
	Low  []float64
	High []float64
}

// PlotOptions controls titles, axes and output size.
type PlotOptions struct {
	Title  string
	XLabel string
	YLabel string
	Width  vg.Length
	Height vg.Length
}

func (o PlotOptions) size() (vg.Length, vg.Length) {
	w, h := o.Width, o.Height
	if w == 0 {
		w = 10 * vg.Inch
	}
	if h == 0 {
		h = 6 * vg.Inch
	}
	return w, h
}

// errorPoints satisfies plotter.XYer and plotter.YErrorer for error bars.
type errorPoints struct {
	plotter.XYs
	errs plotter.YErrors
}

func (e errorPoints) YError(i int) (float64, float64) {
	return e.errs[i].Low, e.errs[i].High
}

/*
PlotCurves draws curves on log-log axes with a grid and legend and saves the
figure; the format follows the file extension.

Points that are not strictly positive cannot sit on a log axis and are left
out, the way the usual plotting tools drop them.
*/
func PlotCurves(path string, curves []Curve, opts PlotOptions) error {
	p := plot.New()
	p.Title.Text = opts.Title
	p.X.Label.Text = opts.XLabel
	p.Y.Label.Text = opts.YLabel
	p.X.Scale = plot.LogScale{}
	p.Y.Scale = plot.LogScale{}
	p.X.Tick.Marker = plot.LogTicks{Prec: -1}
	p.Y.Tick.Marker = plot.LogTicks{Prec: -1}
	p.Legend.Top = true

	grid := plotter.NewGrid()
	grid.Vertical.Color = color.Gray{Y: 200}
	grid.Horizontal.Color = color.Gray{Y: 200}
	p.Add(grid)

	bounds := newBounds()
	for i, curve := range curves {
		pts, errs := positivePoints(curve)
		if len(pts) == 0 {
			continue
		}

		line, points, err := plotter.NewLinePoints(pts)
		if err != nil {
			return fmt.Errorf("plotting %s: %w", curve.Label, err)
		}
		line.Color = plotutil.Color(i)
		points.Color = plotutil.Color(i)
		points.Shape = draw.CircleGlyph{}
		p.Add(line, points)
		p.Legend.Add(curve.Label, line, points)

		if errs != nil {
			bars, err := plotter.NewYErrorBars(errorPoints{XYs: pts, errs: errs})
			if err != nil {
				return fmt.Errorf("error bars for %s: %w", curve.Label, err)
			}
			bars.Color = plotutil.Color(i)
			p.Add(bars)
		}

		for j, pt := range pts {
			bounds.add(pt.X, pt.Y)
			if errs != nil {
				bounds.add(pt.X, pt.Y-errs[j].Low)
				bounds.add(pt.X, pt.Y+errs[j].High)
			}
		}
	}

	bounds.apply(p)

	w, h := opts.size()
	if err := p.Save(w, h, path); err != nil {
		return fmt.Errorf("saving %s: %w", path, err)
	}
	return nil
}

func positivePoints(c Curve) (plotter.XYs, plotter.YErrors) {
	var pts plotter.XYs
	var errs plotter.YErrors
	withErrs := len(c.Low) == len(c.X) && len(c.High) == len(c.X)

	for i := range c.X {
		if i >= len(c.Y) || c.X[i] <= 0 || c.Y[i] <= 0 {
			continue
		}
		pts = append(pts, plotter.XY{X: c.X[i], Y: c.Y[i]})
		if withErrs {
			low := c.Y[i] - math.Max(c.Low[i], c.Y[i]*1e-3)
			high := c.High[i] - c.Y[i]
			errs = append(errs, struct{ Low, High float64 }{math.Max(low, 0), math.Max(high, 0)})
		}
	}
	if !withErrs {
		errs = nil
	}
	return pts, errs
}

type axisBounds struct {
	minX, maxX, minY, maxY float64
}

func newBounds() *axisBounds {
	return &axisBounds{
		minX: math.Inf(1), maxX: math.Inf(-1),
		minY: math.Inf(1), maxY: math.Inf(-1),
	}
}

func (b *axisBounds) add(x, y float64) {
	if x > 0 {
		b.minX, b.maxX = math.Min(b.minX, x), math.Max(b.maxX, x)
	}
	if y > 0 {
		b.minY, b.maxY = math.Min(b.minY, y), math.Max(b.maxY, y)
	}
}

// apply pins the axes to the positive data so log scales never see zero.
func (b *axisBounds) apply(p *plot.Plot) {
	if math.IsInf(b.minX, 1) {
		b.minX, b.maxX = 1e-3, 1
	}
	if math.IsInf(b.minY, 1) {
		b.minY, b.maxY = 1e-4, 1
	}
	p.X.Min, p.X.Max = b.minX/1.5, b.maxX*1.5
	p.Y.Min, p.Y.Max = b.minY/1.5, b.maxY*1.5
}

/*
PlotErrorRate groups collected stats into curves and plots logical error rate
against x, with Wilson-interval error bars at 95% confidence.

Groups are ordered by their label and points by x.
*/
func PlotErrorRate(path string, stats []TaskStats, x func(TaskStats) float64, group func(TaskStats) string, opts PlotOptions) error {
	byGroup := map[string][]TaskStats{}
	for _, s := range stats {
		key := group(s)
		byGroup[key] = append(byGroup[key], s)
	}

	labels := make([]string, 0, len(byGroup))
	for label := range byGroup {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	curves := make([]Curve, 0, len(labels))
	for _, label := range labels {
		members := byGroup[label]
		sort.Slice(members, func(i, j int) bool { return x(members[i]) < x(members[j]) })

		curve := Curve{Label: label}
		for _, s := range members {
			low, high := s.Interval(0.95)
			curve.X = append(curve.X, x(s))
			curve.Y = append(curve.Y, s.ErrorRate())
			curve.Low = append(curve.Low, low)
			curve.High = append(curve.High, high)
		}
		curves = append(curves, curve)
	}

	if opts.XLabel == "" {
		opts.XLabel = "Physical Error Rate"
	}
	if opts.YLabel == "" {
		opts.YLabel = "Logical Error Rate per Shot"
	}
	return PlotCurves(path, curves, opts)
}
