package report

import (
	"math"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/gridcv/core/model"
	"github.com/YuminosukeSato/gridcv/pkg/errors"
	"github.com/YuminosukeSato/gridcv/sklearn/model_selection"
)

// PlotOptions configures RenderPlot.
type PlotOptions struct {
	Title  string
	XLabel string
	YLabel string
	Width  vg.Length
	Height vg.Length
}

// RenderPlot draws one line with error bars (mean ± std) per curve and saves
// it to path; the extension selects the format (png, svg, pdf, ...). Points
// with no valid fold are skipped. The x axis is logarithmic when every x is
// a positive number, and categorical when some x is not a number.
func RenderPlot(path string, curves []Curve, opts PlotOptions) error {
	if len(curves) == 0 {
		return errors.NewValueError("RenderPlot", "no series to plot")
	}
	if opts.Width == 0 {
		opts.Width = 6 * vg.Inch
	}
	if opts.Height == 0 {
		opts.Height = 4 * vg.Inch
	}

	xs, numeric, positive := axisValues(curves)

	p := plot.New()
	p.Title.Text = opts.Title
	p.X.Label.Text = opts.XLabel
	p.Y.Label.Text = opts.YLabel
	p.Legend.Top = true
	if numeric && positive {
		p.X.Scale = plot.LogScale{}
	}
	p.X.Tick.Marker = ticks(curves, xs)

	var lines []interface{}
	for _, c := range curves {
		pts := make(errorPoints, 0, len(c.Points))
		for _, pt := range c.Points {
			if !pt.Valid() {
				continue
			}
			pts = append(pts, errorPoint{x: xs[key(pt.X)], y: pt.Mean, err: pt.Std})
		}
		if len(pts) == 0 {
			continue
		}
		bars, err := plotter.NewYErrorBars(pts)
		if err != nil {
			return errors.Wrap(err, "build error bars")
		}
		p.Add(bars)
		lines = append(lines, c.Name, pts.xys())
	}
	if len(lines) == 0 {
		return errors.NewValueError("RenderPlot", "no valid points to plot")
	}
	if err := plotutil.AddLinePoints(p, lines...); err != nil {
		return errors.Wrap(err, "add series")
	}

	if err := p.Save(opts.Width, opts.Height, path); err != nil {
		return errors.Wrapf(err, "save plot %s", filepath.Base(path))
	}
	return nil
}

// RenderOutcome plots the validation curves of outcome against xParam.
func RenderOutcome(path string, outcome *model_selection.SearchOutcome, xParam string) error {
	curves, err := Series(outcome.Results, xParam)
	if err != nil {
		return err
	}
	return RenderPlot(path, curves, PlotOptions{
		Title:  "Grid search: " + outcome.Scorer + " vs " + xParam,
		XLabel: xParam,
		YLabel: outcome.Scorer + " (" + outcome.Direction.String() + ")",
	})
}

// axisValues maps every x value to its axis position. Numeric values map to
// themselves; otherwise values are placed at 0, 1, 2, ... in first-seen order.
func axisValues(curves []Curve) (pos map[string]float64, numeric, positive bool) {
	pos = make(map[string]float64)
	numeric, positive = true, true
	var order []string
	for _, c := range curves {
		for _, pt := range c.Points {
			k := key(pt.X)
			if _, ok := pos[k]; ok {
				continue
			}
			f, err := model.AsFloat("x", pt.X)
			if err != nil {
				numeric = false
			}
			if f <= 0 {
				positive = false
			}
			pos[k] = f
			order = append(order, k)
		}
	}
	if !numeric {
		for i, k := range order {
			pos[k] = float64(i)
		}
	}
	return pos, numeric, positive
}

func ticks(curves []Curve, pos map[string]float64) plot.ConstantTicks {
	var out plot.ConstantTicks
	seen := make(map[string]bool)
	for _, c := range curves {
		for _, pt := range c.Points {
			k := key(pt.X)
			if seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, plot.Tick{Value: pos[k], Label: k})
		}
	}
	return out
}

func key(x interface{}) string {
	return model_selection.FormatValue(x)
}

type errorPoint struct {
	x, y, err float64
}

// errorPoints implements plotter.XYer and plotter.YErrorer.
type errorPoints []errorPoint

func (e errorPoints) Len() int                    { return len(e) }
func (e errorPoints) XY(i int) (float64, float64) { return e[i].x, e[i].y }
func (e errorPoints) YError(i int) (float64, float64) {
	d := e[i].err
	if math.IsNaN(d) {
		d = 0
	}
	return d, d
}

func (e errorPoints) xys() plotter.XYs {
	out := make(plotter.XYs, len(e))
	for i, p := range e {
		out[i].X, out[i].Y = p.x, p.y
	}
	return out
}
