package viz

import (
	"fmt"
	"math"
	"strings"

	"github.com/guptarohit/asciigraph"
	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/episim/internal/epidemic"
	"github.com/san-kum/episim/internal/experiment"
)

const (
	DefaultHeight = 20
	DefaultWidth  = 100
)

type PlotOptions struct {
	Height int
	// Width is the number of chart columns. Samples are bucketed so that
	// each column shows the largest value that falls into it.
	Width int
	// YMax hides values above it and fixes the top of the axis. Zero means
	// no bound.
	YMax float64
	// Compartments selects the curves to draw; empty draws all of them.
	Compartments     []string
	HideObservations bool
	Theme            Theme
}

// Plot renders the outcome as a multi-series chart with the observations
// overlaid at their aligned days.
func Plot(out *experiment.Outcome, opts PlotOptions) string {
	res := out.Result
	if res.Len() == 0 {
		return ""
	}
	if opts.Height <= 0 {
		opts.Height = DefaultHeight
	}
	if opts.Width <= 0 {
		opts.Width = DefaultWidth
	}
	if opts.Theme.Name == "" {
		opts.Theme = ThemeClassic
	}

	names := opts.Compartments
	if len(names) == 0 {
		names = res.Compartments
	}

	var (
		data    [][]float64
		legends []string
		colors  []asciigraph.AnsiColor
	)
	add := func(name string, series []float64) {
		data = append(data, clamp(resample(series, opts.Width), opts.YMax))
		legends = append(legends, name)
		colors = append(colors, opts.Theme.Series[name])
	}

	for _, name := range names {
		if series, ok := res.Series(name); ok {
			add(name, series)
		}
	}
	if !opts.HideObservations && len(out.Observations) > 0 {
		add("observed", observedSeries(out))
	}
	if len(data) == 0 {
		return ""
	}

	options := []asciigraph.Option{
		asciigraph.Height(opts.Height),
		asciigraph.LowerBound(0),
		asciigraph.SeriesLegends(legends...),
		asciigraph.SeriesColors(colors...),
		asciigraph.Caption(caption(out)),
		asciigraph.Precision(0),
	}
	if opts.YMax > 0 {
		options = append(options, asciigraph.UpperBound(opts.YMax))
	}
	return asciigraph.PlotMany(data, options...)
}

func caption(out *experiment.Outcome) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s  R0=%.2f  D=%.1fd", strings.ToUpper(string(out.Model)), out.Params.R0, out.Params.InfectiousDays)
	if out.Params.IncubationDays > 0 && out.Model == epidemic.VariantSEIR {
		fmt.Fprintf(&b, "  incubation=%.1fd", out.Params.IncubationDays)
	}
	res := out.Result
	fmt.Fprintf(&b, "  t=%g..%g", res.Times[0], res.Times[res.Len()-1])
	if !out.Epoch.IsZero() {
		fmt.Fprintf(&b, "  t=0 is %s", out.Epoch)
	}
	return b.String()
}

// observedSeries places each observation on the sample at its day and
// leaves NaN everywhere else. Observations outside the window are dropped.
func observedSeries(out *experiment.Outcome) []float64 {
	series := make([]float64, out.Result.Len())
	for i := range series {
		series[i] = math.NaN()
	}
	for _, p := range out.Observations {
		if i := out.Result.IndexOf(float64(p.Day)); i >= 0 {
			series[i] = p.Count
		}
	}
	return series
}

// resample buckets series into width columns, keeping the largest finite
// value of each bucket. Series no longer than width are returned as is.
func resample(series []float64, width int) []float64 {
	if len(series) <= width {
		return series
	}
	out := make([]float64, width)
	bucket := make([]float64, 0, len(series)/width+1)
	for col := range out {
		lo := col * len(series) / width
		hi := (col + 1) * len(series) / width
		bucket = bucket[:0]
		for _, v := range series[lo:hi] {
			if !math.IsNaN(v) {
				bucket = append(bucket, v)
			}
		}
		if len(bucket) == 0 {
			out[col] = math.NaN()
			continue
		}
		out[col] = floats.Max(bucket)
	}
	return out
}

// clamp hides values above ymax so they fall off the chart.
func clamp(series []float64, ymax float64) []float64 {
	if ymax <= 0 {
		return series
	}
	out := make([]float64, len(series))
	for i, v := range series {
		if v > ymax {
			v = math.NaN()
		}
		out[i] = v
	}
	return out
}
