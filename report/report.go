// Package report draws diagnostic plots of fixture predictions.
//
// Plots are written in the format implied by the file extension (png, svg,
// pdf...). They are a visual aid only and are never read back.
package report

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/YuminosukeSato/scigo-fixtures/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

const size = 5 * vg.Inch

// histogramBins is the number of bins of ProbabilityHistogram.
const histogramBins = 20

func save(p *plot.Plot, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "failed to create directory for %s", path)
	}
	if err := p.Save(size, size, path); err != nil {
		return errors.Wrapf(err, "failed to save plot %s", path)
	}
	return nil
}

// ClusterScatter plots the first two features of X coloured by cluster
// label, with the cluster centres drawn as crosses.
func ClusterScatter(path, title string, X mat.Matrix, labels []float64, centers [][]float64) error {
	r, c := X.Dims()
	if c < 2 {
		return errors.NewValueError("report.ClusterScatter", "need at least two features")
	}
	if len(labels) != r {
		return errors.NewDimensionError("report.ClusterScatter", r, len(labels), 0)
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "feature 0"
	p.Y.Label.Text = "feature 1"

	groups := make(map[int]plotter.XYs)
	for i, l := range labels {
		k := int(l)
		groups[k] = append(groups[k], plotter.XY{X: X.At(i, 0), Y: X.At(i, 1)})
	}
	keys := make([]int, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	for _, k := range keys {
		pts := groups[k]
		s, err := plotter.NewScatter(pts)
		if err != nil {
			return errors.Wrap(err, "cluster scatter")
		}
		s.Color = plotutil.Color(k)
		p.Add(s)
		p.Legend.Add("cluster "+strconv.Itoa(k), s)
	}

	if len(centers) > 0 {
		pts := make(plotter.XYs, len(centers))
		for k, center := range centers {
			pts[k] = plotter.XY{X: center[0], Y: center[1]}
		}
		s, err := plotter.NewScatter(pts)
		if err != nil {
			return errors.Wrap(err, "cluster centres")
		}
		s.Shape = draw.CrossGlyph{}
		s.Radius = vg.Points(6)
		p.Add(s)
	}
	return save(p, path)
}

// PredictedVsActual plots regression predictions against the targets with
// the identity line for reference.
func PredictedVsActual(path, title string, actual, predicted []float64) error {
	if len(actual) != len(predicted) {
		return errors.NewDimensionError("report.PredictedVsActual", len(actual), len(predicted), 0)
	}
	if len(actual) == 0 {
		return errors.NewModelError("report.PredictedVsActual", "empty data", errors.ErrEmptyData)
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "actual"
	p.Y.Label.Text = "predicted"

	pts := make(plotter.XYs, len(actual))
	for i := range actual {
		pts[i] = plotter.XY{X: actual[i], Y: predicted[i]}
	}
	s, err := plotter.NewScatter(pts)
	if err != nil {
		return errors.Wrap(err, "predicted vs actual")
	}
	p.Add(s)

	lo := floats.Min(actual)
	hi := floats.Max(actual)
	line, err := plotter.NewLine(plotter.XYs{{X: lo, Y: lo}, {X: hi, Y: hi}})
	if err != nil {
		return errors.Wrap(err, "identity line")
	}
	line.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
	p.Add(line)
	return save(p, path)
}

// ProbabilityHistogram plots the distribution of each row's largest class
// probability, i.e. how confident the classifier is on its training data.
func ProbabilityHistogram(path, title string, proba mat.Matrix) error {
	r, c := proba.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("report.ProbabilityHistogram", "empty data", errors.ErrEmptyData)
	}

	values := make(plotter.Values, r)
	row := make([]float64, c)
	for i := range values {
		mat.Row(row, i, proba)
		values[i] = floats.Max(row)
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "max probability"
	p.Y.Label.Text = "rows"

	h, err := plotter.NewHist(values, histogramBins)
	if err != nil {
		return errors.Wrap(err, "probability histogram")
	}
	p.Add(h)
	return save(p, path)
}
