// Package parity renders predicted-versus-actual plots of a cross-validation
// run, one PNG per output variable.
package parity

import (
	"fmt"
	"image/color"
	"math"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/HatiCode/romcv/pkg/dataset"
	"github.com/HatiCode/romcv/pkg/errstats"
	"github.com/HatiCode/romcv/pkg/romerr"
)

// FileName returns the plot file name of an output variable.
func FileName(output string) string {
	return fmt.Sprintf("parity_%s.png", output)
}

// Write renders one parity plot per output column into dir and returns the
// written paths. Cells whose actual or predicted value is not finite are left
// out of the scatter.
func Write(dir, method string, actual, predicted dataset.Table, outputs []errstats.OutputError) ([]string, error) {
	if actual.Len() != predicted.Len() {
		return nil, romerr.Configf("parity: %d actual rows but %d predicted", actual.Len(), predicted.Len())
	}

	paths := make([]string, 0, actual.Width())
	for j, name := range actual.Header {
		pts := points(actual, predicted, j)

		title := fmt.Sprintf("%s: %s", method, name)
		if j < len(outputs) {
			title = fmt.Sprintf("%s (MSE %.4g, MRE %s%%)", title, outputs[j].MeanSquaredError,
				dataset.FormatFloat(round(outputs[j].MeanRelativeErrorPercent)))
		}

		path := filepath.Join(dir, FileName(name))
		if err := render(path, title, pts); err != nil {
			return paths, romerr.IO("plot", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func points(actual, predicted dataset.Table, j int) plotter.XYs {
	pts := make(plotter.XYs, 0, actual.Len())
	for i := range actual.Rows {
		x, y := actual.Rows[i][j], predicted.Rows[i][j]
		if !finite(x) || !finite(y) {
			continue
		}
		pts = append(pts, plotter.XY{X: x, Y: y})
	}
	return pts
}

func render(path, title string, pts plotter.XYs) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "actual"
	p.Y.Label.Text = "predicted"
	p.Add(plotter.NewGrid())

	lo, hi := bounds(pts)
	p.X.Min, p.X.Max = lo, hi
	p.Y.Min, p.Y.Max = lo, hi

	identity, err := plotter.NewLine(plotter.XYs{{X: lo, Y: lo}, {X: hi, Y: hi}})
	if err != nil {
		return err
	}
	identity.Color = color.RGBA{R: 120, G: 120, B: 120, A: 200}
	identity.Width = vg.Points(1)
	identity.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}
	p.Add(identity)

	if len(pts) > 0 {
		sc, err := plotter.NewScatter(pts)
		if err != nil {
			return err
		}
		sc.GlyphStyle.Color = color.RGBA{R: 20, G: 80, B: 200, A: 220}
		sc.GlyphStyle.Radius = vg.Points(2.5)
		p.Add(sc)
		p.Legend.Add("simulations", sc)
	}
	p.Legend.Add("y = x", identity)
	p.Legend.Top = true
	p.Legend.Left = true

	return p.Save(6*vg.Inch, 6*vg.Inch, path)
}

// bounds returns a padded common range for both axes.
func bounds(pts plotter.XYs) (float64, float64) {
	if len(pts) == 0 {
		return -1, 1
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, p := range pts {
		lo = math.Min(lo, math.Min(p.X, p.Y))
		hi = math.Max(hi, math.Max(p.X, p.Y))
	}
	pad := (hi - lo) * 0.05
	if pad == 0 {
		pad = math.Max(math.Abs(lo)*0.05, 1)
	}
	return lo - pad, hi + pad
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func round(v float64) float64 {
	if !finite(v) {
		return v
	}
	return math.Round(v*1000) / 1000
}
