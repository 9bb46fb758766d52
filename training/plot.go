package training

import (
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/YuminosukeSato/nycprice/pkg/errors"
)

// PlotFeatureImportance renders a bar per feature into path. The format follows
// the extension (.png, .svg, .pdf).
func PlotFeatureImportance(names []string, values []float64, path string) error {
	if len(names) == 0 || len(names) != len(values) {
		return errors.NewDimensionError("training.PlotFeatureImportance", len(names), len(values), 0)
	}
	p := plot.New()
	p.Title.Text = "Feature importance"
	p.Y.Label.Text = "importance"
	p.Y.Min = 0

	bars, err := plotter.NewBarChart(plotter.Values(values), vg.Points(20))
	if err != nil {
		return errors.Wrap(err, "bar chart")
	}
	bars.Color = color.RGBA{R: 220, G: 30, B: 30, A: 255}
	bars.LineStyle.Width = 0
	p.Add(bars)
	p.NominalX(names...)
	p.X.Tick.Label.Rotation = math.Pi / 2
	p.X.Tick.Label.XAlign = draw.XRight
	p.X.Tick.Label.YAlign = draw.YCenter

	return errors.Wrapf(p.Save(10*vg.Inch, 10*vg.Inch, path), "save %s", path)
}
