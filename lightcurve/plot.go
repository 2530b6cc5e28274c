package lightcurve

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"

	"gonum.org/v1/plot"
	_ "gonum.org/v1/plot/font/liberation"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	vgdraw "gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// Layer is one series drawn in a viewer.
type Layer struct {
	Label  string
	X, Y   []float64
	Color  color.Color
	Line   bool // Joined line instead of scatter points
	Dashed bool
}

// Limits are optional axis limits; an unset pair lets the plot autoscale.
type Limits struct {
	XSet, YSet bool
	XMin, XMax float64
	YMin, YMax float64
}

// PlotSpec describes one viewer's figure.
type PlotSpec struct {
	Title  string
	XLabel string
	YLabel string
	Layers []Layer
	Limits Limits
	XStep  float64 // Tick spacing on the x axis; 0 for the default ticker
}

// ErrEmptyPlot is returned when a figure has nothing to draw.
var ErrEmptyPlot = errors.New("no layers to plot")

// Palette is used for layers without an explicit color.
var Palette = []color.Color{
	color.RGBA{R: 0, G: 0, B: 255, A: 255},
	color.RGBA{R: 214, G: 39, B: 40, A: 255},
	color.RGBA{R: 44, G: 160, B: 44, A: 255},
	color.RGBA{R: 148, G: 103, B: 189, A: 255},
	color.RGBA{R: 255, G: 127, B: 14, A: 255},
}

// PlotScatter renders spec into an in-memory image of wPx by hPx pixels.
func PlotScatter(spec PlotSpec, wPx, hPx float64) (image.Image, error) {
	if len(spec.Layers) == 0 {
		return nil, ErrEmptyPlot
	}
	if wPx <= 0 || hPx <= 0 {
		return nil, fmt.Errorf("invalid plot size %gx%g", wPx, hPx)
	}

	p := plot.New()
	setFonts(p)

	p.Title.Text = spec.Title
	p.X.Label.Text = spec.XLabel
	p.Y.Label.Text = spec.YLabel
	if spec.XStep > 0 {
		p.X.Tick.Marker = StepTicks{Step: spec.XStep, Format: "%.2f"}
	}
	p.Add(plotter.NewGrid())

	for i, layer := range spec.Layers {
		pts := finiteXYs(layer.X, layer.Y)
		if len(pts) == 0 {
			continue
		}
		col := layer.Color
		if col == nil {
			col = Palette[i%len(Palette)]
		}

		if layer.Line {
			line, err := plotter.NewLine(pts)
			if err != nil {
				return nil, err
			}
			line.Color = col
			if layer.Dashed {
				line.Dashes = []vg.Length{vg.Points(6), vg.Points(4)}
			}
			p.Add(line)
			if layer.Label != "" {
				p.Legend.Add(layer.Label, line)
			}
			continue
		}

		scatter, err := plotter.NewScatter(pts)
		if err != nil {
			return nil, err
		}
		scatter.GlyphStyle.Shape = vgdraw.CircleGlyph{}
		scatter.GlyphStyle.Radius = vg.Points(1.5)
		scatter.GlyphStyle.Color = col
		p.Add(scatter)
		if layer.Label != "" {
			p.Legend.Add(layer.Label, scatter)
		}
	}

	if spec.Limits.XSet {
		p.X.Min, p.X.Max = spec.Limits.XMin, spec.Limits.XMax
	}
	if spec.Limits.YSet {
		p.Y.Min, p.Y.Max = spec.Limits.YMin, spec.Limits.YMax
	}

	// Render into an in-memory image.
	// Choose a "virtual" size in vg units and map to pixels via DPI.
	const dpi = 96
	width := vg.Length(wPx) * vg.Inch / dpi
	height := vg.Length(hPx) * vg.Inch / dpi

	c := vgimg.NewWith(vgimg.UseWH(width, height), vgimg.UseDPI(dpi))
	dc := vgdraw.New(c)
	p.Draw(dc)

	return c.Image(), nil
}

func setFonts(p *plot.Plot) {
	p.Title.TextStyle.Font.Typeface = "Liberation"
	p.Title.TextStyle.Font.Variant = "Sans"
	p.Title.TextStyle.Font.Size = vg.Points(12)

	p.X.Label.TextStyle.Font.Typeface = "Liberation"
	p.X.Label.TextStyle.Font.Variant = "Sans"
	p.X.Label.TextStyle.Font.Size = vg.Points(12)

	p.Y.Label.TextStyle.Font.Typeface = "Liberation"
	p.Y.Label.TextStyle.Font.Variant = "Sans"
	p.Y.Label.TextStyle.Font.Size = vg.Points(12)

	p.X.Tick.Label.Font.Typeface = "Liberation"
	p.X.Tick.Label.Font.Variant = "Sans"
	p.X.Tick.Label.Font.Size = vg.Points(10)

	p.Y.Tick.Label.Font.Typeface = "Liberation"
	p.Y.Tick.Label.Font.Variant = "Sans"
	p.Y.Tick.Label.Font.Size = vg.Points(10)

	p.Legend.TextStyle.Font.Typeface = "Liberation"
	p.Legend.TextStyle.Font.Variant = "Sans"
	p.Legend.Top = true
}

// finiteXYs pairs up x and y, dropping samples where either is NaN or Inf
// (plotter rejects them).
func finiteXYs(x, y []float64) plotter.XYs {
	n := min(len(x), len(y))
	pts := make(plotter.XYs, 0, n)
	for i := 0; i < n; i++ {
		if isFinite(x[i]) && isFinite(y[i]) {
			pts = append(pts, plotter.XY{X: x[i], Y: y[i]})
		}
	}
	return pts
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// StepTicks is a custom tick marker for plots with fixed step intervals.
type StepTicks struct {
	Step   float64
	Format string
}

func (t StepTicks) Ticks(min, max float64) []plot.Tick {
	var ticks []plot.Tick
	if t.Step <= 0 || max < min {
		return ticks
	}
	// Tick values come from an integer index so long axes do not drift.
	k0 := math.Ceil(min / t.Step)
	for i := 0; ; i++ {
		v := (k0 + float64(i)) * t.Step
		if v > max {
			break
		}
		if v == 0 {
			v = 0 // -0 would be labelled "-0.00"
		}
		ticks = append(ticks, plot.Tick{
			Value: v,
			Label: fmt.Sprintf(t.Format, v),
		})
	}
	return ticks
}

// SaveImageToFile saves an image to a PNG file.
func SaveImageToFile(filename string, img image.Image) (err error) {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", filename, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	return png.Encode(f, img)
}
