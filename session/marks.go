package session

import (
	"fmt"
	"image/color"
	"math"
	"slices"
	"sort"

	"github.com/bob-anderson-ok/lcviz/lightcurve"
)

// Mark is an overlay a viewer draws on top of its datasets. Marks keep their
// source data in absolute time and cache x positions in the viewer's
// coordinates, so they must be refreshed whenever the viewer's ephemeris
// changes. A nil fold means the viewer's x axis is time.
type Mark interface {
	Refresh(fold func([]float64) []float64) error
	Layer() lightcurve.Layer
}

// LivePreview draws a curve, such as a binning or trend preview, given in
// absolute time.
type LivePreview struct {
	Label string
	Color color.Color

	times []float64
	y     []float64
	x, yx []float64
}

// NewLivePreview builds a preview mark from absolute times and values.
func NewLivePreview(label string, times, y []float64) (*LivePreview, error) {
	if len(times) != len(y) {
		return nil, fmt.Errorf("preview %q: %w", label, lightcurve.ErrLengthMismatch)
	}
	return &LivePreview{
		Label: label,
		Color: color.RGBA{R: 255, G: 127, B: 14, A: 255},
		times: slices.Clone(times),
		y:     slices.Clone(y),
	}, nil
}

// Refresh recomputes x and orders the points along it so the line does not
// double back across the phase wrap.
func (p *LivePreview) Refresh(fold func([]float64) []float64) error {
	var x []float64
	if fold == nil {
		x = slices.Clone(p.times)
	} else {
		x = fold(p.times)
	}
	idx := make([]int, len(x))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return x[idx[a]] < x[idx[b]] })

	p.x = make([]float64, len(x))
	p.yx = make([]float64, len(x))
	for i, j := range idx {
		p.x[i], p.yx[i] = x[j], p.y[j]
	}
	return nil
}

// X returns the cached x positions.
func (p *LivePreview) X() []float64 { return slices.Clone(p.x) }

func (p *LivePreview) Layer() lightcurve.Layer {
	return lightcurve.Layer{Label: p.Label, X: p.x, Y: p.yx, Color: p.Color, Line: true}
}

// Crosshair marks one absolute time with a vertical line from YMin to YMax.
type Crosshair struct {
	Time       float64
	YMin, YMax float64

	x float64
}

func (c *Crosshair) Refresh(fold func([]float64) []float64) error {
	if fold == nil {
		c.x = c.Time
		return nil
	}
	c.x = fold([]float64{c.Time})[0]
	if math.IsNaN(c.x) {
		return fmt.Errorf("crosshair at %g is outside the period model", c.Time)
	}
	return nil
}

// X returns the crosshair's position in viewer coordinates.
func (c *Crosshair) X() float64 { return c.x }

func (c *Crosshair) Layer() lightcurve.Layer {
	return lightcurve.Layer{
		X:      []float64{c.x, c.x},
		Y:      []float64{c.YMin, c.YMax},
		Color:  color.Gray{Y: 96},
		Line:   true,
		Dashed: true,
	}
}
