package session

import (
	"fmt"
	"image"

	"github.com/bob-anderson-ok/lcviz/lightcurve"
)

// Surface is where a viewer draws. The default is an in-memory gonum/plot
// image; the CLI's show command copies those images into fyne windows.
type Surface interface {
	Render(spec lightcurve.PlotSpec) error
	Close() error
}

// SurfaceFactory creates the rendering surface for a new viewer. Returning
// an error aborts the viewer's creation.
type SurfaceFactory func(reference string) (Surface, error)

// PlotSurface renders viewers with lightcurve.PlotScatter and keeps the
// latest image.
type PlotSurface struct {
	WidthPx, HeightPx float64

	img    image.Image
	closed bool
}

// NewPlotSurfaceFactory returns a factory for PlotSurfaces of the given size.
func NewPlotSurfaceFactory(wPx, hPx float64) SurfaceFactory {
	return func(reference string) (Surface, error) {
		if wPx <= 0 || hPx <= 0 {
			return nil, fmt.Errorf("%s: invalid plot size %gx%g", reference, wPx, hPx)
		}
		return &PlotSurface{WidthPx: wPx, HeightPx: hPx}, nil
	}
}

func (p *PlotSurface) Render(spec lightcurve.PlotSpec) error {
	if p.closed {
		return fmt.Errorf("render on closed surface")
	}
	if len(spec.Layers) == 0 {
		// Nothing visible yet; keep the previous image.
		return nil
	}
	img, err := lightcurve.PlotScatter(spec, p.WidthPx, p.HeightPx)
	if err != nil {
		return err
	}
	p.img = img
	return nil
}

// Image returns the last rendered image, or nil before the first render.
func (p *PlotSurface) Image() image.Image { return p.img }

func (p *PlotSurface) Close() error {
	p.closed = true
	p.img = nil
	return nil
}
