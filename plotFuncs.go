package main

import (
	"fmt"
	"image"
	"image/color"

	"gonum.org/v1/gonum/floats"

	"github.com/bob-anderson-ok/lcviz/lightcurve"
	"github.com/bob-anderson-ok/lcviz/periodogram"
)

// makePeriodogramImage plots power against frequency with a dashed marker
// at the strongest peak.
func makePeriodogramImage(label string, pg *periodogram.Periodogram, wPx, hPx float64) (image.Image, error) {
	best, _ := pg.BestPeriod()
	bestFrequency := 1 / best
	peak := floats.Max(pg.Power)

	spec := lightcurve.PlotSpec{
		Title:  fmt.Sprintf("Lomb-Scargle periodogram of %s (best period %0.6f)", label, best),
		XLabel: "frequency (1/time unit)",
		YLabel: "normalized power",
		Layers: []lightcurve.Layer{
			{
				Label: label,
				X:     pg.Frequency,
				Y:     pg.Power,
				Color: color.RGBA{R: 0, G: 0, B: 255, A: 255},
				Line:  true,
			},
			{
				Label:  "best",
				X:      []float64{bestFrequency, bestFrequency},
				Y:      []float64{0, peak},
				Color:  color.RGBA{R: 255, A: 255},
				Line:   true,
				Dashed: true,
			},
		},
		Limits: lightcurve.Limits{
			YSet: true,
			YMin: 0,
			YMax: 1.05 * peak,
		},
	}
	return lightcurve.PlotScatter(spec, wPx, hPx)
}
