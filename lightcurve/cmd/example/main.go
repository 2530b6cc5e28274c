// Example program demonstrating a complete lcviz session:
// 1. Build a synthetic eclipsing light curve
// 2. Find its period with a Lomb-Scargle periodogram
// 3. Adopt the period in the default ephemeris through the editor
// 4. Render the time and phase viewers and a phase-binned curve to PNG files
//
// Usage:
//
//	go run main.go
//
// The images are written to the current directory.
package main

import (
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"

	"github.com/bob-anderson-ok/lcviz/lightcurve"
	"github.com/bob-anderson-ok/lcviz/periodogram"
	"github.com/bob-anderson-ok/lcviz/session"
)

func main() {
	fmt.Println("Phase Folding Example")
	fmt.Println("=====================")

	workDir, _ := os.Getwd()

	// A detached binary: 1.7 day period, 0.12 deep primary and 0.05 deep
	// secondary eclipses, irregular sampling over 30 days.
	const period = 1.7
	const t0 = 2459000.3
	n := 900
	times := make([]float64, n)
	flux := make([]float64, n)
	for i := range times {
		times[i] = 2459000.0 + 30*float64(i)/float64(n) + 0.01*math.Sin(float64(i)*7.3)
		ph := math.Mod((times[i]-t0)/period+0.5, 1) - 0.5
		flux[i] = 1 - 0.12*math.Exp(-ph*ph/0.0008)
		sec := math.Abs(ph) - 0.5
		flux[i] -= 0.05 * math.Exp(-sec*sec/0.0008)
	}
	lc, err := lightcurve.New("synthetic binary", times, flux, nil)
	if err != nil {
		log.Fatalf("Failed to build light curve: %v", err)
	}

	s, err := session.New(session.Options{Logger: os.Stderr})
	if err != nil {
		log.Fatalf("Failed to start session: %v", err)
	}
	defer s.Close()

	if err := s.LoadData(lc); err != nil {
		log.Fatalf("Failed to load data: %v", err)
	}
	fmt.Printf("\nLoaded %q: %d samples\n", lc.Label, lc.Len())

	pg, err := periodogram.FromDataset(lc, periodogram.Options{MinFrequency: 0.1, MaxFrequency: 5, N: 20000})
	if err != nil {
		log.Fatalf("Periodogram failed: %v", err)
	}
	best, power := pg.BestPeriod()
	fmt.Printf("Strongest periodogram peak: %.5f days (power %.3f)\n", best, power)

	// Eclipsing binaries peak at half the orbital period.
	ed := s.Editor()
	if err := ed.SetT0(t0); err != nil {
		log.Fatalf("Could not set t0: %v", err)
	}
	if err := ed.SetPeriod(best); err != nil {
		log.Fatalf("Could not set period: %v", err)
	}
	if err := ed.PeriodDouble(); err != nil {
		log.Fatalf("Could not double period: %v", err)
	}
	fmt.Printf("Ephemeris %q now has period %.5f days\n", ed.Selected(), ed.Fields().Period)

	// The first edit opened the phase viewer of the default ephemeris.
	fmt.Println("\nViewers:")
	for _, ref := range s.Viewers().References() {
		fmt.Printf("  %s\n", ref)
	}

	binned, err := s.Bin(lc.Label, session.DefaultEphemeris, 50, true)
	if err != nil {
		log.Fatalf("Binning failed: %v", err)
	}
	fmt.Printf("\nBinned into %d phase bins as %q\n", binned.Len(), binned.Label)

	v, err := s.Viewer(session.PhaseReference(session.DefaultEphemeris, 0))
	if err == nil {
		c, err := s.CoordsAt(v.Reference, 0)
		if err == nil {
			fmt.Printf("Nearest sample to phase 0: %q index %d, time %.4f, flux %.4f\n",
				c.DataLabel, c.Index, c.Time, c.Flux)
		}
	}

	if err := s.RenderAll(); err != nil {
		log.Printf("Could not render every viewer: %v\n", err)
	}
	for _, v := range s.Viewers().All() {
		ps, ok := v.Surface().(*session.PlotSurface)
		if !ok || ps.Image() == nil {
			continue
		}
		outputPlot := filepath.Join(workDir, fmt.Sprintf("%s-%d.png", v.Kind, v.Clone))
		if err := lightcurve.SaveImageToFile(outputPlot, ps.Image()); err != nil {
			log.Printf("Could not save %s: %v\n", v.Reference, err)
			continue
		}
		fmt.Printf("Saved %s to %s\n", v.Reference, outputPlot)
	}
}
