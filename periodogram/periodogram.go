// Package periodogram computes Lomb-Scargle periodograms of unevenly sampled
// light curves.
package periodogram

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/bob-anderson-ok/lcviz/lightcurve"
)

var (
	// ErrTooFewSamples is returned when fewer than three usable samples remain.
	ErrTooFewSamples = errors.New("need at least 3 finite samples")

	// ErrFolded is returned for folded datasets, whose time axis is phase.
	ErrFolded = errors.New("periodogram of a folded dataset")

	// ErrFrequencyRange is returned for an empty or negative frequency range.
	ErrFrequencyRange = errors.New("invalid frequency range")

	// ErrConstant is returned when the flux has no variance.
	ErrConstant = errors.New("flux is constant")
)

// maxAutoFrequencies caps the grid size chosen when Options.N is zero.
const maxAutoFrequencies = 200000

// Options select the frequency grid. Zero bounds are derived from the data:
// the lowest frequency is one cycle over the baseline and the highest is the
// Nyquist frequency of the median cadence. A zero N oversamples each peak
// five times.
type Options struct {
	MinFrequency float64
	MaxFrequency float64
	N            int
}

// Periodogram holds power at each trial frequency, in cycles per time unit.
type Periodogram struct {
	Frequency []float64
	Power     []float64
}

// FromDataset runs LombScargle on a light curve.
func FromDataset(d *lightcurve.Dataset, opts Options) (*Periodogram, error) {
	if d.Folded() {
		return nil, fmt.Errorf("%q: %w", d.Label, ErrFolded)
	}
	return LombScargle(d.Time, d.Flux, opts)
}

// LombScargle evaluates the classical periodogram with the standard
// normalization, so a pure sinusoid peaks at 1.
func LombScargle(time, flux []float64, opts Options) (*Periodogram, error) {
	if len(time) != len(flux) {
		return nil, lightcurve.ErrLengthMismatch
	}
	var t, y []float64
	for i := range time {
		if isFinite(time[i]) && isFinite(flux[i]) {
			t = append(t, time[i])
			y = append(y, flux[i])
		}
	}
	if len(t) < 3 {
		return nil, ErrTooFewSamples
	}

	fmin, fmax, n, err := grid(t, opts)
	if err != nil {
		return nil, err
	}

	mean := stat.Mean(y, nil)
	dy := make([]float64, len(y))
	for i := range y {
		dy[i] = y[i] - mean
	}
	yy := floats.Dot(dy, dy)
	if yy == 0 {
		return nil, ErrConstant
	}

	p := &Periodogram{
		Frequency: make([]float64, n),
		Power:     make([]float64, n),
	}
	if n == 1 {
		p.Frequency[0] = fmin
	} else {
		floats.Span(p.Frequency, fmin, fmax)
	}
	for k, f := range p.Frequency {
		p.Power[k] = power(t, dy, yy, 2*math.Pi*f)
	}
	return p, nil
}

func grid(t []float64, opts Options) (fmin, fmax float64, n int, err error) {
	sorted := slices.Clone(t)
	slices.Sort(sorted)
	baseline := sorted[len(sorted)-1] - sorted[0]

	fmin, fmax, n = opts.MinFrequency, opts.MaxFrequency, opts.N
	if fmin == 0 && baseline > 0 {
		fmin = 1 / baseline
	}
	if fmax == 0 {
		diffs := make([]float64, 0, len(sorted)-1)
		for i := 1; i < len(sorted); i++ {
			if d := sorted[i] - sorted[i-1]; d > 0 {
				diffs = append(diffs, d)
			}
		}
		if len(diffs) > 0 {
			slices.Sort(diffs)
			fmax = 0.5 / stat.Quantile(0.5, stat.Empirical, diffs, nil)
		}
	}
	if !(fmin > 0) || !(fmax > fmin) {
		return 0, 0, 0, fmt.Errorf("%w: [%g, %g]", ErrFrequencyRange, fmin, fmax)
	}
	if n == 0 {
		n = int(math.Ceil(5*baseline*(fmax-fmin))) + 1
		n = min(max(n, 2), maxAutoFrequencies)
	}
	if n < 1 {
		return 0, 0, 0, fmt.Errorf("%w: %d frequencies", ErrFrequencyRange, n)
	}
	return fmin, fmax, n, nil
}

// power is the normalized power at angular frequency w, using the time
// offset tau that makes the sine and cosine terms orthogonal.
func power(t, dy []float64, yy, w float64) float64 {
	var s2, c2 float64
	for _, ti := range t {
		s2 += math.Sin(2 * w * ti)
		c2 += math.Cos(2 * w * ti)
	}
	tau := math.Atan2(s2, c2) / (2 * w)

	var yc, ys, cc, ss float64
	for i, ti := range t {
		c := math.Cos(w * (ti - tau))
		s := math.Sin(w * (ti - tau))
		yc += dy[i] * c
		ys += dy[i] * s
		cc += c * c
		ss += s * s
	}
	var p float64
	if cc > 0 {
		p += yc * yc / cc
	}
	if ss > 0 {
		p += ys * ys / ss
	}
	return p / yy
}

// BestPeriod returns the period and power of the highest peak.
func (p *Periodogram) BestPeriod() (period, power float64) {
	if len(p.Power) == 0 {
		return math.NaN(), math.NaN()
	}
	k := floats.MaxIdx(p.Power)
	return 1 / p.Frequency[k], p.Power[k]
}

// Periods returns 1/frequency for every grid point.
func (p *Periodogram) Periods() []float64 {
	out := make([]float64, len(p.Frequency))
	for i, f := range p.Frequency {
		out[i] = 1 / f
	}
	return out
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
