// Package binning averages a light curve into equal-width bins, either along
// its time axis or along the phase of an ephemeris.
package binning

import (
	"errors"
	"fmt"
	"maps"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/bob-anderson-ok/lcviz/ephemeris"
	"github.com/bob-anderson-ok/lcviz/lightcurve"
)

var (
	// ErrBinCount is returned for fewer than one bin.
	ErrBinCount = errors.New("number of bins must be at least 1")

	// ErrEmpty is returned when there is nothing to bin.
	ErrEmpty = errors.New("no samples to bin")

	// ErrAlreadyFolded is returned when the input is itself folded output.
	ErrAlreadyFolded = errors.New("dataset is already folded")
)

// Options control Bin.
type Options struct {
	NBins int

	// Ephemeris, when set, bins in phase over [WrapAt-1, WrapAt) instead of
	// in time.
	Ephemeris *ephemeris.Entry

	// Label of the output; defaults to the input label with a suffix.
	Label string
}

// Bin averages d into opts.NBins bins. Each output sample sits at the bin
// center and carries the mean flux and its standard error; empty bins are
// dropped. Phase-binned output is flagged lightcurve.ProvenanceFolded, keeps
// its phases in both Time and the ephemeris' phase column, and gets a
// "time_original" column with the bin centers mapped back to absolute time
// in the reference cycle.
func Bin(d *lightcurve.Dataset, opts Options) (*lightcurve.Dataset, error) {
	if opts.NBins < 1 {
		return nil, fmt.Errorf("%d: %w", opts.NBins, ErrBinCount)
	}
	if d.Folded() {
		return nil, fmt.Errorf("%q: %w", d.Label, ErrAlreadyFolded)
	}
	if d.Len() == 0 {
		return nil, fmt.Errorf("%q: %w", d.Label, ErrEmpty)
	}

	x := d.Time
	var lo, hi float64
	if e := opts.Ephemeris; e != nil {
		x = e.Fold(d.Time)
		lo, hi = e.WrapAt-1, e.WrapAt
	} else {
		lo, hi = floats.Min(x), floats.Max(x)
	}
	width := (hi - lo) / float64(opts.NBins)

	members := make([][]int, opts.NBins)
	for i, v := range x {
		if math.IsNaN(v) || math.IsNaN(d.Flux[i]) {
			continue
		}
		k := 0
		if width > 0 {
			k = int((v - lo) / width)
		}
		k = min(max(k, 0), opts.NBins-1)
		members[k] = append(members[k], i)
	}

	var centers, means, errs, counts []float64
	for k, idx := range members {
		if len(idx) == 0 {
			continue
		}
		flux := make([]float64, len(idx))
		for j, i := range idx {
			flux[j] = d.Flux[i]
		}
		centers = append(centers, lo+(float64(k)+0.5)*width)
		means = append(means, stat.Mean(flux, nil))
		errs = append(errs, binError(d, idx, flux))
		counts = append(counts, float64(len(idx)))
	}
	if len(centers) == 0 {
		return nil, fmt.Errorf("%q: %w", d.Label, ErrEmpty)
	}

	label := opts.Label
	if label == "" {
		label = d.Label + " (binned)"
		if opts.Ephemeris != nil {
			label = fmt.Sprintf("%s (binned %s)", d.Label, opts.Ephemeris.Name)
		}
	}
	out, err := lightcurve.New(label, centers, means, errs)
	if err != nil {
		return nil, err
	}
	out.Meta = maps.Clone(d.Meta)
	if out.Meta == nil {
		out.Meta = make(map[string]any)
	}
	out.Meta["binned_from"] = d.Label
	out.Meta["n_bins"] = opts.NBins
	if err := out.SetColumn("n_points", counts); err != nil {
		return nil, err
	}

	out.Provenance = lightcurve.ProvenanceBinned
	if e := opts.Ephemeris; e != nil {
		out.Provenance = lightcurve.ProvenanceFolded
		out.FoldedBy = e.ID
		out.Meta["ephemeris"] = e.Name
		if err := out.SetColumn(ephemeris.PhaseColumn(e.Name), centers); err != nil {
			return nil, err
		}
		if err := out.SetColumn("time_original", e.Unfold(centers)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// binError is the standard error of the bin mean: propagated from the input
// uncertainties when there are any, otherwise from the scatter. A single
// sample without an uncertainty has none (NaN).
func binError(d *lightcurve.Dataset, idx []int, flux []float64) float64 {
	n := float64(len(idx))
	if d.FluxErr != nil {
		e := make([]float64, len(idx))
		for j, i := range idx {
			e[j] = d.FluxErr[i]
		}
		return math.Sqrt(floats.Dot(e, e)) / n
	}
	if len(flux) < 2 {
		return math.NaN()
	}
	return stat.StdDev(flux, nil) / math.Sqrt(n)
}
