// Package ephemeris holds the periodic timing references used to fold
// absolute times into phase, and the registry that owns them for a session.
package ephemeris

import "math"

// Params are the four numbers that define an ephemeris.
type Params struct {
	T0     float64 `toml:"t0"`      // Reference epoch, same time units as the dataset time axis
	Period float64 `toml:"period"`  // Period at T0, must be > 0
	Dpdt   float64 `toml:"dpdt"`    // First derivative of the period (0 for a constant period)
	WrapAt float64 `toml:"wrap_at"` // Phases are reported in [WrapAt-1, WrapAt)
}

// DefaultParams returns the parameters a freshly registered ephemeris starts with.
func DefaultParams() Params {
	return Params{T0: 0, Period: 1, Dpdt: 0, WrapAt: 1}
}

// TimesToPhases folds absolute times into phases. The input slice is not
// modified and an empty input gives an empty (non-nil) result.
//
// For a constant period:
//
//	phase = ((t - t0)/P + (1 - w)) mod 1 - (1 - w)
//
// For a linearly drifting period:
//
//	phase = (ln(1 + dpdt/P*(t - t0))/dpdt + (1 - w)) mod 1 - (1 - w)
func TimesToPhases(times []float64, p Params) []float64 {
	phases := make([]float64, len(times))
	shift := 1 - p.WrapAt
	for i, t := range times {
		var cycles float64
		if p.Dpdt == 0 {
			cycles = (t - p.T0) / p.Period
		} else {
			// Log1p is ln(1+x) without the cancellation ln(1+x) suffers for tiny x.
			cycles = math.Log1p(p.Dpdt/p.Period*(t-p.T0)) / p.Dpdt
		}
		phases[i] = floorMod1(cycles+shift) - shift
	}
	return phases
}

// PhasesToTimes maps phases back to absolute times within the cycle that
// starts at T0. It is the inverse of the unwrapped fold:
//
//	t = t0 + phase*P                          (dpdt == 0)
//	t = t0 + P/dpdt*(exp(dpdt*phase) - 1)     (dpdt != 0)
func PhasesToTimes(phases []float64, p Params) []float64 {
	times := make([]float64, len(phases))
	for i, ph := range phases {
		if p.Dpdt == 0 {
			times[i] = p.T0 + ph*p.Period
		} else {
			times[i] = p.T0 + p.Period/p.Dpdt*math.Expm1(p.Dpdt*ph)
		}
	}
	return times
}

// floorMod1 returns x mod 1 in [0, 1), matching floored (not truncated) modulo.
func floorMod1(x float64) float64 {
	m := x - math.Floor(x)
	if m >= 1 {
		// x a hair below an integer can round up to exactly 1.
		m = 0
	}
	return m
}

// Fold is TimesToPhases with p.
func (p Params) Fold(times []float64) []float64 { return TimesToPhases(times, p) }

// Unfold is PhasesToTimes with p.
func (p Params) Unfold(phases []float64) []float64 { return PhasesToTimes(phases, p) }

// PhaseColumn is the name of the derived column an ephemeris writes into
// each dataset it folds.
func PhaseColumn(name string) string { return "phase:" + name }
