package session

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/bob-anderson-ok/lcviz/ephemeris"
	"github.com/bob-anderson-ok/lcviz/lightcurve"
)

// fakeSurface records what a viewer asked it to draw.
type fakeSurface struct {
	ref     string
	renders int
	last    lightcurve.PlotSpec
	closed  bool
}

func (f *fakeSurface) Render(spec lightcurve.PlotSpec) error {
	f.renders++
	f.last = spec
	return nil
}

func (f *fakeSurface) Close() error {
	f.closed = true
	return nil
}

// fakeFactory hands out fakeSurfaces and fails for references that start
// with failPrefix.
type fakeFactory struct {
	surfaces   map[string]*fakeSurface
	failPrefix string
}

func (ff *fakeFactory) New(ref string) (Surface, error) {
	if ff.failPrefix != "" && strings.HasPrefix(ref, ff.failPrefix) {
		return nil, errors.New("display unavailable")
	}
	s := &fakeSurface{ref: ref}
	ff.surfaces[ref] = s
	return s, nil
}

func newTestSession(t *testing.T) (*Session, *fakeFactory, *bytes.Buffer) {
	t.Helper()
	ff := &fakeFactory{surfaces: make(map[string]*fakeSurface)}
	var log bytes.Buffer
	s, err := New(Options{Logger: &log, SurfaceFactory: ff.New})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, ff, &log
}

func mustLoad(t *testing.T, s *Session, label string, time []float64) *lightcurve.Dataset {
	t.Helper()
	flux := make([]float64, len(time))
	for i := range flux {
		flux[i] = 1 + 0.01*float64(i)
	}
	d, err := lightcurve.New(label, time, flux, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.LoadData(d); err != nil {
		t.Fatalf("LoadData(%s): %v", label, err)
	}
	return d
}

func mustUpdate(t *testing.T, s *Session, name string, f ephemeris.Fields) ephemeris.Entry {
	t.Helper()
	e, err := s.UpdateEphemeris(name, f)
	if err != nil {
		t.Fatalf("UpdateEphemeris(%s): %v", name, err)
	}
	return e
}

func assertSliceClose(t *testing.T, what string, got, want []float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s: len = %d, want %d (%v)", what, len(got), len(want), got)
	}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Errorf("%s[%d] = %.15g, want %.15g", what, i, got[i], want[i])
		}
	}
}
