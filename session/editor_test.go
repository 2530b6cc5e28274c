package session

import (
	"errors"
	"testing"

	"github.com/bob-anderson-ok/lcviz/ephemeris"
	"github.com/bob-anderson-ok/lcviz/events"
)

func TestEditor_SelectLoadsFieldsWithOneResync(t *testing.T) {
	s, _, _ := newTestSession(t)
	mustLoad(t, s, "lc", []float64{0, 1, 2})
	want := ephemeris.Params{T0: 0.5, Period: 3, Dpdt: 0.001, WrapAt: 0.5}
	if _, err := s.AddComponent("b", want); err != nil {
		t.Fatal(err)
	}

	changed := 0
	events.Subscribe(s.Bus(), func(events.EphemerisChanged) { changed++ })
	before := s.Synchronizer().Resyncs()

	if err := s.Editor().Select("b"); err != nil {
		t.Fatal(err)
	}
	if got := s.Editor().Fields(); got != want {
		t.Errorf("fields = %+v, want %+v", got, want)
	}
	if n := s.Synchronizer().Resyncs() - before; n != 1 {
		t.Errorf("resyncs = %d, want 1", n)
	}
	if changed != 0 {
		t.Errorf("selection published %d change events", changed)
	}
	if err := s.Editor().Select("nope"); !errors.Is(err, ephemeris.ErrUnknownEphemeris) {
		t.Errorf("select unknown: %v", err)
	}
}

func TestEditor_FieldEditsGoThroughRegistry(t *testing.T) {
	s, _, _ := newTestSession(t)
	ed := s.Editor()

	changed := 0
	events.Subscribe(s.Bus(), func(events.EphemerisChanged) { changed++ })

	if err := ed.SetPeriod(2); err != nil {
		t.Fatal(err)
	}
	if err := ed.PeriodDouble(); err != nil {
		t.Fatal(err)
	}
	if e, _ := s.Ephemerides().Get("default"); e.Period != 4 {
		t.Errorf("period = %g, want 4", e.Period)
	}
	if err := ed.PeriodHalve(); err != nil {
		t.Fatal(err)
	}
	if changed != 3 {
		t.Errorf("changed events = %d, want 3 (one per edit)", changed)
	}

	if err := ed.SetPeriod(-1); !errors.Is(err, ephemeris.ErrInvalidParameter) {
		t.Errorf("SetPeriod(-1): %v", err)
	}
	if ed.Fields().Period != 2 {
		t.Errorf("panel shows %g after a rejected edit, want 2", ed.Fields().Period)
	}

	ed.SetT0(1)
	ed.SetDpdt(0.01)
	ed.SetWrapAt(0.5)
	if e, _ := s.Ephemerides().Get("default"); e.Params != (ephemeris.Params{T0: 1, Period: 2, Dpdt: 0.01, WrapAt: 0.5}) {
		t.Errorf("params = %+v", e.Params)
	}
}

func TestEditor_FollowsExternalUpdates(t *testing.T) {
	s, _, _ := newTestSession(t)
	changed := 0
	events.Subscribe(s.Bus(), func(events.EphemerisChanged) { changed++ })

	mustUpdate(t, s, "default", ephemeris.Fields{Period: ephemeris.Float(7)})
	if s.Editor().Fields().Period != 7 {
		t.Errorf("panel period = %g", s.Editor().Fields().Period)
	}
	if changed != 1 {
		t.Errorf("panel reload fed back %d events", changed-1)
	}
}
