package ephemeris

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/bob-anderson-ok/lcviz/events"
)

// recorder is a Dependent that logs every call.
type recorder struct {
	calls []string
	fail  error
}

func (r *recorder) EphemerisAdded(e Entry) error {
	r.calls = append(r.calls, "added "+e.Name)
	return r.fail
}

func (r *recorder) EphemerisChanged(e Entry) error {
	r.calls = append(r.calls, fmt.Sprintf("changed %s P=%g t0=%g", e.Name, e.Period, e.T0))
	return r.fail
}

func (r *recorder) EphemerisRenamed(e Entry, old string) {
	r.calls = append(r.calls, fmt.Sprintf("renamed %s->%s", old, e.Name))
}

func (r *recorder) EphemerisRemoved(e Entry) {
	r.calls = append(r.calls, "removed "+e.Name)
}

func newTestRegistry(t *testing.T) (*Registry, *events.Bus, *[]any) {
	t.Helper()
	bus := events.NewBus()
	var got []any
	events.Subscribe(bus, func(m events.EphemerisAdded) { got = append(got, m) })
	events.Subscribe(bus, func(m events.EphemerisChanged) { got = append(got, m) })
	events.Subscribe(bus, func(m events.EphemerisRenamed) { got = append(got, m) })
	events.Subscribe(bus, func(m events.EphemerisRemoved) { got = append(got, m) })
	return NewRegistry(bus), bus, &got
}

func TestRegistry_AddTwiceIsInvalidName(t *testing.T) {
	r, _, got := newTestRegistry(t)

	if _, err := r.Add("default", DefaultParams()); err != nil {
		t.Fatalf("first Add: %v", err)
	}
	_, err := r.Add("default", DefaultParams())
	if !errors.Is(err, ErrInvalidName) || !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("second Add error = %v, want ErrDuplicateName (an ErrInvalidName)", err)
	}
	if r.Len() != 1 || r.Names()[0] != "default" {
		t.Errorf("registry = %v, want exactly [default]", r.Names())
	}
	if len(*got) != 1 {
		t.Errorf("events = %v, want one EphemerisAdded", *got)
	}
}

func TestRegistry_AddRejectsBadNames(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	for _, name := range []string{"", "   ", "a:b", "x[1]", "]", "["} {
		if _, err := r.Add(name, DefaultParams()); !errors.Is(err, ErrInvalidName) {
			t.Errorf("Add(%q) error = %v, want ErrInvalidName", name, err)
		}
	}
	if _, err := r.Add("ok", Params{Period: 0}); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("Add with zero period error = %v, want ErrInvalidParameter", err)
	}
	if r.Len() != 0 {
		t.Errorf("registry should be empty, has %v", r.Names())
	}
}

func TestRegistry_UpdateMergesOnlyGivenFields(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	r.Add("default", Params{T0: 5, Period: 1, Dpdt: 0, WrapAt: 1})

	e, err := r.Update("default", Fields{Period: Float(2.5)})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	want := Params{T0: 5, Period: 2.5, Dpdt: 0, WrapAt: 1}
	if e.Params != want {
		t.Errorf("params = %+v, want %+v", e.Params, want)
	}
	if got, _ := r.Get("default"); got.Params != want {
		t.Errorf("stored params = %+v, want %+v", got.Params, want)
	}
}

func TestRegistry_UpdateRejectsInvalidPeriod(t *testing.T) {
	r, _, got := newTestRegistry(t)
	r.Add("default", DefaultParams())
	if _, err := r.Update("default", Fields{Period: Float(2)}); err != nil {
		t.Fatal(err)
	}
	before := len(*got)

	tests := []struct {
		name   string
		fields Fields
	}{
		{"zero period", Fields{Period: Float(0)}},
		{"negative period", Fields{Period: Float(-1)}},
		{"NaN period", Fields{Period: Float(math.NaN())}},
		{"infinite t0 with valid period", Fields{T0: Float(math.Inf(1)), Period: Float(7)}},
		{"NaN wrap", Fields{WrapAt: Float(math.NaN())}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Update("default", tt.fields)
			if !errors.Is(err, ErrInvalidParameter) {
				t.Fatalf("error = %v, want ErrInvalidParameter", err)
			}
			e, _ := r.Get("default")
			if e.Period != 2 || e.T0 != 0 || e.WrapAt != 1 {
				t.Errorf("entry changed on rejected update: %+v", e.Params)
			}
		})
	}
	if len(*got) != before {
		t.Errorf("rejected updates published %d events", len(*got)-before)
	}
}

func TestRegistry_UpdateUnknown(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	if _, err := r.Update("nope", Fields{Period: Float(2)}); !errors.Is(err, ErrUnknownEphemeris) {
		t.Errorf("error = %v, want ErrUnknownEphemeris", err)
	}
}

func TestRegistry_OneChangedEventPerUpdate(t *testing.T) {
	r, _, got := newTestRegistry(t)
	r.Add("default", DefaultParams())
	*got = nil

	r.Update("default", Fields{Period: Float(3)})
	r.Update("default", Fields{Period: Float(3)})
	r.Update("default", Fields{T0: Float(1), Period: Float(4), Dpdt: Float(0.001), WrapAt: Float(0.5)})

	if len(*got) != 3 {
		t.Fatalf("events = %v, want 3", *got)
	}
	for _, m := range *got {
		if c, ok := m.(events.EphemerisChanged); !ok || c.Name != "default" {
			t.Errorf("unexpected event %#v", m)
		}
	}
}

func TestRegistry_DependentsSeeMergedParamsBeforeEvent(t *testing.T) {
	r, bus, _ := newTestRegistry(t)
	dep := &recorder{}
	r.Attach(dep)
	r.Add("default", DefaultParams())
	dep.calls = nil

	var atEvent []string
	events.Subscribe(bus, func(events.EphemerisChanged) {
		atEvent = append([]string(nil), dep.calls...)
	})

	txn, err := r.Begin("default")
	if err != nil {
		t.Fatal(err)
	}
	txn.SetPeriod(2).SetT0(7)
	if len(dep.calls) != 0 {
		t.Fatalf("dependent called before commit: %v", dep.calls)
	}
	if _, err := txn.Commit(); err != nil {
		t.Fatal(err)
	}

	want := []string{"changed default P=2 t0=7"}
	if strings.Join(dep.calls, "|") != strings.Join(want, "|") {
		t.Errorf("dependent calls = %v, want %v", dep.calls, want)
	}
	if len(atEvent) != 1 {
		t.Errorf("dependent had %d calls when the event fired, want 1", len(atEvent))
	}
	if _, err := txn.Commit(); !errors.Is(err, ErrTxnDone) {
		t.Errorf("second Commit error = %v, want ErrTxnDone", err)
	}
}

func TestRegistry_AddCallsDependentsBeforeEvent(t *testing.T) {
	r, bus, _ := newTestRegistry(t)
	boom := errors.New("boom")
	dep := &recorder{fail: boom}
	r.Attach(dep)

	var atEvent []string
	events.Subscribe(bus, func(events.EphemerisAdded) {
		atEvent = append([]string(nil), dep.calls...)
	})

	e, err := r.Add("x", DefaultParams())
	if !errors.Is(err, boom) {
		t.Errorf("error = %v, want boom", err)
	}
	if _, ok := r.ByID(e.ID); !ok || e.Name != "x" {
		t.Errorf("entry %+v not kept after a dependent error", e)
	}
	if strings.Join(atEvent, "|") != "added x" {
		t.Errorf("dependent calls when the event fired = %v, want [added x]", atEvent)
	}
}

func TestRegistry_DependentErrorDoesNotRollBack(t *testing.T) {
	r, _, got := newTestRegistry(t)
	boom := errors.New("boom")
	r.Attach(&recorder{fail: boom})
	r.Add("default", DefaultParams())

	e, err := r.Update("default", Fields{Period: Float(9)})
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want boom", err)
	}
	if e.Period != 9 {
		t.Errorf("period = %g, want 9", e.Period)
	}
	if len(*got) != 2 {
		t.Errorf("events = %v, want added + changed", *got)
	}
}

func TestRegistry_Rename(t *testing.T) {
	r, _, got := newTestRegistry(t)
	dep := &recorder{}
	r.Attach(dep)
	orig, _ := r.Add("default", Params{T0: 1, Period: 2, WrapAt: 1})
	r.Add("other", DefaultParams())
	dep.calls = nil

	if err := r.Rename("default", "x"); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if _, ok := r.Get("default"); ok {
		t.Error("old name still registered")
	}
	x, ok := r.Get("x")
	if !ok || x.ID != orig.ID || x.Params != orig.Params {
		t.Errorf("Get(x) = %+v, want %+v under the same ID", x, orig)
	}
	if names := strings.Join(r.Names(), ","); names != "x,other" {
		t.Errorf("names = %s, want order preserved", names)
	}
	if last := (*got)[len(*got)-1]; last != (events.EphemerisRenamed{ID: orig.ID, Old: "default", New: "x"}) {
		t.Errorf("last event = %#v", last)
	}
	if dep.calls[0] != "renamed default->x" {
		t.Errorf("dependent calls = %v", dep.calls)
	}

	for _, tc := range []struct {
		old, new string
		want     error
	}{
		{"missing", "y", ErrUnknownEphemeris},
		{"x", "other", ErrDuplicateName},
		{"x", "x", ErrDuplicateName},
		{"x", "a:b", ErrInvalidName},
		{"x", "", ErrInvalidName},
	} {
		if err := r.Rename(tc.old, tc.new); !errors.Is(err, tc.want) {
			t.Errorf("Rename(%q, %q) error = %v, want %v", tc.old, tc.new, err, tc.want)
		}
	}
	if _, ok := r.Get("x"); !ok {
		t.Error("failed renames disturbed the registry")
	}
}

func TestRegistry_Remove(t *testing.T) {
	r, _, got := newTestRegistry(t)
	dep := &recorder{}
	r.Attach(dep)
	e, _ := r.Add("x", DefaultParams())
	dep.calls = nil

	if err := r.Remove("x"); err != nil {
		t.Fatal(err)
	}
	if _, ok := r.ByID(e.ID); ok || r.Len() != 0 {
		t.Error("entry still present after Remove")
	}
	if dep.calls[0] != "removed x" {
		t.Errorf("dependent calls = %v", dep.calls)
	}
	if last := (*got)[len(*got)-1]; last != (events.EphemerisRemoved{ID: e.ID, Name: "x"}) {
		t.Errorf("last event = %#v", last)
	}
	if err := r.Remove("x"); !errors.Is(err, ErrUnknownEphemeris) {
		t.Errorf("second Remove error = %v, want ErrUnknownEphemeris", err)
	}
}

func TestTOMLRoundTrip(t *testing.T) {
	r := NewRegistry(nil)
	r.Add("default", Params{T0: 2458000.25, Period: 3.5, Dpdt: 1e-6, WrapAt: 0.5})
	r.Add("secondary", DefaultParams())

	data, err := MarshalTOML(r.Entries())
	if err != nil {
		t.Fatal(err)
	}
	// Parameters sit in the [[ephemeris]] table itself, not a sub-table.
	if text := string(data); !strings.Contains(text, "period = 3.5") || strings.Contains(text, "Params") {
		t.Errorf("unexpected layout:\n%s", text)
	}
	named, err := UnmarshalTOML(data)
	if err != nil {
		t.Fatalf("UnmarshalTOML: %v\n%s", err, data)
	}
	if len(named) != 2 || named[0].Name != "default" || named[1].Name != "secondary" {
		t.Fatalf("got %+v", named)
	}
	if want, _ := r.Get("default"); named[0].Params != want.Params {
		t.Errorf("params = %+v, want %+v", named[0].Params, want.Params)
	}
}

func TestUnmarshalTOML_Rejects(t *testing.T) {
	for name, doc := range map[string]string{
		"zero period":   "[[ephemeris]]\nname = \"a\"\nperiod = 0\n",
		"reserved char": "[[ephemeris]]\nname = \"a:b\"\n",
		"duplicate":     "[[ephemeris]]\nname = \"a\"\n[[ephemeris]]\nname = \"a\"\n",
		"string t0":     "[[ephemeris]]\nname = \"a\"\nt0 = \"soon\"\n",
	} {
		if _, err := UnmarshalTOML([]byte(doc)); err == nil {
			t.Errorf("%s: expected an error", name)
		}
	}

	named, err := UnmarshalTOML([]byte("[[ephemeris]]\nname = \"a\"\nperiod = 2\n"))
	if err != nil {
		t.Fatal(err)
	}
	if p := named[0].Params; p != (Params{Period: 2, WrapAt: 1}) {
		t.Errorf("defaults not applied: %+v", p)
	}
}
