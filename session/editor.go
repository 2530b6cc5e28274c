package session

import (
	"github.com/google/uuid"

	"github.com/bob-anderson-ok/lcviz/ephemeris"
	"github.com/bob-anderson-ok/lcviz/events"
)

// Editor is the ephemeris panel: one selected entry and the four parameter
// fields bound to it. Field edits go through the registry. While the editor
// itself is loading fields (on selection, or when the registry reports a
// change) the guard is up and field writes stay local, so a change never
// feeds back into another update.
type Editor struct {
	s        *Session
	selected uuid.UUID
	fields   ephemeris.Params
	loading  bool
	subs     []*events.Subscription
}

func newEditor(s *Session, e ephemeris.Entry) *Editor {
	ed := &Editor{s: s, selected: e.ID, fields: e.Params}
	ed.subs = append(ed.subs,
		events.Subscribe(s.bus, ed.onChanged),
		events.Subscribe(s.bus, ed.onRemoved),
	)
	return ed
}

// Close unsubscribes the editor from the bus.
func (ed *Editor) Close() {
	for _, sub := range ed.subs {
		sub.Unsubscribe()
	}
	ed.subs = nil
}

// Selected returns the name of the selected entry, or "" when the registry
// is empty.
func (ed *Editor) Selected() string {
	if e, ok := ed.s.reg.ByID(ed.selected); ok {
		return e.Name
	}
	return ""
}

// Fields returns the values currently shown in the panel.
func (ed *Editor) Fields() ephemeris.Params { return ed.fields }

// Select makes name the edited entry. All four fields are loaded under the
// guard, then the entry's phase columns are resynced exactly once.
func (ed *Editor) Select(name string) error {
	e, err := ed.s.reg.Lookup(name)
	if err != nil {
		return err
	}
	ed.selected = e.ID
	ed.load(e)
	if err := ed.s.sync.Resync(e); err != nil {
		return err
	}
	for _, v := range ed.s.viewers.Bound(e.ID) {
		ed.s.viewers.render(v)
	}
	return nil
}

func (ed *Editor) load(e ephemeris.Entry) {
	ed.loading = true
	defer func() { ed.loading = false }()
	ed.SetT0(e.T0)
	ed.SetPeriod(e.Period)
	ed.SetDpdt(e.Dpdt)
	ed.SetWrapAt(e.WrapAt)
}

func (ed *Editor) SetT0(v float64) error {
	ed.fields.T0 = v
	return ed.commit(ephemeris.Fields{T0: &v})
}

func (ed *Editor) SetPeriod(v float64) error {
	ed.fields.Period = v
	return ed.commit(ephemeris.Fields{Period: &v})
}

func (ed *Editor) SetDpdt(v float64) error {
	ed.fields.Dpdt = v
	return ed.commit(ephemeris.Fields{Dpdt: &v})
}

func (ed *Editor) SetWrapAt(v float64) error {
	ed.fields.WrapAt = v
	return ed.commit(ephemeris.Fields{WrapAt: &v})
}

// PeriodDouble doubles the period of the selected entry.
func (ed *Editor) PeriodDouble() error { return ed.SetPeriod(ed.fields.Period * 2) }

// PeriodHalve halves the period of the selected entry.
func (ed *Editor) PeriodHalve() error { return ed.SetPeriod(ed.fields.Period / 2) }

// commit sends one field to the registry. A rejected value is reverted in
// the panel and the error returned for display.
func (ed *Editor) commit(f ephemeris.Fields) error {
	if ed.loading {
		return nil
	}
	e, ok := ed.s.reg.ByID(ed.selected)
	if !ok {
		return ephemeris.ErrUnknownEphemeris
	}
	if _, err := ed.s.reg.Update(e.Name, f); err != nil {
		if cur, ok := ed.s.reg.ByID(ed.selected); ok {
			ed.fields = cur.Params
		}
		return err
	}
	return nil
}

func (ed *Editor) onChanged(m events.EphemerisChanged) {
	if m.ID != ed.selected {
		return
	}
	if e, ok := ed.s.reg.ByID(m.ID); ok {
		ed.load(e)
	}
}

// onRemoved moves the selection to the first remaining entry.
func (ed *Editor) onRemoved(m events.EphemerisRemoved) {
	if m.ID != ed.selected {
		return
	}
	entries := ed.s.reg.Entries()
	if len(entries) == 0 {
		ed.selected = uuid.Nil
		ed.fields = ephemeris.Params{}
		return
	}
	ed.selected = entries[0].ID
	ed.load(entries[0])
}
