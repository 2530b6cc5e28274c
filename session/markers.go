package session

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/google/uuid"

	"github.com/bob-anderson-ok/lcviz/events"
)

// ErrNoData is returned by CoordsAt when the viewer shows nothing.
var ErrNoData = errors.New("viewer shows no data")

// Coords describes the sample nearest to a cursor position. Time is NaN for
// folded output without a reconstructed time; Phase and Ephemeris are unset
// outside phase viewers.
type Coords struct {
	Viewer    string
	ViewerID  uuid.UUID
	DataLabel string
	Dataset   uuid.UUID
	Index     int
	Time      float64
	Phase     float64
	Ephemeris string
	Entry     uuid.UUID
	Flux      float64
}

// CoordsAt finds the visible sample closest in x to the given position.
func (s *Session) CoordsAt(ref string, x float64) (Coords, error) {
	v, err := s.viewers.Get(ref)
	if err != nil {
		return Coords{}, err
	}

	best := Coords{Index: -1}
	bestDist := math.Inf(1)
	for _, id := range v.visible {
		d, ok := s.data.ByID(id)
		if !ok {
			continue
		}
		xs, ok := s.viewers.xValues(v, d)
		if !ok {
			continue
		}
		for i, xi := range xs {
			if dist := math.Abs(xi - x); dist < bestDist {
				bestDist = dist
				best = Coords{
					Viewer:    v.Reference,
					ViewerID:  v.ID,
					DataLabel: d.Label,
					Dataset:   d.ID,
					Index:     i,
					Time:      math.NaN(),
					Phase:     math.NaN(),
					Flux:      d.Flux[i],
				}
				switch {
				case v.Kind == KindTime:
					best.Time = d.Time[i]
				case d.Folded():
					best.Phase = xi
					if orig, ok := d.Column("time_original"); ok {
						best.Time = orig[i]
					}
				default:
					best.Phase = xi
					best.Time = d.Time[i]
				}
			}
		}
	}
	if best.Index < 0 {
		return Coords{}, fmt.Errorf("%s: %w", ref, ErrNoData)
	}
	if v.Kind == KindPhase {
		if e, ok := s.reg.ByID(v.Entry); ok {
			best.Ephemeris = e.Name
			best.Entry = e.ID
		}
	}
	return best, nil
}

// Markers is the table of marked coordinates. Rows keep the ephemeris and
// viewer handles, so both columns follow renames. When the ephemeris is
// removed the phase information of its rows is cleared, and when the viewer
// is destroyed the viewer column is cleared.
type Markers struct {
	rows []Coords
	subs []*events.Subscription
}

func newMarkers(bus *events.Bus) *Markers {
	mk := &Markers{}
	mk.subs = append(mk.subs,
		events.Subscribe(bus, mk.onRenamed),
		events.Subscribe(bus, mk.onRemoved),
		events.Subscribe(bus, mk.onViewerRenamed),
		events.Subscribe(bus, mk.onViewerRemoved),
	)
	return mk
}

// Close unsubscribes the table from the bus.
func (mk *Markers) Close() {
	for _, sub := range mk.subs {
		sub.Unsubscribe()
	}
	mk.subs = nil
}

// Add appends a row.
func (mk *Markers) Add(c Coords) { mk.rows = append(mk.rows, c) }

// Rows returns a copy of the table.
func (mk *Markers) Rows() []Coords { return slices.Clone(mk.rows) }

// Clear empties the table.
func (mk *Markers) Clear() { mk.rows = nil }

func (mk *Markers) onRenamed(m events.EphemerisRenamed) {
	for i := range mk.rows {
		if mk.rows[i].Entry == m.ID {
			mk.rows[i].Ephemeris = m.New
		}
	}
}

func (mk *Markers) onRemoved(m events.EphemerisRemoved) {
	for i := range mk.rows {
		if mk.rows[i].Entry == m.ID {
			mk.rows[i].Entry = uuid.Nil
			mk.rows[i].Ephemeris = ""
			mk.rows[i].Phase = math.NaN()
		}
	}
}

func (mk *Markers) onViewerRenamed(m events.ViewerRenamed) {
	for i := range mk.rows {
		if mk.rows[i].ViewerID == m.ID {
			mk.rows[i].Viewer = m.New
		}
	}
}

func (mk *Markers) onViewerRemoved(m events.ViewerRemoved) {
	for i := range mk.rows {
		if mk.rows[i].ViewerID == m.ID {
			mk.rows[i].ViewerID = uuid.Nil
			mk.rows[i].Viewer = ""
		}
	}
}
