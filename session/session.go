// Package session ties a light-curve collection, an ephemeris registry and
// the viewers that display them into one application session.
//
// Every operation runs synchronously on the caller's goroutine. Ephemeris
// edits flow registry -> synchronizer (phase columns, marks) -> viewer
// manager (home viewer creation, redraw) -> event bus, in that order, so
// listeners on the bus always see derived state that matches the entry.
package session

import (
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/google/uuid"

	"github.com/bob-anderson-ok/lcviz/binning"
	"github.com/bob-anderson-ok/lcviz/ephemeris"
	"github.com/bob-anderson-ok/lcviz/events"
	"github.com/bob-anderson-ok/lcviz/lightcurve"
)

// DefaultEphemeris is the name of the entry every session starts with.
const DefaultEphemeris = "default"

// ErrUnknownDataset is returned for a label that is not loaded.
var ErrUnknownDataset = lightcurve.ErrUnknownDataset

// Options configure New.
type Options struct {
	Logger           io.Writer      // optional; nil = io.Discard
	SurfaceFactory   SurfaceFactory // optional; nil = 1200x500 gonum/plot images
	DefaultEphemeris string         // optional; "" = DefaultEphemeris

	// ManualPhaseViewers stops the first parameter edit of an entry from
	// creating its phase viewer.
	ManualPhaseViewers bool
}

// Session is one application session.
type Session struct {
	bus     *events.Bus
	data    *lightcurve.Collection
	reg     *ephemeris.Registry
	sync    *Synchronizer
	viewers *ViewerManager
	editor  *Editor
	markers *Markers
	log     io.Writer

	subs []*events.Subscription
}

// New builds a session with a time viewer and one default ephemeris.
func New(opts Options) (*Session, error) {
	log := opts.Logger
	if log == nil {
		log = io.Discard
	}
	factory := opts.SurfaceFactory
	if factory == nil {
		factory = NewPlotSurfaceFactory(1200, 500)
	}
	name := opts.DefaultEphemeris
	if name == "" {
		name = DefaultEphemeris
	}

	bus := events.NewBus()
	s := &Session{
		bus:  bus,
		data: lightcurve.NewCollection(bus),
		reg:  ephemeris.NewRegistry(bus),
		log:  log,
	}
	s.sync = &Synchronizer{
		data:         s.data,
		reg:          s.reg,
		log:          log,
		columns:      make(map[columnKey][]float64),
		fingerprints: make(map[uuid.UUID]uint64),
	}
	s.viewers = &ViewerManager{
		bus:        bus,
		data:       s.data,
		reg:        s.reg,
		sync:       s.sync,
		factory:    factory,
		log:        log,
		autoCreate: !opts.ManualPhaseViewers,
		nextClone:  make(map[uuid.UUID]int),
	}
	s.sync.viewers = s.viewers
	s.reg.Attach(s.sync)
	s.reg.Attach(s.viewers)

	if _, err := s.viewers.createTimeViewer(); err != nil {
		return nil, err
	}
	e, err := s.reg.Add(name, ephemeris.DefaultParams())
	if err != nil {
		return nil, err
	}

	s.subs = append(s.subs,
		events.Subscribe(bus, s.onDatasetAdded),
		events.Subscribe(bus, s.onDatasetRemoved),
	)
	s.editor = newEditor(s, e)
	s.markers = newMarkers(bus)
	return s, nil
}

func (s *Session) warnf(format string, args ...any) {
	fmt.Fprintf(s.log, "warning: "+format+"\n", args...)
}

func (s *Session) onDatasetAdded(m events.DatasetAdded) {
	d, ok := s.data.ByID(m.ID)
	if !ok {
		return
	}
	// Per-dataset failures are already logged by the synchronizer.
	_ = s.sync.ResyncDataset(d.ID)
	s.viewers.showDataset(d)
}

func (s *Session) onDatasetRemoved(m events.DatasetRemoved) {
	s.sync.DropDataset(m.ID)
	s.viewers.hideDataset(m.ID)
}

// Close releases viewers and unsubscribes session components from the bus.
func (s *Session) Close() error {
	for _, sub := range s.subs {
		sub.Unsubscribe()
	}
	s.subs = nil
	s.editor.Close()
	s.markers.Close()

	var errs []error
	for _, v := range s.viewers.All() {
		if err := v.surface.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", v.Reference, err))
		}
	}
	return errors.Join(errs...)
}

func (s *Session) Bus() *events.Bus                 { return s.bus }
func (s *Session) Data() *lightcurve.Collection     { return s.data }
func (s *Session) Ephemerides() *ephemeris.Registry { return s.reg }
func (s *Session) Viewers() *ViewerManager          { return s.viewers }
func (s *Session) Synchronizer() *Synchronizer      { return s.sync }
func (s *Session) Editor() *Editor                  { return s.editor }
func (s *Session) Markers() *Markers                { return s.markers }
func (s *Session) TimeViewer() *Viewer              { return s.viewers.TimeViewer() }

// Viewer finds a viewer by reference.
func (s *Session) Viewer(ref string) (*Viewer, error) { return s.viewers.Get(ref) }

// LoadData adds a dataset. Its phase columns are computed for every
// registered ephemeris and it becomes visible in the viewers that can show it.
func (s *Session) LoadData(d *lightcurve.Dataset) error {
	return s.data.Add(d)
}

// RemoveData drops a dataset and everything derived from it.
func (s *Session) RemoveData(label string) error {
	return s.data.Remove(label)
}

// AddComponent registers a new ephemeris. Its phase columns are computed
// before events.EphemerisAdded is published. A resync error is returned
// together with the registered entry.
func (s *Session) AddComponent(name string, p ephemeris.Params) (ephemeris.Entry, error) {
	return s.reg.Add(name, p)
}

// AddComponentWithViewer registers an ephemeris and opens its phase viewer.
// If the viewer cannot be created the entry is removed again, so nothing is
// left behind.
func (s *Session) AddComponentWithViewer(name string, p ephemeris.Params) (ephemeris.Entry, *Viewer, error) {
	e, addErr := s.reg.Add(name, p)
	if e.ID == uuid.Nil {
		return ephemeris.Entry{}, nil, addErr
	}
	v, err := s.viewers.CreatePhaseViewer(name)
	if err != nil {
		if rmErr := s.reg.Remove(name); rmErr != nil {
			s.warnf("rolling back %q: %v", name, rmErr)
		}
		return ephemeris.Entry{}, nil, err
	}
	return e, v, addErr
}

// RemoveComponent deletes an ephemeris with its phase columns and viewers.
func (s *Session) RemoveComponent(name string) error {
	return s.reg.Remove(name)
}

// RenameComponent renames an ephemeris; columns, viewers, the editor and
// the markers table follow.
func (s *Session) RenameComponent(old, newName string) error {
	return s.reg.Rename(old, newName)
}

// UpdateEphemeris merges the given fields into an entry in one transaction.
// The returned error may carry resync or viewer creation failures even
// though the new parameters were applied; check the entry.
func (s *Session) UpdateEphemeris(name string, f ephemeris.Fields) (ephemeris.Entry, error) {
	return s.reg.Update(name, f)
}

// TimesToPhases folds times with a named ephemeris.
func (s *Session) TimesToPhases(times []float64, name string) ([]float64, error) {
	e, err := s.reg.Lookup(name)
	if err != nil {
		return nil, err
	}
	return e.Fold(times), nil
}

// PhasesToTimes maps phases of a named ephemeris back to absolute times.
func (s *Session) PhasesToTimes(phases []float64, name string) ([]float64, error) {
	e, err := s.reg.Lookup(name)
	if err != nil {
		return nil, err
	}
	return e.Unfold(phases), nil
}

// PhaseColumn returns the phase column a dataset holds for an ephemeris.
func (s *Session) PhaseColumn(label, name string) ([]float64, error) {
	d, ok := s.data.Get(label)
	if !ok {
		return nil, fmt.Errorf("%q: %w", label, ErrUnknownDataset)
	}
	if _, err := s.reg.Lookup(name); err != nil {
		return nil, err
	}
	col, ok := d.Column(ephemeris.PhaseColumn(name))
	if !ok {
		return nil, fmt.Errorf("dataset %q has no phase column for %q: %w", label, name, lightcurve.ErrUnknownColumn)
	}
	return slices.Clone(col), nil
}

// CreatePhaseViewer returns the home phase viewer of an ephemeris, creating
// it if necessary.
func (s *Session) CreatePhaseViewer(name string) (*Viewer, error) {
	return s.viewers.CreatePhaseViewer(name)
}

// CloneViewer duplicates a viewer.
func (s *Session) CloneViewer(ref string) (*Viewer, error) {
	return s.viewers.Clone(ref)
}

// DestroyViewer removes a viewer.
func (s *Session) DestroyViewer(ref string) error {
	return s.viewers.Destroy(ref)
}

// Render redraws one viewer.
func (s *Session) Render(ref string) error { return s.viewers.Render(ref) }

// RenderAll redraws every viewer.
func (s *Session) RenderAll() error { return s.viewers.RenderAll() }

// Bin bins a loaded dataset, in phase when ephemerisName is set. With
// addData the result is loaded into the session, replacing an earlier
// result of the same label, and shown in the viewers of its ephemeris (or
// the time viewer).
func (s *Session) Bin(label, ephemerisName string, nBins int, addData bool) (*lightcurve.Dataset, error) {
	d, ok := s.data.Get(label)
	if !ok {
		return nil, fmt.Errorf("%q: %w", label, ErrUnknownDataset)
	}
	opts := binning.Options{NBins: nBins}
	if ephemerisName != "" {
		e, err := s.reg.Lookup(ephemerisName)
		if err != nil {
			return nil, err
		}
		opts.Ephemeris = &e
	}
	out, err := binning.Bin(d, opts)
	if err != nil {
		return nil, err
	}
	if !addData {
		return out, nil
	}
	if _, exists := s.data.Get(out.Label); exists {
		if err := s.data.Remove(out.Label); err != nil {
			return nil, err
		}
	}
	if err := s.data.Add(out); err != nil {
		return nil, err
	}
	return out, nil
}
