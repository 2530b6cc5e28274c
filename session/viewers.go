package session

import (
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/google/uuid"

	"github.com/bob-anderson-ok/lcviz/ephemeris"
	"github.com/bob-anderson-ok/lcviz/events"
	"github.com/bob-anderson-ok/lcviz/lightcurve"
)

// TimeReference is the reference of the session's time viewer.
const TimeReference = "flux-vs-time"

const phasePrefix = "flux-vs-phase:"

// Kind tells time viewers from phase viewers.
type Kind int

const (
	KindTime Kind = iota
	KindPhase
)

func (k Kind) String() string {
	if k == KindPhase {
		return "phase"
	}
	return "time"
}

var (
	// ErrViewerCreation is returned when a rendering surface could not be created.
	ErrViewerCreation = errors.New("viewer creation failed")

	// ErrUnknownViewer is returned for a reference no viewer has.
	ErrUnknownViewer = errors.New("unknown viewer")
)

// PhaseReference builds the display reference of a phase viewer. Clone 0 is
// the home viewer; clones get a bracketed suffix.
func PhaseReference(ephemerisName string, clone int) string {
	if clone == 0 {
		return phasePrefix + ephemerisName
	}
	return fmt.Sprintf("%s%s[%d]", phasePrefix, ephemerisName, clone)
}

func timeReference(clone int) string {
	if clone == 0 {
		return TimeReference
	}
	return fmt.Sprintf("%s[%d]", TimeReference, clone)
}

// Viewer is one display. Phase viewers hold their ephemeris by handle; the
// reference is a display label only and is never parsed.
type Viewer struct {
	ID         uuid.UUID
	Reference  string
	Kind       Kind
	Entry      uuid.UUID // Nil for time viewers
	Clone      int
	XAttribute string // "time" or the phase column name
	Limits     lightcurve.Limits

	visible []uuid.UUID
	marks   []Mark
	surface Surface
}

// Visible reports whether the dataset is shown in this viewer.
func (v *Viewer) Visible(dataset uuid.UUID) bool {
	return slices.Contains(v.visible, dataset)
}

// SetVisible shows or hides a dataset.
func (v *Viewer) SetVisible(dataset uuid.UUID, on bool) {
	has := v.Visible(dataset)
	switch {
	case on && !has:
		v.visible = append(v.visible, dataset)
	case !on && has:
		v.visible = slices.DeleteFunc(v.visible, func(id uuid.UUID) bool { return id == dataset })
	}
}

// VisibleDatasets lists the shown datasets in the order they were made visible.
func (v *Viewer) VisibleDatasets() []uuid.UUID { return slices.Clone(v.visible) }

// Marks returns the overlays drawn on the viewer.
func (v *Viewer) Marks() []Mark { return slices.Clone(v.marks) }

// Surface returns the viewer's rendering surface.
func (v *Viewer) Surface() Surface { return v.surface }

// ViewerManager creates, clones, renames and destroys viewers. It is attached
// to the ephemeris registry as a dependent so viewers follow their entry.
type ViewerManager struct {
	bus        *events.Bus
	data       *lightcurve.Collection
	reg        *ephemeris.Registry
	sync       *Synchronizer
	factory    SurfaceFactory
	log        io.Writer
	autoCreate bool

	viewers   []*Viewer
	nextClone map[uuid.UUID]int
}

func (m *ViewerManager) warnf(format string, args ...any) {
	fmt.Fprintf(m.log, "warning: "+format+"\n", args...)
}

func (m *ViewerManager) newSurface(ref string) (Surface, error) {
	surf, err := m.factory(ref)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrViewerCreation, ref, err)
	}
	if surf == nil {
		return nil, fmt.Errorf("%w: %s: factory returned no surface", ErrViewerCreation, ref)
	}
	return surf, nil
}

func (m *ViewerManager) register(v *Viewer) {
	m.viewers = append(m.viewers, v)
	m.bus.Publish(events.ViewerAdded{ID: v.ID, Reference: v.Reference})
	m.render(v)
}

func (m *ViewerManager) createTimeViewer() (*Viewer, error) {
	surf, err := m.newSurface(TimeReference)
	if err != nil {
		return nil, err
	}
	v := &Viewer{
		ID:         uuid.New(),
		Reference:  TimeReference,
		Kind:       KindTime,
		XAttribute: "time",
		surface:    surf,
	}
	m.register(v)
	return v, nil
}

// TimeViewer returns the home time viewer.
func (m *ViewerManager) TimeViewer() *Viewer {
	for _, v := range m.viewers {
		if v.Kind == KindTime && v.Clone == 0 {
			return v
		}
	}
	return nil
}

// Get finds a viewer by reference.
func (m *ViewerManager) Get(ref string) (*Viewer, error) {
	for _, v := range m.viewers {
		if v.Reference == ref {
			return v, nil
		}
	}
	return nil, fmt.Errorf("%q: %w", ref, ErrUnknownViewer)
}

// All returns every viewer in creation order.
func (m *ViewerManager) All() []*Viewer { return slices.Clone(m.viewers) }

// References lists viewer references in creation order.
func (m *ViewerManager) References() []string {
	refs := make([]string, len(m.viewers))
	for i, v := range m.viewers {
		refs[i] = v.Reference
	}
	return refs
}

// Bound returns the home viewer and clones bound to an ephemeris entry.
func (m *ViewerManager) Bound(entry uuid.UUID) []*Viewer {
	var out []*Viewer
	for _, v := range m.viewers {
		if v.Kind == KindPhase && v.Entry == entry {
			out = append(out, v)
		}
	}
	return out
}

// Home returns the home phase viewer of an entry, if one exists.
func (m *ViewerManager) Home(entry uuid.UUID) (*Viewer, bool) {
	for _, v := range m.Bound(entry) {
		if v.Clone == 0 {
			return v, true
		}
	}
	return nil, false
}

// CreatePhaseViewer returns the home viewer for the named ephemeris,
// creating it if needed. A new viewer shows the non-folded datasets that are
// visible in the time viewer, plus any folded output of this ephemeris.
func (m *ViewerManager) CreatePhaseViewer(name string) (*Viewer, error) {
	e, err := m.reg.Lookup(name)
	if err != nil {
		return nil, err
	}
	if v, ok := m.Home(e.ID); ok {
		return v, nil
	}

	ref := PhaseReference(e.Name, 0)
	surf, err := m.newSurface(ref)
	if err != nil {
		return nil, err
	}
	if err := m.sync.Ensure(e); err != nil {
		m.warnf("phase columns for %q: %v", e.Name, err)
	}

	v := &Viewer{
		ID:         uuid.New(),
		Reference:  ref,
		Kind:       KindPhase,
		Entry:      e.ID,
		XAttribute: ephemeris.PhaseColumn(e.Name),
		surface:    surf,
	}
	if tv := m.TimeViewer(); tv != nil {
		for _, id := range tv.visible {
			if d, ok := m.data.ByID(id); ok && !d.Folded() {
				v.SetVisible(id, true)
			}
		}
	}
	for _, d := range m.data.All() {
		if d.Folded() && d.FoldedBy == e.ID {
			v.SetVisible(d.ID, true)
		}
	}
	m.register(v)
	return v, nil
}

// Clone makes a second viewer bound to the same ephemeris (or a second time
// viewer), copying axis limits, visible layers and marks from the source.
func (m *ViewerManager) Clone(ref string) (*Viewer, error) {
	src, err := m.Get(ref)
	if err != nil {
		return nil, err
	}
	n := m.nextClone[src.Entry] + 1

	var cloneRef string
	if src.Kind == KindPhase {
		e, ok := m.reg.ByID(src.Entry)
		if !ok {
			return nil, fmt.Errorf("%s: %w", ref, ephemeris.ErrUnknownEphemeris)
		}
		cloneRef = PhaseReference(e.Name, n)
	} else {
		cloneRef = timeReference(n)
	}

	surf, err := m.newSurface(cloneRef)
	if err != nil {
		return nil, err
	}
	m.nextClone[src.Entry] = n

	v := &Viewer{
		ID:         uuid.New(),
		Reference:  cloneRef,
		Kind:       src.Kind,
		Entry:      src.Entry,
		Clone:      n,
		XAttribute: src.XAttribute,
		Limits:     src.Limits,
		visible:    slices.Clone(src.visible),
		marks:      slices.Clone(src.marks),
		surface:    surf,
	}
	m.register(v)
	return v, nil
}

// Destroy removes a viewer. The home time viewer cannot be destroyed.
func (m *ViewerManager) Destroy(ref string) error {
	v, err := m.Get(ref)
	if err != nil {
		return err
	}
	if v.Kind == KindTime && v.Clone == 0 {
		return fmt.Errorf("%q: the time viewer cannot be destroyed", ref)
	}
	m.destroy(v)
	return nil
}

func (m *ViewerManager) destroy(v *Viewer) {
	m.viewers = slices.DeleteFunc(m.viewers, func(x *Viewer) bool { return x == v })
	if err := v.surface.Close(); err != nil {
		m.warnf("closing %s: %v", v.Reference, err)
	}
	m.bus.Publish(events.ViewerRemoved{ID: v.ID, Reference: v.Reference})
}

// AddMark attaches an overlay to a viewer, positions it in the viewer's
// coordinates and redraws.
func (m *ViewerManager) AddMark(ref string, mark Mark) error {
	v, err := m.Get(ref)
	if err != nil {
		return err
	}
	if err := mark.Refresh(m.foldFor(v)); err != nil {
		return err
	}
	v.marks = append(v.marks, mark)
	m.render(v)
	return nil
}

// RemoveMark detaches an overlay and reports whether it was present.
func (m *ViewerManager) RemoveMark(ref string, mark Mark) bool {
	v, err := m.Get(ref)
	if err != nil || !slices.Contains(v.marks, mark) {
		return false
	}
	v.marks = slices.DeleteFunc(v.marks, func(x Mark) bool { return x == mark })
	m.render(v)
	return true
}

// foldFor returns the time-to-x mapping of a viewer, or nil for time viewers.
func (m *ViewerManager) foldFor(v *Viewer) func([]float64) []float64 {
	if v.Kind != KindPhase {
		return nil
	}
	e, ok := m.reg.ByID(v.Entry)
	if !ok {
		return nil
	}
	return e.Fold
}

// xValues picks the x array of a dataset in a viewer. Folded datasets are
// only drawn by viewers of the ephemeris that produced them.
func (m *ViewerManager) xValues(v *Viewer, d *lightcurve.Dataset) ([]float64, bool) {
	if v.Kind == KindTime {
		if d.Folded() {
			return nil, false
		}
		return d.Time, true
	}
	if d.Folded() {
		return d.Time, d.FoldedBy == v.Entry
	}
	return d.Column(v.XAttribute)
}

// Spec builds the figure a viewer currently shows.
func (m *ViewerManager) Spec(v *Viewer) lightcurve.PlotSpec {
	spec := lightcurve.PlotSpec{
		Title:  v.Reference,
		XLabel: v.XAttribute,
		YLabel: "flux",
		Limits: v.Limits,
	}
	if v.Kind == KindPhase {
		spec.XStep = 0.25
	}
	for _, id := range v.visible {
		d, ok := m.data.ByID(id)
		if !ok {
			continue
		}
		x, ok := m.xValues(v, d)
		if !ok {
			continue
		}
		spec.Layers = append(spec.Layers, lightcurve.Layer{Label: d.Label, X: x, Y: d.Flux})
	}
	for _, mark := range v.marks {
		spec.Layers = append(spec.Layers, mark.Layer())
	}
	return spec
}

func (m *ViewerManager) render(v *Viewer) error {
	if err := v.surface.Render(m.Spec(v)); err != nil {
		m.warnf("rendering %s: %v", v.Reference, err)
		return fmt.Errorf("%s: %w", v.Reference, err)
	}
	return nil
}

// Render redraws one viewer.
func (m *ViewerManager) Render(ref string) error {
	v, err := m.Get(ref)
	if err != nil {
		return err
	}
	return m.render(v)
}

// RenderAll redraws every viewer and joins the failures.
func (m *ViewerManager) RenderAll() error {
	var errs []error
	for _, v := range m.viewers {
		if err := m.render(v); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// EphemerisAdded does nothing: viewers are opened on request or on the
// first edit.
func (m *ViewerManager) EphemerisAdded(ephemeris.Entry) error { return nil }

// EphemerisChanged creates the home viewer on the first edit of an entry
// that has none, then redraws every viewer bound to it.
func (m *ViewerManager) EphemerisChanged(e ephemeris.Entry) error {
	var createErr error
	if _, ok := m.Home(e.ID); !ok && m.autoCreate {
		_, createErr = m.CreatePhaseViewer(e.Name)
	}
	for _, v := range m.Bound(e.ID) {
		m.render(v)
	}
	return createErr
}

func (m *ViewerManager) EphemerisRenamed(e ephemeris.Entry, old string) {
	for _, v := range m.Bound(e.ID) {
		prev := v.Reference
		v.Reference = PhaseReference(e.Name, v.Clone)
		v.XAttribute = ephemeris.PhaseColumn(e.Name)
		m.bus.Publish(events.ViewerRenamed{ID: v.ID, Old: prev, New: v.Reference})
		m.render(v)
	}
}

func (m *ViewerManager) EphemerisRemoved(e ephemeris.Entry) {
	for _, v := range m.Bound(e.ID) {
		m.destroy(v)
	}
	delete(m.nextClone, e.ID)
}

// hideDataset drops a dataset from every viewer and redraws the ones that
// showed it.
func (m *ViewerManager) hideDataset(id uuid.UUID) {
	for _, v := range m.viewers {
		if v.Visible(id) {
			v.SetVisible(id, false)
			m.render(v)
		}
	}
}

// showDataset makes a newly added dataset visible where it can be drawn:
// ordinary light curves in the time viewer and every phase viewer, folded
// output only in the viewers of its ephemeris.
func (m *ViewerManager) showDataset(d *lightcurve.Dataset) {
	for _, v := range m.viewers {
		switch {
		case v.Kind == KindTime && d.Folded():
			continue
		case v.Kind == KindPhase && d.Folded() && d.FoldedBy != v.Entry:
			continue
		}
		v.SetVisible(d.ID, true)
		m.render(v)
	}
}
