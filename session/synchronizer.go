package session

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"slices"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"github.com/bob-anderson-ok/lcviz/ephemeris"
	"github.com/bob-anderson-ok/lcviz/lightcurve"
)

type columnKey struct {
	dataset uuid.UUID
	entry   uuid.UUID
}

// Synchronizer keeps one phase column per (dataset, ephemeris) pair equal to
// the fold of the dataset's time axis. Datasets whose time axes are identical
// are linked and share a single computed column.
type Synchronizer struct {
	data    *lightcurve.Collection
	reg     *ephemeris.Registry
	viewers *ViewerManager
	log     io.Writer

	columns      map[columnKey][]float64
	fingerprints map[uuid.UUID]uint64
	resyncs      int
}

func (s *Synchronizer) warnf(format string, args ...any) {
	fmt.Fprintf(s.log, "warning: "+format+"\n", args...)
}

// fingerprint hashes a dataset's time axis. The axis is read only, so the
// hash is computed once per dataset.
func (s *Synchronizer) fingerprint(d *lightcurve.Dataset) uint64 {
	if fp, ok := s.fingerprints[d.ID]; ok {
		return fp
	}
	h := xxhash.New()
	var buf [8]byte
	for _, t := range d.Time {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(t))
		h.Write(buf[:])
	}
	fp := h.Sum64()
	s.fingerprints[d.ID] = fp
	return fp
}

// linkCache holds the columns computed during one pass, by time-axis hash.
type linkCache map[uint64][]linkedAxis

type linkedAxis struct {
	time   []float64
	phases []float64
}

func (s *Synchronizer) phasesFor(d *lightcurve.Dataset, e ephemeris.Entry, cache linkCache) []float64 {
	fp := s.fingerprint(d)
	for _, l := range cache[fp] {
		if slices.Equal(l.time, d.Time) {
			return l.phases
		}
	}
	phases := e.Fold(d.Time)
	cache[fp] = append(cache[fp], linkedAxis{time: d.Time, phases: phases})
	return phases
}

// write stores the column. Samples the period model cannot fold (a drifting
// period that reaches zero before t) come out NaN; the column is still
// written and the dataset is reported.
func (s *Synchronizer) write(d *lightcurve.Dataset, e ephemeris.Entry, phases []float64) error {
	if err := d.SetColumn(ephemeris.PhaseColumn(e.Name), phases); err != nil {
		return err
	}
	s.columns[columnKey{d.ID, e.ID}] = phases

	bad := 0
	for _, p := range phases {
		if math.IsNaN(p) {
			bad++
		}
	}
	if bad > 0 {
		return fmt.Errorf("dataset %q, ephemeris %q: %d of %d times outside the period model", d.Label, e.Name, bad, len(phases))
	}
	return nil
}

// Resync recomputes the entry's phase column in every dataset that is not
// already folded, then refreshes the marks of viewers bound to the entry.
// A failure in one dataset does not stop the others; failures are logged and
// joined into the returned error.
func (s *Synchronizer) Resync(e ephemeris.Entry) error {
	s.resyncs++
	cache := make(linkCache)
	var errs []error
	for _, d := range s.data.All() {
		if d.Folded() {
			continue
		}
		if err := s.write(d, e, s.phasesFor(d, e, cache)); err != nil {
			s.warnf("%v", err)
			errs = append(errs, err)
		}
	}
	s.refreshMarks(e)
	return errors.Join(errs...)
}

// Ensure computes any missing phase columns for the entry without touching
// the ones already present.
func (s *Synchronizer) Ensure(e ephemeris.Entry) error {
	cache := make(linkCache)
	var errs []error
	for _, d := range s.data.All() {
		if d.Folded() {
			continue
		}
		if _, ok := s.columns[columnKey{d.ID, e.ID}]; ok {
			continue
		}
		if err := s.write(d, e, s.phasesFor(d, e, cache)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ResyncDataset computes the phase columns of one dataset against every
// registered ephemeris. It is run when a dataset is added.
func (s *Synchronizer) ResyncDataset(id uuid.UUID) error {
	d, ok := s.data.ByID(id)
	if !ok {
		return fmt.Errorf("%s: %w", id, lightcurve.ErrUnknownDataset)
	}
	if d.Folded() {
		return nil
	}
	var errs []error
	for _, e := range s.reg.Entries() {
		if err := s.write(d, e, e.Fold(d.Time)); err != nil {
			s.warnf("%v", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Column returns the phase column of a (dataset, entry) pair.
func (s *Synchronizer) Column(dataset, entry uuid.UUID) ([]float64, bool) {
	v, ok := s.columns[columnKey{dataset, entry}]
	return slices.Clone(v), ok
}

// Linked returns the datasets sharing the given dataset's time axis,
// including the dataset itself.
func (s *Synchronizer) Linked(dataset uuid.UUID) []uuid.UUID {
	d, ok := s.data.ByID(dataset)
	if !ok {
		return nil
	}
	fp := s.fingerprint(d)
	var out []uuid.UUID
	for _, o := range s.data.All() {
		if s.fingerprint(o) == fp && slices.Equal(o.Time, d.Time) {
			out = append(out, o.ID)
		}
	}
	return out
}

// Resyncs counts full resync passes.
func (s *Synchronizer) Resyncs() int { return s.resyncs }

// DropDataset forgets a removed dataset.
func (s *Synchronizer) DropDataset(id uuid.UUID) {
	for k := range s.columns {
		if k.dataset == id {
			delete(s.columns, k)
		}
	}
	delete(s.fingerprints, id)
}

func (s *Synchronizer) refreshMarks(e ephemeris.Entry) {
	if s.viewers == nil {
		return
	}
	for _, v := range s.viewers.Bound(e.ID) {
		for _, m := range v.marks {
			if err := m.Refresh(e.Fold); err != nil {
				s.warnf("%s: mark refresh: %v", v.Reference, err)
			}
		}
	}
}

// EphemerisAdded computes the new entry's columns before anyone hears of it.
func (s *Synchronizer) EphemerisAdded(e ephemeris.Entry) error {
	return s.Resync(e)
}

func (s *Synchronizer) EphemerisChanged(e ephemeris.Entry) error {
	return s.Resync(e)
}

// EphemerisRenamed moves the named column in every dataset, folded output
// included. The handle-keyed table needs no change.
func (s *Synchronizer) EphemerisRenamed(e ephemeris.Entry, old string) {
	from, to := ephemeris.PhaseColumn(old), ephemeris.PhaseColumn(e.Name)
	for _, d := range s.data.All() {
		if _, ok := d.Column(from); !ok {
			continue
		}
		if err := d.RenameColumn(from, to); err != nil {
			s.warnf("%v", err)
		}
	}
}

// EphemerisRemoved deletes the entry's columns everywhere.
func (s *Synchronizer) EphemerisRemoved(e ephemeris.Entry) {
	name := ephemeris.PhaseColumn(e.Name)
	for _, d := range s.data.All() {
		d.RemoveColumn(name)
	}
	for k := range s.columns {
		if k.entry == e.ID {
			delete(s.columns, k)
		}
	}
}
