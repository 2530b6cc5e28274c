// Package lightcurve holds the light-curve data model a session works on:
// datasets with a time axis, flux and named derived columns, the collection
// they live in, loaders for JSON5 light-curve files, and plotting of
// flux against time or phase.
package lightcurve

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/google/uuid"

	"github.com/bob-anderson-ok/lcviz/events"
)

// Provenance records how a dataset came to be.
type Provenance int

const (
	ProvenanceLoaded Provenance = iota // Read from a file or built by the caller
	ProvenanceBinned                   // Binned in time; still an absolute-time series
	ProvenanceFolded                   // Output of a phase fold; Time holds phases
)

func (p Provenance) String() string {
	switch p {
	case ProvenanceLoaded:
		return "loaded"
	case ProvenanceBinned:
		return "binned"
	case ProvenanceFolded:
		return "folded"
	}
	return fmt.Sprintf("Provenance(%d)", int(p))
}

var (
	// ErrLengthMismatch is returned when a column does not have one value per sample.
	ErrLengthMismatch = errors.New("column length does not match the time axis")

	// ErrDuplicateLabel is returned when a dataset label is already in the collection.
	ErrDuplicateLabel = errors.New("dataset label already in use")

	// ErrUnknownDataset is returned when a label or ID is not in the collection.
	ErrUnknownDataset = errors.New("unknown dataset")

	// ErrUnknownColumn is returned when a named column does not exist.
	ErrUnknownColumn = errors.New("unknown column")
)

// Dataset is one light curve.
type Dataset struct {
	ID         uuid.UUID
	Label      string
	Time       []float64 // Absolute times, or phases when Provenance is ProvenanceFolded
	Flux       []float64
	FluxErr    []float64 // Optional; nil or one value per sample
	Meta       map[string]any
	Provenance Provenance

	// FoldedBy is the ephemeris a folded dataset was produced with.
	FoldedBy uuid.UUID

	columns  map[string][]float64
	colOrder []string
}

// New builds a dataset after checking that flux (and flux error, if given)
// line up with the time axis.
func New(label string, time, flux, fluxErr []float64) (*Dataset, error) {
	if len(flux) != len(time) {
		return nil, fmt.Errorf("dataset %q: flux: %w (%d vs %d)", label, ErrLengthMismatch, len(flux), len(time))
	}
	if fluxErr != nil && len(fluxErr) != len(time) {
		return nil, fmt.Errorf("dataset %q: flux_err: %w (%d vs %d)", label, ErrLengthMismatch, len(fluxErr), len(time))
	}
	for i, t := range time {
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return nil, fmt.Errorf("dataset %q: time[%d] is not a finite number", label, i)
		}
	}
	return &Dataset{
		ID:      uuid.New(),
		Label:   label,
		Time:    time,
		Flux:    flux,
		FluxErr: fluxErr,
		Meta:    make(map[string]any),
		columns: make(map[string][]float64),
	}, nil
}

// Len returns the number of samples.
func (d *Dataset) Len() int { return len(d.Time) }

// Folded reports whether the dataset is already in phase space.
func (d *Dataset) Folded() bool { return d.Provenance == ProvenanceFolded }

// Column returns a named derived column. The "time" and "flux" names
// resolve to the primary arrays. The slice is the stored one, and phase
// columns may be shared with datasets on the same time axis; do not write
// into it.
func (d *Dataset) Column(name string) ([]float64, bool) {
	switch name {
	case "time":
		return d.Time, true
	case "flux":
		return d.Flux, true
	case "flux_err":
		return d.FluxErr, d.FluxErr != nil
	}
	v, ok := d.columns[name]
	return v, ok
}

// SetColumn adds or overwrites a derived column.
func (d *Dataset) SetColumn(name string, values []float64) error {
	if len(values) != len(d.Time) {
		return fmt.Errorf("dataset %q column %q: %w (%d vs %d)", d.Label, name, ErrLengthMismatch, len(values), len(d.Time))
	}
	if d.columns == nil {
		d.columns = make(map[string][]float64)
	}
	if _, exists := d.columns[name]; !exists {
		d.colOrder = append(d.colOrder, name)
	}
	d.columns[name] = values
	return nil
}

// RemoveColumn deletes a derived column and reports whether it existed.
func (d *Dataset) RemoveColumn(name string) bool {
	if _, ok := d.columns[name]; !ok {
		return false
	}
	delete(d.columns, name)
	d.colOrder = slices.DeleteFunc(d.colOrder, func(s string) bool { return s == name })
	return true
}

// RenameColumn moves a derived column to a new name, keeping its position.
func (d *Dataset) RenameColumn(old, newName string) error {
	v, ok := d.columns[old]
	if !ok {
		return fmt.Errorf("dataset %q column %q: %w", d.Label, old, ErrUnknownColumn)
	}
	if _, taken := d.columns[newName]; taken {
		return fmt.Errorf("dataset %q: column %q already exists", d.Label, newName)
	}
	delete(d.columns, old)
	d.columns[newName] = v
	for i, n := range d.colOrder {
		if n == old {
			d.colOrder[i] = newName
		}
	}
	return nil
}

// ColumnNames lists the derived columns in the order they were added.
func (d *Dataset) ColumnNames() []string {
	return slices.Clone(d.colOrder)
}

// Collection is the ordered set of datasets loaded into a session.
type Collection struct {
	bus   *events.Bus
	items []*Dataset
}

// NewCollection returns an empty collection that announces additions and
// removals on bus (which may be nil).
func NewCollection(bus *events.Bus) *Collection {
	return &Collection{bus: bus}
}

// Add appends a dataset and publishes events.DatasetAdded.
func (c *Collection) Add(d *Dataset) error {
	if d == nil {
		return errors.New("nil dataset")
	}
	if d.Label == "" {
		return errors.New("dataset label must not be blank")
	}
	if _, ok := c.Get(d.Label); ok {
		return fmt.Errorf("%q: %w", d.Label, ErrDuplicateLabel)
	}
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	c.items = append(c.items, d)
	c.bus.Publish(events.DatasetAdded{ID: d.ID, Label: d.Label})
	return nil
}

// Remove drops the labelled dataset and publishes events.DatasetRemoved.
func (c *Collection) Remove(label string) error {
	for i, d := range c.items {
		if d.Label == label {
			c.items = append(c.items[:i], c.items[i+1:]...)
			c.bus.Publish(events.DatasetRemoved{ID: d.ID, Label: d.Label})
			return nil
		}
	}
	return fmt.Errorf("%q: %w", label, ErrUnknownDataset)
}

// Get finds a dataset by label.
func (c *Collection) Get(label string) (*Dataset, bool) {
	for _, d := range c.items {
		if d.Label == label {
			return d, true
		}
	}
	return nil, false
}

// ByID finds a dataset by handle.
func (c *Collection) ByID(id uuid.UUID) (*Dataset, bool) {
	for _, d := range c.items {
		if d.ID == id {
			return d, true
		}
	}
	return nil, false
}

// All returns the datasets in load order. The slice is a copy.
func (c *Collection) All() []*Dataset {
	return slices.Clone(c.items)
}

// Labels returns the dataset labels in load order.
func (c *Collection) Labels() []string {
	labels := make([]string, len(c.items))
	for i, d := range c.items {
		labels[i] = d.Label
	}
	return labels
}

// Len returns the number of datasets.
func (c *Collection) Len() int { return len(c.items) }
