package ephemeris

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/bob-anderson-ok/lcviz/events"
)

// reservedChars are used as delimiters in viewer references
// ("flux-vs-phase:<name>[n]") and column labels ("phase:<name>").
const reservedChars = "[]:"

// Entry is one registered ephemeris. ID is stable for the life of the entry;
// Name is the user-facing label and may change on rename.
type Entry struct {
	ID   uuid.UUID
	Name string
	Params
}

// Fields is a partial update. Nil members are left unchanged.
type Fields struct {
	T0     *float64
	Period *float64
	Dpdt   *float64
	WrapAt *float64
}

// Float is a convenience for building Fields literals.
func Float(v float64) *float64 { return &v }

// Dependent is implemented by components whose state is derived from the
// registry. Dependents are called after the registry has changed and before
// the corresponding event is published.
type Dependent interface {
	// EphemerisAdded is called once for a newly registered entry. Returned
	// errors are reported to the caller of Add but the entry stays.
	EphemerisAdded(e Entry) error
	// EphemerisChanged is called once per committed update with the fully
	// merged entry. Returned errors are reported to the caller of Update but
	// do not roll the update back.
	EphemerisChanged(e Entry) error
	// EphemerisRenamed is called after the entry carries its new name.
	EphemerisRenamed(e Entry, old string)
	// EphemerisRemoved is called after the entry left the registry.
	EphemerisRemoved(e Entry)
}

// Registry owns the ephemerides of a session. It is not safe for concurrent
// use; all mutations happen on the session's event-processing goroutine.
type Registry struct {
	bus     *events.Bus
	entries map[uuid.UUID]*Entry
	byName  map[string]uuid.UUID
	order   []uuid.UUID
	deps    []Dependent
}

// NewRegistry returns an empty registry that publishes on bus (which may be nil).
func NewRegistry(bus *events.Bus) *Registry {
	return &Registry{
		bus:     bus,
		entries: make(map[uuid.UUID]*Entry),
		byName:  make(map[string]uuid.UUID),
	}
}

// Attach registers a dependent. Dependents are called in attach order.
func (r *Registry) Attach(d Dependent) {
	r.deps = append(r.deps, d)
}

// ValidateName checks a prospective ephemeris name without consulting the registry.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name must not be blank", ErrInvalidName)
	}
	if strings.ContainsAny(name, reservedChars) {
		return fmt.Errorf("%w: %q contains one of the reserved characters %q", ErrInvalidName, name, reservedChars)
	}
	return nil
}

// Validate checks that every parameter is finite and the period is positive.
func (p Params) Validate() error {
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"t0", p.T0}, {"period", p.Period}, {"dpdt", p.Dpdt}, {"wrap_at", p.WrapAt},
	} {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return fmt.Errorf("%w: %s is not a finite number", ErrInvalidParameter, f.name)
		}
	}
	if p.Period <= 0 {
		return fmt.Errorf("%w: period must be > 0 (got %g)", ErrInvalidParameter, p.Period)
	}
	return nil
}

// Merge returns p with the non-nil members of f applied.
func (p Params) Merge(f Fields) Params {
	if f.T0 != nil {
		p.T0 = *f.T0
	}
	if f.Period != nil {
		p.Period = *f.Period
	}
	if f.Dpdt != nil {
		p.Dpdt = *f.Dpdt
	}
	if f.WrapAt != nil {
		p.WrapAt = *f.WrapAt
	}
	return p
}

// Add registers a new ephemeris, calls every dependent once and then
// publishes events.EphemerisAdded. Dependent errors are joined and returned
// with the registered entry.
func (r *Registry) Add(name string, p Params) (Entry, error) {
	if err := ValidateName(name); err != nil {
		return Entry{}, opError("add", name, err)
	}
	if _, ok := r.byName[name]; ok {
		return Entry{}, opError("add", name, ErrDuplicateName)
	}
	if err := p.Validate(); err != nil {
		return Entry{}, opError("add", name, err)
	}

	e := &Entry{ID: uuid.New(), Name: name, Params: p}
	r.entries[e.ID] = e
	r.byName[name] = e.ID
	r.order = append(r.order, e.ID)

	var errs []error
	for _, d := range r.deps {
		if err := d.EphemerisAdded(*e); err != nil {
			errs = append(errs, err)
		}
	}
	r.bus.Publish(events.EphemerisAdded{ID: e.ID, Name: e.Name})
	return *e, errors.Join(errs...)
}

// Update merges f into the named entry. See Txn.Commit.
func (r *Registry) Update(name string, f Fields) (Entry, error) {
	txn, err := r.Begin(name)
	if err != nil {
		return Entry{}, err
	}
	txn.fields = f
	return txn.Commit()
}

// Rename gives an entry a new name. Dependents re-key their own state and
// events.EphemerisRenamed is published last.
func (r *Registry) Rename(old, newName string) error {
	id, ok := r.byName[old]
	if !ok {
		return opError("rename", old, ErrUnknownEphemeris)
	}
	if err := ValidateName(newName); err != nil {
		return opError("rename", newName, err)
	}
	if _, taken := r.byName[newName]; taken {
		return opError("rename", newName, ErrDuplicateName)
	}

	e := r.entries[id]
	delete(r.byName, old)
	e.Name = newName
	r.byName[newName] = id

	for _, d := range r.deps {
		d.EphemerisRenamed(*e, old)
	}
	r.bus.Publish(events.EphemerisRenamed{ID: id, Old: old, New: newName})
	return nil
}

// Remove drops an entry. Dependents delete everything derived from it and
// events.EphemerisRemoved is published last.
func (r *Registry) Remove(name string) error {
	id, ok := r.byName[name]
	if !ok {
		return opError("remove", name, ErrUnknownEphemeris)
	}
	e := *r.entries[id]
	delete(r.entries, id)
	delete(r.byName, name)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	for _, d := range r.deps {
		d.EphemerisRemoved(e)
	}
	r.bus.Publish(events.EphemerisRemoved{ID: id, Name: name})
	return nil
}

// Get returns the named entry.
func (r *Registry) Get(name string) (Entry, bool) {
	id, ok := r.byName[name]
	if !ok {
		return Entry{}, false
	}
	return *r.entries[id], true
}

// Lookup is Get with an ErrUnknownEphemeris error instead of a flag.
func (r *Registry) Lookup(name string) (Entry, error) {
	e, ok := r.Get(name)
	if !ok {
		return Entry{}, opError("lookup", name, ErrUnknownEphemeris)
	}
	return e, nil
}

// ByID returns the entry with the given handle.
func (r *Registry) ByID(id uuid.UUID) (Entry, bool) {
	e, ok := r.entries[id]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Names returns the registered names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.order))
	for _, id := range r.order {
		names = append(names, r.entries[id].Name)
	}
	return names
}

// Entries returns copies of all entries in registration order.
func (r *Registry) Entries() []Entry {
	out := make([]Entry, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.entries[id])
	}
	return out
}

// Len returns the number of registered entries.
func (r *Registry) Len() int { return len(r.order) }

// Txn batches edits to one entry so they are validated, applied and
// announced together. A Txn is single use.
type Txn struct {
	r      *Registry
	id     uuid.UUID
	name   string
	fields Fields
	done   bool
}

// ErrTxnDone is returned when a Txn is committed twice or after Discard.
var ErrTxnDone = errors.New("ephemeris transaction already finished")

// Begin starts a batch of edits to the named entry.
func (r *Registry) Begin(name string) (*Txn, error) {
	id, ok := r.byName[name]
	if !ok {
		return nil, opError("update", name, ErrUnknownEphemeris)
	}
	return &Txn{r: r, id: id, name: name}, nil
}

func (t *Txn) SetT0(v float64) *Txn     { t.fields.T0 = &v; return t }
func (t *Txn) SetPeriod(v float64) *Txn { t.fields.Period = &v; return t }
func (t *Txn) SetDpdt(v float64) *Txn   { t.fields.Dpdt = &v; return t }
func (t *Txn) SetWrapAt(v float64) *Txn { t.fields.WrapAt = &v; return t }

// Set stages every member of p.
func (t *Txn) Set(p Params) *Txn {
	return t.SetT0(p.T0).SetPeriod(p.Period).SetDpdt(p.Dpdt).SetWrapAt(p.WrapAt)
}

// Discard abandons the staged edits.
func (t *Txn) Discard() { t.done = true }

// Commit validates the merged parameters and, if they are valid, applies
// them, calls every dependent once, and publishes exactly one
// events.EphemerisChanged. On a validation error nothing is applied.
//
// Errors returned by dependents are joined and returned alongside the
// updated entry.
func (t *Txn) Commit() (Entry, error) {
	if t.done {
		return Entry{}, opError("update", t.name, ErrTxnDone)
	}
	t.done = true

	e, ok := t.r.entries[t.id]
	if !ok {
		return Entry{}, opError("update", t.name, ErrUnknownEphemeris)
	}
	merged := e.Params.Merge(t.fields)
	if err := merged.Validate(); err != nil {
		return *e, opError("update", e.Name, err)
	}
	e.Params = merged

	var errs []error
	for _, d := range t.r.deps {
		if err := d.EphemerisChanged(*e); err != nil {
			errs = append(errs, err)
		}
	}
	t.r.bus.Publish(events.EphemerisChanged{ID: e.ID, Name: e.Name})
	return *e, errors.Join(errs...)
}
