package ephemeris

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidName is returned for empty names, names using reserved
	// characters, and names that collide with an existing ephemeris.
	ErrInvalidName = errors.New("invalid ephemeris name")

	// ErrDuplicateName is the collision flavour of ErrInvalidName.
	ErrDuplicateName = fmt.Errorf("%w: name already in use", ErrInvalidName)

	// ErrUnknownEphemeris is returned when an operation names an ephemeris
	// that is not registered.
	ErrUnknownEphemeris = errors.New("unknown ephemeris")

	// ErrInvalidParameter is returned for non-finite parameters and for a
	// period that is not strictly positive.
	ErrInvalidParameter = errors.New("invalid ephemeris parameter")
)

// Error ties a failed registry operation to the ephemeris it referenced.
type Error struct {
	Op   string // "add", "update", "rename", "remove", ...
	Name string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("ephemeris %s %q: %v", e.Op, e.Name, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func opError(op, name string, err error) error {
	return &Error{Op: op, Name: name, Err: err}
}
