package registry

import (
	"errors"
	"fmt"
)

// Failure kinds returned by registry mutations. Test with errors.Is.
var (
	ErrAlreadyExists = errors.New("already exists")
	ErrNotFound      = errors.New("does not exist")
	ErrSameID        = errors.New("cannot link a portal to itself")
	ErrAlreadyLinked = errors.New("already linked")
	ErrNotLinked     = errors.New("not linked")
	ErrStillLinked   = errors.New("still linked")
	ErrInvalidID     = errors.New("portal id must not be empty")
	ErrInvalidName   = errors.New("color name must not be empty")
)

// Error describes a rejected mutation. ID is the portal the failure is
// about; Partner, when set, is the portal it is (or is not) linked to.
type Error struct {
	Op      string
	ID      string
	Partner string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case errors.Is(e.Err, ErrInvalidID), errors.Is(e.Err, ErrInvalidName):
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case errors.Is(e.Err, ErrNotLinked):
		return fmt.Sprintf("%s: portals '%s' and '%s' are %v", e.Op, e.ID, e.Partner, e.Err)
	case e.Partner != "":
		return fmt.Sprintf("%s: portal '%s' %v to '%s'", e.Op, e.ID, e.Err, e.Partner)
	default:
		return fmt.Sprintf("%s: portal '%s' %v", e.Op, e.ID, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

func fail(op, id string, err error) error {
	return &Error{Op: op, ID: id, Err: err}
}

func failPair(op, id, partner string, err error) error {
	return &Error{Op: op, ID: id, Partner: partner, Err: err}
}
