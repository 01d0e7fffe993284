package errors

import (
	"bytes"
	"fmt"
)

// Errors is a non-empty list of errors. A nil Errors value means "no errors",
// so callers can compare against nil as they would with a plain error.
type Errors interface {
	error
	// Slice returns a copy of the underlying (non-nil) errors.
	Slice() []error
	// Len is always > 0.
	Len() int

	sliceNoCopy() []error
	append(e error) Errors
}

type errorSlice []error

func (m errorSlice) append(e error) Errors {
	return errorSlice(append(m, e))
}

func (m errorSlice) sliceNoCopy() []error {
	return []error(m)
}

func (m errorSlice) Slice() []error {
	return append([]error(nil), m...)
}

func (m errorSlice) Len() int {
	return len(m)
}

func (m errorSlice) Error() string {
	if len(m) == 1 {
		return m[0].Error()
	}
	var b bytes.Buffer
	fmt.Fprintf(&b, "%d errors:", len(m))
	for _, err := range m {
		fmt.Fprintf(&b, "\n\t* %v", err)
	}
	return b.String()
}

// Append adds a (possibly nil) error to a (possibly nil) Errors list. Appending
// another Errors flattens it.
func Append(errs Errors, err error) Errors {
	if err == nil {
		return errs
	}
	if errs == nil {
		errs = errorSlice(nil)
	}
	if other, _ := err.(Errors); other != nil {
		for _, e := range other.sliceNoCopy() {
			errs = errs.append(e)
		}
		return errs
	}
	return errs.append(err)
}

// Combine combines errors e & f into a single error
func Combine(e, f error) error {
	switch e := e.(type) {
	case nil:
		return f
	case Errors:
		// copy e to avoid mutating the backing array
		return Append(errorSlice(e.Slice()), f)
	default:
		switch f := f.(type) {
		case nil:
			return e
		case Errors:
			return Append(errorSlice{e}, f)
		default:
			return errorSlice{e, f}
		}
	}
}

// Defer combines the result of a deferred error-returning call into *err.
func Defer(err *error, f func() error) {
	*err = Combine(*err, f())
}
