package errors

import (
	stderrors "errors"
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies fatal pipeline errors.
type Kind int

const (
	// Unknown is the kind of any error not created through this package.
	Unknown Kind = iota
	// Configuration covers missing or invalid config values, bad rates and output dir collisions.
	Configuration
	// DataIntegrity covers length mismatches, labels outside {0,1} and out of range indices.
	DataIntegrity
	// Domain covers math on degenerate parameters, e.g. a calibration prior of 0 or 1.
	Domain
	// InvariantViolation covers values that can only come from a programming error upstream.
	InvariantViolation
)

func (k Kind) String() string {
	switch k {
	case Configuration:
		return "configuration error"
	case DataIntegrity:
		return "data integrity error"
	case Domain:
		return "domain error"
	case InvariantViolation:
		return "invariant violation"
	default:
		return "error"
	}
}

type kindError struct {
	kind Kind
	err  error
}

func (e *kindError) Error() string {
	return fmt.Sprintf("%s: %v", e.kind, e.err)
}

func (e *kindError) Unwrap() error { return e.err }

// Cause lets errors.Cause see through the kind annotation
func (e *kindError) Cause() error { return e.err }

// Kindf creates a new error of the given kind, with a stack trace.
func Kindf(kind Kind, format string, args ...interface{}) error {
	return &kindError{kind: kind, err: errors.Errorf(format, args...)}
}

// WrapKind tags err with kind and a message; a nil err yields nil.
func WrapKind(kind Kind, err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return &kindError{kind: kind, err: WrapfOrNil(err, format, args...)}
}

// KindOf returns the kind of the first classified error in err's chain.
// For a list of errors, the first classified member wins.
func KindOf(err error) Kind {
	if errs, ok := err.(Errors); ok {
		for _, e := range errs.sliceNoCopy() {
			if k := KindOf(e); k != Unknown {
				return k
			}
		}
		return Unknown
	}
	var ke *kindError
	if stderrors.As(err, &ke) {
		return ke.kind
	}
	return Unknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
