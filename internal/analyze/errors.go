package analyze

import (
	"errors"
	"fmt"
)

type Kind int

const (
	// KindIngestion marks input that cannot be batched, such as duplicate ids.
	KindIngestion Kind = iota + 1
	// KindClassificationService marks a failed or structurally invalid classify call.
	KindClassificationService
	// KindItemValidation marks one classified item that failed its schema. It
	// is recovered inside the consolidator and never aborts a run.
	KindItemValidation
	// KindConsolidation marks a run with no valid classified reviews left.
	KindConsolidation
)

func (k Kind) String() string {
	switch k {
	case KindIngestion:
		return "ingestion"
	case KindClassificationService:
		return "classification service"
	case KindItemValidation:
		return "item validation"
	case KindConsolidation:
		return "consolidation"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return e.Kind.String() + " error: " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// KindOf reports the taxonomy kind of err when it wraps an *Error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}
