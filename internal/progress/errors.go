package progress

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates an unknown user, question, topic or record.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState indicates a record field outside its allowed bounds.
	ErrInvalidState = errors.New("invalid progress state")

	// ErrStoreUnavailable indicates a transient storage or timeout failure.
	// Callers may retry with backoff.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrNoCandidates indicates the selector found no question in scope.
	ErrNoCandidates = errors.New("no candidate questions")

	// ErrConflict indicates a concurrent write won the compare-and-swap race.
	ErrConflict = errors.New("concurrent progress update")
)

// InvalidStateError describes a single out-of-bounds field and the value it
// was clamped to.
type InvalidStateError struct {
	Field   string
	Value   float64
	Clamped float64
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s out of bounds: %v (clamped to %v)", e.Field, e.Value, e.Clamped)
}

func (e *InvalidStateError) Unwrap() error { return ErrInvalidState }

// Unavailable wraps err so that it matches ErrStoreUnavailable while keeping
// the original cause in the chain.
func Unavailable(err error) error {
	if err == nil || errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}
