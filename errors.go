package attachz

import (
	"errors"
	"fmt"
)

// Batch Validation Errors
//
// These errors are returned before any registration call is made.

// ErrInvalidMode is returned when a Definitions key is not a recognized Mode.
// Go's type system cannot stop Mode("always") from being used as a key, so
// Attach checks every key up front. Use errors.As with *ModeError to read the
// offending key.
var ErrInvalidMode = errors.New("invalid registration mode")

// ErrEmptyDefinitions is returned when a mode maps to a nil Set or to a List
// with no definitions in it.
var ErrEmptyDefinitions = errors.New("no hook definitions for mode")

// Host Errors
//
// These errors describe the external dispatcher, not the batch.

// ErrHostUnavailable is returned when Attach is given no dispatcher.
// Dispatchers may also return errors matching it when they cannot accept
// registrations. Attach passes those through unmodified.
var ErrHostUnavailable = errors.New("host dispatcher unavailable")

// ModeError reports a Definitions key that is not a recognized Mode.
type ModeError struct {
	Mode Mode
}

func (e *ModeError) Error() string {
	return fmt.Sprintf("%s: %q", ErrInvalidMode, string(e.Mode))
}

// Unwrap makes errors.Is(err, ErrInvalidMode) hold for any *ModeError.
func (e *ModeError) Unwrap() error {
	return ErrInvalidMode
}
