package attachztest

import (
	"errors"
	"fmt"

	"github.com/zoobzio/attachz"
)

// Host Lifecycle Errors

// ErrHostClosed is returned by every registration or fire after Close.
// It matches attachz.ErrHostUnavailable under errors.Is.
var ErrHostClosed = fmt.Errorf("%w: host closed", attachz.ErrHostUnavailable)

// ErrAlreadyClosed is returned when Close is called twice.
var ErrAlreadyClosed = errors.New("host already closed")

// ErrListenerNotFound is returned by Remove for an id that is not registered,
// including listeners already consumed by Fire.
var ErrListenerNotFound = errors.New("listener not found")

// Resource Limit Errors

// ErrTooManyListeners is returned when a registration would exceed the
// per-hook listener limit (see WithLimit).
var ErrTooManyListeners = errors.New("listener limit exceeded")

// Listener Execution Errors

// ErrListenerPanicked is reported by Fire for a callback that panicked.
var ErrListenerPanicked = errors.New("listener panicked during execution")
