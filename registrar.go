package attachz

import (
	"fmt"
	"sort"
)

// Dispatcher is the host's event-dispatch object. attachz only ever calls its
// two registration entry points and never inspects its state.
//
// Implementations own the callbacks they receive. They may return any error;
// Attach returns it to the caller exactly as received.
type Dispatcher[T any] interface {
	// Once registers a callback that is removed after its first invocation.
	Once(name string, callback Callback[T], opts *Options) error
	// On registers a persistent callback.
	On(name string, callback Callback[T], opts *Options) error
}

// Registrar attaches batches of hook definitions to a single host.
//
// A Registrar holds no state besides its host and may be shared freely.
//
// Example:
//
//	registrar := attachz.NewRegistrar[Scene](host)
//	if err := registrar.Attach(defs); err != nil {
//	    return err
//	}
type Registrar[T any] struct {
	host Dispatcher[T]
}

// NewRegistrar creates a Registrar bound to host.
func NewRegistrar[T any](host Dispatcher[T]) *Registrar[T] {
	return &Registrar[T]{host: host}
}

// Attach registers every definition in defs with the Registrar's host.
// See the package-level Attach for semantics.
func (r *Registrar[T]) Attach(defs Definitions[T]) error {
	return Attach(r.host, defs)
}

// Attach registers every definition in defs with host.
//
// Processing order:
//   - The batch is validated first. An unknown mode yields a *ModeError and an
//     empty mode yields ErrEmptyDefinitions. No host call is made in either case.
//   - Modes are processed in Modes() order: all Once definitions, then all On
//     definitions.
//   - Within a mode, definitions are registered in sequence order.
//
// Each definition causes exactly one call to host.Once or host.On with its
// name, callback and options. Nil options are passed as nil.
//
// Attach is fail-fast: the first error returned by the host is returned
// unmodified and the remaining definitions are not registered. Panics raised
// by the host are not recovered.
//
// Returns:
//   - nil: every definition was registered (including an empty batch)
//   - ErrHostUnavailable: host is nil
//   - *ModeError: a key is not a valid Mode
//   - ErrEmptyDefinitions: a mode has no definitions
//   - any error returned by the host
func Attach[T any](host Dispatcher[T], defs Definitions[T]) error {
	if host == nil {
		return ErrHostUnavailable
	}

	if err := validate(defs); err != nil {
		return err
	}

	for _, mode := range Modes() {
		set, ok := defs[mode]
		if !ok {
			continue
		}

		register := entryPoint(host, mode)
		for _, b := range set.bindings() {
			if err := register(b.Name, b.Callback, b.Options); err != nil {
				return err
			}
		}
	}

	return nil
}

// entryPoint resolves the host method for a validated mode.
func entryPoint[T any](host Dispatcher[T], mode Mode) func(string, Callback[T], *Options) error {
	if mode == Once {
		return host.Once
	}
	return host.On
}

// validate checks keys and values before anything reaches the host.
// Invalid keys are reported in sorted order so the error is deterministic.
func validate[T any](defs Definitions[T]) error {
	var invalid []string
	for mode := range defs {
		if !mode.Valid() {
			invalid = append(invalid, string(mode))
		}
	}
	if len(invalid) > 0 {
		sort.Strings(invalid)
		return &ModeError{Mode: Mode(invalid[0])}
	}

	for _, mode := range Modes() {
		set, ok := defs[mode]
		if !ok {
			continue
		}
		if len(Normalize(set)) == 0 {
			return fmt.Errorf("%w: %s", ErrEmptyDefinitions, mode)
		}
	}

	return nil
}
