// Package attachz provides typed, mode-keyed batch registration of callbacks
// against a host application's named event hooks.
//
// The package does not dispatch events. It translates a declarative batch of
// hook definitions into registration calls on a host-owned Dispatcher, picking
// the one-shot or persistent entry point per registration mode.
//
// Basic Usage:
//
//	defs := attachz.Definitions[Scene]{
//		attachz.Once: attachz.Definition[Scene]{Name: "init", Callback: setup},
//		attachz.On: attachz.List[Scene]{
//			attachz.Definition[Scene]{Name: "ready", Callback: greet},
//			attachz.Definition[Scene]{Name: "ready", Callback: audit, Options: &attachz.Options{Priority: 10}},
//		},
//	}
//
//	if err := attachz.Attach(host, defs); err != nil {
//		return err
//	}
//
// Deprecated Hooks:
//
// Legacy hook names live in their own namespace so that callers are explicit
// when they bind to one:
//
//	attachz.DeprecatedDefinition[Scene]{Name: "renderChatLog", Callback: legacy}
//
// A Catalog can be used to lint a batch for misplaced or unknown deprecated
// names. Linting never changes what Attach does.
//
// Failure Semantics:
//
// Attach is fail-fast. The first error returned by the host aborts the rest of
// the batch and is returned to the caller unmodified.
package attachz

import "context"

// Name identifies a current (non-deprecated) host hook.
//
// Define hook names as package constants:
//
//	const (
//		Init  attachz.Name = "init"
//		Ready attachz.Name = "ready"
//	)
type Name string

// DeprecatedName identifies a legacy host hook. It is a distinct type from Name
// so a deprecated hook can never be bound through a current-hook definition by
// accident.
type DeprecatedName string

// Mode selects the host registration entry point for a definition.
type Mode string

// Registration modes.
const (
	// Once registers a callback the host removes after its first invocation.
	Once Mode = "once"
	// On registers a callback that stays active until the host removes it.
	On Mode = "on"
)

// Modes returns every registration mode in the order Attach processes them.
func Modes() []Mode {
	return []Mode{Once, On}
}

// Valid reports whether m is a recognized registration mode.
func (m Mode) Valid() bool {
	return m == Once || m == On
}

// Callback is invoked by the host when the hook fires.
type Callback[T any] func(ctx context.Context, data T) error

// Options carries registration settings through to the host untouched.
// A nil *Options means no options were given.
type Options struct {
	// Priority orders listeners on the same hook. Interpretation is up to the host.
	Priority int
}
