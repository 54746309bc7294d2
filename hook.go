package attachz

// Definition binds a callback to a current host hook.
//
// Definitions are plain values owned by the caller. Attach reads them once and
// does not retain them.
type Definition[T any] struct {
	Name     Name
	Callback Callback[T]
	Options  *Options
}

// DeprecatedDefinition binds a callback to a legacy host hook.
type DeprecatedDefinition[T any] struct {
	Name     DeprecatedName
	Callback Callback[T]
	Options  *Options
}

// Set is the value stored under a mode in Definitions: either a lone
// definition or a List of them.
type Set[T any] interface {
	bindings() []Binding[T]
}

// Single is a lone definition, current or deprecated.
type Single[T any] interface {
	Set[T]
	binding() Binding[T]
}

// List is an ordered sequence of definitions registered under one mode.
type List[T any] []Single[T]

// Definitions maps registration modes to the hooks registered under them.
type Definitions[T any] map[Mode]Set[T]

// Binding is the normalized form of a definition, as handed to the host.
type Binding[T any] struct {
	Name       string
	Deprecated bool
	Callback   Callback[T]
	Options    *Options
}

func (d Definition[T]) binding() Binding[T] {
	return Binding[T]{
		Name:     string(d.Name),
		Callback: d.Callback,
		Options:  d.Options,
	}
}

func (d Definition[T]) bindings() []Binding[T] {
	return []Binding[T]{d.binding()}
}

func (d DeprecatedDefinition[T]) binding() Binding[T] {
	return Binding[T]{
		Name:       string(d.Name),
		Deprecated: true,
		Callback:   d.Callback,
		Options:    d.Options,
	}
}

func (d DeprecatedDefinition[T]) bindings() []Binding[T] {
	return []Binding[T]{d.binding()}
}

func (l List[T]) bindings() []Binding[T] {
	out := make([]Binding[T], 0, len(l))
	for _, def := range l {
		if absent[T](def) {
			continue
		}
		out = append(out, def.binding())
	}
	return out
}

// Normalize returns the definitions in set as a sequence. A lone definition
// becomes a one-element sequence. A nil set, including a nil pointer to a
// definition or list, yields nil.
func Normalize[T any](set Set[T]) []Binding[T] {
	if absent(set) {
		return nil
	}
	return set.bindings()
}

// absent reports whether set is nil or a nil pointer. Pointers satisfy Set
// through the value methods, and calling those on nil would panic.
func absent[T any](set Set[T]) bool {
	switch s := set.(type) {
	case nil:
		return true
	case *Definition[T]:
		return s == nil
	case *DeprecatedDefinition[T]:
		return s == nil
	case *List[T]:
		return s == nil
	}
	return false
}
