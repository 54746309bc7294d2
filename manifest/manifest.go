// Package manifest loads hook batches from YAML.
//
// A manifest names the hooks a module wants and the handler to bind to each.
// Handlers are Go callbacks supplied by the program at Resolve time:
//
//	name: my-module
//	hooks:
//	  once: { name: init, handler: setup }
//	  on:
//	    - { name: ready, handler: greet, priority: 10 }
//	    - { name: renderChatLog, handler: legacyChat, deprecated: true }
//
// A mode maps to either a single entry or a list of entries, mirroring
// attachz.Definition and attachz.List.
package manifest

import (
	"errors"
	"fmt"
	"os"

	"github.com/zoobzio/attachz"
	"gopkg.in/yaml.v3"
)

var (
	// ErrInvalidManifest indicates a manifest that cannot describe a hook batch.
	ErrInvalidManifest = errors.New("invalid hook manifest")

	// ErrUnknownHandler indicates an entry naming a handler the program did not supply.
	ErrUnknownHandler = errors.New("unknown hook handler")
)

// Manifest is a parsed hook manifest.
type Manifest struct {
	Name  string             `yaml:"name"`
	Hooks map[string]Entries `yaml:"hooks"`

	Path string `yaml:"-"`
}

// Entry describes one hook definition.
type Entry struct {
	Name       string `yaml:"name"`
	Handler    string `yaml:"handler"`
	Priority   *int   `yaml:"priority"`
	Deprecated bool   `yaml:"deprecated"`
}

// Entries holds the value of one mode. Single records whether the YAML used a
// lone mapping rather than a sequence.
type Entries struct {
	Items  []Entry
	Single bool
}

// UnmarshalYAML accepts either a mapping (one entry) or a sequence of mappings.
func (e *Entries) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.MappingNode:
		var item Entry
		if err := node.Decode(&item); err != nil {
			return err
		}
		e.Items = []Entry{item}
		e.Single = true
		return nil
	case yaml.SequenceNode:
		var items []Entry
		if err := node.Decode(&items); err != nil {
			return err
		}
		e.Items = items
		e.Single = false
		return nil
	default:
		return fmt.Errorf("%w: line %d: expected a hook entry or a list of entries", ErrInvalidManifest, node.Line)
	}
}

// Load reads and parses the manifest at path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	m.Path = path
	return m, nil
}

// Parse decodes and validates manifest YAML.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}

	if err := validate(&m); err != nil {
		return nil, err
	}
	return &m, nil
}

func validate(m *Manifest) error {
	for mode, entries := range m.Hooks {
		if len(entries.Items) == 0 {
			return fmt.Errorf("%w: mode %q has no entries", ErrInvalidManifest, mode)
		}
		for i, entry := range entries.Items {
			if entry.Name == "" {
				return fmt.Errorf("%w: %s[%d]: name is required", ErrInvalidManifest, mode, i)
			}
			if entry.Handler == "" {
				return fmt.Errorf("%w: %s[%d] %s: handler is required", ErrInvalidManifest, mode, i, entry.Name)
			}
		}
	}
	return nil
}

// Resolve binds manifest entries to handlers and builds a hook batch.
//
// Mode keys are copied as-is. A key that is not a valid attachz.Mode is left in
// the batch for attachz.Attach to reject with attachz.ErrInvalidMode.
func Resolve[T any](m *Manifest, handlers map[string]attachz.Callback[T]) (attachz.Definitions[T], error) {
	defs := make(attachz.Definitions[T], len(m.Hooks))

	for mode, entries := range m.Hooks {
		list := make(attachz.List[T], 0, len(entries.Items))
		for _, entry := range entries.Items {
			callback, ok := handlers[entry.Handler]
			if !ok {
				return nil, fmt.Errorf("%w: %q for hook %q", ErrUnknownHandler, entry.Handler, entry.Name)
			}
			list = append(list, definition(entry, callback))
		}

		if entries.Single {
			defs[attachz.Mode(mode)] = list[0]
		} else {
			defs[attachz.Mode(mode)] = list
		}
	}

	return defs, nil
}

func definition[T any](entry Entry, callback attachz.Callback[T]) attachz.Single[T] {
	var opts *attachz.Options
	if entry.Priority != nil {
		opts = &attachz.Options{Priority: *entry.Priority}
	}

	if entry.Deprecated {
		return attachz.DeprecatedDefinition[T]{
			Name:     attachz.DeprecatedName(entry.Name),
			Callback: callback,
			Options:  opts,
		}
	}
	return attachz.Definition[T]{
		Name:     attachz.Name(entry.Name),
		Callback: callback,
		Options:  opts,
	}
}
