package attachz

import "fmt"

// Catalog records which host hook names are deprecated and what replaces them.
//
// A Catalog is documentation and lint data only. Attach never consults it.
type Catalog struct {
	deprecated map[DeprecatedName]Name
}

// NewCatalog creates an empty Catalog.
func NewCatalog() *Catalog {
	return &Catalog{deprecated: make(map[DeprecatedName]Name)}
}

// Deprecate marks old as deprecated. replacement may be empty when the host
// offers no successor. It returns c for chaining.
func (c *Catalog) Deprecate(old DeprecatedName, replacement Name) *Catalog {
	c.deprecated[old] = replacement
	return c
}

// Replacement returns the successor of a deprecated hook, if one is recorded.
func (c *Catalog) Replacement(old DeprecatedName) (Name, bool) {
	if c == nil {
		return "", false
	}
	r, ok := c.deprecated[old]
	if !ok || r == "" {
		return "", false
	}
	return r, true
}

// IsDeprecated reports whether name is a known deprecated hook.
// A nil Catalog knows no deprecated hooks.
func (c *Catalog) IsDeprecated(name string) bool {
	if c == nil {
		return false
	}
	_, ok := c.deprecated[DeprecatedName(name)]
	return ok
}

// Finding is one lint result for a definition in a batch.
type Finding struct {
	Mode        Mode
	Index       int // position within the mode's normalized sequence
	Name        string
	Replacement Name
	Message     string
}

func (f Finding) String() string {
	return fmt.Sprintf("%s[%d] %s: %s", f.Mode, f.Index, f.Name, f.Message)
}

// Lint reports deprecated-hook problems in defs:
//   - a current definition bound to a name the catalog lists as deprecated
//   - a deprecated definition bound to a name the catalog does not know
//   - every deprecated definition, naming its replacement when there is one
//
// Findings follow Attach's processing order. Keys that are not valid modes are
// skipped; Attach reports those. A nil catalog is treated as empty.
func Lint[T any](c *Catalog, defs Definitions[T]) []Finding {
	var findings []Finding
	for _, mode := range Modes() {
		for i, b := range Normalize(defs[mode]) {
			f := Finding{Mode: mode, Index: i, Name: b.Name}

			if !b.Deprecated {
				if c.IsDeprecated(b.Name) {
					f.Replacement, _ = c.Replacement(DeprecatedName(b.Name))
					f.Message = "deprecated hook bound as a current hook"
					findings = append(findings, f)
				}
				continue
			}

			if !c.IsDeprecated(b.Name) {
				f.Message = "unknown deprecated hook"
				findings = append(findings, f)
				continue
			}

			if r, ok := c.Replacement(DeprecatedName(b.Name)); ok {
				f.Replacement = r
				f.Message = fmt.Sprintf("deprecated hook, use %q", string(r))
			} else {
				f.Message = "deprecated hook with no replacement"
			}
			findings = append(findings, f)
		}
	}
	return findings
}
