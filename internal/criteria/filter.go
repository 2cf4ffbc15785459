package criteria

import (
	"fmt"
	"strings"
)

// Filter is the FilterCriteria value attached to an export request. The zero
// value is invalid; use DefaultFilter or set every field.
type Filter struct {
	Animals  Mode `json:"animals"`
	Humans   Mode `json:"humans"`
	Vehicles Mode `json:"vehicles"`
	Empty    Mode `json:"empty"`
}

// DefaultFilter selects images with animals and treats everything else as
// neutral.
func DefaultFilter() Filter {
	return Filter{
		Animals:  Include,
		Humans:   Intersect,
		Vehicles: Intersect,
		Empty:    Intersect,
	}
}

// Mode returns the rule assigned to c.
func (f Filter) Mode(c Category) Mode {
	switch c {
	case Animals:
		return f.Animals
	case Humans:
		return f.Humans
	case Vehicles:
		return f.Vehicles
	case Empty:
		return f.Empty
	default:
		return ""
	}
}

// Validate checks every category as a unit.
func (f Filter) Validate() error {
	var invalid []string
	for _, c := range FilterCategories {
		if m := f.Mode(c); !m.Valid() {
			invalid = append(invalid, fmt.Sprintf("%s=%q", c, string(m)))
		}
	}
	if len(invalid) > 0 {
		return fmt.Errorf("invalid filter criteria: %s", strings.Join(invalid, ", "))
	}
	return nil
}

// Select applies the composite rule:
//
//	(OR over Include of present) AND (AND over Exclude of NOT present)
//
// With no Include category the OR term is true.
func (f Filter) Select(p Presence) bool {
	included := true
	sawInclude := false
	for _, c := range FilterCategories {
		switch f.Mode(c) {
		case Include:
			if !sawInclude {
				sawInclude = true
				included = false
			}
			if p.Has(c) {
				included = true
			}
		case Exclude:
			if p.Has(c) {
				return false
			}
		}
	}
	return included
}

// Includes lists the categories set to Include.
func (f Filter) Includes() []Category { return f.withMode(Include) }

// Excludes lists the categories set to Exclude.
func (f Filter) Excludes() []Category { return f.withMode(Exclude) }

func (f Filter) withMode(mode Mode) []Category {
	var out []Category
	for _, c := range FilterCategories {
		if f.Mode(c) == mode {
			out = append(out, c)
		}
	}
	return out
}

// String renders the filter compactly for logs, e.g. "+animals -humans".
func (f Filter) String() string {
	parts := make([]string, 0, len(FilterCategories))
	for _, c := range f.Includes() {
		parts = append(parts, "+"+string(c))
	}
	for _, c := range f.Excludes() {
		parts = append(parts, "-"+string(c))
	}
	if len(parts) == 0 {
		return "*"
	}
	return strings.Join(parts, " ")
}
