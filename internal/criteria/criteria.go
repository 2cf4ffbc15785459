// Package criteria evaluates the per-category filter and draw rules applied
// to image-set exports.
//
// A Filter assigns each category one of three modes. Include categories are
// OR-ed together (vacuously true when none is set), Exclude categories veto
// selection when present, and Intersect categories take no part in the
// decision. Draw is independent of selection and only controls which boxes
// are rendered.
package criteria

import (
	"encoding/json"
	"fmt"
)

// Mode is the tri-state rule for one category.
type Mode string

const (
	Include   Mode = "Include"
	Intersect Mode = "Intersect"
	Exclude   Mode = "Exclude"
)

// Valid reports whether m is one of the three defined modes.
func (m Mode) Valid() bool {
	switch m {
	case Include, Intersect, Exclude:
		return true
	default:
		return false
	}
}

// ParseMode converts a wire value into a Mode. Matching is exact.
func ParseMode(value string) (Mode, error) {
	mode := Mode(value)
	if !mode.Valid() {
		return "", fmt.Errorf("unknown filter mode %q (want Include, Intersect, or Exclude)", value)
	}
	return mode, nil
}

func (m *Mode) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("filter mode: %w", err)
	}
	mode, err := ParseMode(raw)
	if err != nil {
		return err
	}
	*m = mode
	return nil
}

// Category names a detection class as used by filters and draw settings.
type Category string

const (
	Animals  Category = "animals"
	Humans   Category = "humans"
	Vehicles Category = "vehicles"
	Empty    Category = "empty"
)

// FilterCategories lists every category a Filter governs, in wire order.
var FilterCategories = []Category{Animals, Humans, Vehicles, Empty}

// DrawCategories lists the categories that can be rendered.
var DrawCategories = []Category{Animals, Humans, Vehicles}

// Presence records which categories a detection record contains. Empty is
// true exactly when the record has no detections.
type Presence struct {
	Animals  bool
	Humans   bool
	Vehicles bool
	Empty    bool
}

// Has reports presence for c.
func (p Presence) Has(c Category) bool {
	switch c {
	case Animals:
		return p.Animals
	case Humans:
		return p.Humans
	case Vehicles:
		return p.Vehicles
	case Empty:
		return p.Empty
	default:
		return false
	}
}
