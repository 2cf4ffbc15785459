package detection

import (
	"fmt"
	"strings"

	"camtrap/internal/criteria"
)

// Category is a detection class. The numeric value is the model's class
// index; wire IDs are offset by one because 0 means "Empty".
type Category int

const (
	Animal Category = iota
	Human
	Vehicle
)

// CategoryEntry is one row of the category table written to JSON exports.
type CategoryEntry struct {
	Name string `json:"name"`
	ID   int    `json:"id"`
}

// CategoryTable lists export categories by wire ID.
var CategoryTable = []CategoryEntry{
	{Name: "Empty", ID: 0},
	{Name: "Animal", ID: 1},
	{Name: "Human", ID: 2},
	{Name: "Vehicle", ID: 3},
}

func (c Category) String() string {
	switch c {
	case Animal:
		return "animal"
	case Human:
		return "human"
	case Vehicle:
		return "vehicle"
	default:
		return fmt.Sprintf("category(%d)", int(c))
	}
}

// Label is the display name used in CSV exports.
func (c Category) Label() string {
	id := c.WireID()
	if id <= 0 || id >= len(CategoryTable) {
		return "Unknown"
	}
	return CategoryTable[id].Name
}

// WireID is the category ID used in exports.
func (c Category) WireID() int {
	return int(c) + 1
}

// Criteria maps c to the filter/draw category it counts towards.
func (c Category) Criteria() criteria.Category {
	switch c {
	case Animal:
		return criteria.Animals
	case Human:
		return criteria.Humans
	case Vehicle:
		return criteria.Vehicles
	default:
		return ""
	}
}

// ParseCategory accepts class names from detectors and batch files.
func ParseCategory(value string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "animal", "animals":
		return Animal, nil
	case "human", "humans", "person", "people":
		return Human, nil
	case "vehicle", "vehicles", "car":
		return Vehicle, nil
	default:
		return 0, fmt.Errorf("unknown detection category %q", value)
	}
}

// Detection is one box. Coordinates are normalised to [0,1] with a
// top-left origin.
type Detection struct {
	X          float64
	Y          float64
	Width      float64
	Height     float64
	Category   Category
	Confidence float64
}

// ImageRecord is the detection result for one image. File is absolute
// during a run; exports relativise it against the dataset root.
type ImageRecord struct {
	File        string
	Error       string
	ImageWidth  int
	ImageHeight int
	Detections  []Detection
}

// Failed reports whether detection could not be run for this image.
func (r ImageRecord) Failed() bool {
	return r.Error != ""
}

// Presence derives the category flags used by filter criteria. A failed
// record has no detections and therefore counts as empty.
func (r ImageRecord) Presence() criteria.Presence {
	p := criteria.Presence{Empty: len(r.Detections) == 0}
	for _, d := range r.Detections {
		switch d.Category {
		case Animal:
			p.Animals = true
		case Human:
			p.Humans = true
		case Vehicle:
			p.Vehicles = true
		}
	}
	return p
}

// Summary counts records by outcome.
type Summary struct {
	Images   int `json:"images"`
	Failed   int `json:"failed"`
	Empty    int `json:"empty"`
	Animals  int `json:"animals"`
	Humans   int `json:"humans"`
	Vehicles int `json:"vehicles"`
}

// Summarize tallies images per category. An image with several categories
// is counted under each.
func Summarize(records []ImageRecord) Summary {
	var s Summary
	s.Images = len(records)
	for _, r := range records {
		if r.Failed() {
			s.Failed++
			continue
		}
		p := r.Presence()
		if p.Empty {
			s.Empty++
		}
		if p.Animals {
			s.Animals++
		}
		if p.Humans {
			s.Humans++
		}
		if p.Vehicles {
			s.Vehicles++
		}
	}
	return s
}

func filterByConfidence(detections []Detection, threshold float64) []Detection {
	if len(detections) == 0 {
		return nil
	}
	kept := make([]Detection, 0, len(detections))
	for _, d := range detections {
		if d.Confidence >= threshold {
			kept = append(kept, d)
		}
	}
	return kept
}
