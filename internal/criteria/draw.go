package criteria

// Draw is the DrawCriteria value: which categories get boxes rendered on
// exported images.
type Draw struct {
	Animals  bool `json:"animals"`
	Humans   bool `json:"humans"`
	Vehicles bool `json:"vehicles"`
}

// DefaultDraw renders every category.
func DefaultDraw() Draw {
	return Draw{Animals: true, Humans: true, Vehicles: true}
}

// Enabled reports whether boxes for c are drawn. Empty is never drawn.
func (d Draw) Enabled(c Category) bool {
	switch c {
	case Animals:
		return d.Animals
	case Humans:
		return d.Humans
	case Vehicles:
		return d.Vehicles
	default:
		return false
	}
}

// Any reports whether at least one category is drawn.
func (d Draw) Any() bool {
	return d.Animals || d.Humans || d.Vehicles
}
