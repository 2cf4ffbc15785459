package main

import (
	"fmt"
	"strings"

	"camtrap/internal/criteria"
	"camtrap/internal/textutil"
)

// parseFilter reads "animals=Include,empty=Exclude". Categories left out
// keep their default mode.
func parseFilter(value string) (*criteria.Filter, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	filter := criteria.DefaultFilter()
	for _, part := range strings.Split(value, ",") {
		key, raw, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			return nil, fmt.Errorf("filter %q: want category=mode", part)
		}
		mode, err := criteria.ParseMode(textutil.Title(strings.ToLower(strings.TrimSpace(raw))))
		if err != nil {
			return nil, err
		}
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "animals", "animal":
			filter.Animals = mode
		case "humans", "human":
			filter.Humans = mode
		case "vehicles", "vehicle":
			filter.Vehicles = mode
		case "empty":
			filter.Empty = mode
		default:
			return nil, fmt.Errorf("filter: unknown category %q", key)
		}
	}
	return &filter, nil
}

// parseDraw reads "animals,humans" or "none".
func parseDraw(value string) (*criteria.Draw, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	var draw criteria.Draw
	if strings.EqualFold(value, "none") {
		return &draw, nil
	}
	for _, part := range strings.Split(value, ",") {
		switch strings.ToLower(strings.TrimSpace(part)) {
		case "animals", "animal":
			draw.Animals = true
		case "humans", "human":
			draw.Humans = true
		case "vehicles", "vehicle":
			draw.Vehicles = true
		case "all":
			draw = criteria.DefaultDraw()
		default:
			return nil, fmt.Errorf("draw: unknown category %q", part)
		}
	}
	return &draw, nil
}
