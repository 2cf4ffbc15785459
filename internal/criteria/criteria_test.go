package criteria_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"camtrap/internal/criteria"
)

func filter(animals, humans, vehicles, empty criteria.Mode) criteria.Filter {
	return criteria.Filter{Animals: animals, Humans: humans, Vehicles: vehicles, Empty: empty}
}

func TestExcludeVetoesInclude(t *testing.T) {
	f := filter(criteria.Include, criteria.Exclude, criteria.Intersect, criteria.Intersect)

	assert.True(t, f.Select(criteria.Presence{Animals: true}))
	assert.False(t, f.Select(criteria.Presence{Animals: true, Humans: true}))
	assert.False(t, f.Select(criteria.Presence{Empty: true}), "no included category present")
}

func TestVacuousInclusion(t *testing.T) {
	f := filter(criteria.Intersect, criteria.Exclude, criteria.Intersect, criteria.Intersect)

	assert.True(t, f.Select(criteria.Presence{Empty: true}))
	assert.True(t, f.Select(criteria.Presence{Animals: true, Vehicles: true}))
	assert.False(t, f.Select(criteria.Presence{Humans: true}))

	all := filter(criteria.Intersect, criteria.Intersect, criteria.Intersect, criteria.Intersect)
	assert.True(t, all.Select(criteria.Presence{}))
}

func TestIncludeIsLogicalOr(t *testing.T) {
	f := filter(criteria.Include, criteria.Include, criteria.Intersect, criteria.Exclude)

	cases := []struct {
		name     string
		presence criteria.Presence
		want     bool
	}{
		{"animals only", criteria.Presence{Animals: true}, true},
		{"humans only", criteria.Presence{Humans: true}, true},
		{"vehicles only", criteria.Presence{Vehicles: true}, false},
		{"empty vetoed", criteria.Presence{Empty: true}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, f.Select(tc.presence))
		})
	}
}

func TestIntersectIsNeutral(t *testing.T) {
	base := filter(criteria.Include, criteria.Intersect, criteria.Intersect, criteria.Intersect)
	for _, p := range []criteria.Presence{
		{Animals: true},
		{Animals: true, Humans: true},
		{Animals: true, Vehicles: true},
		{Humans: true},
		{Empty: true},
	} {
		assert.Equal(t, p.Animals, base.Select(p), "presence %+v", p)
	}
}

func TestDefaultsAndValidation(t *testing.T) {
	def := criteria.DefaultFilter()
	require.NoError(t, def.Validate())
	assert.Equal(t, []criteria.Category{criteria.Animals}, def.Includes())
	assert.Empty(t, def.Excludes())
	assert.Equal(t, "+animals", def.String())

	var zero criteria.Filter
	err := zero.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "animals")
	assert.Contains(t, err.Error(), "empty")

	draw := criteria.DefaultDraw()
	assert.True(t, draw.Any())
	assert.False(t, draw.Enabled(criteria.Empty))
	assert.False(t, criteria.Draw{}.Any())
}

func TestFilterJSONUsesExactModeNames(t *testing.T) {
	var f criteria.Filter
	require.NoError(t, json.Unmarshal([]byte(`{"animals":"Include","humans":"Exclude","vehicles":"Intersect","empty":"Exclude"}`), &f))
	assert.Equal(t, filter(criteria.Include, criteria.Exclude, criteria.Intersect, criteria.Exclude), f)
	assert.Equal(t, "+animals -humans -empty", f.String())

	err := json.Unmarshal([]byte(`{"animals":"include"}`), &f)
	require.Error(t, err)

	_, err = criteria.ParseMode("Union")
	require.Error(t, err)
}
