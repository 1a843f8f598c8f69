package recipe_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tailored-agentic-units/mealplanner/recipe"
	"github.com/tailored-agentic-units/mealplanner/state"
)

func TestFromValue(t *testing.T) {
	v := state.Record(map[string]state.Value{
		"name":        state.String("Ramen"),
		"source_url":  state.String("https://example.com/ramen"),
		"ingredients": state.Strings("noodles", "broth"),
		"servings":    state.Int(2),
		"is_verified": state.Bool(false),
	})

	r, err := recipe.FromValue(v)
	require.NoError(t, err)
	assert.Equal(t, "Ramen", r.Name)
	assert.Equal(t, "2", r.Servings)
	assert.Equal(t, []string{"noodles", "broth"}, r.Ingredients)
	assert.Nil(t, r.Instructions)
}

func TestFromValue_Malformed(t *testing.T) {
	tests := []struct {
		name string
		v    state.Value
	}{
		{name: "not a record", v: state.String("ramen")},
		{name: "ingredients not list", v: state.Record(map[string]state.Value{"ingredients": state.String("noodles")})},
		{name: "flag not bool", v: state.Record(map[string]state.Value{"is_verified": state.String("yes")})},
		{name: "name not string", v: state.Record(map[string]state.Value{"name": state.Strings("a")})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := recipe.FromValue(tt.v)
			assert.ErrorIs(t, err, recipe.ErrMalformedRecord)
		})
	}
}

func TestLoad_Absent(t *testing.T) {
	r, err := recipe.Load(state.NewStore(nil))
	require.NoError(t, err)
	assert.Equal(t, recipe.Record{}, r)
}

func TestRecord_Summary(t *testing.T) {
	assert.Equal(t, "no recipe selected", recipe.Record{}.Summary())
	assert.Equal(t, "Tacos (unverified, 1 ingredients, 0 steps)", recipe.Record{Name: "Tacos", Ingredients: []string{"tortilla"}}.Summary())
}

func TestRecord_ValueHasAllFields(t *testing.T) {
	v := recipe.Record{}.Value()
	assert.Equal(t, []string{
		"cook_time", "ingredients", "instructions", "is_verified", "name",
		"prep_time", "servings", "source_url", "verification_status",
	}, v.Keys())
}
