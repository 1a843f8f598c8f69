package state_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tailored-agentic-units/mealplanner/state"
)

func TestValue_Equal(t *testing.T) {
	tests := []struct {
		name string
		a, b state.Value
		want bool
	}{
		{name: "null", a: state.Null(), b: state.Value{}, want: true},
		{name: "strings", a: state.String("nuts"), b: state.String("nuts"), want: true},
		{name: "int and float", a: state.Int(2), b: state.Number(2.0), want: true},
		{name: "kinds differ", a: state.String("1"), b: state.Int(1), want: false},
		{name: "lists ordered", a: state.Strings("a", "b"), b: state.Strings("b", "a"), want: false},
		{
			name: "records",
			a:    state.Record(map[string]state.Value{"x": state.Strings("a")}),
			b:    state.Record(map[string]state.Value{"x": state.Strings("a")}),
			want: true,
		},
		{
			name: "records differ",
			a:    state.Record(map[string]state.Value{"x": state.Bool(true)}),
			b:    state.Record(map[string]state.Value{"x": state.Bool(false)}),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Equal(tt.b))
		})
	}
}

func TestValue_CloneIsIndependent(t *testing.T) {
	original := state.Record(map[string]state.Value{
		"ingredients": state.Strings("rice"),
		"nested":      state.Record(map[string]state.Value{"deep": state.Strings("x")}),
	})

	fields, ok := original.Clone().AsRecord()
	require.True(t, ok)
	fields["ingredients"] = state.Strings("beans")

	ingredients, ok := original.Field("ingredients")
	require.True(t, ok)
	assert.Equal(t, []string{"rice"}, ingredients.StringList())
}

func TestFromAny(t *testing.T) {
	var decoded any
	require.NoError(t, json.Unmarshal([]byte(`{
		"name": "dal",
		"servings": 4,
		"is_verified": false,
		"ingredients": ["lentils", "cumin"],
		"meta": {"source": null}
	}`), &decoded))

	v, err := state.FromAny(decoded)
	require.NoError(t, err)

	assert.Equal(t, state.KindRecord, v.Kind())
	assert.Equal(t, "dal", v.Text("name"))

	servings, _ := v.Field("servings")
	n, ok := servings.AsNumber()
	require.True(t, ok)
	assert.Equal(t, 4.0, n)

	meta, _ := v.Field("meta")
	source, ok := meta.Field("source")
	require.True(t, ok)
	assert.True(t, source.IsNull())
}

func TestFromAny_Unsupported(t *testing.T) {
	_, err := state.FromAny(map[string]any{"ch": make(chan int)})
	assert.ErrorIs(t, err, state.ErrUnsupportedValue)
}

func TestValue_JSON(t *testing.T) {
	v := state.Record(map[string]state.Value{
		"allergies": state.Strings("peanuts"),
		"city":      state.String("Lisbon"),
	})

	data, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"allergies":["peanuts"],"city":"Lisbon"}`, string(data))

	var back state.Value
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, v.Equal(back))
}

func TestValue_Describe(t *testing.T) {
	assert.Equal(t, "spinach", state.String("spinach").Describe())
	assert.Equal(t, "3", state.Int(3).Describe())
	assert.Equal(t, `["a","b"]`, state.Strings("a", "b").Describe())
	assert.Equal(t, "true", state.Bool(true).Describe())
}
