package profile_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tailored-agentic-units/mealplanner/profile"
	"github.com/tailored-agentic-units/mealplanner/recipe"
	"github.com/tailored-agentic-units/mealplanner/state"
)

const sampleJSON = `{
  "state": {
    "allergies": ["peanuts"],
    "city": "Austin",
    "current_recipe": {
      "name": "", "source_url": "", "ingredients": [], "instructions": [],
      "prep_time": "", "cook_time": "", "servings": "",
      "verification_status": "", "is_verified": false
    }
  }
}`

const sampleYAML = `
state:
  allergies: [peanuts]
  city: Austin
  current_recipe:
    name: ""
    source_url: ""
    ingredients: []
    instructions: []
    prep_time: ""
    cook_time: ""
    servings: 2
    is_verified: false
`

var fixedNow = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func newInitializer() *profile.Initializer {
	return profile.NewInitializer(nil).WithClock(func() time.Time { return fixedNow })
}

func TestParse(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		format profile.Format
	}{
		{name: "json", data: sampleJSON, format: profile.FormatJSON},
		{name: "yaml", data: sampleYAML, format: profile.FormatYAML},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := profile.Parse([]byte(tt.data), tt.format)
			require.NoError(t, err)
			assert.Equal(t, "Austin", doc.Text(state.KeyCity))

			allergies, ok := doc.Field(state.KeyAllergies)
			require.True(t, ok)
			assert.Equal(t, []string{"peanuts"}, allergies.StringList())
		})
	}
}

func TestParse_Malformed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "not json", data: `{`},
		{name: "missing state", data: `{"profile": {}}`},
		{name: "missing recipe", data: `{"state": {"city": "Austin"}}`},
		{name: "recipe missing field", data: `{"state": {"current_recipe": {"name": "", "source_url": "", "ingredients": [], "instructions": [], "prep_time": "", "cook_time": "", "servings": ""}}}`},
		{name: "flag wrong type", data: `{"state": {"current_recipe": {"name": "", "source_url": "", "ingredients": [], "instructions": [], "prep_time": "", "cook_time": "", "servings": "", "is_verified": "no"}}}`},
		{name: "allergies not strings", data: `{"state": {"allergies": [1], "current_recipe": {"name": "", "source_url": "", "ingredients": [], "instructions": [], "prep_time": "", "cook_time": "", "servings": "", "is_verified": false}}}`},
		{name: "verified without source", data: `{"state": {"current_recipe": {"name": "x", "source_url": "", "ingredients": [], "instructions": [], "prep_time": "", "cook_time": "", "servings": "", "verification_status": "verified", "is_verified": true}}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := profile.Parse([]byte(tt.data), profile.FormatJSON)
			assert.ErrorIs(t, err, profile.ErrMalformedDocument)
		})
	}
}

func TestDefault(t *testing.T) {
	doc := profile.Default()
	require.True(t, doc.IsRecord())

	rv, ok := doc.Field(state.KeyRecipe)
	require.True(t, ok)
	r, err := recipe.FromValue(rv)
	require.NoError(t, err)
	assert.False(t, r.IsVerified)
}

func TestFormatOf(t *testing.T) {
	assert.Equal(t, profile.FormatYAML, profile.FormatOf("p.yml"))
	assert.Equal(t, profile.FormatYAML, profile.FormatOf("p.YAML"))
	assert.Equal(t, profile.FormatJSON, profile.FormatOf("p.json"))
	assert.Equal(t, profile.FormatJSON, profile.FormatOf("p"))
}

func TestInitialize_Example(t *testing.T) {
	doc, err := profile.Parse([]byte(sampleJSON), profile.FormatJSON)
	require.NoError(t, err)

	store := state.NewStore(nil)
	ok, err := newInitializer().Initialize(context.Background(), store, doc)
	require.NoError(t, err)
	assert.True(t, ok)

	marker, _ := store.Get(state.KeyProfileMarker)
	b, _ := marker.AsBool()
	assert.True(t, b)

	ts, _ := store.Get(state.KeySystemTime)
	assert.Equal(t, "2026-01-02T03:04:05Z", ts.Describe())

	allergies, _ := store.Get(state.KeyAllergies)
	assert.Equal(t, []string{"peanuts"}, allergies.StringList())

	_, gate, err := recipe.Current(store)
	require.NoError(t, err)
	assert.Equal(t, recipe.NoRecipe, gate)
}

func TestInitialize_Idempotent(t *testing.T) {
	doc := profile.Default()
	store := state.NewStore(nil)
	ini := newInitializer()
	ctx := context.Background()

	ok, err := ini.Initialize(ctx, store, doc)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = store.AppendUnique(state.KeyAllergies, state.String("sesame"))
	require.NoError(t, err)
	before := store.Snapshot()

	ok, err = ini.Initialize(ctx, store, doc)
	require.NoError(t, err)
	assert.False(t, ok)

	after := store.Snapshot()
	require.Len(t, after, len(before))
	for k, v := range before {
		assert.Truef(t, v.Equal(after[k]), "key %s changed", k)
	}
}

func TestInitialize_NoAliasing(t *testing.T) {
	doc := profile.Default()
	store := state.NewStore(nil)

	_, err := newInitializer().Initialize(context.Background(), store, doc)
	require.NoError(t, err)

	_, err = store.AppendUnique(state.KeyAllergies, state.String("shellfish"))
	require.NoError(t, err)
	require.NoError(t, store.Set(state.KeyRecipe, recipe.Record{Name: "changed"}.Value()))

	allergies, _ := doc.Field(state.KeyAllergies)
	assert.Equal(t, 0, allergies.Len())

	rv, _ := doc.Field(state.KeyRecipe)
	assert.Equal(t, "", rv.Text(recipe.FieldName))

	other := state.NewStore(nil)
	_, err = newInitializer().Initialize(context.Background(), other, doc)
	require.NoError(t, err)
	fresh, _ := other.Get(state.KeyAllergies)
	assert.Equal(t, 0, fresh.Len())
}

func TestInitialize_KeepsExistingKeys(t *testing.T) {
	store := state.NewStore(nil)
	require.NoError(t, store.Set(state.KeyCity, state.String("Denver")))
	require.NoError(t, store.Set(state.KeySystemTime, state.String("earlier")))

	doc, err := profile.Parse([]byte(sampleJSON), profile.FormatJSON)
	require.NoError(t, err)

	_, err = newInitializer().Initialize(context.Background(), store, doc)
	require.NoError(t, err)

	city, _ := store.Get(state.KeyCity)
	assert.Equal(t, "Denver", city.Describe())
	ts, _ := store.Get(state.KeySystemTime)
	assert.Equal(t, "earlier", ts.Describe())
}

func TestInitialize_RejectsNonRecord(t *testing.T) {
	_, err := newInitializer().Initialize(context.Background(), state.NewStore(nil), state.Strings("x"))
	assert.ErrorIs(t, err, profile.ErrMalformedDocument)
}

func TestLoadDocument(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))

	doc, err := profile.LoadDocument(path)
	require.NoError(t, err)
	assert.Equal(t, "Austin", doc.Text(state.KeyCity))

	_, err = profile.LoadDocument(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestSource_Default(t *testing.T) {
	src, err := profile.NewSource("", nil)
	require.NoError(t, err)
	assert.Equal(t, "", src.Path())
	assert.True(t, src.Document().IsRecord())
	assert.NoError(t, src.Watch(context.Background()))
	assert.NoError(t, src.Close())
}

func TestSource_Watch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "profile.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleJSON), 0o644))

	src, err := profile.NewSource(path, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, src.Watch(ctx))
	defer src.Close()

	updated := []byte(`{"state": {"city": "Boise", "current_recipe": {"name": "", "source_url": "", "ingredients": [], "instructions": [], "prep_time": "", "cook_time": "", "servings": "", "is_verified": false}}}`)
	require.NoError(t, os.WriteFile(path, updated, 0o644))

	assert.Eventually(t, func() bool {
		return src.Document().Text(state.KeyCity) == "Boise"
	}, 2*time.Second, 20*time.Millisecond)
}

func TestSource_InvalidEditKeepsPrevious(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "profile.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleJSON), 0o644))

	src, err := profile.NewSource(path, nil)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte(`{"state": {}}`), 0o644))
	assert.ErrorIs(t, src.Reload(context.Background()), profile.ErrMalformedDocument)
	assert.Equal(t, "Austin", src.Document().Text(state.KeyCity))
}
