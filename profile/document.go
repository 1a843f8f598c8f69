// Package profile loads bootstrap documents and seeds new sessions with
// them.
//
// A bootstrap document has a single top-level "state" object holding the
// user's default preferences and an empty current_recipe. Documents may be
// JSON or YAML and are checked against an embedded CUE schema before use.
package profile

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/tailored-agentic-units/mealplanner/recipe"
	"github.com/tailored-agentic-units/mealplanner/state"
)

// ErrMalformedDocument is returned for bootstrap documents that cannot be
// parsed or do not match the schema. It is fatal to session start.
var ErrMalformedDocument = errors.New("malformed bootstrap document")

//go:embed default.json
var defaultDocument []byte

//go:embed schema.cue
var schemaSource string

// Format is a document encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatOf picks the format from a file extension. Unknown extensions are
// treated as JSON.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Default returns the embedded default document's state record.
func Default() state.Value {
	doc, err := Parse(defaultDocument, FormatJSON)
	if err != nil {
		panic(fmt.Sprintf("embedded default profile: %v", err))
	}
	return doc
}

// LoadDocument reads and validates a bootstrap document file.
func LoadDocument(path string) (state.Value, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return state.Value{}, fmt.Errorf("read bootstrap document: %w", err)
	}
	doc, err := Parse(data, FormatOf(path))
	if err != nil {
		return state.Value{}, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// Parse decodes and validates a document, returning its state record.
func Parse(data []byte, format Format) (state.Value, error) {
	var raw map[string]any
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return state.Value{}, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
		}
	default:
		if err := json.Unmarshal(data, &raw); err != nil {
			return state.Value{}, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
		}
	}

	if err := Validate(raw); err != nil {
		return state.Value{}, err
	}

	doc, err := state.FromAny(raw["state"])
	if err != nil {
		return state.Value{}, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}

	recipeValue, _ := doc.Field(state.KeyRecipe)
	r, err := recipe.FromValue(recipeValue)
	if err != nil {
		return state.Value{}, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	if _, err := recipe.GateOf(r); err != nil {
		return state.Value{}, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}

	return doc, nil
}

// Validate checks decoded document data against the CUE schema.
func Validate(raw map[string]any) error {
	if raw == nil {
		return fmt.Errorf("%w: empty document", ErrMalformedDocument)
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString("close({" + schemaSource + "})")
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile profile schema: %w", err)
	}

	value := ctx.Encode(raw)
	if err := value.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}

	if err := schema.Unify(value).Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	return nil
}
