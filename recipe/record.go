// Package recipe owns the current-recipe record and the verification gate
// that decides whether a session may leave inspiration.
//
// The gate has three states derived from the stored record:
//
//	NO_RECIPE  record absent or not populated
//	PROPOSED   populated, is_verified false
//	VERIFIED   populated, is_verified true, status "verified"
//
// Only Verify moves PROPOSED to VERIFIED, and only Reset moves VERIFIED back.
package recipe

import (
	"fmt"
	"strings"

	"github.com/tailored-agentic-units/mealplanner/state"
)

// Field names inside the stored record.
const (
	FieldName               = "name"
	FieldSourceURL          = "source_url"
	FieldIngredients        = "ingredients"
	FieldInstructions       = "instructions"
	FieldPrepTime           = "prep_time"
	FieldCookTime           = "cook_time"
	FieldServings           = "servings"
	FieldVerificationStatus = "verification_status"
	FieldIsVerified         = "is_verified"
)

// Verification status labels.
const (
	StatusNone     = ""
	StatusPending  = "pending"
	StatusVerified = "verified"
	StatusFailed   = "failed"
	StatusRejected = "rejected"
)

// Record is the typed form of the current_recipe value.
type Record struct {
	Name               string
	SourceURL          string
	Ingredients        []string
	Instructions       []string
	PrepTime           string
	CookTime           string
	Servings           string
	VerificationStatus string
	IsVerified         bool
}

// Populated reports whether the record names a source and carries both
// ingredients and instructions.
func (r Record) Populated() bool {
	return strings.TrimSpace(r.SourceURL) != "" && len(r.Ingredients) > 0 && len(r.Instructions) > 0
}

// Value converts the record into a state record.
func (r Record) Value() state.Value {
	return state.Record(map[string]state.Value{
		FieldName:               state.String(r.Name),
		FieldSourceURL:          state.String(r.SourceURL),
		FieldIngredients:        state.Strings(r.Ingredients...),
		FieldInstructions:       state.Strings(r.Instructions...),
		FieldPrepTime:           state.String(r.PrepTime),
		FieldCookTime:           state.String(r.CookTime),
		FieldServings:           state.String(r.Servings),
		FieldVerificationStatus: state.String(r.VerificationStatus),
		FieldIsVerified:         state.Bool(r.IsVerified),
	})
}

// Summary is a one-line description for prompts and logs.
func (r Record) Summary() string {
	if r.Name == "" {
		return "no recipe selected"
	}
	status := r.VerificationStatus
	if status == "" {
		status = "unverified"
	}
	return fmt.Sprintf("%s (%s, %d ingredients, %d steps)", r.Name, status, len(r.Ingredients), len(r.Instructions))
}

// FromValue decodes a stored record. Missing fields take their zero value;
// fields of the wrong kind are rejected. Numbers are accepted for the time
// and servings fields.
func FromValue(v state.Value) (Record, error) {
	if !v.IsRecord() {
		return Record{}, fmt.Errorf("%w: current_recipe holds %s", ErrMalformedRecord, v.Kind())
	}

	var r Record
	var err error
	text := func(field string) string {
		f, ok := v.Field(field)
		if !ok || f.IsNull() || err != nil {
			return ""
		}
		if s, ok := f.AsString(); ok {
			return s
		}
		if f.Kind() == state.KindNumber {
			return f.Describe()
		}
		err = fmt.Errorf("%w: %s must be a string", ErrMalformedRecord, field)
		return ""
	}
	list := func(field string) []string {
		f, ok := v.Field(field)
		if !ok || f.IsNull() || err != nil {
			return nil
		}
		items, ok := f.AsList()
		if !ok {
			err = fmt.Errorf("%w: %s must be a list", ErrMalformedRecord, field)
			return nil
		}
		out := make([]string, 0, len(items))
		for _, item := range items {
			out = append(out, item.Describe())
		}
		return out
	}

	r.Name = text(FieldName)
	r.SourceURL = text(FieldSourceURL)
	r.Ingredients = list(FieldIngredients)
	r.Instructions = list(FieldInstructions)
	r.PrepTime = text(FieldPrepTime)
	r.CookTime = text(FieldCookTime)
	r.Servings = text(FieldServings)
	r.VerificationStatus = text(FieldVerificationStatus)
	if f, ok := v.Field(FieldIsVerified); ok && !f.IsNull() && err == nil {
		b, ok := f.AsBool()
		if !ok {
			err = fmt.Errorf("%w: is_verified must be a bool", ErrMalformedRecord)
		}
		r.IsVerified = b
	}
	if err != nil {
		return Record{}, err
	}
	return r, nil
}

// Load reads the record from the store. An absent key yields the empty
// record.
func Load(store *state.Store) (Record, error) {
	v, ok := store.Get(state.KeyRecipe)
	if !ok {
		return Record{}, nil
	}
	return FromValue(v)
}
