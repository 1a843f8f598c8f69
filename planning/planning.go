// Package planning checks a verified recipe against what the user has on
// hand: ingredients, equipment and allergies.
package planning

import (
	"fmt"
	"slices"
	"strings"
	"unicode"

	"github.com/tailored-agentic-units/mealplanner/recipe"
	"github.com/tailored-agentic-units/mealplanner/state"
)

// Planning status values stored under state.KeyPlanningStatus.
const (
	StatusFeasible   = "feasible"
	StatusInfeasible = "infeasible"
)

// Inventory is what the user has reported having.
type Inventory struct {
	Ingredients []string
	Equipment   []string
	Allergies   []string
	Dislikes    []string
}

// InventoryOf reads the inventory lists from store. Appliances and utensils
// count as equipment.
func InventoryOf(store *state.Store) Inventory {
	list := func(key string) []string {
		v, _ := store.Get(key)
		return v.StringList()
	}
	return Inventory{
		Ingredients: list(state.KeyAvailableIngredients),
		Equipment: slices.Concat(
			list(state.KeyEquipment),
			list(state.KeyAppliances),
			list(state.KeyUtensils),
		),
		Allergies: list(state.KeyAllergies),
		Dislikes:  list(state.KeyDislikes),
	}
}

// Assessment is the outcome of checking a recipe against an inventory.
type Assessment struct {
	Feasible           bool
	Reason             string
	MissingIngredients []string
	MissingEquipment   []string
	AllergyConflicts   []string
	Disliked           []string
	ShoppingList       []string
}

// Status returns the planning status label for a.
func (a Assessment) Status() string {
	if a.Feasible {
		return StatusFeasible
	}
	return StatusInfeasible
}

// Assess compares r with inv. Missing ingredients go on the shopping list
// and do not make the plan infeasible; missing equipment and allergy
// conflicts do.
func Assess(r recipe.Record, inv Inventory) Assessment {
	var a Assessment

	for _, ingredient := range r.Ingredients {
		if mentions(ingredient, inv.Allergies) {
			a.AllergyConflicts = append(a.AllergyConflicts, ingredient)
		}
		if mentions(ingredient, inv.Dislikes) {
			a.Disliked = append(a.Disliked, ingredient)
		}
		if !stocked(ingredient, inv.Ingredients) {
			a.MissingIngredients = append(a.MissingIngredients, ingredient)
		}
	}
	a.ShoppingList = slices.Clone(a.MissingIngredients)

	for _, need := range RequiredEquipment(r) {
		if !owns(need, inv.Equipment) {
			a.MissingEquipment = append(a.MissingEquipment, need)
		}
	}

	var reasons []string
	if len(a.AllergyConflicts) > 0 {
		reasons = append(reasons, fmt.Sprintf("allergy conflict: %s", strings.Join(a.AllergyConflicts, ", ")))
	}
	if len(a.MissingEquipment) > 0 {
		reasons = append(reasons, fmt.Sprintf("missing equipment: %s", strings.Join(a.MissingEquipment, ", ")))
	}
	a.Feasible = len(reasons) == 0
	a.Reason = strings.Join(reasons, "; ")
	return a
}

// equipmentTerms maps words found in instructions to the equipment they
// need. Longer phrases are listed first so "food processor" wins over
// "process".
var equipmentTerms = []struct {
	term      string
	equipment string
}{
	{"food processor", "food processor"},
	{"slow cooker", "slow cooker"},
	{"pressure cooker", "pressure cooker"},
	{"stand mixer", "stand mixer"},
	{"air fryer", "air fryer"},
	{"oven", "oven"},
	{"bake", "oven"},
	{"roast", "oven"},
	{"broil", "oven"},
	{"blender", "blender"},
	{"blend", "blender"},
	{"grill", "grill"},
	{"wok", "wok"},
	{"microwave", "microwave"},
	{"deep fry", "deep fryer"},
}

// RequiredEquipment lists the equipment r's instructions call for, in
// first-mention order.
func RequiredEquipment(r recipe.Record) []string {
	var out []string
	for _, step := range r.Instructions {
		lower := strings.ToLower(step)
		for _, t := range equipmentTerms {
			if strings.Contains(lower, t.term) && !slices.Contains(out, t.equipment) {
				out = append(out, t.equipment)
			}
		}
	}
	return out
}

// words splits s into lower-case words with simple plurals folded, so
// "Peanuts" and "peanut" compare equal.
func words(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for i, w := range fields {
		fields[i] = singular(w)
	}
	return fields
}

func singular(w string) string {
	switch {
	case len(w) > 4 && strings.HasSuffix(w, "ies"):
		return w[:len(w)-3] + "y"
	case len(w) > 4 && strings.HasSuffix(w, "oes"):
		return w[:len(w)-2]
	case len(w) > 3 && strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss"):
		return w[:len(w)-1]
	}
	return w
}

// containsPhrase reports whether needle occurs as a run of whole words in
// haystack.
func containsPhrase(haystack, needle []string) bool {
	if len(needle) == 0 || len(needle) > len(haystack) {
		return false
	}
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if slices.Equal(haystack[i:i+len(needle)], needle) {
			return true
		}
	}
	return false
}

// mentions reports whether any candidate phrase appears in item. Used for
// allergies and dislikes: "peanuts" is mentioned by "peanut butter".
func mentions(item string, candidates []string) bool {
	w := words(item)
	for _, c := range candidates {
		if containsPhrase(w, words(c)) {
			return true
		}
	}
	return false
}

// stocked reports whether an ingredient and any pantry item name one
// another: "banana" covers "2 ripe bananas" and "milk" is covered by
// "whole milk".
func stocked(ingredient string, pantry []string) bool {
	w := words(ingredient)
	for _, p := range pantry {
		pw := words(p)
		if containsPhrase(w, pw) || containsPhrase(pw, w) {
			return true
		}
	}
	return false
}

// owns reports whether equipment names exactly the item needed. A "dutch
// oven" is not an "oven".
func owns(need string, equipment []string) bool {
	w := words(need)
	for _, e := range equipment {
		if ew := words(e); len(ew) > 0 && slices.Equal(w, ew) {
			return true
		}
	}
	return false
}
