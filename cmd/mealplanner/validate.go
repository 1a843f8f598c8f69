package main

import (
	"fmt"

	"github.com/tailored-agentic-units/mealplanner/profile"
	"github.com/tailored-agentic-units/mealplanner/recipe"
	"github.com/tailored-agentic-units/mealplanner/state"
)

func (c *ValidateProfileCmd) Run(*Globals) error {
	st := newStyles()

	doc, err := profile.LoadDocument(c.Path)
	if err != nil {
		fmt.Println(st.err.Render("invalid") + " " + err.Error())
		return err
	}

	recipeValue, _ := doc.Field(state.KeyRecipe)
	rec, err := recipe.FromValue(recipeValue)
	if err != nil {
		return err
	}
	gate, err := recipe.GateOf(rec)
	if err != nil {
		return err
	}

	fmt.Printf("%s %s: %d keys, recipe gate %s\n", st.ok.Render("valid"), c.Path, len(doc.Keys()), gate)
	return nil
}
