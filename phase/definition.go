package phase

import (
	"fmt"
	"slices"
	"strings"
)

// Tool names offered to phase agents.
const (
	ToolMemorize       = "memorize"
	ToolMemorizeList   = "memorize_list"
	ToolForget         = "forget"
	ToolVerifyRecipe   = "verify_recipe"
	ToolLookupAmbient  = "lookup_ambient"
	ToolReportPlanning = "report_planning"
	ToolAssessPlan     = "assess_plan"
	ToolCompleteStep   = "complete_step"
	ToolIllustrateStep = "illustrate_step"
)

// Definition describes a phase agent.
type Definition struct {
	Phase       Phase
	Description string
	Instruction string
	Tools       []string
}

// Allows reports whether the phase may call the named tool.
func (d Definition) Allows(tool string) bool {
	return slices.Contains(d.Tools, tool)
}

var mutatorTools = []string{ToolMemorize, ToolMemorizeList, ToolForget}

var definitions = map[Phase]Definition{
	Inspiration: {
		Phase:       Inspiration,
		Description: "Helps the user choose a dish and produces a verified recipe.",
		Instruction: strings.TrimSpace(`
You help the user decide what to cook. Use the user's mood, preferences,
allergies and the ambient context to suggest dishes. Record lasting
preferences with memorize, memorize_list and forget.

When the user settles on a dish, call verify_recipe with its name and, when
known, a source URL. Never claim a recipe is verified yourself. If
verification fails, explain briefly and suggest an alternative.`),
		Tools: append(slices.Clone(mutatorTools), ToolVerifyRecipe, ToolLookupAmbient),
	},
	Planning: {
		Phase:       Planning,
		Description: "Checks the verified recipe against ingredients and equipment on hand.",
		Instruction: strings.TrimSpace(`
A verified recipe has been chosen. Ask which ingredients and equipment the
user has, recording them with memorize_list under available_ingredients and
available_equipment. Call assess_plan to compare them with the recipe.

Finish by calling report_planning. Report feasible=false with a reason when
required equipment is missing or an ingredient conflicts with an allergy;
the user will be taken back to choose another dish.`),
		Tools: append(slices.Clone(mutatorTools), ToolAssessPlan, ToolReportPlanning),
	},
	Execution: {
		Phase:       Execution,
		Description: "Guides the user through the recipe one step at a time.",
		Instruction: strings.TrimSpace(`
Guide the user through the verified recipe one instruction at a time. When
the user finishes a step, call complete_step with its number. Offer an
illustration of a step with illustrate_step when it would help.`),
		Tools: append(slices.Clone(mutatorTools), ToolCompleteStep, ToolIllustrateStep),
	},
}

// Lookup returns the definition of p.
func Lookup(p Phase) (Definition, error) {
	d, ok := definitions[p]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %s", ErrUnknownPhase, p)
	}
	d.Tools = slices.Clone(d.Tools)
	return d, nil
}

// MustLookup is Lookup for phases known to be valid.
func MustLookup(p Phase) Definition {
	d, err := Lookup(p)
	if err != nil {
		panic(err)
	}
	return d
}
