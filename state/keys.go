package state

// Well-known store keys.
const (
	KeySystemTime    = "system_time"  // string, RFC3339
	KeyProfileMarker = "user_profile" // bool, bootstrap marker
	KeyRecipe        = "current_recipe"

	// Preferences
	KeyCurrentMood        = "current_mood"
	KeyCity               = "city"
	KeyCountry            = "country"
	KeyAllergies          = "allergies"           // list
	KeyDislikes           = "dislikes"            // list
	KeyDietaryPreferences = "dietary_preferences" // list
	KeySpiceTolerance     = "spice_tolerance"
	KeySweetPreference    = "sweet_preference"
	KeySaltPreference     = "salt_preference"
	KeyCookingSkill       = "cooking_skill_level"
	KeyEquipment          = "available_equipment" // list
	KeyAppliances         = "cooking_appliances"  // list
	KeyUtensils           = "utensils"            // list

	// Workflow
	KeyRejectionReason      = "rejection_reason"
	KeyAmbientContext       = "ambient_context" // record
	KeyPlanningStatus       = "planning_status" // "", feasible, infeasible
	KeyPlanningReason       = "planning_reason"
	KeyAvailableIngredients = "available_ingredients" // list
	KeyMissingIngredients   = "missing_ingredients"   // list
	KeyShoppingList         = "shopping_list"         // list
	KeyExecutionStatus      = "execution_status"      // "", in_progress, complete
	KeyExecutionStep        = "execution_step"        // number, next step starting at 1
	KeyCompletedSteps       = "completed_steps"       // list of numbers
	KeyIllustrations        = "illustrations"         // list of artifact ids
)

// PlanningKeys are cleared whenever a new recipe is proposed.
var PlanningKeys = []string{
	KeyPlanningStatus,
	KeyPlanningReason,
	KeyMissingIngredients,
	KeyShoppingList,
}

// ExecutionKeys are cleared whenever execution restarts.
var ExecutionKeys = []string{
	KeyExecutionStatus,
	KeyExecutionStep,
	KeyCompletedSteps,
	KeyIllustrations,
}
