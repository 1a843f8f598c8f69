package protocol

// Tool defines a function that can be called by the LLM.
// Parameters uses JSON Schema format to describe the function's input.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ObjectSchema builds a JSON Schema object with the given properties and
// required property names.
func ObjectSchema(properties map[string]any, required ...string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// Property builds a single JSON Schema property.
func Property(typ, description string) map[string]any {
	return map[string]any{"type": typ, "description": description}
}
