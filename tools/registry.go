package tools

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/tailored-agentic-units/mealplanner/core/protocol"
	"github.com/tailored-agentic-units/mealplanner/phase"
	"github.com/tailored-agentic-units/mealplanner/state"
)

type decoder func(args json.RawMessage) (Command, error)

type entry struct {
	tool   protocol.Tool
	decode decoder
}

var registry = map[string]entry{
	phase.ToolMemorize: {
		tool: protocol.Tool{
			Name:        phase.ToolMemorize,
			Description: "Store a single value under a key, replacing what was there.",
			Parameters: protocol.ObjectSchema(map[string]any{
				"key":   protocol.Property("string", "State key, for example current_mood or city"),
				"value": map[string]any{"description": "Value to store: string, number, boolean, list or object"},
			}, "key", "value"),
		},
		decode: decodeKeyValue(func(key string, v state.Value) Command { return SetState{Key: key, Value: v} }, false),
	},
	phase.ToolMemorizeList: {
		tool: protocol.Tool{
			Name:        phase.ToolMemorizeList,
			Description: "Add a value to a list under a key, such as allergies or available_equipment. Duplicates are ignored.",
			Parameters: protocol.ObjectSchema(map[string]any{
				"key":   protocol.Property("string", "List key"),
				"value": protocol.Property("string", "Value to add"),
			}, "key", "value"),
		},
		decode: decodeKeyValue(func(key string, v state.Value) Command { return AppendUnique{Key: key, Value: v} }, true),
	},
	phase.ToolForget: {
		tool: protocol.Tool{
			Name:        phase.ToolForget,
			Description: "Remove a value from a list under a key.",
			Parameters: protocol.ObjectSchema(map[string]any{
				"key":   protocol.Property("string", "List key"),
				"value": protocol.Property("string", "Value to remove"),
			}, "key", "value"),
		},
		decode: decodeKeyValue(func(key string, v state.Value) Command { return RemoveValue{Key: key, Value: v} }, true),
	},
	phase.ToolVerifyRecipe: {
		tool: protocol.Tool{
			Name:        phase.ToolVerifyRecipe,
			Description: "Verify a recipe against a trusted source and record it as the current recipe.",
			Parameters: protocol.ObjectSchema(map[string]any{
				"name":        protocol.Property("string", "Dish name"),
				"source_url":  protocol.Property("string", "Source URL, when known"),
				"description": protocol.Property("string", "Short description of the dish"),
			}, "name"),
		},
		decode: decodeCapability(phase.ToolVerifyRecipe, "name"),
	},
	phase.ToolLookupAmbient: {
		tool: protocol.Tool{
			Name:        phase.ToolLookupAmbient,
			Description: "Look up current conditions such as weather for the user's location. Defaults to the stored city and country.",
			Parameters: protocol.ObjectSchema(map[string]any{
				"city":    protocol.Property("string", "City"),
				"country": protocol.Property("string", "Country"),
			}),
		},
		decode: decodeCapability(phase.ToolLookupAmbient),
	},
	phase.ToolIllustrateStep: {
		tool: protocol.Tool{
			Name:        phase.ToolIllustrateStep,
			Description: "Generate an illustration for a recipe step.",
			Parameters: protocol.ObjectSchema(map[string]any{
				"step":   protocol.Property("integer", "Step number, starting at 1"),
				"prompt": protocol.Property("string", "Optional description of the image"),
			}, "step"),
		},
		decode: decodeCapability(phase.ToolIllustrateStep, "step"),
	},
	phase.ToolAssessPlan: {
		tool: protocol.Tool{
			Name:        phase.ToolAssessPlan,
			Description: "Compare the verified recipe with the user's ingredients, equipment and allergies.",
			Parameters:  protocol.ObjectSchema(map[string]any{}),
		},
		decode: func(json.RawMessage) (Command, error) { return AssessPlan{}, nil },
	},
	phase.ToolReportPlanning: {
		tool: protocol.Tool{
			Name:        phase.ToolReportPlanning,
			Description: "Report whether the verified recipe can be cooked. Infeasible plans return the user to choosing a dish.",
			Parameters: protocol.ObjectSchema(map[string]any{
				"feasible": protocol.Property("boolean", "Whether the recipe can be cooked"),
				"reason":   protocol.Property("string", "Why, when infeasible"),
				"missing": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "Ingredients to buy",
				},
			}, "feasible"),
		},
		decode: decodeReportPlanning,
	},
	phase.ToolCompleteStep: {
		tool: protocol.Tool{
			Name:        phase.ToolCompleteStep,
			Description: "Mark a recipe step as done.",
			Parameters: protocol.ObjectSchema(map[string]any{
				"step": protocol.Property("integer", "Step number, starting at 1"),
			}, "step"),
		},
		decode: decodeCompleteStep,
	},
}

// Definition returns the definition of the named tool.
func Definition(name string) (protocol.Tool, bool) {
	e, ok := registry[name]
	return e.tool, ok
}

// Definitions returns every tool definition, sorted by name.
func Definitions() []protocol.Tool {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]protocol.Tool, 0, len(names))
	for _, name := range names {
		out = append(out, registry[name].tool)
	}
	return out
}

// Decode converts a tool call into a Command.
func Decode(call protocol.ToolCall) (Command, error) {
	e, ok := registry[call.Name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, call.Name)
	}
	args := json.RawMessage(strings.TrimSpace(call.Arguments))
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	cmd, err := e.decode(args)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidArguments, call.Name, err)
	}
	return cmd, nil
}

func decodeKeyValue(build func(string, state.Value) Command, scalar bool) decoder {
	return func(args json.RawMessage) (Command, error) {
		var in struct {
			Key   string          `json:"key"`
			Value json.RawMessage `json:"value"`
		}
		if err := json.Unmarshal(args, &in); err != nil {
			return nil, err
		}
		key := strings.TrimSpace(in.Key)
		if key == "" {
			return nil, fmt.Errorf("key is required")
		}
		if len(in.Value) == 0 {
			return nil, fmt.Errorf("value is required")
		}
		var v state.Value
		if err := json.Unmarshal(in.Value, &v); err != nil {
			return nil, err
		}
		if scalar {
			switch v.Kind() {
			case state.KindString, state.KindNumber, state.KindBool:
			default:
				return nil, fmt.Errorf("value must be a string, number or boolean, got %s", v.Kind())
			}
		}
		return build(key, v), nil
	}
}

func decodeCapability(kind string, required ...string) decoder {
	return func(args json.RawMessage) (Command, error) {
		var v state.Value
		if err := json.Unmarshal(args, &v); err != nil {
			return nil, err
		}
		if !v.IsRecord() {
			return nil, fmt.Errorf("arguments must be an object")
		}
		for _, field := range required {
			f, ok := v.Field(field)
			if !ok || f.IsNull() {
				return nil, fmt.Errorf("%s is required", field)
			}
		}
		return CallCapability{Kind: kind, Args: v}, nil
	}
}

func decodeReportPlanning(args json.RawMessage) (Command, error) {
	var in struct {
		Feasible *bool    `json:"feasible"`
		Reason   string   `json:"reason"`
		Missing  []string `json:"missing"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, err
	}
	if in.Feasible == nil {
		return nil, fmt.Errorf("feasible is required")
	}
	return ReportPlanning{
		Feasible: *in.Feasible,
		Reason:   strings.TrimSpace(in.Reason),
		Missing:  in.Missing,
	}, nil
}

func decodeCompleteStep(args json.RawMessage) (Command, error) {
	var in struct {
		Step json.Number `json:"step"`
	}
	dec := json.NewDecoder(bytes.NewReader(args))
	dec.UseNumber()
	if err := dec.Decode(&in); err != nil {
		return nil, err
	}
	step, err := in.Step.Int64()
	if err != nil {
		return nil, fmt.Errorf("step must be an integer")
	}
	if step < 1 {
		return nil, fmt.Errorf("step must be at least 1")
	}
	return CompleteStep{Step: int(step)}, nil
}
