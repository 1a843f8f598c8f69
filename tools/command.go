// Package tools turns model tool calls into typed commands and applies them
// to session state.
//
// The command set is closed: every tool name decodes into exactly one
// Command type, and the Gateway switches on that type. Tool calls are
// applied one at a time in the order the model requested them.
package tools

import (
	"github.com/tailored-agentic-units/mealplanner/phase"
	"github.com/tailored-agentic-units/mealplanner/state"
)

// Command is one decoded tool call.
type Command interface {
	// Tool returns the tool name the command was decoded from.
	Tool() string
	command()
}

// SetState replaces the value at Key.
type SetState struct {
	Key   string
	Value state.Value
}

// AppendUnique adds Value to the list at Key unless already present.
type AppendUnique struct {
	Key   string
	Value state.Value
}

// RemoveValue removes the first occurrence of Value from the list at Key.
type RemoveValue struct {
	Key   string
	Value state.Value
}

// CallCapability invokes an external capability. Args is a record whose
// fields depend on Kind.
type CallCapability struct {
	Kind string
	Args state.Value
}

// ReportPlanning records the planning verdict.
type ReportPlanning struct {
	Feasible bool
	Reason   string
	Missing  []string
}

// AssessPlan compares the verified recipe with the user's inventory.
type AssessPlan struct{}

// CompleteStep marks a recipe step (1-based) as done.
type CompleteStep struct {
	Step int
}

func (SetState) Tool() string { return phase.ToolMemorize }
func (AppendUnique) Tool() string { return phase.ToolMemorizeList }
func (RemoveValue) Tool() string { return phase.ToolForget }
func (c CallCapability) Tool() string { return c.Kind }
func (ReportPlanning) Tool() string { return phase.ToolReportPlanning }
func (AssessPlan) Tool() string { return phase.ToolAssessPlan }
func (CompleteStep) Tool() string { return phase.ToolCompleteStep }

func (SetState) command() {}
func (AppendUnique) command() {}
func (RemoveValue) command() {}
func (CallCapability) command() {}
func (ReportPlanning) command() {}
func (AssessPlan) command() {}
func (CompleteStep) command() {}
