package kernel

import "github.com/tailored-agentic-units/mealplanner/observability"

// Kernel event types emitted during a turn.
const (
	EventTurnStart      observability.EventType = "kernel.turn.start"
	EventTurnComplete   observability.EventType = "kernel.turn.complete"
	EventBootstrap      observability.EventType = "kernel.bootstrap"
	EventIterationStart observability.EventType = "kernel.iteration.start"
	EventToolCall       observability.EventType = "kernel.tool.call"
	EventToolComplete   observability.EventType = "kernel.tool.complete"
	EventResponse       observability.EventType = "kernel.response"
	EventError          observability.EventType = "kernel.error"
)
