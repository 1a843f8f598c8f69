package state

import "github.com/tailored-agentic-units/mealplanner/observability"

const (
	EventStoreCreate  observability.EventType = "state.create"
	EventStoreSet     observability.EventType = "state.set"
	EventStoreAppend  observability.EventType = "state.append"
	EventStoreRemove  observability.EventType = "state.remove"
	EventStoreDelete  observability.EventType = "state.delete"
	EventStoreRestore observability.EventType = "state.restore"
)
