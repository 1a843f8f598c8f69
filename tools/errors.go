package tools

import "errors"

// Sentinel errors for tool decoding and dispatch.
var (
	ErrUnknownTool      = errors.New("unknown tool")
	ErrInvalidArguments = errors.New("invalid tool arguments")
	ErrToolNotAllowed   = errors.New("tool not allowed in this phase")
	ErrReservedKey      = errors.New("key is managed by the workflow")
)
