package kernel

import (
	"errors"
	"fmt"
)

var (
	// ErrMaxIterations is returned by Turn when the agent loop exhausts its
	// iteration budget without the agent producing a final response.
	ErrMaxIterations = errors.New("max iterations reached")
	ErrEmptyMessage  = errors.New("message is empty")
)

// Turn stages reported by TurnError.
const (
	StageSession   = "session"
	StageBootstrap = "bootstrap"
	StageRoute     = "route"
	StageAgent     = "agent"
	StagePersist   = "persist"
)

// TurnError records where a turn failed.
type TurnError struct {
	SessionID string
	Stage     string
	Err       error
}

func (e *TurnError) Error() string {
	return fmt.Sprintf("turn failed at %s for session %s: %v", e.Stage, e.SessionID, e.Err)
}

func (e *TurnError) Unwrap() error {
	return e.Err
}
