// Package server hosts conversation turns over Connect RPC. Requests and
// responses are google.protobuf.Struct messages, so any Connect, gRPC-Web
// or plain JSON-over-HTTP client can call it without generated stubs.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/tailored-agentic-units/mealplanner/agent"
	"github.com/tailored-agentic-units/mealplanner/kernel"
	"github.com/tailored-agentic-units/mealplanner/observability"
)

const (
	ServiceName = "mealplanner.v1.ConversationService"

	TurnProcedure       = "/" + ServiceName + "/Turn"
	NewSessionProcedure = "/" + ServiceName + "/NewSession"
)

const (
	EventRequest observability.EventType = "server.request"
	EventError   observability.EventType = "server.error"
)

// Runtime runs turns. *kernel.Kernel satisfies it.
type Runtime interface {
	NewSession(ctx context.Context) (string, error)
	Turn(ctx context.Context, sessionID string, in kernel.Input) (*kernel.Result, error)
}

// Server exposes a Runtime as a Connect service.
type Server struct {
	runtime  Runtime
	observer observability.Observer
}

// New creates a Server.
func New(runtime Runtime, observer observability.Observer) *Server {
	return &Server{runtime: runtime, observer: observability.OrNoOp(observer)}
}

// Handler returns the HTTP handler serving both procedures.
func (s *Server) Handler(opts ...connect.HandlerOption) http.Handler {
	mux := http.NewServeMux()
	mux.Handle(TurnProcedure, connect.NewUnaryHandler(TurnProcedure, s.turn, opts...))
	mux.Handle(NewSessionProcedure, connect.NewUnaryHandler(NewSessionProcedure, s.newSession, opts...))
	return mux
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdown)
	}
}

func (s *Server) newSession(ctx context.Context, _ *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	s.emit(ctx, EventRequest, observability.LevelVerbose, map[string]any{"procedure": NewSessionProcedure})

	id, err := s.runtime.NewSession(ctx)
	if err != nil {
		return nil, s.fail(ctx, NewSessionProcedure, err)
	}
	msg, err := structpb.NewStruct(map[string]any{"session_id": id})
	if err != nil {
		return nil, s.fail(ctx, NewSessionProcedure, err)
	}
	return connect.NewResponse(msg), nil
}

func (s *Server) turn(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	fields := req.Msg.GetFields()
	sessionID := fields["session_id"].GetStringValue()
	in := kernel.Input{
		Message: fields["message"].GetStringValue(),
		Restart: fields["restart"].GetBoolValue(),
	}

	s.emit(ctx, EventRequest, observability.LevelVerbose, map[string]any{
		"procedure":  TurnProcedure,
		"session_id": sessionID,
	})

	result, err := s.runtime.Turn(ctx, sessionID, in)
	if err != nil {
		return nil, s.fail(ctx, TurnProcedure, err)
	}

	msg, err := EncodeResult(result)
	if err != nil {
		return nil, s.fail(ctx, TurnProcedure, err)
	}
	return connect.NewResponse(msg), nil
}

func (s *Server) fail(ctx context.Context, procedure string, err error) error {
	code := CodeOf(err)
	s.emit(ctx, EventError, observability.LevelWarning, map[string]any{
		"procedure": procedure,
		"code":      code.String(),
		"error":     err.Error(),
	})
	return connect.NewError(code, err)
}

func (s *Server) emit(ctx context.Context, typ observability.EventType, level observability.Level, data map[string]any) {
	observability.Emit(ctx, s.observer, typ, level, "server", data)
}

// CodeOf maps runtime errors to Connect codes.
func CodeOf(err error) connect.Code {
	switch {
	case errors.Is(err, kernel.ErrEmptyMessage):
		return connect.CodeInvalidArgument
	case errors.Is(err, context.DeadlineExceeded):
		return connect.CodeDeadlineExceeded
	case errors.Is(err, context.Canceled):
		return connect.CodeCanceled
	case errors.Is(err, agent.ErrAgentNotFound), errors.Is(err, agent.ErrMissingModel):
		return connect.CodeFailedPrecondition
	case errors.Is(err, kernel.ErrMaxIterations):
		return connect.CodeResourceExhausted
	default:
		return connect.CodeInternal
	}
}

// EncodeResult converts a turn result into the response message.
func EncodeResult(r *kernel.Result) (*structpb.Struct, error) {
	if r == nil {
		return nil, fmt.Errorf("nil turn result")
	}

	calls := make([]any, len(r.ToolCalls))
	for i, tc := range r.ToolCalls {
		calls[i] = map[string]any{
			"id":        tc.ID,
			"name":      tc.Name,
			"iteration": tc.Iteration,
			"status":    tc.Status,
			"is_error":  tc.IsError,
			"result":    tc.Result,
		}
	}

	fields := map[string]any{
		"session_id": r.SessionID,
		"phase":      string(r.Phase),
		"previous":   string(r.Previous),
		"rule":       r.Rule,
		"response":   r.Response,
		"iterations": r.Iterations,
		"tool_calls": calls,
	}
	if r.Handoff != nil {
		fields["handoff"] = map[string]any{
			"from":   string(r.Handoff.From),
			"to":     string(r.Handoff.To),
			"reason": r.Handoff.Reason,
			"recipe": r.Handoff.Recipe.Name,
		}
	}
	return structpb.NewStruct(fields)
}
