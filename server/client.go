package server

import (
	"context"
	"strings"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/tailored-agentic-units/mealplanner/kernel"
)

// Reply is the decoded Turn response.
type Reply struct {
	SessionID  string
	Phase      string
	Previous   string
	Rule       string
	Response   string
	Iterations int
	Handoff    *HandoffReply
	ToolCalls  []ToolCallReply
}

type HandoffReply struct {
	From   string
	To     string
	Reason string
	Recipe string
}

type ToolCallReply struct {
	ID        string
	Name      string
	Iteration int
	Status    string
	IsError   bool
	Result    string
}

// Client calls a remote ConversationService.
type Client struct {
	turn       *connect.Client[structpb.Struct, structpb.Struct]
	newSession *connect.Client[structpb.Struct, structpb.Struct]
}

// NewClient creates a client for the service at baseURL.
func NewClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	return &Client{
		turn:       connect.NewClient[structpb.Struct, structpb.Struct](httpClient, baseURL+TurnProcedure, opts...),
		newSession: connect.NewClient[structpb.Struct, structpb.Struct](httpClient, baseURL+NewSessionProcedure, opts...),
	}
}

// NewSession creates a remote session and returns its id.
func (c *Client) NewSession(ctx context.Context) (string, error) {
	resp, err := c.newSession.CallUnary(ctx, connect.NewRequest(&structpb.Struct{}))
	if err != nil {
		return "", err
	}
	return resp.Msg.GetFields()["session_id"].GetStringValue(), nil
}

// Turn sends one message.
func (c *Client) Turn(ctx context.Context, sessionID string, in kernel.Input) (*Reply, error) {
	msg, err := structpb.NewStruct(map[string]any{
		"session_id": sessionID,
		"message":    in.Message,
		"restart":    in.Restart,
	})
	if err != nil {
		return nil, err
	}
	resp, err := c.turn.CallUnary(ctx, connect.NewRequest(msg))
	if err != nil {
		return nil, err
	}
	return DecodeReply(resp.Msg), nil
}

// ReplyOf converts an in-process turn result into a Reply.
func ReplyOf(r *kernel.Result) *Reply {
	msg, err := EncodeResult(r)
	if err != nil {
		return &Reply{}
	}
	return DecodeReply(msg)
}

// DecodeReply reads a Turn response message. Missing fields decode as zero
// values.
func DecodeReply(msg *structpb.Struct) *Reply {
	f := msg.GetFields()
	r := &Reply{
		SessionID:  f["session_id"].GetStringValue(),
		Phase:      f["phase"].GetStringValue(),
		Previous:   f["previous"].GetStringValue(),
		Rule:       f["rule"].GetStringValue(),
		Response:   f["response"].GetStringValue(),
		Iterations: int(f["iterations"].GetNumberValue()),
	}

	if h := f["handoff"].GetStructValue(); h != nil {
		hf := h.GetFields()
		r.Handoff = &HandoffReply{
			From:   hf["from"].GetStringValue(),
			To:     hf["to"].GetStringValue(),
			Reason: hf["reason"].GetStringValue(),
			Recipe: hf["recipe"].GetStringValue(),
		}
	}

	for _, v := range f["tool_calls"].GetListValue().GetValues() {
		tf := v.GetStructValue().GetFields()
		r.ToolCalls = append(r.ToolCalls, ToolCallReply{
			ID:        tf["id"].GetStringValue(),
			Name:      tf["name"].GetStringValue(),
			Iteration: int(tf["iteration"].GetNumberValue()),
			Status:    tf["status"].GetStringValue(),
			IsError:   tf["is_error"].GetBoolValue(),
			Result:    tf["result"].GetStringValue(),
		})
	}
	return r
}
