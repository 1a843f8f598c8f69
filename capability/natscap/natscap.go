// Package natscap reaches meal-planner capabilities over NATS request/reply.
//
// Requests are JSON published to <prefix>.verify, <prefix>.ambient and
// <prefix>.illustrate. Responders answer with an envelope holding either a
// result or an error message. Serve registers such responders for any
// capability implementation.
package natscap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/tailored-agentic-units/mealplanner/capability"
)

// Subject suffixes.
const (
	SubjectVerify     = "verify"
	SubjectAmbient    = "ambient"
	SubjectIllustrate = "illustrate"
)

// Envelope is the reply payload.
type Envelope struct {
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// Client implements capability.Verifier, capability.AmbientSource and
// capability.Illustrator over a NATS connection.
type Client struct {
	nc     *nats.Conn
	prefix string
	owned  bool
}

// New wraps an existing connection. The caller keeps ownership of nc.
func New(nc *nats.Conn, prefix string) *Client {
	return &Client{nc: nc, prefix: prefix}
}

// Connect dials url and returns a Client that closes the connection on Close.
func Connect(url, prefix string, opts ...nats.Option) (*Client, error) {
	opts = append([]nats.Option{nats.Name("mealplanner")}, opts...)
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	return &Client{nc: nc, prefix: prefix, owned: true}, nil
}

// Close drains the connection when the Client owns it.
func (c *Client) Close() error {
	if c.owned && c.nc != nil {
		return c.nc.Drain()
	}
	return nil
}

// Conn returns the underlying connection.
func (c *Client) Conn() *nats.Conn { return c.nc }

// Subject returns the full subject for a suffix.
func (c *Client) Subject(suffix string) string {
	return Subject(c.prefix, suffix)
}

// Subject joins a prefix and suffix.
func Subject(prefix, suffix string) string {
	if prefix == "" {
		return suffix
	}
	return prefix + "." + suffix
}

func (c *Client) Verify(ctx context.Context, candidate capability.Candidate) (capability.Verification, error) {
	var out capability.Verification
	err := c.request(ctx, SubjectVerify, candidate, &out)
	return out, err
}

func (c *Client) Lookup(ctx context.Context, location capability.Location) (capability.Ambient, error) {
	var out capability.Ambient
	err := c.request(ctx, SubjectAmbient, location, &out)
	return out, err
}

func (c *Client) Illustrate(ctx context.Context, prompt string) (capability.Illustration, error) {
	var out capability.Illustration
	err := c.request(ctx, SubjectIllustrate, illustrateRequest{Prompt: prompt}, &out)
	return out, err
}

type illustrateRequest struct {
	Prompt string `json:"prompt"`
}

func (c *Client) request(ctx context.Context, suffix string, in, out any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", suffix, err)
	}

	msg, err := c.nc.RequestWithContext(ctx, c.Subject(suffix), data)
	if err != nil {
		return fmt.Errorf("request %s: %w", suffix, err)
	}

	return DecodeReply(msg.Data, out)
}

// DecodeReply unpacks an envelope into out.
func DecodeReply(data []byte, out any) error {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("decode reply: %w", err)
	}
	if env.Error != "" {
		return errors.New(env.Error)
	}
	if len(env.Result) == 0 {
		return errors.New("empty reply")
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	return nil
}

// EncodeReply builds an envelope from a result or an error.
func EncodeReply(result any, err error) []byte {
	if err != nil {
		data, _ := json.Marshal(Envelope{Error: err.Error()})
		return data
	}
	raw, mErr := json.Marshal(result)
	if mErr != nil {
		data, _ := json.Marshal(Envelope{Error: mErr.Error()})
		return data
	}
	data, _ := json.Marshal(Envelope{Result: raw})
	return data
}
