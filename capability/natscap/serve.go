package natscap

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/tailored-agentic-units/mealplanner/capability"
)

// Providers are the implementations a responder process exposes. Nil
// members are not subscribed.
type Providers struct {
	Verifier    capability.Verifier
	Ambient     capability.AmbientSource
	Illustrator capability.Illustrator
	Timeout     time.Duration
}

// Serve subscribes responders for every non-nil provider under prefix.
func Serve(nc *nats.Conn, prefix string, p Providers) ([]*nats.Subscription, error) {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	var subs []*nats.Subscription
	add := func(suffix string, handle func(context.Context, []byte) []byte) error {
		sub, err := nc.Subscribe(Subject(prefix, suffix), func(msg *nats.Msg) {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			_ = msg.Respond(handle(ctx, msg.Data))
		})
		if err != nil {
			return err
		}
		subs = append(subs, sub)
		return nil
	}

	if p.Verifier != nil {
		if err := add(SubjectVerify, func(ctx context.Context, data []byte) []byte {
			var in capability.Candidate
			if err := json.Unmarshal(data, &in); err != nil {
				return EncodeReply(nil, err)
			}
			return EncodeReply(p.Verifier.Verify(ctx, in))
		}); err != nil {
			return unsubscribe(subs, err)
		}
	}

	if p.Ambient != nil {
		if err := add(SubjectAmbient, func(ctx context.Context, data []byte) []byte {
			var in capability.Location
			if err := json.Unmarshal(data, &in); err != nil {
				return EncodeReply(nil, err)
			}
			return EncodeReply(p.Ambient.Lookup(ctx, in))
		}); err != nil {
			return unsubscribe(subs, err)
		}
	}

	if p.Illustrator != nil {
		if err := add(SubjectIllustrate, func(ctx context.Context, data []byte) []byte {
			var in illustrateRequest
			if err := json.Unmarshal(data, &in); err != nil {
				return EncodeReply(nil, err)
			}
			return EncodeReply(p.Illustrator.Illustrate(ctx, in.Prompt))
		}); err != nil {
			return unsubscribe(subs, err)
		}
	}

	return subs, nil
}

func unsubscribe(subs []*nats.Subscription, err error) ([]*nats.Subscription, error) {
	for _, s := range subs {
		_ = s.Unsubscribe()
	}
	return nil, err
}
