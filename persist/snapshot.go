// Package persist saves and restores session snapshots. A snapshot captures
// a session's store, active phase and per-phase transcripts so a conversation
// can resume after a restart.
//
// Snapshots are encoded as google.protobuf.Struct in protojson form, which
// keeps the on-disk format readable and shares the message type used by the
// RPC server.
package persist

import (
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/tailored-agentic-units/mealplanner/core/protocol"
	"github.com/tailored-agentic-units/mealplanner/state"
)

// Snapshot is a point-in-time copy of one session.
type Snapshot struct {
	SessionID   string
	Phase       string
	Data        map[string]state.Value
	Transcripts map[string][]protocol.Message
	SavedAt     time.Time
}

// ToStruct converts the snapshot into a protobuf Struct.
func (s Snapshot) ToStruct() (*structpb.Struct, error) {
	data := make(map[string]any, len(s.Data))
	for k, v := range s.Data {
		data[k] = v.Any()
	}

	transcripts, err := toPlain(s.Transcripts)
	if err != nil {
		return nil, fmt.Errorf("encode transcripts: %w", err)
	}

	st, err := structpb.NewStruct(map[string]any{
		"session_id":  s.SessionID,
		"phase":       s.Phase,
		"saved_at":    s.SavedAt.UTC().Format(time.RFC3339Nano),
		"data":        data,
		"transcripts": transcripts,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	return st, nil
}

// FromStruct rebuilds a snapshot from a protobuf Struct.
func FromStruct(st *structpb.Struct) (Snapshot, error) {
	fields := st.AsMap()

	snap := Snapshot{
		Data:        make(map[string]state.Value),
		Transcripts: make(map[string][]protocol.Message),
	}
	snap.SessionID, _ = fields["session_id"].(string)
	snap.Phase, _ = fields["phase"].(string)
	if snap.SessionID == "" {
		return Snapshot{}, fmt.Errorf("%w: missing session_id", ErrDecode)
	}

	if raw, _ := fields["saved_at"].(string); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return Snapshot{}, fmt.Errorf("%w: saved_at: %v", ErrDecode, err)
		}
		snap.SavedAt = t
	}

	if data, ok := fields["data"].(map[string]any); ok {
		for k, raw := range data {
			v, err := state.FromAny(raw)
			if err != nil {
				return Snapshot{}, fmt.Errorf("%w: %s: %v", ErrDecode, k, err)
			}
			snap.Data[k] = v
		}
	}

	if raw, ok := fields["transcripts"]; ok && raw != nil {
		if err := fromPlain(raw, &snap.Transcripts); err != nil {
			return Snapshot{}, fmt.Errorf("%w: transcripts: %v", ErrDecode, err)
		}
	}

	return snap, nil
}

// Encode serializes a snapshot to protojson bytes.
func Encode(s Snapshot) ([]byte, error) {
	st, err := s.ToStruct()
	if err != nil {
		return nil, err
	}
	data, err := protojson.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	return data, nil
}

// Decode parses protojson bytes produced by Encode.
func Decode(data []byte) (Snapshot, error) {
	var st structpb.Struct
	if err := protojson.Unmarshal(data, &st); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return FromStruct(&st)
}

func toPlain(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func fromPlain(in any, out any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
