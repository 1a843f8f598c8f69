package persist

import (
	"context"
	"errors"
)

// Sentinel errors for snapshot stores.
var (
	ErrSnapshotNotFound = errors.New("snapshot not found")
	ErrSaveFailed       = errors.New("snapshot save failed")
	ErrLoadFailed       = errors.New("snapshot load failed")
	ErrEncode           = errors.New("snapshot encode failed")
	ErrDecode           = errors.New("snapshot decode failed")
	ErrUnknownBackend   = errors.New("unknown snapshot backend")
)

// Store persists session snapshots keyed by session id. Implementations must
// be safe for concurrent use by different sessions.
type Store interface {
	// Save writes the snapshot, replacing any previous one for the session.
	Save(ctx context.Context, snap Snapshot) error
	// Load returns the latest snapshot or ErrSnapshotNotFound.
	Load(ctx context.Context, sessionID string) (Snapshot, error)
	// Delete removes a snapshot. Missing ids are ignored.
	Delete(ctx context.Context, sessionID string) error
	// List returns all stored session ids in sorted order.
	List(ctx context.Context) ([]string, error)
	// Close releases backend resources.
	Close() error
}
