package persist

import (
	"context"
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

const levelPrefix = "session:"

type levelStore struct {
	db *leveldb.DB
}

// NewLevelStore opens (or creates) a LevelDB database at path. LevelDB is
// single-writer: only one process may hold the database open.
func NewLevelStore(path string) (Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb %s: %w", path, err)
	}
	return &levelStore{db: db}, nil
}

func (s *levelStore) Save(_ context.Context, snap Snapshot) error {
	data, err := Encode(snap)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSaveFailed, err)
	}
	if err := s.db.Put([]byte(levelPrefix+snap.SessionID), data, nil); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSaveFailed, snap.SessionID, err)
	}
	return nil
}

func (s *levelStore) Load(_ context.Context, sessionID string) (Snapshot, error) {
	data, err := s.db.Get([]byte(levelPrefix+sessionID), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return Snapshot{}, fmt.Errorf("%w: %s", ErrSnapshotNotFound, sessionID)
		}
		return Snapshot{}, fmt.Errorf("%w: %s: %v", ErrLoadFailed, sessionID, err)
	}
	return Decode(data)
}

func (s *levelStore) Delete(_ context.Context, sessionID string) error {
	if err := s.db.Delete([]byte(levelPrefix+sessionID), nil); err != nil {
		return fmt.Errorf("delete snapshot %s: %w", sessionID, err)
	}
	return nil
}

func (s *levelStore) List(_ context.Context) ([]string, error) {
	iter := s.db.NewIterator(util.BytesPrefix([]byte(levelPrefix)), nil)
	defer iter.Release()

	var ids []string
	for iter.Next() {
		ids = append(ids, string(iter.Key())[len(levelPrefix):])
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadFailed, err)
	}
	return ids, nil
}

func (s *levelStore) Close() error {
	return s.db.Close()
}
