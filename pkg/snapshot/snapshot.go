// Package snapshot keeps a history of serialized settings records in a
// pebble database so a device can be rolled back to an earlier calibration.
package snapshot

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/segmentio/ksuid"

	"github.com/wntrblm/gemsettings/pkg/settings"
)

var (
	ErrNotFound    = errors.New("snapshot not found")
	ErrInvalidSize = errors.New("snapshot data is not a serialized settings record")
)

var keyPrefix = []byte("settings/")

// Snapshot is one stored copy of a serialized record
type Snapshot struct {
	ID        ksuid.KSUID `json:"id"`
	CreatedAt time.Time   `json:"created_at"`
	Data      []byte      `json:"data"`
}

// Store persists snapshots keyed by KSUID, so keys sort by creation time
type Store struct {
	db   *pebble.DB
	mu   sync.Mutex
	last ksuid.KSUID // ids handed out by this process stay strictly increasing
}

// Open opens or creates the snapshot database at path
func Open(path string) (*Store, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot store: %w", err)
	}
	return &Store{db: db}, nil
}

func key(id ksuid.KSUID) []byte {
	return append(slices.Clone(keyPrefix), id.Bytes()...)
}

// Create stores a serialized record and returns its id
func (s *Store) Create(data []byte) (ksuid.KSUID, error) {
	if len(data) != settings.Size {
		return ksuid.Nil, fmt.Errorf("%w: %d bytes", ErrInvalidSize, len(data))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := ksuid.New()
	if ksuid.Compare(id, s.last) <= 0 {
		id = s.last.Next()
	}
	if err := s.db.Set(key(id), data, pebble.NoSync); err != nil {
		return ksuid.Nil, err
	}
	s.last = id
	return id, nil
}

// Get returns the snapshot with the given id
func (s *Store) Get(id ksuid.KSUID) (*Snapshot, error) {
	data, closer, err := s.db.Get(key(id))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, err
	}
	defer closer.Close()

	return &Snapshot{
		ID:        id,
		CreatedAt: id.Time(),
		Data:      slices.Clone(data),
	}, nil
}

// List returns all snapshots, newest first
func (s *Store) List() ([]Snapshot, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: keyPrefix,
		UpperBound: prefixUpperBound(keyPrefix),
	})
	if err != nil {
		return nil, err
	}

	var out []Snapshot
	for iter.First(); iter.Valid(); iter.Next() {
		id, err := ksuid.FromBytes(iter.Key()[len(keyPrefix):])
		if err != nil {
			_ = iter.Close()
			return nil, fmt.Errorf("corrupt snapshot key: %w", err)
		}
		out = append(out, Snapshot{
			ID:        id,
			CreatedAt: id.Time(),
			Data:      slices.Clone(iter.Value()),
		})
	}
	if err := iter.Close(); err != nil {
		return nil, err
	}

	slices.Reverse(out)
	return out, nil
}

// Delete removes a snapshot. Deleting a missing id is not an error.
func (s *Store) Delete(id ksuid.KSUID) error {
	return s.db.Delete(key(id), pebble.NoSync)
}

// Close flushes and closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

func prefixUpperBound(prefix []byte) []byte {
	end := slices.Clone(prefix)
	end[len(end)-1]++
	return end
}
