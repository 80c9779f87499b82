package reader

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketOffsets = []byte("file_offsets") // path -> Position (JSON)

// Position is the tailing state of one file.
type Position struct {
	// Offset is the byte just past the last consumed line terminator.
	Offset int64 `json:"offset"`

	// Identity distinguishes the file behind a path (device:inode).
	// Empty when the platform cannot provide one.
	Identity string `json:"identity,omitempty"`

	// Unaligned marks an offset that was set from the file size without
	// reading, so it may fall inside a line. The next Tail backs up to the
	// start of that line.
	Unaligned bool `json:"unaligned,omitempty"`
}

// OffsetStore keeps per-file positions.
//
// Every method is a single short critical section; callers never hold a
// store lock across file I/O.
type OffsetStore interface {
	// Get returns the stored position and whether one exists.
	Get(path string) (Position, bool, error)

	// Set stores the position for path.
	Set(path string, pos Position) error

	// Delete forgets path. Deleting an unknown path is not an error.
	Delete(path string) error

	// Close releases resources held by the store.
	Close() error
}

type memoryOffsetStore struct {
	mu        sync.RWMutex
	positions map[string]Position
}

// NewMemoryOffsetStore creates an in-process store. Positions are lost on
// restart, so tailing starts at "now" again.
func NewMemoryOffsetStore() OffsetStore {
	return &memoryOffsetStore{positions: make(map[string]Position)}
}

func (s *memoryOffsetStore) Get(path string) (Position, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pos, ok := s.positions[path]
	return pos, ok, nil
}

func (s *memoryOffsetStore) Set(path string, pos Position) error {
	if pos.Offset < 0 {
		return ErrInvalidOffset
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.positions[path] = pos
	return nil
}

func (s *memoryOffsetStore) Delete(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.positions, path)
	return nil
}

func (s *memoryOffsetStore) Close() error {
	return nil
}

// boltOffsetStore persists positions in a BoltDB file so a restarted
// server resumes where it stopped.
type boltOffsetStore struct {
	db     *bolt.DB
	ownsDB bool
}

// OpenBoltOffsetStore opens (or creates) a BoltDB file at path.
func OpenBoltOffsetStore(path string) (OffsetStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create offset db directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open offset db: %w", err)
	}

	store, err := NewBoltOffsetStore(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	store.(*boltOffsetStore).ownsDB = true
	return store, nil
}

// NewBoltOffsetStore wraps an already open database. The caller keeps
// ownership of db.
func NewBoltOffsetStore(db *bolt.DB) (OffsetStore, error) {
	if err := db.Update(func(tx *bolt.Tx) error {
		_, createErr := tx.CreateBucketIfNotExists(bucketOffsets)
		return createErr
	}); err != nil {
		return nil, fmt.Errorf("failed to create offsets bucket: %w", err)
	}

	return &boltOffsetStore{db: db}, nil
}

func (s *boltOffsetStore) Get(path string) (Position, bool, error) {
	var (
		pos   Position
		found bool
	)

	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketOffsets).Get([]byte(path))
		if data == nil {
			return nil
		}
		found = true
		if err := json.Unmarshal(data, &pos); err != nil {
			return fmt.Errorf("failed to unmarshal position: %w", err)
		}
		return nil
	})
	if err != nil {
		return Position{}, false, err
	}
	return pos, found, nil
}

func (s *boltOffsetStore) Set(path string, pos Position) error {
	if pos.Offset < 0 {
		return ErrInvalidOffset
	}

	data, err := json.Marshal(pos)
	if err != nil {
		return fmt.Errorf("failed to marshal position: %w", err)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		if putErr := tx.Bucket(bucketOffsets).Put([]byte(path), data); putErr != nil {
			return fmt.Errorf("failed to store position: %w", putErr)
		}
		return nil
	})
}

func (s *boltOffsetStore) Delete(path string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketOffsets).Delete([]byte(path))
	})
}

func (s *boltOffsetStore) Close() error {
	if !s.ownsDB {
		return nil
	}
	return s.db.Close()
}
