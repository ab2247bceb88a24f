// Package levels persists per-level grid state in a write-ahead log so a
// restarted bot resumes with its positions and open order ids intact.
package levels

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"

	"gridbot/internal/domain"
)

const (
	walDirPermissions   = 0o755
	walSegmentThreshold = 1000
	walMaxSegments      = 100
	bookKeyPrefix       = "grid_book_"
)

// WALStore keeps the latest level book snapshot for a pair in a WAL.
// Every Save appends a full snapshot; Load replays the log and returns
// the most recent one.
type WALStore struct {
	wal  *gowal.Wal
	pair domain.Pair
	mu   sync.Mutex
}

func NewWALStore(dir string, pair domain.Pair) (*WALStore, error) {
	walDir := filepath.Join(dir, pair.String())
	if err := os.MkdirAll(walDir, walDirPermissions); err != nil {
		return nil, errors.Wrapf(err, "failed to ensure WAL directory %s", walDir)
	}

	cfg := gowal.Config{
		Dir:              walDir,
		Prefix:           "log_",
		SegmentThreshold: walSegmentThreshold,
		MaxSegments:      walMaxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to init level book WAL")
	}

	return &WALStore{wal: wal, pair: pair}, nil
}

func (s *WALStore) key() string {
	return fmt.Sprintf("%s%s", bookKeyPrefix, s.pair.String())
}

// Save appends the snapshot to the WAL.
func (s *WALStore) Save(snap domain.BookSnapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return errors.Wrap(err, "failed to marshal level book snapshot")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	nextIndex := s.wal.CurrentIndex() + 1
	return s.wal.Write(nextIndex, s.key(), payload)
}

// Load replays the WAL and returns the latest snapshot for the pair,
// or nil when the log holds none.
func (s *WALStore) Load() (*domain.BookSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var latest *domain.BookSnapshot
	for msg := range s.wal.Iterator() {
		if msg.Key != s.key() {
			continue
		}
		var snap domain.BookSnapshot
		if err := json.Unmarshal(msg.Value, &snap); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal level book snapshot")
		}
		latest = &snap
	}
	return latest, nil
}

func (s *WALStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wal.Close()
}
