// Package snapshot persists full catalog dumps to disk. A snapshot is the
// simpler alternate data source: consumers can read the last dump instead of
// querying upstream.
package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/oikotie-tools/apartment-radar/internal/models"
)

// Snapshot is one persisted catalog dump.
type Snapshot struct {
	ID        string           `json:"id"`
	CreatedAt time.Time        `json:"createdAt"`
	Count     int              `json:"count"`
	Listings  []models.Listing `json:"listings"`
}

// Store reads and writes snapshots at a fixed path.
type Store struct {
	path string
}

// NewStore builds a Store writing to path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Save writes a new snapshot atomically (write to temp file, then rename).
func (s *Store) Save(listings []models.Listing) (*Snapshot, error) {
	snap := &Snapshot{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Count:     len(listings),
		Listings:  listings,
	}

	payload, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return nil, fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return nil, fmt.Errorf("publish snapshot: %w", err)
	}

	return snap, nil
}

// Load reads the last saved snapshot.
func (s *Store) Load() (*Snapshot, error) {
	payload, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}
