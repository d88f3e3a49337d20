// Package jsonfile persists archive snapshots as a single JSON document on
// local disk, written atomically via a temp file rename.
package jsonfile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"trivia-session-service/internal/archive"
	"trivia-session-service/internal/domain"
)

const fileName = "archive.json"

// Store reads and writes the snapshot under dir.
type Store struct {
	path string
}

func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &Store{path: filepath.Join(dir, fileName)}, nil
}

func (s *Store) LoadAll(_ context.Context) (archive.Snapshot, error) {
	snap := archive.Snapshot{
		Boards:  make(map[string][]domain.ScoreEntry),
		History: make(map[string][]domain.HistoryRecord),
	}
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return snap, nil
	}
	if err != nil {
		return archive.Snapshot{}, fmt.Errorf("read archive: %w", err)
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		return archive.Snapshot{}, fmt.Errorf("decode archive: %w", err)
	}
	if snap.Boards == nil {
		snap.Boards = make(map[string][]domain.ScoreEntry)
	}
	if snap.History == nil {
		snap.History = make(map[string][]domain.HistoryRecord)
	}
	return snap, nil
}

func (s *Store) SaveAll(_ context.Context, snap archive.Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode archive: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write archive: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace archive: %w", err)
	}
	return nil
}
