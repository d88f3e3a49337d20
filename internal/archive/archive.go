// Package archive holds the per-room cumulative score table and the append-only
// result history. State lives in memory and is flushed through a Store snapshot
// after every mutation; a flush failure is logged, never rolled back.
package archive

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"trivia-session-service/internal/domain"
)

// Snapshot is the durable form of the archive. Boards keep score-table rows in
// first-seen insertion order per room.
type Snapshot struct {
	Boards  map[string][]domain.ScoreEntry    `json:"boards"`
	History map[string][]domain.HistoryRecord `json:"history"`
}

// Store persists archive snapshots (JSON file, Redis, in-memory for tests).
type Store interface {
	LoadAll(ctx context.Context) (Snapshot, error)
	SaveAll(ctx context.Context, snap Snapshot) error
}

type board struct {
	entries []domain.ScoreEntry
	index   map[string]int // participant id -> position in entries
}

// Archive is the mutable aggregate. All mutations flush to the store.
type Archive struct {
	store Store
	log   zerolog.Logger

	mu      sync.Mutex
	boards  map[string]*board
	history map[string][]domain.HistoryRecord
}

// Open loads the persisted snapshot and rejects malformed records instead of
// propagating them.
func Open(ctx context.Context, store Store, log zerolog.Logger) (*Archive, error) {
	snap, err := store.LoadAll(ctx)
	if err != nil {
		return nil, err
	}

	a := &Archive{
		store:   store,
		log:     log,
		boards:  make(map[string]*board),
		history: make(map[string][]domain.HistoryRecord),
	}
	for roomID, entries := range snap.Boards {
		b := newBoard()
		for _, e := range entries {
			if e.ParticipantID == "" {
				log.Warn().Str("room", roomID).Msg("dropping score entry without participant id")
				continue
			}
			if _, dup := b.index[e.ParticipantID]; dup {
				log.Warn().Str("room", roomID).Str("participant", e.ParticipantID).Msg("dropping duplicate score entry")
				continue
			}
			b.index[e.ParticipantID] = len(b.entries)
			b.entries = append(b.entries, e)
		}
		if len(b.entries) > 0 {
			a.boards[roomID] = b
		}
	}
	for roomID, records := range snap.History {
		kept := make([]domain.HistoryRecord, 0, len(records))
		for _, r := range records {
			if r.ParticipantID == "" || r.Timestamp <= 0 {
				log.Warn().Str("room", roomID).Msg("dropping malformed history record")
				continue
			}
			kept = append(kept, r)
		}
		if len(kept) > 0 {
			a.history[roomID] = kept
		}
	}
	return a, nil
}

func newBoard() *board {
	return &board{index: make(map[string]int)}
}

// ApplyDelta adjusts a participant's cumulative score, creating the entry at
// zero if absent, and returns the new total.
func (a *Archive) ApplyDelta(ctx context.Context, roomID, participantID, displayName string, delta float64) float64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	b, ok := a.boards[roomID]
	if !ok {
		b = newBoard()
		a.boards[roomID] = b
	}
	pos, ok := b.index[participantID]
	if !ok {
		pos = len(b.entries)
		b.index[participantID] = pos
		b.entries = append(b.entries, domain.ScoreEntry{ParticipantID: participantID})
	}
	b.entries[pos].Score += delta
	b.entries[pos].DisplayName = displayName

	total := b.entries[pos].Score
	a.flushLocked(ctx)
	return total
}

// Score returns a participant's cumulative score for the room.
func (a *Archive) Score(roomID, participantID string) (float64, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	b, ok := a.boards[roomID]
	if !ok {
		return 0, false
	}
	pos, ok := b.index[participantID]
	if !ok {
		return 0, false
	}
	return b.entries[pos].Score, true
}

// Board returns the room's score table in first-seen insertion order.
func (a *Archive) Board(roomID string) []domain.ScoreEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	b, ok := a.boards[roomID]
	if !ok {
		return nil
	}
	out := make([]domain.ScoreEntry, len(b.entries))
	copy(out, b.entries)
	return out
}

// ResetBoard clears the room's score table. History is untouched.
func (a *Archive) ResetBoard(ctx context.Context, roomID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.boards, roomID)
	a.flushLocked(ctx)
}

// AppendHistory appends finalized session records for the room.
func (a *Archive) AppendHistory(ctx context.Context, roomID string, records []domain.HistoryRecord) {
	if len(records) == 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.history[roomID] = append(a.history[roomID], records...)
	a.flushLocked(ctx)
}

// History returns a copy of the room's result history, oldest first.
func (a *Archive) History(roomID string) []domain.HistoryRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	records, ok := a.history[roomID]
	if !ok {
		return nil
	}
	out := make([]domain.HistoryRecord, len(records))
	copy(out, records)
	return out
}

func (a *Archive) flushLocked(ctx context.Context) {
	snap := Snapshot{
		Boards:  make(map[string][]domain.ScoreEntry, len(a.boards)),
		History: make(map[string][]domain.HistoryRecord, len(a.history)),
	}
	for roomID, b := range a.boards {
		entries := make([]domain.ScoreEntry, len(b.entries))
		copy(entries, b.entries)
		snap.Boards[roomID] = entries
	}
	for roomID, records := range a.history {
		out := make([]domain.HistoryRecord, len(records))
		copy(out, records)
		snap.History[roomID] = out
	}
	if err := a.store.SaveAll(ctx, snap); err != nil {
		a.log.Warn().Err(err).Msg("archive flush failed; in-memory state kept")
	}
}
