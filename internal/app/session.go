package app

import (
	"sync"
	"time"

	"trivia-session-service/internal/domain"
)

// Session is the per-room state of one quiz run. It exists only while the run
// is live; finalize and stop both remove it from the registry. All mutable
// fields are guarded by mu, which totally orders tick expiry against answer
// admission for the room.
type Session struct {
	roomID string
	runID  string
	topic  string
	mode   domain.Mode
	order  []int64 // shuffled question ids, fixed at creation

	mu            sync.Mutex
	position      int
	questionStart time.Time
	lastProgress  time.Time
	pausedAt      time.Time
	paused        bool
	admitted      map[string]struct{}
	tally         map[string]*domain.Tally
}

func newSession(roomID, runID, topic string, mode domain.Mode, order []int64, now time.Time) *Session {
	return &Session{
		roomID:        roomID,
		runID:         runID,
		topic:         topic,
		mode:          mode,
		order:         order,
		questionStart: now,
		lastProgress:  now,
		admitted:      make(map[string]struct{}),
		tally:         make(map[string]*domain.Tally),
	}
}

// advanceLocked moves the session to the next question and reports whether the
// run is exhausted. Caller holds mu.
func (s *Session) advanceLocked(now time.Time) (done bool) {
	s.position++
	if s.position >= len(s.order) {
		return true
	}
	s.questionStart = now
	s.lastProgress = now
	s.admitted = make(map[string]struct{})
	return false
}

// currentIDLocked returns the active question id. Caller holds mu.
func (s *Session) currentIDLocked() (int64, bool) {
	if s.position >= len(s.order) {
		return 0, false
	}
	return s.order[s.position], true
}

// talliesLocked copies the per-participant tallies. Caller holds mu.
func (s *Session) talliesLocked() map[string]domain.Tally {
	out := make(map[string]domain.Tally, len(s.tally))
	for id, t := range s.tally {
		out[id] = *t
	}
	return out
}
