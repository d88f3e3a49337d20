package app

import (
	"context"
	"strings"
	"time"
)

const timerBarBlocks = 10

// progressInterval returns how often the progress bar may refresh: sparse while
// plenty of time remains, denser as the deadline nears.
func progressInterval(remaining time.Duration) time.Duration {
	switch {
	case remaining > 25*time.Second:
		return 5 * time.Second
	case remaining > 10*time.Second:
		return 3 * time.Second
	default:
		return 2 * time.Second
	}
}

// timerBar renders the remaining time as a 10-block bar.
func timerBar(remaining, total time.Duration) string {
	if total <= 0 {
		total = 1
	}
	if remaining < 0 {
		remaining = 0
	}
	filled := int(float64(remaining) / float64(total) * timerBarBlocks)
	if filled < 0 {
		filled = 0
	}
	if filled > timerBarBlocks {
		filled = timerBarBlocks
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", timerBarBlocks-filled)
}

// Tick runs one pass of the tick driver over every live session. It is invoked
// on a fixed cadence by the serve loop; each room's expiry check is serialized
// against answer admission by the session lock.
func (e *Engine) Tick(ctx context.Context) {
	now := e.now()
	qt := e.questionTime()
	e.sessions.ForEach(func(roomID string, s *Session) {
		e.tickRoom(ctx, now, qt, roomID, s)
	})
}

func (e *Engine) tickRoom(ctx context.Context, now time.Time, qt time.Duration, roomID string, s *Session) {
	// A session removed by stop between snapshot and tick is a no-op.
	if current, ok := e.sessions.Get(roomID); !ok || current != s {
		return
	}

	s.mu.Lock()
	if s.paused {
		s.mu.Unlock()
		return
	}
	if _, live := s.currentIDLocked(); !live {
		s.mu.Unlock()
		return
	}

	elapsed := now.Sub(s.questionStart)
	if elapsed < qt {
		remaining := qt - elapsed
		if now.Sub(s.lastProgress) < progressInterval(remaining) {
			s.mu.Unlock()
			return
		}
		s.lastProgress = now
		view, ok := e.viewLocked(s, remaining, qt)
		s.mu.Unlock()
		if ok {
			// Presentation aid only; never causes a state transition.
			e.rooms.Progress(roomID, view)
		}
		return
	}

	expiredID, _ := s.currentIDLocked()
	done := s.advanceLocked(now)
	var next QuestionView
	var haveNext bool
	if !done {
		next, haveNext = e.viewLocked(s, qt, qt)
	}
	s.mu.Unlock()

	if q, found := e.questions.Lookup(expiredID); found {
		e.rooms.TimeUp(roomID, Reveal{
			QuestionID:    q.ID,
			CorrectOption: q.Options[q.CorrectIndex],
			Explanation:   q.Explanation,
		})
	}
	if done {
		e.finalize(ctx, roomID, s)
		return
	}
	if haveNext {
		e.rooms.QuestionPosted(roomID, next)
	}
}
