package app

import (
	"sort"

	"trivia-session-service/internal/domain"
)

// windowedLimit caps time-windowed rankings, matching the room message size.
const windowedLimit = 20

const secondsPerDay = 86400

// Cumulative returns the room's all-time ranking from the score table, ordered
// by score descending with ties kept in first-seen insertion order.
func (e *Engine) Cumulative(roomID string) []domain.LeaderboardEntry {
	board := e.archive.Board(roomID)
	sort.SliceStable(board, func(i, j int) bool {
		return board[i].Score > board[j].Score
	})
	entries := make([]domain.LeaderboardEntry, 0, len(board))
	for _, row := range board {
		entries = append(entries, domain.LeaderboardEntry{
			DisplayName: row.DisplayName,
			Score:       row.Score,
		})
	}
	return entries
}

// Windowed ranks the trailing windowDays of result history, summing session
// scores per participant. windowDays <= 0 means no cutoff. The most recent
// record's display name wins. Top 20 entries are returned.
func (e *Engine) Windowed(roomID string, windowDays int) domain.WindowedBoard {
	history := e.archive.History(roomID)
	if len(history) == 0 {
		return domain.WindowedBoard{}
	}

	var cutoff int64
	if windowDays > 0 {
		cutoff = e.now().Unix() - int64(windowDays)*secondsPerDay
	}

	type total struct {
		name  string
		score float64
	}
	totals := make(map[string]*total)
	order := make([]string, 0, len(history))
	for _, record := range history {
		if cutoff > 0 && record.Timestamp < cutoff {
			continue
		}
		t, ok := totals[record.ParticipantID]
		if !ok {
			t = &total{}
			totals[record.ParticipantID] = t
			order = append(order, record.ParticipantID)
		}
		t.score += record.SessionScore
		t.name = record.DisplayName // history is chronological, latest name wins
	}

	entries := make([]domain.LeaderboardEntry, 0, len(order))
	for _, pid := range order {
		t := totals[pid]
		entries = append(entries, domain.LeaderboardEntry{DisplayName: t.name, Score: t.score})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Score > entries[j].Score
	})
	if len(entries) > windowedLimit {
		entries = entries[:windowedLimit]
	}
	return domain.WindowedBoard{Entries: entries, HasHistory: true}
}
