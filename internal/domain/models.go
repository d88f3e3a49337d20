package domain

// OptionCount is the fixed number of answer options every question carries.
const OptionCount = 4

// Question is one multiple-choice item in the bank. CorrectIndex is zero-based;
// topics compare case-insensitively.
type Question struct {
	ID           int64    `json:"id"`
	Topic        string   `json:"topic"`
	Text         string   `json:"text"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correctIndex"`
	Explanation  string   `json:"explanation"`
}

// Valid reports whether the question satisfies the bank's structural rules.
func (q Question) Valid() bool {
	return q.Text != "" && len(q.Options) == OptionCount &&
		q.CorrectIndex >= 0 && q.CorrectIndex < OptionCount
}

// Mode is a named preset controlling the target question count of a session.
type Mode string

const (
	ModeShort Mode = "short"
	ModeLong  Mode = "long"
	ModeFull  Mode = "full"
)

// ResolveMode maps a user-supplied keyword to a mode, defaulting to short.
func ResolveMode(keyword string) Mode {
	switch Mode(keyword) {
	case ModeLong:
		return ModeLong
	case ModeFull:
		return ModeFull
	default:
		return ModeShort
	}
}

// QuestionCount returns the target session length for the mode.
func (m Mode) QuestionCount() int {
	switch m {
	case ModeLong:
		return 15
	case ModeFull:
		return 25
	default:
		return 5
	}
}

// Tally is a participant's running count within one session.
type Tally struct {
	Correct   int `json:"correct"`
	Wrong     int `json:"wrong"`
	Attempted int `json:"attempted"`
}

// ScoreEntry is one row of a room's cumulative score table.
type ScoreEntry struct {
	ParticipantID string  `json:"participantId"`
	DisplayName   string  `json:"displayName"`
	Score         float64 `json:"score"`
}

// HistoryRecord is an immutable per-participant result of one finished session.
type HistoryRecord struct {
	SessionID     string  `json:"sessionId"`
	ParticipantID string  `json:"participantId"`
	DisplayName   string  `json:"displayName"`
	SessionScore  float64 `json:"sessionScore"`
	Timestamp     int64   `json:"ts"` // unix seconds
	Topic         string  `json:"topic"`
}

// LeaderboardEntry is a ranked row of a leaderboard view.
type LeaderboardEntry struct {
	DisplayName string  `json:"displayName"`
	Score       float64 `json:"score"`
}

// WindowedBoard is a time-windowed ranking. HasHistory distinguishes a room that
// has never finished a session from one whose history falls outside the window.
type WindowedBoard struct {
	Entries    []LeaderboardEntry `json:"entries"`
	HasHistory bool               `json:"hasHistory"`
}

// AnswerReceipt is the private disclosure returned to a participant after an
// admitted answer.
type AnswerReceipt struct {
	QuestionText  string `json:"questionText"`
	ChosenOption  string `json:"chosenOption"`
	CorrectOption string `json:"correctOption"`
	Correct       bool   `json:"correct"`
	Explanation   string `json:"explanation"`
}

// ParticipantSummary is the per-participant wrap-up of a finalized session.
type ParticipantSummary struct {
	ParticipantID   string  `json:"participantId"`
	DisplayName     string  `json:"displayName"`
	Topic           string  `json:"topic"`
	TotalQuestions  int     `json:"totalQuestions"`
	Correct         int     `json:"correct"`
	Wrong           int     `json:"wrong"`
	Skipped         int     `json:"skipped"`
	SessionScore    float64 `json:"sessionScore"`
	CumulativeScore float64 `json:"cumulativeScore"`
}
