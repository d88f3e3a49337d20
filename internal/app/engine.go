// Package app contains the quiz session engine: session lifecycle, answer
// admission, the tick driver and leaderboard aggregation. Transport, storage
// and the chat permission model are collaborators behind interfaces.
package app

import (
	"context"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"trivia-session-service/internal/archive"
	"trivia-session-service/internal/domain"
)

// SessionRegistry maps room ids to live sessions. At most one session per room.
type SessionRegistry interface {
	Get(roomID string) (*Session, bool)
	// Reserve installs the session unless one already exists for the room.
	Reserve(roomID string, s *Session) bool
	// Delete removes the room's session and reports whether one was present.
	Delete(roomID string) bool
	ForEach(fn func(roomID string, s *Session))
}

// QuestionSource is the engine's read contract with the question store.
type QuestionSource interface {
	Lookup(id int64) (domain.Question, bool)
	FilterByTopic(topic string) []domain.Question
	All() []domain.Question
	Topics() []string
}

// Authorizer decides privileged operations; the chat platform owns the answer.
type Authorizer interface {
	IsPrivileged(ctx context.Context, roomID, participantID string) (bool, error)
}

// Notifier delivers private disclosures. Best-effort: failures are logged and
// never retried by the engine.
type Notifier interface {
	Notify(ctx context.Context, participantID string, receipt domain.AnswerReceipt) error
	Summary(ctx context.Context, participantID string, summary domain.ParticipantSummary) error
}

// RoomSink receives room-facing presentation events. Calls are fire-and-forget
// from the engine's perspective.
type RoomSink interface {
	SessionStarted(roomID string, info StartInfo)
	QuestionPosted(roomID string, view QuestionView)
	Progress(roomID string, view QuestionView)
	TimeUp(roomID string, reveal Reveal)
	SessionFinished(roomID string, board []domain.LeaderboardEntry)
}

// Rules are the scoring and timing parameters of a session.
type Rules struct {
	QuestionTime time.Duration
	MarkCorrect  float64
	MarkWrong    float64
}

// DefaultRules mirrors the long-standing bot defaults.
func DefaultRules() Rules {
	return Rules{QuestionTime: 45 * time.Second, MarkCorrect: 1.0, MarkWrong: -0.33}
}

// StartInfo announces a freshly started session.
type StartInfo struct {
	Topic           string      `json:"topic"`
	Mode            domain.Mode `json:"mode"`
	Questions       int         `json:"questions"`
	QuestionSeconds int         `json:"questionSeconds"`
	MarkCorrect     float64     `json:"markCorrect"`
	MarkWrong       float64     `json:"markWrong"`
}

// QuestionView is the room-facing rendering of the active question.
type QuestionView struct {
	QuestionID       int64    `json:"questionId"`
	Number           int      `json:"number"`
	Total            int      `json:"total"`
	Text             string   `json:"text"`
	Options          []string `json:"options"`
	RemainingSeconds int      `json:"remainingSeconds"`
	TimerBar         string   `json:"timerBar"`
}

// Reveal is the "time's up" disclosure emitted before advancing.
type Reveal struct {
	QuestionID    int64  `json:"questionId"`
	CorrectOption string `json:"correctOption"`
	Explanation   string `json:"explanation"`
}

// Engine drives question progression, admits answers, and aggregates scores.
type Engine struct {
	sessions  SessionRegistry
	questions QuestionSource
	editor    QuestionEditor
	archive   *archive.Archive
	auth      Authorizer
	notifier  Notifier
	rooms     RoomSink
	log       zerolog.Logger

	now func() time.Time

	randMu sync.Mutex
	rand   *rand.Rand

	rulesMu sync.RWMutex
	rules   Rules
}

// Option customizes an Engine, mainly for deterministic tests.
type Option func(*Engine)

// WithClock injects the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithRand injects the shuffle source.
func WithRand(r *rand.Rand) Option {
	return func(e *Engine) { e.rand = r }
}

func NewEngine(sessions SessionRegistry, questions QuestionSource, arch *archive.Archive,
	auth Authorizer, notifier Notifier, rooms RoomSink, rules Rules, log zerolog.Logger, opts ...Option) *Engine {
	e := &Engine{
		sessions:  sessions,
		questions: questions,
		archive:   arch,
		auth:      auth,
		notifier:  notifier,
		rooms:     rooms,
		rules:     rules,
		log:       log,
		now:       time.Now,
		rand:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	if e.rules.QuestionTime <= 0 {
		e.rules = DefaultRules()
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start begins a session for the room: resolves mode and topic, shuffles the
// candidate questions, installs the session, and posts the first question.
func (e *Engine) Start(ctx context.Context, roomID, requesterID, topicFilter, modeKeyword string) (StartInfo, error) {
	if err := e.requirePrivileged(ctx, roomID, requesterID); err != nil {
		return StartInfo{}, err
	}

	all := e.questions.All()
	if len(all) == 0 {
		return StartInfo{}, domain.ErrNoQuestions
	}

	topicLabel := "Mixed"
	candidates := all
	if topic := strings.TrimSpace(topicFilter); topic != "" {
		candidates = e.questions.FilterByTopic(topic)
		if len(candidates) == 0 {
			return StartInfo{}, domain.ErrNoQuestionsForTopic
		}
		topicLabel = topic
	}

	mode := domain.ResolveMode(strings.ToLower(strings.TrimSpace(modeKeyword)))
	count := mode.QuestionCount()
	if count > len(candidates) {
		count = len(candidates) // shorter session, never padded
	}

	order := make([]int64, len(candidates))
	for i, q := range candidates {
		order[i] = q.ID
	}
	e.randMu.Lock()
	e.rand.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	e.randMu.Unlock()
	order = order[:count]

	now := e.now()
	s := newSession(roomID, uuid.NewString(), topicLabel, mode, order, now)
	if !e.sessions.Reserve(roomID, s) {
		return StartInfo{}, domain.ErrSessionAlreadyRunning
	}

	qt := e.questionTime()
	info := StartInfo{
		Topic:           topicLabel,
		Mode:            mode,
		Questions:       len(order),
		QuestionSeconds: int(qt / time.Second),
		MarkCorrect:     e.markCorrect(),
		MarkWrong:       e.markWrong(),
	}
	e.rooms.SessionStarted(roomID, info)

	s.mu.Lock()
	view, ok := e.viewLocked(s, qt, qt)
	s.mu.Unlock()
	if ok {
		e.rooms.QuestionPosted(roomID, view)
	}
	e.log.Info().Str("room", roomID).Str("run", s.runID).Str("topic", topicLabel).
		Int("questions", len(order)).Msg("session started")
	return info, nil
}

// Pause freezes the room's session. Returns false when already paused.
func (e *Engine) Pause(ctx context.Context, roomID, requesterID string) (bool, error) {
	if err := e.requirePrivileged(ctx, roomID, requesterID); err != nil {
		return false, err
	}
	s, ok := e.sessions.Get(roomID)
	if !ok {
		return false, domain.ErrNoActiveSession
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.paused {
		return false, nil
	}
	s.paused = true
	s.pausedAt = e.now()
	return true, nil
}

// Resume unfreezes the session, shifting the question deadline by the paused
// duration so no time is lost. Returns false when not paused.
func (e *Engine) Resume(ctx context.Context, roomID, requesterID string) (bool, error) {
	if err := e.requirePrivileged(ctx, roomID, requesterID); err != nil {
		return false, err
	}
	s, ok := e.sessions.Get(roomID)
	if !ok {
		return false, domain.ErrNoActiveSession
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.paused {
		return false, nil
	}
	idle := e.now().Sub(s.pausedAt)
	s.questionStart = s.questionStart.Add(idle)
	s.lastProgress = s.lastProgress.Add(idle)
	s.paused = false
	return true, nil
}

// Stop discards the session with no finalization and no history record.
func (e *Engine) Stop(ctx context.Context, roomID, requesterID string) error {
	if err := e.requirePrivileged(ctx, roomID, requesterID); err != nil {
		return err
	}
	if !e.sessions.Delete(roomID) {
		return domain.ErrNoActiveSession
	}
	e.log.Info().Str("room", roomID).Msg("session stopped")
	return nil
}

// Submit admits one answer for the room's active question. The admission checks
// run under the session lock, so for a fixed (room, question, participant)
// triple at most one acceptance ever occurs.
func (e *Engine) Submit(ctx context.Context, roomID, participantID, displayName string, questionID int64, option int) (domain.AnswerReceipt, error) {
	s, ok := e.sessions.Get(roomID)
	if !ok {
		return domain.AnswerReceipt{}, domain.ErrNoActiveSession
	}

	qt := e.questionTime()
	now := e.now()

	s.mu.Lock()
	if s.paused {
		s.mu.Unlock()
		return domain.AnswerReceipt{}, domain.ErrSessionPaused
	}
	current, live := s.currentIDLocked()
	if !live {
		s.mu.Unlock()
		return domain.AnswerReceipt{}, domain.ErrNoActiveSession
	}
	if now.Sub(s.questionStart) >= qt {
		// Race-safety net: the tick driver will expire this question momentarily.
		s.mu.Unlock()
		return domain.AnswerReceipt{}, domain.ErrTimeExpired
	}
	if questionID != current {
		s.mu.Unlock()
		return domain.AnswerReceipt{}, domain.ErrStaleQuestion
	}
	if _, dup := s.admitted[participantID]; dup {
		s.mu.Unlock()
		return domain.AnswerReceipt{}, domain.ErrDuplicateAnswer
	}
	q, found := e.questions.Lookup(current)
	if !found {
		s.mu.Unlock()
		e.log.Warn().Str("room", roomID).Int64("question", current).Msg("active question missing from bank")
		return domain.AnswerReceipt{}, domain.ErrStaleQuestion
	}
	if option < 0 || option >= len(q.Options) {
		s.mu.Unlock()
		return domain.AnswerReceipt{}, domain.ErrInvalidAnswer
	}

	s.admitted[participantID] = struct{}{}
	t := s.tally[participantID]
	if t == nil {
		t = &domain.Tally{}
		s.tally[participantID] = t
	}
	t.Attempted++
	correct := option == q.CorrectIndex
	if correct {
		t.Correct++
	} else {
		t.Wrong++
	}
	delta := e.markWrong()
	if correct {
		delta = e.markCorrect()
	}
	// The score table is part of the room's ordering boundary: once the tick
	// driver can observe this tally, the cumulative delta has landed too.
	e.archive.ApplyDelta(ctx, roomID, participantID, displayName, delta)
	s.mu.Unlock()

	receipt := domain.AnswerReceipt{
		QuestionText:  q.Text,
		ChosenOption:  q.Options[option],
		CorrectOption: q.Options[q.CorrectIndex],
		Correct:       correct,
		Explanation:   q.Explanation,
	}
	if err := e.notifier.Notify(ctx, participantID, receipt); err != nil {
		e.log.Warn().Err(err).Str("participant", participantID).Msg("answer disclosure failed")
	}
	return receipt, nil
}

// Reset clears the room's cumulative score table.
func (e *Engine) Reset(ctx context.Context, roomID, requesterID string) error {
	if err := e.requirePrivileged(ctx, roomID, requesterID); err != nil {
		return err
	}
	e.archive.ResetBoard(ctx, roomID)
	e.log.Info().Str("room", roomID).Msg("score table reset")
	return nil
}

// SetQuestionTime adjusts the per-question duration, clamped to [5s, 600s].
// The change lives for the process lifetime; config remains the durable source.
func (e *Engine) SetQuestionTime(ctx context.Context, roomID, requesterID string, seconds int) (int, error) {
	if err := e.requirePrivileged(ctx, roomID, requesterID); err != nil {
		return 0, err
	}
	if seconds < 5 {
		seconds = 5
	}
	if seconds > 600 {
		seconds = 600
	}
	e.rulesMu.Lock()
	e.rules.QuestionTime = time.Duration(seconds) * time.Second
	e.rulesMu.Unlock()
	return seconds, nil
}

// finalize turns an exhausted session into history records and summaries, then
// destroys it. A session already discarded by Stop is a no-op.
func (e *Engine) finalize(ctx context.Context, roomID string, s *Session) {
	if !e.sessions.Delete(roomID) {
		return
	}

	s.mu.Lock()
	total := len(s.order)
	topic := s.topic
	runID := s.runID
	tallies := s.talliesLocked()
	s.mu.Unlock()

	participants := make([]string, 0, len(tallies))
	for id := range tallies {
		participants = append(participants, id)
	}
	sort.Strings(participants)

	names := make(map[string]string, len(participants))
	for _, entry := range e.archive.Board(roomID) {
		names[entry.ParticipantID] = entry.DisplayName
	}

	markCorrect, markWrong := e.markCorrect(), e.markWrong()
	ts := e.now().Unix()
	records := make([]domain.HistoryRecord, 0, len(participants))
	summaries := make([]domain.ParticipantSummary, 0, len(participants))
	for _, pid := range participants {
		t := tallies[pid]
		score := float64(t.Correct)*markCorrect + float64(t.Wrong)*markWrong
		name := names[pid]
		if name == "" {
			name = pid
		}
		cumulative, _ := e.archive.Score(roomID, pid)
		records = append(records, domain.HistoryRecord{
			SessionID:     runID,
			ParticipantID: pid,
			DisplayName:   name,
			SessionScore:  score,
			Timestamp:     ts,
			Topic:         topic,
		})
		summaries = append(summaries, domain.ParticipantSummary{
			ParticipantID:   pid,
			DisplayName:     name,
			Topic:           topic,
			TotalQuestions:  total,
			Correct:         t.Correct,
			Wrong:           t.Wrong,
			Skipped:         total - t.Attempted,
			SessionScore:    score,
			CumulativeScore: cumulative,
		})
	}

	e.archive.AppendHistory(ctx, roomID, records)
	for _, summary := range summaries {
		if err := e.notifier.Summary(ctx, summary.ParticipantID, summary); err != nil {
			e.log.Warn().Err(err).Str("participant", summary.ParticipantID).Msg("summary disclosure failed")
		}
	}
	e.rooms.SessionFinished(roomID, e.Cumulative(roomID))
	e.log.Info().Str("room", roomID).Str("run", runID).Int("participants", len(participants)).Msg("session finalized")
}

// viewLocked renders the active question. Caller holds s.mu.
func (e *Engine) viewLocked(s *Session, remaining, total time.Duration) (QuestionView, bool) {
	id, ok := s.currentIDLocked()
	if !ok {
		return QuestionView{}, false
	}
	q, found := e.questions.Lookup(id)
	if !found {
		return QuestionView{}, false
	}
	return QuestionView{
		QuestionID:       q.ID,
		Number:           s.position + 1,
		Total:            len(s.order),
		Text:             q.Text,
		Options:          q.Options,
		RemainingSeconds: int(remaining / time.Second),
		TimerBar:         timerBar(remaining, total),
	}, true
}

func (e *Engine) requirePrivileged(ctx context.Context, roomID, participantID string) error {
	ok, err := e.auth.IsPrivileged(ctx, roomID, participantID)
	if err != nil {
		e.log.Warn().Err(err).Str("room", roomID).Msg("authorization check failed")
		return domain.ErrNotAuthorized
	}
	if !ok {
		return domain.ErrNotAuthorized
	}
	return nil
}

func (e *Engine) questionTime() time.Duration {
	e.rulesMu.RLock()
	defer e.rulesMu.RUnlock()
	return e.rules.QuestionTime
}

func (e *Engine) markCorrect() float64 {
	e.rulesMu.RLock()
	defer e.rulesMu.RUnlock()
	return e.rules.MarkCorrect
}

func (e *Engine) markWrong() float64 {
	e.rulesMu.RLock()
	defer e.rulesMu.RUnlock()
	return e.rules.MarkWrong
}
