package app

import (
	"context"

	"trivia-session-service/internal/domain"
)

// QuestionEditor is the engine's write contract with the question store. All
// editing operations are privileged.
type QuestionEditor interface {
	Add(ctx context.Context, q domain.Question) (int64, error)
	BulkAdd(ctx context.Context, questions []domain.Question) (added int, errs []error)
	Edit(ctx context.Context, id int64, q domain.Question) error
	Remove(ctx context.Context, ids []int64) (removed, missing []int64)
}

// WithQuestionEditor wires the writable question store. Without it, editing
// operations fail with ErrBankReadOnly.
func WithQuestionEditor(editor QuestionEditor) Option {
	return func(e *Engine) { e.editor = editor }
}

// AddQuestion appends one question to the bank and returns its assigned id.
func (e *Engine) AddQuestion(ctx context.Context, roomID, requesterID string, q domain.Question) (int64, error) {
	if err := e.requirePrivileged(ctx, roomID, requesterID); err != nil {
		return 0, err
	}
	if e.editor == nil {
		return 0, domain.ErrBankReadOnly
	}
	id, err := e.editor.Add(ctx, q)
	if err != nil {
		return 0, err
	}
	e.log.Info().Str("room", roomID).Int64("question", id).Msg("question added")
	return id, nil
}

// BulkAddQuestions adds each question independently, reporting per-item
// failures alongside the count of successes.
func (e *Engine) BulkAddQuestions(ctx context.Context, roomID, requesterID string, questions []domain.Question) (int, []error, error) {
	if err := e.requirePrivileged(ctx, roomID, requesterID); err != nil {
		return 0, nil, err
	}
	if e.editor == nil {
		return 0, nil, domain.ErrBankReadOnly
	}
	added, errs := e.editor.BulkAdd(ctx, questions)
	e.log.Info().Str("room", roomID).Int("added", added).Int("rejected", len(errs)).Msg("bulk question import")
	return added, errs, nil
}

// EditQuestion replaces a question's content, keeping its id and topic.
func (e *Engine) EditQuestion(ctx context.Context, roomID, requesterID string, id int64, q domain.Question) error {
	if err := e.requirePrivileged(ctx, roomID, requesterID); err != nil {
		return err
	}
	if e.editor == nil {
		return domain.ErrBankReadOnly
	}
	return e.editor.Edit(ctx, id, q)
}

// RemoveQuestions deletes the given ids, reporting which were unknown.
func (e *Engine) RemoveQuestions(ctx context.Context, roomID, requesterID string, ids []int64) (removed, missing []int64, err error) {
	if err := e.requirePrivileged(ctx, roomID, requesterID); err != nil {
		return nil, nil, err
	}
	if e.editor == nil {
		return nil, nil, domain.ErrBankReadOnly
	}
	removed, missing = e.editor.Remove(ctx, ids)
	return removed, missing, nil
}

// ListQuestions returns the full bank, correct answers included, so it is
// privileged like the other editing operations.
func (e *Engine) ListQuestions(ctx context.Context, roomID, requesterID string) ([]domain.Question, error) {
	if err := e.requirePrivileged(ctx, roomID, requesterID); err != nil {
		return nil, err
	}
	return e.questions.All(), nil
}

// Topics lists the distinct topics available for session filters.
func (e *Engine) Topics() []string {
	return e.questions.Topics()
}
