package memory

import (
	"context"

	"trivia-session-service/internal/domain"
)

// StaticLoader serves a fixed question list (tests, demos).
type StaticLoader struct {
	questions []domain.Question
}

func NewStaticLoader(questions []domain.Question) *StaticLoader {
	return &StaticLoader{questions: questions}
}

func (l *StaticLoader) LoadAll(_ context.Context) ([]domain.Question, error) {
	out := make([]domain.Question, len(l.questions))
	copy(out, l.questions)
	return out, nil
}

// DiscardWriter drops bank writes; pair with StaticLoader when no durable
// question store is configured.
type DiscardWriter struct{}

func (DiscardWriter) SaveAll(_ context.Context, _ []domain.Question) error { return nil }
