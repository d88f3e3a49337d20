package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"trivia-session-service/internal/app"
	"trivia-session-service/internal/archive"
	"trivia-session-service/internal/bank"
	"trivia-session-service/internal/domain"
	"trivia-session-service/internal/infra/memory"
)

func TestAddQuestionRequiresPrivilege(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, testQuestions(2), []string{"admin"})

	q := domain.Question{
		Text:         "New question",
		Options:      []string{"A", "B", "C", "D"},
		CorrectIndex: 0,
	}
	if _, err := env.engine.AddQuestion(ctx, "room-1", "mallory", q); !errors.Is(err, domain.ErrNotAuthorized) {
		t.Fatalf("expected authorization error, got %v", err)
	}

	id, err := env.engine.AddQuestion(ctx, "room-1", "admin", q)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	added, ok := env.bank.Lookup(id)
	if !ok || added.Text != "New question" {
		t.Fatalf("expected the question in the bank, got %+v ok=%v", added, ok)
	}
	if added.Topic != "General" {
		t.Fatalf("expected topic default, got %q", added.Topic)
	}
}

func TestBulkAddSurfacesPerItemFailures(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil, nil)

	added, failures, err := env.engine.BulkAddQuestions(ctx, "room-1", "admin", []domain.Question{
		{Text: "Good", Options: []string{"A", "B", "C", "D"}, CorrectIndex: 1},
		{Text: "Bad"},
	})
	if err != nil {
		t.Fatalf("bulk add: %v", err)
	}
	if added != 1 || len(failures) != 1 {
		t.Fatalf("expected 1 added and 1 failure, got added=%d failures=%v", added, failures)
	}
	if !errors.Is(failures[0], domain.ErrInvalidQuestion) {
		t.Fatalf("expected a validation failure, got %v", failures[0])
	}
}

func TestRemoveQuestionsReportsMissing(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, testQuestions(3), nil)

	removed, missing, err := env.engine.RemoveQuestions(ctx, "room-1", "admin", []int64{2, 9})
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(removed) != 1 || removed[0] != 2 {
		t.Fatalf("expected [2] removed, got %v", removed)
	}
	if len(missing) != 1 || missing[0] != 9 {
		t.Fatalf("expected [9] missing, got %v", missing)
	}
}

func TestListQuestionsIsPrivileged(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, testQuestions(3), []string{"admin"})

	if _, err := env.engine.ListQuestions(ctx, "room-1", "mallory"); !errors.Is(err, domain.ErrNotAuthorized) {
		t.Fatalf("expected authorization error, got %v", err)
	}
	questions, err := env.engine.ListQuestions(ctx, "room-1", "admin")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(questions) != 3 {
		t.Fatalf("expected 3 questions, got %d", len(questions))
	}

	// Topics, by contrast, are public input for session filters.
	if topics := env.engine.Topics(); len(topics) != 1 || topics[0] != "Geography" {
		t.Fatalf("unexpected topics %v", topics)
	}
}

func TestEditsRejectedWithoutWritableBank(t *testing.T) {
	ctx := context.Background()
	log := zerolog.Nop()

	store := memory.NewArchiveStore()
	arch, err := archive.Open(ctx, store, log)
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	bk, err := bank.Open(ctx, memory.NewStaticLoader(testQuestions(2)), memory.DiscardWriter{}, log)
	if err != nil {
		t.Fatalf("open bank: %v", err)
	}
	engine := app.NewEngine(
		memory.NewRegistry(), bk, arch,
		memory.NewStaticAuthorizer(nil),
		newRecordNotifier(), &recordSink{},
		app.Rules{QuestionTime: 45 * time.Second, MarkCorrect: 1, MarkWrong: -0.33},
		log,
	)

	_, err = engine.AddQuestion(ctx, "room-1", "admin", domain.Question{
		Text: "X", Options: []string{"A", "B", "C", "D"},
	})
	if !errors.Is(err, domain.ErrBankReadOnly) {
		t.Fatalf("expected read-only error, got %v", err)
	}
	if err := engine.EditQuestion(ctx, "room-1", "admin", 1, domain.Question{}); !errors.Is(err, domain.ErrBankReadOnly) {
		t.Fatalf("expected read-only error, got %v", err)
	}
}
