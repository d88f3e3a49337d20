package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"trivia-session-service/internal/domain"
)

func TestTickExpiresAndAdvances(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, testQuestions(2), nil)

	if _, err := env.engine.Start(ctx, "room-1", "admin", "", "full"); err != nil {
		t.Fatalf("start: %v", err)
	}
	first, _ := env.sink.lastQuestion()

	env.clock.Advance(45 * time.Second)
	env.engine.Tick(ctx)

	reveal, ok := env.sink.lastTimeUp()
	if !ok {
		t.Fatalf("expected a reveal after expiry")
	}
	if reveal.QuestionID != first.QuestionID {
		t.Fatalf("expected reveal for question %d, got %d", first.QuestionID, reveal.QuestionID)
	}
	q, _ := env.bank.Lookup(first.QuestionID)
	if reveal.CorrectOption != q.Options[q.CorrectIndex] {
		t.Fatalf("expected correct option %q, got %q", q.Options[q.CorrectIndex], reveal.CorrectOption)
	}

	second, _ := env.sink.lastQuestion()
	if second.QuestionID == first.QuestionID || second.Number != 2 {
		t.Fatalf("expected the second question, got %+v", second)
	}

	// An answer for the question the room moved past is rejected and leaves the
	// score table untouched.
	if _, err := env.engine.Submit(ctx, "room-1", "u1", "Alice", first.QuestionID, 0); !errors.Is(err, domain.ErrStaleQuestion) {
		t.Fatalf("expected stale-question error, got %v", err)
	}
	if _, ok := env.archive.Score("room-1", "u1"); ok {
		t.Fatalf("rejected answer must not create a score entry")
	}

	env.clock.Advance(45 * time.Second)
	env.engine.Tick(ctx)

	if n := env.sink.timeUpCount(); n != 2 {
		t.Fatalf("expected 2 reveals, got %d", n)
	}
	if n := len(env.sink.finishedBoards()); n != 1 {
		t.Fatalf("expected a finished event, got %d", n)
	}
	if n := env.sink.questionCount(); n != 2 {
		t.Fatalf("no question should follow the last one, got %d posts", n)
	}
	if _, err := env.engine.Submit(ctx, "room-1", "u1", "Alice", second.QuestionID, 0); !errors.Is(err, domain.ErrNoActiveSession) {
		t.Fatalf("expected no-session error after the run, got %v", err)
	}
}

func TestProgressCadence(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, testQuestions(8), nil)

	if _, err := env.engine.Start(ctx, "room-1", "admin", "", "short"); err != nil {
		t.Fatalf("start: %v", err)
	}

	// Refresh every 5s above 25s remaining, every 3s between 10 and 25, every
	// 2s below 10.
	steps := []struct {
		advance       time.Duration
		emit          bool
		wantRemaining int
	}{
		{1 * time.Second, false, 0},
		{4 * time.Second, true, 40},
		{3 * time.Second, false, 0},
		{2 * time.Second, true, 35},
		{11 * time.Second, true, 24},
		{2 * time.Second, false, 0},
		{1 * time.Second, true, 21},
		{12 * time.Second, true, 9},
		{1 * time.Second, false, 0},
		{1 * time.Second, true, 7},
	}
	for i, step := range steps {
		before := len(env.sink.progressViews())
		env.clock.Advance(step.advance)
		env.engine.Tick(ctx)
		views := env.sink.progressViews()
		emitted := len(views) > before
		if emitted != step.emit {
			t.Fatalf("step %d: expected emit=%v, got %v", i, step.emit, emitted)
		}
		if step.emit && views[len(views)-1].RemainingSeconds != step.wantRemaining {
			t.Fatalf("step %d: expected %ds remaining, got %d", i, step.wantRemaining, views[len(views)-1].RemainingSeconds)
		}
	}

	// No progress event ever changed the active question.
	if n := env.sink.questionCount(); n != 1 {
		t.Fatalf("progress must not advance the session, got %d question posts", n)
	}
}

func TestProgressBarDrains(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, testQuestions(8), nil)

	if _, err := env.engine.Start(ctx, "room-1", "admin", "", "short"); err != nil {
		t.Fatalf("start: %v", err)
	}

	env.clock.Advance(5 * time.Second)
	env.engine.Tick(ctx)
	views := env.sink.progressViews()
	if len(views) != 1 {
		t.Fatalf("expected one progress event, got %d", len(views))
	}
	// 40 of 45 seconds left fills 8 of 10 blocks.
	if views[0].TimerBar != "████████░░" {
		t.Fatalf("unexpected timer bar %q", views[0].TimerBar)
	}
}

func TestTickSkipsPausedSessions(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, testQuestions(8), nil)

	if _, err := env.engine.Start(ctx, "room-1", "admin", "", "short"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := env.engine.Pause(ctx, "room-1", "admin"); err != nil {
		t.Fatalf("pause: %v", err)
	}

	for i := 0; i < 10; i++ {
		env.clock.Advance(10 * time.Second)
		env.engine.Tick(ctx)
	}

	if n := env.sink.timeUpCount(); n != 0 {
		t.Fatalf("paused session must not expire, got %d reveals", n)
	}
	if n := len(env.sink.progressViews()); n != 0 {
		t.Fatalf("paused session must not refresh progress, got %d", n)
	}
	if n := env.sink.questionCount(); n != 1 {
		t.Fatalf("paused session must not advance, got %d question posts", n)
	}
}
