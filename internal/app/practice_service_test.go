package app_test

import (
	"context"
	"testing"
	"time"

	"practice-test-service/internal/app"
	"practice-test-service/internal/domain"
	"practice-test-service/internal/infra/memory"
)

func TestGradeWithNoSelections(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t)

	sessionID, views, err := service.Start(ctx, "bank-1", app.StartOptions{})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(views))
	}

	summary, err := service.Grade(ctx, sessionID)
	if err != nil {
		t.Fatalf("grade: %v", err)
	}
	if summary.Correct != 0 || summary.Total != 2 {
		t.Fatalf("expected 0/2, got %d/%d", summary.Correct, summary.Total)
	}
}

func TestGradeWorkedExample(t *testing.T) {
	// Two questions, Q1 correct "B", Q2 correct "A"; selecting Q1:"B" and
	// Q2:"C" grades 1 out of 2.
	ctx := context.Background()
	service, _ := newTestService(t)

	sessionID, _, err := service.Start(ctx, "bank-1", app.StartOptions{})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	if _, err := service.Select(ctx, sessionID, "q1", []int{1}); err != nil {
		t.Fatalf("select q1: %v", err)
	}
	if _, err := service.Select(ctx, sessionID, "q2", []int{2}); err != nil {
		t.Fatalf("select q2: %v", err)
	}

	summary, err := service.Grade(ctx, sessionID)
	if err != nil {
		t.Fatalf("grade: %v", err)
	}
	if summary.Correct != 1 || summary.Total != 2 {
		t.Fatalf("expected 1/2, got %d/%d", summary.Correct, summary.Total)
	}
}

func TestSelectLastWriteWins(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t)

	sessionID, _, err := service.Start(ctx, "bank-1", app.StartOptions{})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	// Wrong, then corrected; only the last value counts.
	if _, err := service.Select(ctx, sessionID, "q1", []int{0}); err != nil {
		t.Fatalf("select: %v", err)
	}
	result, err := service.Select(ctx, sessionID, "q1", []int{1})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if !result.Correct {
		t.Fatalf("expected corrected answer to be marked correct")
	}

	summary, _ := service.Grade(ctx, sessionID)
	if summary.Correct != 1 {
		t.Fatalf("expected 1 correct after overwrite, got %d", summary.Correct)
	}

	// Grading again is a pure read; same result.
	again, _ := service.Grade(ctx, sessionID)
	if again.Correct != summary.Correct || again.Total != summary.Total {
		t.Fatalf("expected repeatable grade, got %+v then %+v", summary, again)
	}
}

func TestAllCorrectGradesFullScore(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t)

	sessionID, _, err := service.Start(ctx, "bank-1", app.StartOptions{})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	if _, err := service.Select(ctx, sessionID, "q1", []int{1}); err != nil {
		t.Fatalf("select: %v", err)
	}
	if _, err := service.Select(ctx, sessionID, "q2", []int{0}); err != nil {
		t.Fatalf("select: %v", err)
	}

	summary, _ := service.Grade(ctx, sessionID)
	if summary.Correct != summary.Total {
		t.Fatalf("expected full score, got %d/%d", summary.Correct, summary.Total)
	}
}

func TestSelectValidation(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t)

	sessionID, _, err := service.Start(ctx, "bank-1", app.StartOptions{})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	if _, err := service.Select(ctx, sessionID, "nope", []int{0}); err != domain.ErrQuestionNotFound {
		t.Fatalf("expected ErrQuestionNotFound, got %v", err)
	}
	if _, err := service.Select(ctx, sessionID, "q1", []int{9}); err != domain.ErrChoiceNotFound {
		t.Fatalf("expected ErrChoiceNotFound, got %v", err)
	}
	if _, err := service.Select(ctx, "missing-session", "q1", []int{0}); err != domain.ErrSessionNotFound {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestSelectEmptyClearsSelection(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t)

	sessionID, _, _ := service.Start(ctx, "bank-1", app.StartOptions{})

	if _, err := service.Select(ctx, sessionID, "q1", []int{1}); err != nil {
		t.Fatalf("select: %v", err)
	}
	if _, err := service.Select(ctx, sessionID, "q1", nil); err != nil {
		t.Fatalf("clear: %v", err)
	}

	summary, _ := service.Grade(ctx, sessionID)
	if summary.Correct != 0 {
		t.Fatalf("expected cleared selection to grade as wrong, got %d", summary.Correct)
	}
}

func TestShuffleKeepsAnswerKeyAligned(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t)

	seed := int64(42)
	sessionID, views, err := service.Start(ctx, "bank-1", app.StartOptions{
		ShuffleQuestions: true,
		ShuffleChoices:   true,
		Seed:             &seed,
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	// Answer every question by locating the known-correct choice text in
	// the shuffled views; the remapped key must accept it.
	correctText := map[string]string{"q1": "B", "q2": "A"}
	for _, view := range views {
		want := correctText[view.ID]
		idx := -1
		for i, c := range view.Choices {
			if c == want {
				idx = i
				break
			}
		}
		if idx < 0 {
			t.Fatalf("question %s: choice %q missing after shuffle", view.ID, want)
		}
		result, err := service.Select(ctx, sessionID, view.ID, []int{idx})
		if err != nil {
			t.Fatalf("select %s: %v", view.ID, err)
		}
		if !result.Correct {
			t.Fatalf("question %s: remapped answer key rejected the correct choice", view.ID)
		}
	}

	summary, _ := service.Grade(ctx, sessionID)
	if summary.Correct != summary.Total {
		t.Fatalf("expected full score after shuffle, got %d/%d", summary.Correct, summary.Total)
	}
}

func TestTimeLimitBlocksLateSelections(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	session := app.NewSessionWithClock("s1", "bank-1", sampleQuestions(), time.Minute, clock)
	store := memory.NewSessionStore()
	store.Put(session)
	service := app.NewPracticeService(store, memory.NewBankRepository(memory.NewStaticBankLoader(nil), time.Minute))

	ctx := context.Background()
	if _, err := service.Select(ctx, "s1", "q1", []int{1}); err != nil {
		t.Fatalf("select before deadline: %v", err)
	}

	now = now.Add(2 * time.Minute)
	if _, err := service.Select(ctx, "s1", "q2", []int{0}); err != domain.ErrSessionExpired {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}

	// Grading stays available after expiry.
	summary, err := service.Grade(ctx, "s1")
	if err != nil {
		t.Fatalf("grade after expiry: %v", err)
	}
	if summary.Correct != 1 || summary.Total != 2 {
		t.Fatalf("expected 1/2 after expiry, got %d/%d", summary.Correct, summary.Total)
	}
}

func TestSubscribeReceivesProgress(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t)

	sessionID, _, _ := service.Start(ctx, "bank-1", app.StartOptions{})

	ch, cancel, err := service.Subscribe(ctx, sessionID)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	<-ch // initial snapshot

	if _, err := service.Select(ctx, sessionID, "q1", []int{1}); err != nil {
		t.Fatalf("select: %v", err)
	}

	update := <-ch
	if update.Answered != 1 || update.Score != 1 {
		t.Fatalf("expected answered=1 score=1, got %+v", update)
	}
}

func TestReviewRevealsAnswerKey(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t)

	sessionID, _, _ := service.Start(ctx, "bank-1", app.StartOptions{})
	if _, err := service.Select(ctx, sessionID, "q1", []int{1}); err != nil {
		t.Fatalf("select: %v", err)
	}

	review, err := service.Review(ctx, sessionID)
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if len(review.Entries) != 2 {
		t.Fatalf("expected 2 review entries, got %d", len(review.Entries))
	}
	if !review.Entries[0].IsCorrect || len(review.Entries[0].Correct) == 0 {
		t.Fatalf("expected revealed correct entry, got %+v", review.Entries[0])
	}
	if review.Entries[1].IsCorrect {
		t.Fatalf("expected unanswered entry marked wrong, got %+v", review.Entries[1])
	}
	if review.Summary.Correct != 1 {
		t.Fatalf("expected summary 1 correct, got %d", review.Summary.Correct)
	}
}

func TestDiscardDropsSession(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t)

	sessionID, _, _ := service.Start(ctx, "bank-1", app.StartOptions{})
	service.Discard(ctx, sessionID)

	if _, err := service.Grade(ctx, sessionID); err != domain.ErrSessionNotFound {
		t.Fatalf("expected ErrSessionNotFound after discard, got %v", err)
	}
}

func newTestService(t *testing.T) (*app.PracticeService, *memory.SessionStore) {
	t.Helper()
	store := memory.NewSessionStore()
	banks := memory.NewBankRepository(memory.NewStaticBankLoader(map[string]domain.Bank{
		"bank-1": {ID: "bank-1", Questions: sampleQuestions()},
	}), 5*time.Minute)
	return app.NewPracticeService(store, banks), store
}

func sampleQuestions() []domain.Question {
	return []domain.Question{
		{
			ID:      "q1",
			Prompt:  "Pick B",
			Choices: []string{"A", "B", "C"},
			Correct: []int{1},
		},
		{
			ID:      "q2",
			Prompt:  "Pick A",
			Choices: []string{"A", "B", "C"},
			Correct: []int{0},
		},
	}
}
