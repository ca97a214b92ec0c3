package database_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/example/quizbot/internal/database"
	"github.com/example/quizbot/internal/database/dbtest"
	"github.com/example/quizbot/pkg/models"
)

func startAttempt(t *testing.T, repo *database.AttemptRepository, userID, topicID int64, total int) *models.QuizAttempt {
	t.Helper()
	attempt := &models.QuizAttempt{UserID: userID, TopicID: topicID, TotalQuestions: total}
	if err := repo.Create(context.Background(), attempt); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	return attempt
}

func TestRecordAnswerScoresAndCompletes(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	topic, questions := dbtest.Topic(t, db, "Algebra", 2)
	user := dbtest.User(t, db, "alice")
	repo := database.NewAttemptRepository(db)
	attempt := startAttempt(t, repo, user.ID, topic.ID, len(questions))

	updated, err := repo.RecordAnswer(ctx, &models.AnswerRecord{
		QuizAttemptID:    attempt.ID,
		QuestionID:       questions[0].ID,
		SelectedChoiceID: questions[0].Choices[1].ID,
		IsCorrect:        true,
	})
	if err != nil {
		t.Fatalf("RecordAnswer failed: %v", err)
	}
	if updated.Score != 1 || updated.IsCompleted() {
		t.Errorf("Expected score 1 in progress, got score %d status %s", updated.Score, updated.Status)
	}

	updated, err = repo.RecordAnswer(ctx, &models.AnswerRecord{
		QuizAttemptID:    attempt.ID,
		QuestionID:       questions[1].ID,
		SelectedChoiceID: questions[1].Choices[0].ID,
	})
	if err != nil {
		t.Fatalf("RecordAnswer failed: %v", err)
	}
	if !updated.IsCompleted() || updated.CompletedAt == nil {
		t.Fatalf("Expected attempt to be completed, got status %s", updated.Status)
	}
	if updated.Score != 1 {
		t.Errorf("Expected score 1, got %d", updated.Score)
	}

	stored, err := repo.GetByID(ctx, attempt.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if !stored.IsCompleted() || stored.CompletedAt == nil {
		t.Errorf("Expected stored attempt to be completed, got %s", stored.Status)
	}
	if stored.TopicName != "Algebra" {
		t.Errorf("Expected topic name Algebra, got %q", stored.TopicName)
	}

	answers, err := repo.GetAnswers(ctx, attempt.ID)
	if err != nil {
		t.Fatalf("GetAnswers failed: %v", err)
	}
	if len(answers) != 2 {
		t.Errorf("Expected 2 answers, got %d", len(answers))
	}
}

func TestRecordAnswerRejectsDuplicate(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	topic, questions := dbtest.Topic(t, db, "Algebra", 2)
	user := dbtest.User(t, db, "alice")
	repo := database.NewAttemptRepository(db)
	attempt := startAttempt(t, repo, user.ID, topic.ID, len(questions))

	answer := func() *models.AnswerRecord {
		return &models.AnswerRecord{
			QuizAttemptID:    attempt.ID,
			QuestionID:       questions[0].ID,
			SelectedChoiceID: questions[0].Choices[1].ID,
			IsCorrect:        true,
		}
	}
	if _, err := repo.RecordAnswer(ctx, answer()); err != nil {
		t.Fatalf("RecordAnswer failed: %v", err)
	}
	_, err := repo.RecordAnswer(ctx, answer())
	if !errors.Is(err, database.ErrDuplicateAnswer) {
		t.Fatalf("Expected ErrDuplicateAnswer, got %v", err)
	}

	stored, err := repo.GetByID(ctx, attempt.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if stored.Score != 1 {
		t.Errorf("Expected score to stay 1, got %d", stored.Score)
	}
}

func TestRecordAnswerConcurrentSubmissions(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	topic, questions := dbtest.Topic(t, db, "Algebra", 3)
	user := dbtest.User(t, db, "alice")
	repo := database.NewAttemptRepository(db)
	attempt := startAttempt(t, repo, user.ID, topic.ID, len(questions))

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.RecordAnswer(ctx, &models.AnswerRecord{
				QuizAttemptID:    attempt.ID,
				QuestionID:       questions[0].ID,
				SelectedChoiceID: questions[0].Choices[1].ID,
				IsCorrect:        true,
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var succeeded, duplicates int
	for err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, database.ErrDuplicateAnswer):
			duplicates++
		default:
			t.Errorf("Unexpected error: %v", err)
		}
	}
	if succeeded != 1 || duplicates != workers-1 {
		t.Errorf("Expected 1 success and %d duplicates, got %d and %d", workers-1, succeeded, duplicates)
	}

	stored, err := repo.GetByID(ctx, attempt.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if stored.Score != 1 {
		t.Errorf("Expected score 1, got %d", stored.Score)
	}
}

func TestRecordAnswerClosedAndMissingAttempt(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	topic, questions := dbtest.Topic(t, db, "Algebra", 2)
	user := dbtest.User(t, db, "alice")
	repo := database.NewAttemptRepository(db)
	attempt := startAttempt(t, repo, user.ID, topic.ID, len(questions))

	if err := repo.Complete(ctx, attempt.ID, time.Now().UTC()); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if err := repo.Complete(ctx, attempt.ID, time.Now().UTC()); !errors.Is(err, database.ErrAttemptClosed) {
		t.Errorf("Expected ErrAttemptClosed on second Complete, got %v", err)
	}

	_, err := repo.RecordAnswer(ctx, &models.AnswerRecord{
		QuizAttemptID:    attempt.ID,
		QuestionID:       questions[0].ID,
		SelectedChoiceID: questions[0].Choices[1].ID,
		IsCorrect:        true,
	})
	if !errors.Is(err, database.ErrAttemptClosed) {
		t.Errorf("Expected ErrAttemptClosed, got %v", err)
	}

	_, err = repo.RecordAnswer(ctx, &models.AnswerRecord{
		QuizAttemptID:    attempt.ID + 100,
		QuestionID:       questions[0].ID,
		SelectedChoiceID: questions[0].Choices[1].ID,
	})
	if !errors.Is(err, database.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	answered, err := repo.AnsweredQuestionIDs(ctx, attempt.ID)
	if err != nil {
		t.Fatalf("AnsweredQuestionIDs failed: %v", err)
	}
	if len(answered) != 0 {
		t.Errorf("Expected no answers on a closed attempt, got %d", len(answered))
	}
}

func TestGetByUserNewestFirst(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	topic, questions := dbtest.Topic(t, db, "Algebra", 1)
	alice := dbtest.User(t, db, "alice")
	bob := dbtest.User(t, db, "bob")
	repo := database.NewAttemptRepository(db)

	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		attempt := &models.QuizAttempt{
			UserID:         alice.ID,
			TopicID:        topic.ID,
			TotalQuestions: len(questions),
			StartedAt:      base.Add(time.Duration(i) * time.Hour),
		}
		if err := repo.Create(ctx, attempt); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}
	startAttempt(t, repo, bob.ID, topic.ID, len(questions))

	attempts, err := repo.GetByUser(ctx, alice.ID, 10)
	if err != nil {
		t.Fatalf("GetByUser failed: %v", err)
	}
	if len(attempts) != 3 {
		t.Fatalf("Expected 3 attempts, got %d", len(attempts))
	}
	for i := 1; i < len(attempts); i++ {
		if attempts[i].StartedAt.After(attempts[i-1].StartedAt) {
			t.Errorf("Attempts are not ordered newest first: %v after %v", attempts[i].StartedAt, attempts[i-1].StartedAt)
		}
	}
}

func TestGetStaleAndMarkReminded(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	topic, questions := dbtest.Topic(t, db, "Algebra", 2)
	linked := dbtest.User(t, db, "alice")
	unlinked := dbtest.User(t, db, "bob")

	tgRepo := database.NewTelegramUserRepository(db)
	tu := &models.TelegramUser{TelegramID: 42, ChatID: 4242, LanguageCode: "en"}
	if _, err := tgRepo.Upsert(ctx, tu); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if err := tgRepo.LinkUser(ctx, 42, linked.ID); err != nil {
		t.Fatalf("LinkUser failed: %v", err)
	}

	repo := database.NewAttemptRepository(db)
	old := time.Now().UTC().Add(-12 * time.Hour)
	stale := &models.QuizAttempt{UserID: linked.ID, TopicID: topic.ID, TotalQuestions: len(questions), StartedAt: old}
	if err := repo.Create(ctx, stale); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	other := &models.QuizAttempt{UserID: unlinked.ID, TopicID: topic.ID, TotalQuestions: len(questions), StartedAt: old}
	if err := repo.Create(ctx, other); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	startAttempt(t, repo, linked.ID, topic.ID, len(questions))

	// Started long ago but answered a minute ago
	active := &models.QuizAttempt{UserID: linked.ID, TopicID: topic.ID, TotalQuestions: len(questions), StartedAt: old}
	if err := repo.Create(ctx, active); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := repo.RecordAnswer(ctx, &models.AnswerRecord{
		QuizAttemptID:    active.ID,
		QuestionID:       questions[0].ID,
		SelectedChoiceID: questions[0].Choices[1].ID,
		IsCorrect:        true,
		AnsweredAt:       time.Now().UTC().Add(-time.Minute),
	}); err != nil {
		t.Fatalf("RecordAnswer failed: %v", err)
	}

	// Started long ago and last answered long ago
	idle := &models.QuizAttempt{UserID: linked.ID, TopicID: topic.ID, TotalQuestions: len(questions), StartedAt: old.Add(-time.Hour)}
	if err := repo.Create(ctx, idle); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := repo.RecordAnswer(ctx, &models.AnswerRecord{
		QuizAttemptID:    idle.ID,
		QuestionID:       questions[0].ID,
		SelectedChoiceID: questions[0].Choices[0].ID,
		AnsweredAt:       old,
	}); err != nil {
		t.Fatalf("RecordAnswer failed: %v", err)
	}

	due, err := repo.GetStale(ctx, time.Now().UTC().Add(-6*time.Hour))
	if err != nil {
		t.Fatalf("GetStale failed: %v", err)
	}
	if len(due) != 2 {
		t.Fatalf("Expected 2 stale attempts, got %d", len(due))
	}
	if due[0].ID != idle.ID || due[1].ID != stale.ID {
		t.Errorf("Expected attempts %d and %d, got %d and %d", idle.ID, stale.ID, due[0].ID, due[1].ID)
	}
	if due[1].ChatID != 4242 || due[1].LanguageCode != "en" {
		t.Errorf("Unexpected stale attempt: %+v", due[1])
	}

	for _, id := range []int64{stale.ID, idle.ID} {
		if err := repo.MarkReminded(ctx, id, time.Now().UTC()); err != nil {
			t.Fatalf("MarkReminded failed: %v", err)
		}
	}
	due, err = repo.GetStale(ctx, time.Now().UTC().Add(-6*time.Hour))
	if err != nil {
		t.Fatalf("GetStale failed: %v", err)
	}
	if len(due) != 0 {
		t.Errorf("Expected no stale attempts after reminder, got %d", len(due))
	}
}
