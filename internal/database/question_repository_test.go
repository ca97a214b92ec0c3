package database_test

import (
	"context"
	"errors"
	"testing"

	"github.com/example/quizbot/internal/database"
	"github.com/example/quizbot/internal/database/dbtest"
	"github.com/example/quizbot/pkg/models"
)

func TestListByTopicOrdering(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	topic, _ := dbtest.Topic(t, db, "Geometry", 0)
	repo := database.NewQuestionRepository(db)

	// Inserted out of order; position wins, id breaks ties
	for _, q := range []struct {
		text     string
		position int
	}{{"third", 2}, {"first", 1}, {"second", 1}} {
		question := &models.Question{
			TopicID:  topic.ID,
			Text:     q.text,
			Position: q.position,
			Choices:  []models.Choice{{Text: "yes", IsCorrect: true}, {Text: "no"}},
		}
		if err := repo.Create(ctx, question); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	questions, err := repo.ListByTopic(ctx, topic.ID)
	if err != nil {
		t.Fatalf("ListByTopic failed: %v", err)
	}
	want := []string{"first", "second", "third"}
	if len(questions) != len(want) {
		t.Fatalf("Expected %d questions, got %d", len(want), len(questions))
	}
	for i, q := range questions {
		if q.Text != want[i] {
			t.Errorf("Question %d: expected %q, got %q", i, want[i], q.Text)
		}
		if len(q.Choices) != 2 {
			t.Errorf("Question %q: expected 2 choices, got %d", q.Text, len(q.Choices))
		}
	}
}

func TestCreateQuestionRequiresCorrectChoice(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	topic, _ := dbtest.Topic(t, db, "Geometry", 0)
	repo := database.NewQuestionRepository(db)

	err := repo.Create(ctx, &models.Question{
		TopicID: topic.ID,
		Text:    "No right answer",
		Choices: []models.Choice{{Text: "a"}, {Text: "b"}},
	})
	if !errors.Is(err, database.ErrNoCorrectChoice) {
		t.Fatalf("Expected ErrNoCorrectChoice, got %v", err)
	}

	questions, err := repo.ListByTopic(ctx, topic.ID)
	if err != nil {
		t.Fatalf("ListByTopic failed: %v", err)
	}
	if len(questions) != 0 {
		t.Errorf("Expected no questions, got %d", len(questions))
	}
}

func TestChoiceChangesKeepACorrectChoice(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	_, questions := dbtest.Topic(t, db, "Geometry", 1)
	repo := database.NewQuestionRepository(db)
	correct := questions[0].Choices[1]

	if err := repo.DeleteChoice(ctx, correct.ID); !errors.Is(err, database.ErrNoCorrectChoice) {
		t.Errorf("Expected ErrNoCorrectChoice on delete, got %v", err)
	}
	correct.IsCorrect = false
	if err := repo.UpdateChoice(ctx, &correct); !errors.Is(err, database.ErrNoCorrectChoice) {
		t.Errorf("Expected ErrNoCorrectChoice on update, got %v", err)
	}

	stored, err := repo.GetChoice(ctx, correct.ID)
	if err != nil {
		t.Fatalf("GetChoice failed: %v", err)
	}
	if !stored.IsCorrect {
		t.Error("Expected choice to remain correct after rejected changes")
	}

	// A wrong choice can be removed freely
	if err := repo.DeleteChoice(ctx, questions[0].Choices[0].ID); err != nil {
		t.Errorf("DeleteChoice failed: %v", err)
	}
	if err := repo.DeleteChoice(ctx, 9999); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestTopicQuestionCount(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	topic, _ := dbtest.Topic(t, db, "Algebra", 3)

	stored, err := database.NewTopicRepository(db).GetByID(ctx, topic.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if stored.QuestionCount != 3 {
		t.Errorf("Expected 3 questions, got %d", stored.QuestionCount)
	}
}

func TestAnsweredContentCannotBeDeleted(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	topic, questions := dbtest.Topic(t, db, "Geometry", 2)
	user := dbtest.User(t, db, "alice")
	repo := database.NewQuestionRepository(db)
	attempts := database.NewAttemptRepository(db)
	attempt := startAttempt(t, attempts, user.ID, topic.ID, len(questions))

	answered := questions[0]
	if _, err := attempts.RecordAnswer(ctx, &models.AnswerRecord{
		QuizAttemptID:    attempt.ID,
		QuestionID:       answered.ID,
		SelectedChoiceID: answered.Choices[0].ID,
	}); err != nil {
		t.Fatalf("RecordAnswer failed: %v", err)
	}

	if err := repo.DeleteChoice(ctx, answered.Choices[0].ID); !errors.Is(err, database.ErrConflict) {
		t.Errorf("Expected ErrConflict deleting a selected choice, got %v", err)
	}
	if err := repo.Delete(ctx, answered.ID); !errors.Is(err, database.ErrConflict) {
		t.Errorf("Expected ErrConflict deleting an answered question, got %v", err)
	}

	answers, err := attempts.GetAnswers(ctx, attempt.ID)
	if err != nil {
		t.Fatalf("GetAnswers failed: %v", err)
	}
	if len(answers) != 1 || answers[0].SelectedChoiceID != answered.Choices[0].ID {
		t.Errorf("Expected the recorded answer to survive, got %+v", answers)
	}

	// Choices nobody picked and questions nobody answered stay editable
	if err := repo.DeleteChoice(ctx, answered.Choices[2].ID); err != nil {
		t.Errorf("DeleteChoice of an unselected choice failed: %v", err)
	}
	if err := repo.Delete(ctx, questions[1].ID); err != nil {
		t.Errorf("Delete of an unanswered question failed: %v", err)
	}
	if err := repo.Delete(ctx, 9999); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	// Removing the whole topic takes its attempts and answers along
	if err := database.NewTopicRepository(db).Delete(ctx, topic.ID); err != nil {
		t.Fatalf("Topic Delete failed: %v", err)
	}
	if _, err := attempts.GetByID(ctx, attempt.ID); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("Expected attempt to be removed with its topic, got %v", err)
	}
}
