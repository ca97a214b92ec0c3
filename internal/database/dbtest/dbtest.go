// Package dbtest provides in-memory databases and content fixtures for tests.
package dbtest

import (
	"context"
	"fmt"
	"testing"

	"github.com/example/quizbot/internal/database"
	"github.com/example/quizbot/pkg/models"
	"github.com/jmoiron/sqlx"
)

// New returns a fresh in-memory SQLite database with the schema applied
func New(t testing.TB) *sqlx.DB {
	t.Helper()
	db, err := database.Connect("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// Topic creates a subject with one topic holding n questions. Each question
// has three choices and the second one is correct.
func Topic(t testing.TB, db *sqlx.DB, name string, n int) (*models.Topic, []models.Question) {
	t.Helper()
	ctx := context.Background()

	subjects := database.NewSubjectRepository(db)
	subject, _, err := subjects.GetOrCreateByName(ctx, "Mathematics")
	if err != nil {
		t.Fatalf("failed to create subject: %v", err)
	}

	topic := &models.Topic{SubjectID: subject.ID, Name: name, Description: name + " basics"}
	if err := database.NewTopicRepository(db).Create(ctx, topic); err != nil {
		t.Fatalf("failed to create topic: %v", err)
	}

	questions := make([]models.Question, 0, n)
	repo := database.NewQuestionRepository(db)
	for i := 1; i <= n; i++ {
		q := models.Question{
			TopicID:     topic.ID,
			Text:        fmt.Sprintf("%s question %d", name, i),
			Explanation: fmt.Sprintf("Because of rule %d", i),
			Position:    i,
			Choices: []models.Choice{
				{Text: "wrong A"},
				{Text: "right", IsCorrect: true},
				{Text: "wrong B"},
			},
		}
		if err := repo.Create(ctx, &q); err != nil {
			t.Fatalf("failed to create question: %v", err)
		}
		questions = append(questions, q)
	}
	topic.QuestionCount = n
	return topic, questions
}

// User creates an application user
func User(t testing.TB, db *sqlx.DB, username string) *models.User {
	t.Helper()
	user := &models.User{Username: username, FirstName: username}
	if err := database.NewUserRepository(db).Create(context.Background(), user); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return user
}
