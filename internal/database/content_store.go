package database

import (
	"context"

	"github.com/example/quizbot/pkg/models"
	"github.com/jmoiron/sqlx"
)

// ContentStore is the read side of quiz content used while running attempts
type ContentStore struct {
	topics    *TopicRepository
	questions *QuestionRepository
}

// NewContentStore creates a content store backed by the topic and question repositories
func NewContentStore(db *sqlx.DB) *ContentStore {
	return &ContentStore{
		topics:    NewTopicRepository(db),
		questions: NewQuestionRepository(db),
	}
}

func (s *ContentStore) TopicExists(ctx context.Context, topicID int64) (bool, error) {
	return s.topics.Exists(ctx, topicID)
}

func (s *ContentStore) ListQuestions(ctx context.Context, topicID int64) ([]models.Question, error) {
	return s.questions.ListByTopic(ctx, topicID)
}
