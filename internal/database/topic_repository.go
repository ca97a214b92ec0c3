package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/example/quizbot/pkg/models"
	"github.com/jmoiron/sqlx"
)

// TopicRepository handles database operations for topics
type TopicRepository struct {
	db *sqlx.DB
}

// NewTopicRepository creates a new repository instance
func NewTopicRepository(db *sqlx.DB) *TopicRepository {
	return &TopicRepository{db: db}
}

const topicColumns = `
	t.id, t.subject_id, t.name, t.description, t.created_at,
	(SELECT COUNT(*) FROM questions q WHERE q.topic_id = t.id) AS question_count
`

// GetAll returns every topic ordered by subject and name
func (r *TopicRepository) GetAll(ctx context.Context) ([]models.Topic, error) {
	topics := []models.Topic{}
	query := "SELECT " + topicColumns + " FROM topics t ORDER BY t.subject_id, t.name, t.id"
	if err := r.db.SelectContext(ctx, &topics, query); err != nil {
		return nil, fmt.Errorf("failed to get topics: %w", err)
	}
	return topics, nil
}

// GetBySubject returns all topics of a subject
func (r *TopicRepository) GetBySubject(ctx context.Context, subjectID int64) ([]models.Topic, error) {
	topics := []models.Topic{}
	query := r.db.Rebind("SELECT " + topicColumns + " FROM topics t WHERE t.subject_id = ? ORDER BY t.name, t.id")
	if err := r.db.SelectContext(ctx, &topics, query, subjectID); err != nil {
		return nil, fmt.Errorf("failed to get topics: %w", err)
	}
	return topics, nil
}

// GetByID returns a topic by ID
func (r *TopicRepository) GetByID(ctx context.Context, id int64) (*models.Topic, error) {
	var topic models.Topic
	query := r.db.Rebind("SELECT " + topicColumns + " FROM topics t WHERE t.id = ?")
	err := r.db.GetContext(ctx, &topic, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get topic: %w", err)
	}
	return &topic, nil
}

// Exists reports whether a topic with the given ID exists
func (r *TopicRepository) Exists(ctx context.Context, id int64) (bool, error) {
	var count int
	err := r.db.GetContext(ctx, &count, r.db.Rebind("SELECT COUNT(*) FROM topics WHERE id = ?"), id)
	if err != nil {
		return false, fmt.Errorf("failed to check topic: %w", err)
	}
	return count > 0, nil
}

// Create inserts a new topic
func (r *TopicRepository) Create(ctx context.Context, topic *models.Topic) error {
	topic.CreatedAt = time.Now().UTC()

	query := r.db.Rebind(`
		INSERT INTO topics (subject_id, name, description, created_at)
		VALUES (?, ?, ?, ?)
		RETURNING id
	`)
	err := r.db.QueryRowxContext(ctx, query,
		topic.SubjectID,
		topic.Name,
		topic.Description,
		topic.CreatedAt,
	).Scan(&topic.ID)
	if err != nil {
		return fmt.Errorf("failed to create topic: %w", err)
	}
	return nil
}

// Update updates an existing topic
func (r *TopicRepository) Update(ctx context.Context, topic *models.Topic) error {
	query := r.db.Rebind(`
		UPDATE topics
		SET subject_id = ?, name = ?, description = ?
		WHERE id = ?
	`)
	result, err := r.db.ExecContext(ctx, query, topic.SubjectID, topic.Name, topic.Description, topic.ID)
	if err != nil {
		return fmt.Errorf("failed to update topic: %w", err)
	}
	return expectRow(result)
}

// Delete removes a topic and, through cascades, its questions and attempts
func (r *TopicRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, r.db.Rebind("DELETE FROM topics WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("failed to delete topic: %w", err)
	}
	return expectRow(result)
}

// GetOrCreate returns the topic with the given name in a subject, creating it when missing
func (r *TopicRepository) GetOrCreate(ctx context.Context, subjectID int64, name string) (*models.Topic, bool, error) {
	var topic models.Topic
	query := r.db.Rebind("SELECT " + topicColumns + " FROM topics t WHERE t.subject_id = ? AND t.name = ? ORDER BY t.id LIMIT 1")
	err := r.db.GetContext(ctx, &topic, query, subjectID, name)
	if err == nil {
		return &topic, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("failed to get topic: %w", err)
	}

	topic = models.Topic{SubjectID: subjectID, Name: name}
	if err := r.Create(ctx, &topic); err != nil {
		return nil, false, err
	}
	return &topic, true, nil
}
