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

// ErrNoCorrectChoice is returned when a write would leave a question without a correct choice
var ErrNoCorrectChoice = errors.New("question must have at least one correct choice")

// QuestionRepository handles questions and their choices
type QuestionRepository struct {
	db *sqlx.DB
}

// NewQuestionRepository creates a new repository instance
func NewQuestionRepository(db *sqlx.DB) *QuestionRepository {
	return &QuestionRepository{db: db}
}

const questionColumns = "id, topic_id, text, explanation, image_url, position, created_at"

// ListByTopic returns the questions of a topic in (position, id) order, choices included
func (r *QuestionRepository) ListByTopic(ctx context.Context, topicID int64) ([]models.Question, error) {
	questions := []models.Question{}
	query := r.db.Rebind("SELECT " + questionColumns + " FROM questions WHERE topic_id = ? ORDER BY position, id")
	if err := r.db.SelectContext(ctx, &questions, query, topicID); err != nil {
		return nil, fmt.Errorf("failed to get questions: %w", err)
	}
	if len(questions) == 0 {
		return questions, nil
	}

	var choices []models.Choice
	query = r.db.Rebind(`
		SELECT c.id, c.question_id, c.text, c.is_correct
		FROM choices c
		JOIN questions q ON q.id = c.question_id
		WHERE q.topic_id = ?
		ORDER BY c.question_id, c.id
	`)
	if err := r.db.SelectContext(ctx, &choices, query, topicID); err != nil {
		return nil, fmt.Errorf("failed to get choices: %w", err)
	}

	byQuestion := make(map[int64][]models.Choice, len(questions))
	for _, c := range choices {
		byQuestion[c.QuestionID] = append(byQuestion[c.QuestionID], c)
	}
	for i := range questions {
		questions[i].Choices = byQuestion[questions[i].ID]
	}
	return questions, nil
}

// GetByID returns a question with its choices
func (r *QuestionRepository) GetByID(ctx context.Context, id int64) (*models.Question, error) {
	var question models.Question
	query := r.db.Rebind("SELECT " + questionColumns + " FROM questions WHERE id = ?")
	err := r.db.GetContext(ctx, &question, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get question: %w", err)
	}

	question.Choices, err = r.GetChoices(ctx, id)
	if err != nil {
		return nil, err
	}
	return &question, nil
}

// GetChoices returns the choices of a question ordered by id
func (r *QuestionRepository) GetChoices(ctx context.Context, questionID int64) ([]models.Choice, error) {
	choices := []models.Choice{}
	query := r.db.Rebind("SELECT id, question_id, text, is_correct FROM choices WHERE question_id = ? ORDER BY id")
	if err := r.db.SelectContext(ctx, &choices, query, questionID); err != nil {
		return nil, fmt.Errorf("failed to get choices: %w", err)
	}
	return choices, nil
}

// ExistsInTopic reports whether a topic already has a question with the given text
func (r *QuestionRepository) ExistsInTopic(ctx context.Context, topicID int64, text string) (bool, error) {
	var count int
	query := r.db.Rebind("SELECT COUNT(*) FROM questions WHERE topic_id = ? AND text = ?")
	if err := r.db.GetContext(ctx, &count, query, topicID, text); err != nil {
		return false, fmt.Errorf("failed to check question: %w", err)
	}
	return count > 0, nil
}

// Create inserts a question together with its choices in one transaction.
// At least one choice has to be marked correct.
func (r *QuestionRepository) Create(ctx context.Context, question *models.Question) error {
	if !hasCorrect(question.Choices) {
		return ErrNoCorrectChoice
	}
	question.CreatedAt = time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	query := tx.Rebind(`
		INSERT INTO questions (topic_id, text, explanation, image_url, position, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id
	`)
	err = tx.QueryRowxContext(ctx, query,
		question.TopicID,
		question.Text,
		question.Explanation,
		question.ImageURL,
		question.Position,
		question.CreatedAt,
	).Scan(&question.ID)
	if err != nil {
		return fmt.Errorf("failed to create question: %w", err)
	}

	for i := range question.Choices {
		question.Choices[i].QuestionID = question.ID
		if err := insertChoice(ctx, tx, &question.Choices[i]); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Update modifies the question fields; choices are managed separately
func (r *QuestionRepository) Update(ctx context.Context, question *models.Question) error {
	query := r.db.Rebind(`
		UPDATE questions
		SET topic_id = ?, text = ?, explanation = ?, image_url = ?, position = ?
		WHERE id = ?
	`)
	result, err := r.db.ExecContext(ctx, query,
		question.TopicID,
		question.Text,
		question.Explanation,
		question.ImageURL,
		question.Position,
		question.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update question: %w", err)
	}
	return expectRow(result)
}

// Delete removes a question with its choices. A question that has already
// been answered in some attempt is kept and ErrConflict is returned.
func (r *QuestionRepository) Delete(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	if err := refuseAnswered(ctx, tx, "question_id", id); err != nil {
		return err
	}
	result, err := tx.ExecContext(ctx, tx.Rebind("DELETE FROM questions WHERE id = ?"), id)
	if isForeignKeyViolation(err) {
		return fmt.Errorf("question %d has recorded answers: %w", id, ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to delete question: %w", err)
	}
	if err := expectRow(result); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// refuseAnswered returns ErrConflict when answer_records reference the row
func refuseAnswered(ctx context.Context, tx *sqlx.Tx, column string, id int64) error {
	var answers int
	query := tx.Rebind("SELECT COUNT(*) FROM answer_records WHERE " + column + " = ?")
	if err := tx.GetContext(ctx, &answers, query, id); err != nil {
		return fmt.Errorf("failed to count answers: %w", err)
	}
	if answers > 0 {
		return fmt.Errorf("%d recorded answers reference %s %d: %w", answers, column, id, ErrConflict)
	}
	return nil
}

// GetChoice returns a single choice
func (r *QuestionRepository) GetChoice(ctx context.Context, id int64) (*models.Choice, error) {
	var choice models.Choice
	query := r.db.Rebind("SELECT id, question_id, text, is_correct FROM choices WHERE id = ?")
	err := r.db.GetContext(ctx, &choice, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get choice: %w", err)
	}
	return &choice, nil
}

// AddChoice appends a choice to an existing question
func (r *QuestionRepository) AddChoice(ctx context.Context, choice *models.Choice) error {
	if _, err := r.GetByID(ctx, choice.QuestionID); err != nil {
		return err
	}
	return insertChoice(ctx, r.db, choice)
}

// UpdateChoice changes a choice, refusing to leave its question without a correct choice
func (r *QuestionRepository) UpdateChoice(ctx context.Context, choice *models.Choice) error {
	return r.changeChoices(ctx, choice.ID, func(tx *sqlx.Tx, current *models.Choice) error {
		choice.QuestionID = current.QuestionID
		query := tx.Rebind("UPDATE choices SET text = ?, is_correct = ? WHERE id = ?")
		_, err := tx.ExecContext(ctx, query, choice.Text, choice.IsCorrect, choice.ID)
		if err != nil {
			return fmt.Errorf("failed to update choice: %w", err)
		}
		return nil
	})
}

// DeleteChoice removes a choice, refusing to leave its question without a
// correct choice or to drop a choice somebody already selected
func (r *QuestionRepository) DeleteChoice(ctx context.Context, id int64) error {
	return r.changeChoices(ctx, id, func(tx *sqlx.Tx, _ *models.Choice) error {
		if err := refuseAnswered(ctx, tx, "selected_choice_id", id); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, tx.Rebind("DELETE FROM choices WHERE id = ?"), id)
		if isForeignKeyViolation(err) {
			return fmt.Errorf("choice %d has recorded answers: %w", id, ErrConflict)
		}
		if err != nil {
			return fmt.Errorf("failed to delete choice: %w", err)
		}
		return nil
	})
}

// changeChoices runs fn and commits only if the question still has a correct choice afterwards
func (r *QuestionRepository) changeChoices(ctx context.Context, choiceID int64, fn func(tx *sqlx.Tx, current *models.Choice) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	var current models.Choice
	err = tx.GetContext(ctx, &current, tx.Rebind("SELECT id, question_id, text, is_correct FROM choices WHERE id = ?"), choiceID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to get choice: %w", err)
	}

	if err := fn(tx, &current); err != nil {
		return err
	}

	var correct int
	query := tx.Rebind("SELECT COUNT(*) FROM choices WHERE question_id = ? AND is_correct = ?")
	if err := tx.GetContext(ctx, &correct, query, current.QuestionID, true); err != nil {
		return fmt.Errorf("failed to count correct choices: %w", err)
	}
	if correct == 0 {
		return ErrNoCorrectChoice
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func insertChoice(ctx context.Context, q sqlx.ExtContext, choice *models.Choice) error {
	query := q.Rebind(`
		INSERT INTO choices (question_id, text, is_correct)
		VALUES (?, ?, ?)
		RETURNING id
	`)
	err := q.QueryRowxContext(ctx, query, choice.QuestionID, choice.Text, choice.IsCorrect).Scan(&choice.ID)
	if err != nil {
		return fmt.Errorf("failed to create choice: %w", err)
	}
	return nil
}

func hasCorrect(choices []models.Choice) bool {
	for _, c := range choices {
		if c.IsCorrect {
			return true
		}
	}
	return false
}
