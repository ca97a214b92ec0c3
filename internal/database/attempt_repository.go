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

// AttemptRepository stores quiz attempts and their answer records
type AttemptRepository struct {
	db *sqlx.DB
}

// NewAttemptRepository creates a new repository instance
func NewAttemptRepository(db *sqlx.DB) *AttemptRepository {
	return &AttemptRepository{db: db}
}

const attemptColumns = `
	a.id, a.user_id, a.topic_id, a.status, a.score, a.total_questions,
	a.started_at, a.completed_at, a.reminded_at, t.name AS topic_name
`

// Create inserts a new in-progress attempt
func (r *AttemptRepository) Create(ctx context.Context, attempt *models.QuizAttempt) error {
	if attempt.StartedAt.IsZero() {
		attempt.StartedAt = time.Now().UTC()
	}
	attempt.Status = models.AttemptInProgress
	attempt.Score = 0

	query := r.db.Rebind(`
		INSERT INTO quiz_attempts (user_id, topic_id, status, score, total_questions, started_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id
	`)
	err := r.db.QueryRowxContext(ctx, query,
		attempt.UserID,
		attempt.TopicID,
		attempt.Status,
		attempt.Score,
		attempt.TotalQuestions,
		attempt.StartedAt,
	).Scan(&attempt.ID)
	if err != nil {
		return fmt.Errorf("failed to create attempt: %w", err)
	}
	return nil
}

// GetByID returns an attempt by ID
func (r *AttemptRepository) GetByID(ctx context.Context, id int64) (*models.QuizAttempt, error) {
	return getAttempt(ctx, r.db, id)
}

func getAttempt(ctx context.Context, q sqlx.ExtContext, id int64) (*models.QuizAttempt, error) {
	var attempt models.QuizAttempt
	query := q.Rebind("SELECT " + attemptColumns + " FROM quiz_attempts a JOIN topics t ON t.id = a.topic_id WHERE a.id = ?")
	err := sqlx.GetContext(ctx, q, &attempt, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}
	return &attempt, nil
}

// GetByUser returns the attempts of a user, newest first
func (r *AttemptRepository) GetByUser(ctx context.Context, userID int64, limit int) ([]models.QuizAttempt, error) {
	if limit <= 0 {
		limit = 100
	}
	attempts := []models.QuizAttempt{}
	query := r.db.Rebind(`
		SELECT ` + attemptColumns + `
		FROM quiz_attempts a
		JOIN topics t ON t.id = a.topic_id
		WHERE a.user_id = ?
		ORDER BY a.started_at DESC, a.id DESC
		LIMIT ?
	`)
	if err := r.db.SelectContext(ctx, &attempts, query, userID, limit); err != nil {
		return nil, fmt.Errorf("failed to get attempts: %w", err)
	}
	return attempts, nil
}

// GetAnswers returns the answer records of an attempt in answering order
func (r *AttemptRepository) GetAnswers(ctx context.Context, attemptID int64) ([]models.AnswerRecord, error) {
	answers := []models.AnswerRecord{}
	query := r.db.Rebind(`
		SELECT id, quiz_attempt_id, question_id, selected_choice_id, is_correct, answered_at
		FROM answer_records
		WHERE quiz_attempt_id = ?
		ORDER BY answered_at, id
	`)
	if err := r.db.SelectContext(ctx, &answers, query, attemptID); err != nil {
		return nil, fmt.Errorf("failed to get answers: %w", err)
	}
	return answers, nil
}

// AnsweredQuestionIDs returns the set of questions already answered in an attempt
func (r *AttemptRepository) AnsweredQuestionIDs(ctx context.Context, attemptID int64) (map[int64]bool, error) {
	var ids []int64
	query := r.db.Rebind("SELECT question_id FROM answer_records WHERE quiz_attempt_id = ?")
	if err := r.db.SelectContext(ctx, &ids, query, attemptID); err != nil {
		return nil, fmt.Errorf("failed to get answered questions: %w", err)
	}
	answered := make(map[int64]bool, len(ids))
	for _, id := range ids {
		answered[id] = true
	}
	return answered, nil
}

// RecordAnswer stores an answer, bumps the score and completes the attempt when
// nothing is left to answer, all in one transaction. The UNIQUE(quiz_attempt_id,
// question_id) constraint decides between concurrent submissions: the loser gets
// ErrDuplicateAnswer. A finished attempt yields ErrAttemptClosed.
func (r *AttemptRepository) RecordAnswer(ctx context.Context, answer *models.AnswerRecord) (*models.QuizAttempt, error) {
	if answer.AnsweredAt.IsZero() {
		answer.AnsweredAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	// Locks the attempt row (postgres) and rejects closed attempts
	result, err := tx.ExecContext(ctx,
		tx.Rebind("UPDATE quiz_attempts SET score = score WHERE id = ? AND status = ?"),
		answer.QuizAttemptID, models.AttemptInProgress,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to lock attempt: %w", err)
	}
	if err := expectRow(result); err != nil {
		if _, getErr := getAttempt(ctx, tx, answer.QuizAttemptID); errors.Is(getErr, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, ErrAttemptClosed
	}

	query := tx.Rebind(`
		INSERT INTO answer_records (quiz_attempt_id, question_id, selected_choice_id, is_correct, answered_at)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id
	`)
	err = tx.QueryRowxContext(ctx, query,
		answer.QuizAttemptID,
		answer.QuestionID,
		answer.SelectedChoiceID,
		answer.IsCorrect,
		answer.AnsweredAt,
	).Scan(&answer.ID)
	if isUniqueViolation(err) {
		return nil, ErrDuplicateAnswer
	}
	if err != nil {
		return nil, fmt.Errorf("failed to record answer: %w", err)
	}

	if answer.IsCorrect {
		_, err = tx.ExecContext(ctx, tx.Rebind("UPDATE quiz_attempts SET score = score + 1 WHERE id = ?"), answer.QuizAttemptID)
		if err != nil {
			return nil, fmt.Errorf("failed to update score: %w", err)
		}
	}

	attempt, err := getAttempt(ctx, tx, answer.QuizAttemptID)
	if err != nil {
		return nil, err
	}

	var answered, remaining int
	err = tx.GetContext(ctx, &answered, tx.Rebind("SELECT COUNT(*) FROM answer_records WHERE quiz_attempt_id = ?"), attempt.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count answers: %w", err)
	}
	err = tx.GetContext(ctx, &remaining, tx.Rebind(`
		SELECT COUNT(*) FROM questions q
		WHERE q.topic_id = ?
		AND NOT EXISTS (
			SELECT 1 FROM answer_records r WHERE r.quiz_attempt_id = ? AND r.question_id = q.id
		)
	`), attempt.TopicID, attempt.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count remaining questions: %w", err)
	}

	if remaining == 0 || answered >= attempt.TotalQuestions {
		completedAt := answer.AnsweredAt
		if err := completeAttempt(ctx, tx, attempt.ID, completedAt); err != nil {
			return nil, err
		}
		attempt.Status = models.AttemptCompleted
		attempt.CompletedAt = &completedAt
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return attempt, nil
}

// Complete moves an in-progress attempt to completed
func (r *AttemptRepository) Complete(ctx context.Context, attemptID int64, at time.Time) error {
	return completeAttempt(ctx, r.db, attemptID, at)
}

func completeAttempt(ctx context.Context, q sqlx.ExtContext, attemptID int64, at time.Time) error {
	query := q.Rebind("UPDATE quiz_attempts SET status = ?, completed_at = ? WHERE id = ? AND status = ?")
	result, err := q.ExecContext(ctx, query, models.AttemptCompleted, at, attemptID, models.AttemptInProgress)
	if err != nil {
		return fmt.Errorf("failed to complete attempt: %w", err)
	}
	if err := expectRow(result); err != nil {
		return ErrAttemptClosed
	}
	return nil
}

// StaleAttempt is an unfinished attempt of a Telegram user that is due for a reminder
type StaleAttempt struct {
	models.QuizAttempt
	ChatID       int64  `db:"chat_id"`
	LanguageCode string `db:"language_code"`
}

// GetStale returns unfinished attempts with no activity since the given time
// whose owner has a linked Telegram account and which were not reminded yet.
// Activity is the latest answer, or the start when nothing was answered.
func (r *AttemptRepository) GetStale(ctx context.Context, before time.Time) ([]StaleAttempt, error) {
	attempts := []StaleAttempt{}
	query := r.db.Rebind(`
		SELECT ` + attemptColumns + `, tu.chat_id, tu.language_code
		FROM quiz_attempts a
		JOIN topics t ON t.id = a.topic_id
		JOIN telegram_users tu ON tu.user_id = a.user_id
		WHERE a.status = ? AND a.reminded_at IS NULL
			AND COALESCE(
				(SELECT MAX(ar.answered_at) FROM answer_records ar WHERE ar.quiz_attempt_id = a.id),
				a.started_at
			) < ?
		ORDER BY a.started_at
	`)
	if err := r.db.SelectContext(ctx, &attempts, query, models.AttemptInProgress, before); err != nil {
		return nil, fmt.Errorf("failed to get stale attempts: %w", err)
	}
	return attempts, nil
}

// MarkReminded records that a reminder was sent for the attempt
func (r *AttemptRepository) MarkReminded(ctx context.Context, attemptID int64, at time.Time) error {
	query := r.db.Rebind("UPDATE quiz_attempts SET reminded_at = ? WHERE id = ?")
	result, err := r.db.ExecContext(ctx, query, at, attemptID)
	if err != nil {
		return fmt.Errorf("failed to mark attempt reminded: %w", err)
	}
	return expectRow(result)
}
