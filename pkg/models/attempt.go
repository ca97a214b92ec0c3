package models

import "time"

// Attempt statuses
const (
	AttemptInProgress = "in_progress"
	AttemptCompleted  = "completed"
)

// QuizAttempt is one user's run through the questions of a topic
type QuizAttempt struct {
	ID             int64      `json:"id" db:"id"`
	UserID         int64      `json:"user_id" db:"user_id"`
	TopicID        int64      `json:"topic_id" db:"topic_id"`
	Status         string     `json:"status" db:"status"`
	Score          int        `json:"score" db:"score"`
	TotalQuestions int        `json:"total_questions" db:"total_questions"`
	StartedAt      time.Time  `json:"started_at" db:"started_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	RemindedAt     *time.Time `json:"-" db:"reminded_at"`

	TopicName string `json:"topic_name,omitempty" db:"topic_name"`
}

// IsCompleted reports whether the attempt reached its terminal state
func (a *QuizAttempt) IsCompleted() bool {
	return a.Status == AttemptCompleted
}
