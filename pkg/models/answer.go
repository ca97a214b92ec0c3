package models

import "time"

// AnswerRecord is the immutable record of one submitted choice within an attempt.
// There is at most one per (QuizAttemptID, QuestionID).
type AnswerRecord struct {
	ID               int64     `json:"id" db:"id"`
	QuizAttemptID    int64     `json:"quiz_attempt_id" db:"quiz_attempt_id"`
	QuestionID       int64     `json:"question_id" db:"question_id"`
	SelectedChoiceID int64     `json:"selected_choice_id" db:"selected_choice_id"`
	IsCorrect        bool      `json:"is_correct" db:"is_correct"`
	AnsweredAt       time.Time `json:"answered_at" db:"answered_at"`
}
