package models

import "time"

// Topic is a set of questions inside a subject. Every quiz attempt runs over one topic.
type Topic struct {
	ID          int64     `json:"id" db:"id"`
	SubjectID   int64     `json:"subject_id" db:"subject_id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`

	QuestionCount int `json:"question_count" db:"question_count"`
}
