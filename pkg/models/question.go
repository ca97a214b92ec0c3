package models

import "time"

// Question belongs to a topic and is served in (position, id) order
type Question struct {
	ID          int64     `json:"id" db:"id"`
	TopicID     int64     `json:"topic_id" db:"topic_id"`
	Text        string    `json:"text" db:"text"`
	Explanation string    `json:"explanation" db:"explanation"`
	ImageURL    string    `json:"image_url" db:"image_url"`
	Position    int       `json:"position" db:"position"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`

	Choices []Choice `json:"choices,omitempty" db:"-"`
}

// Choice is one selectable answer of a question
type Choice struct {
	ID         int64  `json:"id" db:"id"`
	QuestionID int64  `json:"question_id" db:"question_id"`
	Text       string `json:"text" db:"text"`
	IsCorrect  bool   `json:"is_correct" db:"is_correct"`
}

// CorrectChoice returns the first choice marked correct
func (q *Question) CorrectChoice() (Choice, bool) {
	for _, c := range q.Choices {
		if c.IsCorrect {
			return c, true
		}
	}
	return Choice{}, false
}
