// Package quiz runs quiz attempts: starting one, serving questions in order,
// recording answers and producing results.
package quiz

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/example/quizbot/internal/database"
	"github.com/example/quizbot/pkg/models"
)

// ContentStore provides read access to topics and their questions
type ContentStore interface {
	TopicExists(ctx context.Context, topicID int64) (bool, error)
	// ListQuestions returns the questions of a topic in (position, id) order with their choices
	ListQuestions(ctx context.Context, topicID int64) ([]models.Question, error)
}

// AttemptStore persists attempts and answers
type AttemptStore interface {
	Create(ctx context.Context, attempt *models.QuizAttempt) error
	GetByID(ctx context.Context, id int64) (*models.QuizAttempt, error)
	GetByUser(ctx context.Context, userID int64, limit int) ([]models.QuizAttempt, error)
	GetAnswers(ctx context.Context, attemptID int64) ([]models.AnswerRecord, error)
	AnsweredQuestionIDs(ctx context.Context, attemptID int64) (map[int64]bool, error)
	// RecordAnswer stores the answer, updates the score and completes the
	// attempt when nothing is left, atomically
	RecordAnswer(ctx context.Context, answer *models.AnswerRecord) (*models.QuizAttempt, error)
	Complete(ctx context.Context, attemptID int64, at time.Time) error
}

// Engine is the quiz session state machine
type Engine struct {
	content  ContentStore
	attempts AttemptStore
	now      func() time.Time
}

// NewEngine creates an engine on top of the given stores
func NewEngine(content ContentStore, attempts AttemptStore) *Engine {
	return &Engine{
		content:  content,
		attempts: attempts,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// ChoiceView is a choice as shown to the player, without correctness
type ChoiceView struct {
	ID   int64  `json:"id"`
	Text string `json:"text"`
}

// QuestionView is a question as shown to the player
type QuestionView struct {
	ID       int64        `json:"id"`
	Text     string       `json:"text"`
	ImageURL string       `json:"image_url,omitempty"`
	Number   int          `json:"number"`
	Total    int          `json:"total"`
	Choices  []ChoiceView `json:"choices"`
}

// Result summarizes an attempt
type Result struct {
	AttemptID      int64      `json:"attempt_id"`
	TopicID        int64      `json:"topic_id"`
	TopicName      string     `json:"topic_name,omitempty"`
	Score          int        `json:"score"`
	TotalQuestions int        `json:"total_questions"`
	Percentage     float64    `json:"percentage"`
	Status         string     `json:"status"`
	StartedAt      time.Time  `json:"started_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// Start is returned when a new attempt begins
type Start struct {
	Attempt  *models.QuizAttempt `json:"attempt"`
	Question *QuestionView       `json:"question"`
}

// Next is either the next question to answer or the final result
type Next struct {
	Question  *QuestionView `json:"question,omitempty"`
	Completed bool          `json:"completed"`
	Result    *Result       `json:"result,omitempty"`
}

// Submission is the feedback for a recorded answer
type Submission struct {
	IsCorrect       bool   `json:"is_correct"`
	CorrectChoiceID int64  `json:"correct_choice_id"`
	Explanation     string `json:"explanation,omitempty"`
	Next            *Next  `json:"next"`
}

// ReviewItem describes one answered question of an attempt
type ReviewItem struct {
	QuestionID       int64  `json:"question_id"`
	Text             string `json:"text"`
	Explanation      string `json:"explanation,omitempty"`
	SelectedChoiceID int64  `json:"selected_choice_id"`
	SelectedText     string `json:"selected_text"`
	CorrectChoiceID  int64  `json:"correct_choice_id"`
	CorrectText      string `json:"correct_text"`
	IsCorrect        bool   `json:"is_correct"`
}

// Review lists the answers given in an attempt next to the correct ones
type Review struct {
	Result *Result      `json:"result"`
	Items  []ReviewItem `json:"items"`
}

// StartAttempt begins a new attempt on a topic and returns its first question
func (e *Engine) StartAttempt(ctx context.Context, userID, topicID int64) (*Start, error) {
	exists, err := e.content.TopicExists(ctx, topicID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, newError(KindNotFound, "topic %d not found", topicID)
	}

	questions, err := e.content.ListQuestions(ctx, topicID)
	if err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return nil, ErrEmptyTopic
	}

	attempt := &models.QuizAttempt{
		UserID:         userID,
		TopicID:        topicID,
		TotalQuestions: len(questions),
		StartedAt:      e.now(),
	}
	if err := e.attempts.Create(ctx, attempt); err != nil {
		return nil, err
	}
	log.Printf("User %d started attempt %d on topic %d (%d questions)", userID, attempt.ID, topicID, len(questions))

	return &Start{
		Attempt:  attempt,
		Question: newQuestionView(&questions[0], 1, attempt.TotalQuestions),
	}, nil
}

// NextQuestion returns the first unanswered question of the attempt. When
// nothing is left the attempt is completed and the result returned instead.
func (e *Engine) NextQuestion(ctx context.Context, userID, attemptID int64) (*Next, error) {
	attempt, err := e.loadAttempt(ctx, userID, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.IsCompleted() {
		return nil, ErrAttemptCompleted
	}

	questions, err := e.content.ListQuestions(ctx, attempt.TopicID)
	if err != nil {
		return nil, err
	}
	return e.advance(ctx, attempt, questions)
}

// SubmitAnswer records the chosen answer for a question of the attempt
func (e *Engine) SubmitAnswer(ctx context.Context, userID, attemptID, questionID, choiceID int64) (*Submission, error) {
	attempt, err := e.loadAttempt(ctx, userID, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.IsCompleted() {
		return nil, ErrAttemptCompleted
	}

	questions, err := e.content.ListQuestions(ctx, attempt.TopicID)
	if err != nil {
		return nil, err
	}
	question := findQuestion(questions, questionID)
	if question == nil {
		return nil, newError(KindNotFound, "question %d is not part of this quiz", questionID)
	}

	var selected *models.Choice
	for i := range question.Choices {
		if question.Choices[i].ID == choiceID {
			selected = &question.Choices[i]
			break
		}
	}
	if selected == nil {
		return nil, newError(KindInvalidChoice, "choice %d does not belong to question %d", choiceID, questionID)
	}

	updated, err := e.attempts.RecordAnswer(ctx, &models.AnswerRecord{
		QuizAttemptID:    attempt.ID,
		QuestionID:       question.ID,
		SelectedChoiceID: selected.ID,
		IsCorrect:        selected.IsCorrect,
		AnsweredAt:       e.now(),
	})
	if err != nil {
		return nil, storeError(err)
	}

	submission := &Submission{
		IsCorrect:   selected.IsCorrect,
		Explanation: question.Explanation,
	}
	if correct, ok := question.CorrectChoice(); ok {
		submission.CorrectChoiceID = correct.ID
	}

	if updated.IsCompleted() {
		log.Printf("Attempt %d completed with score %d/%d", updated.ID, updated.Score, updated.TotalQuestions)
		submission.Next = &Next{Completed: true, Result: newResult(updated)}
		return submission, nil
	}

	submission.Next, err = e.advance(ctx, updated, questions)
	if err != nil {
		return nil, err
	}
	return submission, nil
}

// GetResult returns the score summary of an attempt in any state
func (e *Engine) GetResult(ctx context.Context, userID, attemptID int64) (*Result, error) {
	attempt, err := e.loadAttempt(ctx, userID, attemptID)
	if err != nil {
		return nil, err
	}
	return newResult(attempt), nil
}

// ListAttempts returns the user's attempts, newest first
func (e *Engine) ListAttempts(ctx context.Context, userID int64, limit int) ([]Result, error) {
	attempts, err := e.attempts.GetByUser(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	results := make([]Result, 0, len(attempts))
	for i := range attempts {
		results = append(results, *newResult(&attempts[i]))
	}
	return results, nil
}

// Review returns every answered question of the attempt with the selected and
// the correct choice
func (e *Engine) Review(ctx context.Context, userID, attemptID int64) (*Review, error) {
	attempt, err := e.loadAttempt(ctx, userID, attemptID)
	if err != nil {
		return nil, err
	}

	answers, err := e.attempts.GetAnswers(ctx, attempt.ID)
	if err != nil {
		return nil, err
	}
	questions, err := e.content.ListQuestions(ctx, attempt.TopicID)
	if err != nil {
		return nil, err
	}

	review := &Review{Result: newResult(attempt), Items: make([]ReviewItem, 0, len(answers))}
	for _, answer := range answers {
		question := findQuestion(questions, answer.QuestionID)
		if question == nil {
			continue
		}
		item := ReviewItem{
			QuestionID:       question.ID,
			Text:             question.Text,
			Explanation:      question.Explanation,
			SelectedChoiceID: answer.SelectedChoiceID,
			IsCorrect:        answer.IsCorrect,
		}
		for _, c := range question.Choices {
			if c.ID == answer.SelectedChoiceID {
				item.SelectedText = c.Text
			}
		}
		if correct, ok := question.CorrectChoice(); ok {
			item.CorrectChoiceID = correct.ID
			item.CorrectText = correct.Text
		}
		review.Items = append(review.Items, item)
	}
	return review, nil
}

// advance serves the first unanswered question or completes the attempt
func (e *Engine) advance(ctx context.Context, attempt *models.QuizAttempt, questions []models.Question) (*Next, error) {
	answered, err := e.attempts.AnsweredQuestionIDs(ctx, attempt.ID)
	if err != nil {
		return nil, err
	}

	if len(answered) < attempt.TotalQuestions {
		for i := range questions {
			if !answered[questions[i].ID] {
				return &Next{Question: newQuestionView(&questions[i], len(answered)+1, attempt.TotalQuestions)}, nil
			}
		}
	}

	completedAt := e.now()
	err = e.attempts.Complete(ctx, attempt.ID, completedAt)
	switch {
	case err == nil:
		attempt.Status = models.AttemptCompleted
		attempt.CompletedAt = &completedAt
		log.Printf("Attempt %d completed with score %d/%d", attempt.ID, attempt.Score, attempt.TotalQuestions)
	case errors.Is(err, database.ErrAttemptClosed):
		// Completed concurrently, report the stored state
		attempt, err = e.attempts.GetByID(ctx, attempt.ID)
		if err != nil {
			return nil, storeError(err)
		}
	default:
		return nil, err
	}
	return &Next{Completed: true, Result: newResult(attempt)}, nil
}

// loadAttempt fetches an attempt owned by userID; foreign attempts look missing
func (e *Engine) loadAttempt(ctx context.Context, userID, attemptID int64) (*models.QuizAttempt, error) {
	attempt, err := e.attempts.GetByID(ctx, attemptID)
	if errors.Is(err, database.ErrNotFound) || (err == nil && attempt.UserID != userID) {
		return nil, newError(KindNotFound, "attempt %d not found", attemptID)
	}
	if err != nil {
		return nil, err
	}
	return attempt, nil
}

// storeError translates storage sentinels into quiz errors
func storeError(err error) error {
	switch {
	case errors.Is(err, database.ErrDuplicateAnswer):
		return ErrDuplicateAnswer
	case errors.Is(err, database.ErrAttemptClosed):
		return ErrAttemptCompleted
	case errors.Is(err, database.ErrNotFound):
		return ErrNotFound
	}
	return fmt.Errorf("quiz store: %w", err)
}

func findQuestion(questions []models.Question, id int64) *models.Question {
	for i := range questions {
		if questions[i].ID == id {
			return &questions[i]
		}
	}
	return nil
}

func newQuestionView(q *models.Question, number, total int) *QuestionView {
	view := &QuestionView{
		ID:       q.ID,
		Text:     q.Text,
		ImageURL: q.ImageURL,
		Number:   number,
		Total:    total,
		Choices:  make([]ChoiceView, 0, len(q.Choices)),
	}
	for _, c := range q.Choices {
		view.Choices = append(view.Choices, ChoiceView{ID: c.ID, Text: c.Text})
	}
	return view
}

func newResult(attempt *models.QuizAttempt) *Result {
	return &Result{
		AttemptID:      attempt.ID,
		TopicID:        attempt.TopicID,
		TopicName:      attempt.TopicName,
		Score:          attempt.Score,
		TotalQuestions: attempt.TotalQuestions,
		Percentage:     Percentage(attempt.Score, attempt.TotalQuestions),
		Status:         attempt.Status,
		StartedAt:      attempt.StartedAt,
		CompletedAt:    attempt.CompletedAt,
	}
}

// Percentage returns score/total*100 rounded to two decimals, 0 for an empty quiz
func Percentage(score, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(score)/float64(total)*100*100) / 100
}
