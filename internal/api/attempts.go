package api

import (
	"net/http"
	"strconv"

	"github.com/example/quizbot/internal/quiz"
	"github.com/gin-gonic/gin"
)

type AttemptHandler struct {
	engine *quiz.Engine
}

func NewAttemptHandler(engine *quiz.Engine) *AttemptHandler {
	return &AttemptHandler{engine: engine}
}

type StartAttemptRequest struct {
	TopicID int64 `json:"topic_id" binding:"required"`
}

type SubmitAnswerRequest struct {
	QuestionID int64 `json:"question_id" binding:"required"`
	ChoiceID   int64 `json:"choice_id" binding:"required"`
}

// StartAttempt begins a quiz on a topic
func (h *AttemptHandler) StartAttempt(c *gin.Context) {
	userID, err := currentUser(c)
	if err != nil {
		respondError(c, err)
		return
	}

	var req StartAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	start, err := h.engine.StartAttempt(c.Request.Context(), userID, req.TopicID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, start)
}

// ListAttempts returns the caller's attempts, newest first
func (h *AttemptHandler) ListAttempts(c *gin.Context) {
	userID, err := currentUser(c)
	if err != nil {
		respondError(c, err)
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	results, err := h.engine.ListAttempts(c.Request.Context(), userID, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}

// NextQuestion returns the next unanswered question or the final result
func (h *AttemptHandler) NextQuestion(c *gin.Context) {
	userID, attemptID, ok := h.attemptParams(c)
	if !ok {
		return
	}

	next, err := h.engine.NextQuestion(c.Request.Context(), userID, attemptID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, next)
}

// SubmitAnswer records the caller's choice for a question
func (h *AttemptHandler) SubmitAnswer(c *gin.Context) {
	userID, attemptID, ok := h.attemptParams(c)
	if !ok {
		return
	}

	var req SubmitAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	submission, err := h.engine.SubmitAnswer(c.Request.Context(), userID, attemptID, req.QuestionID, req.ChoiceID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, submission)
}

// GetResult returns the score summary of an attempt
func (h *AttemptHandler) GetResult(c *gin.Context) {
	userID, attemptID, ok := h.attemptParams(c)
	if !ok {
		return
	}

	result, err := h.engine.GetResult(c.Request.Context(), userID, attemptID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Review lists the answered questions of an attempt with the correct choices
func (h *AttemptHandler) Review(c *gin.Context) {
	userID, attemptID, ok := h.attemptParams(c)
	if !ok {
		return
	}

	review, err := h.engine.Review(c.Request.Context(), userID, attemptID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, review)
}

func (h *AttemptHandler) attemptParams(c *gin.Context) (int64, int64, bool) {
	userID, err := currentUser(c)
	if err != nil {
		respondError(c, err)
		return 0, 0, false
	}
	attemptID, ok := pathID(c, "id")
	if !ok {
		return 0, 0, false
	}
	return userID, attemptID, true
}
