package api

import (
	"net/http"

	"github.com/example/quizbot/internal/database"
	"github.com/example/quizbot/pkg/models"
	"github.com/gin-gonic/gin"
)

type ContentHandler struct {
	subjects  *database.SubjectRepository
	topics    *database.TopicRepository
	questions *database.QuestionRepository
}

func NewContentHandler(subjects *database.SubjectRepository, topics *database.TopicRepository, questions *database.QuestionRepository) *ContentHandler {
	return &ContentHandler{subjects: subjects, topics: topics, questions: questions}
}

type SubjectRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

type TopicRequest struct {
	SubjectID   int64  `json:"subject_id" binding:"required"`
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

type ChoiceRequest struct {
	Text      string `json:"text" binding:"required"`
	IsCorrect bool   `json:"is_correct"`
}

type QuestionRequest struct {
	TopicID     int64           `json:"topic_id" binding:"required"`
	Text        string          `json:"text" binding:"required"`
	Explanation string          `json:"explanation"`
	ImageURL    string          `json:"image_url"`
	Position    int             `json:"position"`
	Choices     []ChoiceRequest `json:"choices" binding:"required,min=2,dive"`
}

type UpdateQuestionRequest struct {
	TopicID     int64  `json:"topic_id" binding:"required"`
	Text        string `json:"text" binding:"required"`
	Explanation string `json:"explanation"`
	ImageURL    string `json:"image_url"`
	Position    int    `json:"position"`
}

// Subjects

func (h *ContentHandler) ListSubjects(c *gin.Context) {
	subjects, err := h.subjects.GetAll(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, subjects)
}

func (h *ContentHandler) GetSubject(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	subject, err := h.subjects.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, subject)
}

func (h *ContentHandler) ListSubjectTopics(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if _, err := h.subjects.GetByID(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	topics, err := h.topics.GetBySubject(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, topics)
}

func (h *ContentHandler) CreateSubject(c *gin.Context) {
	var req SubjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	subject := &models.Subject{Name: req.Name, Description: req.Description}
	if err := h.subjects.Create(c.Request.Context(), subject); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, subject)
}

func (h *ContentHandler) UpdateSubject(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req SubjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	subject := &models.Subject{ID: id, Name: req.Name, Description: req.Description}
	if err := h.subjects.Update(c.Request.Context(), subject); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, subject)
}

func (h *ContentHandler) DeleteSubject(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.subjects.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "subject deleted"})
}

// Topics

func (h *ContentHandler) GetTopic(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	topic, err := h.topics.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, topic)
}

func (h *ContentHandler) CreateTopic(c *gin.Context) {
	var req TopicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if _, err := h.subjects.GetByID(c.Request.Context(), req.SubjectID); err != nil {
		respondError(c, err)
		return
	}
	topic := &models.Topic{SubjectID: req.SubjectID, Name: req.Name, Description: req.Description}
	if err := h.topics.Create(c.Request.Context(), topic); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, topic)
}

func (h *ContentHandler) UpdateTopic(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req TopicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	topic := &models.Topic{ID: id, SubjectID: req.SubjectID, Name: req.Name, Description: req.Description}
	if err := h.topics.Update(c.Request.Context(), topic); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, topic)
}

func (h *ContentHandler) DeleteTopic(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.topics.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "topic deleted"})
}

// Questions, admin only since they expose the correct choices

func (h *ContentHandler) ListTopicQuestions(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if _, err := h.topics.GetByID(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	questions, err := h.questions.ListByTopic(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, questions)
}

func (h *ContentHandler) GetQuestion(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	question, err := h.questions.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, question)
}

func (h *ContentHandler) CreateQuestion(c *gin.Context) {
	var req QuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if _, err := h.topics.GetByID(c.Request.Context(), req.TopicID); err != nil {
		respondError(c, err)
		return
	}

	question := &models.Question{
		TopicID:     req.TopicID,
		Text:        req.Text,
		Explanation: req.Explanation,
		ImageURL:    req.ImageURL,
		Position:    req.Position,
	}
	for _, choice := range req.Choices {
		question.Choices = append(question.Choices, models.Choice{Text: choice.Text, IsCorrect: choice.IsCorrect})
	}
	if err := h.questions.Create(c.Request.Context(), question); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, question)
}

func (h *ContentHandler) UpdateQuestion(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req UpdateQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	question := &models.Question{
		ID:          id,
		TopicID:     req.TopicID,
		Text:        req.Text,
		Explanation: req.Explanation,
		ImageURL:    req.ImageURL,
		Position:    req.Position,
	}
	if err := h.questions.Update(c.Request.Context(), question); err != nil {
		respondError(c, err)
		return
	}
	updated, err := h.questions.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *ContentHandler) DeleteQuestion(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.questions.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "question deleted"})
}

// Choices

func (h *ContentHandler) AddChoice(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req ChoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	choice := &models.Choice{QuestionID: id, Text: req.Text, IsCorrect: req.IsCorrect}
	if err := h.questions.AddChoice(c.Request.Context(), choice); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, choice)
}

func (h *ContentHandler) UpdateChoice(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req ChoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	choice := &models.Choice{ID: id, Text: req.Text, IsCorrect: req.IsCorrect}
	if err := h.questions.UpdateChoice(c.Request.Context(), choice); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, choice)
}

func (h *ContentHandler) DeleteChoice(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.questions.DeleteChoice(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "choice deleted"})
}
