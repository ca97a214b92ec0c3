package api

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/example/quizbot/internal/auth"
	"github.com/example/quizbot/internal/database"
	"github.com/example/quizbot/internal/quiz"
	"github.com/gin-gonic/gin"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error   string   `json:"error"`
	Kind    string   `json:"kind,omitempty"`
	Details []string `json:"details,omitempty"`
}

// MessageResponse is returned by operations without a payload
type MessageResponse struct {
	Message string `json:"message"`
}

// respondError maps domain errors onto HTTP statuses
func respondError(c *gin.Context, err error) {
	var (
		qe *quiz.Error
		ve *auth.ValidationError
	)
	switch {
	case errors.As(err, &qe):
		c.JSON(quizStatus(qe.Kind), ErrorResponse{Error: qe.Message, Kind: string(qe.Kind)})
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation failed", Kind: "validation", Details: ve.Problems})
	case errors.Is(err, database.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found", Kind: string(quiz.KindNotFound)})
	case errors.Is(err, database.ErrNoCorrectChoice):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Kind: "validation"})
	case errors.Is(err, auth.ErrUsernameTaken), errors.Is(err, database.ErrConflict):
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error(), Kind: "conflict"})
	case errors.Is(err, auth.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: err.Error(), Kind: string(quiz.KindUnauthenticated)})
	default:
		log.Printf("Error handling %s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
	}
}

func quizStatus(kind quiz.Kind) int {
	switch kind {
	case quiz.KindNotFound:
		return http.StatusNotFound
	case quiz.KindUnauthenticated:
		return http.StatusUnauthorized
	default:
		return http.StatusBadRequest
	}
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Kind: "bad_request"})
}

// pathID parses a numeric path parameter, answering 400 when it is malformed
func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid " + name, Kind: "bad_request"})
		return 0, false
	}
	return id, true
}
