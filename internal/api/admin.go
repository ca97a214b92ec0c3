package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/example/quizbot/internal/database"
	"github.com/example/quizbot/internal/excel"
	"github.com/gin-gonic/gin"
)

// maxImportSize bounds uploaded spreadsheets
const maxImportSize = 10 << 20

type AdminHandler struct {
	badPasswords *database.BadPasswordRepository
	importer     *excel.Importer
}

func NewAdminHandler(badPasswords *database.BadPasswordRepository, importer *excel.Importer) *AdminHandler {
	return &AdminHandler{badPasswords: badPasswords, importer: importer}
}

type BadPasswordRequest struct {
	Password string `json:"password" binding:"required"`
}

func (h *AdminHandler) ListBadPasswords(c *gin.Context) {
	passwords, err := h.badPasswords.GetAll(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, passwords)
}

func (h *AdminHandler) AddBadPassword(c *gin.Context) {
	var req BadPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.badPasswords.Add(c.Request.Context(), strings.TrimSpace(req.Password)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, MessageResponse{Message: "password added"})
}

// Import loads questions from an uploaded .xlsx or .csv file (form field "file")
func (h *AdminHandler) Import(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		badRequest(c, fmt.Errorf("file is required: %w", err))
		return
	}
	if header.Size > maxImportSize {
		badRequest(c, fmt.Errorf("file is larger than %d bytes", maxImportSize))
		return
	}

	file, err := header.Open()
	if err != nil {
		respondError(c, err)
		return
	}
	defer file.Close()

	result, err := h.importer.Import(c.Request.Context(), file, header.Filename)
	if err != nil {
		badRequest(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
