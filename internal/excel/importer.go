package excel

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/example/quizbot/internal/database"
	"github.com/example/quizbot/pkg/models"
	"github.com/jmoiron/sqlx"
	"github.com/xuri/excelize/v2"
)

// ImportConfig defines the import configuration
type ImportConfig struct {
	SubjectColumn     string // Column with the subject name
	TopicColumn       string // Column with the topic name
	QuestionColumn    string // Column with the question text
	ExplanationColumn string // Column with the explanation shown after answering
	ImageColumn       string // Column with an optional image URL
	CorrectColumn     string // Column with the correct choice letters, e.g. "A" or "A,C"
	FirstChoiceColumn string // First choice column; choices continue to the right
	SheetName         string // Sheet to import, the first sheet when empty
	StartRow          int    // The row to start importing from (1-based index)
}

// DefaultImportConfig returns the default import configuration
func DefaultImportConfig() ImportConfig {
	return ImportConfig{
		SubjectColumn:     "A",
		TopicColumn:       "B",
		QuestionColumn:    "C",
		ExplanationColumn: "D",
		ImageColumn:       "E",
		CorrectColumn:     "F",
		FirstChoiceColumn: "G",
		StartRow:          2, // By default, start from the second row (skip header)
	}
}

// ImportResult holds the result of an import operation
type ImportResult struct {
	TotalProcessed  int      `json:"total_processed"`
	SubjectsCreated int      `json:"subjects_created"`
	TopicsCreated   int      `json:"topics_created"`
	Created         int      `json:"created"`
	Skipped         int      `json:"skipped"`
	Errors          []string `json:"errors"`
}

// Importer loads subjects, topics and questions from spreadsheets
type Importer struct {
	subjects  *database.SubjectRepository
	topics    *database.TopicRepository
	questions *database.QuestionRepository
	config    ImportConfig
}

// NewImporter creates an importer writing to db
func NewImporter(db *sqlx.DB, config ImportConfig) *Importer {
	if config.StartRow < 1 {
		config.StartRow = 1
	}
	return &Importer{
		subjects:  database.NewSubjectRepository(db),
		topics:    database.NewTopicRepository(db),
		questions: database.NewQuestionRepository(db),
		config:    config,
	}
}

// ImportFile imports an .xlsx or .csv file from disk
func (im *Importer) ImportFile(ctx context.Context, path string) (*ImportResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()
	return im.Import(ctx, f, filepath.Base(path))
}

// Import reads the file content from r. The extension of filename selects the format.
func (im *Importer) Import(ctx context.Context, r io.Reader, filename string) (*ImportResult, error) {
	var (
		rows [][]string
		err  error
	)
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		rows, err = readCSV(r)
	case ".xlsx", ".xlsm":
		rows, err = im.readWorkbook(r)
	default:
		return nil, fmt.Errorf("unsupported file type %q, expected .xlsx or .csv", filepath.Ext(filename))
	}
	if err != nil {
		return nil, err
	}

	result := im.importRows(ctx, rows)
	log.Printf("Imported %s: %d rows, %d questions created, %d skipped, %d errors",
		filename, result.TotalProcessed, result.Created, result.Skipped, len(result.Errors))
	return result, nil
}

func (im *Importer) readWorkbook(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheet := im.config.SheetName
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to get rows: %w", err)
	}
	return rows, nil
}

func readCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // Allow variable number of fields
	reader.LazyQuotes = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("error reading CSV: %w", err)
	}
	return rows, nil
}

// contentCache remembers subjects and topics resolved during one import
type contentCache struct {
	subjects map[string]int64
	topics   map[string]int64
}

func (im *Importer) importRows(ctx context.Context, rows [][]string) *ImportResult {
	result := &ImportResult{Errors: make([]string, 0)}
	cache := &contentCache{
		subjects: make(map[string]int64),
		topics:   make(map[string]int64),
	}

	for i, row := range rows {
		rowNum := i + 1
		if rowNum < im.config.StartRow || isBlank(row) {
			continue
		}
		result.TotalProcessed++
		if err := im.processRow(ctx, row, rowNum, cache, result); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %v", rowNum, err))
		}
	}
	return result
}

// processRow handles one question row
func (im *Importer) processRow(ctx context.Context, row []string, rowNum int, cache *contentCache, result *ImportResult) error {
	cell := func(column string) string {
		if column == "" {
			return ""
		}
		if idx := columnToIndex(column); idx < len(row) {
			return strings.TrimSpace(row[idx])
		}
		return ""
	}

	subjectName := cell(im.config.SubjectColumn)
	topicName := cell(im.config.TopicColumn)
	text := cell(im.config.QuestionColumn)
	if subjectName == "" || topicName == "" {
		return fmt.Errorf("subject and topic are required")
	}
	if text == "" {
		return fmt.Errorf("question cannot be empty")
	}

	choices, err := buildChoices(row, columnToIndex(im.config.FirstChoiceColumn), cell(im.config.CorrectColumn))
	if err != nil {
		return err
	}

	subjectID, err := im.subjectID(ctx, subjectName, cache, result)
	if err != nil {
		return err
	}
	topicID, err := im.topicID(ctx, subjectID, topicName, cache, result)
	if err != nil {
		return err
	}

	exists, err := im.questions.ExistsInTopic(ctx, topicID, text)
	if err != nil {
		return err
	}
	if exists {
		result.Skipped++
		return nil
	}

	question := &models.Question{
		TopicID:     topicID,
		Text:        text,
		Explanation: cell(im.config.ExplanationColumn),
		ImageURL:    cell(im.config.ImageColumn),
		Position:    rowNum,
		Choices:     choices,
	}
	if err := im.questions.Create(ctx, question); err != nil {
		return fmt.Errorf("failed to create question: %w", err)
	}
	result.Created++
	return nil
}

func (im *Importer) subjectID(ctx context.Context, name string, cache *contentCache, result *ImportResult) (int64, error) {
	if id, ok := cache.subjects[name]; ok {
		return id, nil
	}
	subject, created, err := im.subjects.GetOrCreateByName(ctx, name)
	if err != nil {
		return 0, fmt.Errorf("failed to process subject: %w", err)
	}
	if created {
		result.SubjectsCreated++
	}
	cache.subjects[name] = subject.ID
	return subject.ID, nil
}

func (im *Importer) topicID(ctx context.Context, subjectID int64, name string, cache *contentCache, result *ImportResult) (int64, error) {
	key := fmt.Sprintf("%d/%s", subjectID, name)
	if id, ok := cache.topics[key]; ok {
		return id, nil
	}
	topic, created, err := im.topics.GetOrCreate(ctx, subjectID, name)
	if err != nil {
		return 0, fmt.Errorf("failed to process topic: %w", err)
	}
	if created {
		result.TopicsCreated++
	}
	cache.topics[key] = topic.ID
	return topic.ID, nil
}

// buildChoices reads the choice cells starting at first and marks the ones
// named by the correct letters (A is the first choice column)
func buildChoices(row []string, first int, correct string) ([]models.Choice, error) {
	letters, err := parseLetters(correct)
	if err != nil {
		return nil, err
	}
	if len(letters) == 0 {
		return nil, fmt.Errorf("no correct choice given")
	}

	var texts []string
	if first < len(row) {
		texts = row[first:]
	}

	var choices []models.Choice
	for i, text := range texts {
		text = strings.TrimSpace(text)
		if letters[i] && text == "" {
			return nil, fmt.Errorf("correct choice %c is empty", 'A'+i)
		}
		if text == "" {
			continue
		}
		choices = append(choices, models.Choice{Text: text, IsCorrect: letters[i]})
	}
	for idx := range letters {
		if idx >= len(texts) {
			return nil, fmt.Errorf("correct choice %c is missing", 'A'+idx)
		}
	}
	if len(choices) < 2 {
		return nil, fmt.Errorf("at least two choices are required")
	}
	return choices, nil
}

// parseLetters turns "A", "a, c" or "B;D" into choice indexes
func parseLetters(s string) (map[int]bool, error) {
	letters := make(map[int]bool)
	for _, r := range strings.ToUpper(s) {
		switch {
		case r >= 'A' && r <= 'Z':
			letters[int(r-'A')] = true
		case r == ',' || r == ';' || r == ' ':
		default:
			return nil, fmt.Errorf("invalid correct choice %q", s)
		}
	}
	return letters, nil
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// Helper function to convert Excel column letter to index
func columnToIndex(column string) int {
	column = strings.ToUpper(column)
	index := 0
	for i := 0; i < len(column); i++ {
		index = index*26 + int(column[i]-'A'+1)
	}
	return index - 1
}
