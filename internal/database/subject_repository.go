package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/example/quizbot/pkg/models"
	"github.com/jmoiron/sqlx"
)

// SubjectRepository handles database operations for subjects
type SubjectRepository struct {
	db *sqlx.DB
}

// NewSubjectRepository creates a new repository instance
func NewSubjectRepository(db *sqlx.DB) *SubjectRepository {
	return &SubjectRepository{db: db}
}

// GetAll returns all subjects ordered by name
func (r *SubjectRepository) GetAll(ctx context.Context) ([]models.Subject, error) {
	subjects := []models.Subject{}
	err := r.db.SelectContext(ctx, &subjects, "SELECT id, name, description, created_at FROM subjects ORDER BY name, id")
	if err != nil {
		return nil, fmt.Errorf("failed to get subjects: %w", err)
	}
	return subjects, nil
}

// GetByID returns a subject by ID
func (r *SubjectRepository) GetByID(ctx context.Context, id int64) (*models.Subject, error) {
	var subject models.Subject
	query := r.db.Rebind("SELECT id, name, description, created_at FROM subjects WHERE id = ?")
	err := r.db.GetContext(ctx, &subject, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subject: %w", err)
	}
	return &subject, nil
}

// GetByName returns a subject by its exact name
func (r *SubjectRepository) GetByName(ctx context.Context, name string) (*models.Subject, error) {
	var subject models.Subject
	query := r.db.Rebind("SELECT id, name, description, created_at FROM subjects WHERE name = ? ORDER BY id LIMIT 1")
	err := r.db.GetContext(ctx, &subject, query, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subject by name: %w", err)
	}
	return &subject, nil
}

// Create inserts a new subject
func (r *SubjectRepository) Create(ctx context.Context, subject *models.Subject) error {
	if subject.Name == "" {
		return fmt.Errorf("subject name must not be empty")
	}
	subject.CreatedAt = time.Now().UTC()

	query := r.db.Rebind(`
		INSERT INTO subjects (name, description, created_at)
		VALUES (?, ?, ?)
		RETURNING id
	`)
	err := r.db.QueryRowxContext(ctx, query, subject.Name, subject.Description, subject.CreatedAt).Scan(&subject.ID)
	if err != nil {
		return fmt.Errorf("failed to create subject: %w", err)
	}
	return nil
}

// Update modifies an existing subject
func (r *SubjectRepository) Update(ctx context.Context, subject *models.Subject) error {
	if subject.Name == "" {
		return fmt.Errorf("subject name must not be empty")
	}
	query := r.db.Rebind("UPDATE subjects SET name = ?, description = ? WHERE id = ?")
	result, err := r.db.ExecContext(ctx, query, subject.Name, subject.Description, subject.ID)
	if err != nil {
		return fmt.Errorf("failed to update subject: %w", err)
	}
	return expectRow(result)
}

// Delete removes a subject together with its topics and questions
func (r *SubjectRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, r.db.Rebind("DELETE FROM subjects WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("failed to delete subject: %w", err)
	}
	return expectRow(result)
}

// GetOrCreateByName returns the subject with the given name, creating it when missing
func (r *SubjectRepository) GetOrCreateByName(ctx context.Context, name string) (*models.Subject, bool, error) {
	subject, err := r.GetByName(ctx, name)
	if err == nil {
		return subject, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	subject = &models.Subject{Name: name}
	if err := r.Create(ctx, subject); err != nil {
		return nil, false, err
	}
	return subject, true, nil
}

// expectRow turns "zero rows affected" into ErrNotFound
func expectRow(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}
