package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/quizbot/pkg/models"
	"github.com/jmoiron/sqlx"
)

// UserRepository handles database operations for users
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new repository instance
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, username, password_hash, first_name, last_name, full_name,
	email, phone, is_admin, created_at, updated_at`

// GetByID returns a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	return r.getOne(ctx, "id = ?", id)
}

// GetByUsername returns a user by username
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.getOne(ctx, "username = ?", username)
}

// GetByPhone returns a user by phone number
func (r *UserRepository) GetByPhone(ctx context.Context, phone string) (*models.User, error) {
	return r.getOne(ctx, "phone = ?", phone)
}

func (r *UserRepository) getOne(ctx context.Context, condition string, arg interface{}) (*models.User, error) {
	var user models.User
	query := r.db.Rebind("SELECT " + userColumns + " FROM users WHERE " + condition)
	err := r.db.GetContext(ctx, &user, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// Create inserts a new user. A taken username or phone yields ErrConflict.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.FullName == "" {
		user.FullName = strings.TrimSpace(user.FirstName + " " + user.LastName)
	}

	query := r.db.Rebind(`
		INSERT INTO users (
			username, password_hash, first_name, last_name, full_name,
			email, phone, is_admin, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`)
	err := r.db.QueryRowxContext(ctx, query,
		user.Username,
		user.PasswordHash,
		user.FirstName,
		user.LastName,
		user.FullName,
		user.Email,
		user.Phone,
		user.IsAdmin,
		user.CreatedAt,
		user.UpdatedAt,
	).Scan(&user.ID)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetOrCreateByPhone finds the account registered with phone or creates one whose
// username is the phone number. The bool reports whether a user was created.
func (r *UserRepository) GetOrCreateByPhone(ctx context.Context, phone, fullName string) (*models.User, bool, error) {
	user, err := r.GetByPhone(ctx, phone)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	firstName, lastName := splitFullName(fullName)
	user = &models.User{
		Username:  phone,
		FirstName: firstName,
		LastName:  lastName,
		FullName:  strings.TrimSpace(fullName),
		Phone:     &phone,
	}
	if err := r.Create(ctx, user); err != nil {
		if errors.Is(err, ErrConflict) {
			// Lost a race with a concurrent registration of the same phone
			user, err = r.GetByPhone(ctx, phone)
			return user, false, err
		}
		return nil, false, err
	}
	return user, true, nil
}

// SetAdmin toggles the admin flag
func (r *UserRepository) SetAdmin(ctx context.Context, id int64, isAdmin bool) error {
	query := r.db.Rebind("UPDATE users SET is_admin = ?, updated_at = ? WHERE id = ?")
	result, err := r.db.ExecContext(ctx, query, isAdmin, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return expectRow(result)
}

func splitFullName(fullName string) (string, string) {
	parts := strings.Fields(fullName)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}
