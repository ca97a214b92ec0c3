package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// commonPasswords seeds the bad_passwords table on first start
var commonPasswords = []string{
	"password", "password1", "Password1!", "P@ssw0rd", "P@ssword1", "Qwerty123!",
	"qwerty123", "12345678", "123456789", "11111111", "iloveyou", "Admin123!",
	"Welcome1!", "Passw0rd!", "Abc12345!", "Letmein1!",
}

func seedBadPasswords(db *sqlx.DB) error {
	var count int
	if err := db.Get(&count, "SELECT COUNT(*) FROM bad_passwords"); err != nil {
		return fmt.Errorf("failed to count bad passwords: %w", err)
	}
	if count > 0 {
		return nil
	}
	for _, p := range commonPasswords {
		if _, err := db.Exec(db.Rebind("INSERT INTO bad_passwords (password) VALUES (?)"), p); err != nil {
			return fmt.Errorf("failed to seed bad passwords: %w", err)
		}
	}
	return nil
}

// BadPasswordRepository stores passwords that are too common to accept
type BadPasswordRepository struct {
	db *sqlx.DB
}

// NewBadPasswordRepository creates a new repository instance
func NewBadPasswordRepository(db *sqlx.DB) *BadPasswordRepository {
	return &BadPasswordRepository{db: db}
}

// GetAll lists the stored passwords
func (r *BadPasswordRepository) GetAll(ctx context.Context) ([]string, error) {
	passwords := []string{}
	if err := r.db.SelectContext(ctx, &passwords, "SELECT password FROM bad_passwords ORDER BY password"); err != nil {
		return nil, fmt.Errorf("failed to get bad passwords: %w", err)
	}
	return passwords, nil
}

// Add stores a password; adding an existing one yields ErrConflict
func (r *BadPasswordRepository) Add(ctx context.Context, password string) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind("INSERT INTO bad_passwords (password) VALUES (?)"), password)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("failed to add bad password: %w", err)
	}
	return nil
}

// Contains checks the list case-insensitively
func (r *BadPasswordRepository) Contains(ctx context.Context, password string) (bool, error) {
	var count int
	query := r.db.Rebind("SELECT COUNT(*) FROM bad_passwords WHERE LOWER(password) = ?")
	if err := r.db.GetContext(ctx, &count, query, strings.ToLower(password)); err != nil {
		return false, fmt.Errorf("failed to check bad password: %w", err)
	}
	return count > 0, nil
}
