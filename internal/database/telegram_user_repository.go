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

// TelegramUserRepository handles database operations for Telegram accounts
type TelegramUserRepository struct {
	db *sqlx.DB
}

// NewTelegramUserRepository creates a new repository instance
func NewTelegramUserRepository(db *sqlx.DB) *TelegramUserRepository {
	return &TelegramUserRepository{db: db}
}

const telegramUserColumns = `id, telegram_id, chat_id, username, first_name, last_name,
	phone_number, language_code, user_id, created_at, updated_at`

// GetByTelegramID returns the account by its Telegram user ID
func (r *TelegramUserRepository) GetByTelegramID(ctx context.Context, telegramID int64) (*models.TelegramUser, error) {
	var tu models.TelegramUser
	query := r.db.Rebind("SELECT " + telegramUserColumns + " FROM telegram_users WHERE telegram_id = ?")
	err := r.db.GetContext(ctx, &tu, query, telegramID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get telegram user: %w", err)
	}
	return &tu, nil
}

// Upsert creates the Telegram account or refreshes its chat and profile fields.
// Language, phone and the linked user are kept.
func (r *TelegramUserRepository) Upsert(ctx context.Context, tu *models.TelegramUser) (bool, error) {
	now := time.Now().UTC()
	if tu.LanguageCode == "" {
		tu.LanguageCode = "ru"
	}

	existing, err := r.GetByTelegramID(ctx, tu.TelegramID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return false, err
	}

	if existing != nil {
		query := r.db.Rebind(`
			UPDATE telegram_users
			SET chat_id = ?, username = ?, first_name = ?, last_name = ?, updated_at = ?
			WHERE id = ?
		`)
		_, err := r.db.ExecContext(ctx, query, tu.ChatID, tu.Username, tu.FirstName, tu.LastName, now, existing.ID)
		if err != nil {
			return false, fmt.Errorf("failed to update telegram user: %w", err)
		}
		existing.ChatID = tu.ChatID
		existing.Username = tu.Username
		existing.FirstName = tu.FirstName
		existing.LastName = tu.LastName
		existing.UpdatedAt = now
		*tu = *existing
		return false, nil
	}

	tu.CreatedAt = now
	tu.UpdatedAt = now
	query := r.db.Rebind(`
		INSERT INTO telegram_users (
			telegram_id, chat_id, username, first_name, last_name,
			phone_number, language_code, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`)
	err = r.db.QueryRowxContext(ctx, query,
		tu.TelegramID,
		tu.ChatID,
		tu.Username,
		tu.FirstName,
		tu.LastName,
		tu.PhoneNumber,
		tu.LanguageCode,
		tu.CreatedAt,
		tu.UpdatedAt,
	).Scan(&tu.ID)
	if err != nil {
		return false, fmt.Errorf("failed to create telegram user: %w", err)
	}
	return true, nil
}

// UpdateLanguage stores the chosen interface language
func (r *TelegramUserRepository) UpdateLanguage(ctx context.Context, telegramID int64, lang string) error {
	return r.updateField(ctx, telegramID, "language_code", lang)
}

// UpdatePhone stores the shared phone number
func (r *TelegramUserRepository) UpdatePhone(ctx context.Context, telegramID int64, phone string) error {
	return r.updateField(ctx, telegramID, "phone_number", phone)
}

// LinkUser attaches the Telegram account to an application user
func (r *TelegramUserRepository) LinkUser(ctx context.Context, telegramID, userID int64) error {
	return r.updateField(ctx, telegramID, "user_id", userID)
}

func (r *TelegramUserRepository) updateField(ctx context.Context, telegramID int64, column string, value interface{}) error {
	query := r.db.Rebind("UPDATE telegram_users SET " + column + " = ?, updated_at = ? WHERE telegram_id = ?")
	result, err := r.db.ExecContext(ctx, query, value, time.Now().UTC(), telegramID)
	if err != nil {
		return fmt.Errorf("failed to update telegram user %s: %w", column, err)
	}
	return expectRow(result)
}
