package models

import "time"

// TelegramUser represents a Telegram account talking to the bot
type TelegramUser struct {
	ID           int64     `json:"id" db:"id"`
	TelegramID   int64     `json:"telegram_id" db:"telegram_id"`
	ChatID       int64     `json:"chat_id" db:"chat_id"`
	Username     string    `json:"username" db:"username"`
	FirstName    string    `json:"first_name" db:"first_name"`
	LastName     string    `json:"last_name" db:"last_name"`
	PhoneNumber  string    `json:"phone_number" db:"phone_number"`
	LanguageCode string    `json:"language_code" db:"language_code"`
	UserID       *int64    `json:"user_id,omitempty" db:"user_id"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}
