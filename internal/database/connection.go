package database

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

var (
	// ErrNotFound is returned when a requested row does not exist
	ErrNotFound = errors.New("not found")
	// ErrDuplicateAnswer is returned when an attempt already has an answer for the question
	ErrDuplicateAnswer = errors.New("answer already recorded")
	// ErrAttemptClosed is returned when writing to an attempt that is no longer in progress
	ErrAttemptClosed = errors.New("attempt is not in progress")
	// ErrConflict is returned for any other unique constraint violation
	ErrConflict = errors.New("already exists")
)

// Connect opens the database and makes sure the schema exists.
// driver is "sqlite3" or "postgres".
func Connect(driver, dsn string) (*sqlx.DB, error) {
	if driver == "sqlite3" && dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
		// Create data directory if it doesn't exist
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create data directory: %w", err)
			}
		}
	}

	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if driver == "sqlite3" {
		// SQLite doesn't support multiple writers; a single connection also
		// keeps an in-memory database alive for the lifetime of the pool
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)

		_, err = db.Exec("PRAGMA foreign_keys = ON")
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
		}
	}

	if err := initializeSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// initializeSchema creates necessary tables if they don't exist
func initializeSchema(db *sqlx.DB) error {
	pk := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if db.DriverName() == "postgres" {
		pk = "BIGSERIAL PRIMARY KEY"
	}

	tables := []struct {
		name string
		ddl  string
	}{
		{"users", `
			CREATE TABLE IF NOT EXISTS users (
				id ` + pk + `,
				username TEXT NOT NULL UNIQUE,
				password_hash TEXT NOT NULL DEFAULT '',
				first_name TEXT NOT NULL DEFAULT '',
				last_name TEXT NOT NULL DEFAULT '',
				full_name TEXT NOT NULL DEFAULT '',
				email TEXT NOT NULL DEFAULT '',
				phone TEXT UNIQUE,
				is_admin BOOLEAN NOT NULL DEFAULT false,
				created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`},
		{"bad_passwords", `
			CREATE TABLE IF NOT EXISTS bad_passwords (
				id ` + pk + `,
				password TEXT NOT NULL UNIQUE
			)`},
		{"telegram_users", `
			CREATE TABLE IF NOT EXISTS telegram_users (
				id ` + pk + `,
				telegram_id BIGINT NOT NULL UNIQUE,
				chat_id BIGINT NOT NULL,
				username TEXT NOT NULL DEFAULT '',
				first_name TEXT NOT NULL DEFAULT '',
				last_name TEXT NOT NULL DEFAULT '',
				phone_number TEXT NOT NULL DEFAULT '',
				language_code TEXT NOT NULL DEFAULT 'ru',
				user_id BIGINT REFERENCES users(id) ON DELETE SET NULL,
				created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`},
		{"subjects", `
			CREATE TABLE IF NOT EXISTS subjects (
				id ` + pk + `,
				name TEXT NOT NULL CHECK (name <> ''),
				description TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`},
		{"topics", `
			CREATE TABLE IF NOT EXISTS topics (
				id ` + pk + `,
				subject_id BIGINT NOT NULL REFERENCES subjects(id) ON DELETE CASCADE,
				name TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`},
		{"questions", `
			CREATE TABLE IF NOT EXISTS questions (
				id ` + pk + `,
				topic_id BIGINT NOT NULL REFERENCES topics(id) ON DELETE CASCADE,
				text TEXT NOT NULL,
				explanation TEXT NOT NULL DEFAULT '',
				image_url TEXT NOT NULL DEFAULT '',
				position INTEGER NOT NULL DEFAULT 0,
				created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`},
		{"choices", `
			CREATE TABLE IF NOT EXISTS choices (
				id ` + pk + `,
				question_id BIGINT NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
				text TEXT NOT NULL,
				is_correct BOOLEAN NOT NULL DEFAULT false
			)`},
		{"quiz_attempts", `
			CREATE TABLE IF NOT EXISTS quiz_attempts (
				id ` + pk + `,
				user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				topic_id BIGINT NOT NULL REFERENCES topics(id) ON DELETE CASCADE,
				status TEXT NOT NULL DEFAULT 'in_progress',
				score INTEGER NOT NULL DEFAULT 0,
				total_questions INTEGER NOT NULL DEFAULT 0,
				started_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
				completed_at TIMESTAMP,
				reminded_at TIMESTAMP,
				CHECK (score >= 0 AND score <= total_questions),
				CHECK ((status = 'completed') = (completed_at IS NOT NULL))
			)`},
		{"answer_records", `
			CREATE TABLE IF NOT EXISTS answer_records (
				id ` + pk + `,
				quiz_attempt_id BIGINT NOT NULL REFERENCES quiz_attempts(id) ON DELETE CASCADE,
				question_id BIGINT NOT NULL REFERENCES questions(id),
				selected_choice_id BIGINT NOT NULL REFERENCES choices(id),
				is_correct BOOLEAN NOT NULL DEFAULT false,
				answered_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
				UNIQUE(quiz_attempt_id, question_id)
			)`},
	}

	for _, t := range tables {
		if _, err := db.Exec(t.ddl); err != nil {
			return fmt.Errorf("failed to create %s table: %w", t.name, err)
		}
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_topics_subject ON topics(subject_id)",
		"CREATE INDEX IF NOT EXISTS idx_questions_topic ON questions(topic_id, position, id)",
		"CREATE INDEX IF NOT EXISTS idx_choices_question ON choices(question_id)",
		"CREATE INDEX IF NOT EXISTS idx_attempts_user ON quiz_attempts(user_id, started_at)",
	}
	for _, ddl := range indexes {
		if _, err := db.Exec(ddl); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return seedBadPasswords(db)
}

// isUniqueViolation recognizes unique constraint errors from both supported drivers
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

// isForeignKeyViolation recognizes rows still referenced by another table
func isForeignKeyViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23503"
	}
	return false
}
