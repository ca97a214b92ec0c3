package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the process-wide settings read from the environment
type Config struct {
	DBDriver string
	DBDSN    string

	DevMode bool

	HTTPAddr    string
	JWTSecret   string
	TokenTTL    time.Duration
	CORSOrigins []string

	TelegramToken string
	TelegramDebug bool

	SchedulerEnabled      bool
	ReminderAfter         time.Duration
	ReminderInterval      time.Duration
	NotificationStartHour int
	NotificationEndHour   int
}

// devJWTSecret signs tokens in DEV_MODE when JWT_SECRET is unset. It is
// public, so Validate rejects it outside dev mode.
const devJWTSecret = "quizbot-dev-secret"

// Load reads .env (if present) and the environment
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: failed to load .env file: %v", err)
	}

	cfg := &Config{
		DBDriver:              getEnv("DB_DRIVER", "sqlite3"),
		DBDSN:                 getEnv("DB_DSN", "data/quizbot.db"),
		DevMode:               getBool("DEV_MODE", false),
		HTTPAddr:              getEnv("HTTP_ADDR", ":8080"),
		JWTSecret:             os.Getenv("JWT_SECRET"),
		TokenTTL:              getDuration("TOKEN_TTL", 24*time.Hour),
		CORSOrigins:           getList("CORS_ORIGINS"),
		TelegramToken:         os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramDebug:         getBool("TELEGRAM_DEBUG", false),
		SchedulerEnabled:      getBool("ENABLE_SCHEDULER", true),
		ReminderAfter:         getDuration("REMINDER_AFTER", 6*time.Hour),
		ReminderInterval:      getDuration("REMINDER_INTERVAL", time.Hour),
		NotificationStartHour: getHour("NOTIFICATION_START_HOUR", 8),
		NotificationEndHour:   getHour("NOTIFICATION_END_HOUR", 22),
	}

	if cfg.JWTSecret == "" && cfg.DevMode {
		log.Println("Warning: JWT_SECRET is not set, signing tokens with the development secret")
		cfg.JWTSecret = devJWTSecret
	}
	return cfg
}

// Validate reports settings the server cannot safely start with
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required (set DEV_MODE=true for local development)")
	}
	if c.JWTSecret == devJWTSecret && !c.DevMode {
		return fmt.Errorf("JWT_SECRET must not be the development secret outside DEV_MODE")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		log.Printf("Warning: invalid %s=%q, using %v", key, val, fallback)
		return fallback
	}
	return b
}

func getDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	d, err := time.ParseDuration(val)
	if err != nil || d <= 0 {
		log.Printf("Warning: invalid %s=%q, using %s", key, val, fallback)
		return fallback
	}
	return d
}

func getHour(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	h, err := strconv.Atoi(val)
	if err != nil || h < 0 || h > 23 {
		log.Printf("Warning: invalid %s=%q, using %d", key, val, fallback)
		return fallback
	}
	return h
}

func getList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
